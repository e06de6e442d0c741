package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/TomasB/geoalloc/internal/ipaddr"
	"go4.org/netipx"
)

// ErrNotLoaded is returned by Ready until a dataset has been loaded.
var ErrNotLoaded = errors.New("dataset not loaded")

// Stats summarises the currently loaded dataset.
type Stats struct {
	Records      int       `json:"records"`
	IPv4Records  int       `json:"ipv4_records"`
	IPv6Records  int       `json:"ipv6_records"`
	MergedBlocks int       `json:"merged_blocks"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// AllocationStore loads allocation records into a Backend and answers
// point-containment queries against it.
type AllocationStore struct {
	backend Backend

	mu     sync.RWMutex
	loaded bool
	stats  Stats
}

// NewAllocationStore wraps backend. The store is empty until Load succeeds.
func NewAllocationStore(backend Backend) *AllocationStore {
	return &AllocationStore{backend: backend}
}

// Load parses rows and replaces the stored records with them.
// Nothing is replaced when any row is malformed.
func (s *AllocationStore) Load(ctx context.Context, rows []string) (int, error) {
	records, err := ParseRows(rows)
	if err != nil {
		return 0, err
	}
	return s.replace(ctx, records)
}

// LoadReader is Load for a dataset stream.
func (s *AllocationStore) LoadReader(ctx context.Context, r io.Reader) (int, error) {
	records, err := ParseDataset(r)
	if err != nil {
		return 0, err
	}
	return s.replace(ctx, records)
}

// LoadFile is Load for a dataset file on disk.
func (s *AllocationStore) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatasetLoad, err)
	}
	defer f.Close()

	n, err := s.LoadReader(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func (s *AllocationStore) replace(ctx context.Context, records []Record) (int, error) {
	stats := summarise(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.ReplaceAll(ctx, records); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatasetLoad, err)
	}
	s.loaded = true
	s.stats = stats

	slog.Debug("dataset replaced", "records", stats.Records, "ipv4", stats.IPv4Records, "ipv6", stats.IPv6Records)
	return len(records), nil
}

// Query returns the first stored record whose range contains point.
func (s *AllocationStore) Query(ctx context.Context, point ipaddr.Address) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.backend.FindContaining(ctx, point)
}

// Ready returns ErrNotLoaded until a dataset load has succeeded.
func (s *AllocationStore) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

// Stats returns a summary of the loaded dataset.
func (s *AllocationStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Close closes the backend.
func (s *AllocationStore) Close() error {
	return s.backend.Close()
}

func summarise(records []Record) Stats {
	st := Stats{Records: len(records), LoadedAt: time.Now()}

	var b netipx.IPSetBuilder
	for _, r := range records {
		switch r.Start.Family() {
		case ipaddr.IPv4:
			st.IPv4Records++
		case ipaddr.IPv6:
			st.IPv6Records++
		}
		b.AddRange(r.Range().IPRange())
	}

	set, err := b.IPSet()
	if err != nil {
		slog.Warn("failed to merge dataset ranges", "error", err)
		return st
	}
	st.MergedBlocks = len(set.Ranges())
	return st
}
