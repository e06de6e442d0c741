// Package lookup resolves raw query text to an allocation record.
//
// Lookup never returns a Go error. Every outcome, including malformed
// input and storage failures, is reported through Result so callers such
// as the interactive console can always render something.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/TomasB/geoalloc/internal/ipaddr"
)

var (
	// ErrAmbiguousInput is reported for query text that looks like a subnet.
	ErrAmbiguousInput = errors.New("input looks like a subnet, expected a single IP address")

	// ErrStore is reported when the allocation store could not be queried.
	ErrStore = errors.New("allocation store query failed")
)

// Kind tags the outcome of a lookup.
type Kind int

const (
	KindLocated Kind = iota + 1
	KindNotFound
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLocated:
		return "located"
	case KindNotFound:
		return "not_found"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Stable error tags returned by Result.ErrorKind.
const (
	ErrorKindAmbiguousInput = "ambiguous_input"
	ErrorKindInvalidAddress = "invalid_address"
	ErrorKindStore          = "store"
)

// Result is the outcome of a single lookup.
type Result struct {
	Kind   Kind
	Query  string
	Point  ipaddr.Address
	Record data.Record
	Err    error
}

// Located reports whether a record was found.
func (r Result) Located() bool { return r.Kind == KindLocated }

// ErrorKind returns a stable tag for error results and "" otherwise.
func (r Result) ErrorKind() string {
	if r.Kind != KindError {
		return ""
	}
	switch {
	case errors.Is(r.Err, ErrAmbiguousInput):
		return ErrorKindAmbiguousInput
	case errors.Is(r.Err, ipaddr.ErrInvalidAddress):
		return ErrorKindInvalidAddress
	default:
		return ErrorKindStore
	}
}

// Querier is the part of data.AllocationStore the service needs.
type Querier interface {
	Query(ctx context.Context, point ipaddr.Address) (data.Record, bool, error)
}

// Locator resolves raw query text.
type Locator interface {
	Lookup(ctx context.Context, raw string) Result
}

// Service implements Locator over an allocation store.
type Service struct {
	store Querier
}

// NewService creates a lookup service reading from store.
func NewService(store Querier) *Service {
	return &Service{store: store}
}

// Lookup parses raw as a single IP address and finds the record containing it.
func (s *Service) Lookup(ctx context.Context, raw string) Result {
	query := strings.TrimSpace(raw)
	res := Result{Query: query}

	if strings.Contains(query, "/") {
		res.Kind = KindError
		res.Err = fmt.Errorf("%w: %q", ErrAmbiguousInput, query)
		return res
	}

	point, err := ipaddr.Parse(query)
	if err != nil {
		res.Kind = KindError
		res.Err = err
		return res
	}
	res.Point = point

	rec, ok, err := s.store.Query(ctx, point)
	if err != nil {
		slog.Error("allocation query failed", "ip", query, "error", err)
		res.Kind = KindError
		res.Err = fmt.Errorf("%w: %w", ErrStore, err)
		return res
	}
	if !ok {
		res.Kind = KindNotFound
		return res
	}

	res.Kind = KindLocated
	res.Record = rec
	return res
}
