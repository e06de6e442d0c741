package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TomasB/geoalloc/internal/ipaddr"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultBatchSize     = 1000
	defaultCacheSize     = 4096
	defaultProgressEvery = 10000
)

// allocationRow is the ip_ranges table. Bounds are 32-digit zero-padded hex
// (ipaddr.Address.Key), so comparing them as text orders them numerically.
type allocationRow struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	Network     string
	CountryCode string
	CountryName string
	StateCode   string
	StateName   string
	Family      uint8  `gorm:"not null;index:idx_ip_ranges_lookup,priority:1"`
	RangeStart  string `gorm:"size:32;not null;index:idx_ip_ranges_lookup,priority:2"`
	RangeEnd    string `gorm:"size:32;not null"`
}

func (allocationRow) TableName() string { return "ip_ranges" }

type cacheKey struct {
	family ipaddr.Family
	key    string
}

type cachedResult struct {
	rec   Record
	found bool
}

// SQLBackend stores records in a relational database through gorm.
// Ties between overlapping ranges resolve to the lowest row id, which is
// insertion order.
type SQLBackend struct {
	db        *gorm.DB
	batchSize int
	cache     *lru.Cache[cacheKey, cachedResult]

	// progressEvery is the row interval between insert progress logs.
	progressEvery int
}

// SQLOption configures an SQLBackend.
type SQLOption func(*SQLBackend) error

// WithBatchSize sets how many rows are inserted per statement.
func WithBatchSize(n int) SQLOption {
	return func(b *SQLBackend) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		b.batchSize = n
		return nil
	}
}

// WithCacheSize sets the query cache capacity. Zero disables caching.
func WithCacheSize(n int) SQLOption {
	return func(b *SQLBackend) error {
		if n <= 0 {
			b.cache = nil
			return nil
		}
		c, err := lru.New[cacheKey, cachedResult](n)
		if err != nil {
			return fmt.Errorf("failed to create query cache: %w", err)
		}
		b.cache = c
		return nil
	}
}

// OpenSQLite opens a SQLite database through gorm with query logging disabled.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	return db, nil
}

// NewSQLBackend migrates the ip_ranges table on db and returns a backend using it.
func NewSQLBackend(db *gorm.DB, opts ...SQLOption) (*SQLBackend, error) {
	b := &SQLBackend{db: db, batchSize: defaultBatchSize, progressEvery: defaultProgressEvery}
	if err := WithCacheSize(defaultCacheSize)(b); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if err := db.AutoMigrate(&allocationRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ip_ranges: %w", err)
	}
	return b, nil
}

// ReplaceAll deletes every row and inserts records in one transaction.
func (b *SQLBackend) ReplaceAll(ctx context.Context, records []Record) error {
	rows := make([]allocationRow, len(records))
	for i, r := range records {
		rows[i] = allocationRow{
			Network:     r.Network,
			CountryCode: r.CountryCode,
			CountryName: r.CountryName,
			StateCode:   r.StateCode,
			StateName:   r.StateName,
			Family:      uint8(r.Start.Family()),
			RangeStart:  r.Start.Key(),
			RangeEnd:    r.End.Key(),
		}
	}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&allocationRow{}).Error; err != nil {
			return fmt.Errorf("clear ip_ranges: %w", err)
		}
		return b.insert(tx, rows)
	})
	if err != nil {
		return err
	}

	if b.cache != nil {
		b.cache.Purge()
	}
	return nil
}

// insert writes rows batch by batch, logging progress at Debug level.
func (b *SQLBackend) insert(tx *gorm.DB, rows []allocationRow) error {
	nextLog := b.progressEvery
	for start := 0; start < len(rows); start += b.batchSize {
		end := min(start+b.batchSize, len(rows))
		if err := tx.Create(rows[start:end]).Error; err != nil {
			return fmt.Errorf("insert ip_ranges rows %d-%d: %w", start+1, end, err)
		}
		if b.progressEvery > 0 && end >= nextLog {
			slog.Debug("inserting ip_ranges", "inserted", end, "total", len(rows))
			for nextLog <= end {
				nextLog += b.progressEvery
			}
		}
	}
	return nil
}

// FindContaining queries the lowest-id row whose bounds enclose point.
func (b *SQLBackend) FindContaining(ctx context.Context, point ipaddr.Address) (Record, bool, error) {
	key := cacheKey{family: point.Family(), key: point.Key()}
	if b.cache != nil {
		if hit, ok := b.cache.Get(key); ok {
			return hit.rec, hit.found, nil
		}
	}

	var row allocationRow
	res := b.db.WithContext(ctx).
		Where("family = ? AND range_start <= ? AND range_end >= ?", uint8(key.family), key.key, key.key).
		Order("id").
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return Record{}, false, fmt.Errorf("query ip_ranges: %w", res.Error)
	}

	result := cachedResult{}
	if res.RowsAffected > 0 {
		rec, err := row.toRecord()
		if err != nil {
			return Record{}, false, err
		}
		result = cachedResult{rec: rec, found: true}
	}

	if b.cache != nil {
		b.cache.Add(key, result)
	}
	return result.rec, result.found, nil
}

// Close closes the underlying database connection.
func (b *SQLBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r allocationRow) toRecord() (Record, error) {
	fam := ipaddr.Family(r.Family)
	start, err := ipaddr.FromKey(r.RangeStart, fam)
	if err != nil {
		return Record{}, fmt.Errorf("row %d start: %w", r.ID, err)
	}
	end, err := ipaddr.FromKey(r.RangeEnd, fam)
	if err != nil {
		return Record{}, fmt.Errorf("row %d end: %w", r.ID, err)
	}
	return Record{
		Network:     r.Network,
		CountryCode: r.CountryCode,
		CountryName: r.CountryName,
		StateCode:   r.StateCode,
		StateName:   r.StateName,
		Start:       start,
		End:         end,
	}, nil
}
