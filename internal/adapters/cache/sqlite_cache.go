package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the PatternCache interface,
// persisting patterns across runs
type SQLiteCache struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteCache opens (creating if needed) a SQLite pattern cache
func NewSQLiteCache(dbPath string, logger *zap.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_cache (
			fingerprint TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			confidence REAL NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 1,
			last_used TIMESTAMP NOT NULL,
			from_domain TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteCache{db: db, logger: logger}, nil
}

// Hit retrieves the pattern for a fingerprint, incrementing its hit count
// and refreshing last_used
func (c *SQLiteCache) Hit(ctx context.Context, fingerprint string) (*core.CachedPattern, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE pattern_cache
		SET hit_count = hit_count + 1, last_used = ?
		WHERE fingerprint = ?
	`, time.Now().Format(time.RFC3339), fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to update cache entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	var pattern core.CachedPattern
	var lastUsed string
	err = c.db.QueryRowContext(ctx, `
		SELECT fingerprint, category, confidence, hit_count, last_used, from_domain
		FROM pattern_cache
		WHERE fingerprint = ?
	`, fingerprint).Scan(&pattern.Fingerprint, &pattern.Category, &pattern.Confidence,
		&pattern.HitCount, &lastUsed, &pattern.FromDomain)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}

	if t, perr := time.Parse(time.RFC3339, lastUsed); perr == nil {
		pattern.LastUsed = t
	} else {
		c.logger.Warn("failed to parse last_used timestamp",
			zap.String("fingerprint", fingerprint), zap.Error(perr))
	}
	return &pattern, nil
}

// Store inserts or replaces a pattern
func (c *SQLiteCache) Store(ctx context.Context, pattern *core.CachedPattern) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pattern_cache
			(fingerprint, category, confidence, hit_count, last_used, from_domain)
		VALUES (?, ?, ?, ?, ?, ?)
	`, pattern.Fingerprint, pattern.Category, pattern.Confidence,
		pattern.HitCount, pattern.LastUsed.Format(time.RFC3339), pattern.FromDomain)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *SQLiteCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
