package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the PatternCache interface, for
// deployments sharing one cache across hosts
type MySQLCache struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLCache connects to MySQL and ensures the pattern table exists
func NewMySQLCache(dsn string, logger *zap.Logger) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_cache (
			fingerprint VARCHAR(64) PRIMARY KEY,
			category VARCHAR(64) NOT NULL,
			confidence DOUBLE NOT NULL,
			hit_count INT NOT NULL DEFAULT 1,
			last_used TIMESTAMP NOT NULL,
			from_domain VARCHAR(255)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLCache{db: db, logger: logger}, nil
}

// Hit retrieves the pattern for a fingerprint, incrementing its hit count
// and refreshing last_used
func (c *MySQLCache) Hit(ctx context.Context, fingerprint string) (*core.CachedPattern, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE pattern_cache
		SET hit_count = hit_count + 1, last_used = ?
		WHERE fingerprint = ?
	`, time.Now(), fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to update cache entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	var pattern core.CachedPattern
	err = c.db.QueryRowContext(ctx, `
		SELECT fingerprint, category, confidence, hit_count, last_used, from_domain
		FROM pattern_cache
		WHERE fingerprint = ?
	`, fingerprint).Scan(&pattern.Fingerprint, &pattern.Category, &pattern.Confidence,
		&pattern.HitCount, &pattern.LastUsed, &pattern.FromDomain)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}
	return &pattern, nil
}

// Store inserts or replaces a pattern
func (c *MySQLCache) Store(ctx context.Context, pattern *core.CachedPattern) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pattern_cache
			(fingerprint, category, confidence, hit_count, last_used, from_domain)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category = VALUES(category),
			confidence = VALUES(confidence),
			hit_count = VALUES(hit_count),
			last_used = VALUES(last_used),
			from_domain = VALUES(from_domain)
	`, pattern.Fingerprint, pattern.Category, pattern.Confidence,
		pattern.HitCount, pattern.LastUsed, pattern.FromDomain)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *MySQLCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL connection: %w", err)
	}
	return nil
}
