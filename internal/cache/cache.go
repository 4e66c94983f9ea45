// Package cache persists GraphQL responses in a local SQLite database so
// repeated runs within the TTL window skip redundant network calls.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"audiothek-downloader/internal/fileutil"
)

const dbFileName = "graphql_cache.sqlite3"

// Store is a content-addressed, TTL-bound cache for GraphQL response bodies.
// A disabled store never hits the database: Get always misses and Set is a
// no-op. All read-modify-write cycles are serialized by one mutex.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger *zap.Logger

	mu sync.Mutex
}

// Open initializes or connects to the cache database under dir. A zero or
// negative ttl yields a disabled store.
func Open(dir string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		return &Store{ttl: 0, logger: logger}, nil
	}

	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	schema := `
        CREATE TABLE IF NOT EXISTS graphql_cache (
            cache_key TEXT PRIMARY KEY,
            query_name TEXT,
            query TEXT NOT NULL,
            variables TEXT NOT NULL,
            response TEXT NOT NULL,
            updated_at REAL NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_graphql_cache_updated_at
        ON graphql_cache(updated_at);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{db: db, ttl: ttl, logger: logger}, nil
}

// Disabled returns a store that never caches anything.
func Disabled(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{ttl: 0, logger: logger}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enabled reports whether the store persists entries.
func (s *Store) Enabled() bool {
	return s.ttl > 0 && s.db != nil
}

// Get returns the cached response for the (query, variables) pair. Entries
// older than the TTL are evicted and reported as absent.
func (s *Store) Get(query string, variables map[string]any) (json.RawMessage, bool) {
	if !s.Enabled() {
		return nil, false
	}

	key, err := cacheKey(query, variables)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var response string
	var updatedAt float64
	row := s.db.QueryRow("SELECT response, updated_at FROM graphql_cache WHERE cache_key = ?", key)
	if err := row.Scan(&response, &updatedAt); err != nil {
		return nil, false
	}

	age := time.Since(time.Unix(int64(updatedAt), 0))
	if age > s.ttl {
		if _, err := s.db.Exec("DELETE FROM graphql_cache WHERE cache_key = ?", key); err != nil {
			s.logger.Warn("failed to evict stale cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	if !json.Valid([]byte(response)) {
		if _, err := s.db.Exec("DELETE FROM graphql_cache WHERE cache_key = ?", key); err != nil {
			s.logger.Warn("failed to evict corrupt cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	return json.RawMessage(response), true
}

// Set stores a response for the (query, variables) pair, replacing any
// previous entry for the same key.
func (s *Store) Set(queryName, query string, variables map[string]any, response json.RawMessage) {
	if !s.Enabled() {
		return
	}

	key, err := cacheKey(query, variables)
	if err != nil {
		return
	}
	serialized, err := json.Marshal(variables)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
        INSERT INTO graphql_cache(cache_key, query_name, query, variables, response, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(cache_key) DO UPDATE SET
            response=excluded.response,
            updated_at=excluded.updated_at,
            query_name=excluded.query_name`,
		key, queryName, query, string(serialized), string(response), float64(time.Now().Unix()))
	if err != nil {
		s.logger.Warn("failed to store cache entry", zap.String("query", queryName), zap.Error(err))
	}
}

// Clear removes all cached entries.
func (s *Store) Clear() error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM graphql_cache"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// cacheKey hashes the canonicalized (query, variables) pair. encoding/json
// marshals map keys in sorted order, so equivalent requests always hash
// identically.
func cacheKey(query string, variables map[string]any) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
