package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calderhart/sift/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry time.Time
	db          *sql.DB
	aliasCache  []model.MerchantAlias
	dbPath      string
	cacheMutex  sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// invalidateAliasCache drops the cached alias snapshot after a write.
func (s *SQLiteStorage) invalidateAliasCache() {
	s.cacheMutex.Lock()
	s.aliasCache = nil
	s.cacheExpiry = time.Time{}
	s.cacheMutex.Unlock()
}

func (s *SQLiteStorage) cachedAliases() []model.MerchantAlias {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	if s.aliasCache == nil || time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.aliasCache
}

func (s *SQLiteStorage) storeAliasCache(aliases []model.MerchantAlias) {
	s.cacheMutex.Lock()
	s.aliasCache = aliases
	s.cacheExpiry = time.Now().Add(5 * time.Minute)
	s.cacheMutex.Unlock()
}
