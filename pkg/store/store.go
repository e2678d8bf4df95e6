// Package store persists findings and per-file scan state in bbolt, with a
// bleve index for full-text search over finding titles and details.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")

	errSearchClosed = errors.New("findings search index is closed")
)

// Bucket names.
var (
	BucketFindings = []byte("findings")
	BucketFiles    = []byte("files")
	BucketMeta     = []byte("meta")
)

const (
	dbFileName     = "findings.db"
	searchDirName  = "search.bleve"
	defaultTimeout = time.Second
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for index maintenance messages.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTimeout sets how long Open waits for the database file lock.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Store implements FindingsStore using bbolt and bleve.
type Store struct {
	db         *bolt.DB
	search     bleve.Index
	searchPath string
	timeout    time.Duration
	log        *zap.Logger
}

// Open opens or creates a store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		searchPath: filepath.Join(dir, searchDirName),
		timeout:    defaultTimeout,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, dbFileName), 0o600, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open findings db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{BucketFindings, BucketFiles, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	if err := RunMigrations(db, s.log); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	s.db = db

	index, err := s.openOrCreateSearchIndex()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create/open findings search index: %w", err)
	}
	s.search = index

	if err := s.ensureSearchMapping(); err != nil {
		if s.search != nil {
			s.search.Close()
		}
		db.Close()
		return nil, fmt.Errorf("findings search mapping check failed: %w", err)
	}

	return s, nil
}

// Close closes the search index and the database.
func (s *Store) Close() error {
	var errs []error
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close findings search: %w", err))
		}
		s.search = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close findings db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetMeta reads a string value from the meta bucket.
func (s *Store) GetMeta(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketMeta).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		val = string(data)
		return nil
	})
	return val, err
}

// SetMeta writes a string value to the meta bucket.
func (s *Store) SetMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put([]byte(key), []byte(value))
	})
}
