package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2/mapping"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// SchemaVersion is the current schema version. Increment this when adding new migrations.
var SchemaVersion uint64 = 1

var schemaVersionKey = []byte("schema_version")

// migration represents a single schema migration step.
type migration struct {
	version     uint64
	description string
	migrate     func(tx *bolt.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Each migration is applied exactly once, in order, when the DB version is below SchemaVersion.
var migrations = []migration{
	{version: 1, description: "baseline schema stamp", migrate: func(tx *bolt.Tx) error { return nil }},
}

// RunMigrations applies any pending schema migrations to the database.
// Returns an error if the DB version is ahead of SchemaVersion (downgrade).
func RunMigrations(db *bolt.DB, log *zap.Logger) error {
	return runMigrations(db, log, migrations, SchemaVersion)
}

func runMigrations(db *bolt.DB, log *zap.Logger, steps []migration, target uint64) error {
	if log == nil {
		log = zap.NewNop()
	}
	current, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if current > target {
		return fmt.Errorf("database schema version %d is ahead of binary version %d (downgrade not supported)", current, target)
	}
	if current == target {
		return nil
	}

	var pending []migration
	for _, m := range steps {
		if m.version > current && m.version <= target {
			pending = append(pending, m)
		}
	}

	// All pending steps and the version stamp share one transaction.
	err = db.Update(func(tx *bolt.Tx) error {
		for _, m := range pending {
			log.Info("applying store migration",
				zap.Uint64("version", m.version),
				zap.String("description", m.description))
			if err := m.migrate(tx); err != nil {
				return fmt.Errorf("migration v%d (%s) failed: %w", m.version, m.description, err)
			}
		}

		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, target)
		return meta.Put(schemaVersionKey, buf)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// GetSchemaVersion reads the current schema version from the meta bucket.
// Returns 0 if no version has been set (fresh database).
func GetSchemaVersion(db *bolt.DB) (uint64, error) {
	var version uint64
	err := db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return nil
		}
		data := meta.Get(schemaVersionKey)
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("corrupt schema_version: expected 8 bytes, got %d", len(data))
		}
		version = binary.BigEndian.Uint64(data)
		return nil
	})
	return version, err
}

// MappingHash computes a deterministic SHA-256 hex digest of a bleve index mapping.
// Used to detect when a mapping has changed and the search index needs rebuilding.
func MappingHash(m mapping.IndexMapping) string {
	data, err := json.Marshal(m)
	if err != nil {
		// Empty forces a rebuild.
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
