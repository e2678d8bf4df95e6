package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	bolt "go.etcd.io/bbolt"
)

// setupMigrateTestDB creates a fresh bbolt database with the store buckets initialized.
func setupMigrateTestDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{BucketFindings, BucketFiles, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to create buckets: %v", err)
	}
	return db
}

// writeSchemaVersion sets the schema_version directly in the meta bucket.
func writeSchemaVersion(t *testing.T, db *bolt.DB, version uint64) {
	t.Helper()
	err := db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, version)
		return tx.Bucket(BucketMeta).Put(schemaVersionKey, buf)
	})
	if err != nil {
		t.Fatalf("failed to write schema version: %v", err)
	}
}

func TestRunMigrations_FreshDB(t *testing.T) {
	db := setupMigrateTestDB(t)

	v, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected version 0 on fresh db, got %d", v)
	}

	if err := RunMigrations(db, nil); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	v, err = GetSchemaVersion(db)
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("expected version %d after migration, got %d", SchemaVersion, v)
	}
}

func TestRunMigrations_AlreadyCurrent(t *testing.T) {
	db := setupMigrateTestDB(t)
	writeSchemaVersion(t, db, SchemaVersion)

	if err := RunMigrations(db, nil); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	v, _ := GetSchemaVersion(db)
	if v != SchemaVersion {
		t.Errorf("expected version %d, got %d", SchemaVersion, v)
	}
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	db := setupMigrateTestDB(t)

	err := db.Update(func(tx *bolt.Tx) error {
		data, _ := json.Marshal(map[string]interface{}{"id": "f-1", "title": "eval call"})
		return tx.Bucket(BucketFindings).Put([]byte("f-1"), data)
	})
	if err != nil {
		t.Fatalf("failed to seed finding: %v", err)
	}
	writeSchemaVersion(t, db, 1)

	steps := append(append([]migration(nil), migrations...), migration{
		version:     2,
		description: "add lang field to findings",
		migrate: func(tx *bolt.Tx) error {
			b := tx.Bucket(BucketFindings)
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var m map[string]interface{}
				if err := json.Unmarshal(v, &m); err != nil {
					return err
				}
				if _, ok := m["lang"]; !ok {
					m["lang"] = "unknown"
				}
				data, err := json.Marshal(m)
				if err != nil {
					return err
				}
				if err := b.Put(k, data); err != nil {
					return err
				}
			}
			return nil
		},
	})

	if err := runMigrations(db, nil, steps, 2); err != nil {
		t.Fatalf("runMigrations: %v", err)
	}

	v, _ := GetSchemaVersion(db)
	if v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}

	err = db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketFindings).Get([]byte("f-1"))
		if data == nil {
			return fmt.Errorf("f-1 not found")
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if m["lang"] != "unknown" {
			return fmt.Errorf("expected lang 'unknown', got %v", m["lang"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("data verification failed: %v", err)
	}
}

func TestRunMigrations_DowngradeError(t *testing.T) {
	db := setupMigrateTestDB(t)
	writeSchemaVersion(t, db, SchemaVersion+10)

	if err := RunMigrations(db, nil); err == nil {
		t.Fatal("expected error for downgrade, got nil")
	}
}

func TestRunMigrations_PartialFailure(t *testing.T) {
	db := setupMigrateTestDB(t)
	writeSchemaVersion(t, db, 1)

	steps := append(append([]migration(nil), migrations...), migration{
		version:     2,
		description: "intentionally failing migration",
		migrate: func(tx *bolt.Tx) error {
			return fmt.Errorf("simulated failure")
		},
	})

	if err := runMigrations(db, nil, steps, 2); err == nil {
		t.Fatal("expected error from failing migration, got nil")
	}

	// The transaction rolled back.
	v, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("expected version to stay at 1 after failure, got %d", v)
	}
}

func TestGetSchemaVersion_Corrupt(t *testing.T) {
	db := setupMigrateTestDB(t)
	err := db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put(schemaVersionKey, []byte{1, 2})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetSchemaVersion(db); err == nil {
		t.Fatal("expected error for corrupt version")
	}
}

func TestMappingHash_Deterministic(t *testing.T) {
	m1, err := buildIndexMapping()
	if err != nil {
		t.Fatalf("buildIndexMapping: %v", err)
	}
	m2, err := buildIndexMapping()
	if err != nil {
		t.Fatalf("buildIndexMapping: %v", err)
	}

	h1 := MappingHash(m1)
	if h1 == "" {
		t.Fatal("hash should not be empty")
	}
	if h2 := MappingHash(m2); h1 != h2 {
		t.Errorf("same mapping produced different hashes: %s vs %s", h1, h2)
	}
}

func TestMappingHash_DifferentMappings(t *testing.T) {
	m1, err := buildIndexMapping()
	if err != nil {
		t.Fatalf("buildIndexMapping: %v", err)
	}

	m2 := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	f := mapping.NewTextFieldMapping()
	f.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("different_field", f)
	m2.AddDocumentMapping("different", doc)
	m2.DefaultMapping = doc

	if MappingHash(m1) == MappingHash(m2) {
		t.Error("different mappings should produce different hashes")
	}
}
