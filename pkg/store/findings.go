package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/oklog/ulid/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/jestersw/codeparser/pkg/findings"
)

var mappingHashKey = []byte("search_mapping_hash")

const (
	wordTokenizer = "word"
	wordAnalyzer  = "word_lower"
)

// unlimitedSearch stands in for "no limit" in bleve requests.
const unlimitedSearch = 100_000

// FileRecord is the scan state of a single file.
type FileRecord struct {
	Path      string    `json:"path"`
	Language  string    `json:"lang"`
	Digest    string    `json:"digest"` // xxhash64 of the content, hex
	Findings  int       `json:"findings"`
	ScannedAt time.Time `json:"scannedAt"`
}

func (s *Store) openOrCreateSearchIndex() (bleve.Index, error) {
	if _, statErr := os.Stat(s.searchPath); os.IsNotExist(statErr) {
		return createSearchIndex(s.searchPath)
	}

	index, err := bleve.Open(s.searchPath)
	if err == nil {
		return index, nil
	}

	s.log.Warn("findings search index corrupted, rebuilding",
		zap.String("path", s.searchPath), zap.Error(err))
	if removeErr := os.RemoveAll(s.searchPath); removeErr != nil {
		return nil, fmt.Errorf("failed to remove corrupted findings search index: %w (original error: %v)", removeErr, err)
	}
	return createSearchIndex(s.searchPath)
}

func createSearchIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	return bleve.New(path, indexMapping)
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	// Dotted callees such as Math.random split into searchable words.
	err := indexMapping.AddCustomTokenizer(wordTokenizer, map[string]interface{}{
		"type":   regexptokenizer.Name,
		"regexp": `[\p{L}\p{N}_]+`,
	})
	if err != nil {
		return nil, err
	}
	err = indexMapping.AddCustomAnalyzer(wordAnalyzer, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": wordTokenizer,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = wordAnalyzer

	findingMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = wordAnalyzer
	titleField.Store = true
	findingMapping.AddFieldMappingsAt("title", titleField)

	detailField := bleve.NewTextFieldMapping()
	detailField.Analyzer = wordAnalyzer
	detailField.Store = false
	findingMapping.AddFieldMappingsAt("detail", detailField)

	// Exact-match filter fields.
	for _, name := range []string{"analyzer", "severity", "category", "file", "lang"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		findingMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.AddDocumentMapping("finding", findingMapping)
	indexMapping.DefaultMapping = findingMapping

	return indexMapping, nil
}

// ensureSearchMapping rebuilds the search index from bbolt when the stored
// mapping hash differs from the current mapping.
func (s *Store) ensureSearchMapping() error {
	m, err := buildIndexMapping()
	if err != nil {
		return err
	}
	hash := MappingHash(m)

	var stored string
	if err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(BucketMeta).Get(mappingHashKey); data != nil {
			stored = string(data)
		}
		return nil
	}); err != nil {
		return err
	}

	if hash == stored {
		return nil
	}
	if stored != "" {
		s.log.Info("findings search mapping changed, rebuilding index")
	}

	if err := s.resetSearchIndex(); err != nil {
		return err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketFindings).ForEach(func(_, v []byte) error {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				return nil
			}
			return s.search.Index(f.ID, searchDoc(&f))
		})
	})
	if err != nil {
		return err
	}

	return s.SetMeta(string(mappingHashKey), hash)
}

// resetSearchIndex closes, removes and recreates the search index. On failure
// the store is left without an index and search calls return errSearchClosed.
func (s *Store) resetSearchIndex() error {
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			return fmt.Errorf("failed to close findings search index: %w", err)
		}
		s.search = nil
	}
	if err := os.RemoveAll(s.searchPath); err != nil {
		return fmt.Errorf("failed to remove findings search index: %w", err)
	}
	index, err := createSearchIndex(s.searchPath)
	if err != nil {
		return fmt.Errorf("failed to recreate findings search index: %w", err)
	}
	s.search = index
	return nil
}

func searchDoc(f *findings.Finding) map[string]interface{} {
	return map[string]interface{}{
		"title":    f.Title,
		"detail":   f.Detail,
		"analyzer": f.Analyzer,
		"severity": f.Severity,
		"category": f.Category,
		"file":     f.FilePath,
		"lang":     f.Language,
	}
}

// GetFinding retrieves a finding by ID.
func (s *Store) GetFinding(id string) (*findings.Finding, error) {
	var f findings.Finding
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketFindings).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SearchFindings performs full-text search on finding titles and details.
// An empty query matches everything the filters allow.
func (s *Store) SearchFindings(queryStr string, opts findings.SearchOptions) ([]*findings.SearchResult, error) {
	if s.search == nil {
		return nil, errSearchClosed
	}
	limit := opts.Limit
	if limit == 0 {
		limit = findings.DefaultSearchLimit
	} else if limit < 0 {
		limit = unlimitedSearch
	}

	var queries []query.Query
	if queryStr != "" {
		queries = append(queries, bleve.NewQueryStringQuery(queryStr))
	}
	for field, value := range map[string]string{
		"analyzer": opts.Analyzer,
		"severity": opts.Severity,
		"category": opts.Category,
		"lang":     opts.Language,
	} {
		if value == "" {
			continue
		}
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		queries = append(queries, q)
	}
	if opts.FilePath != "" {
		q := bleve.NewWildcardQuery("*" + opts.FilePath + "*")
		q.SetField("file")
		queries = append(queries, q)
	}

	var searchQuery query.Query
	switch len(queries) {
	case 0:
		searchQuery = bleve.NewMatchAllQuery()
	case 1:
		searchQuery = queries[0]
	default:
		searchQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	result, err := s.search.Search(req)
	if err != nil {
		return nil, fmt.Errorf("findings search failed: %w", err)
	}

	var results []*findings.SearchResult
	for _, hit := range result.Hits {
		f, err := s.GetFinding(hit.ID)
		if err != nil {
			continue
		}
		if !opts.Matches(f) {
			continue
		}
		results = append(results, &findings.SearchResult{Finding: f, Score: hit.Score})
	}
	return results, nil
}

// ListFindings returns findings filtered by options, ordered by file then
// line. No full-text search is involved.
func (s *Store) ListFindings(opts findings.SearchOptions) ([]*findings.Finding, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = findings.DefaultListLimit
	}

	var result []*findings.Finding
	err := s.eachFinding(opts, func(f *findings.Finding) {
		result = append(result, f)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].FilePath != result[j].FilePath {
			return result[i].FilePath < result[j].FilePath
		}
		if result[i].Line != result[j].Line {
			return result[i].Line < result[j].Line
		}
		return result[i].Column < result[j].Column
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stats returns aggregate finding counts, optionally filtering by SearchOptions.
func (s *Store) Stats(opts findings.SearchOptions) (*findings.Stats, error) {
	stats := &findings.Stats{
		ByAnalyzer: make(map[string]int),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	files := make(map[string]struct{})

	err := s.eachFinding(opts, func(f *findings.Finding) {
		stats.Total++
		stats.ByAnalyzer[f.Analyzer]++
		stats.BySeverity[f.Severity]++
		if f.Category != "" {
			stats.ByCategory[f.Category]++
		}
		files[f.FilePath] = struct{}{}
	})
	stats.Files = len(files)
	return stats, err
}

func (s *Store) eachFinding(opts findings.SearchOptions, fn func(*findings.Finding)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketFindings).ForEach(func(_, v []byte) error {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				return nil
			}
			if opts.Matches(&f) {
				fn(&f)
			}
			return nil
		})
	})
}

// ReplaceFile atomically replaces every finding for rec.Path with newFindings
// and records rec as the file's scan state. On error, the old findings remain.
func (s *Store) ReplaceFile(rec FileRecord, newFindings []*findings.Finding) error {
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now()
	}
	rec.Findings = len(newFindings)
	recData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal file record: %w", err)
	}

	return s.replaceFindings(
		func(f *findings.Finding) bool { return f.FilePath == rec.Path },
		newFindings,
		func(tx *bolt.Tx) error {
			return tx.Bucket(BucketFiles).Put([]byte(rec.Path), recData)
		},
	)
}

// RemoveFile deletes every finding for path and forgets its scan state.
func (s *Store) RemoveFile(path string) error {
	return s.replaceFindings(
		func(f *findings.Finding) bool { return f.FilePath == path },
		nil,
		func(tx *bolt.Tx) error {
			return tx.Bucket(BucketFiles).Delete([]byte(path))
		},
	)
}

// replaceFindings atomically replaces findings matching shouldDelete with
// newFindings. Keys and documents are collected inside the bbolt tx and bleve
// is updated afterwards, so a rolled-back tx never touches the index.
func (s *Store) replaceFindings(shouldDelete func(*findings.Finding) bool, newFindings []*findings.Finding, extra func(*bolt.Tx) error) error {
	if s.search == nil {
		return errSearchClosed
	}
	type pendingPut struct {
		id  string
		doc map[string]interface{}
	}
	var deleteIDs []string
	var puts []pendingPut

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketFindings)
		c := b.Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				continue
			}
			if shouldDelete(&f) {
				// Cursor keys are only valid for the current position.
				deleteIDs = append(deleteIDs, string(append([]byte(nil), k...)))
			}
		}

		for _, id := range deleteIDs {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}

		for _, f := range newFindings {
			if f.ID == "" {
				f.ID = ulid.Make().String()
			}
			if f.CreatedAt.IsZero() {
				f.CreatedAt = time.Now()
			}

			data, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("marshal finding: %w", err)
			}
			if err := b.Put([]byte(f.ID), data); err != nil {
				return err
			}
			puts = append(puts, pendingPut{id: f.ID, doc: searchDoc(f)})
		}

		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := s.search.NewBatch()
	for _, id := range deleteIDs {
		batch.Delete(id)
	}
	for _, p := range puts {
		if err := batch.Index(p.id, p.doc); err != nil {
			return err
		}
	}
	if err := s.search.Batch(batch); err != nil {
		s.log.Warn("failed to update findings search index", zap.Error(err))
		return err
	}
	return nil
}

// GetFile returns the recorded scan state for path.
func (s *Store) GetFile(path string) (*FileRecord, error) {
	var rec FileRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketFiles).Get([]byte(path))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListFiles returns every recorded file, ordered by path.
func (s *Store) ListFiles() ([]*FileRecord, error) {
	var out []*FileRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketFiles).ForEach(func(_, v []byte) error {
			var rec FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			out = append(out, &rec)
			return nil
		})
	})
	return out, err
}

// Clear removes all findings and file records.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketFindings, BucketFiles} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.resetSearchIndex()
}
