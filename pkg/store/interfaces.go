package store

import "github.com/jestersw/codeparser/pkg/findings"

// FindingsStore manages persisted findings and the scan state of each file.
type FindingsStore interface {
	GetFinding(id string) (*findings.Finding, error)
	SearchFindings(query string, opts findings.SearchOptions) ([]*findings.SearchResult, error)
	ListFindings(opts findings.SearchOptions) ([]*findings.Finding, error)
	Stats(opts findings.SearchOptions) (*findings.Stats, error)

	ReplaceFile(rec FileRecord, newFindings []*findings.Finding) error
	RemoveFile(path string) error
	GetFile(path string) (*FileRecord, error)
	ListFiles() ([]*FileRecord, error)

	Clear() error
	Close() error
}

// Ensure Store implements FindingsStore.
var _ FindingsStore = (*Store)(nil)
