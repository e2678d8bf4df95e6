package grammar

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

//go:embed packs/*/pack.json
var embeddedPacks embed.FS

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *PackRegistry
	errDefaultRegistry  error
)

// DefaultPackRegistry returns a lazily-initialised singleton PackRegistry
// pre-loaded with all embedded packs. It is safe for concurrent use.
func DefaultPackRegistry() *PackRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, errDefaultRegistry = NewPackRegistry()
		if errDefaultRegistry != nil {
			// This should never happen with valid embedded data.
			// Fall back to an empty registry rather than panicking.
			defaultRegistry = newEmptyRegistry()
		}
	})
	return defaultRegistry
}

// Pack is the in-memory representation of a pack.json file.
type Pack struct {
	SchemaVersion int             `json:"schema_version"`
	Name          string          `json:"name"`
	Version       string          `json:"version,omitempty"`
	Dialect       string          `json:"dialect,omitempty"` // rule dialect; empty means detection only
	Meta          PackMeta        `json:"meta"`
	Complexity    *PackComplexity `json:"complexity,omitempty"`
}

// PackMeta holds file-detection metadata for a language.
type PackMeta struct {
	Extensions []string `json:"extensions"`
	Filenames  []string `json:"filenames,omitempty"`
	Shebangs   []string `json:"shebangs,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
}

// PackComplexity holds complexity scoring configuration for a language.
type PackComplexity struct {
	BranchTypes []string `json:"branch_types"`
}

// BranchTypes returns the branching node kinds for the pack, or nil.
func (p *Pack) BranchTypes() []string {
	if p == nil || p.Complexity == nil {
		return nil
	}
	return p.Complexity.BranchTypes
}

// PackRegistry holds loaded pack metadata for all known languages.
type PackRegistry struct {
	mu    sync.RWMutex
	packs map[string]*Pack

	// Derived lookup tables, built from pack metadata.
	extLookup      map[string]string // extension -> language name
	filenameLookup map[string]string // filename -> language name
	shebangLookup  map[string]string // interpreter -> language name
	aliasLookup    map[string]string // alias -> language name
}

func newEmptyRegistry() *PackRegistry {
	return &PackRegistry{
		packs:          make(map[string]*Pack),
		extLookup:      make(map[string]string),
		filenameLookup: make(map[string]string),
		shebangLookup:  make(map[string]string),
		aliasLookup:    make(map[string]string),
	}
}

// NewPackRegistry creates a PackRegistry pre-loaded with all embedded packs.
func NewPackRegistry() (*PackRegistry, error) {
	r := newEmptyRegistry()

	err := fs.WalkDir(embeddedPacks, "packs", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "pack.json" {
			return nil
		}
		data, readErr := embeddedPacks.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading embedded pack %s: %w", path, readErr)
		}
		pack, parseErr := parsePack(data)
		if parseErr != nil {
			return fmt.Errorf("parsing embedded pack %s: %w", path, parseErr)
		}
		r.register(pack)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading embedded packs: %w", err)
	}

	return r, nil
}

func parsePack(data []byte) (*Pack, error) {
	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	if pack.Name == "" {
		return nil, fmt.Errorf("pack has no name")
	}
	return &pack, nil
}

// LoadFromDir loads a pack.json from a directory (e.g., .codeparser/packs/{name}/).
// If the pack already exists in the registry, the on-disk version takes
// precedence.
func (r *PackRegistry) LoadFromDir(dir string) error {
	packPath := filepath.Join(dir, "pack.json")
	data, err := os.ReadFile(packPath)
	if err != nil {
		return err
	}
	pack, err := parsePack(data)
	if err != nil {
		return fmt.Errorf("parsing pack %s: %w", packPath, err)
	}
	r.register(pack)
	return nil
}

// LoadOverrides loads every <root>/<name>/pack.json. A missing root is not an
// error. Returns the names of the packs loaded.
func (r *PackRegistry) LoadOverrides(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var loaded []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, statErr := os.Stat(filepath.Join(dir, "pack.json")); statErr != nil {
			continue
		}
		if err := r.LoadFromDir(dir); err != nil {
			return loaded, err
		}
		loaded = append(loaded, e.Name())
	}
	return loaded, nil
}

// Get returns the pack for the given language name, or nil if not found.
func (r *PackRegistry) Get(name string) *Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packs[name]
}

// LangForExtension returns the language name for a file extension (e.g., ".go" -> "go").
func (r *PackRegistry) LangForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.extLookup[ext]
	return lang, ok
}

// LangForFilename returns the language name for a known filename (e.g., "BUILD" -> "python").
func (r *PackRegistry) LangForFilename(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.filenameLookup[name]
	return lang, ok
}

// LangForShebang returns the language name for a shebang interpreter (e.g., "python3" -> "python").
func (r *PackRegistry) LangForShebang(interpreter string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.shebangLookup[interpreter]
	return lang, ok
}

// NormaliseLang converts a language alias to its canonical name.
// Returns the input unchanged if no alias is found.
func (r *PackRegistry) NormaliseLang(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.packs[s]; ok {
		return s
	}
	if canonical, ok := r.aliasLookup[s]; ok {
		return canonical
	}
	return s
}

// All returns all registered pack names, sorted.
func (r *PackRegistry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns every canonical name and alias the registry knows.
func (r *PackRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.packs)+len(r.aliasLookup))
	for name := range r.packs {
		names = append(names, name)
	}
	for alias := range r.aliasLookup {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// register adds a pack to the registry, acquiring the write lock.
func (r *PackRegistry) register(pack *Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(pack)
}

// registerLocked adds a pack to the registry. Caller must hold write lock.
func (r *PackRegistry) registerLocked(pack *Pack) {
	r.packs[pack.Name] = pack

	for _, ext := range pack.Meta.Extensions {
		r.extLookup[ext] = pack.Name
	}
	for _, fn := range pack.Meta.Filenames {
		r.filenameLookup[fn] = pack.Name
	}
	for _, sh := range pack.Meta.Shebangs {
		r.shebangLookup[sh] = pack.Name
	}
	for _, alias := range pack.Meta.Aliases {
		r.aliasLookup[alias] = pack.Name
	}
}
