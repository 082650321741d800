// Package host is lspwarm's document model: the set of documents it has
// created and loaded, their text, and the diagnostics servers published
// for them.
package host

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/hpungsan/lspwarm/internal/lsp"
)

// Document is a snapshot of one document.
type Document struct {
	Path        string
	Text        string
	Loaded      bool
	Diagnostics []lsp.Diagnostic
}

type document struct {
	text        string
	loaded      bool
	diagnostics []lsp.Diagnostic
}

// Store holds documents keyed by canonical path. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]*document
	readFile func(string) ([]byte, error)
}

// NewStore returns an empty store reading content from disk.
func NewStore() *Store {
	return &Store{
		docs:     make(map[string]*document),
		readFile: os.ReadFile,
	}
}

// Exists reports whether a document was created for path.
func (s *Store) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok
}

// IsLoaded reports whether path has a document with its content loaded.
func (s *Store) IsLoaded(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	return ok && d.loaded
}

// Create adds an unloaded document for path. It reports false if one existed.
func (s *Store) Create(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[path]; ok {
		return false
	}
	s.docs[path] = &document{}
	return true
}

// Load reads path's content into its document, creating the document if
// needed, and returns the text. An already loaded document is not re-read.
func (s *Store) Load(path string) (string, error) {
	s.mu.RLock()
	if d, ok := s.docs[path]; ok && d.loaded {
		text := d.text
		s.mu.RUnlock()
		return text, nil
	}
	s.mu.RUnlock()

	data, err := s.readFile(path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok {
		d = &document{}
		s.docs[path] = d
	}
	if !d.loaded {
		d.text = string(data)
		d.loaded = true
	}
	return d.text, nil
}

// Release drops path's document and its diagnostics.
func (s *Store) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// LoadedCount returns the number of loaded documents.
func (s *Store) LoadedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.docs {
		if d.loaded {
			n++
		}
	}
	return n
}

// SetDiagnostics replaces the diagnostics of a loaded document. Updates for
// documents the store never loaded are dropped and reported as false.
func (s *Store) SetDiagnostics(path string, diags []lsp.Diagnostic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok || !d.loaded {
		return false
	}
	d.diagnostics = append([]lsp.Diagnostic(nil), diags...)
	return true
}

// Loaded returns snapshots of all loaded documents ordered by path.
// Text is omitted.
func (s *Store) Loaded() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for path, d := range s.docs {
		if !d.loaded {
			continue
		}
		out = append(out, Document{
			Path:        path,
			Loaded:      true,
			Diagnostics: append([]lsp.Diagnostic(nil), d.diagnostics...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Get returns a snapshot of path's document including its text.
func (s *Store) Get(path string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	if !ok {
		return Document{}, false
	}
	return Document{
		Path:        path,
		Text:        d.text,
		Loaded:      d.loaded,
		Diagnostics: append([]lsp.Diagnostic(nil), d.diagnostics...),
	}, true
}
