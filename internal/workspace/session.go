package workspace

import (
	"path/filepath"
	"strings"
)

// Notifier delivers a notification to one client.
type Notifier interface {
	Notify(method string, params any) error
}

// Session is an attached client as the pipeline sees it. Capabilities are
// resolved once at attach time.
type Session struct {
	ID           int
	Name         string
	Filetypes    map[string]bool
	Root         string
	SupportsOpen bool
	Notifier     Notifier
}

// NewSession builds a session from a filetype list.
func NewSession(id int, name string, filetypes []string, root string, supportsOpen bool, n Notifier) *Session {
	fts := make(map[string]bool, len(filetypes))
	for _, ft := range filetypes {
		fts[ft] = true
	}
	return &Session{
		ID:           id,
		Name:         name,
		Filetypes:    fts,
		Root:         root,
		SupportsOpen: supportsOpen,
		Notifier:     n,
	}
}

// Handles reports whether the client declared filetype.
func (s *Session) Handles(filetype string) bool {
	return s.Filetypes[filetype]
}

// EffectiveRoot is the declared root, or cwd when none was declared.
func (s *Session) EffectiveRoot(cwd string) string {
	if s.Root != "" {
		return filepath.Clean(s.Root)
	}
	return filepath.Clean(cwd)
}

// within reports whether path equals root or lies below it.
func within(path, root string) bool {
	if root == "" {
		return false
	}
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
