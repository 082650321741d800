package workspace

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/hpungsan/lspwarm/internal/lsp"
)

type fakeHost struct {
	loaded  map[string]bool
	created map[string]bool
	failing map[string]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{loaded: map[string]bool{}, created: map[string]bool{}, failing: map[string]bool{}}
}

func (h *fakeHost) IsLoaded(path string) bool { return h.loaded[path] }
func (h *fakeHost) LoadedCount() int         { return len(h.loaded) }

func (h *fakeHost) Create(path string) bool {
	if h.created[path] {
		return false
	}
	h.created[path] = true
	return true
}

func (h *fakeHost) Load(path string) (string, error) {
	if h.failing[path] {
		return "", errors.New("permission denied")
	}
	h.loaded[path] = true
	return "content of " + filepath.Base(path), nil
}

type extClassifier struct{}

func (extClassifier) Classify(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	default:
		return ""
	}
}

type fakeWalker struct {
	trees map[string][]string
	calls []string
}

func (w *fakeWalker) Collect(root string) []string {
	w.calls = append(w.calls, root)
	return append([]string(nil), w.trees[root]...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []lsp.DidOpenTextDocumentParams
	err  error
}

func (n *recordingNotifier) Notify(method string, params any) error {
	if method != lsp.MethodDidOpen {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, params.(lsp.DidOpenTextDocumentParams))
	return n.err
}

func (n *recordingNotifier) paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, p := range n.sent {
		out = append(out, lsp.URIToPath(p.TextDocument.URI))
	}
	return out
}
