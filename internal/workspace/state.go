// Package workspace feeds workspace files to attached language servers.
//
// A client attach starts an Opener, which walks the initiating document's
// directory, then the client's root, and hands files to the Gate a batch
// per tick. The Gate sends textDocument/didOpen for each eligible file at
// most once per process.
package workspace

import (
	"sort"
	"sync"
)

// State is the process-lifetime bookkeeping shared by every client:
// the set of paths already submitted for opening and the set of client
// ids already processed. Both only grow.
type State struct {
	mu        sync.Mutex
	opened    map[string]struct{}
	processed map[int]struct{}
}

// NewState returns empty state.
func NewState() *State {
	return &State{
		opened:    make(map[string]struct{}),
		processed: make(map[int]struct{}),
	}
}

// MarkOpened records path and reports whether it was new.
func (s *State) MarkOpened(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.opened[path]; ok {
		return false
	}
	s.opened[path] = struct{}{}
	return true
}

// IsOpened reports whether path was ever submitted.
func (s *State) IsOpened(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.opened[path]
	return ok
}

// OpenedCount returns the number of paths ever submitted.
func (s *State) OpenedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opened)
}

// Opened returns the submitted paths in sorted order.
func (s *State) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.opened))
	for p := range s.opened {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MarkProcessed records a client id and reports whether it was new.
func (s *State) MarkProcessed(clientID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[clientID]; ok {
		return false
	}
	s.processed[clientID] = struct{}{}
	return true
}
