// Package filetype maps file paths to language tags ("go", "python", ...).
package filetype

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// unknown marks an extension that resolved to nothing.
const unknown = "\x00unknown"

// Documents is the part of the document model the classifier needs for
// content detection.
type Documents interface {
	Exists(path string) bool
	Load(path string) (string, error)
	Release(path string)
}

// Detector resolves filetypes the extension table doesn't cover.
type Detector interface {
	// MatchName resolves by file name. exact reports whether the match was
	// on the whole name rather than a pattern that extension peers share.
	MatchName(name string) (filetype string, exact bool)

	// MatchContent resolves from the file's text.
	MatchContent(name, content string) string
}

// Classifier resolves and memoizes filetypes. Safe for concurrent use.
type Classifier struct {
	docs     Documents
	detector Detector
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// New returns a classifier. docs may be nil, which disables content detection.
func New(docs Documents, detector Detector, logger *slog.Logger) *Classifier {
	if detector == nil {
		detector = DefaultDetector{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		docs:     docs,
		detector: detector,
		logger:   logger,
		cache:    make(map[string]string),
	}
}

// Classify returns path's filetype, or "" when none resolves.
//
// Order: cached extension, static extension table, name match, content
// detection. Results are cached by lower-cased extension; extensionless
// files and exact-name matches are never cached.
func (c *Classifier) Classify(path string) string {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))

	if ext != "" {
		c.mu.Lock()
		ft, ok := c.cache[ext]
		c.mu.Unlock()
		if ok {
			if ft == unknown {
				return ""
			}
			return ft
		}
		if ft, ok := extensions[ext]; ok {
			c.store(ext, ft)
			return ft
		}
	}

	if ft, exact := c.detector.MatchName(name); ft != "" {
		if !exact {
			c.store(ext, ft)
		}
		return ft
	}

	ft := c.detectContent(path, name)
	c.store(ext, ft)
	return ft
}

// CacheSize returns the number of memoized extensions.
func (c *Classifier) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *Classifier) store(ext, ft string) {
	if ext == "" {
		return
	}
	if ft == "" {
		ft = unknown
	}
	c.mu.Lock()
	if _, ok := c.cache[ext]; !ok {
		c.cache[ext] = ft
	}
	c.mu.Unlock()
}

func (c *Classifier) detectContent(path, name string) string {
	if c.docs == nil {
		return ""
	}
	existed := c.docs.Exists(path)
	text, err := c.docs.Load(path)
	if !existed {
		defer c.docs.Release(path)
	}
	if err != nil {
		c.logger.Debug("filetype content detection skipped", "path", path, "error", err)
		return ""
	}
	return c.detector.MatchContent(name, text)
}
