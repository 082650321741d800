// Package walker collects candidate files below a workspace directory.
package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Realpath resolves a path to its absolute, symlink-free form.
type Realpath func(path string) (string, error)

// Options configures a Walker.
type Options struct {
	// IgnoredDirs are entry names skipped with everything below them.
	// Despite the name they apply to files too.
	IgnoredDirs []string

	// IgnoredSuffixes skip entries whose name ends with any of them.
	IgnoredSuffixes []string

	// HomeDir is skipped as a whole subtree. Optional.
	HomeDir string

	// MaxFiles stops the walk once this many files were collected.
	// Zero or less means no cap.
	MaxFiles int

	// Realpath defaults to EvalSymlinks followed by Abs.
	Realpath Realpath
}

// Walker performs bounded, pre-order directory walks.
type Walker struct {
	ignored  map[string]bool
	suffixes []string
	home     []string
	max      int
	realpath Realpath
	logger   *slog.Logger
}

// New returns a Walker.
func New(opts Options, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Walker{
		ignored:  make(map[string]bool, len(opts.IgnoredDirs)),
		max:      opts.MaxFiles,
		realpath: opts.Realpath,
		logger:   logger,
	}
	if w.realpath == nil {
		w.realpath = DefaultRealpath
	}
	for _, d := range opts.IgnoredDirs {
		if d = strings.TrimSpace(d); d != "" {
			w.ignored[d] = true
		}
	}
	for _, s := range opts.IgnoredSuffixes {
		if s = strings.TrimSpace(s); s != "" {
			w.suffixes = append(w.suffixes, s)
		}
	}
	if opts.HomeDir != "" {
		home := filepath.Clean(opts.HomeDir)
		w.home = append(w.home, home)
		if resolved, err := w.realpath(home); err == nil && resolved != home {
			w.home = append(w.home, resolved)
		}
	}
	return w
}

// DefaultRealpath resolves symlinks and makes the result absolute.
func DefaultRealpath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// Ignored reports whether an entry name matches an ignore rule.
func (w *Walker) Ignored(name string) bool {
	if w.ignored[name] {
		return true
	}
	for _, s := range w.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// IsHome reports whether path is the home directory or below it.
func (w *Walker) IsHome(path string) bool {
	path = filepath.Clean(path)
	for _, h := range w.home {
		if path == h || strings.HasPrefix(path, h+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Collect walks root depth-first in pre-order and returns resolved file
// paths. Ignore rules never apply to root itself. Unreadable directories
// are skipped.
func (w *Walker) Collect(root string) []string {
	var files []string
	root = filepath.Clean(root)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("walk entry unreadable", "path", path, "error", err)
			return nil
		}
		if path != root {
			if w.Ignored(d.Name()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() && w.IsHome(path) {
				return fs.SkipDir
			}
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case d.Type().IsRegular():
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		default:
			return nil
		}

		resolved, err := w.realpath(path)
		if err != nil {
			resolved = path
			if abs, err := filepath.Abs(path); err == nil {
				resolved = abs
			}
		}
		files = append(files, resolved)

		if w.max > 0 && len(files) >= w.max {
			w.logger.Info("walk stopped at file cap", "root", root, "max_files", w.max)
			return fs.SkipAll
		}
		return nil
	})

	return files
}
