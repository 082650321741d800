package ops

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/filetype"
	"github.com/hpungsan/lspwarm/internal/host"
	"github.com/hpungsan/lspwarm/internal/walker"
)

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	Root   string // required, directory to walk
	Limit  int    // files returned, default: 200, max: 5000
	Offset int    // default: 0
}

// ScanFile is one walked file with its detected filetype.
type ScanFile struct {
	Path     string `json:"path"`
	Filetype string `json:"filetype,omitempty"`
	Server   string `json:"server,omitempty"`
}

// ScanOutput contains the result of the Scan operation.
type ScanOutput struct {
	Root       string         `json:"root"`
	Walked     int            `json:"walked"`
	Handled    int            `json:"handled"`
	Truncated  bool           `json:"truncated"`
	Filetypes  map[string]int `json:"filetypes"`
	Files      []ScanFile     `json:"files"`
	Pagination Pagination     `json:"pagination"`
}

// Scan previews what a run from root would open: it walks the tree with the
// configured ignore rules and ceilings, classifies every file and reports
// which configured server would receive it. No server is started.
func Scan(ctx context.Context, cfg *config.Config, input ScanInput, logger *slog.Logger) (*ScanOutput, error) {
	root := strings.TrimSpace(input.Root)
	if root == "" {
		return nil, errors.NewInvalidRequest("root is required")
	}
	abs, err := filepath.Abs(config.ExpandHome(root))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(abs)
		}
		return nil, errors.NewIOFailure("stat", abs, err)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequest("root must be a directory")
	}

	w := walker.New(walker.Options{
		IgnoredDirs:     cfg.IgnoredDirs,
		IgnoredSuffixes: cfg.IgnoredSuffixes,
		HomeDir:         cfg.ResolvedHomeDir(),
		MaxFiles:        cfg.Limits.MaxFiles,
	}, logger)
	classifier := filetype.New(host.NewStore(), nil, logger)

	paths := w.Collect(abs)

	limit := clamp(input.Limit, DefaultScanLimit, MaxScanLimit)
	offset := max(input.Offset, 0)

	out := &ScanOutput{
		Root:      abs,
		Walked:    len(paths),
		Truncated: cfg.Limits.MaxFiles > 0 && len(paths) >= cfg.Limits.MaxFiles,
		Filetypes: make(map[string]int),
		Files:     []ScanFile{},
	}

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("scan")
		}
		ft := classifier.Classify(p)
		f := ScanFile{Path: p, Filetype: ft}
		if ft != "" {
			out.Filetypes[ft]++
			if srv, ok := cfg.ServerFor(ft); ok {
				f.Server = srv.Name
				out.Handled++
			}
		}
		if i >= offset && len(out.Files) < limit {
			out.Files = append(out.Files, f)
		}
	}

	out.Pagination = Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(out.Files) < len(paths),
		Total:   len(paths),
	}
	return out, nil
}
