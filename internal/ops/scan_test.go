package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/logging"
)

func makeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return root
}

func TestScan_ClassifiesAndMatchesServers(t *testing.T) {
	_, cfg := testSetup(t)
	root := makeTree(t, map[string]string{
		"main.go":             "package main\n",
		"go.mod":              "module x\n",
		"README.md":           "# x\n",
		"run":                 "#!/usr/bin/env python3\nprint(1)\n",
		"node_modules/dep.go": "package dep\n",
		"debug.log":           "noise\n",
	})

	out, err := Scan(context.Background(), cfg, ScanInput{Root: root}, logging.Discard())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if out.Walked != 4 {
		t.Errorf("Walked = %d, want 4 (ignored dir and suffix skipped)", out.Walked)
	}
	if out.Handled != 2 {
		t.Errorf("Handled = %d, want 2 (go and gomod go to gopls)", out.Handled)
	}
	if out.Filetypes["go"] != 1 || out.Filetypes["gomod"] != 1 || out.Filetypes["python"] != 1 {
		t.Errorf("Filetypes = %v", out.Filetypes)
	}

	servers := map[string]string{}
	for _, f := range out.Files {
		servers[filepath.Base(f.Path)] = f.Server
	}
	if servers["main.go"] != "gopls" {
		t.Errorf("main.go server = %q, want gopls", servers["main.go"])
	}
	if servers["README.md"] != "" {
		t.Errorf("README.md server = %q, want none", servers["README.md"])
	}
}

func TestScan_Pagination(t *testing.T) {
	_, cfg := testSetup(t)
	root := makeTree(t, map[string]string{"a.go": "", "b.go": "", "c.go": ""})

	out, err := Scan(context.Background(), cfg, ScanInput{Root: root, Limit: 2}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(out.Files) != 2 || !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("first page = %+v", out.Pagination)
	}

	out, err = Scan(context.Background(), cfg, ScanInput{Root: root, Limit: 2, Offset: 2}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(out.Files) != 1 || out.Pagination.HasMore {
		t.Errorf("second page = %+v", out.Pagination)
	}
	if out.Filetypes["go"] != 3 {
		t.Errorf("Filetypes counted over the whole walk, got %v", out.Filetypes)
	}
}

func TestScan_MaxFilesTruncates(t *testing.T) {
	_, cfg := testSetup(t)
	cfg.Limits.MaxFiles = 2
	root := makeTree(t, map[string]string{"a.go": "", "b.go": "", "c.go": ""})

	out, err := Scan(context.Background(), cfg, ScanInput{Root: root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if out.Walked != 2 || !out.Truncated {
		t.Errorf("Walked = %d, Truncated = %v; want 2, true", out.Walked, out.Truncated)
	}
}

func TestScan_InvalidRoot(t *testing.T) {
	_, cfg := testSetup(t)
	file := filepath.Join(makeTree(t, map[string]string{"a.go": ""}), "a.go")

	tests := []struct {
		name string
		root string
		code errors.ErrorCode
	}{
		{"empty", "  ", errors.ErrInvalidRequest},
		{"missing", filepath.Join(t.TempDir(), "nope"), errors.ErrFileNotFound},
		{"file", file, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(context.Background(), cfg, ScanInput{Root: tt.root}, nil)
			if !errors.Is(err, tt.code) {
				t.Errorf("Scan error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestScan_Cancelled(t *testing.T) {
	_, cfg := testSetup(t)
	root := makeTree(t, map[string]string{"a.go": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, cfg, ScanInput{Root: root}, nil)
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("Scan error = %v, want CANCELLED", err)
	}
}
