package filetype

import (
	"errors"
	"testing"
)

type fakeDocs struct {
	content  map[string]string
	existing map[string]bool
	loads    int
	released []string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{content: map[string]string{}, existing: map[string]bool{}}
}

func (f *fakeDocs) Exists(path string) bool { return f.existing[path] }

func (f *fakeDocs) Load(path string) (string, error) {
	f.loads++
	text, ok := f.content[path]
	if !ok {
		return "", errors.New("no such file")
	}
	return text, nil
}

func (f *fakeDocs) Release(path string) { f.released = append(f.released, path) }

func TestClassify_ExtensionTable(t *testing.T) {
	docs := newFakeDocs()
	c := New(docs, nil, nil)

	tests := map[string]string{
		"/proj/main.go":     "go",
		"/proj/x.PY":        "python",
		"/proj/app.tsx":     "typescriptreact",
		"/proj/conf.yml":    "yaml",
		"/proj/lib/util.rs": "rust",
	}
	for path, want := range tests {
		if got := c.Classify(path); got != want {
			t.Errorf("Classify(%q) = %q, want %q", path, got, want)
		}
	}
	if docs.loads != 0 {
		t.Errorf("extension table hits should not load documents, loads = %d", docs.loads)
	}
}

func TestClassify_NamePatterns(t *testing.T) {
	c := New(newFakeDocs(), nil, nil)

	tests := map[string]string{
		"/proj/Makefile":        "make",
		"/proj/go.mod":          "gomod",
		"/proj/Dockerfile":      "dockerfile",
		"/proj/Dockerfile.prod": "dockerfile",
		"/proj/rules.mk":        "make",
	}
	for path, want := range tests {
		if got := c.Classify(path); got != want {
			t.Errorf("Classify(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestClassify_ExactNameNotCached(t *testing.T) {
	docs := newFakeDocs()
	docs.content["/proj/notes.mod"] = "plain text"
	c := New(docs, nil, nil)

	if got := c.Classify("/proj/go.mod"); got != "gomod" {
		t.Fatalf("Classify(go.mod) = %q", got)
	}
	if got := c.Classify("/proj/notes.mod"); got != "" {
		t.Errorf("Classify(notes.mod) = %q, want none (go.mod must not poison .mod)", got)
	}
}

func TestClassify_ContentDetectionReleasesCreatedDocument(t *testing.T) {
	docs := newFakeDocs()
	docs.content["/proj/bin/run"] = "#!/usr/bin/env python3\nprint(1)\n"
	c := New(docs, nil, nil)

	if got := c.Classify("/proj/bin/run"); got != "python" {
		t.Fatalf("Classify() = %q, want python", got)
	}
	if len(docs.released) != 1 || docs.released[0] != "/proj/bin/run" {
		t.Errorf("released = %v, want the probed document", docs.released)
	}
}

func TestClassify_ContentDetectionKeepsExistingDocument(t *testing.T) {
	docs := newFakeDocs()
	docs.content["/proj/tool"] = "#!/bin/bash\n"
	docs.existing["/proj/tool"] = true
	c := New(docs, nil, nil)

	if got := c.Classify("/proj/tool"); got != "sh" {
		t.Fatalf("Classify() = %q, want sh", got)
	}
	if len(docs.released) != 0 {
		t.Errorf("released = %v, want none for a pre-existing document", docs.released)
	}
}

func TestClassify_CachesByExtension(t *testing.T) {
	docs := newFakeDocs()
	docs.content["/proj/a.cgi"] = "#!/usr/bin/perl\n"
	docs.content["/proj/b.cgi"] = "#!/bin/sh\n"
	c := New(docs, nil, nil)

	if got := c.Classify("/proj/a.cgi"); got != "perl" {
		t.Fatalf("Classify(a.cgi) = %q, want perl", got)
	}
	// Same extension reuses the first resolution without loading.
	if got := c.Classify("/proj/b.cgi"); got != "perl" {
		t.Errorf("Classify(b.cgi) = %q, want cached perl", got)
	}
	if docs.loads != 1 {
		t.Errorf("loads = %d, want 1", docs.loads)
	}
}

func TestClassify_UnknownCachedAndExtensionlessNot(t *testing.T) {
	docs := newFakeDocs()
	docs.content["/proj/data.bin"] = "\x00\x01"
	docs.content["/proj/LICENSE"] = "MIT"
	docs.content["/proj/run"] = "#!/bin/sh\n"
	c := New(docs, nil, nil)

	if got := c.Classify("/proj/data.bin"); got != "" {
		t.Errorf("Classify(data.bin) = %q, want none", got)
	}
	c.Classify("/proj/other.bin")
	if docs.loads != 1 {
		t.Errorf("unknown extension should be cached, loads = %d", docs.loads)
	}

	if got := c.Classify("/proj/LICENSE"); got != "" {
		t.Errorf("Classify(LICENSE) = %q, want none", got)
	}
	if got := c.Classify("/proj/run"); got != "sh" {
		t.Errorf("Classify(run) = %q, want sh (extensionless files are not cached)", got)
	}
	if c.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", c.CacheSize())
	}
}

func TestClassify_LoadFailureIsNone(t *testing.T) {
	c := New(newFakeDocs(), nil, nil)

	if got := c.Classify("/proj/missing.xyz"); got != "" {
		t.Errorf("Classify() = %q, want none", got)
	}
}

func TestDefaultDetector_MatchContent(t *testing.T) {
	d := DefaultDetector{}
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"env shebang", "#!/usr/bin/env -S node --harmony\n", "javascript"},
		{"versioned", "#!/usr/bin/python3.12\n", "python"},
		{"php", "<?php echo 1;", "php"},
		{"xml", "<?xml version=\"1.0\"?>", "xml"},
		{"vim modeline", "-- config\n-- vim: set ft=lua:\n", "lua"},
		{"emacs modeline", "# -*- mode: Ruby; coding: utf-8 -*-\n", "ruby"},
		{"nothing", "hello world", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.MatchContent("f", tt.content); got != tt.want {
				t.Errorf("MatchContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
