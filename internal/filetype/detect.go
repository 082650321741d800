package filetype

import (
	"path/filepath"
	"strings"
)

var extensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".jsx":   "javascriptreact",
	".ts":    "typescript",
	".mts":   "typescript",
	".tsx":   "typescriptreact",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".java":  "java",
	".kt":    "kotlin",
	".scala": "scala",
	".rb":    "ruby",
	".lua":   "lua",
	".sh":    "sh",
	".bash":  "sh",
	".zsh":   "zsh",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".php":   "php",
	".cs":    "cs",
	".swift": "swift",
	".sql":   "sql",
	".vim":   "vim",
	".ex":    "elixir",
	".exs":   "elixir",
	".erl":   "erlang",
	".hs":    "haskell",
	".ml":    "ocaml",
	".zig":   "zig",
	".dart":  "dart",
	".proto": "proto",
	".tf":    "terraform",
	".nix":   "nix",
	".r":     "r",
	".pl":    "perl",
	".xml":   "xml",
}

var exactNames = map[string]string{
	"Makefile":       "make",
	"makefile":       "make",
	"GNUmakefile":    "make",
	"Dockerfile":     "dockerfile",
	"go.mod":         "gomod",
	"go.sum":         "gosum",
	"go.work":        "gowork",
	"CMakeLists.txt": "cmake",
	"Gemfile":        "ruby",
	"Rakefile":       "ruby",
	"Jenkinsfile":    "groovy",
	".bashrc":        "sh",
	".bash_profile":  "sh",
	".profile":       "sh",
	".zshrc":         "zsh",
	".vimrc":         "vim",
}

var namePatterns = []struct {
	pattern  string
	filetype string
}{
	{"Dockerfile.*", "dockerfile"},
	{"*.dockerfile", "dockerfile"},
	{"*.mk", "make"},
	{".env*", "sh"},
	{"*.gemspec", "ruby"},
}

var interpreters = map[string]string{
	"sh":      "sh",
	"bash":    "sh",
	"dash":    "sh",
	"zsh":     "zsh",
	"python":  "python",
	"python2": "python",
	"python3": "python",
	"node":    "javascript",
	"deno":    "typescript",
	"ruby":    "ruby",
	"perl":    "perl",
	"php":     "php",
	"lua":     "lua",
}

// DefaultDetector matches well-known file names, shebangs, XML/PHP
// prologues and vim/emacs modelines.
type DefaultDetector struct{}

// MatchName implements Detector.
func (DefaultDetector) MatchName(name string) (string, bool) {
	if ft, ok := exactNames[name]; ok {
		return ft, true
	}
	for _, p := range namePatterns {
		if ok, _ := filepath.Match(p.pattern, name); ok {
			return p.filetype, false
		}
	}
	return "", false
}

// MatchContent implements Detector.
func (DefaultDetector) MatchContent(_ string, content string) string {
	if content == "" {
		return ""
	}
	lines := strings.SplitN(content, "\n", 6)
	first := strings.TrimSpace(lines[0])

	switch {
	case strings.HasPrefix(first, "#!"):
		if ft := fromShebang(first); ft != "" {
			return ft
		}
	case strings.HasPrefix(first, "<?php"):
		return "php"
	case strings.HasPrefix(first, "<?xml"):
		return "xml"
	}

	head := lines
	if len(head) > 5 {
		head = head[:5]
	}
	for _, line := range head {
		if ft := fromModeline(line); ft != "" {
			return ft
		}
	}
	return ""
}

// fromShebang handles "#!/bin/sh" and "#!/usr/bin/env -S python3 -u".
func fromShebang(line string) string {
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return ""
	}
	prog := filepath.Base(fields[0])
	if prog == "env" {
		prog = ""
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			prog = filepath.Base(f)
			break
		}
	}
	if ft, ok := interpreters[prog]; ok {
		return ft
	}
	// python3.12, ruby3.2
	if i := strings.IndexAny(prog, "0123456789"); i > 0 {
		if ft, ok := interpreters[strings.TrimRight(prog[:i], ".-")]; ok {
			return ft
		}
	}
	return ""
}

// fromModeline handles "vim: set ft=lua:", "vim: filetype=lua" and
// "-*- mode: python -*-".
func fromModeline(line string) string {
	if i := strings.Index(line, "vim:"); i >= 0 {
		rest := line[i+len("vim:"):]
		for _, f := range strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == ':' }) {
			for _, key := range []string{"ft=", "filetype="} {
				if strings.HasPrefix(f, key) {
					return strings.TrimSpace(strings.TrimPrefix(f, key))
				}
			}
		}
	}
	if i := strings.Index(line, "-*-"); i >= 0 {
		rest := line[i+3:]
		if j := strings.Index(rest, "-*-"); j >= 0 {
			rest = rest[:j]
		}
		for _, part := range strings.Split(rest, ";") {
			k, v, ok := strings.Cut(part, ":")
			if ok && strings.EqualFold(strings.TrimSpace(k), "mode") {
				return strings.ToLower(strings.TrimSpace(v))
			}
		}
	}
	return ""
}
