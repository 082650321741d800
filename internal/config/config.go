package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output formats accepted by output.format.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatTOML    = "toml"
	FormatMsgpack = "msgpack"
)

// Icons are the display glyphs for each severity class.
type Icons struct {
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Info    string `json:"info,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// Limits are the memory and rate ceilings enforced by the opener and debouncer.
type Limits struct {
	// MaxFiles caps the number of distinct paths ever submitted for opening,
	// and the length of a single walk result.
	MaxFiles int `json:"max_files,omitempty"`

	// MaxOpenDocs stops admissions while the host has this many documents loaded.
	MaxOpenDocs int `json:"max_open_docs,omitempty"`

	// FilesPerBatch is the number of admissions attempted per tick.
	FilesPerBatch int `json:"files_per_batch,omitempty"`

	// BatchDelayMS is the pause between ticks.
	BatchDelayMS int `json:"batch_delay_ms,omitempty"`

	// DebounceMS is the quiet window before a diagnostics flush.
	DebounceMS int `json:"debounce_ms,omitempty"`
}

// Output controls the summary file.
type Output struct {
	// Path of the summary file. Empty means <home_dir>/diagnostics.<ext>.
	Path string `json:"path,omitempty"`

	// Format is one of json, yaml, toml, msgpack.
	Format string `json:"format,omitempty"`

	// WriteEmpty makes a flush with no findings truncate the file to an empty
	// table instead of leaving the previous contents in place.
	WriteEmpty bool `json:"write_empty,omitempty"`
}

// Log controls the log file.
type Log struct {
	// Path of the log file. Empty means <home_dir>/lspwarm.log.
	Path  string `json:"path,omitempty"`
	Level string `json:"level,omitempty"`
}

// Server describes one language server the daemon can launch.
type Server struct {
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Filetypes   []string `json:"filetypes"`
	RootMarkers []string `json:"root_markers,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// Enabled turns the warm-up pipeline on or off. A pointer so a repo
	// config can switch off a globally enabled setup.
	Enabled *bool `json:"enabled,omitempty"`

	Icons  Icons  `json:"icons"`
	Limits Limits `json:"limits"`

	// IgnoredDirs are entry names skipped during a walk, together with
	// everything below them.
	IgnoredDirs []string `json:"ignored_dirs,omitempty"`

	// IgnoredSuffixes are name suffixes skipped during a walk.
	IgnoredSuffixes []string `json:"ignored_suffixes,omitempty"`

	// HomeDir holds lspwarm's own files. Documents under it are never
	// scanned, and walks skip it.
	HomeDir string `json:"home_dir,omitempty"`

	Output Output `json:"output"`
	Log    Log    `json:"log"`

	Servers []Server `json:"servers,omitempty"`

	// MetricsAddr serves /metrics when set (e.g. "127.0.0.1:9464").
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Enabled: &enabled,
		Icons: Icons{
			Error:   "E",
			Warning: "W",
			Info:    "I",
			Hint:    "H",
		},
		Limits: Limits{
			MaxFiles:      2000,
			MaxOpenDocs:   300,
			FilesPerBatch: 10,
			BatchDelayMS:  100,
			DebounceMS:    2000,
		},
		IgnoredDirs: []string{
			".git", ".hg", ".svn", "node_modules", "vendor", ".cache",
			".idea", ".vscode", "dist", "build", "target", "__pycache__",
		},
		IgnoredSuffixes: []string{
			".log", ".lock", ".min.js", ".map", ".png", ".jpg", ".gif",
			".zip", ".tar", ".gz", ".so", ".o", ".a", ".exe", ".pdf",
		},
		HomeDir: "~/.lspwarm",
		Output:  Output{Format: FormatJSON},
		Log:     Log{Level: "info"},
		Servers: []Server{
			{
				Name:        "gopls",
				Command:     "gopls",
				Args:        []string{"serve"},
				Filetypes:   []string{"go", "gomod"},
				RootMarkers: []string{"go.mod", "go.work"},
			},
		},
	}
}

// IsEnabled reports whether the pipeline is switched on. Unset means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ResolvedHomeDir returns HomeDir with a leading ~ expanded and made absolute.
func (c *Config) ResolvedHomeDir() string {
	return ExpandHome(c.HomeDir)
}

// OutputPath returns the summary file path, defaulting under the home dir.
func (c *Config) OutputPath() string {
	if c.Output.Path != "" {
		return ExpandHome(c.Output.Path)
	}
	format := c.Output.Format
	if format == "" {
		format = FormatJSON
	}
	return filepath.Join(c.ResolvedHomeDir(), "diagnostics."+format)
}

// LogPath returns the log file path, defaulting under the home dir.
func (c *Config) LogPath() string {
	if c.Log.Path != "" {
		return ExpandHome(c.Log.Path)
	}
	return filepath.Join(c.ResolvedHomeDir(), "lspwarm.log")
}

// ServerFor returns the first configured server that handles filetype.
func (c *Config) ServerFor(filetype string) (Server, bool) {
	for _, s := range c.Servers {
		for _, ft := range s.Filetypes {
			if ft == filetype {
				return s, true
			}
		}
	}
	return Server{}, false
}

// Validate checks limits and enumerations after merging.
func (c *Config) Validate() error {
	if c.Limits.MaxFiles <= 0 {
		return fmt.Errorf("limits.max_files must be positive, got %d", c.Limits.MaxFiles)
	}
	if c.Limits.MaxOpenDocs <= 0 {
		return fmt.Errorf("limits.max_open_docs must be positive, got %d", c.Limits.MaxOpenDocs)
	}
	if c.Limits.FilesPerBatch <= 0 {
		return fmt.Errorf("limits.files_per_batch must be positive, got %d", c.Limits.FilesPerBatch)
	}
	if c.Limits.BatchDelayMS < 0 || c.Limits.DebounceMS < 0 {
		return errors.New("limits delays must not be negative")
	}
	switch c.Output.Format {
	case "", FormatJSON, FormatYAML, FormatTOML, FormatMsgpack:
	default:
		return fmt.Errorf("output.format %q is not one of json, yaml, toml, msgpack", c.Output.Format)
	}
	for _, s := range c.Servers {
		if s.Name == "" || s.Command == "" {
			return fmt.Errorf("server entries need a name and a command")
		}
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lspwarm.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.lspwarm) and repo (.lspwarm) directories.
// Repo config is found by walking upward from startDir to find the nearest .lspwarm/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .lspwarm/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".lspwarm", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// servers are overlaid by name.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Enabled = base.Enabled
	if overlay.Enabled != nil {
		result.Enabled = overlay.Enabled
	}

	result.Icons = Icons{
		Error:   pickString(overlay.Icons.Error, base.Icons.Error),
		Warning: pickString(overlay.Icons.Warning, base.Icons.Warning),
		Info:    pickString(overlay.Icons.Info, base.Icons.Info),
		Hint:    pickString(overlay.Icons.Hint, base.Icons.Hint),
	}

	result.Limits = Limits{
		MaxFiles:      pickInt(overlay.Limits.MaxFiles, base.Limits.MaxFiles),
		MaxOpenDocs:   pickInt(overlay.Limits.MaxOpenDocs, base.Limits.MaxOpenDocs),
		FilesPerBatch: pickInt(overlay.Limits.FilesPerBatch, base.Limits.FilesPerBatch),
		BatchDelayMS:  pickInt(overlay.Limits.BatchDelayMS, base.Limits.BatchDelayMS),
		DebounceMS:    pickInt(overlay.Limits.DebounceMS, base.Limits.DebounceMS),
	}

	result.HomeDir = pickString(overlay.HomeDir, base.HomeDir)
	result.MetricsAddr = pickString(overlay.MetricsAddr, base.MetricsAddr)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Output = Output{
		Path:   pickString(overlay.Output.Path, base.Output.Path),
		Format: pickString(overlay.Output.Format, base.Output.Format),
		// Booleans: overlay wins if true, else base
		WriteEmpty: base.Output.WriteEmpty || overlay.Output.WriteEmpty,
	}
	result.Log = Log{
		Path:  pickString(overlay.Log.Path, base.Log.Path),
		Level: pickString(overlay.Log.Level, base.Log.Level),
	}

	result.IgnoredDirs = mergeStringSlice(base.IgnoredDirs, overlay.IgnoredDirs)
	result.IgnoredSuffixes = mergeStringSlice(base.IgnoredSuffixes, overlay.IgnoredSuffixes)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.Servers = mergeServers(base.Servers, overlay.Servers)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeServers keeps base order, replacing entries whose name the overlay
// redefines and appending new ones.
func mergeServers(base, overlay []Server) []Server {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	result := make([]Server, 0, len(base)+len(overlay))
	index := make(map[string]int, len(base))
	for _, s := range base {
		index[s.Name] = len(result)
		result = append(result, s)
	}
	for _, s := range overlay {
		if i, ok := index[s.Name]; ok {
			result[i] = s
			continue
		}
		index[s.Name] = len(result)
		result = append(result, s)
	}
	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
