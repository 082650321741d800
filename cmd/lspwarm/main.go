package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/logging"
	"github.com/hpungsan/lspwarm/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "scan": true, "summary": true,
	"history": true, "show": true, "purge": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
  | _ _ _      _  _ _ _
  |_\(_|/\/\/(_|| | | |
      |

  Incremental workspace warm-up for language servers

  Usage: lspwarm <command> [options]
         lspwarm --help

  MCP server mode requires piped input.`)
}

// env is what every command needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadEnv reads the global and repo config and opens the log file.
func loadEnv() (*env, io.Closer, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg, err := config.LoadWithRepo(filepath.Join(homeDir, ".lspwarm"), cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closer := logging.Open(logging.Config{
		Path:  cfg.LogPath(),
		Level: logging.ParseLevel(cfg.Log.Level),
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "lspwarm: logging disabled: %v\n", err)
		},
	})

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	return &env{cfg: cfg, logger: logger}, closer, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before config and DB (neither is needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	e, closer, err := loadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	database, err := db.Init(e.cfg.ResolvedHomeDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, e.cfg)

	if isCLIMode() {
		app := newCLIApp(database, e)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'lspwarm --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). No daemon runs here, so diagnostics_flush
	// reports an error; `lspwarm run --mcp` serves the same tools with one.
	if err := mcp.Run(database, e.cfg, mcp.Options{Version: Version, Logger: e.logger}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
