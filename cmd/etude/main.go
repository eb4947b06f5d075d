package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/joho/godotenv/autoload"

	"etude/cmd/etude/practice"
	"etude/internal/client"
	"etude/internal/config"
	"etude/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	dataDir    string
	timeout    time.Duration

	// Logger for non-interactive subcommands
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "etude",
	Short: "etude - practice sheet music fragment by fragment",
	Long: `etude is a terminal application for deliberate sheet music practice.

A data directory holds per-song folders of MusicXML documents split into
single measures and short ranges. etude shows one fragment at a time,
records how the attempt went (easy / medium / hard / snooze) and uses the
history to decide what to play next.

Run without arguments to start the interactive practice interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "etude" && cmd.CalledAs() == "etude" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the practice interface
		cfg, ws, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logging.Initialize(ws); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		defer logging.CloseAll()
		return practice.Run(cfg)
	},
}

// loadConfig resolves the workspace and reads .etude/config.yaml from it.
// Flag overrides apply on top of file and environment values.
func loadConfig() (*config.Config, string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve workspace: %w", err)
		}
		ws = cwd
	}
	path := configPath
	if path == "" {
		path = filepath.Join(ws, ".etude", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if dataDir != "" {
		cfg.Library.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, ws, nil
}

// resolvePath anchors a config-relative path at the workspace.
func resolvePath(ws, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws, p)
}

// newAPIClient builds the HTTP client the CLI commands share.
func newAPIClient(cfg *config.Config) *client.Client {
	return client.NewWithConfig(client.Config{
		BaseURL:    cfg.Client.BaseURL,
		Timeout:    cfg.GetClientTimeout(),
		MaxRetries: cfg.Client.MaxRetries,
	})
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .etude/config.yaml in the workspace)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Song data directory (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	// Serve flags
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (overrides config)")
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable the data-directory watcher")

	// Sessions flags
	sessionsCmd.Flags().BoolVar(&clearSessions, "clear", false, "Delete the whole practice history")
	sessionsCmd.Flags().IntVar(&sessionLimit, "limit", 0, "Show at most this many sessions (0 = all)")

	// Add commands to root
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(songsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
