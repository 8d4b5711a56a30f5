// Package cli provides the command-line interface for the index engine.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cnvix/internal/config"
	"cnvix/internal/logging"
	"cnvix/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{
		Config: config.Default(),
		Logger: zerolog.Nop(),
	}

	rootCmd := &cobra.Command{
		Use:   "cnvix",
		Short: "CNVIX - model-free implied volatility index",
		Long: `cnvix computes a daily 30 trading-day implied volatility index from
listed option quotes by variance-swap replication, aligns it against
forward realized volatility and compares the two series.

Use 'cnvix <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cnvix)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addIndexCommands(rootCmd, app)

	return rootCmd
}

// init loads configuration and builds the logger before any command runs.
func (a *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := cfg.LogConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	a.Logger.Debug().
		Str("config_dir", cfg.Dir).
		Str("config_file", cfg.File).
		Msg("Configuration loaded")
	return nil
}

// openStore opens the run database at path, falling back to the configured one.
func (a *App) openStore(path string) (store.SeriesStore, error) {
	if path == "" {
		path = a.Config.Output.DatabasePath
	}
	if path == "" {
		return nil, errNoDatabase
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store opened")
	return s, nil
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func addIndexCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newComputeCmd(app))
	rootCmd.AddCommand(newAlignCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("cnvix v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.TemplatePath(app.Config.Dir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"dir": app.Config.Dir, "file": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Risk-free rate:   %g\n", cfg.Engine.RiskFreeRate)
	output.Printf("  Days per year:    %g\n", cfg.Engine.TradingDaysPerYear)
	output.Printf("  Target days:      %d\n", cfg.Engine.TargetTradingDays)
	output.Printf("  Workers:          %d\n", cfg.Workers())
	output.Println()

	output.Bold("Files")
	output.Printf("  Input:            %s\n", orNone(cfg.Input.Path))
	output.Printf("  Index output:     %s\n", cfg.Output.IndexPath)
	output.Printf("  Aligned output:   %s\n", cfg.Output.AlignedPath)
	output.Printf("  Database:         %s\n", orNone(cfg.Output.DatabasePath))
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Log.Level)
	output.Printf("  Console:          %v\n", cfg.Log.Console)
	if cfg.Log.File {
		output.Printf("  File:             %s\n", cfg.Log.FilePath)
	}
	if cfg.File != "" {
		output.Println()
		output.Dim("Loaded from %s", cfg.File)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
