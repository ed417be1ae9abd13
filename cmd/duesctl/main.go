package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/azzil/mensalidades/be/internal/app"
	"github.com/azzil/mensalidades/be/internal/config"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
)

const (
	programName = "duesctl"
)

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

// commonRun configures logging. Log lines go to stderr so command output
// stays clean.
func commonRun(cfg *config.Config) {
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	logger.SetOutput(os.Stderr)
	logger.Initialize(level)
}

// withApp builds the ledger from the configured storage, runs fn and flushes
// whatever fn changed.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	commonRun(cfg)
	a, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	runErr := fn(cmd.Context(), a)
	if err := a.Close(context.Background()); err != nil && runErr == nil {
		runErr = fmt.Errorf("save: %w", err)
	}
	return runErr
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Inspect and edit the membership dues ledger",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(obligationsCommand())
	rootCmd.AddCommand(summaryCommand())
	rootCmd.AddCommand(reportCommand())
	rootCmd.AddCommand(editCommand())
	rootCmd.AddCommand(chargeCommand())
	rootCmd.AddCommand(linkCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
