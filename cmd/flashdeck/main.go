// Package main is the flashdeck command: it serves the HTTP API and runs
// the operational tasks around it (migrations, seeding, sync, tokens).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/phrazzld/flashdeck/internal/config"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "flashdeck: %v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
}

// timeNow is the wall clock used by one-shot commands.
var timeNow = func() time.Time { return domain.SystemClock{}.Now() }

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "flashdeck",
		Short:         "Spaced-repetition flashcard service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override server.log_level")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newSyncCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// load reads the configuration and installs the default logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel, Output: os.Stderr})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Debug("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("sync_enabled", cfg.Sync.Enabled()))
	return cfg, log, nil
}
