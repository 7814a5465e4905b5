// Package commands holds the hbnb command line.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hbnb/src/config"
	"hbnb/src/db"
	"hbnb/src/logger"
	"hbnb/src/types"
)

var (
	cfg  config.Config
	lggr logger.Logger

	storageType string
	logLevel    string
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hbnb",
		Short:        "Places API of the hbnb object store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if storageType != "" {
				loaded.StorageType = storageType
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded

			lggr, err = logger.New(cfg.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if lggr != nil {
				_ = lggr.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&storageType, "storage", "", "storage engine: file, sqlite or elastic (default $HBNB_TYPE_STORAGE)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default $HBNB_LOG_LEVEL)")

	root.AddCommand(serveCmd(), seedCmd())
	return root
}

func openEngine(ctx context.Context) (types.Engine, error) {
	engine, err := db.Open(ctx, cfg, lggr)
	if err != nil {
		return nil, err
	}
	lggr.Infow("Storage opened", "type", cfg.StorageType)
	return engine, nil
}
