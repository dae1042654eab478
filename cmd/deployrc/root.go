package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/config"
	"github.com/walteh/deployrc/pkg/deploy"
	"github.com/walteh/deployrc/pkg/log"
	"github.com/walteh/deployrc/pkg/operation"
	"github.com/walteh/deployrc/pkg/state"
	"github.com/walteh/deployrc/pkg/status"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	debugFlag  bool
	asyncFlag  bool
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: .deployrc or deployrc.* in the current directory)")
	cmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&asyncFlag, "async", false, "run target operations asynchronously so they can be interrupted")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
}

// resolveConfigPath returns the --config flag or the config found in the working directory
func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Errorf("getting working directory: %w", err)
	}
	return config.FindConfig(cwd)
}

// loadRootOpts loads the config and state and builds the workspace all commands share
func loadRootOpts(ctx context.Context, o *opts.RootOpts, ui *console) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(ctx, path)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	st, err := state.New(cfg.Root())
	if err != nil {
		return errors.Errorf("creating state: %w", err)
	}
	if err := st.Load(ctx); err != nil {
		return errors.Errorf("loading state: %w", err)
	}

	logger := log.NewWithZerolog(os.Stdout, *zerolog.Ctx(ctx))

	ws, err := deploy.New(deploy.Options{
		Root:          cfg.Root(),
		Ignore:        cfg.Ignore,
		Targets:       cfg.ConfiguredTargets(),
		State:         st,
		Operations:    operation.NewRunner(nil, asyncFlag),
		Output:        status.NewWriterOutput(os.Stdout),
		Notifier:      logger,
		NewAffordance: ui.NewAffordance,
		Confirmer:     ui,
	})
	if err != nil {
		return errors.Errorf("creating workspace: %w", err)
	}

	o.Config = cfg
	o.State = st
	o.Workspace = ws
	o.Logger = logger

	return nil
}
