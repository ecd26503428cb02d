package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
)

// initializeLogging loads the configuration and sets up logging before any
// command runs. Console output is limited to errors unless --verbose is set.
func initializeLogging(cmd *cobra.Command, _ []string) error {
	var flags *pflag.FlagSet
	if cmd != nil {
		flags = cmd.Flags()
	}

	cfg, err := config.LoadWithFlags(cfgFile, flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	logCfg, err := loggingConfig(cfg, false)
	if err != nil {
		return err
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cfg.File() != "" {
		logger.Debug("configuration loaded", "file", cfg.File())
	}
	return nil
}

// initTUILogging re-initializes logging for the progress screen: nothing
// is written to the console and recent records are kept in memory.
func initTUILogging() error {
	logCfg, err := loggingConfig(appConfig, true)
	if err != nil {
		return err
	}
	return logging.Init(logCfg)
}

func loggingConfig(cfg *config.Config, tui bool) (logging.Config, error) {
	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return logging.Config{}, err
	}

	switch {
	case verbose:
		logCfg.ConsoleLevel = "debug"
		logCfg.Level = "debug"
	case quiet:
		logCfg.ConsoleLevel = ""
	default:
		logCfg.ConsoleLevel = "error"
	}
	logCfg.TUIMode = tui
	return logCfg, nil
}
