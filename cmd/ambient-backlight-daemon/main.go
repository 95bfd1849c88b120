// Package main provides the entry point for the ambient backlight daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/ambient-backlight-daemon/internal/config"
)

var (
	configPath string
	logLevel   string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "ambient-backlight-daemon",
		Short: "Adaptive backlight and night mode daemon driven by an ambient light sensor",
		Long: `ambient-backlight-daemon samples an ambient light sensor, ramps the display
backlight towards a brightness derived from the averaged lux value and drives
a GPIO pin that signals night mode to the rest of the system.

The log level flag takes DEBUG, INFO, WARN or ERROR. Given without a value
(-l) it selects DEBUG; a value must be attached (-l=WARN).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Path to the YAML configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log", "l", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().Lookup("log").NoOptDefVal = "DEBUG"
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// parseLevel maps the log level flag onto a zerolog level, ignoring case.
func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO":
		return zerolog.InfoLevel, nil
	case "WARN", "WARNING":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func setupLogging(level zerolog.Level, verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	zerolog.SetGlobalLevel(level)
}

func run() error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	setupLogging(level, verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info().Str("config", configPath).Msg("Starting ambient-backlight-daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	if err := d.run(ctx); err != nil {
		return err
	}

	log.Info().Msg("Shutting down...")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Daemon exited with error")
	}
}
