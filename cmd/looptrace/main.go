package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/looptrace/model"
)

var (
	logLevel   string
	configPath string
	noColor    bool

	cfg model.Config
)

var rootCmd = &cobra.Command{
	Use:   "looptrace",
	Short: "Step through a simulated JavaScript event loop",
	Long: `looptrace narrates a JavaScript-flavored program as a sequence of event loop
snapshots, checks scenarios against those traces and replays stored traces.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'\n", logLevel)
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)

		explicit := cmd.Flags().Changed("config")
		cfg, err = model.LoadConfig(configPath, explicit)
		if err != nil {
			return err
		}
		if noColor || !cfg.Output.Color {
			color.Disable()
		}
		log.Debug().Str("config", configPath).Interface("engine", cfg.Engine).Msg("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigFile, "Configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
