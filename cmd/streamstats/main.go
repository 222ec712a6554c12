package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"streamstats-go/cmd/streamstats/commands"
	"streamstats-go/pkg/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "streamstats",
		Short: "Single-pass statistics for numeric series",
		Long: `Stream numeric series through a Welford accumulator and report
count, mean, population variance, extrema and autocorrelation up to a
configurable lag, reading each value exactly once.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			logger, err := config.SetupLogging(viper.GetBool("verbose"), viper.GetString("log-file"))
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			cmd.SetContext(commands.WithLogger(ctx, logger))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = commands.LoggerFrom(cmd.Context()).Sync()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
