package commands

import (
	"context"
	"log/slog"
	"qthlookup/lib/osutil"
	"qthlookup/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	appLabel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "qthlookup",
	Short:         "qthlookup looks up amateur radio callsigns on hamqth.com.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		err := telemetry.SetupFromEnv(cmd.Context(), "qthlookup")
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigName, "Path to the configuration file.")
	rootCmd.PersistentFlags().StringVar(&appLabel, "app", "", "Application label sent to hamqth, also selects the credentials file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)

	shutdownErr := telemetry.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	if err != nil {
		osutil.Fatal("command failed", err)
	}
}
