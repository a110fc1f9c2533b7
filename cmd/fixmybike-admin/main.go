// Command fixmybike-admin runs maintenance tasks against the same stores
// the API uses.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/fixmybike-booking/internal/app"
	"github.com/iliyamo/fixmybike-booking/internal/config"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "fixmybike-admin",
		Short:         "FixMyBike maintenance commands",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			level, _ := cmd.Flags().GetString("log-level")
			_, err := logger.Setup(level, "")
			return err
		},
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(bootstrapOwnerCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open loads the configuration and wires the app.  The memory store makes
// little sense for one-shot commands, so a warning is printed.
func open(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	if cfg.UseMemoryStore {
		logger.Warn("USE_MEMORY_STORE is set; changes made by this command are discarded on exit")
	}
	return app.New(ctx, cfg)
}
