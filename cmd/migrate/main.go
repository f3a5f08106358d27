// Command migrate provisions and checks the messaging schema.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/bootstrap"
	"github.com/capitalize-ai/care-messaging/internal/config"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		driver  string
		timeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the messaging schema",
		Long:         "Creates or verifies the conversation tables, indices, and summary view for the configured store.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "store driver (postgres|sqlite), overrides STORE_DRIVER")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create any missing schema objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), driver, timeout, func(ctx context.Context, st store.Store, log *logger.Logger) error {
				if err := st.EnsureSchema(ctx); err != nil {
					return err
				}
				log.Info("messaging schema is up to date")
				return nil
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Fail if any schema object is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), driver, timeout, func(ctx context.Context, st store.Store, log *logger.Logger) error {
				if err := st.CheckSchema(ctx); err != nil {
					return err
				}
				log.Info("messaging schema is complete", zap.Strings("objects", store.SchemaObjects))
				return nil
			})
		},
	})

	return rootCmd
}

func withStore(ctx context.Context, driver string, timeout time.Duration, fn func(context.Context, store.Store, *logger.Logger) error) error {
	cfg := config.Load()
	if driver != "" {
		cfg.StoreDriver = driver
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if err := fn(ctx, st, log); err != nil {
		log.Error("migration failed", zap.Error(err))
		return err
	}
	return nil
}
