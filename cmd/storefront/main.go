package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zc.Build()
}

// withApp loads config, builds the app for one command and tears it down after.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("Failed to start", zap.Error(err))
			return err
		}
		defer a.Close()

		err = run(cmd, args, a)
		// 快照寫入失敗只是警告，記憶體中的變更仍然有效
		if errors.Is(err, cart.ErrPersistenceFailure) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			return nil
		}
		return err
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse the catalog, manage the cart and check out from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newProductsCmd(),
		newCategoriesCmd(),
		newProductCmd(),
		newCartCmd(),
		newCheckoutCmd(),
	)
	return root
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}
