package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nypl/cancel-request-consumer/internal/control"
	"github.com/nypl/cancel-request-consumer/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached state of each credential",
	Run:   runStatus,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate-token [token_name]",
	Short: "Drop a cached credential so the next batch fetches a new one",
	Args:  cobra.ExactArgs(1),
	Run:   runInvalidate,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(invalidateCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	cache, closeFn, err := control.NewTokenCache(*cfg)
	if err != nil {
		slog.Error("Failed to open token cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeFn()
	}()

	store := "memory"
	if cfg.Redis.URL != "" {
		store = "redis"
	}

	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TOKEN\tSTORE\tSTATE")

	for _, name := range []string{domain.TokenNamePlatform, domain.TokenNameSierra} {
		state := "absent"
		token, err := cache.Peek(ctx, name)
		switch {
		case err != nil:
			state = "error: " + err.Error()
		case token != "":
			state = "cached"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, store, state)
	}
	_ = w.Flush()
}

func runInvalidate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	cache, closeFn, err := control.NewTokenCache(*cfg)
	if err != nil {
		slog.Error("Failed to open token cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeFn()
	}()

	if err := cache.Invalidate(context.Background(), args[0]); err != nil {
		slog.Error("Failed to invalidate token", "token_name", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("Invalidated %s\n", args[0])
}
