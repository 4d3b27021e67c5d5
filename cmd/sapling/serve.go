package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aretw0/sapling"
	"github.com/aretw0/sapling/internal/cli"
	"github.com/aretw0/sapling/internal/presentation/tui"
	httpAdapter "github.com/aretw0/sapling/pkg/adapters/http"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the sapling engine behind a JSON API, with an SSE event stream
and Prometheus metrics. When Redis is configured, the session model is
restored on startup and shared with the other replicas.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig(cmd)
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing sapling: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		if tree, err := rt.Engine.Restore(ctx); err == nil {
			logger.Info("Restored session model", "session", rt.Engine.SessionID(), "nodes", tree.Count())
		} else if !errors.Is(err, domain.ErrModelNotFound) {
			logger.Warn("Failed to restore session model", "err", err)
		}

		handler := httpAdapter.NewHandler(rt.Engine,
			httpAdapter.WithBroker(rt.Broker),
			httpAdapter.WithGatherer(rt.Registry),
			httpAdapter.WithLogger(logger),
		)
		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: handler,
		}

		tui.PrintBanner(os.Stderr, strings.TrimSpace(sapling.Version))
		fmt.Fprintf(os.Stderr, "Starting Sapling Server on %s\n", srv.Addr)

		if err := httpAdapter.Serve(ctx, srv, logger); err != nil {
			fmt.Printf("Server error: %v\n", err)
			rt.Close()
			os.Exit(1)
		}
		if sig := ctx.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "\nShutdown on %v\n", sig)
		}
		fmt.Fprintln(os.Stderr, "Sapling Server stopped gracefully")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default: server.addr from the config)")
}
