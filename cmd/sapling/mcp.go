package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/aretw0/sapling/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the sapling engine as an MCP Server, exposing load_model,
classify and get_tree as tools and the current tree as a resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig(cmd)
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Error initializing sapling: %v", err)
		}
		defer rt.Close()

		srv := mcp.NewServer(rt.Engine, logger)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting Sapling MCP Server (Stdio)...")
			err = srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			logger.Info("Starting Sapling MCP Server (SSE)", "addr", addr)
			err = srv.ServeSSE(ctx, addr, baseURL)
		default:
			err = fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}

		if err != nil {
			logger.Error("MCP Server execution failed", "err", err)
			rt.Close()
			os.Exit(1)
		}
		logger.Info("MCP Server stopped gracefully")
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients")
}
