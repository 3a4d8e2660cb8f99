package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/campusrag/advisor/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing course search tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := openPipeline(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		// stdout carries the protocol, so status goes to stderr.
		fmt.Fprintf(os.Stderr, "advisor MCP server started on stdio (courses=%d, documents=%d)\n",
			p.meta.Len(), p.cache.Len())

		srv := mcpserver.NewServer(p.engine, p.meta, p.corpus)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
