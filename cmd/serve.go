package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/server"
)

var (
	servePort     int
	serveAllowAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket chat server",
	Long: `Starts the advisor HTTP server: REST endpoints for search, filter
values, feedback and reporting, plus a WebSocket endpoint for streamed
chat sessions.`,
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

		srv := server.New(server.Config{
			Port:     servePort,
			AllowAll: serveAllowAll,
		}, p.engine, p.meta, p.store)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "advisor server v%s starting on port %d\n", Version, servePort)
		fmt.Fprintf(os.Stderr, "  Courses: %d\n", p.meta.Len())
		fmt.Fprintf(os.Stderr, "  Documents embedded: %d\n", p.cache.Len())

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all", false, "Allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}
