package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/api"
	"github.com/ziadkadry99/ctxpack/internal/progress"
	"github.com/ziadkadry99/ctxpack/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	Long: `Starts the ctxpack server with the context assembly REST API, the /ws/chat
WebSocket, a health check and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, appOptions{metrics: true, requireVectors: true})
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAllOrigins,
		}, a.metrics, a.log)

		ix := a.newIndexer(progress.Nop{})
		api.RegisterRoutes(srv.Router(), api.NewHandler(a.svc, a.store, ix, a.log))

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.WithError(err).Warn("shutdown")
			}
		}()

		documents, _ := a.store.CountDocuments(ctx)
		semantic := 0
		if a.vectors != nil {
			semantic = a.vectors.Count()
		}
		fmt.Fprintf(os.Stderr, "ctxpack server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", a.cfg.DBPath())
		fmt.Fprintf(os.Stderr, "  Documents: %d (%d indexed chunks)\n", documents, semantic)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP port (defaults to server.port from the config)")
	rootCmd.AddCommand(serveCmd)
}
