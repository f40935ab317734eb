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

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vouchercat/internal/apihandlers"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run vouchercat as an HTTP API server",
	Long: `Starts an HTTP server exposing catalogs, single-product classification,
file categorization jobs and run history as a JSON API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		addr := appInstance.Config.Server.Address
		if serveAddr != "" {
			addr = serveAddr
		}

		gin.SetMode(gin.ReleaseMode)
		var history apihandlers.RunHistory
		if appInstance.History != nil {
			history = appInstance.History
		}
		handler := apihandlers.NewAPIHandler(appInstance.Catalogs, appInstance.Categorizer, appInstance.Jobs, history)
		srv := &http.Server{
			Addr:              addr,
			Handler:           apihandlers.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		appInstance.Jobs.Start()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting vouchercat API server on http://%s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to run server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutdown signal received, stopping API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.address)")
	rootCmd.AddCommand(serveCmd)
}
