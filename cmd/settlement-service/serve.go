package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nurpe/supply-settlement/internal/auth"
	"github.com/nurpe/supply-settlement/internal/db"
	httphandler "github.com/nurpe/supply-settlement/internal/http"
	"github.com/nurpe/supply-settlement/internal/http/middleware"
	"github.com/nurpe/supply-settlement/internal/logger"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if serveMigrate {
		if err := db.RunMigrations(a.database); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	if err := a.wireInvoices(); err != nil {
		return err
	}

	tokenParser := auth.NewParser(a.cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(a.invoices, logger.WithComponent(a.log, "http"))
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, a.cfg.Environment, a.cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", a.cfg.HTTP.Host, a.cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Msg("starting settlement service")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
