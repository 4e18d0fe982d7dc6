package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/server"
)

func newServeCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return root.serve(ctx)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides FAMILYTASKS_PORT)")
	return cmd
}

func (r *rootCommand) serve(ctx context.Context) error {
	logger := r.logger
	db, err := database.Open(r.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, r.cfg, logger)
	if n, err := srv.SessionStore().DeleteExpired(ctx); err != nil {
		logger.Warn("delete expired sessions", "error", err)
	} else if n > 0 {
		logger.Info("deleted expired sessions", "count", n)
	}

	httpServer := &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("familytasks listening", "addr", httpServer.Addr, "env", r.cfg.Environment, "timezone", r.cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newMigrateCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open runs the embedded migrations.
			db, err := database.Open(root.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			root.logger.Info("database migrated", "path", root.cfg.DBPath)
			return nil
		},
	}
}
