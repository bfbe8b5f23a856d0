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

	"winsbygroup.com/licverify/internal/server"
	"winsbygroup.com/licverify/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification HTTP server",
	Args:  cobra.NoArgs,
	RunE:  serveCmdRun,
}

type serveFlags struct {
	demo            bool
	shutdownTimeout time.Duration
}

var serveArgs serveFlags

func init() {
	serveCmd.Flags().BoolVar(&serveArgs.demo, "demo", false,
		"load sample licenses into a new database (for demos)")
	serveCmd.Flags().DurationVar(&serveArgs.shutdownTimeout, "shutdown-timeout", 10*time.Second,
		"how long to wait for in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func serveCmdRun(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), version.Banner())

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.DemoMode = serveArgs.demo

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer func() {
		if err := srv.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("server listening")
		if err := srv.Echo.StartServer(srv.HTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveArgs.shutdownTimeout)
	defer cancel()
	return srv.Echo.Shutdown(shutdownCtx)
}
