package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/server"
)

// Serve runs the redirect-capture page until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	srv, err := server.Listen(r.config.Server.Addr())
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(server.NewCaptureHandler(r.tokens, r.logger))
	srv.Serve(router)

	r.logger.Info("capture server listening", "url", srv.URL())
	r.writePlain("Serving redirect capture on %s (Ctrl+C to stop)\n", srv.URL())

	select {
	case err := <-srv.Done():
		if err != nil {
			return fmt.Errorf("capture server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop capture server: %w", err)
	}
	return <-srv.Done()
}
