package main

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/tokens"
	"github.com/desertthunder/tunebridge/internal/ui"
)

// AuthConnect logs in to a provider through the browser popup and persists its token.
func (r *Runner) AuthConnect(ctx context.Context, cmd *cli.Command) error {
	id, err := r.provider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	r.restore(ctx)
	if conn, _ := r.registry.Connection(id); conn.Status == models.Connected {
		return r.writePlain("✓ %s is already connected\n", id.DisplayName())
	}

	r.echo.Store(id)
	defer r.echo.Store(models.ProviderID(""))

	r.logger.Info("connecting", "provider", id)
	conn, err := r.registry.Connect(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to connect %s: %w", id, err)
	}
	return r.writePlain("✓ Connected to %s (%s)\n", id.DisplayName(), conn.Status)
}

// AuthDisconnect logs out of a provider and removes its token.
func (r *Runner) AuthDisconnect(ctx context.Context, cmd *cli.Command) error {
	id, err := r.provider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	r.restore(ctx)
	if err := r.registry.Disconnect(ctx, id); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", id, err)
	}
	return r.writePlain("✓ Disconnected from %s\n", id.DisplayName())
}

// connectionStatus is the JSON shape of one provider in `auth status --json`.
type connectionStatus struct {
	Provider  models.ProviderID `json:"provider"`
	Status    string            `json:"status"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// AuthStatus restores persisted tokens and prints every provider's connection state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.restore(ctx)
	conns := r.registry.Connections()

	if cmd.Bool("json") {
		out := make([]connectionStatus, 0, len(conns))
		for _, c := range conns {
			s := connectionStatus{Provider: c.Provider, Status: c.Status.String()}
			if c.Token != nil && c.Token.ExpiresAt != nil {
				s.ExpiresAt = c.Token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			if c.LastError != nil {
				s.LastError = c.LastError.Error()
			}
			out = append(out, s)
		}
		return r.writeJSON(out, true)
	}

	if len(conns) == 0 {
		return r.writePlain("No providers configured. Fill in credentials in %s\n", r.configPath)
	}
	selected, _ := r.registry.SelectedProvider()
	return r.writePlain("%s\n", ui.Connections(conns, selected))
}

// AuthCapture stores the token carried by a redirect URL and prints the URL with the token stripped.
func (r *Runner) AuthCapture(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if raw == "" {
		return fmt.Errorf("%w: redirect url", shared.ErrMissingArgument)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	stored, captured := r.tokens.CaptureLocation(ctx, tokens.URLLocation{URL: u})
	if !captured {
		return fmt.Errorf("%w: url carries no token (expected ?service=<provider>#access_token=...)", shared.ErrInvalidArgument)
	}

	ids := make([]string, 0, len(stored))
	for id := range stored {
		ids = append(ids, id.DisplayName())
	}
	slices.Sort(ids)

	r.writePlain("✓ Token captured\n")
	r.writePlain("Stored tokens: %v\n", ids)
	return r.writePlain("Clean URL: %s\n", u.String())
}
