package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tunebridge/internal/server"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// LoginRequest describes one provider's authorization-code login.
type LoginRequest struct {
	// Provider is shown on the popup page.
	Provider string
	// RedirectURI is the registered callback; empty uses the listener's /callback.
	RedirectURI string
	// AuthURL builds the consent URL for state and redirectURI.
	AuthURL func(state, redirectURI string) string
	// Exchange trades the code for a token.
	Exchange func(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
}

// Authorizer runs a login and returns the provider's token.
type Authorizer interface {
	Authorize(ctx context.Context, req LoginRequest) (*oauth2.Token, error)
}

// BrowserAuthorizer opens the consent page in the user's browser and waits for the popup
// callback on a short-lived local server.
type BrowserAuthorizer struct {
	Addr    string
	Timeout time.Duration
	Open    shared.BrowserOpener
	Out     io.Writer
	Logger  *log.Logger
}

// NewBrowserAuthorizer creates an authorizer listening on cfg's address.
func NewBrowserAuthorizer(cfg shared.ServerConfig, out io.Writer, logger *log.Logger) *BrowserAuthorizer {
	return &BrowserAuthorizer{
		Addr:    cfg.Addr(),
		Timeout: cfg.LoginTimeout.Duration,
		Open:    shared.OpenBrowser,
		Out:     out,
		Logger:  logger,
	}
}

// Authorize starts the callback server, opens the consent page and blocks until the popup
// reports, the timeout elapses, or ctx is cancelled.
func (a *BrowserAuthorizer) Authorize(ctx context.Context, req LoginRequest) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	srv, err := server.Listen(a.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = srv.URL() + "/callback"
	}
	exchange := func(ctx context.Context, code string) (*oauth2.Token, error) {
		return req.Exchange(ctx, code, redirectURI)
	}

	login := server.NewLoginChannel()
	router := server.NewBasicRouter()
	router.Use(server.Logging(a.Logger))
	router.Handler(server.NewPopupHandler(req.Provider, exchange, state, login))
	srv.Serve(router)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("error shutting down login server", "error", err)
		}
	}()

	authURL := req.AuthURL(state, redirectURI)

	a.Logger.Info("starting login", "provider", req.Provider, "addr", srv.Addr())
	a.printf("→ Opening browser for %s login...\n", req.Provider)
	if err := a.Open(authURL); err != nil {
		a.Logger.Warn("failed to open browser automatically", "error", err)
		a.printf("⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	a.printf("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-login.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Token, nil
	case err := <-srv.Done():
		return nil, fmt.Errorf("%w: login server stopped: %v", shared.ErrServiceUnavailable, err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s login timed out after %s", shared.ErrTimeout, req.Provider, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", shared.ErrLoginCancelled, ctx.Err())
	}
}

func (a *BrowserAuthorizer) printf(format string, args ...any) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format, args...)
	}
}
