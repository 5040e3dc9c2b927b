// package services defines the Adapter contract music providers implement
//
// Spotify, Deezer, fixture
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Adapter is the uniform capability set of a music provider.
//
// Read operations distinguish "nothing there" (nil, nil) from failure (non-nil error).
// Adapters never retry; retry policy belongs to the caller.
type Adapter interface {
	// ID returns the canonical provider id.
	ID() models.ProviderID

	// Name returns the provider's display name.
	Name() string

	// Connect runs the provider's login flow and resolves once the provider confirms a session.
	Connect(ctx context.Context) (*models.Token, error)

	// Resume attaches a persisted token without prompting.
	Resume(ctx context.Context, token models.Token) error

	// Status reports whether the provider confirms a session, then clears the adapter's
	// provider-side cookies so the next Connect asks for consent again.
	Status(ctx context.Context) (bool, error)

	// Disconnect clears the provider session and the adapter's token.
	Disconnect(ctx context.Context) error

	// Playlists lists the user's playlists; nil means none.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Songs lists a playlist's songs in playlist order; nil means none.
	Songs(ctx context.Context, playlistID string) ([]models.Song, error)

	// Search finds an equivalent song in the catalog; nil means no acceptable match.
	Search(ctx context.Context, song models.Song) (*models.Song, error)

	// AddToLibrary saves a track. An empty targetContext means the user's library,
	// otherwise it names a playlist.
	AddToLibrary(ctx context.Context, externalID, targetContext string) error

	// CreatePlaylist creates a playlist holding ids in the given order and returns its id.
	CreatePlaylist(ctx context.Context, title string, ids []string) (string, error)
}

// TrackCreator is implemented by adapters able to create catalog entries for songs
// the provider does not know.
type TrackCreator interface {
	CreatesTracks() bool
	CreateTrack(ctx context.Context, song models.Song) (string, error)
}

// TokenNotifier is implemented by adapters whose tokens can be replaced after login,
// e.g. by an OAuth refresh.
type TokenNotifier interface {
	OnTokenChange(fn func(models.Token))
}

// ProviderError attributes a failure to a provider operation.
type ProviderError struct {
	Provider models.ProviderID
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(id models.ProviderID, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: id, Op: op, Err: err}
}

func malformed(id models.ProviderID, op, detail string) error {
	return &ProviderError{Provider: id, Op: op, Err: fmt.Errorf("%w: %s", shared.ErrMalformedResponse, detail)}
}

// IsAuthError reports whether err means the session is gone.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired)
}

// sessionJar is a cookie jar that can be emptied in place, so clients holding it
// drop provider session cookies on [sessionJar.Reset].
type sessionJar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
}

func newSessionJar() *sessionJar {
	j := &sessionJar{}
	j.Reset()
	return j
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Reset discards every stored cookie.
func (j *sessionJar) Reset() {
	inner, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}
