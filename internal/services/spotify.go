// Spotify Web API implementation of [Adapter]
//
// Authorization-code login via [golang.org/x/oauth2], API calls via [github.com/zmb3/spotify/v2].
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	spotifyPageSize   = 50
	spotifyAddBatch   = 100
	spotifySearchSize = 10
)

var spotifyScopes = []string{
	"user-read-private",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
	"user-library-read",
	"user-library-modify",
}

// SpotifyAdapter implements [Adapter] for Spotify.
type SpotifyAdapter struct {
	config  *oauth2.Config
	auth    Authorizer
	matcher *Matcher
	logger  *log.Logger
	jar     *sessionJar

	// apiURL overrides the Web API base URL (tests).
	apiURL    string
	transport http.RoundTripper

	mu       sync.Mutex
	client   *spotify.Client
	userID   string
	onChange func(models.Token)
}

// SpotifyOption configures a [SpotifyAdapter].
type SpotifyOption func(*SpotifyAdapter)

// WithSpotifyAPI points the adapter at another Web API base URL.
func WithSpotifyAPI(baseURL string) SpotifyOption {
	return func(s *SpotifyAdapter) { s.apiURL = strings.TrimRight(baseURL, "/") + "/" }
}

// WithSpotifyEndpoint replaces the OAuth endpoints.
func WithSpotifyEndpoint(endpoint oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyAdapter) { s.config.Endpoint = endpoint }
}

// WithSpotifyTransport sets the HTTP transport used for every request.
func WithSpotifyTransport(rt http.RoundTripper) SpotifyOption {
	return func(s *SpotifyAdapter) { s.transport = rt }
}

// NewSpotifyAdapter creates a new Spotify adapter with the given OAuth2 credentials.
func NewSpotifyAdapter(cfg shared.SpotifyConfig, auth Authorizer, matcher *Matcher, logger *log.Logger, opts ...SpotifyOption) (*SpotifyAdapter, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &SpotifyAdapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       spotifyScopes,
			Endpoint:     oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
		},
		auth:    auth,
		matcher: matcher,
		logger:  shared.WithLogger(logger, "provider", models.Spotify),
		jar:     newSessionJar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyAdapter) ID() models.ProviderID { return models.Spotify }
func (s *SpotifyAdapter) Name() string          { return "Spotify" }

// OnTokenChange registers fn to receive refreshed tokens.
func (s *SpotifyAdapter) OnTokenChange(fn func(models.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// AuthURL returns the consent URL. show_dialog forces Spotify to ask again even when
// the user previously approved the app.
func (s *SpotifyAdapter) AuthURL(state, redirectURI string) string {
	return s.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

func (s *SpotifyAdapter) exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient())
	return s.config.Exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
}

func (s *SpotifyAdapter) httpClient() *http.Client {
	return &http.Client{Jar: s.jar, Transport: s.transport}
}

// Connect runs the authorization-code login and confirms the session with /me.
func (s *SpotifyAdapter) Connect(ctx context.Context) (*models.Token, error) {
	if s.auth == nil {
		return nil, providerErr(models.Spotify, "connect", shared.ErrNotImplemented)
	}

	token, err := s.auth.Authorize(ctx, LoginRequest{
		Provider:    s.Name(),
		RedirectURI: s.config.RedirectURL,
		AuthURL:     s.AuthURL,
		Exchange:    s.exchange,
	})
	if err != nil {
		return nil, providerErr(models.Spotify, "connect", err)
	}

	s.attach(ctx, token)
	if err := s.confirm(ctx); err != nil {
		s.detach()
		return nil, providerErr(models.Spotify, "connect", err)
	}

	t := spotifyToken(token)
	s.logger.Info("connected", "user", s.userID)
	return &t, nil
}

// Resume attaches a persisted token.
func (s *SpotifyAdapter) Resume(ctx context.Context, token models.Token) error {
	if token.AccessToken == "" {
		return providerErr(models.Spotify, "resume", shared.ErrNotAuthenticated)
	}
	t := &oauth2.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}
	if token.ExpiresAt != nil {
		t.Expiry = *token.ExpiresAt
	}
	s.attach(ctx, t)
	return nil
}

// Status confirms the session with /me and then drops session cookies.
func (s *SpotifyAdapter) Status(ctx context.Context) (bool, error) {
	defer s.jar.Reset()

	if s.current() == nil {
		return false, nil
	}
	if err := s.confirm(ctx); err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, providerErr(models.Spotify, "status", err)
	}
	return true, nil
}

// Disconnect forgets the token and session cookies.
func (s *SpotifyAdapter) Disconnect(context.Context) error {
	s.detach()
	s.jar.Reset()
	s.logger.Info("disconnected")
	return nil
}

// Playlists lists the current user's playlists, following pagination.
func (s *SpotifyAdapter) Playlists(ctx context.Context) ([]models.Playlist, error) {
	client := s.current()
	if client == nil {
		return nil, providerErr(models.Spotify, "listPlaylists", shared.ErrNotAuthenticated)
	}

	var playlists []models.Playlist
	for offset := 0; ; offset += spotifyPageSize {
		page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, providerErr(models.Spotify, "listPlaylists", spotifyErr(err))
		}

		for _, p := range page.Playlists {
			if p.ID == "" || p.Name == "" {
				return nil, malformed(models.Spotify, "listPlaylists", "playlist without id or name")
			}
			playlists = append(playlists, models.Playlist{
				Provider:   models.Spotify,
				ExternalID: p.ID.String(),
				Title:      p.Name,
				TrackCount: int(p.Tracks.Total),
			})
		}

		if page.Next == "" || len(page.Playlists) == 0 {
			break
		}
	}
	return playlists, nil
}

// Songs lists a playlist's tracks in order. Podcast episodes and local files without an id are skipped.
func (s *SpotifyAdapter) Songs(ctx context.Context, playlistID string) ([]models.Song, error) {
	client := s.current()
	if client == nil {
		return nil, providerErr(models.Spotify, "listSongs", shared.ErrNotAuthenticated)
	}

	var songs []models.Song
	for offset := 0; ; offset += spotifyAddBatch {
		page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(spotifyAddBatch), spotify.Offset(offset))
		if err != nil {
			return nil, providerErr(models.Spotify, "listSongs", spotifyErr(err))
		}

		for _, item := range page.Items {
			track := item.Track.Track
			if track == nil || track.ID == "" {
				continue
			}
			song, err := spotifySong(track)
			if err != nil {
				return nil, providerErr(models.Spotify, "listSongs", err)
			}
			songs = append(songs, song)
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
	}
	return songs, nil
}

// Search queries the catalog by title and artist and picks a candidate with the matcher.
func (s *SpotifyAdapter) Search(ctx context.Context, song models.Song) (*models.Song, error) {
	client := s.current()
	if client == nil {
		return nil, providerErr(models.Spotify, "search", shared.ErrNotAuthenticated)
	}

	query := fmt.Sprintf("track:%q artist:%q", song.Title, song.Artist)
	result, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(spotifySearchSize))
	if err != nil {
		return nil, providerErr(models.Spotify, "search", spotifyErr(err))
	}
	if result.Tracks == nil {
		return nil, nil
	}

	candidates := make([]models.Song, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		c, err := spotifySong(&result.Tracks.Tracks[i])
		if err != nil {
			s.logger.Debug("skipping malformed search result", "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return s.matcher.Pick(song, candidates), nil
}

// AddToLibrary saves a track to Liked Songs, or appends it to the playlist named by targetContext.
func (s *SpotifyAdapter) AddToLibrary(ctx context.Context, externalID, targetContext string) error {
	client := s.current()
	if client == nil {
		return providerErr(models.Spotify, "addToLibrary", shared.ErrNotAuthenticated)
	}

	var err error
	if targetContext == "" {
		err = client.AddTracksToLibrary(ctx, spotify.ID(externalID))
	} else {
		_, err = client.AddTracksToPlaylist(ctx, spotify.ID(targetContext), spotify.ID(externalID))
	}
	return providerErr(models.Spotify, "addToLibrary", spotifyErr(err))
}

// CreatePlaylist creates a private playlist and adds ids in batches, preserving order.
func (s *SpotifyAdapter) CreatePlaylist(ctx context.Context, title string, ids []string) (string, error) {
	client := s.current()
	if client == nil {
		return "", providerErr(models.Spotify, "createPlaylist", shared.ErrNotAuthenticated)
	}

	userID, err := s.user(ctx)
	if err != nil {
		return "", providerErr(models.Spotify, "createPlaylist", err)
	}

	playlist, err := client.CreatePlaylistForUser(ctx, userID, title, "Synced by tunebridge", false, false)
	if err != nil {
		return "", providerErr(models.Spotify, "createPlaylist", spotifyErr(err))
	}
	if playlist == nil || playlist.ID == "" {
		return "", malformed(models.Spotify, "createPlaylist", "created playlist without id")
	}

	for start := 0; start < len(ids); start += spotifyAddBatch {
		end := min(start+spotifyAddBatch, len(ids))
		batch := make([]spotify.ID, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, spotify.ID(id))
		}
		if _, err := client.AddTracksToPlaylist(ctx, playlist.ID, batch...); err != nil {
			return playlist.ID.String(), providerErr(models.Spotify, "createPlaylist", spotifyErr(err))
		}
	}

	s.logger.Info("created playlist", "id", playlist.ID, "tracks", len(ids))
	return playlist.ID.String(), nil
}

func (s *SpotifyAdapter) current() *spotify.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *SpotifyAdapter) attach(ctx context.Context, token *oauth2.Token) {
	ctx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient())
	src := &notifyingSource{
		base: s.config.TokenSource(ctx, token),
		last: token.AccessToken,
		notify: func(t *oauth2.Token) {
			s.mu.Lock()
			fn := s.onChange
			s.mu.Unlock()
			if fn != nil {
				s.logger.Info("token refreshed")
				fn(spotifyToken(t))
			}
		},
	}

	opts := []spotify.ClientOption{}
	if s.apiURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.apiURL))
	}
	client := spotify.New(oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, src)), opts...)

	s.mu.Lock()
	s.client = client
	s.userID = ""
	s.mu.Unlock()
}

func (s *SpotifyAdapter) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.userID = ""
}

func (s *SpotifyAdapter) confirm(ctx context.Context) error {
	_, err := s.fetchUser(ctx)
	return err
}

func (s *SpotifyAdapter) user(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.userID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}
	return s.fetchUser(ctx)
}

func (s *SpotifyAdapter) fetchUser(ctx context.Context) (string, error) {
	client := s.current()
	if client == nil {
		return "", shared.ErrNotAuthenticated
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", spotifyErr(err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: user without id", shared.ErrMalformedResponse)
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return user.ID, nil
}

// notifyingSource reports tokens whose access token differs from the last one seen.
type notifyingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	last   string
	notify func(*oauth2.Token)
}

func (n *notifyingSource) Token() (*oauth2.Token, error) {
	t, err := n.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	}

	n.mu.Lock()
	changed := t.AccessToken != n.last
	n.last = t.AccessToken
	n.mu.Unlock()

	if changed {
		n.notify(t)
	}
	return t, nil
}

func spotifyToken(t *oauth2.Token) models.Token {
	token := models.Token{
		Provider:     models.Spotify,
		AccessToken:  t.AccessToken,
		TokenType:    t.Type(),
		RefreshToken: t.RefreshToken,
	}
	if !t.Expiry.IsZero() {
		exp := t.Expiry
		token.ExpiresAt = &exp
	}
	return token
}

func spotifySong(t *spotify.FullTrack) (models.Song, error) {
	if t.ID == "" || t.Name == "" || len(t.Artists) == 0 || t.Artists[0].Name == "" {
		return models.Song{}, fmt.Errorf("%w: track without id, name or artist", shared.ErrMalformedResponse)
	}
	return models.Song{
		Title:      t.Name,
		Artist:     t.Artists[0].Name,
		Album:      t.Album.Name,
		ExternalID: t.ID.String(),
	}, nil
}

// spotifyErr maps Web API failures onto the shared error taxonomy.
func spotifyErr(err error) error {
	if err == nil {
		return nil
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", shared.ErrTokenExpired, apiErr.Message)
		case apiErr.Status == http.StatusForbidden:
			return fmt.Errorf("%w: %s", shared.ErrAuthFailed, apiErr.Message)
		case apiErr.Status == http.StatusNotFound, apiErr.Status == http.StatusBadRequest:
			return fmt.Errorf("%w: %s", shared.ErrMalformedResponse, apiErr.Message)
		default:
			return fmt.Errorf("%w: status %d: %s", shared.ErrTransport, apiErr.Status, apiErr.Message)
		}
	}

	if errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrTransport, err)
}
