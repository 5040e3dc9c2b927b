// Deezer REST API implementation of [Adapter]
//
// API reference: https://developers.deezer.com/api
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const (
	deezerAPIURL     = "https://api.deezer.com"
	deezerConnectURL = "https://connect.deezer.com"
	deezerPerms      = "basic_access,manage_library,offline_access"

	deezerPageSize   = 100
	deezerSearchSize = 10
	deezerAddBatch   = 100
)

// deezerError is the error object Deezer returns with HTTP 200.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type deezerAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DeezerTrack is a track object from the Deezer API.
type DeezerTrack struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Readable *bool        `json:"readable,omitempty"`
	Artist   deezerArtist `json:"artist"`
	Album    deezerAlbum  `json:"album"`
}

// DeezerPlaylist is a playlist object from the Deezer API.
type DeezerPlaylist struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	NbTracks int    `json:"nb_tracks"`
}

type deezerPage[T any] struct {
	Data  []T    `json:"data"`
	Total int    `json:"total"`
	Next  string `json:"next"`
}

type deezerUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeezerAdapter implements [Adapter] for Deezer.
type DeezerAdapter struct {
	cfg        shared.DeezerConfig
	auth       Authorizer
	matcher    *Matcher
	logger     *log.Logger
	jar        *sessionJar
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
	connectURL string

	mu    sync.Mutex
	token *models.Token
}

// DeezerOption configures a [DeezerAdapter].
type DeezerOption func(*DeezerAdapter)

// WithDeezerURLs points the adapter at other API and connect hosts.
func WithDeezerURLs(apiURL, connectURL string) DeezerOption {
	return func(d *DeezerAdapter) {
		d.apiURL = strings.TrimRight(apiURL, "/")
		d.connectURL = strings.TrimRight(connectURL, "/")
	}
}

// WithDeezerLimiter replaces the request rate limiter.
func WithDeezerLimiter(l *rate.Limiter) DeezerOption {
	return func(d *DeezerAdapter) { d.limiter = l }
}

// WithDeezerTransport sets the HTTP transport used for every request.
func WithDeezerTransport(rt http.RoundTripper) DeezerOption {
	return func(d *DeezerAdapter) { d.httpClient.Transport = rt }
}

// NewDeezerAdapter creates a Deezer adapter. Deezer allows 50 requests per 5 seconds.
func NewDeezerAdapter(cfg shared.DeezerConfig, auth Authorizer, matcher *Matcher, logger *log.Logger, opts ...DeezerOption) (*DeezerAdapter, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("%w: deezer app_id", shared.ErrMissingCredentials)
	}
	if cfg.Perms == "" {
		cfg.Perms = deezerPerms
	}
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	jar := newSessionJar()
	d := &DeezerAdapter{
		cfg:        cfg,
		auth:       auth,
		matcher:    matcher,
		logger:     shared.WithLogger(logger, "provider", models.Deezer),
		jar:        jar,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 50),
		apiURL:     deezerAPIURL,
		connectURL: deezerConnectURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *DeezerAdapter) ID() models.ProviderID { return models.Deezer }
func (d *DeezerAdapter) Name() string          { return "Deezer" }

// AuthURL returns the Deezer consent URL.
func (d *DeezerAdapter) AuthURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("app_id", d.cfg.AppID)
	q.Set("redirect_uri", redirectURI)
	q.Set("perms", d.cfg.Perms)
	q.Set("state", state)
	return d.connectURL + "/oauth/auth.php?" + q.Encode()
}

// exchange calls Deezer's token endpoint, which answers with access_token and expires
// (seconds, 0 for offline_access) rather than a standard OAuth2 token response.
func (d *DeezerAdapter) exchange(ctx context.Context, code, _ string) (*oauth2.Token, error) {
	if d.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: deezer secret", shared.ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("app_id", d.cfg.AppID)
	q.Set("secret", d.cfg.Secret)
	q.Set("code", code)
	q.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.connectURL+"/oauth/access_token.php?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}

	var payload struct {
		AccessToken string          `json:"access_token"`
		Expires     json.RawMessage `json:"expires"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: deezer token endpoint: %s", shared.ErrAuthFailed, strings.TrimSpace(string(body)))
	}

	token := &oauth2.Token{AccessToken: payload.AccessToken, TokenType: "Bearer"}
	seconds, err := strconv.ParseInt(strings.Trim(string(payload.Expires), `"`), 10, 64)
	if err == nil && seconds > 0 {
		token.Expiry = time.Now().Add(time.Duration(seconds) * time.Second)
	}
	return token, nil
}

// Connect runs the login popup and confirms the session with /user/me.
func (d *DeezerAdapter) Connect(ctx context.Context) (*models.Token, error) {
	if d.auth == nil {
		return nil, providerErr(models.Deezer, "connect", shared.ErrNotImplemented)
	}

	tok, err := d.auth.Authorize(ctx, LoginRequest{
		Provider:    d.Name(),
		RedirectURI: d.cfg.RedirectURI,
		AuthURL:     d.AuthURL,
		Exchange:    d.exchange,
	})
	if err != nil {
		return nil, providerErr(models.Deezer, "connect", err)
	}

	token := models.Token{Provider: models.Deezer, AccessToken: tok.AccessToken, TokenType: tok.Type()}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		token.ExpiresAt = &exp
	}
	d.setToken(&token)

	user, err := d.me(ctx)
	if err != nil {
		d.setToken(nil)
		return nil, providerErr(models.Deezer, "connect", err)
	}

	d.logger.Info("connected", "user", user.Name)
	return &token, nil
}

// Resume attaches a persisted token.
func (d *DeezerAdapter) Resume(_ context.Context, token models.Token) error {
	if token.AccessToken == "" {
		return providerErr(models.Deezer, "resume", shared.ErrNotAuthenticated)
	}
	d.setToken(&token)
	return nil
}

// Status confirms the session with /user/me and then drops session cookies.
func (d *DeezerAdapter) Status(ctx context.Context) (bool, error) {
	defer d.jar.Reset()

	if d.currentToken() == nil {
		return false, nil
	}
	if _, err := d.me(ctx); err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, providerErr(models.Deezer, "status", err)
	}
	return true, nil
}

// Disconnect forgets the token and session cookies.
func (d *DeezerAdapter) Disconnect(context.Context) error {
	d.setToken(nil)
	d.jar.Reset()
	d.logger.Info("disconnected")
	return nil
}

// Playlists lists the user's playlists, following pagination.
func (d *DeezerAdapter) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := deezerPaginate(ctx, d, "/user/me/playlists", nil, func(p DeezerPlaylist) error {
		if p.ID == 0 || p.Title == "" {
			return fmt.Errorf("%w: playlist without id or title", shared.ErrMalformedResponse)
		}
		playlists = append(playlists, models.Playlist{
			Provider:   models.Deezer,
			ExternalID: strconv.FormatInt(p.ID, 10),
			Title:      p.Title,
			TrackCount: p.NbTracks,
		})
		return nil
	})
	if err != nil {
		return nil, providerErr(models.Deezer, "listPlaylists", err)
	}
	return playlists, nil
}

// Songs lists a playlist's tracks in order.
func (d *DeezerAdapter) Songs(ctx context.Context, playlistID string) ([]models.Song, error) {
	var songs []models.Song
	path := "/playlist/" + url.PathEscape(playlistID) + "/tracks"
	err := deezerPaginate(ctx, d, path, nil, func(t DeezerTrack) error {
		song, err := deezerSong(t)
		if err != nil {
			return err
		}
		songs = append(songs, song)
		return nil
	})
	if err != nil {
		return nil, providerErr(models.Deezer, "listSongs", err)
	}
	return songs, nil
}

// Search queries the catalog with Deezer's advanced search syntax and picks a candidate with the matcher.
func (d *DeezerAdapter) Search(ctx context.Context, song models.Song) (*models.Song, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("artist:%q track:%q", song.Artist, song.Title))
	q.Set("limit", strconv.Itoa(deezerSearchSize))

	var page deezerPage[DeezerTrack]
	if err := d.doRequest(ctx, http.MethodGet, "/search/track", q, &page); err != nil {
		return nil, providerErr(models.Deezer, "search", err)
	}

	candidates := make([]models.Song, 0, len(page.Data))
	for _, t := range page.Data {
		if t.Readable != nil && !*t.Readable {
			continue
		}
		c, err := deezerSong(t)
		if err != nil {
			d.logger.Debug("skipping malformed search result", "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return d.matcher.Pick(song, candidates), nil
}

// AddToLibrary adds a track to favourites, or to the playlist named by targetContext.
func (d *DeezerAdapter) AddToLibrary(ctx context.Context, externalID, targetContext string) error {
	q := url.Values{}
	path := "/user/me/tracks"
	if targetContext == "" {
		q.Set("track_id", externalID)
	} else {
		path = "/playlist/" + url.PathEscape(targetContext) + "/tracks"
		q.Set("songs", externalID)
	}

	var ok bool
	if err := d.doRequest(ctx, http.MethodPost, path, q, &ok); err != nil {
		return providerErr(models.Deezer, "addToLibrary", err)
	}
	if !ok {
		return malformed(models.Deezer, "addToLibrary", "add was not acknowledged")
	}
	return nil
}

// CreatePlaylist creates a playlist and adds ids in batches, preserving order.
func (d *DeezerAdapter) CreatePlaylist(ctx context.Context, title string, ids []string) (string, error) {
	q := url.Values{}
	q.Set("title", title)

	var created struct {
		ID int64 `json:"id"`
	}
	if err := d.doRequest(ctx, http.MethodPost, "/user/me/playlists", q, &created); err != nil {
		return "", providerErr(models.Deezer, "createPlaylist", err)
	}
	if created.ID == 0 {
		return "", malformed(models.Deezer, "createPlaylist", "created playlist without id")
	}
	playlistID := strconv.FormatInt(created.ID, 10)

	for start := 0; start < len(ids); start += deezerAddBatch {
		end := min(start+deezerAddBatch, len(ids))
		add := url.Values{}
		add.Set("songs", strings.Join(ids[start:end], ","))

		var ok bool
		if err := d.doRequest(ctx, http.MethodPost, "/playlist/"+playlistID+"/tracks", add, &ok); err != nil {
			return playlistID, providerErr(models.Deezer, "createPlaylist", err)
		}
		if !ok {
			return playlistID, malformed(models.Deezer, "createPlaylist", "add was not acknowledged")
		}
	}

	d.logger.Info("created playlist", "id", playlistID, "tracks", len(ids))
	return playlistID, nil
}

func (d *DeezerAdapter) me(ctx context.Context) (*deezerUser, error) {
	var user deezerUser
	if err := d.doRequest(ctx, http.MethodGet, "/user/me", nil, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user without id", shared.ErrMalformedResponse)
	}
	return &user, nil
}

func (d *DeezerAdapter) currentToken() *models.Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token
}

func (d *DeezerAdapter) setToken(t *models.Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = t
}

// doRequest performs a rate-limited, authenticated request and decodes the JSON body into result.
//
// Deezer reports API errors as HTTP 200 with an error object; those are mapped onto the shared taxonomy.
func (d *DeezerAdapter) doRequest(ctx context.Context, method, path string, query url.Values, result any) error {
	token := d.currentToken()
	if token == nil {
		return shared.ErrNotAuthenticated
	}
	if token.Expired(time.Now()) {
		return shared.ErrTokenExpired
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, method, d.apiURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: deezer API error: status %d", shared.ErrTransport, resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var envelope struct {
			Error *deezerError `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Error != nil {
			return deezerErr(envelope.Error)
		}
	}

	if result != nil {
		if err := json.Unmarshal(trimmed, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", shared.ErrMalformedResponse, err)
		}
	}
	return nil
}

// deezerPaginate walks index-based pages of path, calling fn for every item.
func deezerPaginate[T any](ctx context.Context, d *DeezerAdapter, path string, query url.Values, fn func(T) error) error {
	for index := 0; ; {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("index", strconv.Itoa(index))
		q.Set("limit", strconv.Itoa(deezerPageSize))

		var page deezerPage[T]
		if err := d.doRequest(ctx, http.MethodGet, path, q, &page); err != nil {
			return err
		}
		for _, item := range page.Data {
			if err := fn(item); err != nil {
				return err
			}
		}

		index += len(page.Data)
		if page.Next == "" || len(page.Data) == 0 {
			return nil
		}
	}
}

func deezerSong(t DeezerTrack) (models.Song, error) {
	if t.ID == 0 || t.Title == "" || t.Artist.Name == "" {
		return models.Song{}, fmt.Errorf("%w: track without id, title or artist", shared.ErrMalformedResponse)
	}
	return models.Song{
		Title:      t.Title,
		Artist:     t.Artist.Name,
		Album:      t.Album.Title,
		ExternalID: strconv.FormatInt(t.ID, 10),
	}, nil
}

// deezerErr maps a Deezer error object. Codes: https://developers.deezer.com/api/errors
func deezerErr(e *deezerError) error {
	switch {
	case e.Type == "OAuthException" || e.Code == 200 || e.Code == 300:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, e.Message)
	case e.Code == 4 || e.Code == 700:
		return fmt.Errorf("%w: deezer error %d: %s", shared.ErrTransport, e.Code, e.Message)
	default:
		return fmt.Errorf("%w: deezer error %d (%s): %s", shared.ErrMalformedResponse, e.Code, e.Type, e.Message)
	}
}
