package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Operation names used in [ProviderError.Op], [Failure.Op] and [FixedAdapter.Calls].
const (
	OpConnect        = "connect"
	OpResume         = "resume"
	OpStatus         = "status"
	OpDisconnect     = "disconnect"
	OpPlaylists      = "listPlaylists"
	OpSongs          = "listSongs"
	OpSearch         = "search"
	OpAddToLibrary   = "addToLibrary"
	OpCreatePlaylist = "createPlaylist"
	OpCreateTrack    = "createTrack"
)

// Failure makes matching calls of a [FixedAdapter] fail.
//
// Match filters on the call argument (playlist id, song title or track id); empty matches all.
// Times limits how many calls fail; zero means every matching call.
type Failure struct {
	Op    string
	Match string
	Times int
	Err   error
}

// Call records one invocation of a [FixedAdapter] operation.
type Call struct {
	Op  string
	Arg string
}

// FixedAdapter is a deterministic, in-memory [Adapter] with fixed playlists and catalog.
// Every call resolves synchronously.
type FixedAdapter struct {
	id   models.ProviderID
	name string

	mu            sync.Mutex
	matcher       *Matcher
	playlists     []models.Playlist
	songs         map[string][]models.Song
	catalog       []models.Song
	createTracks  bool
	connected     bool
	token         *models.Token
	failures      []*Failure
	calls         []Call
	library       map[string][]string
	created       map[string][]string
	createdTitles map[string]string
	nextID        int

	// BeforeCall, when set, runs before every operation; a non-nil error fails the call.
	BeforeCall func(ctx context.Context, op string) error
}

// NewFixedAdapter creates an empty fixed adapter for id.
func NewFixedAdapter(id models.ProviderID, name string) *FixedAdapter {
	if name == "" {
		name = id.DisplayName()
	}
	return &FixedAdapter{
		id:            id,
		name:          name,
		matcher:       DefaultMatcher(),
		songs:         make(map[string][]models.Song),
		library:       make(map[string][]string),
		created:       make(map[string][]string),
		createdTitles: make(map[string]string),
	}
}

// fixtureFile is the JSON shape read by [LoadFixture].
type fixtureFile struct {
	Name      string `json:"name"`
	Playlists []struct {
		ID    string        `json:"id"`
		Title string        `json:"title"`
		Songs []models.Song `json:"songs"`
	} `json:"playlists"`
	Catalog      []models.Song `json:"catalog"`
	CreateTracks bool          `json:"create_tracks"`
}

// LoadFixture builds a [models.Fixture] adapter from a JSON file.
func LoadFixture(path string, matcher *Matcher) (*FixedAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: fixture: %w", shared.ErrMissingConfig, err)
	}

	var f fixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: fixture %s: %w", shared.ErrInvalidConfig, path, err)
	}

	a := NewFixedAdapter(models.Fixture, f.Name)
	if matcher != nil {
		a.matcher = matcher
	}
	for _, p := range f.Playlists {
		if p.ID == "" || p.Title == "" {
			return nil, fmt.Errorf("%w: fixture %s: playlist without id or title", shared.ErrInvalidConfig, path)
		}
		a.AddPlaylist(models.Playlist{ExternalID: p.ID, Title: p.Title}, p.Songs...)
	}
	a.AddCatalog(f.Catalog...)
	a.EnableTrackCreation(f.CreateTracks)
	return a, nil
}

// AddPlaylist adds a playlist with its songs. TrackCount is derived from songs.
func (f *FixedAdapter) AddPlaylist(p models.Playlist, songs ...models.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Provider = f.id
	p.TrackCount = len(songs)
	f.playlists = append(f.playlists, p)
	f.songs[p.ExternalID] = append([]models.Song(nil), songs...)
}

// AddCatalog adds searchable songs. Songs without an ExternalID get a generated one.
func (f *FixedAdapter) AddCatalog(songs ...models.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range songs {
		if s.ExternalID == "" {
			s.ExternalID = f.newID("track")
		}
		f.catalog = append(f.catalog, s)
	}
}

// EnableTrackCreation toggles [TrackCreator] support.
func (f *FixedAdapter) EnableTrackCreation(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createTracks = enabled
}

// Inject registers a failure.
func (f *FixedAdapter) Inject(failure Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure)
}

// Calls returns every recorded call, in order.
func (f *FixedAdapter) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts recorded calls of op.
func (f *FixedAdapter) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Library returns the ids added to targetContext ("" is the user library).
func (f *FixedAdapter) Library(targetContext string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.library[targetContext]...)
}

// CreatedPlaylist returns the title and ids of a playlist created through [FixedAdapter.CreatePlaylist].
func (f *FixedAdapter) CreatedPlaylist(id string) (string, []string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, ok := f.created[id]
	return f.createdTitles[id], append([]string(nil), ids...), ok
}

// CreatedPlaylists lists the ids of created playlists in creation order.
func (f *FixedAdapter) CreatedPlaylists() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, p := range f.playlists {
		if _, ok := f.created[p.ExternalID]; ok {
			ids = append(ids, p.ExternalID)
		}
	}
	return ids
}

func (f *FixedAdapter) ID() models.ProviderID { return f.id }
func (f *FixedAdapter) Name() string          { return f.name }

func (f *FixedAdapter) Connect(ctx context.Context) (*models.Token, error) {
	if err := f.enter(ctx, OpConnect, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.token = &models.Token{Provider: f.id, AccessToken: f.newID("token"), TokenType: "Bearer"}
	tok := *f.token
	return &tok, nil
}

func (f *FixedAdapter) Resume(ctx context.Context, token models.Token) error {
	if err := f.enter(ctx, OpResume, ""); err != nil {
		return err
	}
	if token.AccessToken == "" {
		return providerErr(f.id, OpResume, shared.ErrNotAuthenticated)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.token = &token
	return nil
}

func (f *FixedAdapter) Status(ctx context.Context) (bool, error) {
	if err := f.enter(ctx, OpStatus, ""); err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected, nil
}

func (f *FixedAdapter) Disconnect(ctx context.Context) error {
	if err := f.enter(ctx, OpDisconnect, ""); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.token = nil
	return nil
}

func (f *FixedAdapter) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := f.enter(ctx, OpPlaylists, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.playlists) == 0 {
		return nil, nil
	}
	return append([]models.Playlist(nil), f.playlists...), nil
}

func (f *FixedAdapter) Songs(ctx context.Context, playlistID string) ([]models.Song, error) {
	if err := f.enter(ctx, OpSongs, playlistID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	songs := f.songs[playlistID]
	if len(songs) == 0 {
		return nil, nil
	}
	return append([]models.Song(nil), songs...), nil
}

func (f *FixedAdapter) Search(ctx context.Context, song models.Song) (*models.Song, error) {
	if err := f.enter(ctx, OpSearch, song.Title); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var candidates []models.Song
	for _, c := range f.catalog {
		if f.matcher.SameArtist(song.Artist, c.Artist) {
			candidates = append(candidates, c)
		}
	}
	return f.matcher.Pick(song, candidates), nil
}

func (f *FixedAdapter) AddToLibrary(ctx context.Context, externalID, targetContext string) error {
	if err := f.enter(ctx, OpAddToLibrary, externalID); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.library[targetContext] = append(f.library[targetContext], externalID)
	if ids, ok := f.created[targetContext]; ok {
		f.created[targetContext] = append(ids, externalID)
	}
	return nil
}

func (f *FixedAdapter) CreatePlaylist(ctx context.Context, title string, ids []string) (string, error) {
	if err := f.enter(ctx, OpCreatePlaylist, title); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID("playlist")
	f.created[id] = append([]string(nil), ids...)
	f.createdTitles[id] = title
	f.playlists = append(f.playlists, models.Playlist{Provider: f.id, ExternalID: id, Title: title, TrackCount: len(ids)})
	return id, nil
}

// CreatesTracks reports whether track creation is enabled.
func (f *FixedAdapter) CreatesTracks() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createTracks
}

// CreateTrack adds song to the catalog under a new id.
func (f *FixedAdapter) CreateTrack(ctx context.Context, song models.Song) (string, error) {
	if err := f.enter(ctx, OpCreateTrack, song.Title); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.createTracks {
		return "", providerErr(f.id, OpCreateTrack, shared.ErrNotImplemented)
	}
	song.ExternalID = f.newID("track")
	f.catalog = append(f.catalog, song)
	return song.ExternalID, nil
}

// enter records the call, runs BeforeCall and applies injected failures.
func (f *FixedAdapter) enter(ctx context.Context, op, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Arg: arg})
	hook := f.BeforeCall
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, op); err != nil {
			return providerErr(f.id, op, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, failure := range f.failures {
		if failure.Op != op || (failure.Match != "" && failure.Match != arg) {
			continue
		}
		if failure.Times < 0 {
			continue
		}
		if failure.Times > 0 {
			failure.Times--
			if failure.Times == 0 {
				failure.Times = -1
			}
		}
		return providerErr(f.id, op, failure.Err)
	}
	return nil
}

// newID returns a sequential id; callers hold f.mu.
func (f *FixedAdapter) newID(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}
