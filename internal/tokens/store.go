package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// DefaultKey is the storage key holding the token map.
const DefaultKey = "tunebridge.tokens"

// record is the persisted JSON shape of one token.
type record struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    *time.Time `json:"expires_at"`
	RefreshToken string     `json:"refresh_token,omitempty"`
}

// Store persists tokens keyed by provider.
//
// Writes re-read the persisted map before merging so concurrent writers in other
// processes are not clobbered; writers in this process are serialized by mu.
type Store struct {
	kv     repositories.KeyValueStore
	key    string
	logger *log.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewStore creates a token store over kv. An empty key uses [DefaultKey].
func NewStore(kv repositories.KeyValueStore, key string, logger *log.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{kv: kv, key: key, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Get returns the live token for id, or nil. An expired token is deleted.
func (s *Store) Get(ctx context.Context, id models.ProviderID) *models.Token {
	tokens := s.load(ctx)
	t, ok := tokens[id]
	if !ok {
		return nil
	}

	if t.Expired(s.now()) {
		s.logger.Info("token expired", "provider", id)
		if err := s.purge(ctx, id); err != nil {
			s.logger.Error("failed to remove expired token", "provider", id, "error", err)
		}
		return nil
	}
	return &t
}

// Set stores t for id, replacing any prior token. A nil token removes it.
func (s *Store) Set(ctx context.Context, id models.ProviderID, t *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.load(ctx)
	if t == nil {
		if _, ok := tokens[id]; !ok {
			return nil
		}
		delete(tokens, id)
	} else {
		stored := *t
		stored.Provider = id
		tokens[id] = stored
	}
	return s.save(ctx, tokens)
}

// purge deletes id's token if it is still expired after re-reading.
func (s *Store) purge(ctx context.Context, id models.ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.load(ctx)
	t, ok := tokens[id]
	if !ok || !t.Expired(s.now()) {
		return nil
	}
	delete(tokens, id)
	return s.save(ctx, tokens)
}

// All returns every live token. Expired tokens are omitted.
func (s *Store) All(ctx context.Context) map[models.ProviderID]models.Token {
	now := s.now()
	live := make(map[models.ProviderID]models.Token)
	for id, t := range s.load(ctx) {
		if !t.Expired(now) {
			live[id] = t
		}
	}
	return live
}

// CaptureFromRedirect parses a redirect's query and fragment and, when well-formed, persists
// the token it carries. It returns the persisted token set and whether a token was captured.
func (s *Store) CaptureFromRedirect(ctx context.Context, search, hash string) (map[models.ProviderID]models.Token, bool) {
	t, err := ParseRedirect(search, hash, s.now())
	if err != nil {
		s.logger.Debug("redirect carries no token", "error", err)
		return s.All(ctx), false
	}

	if err := s.Set(ctx, t.Provider, &t); err != nil {
		s.logger.Error("failed to persist captured token", "provider", t.Provider, "error", err)
		return s.All(ctx), false
	}

	s.logger.Info("captured token from redirect", "provider", t.Provider)
	return s.All(ctx), true
}

// CaptureLocation captures from loc and strips its query and fragment on success.
func (s *Store) CaptureLocation(ctx context.Context, loc Location) (map[models.ProviderID]models.Token, bool) {
	tokens, ok := s.CaptureFromRedirect(ctx, loc.Search(), loc.Hash())
	if ok {
		loc.Strip()
	}
	return tokens, ok
}

// load reads the persisted map, failing closed on any error.
func (s *Store) load(ctx context.Context) map[models.ProviderID]models.Token {
	tokens := make(map[models.ProviderID]models.Token)

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Error("failed to read tokens", "key", s.key, "error", err)
		return tokens
	}
	if !ok || raw == "" {
		return tokens
	}

	var records map[string]record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn(shared.ErrStorageCorruption.Error(), "key", s.key, "error", err)
		return tokens
	}

	for name, r := range records {
		id, err := models.ParseProviderID(name)
		if err != nil || r.AccessToken == "" {
			s.logger.Warn(shared.ErrStorageCorruption.Error(), "key", s.key, "provider", name)
			continue
		}
		tokens[id] = models.Token{
			Provider:     id,
			AccessToken:  r.AccessToken,
			TokenType:    r.TokenType,
			ExpiresAt:    r.ExpiresAt,
			RefreshToken: r.RefreshToken,
		}
	}
	return tokens
}

func (s *Store) save(ctx context.Context, tokens map[models.ProviderID]models.Token) error {
	now := s.now()
	records := make(map[string]record, len(tokens))
	for id, t := range tokens {
		r := record{
			AccessToken:  t.AccessToken,
			TokenType:    t.TokenType,
			ExpiresAt:    t.ExpiresAt,
			RefreshToken: t.RefreshToken,
		}
		if t.ExpiresAt != nil {
			r.ExpiresIn = max(int64(t.ExpiresAt.Sub(now)/time.Second), 0)
		}
		records[string(id)] = r
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}
