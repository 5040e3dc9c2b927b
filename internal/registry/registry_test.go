package registry

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/tokens"
)

type recorder struct {
	mu    sync.Mutex
	conns []models.ProviderConnection
}

func (r *recorder) watch(c models.ProviderConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, c)
}

func (r *recorder) statuses(id models.ProviderID) []models.ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConnectionStatus
	for _, c := range r.conns {
		if c.Provider == id {
			out = append(out, c.Status)
		}
	}
	return out
}

func equalStatuses(a, b []models.ConnectionStatus) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fixture struct {
	reg     *Registry
	store   *tokens.Store
	spotify *services.FixedAdapter
	deezer  *services.FixedAdapter
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	store := tokens.NewStore(repositories.NewMemoryStore(), "", logger)

	f := &fixture{
		reg:     New(store, logger),
		store:   store,
		spotify: services.NewFixedAdapter(models.Spotify, ""),
		deezer:  services.NewFixedAdapter(models.Deezer, ""),
		events:  &recorder{},
	}
	for _, a := range []services.Adapter{f.spotify, f.deezer} {
		if err := f.reg.Register(a); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	f.reg.Watch(f.events.watch)
	return f
}

func (f *fixture) connect(t *testing.T, ids ...models.ProviderID) {
	t.Helper()
	for _, id := range ids {
		if _, err := f.reg.Connect(context.Background(), id); err != nil {
			t.Fatalf("Connect(%s) failed: %v", id, err)
		}
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("Register", func(t *testing.T) {
		f := newFixture(t)
		if err := f.reg.Register(services.NewFixedAdapter(models.Spotify, "")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for duplicate, got %v", err)
		}

		providers := f.reg.Providers()
		if len(providers) != 2 || providers[0] != models.Spotify || providers[1] != models.Deezer {
			t.Errorf("unexpected providers %v", providers)
		}
		for _, c := range f.reg.Connections() {
			if c.Status != models.Disconnected {
				t.Errorf("expected %s Disconnected, got %s", c.Provider, c.Status)
			}
		}
		if _, err := f.reg.Adapter("tidal"); !errors.Is(err, shared.ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})

	t.Run("Connect", func(t *testing.T) {
		t.Run("success persists token", func(t *testing.T) {
			f := newFixture(t)

			conn, err := f.reg.Connect(ctx, models.Deezer)
			if err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			if conn.Status != models.Connected || conn.Token == nil {
				t.Fatalf("unexpected connection %+v", conn)
			}

			stored := f.store.Get(ctx, models.Deezer)
			if stored == nil || stored.AccessToken != conn.Token.AccessToken {
				t.Errorf("expected token persisted, got %+v", stored)
			}

			want := []models.ConnectionStatus{models.Connecting, models.Connected}
			if got := f.events.statuses(models.Deezer); !equalStatuses(got, want) {
				t.Errorf("transitions = %v, want %v", got, want)
			}
		})

		t.Run("no-op when connected", func(t *testing.T) {
			f := newFixture(t)
			f.connect(t, models.Deezer)
			f.connect(t, models.Deezer)

			if n := f.deezer.CallCount(services.OpConnect); n != 1 {
				t.Errorf("expected one adapter connect, got %d", n)
			}
		})

		t.Run("failure goes through error to disconnected", func(t *testing.T) {
			f := newFixture(t)
			f.deezer.Inject(services.Failure{Op: services.OpConnect, Times: 1, Err: shared.ErrLoginCancelled})

			_, err := f.reg.Connect(ctx, models.Deezer)
			if !errors.Is(err, shared.ErrLoginCancelled) {
				t.Fatalf("expected ErrLoginCancelled, got %v", err)
			}

			want := []models.ConnectionStatus{models.Connecting, models.ConnectionError, models.Disconnected}
			if got := f.events.statuses(models.Deezer); !equalStatuses(got, want) {
				t.Errorf("transitions = %v, want %v", got, want)
			}

			conn, _ := f.reg.Connection(models.Deezer)
			if conn.Status != models.Disconnected || !errors.Is(conn.LastError, shared.ErrLoginCancelled) {
				t.Errorf("unexpected connection %+v", conn)
			}
			if f.store.Get(ctx, models.Deezer) != nil {
				t.Error("expected no token persisted")
			}

			f.connect(t, models.Deezer)
			conn, _ = f.reg.Connection(models.Deezer)
			if conn.LastError != nil {
				t.Errorf("expected LastError cleared after retry, got %v", conn.LastError)
			}
		})

		t.Run("in progress", func(t *testing.T) {
			f := newFixture(t)
			entered := make(chan struct{})
			release := make(chan struct{})
			f.spotify.BeforeCall = func(ctx context.Context, op string) error {
				if op == services.OpConnect {
					close(entered)
					<-release
				}
				return nil
			}

			done := make(chan error, 1)
			go func() {
				_, err := f.reg.Connect(ctx, models.Spotify)
				done <- err
			}()
			<-entered

			if _, err := f.reg.Connect(ctx, models.Spotify); !errors.Is(err, shared.ErrConnectInProgress) {
				t.Errorf("expected ErrConnectInProgress, got %v", err)
			}
			close(release)
			if err := <-done; err != nil {
				t.Errorf("first Connect failed: %v", err)
			}
		})

		t.Run("disconnect during login", func(t *testing.T) {
			f := newFixture(t)
			entered := make(chan struct{})
			release := make(chan struct{})
			f.spotify.BeforeCall = func(ctx context.Context, op string) error {
				if op == services.OpConnect {
					close(entered)
					<-release
				}
				return nil
			}

			done := make(chan error, 1)
			go func() {
				_, err := f.reg.Connect(ctx, models.Spotify)
				done <- err
			}()
			<-entered

			if err := f.reg.Disconnect(ctx, models.Spotify); err != nil {
				t.Fatalf("Disconnect failed: %v", err)
			}
			close(release)

			if err := <-done; !errors.Is(err, shared.ErrLoginCancelled) {
				t.Errorf("expected superseded login to be cancelled, got %v", err)
			}
			conn, _ := f.reg.Connection(models.Spotify)
			if conn.Status != models.Disconnected {
				t.Errorf("expected Disconnected, got %s", conn.Status)
			}
			if f.store.Get(ctx, models.Spotify) != nil {
				t.Error("expected no token persisted")
			}
		})

		t.Run("unknown provider", func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.reg.Connect(ctx, "tidal"); !errors.Is(err, shared.ErrUnknownProvider) {
				t.Errorf("expected ErrUnknownProvider, got %v", err)
			}
		})
	})

	t.Run("Disconnect is idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, models.Spotify, models.Deezer)

		if err := f.reg.Disconnect(ctx, models.Deezer); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		once, _ := f.reg.Connection(models.Deezer)
		eventsAfterOnce := len(f.events.statuses(models.Deezer))

		if err := f.reg.Disconnect(ctx, models.Deezer); err != nil {
			t.Fatalf("second Disconnect failed: %v", err)
		}
		twice, _ := f.reg.Connection(models.Deezer)

		if once.Status != models.Disconnected || twice.Status != models.Disconnected || twice.Token != nil {
			t.Errorf("unexpected state once=%+v twice=%+v", once, twice)
		}
		if len(f.events.statuses(models.Deezer)) != eventsAfterOnce {
			t.Error("expected no transition from the second disconnect")
		}
		if f.store.Get(ctx, models.Deezer) != nil {
			t.Error("expected token cleared")
		}
		if f.store.Get(ctx, models.Spotify) == nil {
			t.Error("expected other provider's token untouched")
		}
	})

	t.Run("Disconnect with failing adapter still disconnects", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, models.Deezer)
		f.deezer.Inject(services.Failure{Op: services.OpDisconnect, Err: shared.ErrTransport})

		if err := f.reg.Disconnect(ctx, models.Deezer); !errors.Is(err, shared.ErrTransport) {
			t.Errorf("expected adapter error reported, got %v", err)
		}
		conn, _ := f.reg.Connection(models.Deezer)
		if conn.Status != models.Disconnected || f.store.Get(ctx, models.Deezer) != nil {
			t.Errorf("expected Disconnected without token, got %+v", conn)
		}
	})

	t.Run("selection and compare set", func(t *testing.T) {
		f := newFixture(t)

		if err := f.reg.Select(models.Spotify); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if err := f.reg.AddCompare(models.Deezer); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}

		f.connect(t, models.Spotify, models.Deezer)
		if err := f.reg.Select(models.Spotify); err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if err := f.reg.AddCompare(models.Spotify); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected selected provider rejected, got %v", err)
		}
		if err := f.reg.AddCompare(models.Deezer); err != nil {
			t.Fatalf("AddCompare failed: %v", err)
		}
		f.reg.AddCompare(models.Deezer)
		if got := f.reg.CompareProviders(); len(got) != 1 || got[0] != models.Deezer {
			t.Errorf("unexpected compare set %v", got)
		}

		if err := f.reg.Disconnect(ctx, models.Deezer); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if got := f.reg.CompareProviders(); len(got) != 0 {
			t.Errorf("expected disconnected provider removed from compare set, got %v", got)
		}
		if err := f.reg.AddCompare(models.Deezer); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected disconnected provider rejected as target, got %v", err)
		}

		if err := f.reg.Disconnect(ctx, models.Spotify); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if _, ok := f.reg.SelectedProvider(); ok {
			t.Error("expected selection cleared on disconnect")
		}
	})

	t.Run("selecting a compared provider moves it out of the compare set", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, models.Spotify, models.Deezer)
		f.reg.Select(models.Spotify)
		f.reg.AddCompare(models.Deezer)

		if err := f.reg.Select(models.Deezer); err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if id, _ := f.reg.SelectedProvider(); id != models.Deezer {
			t.Errorf("expected deezer selected, got %s", id)
		}
		if got := f.reg.CompareProviders(); len(got) != 0 {
			t.Errorf("expected empty compare set, got %v", got)
		}

		f.reg.RemoveCompare(models.Spotify)
		if got := f.reg.ConnectedProviders(); len(got) != 2 {
			t.Errorf("expected both connected, got %v", got)
		}
	})

	t.Run("Restore", func(t *testing.T) {
		t.Run("confirmed session", func(t *testing.T) {
			f := newFixture(t)
			f.store.Set(ctx, models.Deezer, &models.Token{Provider: models.Deezer, AccessToken: "saved", TokenType: "Bearer"})

			restored, err := f.reg.Restore(ctx)
			if err != nil {
				t.Fatalf("Restore failed: %v", err)
			}
			if len(restored) != 1 || restored[0] != models.Deezer {
				t.Errorf("unexpected restored %v", restored)
			}
			conn, _ := f.reg.Connection(models.Deezer)
			if conn.Status != models.Connected || conn.Token == nil || conn.Token.AccessToken != "saved" {
				t.Errorf("unexpected connection %+v", conn)
			}
			if n := f.spotify.CallCount(services.OpResume); n != 0 {
				t.Errorf("expected no resume without stored token, got %d", n)
			}
		})

		t.Run("rejected token is cleared", func(t *testing.T) {
			f := newFixture(t)
			f.store.Set(ctx, models.Deezer, &models.Token{Provider: models.Deezer, AccessToken: "saved"})
			f.deezer.Inject(services.Failure{Op: services.OpResume, Err: shared.ErrTokenExpired})

			restored, err := f.reg.Restore(ctx)
			if err != nil || len(restored) != 0 {
				t.Fatalf("expected nothing restored without error, got %v, %v", restored, err)
			}
			conn, _ := f.reg.Connection(models.Deezer)
			if conn.Status != models.Disconnected {
				t.Errorf("expected Disconnected, got %s", conn.Status)
			}
			if f.store.Get(ctx, models.Deezer) != nil {
				t.Error("expected rejected token cleared")
			}
		})

		t.Run("transport failure keeps token", func(t *testing.T) {
			f := newFixture(t)
			f.store.Set(ctx, models.Deezer, &models.Token{Provider: models.Deezer, AccessToken: "saved"})
			f.deezer.Inject(services.Failure{Op: services.OpStatus, Err: shared.ErrTransport})

			_, err := f.reg.Restore(ctx)
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
			conn, _ := f.reg.Connection(models.Deezer)
			if conn.Status != models.Disconnected {
				t.Errorf("expected Disconnected, got %s", conn.Status)
			}
			if f.store.Get(ctx, models.Deezer) == nil {
				t.Error("expected token kept")
			}
		})
	})

	t.Run("refreshed tokens are persisted", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		store := tokens.NewStore(repositories.NewMemoryStore(), "", logger)
		reg := New(store, logger)
		adapter := &notifyingAdapter{FixedAdapter: services.NewFixedAdapter(models.Spotify, "")}
		if err := reg.Register(adapter); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if _, err := reg.Connect(ctx, models.Spotify); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}

		expiry := time.Now().Add(time.Hour)
		adapter.fn(models.Token{Provider: models.Spotify, AccessToken: "fresh", ExpiresAt: &expiry})

		if got := store.Get(ctx, models.Spotify); got == nil || got.AccessToken != "fresh" {
			t.Errorf("expected refreshed token persisted, got %+v", got)
		}
		conn, _ := reg.Connection(models.Spotify)
		if conn.Token == nil || conn.Token.AccessToken != "fresh" {
			t.Errorf("expected connection token updated, got %+v", conn.Token)
		}
	})

	t.Run("refresh after disconnect is dropped", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		store := tokens.NewStore(repositories.NewMemoryStore(), "", logger)
		reg := New(store, logger)
		adapter := &notifyingAdapter{FixedAdapter: services.NewFixedAdapter(models.Spotify, "")}
		if err := reg.Register(adapter); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if _, err := reg.Connect(ctx, models.Spotify); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := reg.Disconnect(ctx, models.Spotify); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}

		expiry := time.Now().Add(time.Hour)
		adapter.fn(models.Token{Provider: models.Spotify, AccessToken: "late", ExpiresAt: &expiry})

		if got := store.Get(ctx, models.Spotify); got != nil {
			t.Errorf("expected no token after disconnect, got %+v", got)
		}
		conn, _ := reg.Connection(models.Spotify)
		if conn.Status != models.Disconnected || conn.Token != nil {
			t.Errorf("expected Disconnected without token, got %s %+v", conn.Status, conn.Token)
		}
	})

	t.Run("concurrent refresh and disconnect leave no token", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		store := tokens.NewStore(repositories.NewMemoryStore(), "", logger)
		reg := New(store, logger)
		adapter := &notifyingAdapter{FixedAdapter: services.NewFixedAdapter(models.Spotify, "")}
		if err := reg.Register(adapter); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		for i := range 20 {
			if _, err := reg.Connect(ctx, models.Spotify); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				adapter.fn(models.Token{Provider: models.Spotify, AccessToken: "refreshed"})
			}()
			go func() {
				defer wg.Done()
				reg.Disconnect(ctx, models.Spotify)
			}()
			wg.Wait()

			if got := store.Get(ctx, models.Spotify); got != nil {
				t.Fatalf("round %d: token survived disconnect: %+v", i, got)
			}
		}
	})
}

type notifyingAdapter struct {
	*services.FixedAdapter
	fn func(models.Token)
}

func (n *notifyingAdapter) OnTokenChange(fn func(models.Token)) { n.fn = fn }
