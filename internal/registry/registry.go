package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// TokenStore persists one token per provider.
type TokenStore interface {
	Get(ctx context.Context, id models.ProviderID) *models.Token
	Set(ctx context.Context, id models.ProviderID, t *models.Token) error
}

// Watcher receives every connection transition.
type Watcher func(models.ProviderConnection)

type entry struct {
	adapter services.Adapter
	conn    models.ProviderConnection
	// gen changes on every Disconnect so an in-flight Connect can tell it was superseded.
	gen int
}

// Registry holds the adapters and their connection state machines.
type Registry struct {
	tokens TokenStore
	logger *log.Logger

	mu       sync.Mutex
	order    []models.ProviderID
	entries  map[models.ProviderID]*entry
	selected models.ProviderID
	compare  []models.ProviderID
	watchers []Watcher
}

// New creates an empty registry.
func New(tokens TokenStore, logger *log.Logger) *Registry {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Registry{
		tokens:  tokens,
		logger:  logger,
		entries: make(map[models.ProviderID]*entry),
	}
}

// Register adds an adapter in the Disconnected state.
func (r *Registry) Register(a services.Adapter) error {
	id := a.ID()

	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: provider %s registered twice", shared.ErrInvalidArgument, id)
	}
	r.entries[id] = &entry{adapter: a, conn: models.ProviderConnection{Provider: id, Status: models.Disconnected}}
	r.order = append(r.order, id)
	r.mu.Unlock()

	if n, ok := a.(services.TokenNotifier); ok {
		n.OnTokenChange(func(t models.Token) { r.refreshed(id, t) })
	}
	return nil
}

// Watch registers fn for every later transition.
func (r *Registry) Watch(fn Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Providers lists registered providers in registration order.
func (r *Registry) Providers() []models.ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Adapter returns the adapter for id.
func (r *Registry) Adapter(id models.ProviderID) (services.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	return e.adapter, nil
}

// Connection returns a snapshot of id's connection.
func (r *Registry) Connection(id models.ProviderID) (models.ProviderConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return models.ProviderConnection{}, false
	}
	return snapshot(e.conn), true
}

// Connections returns snapshots of every connection in registration order.
func (r *Registry) Connections() []models.ProviderConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]models.ProviderConnection, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, snapshot(r.entries[id].conn))
	}
	return conns
}

// ConnectedProviders lists the Connected providers in registration order.
func (r *Registry) ConnectedProviders() []models.ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []models.ProviderID
	for _, id := range r.order {
		if r.entries[id].conn.Status == models.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}

// Connect logs id in. It is a no-op when already Connected and fails with
// [shared.ErrConnectInProgress] while another Connect for id is pending.
func (r *Registry) Connect(ctx context.Context, id models.ProviderID) (models.ProviderConnection, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return models.ProviderConnection{}, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	switch e.conn.Status {
	case models.Connected:
		conn := snapshot(e.conn)
		r.mu.Unlock()
		return conn, nil
	case models.Connecting:
		r.mu.Unlock()
		return models.ProviderConnection{}, fmt.Errorf("%w: %s", shared.ErrConnectInProgress, id)
	}
	gen := e.gen
	pending := r.transition(e, models.Connecting, nil, nil)
	r.mu.Unlock()
	r.notify(pending)

	r.logger.Info("connecting", "provider", id)
	token, err := e.adapter.Connect(ctx)
	if err == nil && token == nil {
		err = fmt.Errorf("%w: %s returned no token", shared.ErrAuthFailed, id)
	}

	r.mu.Lock()
	if e.gen != gen {
		r.mu.Unlock()
		r.logger.Warn("connect superseded by disconnect", "provider", id)
		return models.ProviderConnection{}, fmt.Errorf("%w: %s disconnected during login", shared.ErrLoginCancelled, id)
	}
	if err != nil {
		pending = r.fail(e, err)
		r.mu.Unlock()
		r.notify(pending)
		r.logger.Error("connect failed", "provider", id, "error", err)
		return models.ProviderConnection{}, err
	}
	pending = r.transition(e, models.Connected, token, nil)
	conn := snapshot(e.conn)
	if err := r.tokens.Set(ctx, id, token); err != nil {
		r.logger.Warn("token not persisted", "provider", id, "error", err)
	}
	r.mu.Unlock()
	r.notify(pending)
	r.logger.Info("connected", "provider", id)
	return conn, nil
}

// Disconnect calls the adapter's Disconnect, clears the token and moves id to Disconnected
// whatever the adapter reports. Disconnecting twice is the same as once.
func (r *Registry) Disconnect(ctx context.Context, id models.ProviderID) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	// The state flips before the token is cleared so a concurrent refresh cannot outlive it.
	e.gen++
	var pending []models.ProviderConnection
	if e.conn.Status != models.Disconnected || e.conn.Token != nil || e.conn.LastError != nil {
		pending = r.transition(e, models.Disconnected, nil, nil)
	}
	r.mu.Unlock()
	r.notify(pending)

	adapterErr := e.adapter.Disconnect(ctx)
	if adapterErr != nil {
		r.logger.Warn("adapter disconnect failed", "provider", id, "error", adapterErr)
	}
	storeErr := r.tokens.Set(ctx, id, nil)

	return errors.Join(adapterErr, storeErr)
}

// Restore resumes every provider with a stored token. A provider becomes Connected only when
// the adapter confirms the session; a rejected token is cleared. Providers whose status check
// failed for other reasons keep their token and stay Disconnected.
func (r *Registry) Restore(ctx context.Context) ([]models.ProviderID, error) {
	var (
		restored []models.ProviderID
		errs     []error
	)
	for _, id := range r.Providers() {
		token := r.tokens.Get(ctx, id)
		if token == nil {
			continue
		}

		r.mu.Lock()
		e := r.entries[id]
		if e.conn.Status != models.Disconnected {
			r.mu.Unlock()
			continue
		}
		gen := e.gen
		pending := r.transition(e, models.Connecting, nil, nil)
		r.mu.Unlock()
		r.notify(pending)

		ok, err := r.resume(ctx, e.adapter, *token)

		r.mu.Lock()
		if e.gen != gen {
			r.mu.Unlock()
			continue
		}
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("%w: %s session not confirmed", shared.ErrNotAuthenticated, id)
			}
			pending = r.fail(e, err)
			r.mu.Unlock()
			r.notify(pending)

			if services.IsAuthError(err) {
				r.logger.Info("stored token rejected", "provider", id)
				if serr := r.tokens.Set(ctx, id, nil); serr != nil {
					errs = append(errs, serr)
				}
			} else {
				errs = append(errs, err)
			}
			continue
		}

		pending = r.transition(e, models.Connected, token, nil)
		r.mu.Unlock()
		r.notify(pending)
		restored = append(restored, id)
		r.logger.Info("restored", "provider", id)
	}
	return restored, errors.Join(errs...)
}

func (r *Registry) resume(ctx context.Context, a services.Adapter, token models.Token) (bool, error) {
	if err := a.Resume(ctx, token); err != nil {
		return false, err
	}
	return a.Status(ctx)
}

// Select makes id the sync source. It must be Connected.
func (r *Registry) Select(id models.ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireConnected(id); err != nil {
		return err
	}
	r.selected = id
	r.compare = slices.DeleteFunc(r.compare, func(c models.ProviderID) bool { return c == id })
	return nil
}

// SelectedProvider returns the selected source provider.
func (r *Registry) SelectedProvider() (models.ProviderID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected, r.selected != ""
}

// AddCompare adds a Connected provider other than the selection to the compare set.
func (r *Registry) AddCompare(id models.ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireConnected(id); err != nil {
		return err
	}
	if id == r.selected {
		return fmt.Errorf("%w: %s is the selected source", shared.ErrInvalidArgument, id)
	}
	if !slices.Contains(r.compare, id) {
		r.compare = append(r.compare, id)
	}
	return nil
}

// RemoveCompare drops id from the compare set.
func (r *Registry) RemoveCompare(id models.ProviderID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compare = slices.DeleteFunc(r.compare, func(c models.ProviderID) bool { return c == id })
}

// CompareProviders returns the compare set in insertion order.
func (r *Registry) CompareProviders() []models.ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.compare)
}

func (r *Registry) requireConnected(id models.ProviderID) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	if e.conn.Status != models.Connected {
		return fmt.Errorf("%w: %s", shared.ErrNotConnected, id)
	}
	return nil
}

// refreshed persists a token the adapter obtained on its own. Tokens arriving for a provider
// that is not Connected are dropped; r.mu is held across the write so Disconnect cannot
// interleave between the status check and the store.
func (r *Registry) refreshed(id models.ProviderID, t models.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[id]
	if e.conn.Status != models.Connected {
		r.logger.Debug("dropping refreshed token", "provider", id, "status", e.conn.Status)
		return
	}
	e.conn.Token = &t
	if err := r.tokens.Set(context.Background(), id, &t); err != nil {
		r.logger.Warn("refreshed token not persisted", "provider", id, "error", err)
	}
}

// fail records the Error step followed by Disconnected; callers hold r.mu.
func (r *Registry) fail(e *entry, err error) []models.ProviderConnection {
	pending := r.transition(e, models.ConnectionError, nil, err)
	return append(pending, r.transition(e, models.Disconnected, nil, err)...)
}

// transition moves e to status and returns the snapshot to deliver; callers hold r.mu.
func (r *Registry) transition(e *entry, status models.ConnectionStatus, token *models.Token, err error) []models.ProviderConnection {
	e.conn.Status = status
	e.conn.Token = token
	e.conn.LastError = err

	if status != models.Connected {
		id := e.conn.Provider
		if r.selected == id {
			r.selected = ""
		}
		r.compare = slices.DeleteFunc(r.compare, func(c models.ProviderID) bool { return c == id })
	}
	return []models.ProviderConnection{snapshot(e.conn)}
}

func (r *Registry) notify(conns []models.ProviderConnection) {
	if len(conns) == 0 {
		return
	}
	r.mu.Lock()
	watchers := slices.Clone(r.watchers)
	r.mu.Unlock()

	for _, c := range conns {
		for _, w := range watchers {
			w(c)
		}
	}
}

func snapshot(c models.ProviderConnection) models.ProviderConnection {
	if c.Token != nil {
		t := *c.Token
		c.Token = &t
	}
	return c
}
