// package tasks implements playlist synchronization between music providers.
//
// The core abstraction is Engine, which runs sync jobs and playlist exports.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const (
	defaultCallTimeout = 15 * time.Second
	defaultBackoff     = 500 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

// Providers resolves connected adapters, usually a registry.
type Providers interface {
	Adapter(id models.ProviderID) (services.Adapter, error)
	ConnectedProviders() []models.ProviderID
}

// SyncRequest describes one sync job.
//
// TargetContext names an existing playlist per target; targets listed there receive
// songs with AddToLibrary instead of a new playlist.
type SyncRequest struct {
	Source        models.ProviderID
	PlaylistID    string
	Targets       []models.ProviderID
	Title         string
	TargetContext map[models.ProviderID]string
}

// Engine runs sync jobs against the providers' adapters.
type Engine struct {
	providers Providers
	cfg       shared.SyncConfig
	logger    *log.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewEngine creates an engine. Zero durations in cfg fall back to defaults.
func NewEngine(providers Providers, cfg shared.SyncConfig, logger *log.Logger) *Engine {
	if cfg.CallTimeout.Duration <= 0 {
		cfg.CallTimeout.Duration = defaultCallTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff.Duration <= 0 {
		cfg.Backoff.Duration = defaultBackoff
	}
	if cfg.MaxBackoff.Duration < cfg.Backoff.Duration {
		cfg.MaxBackoff.Duration = max(defaultMaxBackoff, cfg.Backoff.Duration)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{providers: providers, cfg: cfg, logger: logger, jobs: make(map[string]*Job)}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Start validates req and runs the job in the background. Cancelling ctx requests
// cancellation the same way [Job.Cancel] does.
func (e *Engine) Start(ctx context.Context, req SyncRequest, progress chan<- ProgressUpdate) (*Job, error) {
	source, targets, err := e.resolve(req)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:      shared.GenerateID(),
		Request: req,
		state:   models.Idle,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()

	go e.run(jobCtx, job, source, targets, progress)
	return job, nil
}

// Run starts a job and waits for it. The error is the job's failure, if any.
func (e *Engine) Run(ctx context.Context, req SyncRequest, progress chan<- ProgressUpdate) (*models.SyncResult, error) {
	job, err := e.Start(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	result := job.Wait()
	return result, result.Err
}

// Job returns a job that has not been acknowledged yet.
func (e *Engine) Job(id string) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

// Acknowledge discards a terminal job.
func (e *Engine) Acknowledge(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	if !ok {
		return fmt.Errorf("%w: no job %s", shared.ErrInvalidArgument, id)
	}
	if !j.State().Terminal() {
		return fmt.Errorf("%w: job %s is %s", shared.ErrInvalidArgument, id, j.State())
	}
	delete(e.jobs, id)
	return nil
}

func (e *Engine) resolve(req SyncRequest) (services.Adapter, map[models.ProviderID]services.Adapter, error) {
	if req.PlaylistID == "" {
		return nil, nil, fmt.Errorf("%w: source playlist id", shared.ErrMissingArgument)
	}
	if len(req.Targets) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one target", shared.ErrMissingArgument)
	}

	connected := e.providers.ConnectedProviders()
	lookup := func(id models.ProviderID) (services.Adapter, error) {
		if !slices.Contains(connected, id) {
			return nil, fmt.Errorf("%w: %s", shared.ErrNotConnected, id)
		}
		return e.providers.Adapter(id)
	}

	source, err := lookup(req.Source)
	if err != nil {
		return nil, nil, err
	}

	targets := make(map[models.ProviderID]services.Adapter, len(req.Targets))
	for _, id := range req.Targets {
		if id == req.Source {
			return nil, nil, fmt.Errorf("%w: target %s is the source", shared.ErrInvalidArgument, id)
		}
		if _, dup := targets[id]; dup {
			return nil, nil, fmt.Errorf("%w: target %s listed twice", shared.ErrInvalidArgument, id)
		}
		a, err := lookup(id)
		if err != nil {
			return nil, nil, err
		}
		targets[id] = a
	}
	return source, targets, nil
}

// callResult carries one attempt's value back to its caller.
type callResult[T any] struct {
	v   T
	err error
}

// call runs fn with the per-call timeout, retrying transport errors and timeouts with
// exponential backoff. A call still running past the timeout is abandoned; its late value
// goes to a channel nobody reads.
func call[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	backoff := e.cfg.Backoff.Duration
	for n := 1; ; n++ {
		v, err := attempt(ctx, e, op, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !retryable(err) || n >= e.cfg.MaxAttempts {
			return v, err
		}

		e.logger.Debug("retrying", "op", op, "attempt", n, "backoff", backoff, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
		backoff = min(backoff*2, e.cfg.MaxBackoff.Duration)
	}
}

func attempt[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout.Duration)
	defer cancel()

	result := make(chan callResult[T], 1)
	go func() {
		v, err := fn(callCtx)
		result <- callResult[T]{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-result:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s after %s: %w", shared.ErrTimeout, op, e.cfg.CallTimeout.Duration, r.err)
		}
		return r.v, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w: %s after %s", shared.ErrTimeout, op, e.cfg.CallTimeout.Duration)
	}
}

func retryable(err error) bool {
	if services.IsAuthError(err) || errors.Is(err, shared.ErrMalformedResponse) {
		return false
	}
	return errors.Is(err, shared.ErrTimeout) || errors.Is(err, shared.ErrTransport)
}

// reason turns a failed call into an Error outcome reason.
func reason(err error) string {
	if errors.Is(err, shared.ErrTimeout) {
		return "Timeout"
	}
	return err.Error()
}

func (e *Engine) run(ctx context.Context, job *Job, source services.Adapter, targets map[models.ProviderID]services.Adapter, progress chan<- ProgressUpdate) {
	req := job.Request
	result := &models.SyncResult{
		JobID:      job.ID,
		Source:     req.Source,
		PlaylistID: req.PlaylistID,
		Title:      req.Title,
		StartedAt:  time.Now(),
	}
	logger := shared.WithLogger(e.logger, "job", job.ID)
	send := func(u ProgressUpdate) {
		u.JobID = job.ID
		e.sendProgress(progress, u)
	}
	finish := func(state models.SyncState, why models.FailureReason, err error) {
		result.State = state
		result.Reason = why
		result.Err = err
		result.FinishedAt = time.Now()
		logger.Info("sync finished", "state", state, "reason", why, "duration", result.FinishedAt.Sub(result.StartedAt))
		send(doneUpdate(result))
		job.finish(result)
	}
	defer job.cancel()

	if !job.advance(models.Fetching) {
		finish(models.Failed, models.Cancelled, shared.ErrCancelled)
		return
	}
	logger.Info("sync started", "source", req.Source, "playlist", req.PlaylistID, "targets", req.Targets)
	send(fetchingSourceUpdate(req.Source, req.PlaylistID))

	songs, err := call(ctx, e, services.OpSongs, func(ctx context.Context) ([]models.Song, error) {
		return source.Songs(ctx, req.PlaylistID)
	})
	switch {
	case ctx.Err() != nil:
		finish(models.Failed, models.Cancelled, shared.ErrCancelled)
		return
	case err != nil:
		logger.Error("source unavailable", "error", err)
		finish(models.Failed, models.SourceUnavailable, err)
		return
	case len(songs) == 0:
		finish(models.Failed, models.EmptySource, fmt.Errorf("%w: %s playlist %s", shared.ErrEmptySource, req.Source, req.PlaylistID))
		return
	}
	send(foundSongsUpdate(req.Source, songs))

	if result.Title == "" {
		result.Title = e.sourceTitle(ctx, source, req.PlaylistID)
	}

	result.Songs = make([]models.SongResult, len(songs))
	for i, s := range songs {
		result.Songs[i] = models.SongResult{Index: i, Song: s, Outcomes: make(map[models.ProviderID]models.SyncOutcome, len(targets))}
	}

	if !job.advance(models.Matching) {
		finish(models.Failed, models.Cancelled, shared.ErrCancelled)
		return
	}

	ids := slices.Clone(req.Targets)
	outcomes := make(map[models.ProviderID][]models.SyncOutcome, len(ids))
	for _, id := range ids {
		outcomes[id] = make([]models.SyncOutcome, len(songs))
	}

	var matching errgroup.Group
	for _, id := range ids {
		target, out := targets[id], outcomes[id]
		matching.Go(func() error {
			e.match(ctx, target, songs, out, send)
			return nil
		})
	}
	matching.Wait()

	if ctx.Err() != nil || !job.advance(models.Transferring) {
		finish(models.Failed, models.Cancelled, shared.ErrCancelled)
		return
	}

	// Transfers run to completion regardless of the caller.
	transferCtx := context.WithoutCancel(ctx)
	results := make([]models.TargetResult, len(ids))
	var transfers errgroup.Group
	for i, id := range ids {
		transfers.Go(func() error {
			results[i] = e.transfer(transferCtx, targets[id], result.Title, req.TargetContext, songs, outcomes[id], send)
			return nil
		})
	}
	transfers.Wait()

	for i, id := range ids {
		for j := range result.Songs {
			o := outcomes[id][j]
			result.Songs[j].Outcomes[id] = o
			results[i].Summary.Add(o)
		}
	}
	result.Targets = results
	finish(models.Completed, "", nil)
}

// match searches every song on one target in source order.
func (e *Engine) match(ctx context.Context, target services.Adapter, songs []models.Song, out []models.SyncOutcome, send func(ProgressUpdate)) {
	id := target.ID()
	for i, song := range songs {
		if ctx.Err() != nil {
			return
		}

		found, err := call(ctx, e, services.OpSearch, func(ctx context.Context) (*models.Song, error) {
			return target.Search(ctx, song)
		})

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("search failed", "provider", id, "song", song, "error", err)
			out[i] = models.Errored(reason(err))
		case found == nil || found.ExternalID == "":
			out[i] = models.Unmatched()
		default:
			out[i] = models.Matched(found.ExternalID)
		}
		send(searchTracksUpdate(id, i+1, len(songs), song, out[i]))
	}
}

// transfer applies the target's transfer policy and refines out in place.
func (e *Engine) transfer(ctx context.Context, target services.Adapter, title string, contexts map[models.ProviderID]string, songs []models.Song, out []models.SyncOutcome, send func(ProgressUpdate)) models.TargetResult {
	id := target.ID()
	tr := models.TargetResult{Provider: id, Policy: models.PolicyAdd}
	targetContext, hasContext := contexts[id]
	if !hasContext && e.cfg.CreatePlaylists {
		tr.Policy = models.PolicyCreate
	} else {
		tr.PlaylistID = targetContext
	}

	if creator, ok := target.(services.TrackCreator); ok && e.cfg.CreateTracks && creator.CreatesTracks() {
		for i, song := range songs {
			if out[i].Kind != models.OutcomeUnmatched {
				continue
			}
			newID, err := call(ctx, e, services.OpCreateTrack, func(ctx context.Context) (string, error) {
				return creator.CreateTrack(ctx, song)
			})
			if err != nil {
				out[i] = models.Errored(reason(err))
			} else {
				out[i] = models.Created(newID)
			}
			send(createTrackUpdate(id, i+1, len(songs), song, out[i]))
		}
	}

	if tr.Policy == models.PolicyAdd {
		for i, song := range songs {
			if !out[i].Transferable() {
				continue
			}
			extID := out[i].ExternalID
			_, err := call(ctx, e, services.OpAddToLibrary, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, target.AddToLibrary(ctx, extID, targetContext)
			})
			if err != nil {
				e.logger.Warn("add failed", "provider", id, "song", song, "error", err)
				out[i] = models.Errored(reason(err))
			}
			send(transferUpdate(id, i+1, len(songs), song, out[i]))
		}
		return tr
	}

	var ids []string
	for _, o := range out {
		if o.Transferable() {
			ids = append(ids, o.ExternalID)
		}
	}
	if len(ids) == 0 {
		return tr
	}

	send(createDestinationUpdate(id, title, len(ids)))

	// Creation is not idempotent, so it gets a single bounded attempt.
	playlistID, err := attempt(ctx, e, services.OpCreatePlaylist, func(ctx context.Context) (string, error) {
		return target.CreatePlaylist(ctx, title, ids)
	})
	tr.PlaylistID = playlistID
	if err != nil {
		e.logger.Error("create playlist failed", "provider", id, "error", err)
		tr.Error = err.Error()
		for i := range out {
			if out[i].Transferable() {
				out[i] = models.Errored(reason(err))
			}
		}
		return tr
	}

	send(createPlaylistUpdate(id, playlistID))
	return tr
}

// sourceTitle looks up the source playlist's title for a created playlist.
func (e *Engine) sourceTitle(ctx context.Context, source services.Adapter, playlistID string) string {
	playlists, err := call(ctx, e, services.OpPlaylists, func(ctx context.Context) ([]models.Playlist, error) {
		return source.Playlists(ctx)
	})
	if err == nil {
		for _, p := range playlists {
			if p.ExternalID == playlistID && p.Title != "" {
				return p.Title
			}
		}
	}
	return fmt.Sprintf("%s playlist %s", source.Name(), playlistID)
}
