package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: {provider}_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max: 10)
	RateLimit  float64 // Source requests per second (default: 5)
}

// exportJob is one fetched playlist waiting to be written.
type exportJob struct {
	playlist models.Playlist
	songs    []models.Song
}

// Export writes playlists of one connected provider to disk concurrently with rate limiting and progress tracking.
//
// An empty ids exports every playlist. Songs are fetched sequentially under the rate limiter;
// files are written by a worker pool. A manifest summarizing the export is written last.
func (e *Engine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	provider models.ProviderID,
	ids []string,
	opts ExportOpts,
) (*models.BulkExportResult, error) {
	src, err := e.connected(provider)
	if err != nil {
		return nil, err
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("%s_export_%d", provider, time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	all, err := call(ctx, e, services.OpPlaylists, func(ctx context.Context) ([]models.Playlist, error) {
		return src.Playlists(ctx)
	})
	if err != nil {
		return nil, err
	}
	playlists, missing := selectPlaylists(all, ids)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &models.BulkExportResult{
		Provider:        provider,
		Format:          format,
		TotalPlaylists:  len(playlists) + len(missing),
		OutputDirectory: opts.OutputDir,
		Results:         make([]models.PlaylistExportResult, 0, len(playlists)),
	}
	logger := shared.WithLogger(e.logger, "provider", provider, "format", format)
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(playlists))
	results := make(chan models.PlaylistExportResult, result.TotalPlaylists)
	for _, id := range missing {
		results <- models.PlaylistExportResult{PlaylistID: id, Title: id, Error: "playlist not found"}
	}

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, format, opts.OutputDir)
	}

	go func() {
		defer close(jobs)
		for i, p := range playlists {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(playlists), p.Title))

			songs, err := call(ctx, e, services.OpSongs, func(ctx context.Context) ([]models.Song, error) {
				return src.Songs(ctx, p.ExternalID)
			})
			if err != nil {
				logger.Warn("failed to fetch playlist", "playlist", p.ExternalID, "error", err)
				results <- models.PlaylistExportResult{
					PlaylistID: p.ExternalID,
					Title:      p.Title,
					Error:      fmt.Sprintf("failed to fetch playlist: %v", err),
				}
				continue
			}
			jobs <- exportJob{playlist: p, songs: songs}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, result.TotalPlaylists, res.Title, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, result.TotalPlaylists, res.Title, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted after %d playlists: %w", completed, err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	logger.Info("export finished", "exported", result.SuccessfulExports, "failed", result.FailedExports, "dir", opts.OutputDir)
	return result, nil
}

// exportWorker is a worker goroutine that writes playlists from the jobs channel.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- models.PlaylistExportResult,
	format, dir string,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := models.PlaylistExportResult{
			PlaylistID: job.playlist.ExternalID,
			Title:      job.playlist.Title,
			Songs:      len(job.songs),
		}
		export := &models.PlaylistExport{Playlist: job.playlist, Songs: job.songs}
		export.Playlist.TrackCount = len(job.songs)

		files, err := formatter.WriteExport(export, format, dir)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Files = files
			res.Success = true
		}
		results <- res
	}
}

// connected returns the adapter of a connected provider.
func (e *Engine) connected(id models.ProviderID) (services.Adapter, error) {
	for _, c := range e.providers.ConnectedProviders() {
		if c == id {
			return e.providers.Adapter(id)
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrNotConnected, id)
}

// selectPlaylists keeps the playlists named by ids in ids order and returns the ids
// the provider does not list.
func selectPlaylists(all []models.Playlist, ids []string) ([]models.Playlist, []string) {
	if len(ids) == 0 {
		return all, nil
	}

	byID := make(map[string]models.Playlist, len(all))
	for _, p := range all {
		byID[p.ExternalID] = p
	}

	var selected []models.Playlist
	var missing []string
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			selected = append(selected, p)
		} else {
			missing = append(missing, id)
		}
	}
	return selected, missing
}
