package main

import (
	"context"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/tasks"
)

// Export writes playlists of a connected provider to files and prints a summary.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	adapter, err := r.connected(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			r.writePlain("%s\n", u.Message)
		}
	}()

	result, err := r.engine.Export(ctx, progress, adapter.ID(), cmd.StringSlice("id"), opts)
	close(progress)
	wg.Wait()
	if result == nil {
		return err
	}

	r.writePlain("\n✓ Exported %d/%d playlists to %s\n", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("✗ %d playlists failed\n", result.FailedExports)
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return err
}
