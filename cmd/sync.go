package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/tasks"
	"github.com/desertthunder/tunebridge/internal/ui"
)

// SyncRun copies a playlist from the source provider into every target and prints the report.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	source, err := r.provider(cmd.String("source"))
	if err != nil {
		return err
	}

	var targets []models.ProviderID
	for _, name := range cmd.StringSlice("target") {
		id, err := r.provider(name)
		if err != nil {
			return err
		}
		targets = append(targets, id)
	}

	if format := cmd.String("format"); format != "table" {
		if _, err := formatter.ParseFormat(format); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
	}

	into, err := r.parseInto(cmd.StringSlice("into"))
	if err != nil {
		return err
	}

	r.restore(ctx)
	if targets, err = r.stage(source, targets); err != nil {
		return err
	}
	req := tasks.SyncRequest{
		Source:        source,
		PlaylistID:    cmd.String("id"),
		Targets:       targets,
		Title:         cmd.String("title"),
		TargetContext: into,
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			if cmd.Bool("quiet") || u.Phase == tasks.Done {
				continue
			}
			r.writePlain("%s\n", ui.Progress(u))
		}
	}()

	job, err := r.engine.Start(ctx, req, progress)
	if err != nil {
		close(progress)
		wg.Wait()
		return err
	}
	result := job.Wait()
	close(progress)
	wg.Wait()

	if err := r.writeResult(result, cmd.String("format")); err != nil {
		return err
	}
	return result.Err
}

// stage records source as the registry selection and targets as its compare set, replacing
// any earlier set. The returned targets are the compare set in order, without duplicates.
func (r *Runner) stage(source models.ProviderID, targets []models.ProviderID) ([]models.ProviderID, error) {
	if err := r.registry.Select(source); err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}
	for _, id := range r.registry.CompareProviders() {
		r.registry.RemoveCompare(id)
	}
	for _, id := range targets {
		if err := r.registry.AddCompare(id); err != nil {
			return nil, fmt.Errorf("target %s: %w", id, err)
		}
	}
	return r.registry.CompareProviders(), nil
}

// writeResult renders a sync report as a table or in one of the export formats.
func (r *Runner) writeResult(result *models.SyncResult, format string) error {
	if format == "" || format == "table" {
		return r.writePlain("%s\n", ui.SyncResult(result))
	}

	format, err := formatter.ParseFormat(format)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	data, err := formatter.SyncResult(result, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// parseInto reads provider=playlistID pairs.
func (r *Runner) parseInto(values []string) (map[models.ProviderID]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	into := make(map[models.ProviderID]string, len(values))
	for _, v := range values {
		name, playlist, ok := strings.Cut(v, "=")
		if !ok || playlist == "" {
			return nil, fmt.Errorf("%w: --into %q, expected provider=playlistID", shared.ErrInvalidArgument, v)
		}
		id, err := r.provider(name)
		if err != nil {
			return nil, err
		}
		into[id] = playlist
	}
	return into, nil
}
