package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/ui"
)

// Playlists lists the playlists of a connected provider.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	adapter, err := r.connected(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	playlists, err := adapter.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	r.logger.Debug("listed playlists", "provider", adapter.ID(), "count", len(playlists))

	if cmd.Bool("json") {
		if playlists == nil {
			playlists = []models.Playlist{}
		}
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", ui.Playlists(adapter.ID(), playlists))
}

// Songs lists the songs of one playlist.
func (r *Runner) Songs(ctx context.Context, cmd *cli.Command) error {
	adapter, err := r.connected(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	id := cmd.String("id")
	songs, err := adapter.Songs(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}

	format := cmd.String("format")
	if format == "" || format == "table" {
		return r.writePlain("%s\n", ui.Songs(songs))
	}

	format, err = formatter.ParseFormat(format)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	export := &models.PlaylistExport{
		Playlist: models.Playlist{Provider: adapter.ID(), ExternalID: id, Title: id, TrackCount: len(songs)},
		Songs:    songs,
	}
	if export.Songs == nil {
		export.Songs = []models.Song{}
	}

	var data []byte
	switch format {
	case formatter.FormatCSV:
		data, err = formatter.ExportToCSV(export)
	case formatter.FormatMarkdown:
		data, err = formatter.ExportToMarkdown(export)
	case formatter.FormatText:
		data, err = formatter.ExportToText(export)
	default:
		return r.writeJSON(export, true)
	}
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// Search looks one song up on a provider using the configured matcher.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	adapter, err := r.connected(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	query := models.Song{Title: cmd.String("title"), Artist: cmd.String("artist")}
	found, err := adapter.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(found, true)
	}
	if found == nil {
		return r.writePlain("✗ No match for %s on %s\n", query, adapter.Name())
	}
	return r.writePlain("✓ %s (%s)\n", found, found.ExternalID)
}
