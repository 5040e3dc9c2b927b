package tasks

import (
	"fmt"

	"github.com/desertthunder/tunebridge/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	JobID    string            // Sync job, empty for exports
	Phase    Phase             // Operation phase
	Provider models.ProviderID // Provider the step talks to
	Step     int               // Current step number within phase
	Total    int               // Total steps in this phase
	Message  string            // Human-readable message for display
	Data     any               // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	SearchTracks
	Transfer
	CreatePlaylist
	ExportPlaylist
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case SearchTracks:
		return "search_tracks"
	case Transfer:
		return "transfer"
	case CreatePlaylist:
		return "create_playlist"
	case ExportPlaylist:
		return "export_playlist"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchingSourceUpdate(id models.ProviderID, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchSource,
		Provider: id,
		Step:     1,
		Total:    1,
		Message:  fmt.Sprintf("Fetching source playlist %s from %s...", playlistID, id.DisplayName()),
	}
}

func foundSongsUpdate(id models.ProviderID, songs []models.Song) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchSource,
		Provider: id,
		Step:     1,
		Total:    1,
		Message:  fmt.Sprintf("Found %d songs", len(songs)),
		Data:     songs,
	}
}

func searchTracksUpdate(id models.ProviderID, step, total int, song models.Song, outcome models.SyncOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:    SearchTracks,
		Provider: id,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] %s: %s", step, total, song, outcome),
		Data:     outcome,
	}
}

func createTrackUpdate(id models.ProviderID, step, total int, song models.Song, outcome models.SyncOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:    Transfer,
		Provider: id,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] creating %s: %s", step, total, song, outcome),
		Data:     outcome,
	}
}

func transferUpdate(id models.ProviderID, step, total int, song models.Song, outcome models.SyncOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:    Transfer,
		Provider: id,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] adding %s: %s", step, total, song, outcome),
		Data:     outcome,
	}
}

func createDestinationUpdate(id models.ProviderID, title string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    CreatePlaylist,
		Provider: id,
		Step:     0,
		Total:    1,
		Message:  fmt.Sprintf("Creating playlist %q on %s with %d tracks...", title, id.DisplayName(), tracks),
	}
}

func createPlaylistUpdate(id models.ProviderID, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    CreatePlaylist,
		Provider: id,
		Step:     1,
		Total:    1,
		Message:  fmt.Sprintf("Playlist created on %s (ID: %s)", id.DisplayName(), playlistID),
		Data:     playlistID,
	}
}

func doneUpdate(result *models.SyncResult) ProgressUpdate {
	msg := fmt.Sprintf("Sync %s", result.State)
	if result.Reason != "" {
		msg += fmt.Sprintf(" (%s)", result.Reason)
	}
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    result,
	}
}

func exportingPlaylistUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, title, reason),
	}
}
