package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/tasks"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.help).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.title.MarginBottom(0).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// Connections renders one row per provider connection.
func Connections(conns []models.ProviderConnection, selected models.ProviderID) string {
	t := newTable("Provider", "Status", "Expires", "Last error")
	for _, c := range conns {
		name := c.Provider.DisplayName()
		if c.Provider == selected {
			name += " *"
		}

		expires := ""
		if c.Token != nil && c.Token.ExpiresAt != nil {
			expires = c.Token.ExpiresAt.Local().Format("2006-01-02 15:04")
		} else if c.Token != nil {
			expires = "never"
		}

		lastErr := ""
		if c.LastError != nil {
			lastErr = c.LastError.Error()
		}
		t.Row(name, styles.Status(c.Status), expires, lastErr)
	}
	return t.String()
}

// Playlists renders a playlist table.
func Playlists(provider models.ProviderID, playlists []models.Playlist) string {
	if len(playlists) == 0 {
		return styles.Help(fmt.Sprintf("No playlists on %s", provider.DisplayName()))
	}

	t := newTable("ID", "Title", "Tracks")
	for _, p := range playlists {
		t.Row(p.ExternalID, p.Title, strconv.Itoa(p.TrackCount))
	}
	return styles.Title(fmt.Sprintf("%s playlists (%d)", provider.DisplayName(), len(playlists))) + "\n" + t.String()
}

// Songs renders a numbered song table.
func Songs(songs []models.Song) string {
	if len(songs) == 0 {
		return styles.Help("No songs")
	}

	t := newTable("#", "Title", "Artist", "Album", "ID")
	for i, s := range songs {
		t.Row(strconv.Itoa(i+1), s.Title, s.Artist, s.Album, s.ExternalID)
	}
	return t.String()
}

// SyncResult renders a colored summary of a finished job with its per-song breakdown.
func SyncResult(r *models.SyncResult) string {
	var b strings.Builder

	if r.State == models.Failed {
		msg := fmt.Sprintf("✗ Sync failed (%s)", r.Reason)
		if r.Err != nil {
			msg += ": " + r.Err.Error()
		}
		b.WriteString(styles.Err(msg))
		return b.String()
	}

	b.WriteString(styles.Title(fmt.Sprintf("✓ Synced %q from %s", r.Title, r.Source.DisplayName())))
	b.WriteString("\n")

	for _, t := range r.Targets {
		line := fmt.Sprintf("%s: %d matched, %d created, %d unmatched, %d errors",
			t.Provider.DisplayName(), t.Summary.Matched, t.Summary.Created, t.Summary.Unmatched, t.Summary.Errors)
		if t.PlaylistID != "" {
			line += " -> " + t.PlaylistID
		}
		switch {
		case t.Error != "":
			b.WriteString(styles.Err(line + " (" + t.Error + ")"))
		case t.Summary.Errors > 0 || t.Summary.Unmatched > 0:
			b.WriteString(styles.Warn(line))
		default:
			b.WriteString(styles.OK(line))
		}
		b.WriteString("\n")
	}

	if len(r.Songs) == 0 {
		return b.String()
	}

	headers := []string{"#", "Song"}
	for _, t := range r.Targets {
		headers = append(headers, t.Provider.DisplayName())
	}
	tbl := newTable(headers...)
	for _, s := range r.Songs {
		row := []string{strconv.Itoa(s.Index + 1), s.Song.String()}
		for _, t := range r.Targets {
			row = append(row, styles.Outcome(s.Outcomes[t.Provider]))
		}
		tbl.Row(row...)
	}
	b.WriteString(tbl.String())
	return b.String()
}

// Progress renders a single progress update as a status line.
func Progress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Done:
		if r, ok := u.Data.(*models.SyncResult); ok && r.State == models.Failed {
			return styles.Err(u.Message)
		}
		return styles.OK(u.Message)
	case tasks.SearchTracks, tasks.Transfer:
		if o, ok := u.Data.(models.SyncOutcome); ok && o.Kind == models.OutcomeError {
			return styles.Warn(u.Message)
		}
		return u.Message
	default:
		return styles.Help(u.Message)
	}
}
