package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/desertthunder/tunebridge/internal/models"
)

// targets returns the providers of r in result order.
func targets(r *models.SyncResult) []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(r.Targets))
	for _, t := range r.Targets {
		ids = append(ids, t.Provider)
	}
	return ids
}

// SyncResultToCSV writes one row per source song with an outcome column per target.
func SyncResultToCSV(r *models.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	ids := targets(r)

	headers := []string{"Position", "Title", "Artist"}
	for _, id := range ids {
		headers = append(headers, id.DisplayName())
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range r.Songs {
		record := []string{strconv.Itoa(s.Index + 1), s.Song.Title, s.Song.Artist}
		for _, id := range ids {
			record = append(record, s.Outcomes[id].String())
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SyncResultToMarkdown renders a summary table per target followed by a song table.
func SyncResultToMarkdown(r *models.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	ids := targets(r)

	fmt.Fprintf(&buf, "# %s\n\n", r.Title)
	fmt.Fprintf(&buf, "**Source**: %s (%s)\n", r.Source.DisplayName(), r.PlaylistID)
	fmt.Fprintf(&buf, "**State**: %s", r.State)
	if r.Reason != "" {
		fmt.Fprintf(&buf, " (%s)", r.Reason)
	}
	buf.WriteString("\n\n")

	if len(r.Targets) > 0 {
		buf.WriteString("## Targets\n\n")
		buf.WriteString("| Provider | Policy | Playlist | Matched | Created | Unmatched | Errors |\n")
		buf.WriteString("|---|---|---|---|---|---|---|\n")
		for _, t := range r.Targets {
			fmt.Fprintf(&buf, "| %s | %s | %s | %d | %d | %d | %d |\n",
				t.Provider.DisplayName(), t.Policy, t.PlaylistID,
				t.Summary.Matched, t.Summary.Created, t.Summary.Unmatched, t.Summary.Errors)
		}
		buf.WriteString("\n")
	}

	if len(r.Songs) > 0 {
		buf.WriteString("## Songs\n\n| # | Song |")
		for _, id := range ids {
			fmt.Fprintf(&buf, " %s |", id.DisplayName())
		}
		buf.WriteString("\n|---|---|")
		for range ids {
			buf.WriteString("---|")
		}
		buf.WriteString("\n")
		for _, s := range r.Songs {
			fmt.Fprintf(&buf, "| %d | %s |", s.Index+1, s.Song)
			for _, id := range ids {
				fmt.Fprintf(&buf, " %s |", s.Outcomes[id])
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// SyncResultToText renders a plain summary line per target.
func SyncResultToText(r *models.SyncResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Sync %s: %s", r.State, r.Title)
	if r.Reason != "" {
		fmt.Fprintf(&buf, " (%s)", r.Reason)
	}
	buf.WriteString("\n")

	for _, t := range r.Targets {
		fmt.Fprintf(&buf, "%s: %d matched, %d created, %d unmatched, %d errors",
			t.Provider.DisplayName(), t.Summary.Matched, t.Summary.Created, t.Summary.Unmatched, t.Summary.Errors)
		if t.PlaylistID != "" {
			fmt.Fprintf(&buf, " -> %s", t.PlaylistID)
		}
		if t.Error != "" {
			fmt.Fprintf(&buf, " [%s]", t.Error)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// SyncResult renders r in format; [FormatText] is the default.
func SyncResult(r *models.SyncResult, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return MarshalJSON(r, true)
	case FormatCSV:
		return SyncResultToCSV(r)
	case FormatMarkdown:
		return SyncResultToMarkdown(r)
	default:
		return SyncResultToText(r)
	}
}
