package formatter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/desertthunder/tunebridge/internal/models"
)

func testSyncResult() *models.SyncResult {
	return &models.SyncResult{
		JobID:      "job-1",
		Source:     models.Spotify,
		PlaylistID: "pl-1",
		Title:      "Mix",
		State:      models.Completed,
		Songs: []models.SongResult{
			{Index: 0, Song: models.Song{Title: "I love you", Artist: "Johnny Halliday"}, Outcomes: map[models.ProviderID]models.SyncOutcome{
				models.Deezer: models.Matched("dz-1"),
			}},
			{Index: 1, Song: models.Song{Title: "Yesterday", Artist: "The Beatles"}, Outcomes: map[models.ProviderID]models.SyncOutcome{
				models.Deezer: models.Unmatched(),
			}},
		},
		Targets: []models.TargetResult{
			{Provider: models.Deezer, Policy: models.PolicyCreate, PlaylistID: "dz-pl", Summary: models.Summary{Matched: 1, Unmatched: 1}},
		},
	}
}

func TestSyncResult(t *testing.T) {
	r := testSyncResult()

	t.Run("CSV", func(t *testing.T) {
		data, err := SyncResult(r, FormatCSV)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		want := []string{
			"Position,Title,Artist,Deezer",
			"1,I love you,Johnny Halliday,matched(dz-1)",
			"2,Yesterday,The Beatles,unmatched",
		}
		if len(lines) != len(want) {
			t.Fatalf("expected %d lines, got %v", len(want), lines)
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
			}
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := SyncResult(r, FormatMarkdown)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Mix",
			"**Source**: Spotify (pl-1)",
			"**State**: completed",
			"| Deezer | create | dz-pl | 1 | 0 | 1 | 0 |",
			"| 1 | Johnny Halliday - I love you | matched(dz-1) |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := SyncResult(r, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Sync completed: Mix") {
			t.Errorf("missing header, got: %s", output)
		}
		if !strings.Contains(output, "Deezer: 1 matched, 0 created, 1 unmatched, 0 errors -> dz-pl") {
			t.Errorf("missing target line, got: %s", output)
		}
	})

	t.Run("failed", func(t *testing.T) {
		failed := &models.SyncResult{Title: "Mix", State: models.Failed, Reason: models.EmptySource}

		data, err := SyncResult(failed, FormatText)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(string(data), "Sync failed: Mix (EmptySource)") {
			t.Errorf("unexpected output %s", data)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := SyncResult(r, FormatJSON)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var decoded struct {
			State string `json:"state"`
			Songs []struct {
				Outcomes map[string]struct {
					Kind       string `json:"kind"`
					ExternalID string `json:"external_id"`
				} `json:"outcomes"`
			} `json:"songs"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.State != "completed" {
			t.Errorf("expected completed, got %s", decoded.State)
		}
		if got := decoded.Songs[0].Outcomes["deezer"]; got.Kind != "matched" || got.ExternalID != "dz-1" {
			t.Errorf("unexpected outcome %+v", got)
		}
	})
}
