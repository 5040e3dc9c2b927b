package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
	tu "github.com/desertthunder/tunebridge/internal/testing"
)

// newTestRunner wires a fixture source holding playlist "pl-1" and a Spotify target whose
// catalog knows one of its songs. Both providers are connected.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, *services.FixedAdapter, *services.FixedAdapter) {
	t.Helper()

	fixture := services.NewFixedAdapter(models.Fixture, "")
	fixture.AddPlaylist(models.Playlist{ExternalID: "pl-1", Title: "Road Trip"},
		models.Song{Title: "Yesterday", Artist: "The Beatles", ExternalID: "fx-1"},
		models.Song{Title: "Unknown Song", Artist: "Nobody", ExternalID: "fx-2"},
	)
	fixture.AddPlaylist(models.Playlist{ExternalID: "pl-2", Title: "Chill"},
		models.Song{Title: "Bohemian Rhapsody", Artist: "Queen", ExternalID: "fx-3"},
	)

	spotify := services.NewFixedAdapter(models.Spotify, "")
	spotify.AddCatalog(models.Song{Title: "Yesterday", Artist: "The Beatles", ExternalID: "sp-1"})

	config := shared.DefaultConfig()
	config.Sync.Backoff = shared.Duration{Duration: 0}
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:   config,
		Adapters: []services.Adapter{fixture, spotify},
		Output:   output,
	})

	for _, id := range []models.ProviderID{models.Fixture, models.Spotify} {
		if _, err := runner.registry.Connect(context.Background(), id); err != nil {
			t.Fatalf("failed to connect %s: %v", id, err)
		}
	}
	runner.restored = true
	return runner, output, fixture, spotify
}

// run executes the CLI with args against r.
func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "tunebridge",
		Commands: r.register(),
		Writer:   r.output,
	}
	return app.Run(context.Background(), append([]string{"tunebridge"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			fixture := services.NewFixedAdapter(models.Fixture, "")

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Adapters:   []services.Adapter{fixture},
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if _, err := runner.registry.Adapter(models.Fixture); err != nil {
				t.Errorf("expected fixture adapter to be registered, got %v", err)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.tokens == nil || runner.engine == nil {
				t.Error("expected token store and engine to be created")
			}
		})

		t.Run("skips duplicate adapters", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Adapters: []services.Adapter{
					services.NewFixedAdapter(models.Fixture, "first"),
					services.NewFixedAdapter(models.Fixture, "second"),
				},
			})

			providers := runner.registry.Providers()
			if len(providers) != 1 {
				t.Fatalf("expected 1 provider, got %v", providers)
			}
			a, _ := runner.registry.Adapter(models.Fixture)
			if a.Name() != "first" {
				t.Errorf("expected first adapter to win, got %s", a.Name())
			}
		})
	})

	t.Run("BuildAdapters", func(t *testing.T) {
		t.Run("ignores placeholder credentials", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "your_spotify_client_id"
			config.Credentials.Deezer.AppID = ""
			config.Fixture.Path = ""

			adapters := BuildAdapters(config, &bytes.Buffer{}, shared.NewLogger(nil))
			if len(adapters) != 0 {
				t.Errorf("expected no adapters, got %d", len(adapters))
			}
		})

		t.Run("loads fixture", func(t *testing.T) {
			dir := t.TempDir()
			path := tu.MustWriteFile(t, dir, "fixture.json", `{"name": "Offline", "playlists": [{"id": "p", "title": "P", "songs": []}]}`)

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = ""
			config.Credentials.Deezer.AppID = ""
			config.Fixture.Path = path

			adapters := BuildAdapters(config, &bytes.Buffer{}, shared.NewLogger(nil))
			if len(adapters) != 1 {
				t.Fatalf("expected 1 adapter, got %d", len(adapters))
			}
			if adapters[0].ID() != models.Fixture || adapters[0].Name() != "Offline" {
				t.Errorf("unexpected adapter %s (%s)", adapters[0].ID(), adapters[0].Name())
			}
		})

		t.Run("skips unreadable fixture", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = ""
			config.Credentials.Deezer.AppID = ""
			config.Fixture.Path = filepath.Join(t.TempDir(), "missing.json")

			if adapters := BuildAdapters(config, &bytes.Buffer{}, shared.NewLogger(nil)); len(adapters) != 0 {
				t.Errorf("expected no adapters, got %d", len(adapters))
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "playlists", "songs", "search", "sync", "export", "serve"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %s", i, want[i], cmd.Name)
			}
		}
	})

	t.Run("provider", func(t *testing.T) {
		runner, _, _, _ := newTestRunner(t)

		tests := []struct {
			name string
			arg  string
			want error
		}{
			{name: "missing", arg: "", want: shared.ErrMissingArgument},
			{name: "unknown name", arg: "napster", want: shared.ErrInvalidArgument},
			{name: "not configured", arg: "deezer", want: shared.ErrUnknownProvider},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := runner.provider(tt.arg)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}

		t.Run("accepts configured provider", func(t *testing.T) {
			id, err := runner.provider("Spotify")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if id != models.Spotify {
				t.Errorf("expected spotify, got %s", id)
			}
		})
	})

	t.Run("connected", func(t *testing.T) {
		runner, _, _, _ := newTestRunner(t)
		if err := runner.registry.Disconnect(context.Background(), models.Spotify); err != nil {
			t.Fatalf("failed to disconnect: %v", err)
		}

		_, err := runner.connected(context.Background(), "spotify")
		if !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if !strings.Contains(err.Error(), "auth connect spotify") {
			t.Errorf("expected hint in error, got %v", err)
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "not implemented", err: shared.ErrNotImplemented, want: 0},
		{name: "missing argument", err: fmt.Errorf("wrapped: %w", shared.ErrMissingArgument), want: 2},
		{name: "invalid config", err: shared.ErrInvalidConfig, want: 2},
		{name: "unknown provider", err: shared.ErrUnknownProvider, want: 2},
		{name: "not connected", err: shared.ErrNotConnected, want: 3},
		{name: "token expired", err: shared.ErrTokenExpired, want: 3},
		{name: "empty source", err: shared.ErrEmptySource, want: 4},
		{name: "cancelled", err: shared.ErrCancelled, want: 4},
		{name: "timeout", err: shared.ErrTimeout, want: 5},
		{name: "malformed response", err: shared.ErrMalformedResponse, want: 5},
		{name: "other", err: errors.New("boom"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	t.Run("playlists", func(t *testing.T) {
		t.Run("lists as JSON", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "playlists", "--json", "fixture"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var playlists []models.Playlist
			if err := json.Unmarshal(output.Bytes(), &playlists); err != nil {
				t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
			}
			if len(playlists) != 2 || playlists[0].Title != "Road Trip" {
				t.Errorf("unexpected playlists %+v", playlists)
			}
		})

		t.Run("renders table", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "playlists", "fixture"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "Road Trip") {
				t.Errorf("expected playlist title in output, got %q", output.String())
			}
		})

		t.Run("requires connection", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)
			_ = runner.registry.Disconnect(context.Background(), models.Fixture)

			err := run(runner, "playlists", "fixture")
			if !errors.Is(err, shared.ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
		})
	})

	t.Run("songs", func(t *testing.T) {
		runner, output, _, _ := newTestRunner(t)

		if err := run(runner, "songs", "--id", "pl-1", "--format", "csv", "fixture"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.HasPrefix(result, "Position,ID,Title,Artist,Album") {
			t.Errorf("expected CSV header, got %q", result)
		}
		if !strings.Contains(result, "Yesterday") || !strings.Contains(result, "Unknown Song") {
			t.Errorf("expected both songs, got %q", result)
		}
	})

	t.Run("search", func(t *testing.T) {
		t.Run("found", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "search", "--title", "yesterday", "--artist", "the beatles", "spotify"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "sp-1") {
				t.Errorf("expected matched id, got %q", output.String())
			}
		})

		t.Run("not found", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "search", "--title", "Unknown Song", "--artist", "Nobody", "spotify"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "No match") {
				t.Errorf("expected no match message, got %q", output.String())
			}
		})
	})

	t.Run("sync run", func(t *testing.T) {
		t.Run("creates playlist on target", func(t *testing.T) {
			runner, output, _, spotify := newTestRunner(t)

			err := run(runner, "sync", "run", "--source", "fixture", "--id", "pl-1", "--target", "spotify", "--format", "json", "--quiet")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var result models.SyncResult
			if err := json.Unmarshal(output.Bytes(), &result); err != nil {
				t.Fatalf("expected JSON report, got %q: %v", output.String(), err)
			}
			if result.State != models.Completed {
				t.Errorf("expected Completed, got %s", result.State)
			}

			created := spotify.CreatedPlaylists()
			if len(created) != 1 {
				t.Fatalf("expected 1 created playlist, got %d", len(created))
			}
			title, ids, _ := spotify.CreatedPlaylist(created[0])
			if title != "Road Trip" || len(ids) != 1 || ids[0] != "sp-1" {
				t.Errorf("unexpected playlist %q %v", title, ids)
			}
		})

		t.Run("adds into existing playlist", func(t *testing.T) {
			runner, _, _, spotify := newTestRunner(t)

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "spotify", "--into", "spotify=sp-list", "-q")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := spotify.Library("sp-list"); len(got) != 1 || got[0] != "sp-1" {
				t.Errorf("expected sp-1 in sp-list, got %v", got)
			}
			if len(spotify.CreatedPlaylists()) != 0 {
				t.Error("expected no playlist to be created")
			}
		})

		t.Run("prints progress", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "spotify"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "Found 2 songs") {
				t.Errorf("expected progress in output, got %q", output.String())
			}
		})

		t.Run("rejects malformed into", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "spotify", "--into", "spotify")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("stages source and targets in the registry", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)
			if err := runner.registry.AddCompare(models.Fixture); err != nil {
				t.Fatalf("AddCompare failed: %v", err)
			}

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "spotify", "-t", "spotify", "-q")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if selected, ok := runner.registry.SelectedProvider(); !ok || selected != models.Fixture {
				t.Errorf("expected fixture selected, got %q", selected)
			}
			compare := runner.registry.CompareProviders()
			if len(compare) != 1 || compare[0] != models.Spotify {
				t.Errorf("expected compare set [spotify], got %v", compare)
			}
		})

		t.Run("rejects disconnected target", func(t *testing.T) {
			runner, _, _, spotify := newTestRunner(t)
			if err := runner.registry.Disconnect(context.Background(), models.Spotify); err != nil {
				t.Fatalf("Disconnect failed: %v", err)
			}

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "spotify", "-q")
			if !errors.Is(err, shared.ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
			if spotify.CallCount(services.OpSearch) != 0 {
				t.Error("expected no search against a disconnected target")
			}
		})

		t.Run("rejects source as target", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "pl-1", "-t", "fixture", "-q")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("returns job failure", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)

			err := run(runner, "sync", "run", "-s", "fixture", "--id", "missing", "-t", "spotify", "-q")
			if !errors.Is(err, shared.ErrEmptySource) {
				t.Errorf("expected ErrEmptySource, got %v", err)
			}
		})
	})

	t.Run("export", func(t *testing.T) {
		runner, output, _, _ := newTestRunner(t)
		dir := filepath.Join(t.TempDir(), "out")

		err := run(runner, "export", "--id", "pl-2", "--format", "csv", "--output", dir, "--rate", "100", "fixture")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		if !strings.Contains(output.String(), "Exported 1/1 playlists") {
			t.Errorf("expected summary, got %q", output.String())
		}
	})

	t.Run("auth", func(t *testing.T) {
		t.Run("status as JSON", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "auth", "status", "--json"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var status []connectionStatus
			if err := json.Unmarshal(output.Bytes(), &status); err != nil {
				t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
			}
			if len(status) != 2 {
				t.Fatalf("expected 2 providers, got %d", len(status))
			}
			for _, s := range status {
				if s.Status != models.Connected.String() {
					t.Errorf("expected %s connected, got %s", s.Provider, s.Status)
				}
			}
		})

		t.Run("disconnect then connect", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			if err := run(runner, "auth", "disconnect", "spotify"); err != nil {
				t.Fatalf("disconnect: %v", err)
			}
			if conn, _ := runner.registry.Connection(models.Spotify); conn.Status != models.Disconnected {
				t.Errorf("expected disconnected, got %s", conn.Status)
			}

			if err := run(runner, "auth", "connect", "spotify"); err != nil {
				t.Fatalf("connect: %v", err)
			}
			if conn, _ := runner.registry.Connection(models.Spotify); conn.Status != models.Connected {
				t.Errorf("expected connected, got %s", conn.Status)
			}
			if !strings.Contains(output.String(), "Connected to Spotify") {
				t.Errorf("unexpected output %q", output.String())
			}
			if !strings.Contains(output.String(), "… Connecting to Spotify\n") {
				t.Errorf("expected connecting transition echoed, got %q", output.String())
			}
		})

		t.Run("connect failure echoes the error", func(t *testing.T) {
			runner, output, _, spotify := newTestRunner(t)
			if err := runner.registry.Disconnect(context.Background(), models.Spotify); err != nil {
				t.Fatalf("Disconnect failed: %v", err)
			}
			spotify.Inject(services.Failure{Op: services.OpConnect, Err: shared.ErrAuthFailed})

			err := run(runner, "auth", "connect", "spotify")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Fatalf("expected ErrAuthFailed, got %v", err)
			}
			if !strings.Contains(output.String(), "✗ Spotify:") {
				t.Errorf("expected error transition echoed, got %q", output.String())
			}

			output.Reset()
			if err := runner.registry.Disconnect(context.Background(), models.Fixture); err != nil {
				t.Fatalf("Disconnect failed: %v", err)
			}
			if output.Len() != 0 {
				t.Errorf("expected no echo outside auth connect, got %q", output.String())
			}
		})

		t.Run("capture stores token and strips url", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)

			err := run(runner, "auth", "capture", "http://127.0.0.1:3000/?service=deezer#access_token=abc&expires=3600")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			tok := runner.tokens.Get(context.Background(), models.Deezer)
			if tok == nil || tok.AccessToken != "abc" {
				t.Fatalf("expected stored deezer token, got %+v", tok)
			}
			if !strings.Contains(output.String(), "Clean URL: http://127.0.0.1:3000/\n") {
				t.Errorf("expected stripped url, got %q", output.String())
			}
		})

		t.Run("capture without token", func(t *testing.T) {
			runner, _, _, _ := newTestRunner(t)

			err := run(runner, "auth", "capture", "http://127.0.0.1:3000/")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("setup", func(t *testing.T) {
		t.Run("config", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)
			path := filepath.Join(t.TempDir(), "conf", "config.toml")

			if err := run(runner, "setup", "config", "--config", path); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, path)

			if err := run(runner, "setup", "config", "--config", path); err != nil {
				t.Fatalf("expected no error on rerun, got %v", err)
			}
			if !strings.Contains(output.String(), "already exists") {
				t.Errorf("expected existing config message, got %q", output.String())
			}
		})

		t.Run("database", func(t *testing.T) {
			runner, output, _, _ := newTestRunner(t)
			runner.config.Database.Path = filepath.Join(t.TempDir(), "db", "tunebridge.db")

			if err := run(runner, "setup", "database", "--config", filepath.Join(t.TempDir(), "none.toml")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, runner.config.Database.Path)
			if !strings.Contains(output.String(), "✓ 0001") {
				t.Errorf("expected applied migration, got %q", output.String())
			}
		})
	})
}
