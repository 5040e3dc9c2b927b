package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/registry"
	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/tasks"
	"github.com/desertthunder/tunebridge/internal/tokens"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	tokens     *tokens.Store
	registry   *registry.Registry
	engine     *tasks.Engine
	restored   bool
	echo       atomic.Value // models.ProviderID whose transitions are printed
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      repositories.KeyValueStore
	Adapters   []services.Adapter
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Store == nil {
		opts.Store = repositories.NewMemoryStore()
	}

	store := tokens.NewStore(opts.Store, opts.Config.Storage.Key, opts.Logger)
	reg := registry.New(store, opts.Logger)
	for _, a := range opts.Adapters {
		if err := reg.Register(a); err != nil {
			opts.Logger.Warn("skipping provider", "provider", a.ID(), "error", err)
		}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		tokens:     store,
		registry:   reg,
		engine:     tasks.NewEngine(reg, opts.Config.Sync, opts.Logger),
	}
	reg.Watch(r.connectionChanged)
	return r
}

// connectionChanged logs every registry transition and echoes those of the provider
// an auth command is driving.
func (r *Runner) connectionChanged(c models.ProviderConnection) {
	r.logger.Debug("connection changed", "provider", c.Provider, "status", c.Status)

	if id, _ := r.echo.Load().(models.ProviderID); id != c.Provider {
		return
	}
	switch c.Status {
	case models.Connecting:
		r.writePlain("… Connecting to %s\n", c.Provider.DisplayName())
	case models.ConnectionError:
		r.writePlain("✗ %s: %v\n", c.Provider.DisplayName(), c.LastError)
	}
}

// BuildAdapters creates an adapter for every provider with usable settings in cfg.
func BuildAdapters(cfg *shared.Config, out io.Writer, logger *log.Logger) []services.Adapter {
	matcher := services.NewMatcher(cfg.Matching)
	auth := services.NewBrowserAuthorizer(cfg.Server, out, logger)

	var adapters []services.Adapter
	if configured(cfg.Credentials.Spotify.ClientID) {
		a, err := services.NewSpotifyAdapter(cfg.Credentials.Spotify, auth, matcher, shared.WithLogger(logger, "provider", models.Spotify))
		if err != nil {
			logger.Warn("spotify disabled", "error", err)
		} else {
			adapters = append(adapters, a)
		}
	}

	if configured(cfg.Credentials.Deezer.AppID) {
		a, err := services.NewDeezerAdapter(cfg.Credentials.Deezer, auth, matcher, shared.WithLogger(logger, "provider", models.Deezer))
		if err != nil {
			logger.Warn("deezer disabled", "error", err)
		} else {
			adapters = append(adapters, a)
		}
	}

	if cfg.Fixture.Path != "" {
		a, err := services.LoadFixture(cfg.Fixture.Path, matcher)
		if err != nil {
			logger.Warn("fixture disabled", "error", err)
		} else {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

// configured reports whether a credential was filled in, ignoring the example placeholders.
func configured(v string) bool {
	return v != "" && !strings.HasPrefix(v, "your_")
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, songsCommand, searchCommand, syncCommand, exportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// restore reconnects providers with persisted tokens once per process.
func (r *Runner) restore(ctx context.Context) {
	if r.restored {
		return
	}
	r.restored = true

	connected, err := r.registry.Restore(ctx)
	if err != nil {
		r.logger.Warn("some providers could not be restored", "error", err)
	}
	r.logger.Debug("restored providers", "connected", connected)
}

// provider parses a provider name and checks an adapter is configured for it.
func (r *Runner) provider(name string) (models.ProviderID, error) {
	if name == "" {
		return "", fmt.Errorf("%w: provider (one of %v)", shared.ErrMissingArgument, r.registry.Providers())
	}

	id, err := models.ParseProviderID(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if _, err := r.registry.Adapter(id); err != nil {
		return "", fmt.Errorf("%w: %s is not configured", err, id)
	}
	return id, nil
}

// connected returns the adapter of a provider restored from its persisted token.
func (r *Runner) connected(ctx context.Context, name string) (services.Adapter, error) {
	id, err := r.provider(name)
	if err != nil {
		return nil, err
	}

	r.restore(ctx)
	if !slices.Contains(r.registry.ConnectedProviders(), id) {
		return nil, fmt.Errorf("%w: %s (run 'tunebridge auth connect %s')", shared.ErrNotConnected, id, id)
	}
	return r.registry.Adapter(id)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
