package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/repositories"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/desertthunder/fanlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// countCacheTTL bounds how long a track count preview is reused.
const countCacheTTL = 7 * 24 * time.Hour

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The Spotify stack is built lazily by [Runner.connect] so commands that only
// touch local state (setup, logout, history) work without a login.
type Runner struct {
	config      *shared.Config
	configPath  string
	baseURL     string
	service     services.Service
	auth        *services.SpotifyAuth
	tokens      *services.TokenProvider
	fetcher     *services.Fetcher
	api         *services.APIService
	engine      tasks.Engine
	db          *sql.DB
	runs        *repositories.RunRepository
	counts      *repositories.TrackCountRepository
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	progress    io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// BaseURL overrides the Web API base URL.
	BaseURL    string
	Service    services.Service
	Auth       *services.SpotifyAuth
	API        *services.APIService
	Engine     tasks.Engine
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Progress receives build and count progress lines. Defaults to stderr.
	Progress io.Writer
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
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		baseURL:     opts.BaseURL,
		service:     opts.Service,
		auth:        opts.Auth,
		api:         opts.API,
		engine:      opts.Engine,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		progress:    opts.Progress,
		openBrowser: shared.OpenBrowser,
	}
	if opts.DB != nil {
		r.useDatabase(opts.DB)
	}
	return r
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, artistsCommand, countsCommand, buildCommand,
		historyCommand, cacheCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// setup is the root Before hook: it loads the config named by --config,
// applies .env overrides and sets the log level.
func (r *Runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.ErrorLevel)
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	if err := shared.ApplyEnv(config, ".env"); err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// connect builds the Spotify client stack from config unless one was injected.
func (r *Runner) connect() error {
	if r.engine != nil {
		return nil
	}

	if r.service == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}

		spotify := r.config.Credentials.Spotify
		if !spotify.HasCredential() {
			return fmt.Errorf("%w: run `fanlist auth login` first", shared.ErrAuthRequired)
		}

		r.tokens = services.NewTokenProvider(services.TokenProviderOpts{
			OAuth: services.NewOAuthConfig(spotify.ClientID, spotify.RedirectURI),
			Credential: services.Credential{
				AccessToken:  spotify.AccessToken,
				RefreshToken: spotify.RefreshToken,
				ExpiresAt:    spotify.ExpiresAt,
			},
			HTTPClient: r.httpClient,
			OnChange:   r.saveCredential,
			Logger:     r.logger,
		})
		r.fetcher = services.NewFetcher(services.FetcherOpts{
			Credentials:       r.tokens,
			HTTPClient:        r.httpClient,
			RequestsPerSecond: r.config.Build.RequestsPerSecond,
			MaxAttempts:       r.config.Build.MaxAttempts,
			Logger:            r.logger,
		})
		r.service = services.NewSpotifyService(r.fetcher, r.baseURL, r.logger)
		if r.api == nil {
			r.api = services.NewAPIService(r.baseURL, r.fetcher)
		}
	}

	var (
		runs   tasks.RunRecorder
		counts tasks.CountCache
	)
	if err := r.openDatabase(); err != nil {
		r.logger.Warn("build history disabled", "error", err)
	} else {
		runs = r.runs
		counts = repositories.NewCountCacheAdapter(r.counts, countCacheTTL, r.logger)
	}

	r.engine = tasks.NewPlaylistEngine(r.service, runs, counts, r.logger)
	return nil
}

// openDatabase opens and migrates the configured database once.
func (r *Runner) openDatabase() error {
	if r.db != nil {
		return nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	r.useDatabase(db)
	return nil
}

func (r *Runner) useDatabase(db *sql.DB) {
	r.db = db
	r.runs = repositories.NewRunRepository(db)
	r.counts = repositories.NewTrackCountRepository(db)
}

// Close releases the database handle.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// saveCredential stores c in the config and writes it to the config file when one is known.
//
// Called by the token provider after every refresh and after a failed refresh clears the credential.
func (r *Runner) saveCredential(c services.Credential) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	r.config.Credentials.Spotify.SetCredential(c.AccessToken, c.RefreshToken, c.ExpiresAt)
	if r.configPath == "" {
		return nil
	}

	if err := r.persistCredential(c); err != nil {
		return err
	}
	r.logger.Debug("credential saved", "path", r.configPath)
	return nil
}

// persistCredential rewrites only the credential fields of the config file.
// Values that came from the environment stay out of the file.
func (r *Runner) persistCredential(c services.Credential) error {
	file, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	file.Credentials.Spotify.SetCredential(c.AccessToken, c.RefreshToken, c.ExpiresAt)
	if err := shared.SaveConfig(r.configPath, file); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// renderProgress prints updates until progress is closed. The returned channel
// is closed once every update has been written.
func (r *Runner) renderProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Message == "" {
				continue
			}
			if update.Phase == tasks.RateLimited {
				fmt.Fprintf(r.progress, "⚠ %s\n", update.Message)
				continue
			}
			fmt.Fprintf(r.progress, "→ %s\n", update.Message)
		}
	}()
	return done
}
