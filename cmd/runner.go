package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/auth"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/desertthunder/podx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	services   services.ServiceFactory
	authorizer services.Authorizer
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Services and Authorizer are built from the config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Services   services.ServiceFactory
	Authorizer services.Authorizer
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
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
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		services:   opts.Services,
		authorizer: opts.Authorizer,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
	}
}

// Configure loads the config file named by --config, applies environment overrides and sets the log level.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")

	config, err := shared.LoadOrDefault(path)
	if err != nil {
		return ctx, err
	}
	config.ApplyEnv(os.Getenv)

	r.config = config
	r.configPath = path

	level := config.App.LogLevel
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return log.WithContext(ctx, r.logger), nil
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, showsCommand, exportCommand, sessionsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// authOptions configures the authorization client for the CLI, whose callback is the loopback redirect URI.
func (r *Runner) authOptions() services.AuthOptions {
	opts := services.AuthOptionsFromConfig(r.config)
	opts.RedirectURL = r.config.Credentials.Spotify.RedirectURI
	return opts
}

func (r *Runner) loginAuthorizer() (services.Authorizer, error) {
	if r.authorizer != nil {
		return r.authorizer, nil
	}
	return services.NewSpotifyAuth(r.authOptions())
}

func (r *Runner) refresherFactory() auth.RefresherFactory {
	if r.authorizer != nil {
		return func() (services.Refresher, error) { return r.authorizer, nil }
	}
	return auth.SpotifyRefresherFactory(r.authOptions())
}

func (r *Runner) serviceFactory() services.ServiceFactory {
	if r.services != nil {
		return r.services
	}
	return services.NewSpotifyFactory(services.ClientOptionsFromConfig(r.config, r.logger))
}

// token returns a usable access token from the config file.
//
// The stored token runs through the same [auth.Guard] as web sessions. A refreshed token is saved
// back to the config file; a failed refresh clears it.
func (r *Runner) token(ctx context.Context) (models.TokenRecord, error) {
	stored := r.config.Credentials.Spotify.Token()
	if stored == nil {
		return models.TokenRecord{}, fmt.Errorf("%w: run `podx auth login` first", shared.ErrNotAuthenticated)
	}

	sess := &models.Session{ID: "cli", Token: stored}
	guard := auth.NewGuard(r.refresherFactory(),
		auth.WithWindow(r.config.RefreshWindow()),
		auth.WithClock(r.now),
		auth.WithLogger(r.logger),
	)

	rec, ok, err := guard.Validate(ctx, sess)
	if err != nil {
		if saveErr := r.saveTokens(nil); saveErr != nil {
			r.logger.Warn("failed to clear stored token", "error", saveErr)
		}
		return models.TokenRecord{}, fmt.Errorf("%w: run `podx auth login` again", err)
	}
	if !ok {
		return models.TokenRecord{}, shared.ErrNotAuthenticated
	}

	if rec != *stored {
		r.logger.Debug("saving refreshed token", "path", r.configPath)
		if err := r.saveTokens(&rec); err != nil {
			return models.TokenRecord{}, err
		}
	}
	return rec, nil
}

// library returns a [tasks.Library] acting with the stored CLI token.
func (r *Runner) library(ctx context.Context) (*tasks.Library, error) {
	rec, err := r.token(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewLibrary(r.serviceFactory()(rec), tasks.OptionsFromConfig(r.config)), nil
}

// saveTokens stores rec in the config and writes it to the config file when a path is set.
func (r *Runner) saveTokens(rec *models.TokenRecord) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	r.config.Credentials.Spotify.Update(rec)

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
