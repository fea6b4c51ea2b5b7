package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/server"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 3 * time.Minute

// AuthLogin performs the OAuth2 authorization-code flow for the CLI.
//
// Starts a local HTTP server on the configured redirect URI, opens the browser for user authorization
// and stores the exchanged token in the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	authorizer, err := r.loginAuthorizer()
	if err != nil {
		return fmt.Errorf("failed to create Spotify authorization client: %w", err)
	}

	token, err := r.login(ctx, authorizer, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(&token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: podx shows list\n")
	return nil
}

// login serves the loopback callback until it delivers a token, the timeout passes or ctx ends.
func (r *Runner) login(ctx context.Context, authorizer services.Authorizer, timeout time.Duration, browse bool) (models.TokenRecord, error) {
	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return models.TokenRecord{}, fmt.Errorf("%w: redirect_uri %q must be an absolute loopback URL", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return models.TokenRecord{}, err
	}

	handler := server.NewOAuthHandler(authorizer, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(handler)
	srv := server.New(redirect.Host, router, r.logger)

	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	authURL := authorizer.AuthURL(state)
	if browse {
		r.writePlain("Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			browse = false
		}
	}
	if !browse {
		r.writePlain("Open this URL to authorize podx:\n\n%s\n\n", authURL)
	}
	r.writePlain("Waiting for callback on %s ...\n", redirect.String())

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-errc:
		if err != nil {
			return models.TokenRecord{}, err
		}
		return models.TokenRecord{}, fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		<-errc
		return models.TokenRecord{}, fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, timeout)
	}

	cancel()
	if err := <-errc; err != nil {
		r.logger.Warn("callback server shutdown", "error", err)
	}

	if err := result.Error(); err != nil {
		return models.TokenRecord{}, err
	}
	return result.Token, nil
}

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Product       string `json:"product,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
	ExpiresIn     int64  `json:"expires_in,omitempty"`
	Error         string `json:"error,omitempty"`
}

// AuthStatus reports the stored token and checks it against the profile endpoint, refreshing it when due.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status := r.checkAuth(ctx)

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if !status.Authenticated {
		r.writePlain("✗ Not authenticated\n")
		if status.Error != "" {
			r.writePlain("  %s\n", status.Error)
		}
		return nil
	}

	r.writePlain("✓ Authenticated as %s (%s)\n", status.DisplayName, status.UserID)
	if status.Product != "" {
		r.writePlain("  Plan: %s\n", status.Product)
	}
	r.writePlain("  Token expires in %s\n", time.Duration(status.ExpiresIn)*time.Second)
	return nil
}

func (r *Runner) checkAuth(ctx context.Context) authStatus {
	lib, err := r.library(ctx)
	if err != nil {
		return authStatus{Error: err.Error()}
	}

	profile, err := lib.Service().UserProfile(ctx)
	if err != nil {
		return authStatus{Error: err.Error()}
	}

	expiresAt := r.config.Credentials.Spotify.ExpiresAt
	return authStatus{
		Authenticated: true,
		UserID:        profile.ID,
		DisplayName:   profile.Name(),
		Product:       profile.Product,
		ExpiresAt:     expiresAt,
		ExpiresIn:     expiresAt - r.now().Unix(),
	}
}

// AuthLogout removes the stored token from the config file.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.saveTokens(nil); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out, token removed from %s\n", r.configPath)
}
