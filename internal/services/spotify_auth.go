package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// DefaultScopes are the scopes needed to read saved shows and playback positions.
var DefaultScopes = []string{"user-library-read", "user-read-playback-position"}

var _ Authorizer = (*SpotifyAuth)(nil)

// AuthOptions configures a [SpotifyAuth].
type AuthOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string       // defaults to the Spotify accounts service
	TokenURL     string       // defaults to the Spotify accounts service
	HTTPClient   *http.Client // used for token requests when set
	Now          func() time.Time
}

// SpotifyAuth performs the authorization-code grant and refresh exchanges against the Spotify accounts service.
//
// It holds no token state; a refresh builds its own token source from the refresh token passed in.
type SpotifyAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewSpotifyAuth creates a [SpotifyAuth] from opts.
func NewSpotifyAuth(opts AuthOptions) (*SpotifyAuth, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if opts.RedirectURL == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SpotifyAuth{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}, nil
}

// AuthOptionsFromConfig builds [AuthOptions] for the web application, whose callback lives under the app URI.
func AuthOptionsFromConfig(cfg *shared.Config) AuthOptions {
	return AuthOptions{
		ClientID:     cfg.Credentials.Spotify.ClientID,
		ClientSecret: cfg.Credentials.Spotify.ClientSecret,
		RedirectURL:  cfg.WebRedirectURL(),
		Scopes:       cfg.Credentials.Spotify.Scopes,
		AuthURL:      cfg.API.AuthURL,
		TokenURL:     cfg.API.TokenURL,
		HTTPClient:   &http.Client{Timeout: cfg.APITimeout()},
	}
}

// OAuthConfig exposes the underlying [oauth2.Config], e.g. for the loopback callback handler.
func (a *SpotifyAuth) OAuthConfig() *oauth2.Config {
	return a.config
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (a *SpotifyAuth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token record.
func (a *SpotifyAuth) Exchange(ctx context.Context, code string) (models.TokenRecord, error) {
	if code == "" {
		return models.TokenRecord{}, fmt.Errorf("%w: empty authorization code", shared.ErrInvalidInput)
	}

	tok, err := a.config.Exchange(a.withClient(ctx), code)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	return models.TokenFromOAuth2(tok, a.now()), nil
}

// Refresh exchanges refreshToken for a new access token.
//
// When the accounts service does not rotate the refresh token the previous one is kept.
func (a *SpotifyAuth) Refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error) {
	if refreshToken == "" {
		return models.TokenRecord{}, shared.ErrNoRefreshToken
	}

	src := a.config.TokenSource(a.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	return models.TokenFromOAuth2(tok, a.now()), nil
}

func (a *SpotifyAuth) withClient(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}
