// package auth keeps the access token stored in a session usable
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/shared"
)

// DefaultRefreshWindow is how close to expiry a token may get before it is refreshed.
const DefaultRefreshWindow = 60 * time.Second

// RefresherFactory builds the client used for a single refresh exchange.
type RefresherFactory func() (services.Refresher, error)

// Guard validates the token stored in a session and refreshes it shortly before it expires.
//
// Guard holds no token state of its own; every refresh goes through a client freshly built by its factory.
type Guard struct {
	newRefresher RefresherFactory
	window       time.Duration
	now          func() time.Time
	logger       *log.Logger
}

// Option configures a [Guard].
type Option func(*Guard)

// WithWindow sets the refresh window. Non-positive values keep the default.
func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLogger sets the logger used to report refreshes.
func WithLogger(l *log.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// NewGuard creates a [Guard] that refreshes through clients built by factory.
func NewGuard(factory RefresherFactory, opts ...Option) *Guard {
	g := &Guard{
		newRefresher: factory,
		window:       DefaultRefreshWindow,
		now:          time.Now,
		logger:       log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate reports whether sess holds a usable token, refreshing it in place when it is about to expire.
//
// A session without a token yields an empty record and false. A token with at least the refresh
// window remaining is returned unchanged. Otherwise exactly one refresh exchange is made and the
// refreshed record replaces the session's token. When the refresh fails the token is removed from
// the session and the error wraps [shared.ErrRefreshFailed].
func (g *Guard) Validate(ctx context.Context, sess *models.Session) (models.TokenRecord, bool, error) {
	if !sess.HasToken() {
		return models.TokenRecord{}, false, nil
	}

	current := *sess.Token
	remaining := current.Remaining(g.now())
	if remaining >= int64(g.window/time.Second) {
		return current, true, nil
	}

	g.logger.Debug("refreshing access token", "session", sess.ID, "remaining", remaining)

	refreshed, err := g.refresh(ctx, current.RefreshToken)
	if err != nil {
		sess.ClearToken()
		g.logger.Warn("token refresh failed, session signed out", "session", sess.ID, "error", err)
		return models.TokenRecord{}, false, err
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	sess.SetToken(refreshed)
	return refreshed, true, nil
}

func (g *Guard) refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error) {
	if refreshToken == "" {
		return models.TokenRecord{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	client, err := g.newRefresher()
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	rec, err := client.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, shared.ErrRefreshFailed) {
			return models.TokenRecord{}, err
		}
		return models.TokenRecord{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if rec.AccessToken == "" {
		return models.TokenRecord{}, fmt.Errorf("%w: empty access token in response", shared.ErrRefreshFailed)
	}
	return rec, nil
}

// SpotifyRefresherFactory builds a fresh [services.SpotifyAuth] from opts for every refresh.
func SpotifyRefresherFactory(opts services.AuthOptions) RefresherFactory {
	return func() (services.Refresher, error) {
		return services.NewSpotifyAuth(opts)
	}
}
