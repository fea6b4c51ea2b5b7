package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

const (
	DefaultCookieName = "podx_session"
	DefaultTTL        = 30 * 24 * time.Hour
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session placed in ctx by [Manager.Middleware], or nil.
func FromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(contextKey{}).(*models.Session)
	return sess
}

// ManagerOptions configures a [Manager].
type ManagerOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Now        func() time.Time
	Logger     *log.Logger
}

// Manager ties a [Store] to the signed session cookie.
type Manager struct {
	store   Store
	cookies *CookieCodec
	name    string
	ttl     time.Duration
	secure  bool
	now     func() time.Time
	logger  *log.Logger
}

// NewManager creates a [Manager] that keeps sessions in store and names them with cookies.
func NewManager(store Store, cookies *CookieCodec, opts ManagerOptions) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Manager{
		store:   store,
		cookies: cookies,
		name:    opts.CookieName,
		ttl:     opts.TTL,
		secure:  opts.Secure,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// Store returns the underlying session store.
func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session named by the request cookie.
//
// A missing, invalid or expired cookie, or one naming an unknown session, yields a new unsaved session.
// Only store failures are returned as errors.
func (m *Manager) Load(r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil || cookie.Value == "" {
		return m.newSession(), nil
	}

	id, err := m.cookies.Decode(cookie.Value)
	if err != nil {
		m.logger.Debug("discarding invalid session cookie", "error", err)
		return m.newSession(), nil
	}

	sess, err := m.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) || errors.Is(err, shared.ErrInvalidSession) {
			return m.newSession(), nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (m *Manager) newSession() *models.Session {
	return models.NewSession(shared.GenerateID(), m.now(), m.ttl)
}

// Save extends the session's expiry, stores it and writes the cookie.
//
// Must be called before the response body is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *models.Session) error {
	sess.Touch(m.now(), m.ttl)

	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	value, err := m.cookies.Encode(sess.ID, sess.ExpiresAt)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	sess.New = false
	return nil
}

// Rotate moves sess to a fresh ID, deletes the old record and saves the session under the new ID.
//
// Call it when the session's privilege changes, such as at sign in, so a cookie issued earlier stops working.
func (m *Manager) Rotate(ctx context.Context, w http.ResponseWriter, sess *models.Session) error {
	if !sess.New {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	sess.ID = shared.GenerateID()
	return m.Save(ctx, w, sess)
}

// Clear deletes the session from the store and expires the cookie.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, sess *models.Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if sess == nil || sess.New {
		return nil
	}
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Middleware loads the request's session into its context. Store failures become a 500.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r)
		if err != nil {
			m.logger.Error("session load failed", "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
	})
}

// Prune removes expired sessions from the store.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	return m.store.Prune(ctx, m.now())
}

// RunPruner prunes expired sessions every interval until ctx is done.
func (m *Manager) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Prune(ctx)
			if err != nil {
				m.logger.Warn("session prune failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}
