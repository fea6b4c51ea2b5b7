// Package web implements the server-rendered podcast library application.
//
// # Routes
//
//	GET /           → saved shows of the signed-in user
//	GET /show/{id}  → episodes of one show with listening progress
//	GET /verify     → redirect to the Spotify authorize URL
//	GET /callback   → OAuth completion, stores the token in the session
//	GET /logout     → clears the session
//	GET /healthz    → liveness probe
//	GET /static/... → embedded stylesheet
//
// # Authentication
//
// Every library page runs the session through [auth.Guard] first. A session without a token, or one whose
// refresh failed, is sent to /verify. An upstream 401 clears the stored token and does the same.
//
// The OAuth state generated at /verify is kept in the session and must match at /callback. A successful
// sign in moves the session to a new ID so cookies issued before it stop working.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/auth"
	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/server"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/session"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/desertthunder/podx/internal/tasks"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

var pages = []string{"index", "show", "error"}

// UserRecorder stores the profile of a user who just signed in.
type UserRecorder interface {
	RecordLogin(ctx context.Context, profile models.Profile) (*models.User, error)
}

// Options wires an [App] to its collaborators.
type Options struct {
	Sessions   *session.Manager
	Guard      *auth.Guard
	Authorizer services.Authorizer
	Services   services.ServiceFactory
	Collect    tasks.CollectOptions
	Users      UserRecorder // optional
	Logger     *log.Logger
}

// App serves the web application.
type App struct {
	sessions   *session.Manager
	guard      *auth.Guard
	authorizer services.Authorizer
	services   services.ServiceFactory
	collect    tasks.CollectOptions
	users      UserRecorder
	logger     *log.Logger
	templates  map[string]*template.Template
	static     fs.FS
}

// New creates an [App] and parses its templates.
func New(opts Options) (*App, error) {
	if opts.Sessions == nil || opts.Guard == nil || opts.Authorizer == nil || opts.Services == nil {
		return nil, errors.New("web: sessions, guard, authorizer and services are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}

	return &App{
		sessions:   opts.Sessions,
		guard:      opts.Guard,
		authorizer: opts.Authorizer,
		services:   opts.Services,
		collect:    opts.Collect,
		users:      opts.Users,
		logger:     opts.Logger,
		templates:  templates,
		static:     static,
	}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"minutes":  formatter.FormatMinutes,
		"imageURL": models.ImageURL,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFiles, "templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, err
		}
		templates[page] = t
	}
	return templates, nil
}

// Register adds the application's routes to r. Session-backed routes are wrapped with the session middleware.
func (a *App) Register(r *server.BasicRouter) {
	withSession := a.sessions.Middleware

	r.Handle(http.MethodGet, "/", withSession(http.HandlerFunc(a.index)))
	r.Handle(http.MethodGet, "/show/{id}", withSession(http.HandlerFunc(a.show)))
	r.Handle(http.MethodGet, "/verify", withSession(http.HandlerFunc(a.verify)))
	r.Handle(http.MethodGet, "/callback", withSession(http.HandlerFunc(a.callback)))
	r.Handle(http.MethodGet, "/logout", withSession(http.HandlerFunc(a.logout)))
	r.HandleFunc(http.MethodGet, "/healthz", a.healthz)

	r.Mount("/static", http.FileServerFS(a.static))
}

// Handler returns a router serving the application behind the request logger and rate limiter.
func (a *App) Handler(limiter *server.ClientLimiter) http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.RequestLogger(a.logger), server.RateLimit(limiter))
	a.Register(r)
	return r
}

type pageData struct {
	Title       string
	CurrentUser *models.Profile
	BackLink    string
	Shows       []models.SavedShow
	Show        *models.Show
	Episodes    []models.EnrichedEpisode
	Message     string
	RequestID   string
}

// authorize validates the request's session and returns a library for its token.
//
// When it returns false the response has already been written.
func (a *App) authorize(w http.ResponseWriter, r *http.Request) (*models.Session, services.PodcastService, bool) {
	sess := session.FromContext(r.Context())

	token, ok, err := a.guard.Validate(r.Context(), sess)
	if err != nil {
		log.FromContext(r.Context()).Warn("signing out after failed refresh", "error", err)
		if a.save(w, r, sess) {
			http.Redirect(w, r, "/verify", http.StatusFound)
		}
		return nil, nil, false
	}
	if !ok {
		http.Redirect(w, r, "/verify", http.StatusFound)
		return nil, nil, false
	}

	return sess, a.services(token), true
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := a.authorize(w, r)
	if !ok {
		return
	}

	profile, err := svc.UserProfile(r.Context())
	if err != nil {
		a.upstreamError(w, r, sess, err)
		return
	}

	shows, err := tasks.NewLibrary(svc, a.collect).SavedShows(r.Context())
	if err != nil {
		a.upstreamError(w, r, sess, err)
		return
	}

	if !a.save(w, r, sess) {
		return
	}
	a.render(w, r, http.StatusOK, "index", pageData{Title: "Saved Shows", CurrentUser: profile, Shows: shows})
}

func (a *App) show(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := a.authorize(w, r)
	if !ok {
		return
	}

	profile, err := svc.UserProfile(r.Context())
	if err != nil {
		a.upstreamError(w, r, sess, err)
		return
	}

	show, episodes, err := tasks.NewLibrary(svc, a.collect).ShowWithEpisodes(r.Context(), r.PathValue("id"))
	if err != nil {
		a.upstreamError(w, r, sess, err)
		return
	}

	if !a.save(w, r, sess) {
		return
	}
	a.render(w, r, http.StatusOK, "show", pageData{
		Title:       show.Name,
		CurrentUser: profile,
		BackLink:    "/",
		Show:        show,
		Episodes:    episodes,
	})
}

func (a *App) verify(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	state, err := shared.GenerateState()
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, "Could not start sign in.", err)
		return
	}

	sess.State = state
	if !a.save(w, r, sess) {
		return
	}
	http.Redirect(w, r, a.authorizer.AuthURL(state), http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	q := r.URL.Query()
	logger := log.FromContext(r.Context())

	if sess.State == "" || q.Get("state") != sess.State {
		a.fail(w, r, http.StatusBadRequest, "The sign in request did not match this browser. Please try again.", shared.ErrInvalidState)
		return
	}
	sess.State = ""

	code := q.Get("code")
	if code == "" {
		if a.save(w, r, sess) {
			a.fail(w, r, http.StatusBadRequest, "Spotify did not grant access.", fmt.Errorf("%w: %s", shared.ErrAuthFailed, q.Get("error")))
		}
		return
	}

	token, err := a.authorizer.Exchange(r.Context(), code)
	if err != nil {
		if a.save(w, r, sess) {
			a.fail(w, r, http.StatusBadGateway, "Could not complete sign in with Spotify.", err)
		}
		return
	}
	sess.SetToken(token)

	if profile, err := a.services(token).UserProfile(r.Context()); err != nil {
		logger.Warn("could not load profile after sign in", "error", err)
	} else {
		sess.UserID = profile.ID
		if a.users != nil {
			if user, err := a.users.RecordLogin(r.Context(), *profile); err != nil {
				logger.Warn("could not record login", "spotify_id", profile.ID, "error", err)
				sess.UserID = ""
			} else {
				sess.UserID = user.ID()
			}
		}
	}

	if err := a.sessions.Rotate(r.Context(), w, sess); err != nil {
		a.fail(w, r, http.StatusInternalServerError, "Your session could not be saved.", err)
		return
	}
	logger.Info("signed in", "user", sess.UserID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Clear(r.Context(), w, session.FromContext(r.Context())); err != nil {
		log.FromContext(r.Context()).Warn("session clear failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// upstreamError maps a failed Spotify call to a response.
func (a *App) upstreamError(w http.ResponseWriter, r *http.Request, sess *models.Session, err error) {
	switch {
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		log.FromContext(r.Context()).Warn("upstream rejected token, signing out", "error", err)
		sess.ClearToken()
		if a.save(w, r, sess) {
			http.Redirect(w, r, "/verify", http.StatusFound)
		}
	case errors.Is(err, shared.ErrShowNotFound):
		if a.save(w, r, sess) {
			a.fail(w, r, http.StatusNotFound, "That show could not be found.", err)
		}
	case errors.Is(err, context.Canceled):
		log.FromContext(r.Context()).Debug("request canceled", "error", err)
		// The guard may have refreshed the token; keep it even though the client is gone.
		if err := a.sessions.Save(context.WithoutCancel(r.Context()), w, sess); err != nil {
			log.FromContext(r.Context()).Warn("session save after cancel failed", "error", err)
		}
	default:
		if !a.save(w, r, sess) {
			return
		}
		a.fail(w, r, http.StatusBadGateway, "Spotify could not be reached. Please try again shortly.", err)
	}
}

// save stores the session and refreshes its cookie, answering 500 itself on failure.
func (a *App) save(w http.ResponseWriter, r *http.Request, sess *models.Session) bool {
	if err := a.sessions.Save(r.Context(), w, sess); err != nil {
		a.fail(w, r, http.StatusInternalServerError, "Your session could not be saved.", err)
		return false
	}
	return true
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(message, "status", status, "error", err)
	} else {
		logger.Warn(message, "status", status, "error", err)
	}

	a.render(w, r, status, "error", pageData{
		Title:     http.StatusText(status),
		Message:   message,
		RequestID: server.RequestID(r.Context()),
	})
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := a.templates[page].ExecuteTemplate(&buf, "base", data); err != nil {
		log.FromContext(r.Context()).Error("template execution failed", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
