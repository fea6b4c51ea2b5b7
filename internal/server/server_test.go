package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	th "github.com/desertthunder/podx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("index")) })
		r.HandleFunc(http.MethodGet, "/show/{id}", func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("show " + req.PathValue("id")))
		})

		tests := []struct {
			method, path string
			status       int
			body         string
		}{
			{http.MethodGet, "/", http.StatusOK, "index"},
			{http.MethodGet, "/show/abc", http.StatusOK, "show abc"},
			{http.MethodGet, "/nope", http.StatusNotFound, ""},
			{http.MethodPost, "/", http.StatusMethodNotAllowed, ""},
		}

		for _, tc := range tests {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) { order = append(order, "handler") })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})

	t.Run("mount strips prefix", func(t *testing.T) {
		r := NewBasicRouter()
		r.Mount("/static", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte(req.URL.Path))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
		assert.Equal(t, "/style.css", rec.Body.String())
	})

	t.Run("custom handler routes", func(t *testing.T) {
		r := NewBasicRouter()
		h := NewOAuthHandler(&th.MockAuthorizer{}, "s", "/cb")
		r.Handler(h)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=wrong", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	t.Run("logs and tags requests", func(t *testing.T) {
		buf.Reset()
		var seenID string
		var fromCtx *log.Logger
		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenID = RequestID(r.Context())
			fromCtx = log.FromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/path", nil))

		require.NotEmpty(t, seenID)
		assert.Equal(t, seenID, rec.Header().Get("X-Request-ID"))
		assert.NotNil(t, fromCtx)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Contains(t, buf.String(), "request completed")
		assert.Contains(t, buf.String(), "418")
		assert.Contains(t, buf.String(), seenID)
	})

	t.Run("recovers panics", func(t *testing.T) {
		buf.Reset()
		h := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, buf.String(), "panic recovered")
	})

	t.Run("RequestID without middleware", func(t *testing.T) {
		assert.Empty(t, RequestID(context.Background()))
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("per client buckets", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		l := NewClientLimiter(1, 2)
		l.now = func() time.Time { return now }

		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
		assert.True(t, l.Allow("b"), "other clients keep their own budget")

		now = now.Add(time.Second)
		assert.True(t, l.Allow("a"), "bucket refills over time")
	})

	t.Run("idle clients are forgotten", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		l := NewClientLimiter(1, 1)
		l.now = func() time.Time { return now }

		l.Allow("a")
		now = now.Add(10 * time.Minute)
		l.Allow("b")

		l.mu.Lock()
		defer l.mu.Unlock()
		assert.NotContains(t, l.visitors, "a")
	})

	t.Run("middleware", func(t *testing.T) {
		l := NewClientLimiter(0.001, 1)
		h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		first := httptest.NewRecorder()
		h.ServeHTTP(first, req)
		assert.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		h.ServeHTTP(second, req)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "1", second.Header().Get("Retry-After"))
	})

	t.Run("nil limiter disables", func(t *testing.T) {
		called := 0
		h := RateLimit(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called++ }))
		for range 5 {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}
		assert.Equal(t, 5, called)
	})
}

func TestOAuthHandler(t *testing.T) {
	token := models.TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: 100}

	callback := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		auth := &th.MockAuthorizer{Token: token}
		h := NewOAuthHandler(auth, "state-1", "")
		assert.Equal(t, []string{"/callback"}, h.Routes())

		rec := callback(h, "state=state-1&code=abc")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Authorization Successful")
		assert.Equal(t, "abc", auth.LastCode)

		result := <-h.Result()
		require.NoError(t, result.Error())
		assert.Equal(t, token, result.Token)
	})

	t.Run("state mismatch", func(t *testing.T) {
		auth := &th.MockAuthorizer{Token: token}
		h := NewOAuthHandler(auth, "state-1", "")

		rec := callback(h, "state=forged&code=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, auth.ExchangeCalls)

		result := <-h.Result()
		assert.ErrorIs(t, result.Error(), shared.ErrInvalidState)
	})

	t.Run("access denied", func(t *testing.T) {
		h := NewOAuthHandler(&th.MockAuthorizer{}, "s", "")

		rec := callback(h, "state=s&error=access_denied")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		assert.ErrorIs(t, result.Error(), shared.ErrAuthFailed)
		assert.Contains(t, result.Error().Error(), "access_denied")
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&th.MockAuthorizer{ExchangeErr: shared.ErrAuthFailed}, "s", "")

		rec := callback(h, "state=s&code=bad")
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		result := <-h.Result()
		assert.ErrorIs(t, result.Error(), shared.ErrAuthFailed)
	})

	t.Run("only the first callback counts", func(t *testing.T) {
		auth := &th.MockAuthorizer{Token: token}
		h := NewOAuthHandler(auth, "s", "")

		callback(h, "state=s&code=one")
		rec := callback(h, "state=s&code=two")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 1, auth.ExchangeCalls)

		result, ok := <-h.Result()
		require.True(t, ok)
		assert.NoError(t, result.Error())

		_, ok = <-h.Result()
		assert.False(t, ok, "channel closes after one result")
	})
}

func TestServer(t *testing.T) {
	t.Run("serves until context is canceled", func(t *testing.T) {
		addr := freeAddr(t)
		srv := New(addr, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		}), nil)
		assert.Equal(t, addr, srv.Addr())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + addr)
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(ShutdownTimeout + time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("listen failure", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		err = New(ln.Addr().String(), http.NotFoundHandler(), nil).Run(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.True(t, strings.HasPrefix(err.Error(), "server failed"))
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
