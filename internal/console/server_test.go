package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/store"
	"github.com/wolfeidau/fpconsole/internal/store/memory"
	"golang.org/x/time/rate"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long")

// fakeBackend emulates the session cookie behaviour of the REST backend.
type fakeBackend struct {
	mu       sync.Mutex
	sessions map[string]string
	users    map[string]string

	slowHits  atomic.Int32
	flakyHits atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions: make(map[string]string),
		users:    map[string]string{"alice": "admin", "bob": "user"},
	}
}

func (b *fakeBackend) expireAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]string)
}

func (b *fakeBackend) user(r *http.Request) (string, bool) {
	c, err := r.Cookie("sessionid")
	if err != nil {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.sessions[c.Value]
	return name, ok
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// no keep-alive, so the transport never replays a request on a reused connection
	w.Header().Set("Connection", "close")
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/users/login/":
		var creds struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if _, ok := b.users[creds.Username]; !ok || creds.Password != "pw" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"non_field_errors":["Unable to log in with provided credentials."]}`))
			return
		}
		token := "tok-" + creds.Username
		b.mu.Lock()
		b.sessions[token] = creds.Username
		b.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: token, Path: "/"})
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
		return
	case "/api/users/register/":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"username":["A user with that username already exists."]}`))
		return
	case "/api/results/report/":
		b.slowHits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		return
	case "/api/results/by_task/":
		b.flakyHits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return
	}

	name, ok := b.user(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
		return
	}

	switch r.URL.Path {
	case "/api/users/me/":
		_, _ = w.Write([]byte(`{"id":1,"username":"` + name + `","profile":{"role":"` + b.users[name] + `"}}`))
	case "/api/users/logout/":
		b.mu.Lock()
		for k, v := range b.sessions {
			if v == name {
				delete(b.sessions, k)
			}
		}
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	case "/api/tasks/":
		_, _ = w.Write([]byte(`[{"id":1,"name":"scan","status":"running"}]`))
	case "/api/fingerprints/submit/":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"keyword":["fingerprint with this keyword already exists."]}`))
	case "/api/tasks/9/":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	backend *fakeBackend
	server  *Server
	store   store.Store
	url     string
	client  *http.Client
}

func newHarness(t *testing.T, s store.Store, backend *httptest.Server, fb *fakeBackend, opts ...func(*Config)) *harness {
	t.Helper()

	cfg := Config{
		Backend:      apiclient.Config{BaseURL: backend.URL, RetryDelay: 10 * time.Millisecond},
		Store:        s,
		CookieSecret: testSecret,
		LoginRate:    rate.Every(time.Hour),
		LoginBurst:   3,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	console := httptest.NewServer(srv.Handler())
	t.Cleanup(console.Close)

	return &harness{backend: fb, server: srv, store: s, url: console.URL, client: newBrowser(t)}
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func setup(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	fb := newFakeBackend()
	backend := httptest.NewServer(fb)
	t.Cleanup(backend.Close)
	return newHarness(t, memory.NewStore(), backend, fb, opts...)
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.url+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/session/login", `{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestServer_Healthz(t *testing.T) {
	h := setup(t)

	resp, body := h.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[map[string]any](t, body)["status"])
}

func TestServer_AnonymousNavigation(t *testing.T) {
	h := setup(t)

	resp, _ := h.do(t, http.MethodGet, "/dashboard/user-management", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, router.LoginPath, resp.Header.Get("Location"))

	resp, _ = h.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, router.LoginPath, resp.Header.Get("Location"))

	resp, body := h.do(t, http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `data-route="/login"`)

	resp, _ = h.do(t, http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, decode[SessionView](t, body).Authenticated)
}

func TestServer_LoginAndGuard(t *testing.T) {
	h := setup(t)

	// first navigation consumes the startup exemption
	h.do(t, http.MethodGet, "/login", "")

	resp, body := h.do(t, http.MethodPost, "/session/login", `{"username":"bob","password":"nope"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, apiclient.MsgValidationFailed, decode[ErrorBody](t, body).Message)

	h.login(t, "bob")

	resp, body = h.do(t, http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[SessionView](t, body)
	require.True(t, view.Authenticated)
	require.False(t, view.Admin)
	require.Equal(t, "bob", view.User.Username)

	resp, _ = h.do(t, http.MethodGet, "/login", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, router.LandingPath, resp.Header.Get("Location"))

	resp, _ = h.do(t, http.MethodGet, "/dashboard/user-management", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, router.LandingPath, resp.Header.Get("Location"))

	resp, body = h.do(t, http.MethodGet, router.LandingPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `data-username="bob"`)

	resp, body = h.do(t, http.MethodGet, "/navigate?path=/dashboard/system-logs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[router.Decision](t, body)
	require.Equal(t, router.LandingPath, d.Redirect)
	require.Equal(t, router.ReasonAdminRequired, d.Reason)
}

func TestServer_Passthrough(t *testing.T) {
	h := setup(t)
	h.login(t, "alice")

	resp, body := h.do(t, http.MethodGet, "/api/tasks/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[{"id":1,"name":"scan","status":"running"}]`, string(body))

	resp, body = h.do(t, http.MethodPost, "/api/fingerprints/submit/", `{"keyword":"k1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decode[ErrorBody](t, body)
	require.Equal(t, CodeRejected, errBody.Code)
	require.Equal(t, apiclient.MsgDuplicate, errBody.Message)
	require.NotContains(t, string(body), "already exists.")

	resp, _ = h.do(t, http.MethodDelete, "/api/tasks/9/", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/tasks/", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnauthorizedClearsSession(t *testing.T) {
	h := setup(t)
	h.login(t, "alice")

	h.backend.expireAll()

	resp, body := h.do(t, http.MethodGet, "/api/tasks/", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errBody := decode[ErrorBody](t, body)
	require.Equal(t, router.LoginPath, errBody.Redirect)
	require.Equal(t, apiclient.MsgUnauthorized, errBody.Message)

	_, body = h.do(t, http.MethodGet, "/session", "")
	require.False(t, decode[SessionView](t, body).Authenticated)
}

func TestServer_Logout(t *testing.T) {
	h := setup(t)
	h.login(t, "alice")

	resp, body := h.do(t, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, router.LoginPath, decode[SessionView](t, body).Redirect)

	_, body = h.do(t, http.MethodGet, "/session", "")
	require.False(t, decode[SessionView](t, body).Authenticated)

	// backend logout now fails with 401, the session is still cleared
	resp, body = h.do(t, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, router.LoginPath, decode[ErrorBody](t, body).Redirect)
}

func TestServer_RegisterSurfacesDuplicate(t *testing.T) {
	h := setup(t)

	resp, body := h.do(t, http.MethodPost, "/session/register", `{"username":"bob","password":"pw"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, apiclient.MsgDuplicate, decode[ErrorBody](t, body).Message)
}

func TestServer_Refresh(t *testing.T) {
	h := setup(t)
	h.login(t, "bob")

	resp, body := h.do(t, http.MethodPost, "/session/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "bob", decode[SessionView](t, body).User.Username)

	h.backend.expireAll()

	resp, _ = h.do(t, http.MethodPost, "/session/refresh", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, body = h.do(t, http.MethodGet, "/session", "")
	require.False(t, decode[SessionView](t, body).Authenticated)
}

func TestServer_LoginRateLimit(t *testing.T) {
	h := setup(t)

	for range 3 {
		resp, _ := h.do(t, http.MethodPost, "/session/login", `{"username":"bob","password":"nope"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp, body := h.do(t, http.MethodPost, "/session/login", `{"username":"bob","password":"pw"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, CodeRateLimited, decode[ErrorBody](t, body).Code)
}

func TestServer_Meta(t *testing.T) {
	h := setup(t)

	_, body := h.do(t, http.MethodGet, "/meta/log-action-types", "")
	types := decode[map[string][]map[string]string](t, body)["results"]
	require.Len(t, types, 13)

	_, body = h.do(t, http.MethodGet, "/meta/routes", "")
	routes := decode[map[string][]router.Route](t, body)["results"]
	require.Len(t, routes, len(router.Routes()))
}

func TestServer_WorkspaceSurvivesRestart(t *testing.T) {
	fb := newFakeBackend()
	backend := httptest.NewServer(fb)
	defer backend.Close()

	shared := memory.NewStore()

	first := newHarness(t, shared, backend, fb)
	first.login(t, "alice")

	// a second server over the same store and secret, same browser; cookies
	// are not scoped by port so the workspace cookie is sent to both
	second := newHarness(t, shared, backend, fb)
	second.client = first.client

	_, body := second.do(t, http.MethodGet, "/session", "")
	view := decode[SessionView](t, body)
	require.True(t, view.Authenticated)
	require.True(t, view.Admin)

	resp, _ := second.do(t, http.MethodGet, "/api/tasks/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_InvalidCookieStartsNewWorkspace(t *testing.T) {
	h := setup(t)
	h.login(t, "alice")

	h.client.Jar.SetCookies(mustParse(t, h.url), []*http.Cookie{{Name: DefaultCookieName, Value: "forged", Path: "/"}})

	resp, body := h.do(t, http.MethodGet, "/session", "")
	require.False(t, decode[SessionView](t, body).Authenticated)
	require.Empty(t, resp.Header.Get("Set-Cookie"))
	require.Equal(t, 1, h.server.workspaces.len())

	h.login(t, "bob")
	require.Equal(t, 2, h.server.workspaces.len())
}

func TestServer_AnonymousTrafficKeepsNoWorkspace(t *testing.T) {
	h := setup(t)

	for range 50 {
		resp, _ := h.do(t, http.MethodGet, "/favicon.ico", "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Set-Cookie"))
	}

	resp, _ := h.do(t, http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Set-Cookie"))

	resp, _ = h.do(t, http.MethodPost, "/session/login", `{"username":"bob","password":"nope"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Set-Cookie"))

	require.Zero(t, h.server.workspaces.len())
	require.Zero(t, h.store.(*memory.Store).Len())

	// logging in is what registers the workspace
	resp, _ = h.do(t, http.MethodPost, "/session/login", `{"username":"bob","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Set-Cookie"), DefaultCookieName+"=")
	require.Equal(t, 1, h.server.workspaces.len())
}

func TestServer_PassthroughTransientFailures(t *testing.T) {
	h := setup(t, func(cfg *Config) {
		cfg.Backend.Timeout = 50 * time.Millisecond
		cfg.Backend.MaxRetries = 2
	})
	h.login(t, "alice")

	t.Run("timeout", func(t *testing.T) {
		resp, body := h.do(t, http.MethodGet, "/api/results/report/?task_id=5", "")
		require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
		errBody := decode[ErrorBody](t, body)
		require.Equal(t, CodeTimeout, errBody.Code)
		require.True(t, errBody.Retryable)
		require.Equal(t, apiclient.MsgNetwork, errBody.Message)
		require.Equal(t, int32(3), h.backend.slowHits.Load())
	})

	t.Run("connection dropped", func(t *testing.T) {
		resp, body := h.do(t, http.MethodGet, "/api/results/by_task/?task_id=5", "")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		errBody := decode[ErrorBody](t, body)
		require.Equal(t, CodeTransient, errBody.Code)
		require.True(t, errBody.Retryable)
		require.Equal(t, apiclient.MsgNetwork, errBody.Message)
		require.Equal(t, int32(3), h.backend.flakyHits.Load())
	})

	// the session survives transient failures
	_, body := h.do(t, http.MethodGet, "/session", "")
	require.True(t, decode[SessionView](t, body).Authenticated)
}

func TestServer_SweepIdleWorkspaces(t *testing.T) {
	h := setup(t)
	h.login(t, "alice")
	require.Equal(t, 1, h.server.workspaces.len())

	ctx := context.Background()
	require.Zero(t, h.server.workspaces.sweep(ctx, time.Now()))

	swept := h.server.workspaces.sweep(ctx, time.Now().Add(DefaultSessionTTL+time.Minute))
	require.Equal(t, 1, swept)
	require.Zero(t, h.server.workspaces.len())
	require.Zero(t, h.store.(*memory.Store).Len())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Store: memory.NewStore(), CookieSecret: []byte("short")}
	cfg.ApplyDefaults()
	require.Error(t, cfg.Validate())

	cfg.CookieSecret = testSecret
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultCookieName, cfg.CookieName)

	_, err := NewServer(Config{CookieSecret: testSecret})
	require.Error(t, err)
}
