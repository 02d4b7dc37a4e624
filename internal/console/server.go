package console

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"filippo.io/csrf"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/fpconsole/internal/http"
	"github.com/wolfeidau/fpconsole/internal/logger"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const sweepInterval = time.Minute

// Server is the backend-for-frontend of the console. Each browser is given a
// workspace, named by a signed cookie, that holds its backend session.
type Server struct {
	cfg        Config
	token      workspaceToken
	workspaces *registry
	limiter    *httpx.RateLimiter
	now        func() time.Time
	handler    http.Handler
}

// NewServer creates the console server.
func NewServer(cfg Config) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid console config: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		token:      workspaceToken{secret: cfg.CookieSecret, ttl: cfg.SessionTTL},
		workspaces: newRegistry(cfg),
		limiter:    httpx.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		now:        time.Now,
	}
	s.handler = s.routes()

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run sweeps idle workspaces and rate limiter entries until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.limiter.Run(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.workspaces.sweep(ctx, s.now())
		}
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthz)

	mux.Handle("GET /session", s.withWorkspace(s.getSession))
	mux.Handle("POST /session/login", s.limiter.Middleware(s.rateLimited)(s.withWorkspace(s.login)))
	mux.Handle("POST /session/register", s.withWorkspace(s.register))
	mux.Handle("POST /session/logout", s.withWorkspace(s.logout))
	mux.Handle("POST /session/refresh", s.withWorkspace(s.refresh))

	mux.Handle("GET /navigate", s.withWorkspace(s.navigate))
	mux.HandleFunc("GET /meta/routes", s.routeTable)
	mux.HandleFunc("GET /meta/log-action-types", s.logActionTypes)

	mux.Handle("/api/", s.withWorkspace(s.passthrough))
	mux.Handle("/", s.withWorkspace(s.page))

	// CSRF protection for pages and session endpoints, CORS for the API passthrough
	protection := csrf.New()
	apiHandler := withCORS(s.cfg.AllowedOrigins, mux)
	pageHandler := protection.Handler(mux)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
			return
		}
		pageHandler.ServeHTTP(w, r)
	})

	handler = gzhttp.GzipHandler(handler)
	handler = logger.NewHTTPRequests(log.Logger).Wrap(handler)
	handler = httpx.ClientIPMiddleware(s.cfg.TrustProxy)(handler)

	if s.cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "console")
	}

	return handler
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support to the API passthrough.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Accept", "X-Requested-With"},
		AllowCredentials: true, // Required for cookie-based sessions
	})
	return middleware.Handler(h)
}

// withWorkspace resolves the caller's workspace and saves its cookies once the
// handler is done. Workspaces only become registered, and the browser only gets a
// workspace cookie, once they hold backend cookies, so anonymous traffic leaves
// nothing behind.
func (s *Server) withWorkspace(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := s.now()

		id, issuedAt, valid := s.readCookie(r)
		if !valid {
			newID, err := uuid.NewV7()
			if err != nil {
				writeError(w, r, fmt.Errorf("failed to generate workspace id: %w", err))
				return
			}
			id = newID
		}

		ws, registered, err := s.workspaces.get(r.Context(), id, now)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ws.touch(r, now)

		ctx := zerolog.Ctx(r.Context()).With().Str("workspace", id.String()).Logger().WithContext(r.Context())
		ctx = context.WithValue(ctx, contextKey{}, ws)

		ww := &workspaceWriter{ResponseWriter: w}
		ww.commit = func() {
			if !registered {
				if ws.jar.Empty() {
					return
				}
				s.workspaces.adopt(ctx, ws)
				// the browser is already running the console
				ws.sessions.ConsumeStartup()
				registered = true
				zerolog.Ctx(ctx).Debug().Msg("Workspace registered")
			}

			// sliding expiry: re-issue once half the lifetime has passed
			if !valid || now.Sub(issuedAt) > s.cfg.SessionTTL/2 {
				if err := s.writeCookie(w, id, now); err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Msg("failed to issue workspace cookie")
				}
			}
		}

		h(ww, r.WithContext(ctx))
		ww.once.Do(ww.commit)

		if !registered {
			return
		}
		if err := ws.jar.Save(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save workspace cookies")
		}
	})
}

// workspaceWriter runs commit before the response headers are sent.
type workspaceWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func (w *workspaceWriter) WriteHeader(code int) {
	w.once.Do(w.commit)
	w.ResponseWriter.WriteHeader(code)
}

func (w *workspaceWriter) Write(b []byte) (int, error) {
	w.once.Do(w.commit)
	return w.ResponseWriter.Write(b)
}

func (w *workspaceWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) readCookie(r *http.Request) (uuid.UUID, time.Time, bool) {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return uuid.Nil, time.Time{}, false
	}

	id, issuedAt, err := s.token.Parse(c.Value)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("ignoring workspace cookie")
		return uuid.Nil, time.Time{}, false
	}

	return id, issuedAt, true
}

func (s *Server) writeCookie(w http.ResponseWriter, id uuid.UUID, now time.Time) error {
	value, err := s.token.Issue(id, now)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(s.cfg.SessionTTL),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	telemetry.GetMetrics().LoginRateLimitedTotal.Add(r.Context(), 1)
	writeErrorBody(w, r, fmt.Errorf("login rate limit exceeded"), http.StatusTooManyRequests,
		ErrorBody{Code: CodeRateLimited, Message: msgRateLimited, Retryable: true})
}
