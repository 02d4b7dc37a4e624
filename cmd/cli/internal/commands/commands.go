package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/api"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/session"
	"github.com/wolfeidau/fpconsole/internal/store"
	"github.com/wolfeidau/fpconsole/internal/store/file"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
)

const loginHint = "To log in:\n  fpconsole-cli login <username>"

type Globals struct {
	Debug   bool
	Version string
	Backend BackendFlags
}

// BackendFlags configures the backend connection and the local state.
type BackendFlags struct {
	Server     string        `help:"backend base URL" default:"http://fwf.ns-6k0uv9r0.svc.cluster.local:8000"`
	BasePath   string        `help:"API base path" default:"/api"`
	Timeout    time.Duration `help:"timeout of each request" default:"10s"`
	Retries    int           `help:"retries for transient failures, 0 disables" default:"2"`
	RetryDelay time.Duration `help:"delay before each retry" default:"1s"`
	StateDir   string        `help:"session state directory (default: ~/.fpconsole/state/)"`
	Profile    string        `help:"state profile, one session per profile" default:"default"`
	CacheDir   string        `help:"HTTP cache directory for cacheable responses, one subdirectory per profile"`
	Tracing    bool          `help:"trace backend calls" default:"false"`
}

// Validate checks the flag values.
func (b *BackendFlags) Validate() error {
	if b.Server == "" {
		return errors.New("backend server URL is required (--server or FPCONSOLE_SERVER)")
	}
	if b.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	if b.Timeout < 0 || b.RetryDelay < 0 {
		return errors.New("timeout and retry delay must not be negative")
	}
	return nil
}

func (b *BackendFlags) clientConfig() apiclient.Config {
	var transport http.RoundTripper = http.DefaultTransport
	if dir := b.cacheDir(); dir != "" {
		transport = apiclient.NewCachingTransport(dir, transport)
	}
	if b.Tracing {
		transport = apiclient.NewTracingTransport(transport)
	}

	retries := b.Retries
	if retries == 0 {
		retries = apiclient.NoRetries
	}

	return apiclient.Config{
		BaseURL:    b.Server,
		BasePath:   b.BasePath,
		Timeout:    b.Timeout,
		MaxRetries: retries,
		RetryDelay: b.RetryDelay,
		Transport:  transport,
	}
}

// cacheDir keeps the cached responses of each profile apart, cache entries are
// keyed by URL only.
func (b *BackendFlags) cacheDir() string {
	if b.CacheDir == "" {
		return ""
	}
	return filepath.Join(b.CacheDir, b.Profile)
}

// Console is the local equivalent of a browser tab: a client whose cookies and
// session survive between invocations.
type Console struct {
	Client   *apiclient.Client
	API      *api.API
	Sessions *session.Manager
	Guard    *router.Guard

	jar *apiclient.PersistentJar
}

// Open restores the console state of the selected profile.
func (g *Globals) Open(ctx context.Context) (*Console, error) {
	st, err := file.NewStore(g.Backend.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	ns := store.Namespaced(st, g.Backend.Profile)

	jar, err := apiclient.NewPersistentJar(ctx, g.Backend.Server, ns)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	cfg := g.Backend.clientConfig()
	cfg.Jar = jar

	client, err := apiclient.New(cfg)
	if err != nil {
		return nil, err
	}

	resources := api.New(client)
	sessions := session.NewManager(ns, resources.Users)

	client.OnUnauthorized(sessions.HandleUnauthorized)
	sessions.OnClear(jar.Clear)

	return &Console{
		Client:   client,
		API:      resources,
		Sessions: sessions,
		Guard:    router.NewGuard(sessions),
		jar:      jar,
	}, nil
}

// Close persists the backend cookies.
func (c *Console) Close(ctx context.Context) error {
	return c.jar.Save(ctx)
}

// run opens the console, runs fn and saves the cookies whatever the outcome.
func (g *Globals) run(ctx context.Context, fn func(*Console) error) error {
	if err := g.Backend.Validate(); err != nil {
		return err
	}

	if g.Backend.Tracing {
		stop := g.startTelemetry(ctx)
		defer stop()
	}

	c, err := g.Open(ctx)
	if err != nil {
		return err
	}

	runErr := fn(c)

	if err := c.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to save cookies")
	}

	return describe(runErr)
}

var initTelemetry = telemetry.InitTelemetry

// startTelemetry installs the exporters used by the tracing transport and returns
// a function flushing them.
func (g *Globals) startTelemetry(ctx context.Context) func() {
	shutdown, err := initTelemetry(ctx, telemetry.Config{
		ServiceName: "fpconsole-cli",
		Version:     g.Version,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without tracing")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}
}

// describe turns a failed call into the single message shown to the user.
func describe(err error) error {
	if err == nil {
		return nil
	}

	log.Debug().Err(err).Msg("Command failed")

	if isSessionLost(err) {
		return fmt.Errorf("%s\n\n%s", apiclient.MsgUnauthorized, loginHint)
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}

	return err
}

func isSessionLost(err error) bool {
	return errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, session.ErrNotAuthenticated)
}
