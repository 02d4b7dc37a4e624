package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/console"
	"github.com/wolfeidau/fpconsole/internal/logger"
	"github.com/wolfeidau/fpconsole/internal/store"
	memorystore "github.com/wolfeidau/fpconsole/internal/store/memory"
	postgresstore "github.com/wolfeidau/fpconsole/internal/store/postgres"
	redisstore "github.com/wolfeidau/fpconsole/internal/store/redis"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:3000" env:"FPCONSOLE_LISTEN"`
	Cert   string `help:"path to TLS cert file (serves plain HTTP when empty)" default:"" env:"FPCONSOLE_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"FPCONSOLE_TLS_KEY"`

	// Backend configuration
	Backend BackendFlags `embed:"" prefix:"backend-"`

	// Session configuration
	CookieSecret string        `help:"secret for signing the workspace cookie (min 32 bytes)" env:"FPCONSOLE_COOKIE_SECRET"`
	CookieSecure bool          `help:"mark the workspace cookie Secure" default:"false" env:"FPCONSOLE_COOKIE_SECURE"`
	SessionTTL   time.Duration `help:"idle lifetime of a browser workspace" default:"12h" env:"FPCONSOLE_SESSION_TTL"`
	LoginRate    time.Duration `help:"one login attempt per interval per client IP" default:"6s" env:"FPCONSOLE_LOGIN_RATE"`
	LoginBurst   int           `help:"login attempts allowed in a burst" default:"5" env:"FPCONSOLE_LOGIN_BURST"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"FPCONSOLE_CORS_ORIGINS"`
	TrustProxy  bool     `help:"trust X-Forwarded-For and X-Real-IP" default:"false" env:"FPCONSOLE_TRUST_PROXY"`

	// Observability
	Tracing     bool    `help:"enable tracing" default:"false" env:"FPCONSOLE_TRACING"`
	SampleRatio float64 `help:"trace sample ratio" default:"1" env:"FPCONSOLE_TRACE_SAMPLE_RATIO"`
	NoBanner    bool    `help:"do not print the startup banner" default:"false"`

	// Store configuration
	StoreType     string             `help:"store type (memory, redis or postgres)" default:"memory" env:"FPCONSOLE_STORE_TYPE" enum:"memory,redis,postgres"`
	RedisStore    RedisStoreFlags    `embed:"" prefix:"redis-"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

// BackendFlags configures the HTTP client of every workspace.
type BackendFlags struct {
	URL        string        `help:"backend base URL" default:"http://fwf.ns-6k0uv9r0.svc.cluster.local:8000" env:"FPCONSOLE_BACKEND_URL"`
	BasePath   string        `help:"backend API base path" default:"/api" env:"FPCONSOLE_BACKEND_BASE_PATH"`
	Timeout    time.Duration `help:"timeout of each backend request" default:"10s" env:"FPCONSOLE_BACKEND_TIMEOUT"`
	Retries    int           `help:"retries for transient failures, 0 disables" default:"2" env:"FPCONSOLE_BACKEND_RETRIES"`
	RetryDelay time.Duration `help:"delay before each retry" default:"1s" env:"FPCONSOLE_BACKEND_RETRY_DELAY"`
}

func (b *BackendFlags) config() apiclient.Config {
	retries := b.Retries
	if retries == 0 {
		retries = apiclient.NoRetries
	}

	return apiclient.Config{
		BaseURL:    b.URL,
		BasePath:   b.BasePath,
		Timeout:    b.Timeout,
		MaxRetries: retries,
		RetryDelay: b.RetryDelay,
	}
}

type RedisStoreFlags struct {
	URL    string `help:"redis connection URL" env:"FPCONSOLE_REDIS_URL"`
	Prefix string `help:"key prefix" default:"fpconsole:" env:"FPCONSOLE_REDIS_PREFIX"`
}

func (s *RedisStoreFlags) Validate() error {
	if s.URL == "" {
		return errors.New("redis URL is required (--redis-url or FPCONSOLE_REDIS_URL)")
	}
	return nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"FPCONSOLE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	if !c.NoBanner {
		displayBanner(globals.Version)
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting console server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "fpconsole-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, closeStore, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	backend := c.Backend.config()
	if c.Tracing {
		backend.Transport = apiclient.NewTracingTransport(nil)
	}

	srv, err := console.NewServer(console.Config{
		Backend:        backend,
		Store:          st,
		CookieSecret:   []byte(c.CookieSecret),
		CookieSecure:   c.CookieSecure,
		SessionTTL:     c.SessionTTL,
		AllowedOrigins: c.CORSOrigins,
		TrustProxy:     c.TrustProxy,
		LoginRate:      rate.Every(c.LoginRate),
		LoginBurst:     c.LoginBurst,
		Tracing:        c.Tracing,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.Run(runCtx)

	if pg, ok := st.(*postgresstore.Store); ok {
		go purgeExpired(runCtx, pg, c.SessionTTL)
	}

	httpServer := configureHTTPServer(c.Listen, srv.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.listen(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down console server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func (c *ServeCmd) listen(srv *http.Server) error {
	var err error
	if c.Cert != "" || c.Key != "" {
		if c.Cert == "" || c.Key == "" {
			return errors.New("both TLS certificate and key are required (--cert and --key)")
		}
		if _, statErr := os.Stat(c.Cert); statErr != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, statErr)
		}
		if _, statErr := os.Stat(c.Key); statErr != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, statErr)
		}

		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		err = srv.ListenAndServeTLS(c.Cert, c.Key)
	} else {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// openStore creates the workspace store selected by --store-type.
func (c *ServeCmd) openStore(ctx context.Context) (store.Store, func(), error) {
	switch c.StoreType {
	case "redis":
		if err := c.RedisStore.Validate(); err != nil {
			return nil, nil, fmt.Errorf("failed to validate redis flags: %w", err)
		}
		st, err := redisstore.Open(ctx, redisstore.Config{
			URL:    c.RedisStore.URL,
			Prefix: c.RedisStore.Prefix,
			TTL:    c.SessionTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Using redis workspace store")
		return st, func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis store")
			}
		}, nil

	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, fmt.Errorf("failed to validate postgres flags: %w", err)
		}
		st, err := postgresstore.Open(ctx, postgresstore.Config{
			Pool: postgresstore.PoolConfig{
				ConnString:      c.PostgresStore.ConnString,
				MaxConns:        c.PostgresStore.MaxConns,
				MinConns:        c.PostgresStore.MinConns,
				MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
				MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
			},
			TTL:         c.SessionTTL,
			AutoMigrate: c.PostgresStore.AutoMigrate,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Using PostgreSQL workspace store")
		return st, st.Close, nil

	default:
		log.Info().Msg("Using in-memory workspace store")
		return memorystore.NewStore(), func() {}, nil
	}
}

// purgeExpired deletes expired records, the redis store expires keys on its own.
func purgeExpired(ctx context.Context, st *postgresstore.Store, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to purge expired records")
				continue
			}
			if n > 0 {
				log.Info().Int("count", n).Msg("Purged expired records")
			}
		}
	}
}
