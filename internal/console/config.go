package console

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/store"
	"golang.org/x/time/rate"
)

const (
	DefaultCookieName = "_console"
	DefaultSessionTTL = 12 * time.Hour

	minCookieSecretLen = 32
	maxBodyBytes       = 10 << 20 // 10MiB
)

// Config holds configuration for the console server.
type Config struct {
	// Backend configures the HTTP client of every workspace. Jar is set per workspace.
	Backend apiclient.Config

	// Store persists workspace sessions and backend cookies.
	Store store.Store

	// CookieSecret signs the workspace cookie (HMAC-SHA256).
	CookieSecret []byte
	CookieName   string
	CookieSecure bool

	// SessionTTL is how long an idle workspace lives.
	SessionTTL time.Duration

	// AllowedOrigins are the CORS origins of the /api/ passthrough.
	AllowedOrigins []string

	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	TrustProxy bool

	// LoginRate and LoginBurst limit login attempts per client IP.
	LoginRate  rate.Limit
	LoginBurst int

	// Tracing wraps the handler with OpenTelemetry instrumentation.
	Tracing bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	def := apiclient.DefaultConfig()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.BaseURL
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.LoginRate == 0 {
		c.LoginRate = rate.Every(6 * time.Second)
	}
	if c.LoginBurst == 0 {
		c.LoginBurst = 5
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("store is required")
	}
	if len(c.CookieSecret) < minCookieSecretLen {
		return fmt.Errorf("cookie secret must be at least %d bytes (256 bits) for HMAC-SHA256", minCookieSecretLen)
	}
	if c.SessionTTL < 0 {
		return errors.New("session TTL must not be negative")
	}
	return nil
}
