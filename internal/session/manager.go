package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	"github.com/wolfeidau/fpconsole/internal/models"
	"github.com/wolfeidau/fpconsole/internal/store"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotAuthenticated is returned when an operation needs a user and there is none.
var ErrNotAuthenticated = errors.New("not authenticated")

// User-facing messages of the session lifecycle.
const (
	MsgLoginFailed    = "login failed, please try again"
	MsgRegistered     = "registration succeeded, please log in"
	MsgRegisterFailed = "registration failed, please try again"
	MsgLoggedOut      = "logged out"
	MsgLogoutFailed   = "logout failed, please try again"
)

// Backend is the part of the users API the session lifecycle calls.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) error
	Register(ctx context.Context, reg models.Registration) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
}

// Phase is the initialization state of a Manager.
type Phase int

const (
	// PhaseStarting lasts until the first navigation has been evaluated.
	PhaseStarting Phase = iota

	// PhaseReady is every navigation after the first.
	PhaseReady
)

// ClearFunc is called after the session has been cleared, e.g. to drop backend cookies.
type ClearFunc func(ctx context.Context) error

// Manager owns the session. The persisted record under store.SessionKey is the
// source of truth and is re-read on every Snapshot.
type Manager struct {
	store   store.Store
	backend Backend

	mu      sync.Mutex
	phase   Phase
	onClear []ClearFunc
}

// NewManager creates a manager over s, starting in PhaseStarting.
func NewManager(s store.Store, backend Backend) *Manager {
	return &Manager{store: s, backend: backend, phase: PhaseStarting}
}

// OnClear registers fn to run whenever the session is cleared.
func (m *Manager) OnClear(fn ClearFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClear = append(m.onClear, fn)
}

// Phase returns the current initialization phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ConsumeStartup performs the one-shot Starting to Ready transition. It returns
// true only for the call that made the transition.
func (m *Manager) ConsumeStartup() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseStarting {
		return false
	}
	m.phase = PhaseReady
	return true
}

// Snapshot reads the persisted session. It never fails: a missing record is the
// anonymous session, an unreadable record is cleared and treated as absent.
func (m *Manager) Snapshot(ctx context.Context) *Session {
	data, err := m.store.Get(ctx, store.SessionKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Anonymous()
		}
		if errors.Is(err, store.ErrCorrupt) {
			m.discardCorrupt(ctx, err)
			return Anonymous()
		}
		log.Error().Err(err).Msg("Failed to read session, treating as anonymous")
		return Anonymous()
	}

	sess, ok := Decode(data)
	if !ok {
		m.discardCorrupt(ctx, fmt.Errorf("unreadable session record"))
		return Anonymous()
	}

	return sess
}

// User returns the session user or ErrNotAuthenticated.
func (m *Manager) User(ctx context.Context) (*models.User, error) {
	sess := m.Snapshot(ctx)
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return sess.User, nil
}

// Login clears any stale session, authenticates, then fetches and persists the
// profile. If any step fails the session ends anonymous.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := m.clear(ctx, "login"); err != nil {
		return nil, err
	}

	if err := m.backend.Login(ctx, creds); err != nil {
		log.Warn().Err(err).Str("username", creds.Username).Msg("Login failed")
		return nil, err
	}

	user, err := m.backend.Me(ctx)
	if err != nil {
		log.Warn().Err(err).Str("username", creds.Username).Msg("Profile fetch after login failed")
		if clearErr := m.clear(ctx, "login_profile"); clearErr != nil {
			log.Error().Err(clearErr).Msg("Failed to clear session")
		}
		return nil, err
	}

	if err := m.persist(ctx, user); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().SessionLoginsTotal.Add(ctx, 1)
	log.Info().Str("username", user.Username).Str("role", user.Role()).Msg("Logged in")

	return user, nil
}

// Register creates an account. The session is not changed.
func (m *Manager) Register(ctx context.Context, reg models.Registration) error {
	if err := m.backend.Register(ctx, reg); err != nil {
		log.Warn().Err(err).Str("username", reg.Username).Msg("Registration failed")
		return err
	}
	log.Info().Str("username", reg.Username).Msg("Registered")
	return nil
}

// Logout calls the backend logout and then clears the session whatever its outcome.
// The backend error, if any, is returned after the session is cleared.
func (m *Manager) Logout(ctx context.Context) error {
	remoteErr := m.backend.Logout(ctx)
	if remoteErr != nil {
		log.Warn().Err(remoteErr).Msg("Backend logout failed, clearing session anyway")
	}

	if err := m.clear(ctx, "logout"); err != nil {
		return err
	}

	return remoteErr
}

// Refresh re-fetches the profile. On failure the session is cleared and the error returned.
func (m *Manager) Refresh(ctx context.Context) (*models.User, error) {
	user, err := m.backend.Me(ctx)
	if err != nil {
		if clearErr := m.clear(ctx, "refresh"); clearErr != nil {
			log.Error().Err(clearErr).Msg("Failed to clear session")
		}
		return nil, err
	}

	if err := m.persist(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Invalidate clears the session.
func (m *Manager) Invalidate(ctx context.Context) error {
	return m.clear(ctx, "invalidate")
}

// HandleUnauthorized clears the session. It is subscribed to the HTTP client's 401 events.
func (m *Manager) HandleUnauthorized(ctx context.Context, err *apiclient.Error) {
	log.Info().Str("path", err.Path).Msg("Session invalidated by unauthorized response")
	if clearErr := m.clear(ctx, "unauthorized"); clearErr != nil {
		log.Error().Err(clearErr).Msg("Failed to clear session")
	}
}

// FailureMessage returns the message to show for a failed session operation:
// the backend's normalized message for rejected requests, otherwise fallback.
func FailureMessage(err error, fallback string) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindSemantic {
		return apiErr.Message
	}
	return fallback
}

func (m *Manager) persist(ctx context.Context, user *models.User) error {
	data, err := Encode(&Session{User: user})
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, store.SessionKey, data); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (m *Manager) clear(ctx context.Context, reason string) error {
	if err := m.store.Delete(ctx, store.SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.mu.Lock()
	hooks := append([]ClearFunc(nil), m.onClear...)
	m.mu.Unlock()

	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("reason", reason).Msg("Session clear hook failed")
		}
	}

	telemetry.GetMetrics().SessionInvalidationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	log.Debug().Str("reason", reason).Msg("Session cleared")

	return nil
}

func (m *Manager) discardCorrupt(ctx context.Context, cause error) {
	log.Warn().Err(cause).Msg("Discarding unreadable session record")
	telemetry.GetMetrics().SessionCorruptTotal.Add(ctx, 1)

	if err := m.store.Delete(ctx, store.SessionKey); err != nil {
		log.Error().Err(err).Msg("Failed to delete unreadable session record")
	}
}
