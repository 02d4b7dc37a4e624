package console

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/api"
	"github.com/wolfeidau/fpconsole/internal/apiclient"
	httpx "github.com/wolfeidau/fpconsole/internal/http"
	"github.com/wolfeidau/fpconsole/internal/models"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/session"
	"github.com/wolfeidau/fpconsole/internal/store"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
)

// workspace is the per-browser state: its own client, cookie jar and session.
type workspace struct {
	mu   sync.Mutex
	meta models.Workspace

	store    store.Store
	client   *apiclient.Client
	jar      *apiclient.PersistentJar
	api      *api.API
	sessions *session.Manager
	guard    *router.Guard
}

func (ws *workspace) touch(r *http.Request, now time.Time) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.meta.LastUsedAt = now
	ws.meta.UserAgent = r.UserAgent()
	ws.meta.IPAddress = httpx.ClientIPFromContext(r.Context())
}

func (ws *workspace) idle(now time.Time, ttl time.Duration) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.meta.IsIdle(now, ttl)
}

type contextKey struct{}

func workspaceFromContext(ctx context.Context) *workspace {
	ws, _ := ctx.Value(contextKey{}).(*workspace)
	return ws
}

// registry holds the live workspaces.
type registry struct {
	cfg Config

	mu         sync.Mutex
	workspaces map[uuid.UUID]*workspace
}

func newRegistry(cfg Config) *registry {
	return &registry{cfg: cfg, workspaces: make(map[uuid.UUID]*workspace)}
}

// get returns the live workspace for id, restoring it from the store when it is
// not in memory (e.g. after a restart with a shared store). A workspace with no
// saved backend cookies is returned unregistered.
func (reg *registry) get(ctx context.Context, id uuid.UUID, now time.Time) (*workspace, bool, error) {
	if ws, ok := reg.lookup(id); ok {
		return ws, true, nil
	}

	// built outside the lock, restoring touches the store
	ws, err := reg.build(ctx, id, now)
	if err != nil {
		return nil, false, err
	}

	if ws.jar.Empty() {
		return ws, false, nil
	}

	return reg.adopt(ctx, ws), true, nil
}

func (reg *registry) lookup(id uuid.UUID) (*workspace, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ws, ok := reg.workspaces[id]
	return ws, ok
}

// adopt registers ws unless another request registered the same id first, in
// which case the registered workspace is returned.
func (reg *registry) adopt(ctx context.Context, ws *workspace) *workspace {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.workspaces[ws.meta.ID]; ok {
		return existing
	}

	reg.workspaces[ws.meta.ID] = ws
	telemetry.GetMetrics().ActiveWorkspaces.Add(ctx, 1)

	return ws
}

func (reg *registry) build(ctx context.Context, id uuid.UUID, now time.Time) (*workspace, error) {
	ns := store.Namespaced(reg.cfg.Store, "ws/"+id.String())

	jar, err := apiclient.NewPersistentJar(ctx, reg.cfg.Backend.BaseURL, ns)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace cookie jar: %w", err)
	}

	clientCfg := reg.cfg.Backend
	clientCfg.Jar = jar

	client, err := apiclient.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace client: %w", err)
	}

	resources := api.New(client)
	sessions := session.NewManager(ns, resources.Users)

	client.OnUnauthorized(sessions.HandleUnauthorized)
	sessions.OnClear(jar.Clear)

	log.Debug().Str("workspace", id.String()).Msg("Workspace created")

	return &workspace{
		meta:     models.Workspace{ID: id, CreatedAt: now, LastUsedAt: now},
		store:    ns,
		client:   client,
		jar:      jar,
		api:      resources,
		sessions: sessions,
		guard:    router.NewGuard(sessions),
	}, nil
}

// len returns the number of live workspaces.
func (reg *registry) len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.workspaces)
}

// sweep drops workspaces idle for longer than the session TTL together with their records.
func (reg *registry) sweep(ctx context.Context, now time.Time) int {
	reg.mu.Lock()
	var expired []*workspace
	for id, ws := range reg.workspaces {
		if ws.idle(now, reg.cfg.SessionTTL) {
			expired = append(expired, ws)
			delete(reg.workspaces, id)
		}
	}
	reg.mu.Unlock()

	for _, ws := range expired {
		for _, key := range []string{store.SessionKey, store.CookieKey} {
			if err := ws.store.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("workspace", ws.meta.ID.String()).Str("key", key).Msg("Failed to delete workspace record")
			}
		}
		telemetry.GetMetrics().ActiveWorkspaces.Add(ctx, -1)
	}

	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("Swept idle workspaces")
	}

	return len(expired)
}
