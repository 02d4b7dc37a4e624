package router

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/session"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Reason explains a guard decision.
type Reason string

const (
	ReasonAllowed              Reason = "allowed"
	ReasonAlias                Reason = "alias"
	ReasonAuthRequired         Reason = "auth_required"
	ReasonAdminRequired        Reason = "admin_required"
	ReasonAlreadyAuthenticated Reason = "already_authenticated"
	ReasonNotFound             Reason = "not_found"
)

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Reason   Reason `json:"reason"`
	Route    Route  `json:"route"`
}

func allow(r Route) Decision {
	return Decision{Allow: true, Reason: ReasonAllowed, Route: r}
}

func redirect(r Route, to string, reason Reason) Decision {
	return Decision{Redirect: to, Reason: reason, Route: r}
}

// Decide applies the navigation rules to target for the given session. It is a pure
// function of its arguments. firstNavigation is true only for the first navigation
// after start, where an authenticated session is let through apart from the admin check.
func Decide(sess *session.Session, firstNavigation bool, target Route) Decision {
	authenticated := sess.IsAuthenticated()
	admin := sess.IsAdmin()

	if firstNavigation && authenticated {
		if target.RequiresAdmin && !admin {
			return redirect(target, LandingPath, ReasonAdminRequired)
		}
		return allow(target)
	}

	if target.Path == LoginPath && authenticated {
		return redirect(target, LandingPath, ReasonAlreadyAuthenticated)
	}

	if target.RequiresAuth && !authenticated {
		return redirect(target, LoginPath, ReasonAuthRequired)
	}

	if target.RequiresAdmin && !admin {
		return redirect(target, LandingPath, ReasonAdminRequired)
	}

	return allow(target)
}

// Guard evaluates navigations against the session held by a manager.
type Guard struct {
	sessions *session.Manager
}

// NewGuard creates a guard over m.
func NewGuard(m *session.Manager) *Guard {
	return &Guard{sessions: m}
}

// Evaluate decides whether navigating to path may complete. The session is re-read
// from its persisted record on every call. Alias routes are followed first, and an
// allowed alias answers with a redirect to its target.
func (g *Guard) Evaluate(ctx context.Context, path string) Decision {
	first := g.sessions.ConsumeStartup()
	sess := g.sessions.Snapshot(ctx)

	d := evaluate(sess, first, path)

	if d.Redirect != "" {
		telemetry.GetMetrics().GuardRedirectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(d.Reason))))
	}

	log.Debug().
		Str("path", path).
		Bool("first", first).
		Bool("authenticated", sess.IsAuthenticated()).
		Bool("allow", d.Allow).
		Str("redirect", d.Redirect).
		Str("reason", string(d.Reason)).
		Msg("Route guard")

	return d
}

func evaluate(sess *session.Session, first bool, path string) Decision {
	route, ok := Lookup(path)
	if !ok {
		return Decision{Reason: ReasonNotFound, Route: Route{Path: normalize(path)}}
	}

	alias := route
	for route.Redirect != "" {
		target, ok := Lookup(route.Redirect)
		if !ok {
			return Decision{Reason: ReasonNotFound, Route: Route{Path: route.Redirect}}
		}
		route = target
	}

	d := Decide(sess, first, route)
	if d.Allow && alias.Path != route.Path {
		return redirect(alias, route.Path, ReasonAlias)
	}

	return d
}
