package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/festa-portal/portal-client/internal/domain/access"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	"github.com/festa-portal/portal-client/internal/observability/metrics"
	"github.com/festa-portal/portal-client/internal/observability/statsd"
	"github.com/festa-portal/portal-client/internal/ports"
)

// SnapshotSource is the read side of the auth machine.
type SnapshotSource interface {
	Snapshot() domainauth.Snapshot
	Watch() (<-chan domainauth.Snapshot, func())
}

var _ SnapshotSource = (*AuthMachine)(nil)

// View is what the shell should render for the current route.
type View int

const (
	// ViewLoading is the full-screen loading state. Page content is suppressed.
	ViewLoading View = iota
	// ViewRedirecting means a navigation away from the route was requested.
	ViewRedirecting
	// ViewContent means the page may render.
	ViewContent
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewRedirecting:
		return "redirecting"
	case ViewContent:
		return "content"
	default:
		return "view(?)"
	}
}

// Outcome is the result of one redirect evaluation.
type Outcome struct {
	Path     string
	Page     access.Page
	Snapshot domainauth.Snapshot
	Decision access.Decision
	View     View
	// Target is the redirect route; empty unless Decision is a redirect.
	Target string
	// Navigated reports whether this evaluation called Navigate.
	Navigated bool
}

// RedirectEffectOptions groups dependencies for RedirectEffect.
type RedirectEffectOptions struct {
	Auth      SnapshotSource  // Required: auth snapshot source
	Navigator ports.Navigator // Required: routing primitive
	Pages     *access.Registry
	Targets   access.Targets
	Logger    *slog.Logger
	Metrics   statsd.Sink
	// OnOutcome receives every outcome produced by Run.
	OnOutcome func(Outcome)
}

// RedirectEffect binds page policies to navigation: it evaluates the current
// route against the resolved role and navigates at most once per change.
type RedirectEffect struct {
	auth      SnapshotSource
	nav       ports.Navigator
	pages     *access.Registry
	targets   access.Targets
	logger    *slog.Logger
	metrics   statsd.Sink
	onOutcome func(Outcome)

	mu      sync.Mutex
	lastKey redirectKey
	hasLast bool
}

// redirectKey identifies an evaluation input. Navigating twice for the same
// key would be a loop or a duplicate.
type redirectKey struct {
	kind   domainauth.SnapshotKind
	role   domainauth.Role
	userID string
	path   string
}

// NewRedirectEffect constructs a RedirectEffect. Pages defaults to the portal
// page table and Targets to access.DefaultTargets.
func NewRedirectEffect(opts RedirectEffectOptions) (*RedirectEffect, error) {
	if opts.Auth == nil {
		return nil, errors.New("SnapshotSource is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("Navigator is required")
	}

	pages := opts.Pages
	if pages == nil {
		pages = access.NewRegistry(access.PortalPages()...)
	}
	targets := opts.Targets
	defaults := access.DefaultTargets()
	if targets.Login == "" {
		targets.Login = defaults.Login
	}
	if targets.Home == "" {
		targets.Home = defaults.Home
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedirectEffect{
		auth:      opts.Auth,
		nav:       opts.Navigator,
		pages:     pages,
		targets:   targets,
		logger:    logger.With("component", "redirect_effect"),
		metrics:   opts.Metrics,
		onOutcome: opts.OnOutcome,
	}, nil
}

// Apply evaluates the current route once and navigates if the policy denies it.
func (e *RedirectEffect) Apply() Outcome {
	snap := e.auth.Snapshot()
	path := e.nav.CurrentPath()
	page := e.pages.Lookup(path)
	role := snap.ResolvedRole()
	decision := access.Evaluate(page.Policy, role)

	out := Outcome{
		Path:     path,
		Page:     page,
		Snapshot: snap,
		Decision: decision,
	}

	switch {
	case decision == access.DecisionPending:
		out.View = ViewLoading
	case decision.IsRedirect():
		out.View = ViewRedirecting
		out.Target = e.targets.Path(decision)
		out.Navigated = e.navigate(redirectKey{
			kind:   snap.Kind(),
			role:   role,
			userID: snap.UserID(),
			path:   path,
		}, out.Target)
	case !snap.Settled():
		// An error snapshot evaluates as guest but may hide a failed check,
		// so content stays suppressed.
		out.View = ViewLoading
	default:
		out.View = ViewContent
	}
	if !decision.IsRedirect() {
		e.forget()
	}

	metrics.EmitAccessDecision(e.metrics, decision.String(), out.Target, out.Navigated)
	return out
}

func (e *RedirectEffect) navigate(key redirectKey, target string) bool {
	if key.path == target {
		return false
	}

	e.mu.Lock()
	if e.hasLast && e.lastKey == key {
		e.mu.Unlock()
		return false
	}
	e.lastKey, e.hasLast = key, true
	e.mu.Unlock()

	e.logger.Debug("redirecting",
		"path", key.path,
		"target", target,
		"snapshot", key.kind.String(),
		"role", string(key.role))
	e.nav.Navigate(target)
	return true
}

// forget clears the last navigation so a later denial of the same route
// navigates again.
func (e *RedirectEffect) forget() {
	e.mu.Lock()
	e.hasLast = false
	e.mu.Unlock()
}

// Run applies the effect now and after every snapshot or route change until
// ctx ends or the auth source closes its watch channel.
func (e *RedirectEffect) Run(ctx context.Context) error {
	snapshots, stopSnapshots := e.auth.Watch()
	defer stopSnapshots()
	routes, stopRoutes := e.nav.Watch()
	defer stopRoutes()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-snapshots:
			if !ok {
				return nil
			}
		case _, ok := <-routes:
			if !ok {
				return nil
			}
		}

		out := e.Apply()
		if e.onOutcome != nil {
			e.onOutcome(out)
		}
	}
}
