// Package console serves the admin console and seller portal behind the access guard.
package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/identity"
	"github.com/bazaar-commerce/console/internal/platform/httpx"
	"github.com/bazaar-commerce/console/internal/rolestore"
	"github.com/bazaar-commerce/console/jobs"
)

// RecordLookup resolves the Role Record of an email.
type RecordLookup interface {
	Lookup(ctx context.Context, email string) (*access.Record, error)
}

// SecurityPublisher forwards security events to the audit pipeline.
type SecurityPublisher interface {
	PublishSecurityEvent(ctx context.Context, event jobs.SecurityEvent) error
}

// DecisionObserver records guard outcomes.
type DecisionObserver interface {
	ObserveGuardDecision(state, surface string)
	ObserveSecurityEvent(kind string)
}

// Gate turns the request principal into a snapshot and enforces policies.
type Gate struct {
	identity  identity.Source
	records   RecordLookup
	logger    *slog.Logger
	observer  DecisionObserver
	publisher SecurityPublisher
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithDecisionObserver reports guard decisions to o.
func WithDecisionObserver(o DecisionObserver) GateOption {
	return func(g *Gate) { g.observer = o }
}

// WithSecurityPublisher forwards tenant mismatches on write requests to p.
func WithSecurityPublisher(p SecurityPublisher) GateOption {
	return func(g *Gate) { g.publisher = p }
}

// NewGate constructs a Gate.
func NewGate(src identity.Source, records RecordLookup, logger *slog.Logger, opts ...GateOption) *Gate {
	if src == nil {
		src = identity.SessionSource{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{identity: src, records: records, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Snapshot resolves the principal and its Role Record. A store failure yields a
// loading snapshot, never a denial.
func (g *Gate) Snapshot(r *http.Request) access.Snapshot {
	ctx := r.Context()
	principal, err := g.identity.Principal(ctx)
	if err != nil {
		if !errors.Is(err, identity.ErrNoPrincipal) {
			g.logger.Warn("console: resolve principal", slog.Any("error", err))
		}
		return access.Snapshot{}
	}
	rec, err := g.records.Lookup(ctx, principal.Email)
	switch {
	case err == nil:
		return access.Snapshot{Principal: principal, Record: rec}
	case rolestore.IsNotFound(err):
		return access.Snapshot{Principal: principal}
	case errors.Is(err, rolestore.ErrInvalidRecord):
		return access.Snapshot{Principal: principal}
	default:
		g.logger.Error("console: role lookup", slog.String("email", principal.Email), slog.Any("error", err))
		return access.Snapshot{Loading: true, Principal: principal}
	}
}

// RequireOption adjusts how Require builds the policy for a request.
type RequireOption func(*requireConfig)

type requireConfig struct {
	sellerParam string
}

// SellerFromURLParam takes the resource seller id from the named route parameter.
func SellerFromURLParam(name string) RequireOption {
	return func(c *requireConfig) { c.sellerParam = name }
}

// Require guards next with policy. Allowed requests carry the snapshot in context.
func (g *Gate) Require(policy access.Policy, opts ...RequireOption) func(http.Handler) http.Handler {
	var cfg requireConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := policy
			if cfg.sellerParam != "" {
				p.ResourceSellerID = chi.URLParam(r, cfg.sellerParam)
			}
			snap := g.Snapshot(r)
			decision := access.Evaluate(snap, p)
			g.observe(decision, p.Surface)
			access.Render(decision, g.views(snap, p, next)).ServeHTTP(w, r)
		})
	}
}

func (g *Gate) views(snap access.Snapshot, p access.Policy, next http.Handler) access.Views[http.Handler] {
	return access.Views[http.Handler]{
		Loading: func() http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { unavailable(w) })
		},
		Content: func() http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(ContextWithSnapshot(r.Context(), snap)))
			})
		},
		Login: func() http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { unauthorized(w) })
		},
		Denied: func(redirect string) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if redirect != "" && isSafeMethod(r.Method) {
					http.Redirect(w, r, redirect, http.StatusSeeOther)
					return
				}
				problem := httpx.ProblemDetail{
					Title:  "Forbidden",
					Status: http.StatusForbidden,
					Detail: "you do not have access to this page",
				}
				if snap.Record != nil {
					problem.Links = map[string]string{"home": access.HomeLink(snap.Record.Role)}
				}
				httpx.Write(w, problem)
			})
		},
		WrongTenant: func() http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				g.reportTenantMismatch(r, snap, p.ResourceSellerID)
				httpx.Write(w, httpx.ProblemDetail{
					Title:  "Forbidden",
					Status: http.StatusForbidden,
					Detail: "resource belongs to another seller",
					Links:  map[string]string{"home": access.HomeLink(snap.Record.Role)},
				})
			})
		},
	}
}

// reportTenantMismatch logs every mismatch and publishes one for write requests.
func (g *Gate) reportTenantMismatch(r *http.Request, snap access.Snapshot, sellerID string) {
	attrs := []any{
		slog.String("role", string(snap.Record.Role)),
		slog.String("record_id", snap.Record.ID),
		slog.String("resource_seller_id", sellerID),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if isSafeMethod(r.Method) {
		g.logger.Info("console: tenant mismatch", attrs...)
		return
	}
	g.logger.Warn("console: tenant mismatch on write", attrs...)
	g.publishSecurityEvent(r, snap, sellerID)
}

func (g *Gate) publishSecurityEvent(r *http.Request, snap access.Snapshot, sellerID string) {
	if g.observer != nil {
		g.observer.ObserveSecurityEvent(jobs.KindTenantMismatch)
	}
	if g.publisher == nil {
		return
	}
	event := jobs.SecurityEvent{
		Kind:             jobs.KindTenantMismatch,
		ResourceSellerID: sellerID,
		Method:           r.Method,
		Path:             r.URL.Path,
		RequestID:        middleware.GetReqID(r.Context()),
	}
	if snap.Principal != nil {
		event.PrincipalEmail = snap.Principal.Email
	}
	if snap.Record != nil {
		event.Role = string(snap.Record.Role)
		event.RecordID = snap.Record.ID
	}
	if err := g.publisher.PublishSecurityEvent(r.Context(), event); err != nil {
		g.logger.Error("console: publish security event", slog.Any("error", err))
	}
}

func (g *Gate) observe(d access.Decision, surface access.Surface) {
	if g.observer != nil {
		g.observer.ObserveGuardDecision(string(d.State), string(surface))
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

type snapshotContextKey struct{}

// ContextWithSnapshot stores the guard snapshot of an allowed request.
func ContextWithSnapshot(ctx context.Context, snap access.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey{}, snap)
}

// SnapshotFromContext returns the snapshot stored by the guard.
func SnapshotFromContext(ctx context.Context) (access.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(access.Snapshot)
	return snap, ok
}
