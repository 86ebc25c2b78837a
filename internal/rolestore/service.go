package rolestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/identity"
)

// Cache lookup outcomes reported to the observer.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// CacheObserver receives cache lookup outcomes.
type CacheObserver interface {
	ObserveRoleCache(result string)
}

// Service serves Role Record lookups and the super-admin write path.
type Service struct {
	repo     Repository
	cache    *Cache
	logger   *slog.Logger
	observer CacheObserver
	group    singleflight.Group
}

// Option customises a Service.
type Option func(*Service)

// WithCache enables the read-through cache.
func WithCache(cache *Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithObserver reports cache outcomes to o.
func WithObserver(o CacheObserver) Option {
	return func(s *Service) { s.observer = o }
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the Role Record of email. Concurrent lookups of one email share a
// single store read.
func (s *Service) Lookup(ctx context.Context, email string) (*access.Record, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	doc, err := s.fetch(ctx, email)
	if err != nil {
		return nil, err
	}
	rec, err := doc.ToRecord()
	if err != nil {
		s.logger.Error("rolestore: rejected stored record", slog.String("email", email), slog.Any("error", err))
		return nil, err
	}
	return rec, nil
}

func (s *Service) fetch(ctx context.Context, email string) (Document, error) {
	doc, ok, err := s.cache.Get(ctx, email)
	switch {
	case err != nil:
		s.observe(CacheError)
		s.logger.Warn("rolestore: cache get", slog.String("email", email), slog.Any("error", err))
	case ok:
		s.observe(CacheHit)
		return doc, nil
	default:
		s.observe(CacheMiss)
	}

	v, err, _ := s.group.Do(email, func() (interface{}, error) {
		gen, genErr := s.cache.Generation(ctx, email)
		if genErr != nil {
			s.logger.Warn("rolestore: cache generation", slog.String("email", email), slog.Any("error", genErr))
		}
		doc, err := s.repo.FindByEmail(ctx, email)
		if err != nil {
			return Document{}, err
		}
		if genErr != nil {
			return doc, nil
		}
		if _, err := s.cache.Set(ctx, doc, gen); err != nil {
			s.logger.Warn("rolestore: cache set", slog.String("email", email), slog.Any("error", err))
		}
		return doc, nil
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

// List returns every valid record ordered by email. Invalid rows are logged and skipped.
func (s *Service) List(ctx context.Context) ([]Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if _, err := doc.ToRecord(); err != nil {
			s.logger.Error("rolestore: skip invalid record", slog.String("email", doc.Email), slog.Any("error", err))
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// Provision creates a Role Record on behalf of a super admin.
func (s *Service) Provision(ctx context.Context, actor *access.Record, rec *access.Record) (Document, error) {
	doc, err := s.prepare(actor, rec)
	if err != nil {
		return Document{}, err
	}
	out, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	s.invalidate(ctx, out.Email)
	s.logger.Info("rolestore: provisioned", slog.String("email", out.Email), slog.String("role", out.Role), slog.String("actor", actor.Email))
	return out, nil
}

// Bootstrap creates the first super admin without an acting principal. Only the
// provisioning CLI calls it.
func (s *Service) Bootstrap(ctx context.Context, id, email string) (Document, error) {
	rec := &access.Record{ID: id, Email: email, Role: access.RoleSuperAdmin, Permissions: access.NewPermissionSet()}
	doc := FromRecord(rec)
	if _, err := doc.ToRecord(); err != nil {
		return Document{}, err
	}
	doc.UpdatedBy = "bootstrap"
	out, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	s.invalidate(ctx, out.Email)
	return out, nil
}

// Replace overwrites the whole record. Last writer wins.
func (s *Service) Replace(ctx context.Context, actor *access.Record, rec *access.Record) (Document, error) {
	doc, err := s.prepare(actor, rec)
	if err != nil {
		return Document{}, err
	}
	out, err := s.repo.Replace(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	s.invalidate(ctx, out.Email)
	s.logger.Info("rolestore: replaced", slog.String("email", out.Email), slog.String("role", out.Role), slog.String("actor", actor.Email))
	return out, nil
}

// Grant adds pages to the record of email.
func (s *Service) Grant(ctx context.Context, actor *access.Record, email string, pages ...access.PageID) (Document, error) {
	return s.mutate(ctx, actor, email, func(rec *access.Record) {
		for _, p := range pages {
			rec.Permissions[p] = struct{}{}
		}
	})
}

// Revoke removes pages from the record of email.
func (s *Service) Revoke(ctx context.Context, actor *access.Record, email string, pages ...access.PageID) (Document, error) {
	return s.mutate(ctx, actor, email, func(rec *access.Record) {
		for _, p := range pages {
			delete(rec.Permissions, p)
		}
	})
}

// Deprovision deletes the record of email.
func (s *Service) Deprovision(ctx context.Context, actor *access.Record, email string) error {
	email = identity.NormalizeEmail(email)
	if err := authorize(actor, email); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, email); err != nil {
		return err
	}
	s.invalidate(ctx, email)
	s.logger.Info("rolestore: deprovisioned", slog.String("email", email), slog.String("actor", actor.Email))
	return nil
}

func (s *Service) mutate(ctx context.Context, actor *access.Record, email string, change func(*access.Record)) (Document, error) {
	email = identity.NormalizeEmail(email)
	if err := authorize(actor, email); err != nil {
		return Document{}, err
	}
	out, err := s.repo.Modify(ctx, email, func(current Document) (Document, error) {
		rec, err := current.ToRecord()
		if err != nil {
			return Document{}, err
		}
		rec.Permissions = rec.Permissions.Clone()
		change(rec)
		return s.prepare(actor, rec)
	})
	if err != nil {
		return Document{}, err
	}
	s.invalidate(ctx, out.Email)
	s.logger.Info("rolestore: permissions changed", slog.String("email", out.Email), slog.Any("permissions", out.Permissions), slog.String("actor", actor.Email))
	return out, nil
}

func (s *Service) prepare(actor *access.Record, rec *access.Record) (Document, error) {
	if rec == nil {
		return Document{}, fmt.Errorf("%w: record required", ErrInvalidRecord)
	}
	if rec.Permissions == nil {
		rec.Permissions = access.NewPermissionSet()
	}
	doc := FromRecord(rec)
	if err := authorize(actor, doc.Email); err != nil {
		return Document{}, err
	}
	if _, err := doc.ToRecord(); err != nil {
		return Document{}, err
	}
	doc.UpdatedBy = actor.Email
	return doc, nil
}

func authorize(actor *access.Record, targetEmail string) error {
	if !access.CanManagePermissions(actor) {
		return ErrForbidden
	}
	if identity.NormalizeEmail(actor.Email) == targetEmail {
		return ErrSelfMutation
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, email string) {
	s.group.Forget(email)
	if err := s.cache.Invalidate(ctx, email); err != nil {
		s.logger.Warn("rolestore: cache invalidate", slog.String("email", email), slog.Any("error", err))
	}
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveRoleCache(result)
	}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
