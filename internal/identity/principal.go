// Package identity resolves the authenticated principal of a request.
package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/shared"
)

// ErrNoPrincipal indicates an anonymous request.
var ErrNoPrincipal = errors.New("identity: no principal")

// NormalizeEmail folds case and trims whitespace so emails work as lookup keys.
// A Caser is stateful, so one is built per call.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Source resolves the principal of the current request.
type Source interface {
	Principal(ctx context.Context) (*access.Principal, error)
}

// SessionSource reads the principal from the cookie session in context.
type SessionSource struct{}

// Principal implements Source.
func (SessionSource) Principal(ctx context.Context) (*access.Principal, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.UID() == "" || sess.Email() == "" {
		return nil, ErrNoPrincipal
	}
	return &access.Principal{UID: sess.UID(), Email: NormalizeEmail(sess.Email())}, nil
}
