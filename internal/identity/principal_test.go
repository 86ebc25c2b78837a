package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/shared"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "seller@shop.test", NormalizeEmail("  Seller@Shop.TEST "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestSessionSourceAnonymous(t *testing.T) {
	_, err := SessionSource{}.Principal(context.Background())
	assert.ErrorIs(t, err, ErrNoPrincipal)

	ctx := shared.ContextWithSession(context.Background(), &shared.Session{ID: "anon"})
	_, err = SessionSource{}.Principal(ctx)
	assert.ErrorIs(t, err, ErrNoPrincipal)
}

func TestSessionSourceSignedIn(t *testing.T) {
	sess := &shared.Session{}
	sess.SignIn("42", "Admin@Bazaar.test")
	ctx := shared.ContextWithSession(context.Background(), sess)

	p, err := SessionSource{}.Principal(ctx)
	require.NoError(t, err)
	assert.Equal(t, &access.Principal{UID: "42", Email: "admin@bazaar.test"}, p)
}
