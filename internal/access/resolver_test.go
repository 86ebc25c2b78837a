package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func superAdmin() *Record {
	return &Record{ID: "root", Email: "root@bazaar.test", Role: RoleSuperAdmin, Permissions: NewPermissionSet()}
}

func TestHasPermissionSuperAdminAlwaysTrue(t *testing.T) {
	rec := superAdmin()
	for _, id := range []PageID{PageOrders, PageSellerPayouts, "not-in-catalog", ""} {
		assert.True(t, HasPermission(rec, id), "page %q", id)
	}
}

func TestHasPermissionMembership(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleSeller} {
		rec := &Record{ID: "r1", Role: role, Permissions: NewPermissionSet(PageProducts, PageSellerOrders)}
		for _, p := range append(Catalog(), SellerPages()...) {
			want := p.ID == PageProducts || p.ID == PageSellerOrders
			assert.Equal(t, want, HasPermission(rec, p.ID), "role %s page %s", role, p.ID)
		}
	}
}

func TestNilRecordDenies(t *testing.T) {
	assert.False(t, HasPermission(nil, PageDashboard))
	for _, role := range Roles() {
		assert.False(t, HasRole(nil, role))
	}
	assert.False(t, CanManagePermissions(nil))
	assert.False(t, CanSellerAccess(nil, "sellerA"))
	assert.False(t, ShouldUseSellersInterface(nil))
	assert.Empty(t, AccessiblePages(nil))
}

func TestHasRoleStrict(t *testing.T) {
	rec := &Record{Role: RoleAdmin}
	assert.True(t, HasRole(rec, RoleAdmin))
	assert.False(t, HasRole(rec, RoleSuperAdmin))
	assert.False(t, CanManagePermissions(rec))
	assert.True(t, CanManagePermissions(superAdmin()))
}

func TestCanSellerAccessSellerIsolation(t *testing.T) {
	rec := &Record{ID: "sellerA", Role: RoleSeller}
	assert.True(t, CanSellerAccess(rec, "sellerA"))
	assert.False(t, CanSellerAccess(rec, "sellerB"))
	assert.False(t, CanSellerAccess(rec, ""))

	anonymous := &Record{Role: RoleSeller}
	assert.False(t, CanSellerAccess(anonymous, ""))
}

func TestCanSellerAccessAdminsCrossTenant(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		rec := &Record{ID: "someone", Role: role}
		assert.True(t, CanSellerAccess(rec, "sellerA"))
		assert.True(t, CanSellerAccess(rec, "sellerB"))
	}
	assert.False(t, CanSellerAccess(&Record{ID: "x", Role: Role("auditor")}, "x"))
}

func TestValidateSellerAccess(t *testing.T) {
	rec := &Record{ID: "sellerA", Role: RoleSeller}
	require.NoError(t, ValidateSellerAccess(rec, "sellerA"))

	err := ValidateSellerAccess(rec, "sellerB")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))
	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "sellerA", denied.RecordID)
	assert.Equal(t, "sellerB", denied.ResourceSellerID)

	assert.ErrorIs(t, ValidateSellerAccess(nil, "sellerA"), ErrAccessDenied)
}

func TestAccessiblePagesSubsetOfCatalog(t *testing.T) {
	assert.Equal(t, Catalog(), AccessiblePages(superAdmin()))

	admin := &Record{Role: RoleAdmin, Permissions: NewPermissionSet(PageOrders, PageSellerOrders)}
	pages := AccessiblePages(admin)
	require.Len(t, pages, 1)
	assert.Equal(t, PageOrders, pages[0].ID)

	seller := &Record{ID: "sellerA", Role: RoleSeller, Permissions: NewPermissionSet(PageSellerOrders, PageSellerDashboard, PageOrders)}
	pages = AccessiblePages(seller)
	require.Len(t, pages, 2)
	assert.Equal(t, PageSellerDashboard, pages[0].ID)
	assert.Equal(t, PageSellerOrders, pages[1].ID)
	for _, p := range pages {
		_, ok := LookupPage(p.ID)
		assert.True(t, ok)
	}
}

func TestCatalogDriftHonorsRawBitButNotNavigation(t *testing.T) {
	rec := &Record{Role: RoleAdmin, Permissions: NewPermissionSet("deleted-page-id")}
	assert.True(t, HasPermission(rec, "deleted-page-id"))
	assert.Empty(t, AccessiblePages(rec))
	assert.Empty(t, EffectivePermissions(rec))
}

func TestPredicatesAreIdempotent(t *testing.T) {
	rec := &Record{ID: "sellerA", Role: RoleSeller, Permissions: NewPermissionSet(PageSellerOrders)}
	before := rec.Permissions.Clone()
	for i := 0; i < 2; i++ {
		assert.True(t, HasPermission(rec, PageSellerOrders))
		assert.False(t, CanSellerAccess(rec, "sellerB"))
		assert.Len(t, AccessiblePages(rec), 1)
		assert.True(t, ShouldUseSellersInterface(rec))
	}
	assert.Equal(t, before, rec.Permissions)
}

func TestCatalogCopiesAreIndependent(t *testing.T) {
	pages := SellerPages()
	pages[0].Name = "mutated"
	assert.NotEqual(t, "mutated", SellerPages()[0].Name)
}

func TestRoleDisplay(t *testing.T) {
	assert.Equal(t, "Super Admin", RoleDisplayName(RoleSuperAdmin))
	assert.Equal(t, "Seller", RoleDisplayName(RoleSeller))
	assert.Equal(t, "Unknown", RoleDisplayName(""))
	assert.Equal(t, "auditor", RoleDisplayName("auditor"))
	assert.Equal(t, "blue", RoleColor(RoleAdmin))
	assert.Equal(t, "gray", RoleColor("auditor"))
}

func TestParseRoleAndPageID(t *testing.T) {
	role, err := ParseRole(" Seller ")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, role)
	_, err = ParseRole("owner")
	assert.Error(t, err)

	id, err := ParsePageID("Seller-Orders")
	require.NoError(t, err)
	assert.Equal(t, PageSellerOrders, id)
	for _, bad := range []string{"", "-orders", "orders-", "orders page", "orders_page"} {
		_, err := ParsePageID(bad)
		assert.Error(t, err, bad)
	}
}
