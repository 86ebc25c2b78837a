package access

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Role is the administrative identity stored on a Role Record.
type Role string

// Supported roles.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleSeller     Role = "seller"
)

// Roles lists every role in descending privilege order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleSeller}
}

// ParseRole converts a stored value into a Role, rejecting anything outside the enumeration.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleSeller:
		return role, nil
	}
	return "", fmt.Errorf("access: unknown role %q", raw)
}

// RoleDisplayName returns the human label of a role. Unknown values are echoed back.
func RoleDisplayName(role Role) string {
	switch role {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleSeller:
		return "Seller"
	case "":
		return "Unknown"
	}
	return string(role)
}

// RoleColor returns the presentation token used for role badges.
func RoleColor(role Role) string {
	switch role {
	case RoleSuperAdmin:
		return "purple"
	case RoleAdmin:
		return "blue"
	case RoleSeller:
		return "green"
	}
	return "gray"
}

// PageID identifies a protectable page.
type PageID string

var pageIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ParsePageID validates the page id syntax. Catalog membership is not checked.
func ParsePageID(raw string) (PageID, error) {
	id := strings.TrimSpace(strings.ToLower(raw))
	if !pageIDPattern.MatchString(id) {
		return "", fmt.Errorf("access: malformed page id %q", raw)
	}
	return PageID(id), nil
}

// Admin console pages.
const (
	PageDashboard   PageID = "dashboard"
	PageOrders      PageID = "orders"
	PageProducts    PageID = "products"
	PageCategories  PageID = "categories"
	PageCustomers   PageID = "customers"
	PageSellers     PageID = "sellers"
	PageReviews     PageID = "reviews"
	PageCoupons     PageID = "coupons"
	PageBanners     PageID = "banners"
	PageAnalytics   PageID = "analytics"
	PageSettings    PageID = "settings"
	PagePermissions PageID = "permissions"
)

// Seller portal pages.
const (
	PageSellerDashboard PageID = "seller-dashboard"
	PageSellerOrders    PageID = "seller-orders"
	PageSellerProducts  PageID = "seller-products"
	PageSellerPayouts   PageID = "seller-payouts"
	PageSellerAnalytics PageID = "seller-analytics"
	PageSellerProfile   PageID = "seller-profile"
)

// PageDescriptor is the static definition of one navigable surface.
type PageDescriptor struct {
	ID          PageID `json:"id"`
	Name        string `json:"name"`
	Link        string `json:"link"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

var adminPages = []PageDescriptor{
	{ID: PageDashboard, Name: "Dashboard", Link: "/admin", Icon: "layout-dashboard", Description: "Sales overview and store health"},
	{ID: PageOrders, Name: "Orders", Link: "/admin/orders", Icon: "shopping-bag", Description: "Manage customer orders and status transitions"},
	{ID: PageProducts, Name: "Products", Link: "/admin/products", Icon: "package", Description: "Create and edit catalog products"},
	{ID: PageCategories, Name: "Categories", Link: "/admin/categories", Icon: "folder-tree", Description: "Organise the product taxonomy"},
	{ID: PageCustomers, Name: "Customers", Link: "/admin/customers", Icon: "users", Description: "Browse customer accounts"},
	{ID: PageSellers, Name: "Sellers", Link: "/admin/sellers", Icon: "store", Description: "Approve and manage marketplace sellers"},
	{ID: PageReviews, Name: "Reviews", Link: "/admin/reviews", Icon: "star", Description: "Moderate product reviews"},
	{ID: PageCoupons, Name: "Coupons", Link: "/admin/coupons", Icon: "ticket-percent", Description: "Discount codes and promotions"},
	{ID: PageBanners, Name: "Banners", Link: "/admin/banners", Icon: "image", Description: "Storefront hero banners"},
	{ID: PageAnalytics, Name: "Analytics", Link: "/admin/analytics", Icon: "chart-line", Description: "Revenue and traffic reports"},
	{ID: PageSettings, Name: "Settings", Link: "/admin/settings", Icon: "settings", Description: "Store configuration"},
	{ID: PagePermissions, Name: "Admins & Permissions", Link: "/admin/roles", Icon: "shield-check", Description: "Grant and revoke console access"},
}

var sellerPages = []PageDescriptor{
	{ID: PageSellerDashboard, Name: "Dashboard", Link: "/seller", Icon: "layout-dashboard", Description: "Your store at a glance"},
	{ID: PageSellerOrders, Name: "Orders", Link: "/seller/orders", Icon: "shopping-bag", Description: "Orders containing your products"},
	{ID: PageSellerProducts, Name: "Products", Link: "/seller/products", Icon: "package", Description: "Manage your listings"},
	{ID: PageSellerPayouts, Name: "Payouts", Link: "/seller/payouts", Icon: "wallet", Description: "Balances and payout history"},
	{ID: PageSellerAnalytics, Name: "Analytics", Link: "/seller/analytics", Icon: "chart-line", Description: "Sales performance"},
	{ID: PageSellerProfile, Name: "Store Profile", Link: "/seller/profile", Icon: "id-card", Description: "Public store information"},
}

var pageIndex = buildPageIndex()

func buildPageIndex() map[PageID]PageDescriptor {
	index := make(map[PageID]PageDescriptor, len(adminPages)+len(sellerPages))
	for _, p := range adminPages {
		index[p.ID] = p
	}
	for _, p := range sellerPages {
		index[p.ID] = p
	}
	return index
}

// Catalog returns the admin console pages in navigation order.
func Catalog() []PageDescriptor {
	return append([]PageDescriptor(nil), adminPages...)
}

// SellerPages returns the seller portal pages in navigation order.
func SellerPages() []PageDescriptor {
	return append([]PageDescriptor(nil), sellerPages...)
}

// LookupPage finds a descriptor in either catalog.
func LookupPage(id PageID) (PageDescriptor, bool) {
	p, ok := pageIndex[id]
	return p, ok
}

// PermissionSet is an unordered set of page ids.
type PermissionSet map[PageID]struct{}

// NewPermissionSet builds a set from the given ids.
func NewPermissionSet(ids ...PageID) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s PermissionSet) Has(id PageID) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids sorted lexically.
func (s PermissionSet) Slice() []PageID {
	out := make([]PageID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
