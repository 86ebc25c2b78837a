package access

// HasPermission reports whether rec may open page. Super admins pass for any id.
// The raw permission bit is honored even when the page has left the catalog.
func HasPermission(rec *Record, page PageID) bool {
	if rec == nil {
		return false
	}
	if rec.Role == RoleSuperAdmin {
		return true
	}
	return rec.Permissions.Has(page)
}

// HasRole reports whether rec carries exactly role.
func HasRole(rec *Record, role Role) bool {
	if rec == nil {
		return false
	}
	return rec.Role == role
}

// CanManagePermissions gates every write to another principal's Role Record.
func CanManagePermissions(rec *Record) bool {
	return HasRole(rec, RoleSuperAdmin)
}

// AccessiblePages returns the navigable pages for rec. Sellers navigate the seller
// portal, everybody else the admin console. Ids outside the catalog are skipped.
func AccessiblePages(rec *Record) []PageDescriptor {
	if rec == nil {
		return []PageDescriptor{}
	}
	source := adminPages
	if rec.Role == RoleSeller {
		source = sellerPages
	}
	pages := make([]PageDescriptor, 0, len(source))
	for _, p := range source {
		if HasPermission(rec, p.ID) {
			pages = append(pages, p)
		}
	}
	return pages
}

// EffectivePermissions returns the ids of AccessiblePages.
func EffectivePermissions(rec *Record) PermissionSet {
	pages := AccessiblePages(rec)
	set := make(PermissionSet, len(pages))
	for _, p := range pages {
		set[p.ID] = struct{}{}
	}
	return set
}

// CanSellerAccess enforces tenant isolation between sellers. It must be consulted
// before any seller-scoped resource is returned or mutated, in addition to the
// page permission check.
func CanSellerAccess(rec *Record, resourceSellerID string) bool {
	if rec == nil {
		return false
	}
	switch rec.Role {
	case RoleSuperAdmin, RoleAdmin:
		return true
	case RoleSeller:
		return rec.ID != "" && rec.ID == resourceSellerID
	}
	return false
}

// ValidateSellerAccess is the write-path form of CanSellerAccess.
func ValidateSellerAccess(rec *Record, resourceSellerID string) error {
	if CanSellerAccess(rec, resourceSellerID) {
		return nil
	}
	denied := &AccessDeniedError{ResourceSellerID: resourceSellerID}
	if rec != nil {
		denied.Role = rec.Role
		denied.RecordID = rec.ID
	}
	return denied
}

// ShouldUseSellersInterface selects the seller portal. Routing only.
func ShouldUseSellersInterface(rec *Record) bool {
	return HasRole(rec, RoleSeller)
}
