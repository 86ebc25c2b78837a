package access

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is matched by errors returned from ValidateSellerAccess.
var ErrAccessDenied = errors.New("access: denied")

// Principal describes the authenticated identity resolved by the auth provider.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Record is the persisted authorization record of a principal.
type Record struct {
	ID          string
	Email       string
	Role        Role
	Permissions PermissionSet
}

// AccessDeniedError carries the context of a refused seller-scoped operation.
type AccessDeniedError struct {
	Role             Role
	RecordID         string
	ResourceSellerID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access: %s %q may not act on seller %q", RoleDisplayName(e.Role), e.RecordID, e.ResourceSellerID)
}

// Is lets errors.Is match ErrAccessDenied.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}
