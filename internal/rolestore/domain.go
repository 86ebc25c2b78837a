// Package rolestore persists Role Records and serves point lookups by email.
package rolestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/identity"
	"github.com/bazaar-commerce/console/internal/shared"
)

var (
	// ErrNotFound indicates no Role Record exists for the email.
	ErrNotFound = fmt.Errorf("rolestore: record %w", shared.ErrNotFound)
	// ErrDuplicate indicates the email or record id is already provisioned.
	ErrDuplicate = errors.New("rolestore: duplicate record")
	// ErrForbidden indicates the actor may not manage permissions.
	ErrForbidden = errors.New("rolestore: forbidden")
	// ErrSelfMutation indicates an actor tried to change their own record.
	ErrSelfMutation = errors.New("rolestore: record may not be changed by its subject")
	// ErrInvalidRecord indicates a stored or submitted document failed validation.
	ErrInvalidRecord = errors.New("rolestore: invalid record")
)

// Document is the stored shape of a Role Record.
type Document struct {
	ID          string    `json:"id" validate:"required,max=128"`
	Email       string    `json:"email" validate:"required,email"`
	Role        string    `json:"role" validate:"required,oneof=super_admin admin seller"`
	Permissions []string  `json:"permissions" validate:"dive,required,max=64"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var validate = validator.New()

// ToRecord validates the document and converts it into a Record. Unknown roles
// and malformed page ids are rejected here rather than carried through.
func (d Document) ToRecord() (*access.Record, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	role, err := access.ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	perms := make(access.PermissionSet, len(d.Permissions))
	for _, raw := range d.Permissions {
		id, err := access.ParsePageID(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		perms[id] = struct{}{}
	}
	return &access.Record{
		ID:          d.ID,
		Email:       identity.NormalizeEmail(d.Email),
		Role:        role,
		Permissions: perms,
	}, nil
}

// FromRecord builds the stored shape of rec.
func FromRecord(rec *access.Record) Document {
	ids := rec.Permissions.Slice()
	perms := make([]string, len(ids))
	for i, id := range ids {
		perms[i] = string(id)
	}
	return Document{
		ID:          rec.ID,
		Email:       identity.NormalizeEmail(rec.Email),
		Role:        string(rec.Role),
		Permissions: perms,
	}
}
