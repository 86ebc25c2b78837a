package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/auth"
	"github.com/bazaar-commerce/console/internal/rolestore"
)

// Exit codes shared by the access commands.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 3
)

// RoleStore is the role store surface used by the provisioning commands.
type RoleStore interface {
	Lookup(ctx context.Context, email string) (*access.Record, error)
	Bootstrap(ctx context.Context, id, email string) (rolestore.Document, error)
}

// AccountRegistrar creates login accounts.
type AccountRegistrar interface {
	Register(ctx context.Context, email, password string) (*auth.Account, error)
}

// AccessCLI bundles the role provisioning helpers.
type AccessCLI struct {
	roles    RoleStore
	accounts AccountRegistrar
}

// NewAccessCLI constructs the helper.
func NewAccessCLI(roles RoleStore, accounts AccountRegistrar) *AccessCLI {
	return &AccessCLI{roles: roles, accounts: accounts}
}

// BootstrapOptions defines flags for the bootstrap command.
type BootstrapOptions struct {
	ID       string
	Email    string
	Password string
	Stdout   io.Writer
	Stderr   io.Writer
}

// BootstrapCommand creates the first super admin together with its login account.
func (c *AccessCLI) BootstrapCommand(ctx context.Context, opts BootstrapOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if strings.TrimSpace(opts.ID) == "" || strings.TrimSpace(opts.Email) == "" {
		_, _ = fmt.Fprintln(stderr, "bootstrap: --id and --email are required")
		return ExitFailure
	}
	account, err := c.accounts.Register(ctx, opts.Email, opts.Password)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "bootstrap: register account: %v\n", err)
		return ExitFailure
	}
	doc, err := c.roles.Bootstrap(ctx, opts.ID, account.Email)
	switch {
	case errors.Is(err, rolestore.ErrDuplicate):
		_, _ = fmt.Fprintf(stderr, "bootstrap: %s is already provisioned\n", account.Email)
		return ExitFailure
	case err != nil:
		_, _ = fmt.Fprintf(stderr, "bootstrap: %v\n", err)
		return ExitFailure
	}
	_, _ = fmt.Fprintf(stdout, "provisioned %s as %s (id %s)\n", doc.Email, access.RoleDisplayName(access.Role(doc.Role)), doc.ID)
	return ExitOK
}

// ShowOptions defines flags for the show command.
type ShowOptions struct {
	Email      string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ShowSummary is the JSON shape printed by show.
type ShowSummary struct {
	ID                   string          `json:"id"`
	Email                string          `json:"email"`
	Role                 access.Role     `json:"role"`
	Home                 string          `json:"home"`
	CanManagePermissions bool            `json:"can_manage_permissions"`
	Permissions          []access.PageID `json:"permissions"`
	Pages                []access.PageID `json:"pages"`
}

// ShowCommand prints the Role Record of an email and the pages it unlocks.
func (c *AccessCLI) ShowCommand(ctx context.Context, opts ShowOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if strings.TrimSpace(opts.Email) == "" {
		_, _ = fmt.Fprintln(stderr, "show: --email is required")
		return ExitFailure
	}
	rec, err := c.roles.Lookup(ctx, opts.Email)
	if err != nil {
		if rolestore.IsNotFound(err) {
			_, _ = fmt.Fprintf(stderr, "show: no role record for %s\n", opts.Email)
			return ExitNotFound
		}
		_, _ = fmt.Fprintf(stderr, "show: %v\n", err)
		return ExitFailure
	}
	summary := summarize(rec)
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "show: encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	_, _ = fmt.Fprintf(stdout, "%s (%s) %s\n", summary.Email, summary.ID, access.RoleDisplayName(summary.Role))
	_, _ = fmt.Fprintf(stdout, "home: %s\n", summary.Home)
	_, _ = fmt.Fprintf(stdout, "stored permissions: %s\n", joinIDs(summary.Permissions))
	_, _ = fmt.Fprintf(stdout, "accessible pages: %s\n", joinIDs(summary.Pages))
	return ExitOK
}

func summarize(rec *access.Record) ShowSummary {
	pages := access.AccessiblePages(rec)
	ids := make([]access.PageID, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ShowSummary{
		ID:                   rec.ID,
		Email:                rec.Email,
		Role:                 rec.Role,
		Home:                 access.HomeLink(rec.Role),
		CanManagePermissions: access.CanManagePermissions(rec),
		Permissions:          rec.Permissions.Slice(),
		Pages:                ids,
	}
}

// PagesOptions defines flags for the pages command.
type PagesOptions struct {
	Seller     bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// PagesCommand prints the admin catalog, or the seller pages.
func PagesCommand(opts PagesOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	pages := access.Catalog()
	if opts.Seller {
		pages = access.SellerPages()
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(pages); err != nil {
			_, _ = fmt.Fprintf(stderr, "pages: encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	for _, p := range pages {
		_, _ = fmt.Fprintf(stdout, "%-18s %-16s %s\n", p.ID, p.Name, p.Link)
	}
	return ExitOK
}

func joinIDs(ids []access.PageID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
