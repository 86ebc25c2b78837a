package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/identity"
	"github.com/bazaar-commerce/console/internal/platform/httpx"
	"github.com/bazaar-commerce/console/internal/rolestore"
)

// RoleAdmin is the role store surface used by the permissions pages.
type RoleAdmin interface {
	RecordLookup
	List(ctx context.Context) ([]rolestore.Document, error)
	Provision(ctx context.Context, actor *access.Record, rec *access.Record) (rolestore.Document, error)
	Replace(ctx context.Context, actor *access.Record, rec *access.Record) (rolestore.Document, error)
	Grant(ctx context.Context, actor *access.Record, email string, pages ...access.PageID) (rolestore.Document, error)
	Revoke(ctx context.Context, actor *access.Record, email string, pages ...access.PageID) (rolestore.Document, error)
	Deprovision(ctx context.Context, actor *access.Record, email string) error
}

// Handler exposes the console and portal endpoints.
type Handler struct {
	gate      *Gate
	roles     RoleAdmin
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(gate *Gate, roles RoleAdmin, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gate: gate, roles: roles, logger: logger, validator: validator.New()}
}

// MountAPI registers the principal-facing API routes.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Post("/authorize", h.handleAuthorize)
	r.Post("/authorize/write", h.handleAuthorizeWrite)
}

// MountAdmin registers the admin console routes.
func (h *Handler) MountAdmin(r chi.Router) {
	home := h.gate.Require(access.Policy{Surface: access.SurfaceAdmin})
	r.With(home).Get("/", h.handlePages)
	r.With(home).Get("/pages", h.handlePages)

	manage := access.Policy{Surface: access.SurfaceAdmin, RequiredPermission: access.PagePermissions}
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(manage))
		r.Get("/catalog", h.handleCatalog)
		r.Get("/roles", h.handleListRoles)
		r.Get("/roles/{email}", h.handleGetRole)
		r.Post("/roles", h.handleProvision)
		r.Put("/roles/{email}", h.handleReplace)
		r.Post("/roles/{email}/grants", h.handleGrant)
		r.Delete("/roles/{email}/grants/{page}", h.handleRevoke)
		r.Delete("/roles/{email}", h.handleDeprovision)
	})
}

// MountSeller registers the seller portal routes.
func (h *Handler) MountSeller(r chi.Router) {
	home := h.gate.Require(access.Policy{Surface: access.SurfaceSeller})
	r.With(home).Get("/", h.handlePages)
	r.With(home).Get("/pages", h.handlePages)
	r.With(h.gate.Require(
		access.Policy{Surface: access.SurfaceSeller, RequiredPermission: access.PageSellerDashboard},
		SellerFromURLParam("sellerID"),
	)).Get("/{sellerID}/overview", h.handleSellerOverview)
}

type roleView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	RoleName    string     `json:"role_name"`
	RoleColor   string     `json:"role_color"`
	Permissions []string   `json:"permissions"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func viewFromDocument(doc rolestore.Document) roleView {
	role := access.Role(doc.Role)
	v := roleView{
		ID:          doc.ID,
		Email:       doc.Email,
		Role:        doc.Role,
		RoleName:    access.RoleDisplayName(role),
		RoleColor:   access.RoleColor(role),
		Permissions: doc.Permissions,
		UpdatedBy:   doc.UpdatedBy,
	}
	if v.Permissions == nil {
		v.Permissions = []string{}
	}
	if !doc.UpdatedAt.IsZero() {
		at := doc.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

func viewFromRecord(rec *access.Record) roleView {
	return viewFromDocument(rolestore.FromRecord(rec))
}

type meResponse struct {
	Principal            access.Principal        `json:"principal"`
	Provisioned          bool                    `json:"provisioned"`
	Role                 string                  `json:"role,omitempty"`
	RoleName             string                  `json:"role_name"`
	RoleColor            string                  `json:"role_color"`
	Home                 string                  `json:"home"`
	SellerInterface      bool                    `json:"seller_interface"`
	CanManagePermissions bool                    `json:"can_manage_permissions"`
	Permissions          []access.PageID         `json:"permissions"`
	Pages                []access.PageDescriptor `json:"pages"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	snap := h.gate.Snapshot(r)
	if snap.Principal == nil {
		unauthorized(w)
		return
	}
	if snap.Loading {
		unavailable(w)
		return
	}
	rec := snap.Record
	resp := meResponse{
		Principal:            *snap.Principal,
		Home:                 access.HomeLogin,
		RoleName:             access.RoleDisplayName(""),
		RoleColor:            access.RoleColor(""),
		Permissions:          access.EffectivePermissions(rec).Slice(),
		Pages:                access.AccessiblePages(rec),
		SellerInterface:      access.ShouldUseSellersInterface(rec),
		CanManagePermissions: access.CanManagePermissions(rec),
	}
	if rec != nil {
		resp.Provisioned = true
		resp.Role = string(rec.Role)
		resp.RoleName = access.RoleDisplayName(rec.Role)
		resp.RoleColor = access.RoleColor(rec.Role)
		resp.Home = access.HomeLink(rec.Role)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type authorizeRequest struct {
	Permission string `json:"permission" validate:"omitempty,max=64"`
	SellerID   string `json:"seller_id" validate:"omitempty,max=128"`
	Surface    string `json:"surface" validate:"omitempty,oneof=admin seller login"`
}

// handleAuthorize answers a guard question without serving the guarded content.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	policy := access.Policy{ResourceSellerID: req.SellerID, Surface: access.Surface(req.Surface)}
	if req.Permission != "" {
		id, err := access.ParsePageID(req.Permission)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		policy.RequiredPermission = id
	}
	decision := access.Evaluate(h.gate.Snapshot(r), policy)
	h.gate.observe(decision, policy.Surface)
	httpx.JSON(w, http.StatusOK, decision)
}

type authorizeWriteRequest struct {
	SellerID string `json:"seller_id" validate:"required,max=128"`
}

// handleAuthorizeWrite is the tenant assertion run before any seller-scoped write.
func (h *Handler) handleAuthorizeWrite(w http.ResponseWriter, r *http.Request) {
	var req authorizeWriteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	snap := h.gate.Snapshot(r)
	switch {
	case snap.Principal == nil:
		unauthorized(w)
		return
	case snap.Loading:
		unavailable(w)
		return
	}
	if err := access.ValidateSellerAccess(snap.Record, req.SellerID); err != nil {
		if snap.Record != nil {
			h.gate.reportTenantMismatch(r, snap, req.SellerID)
		}
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "write refused for this seller")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pagesResponse struct {
	Role  string                  `json:"role"`
	Home  string                  `json:"home"`
	Pages []access.PageDescriptor `json:"pages"`
}

func (h *Handler) handlePages(w http.ResponseWriter, r *http.Request) {
	rec := recordFromRequest(r)
	httpx.JSON(w, http.StatusOK, pagesResponse{
		Role:  string(rec.Role),
		Home:  access.HomeLink(rec.Role),
		Pages: access.AccessiblePages(rec),
	})
}

type roleOption struct {
	Role  access.Role `json:"role"`
	Name  string      `json:"name"`
	Color string      `json:"color"`
}

type catalogResponse struct {
	Roles       []roleOption            `json:"roles"`
	AdminPages  []access.PageDescriptor `json:"admin_pages"`
	SellerPages []access.PageDescriptor `json:"seller_pages"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	roles := access.Roles()
	opts := make([]roleOption, len(roles))
	for i, role := range roles {
		opts[i] = roleOption{Role: role, Name: access.RoleDisplayName(role), Color: access.RoleColor(role)}
	}
	httpx.JSON(w, http.StatusOK, catalogResponse{
		Roles:       opts,
		AdminPages:  access.Catalog(),
		SellerPages: access.SellerPages(),
	})
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	docs, err := h.roles.List(r.Context())
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	out := make([]roleView, len(docs))
	for i, doc := range docs {
		out[i] = viewFromDocument(doc)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": out})
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	rec, err := h.roles.Lookup(r.Context(), email)
	if errors.Is(err, rolestore.ErrInvalidRecord) {
		h.logger.Error("console: stored role record is invalid", slog.String("email", email), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "stored role record is invalid")
		return
	}
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewFromRecord(rec))
}

type roleRequest struct {
	ID          string   `json:"id" validate:"required,max=128"`
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,oneof=super_admin admin seller"`
	Permissions []string `json:"permissions" validate:"dive,required,max=64"`
}

func (req roleRequest) record() (*access.Record, error) {
	role, err := access.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	perms, err := parsePages(req.Permissions)
	if err != nil {
		return nil, err
	}
	return &access.Record{ID: req.ID, Email: req.Email, Role: role, Permissions: access.NewPermissionSet(perms...)}, nil
}

func (h *Handler) decodeRole(w http.ResponseWriter, r *http.Request) (*access.Record, bool) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return nil, false
	}
	if email := chi.URLParam(r, "email"); email != "" && req.Email == "" {
		req.Email = email
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return nil, false
	}
	rec, err := req.record()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, false
	}
	return rec, true
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	doc, err := h.roles.Provision(r.Context(), recordFromRequest(r), rec)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewFromDocument(doc))
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	if !sameEmail(rec.Email, chi.URLParam(r, "email")) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email does not match path")
		return
	}
	doc, err := h.roles.Replace(r.Context(), recordFromRequest(r), rec)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewFromDocument(doc))
}

type grantRequest struct {
	Pages []string `json:"pages" validate:"required,min=1,dive,required,max=64"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	pages, err := parsePages(req.Pages)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	doc, err := h.roles.Grant(r.Context(), recordFromRequest(r), chi.URLParam(r, "email"), pages...)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewFromDocument(doc))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	page, err := access.ParsePageID(chi.URLParam(r, "page"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	doc, err := h.roles.Revoke(r.Context(), recordFromRequest(r), chi.URLParam(r, "email"), page)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewFromDocument(doc))
}

func (h *Handler) handleDeprovision(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.Deprovision(r.Context(), recordFromRequest(r), chi.URLParam(r, "email")); err != nil {
		h.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sellerOverview struct {
	SellerID    string                  `json:"seller_id"`
	Pages       []access.PageDescriptor `json:"pages"`
	Permissions []access.PageID         `json:"permissions"`
}

func (h *Handler) handleSellerOverview(w http.ResponseWriter, r *http.Request) {
	rec := recordFromRequest(r)
	httpx.JSON(w, http.StatusOK, sellerOverview{
		SellerID:    chi.URLParam(r, "sellerID"),
		Pages:       access.AccessiblePages(rec),
		Permissions: access.EffectivePermissions(rec).Slice(),
	})
}

// respondStoreError maps role store failures onto problem responses.
func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case rolestore.IsNotFound(err):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role record not found")
	case errors.Is(err, rolestore.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "email or id already provisioned")
	case errors.Is(err, rolestore.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "only super admins manage permissions")
	case errors.Is(err, rolestore.ErrSelfMutation):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you cannot change your own role record")
	case errors.Is(err, rolestore.ErrInvalidRecord):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("console: role store", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func recordFromRequest(r *http.Request) *access.Record {
	snap, _ := SnapshotFromContext(r.Context())
	return snap.Record
}

func parsePages(raw []string) ([]access.PageID, error) {
	out := make([]access.PageID, 0, len(raw))
	for _, s := range raw {
		id, err := access.ParsePageID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func sameEmail(a, b string) bool {
	return identity.NormalizeEmail(a) == identity.NormalizeEmail(b)
}

func unauthorized(w http.ResponseWriter) {
	httpx.Write(w, httpx.ProblemDetail{
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: "sign in to continue",
		Links:  map[string]string{"login": access.HomeLogin},
	})
}

func unavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "role record unavailable, retry shortly")
}
