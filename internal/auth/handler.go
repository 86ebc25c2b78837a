package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazaar-commerce/console/internal/access"
	"github.com/bazaar-commerce/console/internal/platform/httpx"
	"github.com/bazaar-commerce/console/internal/shared"
)

// RecordLookup resolves the Role Record used to pick the landing surface.
type RecordLookup interface {
	Lookup(ctx context.Context, email string) (*access.Record, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	records        RecordLookup
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, records RecordLookup, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		records:        records,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Principal access.Principal `json:"principal"`
	Home      string           `json:"home"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SignIn(account.UID, account.Email)

	home := access.HomeLogin
	if h.records != nil {
		rec, err := h.records.Lookup(r.Context(), account.Email)
		switch {
		case err == nil:
			home = access.HomeLink(rec.Role)
		case !errors.Is(err, shared.ErrNotFound):
			h.logger.Warn("login role lookup", slog.String("email", account.Email), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Principal: access.Principal{UID: account.UID, Email: account.Email},
		Home:      home,
	})
}

type loginPage struct {
	Action string   `json:"action"`
	Fields []string `json:"fields"`
}

// handleLoginPage describes the login form, or sends a signed-in principal home.
func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Email() != "" && h.records != nil {
		rec, err := h.records.Lookup(r.Context(), sess.Email())
		if err == nil {
			if route := access.Route(rec.Role, access.SurfaceLogin); !route.Allow {
				http.Redirect(w, r, route.Redirect, http.StatusSeeOther)
				return
			}
		}
	}
	httpx.JSON(w, http.StatusOK, loginPage{Action: access.HomeLogin, Fields: []string{"email", "password"}})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
