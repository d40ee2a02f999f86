// Package membership exposes the application lifecycle: a user submits an
// application (none -> pending), a reviewer settles it (pending -> approved
// or rejected, exactly once), and the user's tier follows the decision.
package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// Store is the persistence surface the handlers need.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetApplicationForUser(ctx context.Context, userID string) (*models.MembershipApplication, error)
	SubmitApplication(ctx context.Context, userID string, handle *string, bio string, sampleWork *string) (*models.MembershipApplication, error)
	ReviewApplication(ctx context.Context, id string, approve bool, reviewerID string, notes *string) (*models.MembershipApplication, error)
	ListApplications(ctx context.Context, status string, page query.Page) ([]models.MembershipApplication, int, error)
}

type Handler struct {
	store    Store
	validate *validator.Validate
}

func NewHandler(store Store) *Handler {
	return &Handler{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the membership endpoints. All of them require an
// authenticated caller; apply additionally sits behind its endpoint-class
// limiter.
func (h *Handler) RegisterRoutes(router *mux.Router, authMW *auth.Middleware, applyLimit mux.MiddlewareFunc) {
	router.Handle("/membership/apply",
		applyLimit(authMW.Require(http.HandlerFunc(h.Apply)))).Methods("POST")
	router.Handle("/membership/status",
		authMW.Require(http.HandlerFunc(h.Status))).Methods("GET")
	router.Handle("/membership/applications",
		authMW.Require(http.HandlerFunc(h.ListApplications))).Methods("GET")
	router.Handle("/membership/applications/{id}/review",
		authMW.Require(http.HandlerFunc(h.Review))).Methods("PATCH")
}

type applyRequest struct {
	Handle     *string `json:"handle" validate:"omitempty,max=60"`
	Bio        string  `json:"bio" validate:"required,min=20,max=1000"`
	SampleWork *string `json:"sampleWork" validate:"omitempty,url"`
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Bio is required (20-1000 characters); sampleWork must be a URL")
		return
	}

	app, err := h.store.SubmitApplication(r.Context(), claims.UserID, req.Handle, req.Bio, req.SampleWork)
	switch {
	case errors.Is(err, db.ErrAlreadyMember):
		api.Fail(w, http.StatusConflict, "You already hold approved membership")
		return
	case errors.Is(err, db.ErrDuplicateApplication):
		api.Fail(w, http.StatusConflict, "You already have a pending application")
		return
	case errors.Is(err, db.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		log.Error().Err(err).Str("user", claims.UserID).Msg("submit application failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to submit application")
		return
	}

	api.Created(w, map[string]any{"application": app}, "Membership application submitted successfully")
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	app, err := h.store.GetApplicationForUser(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", claims.UserID).Msg("fetch application status failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch application status")
		return
	}

	api.OK(w, map[string]any{"application": app})
}

type reviewRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approved rejected"`
	Notes    *string `json:"notes" validate:"omitempty,max=1000"`
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !h.isReviewer(r.Context(), claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Reviewer access required")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, `Decision must be "approved" or "rejected"`)
		return
	}

	id := mux.Vars(r)["id"]
	approve := req.Decision == "approved"

	app, err := h.store.ReviewApplication(r.Context(), id, approve, claims.UserID, req.Notes)
	switch {
	case errors.Is(err, db.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "Application not found")
		return
	case errors.Is(err, db.ErrAlreadyReviewed):
		api.Fail(w, http.StatusConflict, "Application has already been reviewed")
		return
	case err != nil:
		log.Error().Err(err).Str("application", id).Msg("review application failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to review application")
		return
	}

	api.JSON(w, http.StatusOK, api.Response{
		Success: true,
		Data:    map[string]any{"application": app},
		Message: "Application " + req.Decision + " successfully",
	})
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !h.isReviewer(r.Context(), claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Reviewer access required")
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", "pending", "approved", "rejected":
	default:
		api.Fail(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	page := query.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))

	apps, total, err := h.store.ListApplications(r.Context(), status, page)
	if err != nil {
		log.Error().Err(err).Msg("list applications failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch applications")
		return
	}

	api.OK(w, map[string]any{
		"applications": apps,
		"pagination":   query.Paginate(page, total),
	})
}

func (h *Handler) isReviewer(ctx context.Context, userID string) bool {
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		return false
	}
	return user.IsReviewer
}
