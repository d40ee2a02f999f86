// Package handlers wires the listing endpoints to the edge core: requests
// arrive through the rate limiter and cache facade, reads run through the
// query optimizer, and writes invalidate the cache prefixes they staled.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/cache"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// UserStore resolves the caller for write authorization; publishing content
// requires approved membership (or reviewer standing), checked fresh.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

func canPublish(ctx context.Context, users UserStore, userID string) bool {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return false
	}
	return user.IsReviewer || user.MembershipTier == models.TierApproved
}

type EventStore interface {
	ListEvents(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Event, int, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, e *models.Event) error
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type EventsHandler struct {
	store    EventStore
	users    UserStore
	cache    *cache.Cache
	ttl      time.Duration
	validate *validator.Validate
}

func NewEventsHandler(store EventStore, users UserStore, c *cache.Cache, ttl time.Duration) *EventsHandler {
	return &EventsHandler{
		store:    store,
		users:    users,
		cache:    c,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *EventsHandler) RegisterRoutes(router *mux.Router, authMW *auth.Middleware, uploadLimit mux.MiddlewareFunc) {
	listCache := h.cache.Middleware("events:list", cache.Options{TTL: h.ttl})
	itemCache := h.cache.Middleware("events:id", cache.Options{TTL: h.ttl})

	router.Handle("/events", listCache(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/events/{id}", itemCache(http.HandlerFunc(h.Get))).Methods("GET")

	router.Handle("/events",
		uploadLimit(authMW.Require(http.HandlerFunc(h.Create)))).Methods("POST")
	router.Handle("/events/{id}",
		uploadLimit(authMW.Require(http.HandlerFunc(h.Update)))).Methods("PUT")
	router.Handle("/events/{id}",
		authMW.Require(http.HandlerFunc(h.Delete))).Methods("DELETE")
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters []query.Filter
	if text := q.Get("query"); text != "" {
		filters = append(filters, query.Text{Query: text})
	}
	if category := q.Get("category"); category != "" {
		filters = append(filters, query.Category{Value: category})
	}
	if date := q.Get("date"); date != "" {
		from, err := time.Parse("2006-01-02", date)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		filters = append(filters, query.DateRange{From: from})
	} else {
		// Only upcoming events unless the caller asks for a date.
		filters = append(filters, query.DateRange{From: time.Now()})
	}

	page := query.ParsePage(q.Get("page"), q.Get("limit"))

	events, total, err := h.store.ListEvents(r.Context(), filters, page)
	if err != nil {
		log.Error().Err(err).Msg("list events failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	api.OK(w, map[string]any{
		"events":     events,
		"pagination": query.Paginate(page, total),
	})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	event, err := h.store.GetEvent(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("event", id).Msg("get event failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch event")
		return
	}

	api.OK(w, map[string]any{"event": event})
}

type eventRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"required,max=2000"`
	Category    string     `json:"category" validate:"required,oneof=festival celebration pandal event"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     *time.Time `json:"end_date"`
	Venue       string     `json:"venue" validate:"required,max=200"`
	Latitude    *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64   `json:"longitude" validate:"omitempty,longitude"`
	Images      []string   `json:"images" validate:"required,min=1,dive,url"`
}

func (h *EventsHandler) decodeEvent(w http.ResponseWriter, r *http.Request) (*eventRequest, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid event payload")
		return nil, false
	}
	return &req, true
}

func (req *eventRequest) toModel() *models.Event {
	return &models.Event{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Venue:       req.Venue,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Images:      req.Images,
	}
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish events")
		return
	}

	req, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	event := req.toModel()
	if err := h.store.CreateEvent(r.Context(), event); err != nil {
		log.Error().Err(err).Msg("create event failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	// The write is durable; drop every cached view that may include it.
	h.invalidate(r.Context())

	api.Created(w, map[string]any{"event": event}, "Event created")
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish events")
		return
	}

	req, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	event := req.toModel()
	event.ID = mux.Vars(r)["id"]

	err := h.store.UpdateEvent(r.Context(), event)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("event", event.ID).Msg("update event failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to update event")
		return
	}

	h.invalidate(r.Context())

	api.JSON(w, http.StatusOK, api.Response{
		Success: true,
		Data:    map[string]any{"event": event},
		Message: "Event updated",
	})
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish events")
		return
	}

	id := mux.Vars(r)["id"]
	err := h.store.DeleteEvent(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("event", id).Msg("delete event failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}

	h.invalidate(r.Context())

	api.Message(w, "Event deleted")
}

func (h *EventsHandler) invalidate(ctx context.Context) {
	h.cache.Invalidate(ctx, "events:list*", "events:id*", "search*")
}
