package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
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

const (
	defaultRadiusKm = 10.0
	maxRadiusKm     = 100.0
)

type PlaceStore interface {
	ListPlaces(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Place, int, error)
	GetPlace(ctx context.Context, id string) (*models.Place, error)
	CreatePlace(ctx context.Context, p *models.Place) error
	UpdatePlace(ctx context.Context, p *models.Place) error
	DeletePlace(ctx context.Context, id string) error
}

type PlacesHandler struct {
	store    PlaceStore
	users    UserStore
	cache    *cache.Cache
	ttl      time.Duration
	validate *validator.Validate
}

func NewPlacesHandler(store PlaceStore, users UserStore, c *cache.Cache, ttl time.Duration) *PlacesHandler {
	return &PlacesHandler{
		store:    store,
		users:    users,
		cache:    c,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *PlacesHandler) RegisterRoutes(router *mux.Router, authMW *auth.Middleware, uploadLimit mux.MiddlewareFunc) {
	listCache := h.cache.Middleware("places:list", cache.Options{TTL: h.ttl})
	itemCache := h.cache.Middleware("places:id", cache.Options{TTL: h.ttl})

	router.Handle("/places", listCache(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/places/{id}", itemCache(http.HandlerFunc(h.Get))).Methods("GET")

	router.Handle("/places",
		uploadLimit(authMW.Require(http.HandlerFunc(h.Create)))).Methods("POST")
	router.Handle("/places/{id}",
		uploadLimit(authMW.Require(http.HandlerFunc(h.Update)))).Methods("PUT")
	router.Handle("/places/{id}",
		authMW.Require(http.HandlerFunc(h.Delete))).Methods("DELETE")
}

// parseGeo pulls lat/lng/radius from the query string. All three are
// optional, but lat and lng come as a pair and radius stays in (0, 100].
func parseGeo(q map[string][]string) (*query.GeoRadius, error) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	latStr, lngStr := get("lat"), get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, errors.New("lat and lng must be provided together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, errors.New("lat must be a number between -90 and 90")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, errors.New("lng must be a number between -180 and 180")
	}

	radius := defaultRadiusKm
	if radiusStr := get("radius"); radiusStr != "" {
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil || radius <= 0 || radius > maxRadiusKm {
			return nil, errors.New("radius must be a number between 0 and 100 km")
		}
	}

	return &query.GeoRadius{Lat: lat, Lng: lng, RadiusKm: radius}, nil
}

func (h *PlacesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters []query.Filter
	if text := q.Get("query"); text != "" {
		filters = append(filters, query.Text{Query: text})
	}
	if category := q.Get("category"); category != "" {
		filters = append(filters, query.Category{Value: category})
	}
	geo, err := parseGeo(q)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if geo != nil {
		filters = append(filters, *geo)
	}

	page := query.ParsePage(q.Get("page"), q.Get("limit"))

	places, total, err := h.store.ListPlaces(r.Context(), filters, page)
	if err != nil {
		log.Error().Err(err).Msg("list places failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch places")
		return
	}

	api.OK(w, map[string]any{
		"places":     places,
		"pagination": query.Paginate(page, total),
	})
}

func (h *PlacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	place, err := h.store.GetPlace(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Place not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("place", id).Msg("get place failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch place")
		return
	}

	api.OK(w, map[string]any{"place": place})
}

type placeRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=2000"`
	Category    string   `json:"category" validate:"required,max=60"`
	Rating      float64  `json:"rating" validate:"gte=0,lte=5"`
	Latitude    float64  `json:"latitude" validate:"latitude"`
	Longitude   float64  `json:"longitude" validate:"longitude"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
}

func (h *PlacesHandler) decodePlace(w http.ResponseWriter, r *http.Request) (*placeRequest, bool) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid place payload")
		return nil, false
	}
	return &req, true
}

func (req *placeRequest) toModel() *models.Place {
	return &models.Place{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Rating:      req.Rating,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Images:      req.Images,
	}
}

func (h *PlacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish places")
		return
	}

	req, ok := h.decodePlace(w, r)
	if !ok {
		return
	}

	place := req.toModel()
	if err := h.store.CreatePlace(r.Context(), place); err != nil {
		log.Error().Err(err).Msg("create place failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to create place")
		return
	}

	h.invalidate(r.Context())

	api.Created(w, map[string]any{"place": place}, "Place created")
}

func (h *PlacesHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish places")
		return
	}

	req, ok := h.decodePlace(w, r)
	if !ok {
		return
	}

	place := req.toModel()
	place.ID = mux.Vars(r)["id"]

	err := h.store.UpdatePlace(r.Context(), place)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Place not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("place", place.ID).Msg("update place failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to update place")
		return
	}

	h.invalidate(r.Context())

	api.JSON(w, http.StatusOK, api.Response{
		Success: true,
		Data:    map[string]any{"place": place},
		Message: "Place updated",
	})
}

func (h *PlacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	if !canPublish(r.Context(), h.users, claims.UserID) {
		api.Fail(w, http.StatusForbidden, "Approved membership required to publish places")
		return
	}

	id := mux.Vars(r)["id"]
	err := h.store.DeletePlace(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Place not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("place", id).Msg("delete place failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to delete place")
		return
	}

	h.invalidate(r.Context())

	api.Message(w, "Place deleted")
}

func (h *PlacesHandler) invalidate(ctx context.Context) {
	h.cache.Invalidate(ctx, "places:list*", "places:id*", "search*")
}
