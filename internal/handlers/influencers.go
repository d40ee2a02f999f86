package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/cache"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// InfluencerStore is read-only; influencer records are managed out of band.
type InfluencerStore interface {
	ListInfluencers(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Influencer, int, error)
	GetInfluencer(ctx context.Context, id string) (*models.Influencer, error)
}

type InfluencersHandler struct {
	store InfluencerStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewInfluencersHandler(store InfluencerStore, c *cache.Cache, ttl time.Duration) *InfluencersHandler {
	return &InfluencersHandler{store: store, cache: c, ttl: ttl}
}

func (h *InfluencersHandler) RegisterRoutes(router *mux.Router) {
	listCache := h.cache.Middleware("influencers:list", cache.Options{TTL: h.ttl})
	itemCache := h.cache.Middleware("influencers:id", cache.Options{TTL: h.ttl})

	router.Handle("/influencers", listCache(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/influencers/{id}", itemCache(http.HandlerFunc(h.Get))).Methods("GET")
}

func (h *InfluencersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters []query.Filter
	if text := q.Get("query"); text != "" {
		filters = append(filters, query.Text{Query: text})
	}
	if category := q.Get("category"); category != "" {
		filters = append(filters, query.Category{Value: category})
	}

	page := query.ParsePage(q.Get("page"), q.Get("limit"))

	influencers, total, err := h.store.ListInfluencers(r.Context(), filters, page)
	if err != nil {
		log.Error().Err(err).Msg("list influencers failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch influencers")
		return
	}

	api.OK(w, map[string]any{
		"influencers": influencers,
		"pagination":  query.Paginate(page, total),
	})
}

func (h *InfluencersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	influencer, err := h.store.GetInfluencer(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "Influencer not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("influencer", id).Msg("get influencer failed")
		api.Fail(w, http.StatusInternalServerError, "Failed to fetch influencer")
		return
	}

	api.OK(w, map[string]any{"influencer": influencer})
}
