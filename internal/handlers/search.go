package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/cache"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// Caps for the combined search; each collection contributes at most this
// many rows so the aggregate response stays small.
const (
	searchCapEvents      = 5
	searchCapPlaces      = 5
	searchCapInfluencers = 3
)

type SearchStore interface {
	ListEvents(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Event, int, error)
	ListPlaces(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Place, int, error)
	ListInfluencers(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Influencer, int, error)
}

type SearchHandler struct {
	store SearchStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewSearchHandler(store SearchStore, c *cache.Cache, ttl time.Duration) *SearchHandler {
	return &SearchHandler{store: store, cache: c, ttl: ttl}
}

// RegisterRoutes mounts /search behind its endpoint-class limiter with the
// cache inside, so a cached hit still spends a search token.
func (h *SearchHandler) RegisterRoutes(router *mux.Router, searchLimit mux.MiddlewareFunc) {
	searchCache := h.cache.Middleware("search", cache.Options{TTL: h.ttl})
	router.Handle("/search", searchLimit(searchCache(http.HandlerFunc(h.Search)))).Methods("GET")
}

type searchSection struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	text := q.Get("query")
	if text == "" {
		api.Fail(w, http.StatusBadRequest, "Search query is required")
		return
	}

	searchType := q.Get("type")
	if searchType == "" {
		searchType = "all"
	}

	filters := []query.Filter{query.Text{Query: text}}
	if category := q.Get("category"); category != "" {
		filters = append(filters, query.Category{Value: category})
	}

	switch searchType {
	case "all":
		h.searchAll(w, r, text, filters)
	case "events", "places", "influencers":
		h.searchOne(w, r, text, searchType, filters)
	default:
		api.Fail(w, http.StatusBadRequest, "Type must be one of: events, places, influencers, all")
	}
}

func (h *SearchHandler) searchOne(w http.ResponseWriter, r *http.Request, text, searchType string, filters []query.Filter) {
	page := query.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))

	var (
		section searchSection
		err     error
	)
	switch searchType {
	case "events":
		var items []models.Event
		items, section.Total, err = h.store.ListEvents(r.Context(), filters, page)
		section.Items = items
	case "places":
		var items []models.Place
		items, section.Total, err = h.store.ListPlaces(r.Context(), filters, page)
		section.Items = items
	case "influencers":
		var items []models.Influencer
		items, section.Total, err = h.store.ListInfluencers(r.Context(), filters, page)
		section.Items = items
	}
	if err != nil {
		log.Error().Err(err).Str("type", searchType).Msg("search failed")
		api.Fail(w, http.StatusInternalServerError, "Search failed")
		return
	}

	api.OK(w, map[string]any{
		"query":      text,
		"type":       searchType,
		"results":    map[string]searchSection{searchType: section},
		"pagination": query.Paginate(page, section.Total),
	})
}

// searchAll fans the query out to all three collections concurrently. One
// failing collection fails the whole request; partial aggregates would be
// indistinguishable from empty matches.
func (h *SearchHandler) searchAll(w http.ResponseWriter, r *http.Request, text string, filters []query.Filter) {
	var (
		events      searchSection
		places      searchSection
		influencers searchSection
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		items, total, err := h.store.ListEvents(ctx, filters, query.NewPage(1, searchCapEvents))
		events = searchSection{Items: items, Total: total}
		return err
	})
	g.Go(func() error {
		items, total, err := h.store.ListPlaces(ctx, filters, query.NewPage(1, searchCapPlaces))
		places = searchSection{Items: items, Total: total}
		return err
	})
	g.Go(func() error {
		items, total, err := h.store.ListInfluencers(ctx, filters, query.NewPage(1, searchCapInfluencers))
		influencers = searchSection{Items: items, Total: total}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("combined search failed")
		api.Fail(w, http.StatusInternalServerError, "Search failed")
		return
	}

	api.OK(w, map[string]any{
		"query": text,
		"type":  "all",
		"results": map[string]searchSection{
			"events":      events,
			"places":      places,
			"influencers": influencers,
		},
	})
}
