package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/cache"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

type fakePlaceStore struct {
	places  []models.Place
	filters []query.Filter
	deleted []string
}

func (s *fakePlaceStore) ListPlaces(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Place, int, error) {
	s.filters = filters
	return s.places, len(s.places), nil
}

func (s *fakePlaceStore) GetPlace(ctx context.Context, id string) (*models.Place, error) {
	for i := range s.places {
		if s.places[i].ID == id {
			return &s.places[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakePlaceStore) CreatePlace(ctx context.Context, p *models.Place) error {
	p.ID = "new-id"
	return nil
}

func (s *fakePlaceStore) UpdatePlace(ctx context.Context, p *models.Place) error {
	if _, err := s.GetPlace(ctx, p.ID); err != nil {
		return err
	}
	return nil
}

func (s *fakePlaceStore) DeletePlace(ctx context.Context, id string) error {
	if _, err := s.GetPlace(ctx, id); err != nil {
		return err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func placesRouter(store PlaceStore, users UserStore) (*mux.Router, *recordingStore) {
	router := mux.NewRouter()
	authMW := auth.NewMiddleware(eventsTestSecret)
	cacheStore := &recordingStore{}
	c := cache.New(cacheStore, time.Second)
	NewPlacesHandler(store, users, c, time.Minute).RegisterRoutes(router, authMW, passthrough)
	return router, cacheStore
}

func listPlaces(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestListPlacesGeoFilter(t *testing.T) {
	store := &fakePlaceStore{}
	router, _ := placesRouter(store, &fakeUsers{})

	rec := listPlaces(router, "/places?lat=22.57&lng=88.36&radius=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}

	var geo *query.GeoRadius
	for _, f := range store.filters {
		if g, ok := f.(query.GeoRadius); ok {
			geo = &g
		}
	}
	if geo == nil {
		t.Fatal("geo filter was not applied")
	}
	if geo.Lat != 22.57 || geo.Lng != 88.36 || geo.RadiusKm != 5 {
		t.Errorf("geo filter = %+v", geo)
	}
}

func TestListPlacesGeoDefaultRadius(t *testing.T) {
	store := &fakePlaceStore{}
	router, _ := placesRouter(store, &fakeUsers{})

	if rec := listPlaces(router, "/places?lat=22.57&lng=88.36"); rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}

	for _, f := range store.filters {
		if g, ok := f.(query.GeoRadius); ok {
			if g.RadiusKm != defaultRadiusKm {
				t.Errorf("radius = %v, want default %v", g.RadiusKm, defaultRadiusKm)
			}
			return
		}
	}
	t.Fatal("geo filter was not applied")
}

func TestListPlacesGeoValidation(t *testing.T) {
	router, _ := placesRouter(&fakePlaceStore{}, &fakeUsers{})

	tests := []struct {
		name   string
		target string
	}{
		{"lat without lng", "/places?lat=22.57"},
		{"non-numeric lat", "/places?lat=abc&lng=88.36"},
		{"lat out of range", "/places?lat=123&lng=88.36"},
		{"lng out of range", "/places?lat=22.57&lng=300"},
		{"radius too large", "/places?lat=22.57&lng=88.36&radius=500"},
		{"radius not a number", "/places?lat=22.57&lng=88.36&radius=near"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := listPlaces(router, tt.target); rec.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rec.Code)
			}
		})
	}
}

func TestDeletePlaceInvalidatesCaches(t *testing.T) {
	users := &fakeUsers{users: map[string]*models.User{
		"u1": {ID: "u1", MembershipTier: models.TierApproved},
	}}
	store := &fakePlaceStore{places: []models.Place{{ID: "p1"}}}
	router, cacheStore := placesRouter(store, users)

	token, err := auth.GenerateToken("u1", eventsTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest("DELETE", "/places/p1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 1 || store.deleted[0] != "p1" {
		t.Errorf("deleted = %v, want [p1]", store.deleted)
	}
	if len(cacheStore.patterns) == 0 {
		t.Error("delete must invalidate cached listings")
	}
}
