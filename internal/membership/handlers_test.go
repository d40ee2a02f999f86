package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// memStore keeps users and applications in memory with the same transition
// rules as the persistence layer.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	apps  map[string]*models.MembershipApplication
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*models.User),
		apps:  make(map[string]*models.MembershipApplication),
	}
}

func (s *memStore) addUser(id string, tier models.MembershipTier, reviewer bool) {
	s.users[id] = &models.User{ID: id, MembershipTier: tier, IsReviewer: reviewer}
}

func (s *memStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *memStore) GetApplicationForUser(ctx context.Context, userID string) (*models.MembershipApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.MembershipApplication
	for _, app := range s.apps {
		if app.UserID != userID {
			continue
		}
		if latest == nil || app.AppliedAt.After(latest.AppliedAt) {
			latest = app
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *memStore) SubmitApplication(ctx context.Context, userID string, handle *string, bio string, sampleWork *string) (*models.MembershipApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	switch user.MembershipTier {
	case models.TierApproved:
		return nil, db.ErrAlreadyMember
	case models.TierPending:
		return nil, db.ErrDuplicateApplication
	}

	app := &models.MembershipApplication{
		ID:         uuid.NewString(),
		UserID:     userID,
		Handle:     handle,
		Bio:        bio,
		SampleWork: sampleWork,
		Status:     models.StatusPending,
		AppliedAt:  time.Now(),
	}
	s.apps[app.ID] = app
	user.MembershipTier = models.TierPending

	out := *app
	return &out, nil
}

func (s *memStore) ReviewApplication(ctx context.Context, id string, approve bool, reviewerID string, notes *string) (*models.MembershipApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if app.Status != models.StatusPending {
		return nil, db.ErrAlreadyReviewed
	}

	now := time.Now()
	app.ReviewedAt = &now
	app.ReviewedBy = &reviewerID
	app.ReviewNotes = notes
	if approve {
		app.Status = models.StatusApproved
		s.users[app.UserID].MembershipTier = models.TierApproved
	} else {
		app.Status = models.StatusRejected
		s.users[app.UserID].MembershipTier = models.TierRegular
	}

	out := *app
	return &out, nil
}

func (s *memStore) ListApplications(ctx context.Context, status string, page query.Page) ([]models.MembershipApplication, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var apps []models.MembershipApplication
	for _, app := range s.apps {
		if status == "" || string(app.Status) == status {
			apps = append(apps, *app)
		}
	}
	return apps, len(apps), nil
}

const testSecret = "test-secret"

func newTestServer(store Store) *mux.Router {
	router := mux.NewRouter()
	authMW := auth.NewMiddleware(testSecret)
	passthrough := mux.MiddlewareFunc(func(next http.Handler) http.Handler { return next })
	NewHandler(store).RegisterRoutes(router, authMW, passthrough)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		token, err := auth.GenerateToken(userID, testSecret, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestApplyRequiresAuth(t *testing.T) {
	router := newTestServer(newMemStore())

	rec := doJSON(t, router, "POST", "/membership/apply", "", map[string]string{"bio": "A long enough biography text."})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	router := newTestServer(store)

	rec := doJSON(t, router, "POST", "/membership/apply", "u1", map[string]string{
		"bio": "I have been covering local festivals for six years.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	if store.users["u1"].MembershipTier != models.TierPending {
		t.Errorf("applicant tier = %q, want pending", store.users["u1"].MembershipTier)
	}
}

func TestApplyValidatesBio(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	router := newTestServer(store)

	rec := doJSON(t, router, "POST", "/membership/apply", "u1", map[string]string{"bio": "too short"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short bio: got %d, want 400", rec.Code)
	}
	if len(store.apps) != 0 {
		t.Error("invalid application must not be stored")
	}
}

func TestApplyConflicts(t *testing.T) {
	store := newMemStore()
	store.addUser("approved", models.TierApproved, false)
	store.addUser("pending", models.TierPending, false)
	router := newTestServer(store)

	body := map[string]string{"bio": "I have been covering local festivals for six years."}

	if rec := doJSON(t, router, "POST", "/membership/apply", "approved", body); rec.Code != http.StatusConflict {
		t.Errorf("approved member: got %d, want 409", rec.Code)
	}
	if rec := doJSON(t, router, "POST", "/membership/apply", "pending", body); rec.Code != http.StatusConflict {
		t.Errorf("pending applicant: got %d, want 409", rec.Code)
	}
}

func TestReapplyAfterRejection(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	store.addUser("rev", models.TierRegular, true)
	router := newTestServer(store)

	body := map[string]string{"bio": "I have been covering local festivals for six years."}

	first := doJSON(t, router, "POST", "/membership/apply", "u1", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("first apply: got %d", first.Code)
	}

	var created struct {
		Data struct {
			Application models.MembershipApplication `json:"application"`
		} `json:"data"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	reject := doJSON(t, router, "PATCH", "/membership/applications/"+created.Data.Application.ID+"/review",
		"rev", map[string]string{"decision": "rejected"})
	if reject.Code != http.StatusOK {
		t.Fatalf("reject: got %d: %s", reject.Code, reject.Body.String())
	}

	second := doJSON(t, router, "POST", "/membership/apply", "u1", body)
	if second.Code != http.StatusCreated {
		t.Errorf("re-application after rejection: got %d, want 201", second.Code)
	}
}

func TestStatusReportsLatestApplication(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	router := newTestServer(store)

	rec := doJSON(t, router, "GET", "/membership/status", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}

	doJSON(t, router, "POST", "/membership/apply", "u1", map[string]string{
		"bio": "I have been covering local festivals for six years.",
	})

	rec = doJSON(t, router, "GET", "/membership/status", "u1", nil)
	var resp struct {
		Data struct {
			Application *models.MembershipApplication `json:"application"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Application == nil || resp.Data.Application.Status != models.StatusPending {
		t.Errorf("expected a pending application, got %+v", resp.Data.Application)
	}
}

func TestReviewRequiresReviewer(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	router := newTestServer(store)

	rec := doJSON(t, router, "PATCH", "/membership/applications/any/review", "u1",
		map[string]string{"decision": "approved"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("got %d, want 403", rec.Code)
	}
}

func TestReviewValidatesDecision(t *testing.T) {
	store := newMemStore()
	store.addUser("rev", models.TierRegular, true)
	router := newTestServer(store)

	rec := doJSON(t, router, "PATCH", "/membership/applications/any/review", "rev",
		map[string]string{"decision": "maybe"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestReviewNotFound(t *testing.T) {
	store := newMemStore()
	store.addUser("rev", models.TierRegular, true)
	router := newTestServer(store)

	rec := doJSON(t, router, "PATCH", "/membership/applications/missing/review", "rev",
		map[string]string{"decision": "approved"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}
}

func TestReviewIsOneShot(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	store.addUser("rev", models.TierRegular, true)
	router := newTestServer(store)

	first := doJSON(t, router, "POST", "/membership/apply", "u1", map[string]string{
		"bio": "I have been covering local festivals for six years.",
	})
	var created struct {
		Data struct {
			Application models.MembershipApplication `json:"application"`
		} `json:"data"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	path := "/membership/applications/" + created.Data.Application.ID + "/review"

	approve := doJSON(t, router, "PATCH", path, "rev", map[string]string{"decision": "approved"})
	if approve.Code != http.StatusOK {
		t.Fatalf("approve: got %d: %s", approve.Code, approve.Body.String())
	}
	if store.users["u1"].MembershipTier != models.TierApproved {
		t.Errorf("applicant tier = %q, want approved", store.users["u1"].MembershipTier)
	}

	again := doJSON(t, router, "PATCH", path, "rev", map[string]string{"decision": "rejected"})
	if again.Code != http.StatusConflict {
		t.Errorf("second review: got %d, want 409", again.Code)
	}
	if store.users["u1"].MembershipTier != models.TierApproved {
		t.Error("settled decision must not change on a second review attempt")
	}
}

func TestListApplicationsRequiresReviewer(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", models.TierRegular, false)
	router := newTestServer(store)

	rec := doJSON(t, router, "GET", "/membership/applications", "u1", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("got %d, want 403", rec.Code)
	}
}

func TestListApplicationsRejectsBadStatus(t *testing.T) {
	store := newMemStore()
	store.addUser("rev", models.TierRegular, true)
	router := newTestServer(store)

	rec := doJSON(t, router, "GET", "/membership/applications?status=weird", "rev", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}
