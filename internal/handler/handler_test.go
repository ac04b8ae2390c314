package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errandly/backend/internal/auth"
	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/feed"
	"github.com/errandly/backend/internal/handler"
	"github.com/errandly/backend/internal/service"
)

// mockAccountServicer is a test double for handler.AccountServicer.
// Set only the method fields your test needs.
type mockAccountServicer struct {
	signUp        func(ctx context.Context, params service.SignUpParams) (domain.Profile, error)
	signIn        func(ctx context.Context, email, password string) (service.Session, error)
	signOut       func(ctx context.Context, sid string) error
	verifySession func(ctx context.Context, token string) (auth.Claims, error)
	getProfile    func(ctx context.Context, uid uuid.UUID) (domain.Profile, error)
	updateProfile func(ctx context.Context, uid uuid.UUID, params service.UpdateProfileParams) (domain.Profile, error)
}

func (m *mockAccountServicer) SignUp(ctx context.Context, p service.SignUpParams) (domain.Profile, error) {
	return m.signUp(ctx, p)
}
func (m *mockAccountServicer) SignIn(ctx context.Context, email, password string) (service.Session, error) {
	return m.signIn(ctx, email, password)
}
func (m *mockAccountServicer) SignOut(ctx context.Context, sid string) error {
	return m.signOut(ctx, sid)
}
func (m *mockAccountServicer) VerifySession(ctx context.Context, token string) (auth.Claims, error) {
	return m.verifySession(ctx, token)
}
func (m *mockAccountServicer) GetProfile(ctx context.Context, uid uuid.UUID) (domain.Profile, error) {
	return m.getProfile(ctx, uid)
}
func (m *mockAccountServicer) UpdateProfile(ctx context.Context, uid uuid.UUID, p service.UpdateProfileParams) (domain.Profile, error) {
	return m.updateProfile(ctx, uid, p)
}

var _ handler.AccountServicer = (*mockAccountServicer)(nil)

// mockRequestServicer is a test double for handler.RequestServicer.
type mockRequestServicer struct {
	create   func(ctx context.Context, requesterID uuid.UUID, params service.CreateRequestParams) (domain.Request, error)
	accept   func(ctx context.Context, requestID, userID uuid.UUID, durationMinutes int) (domain.Request, error)
	complete func(ctx context.Context, requestID, userID uuid.UUID) (domain.Request, error)
	listOpen func(ctx context.Context, viewer *domain.Coordinate) ([]domain.Request, error)
	history  func(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) (domain.RequestHistory, error)
}

func (m *mockRequestServicer) Create(ctx context.Context, requesterID uuid.UUID, p service.CreateRequestParams) (domain.Request, error) {
	return m.create(ctx, requesterID, p)
}
func (m *mockRequestServicer) Accept(ctx context.Context, requestID, userID uuid.UUID, minutes int) (domain.Request, error) {
	return m.accept(ctx, requestID, userID, minutes)
}
func (m *mockRequestServicer) Complete(ctx context.Context, requestID, userID uuid.UUID) (domain.Request, error) {
	return m.complete(ctx, requestID, userID)
}
func (m *mockRequestServicer) ListOpen(ctx context.Context, viewer *domain.Coordinate) ([]domain.Request, error) {
	return m.listOpen(ctx, viewer)
}
func (m *mockRequestServicer) History(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) (domain.RequestHistory, error) {
	return m.history(ctx, uid, page)
}

var _ handler.RequestServicer = (*mockRequestServicer)(nil)

// ---- helpers ---------------------------------------------------------------

const testToken = "test-token"

// authedAccounts returns a mock whose VerifySession accepts testToken for
// the given user. Other method fields can be set afterwards.
func authedAccounts(userID uuid.UUID) *mockAccountServicer {
	return &mockAccountServicer{
		verifySession: func(_ context.Context, token string) (auth.Claims, error) {
			if token != testToken {
				return auth.Claims{}, domain.ErrUnauthorized
			}
			return auth.Claims{UserID: userID, SessionID: "sid-1"}, nil
		},
	}
}

func newHTTPHandler(accounts handler.AccountServicer, requests handler.RequestServicer, feedSub handler.FeedSubscriber) http.Handler {
	return handler.NewServer(accounts, requests, feedSub, nil).Router()
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func profileFixture(uid uuid.UUID) domain.Profile {
	return domain.Profile{
		UID:       uid,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Email:     "ada@example.com",
		Birthday:  time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC),
		Phone:     "5551234567",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func requestFixture(requester uuid.UUID) domain.Request {
	return domain.Request{
		ID:           uuid.New(),
		RequesterID:  requester,
		RequestText:  "walk my dog",
		Location:     domain.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		RadiusMeters: 500,
		CreatedAt:    time.Now().UTC(),
	}
}

// ---- GET /healthz ----------------------------------------------------------

func TestHealth_200(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// ---- POST /auth/signup -----------------------------------------------------

func TestSignUp_201(t *testing.T) {
	accounts := authedAccounts(uuid.New())
	accounts.signUp = func(_ context.Context, p service.SignUpParams) (domain.Profile, error) {
		require.Equal(t, "ada@example.com", p.Email)
		require.Equal(t, 1990, p.Birthday.Year())
		profile := profileFixture(uuid.New())
		profile.Phone = ""
		return profile, nil
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"username":   "ada",
		"email":      "ada@example.com",
		"password":   "Str0ng!pass",
		"birthday":   "1990-12-10",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada", resp["username"])
	// A fresh account has no phone yet, so the onboarding warning rides along.
	assert.NotEmpty(t, resp["warning"])
}

func TestSignUp_422_Validation(t *testing.T) {
	accounts := authedAccounts(uuid.New())
	accounts.signUp = func(_ context.Context, _ service.SignUpParams) (domain.Profile, error) {
		return domain.Profile{}, fmt.Errorf("%w: you must be at least 18 years old to sign up", domain.ErrValidation)
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{
		"first_name": "Kid",
		"last_name":  "Young",
		"username":   "kid",
		"email":      "kid@example.com",
		"password":   "Str0ng!pass",
		"birthday":   "2015-01-01",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "18 years old")
}

func TestSignUp_409_UsernameTaken(t *testing.T) {
	accounts := authedAccounts(uuid.New())
	accounts.signUp = func(_ context.Context, _ service.SignUpParams) (domain.Profile, error) {
		return domain.Profile{}, fmt.Errorf("%w: username is already taken", domain.ErrConflict)
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"username":   "ada",
		"email":      "ada@example.com",
		"password":   "Str0ng!pass",
		"birthday":   "1990-12-10",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "username is already taken")
}

func TestSignUp_400_MalformedBody(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- POST /auth/signin -----------------------------------------------------

func TestSignIn_200(t *testing.T) {
	uid := uuid.New()
	accounts := authedAccounts(uid)
	accounts.signIn = func(_ context.Context, email, password string) (service.Session, error) {
		require.Equal(t, "ada@example.com", email)
		require.Equal(t, "Str0ng!pass", password)
		return service.Session{
			Token:     "jwt-token",
			SessionID: "sid-1",
			ExpiresAt: time.Now().Add(time.Hour),
			Profile:   profileFixture(uid),
		}, nil
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{"email": "ada@example.com", "password": "Str0ng!pass"})
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jwt-token", resp["token"])
}

func TestSignIn_401_BadCredentials(t *testing.T) {
	accounts := authedAccounts(uuid.New())
	accounts.signIn = func(_ context.Context, _, _ string) (service.Session, error) {
		return service.Session{}, domain.ErrUnauthorized
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{"email": "ada@example.com", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username or password is incorrect.")
}

// ---- POST /auth/signout, GET /auth/me --------------------------------------

func TestSignOut_204(t *testing.T) {
	var deletedSID string
	accounts := authedAccounts(uuid.New())
	accounts.signOut = func(_ context.Context, sid string) error {
		deletedSID = sid
		return nil
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/auth/signout", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "sid-1", deletedSID)
}

func TestMe_200(t *testing.T) {
	uid := uuid.New()
	accounts := authedAccounts(uid)
	accounts.getProfile = func(_ context.Context, got uuid.UUID) (domain.Profile, error) {
		require.Equal(t, uid, got)
		return profileFixture(uid), nil
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/auth/me", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada", resp["username"])
	// Completed accounts carry no warning.
	assert.Nil(t, resp["warning"])
}

func TestMe_401_WithoutToken(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ---- PUT /profile ----------------------------------------------------------

func TestUpdateProfile_200(t *testing.T) {
	uid := uuid.New()
	accounts := authedAccounts(uid)
	accounts.updateProfile = func(_ context.Context, got uuid.UUID, p service.UpdateProfileParams) (domain.Profile, error) {
		require.Equal(t, uid, got)
		profile := profileFixture(uid)
		profile.Phone = p.Phone
		return profile, nil
	}
	h := newHTTPHandler(accounts, &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"birthday":   "1990-12-10",
		"phone":      "5559876543",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPut, "/profile", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "5559876543")
}

// ---- POST /requests --------------------------------------------------------

func TestCreateRequest_201(t *testing.T) {
	uid := uuid.New()
	requests := &mockRequestServicer{
		create: func(_ context.Context, requesterID uuid.UUID, p service.CreateRequestParams) (domain.Request, error) {
			require.Equal(t, uid, requesterID)
			require.Equal(t, "walk my dog", p.Text)
			require.InDelta(t, 500.0, p.RadiusMeters, 1e-9)
			return requestFixture(requesterID), nil
		},
	}
	h := newHTTPHandler(authedAccounts(uid), requests, nil)

	body := jsonBody(t, map[string]any{
		"text":          "walk my dog",
		"latitude":      40.7128,
		"longitude":     -74.0060,
		"radius_meters": 500,
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "open", resp["status"])
	// 500 m is under a quarter mile, so the display is in feet.
	assert.Equal(t, "1640 ft", resp["radius_display"])
}

func TestCreateRequest_401_WithoutToken(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{"text": "walk my dog"})
	req := httptest.NewRequest(http.MethodPost, "/requests/", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRequest_422_Validation(t *testing.T) {
	requests := &mockRequestServicer{
		create: func(_ context.Context, _ uuid.UUID, _ service.CreateRequestParams) (domain.Request, error) {
			return domain.Request{}, fmt.Errorf("%w: request text is required", domain.ErrValidation)
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, nil)

	body := jsonBody(t, map[string]any{"text": ""})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/", body))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "request text is required")
}

// ---- GET /requests/open ----------------------------------------------------

func TestListOpen_200(t *testing.T) {
	requests := &mockRequestServicer{
		listOpen: func(_ context.Context, viewer *domain.Coordinate) ([]domain.Request, error) {
			require.Nil(t, viewer)
			return []domain.Request{requestFixture(uuid.New())}, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/open", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Nil(t, resp.Data[0]["distance_miles"])
}

func TestListOpen_200_WithViewerLocation(t *testing.T) {
	requests := &mockRequestServicer{
		listOpen: func(_ context.Context, viewer *domain.Coordinate) ([]domain.Request, error) {
			require.NotNil(t, viewer)
			return []domain.Request{requestFixture(uuid.New())}, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/open?lat=40.7128&lon=-74.0060", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	// Viewer at the request origin: distance is present and ~0.
	require.NotNil(t, resp.Data[0]["distance_miles"])
	assert.InDelta(t, 0.0, resp.Data[0]["distance_miles"].(float64), 1e-6)
}

func TestListOpen_400_HalfSetCoordinatePair(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/open?lat=40.7", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOpen_422_OutOfRangeCoordinate(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/open?lat=95&lon=10", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- POST /requests/{id}/accept --------------------------------------------

func TestAcceptRequest_200(t *testing.T) {
	uid := uuid.New()
	fixture := requestFixture(uuid.New())
	requests := &mockRequestServicer{
		accept: func(_ context.Context, requestID, userID uuid.UUID, minutes int) (domain.Request, error) {
			require.Equal(t, fixture.ID, requestID)
			require.Equal(t, uid, userID)
			require.Equal(t, 45, minutes)
			accepted := fixture
			accepted.Acceptance = &domain.Acceptance{UserID: userID, AcceptedAt: time.Now(), DurationMinutes: minutes}
			return accepted, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uid), requests, nil)

	body := jsonBody(t, map[string]any{"duration_minutes": 45})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/"+fixture.ID.String()+"/accept", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)
}

func TestAcceptRequest_409_AlreadyAccepted(t *testing.T) {
	requests := &mockRequestServicer{
		accept: func(_ context.Context, _, _ uuid.UUID, _ int) (domain.Request, error) {
			return domain.Request{}, fmt.Errorf("conflict: request was already accepted: %w", domain.ErrConflict)
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, nil)

	body := jsonBody(t, map[string]any{"duration_minutes": 30})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/"+uuid.NewString()+"/accept", body))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAcceptRequest_400_BadID(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	body := jsonBody(t, map[string]any{"duration_minutes": 30})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/not-a-uuid/accept", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- POST /requests/{id}/complete ------------------------------------------

func TestCompleteRequest_200(t *testing.T) {
	uid := uuid.New()
	fixture := requestFixture(uuid.New())
	fixture.Acceptance = &domain.Acceptance{UserID: uid, AcceptedAt: time.Now(), DurationMinutes: 30}
	requests := &mockRequestServicer{
		complete: func(_ context.Context, requestID, userID uuid.UUID) (domain.Request, error) {
			require.Equal(t, fixture.ID, requestID)
			require.Equal(t, uid, userID)
			done := fixture
			now := time.Now()
			done.CompletedAt = &now
			return done, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uid), requests, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/"+fixture.ID.String()+"/complete", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestCompleteRequest_401_NotAccepter(t *testing.T) {
	requests := &mockRequestServicer{
		complete: func(_ context.Context, _, _ uuid.UUID) (domain.Request, error) {
			return domain.Request{}, domain.ErrUnauthorized
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/requests/"+uuid.NewString()+"/complete", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ---- GET /requests/history -------------------------------------------------

func TestHistory_200(t *testing.T) {
	uid := uuid.New()
	open := requestFixture(uid)
	accepted := requestFixture(uuid.New())
	accepted.Acceptance = &domain.Acceptance{UserID: uid, AcceptedAt: time.Now(), DurationMinutes: 15}

	requests := &mockRequestServicer{
		history: func(_ context.Context, got uuid.UUID, page domain.PaginationParams) (domain.RequestHistory, error) {
			require.Equal(t, uid, got)
			require.Equal(t, 2, page.Page)
			require.Equal(t, 5, page.Limit)
			return domain.RequestHistory{
				Open:       []domain.Request{open},
				InProgress: []domain.Request{},
				Completed:  []domain.Request{},
				Accepted:   []domain.Request{accepted},
			}, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uid), requests, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/history?page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Open       []map[string]any `json:"open"`
		InProgress []map[string]any `json:"in_progress"`
		Completed  []map[string]any `json:"completed"`
		Accepted   []map[string]any `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Open, 1)
	assert.Empty(t, resp.InProgress)
	assert.Empty(t, resp.Completed)
	assert.Len(t, resp.Accepted, 1)
}

// ---- GET /requests/feed ----------------------------------------------------

// stubFeed emits the given updates and then blocks until ctx ends.
type stubFeed struct {
	updates []feed.Update
}

func (s *stubFeed) Subscribe(ctx context.Context) (<-chan feed.Update, func() error) {
	ch := make(chan feed.Update)
	go func() {
		defer close(ch)
		for _, u := range s.updates {
			select {
			case ch <- u:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return ch, func() error { return nil }
}

var _ handler.FeedSubscriber = (*stubFeed)(nil)

func TestStreamFeed_503_WhenDisabled(t *testing.T) {
	h := newHTTPHandler(authedAccounts(uuid.New()), &mockRequestServicer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/requests/feed", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamFeed_EmitsEvents(t *testing.T) {
	existing := requestFixture(uuid.New())
	fixture := requestFixture(uuid.New())
	sub := &stubFeed{updates: []feed.Update{{Kind: feed.KindCreated, Request: fixture}}}
	requests := &mockRequestServicer{
		listOpen: func(_ context.Context, _ *domain.Coordinate) ([]domain.Request, error) {
			return []domain.Request{existing}, nil
		},
	}
	h := newHTTPHandler(authedAccounts(uuid.New()), requests, sub)

	ctx, cancel := context.WithCancel(context.Background())
	req := authedRequest(http.MethodGet, "/requests/feed", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	// End the stream shortly after the single update has been delivered.
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: snapshot")
	assert.Contains(t, rec.Body.String(), existing.ID.String())
	assert.Contains(t, rec.Body.String(), "event: created")
	assert.Contains(t, rec.Body.String(), fixture.ID.String())
}
