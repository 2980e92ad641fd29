package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/internal/core/services"
	"collabstream/internal/infrastructure/middleware"
	"collabstream/internal/infrastructure/monitoring"
	apperrors "collabstream/pkg/errors"
)

type MockCollabService struct {
	mock.Mock
}

func (m *MockCollabService) CreateSession(ctx context.Context, in ports.CreateSessionInput) (*domain.Session, error) {
	args := m.Called(ctx, in)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockCollabService) MatchSession(ctx context.Context, in ports.MatchInput) (*domain.Session, error) {
	args := m.Called(ctx, in)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockCollabService) RefreshSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockCollabService) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockCollabService) ListSessions(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	args := m.Called(ctx, statuses)
	if s := args.Get(0); s != nil {
		return s.([]*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCollabService) DeleteSession(ctx context.Context, id domain.SessionID, caller domain.UserID) error {
	return m.Called(ctx, id, caller).Error(0)
}

func (m *MockCollabService) LiveInfo(ctx context.Context, id domain.SessionID) ([]*domain.StreamStatus, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.([]*domain.StreamStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func sessionArg(args mock.Arguments, i int) *domain.Session {
	if s := args.Get(i); s != nil {
		return s.(*domain.Session)
	}
	return nil
}

type testServer struct {
	router  *gin.Engine
	service *MockCollabService
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	auth := services.NewAuthService("test-secret", time.Hour)
	token, err := auth.GenerateToken("alice", "Alice")
	require.NoError(t, err)

	svc := new(MockCollabService)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger), middleware.ErrorHandlerMiddleware(logger))
	NewSessionHandler(svc).SetupRoutes(router, middleware.AuthMiddleware(auth))

	return &testServer{router: router, service: svc, token: token}
}

func (s *testServer) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func openSession() *domain.Session {
	return &domain.Session{
		ID:          "s1",
		Creator:     "alice",
		MaxPartners: 1,
		Slots:       []domain.Slot{{Occupant: "alice", VideoID: "aaaaaaaaaaa"}, {}},
		Status:      domain.StatusOpen,
		Version:     1,
	}
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)
	s.service.On("CreateSession", mock.Anything, ports.CreateSessionInput{
		Creator:     "alice",
		StreamURL:   "https://youtu.be/aaaaaaaaaaa",
		Description: "join me",
		MaxPartners: 2,
	}).Return(openSession(), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sessions", `{"stream_url":" https://youtu.be/aaaaaaaaaaa ","description":"join me","max_partners":2}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Session domain.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.SessionID("s1"), resp.Session.ID)
	assert.Equal(t, domain.StatusOpen, resp.Session.Status)
	s.service.AssertExpectations(t)
}

func TestCreateSession_DefaultsToOnePartner(t *testing.T) {
	s := newTestServer(t)
	s.service.On("CreateSession", mock.Anything, mock.MatchedBy(func(in ports.CreateSessionInput) bool {
		return in.MaxPartners == 1
	})).Return(openSession(), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sessions", `{"stream_url":"https://youtu.be/aaaaaaaaaaa"}`, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	s.service.AssertExpectations(t)
}

func TestCreateSession_Rejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/sessions", `{"stream_url":"https://youtu.be/aaaaaaaaaaa"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sessions", `{"description":"no url"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")

	s.service.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewInvalidLinkError()).Once()
	w = s.do(http.MethodPost, "/api/v1/sessions", `{"stream_url":"not a link"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_LINK")

	s.service.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewStreamUnverifiableError(domain.ErrUpstreamUnavailable)).Once()
	w = s.do(http.MethodPost, "/api/v1/sessions", `{"stream_url":"https://youtu.be/aaaaaaaaaaa"}`, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "cannot validate stream right now")
}

func TestMatchSession(t *testing.T) {
	s := newTestServer(t)
	matched := openSession()
	matched.Status = domain.StatusSettingUp
	s.service.On("MatchSession", mock.Anything, ports.MatchInput{
		SessionID: "s1",
		User:      "alice",
		StreamURL: "https://youtu.be/bbbbbbbbbbb",
	}).Return(matched, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sessions/s1/match", `{"stream_url":"https://youtu.be/bbbbbbbbbbb"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"setting_up"`)
}

func TestMatchSession_InvariantViolation(t *testing.T) {
	s := newTestServer(t)
	s.service.On("MatchSession", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewInvariantError(apperrors.ReasonSessionFull, "session is full")).Once()

	w := s.do(http.MethodPost, "/api/v1/sessions/s1/match", `{"stream_url":"https://youtu.be/bbbbbbbbbbb"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVARIANT_VIOLATION", body["error"])
	assert.Equal(t, "session_full", body["reason"])
}

func TestGetSession(t *testing.T) {
	s := newTestServer(t)
	s.service.On("GetSession", mock.Anything, domain.SessionID("s1")).Return(openSession(), nil).Once()
	s.service.On("GetSession", mock.Anything, domain.SessionID("missing")).
		Return(nil, apperrors.NewNotFoundError("session")).Once()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/sessions/s1", "", false).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/sessions/missing", "", false).Code)
}

func TestListSessions(t *testing.T) {
	s := newTestServer(t)
	s.service.On("ListSessions", mock.Anything, []domain.SessionStatus{domain.StatusOpen, domain.StatusSettingUp}).
		Return([]*domain.Session{openSession()}, nil).Once()
	s.service.On("ListSessions", mock.Anything, []domain.SessionStatus(nil)).
		Return(nil, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/sessions?status=open,%20setting_up", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = s.do(http.MethodGet, "/api/v1/sessions", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions":[]`)
	s.service.AssertExpectations(t)
}

func TestRefreshSession(t *testing.T) {
	s := newTestServer(t)
	s.service.On("RefreshSession", mock.Anything, domain.SessionID("s1")).Return(openSession(), nil).Once()

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/sessions/s1/refresh", "", false).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/sessions/s1/refresh", "", true).Code)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	s.service.On("DeleteSession", mock.Anything, domain.SessionID("s1"), domain.UserID("alice")).Return(nil).Once()
	s.service.On("DeleteSession", mock.Anything, domain.SessionID("s2"), domain.UserID("alice")).
		Return(apperrors.NewForbiddenError("only the creator may delete a session")).Once()

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/sessions/s1", "", true).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/sessions/s2", "", true).Code)
}

func TestLiveInfo(t *testing.T) {
	s := newTestServer(t)
	s.service.On("LiveInfo", mock.Anything, domain.SessionID("s1")).Return([]*domain.StreamStatus{
		{VideoID: "aaaaaaaaaaa", Valid: true, Live: true, ViewCount: 42},
		nil,
	}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/sessions/s1/live", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string                 `json:"session_id"`
		Slots     []*domain.StreamStatus `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, int64(42), resp.Slots[0].ViewCount)
	assert.Nil(t, resp.Slots[1])
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	checker := monitoring.NewHealthChecker()
	checker.AddStorageCheck(func(ctx context.Context) error {
		if !healthy {
			return assert.AnError
		}
		return nil
	}, time.Second)

	router := gin.New()
	NewHealthHandler(checker).SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
