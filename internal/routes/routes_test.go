package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/handlers"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/models"
	"github.com/nikhil/worktrack/internal/realtime"
)

const secret = "test-secret"

// stubTimer implements only the calls the routing tests reach.
type stubTimer struct {
	handlers.TimerService
	startedOrg int64
	listOrg    *int64
}

func (s *stubTimer) Start(_ context.Context, userID, orgID int64, _ models.StartOptions) (*models.TimeEntry, error) {
	s.startedOrg = orgID
	return &models.TimeEntry{ID: 1, UserID: userID, OrganizationID: orgID}, nil
}

func (s *stubTimer) ListActive(_ context.Context, _ int64, orgID *int64) ([]models.TimeEntry, error) {
	s.listOrg = orgID
	return nil, nil
}

type stubKPI struct {
	handlers.KPIService
	calls int
}

func (s *stubKPI) GenerateSummary(context.Context, int64, daterange.Period, time.Time) (*models.KPISummary, error) {
	s.calls++
	return &models.KPISummary{}, nil
}

func (s *stubKPI) Location() *time.Location { return time.UTC }

// stubMembers makes user 7 an owner of organizations 3 and 4 and user 8 staff in 3.
type stubMembers struct{}

func (stubMembers) MemberRole(_ context.Context, userID, orgID int64) (models.Role, error) {
	switch {
	case userID == 7 && (orgID == 3 || orgID == 4):
		return models.RoleOwner, nil
	case userID == 8 && orgID == 3:
		return models.RoleStaff, nil
	}
	return "", apperr.ErrNotFound
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter(timer *stubTimer, kpi *stubKPI, limiter *middleware.OrgRateLimiter) http.Handler {
	return RegisterAllRoutes(&Dependencies{
		Timer:       timer,
		KPI:         kpi,
		Hub:         realtime.NewHub(logger.Nop()),
		JWTSecret:   secret,
		RateLimiter: limiter,
		Members:     stubMembers{},
		Location:    time.UTC,
		Log:         logger.Nop(),
	})
}

func do(t *testing.T, h http.Handler, method, target string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTimerRoutesRequireAuth(t *testing.T) {
	timer := &stubTimer{}
	router := newRouter(timer, &stubKPI{}, nil)

	rr := do(t, router, http.MethodPost, "/timer/3/start", 0)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, timer.startedOrg)

	rr = do(t, router, http.MethodPost, "/timer/3/start", 7)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(3), timer.startedOrg)
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestActiveListingRoutes(t *testing.T) {
	timer := &stubTimer{}
	router := newRouter(timer, &stubKPI{}, nil)

	rr := do(t, router, http.MethodGet, "/timer/active", 7)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, timer.listOrg)

	rr = do(t, router, http.MethodGet, "/timer/4/entries/active", 7)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, timer.listOrg)
	assert.Equal(t, int64(4), *timer.listOrg)
}

func TestKPIRoutesAreRateLimitedPerOrganization(t *testing.T) {
	kpi := &stubKPI{}
	router := newRouter(&stubTimer{}, kpi, middleware.NewOrgRateLimiter(1, 1))

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/kpi/3/summary", 7).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, http.MethodGet, "/kpi/3/summary", 7).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/kpi/4/summary", 7).Code)
	assert.Equal(t, 2, kpi.calls)
}

func TestWebSocketRouteRequiresToken(t *testing.T) {
	router := newRouter(&stubTimer{}, &stubKPI{}, nil)

	rr := do(t, router, http.MethodGet, "/ws", 0)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMetricsRoute(t *testing.T) {
	router := newRouter(&stubTimer{}, &stubKPI{}, nil)

	rr := do(t, router, http.MethodGet, "/metrics", 0)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestOrganizationRoutesEnforceMembership(t *testing.T) {
	timer := &stubTimer{}
	kpi := &stubKPI{}
	router := newRouter(timer, kpi, nil)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodPost, "/timer/5/start", 7).Code)
	assert.Zero(t, timer.startedOrg)
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/timer/3/start", 8).Code)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, "/kpi/5/summary", 7).Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, "/kpi/3/summary", 8).Code)
	assert.Zero(t, kpi.calls)

	// cross-organization timer routes only touch the caller's own entries
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/timer/active", 9).Code)
}
