package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dnakit/internal/config"
	"dnakit/internal/models"
	"dnakit/internal/service"
	"dnakit/internal/session"
	"dnakit/internal/upstream"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSecret = "http_test_secret"

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Load(ctx context.Context, userID string) (*models.Snapshot, error) {
	args := m.Called(ctx, userID)
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap, args.Error(1)
}

func (m *mockReconciler) Rows(ctx context.Context, userID string, refresh bool) ([]models.Row, error) {
	args := m.Called(ctx, userID, refresh)
	rows, _ := args.Get(0).([]models.Row)
	return rows, args.Error(1)
}

func (m *mockReconciler) CheckIn(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	args := m.Called(ctx, userID, bookingID)
	res, _ := args.Get(0).(*models.ActionResult)
	return res, args.Error(1)
}

func (m *mockReconciler) ReceiveKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	args := m.Called(ctx, userID, bookingID)
	res, _ := args.Get(0).(*models.ActionResult)
	return res, args.Error(1)
}

func (m *mockReconciler) ShipKit(ctx context.Context, userID, bookingID string) (*models.ActionResult, error) {
	args := m.Called(ctx, userID, bookingID)
	res, _ := args.Get(0).(*models.ActionResult)
	return res, args.Error(1)
}

func (m *mockReconciler) Cancel(ctx context.Context, userID, bookingID string, confirmed bool) (*models.ActionResult, error) {
	args := m.Called(ctx, userID, bookingID, confirmed)
	res, _ := args.Get(0).(*models.ActionResult)
	return res, args.Error(1)
}

func (m *mockReconciler) History(ctx context.Context, userID, bookingID string) ([]models.JournalEntry, error) {
	args := m.Called(ctx, userID, bookingID)
	entries, _ := args.Get(0).([]models.JournalEntry)
	return entries, args.Error(1)
}

type mockKitEditor struct {
	mock.Mock
}

func (m *mockKitEditor) List(ctx context.Context) ([]models.KitView, error) {
	args := m.Called(ctx)
	kits, _ := args.Get(0).([]models.KitView)
	return kits, args.Error(1)
}

func (m *mockKitEditor) SetStatus(ctx context.Context, staffID, kitID string, status models.KitStatus) error {
	return m.Called(ctx, staffID, kitID, status).Error(0)
}

func (m *mockKitEditor) Create(ctx context.Context, staffID string, req models.NewKit) (*models.Kit, error) {
	args := m.Called(ctx, staffID, req)
	kit, _ := args.Get(0).(*models.Kit)
	return kit, args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "dnakit-test"},
		Auth: config.AuthConfig{
			JWTSecret:  testSecret,
			UserClaim:  "sub",
			RoleClaim:  "role",
			StaffRoles: []string{"Staff", "Admin"},
		},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

type testEnv struct {
	server   *HTTPServer
	bookings *mockReconciler
	kits     *mockKitEditor
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	env := &testEnv{bookings: &mockReconciler{}, kits: &mockKitEditor{}}
	env.server = NewHTTPServer(cfg, Services{
		Bookings: env.bookings,
		Kits:     env.kits,
		Sessions: session.NewParser(cfg.Auth),
	}, &logger)
	env.server.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return env
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	env.server.svc.Ready = func(context.Context) error { return errors.New("database is locked") }
	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", decodeError(t, rec).Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, testConfig())

	t.Run("MissingToken", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/my/bookings", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("WrongSignature", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
		raw, err := tok.SignedString([]byte("other"))
		require.NoError(t, err)
		rec := env.do(t, http.MethodGet, "/api/v1/my/bookings", raw, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MissingUserClaim", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/my/bookings", token(t, "", "Customer"), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	env.bookings.AssertNotCalled(t, "Rows", mock.Anything, mock.Anything, mock.Anything)
}

func TestListBookings(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rows := []models.Row{{ID: "10", BookingID: "10", Status: models.BookingConfirmed, KitStatus: models.KitNone}}

	env.bookings.On("Rows", mock.Anything, "7", true).Return(rows, nil).Once()
	env.bookings.On("Rows", mock.Anything, "7", false).Return([]models.Row(nil), nil).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/my/bookings", token(t, "7", "Customer"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rows []models.Row `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "10", body.Rows[0].BookingID)

	rec = env.do(t, http.MethodGet, "/api/v1/my/bookings?cached=true", token(t, "7", "Customer"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/my/bookings?cached=maybe", token(t, "7", "Customer"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.bookings.AssertExpectations(t)
}

func TestBookingActions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	bearer := token(t, "7", "Customer")

	ok := &models.ActionResult{Action: models.ActionCheckIn, Outcome: models.OutcomeOK, Row: models.Row{BookingID: "3", Status: models.BookingCheckedIn}}
	env.bookings.On("CheckIn", mock.Anything, "7", "3").Return(ok, nil)
	env.bookings.On("ReceiveKit", mock.Anything, "7", "5").Return(&models.ActionResult{Action: models.ActionReceiveKit, Outcome: models.OutcomeNoop}, nil)
	env.bookings.On("ShipKit", mock.Anything, "7", "5").Return(nil, service.ErrActionNotAllowed)

	rec := env.do(t, http.MethodPost, "/api/v1/my/bookings/3/check-in", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.OutcomeOK, got.Outcome)
	assert.Equal(t, models.BookingCheckedIn, got.Row.Status)

	rec = env.do(t, http.MethodPost, "/api/v1/my/bookings/5/kit/receive", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.OutcomeNoop, got.Outcome)

	rec = env.do(t, http.MethodPost, "/api/v1/my/bookings/5/kit/ship", bearer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ACTION_NOT_ALLOWED", decodeError(t, rec).Code)
}

func TestCancelConfirmation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	bearer := token(t, "7", "Customer")

	env.bookings.On("Cancel", mock.Anything, "7", "4", false).Return(nil, service.ErrConfirmationRequired)
	env.bookings.On("Cancel", mock.Anything, "7", "4", true).
		Return(&models.ActionResult{Action: models.ActionCancel, Outcome: models.OutcomeOK}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/my/bookings/4/cancel", bearer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/my/bookings/4/cancel", bearer, map[string]bool{"confirm": true})
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/my/bookings/4/cancel", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+bearer)
	raw := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	env.bookings.AssertExpectations(t)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"booking not found", service.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"state changed", fmt.Errorf("check_in 1: %w", service.ErrStateChanged), http.StatusConflict, "STATE_CHANGED"},
		{"body too large", fmt.Errorf("%w: appointments.list", upstream.ErrTooLarge), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"upstream 500", &upstream.Error{Endpoint: "appointments.update", StatusCode: 500, Message: "boom"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"upstream 401", &upstream.Error{Endpoint: "appointments.update", StatusCode: 401}, http.StatusUnauthorized, "UPSTREAM_REJECTED"},
		{"upstream 404", &upstream.Error{Endpoint: "kit.update", StatusCode: 404}, http.StatusNotFound, "NOT_FOUND"},
		{"transport", errors.Join(upstream.ErrUnavailable, errors.New("connection refused")), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"malformed", upstream.ErrMalformed, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			env.bookings.On("CheckIn", mock.Anything, "7", "1").Return(nil, tt.err)

			rec := env.do(t, http.MethodPost, "/api/v1/my/bookings/1/check-in", token(t, "7", "Customer"), nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error", apiErr.Message)
			}
		})
	}
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t, testConfig())
	entries := []models.JournalEntry{{ID: 1, UserID: "7", BookingID: "3", Action: models.ActionCheckIn, Outcome: models.OutcomeOK}}
	env.bookings.On("History", mock.Anything, "7", "3").Return(entries, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/my/bookings/3/journal", token(t, "7", "Customer"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []models.JournalEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, models.ActionCheckIn, body.Entries[0].Action)
}

func TestKitRoutesRequireStaff(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/kits", token(t, "7", "Customer"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	env.kits.AssertNotCalled(t, "List", mock.Anything)
}

func TestKitRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	staff := token(t, "s1", "staff")
	views := []models.KitView{{
		Kit:          models.Kit{KitID: "K5", BookingID: "5", Status: models.KitDelivering},
		CustomerName: "Nguyễn Văn A",
		StaffName:    models.Placeholder,
	}}

	t.Run("List", func(t *testing.T) {
		env.kits.On("List", mock.Anything).Return(views, nil)
		rec := env.do(t, http.MethodGet, "/api/v1/kits", staff, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Kits []models.KitView `json:"kits"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Kits, 1)
		assert.Equal(t, "K5", body.Kits[0].KitID)
	})

	t.Run("Create", func(t *testing.T) {
		req := models.NewKit{BookingID: "8", Description: "buccal swab"}
		created := &models.Kit{KitID: "K8", BookingID: "8", StaffID: "s1", Status: models.KitDelivering}
		env.kits.On("Create", mock.Anything, "s1", req).Return(created, nil)

		rec := env.do(t, http.MethodPost, "/api/v1/kits", staff, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var got models.Kit
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "K8", got.KitID)
	})

	t.Run("CreateBlocked", func(t *testing.T) {
		req := models.NewKit{BookingID: "9"}
		env.kits.On("Create", mock.Anything, "s1", req).Return(nil, service.ErrKitCreationBlocked)

		rec := env.do(t, http.MethodPost, "/api/v1/kits", staff, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "KIT_CREATION_BLOCKED", decodeError(t, rec).Code)
	})

	t.Run("CreateRequiresBooking", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/kits", staff, models.NewKit{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("SetStatus", func(t *testing.T) {
		env.kits.On("SetStatus", mock.Anything, "s1", "K5", models.KitSampled).Return(nil)
		env.kits.On("SetStatus", mock.Anything, "s1", "K5", models.KitLost).Return(service.ErrInvalidKitStatus)

		rec := env.do(t, http.MethodPut, "/api/v1/kits/K5/status", staff, map[string]string{"status": string(models.KitSampled)})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"kitId":"K5","status":"Đã lấy mẫu"}`, rec.Body.String())

		rec = env.do(t, http.MethodPut, "/api/v1/kits/K5/status", staff, map[string]string{"status": string(models.KitLost)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_KIT_STATUS", decodeError(t, rec).Code)
	})

	t.Run("Export", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/kits/export", staff, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "kits-20261015.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Kits")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "K5", rows[2][0])
	})
}

func TestRateLimitPerUser(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 1}
	env := newTestEnv(t, cfg)
	env.bookings.On("Rows", mock.Anything, mock.Anything, true).Return([]models.Row{}, nil)

	first := token(t, "1", "Customer")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/my/bookings", first, nil).Code)
	rec := env.do(t, http.MethodGet, "/api/v1/my/bookings", first, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	// Another user has its own bucket.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/my/bookings", token(t, "2", "Customer"), nil).Code)
}
