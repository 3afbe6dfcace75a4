package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/dto"
	"staykeeper/internal/app/engine"
	"staykeeper/internal/app/uow"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
	"staykeeper/internal/infra/obs"
	"staykeeper/internal/infra/security"
	"staykeeper/internal/infra/storage/memory"
)

type testServer struct {
	router *gin.Engine
	tokens *security.TokenService
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	err := uow.Run(context.Background(), store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Listings().Save(ctx, &listings.Listing{
			ID:                 "listing-1",
			Host:               "host-1",
			Title:              "Loft",
			NightlyRate:        money.Must(10000, "USD"),
			CleaningFee:        money.Must(2000, "USD"),
			MaxGuests:          4,
			CancellationPolicy: listings.PolicyModerate,
			Published:          true,
		}); err != nil {
			return err
		}
		for _, u := range []user.User{{ID: "host-1", Type: user.TypeHost}, {ID: "guest-1", Type: user.TypeGuest}} {
			u := u
			if err := unit.Users().Save(ctx, &u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	eng := engine.New(engine.Dependencies{
		UoW:         store,
		Outbox:      memory.NewOutbox(store),
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Discounts:   memory.NewDiscountTable(),
		Clock:       clock.NewFixed(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)),
	})
	tokens, err := security.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	router := NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Commands: eng.Commands, Queries: eng.Queries},
		Availability:   AvailabilityHandler{Queries: eng.Queries},
		Commission:     CommissionHandler{Commands: eng.Commands, Queries: eng.Queries},
		AuthMiddleware: AuthMiddleware{Tokens: tokens}.Handle,
	})
	return testServer{router: router, tokens: tokens}
}

func (s testServer) do(t *testing.T, method, path, subject string, body any, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, err := s.tokens.Issue(subject, roles...)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createRequest() createBookingRequest {
	return createBookingRequest{ListingID: "listing-1", CheckIn: "2026-07-10", CheckOut: "2026-07-13", Guests: 2}
}

func TestCreateBookingRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/bookings", "", createRequest())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", createRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.Booking](t, rec)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "awaiting_host", created.Stage)
	assert.Equal(t, int64(32900), created.Price.Total.Amount)

	rec = s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", createRequest())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/confirm", "guest-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/confirm", "host-1", hostResponseRequest{Message: "welcome"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/commission", "host-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[dto.Commission](t, rec)
	assert.Equal(t, int64(4935), tx.Commission.Amount)
	assert.Equal(t, "pending", tx.Status)

	rec = s.do(t, http.MethodPost, "/api/v1/commissions/"+tx.ID+"/pay", "host-1", payCommissionRequest{Method: "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode[dto.Commission](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, "guest-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[dto.Booking](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/me/bookings", "guest-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.BookingCollection](t, rec).Items, 1)
}

func TestPaymentStatusNeedsPlatformRole(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", createRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[dto.Booking](t, rec).ID

	body := paymentStatusRequest{Status: "completed"}
	rec = s.do(t, http.MethodPut, "/api/v1/bookings/"+id+"/payment-status", "guest-1", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/bookings/"+id+"/payment-status", "payments", body, RolePlatform)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode[dto.Booking](t, rec).PaymentStatus)
}

func TestHostReportsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", createRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[dto.Booking](t, rec).ID
	rec = s.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/confirm", "host-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/commission", "host-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/host/listings/listing-1/bookings", "host-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[dto.BookingCollection](t, rec).Items, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/host/listings/listing-1/bookings", "guest-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/host/listings/listing-1/stats", "host-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[dto.ListingStats](t, rec)
	assert.Equal(t, 1, stats.TotalBookings)
	assert.Equal(t, 1, stats.ConfirmedBookings)
	assert.Equal(t, 3, stats.BookedNights)
	assert.Equal(t, "10.00", stats.OccupancyRate)

	rec = s.do(t, http.MethodGet, "/api/v1/host/bookings/upcoming", "host-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upcoming := decode[dto.BookingCollection](t, rec)
	require.Len(t, upcoming.Items, 1)
	assert.Equal(t, id, upcoming.Items[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/host/earnings", "host-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	earnings := decode[dto.HostEarnings](t, rec)
	assert.Equal(t, 1, earnings.TotalBookings)
	assert.Equal(t, int64(32900), earnings.GrossEarnings.Amount)
	assert.Equal(t, int64(4935), earnings.PendingCommission.Amount)
	assert.Zero(t, earnings.PayoutsReceived.Amount)

	rec = s.do(t, http.MethodGet, "/api/v1/platform/revenue", "host-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/platform/revenue", "ops", nil, RolePlatform)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	revenue := decode[dto.PlatformRevenue](t, rec)
	assert.Equal(t, 1, revenue.TotalTransactions)
	assert.Equal(t, int64(4935), revenue.CommissionsPending.Amount)
	assert.Zero(t, revenue.CommissionsCollected.Amount)

	rec = s.do(t, http.MethodGet, "/api/v1/platform/revenue?from=2026-07-02", "ops", nil, RolePlatform)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, decode[dto.PlatformRevenue](t, rec).TotalTransactions)

	rec = s.do(t, http.MethodGet, "/api/v1/platform/revenue?from=2026-07-02&to=2026-07-01", "ops", nil, RolePlatform)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/bookings/missing", "guest-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, rec)["kind"])

	req := createRequest()
	req.CheckIn = "10/07/2026"
	rec = s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = createRequest()
	req.Guests = 9
	rec = s.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/commissions/preview?amount=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicReads(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/listings/listing-1/availability?check_in=2026-07-10&check_out=2026-07-13", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.Availability](t, rec).Available)

	rec = s.do(t, http.MethodGet, "/api/v1/commissions/preview?amount=100000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[dto.CommissionPreview](t, rec)
	assert.Equal(t, int64(15000), preview.Commission.Amount)
	assert.Equal(t, "15", preview.Rate)

	rec = s.do(t, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
}
