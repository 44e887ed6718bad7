package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/ingest"
)

type stubIngest struct {
	mock.Mock
}

func (s *stubIngest) Ingest(ctx context.Context, clientID string, env ingest.Envelope) (*ingest.Result, error) {
	args := s.Called(ctx, clientID, env)
	return args.Get(0).(*ingest.Result), args.Error(1)
}

type stubClients struct {
	mock.Mock
}

func (s *stubClients) Create(ctx context.Context, name string) (ingest.Client, string, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(ingest.Client), args.String(1), args.Error(2)
}

func (s *stubClients) Authenticate(ctx context.Context, apiKey string) (ingest.Client, error) {
	args := s.Called(ctx, apiKey)
	return args.Get(0).(ingest.Client), args.Error(1)
}

func TestNew_Routes(t *testing.T) {
	svc := new(stubIngest)
	svc.On("Ingest", mock.Anything, "c1", mock.Anything).
		Return(&ingest.Result{DeliveryID: uuid.New(), Kind: ingest.KindBatch}, nil)
	clients := new(stubClients)
	clients.On("Authenticate", mock.Anything, "c1.s").Return(ingest.Client{ID: "c1"}, nil)

	mux := New(Deps{Ingest: svc, Clients: clients, MaxBodyBytes: 1 << 20}, slog.Default())

	t.Run("health is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("webhook requires key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/apple", strings.NewReader(`{"metriportUserId":"u1","data":"{}"}`))
		req.Header.Set("Content-Type", "application/json")
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("webhook accepts batch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/apple", strings.NewReader(`{"metriportUserId":"u1","data":"{}"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", "c1.s")
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"batch"`)
	})

	t.Run("openapi lists api key scheme", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"x-api-key"`)
	})
}
