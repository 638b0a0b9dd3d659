package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
)

type allowResolver struct{}

func (allowResolver) Resolve(ctx context.Context, userID uuid.UUID, condoID *uuid.UUID) (*tenancy.AuthContext, error) {
	return &tenancy.AuthContext{UserID: userID, CondoID: condoID}, nil
}

func testRouter() http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "condoplex-test", ExpirationMinutes: 15}

	return NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Resolver: allowResolver{},
	})
}

func TestHealthLiveIsPublic(t *testing.T) {
	resp := httptest.NewRecorder()
	testRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestCondoRoutesRequireAuth(t *testing.T) {
	target := "/api/v1/condos/" + uuid.NewString() + "/deliveries"
	resp := httptest.NewRecorder()
	testRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDispatchTriggerRequiresToken(t *testing.T) {
	resp := httptest.NewRecorder()
	testRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/internal/v1/dispatch/push", nil))

	// No trigger token configured, the endpoint stays disabled.
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
