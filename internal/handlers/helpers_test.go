package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"donorcrm/internal/auth"
	"donorcrm/internal/config"
	"donorcrm/internal/models"
	"donorcrm/internal/services"
	"donorcrm/internal/store"
	"donorcrm/internal/websocket"
)

type stubPinger struct {
	err error
}

func (s stubPinger) PingContext(context.Context) error {
	return s.err
}

type stubOperatorStore struct {
	isOperatorFn func(ctx context.Context, operatorID string) (bool, bool, error)
	hasRoleFn    func(ctx context.Context, operatorID, role string) (bool, error)
}

func (s stubOperatorStore) IsOperator(ctx context.Context, operatorID string) (bool, bool, error) {
	if s.isOperatorFn == nil {
		return true, true, nil
	}
	return s.isOperatorFn(ctx, operatorID)
}

func (s stubOperatorStore) HasRole(ctx context.Context, operatorID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, operatorID, role)
}

type stubAuditStore struct {
	listByActionFn func(ctx context.Context, action string, limit int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) ListByAction(ctx context.Context, action string, limit int) ([]store.AuditEntry, error) {
	if s.listByActionFn == nil {
		return nil, nil
	}
	return s.listByActionFn(ctx, action, limit)
}

type stubService struct {
	checkFn   func(ctx context.Context, opts services.CheckOptions) (services.Outcome, error)
	addRateFn func(ctx context.Context, actorID, from, to, rate, date string) (models.ExchangeRate, error)
}

func (s stubService) Check(ctx context.Context, opts services.CheckOptions) (services.Outcome, error) {
	if s.checkFn == nil {
		return services.Outcome{}, nil
	}
	return s.checkFn(ctx, opts)
}

func (s stubService) AddRate(ctx context.Context, actorID, from, to, rate, date string) (models.ExchangeRate, error) {
	if s.addRateFn == nil {
		return models.ExchangeRate{}, nil
	}
	return s.addRateFn(ctx, actorID, from, to, rate, date)
}

func newTestHandler(t *testing.T, operators OperatorStore, audit AuditStore, service IntegrityService) *Handler {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		ReportDir:      t.TempDir(),
	}
	return New(stubPinger{}, cfg, operators, audit, service, websocket.NewHub(), log)
}

func serveRoute(t *testing.T, h *Handler, method, path string, body io.Reader, operatorID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if operatorID != "" {
		token, err := auth.GenerateToken("secret", operatorID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}
