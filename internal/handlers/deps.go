package handlers

import (
	"context"

	"donorcrm/internal/models"
	"donorcrm/internal/services"
	"donorcrm/internal/store"
)

type OperatorStore interface {
	IsOperator(ctx context.Context, operatorID string) (bool, bool, error)
	HasRole(ctx context.Context, operatorID, role string) (bool, error)
}

type AuditStore interface {
	ListByAction(ctx context.Context, action string, limit int) ([]store.AuditEntry, error)
}

type IntegrityService interface {
	Check(ctx context.Context, opts services.CheckOptions) (services.Outcome, error)
	AddRate(ctx context.Context, actorID, from, to, rate, date string) (models.ExchangeRate, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}
