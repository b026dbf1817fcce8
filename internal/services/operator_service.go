package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"donorcrm/internal/auth"
	"donorcrm/internal/db"
	"donorcrm/internal/store"
	"donorcrm/internal/validator"
)

var ErrUnknownRole = errors.New("unknown role")

type OperatorStore interface {
	HasAnyOperator(ctx context.Context) (bool, error)
	CreateOperator(ctx context.Context, tx store.Execer, operatorID string, isSuper bool) error
	GrantRole(ctx context.Context, tx store.Execer, operatorID, role string) error
}

type OperatorService struct {
	txRunner  db.TxRunner
	operators OperatorStore
	audit     AuditStore
	secret    string
	ttl       time.Duration
}

func NewOperatorService(txRunner db.TxRunner, operators OperatorStore, audit AuditStore, secret string, ttl time.Duration) *OperatorService {
	return &OperatorService{txRunner: txRunner, operators: operators, audit: audit, secret: secret, ttl: ttl}
}

type IssuedToken struct {
	OperatorID string   `json:"operator_id"`
	Super      bool     `json:"super"`
	Roles      []string `json:"roles"`
	Token      string   `json:"token"`
}

// IssueToken registers the operator with the given roles and signs a token
// for it. The first operator ever registered becomes super.
func (s *OperatorService) IssueToken(ctx context.Context, operatorID string, roles []string) (IssuedToken, error) {
	if err := validator.Operator(operatorID); err != nil {
		return IssuedToken{}, err
	}
	for _, role := range roles {
		if !slices.Contains(store.KnownRoles, role) {
			return IssuedToken{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
	}
	hasAny, err := s.operators.HasAnyOperator(ctx)
	if err != nil {
		return IssuedToken{}, err
	}
	issued := IssuedToken{OperatorID: operatorID, Super: !hasAny, Roles: roles}
	data, _ := json.Marshal(map[string]any{"super": issued.Super, "roles": roles})

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.operators.CreateOperator(ctx, tx, operatorID, issued.Super); err != nil {
			return err
		}
		for _, role := range roles {
			if err := s.operators.GrantRole(ctx, tx, operatorID, role); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, operatorID, "operator.token_issued", "operators", operatorID, string(data))
	})
	if err != nil {
		return IssuedToken{}, err
	}
	issued.Token, err = auth.GenerateToken(s.secret, operatorID, s.ttl)
	if err != nil {
		return IssuedToken{}, err
	}
	return issued, nil
}
