package store

import (
	"context"
	"database/sql"
	"errors"
)

const (
	RoleViewIntegrity = "CanViewIntegrity"
	RoleRunIntegrity  = "CanRunIntegrity"
	RoleManageRates   = "CanManageRates"
)

// KnownRoles lists every role the admin API checks.
var KnownRoles = []string{RoleViewIntegrity, RoleRunIntegrity, RoleManageRates}

type OperatorStore struct {
	db DB
}

func NewOperatorStore(db DB) *OperatorStore {
	return &OperatorStore{db: db}
}

// IsOperator reports whether the id is a registered operator and whether it
// holds super privileges.
func (s *OperatorStore) IsOperator(ctx context.Context, operatorID string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `
		SELECT is_super
		FROM operators
		WHERE operator_id = $1
	`, operatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, isSuper, nil
}

func (s *OperatorStore) HasRole(ctx context.Context, operatorID, role string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM operator_roles
		WHERE operator_id = $1 AND role = $2
	`, operatorID, role)
	return count > 0, err
}

func (s *OperatorStore) HasAnyOperator(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM operators`)
	return count > 0, err
}

func (s *OperatorStore) CreateOperator(ctx context.Context, tx Execer, operatorID string, isSuper bool) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operators (operator_id, is_super)
		VALUES ($1, $2)
		ON CONFLICT (operator_id) DO NOTHING
	`, operatorID, isSuper)
	return err
}

func (s *OperatorStore) GrantRole(ctx context.Context, tx Execer, operatorID, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operator_roles (operator_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, operatorID, role)
	return err
}
