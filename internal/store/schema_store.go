package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var ErrMissingTables = errors.New("required tables missing")

// RequiredTables are the tables an integrity run reads or corrects.
var RequiredTables = []string{
	"contacts",
	"pledges",
	"payment_plans",
	"payments",
	"installment_schedules",
	"payment_allocations",
	"exchange_rates",
	"audit_logs",
}

type SchemaStore struct {
	db DB
}

func NewSchemaStore(db DB) *SchemaStore {
	return &SchemaStore{db: db}
}

func (s *SchemaStore) MissingTables(ctx context.Context, tables []string) ([]string, error) {
	var missing []string
	err := s.db.SelectContext(ctx, &missing, `
		SELECT t.name
		FROM unnest($1::text[]) AS t(name)
		WHERE to_regclass(t.name) IS NULL
		ORDER BY t.name
	`, pq.Array(tables))
	if err != nil {
		return nil, err
	}
	return missing, nil
}

// Check fails with ErrMissingTables when any required table is absent.
func (s *SchemaStore) Check(ctx context.Context) error {
	missing, err := s.MissingTables(ctx, RequiredTables)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingTables, strings.Join(missing, ", "))
	}
	return nil
}
