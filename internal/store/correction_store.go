package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCorrectionNotAllowed = errors.New("correction target not allowed")
	ErrNothingCorrected     = errors.New("no row matched correction")
)

// correctableColumns lists the derived columns the integrity engine may
// rewrite. Source columns (amounts, currencies, dates) are never touched.
var correctableColumns = map[string]map[string]bool{
	"pledges": {
		"total_paid": true,
		"balance":    true,
	},
	"payment_plans": {
		"total_paid":               true,
		"remaining_amount":         true,
		"total_planned_amount_usd": true,
		"installment_amount_usd":   true,
		"remaining_amount_usd":     true,
		"exchange_rate":            true,
	},
	"payments": {
		"amount_usd":                    true,
		"exchange_rate":                 true,
		"amount_in_pledge_currency":     true,
		"pledge_currency_exchange_rate": true,
		"amount_in_plan_currency":       true,
		"plan_currency_exchange_rate":   true,
	},
	"installment_schedules": {
		"installment_amount_usd": true,
	},
	"payment_allocations": {
		"allocated_amount_usd":                true,
		"allocated_amount_in_pledge_currency": true,
	},
}

type ColumnValue struct {
	Column string
	Value  string
}

type Correction struct {
	Table    string
	RecordID string
	Columns  []ColumnValue
}

func (c Correction) validate() error {
	allowed, ok := correctableColumns[c.Table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrCorrectionNotAllowed, c.Table)
	}
	if c.RecordID == "" || len(c.Columns) == 0 {
		return fmt.Errorf("%w: empty correction", ErrCorrectionNotAllowed)
	}
	for _, col := range c.Columns {
		if !allowed[col.Column] {
			return fmt.Errorf("%w: column %s.%s", ErrCorrectionNotAllowed, c.Table, col.Column)
		}
	}
	return nil
}

type CorrectionStore struct{}

func NewCorrectionStore() *CorrectionStore {
	return &CorrectionStore{}
}

// Apply issues a targeted UPDATE of the given columns on one row.
func (s *CorrectionStore) Apply(ctx context.Context, exec Execer, c Correction) (int64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	sets := make([]string, 0, len(c.Columns)+1)
	args := make([]any, 0, len(c.Columns)+1)
	for i, col := range c.Columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col.Column, i+1))
		args = append(args, col.Value)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, c.RecordID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", c.Table, strings.Join(sets, ", "), len(args))
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrNothingCorrected, c.Table, c.RecordID)
	}
	return rows, nil
}
