package store

import (
	"context"

	"donorcrm/internal/models"
)

type AllocationStore struct {
	db DB
}

func NewAllocationStore(db DB) *AllocationStore {
	return &AllocationStore{db: db}
}

func (s *AllocationStore) List(ctx context.Context) ([]models.PaymentAllocation, error) {
	var rows []models.PaymentAllocation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id,
		       a.payment_id,
		       a.pledge_id,
		       a.allocated_amount,
		       a.currency,
		       a.allocated_amount_usd,
		       a.allocated_amount_in_pledge_currency,
		       a.payer_contact_id,
		       pl.currency AS pledge_currency,
		       pay.payment_status,
		       pay.received_date,
		       pay.payment_date,
		       COALESCE(pl.contact_id, '') AS contact_id,
		       `+contactNameSQL("c")+` AS contact_name
		FROM payment_allocations a
		JOIN payments pay ON pay.id = a.payment_id
		LEFT JOIN pledges pl ON pl.id = a.pledge_id
		LEFT JOIN contacts c ON c.id = pl.contact_id
		ORDER BY a.payment_id, a.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
