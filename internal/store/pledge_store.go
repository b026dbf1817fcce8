package store

import (
	"context"

	"donorcrm/internal/models"
)

type PledgeStore struct {
	db DB
}

func NewPledgeStore(db DB) *PledgeStore {
	return &PledgeStore{db: db}
}

func (s *PledgeStore) ListActive(ctx context.Context) ([]models.Pledge, error) {
	var rows []models.Pledge
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id,
		       p.contact_id,
		       `+contactNameSQL("c")+` AS contact_name,
		       p.original_amount,
		       p.total_paid,
		       p.balance,
		       p.currency,
		       p.is_active
		FROM pledges p
		LEFT JOIN contacts c ON c.id = p.contact_id
		WHERE p.is_active = TRUE
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
