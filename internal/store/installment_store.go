package store

import (
	"context"

	"donorcrm/internal/models"
)

type InstallmentStore struct {
	db DB
}

func NewInstallmentStore(db DB) *InstallmentStore {
	return &InstallmentStore{db: db}
}

func (s *InstallmentStore) List(ctx context.Context) ([]models.InstallmentSchedule, error) {
	var rows []models.InstallmentSchedule
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id,
		       i.payment_plan_id,
		       COALESCE(pl.contact_id, '') AS contact_id,
		       `+contactNameSQL("c")+` AS contact_name,
		       i.installment_amount,
		       i.installment_amount_usd,
		       i.currency,
		       i.installment_date
		FROM installment_schedules i
		LEFT JOIN payment_plans pp ON pp.id = i.payment_plan_id
		LEFT JOIN pledges pl ON pl.id = pp.pledge_id
		LEFT JOIN contacts c ON c.id = pl.contact_id
		ORDER BY i.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
