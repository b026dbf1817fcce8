package store

import (
	"context"

	"donorcrm/internal/models"
)

type PaymentPlanStore struct {
	db DB
}

func NewPaymentPlanStore(db DB) *PaymentPlanStore {
	return &PaymentPlanStore{db: db}
}

func (s *PaymentPlanStore) ListActive(ctx context.Context) ([]models.PaymentPlan, error) {
	var rows []models.PaymentPlan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pp.id,
		       pp.pledge_id,
		       COALESCE(pl.contact_id, '') AS contact_id,
		       `+contactNameSQL("c")+` AS contact_name,
		       pp.total_planned_amount,
		       pp.total_planned_amount_usd,
		       pp.installment_amount,
		       pp.installment_amount_usd,
		       pp.total_paid,
		       pp.remaining_amount,
		       pp.remaining_amount_usd,
		       pp.currency,
		       pp.exchange_rate,
		       pp.number_of_installments,
		       pp.start_date,
		       pp.is_active
		FROM payment_plans pp
		LEFT JOIN pledges pl ON pl.id = pp.pledge_id
		LEFT JOIN contacts c ON c.id = pl.contact_id
		WHERE pp.is_active = TRUE
		ORDER BY pp.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
