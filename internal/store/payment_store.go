package store

import (
	"context"

	"donorcrm/internal/models"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// List loads every payment with the currencies of its pledge and plan and
// the names needed to attribute findings, in a single round trip.
func (s *PaymentStore) List(ctx context.Context) ([]models.Payment, error) {
	var rows []models.Payment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pay.id,
		       pay.pledge_id,
		       pay.payment_plan_id,
		       pay.amount,
		       pay.currency,
		       pay.amount_usd,
		       pay.amount_in_pledge_currency,
		       pay.amount_in_plan_currency,
		       pay.exchange_rate,
		       pay.pledge_currency_exchange_rate,
		       pay.plan_currency_exchange_rate,
		       pay.payment_status,
		       pay.received_date,
		       pay.payment_date,
		       pay.is_third_party_payment,
		       pay.payer_contact_id,
		       `+contactNameSQL("payer")+` AS payer_name,
		       pl.currency AS pledge_currency,
		       pp.currency AS plan_currency,
		       COALESCE(pl.contact_id, '') AS contact_id,
		       `+contactNameSQL("c")+` AS contact_name
		FROM payments pay
		LEFT JOIN pledges pl ON pl.id = pay.pledge_id
		LEFT JOIN payment_plans pp ON pp.id = pay.payment_plan_id
		LEFT JOIN contacts c ON c.id = pl.contact_id
		LEFT JOIN contacts payer ON payer.id = pay.payer_contact_id
		ORDER BY pay.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
