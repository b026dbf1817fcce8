package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"donorcrm/internal/models"
)

const (
	RateSourceManual   = "manual"
	RateSourceProvider = "provider"
	RateSourceFallback = "fallback"
)

type ExchangeStore struct {
	db DB
}

func NewExchangeStore(db DB) *ExchangeStore {
	return &ExchangeStore{db: db}
}

// GetExact returns the cached rate for the pair on exactly the given day.
func (s *ExchangeStore) GetExact(ctx context.Context, baseCurrency, targetCurrency string, date time.Time) (models.ExchangeRate, error) {
	var row models.ExchangeRate
	err := s.db.GetContext(ctx, &row, `
		SELECT id, base_currency, target_currency, rate, date, source
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2 AND date = $3::date
	`, baseCurrency, targetCurrency, formatDate(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ExchangeRate{}, ErrRecordNotFound
		}
		return models.ExchangeRate{}, err
	}
	return row, nil
}

// GetLatestBetween returns the most recent cached rate dated within
// [from, to], never one after to.
func (s *ExchangeStore) GetLatestBetween(ctx context.Context, baseCurrency, targetCurrency string, from, to time.Time) (models.ExchangeRate, error) {
	var row models.ExchangeRate
	err := s.db.GetContext(ctx, &row, `
		SELECT id, base_currency, target_currency, rate, date, source
		FROM exchange_rates
		WHERE base_currency = $1 AND target_currency = $2
		  AND date >= $3::date AND date <= $4::date
		ORDER BY date DESC
		LIMIT 1
	`, baseCurrency, targetCurrency, formatDate(from), formatDate(to))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ExchangeRate{}, ErrRecordNotFound
		}
		return models.ExchangeRate{}, err
	}
	return row, nil
}

// Upsert stores a rate keyed by (base, target, date), replacing any rate
// already cached for that key.
func (s *ExchangeStore) Upsert(ctx context.Context, exec Execer, rate models.ExchangeRate) error {
	if exec == nil {
		exec = s.db
	}
	id := rate.ID
	if id == "" {
		id = uuid.NewString()
	}
	source := rate.Source
	if source == "" {
		source = RateSourceManual
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO exchange_rates (id, base_currency, target_currency, rate, date, source)
		VALUES ($1, $2, $3, $4, $5::date, $6)
		ON CONFLICT (base_currency, target_currency, date)
		DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, updated_at = NOW()
	`, id, rate.BaseCurrency, rate.TargetCurrency, rate.Rate.StringFixed(8), formatDate(rate.Date), source)
	return err
}
