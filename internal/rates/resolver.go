package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/models"
	"donorcrm/internal/money"
	"donorcrm/internal/store"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

type RateStore interface {
	GetExact(ctx context.Context, baseCurrency, targetCurrency string, date time.Time) (models.ExchangeRate, error)
	GetLatestBetween(ctx context.Context, baseCurrency, targetCurrency string, from, to time.Time) (models.ExchangeRate, error)
	Upsert(ctx context.Context, exec store.Execer, rate models.ExchangeRate) error
}

type Provider interface {
	Rates(ctx context.Context, base string, date time.Time) (Table, error)
}

type Conversion struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

type Options struct {
	// QuoteBase is the currency provider tables are requested against.
	QuoteBase string
	// StaleWindowDays bounds how old a cached rate may be before it is ignored.
	StaleWindowDays int
	Now             func() time.Time
}

type Resolver struct {
	store    RateStore
	provider Provider
	cache    *Cache
	log      *logrus.Logger
	base     string
	window   int
	now      func() time.Time
}

// NewResolver builds a resolver owning a fresh run-scoped cache. provider may
// be nil, in which case only persisted rates are consulted.
func NewResolver(rateStore RateStore, provider Provider, log *logrus.Logger, opts Options) *Resolver {
	if opts.QuoteBase == "" {
		opts.QuoteBase = "USD"
	}
	if opts.StaleWindowDays <= 0 {
		opts.StaleWindowDays = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{
		store:    rateStore,
		provider: provider,
		cache:    NewCache(),
		log:      log,
		base:     strings.ToUpper(opts.QuoteBase),
		window:   opts.StaleWindowDays,
		now:      opts.Now,
	}
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Convert converts amount at the resolved rate, rounded to cents.
func (r *Resolver) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (Conversion, error) {
	rate, err := r.ResolveRate(ctx, from, to, date)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Amount: money.Round2(amount.Mul(rate)), Rate: rate}, nil
}

// ResolveRate returns the from->to rate for date, clamped to today. Sources
// are tried in order: run memo, exact cached rate, most recent cached rate in
// the stale window, inverse cached rate, then the provider with write-through.
func (r *Resolver) ResolveRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return decimal.Zero, fmt.Errorf("%w: missing currency", ErrRateUnavailable)
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	day := ClampDate(date, r.now())
	key := newPairKey(from, to, day)
	if rate, ok := r.cache.get(key); ok {
		return rate, nil
	}
	if r.cache.missed(key) {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateUnavailable, from, to, key.day)
	}

	rate, err := r.resolve(ctx, from, to, day)
	if err != nil {
		r.cache.markMiss(key)
		return decimal.Zero, err
	}
	r.cache.put(key, rate)
	return rate, nil
}

func (r *Resolver) resolve(ctx context.Context, from, to string, day time.Time) (decimal.Decimal, error) {
	fields := logrus.Fields{"from": from, "to": to, "date": day.Format("2006-01-02")}

	if row, err := r.store.GetExact(ctx, from, to, day); err == nil {
		return row.Rate, nil
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		r.log.WithFields(fields).WithError(err).Warn("cached rate lookup failed")
	}

	windowStart := day.AddDate(0, 0, -r.window)
	if row, err := r.store.GetLatestBetween(ctx, from, to, windowStart, day); err == nil {
		age := int(day.Sub(Day(row.Date)).Hours() / 24)
		r.log.WithFields(fields).WithField("age_days", age).Warn("using stale cached rate")
		return row.Rate, nil
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		r.log.WithFields(fields).WithError(err).Warn("stale rate lookup failed")
	}

	if row, err := r.store.GetExact(ctx, to, from, day); err == nil && row.Rate.IsPositive() {
		return decimal.NewFromInt(1).DivRound(row.Rate, 12).Round(money.RatePlaces), nil
	} else if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		r.log.WithFields(fields).WithError(err).Warn("inverse rate lookup failed")
	}

	if r.provider == nil {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateUnavailable, from, to, fields["date"])
	}
	table, err := r.providerTable(ctx, day)
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("rate provider failed")
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateUnavailable, from, to, fields["date"])
	}
	rate, err := table.Cross(from, to)
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("rate provider has no quote")
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	source := table.Source
	if source == "" {
		source = store.RateSourceProvider
	}
	err = r.store.Upsert(ctx, nil, models.ExchangeRate{
		BaseCurrency:   from,
		TargetCurrency: to,
		Rate:           rate,
		Date:           day,
		Source:         source,
	})
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("could not cache provider rate")
	}
	return rate, nil
}

func (r *Resolver) providerTable(ctx context.Context, day time.Time) (Table, error) {
	if t, ok := r.cache.table(r.base, day); ok {
		return t, nil
	}
	t, err := r.provider.Rates(ctx, r.base, day)
	if err != nil {
		return Table{}, err
	}
	r.cache.putTable(r.base, day, t)
	return t, nil
}
