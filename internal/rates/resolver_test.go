package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorcrm/internal/models"
	"donorcrm/internal/store"
)

type memoryRateStore struct {
	rows     []models.ExchangeRate
	upserts  []models.ExchangeRate
	failRead error
}

func (m *memoryRateStore) GetExact(_ context.Context, base, target string, date time.Time) (models.ExchangeRate, error) {
	if m.failRead != nil {
		return models.ExchangeRate{}, m.failRead
	}
	for _, r := range m.rows {
		if r.BaseCurrency == base && r.TargetCurrency == target && Day(r.Date).Equal(Day(date)) {
			return r, nil
		}
	}
	return models.ExchangeRate{}, store.ErrRecordNotFound
}

func (m *memoryRateStore) GetLatestBetween(_ context.Context, base, target string, from, to time.Time) (models.ExchangeRate, error) {
	if m.failRead != nil {
		return models.ExchangeRate{}, m.failRead
	}
	var best *models.ExchangeRate
	for i, r := range m.rows {
		d := Day(r.Date)
		if r.BaseCurrency != base || r.TargetCurrency != target || d.Before(Day(from)) || d.After(Day(to)) {
			continue
		}
		if best == nil || d.After(best.Date) {
			best = &m.rows[i]
		}
	}
	if best == nil {
		return models.ExchangeRate{}, store.ErrRecordNotFound
	}
	return *best, nil
}

func (m *memoryRateStore) Upsert(_ context.Context, _ store.Execer, rate models.ExchangeRate) error {
	m.upserts = append(m.upserts, rate)
	m.rows = append(m.rows, rate)
	return nil
}

type countingProvider struct {
	calls int
	table Table
	err   error
	dates []time.Time
}

func (p *countingProvider) Rates(_ context.Context, base string, date time.Time) (Table, error) {
	p.calls++
	p.dates = append(p.dates, date)
	if p.err != nil {
		return Table{}, p.err
	}
	t := p.table
	t.Date = date
	return t, nil
}

var fixedNow = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestResolver(rs RateStore, p Provider) (*Resolver, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	return NewResolver(rs, p, log, Options{Now: func() time.Time { return fixedNow }}), hook
}

func TestConvertIdentityNeedsNoLookup(t *testing.T) {
	rs := &memoryRateStore{failRead: errors.New("must not be called")}
	provider := &countingProvider{err: errors.New("must not be called")}
	r, _ := newTestResolver(rs, provider)

	conv, err := r.Convert(context.Background(), dec("100"), "eur", "EUR", fixedNow.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, conv.Amount.Equal(dec("100.00")))
	assert.True(t, conv.Rate.Equal(decimal.NewFromInt(1)))
	assert.Zero(t, provider.calls)
}

func TestResolveExactCachedRate(t *testing.T) {
	rs := &memoryRateStore{rows: []models.ExchangeRate{
		{BaseCurrency: "USD", TargetCurrency: "ILS", Rate: dec("3.7"), Date: Day(fixedNow)},
	}}
	provider := &countingProvider{}
	r, _ := newTestResolver(rs, provider)

	conv, err := r.Convert(context.Background(), dec("100"), "USD", "ILS", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "370.00", conv.Amount.StringFixed(2))
	assert.Zero(t, provider.calls)
}

func TestResolveStaleWithinWindowLogsAge(t *testing.T) {
	rs := &memoryRateStore{rows: []models.ExchangeRate{
		{BaseCurrency: "USD", TargetCurrency: "ILS", Rate: dec("3.5"), Date: Day(fixedNow).AddDate(0, 0, -40)},
		{BaseCurrency: "USD", TargetCurrency: "ILS", Rate: dec("3.6"), Date: Day(fixedNow).AddDate(0, 0, -5)},
		{BaseCurrency: "USD", TargetCurrency: "ILS", Rate: dec("9.9"), Date: Day(fixedNow).AddDate(0, 0, 3)},
	}}
	r, hook := newTestResolver(rs, nil)

	rate, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("3.6")))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 5, entry.Data["age_days"])
}

func TestResolveIgnoresRatesOutsideWindow(t *testing.T) {
	rs := &memoryRateStore{rows: []models.ExchangeRate{
		{BaseCurrency: "USD", TargetCurrency: "ILS", Rate: dec("3.5"), Date: Day(fixedNow).AddDate(0, 0, -31)},
	}}
	r, _ := newTestResolver(rs, nil)

	_, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestResolveInverseCachedRate(t *testing.T) {
	rs := &memoryRateStore{rows: []models.ExchangeRate{
		{BaseCurrency: "ILS", TargetCurrency: "USD", Rate: dec("0.25"), Date: Day(fixedNow)},
	}}
	r, _ := newTestResolver(rs, nil)

	rate, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("4")), rate.String())
}

func TestResolveProviderWritesThrough(t *testing.T) {
	rs := &memoryRateStore{}
	provider := &countingProvider{table: Table{Base: "USD", Source: store.RateSourceProvider, Rates: map[string]decimal.Decimal{
		"ILS": dec("3.7"),
		"GBP": dec("0.8"),
	}}}
	r, _ := newTestResolver(rs, provider)

	rate, err := r.ResolveRate(context.Background(), "GBP", "ILS", fixedNow)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("4.625")), rate.String())

	require.Len(t, rs.upserts, 1)
	assert.Equal(t, "GBP", rs.upserts[0].BaseCurrency)
	assert.Equal(t, "ILS", rs.upserts[0].TargetCurrency)
	assert.Equal(t, store.RateSourceProvider, rs.upserts[0].Source)

	// a second pair on the same day reuses the fetched table
	_, err = r.ResolveRate(context.Background(), "USD", "GBP", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestResolveMemoizesWithinRun(t *testing.T) {
	rs := &memoryRateStore{}
	provider := &countingProvider{table: Table{Base: "USD", Rates: map[string]decimal.Decimal{"ILS": dec("3.7")}}}
	r, _ := newTestResolver(rs, provider)

	for i := 0; i < 3; i++ {
		_, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, provider.calls)
	assert.Len(t, rs.upserts, 1)
	assert.Equal(t, 1, r.Cache().Len())
}

func TestResolveNeverDefaultsToOne(t *testing.T) {
	provider := &countingProvider{err: errors.New("timeout")}
	r, hook := newTestResolver(&memoryRateStore{}, provider)

	rate, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.True(t, rate.IsZero())
	assert.NotEmpty(t, hook.AllEntries())

	_, err = r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.Equal(t, 1, provider.calls)
}

func TestResolveClampsFutureDates(t *testing.T) {
	provider := &countingProvider{table: Table{Base: "USD", Rates: map[string]decimal.Decimal{"ILS": dec("3.7")}}}
	r, _ := newTestResolver(&memoryRateStore{}, provider)

	_, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow.AddDate(0, 2, 0))
	require.NoError(t, err)
	require.Len(t, provider.dates, 1)
	assert.True(t, provider.dates[0].Equal(Day(fixedNow)))
}

func TestResolveStoreErrorsFallThrough(t *testing.T) {
	rs := &memoryRateStore{failRead: errors.New("connection reset")}
	provider := &countingProvider{table: Table{Base: "USD", Rates: map[string]decimal.Decimal{"ILS": dec("3.7")}}}
	r, _ := newTestResolver(rs, provider)

	rate, err := r.ResolveRate(context.Background(), "USD", "ILS", fixedNow)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("3.7")))
}
