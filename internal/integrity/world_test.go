package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"donorcrm/internal/models"
	"donorcrm/internal/rates"
	"donorcrm/internal/store"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NullDecimal{Decimal: d(s), Valid: true} }

func sp(s string) *string { return &s }

func tp(t time.Time) *time.Time { return &t }

// world is an in-memory copy of the tables the engine reads and corrects.
type world struct {
	pledges      []models.Pledge
	plans        []models.PaymentPlan
	payments     []models.Payment
	installments []models.InstallmentSchedule
	allocations  []models.PaymentAllocation

	failCorrection map[string]error
	corrections    []store.Correction
	audits         int
}

type pledgeSource struct{ w *world }

func (s pledgeSource) ListActive(context.Context) ([]models.Pledge, error) {
	var out []models.Pledge
	for _, p := range s.w.pledges {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type planSource struct{ w *world }

func (s planSource) ListActive(context.Context) ([]models.PaymentPlan, error) {
	var out []models.PaymentPlan
	for _, p := range s.w.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type paymentSource struct{ w *world }

func (s paymentSource) List(context.Context) ([]models.Payment, error) {
	return append([]models.Payment(nil), s.w.payments...), nil
}

type installmentSource struct{ w *world }

func (s installmentSource) List(context.Context) ([]models.InstallmentSchedule, error) {
	return append([]models.InstallmentSchedule(nil), s.w.installments...), nil
}

type allocationSource struct{ w *world }

func (s allocationSource) List(context.Context) ([]models.PaymentAllocation, error) {
	return append([]models.PaymentAllocation(nil), s.w.allocations...), nil
}

func (w *world) sources() Sources {
	return Sources{
		Pledges:      pledgeSource{w},
		Plans:        planSource{w},
		Payments:     paymentSource{w},
		Installments: installmentSource{w},
		Allocations:  allocationSource{w},
	}
}

func (w *world) Apply(_ context.Context, _ store.Execer, c store.Correction) (int64, error) {
	if err := w.failCorrection[c.RecordID]; err != nil {
		return 0, err
	}
	w.corrections = append(w.corrections, c)
	for _, col := range c.Columns {
		if err := w.set(c.Table, c.RecordID, col.Column, d(col.Value)); err != nil {
			return 0, err
		}
	}
	return 1, nil
}

func (w *world) Log(context.Context, store.Execer, string, string, string, string, string) error {
	w.audits++
	return nil
}

func (w *world) set(table, id, column string, v decimal.Decimal) error {
	switch table {
	case "pledges":
		for i := range w.pledges {
			if w.pledges[i].ID != id {
				continue
			}
			switch column {
			case "total_paid":
				w.pledges[i].TotalPaid = v
			case "balance":
				w.pledges[i].Balance = v
			}
			return nil
		}
	case "payment_plans":
		for i := range w.plans {
			p := &w.plans[i]
			if p.ID != id {
				continue
			}
			switch column {
			case "total_paid":
				p.TotalPaid = v
			case "remaining_amount":
				p.RemainingAmount = v
			case "total_planned_amount_usd":
				p.TotalPlannedAmountUSD = decimal.NewNullDecimal(v)
			case "installment_amount_usd":
				p.InstallmentAmountUSD = decimal.NewNullDecimal(v)
			case "remaining_amount_usd":
				p.RemainingAmountUSD = decimal.NewNullDecimal(v)
			case "exchange_rate":
				p.ExchangeRate = decimal.NewNullDecimal(v)
			}
			return nil
		}
	case "payments":
		for i := range w.payments {
			p := &w.payments[i]
			if p.ID != id {
				continue
			}
			switch column {
			case "amount_usd":
				p.AmountUSD = decimal.NewNullDecimal(v)
			case "exchange_rate":
				p.ExchangeRate = decimal.NewNullDecimal(v)
			case "amount_in_pledge_currency":
				p.AmountInPledgeCurrency = decimal.NewNullDecimal(v)
			case "pledge_currency_exchange_rate":
				p.PledgeCurrencyExchangeRate = decimal.NewNullDecimal(v)
			case "amount_in_plan_currency":
				p.AmountInPlanCurrency = decimal.NewNullDecimal(v)
			case "plan_currency_exchange_rate":
				p.PlanCurrencyExchangeRate = decimal.NewNullDecimal(v)
			}
			return nil
		}
	case "installment_schedules":
		for i := range w.installments {
			if w.installments[i].ID == id {
				w.installments[i].InstallmentAmountUSD = decimal.NewNullDecimal(v)
				return nil
			}
		}
	case "payment_allocations":
		for i := range w.allocations {
			a := &w.allocations[i]
			if a.ID != id {
				continue
			}
			switch column {
			case "allocated_amount_usd":
				a.AllocatedAmountUSD = decimal.NewNullDecimal(v)
			case "allocated_amount_in_pledge_currency":
				a.AllocatedAmountInPledgeCurrency = decimal.NewNullDecimal(v)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", store.ErrNothingCorrected, table, id)
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// rateBook is a persisted rate cache keyed by pair and day that records
// every lookup it serves.
type rateBook struct {
	rates   map[string]decimal.Decimal
	lookups []string
	readErr error
}

func newRateBook(entries ...string) *rateBook {
	b := &rateBook{rates: make(map[string]decimal.Decimal)}
	for i := 0; i+1 < len(entries); i += 2 {
		b.rates[entries[i]] = d(entries[i+1])
	}
	return b
}

func bookKey(from, to string, day time.Time) string {
	return from + "/" + to + "@" + day.Format("2006-01-02")
}

func (b *rateBook) GetExact(_ context.Context, from, to string, date time.Time) (models.ExchangeRate, error) {
	key := bookKey(from, to, date)
	b.lookups = append(b.lookups, key)
	if b.readErr != nil {
		return models.ExchangeRate{}, b.readErr
	}
	if r, ok := b.rates[key]; ok {
		return models.ExchangeRate{BaseCurrency: from, TargetCurrency: to, Rate: r, Date: date}, nil
	}
	return models.ExchangeRate{}, store.ErrRecordNotFound
}

func (b *rateBook) GetLatestBetween(context.Context, string, string, time.Time, time.Time) (models.ExchangeRate, error) {
	return models.ExchangeRate{}, store.ErrRecordNotFound
}

func (b *rateBook) Upsert(context.Context, store.Execer, models.ExchangeRate) error {
	return nil
}

func today(pair string) string {
	return pair + "@" + testNow.Format("2006-01-02")
}

type harness struct {
	world   *world
	book    *rateBook
	checker *Checker
	fixer   *Fixer
	hook    *logtest.Hook
}

func newHarness(w *world, book *rateBook) *harness {
	log, hook := logtest.NewNullLogger()
	resolver := rates.NewResolver(book, nil, log, rates.Options{Now: func() time.Time { return testNow }})
	checker := NewChecker(w.sources(), resolver, log, CheckerOptions{Now: func() time.Time { return testNow }})
	return &harness{
		world:   w,
		book:    book,
		checker: checker,
		fixer:   NewFixer(fakeTxRunner{}, w, w, checker, log),
		hook:    hook,
	}
}

func issuesOfType(issues []Issue, t IssueType) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Type == t {
			out = append(out, i)
		}
	}
	return out
}

var errBoom = errors.New("boom")
