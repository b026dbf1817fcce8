package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"donorcrm/internal/models"
	"donorcrm/internal/report"
	"donorcrm/internal/store"
	"donorcrm/internal/websocket"
)

var (
	errBoom = errors.New("boom")
	testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func sp(s string) *string { return &s }

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type auditCall struct {
	actor, action, entityType, entityID, data string
}

type fakeAudit struct {
	calls []auditCall
	err   error
}

func (f *fakeAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, auditCall{actorID, action, entityType, entityID, data})
	return nil
}

// ledger holds pledges and payments in memory and applies balance corrections.
type ledger struct {
	pledges  []models.Pledge
	payments []models.Payment
	listErr  error
}

func (l *ledger) ListActive(context.Context) ([]models.Pledge, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	return append([]models.Pledge(nil), l.pledges...), nil
}

func (l *ledger) List(context.Context) ([]models.Payment, error) {
	return append([]models.Payment(nil), l.payments...), nil
}

func (l *ledger) Apply(_ context.Context, _ store.Execer, c store.Correction) (int64, error) {
	for i := range l.pledges {
		if l.pledges[i].ID != c.RecordID {
			continue
		}
		for _, col := range c.Columns {
			switch col.Column {
			case "total_paid":
				l.pledges[i].TotalPaid = d(col.Value)
			case "balance":
				l.pledges[i].Balance = d(col.Value)
			}
		}
		return 1, nil
	}
	return 0, store.ErrNothingCorrected
}

type emptyPlans struct{}

func (emptyPlans) ListActive(context.Context) ([]models.PaymentPlan, error) { return nil, nil }

type emptyInstallments struct{}

func (emptyInstallments) List(context.Context) ([]models.InstallmentSchedule, error) { return nil, nil }

type emptyAllocations struct{}

func (emptyAllocations) List(context.Context) ([]models.PaymentAllocation, error) { return nil, nil }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeSchema struct{ err error }

func (f fakeSchema) Check(context.Context) error { return f.err }

type fakeReports struct {
	written []report.Report
	err     error
}

func (f *fakeReports) Write(r report.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.written = append(f.written, r)
	return "reports/" + report.FileName(r.GeneratedAt, r.RunID), nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(report.Report, string) error {
	f.calls++
	return f.err
}

type fakeProgress struct {
	mu     sync.Mutex
	events []websocket.ProgressEvent
}

func (f *fakeProgress) Publish(event websocket.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeProgress) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Stage)
	}
	return out
}

type memoryRates struct {
	rows []models.ExchangeRate
	err  error
}

func (m *memoryRates) GetExact(_ context.Context, base, target string, date time.Time) (models.ExchangeRate, error) {
	for _, r := range m.rows {
		if r.BaseCurrency == base && r.TargetCurrency == target && r.Date.Equal(date) {
			return r, nil
		}
	}
	return models.ExchangeRate{}, store.ErrRecordNotFound
}

func (m *memoryRates) GetLatestBetween(context.Context, string, string, time.Time, time.Time) (models.ExchangeRate, error) {
	return models.ExchangeRate{}, store.ErrRecordNotFound
}

func (m *memoryRates) Upsert(_ context.Context, _ store.Execer, rate models.ExchangeRate) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rate)
	return nil
}

type fakeOperators struct {
	existing bool
	created  map[string]bool
	roles    map[string][]string
}

func newFakeOperators(existing bool) *fakeOperators {
	return &fakeOperators{existing: existing, created: map[string]bool{}, roles: map[string][]string{}}
}

func (f *fakeOperators) HasAnyOperator(context.Context) (bool, error) { return f.existing, nil }

func (f *fakeOperators) CreateOperator(_ context.Context, _ store.Execer, operatorID string, isSuper bool) error {
	f.created[operatorID] = isSuper
	return nil
}

func (f *fakeOperators) GrantRole(_ context.Context, _ store.Execer, operatorID, role string) error {
	f.roles[operatorID] = append(f.roles[operatorID], role)
	return nil
}
