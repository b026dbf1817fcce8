package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/models"
	"donorcrm/internal/money"
	"donorcrm/internal/rates"
)

const usd = "USD"

type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (rates.Conversion, error)
}

type conversionTarget struct {
	issueType   IssueType
	recordType  RecordType
	recordID    string
	contactID   string
	contactName string
	label       string
	amount      decimal.Decimal
	from        string
	to          string
	date        time.Time
	recorded    decimal.NullDecimal
	field       string
	rateField   string
}

type runStats struct {
	skipped      int
	recordErrors []string
}

type conversionAuditor struct {
	conv   Converter
	log    *logrus.Logger
	policy string
	now    time.Time
	stats  *runStats
}

// check recomputes one converted amount and returns an issue when the stored
// value is off by more than the noise floor.
func (a *conversionAuditor) check(ctx context.Context, t conversionTarget) (*Issue, error) {
	conv, err := a.conv.Convert(ctx, t.amount, t.from, t.to, t.date)
	if err != nil {
		return nil, err
	}
	if money.AmountsEqual(decimal.NewNullDecimal(conv.Amount), t.recorded) {
		return nil, nil
	}
	recorded := money.OrZero(t.recorded)
	severity := money.ConversionSeverity(conv.Amount, recorded)
	if severity == money.SeverityNone {
		return nil, nil
	}
	current := money.FormatNull(t.recorded)
	if current == "" {
		current = "missing"
	}
	fields := []string{t.field}
	if t.rateField != "" {
		fields = append(fields, t.rateField)
	}
	issue := Issue{
		ID:          IssueID(t.issueType, t.recordID),
		Type:        t.issueType,
		Severity:    severity,
		ContactID:   t.contactID,
		ContactName: t.contactName,
		RecordID:    t.recordID,
		RecordType:  t.recordType,
		Description: fmt.Sprintf("%s %s %s converts to %s %s at %s on %s, recorded %s (%s%% off)",
			t.label, money.Format(t.amount), t.from, money.Format(conv.Amount), t.to,
			money.FormatRate(conv.Rate), t.date.Format("2006-01-02"), current,
			money.PercentError(conv.Amount, recorded).StringFixed(1)),
		CurrentValue:   money.FormatNull(t.recorded),
		ExpectedValue:  money.Format(conv.Amount),
		AffectedFields: fields,
		FixValue:       money.Format(conv.Amount),
		FixRecordID:    t.recordID,
	}
	if t.rateField != "" {
		issue.FixRate = money.FormatRate(conv.Rate)
		issue.FixRateField = t.rateField
	}
	return &issue, nil
}

// guard runs one record's checks. An unavailable rate skips the record; any
// other failure is logged and recorded. Neither stops the auditor.
func (a *conversionAuditor) guard(rt RecordType, id string, fn func() error) {
	fields := logrus.Fields{"record_type": rt, "record_id": id}
	defer func() {
		if r := recover(); r != nil {
			a.log.WithFields(fields).Errorf("record audit panicked: %v", r)
			a.stats.recordErrors = append(a.stats.recordErrors, fmt.Sprintf("%s %s: %v", rt, id, r))
		}
	}()
	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, rates.ErrRateUnavailable):
		a.stats.skipped++
		a.log.WithFields(fields).WithError(err).Warn("conversion check skipped")
	default:
		a.log.WithFields(fields).WithError(err).Error("record audit failed")
		a.stats.recordErrors = append(a.stats.recordErrors, fmt.Sprintf("%s %s: %v", rt, id, err))
	}
}

// collect appends a found issue; errors pass through so guard can classify.
func collect(issues *[]Issue, issue *Issue, err error) error {
	if err != nil {
		return err
	}
	if issue != nil {
		*issues = append(*issues, *issue)
	}
	return nil
}

// paymentInScope reports whether a stored conversion on the payment is
// expected. Unsettled payments are only checked when a value was recorded.
func paymentInScope(p models.Payment, recorded decimal.NullDecimal) bool {
	return p.PaymentStatus == models.PaymentStatusCompleted || recorded.Valid
}

func (a *conversionAuditor) payments(ctx context.Context, ds *dataset) ([]Issue, error) {
	var issues []Issue
	for _, p := range ds.payments {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		date := rates.ConversionDate(a.policy, a.now, p.ReceivedDate, p.PaymentDate)
		base := conversionTarget{
			recordType:  RecordPayment,
			recordID:    p.ID,
			contactID:   p.ContactID,
			contactName: p.ContactName,
			amount:      p.Amount,
			from:        p.Currency,
			date:        date,
		}
		if !p.IsThirdPartyPayment && paymentInScope(p, p.AmountUSD) {
			t := base
			t.issueType, t.label, t.to = TypePaymentUSDConversion, "Payment", usd
			t.recorded, t.field, t.rateField = p.AmountUSD, "amount_usd", "exchange_rate"
			a.guard(RecordPayment, p.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
		if p.PledgeID != nil && p.PledgeCurrency != nil && paymentInScope(p, p.AmountInPledgeCurrency) {
			t := base
			t.issueType, t.label, t.to = TypePaymentPledgeConversion, "Payment", *p.PledgeCurrency
			t.recorded, t.field, t.rateField = p.AmountInPledgeCurrency, "amount_in_pledge_currency", "pledge_currency_exchange_rate"
			a.guard(RecordPayment, p.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
		if p.PaymentPlanID != nil && p.PlanCurrency != nil && paymentInScope(p, p.AmountInPlanCurrency) {
			t := base
			t.issueType, t.label, t.to = TypePaymentPlanConversion, "Payment", *p.PlanCurrency
			t.recorded, t.field, t.rateField = p.AmountInPlanCurrency, "amount_in_plan_currency", "plan_currency_exchange_rate"
			a.guard(RecordPayment, p.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
	}
	return issues, nil
}

// plans checks the USD mirrors of a plan at today's rate, since a plan has no
// received or payment date. The remaining amount is taken from settled
// payments so it agrees with the balance the writer will store.
func (a *conversionAuditor) plans(ctx context.Context, ds *dataset) ([]Issue, error) {
	var issues []Issue
	for _, plan := range ds.plans {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		date := rates.ConversionDate(a.policy, a.now)
		remaining := plan.TotalPlannedAmount.Sub(paidTotal(ds.paymentsByPlan[plan.ID], planAmount, nil))
		targets := []conversionTarget{
			{issueType: TypePlanTotalUSD, label: "Planned total", amount: plan.TotalPlannedAmount, recorded: plan.TotalPlannedAmountUSD, field: "total_planned_amount_usd", rateField: "exchange_rate"},
			{issueType: TypePlanInstallmentUSD, label: "Installment amount", amount: plan.InstallmentAmount, recorded: plan.InstallmentAmountUSD, field: "installment_amount_usd"},
			{issueType: TypePlanRemainingUSD, label: "Remaining amount", amount: remaining, recorded: plan.RemainingAmountUSD, field: "remaining_amount_usd"},
		}
		for _, t := range targets {
			t.recordType, t.recordID = RecordPaymentPlan, plan.ID
			t.contactID, t.contactName = plan.ContactID, plan.ContactName
			t.from, t.to, t.date = plan.Currency, usd, date
			a.guard(RecordPaymentPlan, plan.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
	}
	return issues, nil
}

func (a *conversionAuditor) installments(ctx context.Context, ds *dataset) ([]Issue, error) {
	var issues []Issue
	for _, inst := range ds.installments {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		t := conversionTarget{
			issueType:   TypeInstallmentUSDConversion,
			recordType:  RecordInstallment,
			recordID:    inst.ID,
			contactID:   inst.ContactID,
			contactName: inst.ContactName,
			label:       "Installment",
			amount:      inst.InstallmentAmount,
			from:        inst.Currency,
			to:          usd,
			date:        rates.ConversionDate(a.policy, a.now),
			recorded:    inst.InstallmentAmountUSD,
			field:       "installment_amount_usd",
		}
		a.guard(RecordInstallment, inst.ID, func() error {
			issue, err := a.check(ctx, t)
			return collect(&issues, issue, err)
		})
	}
	return issues, nil
}

// thirdParty checks USD conversions of payments made on a contact's behalf,
// attributed to the payer rather than the pledge's own contact.
func (a *conversionAuditor) thirdParty(ctx context.Context, ds *dataset) ([]Issue, error) {
	var issues []Issue
	for _, p := range ds.payments {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		if !p.IsThirdPartyPayment || !paymentInScope(p, p.AmountUSD) {
			continue
		}
		contactID, contactName := payerOf(p)
		t := conversionTarget{
			issueType:   TypeThirdPartyUSDConversion,
			recordType:  RecordPayment,
			recordID:    p.ID,
			contactID:   contactID,
			contactName: contactName,
			label:       "Third-party payment",
			amount:      p.Amount,
			from:        p.Currency,
			to:          usd,
			date:        rates.ConversionDate(a.policy, a.now, p.ReceivedDate, p.PaymentDate),
			recorded:    p.AmountUSD,
			field:       "amount_usd",
			rateField:   "exchange_rate",
		}
		a.guard(RecordPayment, p.ID, func() error {
			issue, err := a.check(ctx, t)
			return collect(&issues, issue, err)
		})
	}
	return issues, nil
}

func (a *conversionAuditor) allocations(ctx context.Context, ds *dataset) ([]Issue, error) {
	var issues []Issue
	for _, alloc := range ds.allocations {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		settled := alloc.PaymentStatus == models.PaymentStatusCompleted
		base := conversionTarget{
			recordType:  RecordAllocation,
			recordID:    alloc.ID,
			contactID:   alloc.ContactID,
			contactName: alloc.ContactName,
			label:       "Allocation",
			amount:      alloc.AllocatedAmount,
			from:        alloc.Currency,
			date:        rates.ConversionDate(a.policy, a.now, alloc.ReceivedDate, alloc.PaymentDate),
		}
		if settled || alloc.AllocatedAmountUSD.Valid {
			t := base
			t.issueType, t.to = TypeAllocationUSDConversion, usd
			t.recorded, t.field = alloc.AllocatedAmountUSD, "allocated_amount_usd"
			a.guard(RecordAllocation, alloc.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
		if alloc.PledgeCurrency != nil && (settled || alloc.AllocatedAmountInPledgeCurrency.Valid) {
			t := base
			t.issueType, t.to = TypeAllocationPledgeConversion, *alloc.PledgeCurrency
			t.recorded, t.field = alloc.AllocatedAmountInPledgeCurrency, "allocated_amount_in_pledge_currency"
			a.guard(RecordAllocation, alloc.ID, func() error {
				issue, err := a.check(ctx, t)
				return collect(&issues, issue, err)
			})
		}
	}
	return issues, nil
}

func payerOf(p models.Payment) (string, string) {
	if p.PayerContactID != nil && *p.PayerContactID != "" {
		return *p.PayerContactID, p.PayerName
	}
	return p.ContactID, p.ContactName
}
