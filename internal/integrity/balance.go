package integrity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"donorcrm/internal/models"
	"donorcrm/internal/money"
)

var installmentTolerance = decimal.RequireFromString("0.02")

// AwaitingPayment is a payment left out of balance sums because it has not
// settled or has not been converted yet. It is informational only.
type AwaitingPayment struct {
	PaymentID   string `json:"paymentId"`
	PledgeID    string `json:"pledgeId,omitempty"`
	PlanID      string `json:"paymentPlanId,omitempty"`
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`
}

func awaitingReason(p models.Payment, converted decimal.NullDecimal) (string, bool) {
	switch {
	case p.PaymentStatus != models.PaymentStatusCompleted:
		return "status " + p.PaymentStatus, true
	case p.ReceivedDate == nil:
		return "not received", true
	case !converted.Valid:
		return "missing converted amount", true
	}
	return "", false
}

// paidTotal sums the converted amounts of settled payments. field picks the
// converted column to use.
func paidTotal(payments []models.Payment, field func(models.Payment) decimal.NullDecimal, seen map[string]AwaitingPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		converted := field(p)
		if reason, waiting := awaitingReason(p, converted); waiting {
			if _, ok := seen[p.ID]; !ok && seen != nil {
				seen[p.ID] = AwaitingPayment{
					PaymentID:   p.ID,
					PledgeID:    derefString(p.PledgeID),
					PlanID:      derefString(p.PaymentPlanID),
					ContactID:   p.ContactID,
					ContactName: p.ContactName,
					Status:      p.PaymentStatus,
					Amount:      money.Format(p.Amount),
					Currency:    p.Currency,
					Reason:      reason,
				}
			}
			continue
		}
		total = total.Add(converted.Decimal)
	}
	return total
}

func pledgeAmount(p models.Payment) decimal.NullDecimal { return p.AmountInPledgeCurrency }
func planAmount(p models.Payment) decimal.NullDecimal   { return p.AmountInPlanCurrency }

func auditPledgeBalances(ds *dataset, awaiting map[string]AwaitingPayment) []Issue {
	var issues []Issue
	for _, pledge := range ds.pledges {
		paid := paidTotal(ds.paymentsByPledge[pledge.ID], pledgeAmount, awaiting)
		if !money.WithinTolerance(paid, pledge.TotalPaid, money.Tolerance) {
			issues = append(issues, balanceIssue(TypePledgeTotalPaid, RecordPledge, pledge.ID, pledge.ContactID, pledge.ContactName,
				"total_paid", pledge.TotalPaid, paid,
				fmt.Sprintf("Pledge total paid %s %s does not match completed payments %s", money.Format(pledge.TotalPaid), pledge.Currency, money.Format(paid))))
		}
		expected := pledge.OriginalAmount.Sub(paid)
		if !money.WithinTolerance(expected, pledge.Balance, money.Tolerance) {
			issues = append(issues, balanceIssue(TypePledgeBalance, RecordPledge, pledge.ID, pledge.ContactID, pledge.ContactName,
				"balance", pledge.Balance, expected,
				fmt.Sprintf("Pledge balance %s %s should be %s", money.Format(pledge.Balance), pledge.Currency, money.Format(expected))))
		}
	}
	return issues
}

func auditPlanBalances(ds *dataset, awaiting map[string]AwaitingPayment) []Issue {
	var issues []Issue
	for _, plan := range ds.plans {
		paid := paidTotal(ds.paymentsByPlan[plan.ID], planAmount, awaiting)
		if !money.WithinTolerance(paid, plan.TotalPaid, money.Tolerance) {
			issues = append(issues, balanceIssue(TypePlanTotalPaid, RecordPaymentPlan, plan.ID, plan.ContactID, plan.ContactName,
				"total_paid", plan.TotalPaid, paid,
				fmt.Sprintf("Payment plan total paid %s %s does not match completed payments %s", money.Format(plan.TotalPaid), plan.Currency, money.Format(paid))))
		}
		expected := plan.TotalPlannedAmount.Sub(paid)
		if !money.WithinTolerance(expected, plan.RemainingAmount, money.Tolerance) {
			issues = append(issues, balanceIssue(TypePlanRemaining, RecordPaymentPlan, plan.ID, plan.ContactID, plan.ContactName,
				"remaining_amount", plan.RemainingAmount, expected,
				fmt.Sprintf("Payment plan remaining %s %s should be %s", money.Format(plan.RemainingAmount), plan.Currency, money.Format(expected))))
		}
		if plan.NumberOfInstallments > 0 {
			perInstallment := money.Round2(plan.TotalPlannedAmount.Div(decimal.NewFromInt(int64(plan.NumberOfInstallments))))
			if !money.WithinTolerance(perInstallment, plan.InstallmentAmount, installmentTolerance) {
				issues = append(issues, Issue{
					ID:             IssueID(TypePlanAmounts, plan.ID),
					Type:           TypePlanAmounts,
					Severity:       money.SeverityWarning,
					ContactID:      plan.ContactID,
					ContactName:    plan.ContactName,
					RecordID:       plan.ID,
					RecordType:     RecordPaymentPlan,
					Description:    fmt.Sprintf("Installment amount %s differs from %s / %d installments", money.Format(plan.InstallmentAmount), money.Format(plan.TotalPlannedAmount), plan.NumberOfInstallments),
					CurrentValue:   money.Format(plan.InstallmentAmount),
					ExpectedValue:  money.Format(perInstallment),
					AffectedFields: []string{"installment_amount"},
				})
			}
		}
	}
	return issues
}

func balanceIssue(t IssueType, rt RecordType, recordID, contactID, contactName, field string, current, expected decimal.Decimal, description string) Issue {
	return Issue{
		ID:             IssueID(t, recordID),
		Type:           t,
		Severity:       money.SeverityCritical,
		ContactID:      contactID,
		ContactName:    contactName,
		RecordID:       recordID,
		RecordType:     rt,
		Description:    description,
		CurrentValue:   money.Format(current),
		ExpectedValue:  money.Format(expected),
		AffectedFields: []string{field},
		FixValue:       money.Format(expected),
		FixRecordID:    recordID,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
