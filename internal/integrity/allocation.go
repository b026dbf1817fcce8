package integrity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"donorcrm/internal/models"
	"donorcrm/internal/money"
)

// auditAllocationIntegrity checks that the same-currency allocations of each
// completed third-party payment add back up to the payment. Payments with no
// allocations are not split and are skipped.
func auditAllocationIntegrity(ds *dataset) []Issue {
	var issues []Issue
	for _, p := range ds.payments {
		if !p.IsThirdPartyPayment || p.PaymentStatus != models.PaymentStatusCompleted {
			continue
		}
		allocs := ds.allocationsByPayment[p.ID]
		if len(allocs) == 0 {
			continue
		}
		sum := decimal.Zero
		counted := 0
		for _, a := range allocs {
			if !strings.EqualFold(a.Currency, p.Currency) {
				continue
			}
			sum = sum.Add(a.AllocatedAmount)
			counted++
		}
		if counted == 0 || money.WithinTolerance(sum, p.Amount, money.Tolerance) {
			continue
		}
		contactID, contactName := payerOf(p)
		issues = append(issues, Issue{
			ID:          IssueID(TypeAllocationIntegrity, p.ID),
			Type:        TypeAllocationIntegrity,
			Severity:    money.SeverityCritical,
			ContactID:   contactID,
			ContactName: contactName,
			RecordID:    p.ID,
			RecordType:  RecordPayment,
			Description: fmt.Sprintf("%d allocation(s) total %s %s but the payment is %s %s",
				counted, money.Format(sum), p.Currency, money.Format(p.Amount), p.Currency),
			CurrentValue:   money.Format(sum),
			ExpectedValue:  money.Format(p.Amount),
			AffectedFields: []string{"allocated_amount"},
		})
	}
	return issues
}
