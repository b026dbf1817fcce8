package integrity

import (
	"errors"

	"github.com/google/uuid"

	"donorcrm/internal/money"
)

var ErrNotFixable = errors.New("issue has no automatic fix")

type IssueType string

const (
	TypePledgeTotalPaid            IssueType = "pledge_total_paid"
	TypePledgeBalance              IssueType = "pledge_balance"
	TypePlanTotalPaid              IssueType = "payment_plan_total_paid"
	TypePlanRemaining              IssueType = "payment_plan_remaining"
	TypePlanAmounts                IssueType = "payment_plan_amounts"
	TypePaymentUSDConversion       IssueType = "payment_usd_conversion"
	TypePaymentPledgeConversion    IssueType = "payment_pledge_conversion"
	TypePaymentPlanConversion      IssueType = "payment_plan_conversion"
	TypePlanTotalUSD               IssueType = "payment_plan_total_usd"
	TypePlanInstallmentUSD         IssueType = "payment_plan_installment_usd"
	TypePlanRemainingUSD           IssueType = "payment_plan_remaining_usd"
	TypeInstallmentUSDConversion   IssueType = "installment_usd_conversion"
	TypeThirdPartyUSDConversion    IssueType = "third_party_usd_conversion"
	TypeAllocationUSDConversion    IssueType = "allocation_usd_conversion"
	TypeAllocationPledgeConversion IssueType = "allocation_pledge_conversion"
	TypeAllocationIntegrity        IssueType = "allocation_integrity"
)

// IsBalance reports whether the issue is a derived total that depends on
// payment conversions. Those are only ever fixed from a fresh audit.
func (t IssueType) IsBalance() bool {
	switch t {
	case TypePledgeTotalPaid, TypePledgeBalance, TypePlanTotalPaid, TypePlanRemaining:
		return true
	}
	return false
}

type RecordType string

const (
	RecordPledge      RecordType = "pledge"
	RecordPaymentPlan RecordType = "payment_plan"
	RecordPayment     RecordType = "payment"
	RecordInstallment RecordType = "installment_schedule"
	RecordAllocation  RecordType = "payment_allocation"
)

// Table is the database table holding records of this type.
func (r RecordType) Table() string {
	switch r {
	case RecordPledge:
		return "pledges"
	case RecordPaymentPlan:
		return "payment_plans"
	case RecordPayment:
		return "payments"
	case RecordInstallment:
		return "installment_schedules"
	case RecordAllocation:
		return "payment_allocations"
	}
	return ""
}

type Issue struct {
	ID             string         `json:"id"`
	Type           IssueType      `json:"type"`
	Severity       money.Severity `json:"severity"`
	ContactID      string         `json:"contactId"`
	ContactName    string         `json:"contactName"`
	RecordID       string         `json:"recordId"`
	RecordType     RecordType     `json:"recordType"`
	Description    string         `json:"description"`
	CurrentValue   string         `json:"currentValue"`
	ExpectedValue  string         `json:"expectedValue"`
	AffectedFields []string       `json:"affectedFields"`
	FixValue       string         `json:"fixValue,omitempty"`
	FixRecordID    string         `json:"fixRecordId,omitempty"`
	FixRate        string         `json:"fixRate,omitempty"`
	FixRateField   string         `json:"fixRateField,omitempty"`
}

var issueNamespace = uuid.MustParse("6f1c9a8e-3b52-4c8e-9d7a-2e4f0b1d5c33")

// IssueID is stable for a given type and record so repeated runs report the
// same finding under the same id.
func IssueID(t IssueType, recordID string) string {
	return uuid.NewSHA1(issueNamespace, []byte(string(t)+":"+recordID)).String()
}

func (i Issue) IsCritical() bool {
	return i.Severity == money.SeverityCritical
}

// Fixable reports whether the corrective writer can apply the issue.
func (i Issue) Fixable() bool {
	return i.IsCritical() && i.FixValue != "" && i.FixRecordID != "" && len(i.AffectedFields) > 0 && i.RecordType.Table() != ""
}

// Critical returns the critical subset of issues, preserving order.
func Critical(issues []Issue) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, i := range issues {
		if i.IsCritical() {
			out = append(out, i)
		}
	}
	return out
}
