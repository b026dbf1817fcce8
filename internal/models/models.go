package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
	PaymentStatusExpected  = "expected"
)

type Pledge struct {
	ID             string          `db:"id" json:"id"`
	ContactID      string          `db:"contact_id" json:"contact_id"`
	ContactName    string          `db:"contact_name" json:"contact_name"`
	OriginalAmount decimal.Decimal `db:"original_amount" json:"original_amount"`
	TotalPaid      decimal.Decimal `db:"total_paid" json:"total_paid"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Currency       string          `db:"currency" json:"currency"`
	IsActive       bool            `db:"is_active" json:"is_active"`
}

type PaymentPlan struct {
	ID                    string              `db:"id" json:"id"`
	PledgeID              string              `db:"pledge_id" json:"pledge_id"`
	ContactID             string              `db:"contact_id" json:"contact_id"`
	ContactName           string              `db:"contact_name" json:"contact_name"`
	TotalPlannedAmount    decimal.Decimal     `db:"total_planned_amount" json:"total_planned_amount"`
	TotalPlannedAmountUSD decimal.NullDecimal `db:"total_planned_amount_usd" json:"total_planned_amount_usd"`
	InstallmentAmount     decimal.Decimal     `db:"installment_amount" json:"installment_amount"`
	InstallmentAmountUSD  decimal.NullDecimal `db:"installment_amount_usd" json:"installment_amount_usd"`
	TotalPaid             decimal.Decimal     `db:"total_paid" json:"total_paid"`
	RemainingAmount       decimal.Decimal     `db:"remaining_amount" json:"remaining_amount"`
	RemainingAmountUSD    decimal.NullDecimal `db:"remaining_amount_usd" json:"remaining_amount_usd"`
	Currency              string              `db:"currency" json:"currency"`
	ExchangeRate          decimal.NullDecimal `db:"exchange_rate" json:"exchange_rate"`
	NumberOfInstallments  int                 `db:"number_of_installments" json:"number_of_installments"`
	StartDate             *time.Time          `db:"start_date" json:"start_date"`
	IsActive              bool                `db:"is_active" json:"is_active"`
}

type Payment struct {
	ID                         string              `db:"id" json:"id"`
	PledgeID                   *string             `db:"pledge_id" json:"pledge_id"`
	PaymentPlanID              *string             `db:"payment_plan_id" json:"payment_plan_id"`
	Amount                     decimal.Decimal     `db:"amount" json:"amount"`
	Currency                   string              `db:"currency" json:"currency"`
	AmountUSD                  decimal.NullDecimal `db:"amount_usd" json:"amount_usd"`
	AmountInPledgeCurrency     decimal.NullDecimal `db:"amount_in_pledge_currency" json:"amount_in_pledge_currency"`
	AmountInPlanCurrency       decimal.NullDecimal `db:"amount_in_plan_currency" json:"amount_in_plan_currency"`
	ExchangeRate               decimal.NullDecimal `db:"exchange_rate" json:"exchange_rate"`
	PledgeCurrencyExchangeRate decimal.NullDecimal `db:"pledge_currency_exchange_rate" json:"pledge_currency_exchange_rate"`
	PlanCurrencyExchangeRate   decimal.NullDecimal `db:"plan_currency_exchange_rate" json:"plan_currency_exchange_rate"`
	PaymentStatus              string              `db:"payment_status" json:"payment_status"`
	ReceivedDate               *time.Time          `db:"received_date" json:"received_date"`
	PaymentDate                *time.Time          `db:"payment_date" json:"payment_date"`
	IsThirdPartyPayment        bool                `db:"is_third_party_payment" json:"is_third_party_payment"`
	PayerContactID             *string             `db:"payer_contact_id" json:"payer_contact_id"`
	PayerName                  string              `db:"payer_name" json:"payer_name"`
	PledgeCurrency             *string             `db:"pledge_currency" json:"pledge_currency"`
	PlanCurrency               *string             `db:"plan_currency" json:"plan_currency"`
	ContactID                  string              `db:"contact_id" json:"contact_id"`
	ContactName                string              `db:"contact_name" json:"contact_name"`
}

type InstallmentSchedule struct {
	ID                   string              `db:"id" json:"id"`
	PaymentPlanID        string              `db:"payment_plan_id" json:"payment_plan_id"`
	ContactID            string              `db:"contact_id" json:"contact_id"`
	ContactName          string              `db:"contact_name" json:"contact_name"`
	InstallmentAmount    decimal.Decimal     `db:"installment_amount" json:"installment_amount"`
	InstallmentAmountUSD decimal.NullDecimal `db:"installment_amount_usd" json:"installment_amount_usd"`
	Currency             string              `db:"currency" json:"currency"`
	InstallmentDate      *time.Time          `db:"installment_date" json:"installment_date"`
}

type PaymentAllocation struct {
	ID                              string              `db:"id" json:"id"`
	PaymentID                       string              `db:"payment_id" json:"payment_id"`
	PledgeID                        *string             `db:"pledge_id" json:"pledge_id"`
	AllocatedAmount                 decimal.Decimal     `db:"allocated_amount" json:"allocated_amount"`
	Currency                        string              `db:"currency" json:"currency"`
	AllocatedAmountUSD              decimal.NullDecimal `db:"allocated_amount_usd" json:"allocated_amount_usd"`
	AllocatedAmountInPledgeCurrency decimal.NullDecimal `db:"allocated_amount_in_pledge_currency" json:"allocated_amount_in_pledge_currency"`
	PayerContactID                  *string             `db:"payer_contact_id" json:"payer_contact_id"`
	PledgeCurrency                  *string             `db:"pledge_currency" json:"pledge_currency"`
	PaymentStatus                   string              `db:"payment_status" json:"payment_status"`
	ReceivedDate                    *time.Time          `db:"received_date" json:"received_date"`
	PaymentDate                     *time.Time          `db:"payment_date" json:"payment_date"`
	ContactID                       string              `db:"contact_id" json:"contact_id"`
	ContactName                     string              `db:"contact_name" json:"contact_name"`
}

type ExchangeRate struct {
	ID             string          `db:"id" json:"id"`
	BaseCurrency   string          `db:"base_currency" json:"base_currency"`
	TargetCurrency string          `db:"target_currency" json:"target_currency"`
	Rate           decimal.Decimal `db:"rate" json:"rate"`
	Date           time.Time       `db:"date" json:"date"`
	Source         string          `db:"source" json:"source"`
}
