package integrity

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"donorcrm/internal/money"
	"donorcrm/internal/rates"
)

type Scope string

const (
	// ScopeFull runs every auditor.
	ScopeFull Scope = "full"
	// ScopeConversions runs only the conversion auditors.
	ScopeConversions Scope = "conversions"
	// ScopeBalances recomputes pledge and plan balances together with the
	// plan USD mirrors that depend on them.
	ScopeBalances Scope = "balances"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeFull, ScopeConversions, ScopeBalances:
		return Scope(s), true
	case "":
		return ScopeFull, true
	}
	return "", false
}

type Summary struct {
	Total            int               `json:"total"`
	Critical         int               `json:"critical"`
	Warning          int               `json:"warning"`
	AffectedContacts int               `json:"affectedContacts"`
	ByType           map[IssueType]int `json:"byType"`
}

func Summarize(issues []Issue) Summary {
	s := Summary{ByType: make(map[IssueType]int)}
	contacts := make(map[string]struct{})
	for _, i := range issues {
		s.Total++
		switch i.Severity {
		case money.SeverityCritical:
			s.Critical++
		case money.SeverityWarning:
			s.Warning++
		}
		s.ByType[i.Type]++
		if i.ContactID != "" {
			contacts[i.ContactID] = struct{}{}
		}
	}
	s.AffectedContacts = len(contacts)
	return s
}

type Result struct {
	Scope        Scope
	Issues       []Issue
	Summary      Summary
	Awaiting     []AwaitingPayment
	Skipped      int
	RecordErrors []string
}

type CheckerOptions struct {
	DatePolicy string
	Now        func() time.Time
}

// Checker runs the auditors in a fixed order. It only reads.
type Checker struct {
	sources Sources
	conv    Converter
	log     *logrus.Logger
	policy  string
	now     func() time.Time
}

func NewChecker(sources Sources, conv Converter, log *logrus.Logger, opts CheckerOptions) *Checker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DatePolicy == "" {
		opts.DatePolicy = rates.DatePolicyRecord
	}
	if log == nil {
		log = logrus.New()
	}
	return &Checker{sources: sources, conv: conv, log: log, policy: opts.DatePolicy, now: opts.Now}
}

func loadSetFor(scope Scope) loadSet {
	switch scope {
	case ScopeConversions:
		return loadSet{plans: true, payments: true, installments: true, allocations: true}
	case ScopeBalances:
		return loadSet{pledges: true, plans: true, payments: true}
	}
	return loadSet{pledges: true, plans: true, payments: true, installments: true, allocations: true}
}

func (c *Checker) Run(ctx context.Context, scope Scope) (Result, error) {
	ds, err := c.sources.load(ctx, loadSetFor(scope))
	if err != nil {
		return Result{}, err
	}
	stats := &runStats{}
	ca := &conversionAuditor{conv: c.conv, log: c.log, policy: c.policy, now: c.now(), stats: stats}
	awaiting := make(map[string]AwaitingPayment)

	type step struct {
		name string
		run  func() ([]Issue, error)
	}
	balanceOnly := func(f func(*dataset, map[string]AwaitingPayment) []Issue) func() ([]Issue, error) {
		return func() ([]Issue, error) { return f(ds, awaiting), nil }
	}
	pledges := step{"pledge_balances", balanceOnly(auditPledgeBalances)}
	plans := step{"plan_balances", balanceOnly(auditPlanBalances)}
	payments := step{"payment_conversions", func() ([]Issue, error) { return ca.payments(ctx, ds) }}
	planConv := step{"plan_conversions", func() ([]Issue, error) { return ca.plans(ctx, ds) }}
	installments := step{"installment_conversions", func() ([]Issue, error) { return ca.installments(ctx, ds) }}
	thirdParty := step{"third_party_conversions", func() ([]Issue, error) { return ca.thirdParty(ctx, ds) }}
	allocations := step{"allocation_conversions", func() ([]Issue, error) { return ca.allocations(ctx, ds) }}
	integrity := step{"allocation_integrity", func() ([]Issue, error) { return auditAllocationIntegrity(ds), nil }}

	var steps []step
	switch scope {
	case ScopeConversions:
		steps = []step{payments, planConv, installments, thirdParty, allocations}
	case ScopeBalances:
		steps = []step{pledges, plans, planConv}
	default:
		scope = ScopeFull
		steps = []step{pledges, plans, payments, planConv, installments, thirdParty, allocations, integrity}
	}

	result := Result{Scope: scope}
	for _, s := range steps {
		found, err := s.run()
		if err != nil {
			return Result{}, err
		}
		c.log.WithFields(logrus.Fields{"auditor": s.name, "issues": len(found)}).Debug("auditor finished")
		result.Issues = append(result.Issues, found...)
	}

	result.Awaiting = make([]AwaitingPayment, 0, len(awaiting))
	for _, a := range awaiting {
		result.Awaiting = append(result.Awaiting, a)
	}
	sort.Slice(result.Awaiting, func(i, j int) bool { return result.Awaiting[i].PaymentID < result.Awaiting[j].PaymentID })
	if len(result.Awaiting) > 0 {
		c.log.WithField("count", len(result.Awaiting)).Info("payments awaiting conversion")
	}
	result.Skipped = stats.skipped
	result.RecordErrors = stats.recordErrors
	result.Summary = Summarize(result.Issues)
	return result, nil
}
