package integrity

import (
	"context"
	"fmt"

	"donorcrm/internal/models"
)

type PledgeLister interface {
	ListActive(ctx context.Context) ([]models.Pledge, error)
}

type PlanLister interface {
	ListActive(ctx context.Context) ([]models.PaymentPlan, error)
}

type PaymentLister interface {
	List(ctx context.Context) ([]models.Payment, error)
}

type InstallmentLister interface {
	List(ctx context.Context) ([]models.InstallmentSchedule, error)
}

type AllocationLister interface {
	List(ctx context.Context) ([]models.PaymentAllocation, error)
}

// Sources reads every entity type with one query each.
type Sources struct {
	Pledges      PledgeLister
	Plans        PlanLister
	Payments     PaymentLister
	Installments InstallmentLister
	Allocations  AllocationLister
}

type dataset struct {
	pledges      []models.Pledge
	plans        []models.PaymentPlan
	payments     []models.Payment
	installments []models.InstallmentSchedule
	allocations  []models.PaymentAllocation

	paymentsByPledge     map[string][]models.Payment
	paymentsByPlan       map[string][]models.Payment
	allocationsByPayment map[string][]models.PaymentAllocation
}

type loadSet struct {
	pledges, plans, payments, installments, allocations bool
}

func (s Sources) load(ctx context.Context, want loadSet) (*dataset, error) {
	ds := &dataset{}
	var err error
	if want.pledges {
		if ds.pledges, err = s.Pledges.ListActive(ctx); err != nil {
			return nil, fmt.Errorf("load pledges: %w", err)
		}
	}
	if want.plans {
		if ds.plans, err = s.Plans.ListActive(ctx); err != nil {
			return nil, fmt.Errorf("load payment plans: %w", err)
		}
	}
	if want.payments {
		if ds.payments, err = s.Payments.List(ctx); err != nil {
			return nil, fmt.Errorf("load payments: %w", err)
		}
	}
	if want.installments {
		if ds.installments, err = s.Installments.List(ctx); err != nil {
			return nil, fmt.Errorf("load installments: %w", err)
		}
	}
	if want.allocations {
		if ds.allocations, err = s.Allocations.List(ctx); err != nil {
			return nil, fmt.Errorf("load allocations: %w", err)
		}
	}
	ds.index()
	return ds, nil
}

func (ds *dataset) index() {
	ds.paymentsByPledge = make(map[string][]models.Payment)
	ds.paymentsByPlan = make(map[string][]models.Payment)
	for _, p := range ds.payments {
		if p.PledgeID != nil {
			ds.paymentsByPledge[*p.PledgeID] = append(ds.paymentsByPledge[*p.PledgeID], p)
		}
		if p.PaymentPlanID != nil {
			ds.paymentsByPlan[*p.PaymentPlanID] = append(ds.paymentsByPlan[*p.PaymentPlanID], p)
		}
	}
	ds.allocationsByPayment = make(map[string][]models.PaymentAllocation)
	for _, a := range ds.allocations {
		ds.allocationsByPayment[a.PaymentID] = append(ds.allocationsByPayment[a.PaymentID], a)
	}
}
