package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CashFlowType tags the amount carried by a raw cash-flow row
type CashFlowType string

const (
	FlowPremium      CashFlowType = "premium"
	FlowCommission   CashFlowType = "commission"
	FlowBrokerage    CashFlowType = "brokerage"
	FlowAcqFollow    CashFlowType = "acq_follow"
	FlowAcqNonFollow CashFlowType = "acq_nonfollow" // cumulative-to-date
)

// Valid reports whether t is a known row type
func (t CashFlowType) Valid() bool {
	switch t {
	case FlowPremium, FlowCommission, FlowBrokerage, FlowAcqFollow, FlowAcqNonFollow:
		return true
	}
	return false
}

// CashFlowRow is one raw transactional amount for a contract, tagged by evaluation month
type CashFlowRow struct {
	Month  string          `yaml:"month" json:"month"`
	Type   CashFlowType    `yaml:"type" json:"type"`
	Amount decimal.Decimal `yaml:"amount" json:"amount"`
}

// CashFlow is the bucketed amount set for one evaluation month
type CashFlow struct {
	Premium       decimal.Decimal `json:"premium"`
	Commission    decimal.Decimal `json:"commission"`
	Brokerage     decimal.Decimal `json:"brokerage"`
	AcqHistorical decimal.Decimal `json:"acq_historical"`
	AcqFollow     decimal.Decimal `json:"acq_follow"`
	AcqNonFollow  decimal.Decimal `json:"acq_nonfollow"` // incremental
	AcqAssumption decimal.Decimal `json:"acq_assumption"`
}

// NetPremium is the premium cash flow after the deductions the variant enables
func (cf CashFlow) NetPremium(spec VariantSpec) decimal.Decimal {
	net := cf.Premium
	if spec.DeductCommission {
		net = net.Sub(cf.Commission)
	}
	if spec.DeductBrokerage {
		net = net.Sub(cf.Brokerage)
	}
	return net
}

// Acquisition is the acquisition cash flow booked in the month
func (cf CashFlow) Acquisition(spec VariantSpec) decimal.Decimal {
	if !spec.Acquisition {
		return decimal.Zero
	}
	total := cf.AcqHistorical.Add(cf.AcqNonFollow).Add(cf.AcqAssumption)
	if spec.FollowInAcquisition {
		total = total.Add(cf.AcqFollow)
	}
	return total
}

// BaseIncrement is the amount by which the month grows the amortization base.
// Follow costs are expensed through the cash flow only.
func (cf CashFlow) BaseIncrement(spec VariantSpec) decimal.Decimal {
	if !spec.Acquisition {
		return decimal.Zero
	}
	return cf.AcqHistorical.Add(cf.AcqNonFollow).Add(cf.AcqAssumption)
}

// IsZero reports whether every component is zero
func (cf CashFlow) IsZero() bool {
	return cf.Premium.IsZero() && cf.Commission.IsZero() && cf.Brokerage.IsZero() &&
		cf.AcqHistorical.IsZero() && cf.AcqFollow.IsZero() && cf.AcqNonFollow.IsZero() &&
		cf.AcqAssumption.IsZero()
}

// Timeline maps evaluation months to bucketed cash flows. It is immutable once built.
type Timeline struct {
	entries map[string]CashFlow
}

// NewTimeline copies entries into a new timeline
func NewTimeline(entries map[string]CashFlow) Timeline {
	copied := make(map[string]CashFlow, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return Timeline{entries: copied}
}

// Get returns the bucket for month and whether one was recorded
func (t Timeline) Get(month string) (CashFlow, bool) {
	cf, ok := t.entries[month]
	return cf, ok
}

// Months returns the recorded months in ascending order
func (t Timeline) Months() []string {
	months := make([]string, 0, len(t.entries))
	for m := range t.entries {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// Len returns the number of recorded buckets
func (t Timeline) Len() int {
	return len(t.entries)
}
