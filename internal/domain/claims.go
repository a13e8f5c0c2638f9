package domain

import (
	"github.com/shopspring/decimal"
)

// AmountType distinguishes the reserve components carried by a cohort
type AmountType string

const (
	AmountCase AmountType = "case"
	AmountIBNR AmountType = "ibnr"
	AmountULAE AmountType = "ulae"
)

// AmountTypes lists the reserve components in reporting order
var AmountTypes = []AmountType{AmountCase, AmountIBNR, AmountULAE}

// CohortKey identifies a claim cohort
type CohortKey struct {
	AccidentMonth string `yaml:"accident_month" json:"accident_month"`
	ClassCode     string `yaml:"class_code" json:"class_code"`
}

// ClaimCohort carries the undiscounted reserves of one accident month and class
type ClaimCohort struct {
	Key  CohortKey       `yaml:",inline" json:"key"`
	Case decimal.Decimal `yaml:"case" json:"case"`
	IBNR decimal.Decimal `yaml:"ibnr" json:"ibnr"`
	ULAE decimal.Decimal `yaml:"ulae" json:"ulae"`
}

// Amount returns the reserve for one component
func (c *ClaimCohort) Amount(t AmountType) decimal.Decimal {
	switch t {
	case AmountCase:
		return c.Case
	case AmountIBNR:
		return c.IBNR
	case AmountULAE:
		return c.ULAE
	}
	return decimal.Zero
}

// Pattern is a claim development pattern: payout ratios by age 1..N
type Pattern struct {
	ClassCode string            `yaml:"class_code" json:"class_code"`
	Ratios    []decimal.Decimal `yaml:"ratios" json:"ratios"`
}

// Paid returns the sum of the first age ratios
func (p Pattern) Paid(age int) decimal.Decimal {
	sum := decimal.Zero
	for i := 0; i < age && i < len(p.Ratios); i++ {
		sum = sum.Add(p.Ratios[i])
	}
	return sum
}

// Remaining returns the ratios after age
func (p Pattern) Remaining(age int) []decimal.Decimal {
	if age >= len(p.Ratios) {
		return nil
	}
	return p.Ratios[age:]
}

// RegimePV is a best estimate and its risk adjustment under one discount regime
type RegimePV struct {
	BEL   decimal.Decimal `json:"bel"`
	RA    decimal.Decimal `json:"ra"`
	Total decimal.Decimal `json:"total"`
}

// Add sums two regime values component-wise
func (r RegimePV) Add(o RegimePV) RegimePV {
	return RegimePV{BEL: r.BEL.Add(o.BEL), RA: r.RA.Add(o.RA), Total: r.Total.Add(o.Total)}
}

// AmountPV is the present value of one reserve component of a cohort
type AmountPV struct {
	Type          AmountType      `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Current       RegimePV        `json:"current"`
	Accident      RegimePV        `json:"accident"`
	CurrentTable  []WorkRow       `json:"current_table,omitempty"`
	AccidentTable []WorkRow       `json:"accident_table,omitempty"`
}

// CohortSnapshot is the part of a cohort result the next period reads back
type CohortSnapshot struct {
	Key              CohortKey       `yaml:",inline" json:"key"`
	Month            string          `yaml:"month" json:"month"`
	CurrentTotal     decimal.Decimal `yaml:"current_total" json:"current_total"`
	AccidentTotal    decimal.Decimal `yaml:"accident_total" json:"accident_total"`
	AccretedAccident decimal.Decimal `yaml:"accreted_accident" json:"accreted_accident"`
}

// PresentValues are the six figures the accounting split is derived from
type PresentValues struct {
	Current       decimal.Decimal `json:"current"`
	PriorCurrent  decimal.Decimal `json:"prior_current"`
	Accident      decimal.Decimal `json:"accident"`
	PriorAccident decimal.Decimal `json:"prior_accident"`
	PriorAccreted decimal.Decimal `json:"prior_accreted"`
	Accreted      decimal.Decimal `json:"accreted"`
}

// Movements are the period-over-period accounting components of a cohort
type Movements struct {
	PaidClaim   decimal.Decimal `json:"paid_claim"`
	ServiceCost decimal.Decimal `json:"service_cost"`
	Financing   decimal.Decimal `json:"financing"`
	OCI         decimal.Decimal `json:"oci"`
}

// Add sums two sets of movements
func (m Movements) Add(o Movements) Movements {
	return Movements{
		PaidClaim:   m.PaidClaim.Add(o.PaidClaim),
		ServiceCost: m.ServiceCost.Add(o.ServiceCost),
		Financing:   m.Financing.Add(o.Financing),
		OCI:         m.OCI.Add(o.OCI),
	}
}

// CohortResult is the incurred-claims measurement of one cohort at one evaluation month
type CohortResult struct {
	Key         CohortKey       `json:"key"`
	Month       string          `json:"month"`
	Age         int             `json:"age"`
	CurrentYear bool            `json:"current_year"`
	UnpaidRatio decimal.Decimal `json:"unpaid_ratio"`
	Settled     bool            `json:"settled"`
	Amounts     []AmountPV      `json:"amounts,omitempty"`
	Current     RegimePV        `json:"current"`
	Accident    RegimePV        `json:"accident"`
	Values      PresentValues   `json:"values"`
	Movements   Movements       `json:"movements"`
}

// Snapshot extracts what the next period needs
func (r *CohortResult) Snapshot() CohortSnapshot {
	return CohortSnapshot{
		Key:              r.Key,
		Month:            r.Month,
		CurrentTotal:     r.Values.Current,
		AccidentTotal:    r.Values.Accident,
		AccretedAccident: r.Values.Accreted,
	}
}

// IncurredResult collects the cohort results of one evaluation month
type IncurredResult struct {
	RunID       string         `json:"run_id"`
	Month       string         `json:"month"`
	Cohorts     []CohortResult `json:"cohorts"`
	Totals      Movements      `json:"totals"`
	Diagnostics Diagnostics    `json:"diagnostics,omitempty"`
}
