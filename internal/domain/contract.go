package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Variant identifies which family of contract a measurement run covers
type Variant string

const (
	VariantDirect  Variant = "direct"
	VariantInward  Variant = "inward"
	VariantOutward Variant = "outward"
)

// LossMode controls how the onerous top-up is obtained at the target month
type LossMode int

const (
	// LossModeCompute runs the onerous contract test on the contract's own cash flows
	LossModeCompute LossMode = iota
	// LossModeUnderlying takes the underlying contract's loss scaled by the share rate
	LossModeUnderlying
)

// VariantSpec describes the cash-flow components and cost bases a variant enables.
// The rolling engine is parametrized by this descriptor instead of branching on Variant.
type VariantSpec struct {
	Variant               Variant
	DeductCommission      bool
	DeductBrokerage       bool
	Acquisition           bool // acquisition cash flows and amortization
	FollowInAcquisition   bool // follow costs are part of the acquisition cash flow
	LegacyAssumptionCost  bool // inject assumption cost for contracts confirmed before the era boundary
	InvestmentComponent   bool
	DaysFromCoverageStart bool // served days count from coverage start instead of the confirmation month
	ExactServiceRatio     bool // earn revenue, amortization and investment on the unrounded served/term ratio
	LossMode              LossMode
}

// SpecFor returns the descriptor for a variant. Unknown variants report ok=false.
func SpecFor(v Variant) (VariantSpec, bool) {
	switch v {
	case VariantDirect, "":
		return VariantSpec{
			Variant:              VariantDirect,
			Acquisition:          true,
			FollowInAcquisition:  true,
			LegacyAssumptionCost: true,
			LossMode:             LossModeCompute,
		}, true
	case VariantInward:
		return VariantSpec{
			Variant:               VariantInward,
			DeductCommission:      true,
			DeductBrokerage:       true,
			Acquisition:           true,
			DaysFromCoverageStart: true,
			ExactServiceRatio:     true,
			LossMode:              LossModeCompute,
		}, true
	case VariantOutward:
		return VariantSpec{
			Variant:               VariantOutward,
			DeductCommission:      true,
			InvestmentComponent:   true,
			DaysFromCoverageStart: true,
			ExactServiceRatio:     true,
			LossMode:              LossModeUnderlying,
		}, true
	}
	return VariantSpec{}, false
}

// ContractKey identifies a contract by policy and optional endorsement
type ContractKey struct {
	PolicyNo      string `yaml:"policy_no" json:"policy_no"`
	EndorsementNo string `yaml:"endorsement_no,omitempty" json:"endorsement_no,omitempty"`
}

// Normalize applies the endorsement null-equivalence rule
func (k ContractKey) Normalize() ContractKey {
	return ContractKey{
		PolicyNo:      strings.TrimSpace(k.PolicyNo),
		EndorsementNo: NormalizeEndorsement(k.EndorsementNo),
	}
}

// String renders the key as policy/endorsement
func (k ContractKey) String() string {
	k = k.Normalize()
	if k.EndorsementNo == "" {
		return k.PolicyNo
	}
	return k.PolicyNo + "/" + k.EndorsementNo
}

// NormalizeEndorsement maps every absent-endorsement spelling to the empty string
func NormalizeEndorsement(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "NULL", "NONE":
		return ""
	}
	return s
}

// Contract is the static record of a contract. It is read-only for the duration of a run.
type Contract struct {
	Key         ContractKey     `yaml:",inline" json:"key"`
	Variant     Variant         `yaml:"variant" json:"variant"`
	ClassCode   string          `yaml:"class_code" json:"class_code"`
	Premium     decimal.Decimal `yaml:"premium" json:"premium"`
	Commission  decimal.Decimal `yaml:"commission" json:"commission"`
	Brokerage   decimal.Decimal `yaml:"brokerage" json:"brokerage"`
	ConfirmDate time.Time       `yaml:"confirm_date" json:"confirm_date"`
	StartDate   time.Time       `yaml:"start_date" json:"start_date"`
	EndDate     time.Time       `yaml:"end_date" json:"end_date"`
	TermDays    int             `yaml:"term_days,omitempty" json:"term_days,omitempty"`

	// Outward only
	UnderwriteDate  time.Time       `yaml:"underwrite_date,omitempty" json:"underwrite_date,omitempty"`
	EndorsementDate time.Time       `yaml:"endorsement_date,omitempty" json:"endorsement_date,omitempty"`
	InvestmentRatio decimal.Decimal `yaml:"investment_ratio,omitempty" json:"investment_ratio,omitempty"`
	ShareRate       decimal.Decimal `yaml:"share_rate,omitempty" json:"share_rate,omitempty"`
	Underlying      ContractKey     `yaml:"underlying,omitempty" json:"underlying,omitempty"`
}

// Term returns the coverage length in days. The stored value wins when present.
func (c *Contract) Term() int {
	if c.TermDays > 0 {
		return c.TermDays
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() || c.EndDate.Before(c.StartDate) {
		return 0
	}
	return int(c.EndDate.Sub(c.StartDate).Hours()/24) + 1
}

// NetPremium returns the total premium net of the deductions the variant enables
func (c *Contract) NetPremium(spec VariantSpec) decimal.Decimal {
	net := c.Premium
	if spec.DeductCommission {
		net = net.Sub(c.Commission)
	}
	if spec.DeductBrokerage {
		net = net.Sub(c.Brokerage)
	}
	return net
}

// SignDate is the underwrite date for the base policy, else the endorsement write date
func (c *Contract) SignDate() time.Time {
	if c.Key.Normalize().EndorsementNo == "" || c.EndorsementDate.IsZero() {
		return c.UnderwriteDate
	}
	return c.EndorsementDate
}

// IsLegacy reports whether the contract was confirmed before the era boundary
func (c *Contract) IsLegacy(eraBoundary time.Time) bool {
	return c.ConfirmDate.Before(eraBoundary)
}
