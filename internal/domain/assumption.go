package domain

import "github.com/shopspring/decimal"

// Assumption is one row of the actuarial assumption table
type Assumption struct {
	Month                   string          `yaml:"month" json:"month"`
	ClassCode               string          `yaml:"class_code" json:"class_code"`
	Method                  string          `yaml:"method" json:"method"`
	LossRatio               decimal.Decimal `yaml:"loss_ratio" json:"loss_ratio"`
	IndirectClaimsRatio     decimal.Decimal `yaml:"indirect_claims_ratio" json:"indirect_claims_ratio"`
	MaintenanceRatio        decimal.Decimal `yaml:"maintenance_ratio" json:"maintenance_ratio"`
	RiskAdjustmentRatio     decimal.Decimal `yaml:"ra_ratio" json:"ra_ratio"`
	AcquisitionExpenseRatio decimal.Decimal `yaml:"acquisition_expense_ratio" json:"acquisition_expense_ratio"`
	ClaimsRiskAdjustment    decimal.Decimal `yaml:"lic_ra_ratio" json:"lic_ra_ratio"`
}

// Usable reports whether the assumption can drive the onerous test
func (a *Assumption) Usable() bool {
	return a != nil && !a.LossRatio.IsZero()
}
