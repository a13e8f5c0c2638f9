package domain

import "github.com/shopspring/decimal"

// Portfolio is a self-contained set of source tables, as loaded from a portfolio file
type Portfolio struct {
	Contracts        []Contract           `yaml:"contracts" json:"contracts"`
	CashFlows        []ContractCashFlow   `yaml:"cash_flows" json:"cash_flows"`
	Assumptions      []Assumption         `yaml:"assumptions" json:"assumptions"`
	Curves           []CurvePoint         `yaml:"curves" json:"curves"`
	Patterns         []Pattern            `yaml:"patterns" json:"patterns"`
	Cohorts          []MonthCohort        `yaml:"cohorts" json:"cohorts"`
	Snapshots        []CohortSnapshot     `yaml:"snapshots" json:"snapshots"`
	UnderlyingLosses []UnderlyingLossItem `yaml:"underlying_losses" json:"underlying_losses"`
}

// ContractCashFlow is a cash-flow row tagged with its contract
type ContractCashFlow struct {
	Key         ContractKey `yaml:",inline" json:"key"`
	CashFlowRow `yaml:",inline"`
}

// MonthCohort is a claim cohort tagged with its evaluation month
type MonthCohort struct {
	Month       string `yaml:"month" json:"month"`
	ClaimCohort `yaml:",inline"`
}

// UnderlyingLossItem is a loss recorded upstream for a contract and month
type UnderlyingLossItem struct {
	Key    ContractKey     `yaml:",inline" json:"key"`
	Month  string          `yaml:"month" json:"month"`
	Amount decimal.Decimal `yaml:"amount" json:"amount"`
}

// ContractKeys returns the keys of every contract in load order
func (p *Portfolio) ContractKeys() []ContractKey {
	keys := make([]ContractKey, 0, len(p.Contracts))
	for _, c := range p.Contracts {
		keys = append(keys, c.Key.Normalize())
	}
	return keys
}
