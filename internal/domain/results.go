package domain

import "github.com/shopspring/decimal"

// RollingState is the carried state of the monthly fold. Steps return a new value; nothing mutates in place.
type RollingState struct {
	MonthCounter         int             `json:"month_counter"`
	OpeningBalance       decimal.Decimal `json:"opening_balance"`
	CumRevenue           decimal.Decimal `json:"cum_revenue"`
	CumAmortization      decimal.Decimal `json:"cum_amortization"`
	CumInterest          decimal.Decimal `json:"cum_interest"`
	CumReceivedPremium   decimal.Decimal `json:"cum_received_premium"`
	ServedDays           int             `json:"served_days"`
	AmortizationBase     decimal.Decimal `json:"amortization_base"`
	CumInvestment        decimal.Decimal `json:"cum_investment"`
	CumIncomeBeforeSplit decimal.Decimal `json:"cum_income_before_split"`
}

// MonthResult is the measurement of one evaluation month
type MonthResult struct {
	Month              string          `json:"month"`
	MonthCounter       int             `json:"month_counter"`
	ServedDays         int             `json:"served_days"`
	Ratio              decimal.Decimal `json:"ratio"`
	Rate               decimal.Decimal `json:"rate"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	NetCashFlow        decimal.Decimal `json:"net_cash_flow"`
	AcquisitionCash    decimal.Decimal `json:"acquisition_cash_flow"`
	Interest           decimal.Decimal `json:"interest"`
	CumInterest        decimal.Decimal `json:"cum_interest"`
	Revenue            decimal.Decimal `json:"revenue"`
	CumRevenue         decimal.Decimal `json:"cum_revenue"`
	Amortization       decimal.Decimal `json:"amortization"`
	CumAmortization    decimal.Decimal `json:"cum_amortization"`
	AmortizationBase   decimal.Decimal `json:"amortization_base"`
	Investment         decimal.Decimal `json:"investment,omitempty"`
	CumInvestment      decimal.Decimal `json:"cum_investment,omitempty"`
	CumReceivedPremium decimal.Decimal `json:"cum_received_premium"`
	ClosingBalance     decimal.Decimal `json:"closing_balance"`
}

// WorkRow is one line of a discounting work table
type WorkRow struct {
	Month          string          `json:"month"`
	Term           int             `json:"term"`
	CashFlow       decimal.Decimal `json:"cash_flow"`
	Rate           decimal.Decimal `json:"rate"`
	DiscountFactor decimal.Decimal `json:"discount_factor"`
	PresentValue   decimal.Decimal `json:"present_value"`
}

// LossTestResult is the outcome of the onerous contract test at the target month
type LossTestResult struct {
	AssumptionMonth   string          `json:"assumption_month"`
	FutureRatio       decimal.Decimal `json:"future_ratio"`
	UnexpiredPremium  decimal.Decimal `json:"unexpired_premium"`
	FutureReceivable  decimal.Decimal `json:"future_receivable"`
	FutureClaims      decimal.Decimal `json:"future_claims"`
	FutureMaintenance decimal.Decimal `json:"future_maintenance"`
	RemainingMonths   int             `json:"remaining_months"`
	PVClaims          decimal.Decimal `json:"pv_claims"`
	PVMaintenance     decimal.Decimal `json:"pv_maintenance"`
	RiskAdjustment    decimal.Decimal `json:"risk_adjustment"`
	FutureCashFlow    decimal.Decimal `json:"future_cash_flow"`
	LossAmount        decimal.Decimal `json:"loss_amount"`
	ClaimsTable       []WorkRow       `json:"claims_table,omitempty"`
	MaintenanceTable  []WorkRow       `json:"maintenance_table,omitempty"`
	FromUnderlying    bool            `json:"from_underlying,omitempty"`
	UnderlyingLoss    decimal.Decimal `json:"underlying_loss,omitempty"`
}

// MeasurementResult is the complete output of one contract run
type MeasurementResult struct {
	RunID       string          `json:"run_id"`
	Contract    ContractKey     `json:"contract"`
	Variant     Variant         `json:"variant"`
	TargetMonth string          `json:"target_month"`
	StartMonth  string          `json:"start_month"`
	Months      []MonthResult   `json:"months"`
	LossTest    LossTestResult  `json:"loss_test"`
	Closing     decimal.Decimal `json:"closing_balance"`
	LossAmount  decimal.Decimal `json:"loss_amount"`
	LRCDebt     decimal.Decimal `json:"lrc_debt"`
	Diagnostics Diagnostics     `json:"diagnostics,omitempty"`
}

// Final returns the last month's result
func (r *MeasurementResult) Final() (MonthResult, bool) {
	if len(r.Months) == 0 {
		return MonthResult{}, false
	}
	return r.Months[len(r.Months)-1], true
}
