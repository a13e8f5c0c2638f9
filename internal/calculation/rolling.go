package calculation

import (
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
)

// RollingParams are the per-contract constants of the monthly fold
type RollingParams struct {
	Spec            domain.VariantSpec
	TotalNetPremium decimal.Decimal
	TermDays        int
	CashFlowWeight  decimal.Decimal // share of the month's cash flow that earns interest
	InvestmentTotal decimal.Decimal
}

// StepInput is everything external that one month contributes to the fold
type StepInput struct {
	Month    string
	CashFlow domain.CashFlow
	Days     int
	Rate     decimal.Decimal
}

// Step advances the rolling state by one evaluation month. It is a pure function of the
// previous state and the month's inputs; the returned state becomes the next month's input.
func Step(p RollingParams, prev domain.RollingState, in StepInput) (domain.RollingState, domain.MonthResult) {
	next := prev
	next.MonthCounter = prev.MonthCounter + 1
	next.ServedDays = prev.ServedDays + in.Days
	ratio := ratioOf(next.ServedDays, p.TermDays)
	earnRatio := ratio
	if p.Spec.ExactServiceRatio {
		earnRatio = exactRatioOf(next.ServedDays, p.TermDays)
	}

	net := in.CashFlow.NetPremium(p.Spec)
	acq := in.CashFlow.Acquisition(p.Spec)
	rate := in.Rate

	interest := round(prev.OpeningBalance.Mul(rate)).
		Add(round(net.Mul(rate).Mul(p.CashFlowWeight))).
		Sub(round(acq.Mul(rate).Mul(p.CashFlowWeight)))
	next.CumInterest = prev.CumInterest.Add(interest)
	next.CumReceivedPremium = prev.CumReceivedPremium.Add(in.CashFlow.Premium)

	investment := decimal.Zero
	var cumRevenue decimal.Decimal
	earned := round(p.TotalNetPremium.Add(next.CumInterest).Mul(earnRatio))
	if p.Spec.InvestmentComponent {
		next.CumInvestment = round(p.InvestmentTotal.Mul(earnRatio))
		investment = next.CumInvestment.Sub(prev.CumInvestment)
		next.CumIncomeBeforeSplit = earned
		cumRevenue = earned.Sub(next.CumInvestment)
	} else {
		cumRevenue = earned
	}
	revenue := cumRevenue.Sub(prev.CumRevenue)
	next.CumRevenue = cumRevenue

	next.AmortizationBase = prev.AmortizationBase.Add(in.CashFlow.BaseIncrement(p.Spec))
	cumAmortization := round(next.AmortizationBase.Mul(earnRatio))
	amortization := cumAmortization.Sub(prev.CumAmortization)
	next.CumAmortization = cumAmortization

	closing := prev.OpeningBalance.
		Add(net).
		Sub(acq).
		Add(interest).
		Sub(revenue).
		Add(amortization).
		Sub(investment)
	next.OpeningBalance = closing

	return next, domain.MonthResult{
		Month:              in.Month,
		MonthCounter:       next.MonthCounter,
		ServedDays:         next.ServedDays,
		Ratio:              ratio,
		Rate:               rate,
		OpeningBalance:     prev.OpeningBalance,
		NetCashFlow:        net,
		AcquisitionCash:    acq,
		Interest:           interest,
		CumInterest:        next.CumInterest,
		Revenue:            revenue,
		CumRevenue:         next.CumRevenue,
		Amortization:       amortization,
		CumAmortization:    next.CumAmortization,
		AmortizationBase:   next.AmortizationBase,
		Investment:         investment,
		CumInvestment:      next.CumInvestment,
		CumReceivedPremium: next.CumReceivedPremium,
		ClosingBalance:     closing,
	}
}

// ServiceRatio returns the elapsed-service ratio of a state
func ServiceRatio(s domain.RollingState, termDays int) decimal.Decimal {
	return ratioOf(s.ServedDays, termDays)
}
