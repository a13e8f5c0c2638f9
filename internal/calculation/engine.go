package calculation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// MeasurementEngine orchestrates a contract measurement run: timeline, monthly fold and loss test
type MeasurementEngine struct {
	Source   store.Source
	Results  store.ResultWriter // optional
	Settings domain.Settings
	Logger   Logger
}

// NewMeasurementEngine creates an engine over the given source with default settings
func NewMeasurementEngine(source store.Source) *MeasurementEngine {
	return &MeasurementEngine{
		Source:   source,
		Settings: domain.DefaultSettings(),
		Logger:   NopLogger{},
	}
}

// NewMeasurementEngineWithSettings creates an engine with explicit settings
func NewMeasurementEngineWithSettings(source store.Source, settings domain.Settings) *MeasurementEngine {
	e := NewMeasurementEngine(source)
	e.Settings = settings
	return e
}

// SetLogger sets the logger; nil restores the no-op logger
func (e *MeasurementEngine) SetLogger(l Logger) {
	if l == nil {
		e.Logger = NopLogger{}
		return
	}
	e.Logger = l
}

// Measure loads a contract and measures it through the target month
func (e *MeasurementEngine) Measure(ctx context.Context, key domain.ContractKey, targetMonth string) (*domain.MeasurementResult, error) {
	key = key.Normalize()
	contract, err := e.Source.Contract(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewMeasurementError(domain.KindMissingContract, key.String(), "contract not found", err)
		}
		return nil, fmt.Errorf("failed to load contract %s: %w", key, err)
	}
	return e.MeasureContract(ctx, contract, targetMonth)
}

// MeasureContract measures an already-loaded contract through the target month. It returns either
// a complete result with diagnostics or a single error; partial results are never returned.
func (e *MeasurementEngine) MeasureContract(ctx context.Context, contract domain.Contract, targetMonth string) (*domain.MeasurementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contract.Key = contract.Key.Normalize()
	key := contract.Key.String()
	rec := newRecorder(e.Logger, key)

	if !dateutil.ValidMonth(targetMonth) {
		return nil, domain.NewMeasurementError(domain.KindInvalidInput, key, "invalid target month "+targetMonth, nil)
	}
	spec, ok := domain.SpecFor(contract.Variant)
	if !ok {
		return nil, domain.NewMeasurementError(domain.KindInvalidInput, key, "unknown variant "+string(contract.Variant), nil)
	}
	if contract.ConfirmDate.IsZero() {
		return nil, domain.NewMeasurementError(domain.KindInvalidInput, key, "missing confirmation date", nil)
	}

	confirmMonth := dateutil.MonthKey(contract.ConfirmDate)
	startMonth, err := e.startMonth(&contract, spec)
	if err != nil {
		return nil, err
	}
	if startMonth > targetMonth {
		return nil, domain.NewMeasurementError(domain.KindInvalidDateOrdering, key,
			fmt.Sprintf("start month %s is after target month %s", startMonth, targetMonth), nil)
	}
	e.Logger.Infof("measuring %s (%s) from %s through %s", key, spec.Variant, startMonth, targetMonth)

	rows, err := e.Source.CashFlows(ctx, contract.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load cash flows for %s: %w", key, err)
	}

	method := e.Settings.MethodFor(spec.Variant)
	lookup := func(month, classCode string) (domain.Assumption, bool) {
		a, err := e.Source.Assumption(ctx, month, classCode, method)
		return a, err == nil
	}
	timeline, err := BuildTimeline(&contract, spec, rows, TimelineOptions{
		StartMonth:   startMonth,
		CutoverMonth: e.Settings.CutoverMonth,
		EraBoundary:  e.Settings.EraBoundary,
	}, lookup, rec)
	if err != nil {
		return nil, err
	}

	locked, err := curve(ctx, e.Source, e.Logger, confirmMonth)
	if err != nil {
		return nil, err
	}

	months, err := dateutil.MonthRange(startMonth, targetMonth)
	if err != nil {
		return nil, domain.NewMeasurementError(domain.KindInvalidInput, key, "bad month range", err)
	}

	params := RollingParams{
		Spec:            spec,
		TotalNetPremium: contract.NetPremium(spec),
		TermDays:        contract.Term(),
		CashFlowWeight:  e.Settings.InterestCashFlowWeight,
	}
	if spec.InvestmentComponent {
		params.InvestmentTotal = round(contract.Premium.Mul(contract.InvestmentRatio))
	}

	state := domain.RollingState{}
	results := make([]domain.MonthResult, 0, len(months))
	var missingEntries []string
	var missingTerms []int
	for i, month := range months {
		cf, ok := timeline.Get(month)
		if !ok {
			missingEntries = append(missingEntries, month)
		}
		term := e.termIndex(confirmMonth, month)
		rate, ok := locked.Rate(term)
		if !ok {
			rate = decimal.Zero
			missingTerms = append(missingTerms, term)
		}
		in := StepInput{
			Month:    month,
			CashFlow: cf,
			Days:     servedDays(&contract, spec, month, i == 0),
			Rate:     rate,
		}
		var mr domain.MonthResult
		state, mr = Step(params, state, in)
		results = append(results, mr)
	}
	if len(missingTerms) > 0 {
		rec.note(domain.KindMissingRate, targetMonth, "locked curve %s missing terms %s, treated as 0",
			confirmMonth, formatTerms(missingTerms))
	}
	if len(missingEntries) > 0 {
		rec.note(domain.KindMissingTimelineEntry, "", "no cash-flow bucket for %d month(s) %s..%s, treated as zero",
			len(missingEntries), missingEntries[0], missingEntries[len(missingEntries)-1])
	}

	final := results[len(results)-1]
	loss, err := e.lossTest(ctx, &contract, spec, state, final, targetMonth, method, rec)
	if err != nil {
		return nil, err
	}

	result := &domain.MeasurementResult{
		RunID:       uuid.New().String(),
		Contract:    contract.Key,
		Variant:     spec.Variant,
		TargetMonth: targetMonth,
		StartMonth:  startMonth,
		Months:      results,
		LossTest:    loss,
		Closing:     final.ClosingBalance,
		LossAmount:  loss.LossAmount,
		LRCDebt:     final.ClosingBalance.Add(loss.LossAmount),
		Diagnostics: rec.diagnostics(),
	}

	if e.Results != nil {
		if err := e.Results.SaveMeasurement(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to save result for %s: %w", key, err)
		}
	}
	e.Logger.Debugf("%s closing %s loss %s diagnostics %d", key, result.Closing.StringFixed(2),
		result.LossAmount.StringFixed(2), len(result.Diagnostics))
	return result, nil
}

// startMonth is the confirmation month, or for ceded business the later of the sign and confirmation months.
// Ceded business without a sign date cannot be placed.
func (e *MeasurementEngine) startMonth(c *domain.Contract, spec domain.VariantSpec) (string, error) {
	confirm := dateutil.MonthKey(c.ConfirmDate)
	if spec.Variant != domain.VariantOutward {
		return confirm, nil
	}
	sign := c.SignDate()
	if sign.IsZero() {
		return "", domain.NewMeasurementError(domain.KindInvalidInput, c.Key.String(),
			"ceded contract has neither an underwrite nor an endorsement write date", nil)
	}
	return dateutil.MaxMonth(dateutil.MonthKey(sign), confirm), nil
}

// termIndex is the 1-based position of month on the curve locked at confirmation
func (e *MeasurementEngine) termIndex(confirmMonth, month string) int {
	n, err := dateutil.MonthKeysBetween(confirmMonth, month)
	if err != nil {
		return 0
	}
	return n + 1
}

// curve loads a curve; a missing curve is an empty one and every lookup on it is reported as a missing rate
func curve(ctx context.Context, src store.CurveRepository, logger Logger, month string) (domain.Curve, error) {
	c, err := src.Curve(ctx, month)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warnf("no discount curve published for %s", month)
			return domain.NewCurve(month, nil), nil
		}
		return domain.Curve{}, fmt.Errorf("failed to load curve %s: %w", month, err)
	}
	return c, nil
}

// lossTest runs the onerous test, or references the underlying loss for ceded business
func (e *MeasurementEngine) lossTest(
	ctx context.Context,
	c *domain.Contract,
	spec domain.VariantSpec,
	state domain.RollingState,
	final domain.MonthResult,
	targetMonth, method string,
	rec *recorder,
) (domain.LossTestResult, error) {
	if spec.LossMode == domain.LossModeUnderlying {
		underlying, err := e.Source.UnderlyingLoss(ctx, c.Underlying, targetMonth)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return domain.LossTestResult{}, fmt.Errorf("failed to load underlying loss: %w", err)
			}
			rec.note(domain.KindMissingUnderlying, targetMonth, "no underlying loss for %s, loss set to 0", c.Underlying)
			underlying = decimal.Zero
		}
		return UnderlyingLoss(underlying, c.ShareRate), nil
	}

	assumption, assumptionMonth, err := e.lossAssumption(ctx, c.ClassCode, targetMonth, method)
	if err != nil {
		return domain.LossTestResult{}, err
	}

	var ratios []decimal.Decimal
	pattern, err := e.Source.Pattern(ctx, c.ClassCode)
	switch {
	case err == nil:
		ratios = pattern.Ratios
	case errors.Is(err, store.ErrNotFound):
		rec.note(domain.KindMissingPattern, targetMonth, "no claim pattern for class %s, claim cash flows are zero", c.ClassCode)
	default:
		return domain.LossTestResult{}, fmt.Errorf("failed to load pattern %s: %w", c.ClassCode, err)
	}

	current, err := curve(ctx, e.Source, e.Logger, targetMonth)
	if err != nil {
		return domain.LossTestResult{}, err
	}

	remaining := 0
	if !c.EndDate.IsZero() {
		end := dateutil.MonthKey(c.EndDate)
		if n, err := dateutil.MonthKeysBetween(targetMonth, end); err == nil && n > 0 {
			remaining = n
		}
	}

	return OnerousTest(OnerousInput{
		ValMonth:        targetMonth,
		Premium:         c.Premium,
		Closing:         final.ClosingBalance,
		CumReceived:     state.CumReceivedPremium,
		ServedDays:      final.ServedDays,
		TermDays:        c.Term(),
		RemainingMonths: remaining,
		Assumption:      assumption,
		AssumptionMonth: assumptionMonth,
		Pattern:         ratios,
		Curve:           current,
	}, rec), nil
}

// lossAssumption reads the target month's assumption, falling back to the previous month when it is
// missing or carries a zero loss ratio. The fallback is a compatibility shim and is logged.
func (e *MeasurementEngine) lossAssumption(ctx context.Context, classCode, month, method string) (domain.Assumption, string, error) {
	a, err := e.Source.Assumption(ctx, month, classCode, method)
	if err == nil && a.Usable() {
		return a, month, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Assumption{}, "", fmt.Errorf("failed to load assumption %s/%s: %w", month, classCode, err)
	}

	prev := dateutil.PrevMonth(month)
	e.Logger.Warnf("assumption %s/%s missing or zero loss ratio, falling back to %s", month, classCode, prev)
	a, err = e.Source.Assumption(ctx, prev, classCode, method)
	if err == nil && a.Usable() {
		return a, prev, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Assumption{}, "", fmt.Errorf("failed to load assumption %s/%s: %w", prev, classCode, err)
	}
	return domain.Assumption{}, "", domain.NewMeasurementError(domain.KindMissingAssumption,
		month+"/"+classCode, "no usable assumption in "+month+" or "+prev, nil)
}

// servedDays counts the coverage days the month contributes. Variants that count from coverage
// start take every day before the first month into the first month.
func servedDays(c *domain.Contract, spec domain.VariantSpec, month string, first bool) int {
	t, err := dateutil.ParseMonth(month)
	if err != nil || c.StartDate.IsZero() || c.EndDate.IsZero() {
		return 0
	}
	if first && spec.DaysFromCoverageStart {
		end := dateutil.MonthEnd(t)
		if c.EndDate.Before(end) {
			end = c.EndDate
		}
		return dateutil.DaysInclusive(c.StartDate, end)
	}
	return dateutil.OverlapDays(t, c.StartDate, c.EndDate)
}
