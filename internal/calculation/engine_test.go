package calculation

import (
	"context"
	"testing"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeasurementEngine(t *testing.T) {
	engine := NewMeasurementEngine(memory.New())

	assert.NotNil(t, engine, "Should create engine")
	assert.NotNil(t, engine.Source, "Should keep the source")
	assert.NotNil(t, engine.Logger, "Should initialize logger")
	assert.Equal(t, "202412", engine.Settings.CutoverMonth, "Should use default settings")
}

func TestMeasurementEngine_SetLogger(t *testing.T) {
	engine := NewMeasurementEngine(memory.New())

	customLogger := &TestLogger{}
	engine.SetLogger(customLogger)
	assert.Equal(t, customLogger, engine.Logger, "Should set custom logger")

	engine.SetLogger(nil)
	assert.NotNil(t, engine.Logger, "Should not be nil")
	assert.IsType(t, NopLogger{}, engine.Logger, "Should be no-op logger")
}

func TestMeasure_OnePointTwoMillionScenario(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStore())

	result, err := engine.Measure(context.Background(), scenarioKey, "202307")
	require.NoError(t, err)
	require.Len(t, result.Months, 2, "Should fold confirmation month and target month")

	first := result.Months[0]
	assert.Equal(t, "202306", first.Month)
	assert.Equal(t, 0, first.ServedDays, "Cover has not started in the confirmation month")
	assertDecimal(t, "1200000", first.ClosingBalance, "Confirmation month closing")

	last := result.Months[1]
	assert.Equal(t, 30, last.ServedDays, "Should serve 2023-07-02 through 2023-07-31")
	assertDecimal(t, "0.0821917808", last.Ratio, "Service ratio")
	assertDecimal(t, "98630.13696", last.Revenue, "Revenue")
	assertDecimal(t, "1101369.86304", last.ClosingBalance, "Closing")
	assertDecimal(t, "0", last.Interest, "Flat 0% curve accretes nothing")

	assertDecimal(t, "1101369.8630136986", result.LossTest.UnexpiredPremium, "Premium times 335/365 rounded once")
	assertDecimal(t, "550684.9315068493", result.LossTest.FutureClaims, "Future claims")
	assert.Equal(t, 11, result.LossTest.RemainingMonths)
	assertDecimal(t, "0", result.LossAmount, "Contract is not onerous")
	assertDecimal(t, "1101369.86304", result.LRCDebt, "Debt is closing plus loss")
	require.Len(t, result.Diagnostics, 1, "Only the month without cash flows is reported")
	assert.Equal(t, domain.KindMissingTimelineEntry, result.Diagnostics[0].Kind)
	assert.NotEmpty(t, result.RunID)
}

func TestMeasure_ClosingIdentity(t *testing.T) {
	engine := NewMeasurementEngine(accretingStore())
	key := domain.ContractKey{PolicyNo: "P-ACC"}

	result, err := engine.Measure(context.Background(), key, "202412")
	require.NoError(t, err)
	require.Len(t, result.Months, 12)

	prevClosing := decimal.Zero
	for _, m := range result.Months {
		assert.True(t, m.OpeningBalance.Equal(prevClosing), "%s opening should equal previous closing", m.Month)
		expected := m.OpeningBalance.
			Add(m.NetCashFlow).
			Sub(m.AcquisitionCash).
			Add(m.Interest).
			Sub(m.Revenue).
			Add(m.Amortization).
			Sub(m.Investment)
		assert.True(t, expected.Equal(m.ClosingBalance), "%s closing identity: %s != %s", m.Month, expected, m.ClosingBalance)
		assert.False(t, m.Interest.IsZero(), "%s should accrete interest on a 0.3%% curve", m.Month)
		prevClosing = m.ClosingBalance
	}
}

func TestMeasure_CumulativesAreMonotonic(t *testing.T) {
	engine := NewMeasurementEngine(accretingStore())

	result, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "P-ACC"}, "202412")
	require.NoError(t, err)

	for i := 1; i < len(result.Months); i++ {
		prev, cur := result.Months[i-1], result.Months[i]
		assert.True(t, cur.Ratio.GreaterThanOrEqual(prev.Ratio), "%s ratio should not decrease", cur.Month)
		assert.True(t, cur.CumRevenue.GreaterThanOrEqual(prev.CumRevenue), "%s cumulative revenue should not decrease", cur.Month)
		assert.True(t, cur.CumAmortization.GreaterThanOrEqual(prev.CumAmortization), "%s cumulative amortization should not decrease", cur.Month)
	}
}

func TestMeasure_Deterministic(t *testing.T) {
	engine := NewMeasurementEngine(accretingStore())
	key := domain.ContractKey{PolicyNo: "P-ACC"}

	first, err := engine.Measure(context.Background(), key, "202412")
	require.NoError(t, err)
	second, err := engine.Measure(context.Background(), key, "202412")
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID, "Run ids should be unique")
	first.RunID, second.RunID = "", ""
	assert.Equal(t, first, second, "Identical inputs should give identical results")
}

func TestMeasure_MissingContract(t *testing.T) {
	engine := NewMeasurementEngine(memory.New())

	result, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "nope"}, "202401")

	assert.Nil(t, result, "Should return no partial result")
	assert.True(t, domain.IsKind(err, domain.KindMissingContract), "Should report missing contract")
}

func TestMeasure_EndorsementNullEquivalence(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStore())

	for _, endorsement := range []string{"", "NA", "n/a", " NULL ", "None"} {
		key := domain.ContractKey{PolicyNo: scenarioKey.PolicyNo, EndorsementNo: endorsement}
		result, err := engine.Measure(context.Background(), key, "202307")
		require.NoError(t, err, "endorsement %q should resolve to the base policy", endorsement)
		assert.Equal(t, "", result.Contract.EndorsementNo)
	}
}

func TestMeasure_TargetBeforeStart(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStore())

	result, err := engine.Measure(context.Background(), scenarioKey, "202305")

	assert.Nil(t, result)
	assert.True(t, domain.IsKind(err, domain.KindInvalidDateOrdering), "Should reject a target before the start month")
}

func TestMeasure_InvalidTargetMonth(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStore())

	_, err := engine.Measure(context.Background(), scenarioKey, "2023-07")

	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestMeasure_MissingRateMatchesExplicitZero(t *testing.T) {
	key := domain.ContractKey{PolicyNo: "P-ACC"}

	// term 5 of the locked curve is an explicit zero in one store and absent in the other
	explicit := flatCurve("202401", 36, "0.003")
	explicit[4].Rate = decimal.Zero
	gap := append(append([]domain.CurvePoint{}, explicit[:4]...), explicit[5:]...)

	measure := func(locked []domain.CurvePoint) *domain.MeasurementResult {
		s := accretingStoreWithLockedCurve(locked)
		result, err := NewMeasurementEngine(s).Measure(context.Background(), key, "202412")
		require.NoError(t, err)
		return result
	}
	a := measure(explicit)
	b := measure(gap)

	require.Len(t, b.Months, len(a.Months))
	for i := range a.Months {
		assert.Equal(t, a.Months[i].ClosingBalance.String(), b.Months[i].ClosingBalance.String(), "%s closing", a.Months[i].Month)
		assert.Equal(t, a.Months[i].Interest.String(), b.Months[i].Interest.String(), "%s interest", a.Months[i].Month)
		assert.Equal(t, a.Months[i].Revenue.String(), b.Months[i].Revenue.String(), "%s revenue", a.Months[i].Month)
	}
	assertDecimal(t, "0", b.Months[4].Interest, "Term 5 accretes nothing")
	assert.Equal(t, a.LossAmount.String(), b.LossAmount.String())
	assert.Equal(t, 0, a.Diagnostics.Count(domain.KindMissingRate))
	require.Equal(t, 1, b.Diagnostics.Count(domain.KindMissingRate), "Missing terms should be reported once per run")
	assert.Contains(t, b.Diagnostics.Filter(domain.KindMissingRate)[0].Message, "terms 5,")
}

func TestMeasure_AssumptionFallsBackToPreviousMonth(t *testing.T) {
	s := accretingStore()
	s.PutAssumption(domain.Assumption{Month: "202501", ClassCode: "B", Method: "8", LossRatio: decimal.Zero})
	s.AddCurvePoints(flatCurve("202501", 36, "0.0025")...)
	logger := &TestLogger{}
	engine := NewMeasurementEngine(s)
	engine.SetLogger(logger)

	// 202501 has a zero loss ratio, so the 202412 assumption is used
	result, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "P-ACC"}, "202501")
	require.NoError(t, err)
	assert.Equal(t, "202412", result.LossTest.AssumptionMonth, "Should fall back one month")
	assert.Contains(t, logger.messages, "WARN: assumption %s/%s missing or zero loss ratio, falling back to %s")
}

func TestMeasure_MissingAssumptionIsFatal(t *testing.T) {
	s := scenarioStore()
	engine := NewMeasurementEngine(s)

	// no assumption for 202309 or 202308
	s.AddCurvePoints(flatCurve("202309", 36, "0")...)
	result, err := engine.Measure(context.Background(), scenarioKey, "202309")

	assert.Nil(t, result, "Should return no partial result")
	assert.True(t, domain.IsKind(err, domain.KindMissingAssumption))
}

func TestMeasure_LegacyAcquisitionCost(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStoreWithAcquisition("0.1"))

	result, err := engine.Measure(context.Background(), scenarioKey, "202307")
	require.NoError(t, err)

	assertDecimal(t, "120000", result.Months[0].AcquisitionCash, "Legacy cost booked at confirmation")
	assertDecimal(t, "120000", result.Months[1].AmortizationBase, "Legacy cost joins the amortization base")
	assertDecimal(t, "9863.013696", result.Months[1].CumAmortization, "Amortized by the service ratio")
}

func TestMeasure_LegacyWithoutAssumptionIsFatal(t *testing.T) {
	s := memory.New()
	key := domain.ContractKey{PolicyNo: "OLD"}
	s.PutContract(domain.Contract{
		Key:         key,
		ClassCode:   "Z",
		Premium:     dec("1000"),
		ConfirmDate: date(2022, 3, 1),
		StartDate:   date(2022, 3, 1),
		EndDate:     date(2023, 2, 28),
	})
	engine := NewMeasurementEngine(s)

	_, err := engine.Measure(context.Background(), key, "202203")

	assert.True(t, domain.IsKind(err, domain.KindMissingAssumption))
}

func outwardStore() *memory.Store {
	s := scenarioStore()
	s.PutContract(domain.Contract{
		Key:             domain.ContractKey{PolicyNo: "R-1", EndorsementNo: "E1"},
		Variant:         domain.VariantOutward,
		ClassCode:       "A",
		Premium:         dec("600000"),
		Commission:      dec("60000"),
		ConfirmDate:     date(2023, 6, 15),
		StartDate:       date(2023, 7, 2),
		EndDate:         date(2024, 6, 30),
		TermDays:        365,
		UnderwriteDate:  date(2023, 5, 1),
		EndorsementDate: date(2023, 7, 20),
		InvestmentRatio: dec("0.1"),
		ShareRate:       dec("0.5"),
		Underlying:      scenarioKey,
	})
	s.AddCashFlows(domain.ContractKey{PolicyNo: "R-1", EndorsementNo: "E1"},
		domain.CashFlowRow{Month: "202307", Type: domain.FlowPremium, Amount: dec("600000")},
		domain.CashFlowRow{Month: "202307", Type: domain.FlowCommission, Amount: dec("60000")},
	)
	return s
}

func TestMeasure_OutwardStartsAtSignMonth(t *testing.T) {
	s := outwardStore()
	s.PutUnderlyingLoss(scenarioKey, "202307", dec("1000"))
	engine := NewMeasurementEngine(s)

	result, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "R-1", EndorsementNo: "E1"}, "202307")
	require.NoError(t, err)

	assert.Equal(t, "202307", result.StartMonth, "Endorsement write month is later than confirmation")
	require.Len(t, result.Months, 1)
	m := result.Months[0]
	assert.Equal(t, 30, m.ServedDays, "Counts from coverage start")
	assertDecimal(t, "540000", m.NetCashFlow, "Net of commission")
	assertDecimal(t, "0", m.AcquisitionCash, "Ceded business has no acquisition cost")
	assertDecimal(t, "0.0821917808", m.Ratio, "Reported ratio is rounded")
	assertDecimal(t, "4931.5068493151", m.CumInvestment, "Investment component earned on the unrounded ratio")
	assertDecimal(t, "39452.0547945205", m.CumRevenue, "Revenue excludes the investment component")

	assert.True(t, result.LossTest.FromUnderlying)
	assertDecimal(t, "500", result.LossAmount, "Underlying loss times share")
}

func TestMeasure_OutwardWithoutUnderlyingLoss(t *testing.T) {
	engine := NewMeasurementEngine(outwardStore())

	result, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "R-1", EndorsementNo: "E1"}, "202307")
	require.NoError(t, err)

	assertDecimal(t, "0", result.LossAmount, "Missing underlying loss counts as zero")
	assert.Equal(t, 1, result.Diagnostics.Count(domain.KindMissingUnderlying))
}

func TestMeasure_OutwardSignedAfterTarget(t *testing.T) {
	engine := NewMeasurementEngine(outwardStore())

	_, err := engine.Measure(context.Background(), domain.ContractKey{PolicyNo: "R-1", EndorsementNo: "E1"}, "202306")

	assert.True(t, domain.IsKind(err, domain.KindInvalidDateOrdering))
}

func TestMeasure_OutwardWithoutSignDate(t *testing.T) {
	s := outwardStore()
	key := domain.ContractKey{PolicyNo: "R-2"}
	s.PutContract(domain.Contract{
		Key:         key,
		Variant:     domain.VariantOutward,
		ClassCode:   "A",
		Premium:     dec("1000"),
		ConfirmDate: date(2023, 6, 15),
		StartDate:   date(2023, 7, 2),
		EndDate:     date(2024, 6, 30),
		ShareRate:   dec("0.5"),
		Underlying:  scenarioKey,
	})
	engine := NewMeasurementEngine(s)

	result, err := engine.Measure(context.Background(), key, "202307")

	assert.Nil(t, result, "No partial result")
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput), "got %v", err)
}

func TestMeasure_SavesResult(t *testing.T) {
	s := scenarioStore()
	engine := NewMeasurementEngine(s)
	engine.Results = s

	_, err := engine.Measure(context.Background(), scenarioKey, "202307")
	require.NoError(t, err)

	loss, err := s.UnderlyingLoss(context.Background(), scenarioKey, "202307")
	require.NoError(t, err, "Saved loss should be readable as an underlying loss")
	assert.True(t, loss.IsZero())
}

func TestMeasure_CancelledContext(t *testing.T) {
	engine := NewMeasurementEngine(scenarioStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Measure(ctx, scenarioKey, "202307")

	assert.ErrorIs(t, err, context.Canceled)
}
