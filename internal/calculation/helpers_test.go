package calculation

import (
	"testing"
	"time"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// TestLogger captures log lines for assertions
type TestLogger struct {
	messages []string
}

func (tl *TestLogger) Debugf(format string, args ...interface{}) {
	tl.messages = append(tl.messages, "DEBUG: "+format)
}

func (tl *TestLogger) Infof(format string, args ...interface{}) {
	tl.messages = append(tl.messages, "INFO: "+format)
}

func (tl *TestLogger) Warnf(format string, args ...interface{}) {
	tl.messages = append(tl.messages, "WARN: "+format)
}

func (tl *TestLogger) Errorf(format string, args ...interface{}) {
	tl.messages = append(tl.messages, "ERROR: "+format)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "%s: expected %s, got %s", msg, expected, actual.String())
}

// flatCurve publishes terms 1..n at a single rate
func flatCurve(month string, n int, rate string) []domain.CurvePoint {
	points := make([]domain.CurvePoint, 0, n)
	for term := 1; term <= n; term++ {
		points = append(points, domain.CurvePoint{Month: month, Term: term, Rate: dec(rate)})
	}
	return points
}

// rateMap is a RateSource backed by a map
type rateMap map[int]decimal.Decimal

func (r rateMap) Rate(term int) (decimal.Decimal, bool) {
	v, ok := r[term]
	return v, ok
}

var scenarioKey = domain.ContractKey{PolicyNo: "P-1200"}

// scenarioStore holds a direct contract of 1,200,000 confirmed 2023-06 with cover from 2023-07-02
// for 365 days, zero acquisition cost and flat 0% curves.
func scenarioStore() *memory.Store {
	return scenarioStoreWithAcquisition("0")
}

// scenarioStoreWithAcquisition sets the legacy acquisition expense ratio of the confirmation month
func scenarioStoreWithAcquisition(ratio string) *memory.Store {
	s := memory.New()
	s.PutContract(domain.Contract{
		Key:         scenarioKey,
		Variant:     domain.VariantDirect,
		ClassCode:   "A",
		Premium:     dec("1200000"),
		ConfirmDate: date(2023, 6, 15),
		StartDate:   date(2023, 7, 2),
		EndDate:     date(2024, 6, 30),
		TermDays:    365,
	})
	s.AddCashFlows(scenarioKey, domain.CashFlowRow{Month: "202306", Type: domain.FlowPremium, Amount: dec("1200000")})
	for _, m := range []string{"202306", "202307"} {
		s.PutAssumption(domain.Assumption{
			Month:                   m,
			ClassCode:               "A",
			Method:                  "8",
			LossRatio:               dec("0.5"),
			AcquisitionExpenseRatio: dec(ratio),
		})
		s.AddCurvePoints(flatCurve(m, 36, "0")...)
	}
	s.PutPattern(domain.Pattern{ClassCode: "A", Ratios: []decimal.Decimal{dec("1")}})
	return s
}

// accretingStore holds a direct contract measured over a year with a non-zero locked curve,
// acquisition costs and monthly premium instalments.
func accretingStore() *memory.Store {
	return accretingStoreWithLockedCurve(flatCurve("202401", 36, "0.003"))
}

func accretingStoreWithLockedCurve(locked []domain.CurvePoint) *memory.Store {
	s := memory.New()
	key := domain.ContractKey{PolicyNo: "P-ACC", EndorsementNo: "NA"}
	s.PutContract(domain.Contract{
		Key:         key,
		Variant:     domain.VariantDirect,
		ClassCode:   "B",
		Premium:     dec("120000"),
		ConfirmDate: date(2024, 1, 10),
		StartDate:   date(2024, 1, 10),
		EndDate:     date(2025, 1, 9),
	})
	for i := 0; i < 12; i++ {
		month := dateKey(2024, time.Month(i+1))
		s.AddCashFlows(key,
			domain.CashFlowRow{Month: month, Type: domain.FlowPremium, Amount: dec("10000")},
			domain.CashFlowRow{Month: month, Type: domain.FlowAcqFollow, Amount: dec("250")},
		)
	}
	s.AddCurvePoints(locked...)
	s.AddCurvePoints(flatCurve("202412", 36, "0.0025")...)
	s.PutAssumption(domain.Assumption{
		Month:               "202412",
		ClassCode:           "B",
		Method:              "8",
		LossRatio:           dec("0.7"),
		IndirectClaimsRatio: dec("0.05"),
		MaintenanceRatio:    dec("0.03"),
		RiskAdjustmentRatio: dec("0.02"),
	})
	s.PutPattern(domain.Pattern{ClassCode: "B", Ratios: []decimal.Decimal{dec("0.6"), dec("0.3"), dec("0.1")}})
	return s
}

func dateKey(y int, m time.Month) string {
	return date(y, m, 1).Format("200601")
}
