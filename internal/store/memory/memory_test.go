package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ContractNullEndorsement(t *testing.T) {
	s := New()
	s.PutContract(domain.Contract{Key: domain.ContractKey{PolicyNo: "P1", EndorsementNo: "N/A"}, ClassCode: "A"})

	for _, e := range []string{"", "NA", "null", " NONE "} {
		c, err := s.Contract(context.Background(), domain.ContractKey{PolicyNo: "P1", EndorsementNo: e})
		require.NoError(t, err, "endorsement %q", e)
		assert.Equal(t, "A", c.ClassCode)
	}

	_, err := s.Contract(context.Background(), domain.ContractKey{PolicyNo: "P2"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ContractKeysKeepLoadOrder(t *testing.T) {
	s := New()
	s.PutContract(domain.Contract{Key: domain.ContractKey{PolicyNo: "B"}})
	s.PutContract(domain.Contract{Key: domain.ContractKey{PolicyNo: "A"}})
	s.PutContract(domain.Contract{Key: domain.ContractKey{PolicyNo: "B"}, ClassCode: "X"})

	keys, err := s.ContractKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ContractKey{{PolicyNo: "B"}, {PolicyNo: "A"}}, keys)
}

func TestStore_CurveFirstOccurrenceWins(t *testing.T) {
	s := New()
	s.AddCurvePoints(
		domain.CurvePoint{Month: "202401", Term: 1, Rate: decimal.RequireFromString("0.01")},
		domain.CurvePoint{Month: "202401", Term: 1, Rate: decimal.RequireFromString("0.09")},
	)

	c, err := s.Curve(context.Background(), "202401")
	require.NoError(t, err)
	r, ok := c.Rate(1)
	require.True(t, ok)
	assert.Equal(t, "0.01", r.String())

	_, err = s.Curve(context.Background(), "202402")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_AssumptionFirstRowWins(t *testing.T) {
	s := New()
	s.PutAssumption(domain.Assumption{Month: "202401", ClassCode: "A", Method: "8", LossRatio: decimal.RequireFromString("0.6")})
	s.PutAssumption(domain.Assumption{Month: "202401", ClassCode: "A", Method: "8", LossRatio: decimal.RequireFromString("0.9")})

	a, err := s.Assumption(context.Background(), "202401", "A", "8")
	require.NoError(t, err)
	assert.Equal(t, "0.6", a.LossRatio.String())

	_, err = s.Assumption(context.Background(), "202401", "A", "11")
	assert.ErrorIs(t, err, store.ErrNotFound, "Method is part of the key")
}

func TestStore_SaveMeasurementFeedsUnderlyingLoss(t *testing.T) {
	s := New()
	key := domain.ContractKey{PolicyNo: "P1"}

	_, err := s.UnderlyingLoss(context.Background(), key, "202401")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveMeasurement(context.Background(), &domain.MeasurementResult{
		Contract:    key,
		TargetMonth: "202401",
		LossAmount:  decimal.NewFromInt(42),
	}))
	loss, err := s.UnderlyingLoss(context.Background(), domain.ContractKey{PolicyNo: "P1", EndorsementNo: "NULL"}, "202401")
	require.NoError(t, err)
	assert.Equal(t, "42", loss.String())
}

func TestStore_SnapshotsSortedByCohort(t *testing.T) {
	s := New()
	require.NoError(t, s.SaveSnapshots(context.Background(), []domain.CohortSnapshot{
		{Key: domain.CohortKey{AccidentMonth: "202402", ClassCode: "B"}, Month: "202403"},
		{Key: domain.CohortKey{AccidentMonth: "202401", ClassCode: "B"}, Month: "202403"},
		{Key: domain.CohortKey{AccidentMonth: "202403", ClassCode: "A"}, Month: "202403"},
	}))

	snaps, err := s.Snapshots(context.Background(), "202403")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "A", snaps[0].Key.ClassCode)
	assert.Equal(t, "202401", snaps[1].Key.AccidentMonth)

	empty, err := s.Snapshots(context.Background(), "202402")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_LoadPortfolio(t *testing.T) {
	key := domain.ContractKey{PolicyNo: "P1"}
	p := &domain.Portfolio{
		Contracts: []domain.Contract{{Key: key, ConfirmDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
		CashFlows: []domain.ContractCashFlow{{
			Key:         key,
			CashFlowRow: domain.CashFlowRow{Month: "202401", Type: domain.FlowPremium, Amount: decimal.NewFromInt(10)},
		}},
		Patterns: []domain.Pattern{{ClassCode: "A", Ratios: []decimal.Decimal{decimal.NewFromInt(1)}}},
		Cohorts: []domain.MonthCohort{{
			Month:       "202401",
			ClaimCohort: domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202401", ClassCode: "A"}},
		}},
		UnderlyingLosses: []domain.UnderlyingLossItem{{Key: key, Month: "202401", Amount: decimal.NewFromInt(5)}},
	}

	s := New()
	s.Load(p)

	rows, err := s.CashFlows(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	cohorts, err := s.Cohorts(context.Background(), "202401")
	require.NoError(t, err)
	assert.Len(t, cohorts, 1)
	_, err = s.Pattern(context.Background(), "A")
	assert.NoError(t, err)
	loss, err := s.UnderlyingLoss(context.Background(), key, "202401")
	require.NoError(t, err)
	assert.Equal(t, "5", loss.String())
}
