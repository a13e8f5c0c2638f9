package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewInputParser(t *testing.T) {
	parser := NewInputParser()
	assert.NotNil(t, parser, "Should create input parser")
}

func TestInputParser_LoadPortfolio_FileNotFound(t *testing.T) {
	parser := NewInputParser()

	portfolio, err := parser.LoadPortfolio("nonexistent.yaml")

	assert.Error(t, err, "Should error for nonexistent file")
	assert.Nil(t, portfolio, "Should return nil portfolio")
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestInputParser_LoadPortfolio_InvalidYAML(t *testing.T) {
	path := writeFile(t, "invalid.yaml", "invalid: yaml: content: [unclosed")

	portfolio, err := NewInputParser().LoadPortfolio(path)

	assert.Error(t, err, "Should error for invalid YAML")
	assert.Nil(t, portfolio)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestInputParser_LoadPortfolio_Example(t *testing.T) {
	portfolio, err := NewInputParser().LoadPortfolio(filepath.Join("..", "..", "testdata", "portfolio_example.yaml"))
	require.NoError(t, err)

	require.Len(t, portfolio.Contracts, 3)
	direct := portfolio.Contracts[0]
	assert.Equal(t, "P-1200", direct.Key.PolicyNo)
	assert.Equal(t, domain.VariantDirect, direct.Variant)
	assert.True(t, decimal.NewFromInt(1200000).Equal(direct.Premium))
	assert.Equal(t, time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC), direct.ConfirmDate.UTC())
	assert.Equal(t, 365, direct.TermDays)

	outward := portfolio.Contracts[2]
	assert.Equal(t, domain.VariantOutward, outward.Variant)
	assert.Equal(t, "P-1200", outward.Underlying.PolicyNo)
	assert.Equal(t, "0.5", outward.ShareRate.String())

	keys := portfolio.ContractKeys()
	assert.Equal(t, domain.ContractKey{PolicyNo: "P-1200"}, keys[0], "NA endorsement is normalized")

	require.NotEmpty(t, portfolio.CashFlows)
	assert.Equal(t, "R-100", portfolio.CashFlows[len(portfolio.CashFlows)-1].Key.PolicyNo)
	assert.Equal(t, domain.FlowAcqNonFollow, portfolio.CashFlows[5].Type)

	require.Len(t, portfolio.Patterns, 1)
	assert.Len(t, portfolio.Patterns[0].Ratios, 3)
	assert.Len(t, portfolio.Cohorts, 2)
	assert.Equal(t, "202310", portfolio.Cohorts[0].Key.AccidentMonth)
	assert.Len(t, portfolio.Snapshots, 2)
	assert.NotEmpty(t, portfolio.Curves)
}

func TestInputParser_LoadPortfolio_DefaultsVariant(t *testing.T) {
	path := writeFile(t, "portfolio.yaml", `
contracts:
  - policy_no: "P1"
    class_code: "A"
    premium: 100
    confirm_date: 2024-03-01
`)
	portfolio, err := NewInputParser().LoadPortfolio(path)
	require.NoError(t, err)
	assert.Equal(t, domain.VariantDirect, portfolio.Contracts[0].Variant)
}

func TestInputParser_LoadSettings(t *testing.T) {
	parser := NewInputParser()

	t.Run("empty filename returns defaults", func(t *testing.T) {
		settings, err := parser.LoadSettings("")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSettings().CutoverMonth, settings.CutoverMonth)
	})

	t.Run("example file", func(t *testing.T) {
		settings, err := parser.LoadSettings(filepath.Join("..", "..", "testdata", "settings_example.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "202412", settings.CutoverMonth)
		assert.Equal(t, "0.5", settings.InterestCashFlowWeight.String())
		assert.Equal(t, "11", settings.Methods.Inward)
		assert.Equal(t, 4, settings.Workers)
		assert.Equal(t, DriverMemory, settings.Store.Driver)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeFile(t, "settings.yaml", "cutover_month: \"202406\"\nworkers: 2\n")
		settings, err := parser.LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, "202406", settings.CutoverMonth)
		assert.Equal(t, 2, settings.Workers)
		assert.Equal(t, "8", settings.Methods.Direct)
		assert.True(t, settings.UnpaidEpsilon.Equal(decimal.New(1, -10)))
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		path := writeFile(t, "settings.yaml", "store:\n  driver: oracle\n")
		_, err := parser.LoadSettings(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings validation failed")
		assert.Contains(t, err.Error(), "oracle")
	})
}
