package config

import (
	"fmt"
	"os"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InputParser handles parsing of settings and portfolio files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadSettings loads engine settings from a YAML or JSON file.
// Fields absent from the file keep their default values.
func (ip *InputParser) LoadSettings(filename string) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if filename == "" {
		return settings, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return settings, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidateSettings(&settings); err != nil {
		return settings, fmt.Errorf("settings validation failed: %w", err)
	}
	return settings, nil
}

// LoadPortfolio loads a portfolio of source tables from a YAML or JSON file
func (ip *InputParser) LoadPortfolio(filename string) (*domain.Portfolio, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var portfolio domain.Portfolio
	if err := yaml.Unmarshal(data, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidatePortfolio(&portfolio); err != nil {
		return nil, fmt.Errorf("portfolio validation failed: %w", err)
	}
	return &portfolio, nil
}

// ValidateSettings validates engine settings
func (ip *InputParser) ValidateSettings(s *domain.Settings) error {
	if !dateutil.ValidMonth(s.CutoverMonth) {
		return fmt.Errorf("cutover month %q must be YYYYMM", s.CutoverMonth)
	}
	if s.EraBoundary.IsZero() {
		return fmt.Errorf("era boundary is required")
	}
	if s.InterestCashFlowWeight.LessThan(decimal.Zero) || s.InterestCashFlowWeight.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("interest cash flow weight must be between 0 and 1")
	}
	if s.UnpaidEpsilon.LessThan(decimal.Zero) {
		return fmt.Errorf("unpaid epsilon cannot be negative")
	}
	if s.Methods.Direct == "" || s.Methods.Inward == "" || s.Methods.Outward == "" {
		return fmt.Errorf("assumption method tags are required for every variant")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}

	switch s.Store.Driver {
	case "", DriverMemory:
	case DriverSQLite, DriverPostgres:
		if s.Store.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", s.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", s.Store.Driver)
	}
	return nil
}

// ValidatePortfolio validates the source tables of a portfolio
func (ip *InputParser) ValidatePortfolio(p *domain.Portfolio) error {
	if len(p.Contracts) == 0 && len(p.Cohorts) == 0 {
		return fmt.Errorf("no contracts or claim cohorts provided")
	}

	seen := make(map[domain.ContractKey]bool, len(p.Contracts))
	for i := range p.Contracts {
		c := &p.Contracts[i]
		if err := ip.validateContract(c); err != nil {
			return fmt.Errorf("contract %d (%s) validation failed: %w", i, c.Key, err)
		}
		key := c.Key.Normalize()
		if seen[key] {
			return fmt.Errorf("duplicate contract %s", key)
		}
		seen[key] = true
	}

	for i, cf := range p.CashFlows {
		if !seen[cf.Key.Normalize()] {
			return fmt.Errorf("cash flow %d references unknown contract %s", i, cf.Key)
		}
		if !dateutil.ValidMonth(cf.Month) {
			return fmt.Errorf("cash flow %d has invalid month %q", i, cf.Month)
		}
		if !cf.Type.Valid() {
			return fmt.Errorf("cash flow %d has unknown type %q", i, cf.Type)
		}
	}

	for i, a := range p.Assumptions {
		if !dateutil.ValidMonth(a.Month) {
			return fmt.Errorf("assumption %d has invalid month %q", i, a.Month)
		}
		if a.ClassCode == "" || a.Method == "" {
			return fmt.Errorf("assumption %d requires class_code and method", i)
		}
	}

	for i, pt := range p.Curves {
		if !dateutil.ValidMonth(pt.Month) {
			return fmt.Errorf("curve point %d has invalid month %q", i, pt.Month)
		}
		if pt.Term < 1 {
			return fmt.Errorf("curve point %d has term %d, terms start at 1", i, pt.Term)
		}
	}

	for i, pat := range p.Patterns {
		if pat.ClassCode == "" {
			return fmt.Errorf("pattern %d requires class_code", i)
		}
		if len(pat.Ratios) == 0 {
			return fmt.Errorf("pattern %s has no ratios", pat.ClassCode)
		}
	}

	for i, c := range p.Cohorts {
		if !dateutil.ValidMonth(c.Month) || !dateutil.ValidMonth(c.Key.AccidentMonth) {
			return fmt.Errorf("cohort %d has invalid month %q/%q", i, c.Month, c.Key.AccidentMonth)
		}
		if c.Key.ClassCode == "" {
			return fmt.Errorf("cohort %d requires class_code", i)
		}
	}

	for i, s := range p.Snapshots {
		if !dateutil.ValidMonth(s.Month) || !dateutil.ValidMonth(s.Key.AccidentMonth) {
			return fmt.Errorf("snapshot %d has invalid month %q/%q", i, s.Month, s.Key.AccidentMonth)
		}
	}

	for i, l := range p.UnderlyingLosses {
		if l.Key.PolicyNo == "" || !dateutil.ValidMonth(l.Month) {
			return fmt.Errorf("underlying loss %d requires policy_no and a YYYYMM month", i)
		}
	}

	return nil
}

// validateContract validates a single contract record
func (ip *InputParser) validateContract(c *domain.Contract) error {
	if c.Key.PolicyNo == "" {
		return fmt.Errorf("policy number is required")
	}
	if c.Variant == "" {
		c.Variant = domain.VariantDirect
	}
	if _, ok := domain.SpecFor(c.Variant); !ok {
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	if c.ClassCode == "" {
		return fmt.Errorf("class code is required")
	}
	if c.ConfirmDate.IsZero() {
		return fmt.Errorf("confirm date is required")
	}
	if c.TermDays < 0 {
		return fmt.Errorf("term days cannot be negative")
	}

	// Date logic
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date cannot be before start date")
	}

	if c.Variant == domain.VariantOutward {
		if c.UnderwriteDate.IsZero() && c.EndorsementDate.IsZero() {
			return fmt.Errorf("outward contracts require an underwrite or endorsement date")
		}
		if c.ShareRate.LessThan(decimal.Zero) || c.ShareRate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("share rate must be between 0 and 1")
		}
		if c.InvestmentRatio.LessThan(decimal.Zero) || c.InvestmentRatio.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("investment ratio must be between 0 and 1")
		}
	}
	return nil
}
