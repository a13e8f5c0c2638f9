package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings holds engine-wide business constants and runtime wiring
type Settings struct {
	CutoverMonth           string            `yaml:"cutover_month" json:"cutover_month"`
	EraBoundary            time.Time         `yaml:"era_boundary" json:"era_boundary"`
	InterestCashFlowWeight decimal.Decimal   `yaml:"interest_cash_flow_weight" json:"interest_cash_flow_weight"`
	UnpaidEpsilon          decimal.Decimal   `yaml:"unpaid_epsilon" json:"unpaid_epsilon"`
	Methods                AssumptionMethods `yaml:"assumption_methods" json:"assumption_methods"`
	Workers                int               `yaml:"workers" json:"workers"`
	Store                  StoreSettings     `yaml:"store" json:"store"`
	Server                 ServerSettings    `yaml:"server" json:"server"`
}

// AssumptionMethods maps each variant to its valuation method tag in the assumption table
type AssumptionMethods struct {
	Direct  string `yaml:"direct" json:"direct"`
	Inward  string `yaml:"inward" json:"inward"`
	Outward string `yaml:"outward" json:"outward"`
}

// StoreSettings selects the repository backend
type StoreSettings struct {
	Driver string `yaml:"driver" json:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ServerSettings configures the HTTP surface
type ServerSettings struct {
	Addr           string   `yaml:"addr" json:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// DefaultSettings returns the settings used when no file is supplied
func DefaultSettings() Settings {
	return Settings{
		CutoverMonth:           "202412",
		EraBoundary:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		InterestCashFlowWeight: decimal.NewFromFloat(0.5),
		UnpaidEpsilon:          decimal.New(1, -10),
		Methods: AssumptionMethods{
			Direct:  "8",
			Inward:  "11",
			Outward: "10",
		},
		Workers: 4,
		Store:   StoreSettings{Driver: "memory"},
		Server:  ServerSettings{Addr: ":8080", AllowedOrigins: []string{"*"}},
	}
}

// MethodFor returns the assumption method tag for a variant
func (s Settings) MethodFor(v Variant) string {
	switch v {
	case VariantInward:
		return s.Methods.Inward
	case VariantOutward:
		return s.Methods.Outward
	}
	return s.Methods.Direct
}
