package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgehrsitz/lrcm/internal/calculation"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
)

// Report is the payload handed to a formatter. Exactly one field is set.
type Report struct {
	Measurement *domain.MeasurementResult `json:"measurement,omitempty"`
	Incurred    *domain.IncurredResult    `json:"incurred,omitempty"`
	Batch       *calculation.BatchResult  `json:"batch,omitempty"`
}

// Formatter renders a report into bytes
type Formatter interface {
	Name() string
	Format(r Report) ([]byte, error)
}

var formatters = map[string]Formatter{
	"console": ConsoleFormatter{},
	"table":   ConsoleFormatter{},
	"csv":     CSVFormatter{},
	"json":    JSONFormatter{},
}

// GetFormatterByName returns the formatter registered under name, or nil
func GetFormatterByName(name string) Formatter {
	return formatters[strings.ToLower(name)]
}

// AvailableFormatterNames lists every registered name and alias
func AvailableFormatterNames() []string {
	names := make([]string, 0, len(formatters))
	for n := range formatters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GenerateReport renders a report in the named format
func GenerateReport(r Report, format string) ([]byte, error) {
	f := GetFormatterByName(format)
	if f == nil {
		return nil, fmt.Errorf("unsupported format: %s (available: %s)", format, strings.Join(AvailableFormatterNames(), ", "))
	}
	if r.Measurement == nil && r.Incurred == nil && r.Batch == nil {
		return nil, fmt.Errorf("empty report")
	}
	return f.Format(r)
}

// FormatAmount formats a monetary decimal with two places
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatPercentage formats a ratio as a percentage
func FormatPercentage(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
