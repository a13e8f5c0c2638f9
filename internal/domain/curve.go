package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurvePoint is one row of the discount curve table
type CurvePoint struct {
	Month string          `yaml:"month" json:"month"`
	Term  int             `yaml:"term" json:"term"`
	Rate  decimal.Decimal `yaml:"rate" json:"rate"`
}

// Curve holds the forward periodic rates published for one evaluation month, keyed by term index
type Curve struct {
	Month string
	rates map[int]decimal.Decimal
}

// NewCurve builds a curve from points belonging to month. Duplicate terms keep the first occurrence.
func NewCurve(month string, points []CurvePoint) Curve {
	rates := make(map[int]decimal.Decimal, len(points))
	for _, p := range points {
		if p.Month != "" && p.Month != month {
			continue
		}
		if _, seen := rates[p.Term]; seen {
			continue
		}
		rates[p.Term] = p.Rate
	}
	return Curve{Month: month, rates: rates}
}

// GroupCurves splits table rows into per-month curves, first occurrence winning per (month, term)
func GroupCurves(points []CurvePoint) map[string]Curve {
	byMonth := make(map[string][]CurvePoint)
	for _, p := range points {
		byMonth[p.Month] = append(byMonth[p.Month], p)
	}
	curves := make(map[string]Curve, len(byMonth))
	for month, pts := range byMonth {
		curves[month] = NewCurve(month, pts)
	}
	return curves
}

// Rate returns the rate for a 1-based term index
func (c Curve) Rate(term int) (decimal.Decimal, bool) {
	r, ok := c.rates[term]
	return r, ok
}

// Terms returns the populated term indices in ascending order
func (c Curve) Terms() []int {
	terms := make([]int, 0, len(c.rates))
	for t := range c.rates {
		terms = append(terms, t)
	}
	sort.Ints(terms)
	return terms
}

// Empty reports whether the curve has no rates
func (c Curve) Empty() bool {
	return len(c.rates) == 0
}
