package domain

import (
	"math"
	"strconv"
	"strings"
)

// TotalsTolerance is the allowed drift between grand_total and its parts.
const TotalsTolerance = 0.01

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate recomputes every line total and the aggregate totals.
// grand_total always equals sum(line totals) + tax.
func (e *Estimate) Recalculate(taxRate float64) {
	var parts, labor float64
	for i := range e.LineItems {
		item := &e.LineItems[i]
		item.Total = Round2(item.Quantity * item.UnitPrice)
		switch item.Type {
		case LineItemLabor:
			labor += item.Total
		default:
			parts += item.Total
		}
	}
	e.PartsTotal = Round2(parts)
	e.LaborTotal = Round2(labor)
	e.Tax = Round2((e.PartsTotal + e.LaborTotal) * taxRate)
	e.GrandTotal = Round2(e.PartsTotal + e.LaborTotal + e.Tax)
}

// TotalsConsistent reports whether grand_total matches the line items plus tax.
func (e *Estimate) TotalsConsistent() bool {
	var sum float64
	for _, item := range e.LineItems {
		sum += item.Total
	}
	return math.Abs(e.GrandTotal-(sum+e.Tax)) <= TotalsTolerance
}

func joinNonEmpty(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
