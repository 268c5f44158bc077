// Package dashboard computes the figures behind the loan dashboard: amortized
// 15 and 30 year payments, cumulative cost per year, savings and the
// worst-case debt-to-income ratio.
//
// These numbers are informational. Compliance is decided by package evaluator.
package dashboard

import (
	"fmt"
	"math"
)

const (
	shortTermYears = 15
	longTermYears  = 30

	// DTIThreshold is the safe debt-to-income ratio shown next to the user's DTI.
	DTIThreshold = 0.43
)

// YearCost is the cumulative amount paid by the end of Year under each term.
type YearCost struct {
	Year       int      `json:"year"`
	Label      string   `json:"label"`
	Paid15Year *float64 `json:"paid15Year"`
	Paid30Year *float64 `json:"paid30Year"`
}

// Summary is everything the dashboard displays for one loan. Figures that are
// not finite (e.g. DTI with zero income) are encoded as null.
type Summary struct {
	Amount         float64    `json:"amount"`
	Rate           float64    `json:"rate"`
	Income         float64    `json:"income"`
	Monthly15      *float64   `json:"monthly15"`
	Monthly30      *float64   `json:"monthly30"`
	TotalCost15    *float64   `json:"totalCost15"`
	TotalCost30    *float64   `json:"totalCost30"`
	Savings        *float64   `json:"savings"`
	DTI            *float64   `json:"dti"`
	DTIThreshold   float64    `json:"dtiThreshold"`
	AboveThreshold bool       `json:"aboveThreshold"`
	CostOverTime   []YearCost `json:"costOverTime"`
}

// MonthlyPayment returns the amortized monthly payment for amount borrowed at
// ratePercent annual interest over years.
func MonthlyPayment(amount, ratePercent float64, years int) float64 {
	n := float64(years * 12)
	monthlyRate := ratePercent / 100 / 12
	if monthlyRate == 0 {
		return amount / n
	}
	return (amount * monthlyRate) / (1 - math.Pow(1+monthlyRate, -n))
}

// Build computes the dashboard summary.
func Build(amount, ratePercent, income float64) Summary {
	monthly15 := MonthlyPayment(amount, ratePercent, shortTermYears)
	monthly30 := MonthlyPayment(amount, ratePercent, longTermYears)

	costs := make([]YearCost, 0, longTermYears)
	for y := 1; y <= longTermYears; y++ {
		costs = append(costs, YearCost{
			Year:       y,
			Label:      yearLabel(y),
			Paid15Year: finite(float64(min(y, shortTermYears)*12) * monthly15),
			Paid30Year: finite(float64(y*12) * monthly30),
		})
	}

	total15 := shortTermYears * 12 * monthly15
	total30 := longTermYears * 12 * monthly30

	// worst case: the 30 year payment
	dti := monthly30 / (income / 12)

	return Summary{
		Amount:         amount,
		Rate:           ratePercent,
		Income:         income,
		Monthly15:      finite(monthly15),
		Monthly30:      finite(monthly30),
		TotalCost15:    finite(total15),
		TotalCost30:    finite(total30),
		Savings:        finite(total30 - total15),
		DTI:            finite(dti),
		DTIThreshold:   DTIThreshold,
		AboveThreshold: dti > DTIThreshold,
		CostOverTime:   costs,
	}
}

func yearLabel(y int) string {
	return fmt.Sprintf("%d yr", y)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
