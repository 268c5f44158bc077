package models

import (
	"time"

	"github.com/Dan9191/mortgage-service/internal/evaluator"
)

// Loan represents a stored loan application together with its recommendation
type Loan struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	Amount         float64   `json:"amount"`
	TermYears      int       `json:"termYears"`
	CreditScore    int       `json:"creditScore"`
	Income         float64   `json:"income"`
	Rate           float64   `json:"rate"`
	Optimized      bool      `json:"optimized"`
	Recommendation string    `json:"recommendation,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Application returns the evaluator input held by the loan
func (l *Loan) Application() evaluator.Application {
	return evaluator.Application{
		Amount:      l.Amount,
		TermYears:   l.TermYears,
		CreditScore: l.CreditScore,
		Income:      l.Income,
	}
}

// LoanDecision is the response to a loan submission
type LoanDecision struct {
	Loan           *Loan                `json:"loan"`
	Compliance     evaluator.Compliance `json:"compliance"`
	Recommendation string               `json:"recommendation"`
}

// LoanDetails is a stored loan with its latest compliance check
type LoanDetails struct {
	Loan       *Loan            `json:"loan"`
	Compliance *ComplianceCheck `json:"compliance,omitempty"`
}
