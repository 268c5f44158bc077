package models

import (
	"time"

	"github.com/Dan9191/mortgage-service/internal/evaluator"
)

// ComplianceCheck represents a stored compliance verdict for a loan
type ComplianceCheck struct {
	ID        int64            `json:"id"`
	LoanID    int64            `json:"loanId"`
	Status    evaluator.Status `json:"status"`
	Details   string           `json:"details"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ComplianceSummary counts compliance checks per status since a point in time
type ComplianceSummary struct {
	Since  time.Time                `json:"since"`
	Counts map[evaluator.Status]int `json:"counts"`
	Total  int                      `json:"total"`
}
