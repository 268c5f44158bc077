// Package evaluator holds the loan evaluation pipeline: debt-to-income ratio,
// compliance verdict and loan-term recommendation.
//
// Every function here is pure and total. Inputs are never validated; negative,
// zero or out-of-range values flow through the arithmetic and still produce a
// classification.
package evaluator

const (
	// FixedRate is the annual interest rate (percent) applied to every loan.
	// It is a placeholder for a live rate source.
	FixedRate = 6.0

	// PaymentFactor approximates the monthly payment as a share of the loan
	// amount. It is not an amortization formula.
	PaymentFactor = 0.005

	// MaxDTI is the debt-to-income ratio above which an application is flagged.
	MaxDTI = 0.43

	// MinCreditScore is the lowest credit score that can pass compliance.
	MinCreditScore = 600
)

// Status is a compliance verdict.
type Status string

const (
	StatusPass    Status = "Pass"
	StatusWarning Status = "Warning"
	StatusFail    Status = "Fail"
)

const (
	Recommend15Year = "Recommend 15-year loan (better savings)"
	HighRisk        = "High risk - likely 30-year or denial"
	Recommend30Year = "Recommend 30-year loan (safer for profile)"
)

// Application is the input of one evaluation.
type Application struct {
	Amount      float64 `json:"amount"`
	TermYears   int     `json:"termYears"`
	CreditScore int     `json:"creditScore"`
	Income      float64 `json:"income"`
}

// Compliance is the outcome of ClassifyCompliance.
type Compliance struct {
	Status  Status `json:"status"`
	Details string `json:"details"`
}

// Result is the outcome of Evaluate. DTI may be non-finite when income is zero.
type Result struct {
	DTI            float64
	Compliance     Compliance
	Recommendation string
}

type complianceRule struct {
	applies func(creditScore int, dti float64) bool
	outcome Compliance
}

// complianceRules is evaluated top to bottom; the first match wins. The credit
// score rule must stay ahead of the DTI rule.
var complianceRules = []complianceRule{
	{
		applies: func(creditScore int, _ float64) bool { return creditScore < MinCreditScore },
		outcome: Compliance{Status: StatusFail, Details: "Credit score too low"},
	},
	{
		applies: func(_ int, dti float64) bool { return dti > MaxDTI },
		outcome: Compliance{Status: StatusWarning, Details: "Debt-to-income ratio too high"},
	},
}

var compliancePass = Compliance{Status: StatusPass, Details: "Meets requirements"}

type recommendationRule struct {
	applies func(creditScore int, income float64) bool
	outcome string
}

var recommendationRules = []recommendationRule{
	{
		applies: func(creditScore int, income float64) bool { return creditScore >= 750 && income >= 80000 },
		outcome: Recommend15Year,
	},
	{
		applies: func(creditScore int, _ float64) bool { return creditScore < 620 },
		outcome: HighRisk,
	},
}

// ComputeDTI returns monthly payment over monthly income, unrounded.
// A zero income yields +Inf, -Inf or NaN.
func ComputeDTI(amount, income float64) float64 {
	monthlyPayment := amount * PaymentFactor
	monthlyIncome := income / 12
	return monthlyPayment / monthlyIncome
}

// ClassifyCompliance returns the verdict of the first matching rule, Pass otherwise.
func ClassifyCompliance(creditScore int, dti float64) Compliance {
	for _, rule := range complianceRules {
		if rule.applies(creditScore, dti) {
			return rule.outcome
		}
	}
	return compliancePass
}

// Recommend suggests a loan term. The rate argument does not take part in the
// decision; callers pass FixedRate.
func Recommend(creditScore int, income float64, _ float64) string {
	for _, rule := range recommendationRules {
		if rule.applies(creditScore, income) {
			return rule.outcome
		}
	}
	return Recommend30Year
}

// Evaluate runs the full pipeline on one application.
func Evaluate(app Application) Result {
	dti := ComputeDTI(app.Amount, app.Income)
	return Result{
		DTI:            dti,
		Compliance:     ClassifyCompliance(app.CreditScore, dti),
		Recommendation: Recommend(app.CreditScore, app.Income, FixedRate),
	}
}
