package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/mortgage-service/internal/config"
	"github.com/Dan9191/mortgage-service/internal/dashboard"
	"github.com/Dan9191/mortgage-service/internal/evaluator"
	"github.com/Dan9191/mortgage-service/internal/metrics"
	"github.com/Dan9191/mortgage-service/internal/models"
	"github.com/Dan9191/mortgage-service/internal/notify"
	"github.com/Dan9191/mortgage-service/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput is returned when registration fields are missing
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the persistence the service depends on
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateLoan(ctx context.Context, loan *models.Loan) error
	UpdateLoanRecommendation(ctx context.Context, loan *models.Loan) error
	FindLoanByID(ctx context.Context, id int64) (*models.Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]*models.Loan, error)
	CreateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error
	LatestComplianceCheck(ctx context.Context, loanID int64) (*models.ComplianceCheck, error)
	ComplianceCounts(ctx context.Context, since time.Time) (map[evaluator.Status]int, error)
}

// Service handles business logic
type Service struct {
	repo     Store
	notifier notify.Notifier
	log      *logrus.Logger
	config   *config.Config
	now      func() time.Time
}

// NewService initializes a new service
func NewService(repo Store, notifier notify.Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, notifier: notifier, log: log, config: cfg, now: time.Now}
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if username == "" {
		username = email
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(s.config.TokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// EvaluateLoan runs the evaluation pipeline for the user's application and
// stores the loan with its compliance check. The evaluation is complete
// before anything is written.
func (s *Service) EvaluateLoan(ctx context.Context, userID int64, app evaluator.Application) (*models.LoanDecision, error) {
	result := evaluator.Evaluate(app)

	loan := &models.Loan{
		UserID:      userID,
		Amount:      app.Amount,
		TermYears:   app.TermYears,
		CreditScore: app.CreditScore,
		Income:      app.Income,
		Rate:        evaluator.FixedRate,
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	loan.Recommendation = result.Recommendation
	if err := s.repo.UpdateLoanRecommendation(ctx, loan); err != nil {
		return nil, err
	}

	check := &models.ComplianceCheck{
		LoanID:  loan.ID,
		Status:  result.Compliance.Status,
		Details: result.Compliance.Details,
	}
	if err := s.repo.CreateComplianceCheck(ctx, check); err != nil {
		return nil, err
	}

	metrics.RecordEvaluation(string(result.Compliance.Status))
	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"loan_id":    loan.ID,
		"dti":        logFloat(result.DTI),
		"compliance": result.Compliance.Status,
	}).Info("Loan evaluated")

	decision := &models.LoanDecision{
		Loan:           loan,
		Compliance:     result.Compliance,
		Recommendation: result.Recommendation,
	}
	s.notify(ctx, userID, decision)
	return decision, nil
}

// logFloat renders non-finite values as strings; the JSON formatter rejects them
func logFloat(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v
}

// notify failures never fail the request
func (s *Service) notify(ctx context.Context, userID int64, decision *models.LoanDecision) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Warnf("Skipping notification for loan %d: %v", decision.Loan.ID, err)
		return
	}
	if err := s.notifier.LoanEvaluated(ctx, user, decision); err != nil {
		s.log.Warnf("Failed to notify user %d about loan %d: %v", userID, decision.Loan.ID, err)
	}
}

// GetLoan returns a loan owned by the user with its latest compliance check
func (s *Service) GetLoan(ctx context.Context, userID, loanID int64) (*models.LoanDetails, error) {
	loan, err := s.ownedLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}

	details := &models.LoanDetails{Loan: loan}
	check, err := s.repo.LatestComplianceCheck(ctx, loanID)
	switch {
	case err == nil:
		details.Compliance = check
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return details, nil
}

// ListLoans returns the user's loans, newest first
func (s *Service) ListLoans(ctx context.Context, userID int64) ([]*models.Loan, error) {
	return s.repo.ListLoansByUser(ctx, userID)
}

// LoanDashboard returns the dashboard figures for a loan owned by the user
func (s *Service) LoanDashboard(ctx context.Context, userID, loanID int64) (*dashboard.Summary, error) {
	loan, err := s.ownedLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	summary := dashboard.Build(loan.Amount, loan.Rate, loan.Income)
	return &summary, nil
}

// ComplianceSummary counts compliance checks per status since the given time
func (s *Service) ComplianceSummary(ctx context.Context, since time.Time) (*models.ComplianceSummary, error) {
	counts, err := s.repo.ComplianceCounts(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &models.ComplianceSummary{
		Since:  since,
		Counts: make(map[evaluator.Status]int, 3),
	}
	for _, status := range []evaluator.Status{evaluator.StatusPass, evaluator.StatusWarning, evaluator.StatusFail} {
		summary.Counts[status] = counts[status]
	}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// ownedLoan hides loans of other users behind ErrNotFound
func (s *Service) ownedLoan(ctx context.Context, userID, loanID int64) (*models.Loan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, fmt.Errorf("loan %d: %w", loanID, repository.ErrNotFound)
	}
	return loan, nil
}
