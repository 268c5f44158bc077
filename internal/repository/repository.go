package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/mortgage-service/internal/evaluator"
	"github.com/Dan9191/mortgage-service/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert
	ErrDuplicate = errors.New("already exists")
)

const uniqueViolation = pq.ErrorCode("23505")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO mortgage.users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM mortgage.users
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM mortgage.users
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateLoan inserts the raw loan input
func (r *Repository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO mortgage.loans (user_id, amount, term_years, credit_score, income, rate, optimized, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		loan.UserID, loan.Amount, loan.TermYears, loan.CreditScore, loan.Income, loan.Rate, loan.Optimized).
		Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// UpdateLoanRecommendation attaches the recommendation and marks the loan optimized
func (r *Repository) UpdateLoanRecommendation(ctx context.Context, loan *models.Loan) error {
	query := `
		UPDATE mortgage.loans
		SET recommendation = $1, optimized = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, loan.Recommendation, loan.ID).Scan(&loan.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("loan %d: %w", loan.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	loan.Optimized = true
	return nil
}

// FindLoanByID retrieves a loan by id
func (r *Repository) FindLoanByID(ctx context.Context, id int64) (*models.Loan, error) {
	query := `
		SELECT id, user_id, amount, term_years, credit_score, income, rate, optimized,
		       COALESCE(recommendation, ''), created_at, updated_at
		FROM mortgage.loans
		WHERE id = $1`
	loan, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return loan, nil
}

// ListLoansByUser returns the user's loans, newest first
func (r *Repository) ListLoansByUser(ctx context.Context, userID int64) ([]*models.Loan, error) {
	query := `
		SELECT id, user_id, amount, term_years, credit_score, income, rate, optimized,
		       COALESCE(recommendation, ''), created_at, updated_at
		FROM mortgage.loans
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	loans := []*models.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// CreateComplianceCheck stores a compliance verdict for a loan
func (r *Repository) CreateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error {
	query := `
		INSERT INTO mortgage.compliance_checks (loan_id, status, details, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, check.LoanID, string(check.Status), check.Details).
		Scan(&check.ID, &check.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create compliance check: %w", err)
	}
	return nil
}

// LatestComplianceCheck returns the most recent compliance check for a loan
func (r *Repository) LatestComplianceCheck(ctx context.Context, loanID int64) (*models.ComplianceCheck, error) {
	check := &models.ComplianceCheck{}
	var status string
	query := `
		SELECT id, loan_id, status, details, created_at
		FROM mortgage.compliance_checks
		WHERE loan_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, loanID).
		Scan(&check.ID, &check.LoanID, &status, &check.Details, &check.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compliance check for loan %d: %w", loanID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find compliance check: %w", err)
	}
	check.Status = evaluator.Status(status)
	return check, nil
}

// ComplianceCounts counts compliance checks per status created at or after since
func (r *Repository) ComplianceCounts(ctx context.Context, since time.Time) (map[evaluator.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM mortgage.compliance_checks
		WHERE created_at >= $1
		GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count compliance checks: %w", err)
	}
	defer rows.Close()

	counts := make(map[evaluator.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan compliance count: %w", err)
		}
		counts[evaluator.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count compliance checks: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*models.Loan, error) {
	loan := &models.Loan{}
	err := row.Scan(&loan.ID, &loan.UserID, &loan.Amount, &loan.TermYears, &loan.CreditScore,
		&loan.Income, &loan.Rate, &loan.Optimized, &loan.Recommendation, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return loan, nil
}
