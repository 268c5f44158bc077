package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/mortgage-service/internal/evaluator"
	"github.com/Dan9191/mortgage-service/internal/models"
)

var loanColumns = []string{
	"id", "user_id", "amount", "term_years", "credit_score", "income", "rate", "optimized",
	"recommendation", "created_at", "updated_at",
}

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestMigrate(t *testing.T) {
	repo, mock := newMock(t)
	for range schema {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE SCHEMA IF NOT EXISTS mortgage")).
		WillReturnError(errors.New("permission denied"))

	err := repo.Migrate(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mortgage.users")).
		WithArgs("jane", "jane@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))

	user := &models.User{Username: "jane", Email: "jane@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, now, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mortgage.users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.CreateUser(context.Background(), &models.User{Email: "jane@example.com"})

	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindUserByID(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
			AddRow(7, "jane", "jane@example.com", "hash", now))

	user, err := repo.FindUserByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, "hash", user.PasswordHash)
}

func TestFindUserByEmail_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM mortgage.users")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindUserByEmail(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLoan(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mortgage.loans")).
		WithArgs(int64(3), 250000.0, 30, 700, 85000.0, evaluator.FixedRate, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	loan := &models.Loan{UserID: 3, Amount: 250000, TermYears: 30, CreditScore: 700, Income: 85000, Rate: evaluator.FixedRate}
	require.NoError(t, repo.CreateLoan(context.Background(), loan))

	assert.Equal(t, int64(11), loan.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLoanRecommendation(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE mortgage.loans")).
		WithArgs(evaluator.Recommend30Year, int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	loan := &models.Loan{ID: 11, Recommendation: evaluator.Recommend30Year}
	require.NoError(t, repo.UpdateLoanRecommendation(context.Background(), loan))

	assert.True(t, loan.Optimized)
	assert.Equal(t, now, loan.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLoanRecommendation_Missing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE mortgage.loans")).
		WillReturnError(sql.ErrNoRows)

	loan := &models.Loan{ID: 99, Recommendation: evaluator.HighRisk}
	err := repo.UpdateLoanRecommendation(context.Background(), loan)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, loan.Optimized)
}

func TestFindLoanByID(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mortgage.loans")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow(11, 3, 250000.0, 30, 700, 85000.0, 6.0, true, evaluator.Recommend30Year, now, now))

	loan, err := repo.FindLoanByID(context.Background(), 11)

	require.NoError(t, err)
	assert.Equal(t, int64(3), loan.UserID)
	assert.Equal(t, 250000.0, loan.Amount)
	assert.True(t, loan.Optimized)
	assert.Equal(t, evaluator.Recommend30Year, loan.Recommendation)
}

func TestFindLoanByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM mortgage.loans")).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLoanByID(context.Background(), 5)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListLoansByUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow(12, 3, 400000.0, 15, 780, 150000.0, 6.0, true, evaluator.Recommend15Year, now, now).
			AddRow(11, 3, 250000.0, 30, 700, 85000.0, 6.0, true, evaluator.Recommend30Year, now, now))

	loans, err := repo.ListLoansByUser(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, int64(12), loans[0].ID)
	assert.Equal(t, int64(11), loans[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLoansByUser_Empty(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(loanColumns))

	loans, err := repo.ListLoansByUser(context.Background(), 4)

	require.NoError(t, err)
	assert.NotNil(t, loans)
	assert.Empty(t, loans)
}

func TestCreateComplianceCheck(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mortgage.compliance_checks")).
		WithArgs(int64(11), "Warning", "Debt-to-income ratio too high").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(21, now))

	check := &models.ComplianceCheck{LoanID: 11, Status: evaluator.StatusWarning, Details: "Debt-to-income ratio too high"}
	require.NoError(t, repo.CreateComplianceCheck(context.Background(), check))

	assert.Equal(t, int64(21), check.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestComplianceCheck(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mortgage.compliance_checks")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "status", "details", "created_at"}).
			AddRow(21, 11, "Fail", "Credit score too low", now))

	check, err := repo.LatestComplianceCheck(context.Background(), 11)

	require.NoError(t, err)
	assert.Equal(t, evaluator.StatusFail, check.Status)
	assert.Equal(t, "Credit score too low", check.Details)
}

func TestComplianceCounts(t *testing.T) {
	repo, mock := newMock(t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("Pass", 5).
			AddRow("Warning", 2).
			AddRow("Fail", 1))

	counts, err := repo.ComplianceCounts(context.Background(), since)

	require.NoError(t, err)
	assert.Equal(t, 5, counts[evaluator.StatusPass])
	assert.Equal(t, 2, counts[evaluator.StatusWarning])
	assert.Equal(t, 1, counts[evaluator.StatusFail])
}
