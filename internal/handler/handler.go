package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/mortgage-service/internal/dashboard"
	"github.com/Dan9191/mortgage-service/internal/evaluator"
	"github.com/Dan9191/mortgage-service/internal/integrations/cbr"
	"github.com/Dan9191/mortgage-service/internal/middleware"
	"github.com/Dan9191/mortgage-service/internal/models"
	"github.com/Dan9191/mortgage-service/internal/repository"
	"github.com/Dan9191/mortgage-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// LoanService is the business logic the handlers expose
type LoanService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	EvaluateLoan(ctx context.Context, userID int64, app evaluator.Application) (*models.LoanDecision, error)
	GetLoan(ctx context.Context, userID, loanID int64) (*models.LoanDetails, error)
	ListLoans(ctx context.Context, userID int64) ([]*models.Loan, error)
	LoanDashboard(ctx context.Context, userID, loanID int64) (*dashboard.Summary, error)
}

// KeyRateSource provides the informational reference rate
type KeyRateSource interface {
	GetKeyRate(ctx context.Context) (*cbr.KeyRate, error)
}

// Pinger reports database health
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc     LoanService
	keyRate KeyRateSource
	db      Pinger
	log     *logrus.Logger
}

func NewHandler(svc LoanService, keyRate KeyRateSource, db Pinger, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, keyRate: keyRate, db: db, log: log}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// createLoanRequest holds pointers so absent and null fields can be told apart from zero
type createLoanRequest struct {
	Amount      *float64 `json:"amount"`
	TermYears   *int     `json:"termYears"`
	CreditScore *int     `json:"creditScore"`
	Income      *float64 `json:"income"`
}

func (req createLoanRequest) application() (evaluator.Application, bool) {
	if req.Amount == nil || req.TermYears == nil || req.CreditScore == nil || req.Income == nil {
		return evaluator.Application{}, false
	}
	return evaluator.Application{
		Amount:      *req.Amount,
		TermYears:   *req.TermYears,
		CreditScore: *req.CreditScore,
		Income:      *req.Income,
	}, true
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "email already registered")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateLoan evaluates and stores a loan application
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	app, ok := req.application()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.svc.EvaluateLoan(r.Context(), userID, app)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// ListLoans returns the caller's loans
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	loans, err := h.svc.ListLoans(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loans)
}

// GetLoan returns one of the caller's loans with its compliance check
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	userID, loanID, ok := h.loanRequest(w, r)
	if !ok {
		return
	}

	details, err := h.svc.GetLoan(r.Context(), userID, loanID)
	if err != nil {
		h.loanError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// LoanDashboard returns the dashboard figures for one of the caller's loans
func (h *Handler) LoanDashboard(w http.ResponseWriter, r *http.Request) {
	userID, loanID, ok := h.loanRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.LoanDashboard(r.Context(), userID, loanID)
	if err != nil {
		h.loanError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// KeyRate returns the reference rate. It does not influence loan evaluation.
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.keyRate.GetKeyRate(r.Context())
	if err != nil {
		h.log.Errorf("Failed to get key rate: %v", err)
		writeError(w, http.StatusBadGateway, "failed to get key rate")
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// Health reports liveness and database reachability
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Errorf("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loanRequest(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}

	loanID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return 0, 0, false
	}
	return userID, loanID, true
}

func (h *Handler) loanError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "loan not found")
		return
	}
	h.internalError(w, r, err)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": w.Header().Get(middleware.RequestIDHeader),
	}).Errorf("Request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
