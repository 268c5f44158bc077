package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Dan9191/mortgage-service/internal/config"
	"github.com/Dan9191/mortgage-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Notifier delivers loan evaluation results to the applicant
type Notifier interface {
	LoanEvaluated(ctx context.Context, user *models.User, decision *models.LoanDecision) error
}

// sendFunc delivers a prepared message. Replaced in tests.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// LoanEvaluated sends a summary of the evaluation to the user
func (s *Sender) LoanEvaluated(ctx context.Context, user *models.User, decision *models.LoanDecision) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = fmt.Sprintf("Mortgage evaluation #%d: %s", decision.Loan.ID, decision.Compliance.Status)
	e.Text = []byte(evaluationBody(user, decision))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", user.Email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
	return nil
}

func evaluationBody(user *models.User, decision *models.LoanDecision) string {
	loan := decision.Loan
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", user.Username)
	fmt.Fprintf(&b, "We evaluated your mortgage application for %.2f over %d years.\n\n", loan.Amount, loan.TermYears)
	fmt.Fprintf(&b, "Compliance: %s (%s)\n", decision.Compliance.Status, decision.Compliance.Details)
	fmt.Fprintf(&b, "Recommendation: %s\n", decision.Recommendation)
	fmt.Fprintf(&b, "Rate used: %.2f%%\n", loan.Rate)
	b.WriteString("\nBest regards,\nMortgage Service")
	return b.String()
}

// Discard is a Notifier that drops every message. Used when SMTP is not configured.
type Discard struct{}

func (Discard) LoanEvaluated(context.Context, *models.User, *models.LoanDecision) error {
	return nil
}
