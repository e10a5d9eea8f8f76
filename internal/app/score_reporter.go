package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"trivia-quiz/internal/domain"
)

// ReportSender delivers a score report. Failures should be *domain.SubmissionError.
type ReportSender interface {
	Send(ctx context.Context, report domain.ScoreReport) error
}

// EmailSettings are the values the email collaborator needs.
type EmailSettings struct {
	PublicKey  string
	ServiceID  string
	TemplateID string
	ToEmail    string
}

// Missing lists the unset settings in a stable order.
func (s EmailSettings) Missing() []string {
	var missing []string
	if s.PublicKey == "" {
		missing = append(missing, "PUBLIC_KEY")
	}
	if s.ServiceID == "" {
		missing = append(missing, "SERVICE_ID")
	}
	if s.TemplateID == "" {
		missing = append(missing, "TEMPLATE_ID")
	}
	if s.ToEmail == "" {
		missing = append(missing, "TO_EMAIL")
	}
	return missing
}

// ScoreReporter sends final scores and always keeps a local copy of the last one.
type ScoreReporter struct {
	sender   ReportSender
	kv       KeyValueStore
	settings EmailSettings
	now      func() time.Time
}

func NewScoreReporter(sender ReportSender, kv KeyValueStore, settings EmailSettings) *ScoreReporter {
	return &ScoreReporter{sender: sender, kv: kv, settings: settings, now: time.Now}
}

// Submit sends the report and returns the message to show the player.
func (r *ScoreReporter) Submit(ctx context.Context, report domain.ScoreReport) (string, error) {
	report.Name = strings.TrimSpace(report.Name)
	if report.Name == "" {
		return "Please enter your name.", domain.ErrNameRequired
	}
	if report.SentAt.IsZero() {
		report.SentAt = r.now()
	}
	report.Percentage = domain.Percentage(report.Score, report.Total)

	if missing := r.settings.Missing(); len(missing) > 0 || r.sender == nil {
		r.saveLocally(ctx, report)
		list := strings.Join(missing, ", ")
		if list == "" {
			list = "SENDER"
		}
		return fmt.Sprintf("Email service configuration incomplete. Missing: %s. Score saved locally.", list),
			fmt.Errorf("%w: missing %s", domain.ErrEmailNotConfigured, list)
	}

	report.ToEmail = r.settings.ToEmail
	if err := r.sender.Send(ctx, report); err != nil {
		log.Printf("email submission failed: %v", err)
		r.saveLocally(ctx, report)
		return submissionMessage(err) + " Score saved locally.", err
	}
	r.saveLocally(ctx, report)
	return "Score submitted successfully!", nil
}

func (r *ScoreReporter) saveLocally(ctx context.Context, report domain.ScoreReport) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("encode score report: %v", err)
		return
	}
	if err := r.kv.Set(ctx, KeyLastScore, string(data)); err != nil {
		log.Printf("save score report: %v", err)
	}
}

func submissionMessage(err error) string {
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		return "An unexpected error occurred while submitting your score."
	}
	switch subErr.Kind {
	case domain.SubmissionNetwork:
		return "Network error. Please check your connection and try again."
	case domain.SubmissionConfig:
		return "Invalid EmailJS configuration. Please check your EmailJS settings."
	default:
		return "EmailJS error: " + subErr.Detail
	}
}
