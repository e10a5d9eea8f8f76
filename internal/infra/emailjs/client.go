package emailjs

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"

	"trivia-quiz/internal/domain"
)

const (
	DefaultBaseURL = "https://api.emailjs.com"

	sendPath       = "/api/v1.0/email/send"
	defaultTimeout = 10 * time.Second
)

// Config identifies the EmailJS service, template and account.
type Config struct {
	BaseURL    string
	ServiceID  string
	TemplateID string
	PublicKey  string
	Timeout    time.Duration
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	ToEmail    string `json:"to_email"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// Client sends score reports through the EmailJS REST API.
type Client struct {
	cfg  Config
	http *req.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	return &Client{cfg: cfg, http: httpClient}
}

// Send posts the report. Failures are *domain.SubmissionError.
func (c *Client) Send(ctx context.Context, report domain.ScoreReport) error {
	sentAt := report.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	body := sendRequest{
		ServiceID:  c.cfg.ServiceID,
		TemplateID: c.cfg.TemplateID,
		UserID:     c.cfg.PublicKey,
		TemplateParams: templateParams{
			Name:       report.Name,
			Score:      report.Score,
			Total:      report.Total,
			Percentage: report.Percentage,
			ToEmail:    report.ToEmail,
			Date:       sentAt.Format("2006-01-02"),
			Time:       sentAt.Format("15:04:05"),
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBodyJsonMarshal(body).
		Post(sendPath)
	if err != nil {
		return &domain.SubmissionError{
			Kind:   domain.SubmissionNetwork,
			Detail: err.Error(),
			Err:    errors.Wrap(err, "send score report"),
		}
	}
	if status := resp.GetStatusCode(); status != http.StatusOK {
		return &domain.SubmissionError{
			Kind:   kindForStatus(status),
			Status: status,
			Detail: resp.String(),
		}
	}
	return nil
}

func kindForStatus(status int) domain.SubmissionErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return domain.SubmissionConfig
	default:
		return domain.SubmissionRejected
	}
}
