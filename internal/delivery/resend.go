package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/model"
)

// DefaultResendURL is the Resend email endpoint
const DefaultResendURL = "https://api.resend.com/emails"

// ResendOptions configures the email transport
type ResendOptions struct {
	APIKey   string
	Endpoint string
	From     string
	To       []string
	Retry    RetryPolicy
}

// Resend sends the report as an email attachment through the Resend API
type Resend struct {
	opts       ResendOptions
	httpClient *http.Client
	logger     *zap.Logger
}

// NewResend creates the email transport
func NewResend(opts ResendOptions, logger *zap.Logger) *Resend {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultResendURL
	}
	return &Resend{
		opts: opts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	Text        string             `json:"text"`
	Attachments []resendAttachment `json:"attachments"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (r *Resend) Name() string { return "email" }

// Deliver emails the report to every receiver in one message.
func (r *Resend) Deliver(ctx context.Context, report model.Report) (model.Receipt, error) {
	data, err := os.ReadFile(report.Path)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("reading report: %w", err)
	}

	body, err := json.Marshal(resendRequest{
		From:    r.opts.From,
		To:      r.opts.To,
		Subject: report.Subject,
		Text:    report.Body,
		Attachments: []resendAttachment{{
			Filename: report.Filename,
			Content:  base64.StdEncoding.EncodeToString(data),
		}},
	})
	if err != nil {
		return model.Receipt{}, fmt.Errorf("marshaling email: %w", err)
	}

	r.logger.Info("Sending report email", zap.Strings("to", r.opts.To), zap.String("subject", report.Subject))
	id, err := retry(ctx, r.opts.Retry, r.logger, r.Name(), func() (string, error) {
		return r.send(ctx, body)
	})
	if err != nil {
		return model.Receipt{}, err
	}
	return model.Receipt{Target: r.Name(), Reference: id}, nil
}

func (r *Resend) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("resend API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var parsed resendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return parsed.ID, nil
}
