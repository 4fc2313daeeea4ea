// Package notify delivers session summaries over email through an
// HTTP mail API.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

type Mailer interface {
	Send(ctx context.Context, subject, htmlBody, attachment string) error
}

type SendGridMailer struct {
	http *resty.Client
	from string
	to   string
	log  *slog.Logger
}

func NewSendGridMailer(apiKey, from, to string, logger *slog.Logger) *SendGridMailer {
	rc := resty.New().
		SetBaseURL("https://api.sendgrid.com").
		SetAuthToken(apiKey).
		SetTimeout(15 * time.Second)

	return &SendGridMailer{http: rc, from: from, to: to, log: logger}
}

// Send posts one mail/send request. A non-empty attachment travels as
// a plain-text file with the original transcript.
func (m *SendGridMailer) Send(ctx context.Context, subject, htmlBody, attachment string) error {
	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": m.to}}},
		},
		"from":    map[string]string{"email": m.from},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/html", "value": htmlBody},
		},
	}
	if attachment != "" {
		payload["attachments"] = []map[string]string{{
			"content":     base64.StdEncoding.EncodeToString([]byte(attachment)),
			"type":        "text/plain",
			"filename":    "transcripcion_original.txt",
			"disposition": "attachment",
		}}
	}

	resp, err := m.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send mail: status %d: %s", resp.StatusCode(), resp.String())
	}

	m.log.Info("summary email sent", slog.String("to", m.to))
	return nil
}
