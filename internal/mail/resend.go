package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"

	"github.com/flmlnk/flmlnk-backend/internal/config"
)

// ResendSender sends through the Resend API. A local limiter keeps us
// under the provider's per-second quota; each call carries its own
// timeout so a hung provider call surfaces as a failed delivery instead
// of a ledger row stuck in pending.
type ResendSender struct {
	client  *resend.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewResendSender builds a sender from config. An empty API key is a
// configuration error surfaced on construction, not mid-send.
func NewResendSender(cfg *config.ResendConfig) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend API key is not configured")
	}
	return &ResendSender{
		client:  resend.NewClient(cfg.APIKey),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		timeout: time.Duration(cfg.SendTimeout) * time.Second,
	}, nil
}

func (s *ResendSender) Send(ctx context.Context, email *Email) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		Headers: email.Headers,
	}
	if email.ReplyTo != "" {
		params.ReplyTo = email.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}

var _ Sender = (*ResendSender)(nil)
