// Package mail wraps the transactional email provider behind a minimal
// Sender interface so the dispatcher and tests do not depend on the
// provider SDK.
package mail

import "context"

// Email is one fully-prepared outbound message.
type Email struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// Sender delivers a single email and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
