// Package email provides the outbound mail collaborator. Alert and report
// dispatch go through the Sender interface so the pipeline stages can be
// tested without an SMTP server.
package email

import "context"

// Attachment represents a file attachment for an email.
type Attachment struct {
	Content  []byte // raw file bytes
	FileName string // e.g. "appian-status-report.csv"
	MIMEType string // e.g. "text/csv"
}

// Message is a fully resolved outbound email.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Sender is the mail dispatch contract.
type Sender interface {
	// Send delivers the message. Attachments, Cc, and the text alternative
	// are optional.
	Send(ctx context.Context, msg Message) error
}

// NoopSender is used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) error { return nil }
