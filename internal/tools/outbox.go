package tools

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"rook/internal/logging"
)

// SentEmail is one delivered message.
type SentEmail struct {
	ID      string    `json:"email_id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox records sent emails instead of delivering them.
type Outbox struct {
	mu   sync.Mutex
	sent []SentEmail
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send records a message and returns its receipt.
func (o *Outbox) Send(to, subject, body string) SentEmail {
	msg := SentEmail{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	}
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	o.mu.Unlock()
	logging.Email("recorded email %s to=%s subject=%q", msg.ID, to, subject)
	return msg
}

// Sent returns a snapshot of everything recorded so far.
func (o *Outbox) Sent() []SentEmail {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SentEmail, len(o.sent))
	copy(out, o.sent)
	return out
}
