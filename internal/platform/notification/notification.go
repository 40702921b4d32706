// Package notification renders and delivers outbound email and keeps an
// in-memory delivery history.
package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curakidney/api/internal/platform/apperr"
)

type NotificationType string

const TypeEmail NotificationType = "email"

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification represents a single outbound notification.
type Notification struct {
	ID           string            `json:"id"`
	Type         NotificationType  `json:"type"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Manager sends notifications and records the outcome of each one.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine
	now       func() time.Time

	mu            sync.RWMutex
	notifications map[string]*Notification
}

func NewManager(sender EmailSender, tpl *TemplateEngine) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{
		sender:        sender,
		templates:     tpl,
		now:           func() time.Time { return time.Now().UTC() },
		notifications: make(map[string]*Notification),
	}
}

// Send delivers n and stores it with its final status. The returned error
// wraps the sender failure; the notification is kept either way.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Type == "" {
		n.Type = TypeEmail
	}
	n.CreatedAt = m.now()
	n.Status = StatusPending

	sendErr := m.deliver(ctx, n)

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	var err error
	if n.Type != TypeEmail {
		err = fmt.Errorf("unsupported notification type: %s", n.Type)
	} else {
		err = m.sender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return fmt.Errorf("send email to %s: %w", n.Recipient, err)
	}
	sentAt := m.now()
	n.Status = StatusSent
	n.SentAt = &sentAt
	n.Error = ""
	return nil
}

// SendFromTemplate renders templateID with data and sends it to recipient.
// The notification is returned even when delivery failed.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Type:         TypeEmail,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := m.Send(ctx, n); err != nil {
		return n.copy(), err
	}
	return n.copy(), nil
}

// Get returns a snapshot of the notification with the given id.
func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, apperr.NotFound("notification", id)
	}
	return n.copy(), nil
}

// ListByRecipient returns up to limit notifications for recipient, newest
// first.
func (m *Manager) ListByRecipient(_ context.Context, recipient string, limit int) []*Notification {
	m.mu.RLock()
	result := make([]*Notification, 0)
	for _, n := range m.notifications {
		if n.Recipient == recipient {
			result = append(result, n.copy())
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.Lock()
	n, ok := m.notifications[id]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.NotFound("notification", id)
	}
	if status := n.Status; status != StatusFailed {
		m.mu.Unlock()
		return nil, apperr.Conflict(fmt.Sprintf("notification %s is %s, only failed notifications can be retried", id, status))
	}
	// Claimed: a concurrent Retry now sees pending and gets a conflict.
	n.Status = StatusPending
	m.mu.Unlock()

	err := m.deliver(ctx, n)

	m.mu.RLock()
	out := n.copy()
	m.mu.RUnlock()
	return out, err
}

// Stats counts stored notifications by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

func (n *Notification) copy() *Notification {
	out := *n
	if n.TemplateData != nil {
		out.TemplateData = make(map[string]string, len(n.TemplateData))
		for k, v := range n.TemplateData {
			out.TemplateData[k] = v
		}
	}
	if n.SentAt != nil {
		t := *n.SentAt
		out.SentAt = &t
	}
	return &out
}
