package notification

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSMTPSender_Validation(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "a@b.co"}); err == nil {
		t.Error("expected error without host")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "not an address"}); err == nil {
		t.Error("expected error for invalid from address")
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "CuraKidney <no-reply@curakidney.com>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.cfg.Port != 587 {
		t.Errorf("expected default port 587, got %d", s.cfg.Port)
	}
}

func TestSMTPSender_SendEmail(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{
		Host: "smtp.example.com", Port: 2525, Username: "user", Password: "pass",
		From: "CuraKidney <no-reply@curakidney.com>",
	})
	if err != nil {
		t.Fatal(err)
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	if err := s.SendEmail(context.Background(), "Ana <ana@example.com>", "Payment\r\nBcc: evil@x.co", "line1\nline2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "smtp.example.com:2525" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected PLAIN auth with credentials configured")
	}
	if gotFrom != "no-reply@curakidney.com" || len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Errorf("unexpected envelope from=%s to=%v", gotFrom, gotTo)
	}
	msg := string(gotMsg)
	if strings.Contains(msg, "\r\nBcc:") {
		t.Error("subject header injection was not neutralised")
	}
	if !strings.Contains(msg, "line1\r\nline2") {
		t.Error("expected CRLF line endings in body")
	}
}

func TestSMTPSender_SendError(t *testing.T) {
	s, _ := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "no-reply@curakidney.com"})
	boom := errors.New("421 service not available")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	if err := s.SendEmail(context.Background(), "a@b.co", "s", "b"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
	if err := s.SendEmail(context.Background(), "invalid", "s", "b"); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}

func TestSMTPSender_ContextCancelled(t *testing.T) {
	s, _ := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "no-reply@curakidney.com"})
	release := make(chan struct{})
	defer close(release)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.SendEmail(ctx, "a@b.co", "s", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	from := &mail.Address{Name: "CuraKidney", Address: "no-reply@curakidney.com"}
	to := &mail.Address{Address: "a@b.co"}
	msg := string(buildMessage(from, to, "Hello", "Body", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	for _, want := range []string{
		"From: \"CuraKidney\" <no-reply@curakidney.com>\r\n",
		"To: <a@b.co>\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"\r\n\r\nBody",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))
	if err := s.SendEmail(context.Background(), "a@b.co", "Subject", "secret body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"to":"a@b.co"`) {
		t.Errorf("expected recipient in log, got %s", out)
	}
	if strings.Contains(out, "secret body") {
		t.Error("email body must not be logged")
	}
}
