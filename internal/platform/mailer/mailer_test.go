package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/pkg/logger"
)

func TestNewWithoutHostLogs(t *testing.T) {
	m := New(config.MailConfig{}, nil)
	logMailer, ok := m.(*LogMailer)
	if !ok {
		t.Fatalf("expected LogMailer, got %T", m)
	}
	if err := logMailer.Send(context.Background(), Message{To: "a@b.cl", Subject: "Hola", Body: "link"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent := logMailer.Sent(); len(sent) != 1 || sent[0].Body != "link" {
		t.Fatalf("unexpected recorded mail %+v", sent)
	}
}

func TestSMTPMailerComposesMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	m := &SMTPMailer{
		cfg: config.MailConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@domu.app"},
		log: logger.NewDefault("mailer-test"),
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr = addr
			gotMsg = msg
			if a != nil {
				t.Fatalf("no auth expected without username")
			}
			return nil
		},
	}
	if err := m.Send(context.Background(), Message{To: "vecino@example.com", Subject: "Recupera tu contraseña", Body: "línea 1\nlínea 2"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	text := string(gotMsg)
	if !strings.Contains(text, "To: vecino@example.com\r\n") || !strings.Contains(text, "línea 1\r\nlínea 2") {
		t.Fatalf("unexpected message %q", text)
	}
	if !strings.Contains(text, "=?utf-8?q?") {
		t.Fatalf("subject should be encoded: %q", text)
	}
}

func TestComposeDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := string(compose("a@b.cl", Message{To: "c@d.cl", Subject: "plain", Body: "x"}, now))
	if !strings.Contains(msg, "Date: Fri, 01 Mar 2024 10:00:00 +0000") {
		t.Fatalf("missing date header: %q", msg)
	}
}
