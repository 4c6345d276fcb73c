// Package mailer delivers transactional mail (invitations, password resets).
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/pkg/logger"
)

// Message is a plain text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when a host is configured and a logging mailer
// otherwise.
func New(cfg config.MailConfig, log *logger.Logger) Mailer {
	if log == nil {
		log = logger.NewDefault("mailer")
	}
	if strings.TrimSpace(cfg.Host) == "" {
		log.Warn("smtp host not configured; mails will only be logged")
		return &LogMailer{log: log}
	}
	return &SMTPMailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// SMTPMailer delivers through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg  config.MailConfig
	log  *logger.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, compose(m.cfg.From, msg, time.Now())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	m.log.WithField("to", msg.To).WithField("subject", msg.Subject).Info("mail sent")
	return nil
}

func compose(from string, msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

// LogMailer writes messages to the log. It keeps the last messages so tests
// and local runs can read confirmation links.
type LogMailer struct {
	log  *logger.Logger
	mu   sync.Mutex
	sent []Message
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(log *logger.Logger) *LogMailer {
	if log == nil {
		log = logger.NewDefault("mailer")
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	if len(m.sent) > 50 {
		m.sent = m.sent[1:]
	}
	m.mu.Unlock()

	m.log.WithField("to", msg.To).
		WithField("subject", msg.Subject).
		WithField("body", msg.Body).
		Info("mail not sent: smtp disabled")
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
