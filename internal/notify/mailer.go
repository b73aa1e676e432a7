package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

const (
	maxSendAttempts = 3
	initialDelay    = 500 * time.Millisecond
	maxDelay        = 10 * time.Second
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay, retrying transient failures with
// exponential backoff.
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	from     string
	send     sendFunc
	attempts uint
	delay    time.Duration
}

// NewSMTPMailer builds a mailer for addr (host:port). Auth is only used when
// user is set.
func NewSMTPMailer(addr, user, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTPMailer{
		addr:     addr,
		auth:     auth,
		from:     from,
		send:     smtp.SendMail,
		attempts: maxSendAttempts,
		delay:    initialDelay,
	}
}

// Send delivers msg. An empty recipient is an error; callers skip those.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("send mail: empty recipient")
	}
	raw := m.render(msg)
	err := retry.Do(
		func() error {
			return m.send(m.addr, m.auth, m.from, []string{msg.To}, raw)
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("mail to %s: retry %d: %v", msg.To, n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", headerSafe(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct{}

// Send logs msg.
func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("mail to %s: %s", msg.To, msg.Subject)
	return nil
}
