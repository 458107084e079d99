// Package mailer is the SMTP collaborator used by the logger's email
// sink. It is deliberately small: one message in, one connection out,
// no queueing of its own (batching lives in the sink) and no retries.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/matjazt/svcwatchdog/internal/config"
)

// Config is the SMTP credentials section consumed by the mailer, read
// from an arbitrary, caller-supplied section name.
type Config struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
	UseTLS   bool
}

// LoadConfig reads an SMTP section. password is resolved by the caller
// (typically via wdcrypto.GetPossiblyEncrypted) and passed in directly,
// since the mailer package has no crypto dependency of its own.
func LoadConfig(cfg *config.Store, section, password string) Config {
	return Config{
		Host:     cfg.GetString(section, "host", "localhost"),
		Port:     config.GetNumber[int](cfg, section, "port", 587),
		From:     cfg.GetString(section, "from", ""),
		User:     cfg.GetString(section, "user", ""),
		Password: password,
		UseTLS:   cfg.GetBool(section, "useTls", true),
	}
}

// Message is a fully-formed plain-text email, one or more recipients.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender sends Messages over SMTP. It is safe for concurrent use; each
// Send opens and tears down its own connection.
type Sender struct {
	cfg Config
}

// New returns a Sender bound to cfg.
func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send delivers msg, aborting if ctx is done first (used to implement the
// sink's still-running-vs-shutdown timeout distinction).
func (s *Sender) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailer: failed to connect to '%s': %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("mailer: failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("mailer: STARTTLS failed: %w", err)
			}
		}
	}

	if s.cfg.User != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mailer: authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: MAIL FROM failed: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("mailer: RCPT TO '%s' failed: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailer: DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(buildRFC822(s.cfg.From, msg))); err != nil {
		return fmt.Errorf("mailer: writing message body failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: closing message body failed: %w", err)
	}

	return client.Quit()
}

func buildRFC822(from string, msg Message) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.String()
}

// DefaultSendTimeout is used when the caller wants smtp's "default"
// behaviour rather than a shortened shutdown deadline.
const DefaultSendTimeout = 30 * time.Second
