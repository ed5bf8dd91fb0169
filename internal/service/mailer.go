package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
)

// smtpMode selects how the connection to the relay is secured
type smtpMode int

const (
	// smtpPlain talks to a local relay without TLS or auth (MailHog, postfix on loopback)
	smtpPlain smtpMode = iota
	// smtpStartTLS upgrades the connection, usually on port 587
	smtpStartTLS
	// smtpImplicitTLS dials TLS directly, usually on port 465
	smtpImplicitTLS
)

// Mailer sends HTML notifications over SMTP / Envoie les notifications HTML via SMTP
type Mailer struct {
	conf config.SMTPConfig
	mode smtpMode
	now  func() time.Time
}

// NewMailer validates the SMTP settings / Valide les paramètres SMTP
func NewMailer(conf config.SMTPConfig) (*Mailer, error) {
	if conf.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if conf.Port <= 0 || conf.Port > 65535 {
		return nil, fmt.Errorf("smtp port %d out of range", conf.Port)
	}
	if conf.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	return &Mailer{conf: conf, mode: modeFor(conf), now: time.Now}, nil
}

func modeFor(conf config.SMTPConfig) smtpMode {
	switch {
	case conf.Port == 465:
		return smtpImplicitTLS
	case conf.Username == "" && isLoopback(conf.Host):
		return smtpPlain
	default:
		return smtpStartTLS
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Send delivers one message / Envoie un message
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := m.compose(to, subject, body)
	addr := net.JoinHostPort(m.conf.Host, strconv.Itoa(m.conf.Port))

	done := make(chan error, 1)
	go func() { done <- m.deliver(ctx, addr, to, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) auth() smtp.Auth {
	if m.conf.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", m.conf.Username, m.conf.Password, m.conf.Host)
}

func (m *Mailer) deliver(ctx context.Context, addr, to string, msg []byte) error {
	if m.mode != smtpImplicitTLS {
		// SendMail negotiates STARTTLS whenever the server offers it
		return smtp.SendMail(addr, m.auth(), m.conf.From, []string{to}, msg)
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.conf.Host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, m.conf.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if a := m.auth(); a != nil {
		if err := client.Auth(a); err != nil {
			return err
		}
	}
	if err := client.Mail(m.conf.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// compose builds the RFC 5322 message with a fixed header order
// compose construit le message RFC 5322 avec un ordre d'en-têtes fixe
func (m *Mailer) compose(to, subject, body string) []byte {
	domain := "localhost"
	if i := strings.LastIndex(m.conf.From, "@"); i >= 0 {
		domain = strings.Trim(m.conf.From[i+1:], "> ")
	}

	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", m.conf.From)
	header("To", to)
	header("Subject", mime.BEncoding.Encode("utf-8", subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+domain+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}
