package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// EmailConfig holds SMTP settings for an EmailNotifier.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	To       string
	// TLSConfig overrides the TLS settings; nil uses the system roots.
	TLSConfig *tls.Config
}

// EmailNotifier sends alerts via email using SMTP.
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates a new EmailNotifier. The recipient defaults to the sender.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.To == "" {
		cfg.To = cfg.From
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}
	return &EmailNotifier{cfg: cfg}
}

// Name returns the name of the channel.
func (e *EmailNotifier) Name() string {
	return "email"
}

// Notify sends the alert email.
func (e *EmailNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := e.send(ctx, e.buildMessage(alert, time.Now())); err != nil {
		return apperrors.NewNotifyError(alert.Symbol, e.Name(), err)
	}
	return nil
}

func (e *EmailNotifier) buildMessage(alert models.Alert, now time.Time) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.cfg.From, e.cfg.To, FormatSubject(alert), now.Format(time.RFC1123Z), FormatBody(alert))
}

func (e *EmailNotifier) tlsConfig() *tls.Config {
	if e.cfg.TLSConfig != nil {
		return e.cfg.TLSConfig
	}
	return &tls.Config{ServerName: e.cfg.SMTPHost}
}

func (e *EmailNotifier) send(ctx context.Context, msg string) error {
	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Implicit TLS on 465, STARTTLS when offered otherwise
	if e.cfg.SMTPPort == 465 {
		tlsConn := tls.Client(conn, e.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if e.cfg.SMTPPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(e.tlsConfig()); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if e.cfg.Password != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	if err := client.Rcpt(e.cfg.To); err != nil {
		return fmt.Errorf("SMTP RCPT command failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
