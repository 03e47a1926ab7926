// Package notify sends the validation report by email after scheduled
// runs. It stays quiet unless SMTP is configured; a failed notification
// is logged by the caller, never fatal.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/fkoester/sevactual/internal/config"
	"github.com/fkoester/sevactual/internal/report"
	"github.com/fkoester/sevactual/internal/storage"
)

// Mailer sends notification emails via SMTP.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer from SMTP config.
func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Enabled reports whether notifications are configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.cfg.From != "" && len(m.cfg.To) > 0
}

// SendInvalidVouchers mails the invalid-voucher report. It does nothing
// when notifications are disabled or there is nothing to report.
func (m *Mailer) SendInvalidVouchers(vouchers []*storage.VoucherRecord) error {
	if !m.Enabled() {
		m.logger.Debug("email notifications disabled")
		return nil
	}
	if len(vouchers) == 0 {
		return nil
	}

	subject := fmt.Sprintf("sevactual: %d invalid voucher(s) need attention", len(vouchers))
	body := report.Render(vouchers, time.Now())

	msg := buildMessage(m.cfg.From, m.cfg.To, subject, body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	m.logger.Info("sent invalid voucher notification",
		"recipients", len(m.cfg.To), "vouchers", len(vouchers))
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
