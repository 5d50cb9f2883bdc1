package services

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Mailer delivers transactional email. When SMTP is not configured it runs in
// a disabled mode: delivery is skipped and reported so callers can surface
// codes directly instead.
type Mailer struct {
	host string
	port string
	user string
	pass string
	from string
	log  *zap.Logger
}

// NewMailer constructs a Mailer. Empty host means disabled mode.
func NewMailer(host, port, user, pass, from string, log *zap.Logger) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from, log: log}
}

// Enabled reports whether a real delivery path is configured.
func (m *Mailer) Enabled() bool {
	return m.host != ""
}

// Send delivers a plain-text message to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		m.log.Info("mailer disabled, skipping delivery", zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body))

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		m.log.Error("mail delivery failed", zap.String("to", to), zap.Error(err))
		return err
	}

	return nil
}

// SendOTP delivers a one-time code for the given purpose.
func (m *Mailer) SendOTP(to, purpose, code string) error {
	subject := "Your ShopStreak verification code"
	if purpose == "password_reset" {
		subject = "Your ShopStreak password reset code"
	}
	body := fmt.Sprintf("Your one-time code is %s. It expires in 10 minutes.", code)
	return m.Send(to, subject, body)
}
