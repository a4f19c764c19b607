package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Mailer sends HTML email over SMTP.
type Mailer struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Research Showcase <no-reply@your.org>"
	SkipTLSVerify bool
}

// NewMailer returns a Mailer using the SMTP_* settings of c.
func NewMailer(c *Config) *Mailer {
	port := c.SMTPPort
	if port == 0 {
		port = 587
	}
	return &Mailer{
		Host:          c.SMTPHost,
		Port:          port,
		User:          c.SMTPUser,
		Pass:          c.SMTPPass,
		From:          c.SMTPFrom,
		SkipTLSVerify: c.SMTPSkipTLSVerify,
	}
}

// Configured reports whether a host and sender are set.
func (m *Mailer) Configured() bool {
	return m != nil && m.Host != "" && m.From != ""
}

func (m *Mailer) SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.Host, m.Port, m.User, m.Pass)

	// Mandatory STARTTLS on 587 (Gmail/Office365).
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.Host,
		InsecureSkipVerify: m.SkipTLSVerify, // dev only
	}

	return d.DialAndSend(msg)
}
