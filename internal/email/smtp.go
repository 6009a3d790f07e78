package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"coprox/internal/config"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPConfig(cfg *config.Config) SMTPConfig {
	return SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0
}

// BuildMessage renders the headers in a fixed order followed by the HTML body.
func BuildMessage(email *Email) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", email.From},
		{"To", strings.Join(email.To, ", ")},
		{"Subject", email.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"UTF-8\""},
	}
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(email.HtmlBody)
	return []byte(b.String())
}

func SendSMTP(cfg SMTPConfig, email *Email) error {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return smtp.SendMail(addr, auth, email.From, email.To, BuildMessage(email))
}
