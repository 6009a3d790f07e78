package email

import (
	"context"
	"errors"
	"time"

	"coprox/internal/config"

	"go.uber.org/zap"
)

type EmailService interface {
	// Send records the email and delivers it in the background.
	Send(ctx context.Context, configName string, to []string, subject, body string) error
}

type EmailServiceImpl struct {
	repo   EmailRepository
	smtp   SMTPConfig
	send   func(SMTPConfig, *Email) error
	logger *zap.Logger
}

func NewEmailService(repo EmailRepository, cfg *config.Config, logger *zap.Logger) EmailService {
	return &EmailServiceImpl{
		repo:   repo,
		smtp:   NewSMTPConfig(cfg),
		send:   SendSMTP,
		logger: logger.Named("email"),
	}
}

func (s *EmailServiceImpl) Send(ctx context.Context, configName string, to []string, subject, body string) error {
	if len(to) == 0 {
		return errors.New("recipient required")
	}

	email := &Email{
		From:     s.smtp.From,
		To:       to,
		Subject:  subject,
		HtmlBody: body,
		Status:   EmailQueued,
		Config:   configName,
	}
	if !s.smtp.Enabled() {
		email.Status = EmailSkipped
	}
	if err := s.repo.Create(ctx, email); err != nil {
		return err
	}

	if email.Status == EmailSkipped {
		s.logger.Info("SMTP not configured, notification not sent",
			zap.String("config", configName),
			zap.Strings("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	go s.process(email)
	return nil
}

func (s *EmailServiceImpl) process(email *Email) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.send(s.smtp, email); err != nil {
		s.logger.Error("Failed to send email", zap.String("config", email.Config), zap.Error(err))
		_ = s.repo.UpdateStatus(ctx, email.ID, EmailFailed, err.Error())
		return
	}
	_ = s.repo.UpdateStatus(ctx, email.ID, EmailSent, "")
}
