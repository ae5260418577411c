package service

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/archaur/archaur/internal/logger"
)

// EmailService sends package notification mail to subscribed users.
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	log    *logger.Logger
}

// EmailConfig contains SMTP settings. An empty Host switches the
// service into log-only mode, which is how development runs.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewEmailService(cfg EmailConfig, log *logger.Logger) *EmailService {
	var dialer *gomail.Dialer
	if cfg.Host != "" {
		dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return &EmailService{dialer: dialer, from: cfg.From, log: log}
}

// NotifyUpdated mails every subscriber that a package was updated.
func (s *EmailService) NotifyUpdated(name, version string, recipients []string) {
	subject := fmt.Sprintf("Package %s updated", name)
	body := fmt.Sprintf(
		"The package %s has been updated to version %s.\n\n"+
			"You are receiving this mail because you subscribed to notifications for this package.\n",
		name, version)
	s.send(subject, body, recipients)
}

// NotifyDeleted mails every subscriber that a package was removed.
func (s *EmailService) NotifyDeleted(name string, recipients []string) {
	subject := fmt.Sprintf("Package %s deleted", name)
	body := fmt.Sprintf(
		"The package %s has been removed.\n\n"+
			"You are receiving this mail because you subscribed to notifications for this package.\n",
		name)
	s.send(subject, body, recipients)
}

func (s *EmailService) send(subject, body string, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	if s.dialer == nil {
		s.log.WithField("subject", subject).Infof("mail (dev mode, not sent) to %d recipients", len(recipients))
		return
	}

	for _, to := range recipients {
		m := gomail.NewMessage()
		m.SetHeader("From", s.from)
		m.SetHeader("To", to)
		m.SetHeader("Subject", subject)
		m.SetBody("text/plain", body)
		if err := s.dialer.DialAndSend(m); err != nil {
			s.log.WithField("to", to).Warnf("failed to send notification mail: %v", err)
		}
	}
}
