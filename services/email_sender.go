package services

import (
	"fmt"
	"io"

	"exam-portal/config"
	"exam-portal/logger"

	"gopkg.in/gomail.v2"
)

// Attachment is an in-memory mail attachment.
type Attachment struct {
	Name string
	Data []byte
}

// Mailer sends HTML mail.
type Mailer interface {
	Send(to, subject, htmlBody string, attachments ...Attachment) error
}

// SMTPSender sends mail via SMTP
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewSMTPSender builds a sender from config. EMAIL_FROM defaults to SMTP_USER.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	if from == "" {
		return nil, fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		return nil, fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPass,
		from:     from,
	}, nil
}

func (s *SMTPSender) Send(to, subject, htmlBody string, attachments ...Attachment) error {
	logger.Info("[EMAIL] Sending via SMTP - Recipient: %s", to)

	m := buildMessage(s.from, to, subject, htmlBody, attachments...)

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(m); err != nil {
		logger.Error("[EMAIL] Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("[EMAIL] Sent to: %s", to)
	return nil
}

func buildMessage(from, to, subject, htmlBody string, attachments ...Attachment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	for _, a := range attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return m
}
