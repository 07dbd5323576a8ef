package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"leadpilot/apperrors"
	"leadpilot/models"
)

// Email is one outbound message, already rendered.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// MailService delivers a rendered email and returns the Message-ID it was
// sent with. Implementations must respect context cancellation.
type MailService interface {
	Send(ctx context.Context, email Email) (string, error)
}

// SMTPMailer sends through one sender account's SMTP credentials.
type SMTPMailer struct {
	sender  models.SenderConfig
	timeout time.Duration
	log     *logrus.Entry
}

// NewSMTPMailer builds a mailer for the given sender account.
func NewSMTPMailer(sender models.SenderConfig, timeout time.Duration) *SMTPMailer {
	return &SMTPMailer{
		sender:  sender,
		timeout: timeout,
		log:     logrus.WithField("component", "mailer"),
	}
}

// Send delivers the email over SMTP. The dial-and-send runs in its own
// goroutine because the underlying client has no context support.
func (m *SMTPMailer) Send(ctx context.Context, email Email) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(m.sender.FromEmail))

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.sender.FromEmail, m.sender.FromName)
	msg.SetAddressHeader("To", email.To, email.ToName)
	msg.SetHeader("Subject", email.Subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", email.HTML)

	dialer := gomail.NewDialer(
		m.sender.SMTPHost,
		m.sender.SMTPPort,
		m.sender.SMTPUsername,
		m.sender.SMTPPassword,
	)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"to":   email.To,
				"from": m.sender.FromEmail,
			}).Warn("SMTP delivery failed")
			return "", apperrors.NewTransport("smtp send", err)
		}
	case <-ctx.Done():
		m.log.WithFields(logrus.Fields{
			"to":   email.To,
			"from": m.sender.FromEmail,
		}).Warn("SMTP delivery timed out")
		return "", apperrors.NewTransport("smtp send", ctx.Err())
	}

	m.log.WithFields(logrus.Fields{
		"to":         email.To,
		"from":       m.sender.FromEmail,
		"message_id": messageID,
	}).Info("email delivered")
	return messageID, nil
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return "localhost"
}
