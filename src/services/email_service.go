package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// EmailService sends transactional email via Mailgun. Used by the report
// scheduler to deliver progress, attendance and discipline summaries to
// parents.
type EmailService struct {
	mg        *mailgun.MailgunImpl
	fromEmail string
	fromName  string
	domain    string
}

// NewEmailService creates a new email service with Mailgun configuration.
func NewEmailService(domain, apiKey, fromEmail, fromName string) *EmailService {
	mg := mailgun.NewMailgun(domain, apiKey)
	mg.SetAPIBase(mailgun.APIBaseEU) // EU endpoint for GDPR compliance

	return &EmailService{
		mg:        mg,
		fromEmail: fromEmail,
		fromName:  fromName,
		domain:    domain,
	}
}

// Enabled reports whether the service has usable credentials.
func (s *EmailService) Enabled() bool {
	return s.domain != ""
}

// SendReport sends a report email. The plain-text body is mandatory; the
// HTML body is attached when non-empty.
func (s *EmailService) SendReport(ctx context.Context, toEmail, subject, textBody, htmlBody string) error {
	message := s.mg.NewMessage(
		fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		subject,
		textBody,
		toEmail,
	)
	if htmlBody != "" {
		message.SetHtml(htmlBody)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, _, err := s.mg.Send(sendCtx, message)
	if err != nil {
		return fmt.Errorf("failed to send report email to %s: %w", toEmail, err)
	}
	return nil
}
