package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	"github.com/avatarctic/wiki-contributions/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// EmailConfig holds email service configuration
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SiteName       string
}

// sender is the subset of *sendgrid.Client used here.
type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailService delivers verification codes through SendGrid
type EmailService struct {
	config    *EmailConfig
	logger    *logrus.Logger
	client    sender
	templates map[string]*template.Template
}

var _ ports.EmailService = (*EmailService)(nil)

// NewEmailService creates a new email service instance
func NewEmailService(config *EmailConfig, logger *logrus.Logger) (*EmailService, error) {
	return newEmailService(config, logger, sendgrid.NewSendClient(config.SendGridAPIKey))
}

func newEmailService(config *EmailConfig, logger *logrus.Logger, client sender) (*EmailService, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}
	return &EmailService{
		config:    config,
		logger:    logger,
		client:    client,
		templates: templates,
	}, nil
}

// loadTemplates parses all email templates from the embedded filesystem
func loadTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	for _, name := range []string{"verification_code"} {
		tmpl, err := template.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

// sendEmail sends an email using SendGrid. Recipients are logged masked.
func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent string) error {
	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	recipient := mail.NewEmail("", to)

	message := mail.NewSingleEmail(from, subject, recipient, "", htmlContent)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"to":      utils.MaskEmail(to),
				"subject": subject,
			}).WithError(err).Error("Failed to send email")
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"to":          utils.MaskEmail(to),
				"status_code": response.StatusCode,
			}).Error("Email provider rejected message")
		}
		return fmt.Errorf("email provider returned status %d", response.StatusCode)
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"to":          utils.MaskEmail(to),
			"subject":     subject,
			"status_code": response.StatusCode,
		}).Info("Email sent successfully")
	}

	return nil
}

// renderTemplate renders an email template with the provided data
func (e *EmailService) renderTemplate(templateName string, data interface{}) (string, error) {
	tmpl, exists := e.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// VerificationCodeData holds data for the verification code template
type VerificationCodeData struct {
	SiteName     string
	Code         string
	ValidMinutes int
}

// SendVerificationCode emails a one-time code to the address being verified
func (e *EmailService) SendVerificationCode(ctx context.Context, email, code string, validFor time.Duration) error {
	data := VerificationCodeData{
		SiteName:     e.config.SiteName,
		Code:         code,
		ValidMinutes: int(validFor.Minutes()),
	}

	htmlContent, err := e.renderTemplate("verification_code", data)
	if err != nil {
		return fmt.Errorf("failed to render verification code template: %w", err)
	}

	subject := fmt.Sprintf("Your %s verification code", e.config.SiteName)

	return e.sendEmail(ctx, email, subject, htmlContent)
}
