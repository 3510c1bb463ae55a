package notification

import (
	"fmt"
	"net/smtp"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// AcceptURL is the page on the root domain that consumes invite
	// tokens, e.g. "https://fractal.app/invite". The token is appended
	// as a query parameter.
	AcceptURL string
}

type EmailService struct {
	config EmailConfig
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendWorkspaceInvite delivers the invitation token for a workspace.
func (s *EmailService) SendWorkspaceInvite(to, workspaceName, token string) error {
	acceptURL := fmt.Sprintf("%s?token=%s", s.config.AcceptURL, token)
	subject := fmt.Sprintf("You've been invited to %s", workspaceName)
	body := fmt.Sprintf(`<html><body>
		<h2>You've been invited to join %s</h2>
		<p><a href="%s">Click here to accept the invitation</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This invitation will expire in 7 days.</p>
		<p>If you weren't expecting this invitation, you can ignore this email.</p>
	</body></html>`, workspaceName, acceptURL, acceptURL)
	return s.sendEmail(to, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
