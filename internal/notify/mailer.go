// Package notify delivers invitation emails. Delivery is best effort: the invitation
// row is the source of truth and a failed or disabled email never rolls back the
// invitation, so senders log failures instead of returning them up the request path.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// InvitationEmail carries everything needed to compose one invitation message.
// Token is the plaintext invitation token; it exists only in memory here and in
// the recipient's inbox.
type InvitationEmail struct {
	ToEmail          string
	OrganizationName string
	InviterName      string
	Role             string
	Token            string
	AcceptBaseURL    string
	ExpiresAt        time.Time
}

// Sender delivers invitation emails.
type Sender interface {
	SendInvitation(ctx context.Context, email InvitationEmail) error
}

// SMTPConfig holds SMTP delivery settings from the notifications config section.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// SMTPSender sends invitation emails over SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendInvitation composes and delivers a plain-text invitation email.
func (s *SMTPSender) SendInvitation(_ context.Context, email InvitationEmail) error {
	subject := fmt.Sprintf("You've been invited to join %s on ClassDesk", email.OrganizationName)

	acceptURL := strings.TrimRight(email.AcceptBaseURL, "/") + "/invitations/" + email.Token
	body := strings.Join([]string{
		"Hello,",
		"",
		fmt.Sprintf("%s has invited you to join %s on ClassDesk as %s.",
			email.InviterName, email.OrganizationName, email.Role),
		"",
		"To accept the invitation, open the link below and sign in with this email address:",
		"  " + acceptURL,
		"",
		fmt.Sprintf("This invitation expires on %s.", email.ExpiresAt.UTC().Format(time.RFC1123)),
		"",
		"If you weren't expecting this invitation, you can ignore this email.",
		"",
		"ClassDesk",
	}, "\r\n")

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		s.cfg.From, email.ToEmail, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if s.cfg.UseTLS {
		return sendMailTLS(addr, s.cfg.Host, auth, s.cfg.From, []string{email.ToEmail}, msg)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{email.ToEmail}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// For port 587 STARTTLS, smtp.SendMail handles the upgrade automatically; we fall
// back to that path if the TLS dial fails so UseTLS=true always means an
// encrypted connection either way.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

// NopSender discards invitation emails. Used when notifications are disabled or
// the SMTP host is not configured, so invitation flows behave identically in
// environments without a mail server.
type NopSender struct{}

// SendInvitation logs and drops the message.
func (NopSender) SendInvitation(_ context.Context, email InvitationEmail) error {
	slog.Debug("invitation email suppressed (notifications disabled)",
		"to", email.ToEmail, "organization", email.OrganizationName)
	return nil
}
