package notify

import (
	"context"
	"testing"
	"time"
)

func TestNopSender(t *testing.T) {
	err := NopSender{}.SendInvitation(context.Background(), InvitationEmail{
		ToEmail:          "teacher@example.com",
		OrganizationName: "Springfield Academy",
	})
	if err != nil {
		t.Errorf("NopSender.SendInvitation() error: %v", err)
	}
}

func TestSMTPSender_UnreachableHost(t *testing.T) {
	// Port 1 is always refused, so delivery must fail fast with an error
	// rather than hanging or succeeding silently.
	s := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: 1,
		From: "noreply@classdesk.example",
	})

	err := s.SendInvitation(context.Background(), InvitationEmail{
		ToEmail:          "teacher@example.com",
		OrganizationName: "Springfield Academy",
		InviterName:      "Edna Krabappel",
		Role:             "MANAGER",
		Token:            "cdi_testtoken",
		AcceptBaseURL:    "https://app.classdesk.example",
		ExpiresAt:        time.Now().Add(7 * 24 * time.Hour),
	})
	if err == nil {
		t.Error("SendInvitation() expected error for unreachable SMTP host, got nil")
	}
}
