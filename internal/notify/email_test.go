package notify

import (
	"context"
	"errors"
	gosmtp "net/smtp"
	"strings"
	"testing"
)

func TestEmailSenderBuildsMessage(t *testing.T) {
	var capturedAddr, capturedFrom string
	var capturedTo []string
	var capturedMsg []byte

	sender := NewEmailSender(EmailConfig{
		Host: "smtp.example.com",
		Port: 2525,
		From: "Jira Bridge <bot@example.com>",
	})
	sender.sendMail = func(addr string, auth gosmtp.Auth, from string, to []string, msg []byte) error {
		capturedAddr, capturedFrom, capturedTo, capturedMsg = addr, from, to, msg
		return nil
	}

	err := sender.Send(context.Background(), "dana@example.com", "Connected to Jira", "You are connected.")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if capturedAddr != "smtp.example.com:2525" {
		t.Fatalf("unexpected addr: %s", capturedAddr)
	}
	if capturedFrom != "bot@example.com" {
		t.Fatalf("unexpected from: %s", capturedFrom)
	}
	if len(capturedTo) != 1 || capturedTo[0] != "dana@example.com" {
		t.Fatalf("unexpected to: %v", capturedTo)
	}
	message := string(capturedMsg)
	if !strings.Contains(message, "Subject: Connected to Jira") {
		t.Fatalf("missing subject: %s", message)
	}
	if !strings.Contains(message, "You are connected.") {
		t.Fatalf("missing body: %s", message)
	}
}

func TestEmailSenderHeaderInjectionStripped(t *testing.T) {
	var capturedMsg []byte
	sender := NewEmailSender(EmailConfig{Host: "smtp.example.com", From: "bot@example.com"})
	sender.sendMail = func(addr string, auth gosmtp.Auth, from string, to []string, msg []byte) error {
		capturedMsg = msg
		return nil
	}

	if err := sender.Send(context.Background(), "dana@example.com", "hi\r\nBcc: evil@example.com", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if strings.Contains(string(capturedMsg), "\r\nBcc:") {
		t.Fatal("newlines must not survive into headers")
	}
}

func TestEmailSenderValidation(t *testing.T) {
	sender := NewEmailSender(EmailConfig{})
	if sender.Enabled() {
		t.Fatal("expected disabled sender without host")
	}
	if err := sender.Send(context.Background(), "dana@example.com", "s", "b"); err == nil {
		t.Fatal("expected error without smtp host")
	}

	sender = NewEmailSender(EmailConfig{Host: "smtp.example.com", From: "bot@example.com"})
	sender.sendMail = func(addr string, auth gosmtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("should not be called")
	}
	if err := sender.Send(context.Background(), "not-an-address", "s", "b"); err == nil {
		t.Fatal("expected invalid recipient error")
	}
}
