package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/env"
)

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// NotifyClaimSubmitted tells the operator inbox that a manual payment claim
// is waiting for review. Failures are logged and swallowed; claim intake
// never depends on the mail relay.
func NotifyClaimSubmitted(claim *models.PendingPayment) {
	operator := env.GetEnv("CLAIMS_NOTIFY_EMAIL", "")
	if operator == "" {
		return
	}

	subject := fmt.Sprintf("Payment claim pending review: %s", claim.UUID)
	body := fmt.Sprintf(
		"<p>A new payment claim is waiting for review.</p>"+
			"<ul>"+
			"<li>Claim: %s</li>"+
			"<li>Email: %s</li>"+
			"<li>Transaction reference: %s</li>"+
			"<li>Amount: %d</li>"+
			"<li>Plan: %s</li>"+
			"</ul>",
		claim.UUID, claim.Email, claim.ClaimedTransactionID, claim.ClaimedAmount, claim.PlanType,
	)

	if err := SendMail(operator, subject, body); err != nil {
		log.Printf("claim notification for %s failed: %v", claim.UUID, err)
	}
}
