package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/infrastructure/smtp"
)

// Notifier delivers a one-time code to its recipient. Email is the only
// channel today; an SMS implementation would satisfy the same contract.
type Notifier interface {
	Send(ctx context.Context, recipient, code string, purpose domain.Purpose, displayName string) error
}

type emailNotifier struct {
	mailer smtp.Mailer
	expiry time.Duration
}

func NewEmailNotifier(mailer smtp.Mailer, expiry time.Duration) Notifier {
	return &emailNotifier{mailer: mailer, expiry: expiry}
}

func (n *emailNotifier) Send(_ context.Context, recipient, code string, purpose domain.Purpose, displayName string) error {
	subject := "Your sign-in code"
	intro := "Use this code to sign in to your account"
	if purpose == domain.PurposeSignup {
		subject = "Confirm your email address"
		intro = "Use this code to finish creating your account"
	}

	greeting := "Hello,"
	if displayName != "" {
		greeting = fmt.Sprintf("Hi %s,", displayName)
	}

	body := fmt.Sprintf(
		"%s\n\n%s:\n\n    %s\n\nThe code expires in %d minutes. If you didn't request it, you can ignore this email.\n",
		greeting, intro, code, int(n.expiry.Minutes()),
	)
	return n.mailer.SendEmail(recipient, subject, body)
}
