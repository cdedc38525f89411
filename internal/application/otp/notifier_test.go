package otp

import (
	"context"
	"testing"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	to, subject, body string
	err               error
}

func (m *captureMailer) SendEmail(to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestEmailNotifier_SigninMessage(t *testing.T) {
	m := &captureMailer{}
	n := NewEmailNotifier(m, 10*time.Minute)

	err := n.Send(context.Background(), "traveler@example.com", "123456", domain.PurposeSignin, "Ada")
	require.NoError(t, err)

	assert.Equal(t, "traveler@example.com", m.to)
	assert.Equal(t, "Your sign-in code", m.subject)
	assert.Contains(t, m.body, "Hi Ada,")
	assert.Contains(t, m.body, "123456")
	assert.Contains(t, m.body, "10 minutes")
}

func TestEmailNotifier_SignupMessage(t *testing.T) {
	m := &captureMailer{}
	n := NewEmailNotifier(m, 10*time.Minute)

	err := n.Send(context.Background(), "new@example.com", "654321", domain.PurposeSignup, "")
	require.NoError(t, err)

	assert.Equal(t, "Confirm your email address", m.subject)
	assert.Contains(t, m.body, "Hello,")
	assert.Contains(t, m.body, "654321")
}

func TestEmailNotifier_PropagatesSendError(t *testing.T) {
	m := &captureMailer{err: assert.AnError}
	n := NewEmailNotifier(m, 10*time.Minute)

	err := n.Send(context.Background(), "x@example.com", "111111", domain.PurposeSignin, "")
	assert.Error(t, err)
}
