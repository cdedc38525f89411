package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// purposeFlow is the per-purpose behavior behind the shared request/verify
// machinery. Each purpose is a variant, not a string branch in the verifier.
type purposeFlow interface {
	// stage runs at request time, before the code is issued.
	stage(ctx context.Context, email string, in RequestCodeInput) error
	// complete runs after the code verified; it returns the account the
	// session should be minted for.
	complete(ctx context.Context, email string) (*domain.User, error)
}

func (s *service) flowFor(purpose domain.Purpose) purposeFlow {
	if purpose == domain.PurposeSignup {
		return &signupFlow{users: s.userRepo, pending: s.pendingRepo, pendingTTL: s.pendingTTL}
	}
	return &signinFlow{users: s.userRepo}
}

// signupFlow stages profile data server-side at request time and creates the
// account once the email is proven.
type signupFlow struct {
	users      userStore
	pending    pendingSignupStore
	pendingTTL time.Duration
}

func (f *signupFlow) stage(ctx context.Context, email string, in RequestCodeInput) error {
	// Hash before storing; the plaintext password never leaves this frame.
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return f.pending.Put(ctx, &domain.PendingSignup{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(f.pendingTTL).Unix(),
	})
}

func (f *signupFlow) complete(ctx context.Context, email string) (*domain.User, error) {
	staged, err := f.pending.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("no staged signup for %s: %w", email, domain.ErrBadRequest)
	}
	// Consume the staged credentials no matter how completion ends.
	defer func() {
		if err := f.pending.Delete(ctx, email); err != nil {
			slog.Warn("failed to delete pending signup", "email", email, "err", err)
		}
	}()

	if _, err := f.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		PasswordHash: staged.PasswordHash,
		FirstName:    staged.FirstName,
		LastName:     staged.LastName,
		Role:         domain.RoleUser,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.users.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// signinFlow authenticates an existing account. Nothing is staged at request
// time, and account existence is not checked until the code has verified, so
// request-code leaks nothing about who is registered.
type signinFlow struct {
	users userStore
}

func (f *signinFlow) stage(context.Context, string, RequestCodeInput) error { return nil }

func (f *signinFlow) complete(ctx context.Context, email string) (*domain.User, error) {
	u, err := f.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("no account for %s: %w", email, domain.ErrAccountNotFound)
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	return u, nil
}
