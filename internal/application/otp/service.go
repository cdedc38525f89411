package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/pkg/id"
	"github.com/concierge-api/internal/pkg/otpcode"
	pkgtoken "github.com/concierge-api/internal/pkg/token"
)

// endpointRequestCode is the logical endpoint name used for rate-limit keys.
const endpointRequestCode = "request-code"

type RequestCodeInput struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required,oneof=signup signin"`
	// Signup staging fields, consumed server-side once the code verifies.
	Password  string `json:"password" validate:"required_if=Purpose signup,omitempty,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required_if=Purpose signup,omitempty,max=80"`
	LastName  string `json:"last_name" validate:"omitempty,max=80"`
}

type VerifyCodeInput struct {
	Email   string `json:"email" validate:"required,email"`
	Code    string `json:"code" validate:"required,numeric,min=4,max=10"`
	Purpose string `json:"purpose" validate:"required,oneof=signup signin"`
}

// AuthResult is what a successful verification yields: an authenticated session.
type AuthResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	// RequestCode issues and delivers a fresh code, invalidating any prior
	// unused code for the same (email, purpose). Returns the code lifetime
	// in seconds.
	RequestCode(ctx context.Context, in RequestCodeInput) (expiresIn int, err error)
	// VerifyCode checks a submitted code and, on success, completes the
	// purpose (account creation or account lookup) and mints a session.
	VerifyCode(ctx context.Context, in VerifyCodeInput) (*AuthResult, error)
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.OTPRecord, error)
	MarkUsed(ctx context.Context, email string, purpose domain.Purpose, code string, now int64) error
	Delete(ctx context.Context, email string, purpose domain.Purpose, code string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type pendingSignupStore interface {
	Put(ctx context.Context, p *domain.PendingSignup) error
	Get(ctx context.Context, email string) (*domain.PendingSignup, error)
	Delete(ctx context.Context, email string) error
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type service struct {
	otpRepo     otpStore
	userRepo    userStore
	sessionRepo sessionStore
	pendingRepo pendingSignupStore
	limiter     *Limiter
	notifier    Notifier
	jwtProvider jwtSigner

	codeLength      int
	codeExpiry      time.Duration
	pendingTTL      time.Duration
	refreshTokenDur time.Duration
}

type ServiceDeps struct {
	OTPRepo         otpStore
	UserRepo        userStore
	SessionRepo     sessionStore
	PendingRepo     pendingSignupStore
	Limiter         *Limiter
	Notifier        Notifier
	JWTProvider     jwtSigner
	CodeLength      int
	CodeExpiry      time.Duration
	PendingTTL      time.Duration
	RefreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otpRepo:         deps.OTPRepo,
		userRepo:        deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		pendingRepo:     deps.PendingRepo,
		limiter:         deps.Limiter,
		notifier:        deps.Notifier,
		jwtProvider:     deps.JWTProvider,
		codeLength:      deps.CodeLength,
		codeExpiry:      deps.CodeExpiry,
		pendingTTL:      deps.PendingTTL,
		refreshTokenDur: deps.RefreshTokenDur,
	}
}

func (s *service) RequestCode(ctx context.Context, in RequestCodeInput) (int, error) {
	email := NormalizeEmail(in.Email)
	purpose := domain.Purpose(in.Purpose)
	if !purpose.Valid() {
		return 0, fmt.Errorf("unknown purpose %q: %w", in.Purpose, domain.ErrBadRequest)
	}

	if !s.limiter.Allow(ctx, email, endpointRequestCode) {
		return 0, fmt.Errorf("too many code requests for %s: %w", email, domain.ErrRateLimited)
	}

	flow := s.flowFor(purpose)
	if err := flow.stage(ctx, email, in); err != nil {
		return 0, err
	}

	code, err := otpcode.New(s.codeLength)
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", domain.ErrDeliveryFailed)
	}
	now := time.Now().UTC()
	rec := &domain.OTPRecord{
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		Channel:   domain.ChannelEmail,
		IsUsed:    false,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.codeExpiry).Unix(),
	}
	// Put overwrites any existing (email, purpose) record: only the newest
	// issued code can ever verify.
	if err := s.otpRepo.Put(ctx, rec); err != nil {
		return 0, fmt.Errorf("store code: %w", domain.ErrDeliveryFailed)
	}

	if err := s.notifier.Send(ctx, email, code, purpose, s.displayName(ctx, email, in)); err != nil {
		// A stored code whose delivery failed must never verify; roll it back.
		// The delete is conditioned on the code so a concurrent newer request
		// that already replaced the row is left alone.
		if delErr := s.otpRepo.Delete(ctx, email, purpose, code); delErr != nil {
			slog.Warn("failed to roll back undelivered otp", "email", email, "purpose", purpose, "err", delErr)
		}
		return 0, fmt.Errorf("send code: %w", domain.ErrDeliveryFailed)
	}

	return int(s.codeExpiry.Seconds()), nil
}

func (s *service) VerifyCode(ctx context.Context, in VerifyCodeInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	purpose := domain.Purpose(in.Purpose)
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", in.Purpose, domain.ErrBadRequest)
	}

	rec, err := s.otpRepo.Get(ctx, email, purpose)
	if err != nil {
		// Missing and expired records collapse into the same generic outcome.
		return nil, fmt.Errorf("no verifiable code: %w", domain.ErrCodeInvalid)
	}
	now := time.Now().Unix()
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(in.Code)) != 1 {
		return nil, fmt.Errorf("code mismatch: %w", domain.ErrCodeInvalid)
	}
	// The bound is inclusive: a code presented at exactly its expiry instant
	// still verifies.
	if rec.IsUsed || rec.ExpiresAt < now {
		return nil, fmt.Errorf("code no longer valid: %w", domain.ErrCodeInvalid)
	}

	// The conditional mark-used is the authoritative check: it can only
	// succeed for one concurrent caller, and it happens before any side
	// effect (account creation, session issuance) becomes visible.
	if err := s.otpRepo.MarkUsed(ctx, email, purpose, in.Code, now); err != nil {
		return nil, err
	}

	u, err := s.flowFor(purpose).complete(ctx, email)
	if err != nil {
		return nil, err
	}

	result, err := s.mintSession(ctx, u)
	if err != nil {
		return nil, err
	}

	// The used record is dead weight; TTL would sweep it anyway.
	if err := s.otpRepo.Delete(ctx, email, purpose, in.Code); err != nil {
		slog.Warn("failed to delete used otp record", "email", email, "purpose", purpose, "err", err)
	}
	return result, nil
}

// mintSession establishes an authenticated session for a verified account:
// one direct step, no secondary passwordless mechanism.
func (s *service) mintSession(ctx context.Context, u *domain.User) (*AuthResult, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return &AuthResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

// displayName picks the first name to personalize the notification with.
// Signup carries it in the request; signin looks the account up best-effort.
func (s *service) displayName(ctx context.Context, email string, in RequestCodeInput) string {
	if in.FirstName != "" {
		return in.FirstName
	}
	if u, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return u.FirstName
	}
	return ""
}

// NormalizeEmail lower-cases and trims an address so lookups and rate-limit
// keys are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
