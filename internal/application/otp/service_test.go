package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockOTPStore struct{ mock.Mock }

func (m *mockOTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockOTPStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.OTPRecord, error) {
	args := m.Called(ctx, email, purpose)
	if rec, _ := args.Get(0).(*domain.OTPRecord); rec != nil {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPStore) MarkUsed(ctx context.Context, email string, purpose domain.Purpose, code string, now int64) error {
	return m.Called(ctx, email, purpose, code, now).Error(0)
}
func (m *mockOTPStore) Delete(ctx context.Context, email string, purpose domain.Purpose, code string) error {
	return m.Called(ctx, email, purpose, code).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

type mockPendingStore struct{ mock.Mock }

func (m *mockPendingStore) Put(ctx context.Context, p *domain.PendingSignup) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPendingStore) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	args := m.Called(ctx, email)
	if p, _ := args.Get(0).(*domain.PendingSignup); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPendingStore) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockRateLimitStore struct{ mock.Mock }

func (m *mockRateLimitStore) Get(ctx context.Context, limitKey string) (*domain.RateLimitRecord, error) {
	args := m.Called(ctx, limitKey)
	if rec, _ := args.Get(0).(*domain.RateLimitRecord); rec != nil {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRateLimitStore) Put(ctx context.Context, rec *domain.RateLimitRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockRateLimitStore) Increment(ctx context.Context, limitKey string, now int64) error {
	return m.Called(ctx, limitKey, now).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, recipient, code string, purpose domain.Purpose, displayName string) error {
	return m.Called(ctx, recipient, code, purpose, displayName).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

// --- helpers ---

type testDeps struct {
	otps      *mockOTPStore
	users     *mockUserStore
	sessions  *mockSessionStore
	pending   *mockPendingStore
	rateStore *mockRateLimitStore
	notifier  *mockNotifier
	signer    *mockJWTSigner
}

func newTestService(t *testing.T) (Service, *testDeps) {
	t.Helper()
	d := &testDeps{
		otps:      &mockOTPStore{},
		users:     &mockUserStore{},
		sessions:  &mockSessionStore{},
		pending:   &mockPendingStore{},
		rateStore: &mockRateLimitStore{},
		notifier:  &mockNotifier{},
		signer:    &mockJWTSigner{},
	}
	svc := NewService(ServiceDeps{
		OTPRepo:         d.otps,
		UserRepo:        d.users,
		SessionRepo:     d.sessions,
		PendingRepo:     d.pending,
		Limiter:         NewLimiter(d.rateStore, 2, time.Hour),
		Notifier:        d.notifier,
		JWTProvider:     d.signer,
		CodeLength:      6,
		CodeExpiry:      10 * time.Minute,
		PendingTTL:      30 * time.Minute,
		RefreshTokenDur: 30 * 24 * time.Hour,
	})
	return svc, d
}

// allowRate makes the limiter see no prior attempts.
func (d *testDeps) allowRate() {
	d.rateStore.On("Get", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	d.rateStore.On("Put", mock.Anything, mock.Anything).Return(nil)
}

// --- RequestCode ---

func TestRequestCode_Signin_IssuesAndDelivers(t *testing.T) {
	svc, d := newTestService(t)
	d.allowRate()

	var stored *domain.OTPRecord
	d.otps.On("Put", mock.Anything, mock.AnythingOfType("*domain.OTPRecord")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTPRecord) }).
		Return(nil)
	// Best-effort personalization lookup; no account yet.
	d.users.On("GetByEmail", mock.Anything, "traveler@example.com").Return(nil, domain.ErrNotFound)
	d.notifier.On("Send", mock.Anything, "traveler@example.com", mock.Anything, domain.PurposeSignin, "").Return(nil)

	expiresIn, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:   "Traveler@Example.com",
		Purpose: "signin",
	})
	require.NoError(t, err)
	assert.Equal(t, 600, expiresIn)

	require.NotNil(t, stored)
	assert.Equal(t, "traveler@example.com", stored.Email)
	assert.Equal(t, domain.PurposeSignin, stored.Purpose)
	assert.Len(t, stored.Code, 6)
	assert.False(t, stored.IsUsed)
	assert.Greater(t, stored.ExpiresAt, time.Now().Unix())
	d.notifier.AssertExpectations(t)
}

func TestRequestCode_Signin_DoesNotRevealAccountExistence(t *testing.T) {
	// Requesting a sign-in code for an unregistered address must succeed the
	// same way it does for a registered one.
	svc, d := newTestService(t)
	d.allowRate()
	d.otps.On("Put", mock.Anything, mock.Anything).Return(nil)
	d.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)
	d.notifier.On("Send", mock.Anything, "ghost@example.com", mock.Anything, domain.PurposeSignin, "").Return(nil)

	_, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:   "ghost@example.com",
		Purpose: "signin",
	})
	assert.NoError(t, err)
}

func TestRequestCode_Signup_StagesHashedCredentials(t *testing.T) {
	svc, d := newTestService(t)
	d.allowRate()

	var staged *domain.PendingSignup
	d.pending.On("Put", mock.Anything, mock.AnythingOfType("*domain.PendingSignup")).
		Run(func(args mock.Arguments) { staged = args.Get(1).(*domain.PendingSignup) }).
		Return(nil)
	d.otps.On("Put", mock.Anything, mock.Anything).Return(nil)
	d.notifier.On("Send", mock.Anything, "new@example.com", mock.Anything, domain.PurposeSignup, "Ada").Return(nil)

	_, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:     "new@example.com",
		Purpose:   "signup",
		Password:  "s3cret-password",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)

	require.NotNil(t, staged)
	assert.Equal(t, "new@example.com", staged.Email)
	assert.Equal(t, "Ada", staged.FirstName)
	assert.NotEqual(t, "s3cret-password", staged.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(staged.PasswordHash), []byte("s3cret-password")))
	assert.Greater(t, staged.ExpiresAt, time.Now().Unix())
}

func TestRequestCode_RateLimited(t *testing.T) {
	svc, d := newTestService(t)
	now := time.Now().Unix()
	d.rateStore.On("Get", mock.Anything, "capped@example.com#request-code").Return(&domain.RateLimitRecord{
		LimitKey:     "capped@example.com#request-code",
		Count:        2,
		FirstAttempt: now - 60,
		LastAttempt:  now - 30,
	}, nil)

	_, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:   "capped@example.com",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	d.otps.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	d.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_DeliveryFailure_RollsBackCode(t *testing.T) {
	svc, d := newTestService(t)
	d.allowRate()

	var stored *domain.OTPRecord
	d.otps.On("Put", mock.Anything, mock.AnythingOfType("*domain.OTPRecord")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTPRecord) }).
		Return(nil)
	d.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	d.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp connection refused"))

	var deletedCode string
	d.otps.On("Delete", mock.Anything, "down@example.com", domain.PurposeSignin, mock.Anything).
		Run(func(args mock.Arguments) { deletedCode = args.String(3) }).
		Return(nil)

	_, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:   "down@example.com",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	// The rollback targets exactly the undelivered code, so a newer code
	// stored by a concurrent request would survive.
	require.NotNil(t, stored)
	assert.Equal(t, stored.Code, deletedCode)
}

func TestRequestCode_UnknownPurpose(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RequestCode(context.Background(), RequestCodeInput{
		Email:   "a@example.com",
		Purpose: "password-reset",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- VerifyCode ---

func activeRecord(code string) *domain.OTPRecord {
	now := time.Now().Unix()
	return &domain.OTPRecord{
		Email:     "traveler@example.com",
		Purpose:   domain.PurposeSignin,
		Code:      code,
		Channel:   domain.ChannelEmail,
		IsUsed:    false,
		CreatedAt: now - 30,
		ExpiresAt: now + 570,
	}
}

func TestVerifyCode_Signin_MintsSession(t *testing.T) {
	svc, d := newTestService(t)
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(activeRecord("123456"), nil)
	d.otps.On("MarkUsed", mock.Anything, "traveler@example.com", domain.PurposeSignin, "123456", mock.Anything).Return(nil)
	d.users.On("GetByEmail", mock.Anything, "traveler@example.com").Return(&domain.User{
		UserID: "u1", Email: "traveler@example.com", Role: domain.RoleUser, Enable: true,
	}, nil)

	var sess *domain.Session
	d.sessions.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).
		Run(func(args mock.Arguments) { sess = args.Get(1).(*domain.Session) }).
		Return(nil)
	d.signer.On("Sign", "u1", domain.RoleUser, mock.Anything).Return("signed-jwt", nil)
	d.otps.On("Delete", mock.Anything, "traveler@example.com", domain.PurposeSignin, "123456").Return(nil)

	result, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "Traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	require.NoError(t, err)
	assert.Equal(t, "signed-jwt", result.Bearer)
	assert.NotEmpty(t, result.RefreshToken)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.UserID)
	assert.True(t, sess.Enable)
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc, d := newTestService(t)
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(activeRecord("123456"), nil)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "654321",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	d.otps.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCode_NoCodeIssued(t *testing.T) {
	svc, d := newTestService(t)
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(nil, domain.ErrNotFound)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestVerifyCode_ExpiredCode(t *testing.T) {
	svc, d := newTestService(t)
	rec := activeRecord("123456")
	rec.ExpiresAt = time.Now().Unix() - 1
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(rec, nil)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestVerifyCode_AtExpiryInstant_StillValid(t *testing.T) {
	// Validity is age <= the code lifetime, so the expiry instant itself is in.
	svc, d := newTestService(t)
	rec := activeRecord("123456")
	rec.ExpiresAt = time.Now().Unix()
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(rec, nil)
	d.otps.On("MarkUsed", mock.Anything, "traveler@example.com", domain.PurposeSignin, "123456", mock.Anything).Return(nil)
	d.users.On("GetByEmail", mock.Anything, "traveler@example.com").Return(&domain.User{
		UserID: "u1", Role: domain.RoleUser, Enable: true,
	}, nil)
	d.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
	d.signer.On("Sign", "u1", domain.RoleUser, mock.Anything).Return("signed-jwt", nil)
	d.otps.On("Delete", mock.Anything, "traveler@example.com", domain.PurposeSignin, "123456").Return(nil)

	result, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	require.NoError(t, err)
	assert.Equal(t, "signed-jwt", result.Bearer)
}

func TestVerifyCode_AlreadyUsed(t *testing.T) {
	svc, d := newTestService(t)
	rec := activeRecord("123456")
	rec.IsUsed = true
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(rec, nil)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestVerifyCode_ConcurrentUse_OnlyOneWins(t *testing.T) {
	// The conditional mark-used is the authoritative single-use check: a
	// second caller who read the record before the first finished loses there.
	svc, d := newTestService(t)
	d.otps.On("Get", mock.Anything, "traveler@example.com", domain.PurposeSignin).Return(activeRecord("123456"), nil)
	d.otps.On("MarkUsed", mock.Anything, "traveler@example.com", domain.PurposeSignin, "123456", mock.Anything).
		Return(domain.ErrCodeInvalid)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "traveler@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	d.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyCode_Signin_NoAccount(t *testing.T) {
	// The code was genuinely valid, but no account exists. This surfaces only
	// after verification so request-code never leaks registration status.
	svc, d := newTestService(t)
	d.otps.On("Get", mock.Anything, "ghost@example.com", domain.PurposeSignin).Return(&domain.OTPRecord{
		Email:     "ghost@example.com",
		Purpose:   domain.PurposeSignin,
		Code:      "123456",
		ExpiresAt: time.Now().Unix() + 570,
	}, nil)
	d.otps.On("MarkUsed", mock.Anything, "ghost@example.com", domain.PurposeSignin, "123456", mock.Anything).Return(nil)
	d.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "ghost@example.com",
		Code:    "123456",
		Purpose: "signin",
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	d.sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyCode_Signup_CreatesAccountFromStagedData(t *testing.T) {
	svc, d := newTestService(t)
	rec := activeRecord("999000")
	rec.Email = "new@example.com"
	rec.Purpose = domain.PurposeSignup
	d.otps.On("Get", mock.Anything, "new@example.com", domain.PurposeSignup).Return(rec, nil)
	d.otps.On("MarkUsed", mock.Anything, "new@example.com", domain.PurposeSignup, "999000", mock.Anything).Return(nil)
	d.pending.On("Get", mock.Anything, "new@example.com").Return(&domain.PendingSignup{
		Email:        "new@example.com",
		PasswordHash: "$2a$10$staged-hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		ExpiresAt:    time.Now().Unix() + 600,
	}, nil)
	d.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)

	var created *domain.User
	d.users.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	d.pending.On("Delete", mock.Anything, "new@example.com").Return(nil)
	d.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
	d.signer.On("Sign", mock.Anything, domain.RoleUser, mock.Anything).Return("signed-jwt", nil)
	d.otps.On("Delete", mock.Anything, "new@example.com", domain.PurposeSignup, "999000").Return(nil)

	result, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "new@example.com",
		Code:    "999000",
		Purpose: "signup",
	})
	require.NoError(t, err)
	assert.Equal(t, "signed-jwt", result.Bearer)

	require.NotNil(t, created)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "$2a$10$staged-hash", created.PasswordHash)
	assert.Equal(t, domain.RoleUser, created.Role)
	assert.True(t, created.Enable)
	// Staged credentials are consumed.
	d.pending.AssertCalled(t, "Delete", mock.Anything, "new@example.com")
}

func TestVerifyCode_Signup_EmailAlreadyRegistered(t *testing.T) {
	svc, d := newTestService(t)
	rec := activeRecord("999000")
	rec.Email = "taken@example.com"
	rec.Purpose = domain.PurposeSignup
	d.otps.On("Get", mock.Anything, "taken@example.com", domain.PurposeSignup).Return(rec, nil)
	d.otps.On("MarkUsed", mock.Anything, "taken@example.com", domain.PurposeSignup, "999000", mock.Anything).Return(nil)
	d.pending.On("Get", mock.Anything, "taken@example.com").Return(&domain.PendingSignup{
		Email:        "taken@example.com",
		PasswordHash: "$2a$10$staged-hash",
	}, nil)
	d.users.On("GetByEmail", mock.Anything, "taken@example.com").Return(&domain.User{UserID: "u9"}, nil)
	d.pending.On("Delete", mock.Anything, "taken@example.com").Return(nil)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "taken@example.com",
		Code:    "999000",
		Purpose: "signup",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	// Staged credentials are consumed even when completion fails.
	d.pending.AssertCalled(t, "Delete", mock.Anything, "taken@example.com")
	d.users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyCode_Signup_NoStagedData(t *testing.T) {
	svc, d := newTestService(t)
	rec := activeRecord("999000")
	rec.Email = "stale@example.com"
	rec.Purpose = domain.PurposeSignup
	d.otps.On("Get", mock.Anything, "stale@example.com", domain.PurposeSignup).Return(rec, nil)
	d.otps.On("MarkUsed", mock.Anything, "stale@example.com", domain.PurposeSignup, "999000", mock.Anything).Return(nil)
	d.pending.On("Get", mock.Anything, "stale@example.com").Return(nil, domain.ErrNotFound)

	_, err := svc.VerifyCode(context.Background(), VerifyCodeInput{
		Email:   "stale@example.com",
		Code:    "999000",
		Purpose: "signup",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
	assert.Equal(t, "a@b.com", NormalizeEmail("a@b.com"))
}
