package domain

// Purpose says which flow an OTP code authorizes.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeSignin Purpose = "signin"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeSignup || p == PurposeSignin
}

// Channel is the delivery medium for an OTP code.
// Only email is active today; sms is reserved for a future notifier.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// OTPRecord is a single-use verification code.
// PK: email (case-normalized), SK: purpose — so at most one record can exist
// per (email, purpose); issuing a new code overwrites (invalidates) the old one.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OTPRecord struct {
	Email     string  `json:"email" dynamodbav:"email"`
	Purpose   Purpose `json:"purpose" dynamodbav:"purpose"`
	Code      string  `json:"-" dynamodbav:"code"`
	Channel   Channel `json:"channel" dynamodbav:"channel"`
	IsUsed    bool    `json:"is_used" dynamodbav:"is_used"`
	CreatedAt int64   `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64   `json:"expires_at" dynamodbav:"expires_at"`
}

// RateLimitRecord tracks request counts for one (email, endpoint) pair
// inside a rolling window. PK: limit_key = "<email>#<endpoint>".
// ExpiresAt is a DynamoDB TTL set past the window end so stale rows vanish.
type RateLimitRecord struct {
	LimitKey     string `json:"limit_key" dynamodbav:"limit_key"`
	Count        int    `json:"count" dynamodbav:"count"`
	FirstAttempt int64  `json:"first_attempt" dynamodbav:"first_attempt"`
	LastAttempt  int64  `json:"last_attempt" dynamodbav:"last_attempt"`
	ExpiresAt    int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// PendingSignup stages signup profile data server-side between "request code"
// and "verify code". The password is bcrypt-hashed before it is stored; the
// plaintext never touches the table. PK: email. ExpiresAt is a DynamoDB TTL.
type PendingSignup struct {
	Email        string `json:"email" dynamodbav:"email"`
	PasswordHash string `json:"-" dynamodbav:"password_hash"`
	FirstName    string `json:"first_name" dynamodbav:"first_name"`
	LastName     string `json:"last_name" dynamodbav:"last_name"`
	CreatedAt    int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt    int64  `json:"expires_at" dynamodbav:"expires_at"`
}
