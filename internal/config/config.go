package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenDur   time.Duration

	// OTP authentication gate.
	OTPCodeLength    int
	OTPExpiry        time.Duration
	OTPRateLimit     int           // max request-code calls per email per window
	OTPRateWindow    time.Duration // rolling rate-limit window
	PendingSignupTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// Concierge team notification targets for new leads.
	LeadInboxEmail string
	LeadOnCallSMS  string
	SNSRegion      string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	Sessions       string
	OTPCodes       string
	RateLimits     string
	PendingSignups string
	Leads          string
	Documents      string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:       getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			OTPCodes:       getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			RateLimits:     getEnv("DYNAMO_TABLE_RATE_LIMITS", "otp_rate_limits"),
			PendingSignups: getEnv("DYNAMO_TABLE_PENDING_SIGNUPS", "pending_signups"),
			Leads:          getEnv("DYNAMO_TABLE_LEADS", "leads"),
			Documents:      getEnv("DYNAMO_TABLE_DOCUMENTS", "documents"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "concierge-documents"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RefreshTokenDur:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		OTPCodeLength:    getEnvInt("OTP_CODE_LENGTH", 6),
		OTPExpiry:        time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
		OTPRateLimit:     getEnvInt("OTP_RATE_LIMIT", 2),
		OTPRateWindow:    time.Duration(getEnvInt("OTP_RATE_WINDOW_MINUTES", 60)) * time.Minute,
		PendingSignupTTL: time.Duration(getEnvInt("PENDING_SIGNUP_TTL_MINUTES", 30)) * time.Minute,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		LeadInboxEmail: getEnv("LEAD_INBOX_EMAIL", ""),
		LeadOnCallSMS:  getEnv("LEAD_ONCALL_SMS", ""),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
