package http

import (
	"github.com/concierge-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/concierge-api/internal/infrastructure/jwt"
	s3infra "github.com/concierge-api/internal/infrastructure/s3"
	"github.com/concierge-api/internal/infrastructure/smtp"
	"github.com/concierge-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo          *dynamo.UserRepo
	SessionRepo       *dynamo.SessionRepo
	OTPRepo           *dynamo.OTPRepo
	RateLimitRepo     *dynamo.RateLimitRepo
	PendingSignupRepo *dynamo.PendingSignupRepo
	LeadRepo          *dynamo.LeadRepo
	DocumentRepo      *dynamo.DocumentRepo
	S3Store           *s3infra.Store
	Mailer            smtp.Mailer
	SMSSender         sns.SMSSender
	JWTProvider       *jwtinfra.Provider
}
