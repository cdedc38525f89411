package lead

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/infrastructure/smtp"
	"github.com/concierge-api/internal/infrastructure/sns"
	"github.com/concierge-api/internal/pkg/id"
)

type Service interface {
	// Create stores an inquiry from the website's lead forms and alerts the
	// concierge team. Alerting is best-effort: a lead is never lost because
	// a notification channel was down.
	Create(ctx context.Context, req domain.CreateLeadRequest) (*domain.Lead, error)
	Get(ctx context.Context, leadID string) (*domain.Lead, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Lead, string, error)
	Update(ctx context.Context, leadID string, req domain.UpdateLeadRequest) (*domain.Lead, error)
}

type leadStore interface {
	Put(ctx context.Context, l *domain.Lead) error
	Get(ctx context.Context, leadID string) (*domain.Lead, error)
	Update(ctx context.Context, leadID string, updates map[string]interface{}) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Lead, string, error)
}

type service struct {
	repo       leadStore
	mailer     smtp.Mailer
	smsSender  sns.SMSSender
	inboxEmail string
	onCallSMS  string
}

type ServiceDeps struct {
	Repo       leadStore
	Mailer     smtp.Mailer
	SMSSender  sns.SMSSender
	InboxEmail string
	OnCallSMS  string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:       deps.Repo,
		mailer:     deps.Mailer,
		smsSender:  deps.SMSSender,
		inboxEmail: deps.InboxEmail,
		onCallSMS:  deps.OnCallSMS,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateLeadRequest) (*domain.Lead, error) {
	now := time.Now().UTC()
	l := &domain.Lead{
		LeadID:      id.New(),
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		ServiceType: req.ServiceType,
		Destination: req.Destination,
		Message:     req.Message,
		Status:      domain.LeadStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, l); err != nil {
		return nil, err
	}
	s.alertTeam(ctx, l)
	return l, nil
}

func (s *service) alertTeam(ctx context.Context, l *domain.Lead) {
	if s.inboxEmail != "" && s.mailer != nil {
		subject := fmt.Sprintf("New %s lead: %s", l.ServiceType, l.FullName)
		body := fmt.Sprintf(
			"Name: %s\nEmail: %s\nService: %s\nDestination: %s\n\n%s\n",
			l.FullName, l.Email, l.ServiceType, l.Destination, l.Message,
		)
		if err := s.mailer.SendEmail(s.inboxEmail, subject, body); err != nil {
			slog.Warn("failed to email lead alert", "lead_id", l.LeadID, "err", err)
		}
	}
	if s.onCallSMS != "" && s.smsSender != nil {
		msg := fmt.Sprintf("New %s lead from %s (%s)", l.ServiceType, l.FullName, l.Email)
		if err := s.smsSender.SendSMS(ctx, s.onCallSMS, msg); err != nil {
			slog.Warn("failed to sms lead alert", "lead_id", l.LeadID, "err", err)
		}
	}
}

func (s *service) Get(ctx context.Context, leadID string) (*domain.Lead, error) {
	return s.repo.Get(ctx, leadID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Lead, string, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ScanPage(ctx, int32(limit), cursor)
}

func (s *service) Update(ctx context.Context, leadID string, req domain.UpdateLeadRequest) (*domain.Lead, error) {
	if req.Status == nil {
		return s.repo.Get(ctx, leadID)
	}
	if err := s.repo.Update(ctx, leadID, map[string]interface{}{"status": *req.Status}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, leadID)
}
