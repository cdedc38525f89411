package domain

import "time"

// Lead statuses, advanced by the concierge team from the admin dashboard.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusClosed    = "closed"
)

// Lead is an inquiry captured from the website's contact and booking forms.
type Lead struct {
	LeadID      string    `json:"id" dynamodbav:"lead_id"`
	FullName    string    `json:"full_name" dynamodbav:"full_name"`
	Email       string    `json:"email" dynamodbav:"email"`
	Phone       *string   `json:"phone,omitempty" dynamodbav:"phone"`
	ServiceType string    `json:"service_type" dynamodbav:"service_type"` // "visa" | "trip" | "consultation"
	Destination string    `json:"destination,omitempty" dynamodbav:"destination"`
	Message     string    `json:"message,omitempty" dynamodbav:"message"`
	Status      string    `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateLeadRequest struct {
	FullName    string  `json:"full_name" validate:"required,max=120"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	ServiceType string  `json:"service_type" validate:"required,oneof=visa trip consultation"`
	Destination string  `json:"destination" validate:"max=120"`
	Message     string  `json:"message" validate:"max=2000"`
}

type UpdateLeadRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=new contacted closed"`
}
