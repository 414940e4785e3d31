package store

import (
	"context"
	"time"

	"estatedesk/crm-service/internal/models"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type LeadInput struct {
	Name    string
	Phone   string
	Email   string
	Source  string
	Budget  int64
	Notes   string
	AgentID string
}

type LeadUpdate struct {
	Status  *string
	Budget  *int64
	Notes   *string
	AgentID *string
}

type LeadFilter struct {
	Status  string
	AgentID string
}

type VisitInput struct {
	LeadID      string
	Property    string
	ScheduledAt time.Time
	Notes       string
	AgentID     string
}

type ExpenseInput struct {
	Description string
	AmountCents int64
	Category    string
	IncurredOn  time.Time
	UserID      string
}

type Store interface {
	Login(ctx context.Context, email, password string) (models.User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) (models.User, error)

	// RevokeToken is a no-op when no record matches the raw token.
	SaveToken(ctx context.Context, record models.TokenRecord) error
	RevokeToken(ctx context.Context, raw string) error
	IsTokenValid(ctx context.Context, raw string) (bool, error)
	PurgeExpiredTokens(ctx context.Context, expiredBefore time.Time) (int64, error)

	CreateLead(ctx context.Context, input LeadInput) (models.Lead, error)
	GetLead(ctx context.Context, leadID string) (models.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]models.Lead, error)
	UpdateLead(ctx context.Context, leadID string, update LeadUpdate) (models.Lead, error)
	DeleteLead(ctx context.Context, leadID string) error

	CreateVisit(ctx context.Context, input VisitInput) (models.SiteVisit, error)
	ListVisits(ctx context.Context, leadID string) ([]models.SiteVisit, error)
	UpdateVisitStatus(ctx context.Context, visitID, status, notes string) (models.SiteVisit, error)

	CreateExpense(ctx context.Context, input ExpenseInput) (models.Expense, error)
	ListExpenses(ctx context.Context) ([]models.Expense, error)
}
