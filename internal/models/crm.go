package models

import "time"

const (
	LeadStatusNew            = "new"
	LeadStatusContacted      = "contacted"
	LeadStatusVisitScheduled = "visit_scheduled"
	LeadStatusNegotiating    = "negotiating"
	LeadStatusClosed         = "closed"
	LeadStatusLost           = "lost"
)

type Lead struct {
	LeadID    string    `json:"lead_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status"`
	Budget    int64     `json:"budget,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Created   time.Time `json:"created_at"`
	Updated   time.Time `json:"updated_at"`
}

const (
	VisitStatusScheduled = "scheduled"
	VisitStatusCompleted = "completed"
	VisitStatusCancelled = "cancelled"
)

type SiteVisit struct {
	VisitID     string    `json:"visit_id"`
	LeadID      string    `json:"lead_id"`
	Property    string    `json:"property"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	AgentID     string    `json:"agent_id"`
	Created     time.Time `json:"created_at"`
}

type Expense struct {
	ExpenseID   string    `json:"expense_id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	IncurredOn  time.Time `json:"incurred_on"`
	UserID      string    `json:"user_id"`
	Created     time.Time `json:"created_at"`
}
