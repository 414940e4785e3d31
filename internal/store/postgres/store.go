package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Login(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, verified, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Verified, &passwordHash, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, input store.CreateUserInput) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleAgent
	}

	var user models.User
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, name, email, role, password_hash, verified)
		VALUES ($1, $2, lower($3), $4, $5, FALSE)
		RETURNING user_id, name, email, role, verified, created_at
	`, uuid.NewString(), strings.TrimSpace(input.Name), strings.TrimSpace(input.Email), role, string(hash))
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Verified, &user.Created); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, store.ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, verified, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Verified, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, email, role, verified, created_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Verified, &user.Created); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserRole(ctx context.Context, userID, role string) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET role = $2
		WHERE user_id = $1
		RETURNING user_id, name, email, role, verified, created_at
	`, userID, role)
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Verified, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) SaveToken(ctx context.Context, record models.TokenRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (token, user_id, type, is_valid, expires_at)
		VALUES ($1, $2, $3, TRUE, $4)
	`, record.Token, record.UserID, record.Type, record.ExpiresAt)
	return err
}

func (s *Store) RevokeToken(ctx context.Context, raw string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens
		SET is_valid = FALSE
		WHERE token = $1
	`, raw)
	return err
}

func (s *Store) IsTokenValid(ctx context.Context, raw string) (bool, error) {
	var valid bool
	row := s.pool.QueryRow(ctx, `
		SELECT is_valid
		FROM tokens
		WHERE token = $1 AND expires_at > NOW()
	`, raw)
	if err := row.Scan(&valid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return valid, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, expiredBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tokens
		WHERE expires_at < $1
	`, expiredBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateLead(ctx context.Context, input store.LeadInput) (models.Lead, error) {
	var lead models.Lead
	row := s.pool.QueryRow(ctx, `
		INSERT INTO leads (lead_id, name, phone, email, source, status, budget, notes, agent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid)
		RETURNING lead_id, name, phone, email, source, status, budget, notes, COALESCE(agent_id, ''), created_at, updated_at
	`, uuid.NewString(), strings.TrimSpace(input.Name), strings.TrimSpace(input.Phone), strings.TrimSpace(input.Email),
		input.Source, models.LeadStatusNew, input.Budget, input.Notes, input.AgentID)
	if err := scanLead(row, &lead); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (s *Store) GetLead(ctx context.Context, leadID string) (models.Lead, error) {
	var lead models.Lead
	row := s.pool.QueryRow(ctx, `
		SELECT lead_id, name, phone, email, source, status, budget, notes, COALESCE(agent_id, ''), created_at, updated_at
		FROM leads
		WHERE lead_id = $1
	`, leadID)
	if err := scanLead(row, &lead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Lead{}, store.ErrLeadNotFound
		}
		return models.Lead{}, err
	}
	return lead, nil
}

func (s *Store) ListLeads(ctx context.Context, filter store.LeadFilter) ([]models.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lead_id, name, phone, email, source, status, budget, notes, COALESCE(agent_id, ''), created_at, updated_at
		FROM leads
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR agent_id::text = $2)
		ORDER BY created_at DESC
	`, filter.Status, filter.AgentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var lead models.Lead
		if err := scanLead(rows, &lead); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (s *Store) UpdateLead(ctx context.Context, leadID string, update store.LeadUpdate) (models.Lead, error) {
	var lead models.Lead
	row := s.pool.QueryRow(ctx, `
		UPDATE leads
		SET status     = COALESCE($2, status),
		    budget     = COALESCE($3, budget),
		    notes      = COALESCE($4, notes),
		    agent_id   = COALESCE($5::uuid, agent_id),
		    updated_at = NOW()
		WHERE lead_id = $1
		RETURNING lead_id, name, phone, email, source, status, budget, notes, COALESCE(agent_id, ''), created_at, updated_at
	`, leadID, update.Status, update.Budget, update.Notes, update.AgentID)
	if err := scanLead(row, &lead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Lead{}, store.ErrLeadNotFound
		}
		return models.Lead{}, err
	}
	return lead, nil
}

func (s *Store) DeleteLead(ctx context.Context, leadID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM leads
		WHERE lead_id = $1
	`, leadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLeadNotFound
	}
	return nil
}

func (s *Store) CreateVisit(ctx context.Context, input store.VisitInput) (models.SiteVisit, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.SiteVisit{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE lead_id = $1)`, input.LeadID).Scan(&exists); err != nil {
		return models.SiteVisit{}, err
	}
	if !exists {
		err = store.ErrLeadNotFound
		return models.SiteVisit{}, err
	}

	var visit models.SiteVisit
	row := tx.QueryRow(ctx, `
		INSERT INTO site_visits (visit_id, lead_id, property, scheduled_at, status, notes, agent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING visit_id, lead_id, property, scheduled_at, status, notes, agent_id, created_at
	`, uuid.NewString(), input.LeadID, strings.TrimSpace(input.Property), input.ScheduledAt, models.VisitStatusScheduled, input.Notes, input.AgentID)
	if err = row.Scan(&visit.VisitID, &visit.LeadID, &visit.Property, &visit.ScheduledAt, &visit.Status, &visit.Notes, &visit.AgentID, &visit.Created); err != nil {
		return models.SiteVisit{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads
		SET status = $2, updated_at = NOW()
		WHERE lead_id = $1 AND status IN ($3, $4)
	`, input.LeadID, models.LeadStatusVisitScheduled, models.LeadStatusNew, models.LeadStatusContacted)
	if err != nil {
		return models.SiteVisit{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.SiteVisit{}, err
	}
	return visit, nil
}

func (s *Store) ListVisits(ctx context.Context, leadID string) ([]models.SiteVisit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT visit_id, lead_id, property, scheduled_at, status, notes, agent_id, created_at
		FROM site_visits
		WHERE ($1 = '' OR lead_id::text = $1)
		ORDER BY scheduled_at
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []models.SiteVisit
	for rows.Next() {
		var visit models.SiteVisit
		if err := rows.Scan(&visit.VisitID, &visit.LeadID, &visit.Property, &visit.ScheduledAt, &visit.Status, &visit.Notes, &visit.AgentID, &visit.Created); err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}

func (s *Store) UpdateVisitStatus(ctx context.Context, visitID, status, notes string) (models.SiteVisit, error) {
	var visit models.SiteVisit
	row := s.pool.QueryRow(ctx, `
		UPDATE site_visits
		SET status = $2, notes = CASE WHEN $3 = '' THEN notes ELSE $3 END
		WHERE visit_id = $1
		RETURNING visit_id, lead_id, property, scheduled_at, status, notes, agent_id, created_at
	`, visitID, status, notes)
	if err := row.Scan(&visit.VisitID, &visit.LeadID, &visit.Property, &visit.ScheduledAt, &visit.Status, &visit.Notes, &visit.AgentID, &visit.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SiteVisit{}, store.ErrVisitNotFound
		}
		return models.SiteVisit{}, err
	}
	return visit, nil
}

func (s *Store) CreateExpense(ctx context.Context, input store.ExpenseInput) (models.Expense, error) {
	var expense models.Expense
	row := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (expense_id, description, amount_cents, category, incurred_on, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING expense_id, description, amount_cents, category, incurred_on, user_id, created_at
	`, uuid.NewString(), strings.TrimSpace(input.Description), input.AmountCents, input.Category, input.IncurredOn, input.UserID)
	if err := row.Scan(&expense.ExpenseID, &expense.Description, &expense.AmountCents, &expense.Category, &expense.IncurredOn, &expense.UserID, &expense.Created); err != nil {
		return models.Expense{}, err
	}
	return expense, nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT expense_id, description, amount_cents, category, incurred_on, user_id, created_at
		FROM expenses
		ORDER BY incurred_on DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var expense models.Expense
		if err := rows.Scan(&expense.ExpenseID, &expense.Description, &expense.AmountCents, &expense.Category, &expense.IncurredOn, &expense.UserID, &expense.Created); err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

func scanLead(row pgx.Row, lead *models.Lead) error {
	return row.Scan(&lead.LeadID, &lead.Name, &lead.Phone, &lead.Email, &lead.Source, &lead.Status,
		&lead.Budget, &lead.Notes, &lead.AgentID, &lead.Created, &lead.Updated)
}
