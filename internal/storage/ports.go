package storage

import (
	"context"
	"time"

	"spendwise/internal/core"
)

// ExpenseQuery narrows a per-user listing. Zero values disable a predicate.
// Results are always ordered by date then creation time, newest first.
type ExpenseQuery struct {
	Category string
	From     core.Date // inclusive
	To       core.Date // inclusive
	Limit    int
}

// Match reports whether e satisfies the query predicates (not Limit).
func (q ExpenseQuery) Match(e core.Expense) bool {
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if !q.From.IsZero() && e.Date.Before(q.From.Time) {
		return false
	}
	if !q.To.IsZero() && e.Date.After(q.To.Time) {
		return false
	}
	return true
}

// Ports for the persistence adapters.
type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) error
		// UpdateExpense replaces the mutable fields; core.ErrNotFound if absent.
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, userID, id string) error
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, userID string, q ExpenseQuery) ([]core.Expense, error)
	}

	ProfileStore interface {
		// CreateUser fails with core.ErrEmailTaken on a duplicate email.
		CreateUser(ctx context.Context, p core.UserProfile, passwordHash string) error
		GetUser(ctx context.Context, id string) (core.UserProfile, error)
		GetUserByEmail(ctx context.Context, email string) (core.UserProfile, string, error)
		ListUsers(ctx context.Context) ([]core.UserProfile, error)
		SetUserRole(ctx context.Context, id string, role core.Role) error
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		GetSession(ctx context.Context, token string) (core.Session, error)
		RenewSession(ctx context.Context, token string, expiresAt time.Time) error
		DeleteSession(ctx context.Context, token string) error
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	}

	// Store is everything the application persists.
	Store interface {
		ExpenseStore
		ProfileStore
		SessionStore
		Ping(ctx context.Context) error
		Close() error
	}
)
