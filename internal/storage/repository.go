package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendwise/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements Store on a SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	version uint
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := Migrate(dbPath)
	if err != nil {
		return nil, err
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, version: version}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, title, description, amount_cents, category, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Description, e.Amount.Cents, e.Category,
		e.Date.Format(dateLayout), e.Timestamp.UnixNano(), e.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET title = ?, description = ?, amount_cents = ?, category = ?, date = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		e.Title, e.Description, e.Amount.Cents, e.Category, e.Date.Format(dateLayout), time.Now().UnixNano(),
		e.UserID, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, amount_cents, category, date, created_at
		FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, q ExpenseQuery) ([]core.Expense, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if !q.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, q.From.Format(dateLayout))
	}
	if !q.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, q.To.Format(dateLayout))
	}
	query := `SELECT id, user_id, title, description, amount_cents, category, date, created_at
		FROM expenses WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date DESC, created_at DESC`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, p core.UserProfile, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, passwordHash, string(p.Role), p.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.UserProfile, error) {
	p, _, err := r.getUser(ctx, `WHERE id = ?`, id)
	return p, err
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.UserProfile, string, error) {
	return r.getUser(ctx, `WHERE email = ?`, email)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (core.UserProfile, string, error) {
	var (
		p       core.UserProfile
		role    string
		hash    string
		created int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, password_hash, role, created_at FROM users `+where, arg).
		Scan(&p.ID, &p.Email, &hash, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, "", fmt.Errorf("get user: %w", err)
	}
	p.Role = core.Role(role)
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, hash, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, role, created_at FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []core.UserProfile{}
	for rows.Next() {
		var (
			p       core.UserProfile
			role    string
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Email, &role, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		p.Role = core.Role(role)
		p.CreatedAt = time.Unix(0, created).UTC()
		users = append(users, p)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) SetUserRole(ctx context.Context, id string, role core.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return expectOneRow(res)
}

// Sessions

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.Session, error) {
	var (
		s       core.Session
		expires int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.ErrNotFound
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = time.Unix(0, expires).UTC()
	return s, nil
}

func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token = ?`, expiresAt.UnixNano(), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e       core.Expense
		date    string
		created int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.Amount.Cents, &e.Category, &date, &created); err != nil {
		return core.Expense{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	e.Date = core.Date{Time: d}
	e.Timestamp = time.Unix(0, created).UTC()
	return e, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
