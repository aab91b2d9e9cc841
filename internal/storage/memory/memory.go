package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type user struct {
	profile core.UserProfile
	hash    string
}

// Store keeps everything in process memory. Used for development and tests.
type Store struct {
	mu       sync.RWMutex
	expenses map[string]map[string]core.Expense // userID -> expenseID
	users    map[string]user
	sessions map[string]core.Session
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string]map[string]core.Expense),
		users:    make(map[string]user),
		sessions: make(map[string]core.Session),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.expenses[e.UserID]
	if !ok {
		byID = make(map[string]core.Expense)
		s.expenses[e.UserID] = byID
	}
	byID[e.ID] = e
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.UserID][e.ID]
	if !ok {
		return core.ErrNotFound
	}
	e.Timestamp = cur.Timestamp
	s.expenses[e.UserID][e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[userID][id]; !ok {
		return core.ErrNotFound
	}
	delete(s.expenses[userID], id)
	return nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[userID][id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, q storage.ExpenseQuery) ([]core.Expense, error) {
	s.mu.RLock()
	out := make([]core.Expense, 0, len(s.expenses[userID]))
	for _, e := range s.expenses[userID] {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	core.SortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, p core.UserProfile, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.profile.Email == p.Email {
			return core.ErrEmailTaken
		}
	}
	s.users[p.ID] = user{profile: p, hash: passwordHash}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return u.profile, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.UserProfile, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.profile.Email == email {
			return u.profile, u.hash, nil
		}
	}
	return core.UserProfile{}, "", core.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserProfile, error) {
	s.mu.RLock()
	out := make([]core.UserProfile, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.profile)
	}
	s.mu.RUnlock()
	sortByEmail(out)
	return out, nil
}

func (s *Store) SetUserRole(_ context.Context, id string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.profile.Role = role
	s.users[id] = u
	return nil
}

func (s *Store) CreateSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RenewSession(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return core.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	s.sessions[token] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

func sortByEmail(users []core.UserProfile) {
	slices.SortFunc(users, func(a, b core.UserProfile) int {
		return strings.Compare(a.Email, b.Email)
	})
}
