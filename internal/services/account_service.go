package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt refuses longer input.
	MaxPasswordBytes  = 72
	sessionTokenBytes = 32
)

// accountStore is the persistence AccountService needs.
type accountStore interface {
	storage.ProfileStore
	storage.SessionStore
}

// AccountService handles sign-up, password sign-in and rolling sessions.
type AccountService struct {
	store      accountStore
	sessionTTL time.Duration
	bcryptCost int
	logger     *log.Logger
	now        func() time.Time
}

func NewAccountService(store accountStore, sessionTTL time.Duration, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		store:      store,
		sessionTTL: sessionTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.WithComponent(log.ComponentAccount),
		now:        time.Now,
	}
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", core.ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers a regular user.
func (s *AccountService) SignUp(ctx context.Context, email, password string) (core.UserProfile, error) {
	p, err := s.CreateUser(ctx, email, password, core.RoleUser)
	if err != nil {
		return core.UserProfile{}, err
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, p.ID, log.FieldOperation, log.OpSignUp)
	return p, nil
}

// CreateUser registers a user with the given role.
func (s *AccountService) CreateUser(ctx context.Context, email, password string, role core.Role) (core.UserProfile, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.UserProfile{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return core.UserProfile{}, core.ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return core.UserProfile{}, core.ErrPasswordTooLong
	}
	if !role.Valid() {
		return core.UserProfile{}, core.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	p := core.UserProfile{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, p, string(hash)); err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			return core.UserProfile{}, err
		}
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return p, nil
}

// SignIn checks the password and opens a new session. Unknown emails and
// wrong passwords produce the same error.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (core.Session, core.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, hash, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		// Spend the same time as a real comparison.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.logger.InfoContext(ctx, "Sign-in rejected", log.FieldOperation, log.OpSignIn, log.FieldErrorType, log.ErrorTypeAuth)
		return core.Session{}, core.UserProfile{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, core.UserProfile{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		s.logger.InfoContext(ctx, "Sign-in rejected", log.FieldOperation, log.OpSignIn, log.FieldUserID, p.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return core.Session{}, core.UserProfile{}, core.ErrInvalidCredentials
	}

	token, err := newSessionToken()
	if err != nil {
		return core.Session{}, core.UserProfile{}, err
	}
	sess := core.Session{Token: token, UserID: p.ID, ExpiresAt: s.now().Add(s.sessionTTL).UTC()}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return core.Session{}, core.UserProfile{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, p.ID, log.FieldOperation, log.OpSignIn)
	return sess, p, nil
}

// Authenticate resolves a session token. Sessions past half of their
// lifetime are extended to a full TTL; the returned session reflects that.
func (s *AccountService) Authenticate(ctx context.Context, token string) (core.UserProfile, core.Session, error) {
	if token == "" {
		return core.UserProfile{}, core.Session{}, core.ErrSessionExpired
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return core.UserProfile{}, core.Session{}, core.ErrSessionExpired
	}
	if err != nil {
		return core.UserProfile{}, core.Session{}, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	if sess.Expired(now) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete expired session", log.FieldError, err.Error())
		}
		return core.UserProfile{}, core.Session{}, core.ErrSessionExpired
	}

	p, err := s.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.UserProfile{}, core.Session{}, core.ErrSessionExpired
	}
	if err != nil {
		return core.UserProfile{}, core.Session{}, fmt.Errorf("load user: %w", err)
	}

	if sess.ExpiresAt.Sub(now) < s.sessionTTL/2 {
		renewed := now.Add(s.sessionTTL).UTC()
		if err := s.store.RenewSession(ctx, token, renewed); err != nil {
			s.logger.WarnContext(ctx, "Failed to renew session", log.FieldUserID, p.ID, log.FieldError, err.Error())
		} else {
			sess.ExpiresAt = renewed
		}
	}
	return p, sess, nil
}

// SignOut deletes the session. Unknown tokens are ignored.
func (s *AccountService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListUsers returns every profile. Admin only.
func (s *AccountService) ListUsers(ctx context.Context, actor Actor) ([]core.UserProfile, error) {
	if !actor.IsAdmin() {
		return nil, core.ErrForbidden
	}
	return s.store.ListUsers(ctx)
}

// GetUser returns a profile the actor may see.
func (s *AccountService) GetUser(ctx context.Context, actor Actor, id string) (core.UserProfile, error) {
	if !actor.CanAccess(id) {
		return core.UserProfile{}, core.ErrForbidden
	}
	return s.store.GetUser(ctx, id)
}

// SetRole changes the role of the user registered with email.
func (s *AccountService) SetRole(ctx context.Context, email string, role core.Role) (core.UserProfile, error) {
	if !role.Valid() {
		return core.UserProfile{}, core.ErrInvalidRole
	}
	p, _, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return core.UserProfile{}, err
	}
	if err := s.store.SetUserRole(ctx, p.ID, role); err != nil {
		return core.UserProfile{}, fmt.Errorf("set role: %w", err)
	}
	p.Role = role
	s.logger.InfoContext(ctx, "User role changed", log.FieldUserID, p.ID, "role", string(role))
	return p, nil
}

// SweepSessions deletes every expired session.
func (s *AccountService) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "Expired sessions removed", log.FieldCount, n)
	}
	return n, nil
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
