package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	MinTitleLength       = 2
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

type (
	Role string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is one user-submitted transaction.
	Expense struct {
		ID          string
		UserID      string
		Title       string
		Description string // Context for category inference only
		Amount      Money
		Category    string
		Date        Date
		Timestamp   time.Time // Server creation time, breaks same-day ties
	}

	UserProfile struct {
		ID        string
		Email     string
		Role      Role
		CreatedAt time.Time
	}

	Session struct {
		Token     string
		UserID    string
		ExpiresAt time.Time
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrTitleTooShort      = errors.New("title must be at least 2 characters")
	ErrTitleTooLong       = errors.New("title too long (max 100 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 500 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidRole        = errors.New("invalid role")

	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month (1-12), day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location, returned as UTC midnight.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole maps a user-provided string onto a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (p UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ValidateInput checks the user-editable fields. Category is not checked
// here because it may still be resolved by inference.
func (e Expense) ValidateInput() error {
	title := strings.TrimSpace(e.Title)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return ErrTitleTooShort
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks that the expense can be persisted.
func (e Expense) Validate() error {
	if err := e.ValidateInput(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsValidationError reports whether err comes from input validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidDate, ErrInvalidAmount,
		ErrTitleTooShort, ErrTitleTooLong, ErrDescriptionTooLong, ErrEmptyCategory,
		ErrInvalidEmail, ErrWeakPassword, ErrPasswordTooLong, ErrInvalidRole,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
