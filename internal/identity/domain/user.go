package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrNameTooLong    = errors.New("name exceeds maximum length")
	ErrDuplicateEmail = errors.New("email already registered")
)

// MaxNameLength bounds display names.
const MaxNameLength = 255

// User is a person who can change project status. Every status history
// record points at one.
type User struct {
	sharedDomain.BaseAggregateRoot
	email string
	name  string
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", ErrEmptyName
	case len(name) > MaxNameLength:
		return "", ErrNameTooLong
	}
	return name, nil
}

// NewUser registers a user.
func NewUser(email, name string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name, err = normalizeName(name)
	if err != nil {
		return nil, err
	}

	u := &User{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		email:             email,
		name:              name,
	}
	u.AddDomainEvent(NewUserRegistered(u.ID(), email, name))
	return u, nil
}

// NewUserWithID registers a user under a fixed ID, for seeding the local
// operator account.
func NewUserWithID(id uuid.UUID, email, name string) (*User, error) {
	u, err := NewUser(email, name)
	if err != nil {
		return nil, err
	}
	u.BaseAggregateRoot = sharedDomain.NewBaseAggregateRootWithID(id)
	u.AddDomainEvent(NewUserRegistered(id, u.email, u.name))
	return u, nil
}

// RehydrateUser recreates a user from persisted state.
func RehydrateUser(id uuid.UUID, email, name string, createdAt, updatedAt time.Time) *User {
	return &User{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), 1,
		),
		email: email,
		name:  name,
	}
}

// Getters
func (u *User) Email() string { return u.email }
func (u *User) Name() string  { return u.name }

// Rename changes the display name.
func (u *User) Rename(name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if name == u.name {
		return nil
	}
	u.name = name
	u.Touch()
	return nil
}
