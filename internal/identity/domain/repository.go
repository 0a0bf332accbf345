package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists users.
type UserRepository interface {
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
