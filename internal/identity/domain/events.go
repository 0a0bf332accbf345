package domain

import (
	sharedDomain "github.com/felixgeelhaar/slate/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "User"

	RoutingKeyUserRegistered = "identity.user.registered"
)

// UserRegistered is emitted when a user is added to the directory.
type UserRegistered struct {
	sharedDomain.BaseEvent
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewUserRegistered(userID uuid.UUID, email, name string) *UserRegistered {
	return &UserRegistered{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyUserRegistered),
		Email:     email,
		Name:      name,
	}
}
