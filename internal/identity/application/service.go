package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/slate/internal/identity/domain"
	sharedApplication "github.com/felixgeelhaar/slate/internal/shared/application"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// Service is the user directory.
type Service struct {
	repo   domain.UserRepository
	outbox outbox.Repository
	uow    sharedApplication.UnitOfWork
}

// NewService creates a user directory service.
func NewService(repo domain.UserRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *Service {
	return &Service{repo: repo, outbox: outboxRepo, uow: uow}
}

// Register adds a user.
func (s *Service) Register(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := domain.NewUser(email, name)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureUser returns the user with id, registering it first if missing.
// Local mode uses it to seed the operator account.
func (s *Service) EnsureUser(ctx context.Context, id uuid.UUID, email, name string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user, err = domain.NewUserWithID(id, email, name)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureExists returns ErrUserNotFound unless id is registered.
func (s *Service) EnsureExists(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.ErrUserNotFound
	}
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	return nil
}

// Get returns a user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

func (s *Service) save(ctx context.Context, user *domain.User) error {
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, user); err != nil {
			return err
		}
		events := user.PullDomainEvents()
		if s.outbox == nil || len(events) == 0 {
			return nil
		}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.EventMetadataFromContext(txCtx, user.ID()))
		msgs, err := outbox.NewMessages(events)
		if err != nil {
			return err
		}
		return s.outbox.Save(txCtx, msgs...)
	})
}
