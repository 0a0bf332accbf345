package domain

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows project listings.
type ListFilter struct {
	ClientID *uuid.UUID
	Stage    *StageStatus
	Special  *SpecialStatus
	Limit    int
	Offset   int
}

// Repository persists projects.
type Repository interface {
	// Save inserts a new project or updates an existing one, bumping its
	// version. The returned value is the version before the write as seen
	// by the database, so callers can tell whether another writer got in
	// between their read and this write.
	Save(ctx context.Context, project *Project) (previousVersion int, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	List(ctx context.Context, filter ListFilter) ([]*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
