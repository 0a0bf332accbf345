package domain

import "github.com/google/uuid"

// AggregateRoot is the consistency boundary for a cluster of domain objects.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	PullDomainEvents() []DomainEvent
	Version() int
}

// BaseAggregateRoot records uncommitted events and the persisted row version.
// The version is bumped by the repository on every write; it is what lets a
// writer notice that somebody else saved the aggregate in between.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent
	version      int
}

// NewBaseAggregateRoot creates a new, never persisted aggregate root.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity()}
}

// NewBaseAggregateRootWithID creates a new aggregate root with a specific ID.
func NewBaseAggregateRootWithID(id uuid.UUID) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityWithID(id)}
}

// RehydrateBaseAggregateRoot recreates an aggregate from persisted state.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// DomainEvents returns the uncommitted events without clearing them.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// PullDomainEvents returns the uncommitted events and clears them.
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

// AddDomainEvent records an event raised by the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// Version returns the last persisted version (0 when never saved).
func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// IsNew reports whether the aggregate has never been persisted.
func (a *BaseAggregateRoot) IsNew() bool {
	return a.version == 0
}

// SetVersion is used by repositories after a write.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}
