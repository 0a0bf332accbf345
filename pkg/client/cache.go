package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownProject is returned when an intent targets a project the cache
// has never seen.
var ErrUnknownProject = errors.New("project not in cache")

// Intent is a requested change applied speculatively before the server
// answers. Empty fields leave the value unchanged.
type Intent struct {
	ProjectID     uuid.UUID
	Stage         string
	SpecialStatus string
}

// View is what a UI should render for one project.
type View struct {
	Project Project
	// Pending is set while a speculative change awaits the server.
	Pending bool
	// LastError holds the most recent rejection until the next change.
	LastError error
}

type cacheEntry struct {
	confirmed Project
	pending   *Project
	lastErr   error
}

// ProjectCache holds server-confirmed project state plus at most one
// speculative change per project. Speculative state is never treated as
// ground truth: it is replaced by Confirm or ApplyBroadcast, or discarded by
// Reject.
type ProjectCache struct {
	mu       sync.RWMutex
	entries  map[uuid.UUID]*cacheEntry
	onChange func(View)
}

// NewProjectCache creates an empty cache. onChange, when non-nil, is called
// after every change with the new view, outside the cache lock.
func NewProjectCache(onChange func(View)) *ProjectCache {
	return &ProjectCache{
		entries:  make(map[uuid.UUID]*cacheEntry),
		onChange: onChange,
	}
}

// Load seeds confirmed state from a server snapshot.
func (c *ProjectCache) Load(p Project) {
	c.mu.Lock()
	e := c.entry(p.ID)
	if p.Version >= e.confirmed.Version {
		e.confirmed = p
	}
	v := e.view()
	c.mu.Unlock()
	c.notify(v)
}

// Apply records a speculative change tagged pending.
func (c *ProjectCache) Apply(intent Intent) (View, error) {
	c.mu.Lock()
	e, ok := c.entries[intent.ProjectID]
	if !ok {
		c.mu.Unlock()
		return View{}, ErrUnknownProject
	}
	next := e.current()
	if intent.Stage != "" {
		next.Stage = intent.Stage
	}
	if intent.SpecialStatus != "" {
		next.SpecialStatus = intent.SpecialStatus
	}
	e.pending = &next
	e.lastErr = nil
	v := e.view()
	c.mu.Unlock()
	c.notify(v)
	return v, nil
}

// Confirm resolves the pending change with the server's snapshot. A snapshot
// older than the confirmed state is ignored.
func (c *ProjectCache) Confirm(p Project) {
	c.mu.Lock()
	e := c.entry(p.ID)
	if p.Version >= e.confirmed.Version {
		e.confirmed = p
	}
	e.pending = nil
	v := e.view()
	c.mu.Unlock()
	c.notify(v)
}

// Reject discards the pending change and reverts to the last confirmed state.
func (c *ProjectCache) Reject(projectID uuid.UUID, err error) {
	c.mu.Lock()
	e, ok := c.entries[projectID]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.pending = nil
	e.lastErr = err
	v := e.view()
	c.mu.Unlock()
	c.notify(v)
}

// ApplyBroadcast overwrites confirmed state with an authoritative update and
// drops any speculation for that project.
func (c *ProjectCache) ApplyBroadcast(ev ProjectUpdated) {
	c.mu.Lock()
	e := c.entry(ev.ProjectID)
	if ev.Project != nil {
		e.confirmed = *ev.Project
	} else {
		e.confirmed.ID = ev.ProjectID
		e.confirmed.Stage = ev.NewStage
		e.confirmed.SpecialStatus = ev.NewSpecialStatus
		e.confirmed.Version = ev.Version
	}
	e.pending = nil
	v := e.view()
	c.mu.Unlock()
	c.notify(v)
}

// View returns the speculative state if a change is pending, else the
// confirmed state.
func (c *ProjectCache) View(projectID uuid.UUID) (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[projectID]
	if !ok {
		return View{}, false
	}
	return e.view(), true
}

// Confirmed returns the last server-confirmed state.
func (c *ProjectCache) Confirmed(projectID uuid.UUID) (Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[projectID]
	if !ok {
		return Project{}, false
	}
	return e.confirmed, true
}

// ChangeStage applies intent speculatively, sends it through the client and
// confirms or rejects it with the answer.
func (c *ProjectCache) ChangeStage(ctx context.Context, api *Client, intent Intent, change StatusChange) (*TransitionResult, error) {
	return c.round(ctx, intent, func(ctx context.Context) (*TransitionResult, error) {
		change.Target = intent.Stage
		return api.UpdateStageStatus(ctx, intent.ProjectID, change)
	})
}

// ChangeSpecialStatus is ChangeStage for the special-status overlay.
func (c *ProjectCache) ChangeSpecialStatus(ctx context.Context, api *Client, intent Intent, change StatusChange) (*TransitionResult, error) {
	return c.round(ctx, intent, func(ctx context.Context) (*TransitionResult, error) {
		change.Target = intent.SpecialStatus
		return api.UpdateSpecialStatus(ctx, intent.ProjectID, change)
	})
}

func (c *ProjectCache) round(ctx context.Context, intent Intent, call func(context.Context) (*TransitionResult, error)) (*TransitionResult, error) {
	if _, err := c.Apply(intent); err != nil {
		return nil, err
	}
	res, err := call(ctx)
	if err != nil {
		c.Reject(intent.ProjectID, err)
		return nil, err
	}
	if res.Project != nil {
		c.Confirm(*res.Project)
	} else {
		c.Reject(intent.ProjectID, nil)
	}
	return res, nil
}

func (c *ProjectCache) entry(id uuid.UUID) *cacheEntry {
	e, ok := c.entries[id]
	if !ok {
		e = &cacheEntry{confirmed: Project{ID: id}}
		c.entries[id] = e
	}
	return e
}

func (c *ProjectCache) notify(v View) {
	if c.onChange != nil {
		c.onChange(v)
	}
}

func (e *cacheEntry) current() Project {
	if e.pending != nil {
		return *e.pending
	}
	return e.confirmed
}

func (e *cacheEntry) view() View {
	return View{Project: e.current(), Pending: e.pending != nil, LastError: e.lastErr}
}
