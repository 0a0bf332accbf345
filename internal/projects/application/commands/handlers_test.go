package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/internal/projects/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

type mockProjectRepo struct {
	mock.Mock
}

func (m *mockProjectRepo) Save(ctx context.Context, p *domain.Project) (int, error) {
	args := m.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

func (m *mockProjectRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *mockProjectRepo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Project, error) {
	args := m.Called(ctx, filter)
	projects, _ := args.Get(0).([]*domain.Project)
	return projects, args.Error(1)
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockHistoryRepo struct {
	mock.Mock
}

func (m *mockHistoryRepo) Append(ctx context.Context, rec domain.StatusHistoryRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockHistoryRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.StatusHistoryRecord, error) {
	args := m.Called(ctx, projectID)
	recs, _ := args.Get(0).([]domain.StatusHistoryRecord)
	return recs, args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) EnsureInvoice(ctx context.Context, p *domain.Project, actor uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, p, actor)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockSync) RevertSideEffects(ctx context.Context, projectID, actor uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, projectID, actor)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) EnsureExists(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockOutboxRepo struct {
	mock.Mock
	outbox.Repository
}

func (m *mockOutboxRepo) Save(ctx context.Context, msgs ...*outbox.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.Called(ctx, topic, payload).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) CanComplete(ctx context.Context, projectID uuid.UUID) (domain.GateResult, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(domain.GateResult), args.Error(1)
}

type fixture struct {
	ctx       context.Context
	txCtx     context.Context
	userID    uuid.UUID
	projects  *mockProjectRepo
	history   *mockHistoryRepo
	sync      *mockSync
	users     *mockUsers
	outbox    *mockOutboxRepo
	publisher *mockPublisher
	uow       *mockUnitOfWork
	gate      *mockGate
	metrics   *observability.InMemoryMetrics
}

func newFixture() *fixture {
	ctx := context.Background()
	f := &fixture{
		ctx:       ctx,
		txCtx:     context.WithValue(ctx, "tx", "transaction"),
		userID:    uuid.New(),
		projects:  new(mockProjectRepo),
		history:   new(mockHistoryRepo),
		sync:      new(mockSync),
		users:     new(mockUsers),
		outbox:    new(mockOutboxRepo),
		publisher: new(mockPublisher),
		uow:       new(mockUnitOfWork),
		gate:      new(mockGate),
		metrics:   observability.NewInMemoryMetrics(),
	}
	f.users.On("EnsureExists", ctx, f.userID).Return(nil)
	f.uow.On("Begin", ctx).Return(f.txCtx, nil)
	return f
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Projects:  f.projects,
		History:   f.history,
		Validator: domain.NewValidator(f.gate, domain.DefaultValidatorPolicy()),
		Sync:      f.sync,
		Users:     f.users,
		Outbox:    f.outbox,
		Publisher: f.publisher,
		UoW:       f.uow,
		Policy:    DefaultPolicy(),
		Metrics:   f.metrics,
	}
}

// expectCommittedWrite sets up the happy path after validation.
func (f *fixture) expectCommittedWrite(p *domain.Project, previousVersion int) {
	f.projects.On("Save", f.txCtx, p).Return(previousVersion, nil)
	f.history.On("Append", f.txCtx, mock.Anything).Return(nil)
	f.outbox.On("Save", f.txCtx, mock.Anything).Return(nil)
	f.uow.On("Commit", f.txCtx).Return(nil)
}

func storedProject(stage domain.StageStatus, special domain.SpecialStatus) *domain.Project {
	now := time.Now().UTC()
	return domain.RehydrateProject(uuid.New(), uuid.New(), "Brand film", 250000, "EUR", 30,
		stage, special, nil, nil, 1, now, now)
}

func TestUpdateStageStatus_AcceptCreatesInvoice(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProposal, domain.SpecialNone)
	invoiceID := uuid.New()

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.sync.On("EnsureInvoice", f.txCtx, p, f.userID).Return(invoiceID, nil)
	f.expectCommittedWrite(p, 1)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(),
		UserID:    f.userID,
		Target:    "accepted",
	})
	require.NoError(t, err)

	assert.False(t, res.NoOp)
	assert.Equal(t, "accepted", res.Project.Stage)
	require.NotNil(t, res.InvoiceCreated)
	assert.Equal(t, invoiceID, *res.InvoiceCreated)
	assert.Empty(t, res.Warnings)

	rec := f.history.Calls[0].Arguments.Get(1).(domain.StatusHistoryRecord)
	assert.Equal(t, domain.HistoryKindStage, rec.Kind)
	assert.Equal(t, "proposal", rec.PreviousStatus)
	assert.Equal(t, "accepted", rec.NewStatus)
	assert.Equal(t, f.userID, rec.ChangedBy)

	payload := f.publisher.Calls[0].Arguments.Get(2).([]byte)
	var evt ProjectUpdated
	require.NoError(t, json.Unmarshal(payload, &evt))
	assert.Equal(t, ProjectUpdatedType, evt.Type)
	assert.Equal(t, "accepted", evt.NewStage)
	assert.Equal(t, f.userID, evt.ChangedBy)

	assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricTransitionsTotal,
		observability.T("kind", "forward"), observability.T("to", "accepted")))
	assert.Zero(t, f.metrics.CounterValue(observability.MetricConcurrentOverwrite))
	f.sync.AssertNotCalled(t, "RevertSideEffects", mock.Anything, mock.Anything, mock.Anything)
	f.uow.AssertExpectations(t)
}

func TestUpdateStageStatus_InvoiceFailureAborts(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProposal, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.sync.On("EnsureInvoice", f.txCtx, p, f.userID).
		Return(uuid.Nil, &domain.SideEffectError{Op: "create_invoice", Err: errors.New("disk full"), Fatal: true})
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "accepted",
	})
	var se *domain.SideEffectError
	require.ErrorAs(t, err, &se)
	f.projects.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStageStatus_RevertNeedsConfirmation(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageAccepted, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "proposal",
	})
	require.ErrorIs(t, err, domain.ErrConfirmationRequired)

	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Message, "pending invoices")
	assert.Equal(t, domain.StageAccepted, p.Stage())
	f.sync.AssertNotCalled(t, "RevertSideEffects", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricTransitionsRejected,
		observability.T("reason", string(domain.ReasonConfirmationRequired))))
}

func TestUpdateStageStatus_ConfirmedRevertDeletesInvoices(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProduction, domain.SpecialNone)
	deleted := []uuid.UUID{uuid.New(), uuid.New()}

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.sync.On("RevertSideEffects", f.txCtx, p.ID(), f.userID).Return(deleted, nil)
	f.expectCommittedWrite(p, 1)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "proposal", Confirmed: true, Reason: "client pulled out",
	})
	require.NoError(t, err)
	assert.Equal(t, "proposal", res.Project.Stage)
	assert.Equal(t, deleted, res.DocumentsDeleted)
	assert.Equal(t, string(domain.TransitionRevert), res.Kind)
	f.sync.AssertNotCalled(t, "EnsureInvoice", mock.Anything, mock.Anything, mock.Anything)

	rec := f.history.Calls[0].Arguments.Get(1).(domain.StatusHistoryRecord)
	assert.Equal(t, "client pulled out", rec.Reason)
}

func TestUpdateStageStatus_RevertDeletionFailureIsWarning(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageAccepted, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.sync.On("RevertSideEffects", f.txCtx, p.ID(), f.userID).
		Return(nil, &domain.SideEffectError{Op: "delete_invoices", Err: errors.New("locked")})
	f.expectCommittedWrite(p, 1)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "proposal", Confirmed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "proposal", res.Project.Stage)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningInvoiceRemovalFailed, res.Warnings[0].Code)
	assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricSideEffectWarnings))
}

func TestUpdateStageStatus_RevertWithinBillingHasNoSideEffects(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StagePostReview, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.expectCommittedWrite(p, 1)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "production", Confirmed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "production", res.Project.Stage)
	assert.Nil(t, res.InvoiceCreated)
	f.sync.AssertNotCalled(t, "EnsureInvoice", mock.Anything, mock.Anything, mock.Anything)
	f.sync.AssertNotCalled(t, "RevertSideEffects", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStageStatus_CanceledBlocks(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProduction, domain.SpecialCanceled)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "post_review", Confirmed: true,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.ReasonBlockedByCancellation, terr.Code)
	f.projects.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateStageStatus_CompletionBlockedByUnpaid(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageDelivered, domain.SpecialNone)
	unpaid := domain.UnpaidDocument{ID: uuid.New(), DocumentType: "invoice", AmountMinor: 250000, Currency: "EUR"}

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.gate.On("CanComplete", f.txCtx, p.ID()).Return(domain.GateResult{Unpaid: []domain.UnpaidDocument{unpaid}}, nil)
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "completed", Confirmed: true,
	})
	require.ErrorIs(t, err, domain.ErrPaymentPending)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	require.Len(t, terr.Unpaid, 1)
	assert.Equal(t, unpaid.ID, terr.Unpaid[0].ID)
}

func TestUpdateStageStatus_CompletionNeedsConfirmation(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageDelivered, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.gate.On("CanComplete", f.txCtx, p.ID()).Return(domain.GateResult{OK: true}, nil)
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "completed",
	})
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
}

func TestUpdateStageStatus_SameStageIsNoOp(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProduction, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.uow.On("Commit", f.txCtx).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "production",
	})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, string(domain.ReasonNoOp), res.ReasonCode)
	f.projects.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStageStatus_HistoryFailureAborts(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StagePreProduction, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.projects.On("Save", f.txCtx, p).Return(1, nil)
	f.history.On("Append", f.txCtx, mock.Anything).Return(errors.New("constraint failed"))
	f.uow.On("Rollback", f.txCtx).Return(nil)

	_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "production",
	})
	require.ErrorIs(t, err, domain.ErrHistoryWriteFailure)
	f.uow.AssertNotCalled(t, "Commit", mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStageStatus_BroadcastFailureIsWarning(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StagePreProduction, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.expectCommittedWrite(p, 1)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(errors.New("bus closed"))

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "production",
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningBroadcastFailed, res.Warnings[0].Code)
	assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricBroadcastFailures))
}

func TestUpdateStageStatus_ConcurrentOverwriteIsRecorded(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StagePreProduction, domain.SpecialNone)

	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.expectCommittedWrite(p, 2)
	f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

	res, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
		ProjectID: p.ID(), UserID: f.userID, Target: "production",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricConcurrentOverwrite))
}

func TestUpdateStageStatus_InputErrors(t *testing.T) {
	t.Run("unknown stage", func(t *testing.T) {
		f := newFixture()
		_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
			ProjectID: uuid.New(), UserID: f.userID, Target: "shipped",
		})
		assert.ErrorIs(t, err, domain.ErrUnknownStage)
		f.uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()
		stranger := uuid.New()
		notFound := errors.New("user not found")
		f.users.On("EnsureExists", f.ctx, stranger).Return(notFound)

		_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
			ProjectID: uuid.New(), UserID: stranger, Target: "accepted",
		})
		assert.ErrorIs(t, err, notFound)
	})

	t.Run("missing project", func(t *testing.T) {
		f := newFixture()
		id := uuid.New()
		f.projects.On("FindByID", f.txCtx, id).Return(nil, domain.ErrProjectNotFound)
		f.uow.On("Rollback", f.txCtx).Return(nil)

		_, err := NewUpdateStageStatusHandler(f.deps()).Handle(f.ctx, UpdateStageStatusCommand{
			ProjectID: id, UserID: f.userID, Target: "accepted",
		})
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})
}

func TestUpdateSpecialStatus(t *testing.T) {
	t.Run("cancel needs confirmation", func(t *testing.T) {
		f := newFixture()
		p := storedProject(domain.StageProduction, domain.SpecialNone)
		f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
		f.uow.On("Rollback", f.txCtx).Return(nil)

		_, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: p.ID(), UserID: f.userID, Target: "canceled",
		})
		assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
		assert.Equal(t, domain.SpecialNone, p.SpecialStatus())
	})

	t.Run("confirmed cancel records special history", func(t *testing.T) {
		f := newFixture()
		p := storedProject(domain.StageProduction, domain.SpecialNone)
		f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
		f.expectCommittedWrite(p, 1)
		f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

		res, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: p.ID(), UserID: f.userID, Target: "canceled", Confirmed: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "canceled", res.Project.SpecialStatus)
		assert.Equal(t, "production", res.Project.Stage)

		rec := f.history.Calls[0].Arguments.Get(1).(domain.StatusHistoryRecord)
		assert.Equal(t, domain.HistoryKindSpecial, rec.Kind)
		assert.Equal(t, "none", rec.PreviousStatus)
		assert.Equal(t, "canceled", rec.NewStatus)
		f.sync.AssertNotCalled(t, "EnsureInvoice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("pause does not need confirmation", func(t *testing.T) {
		f := newFixture()
		p := storedProject(domain.StageProduction, domain.SpecialNone)
		f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
		f.expectCommittedWrite(p, 1)
		f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

		res, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: p.ID(), UserID: f.userID, Target: "paused",
		})
		require.NoError(t, err)
		assert.Equal(t, "paused", res.Project.SpecialStatus)
		assert.Equal(t, int64(1), f.metrics.CounterValue(observability.MetricSpecialChanges, observability.T("to", "paused")))
	})

	t.Run("clearing cancellation reopens the project", func(t *testing.T) {
		f := newFixture()
		p := storedProject(domain.StageProduction, domain.SpecialCanceled)
		f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
		f.expectCommittedWrite(p, 1)
		f.publisher.On("Publish", f.ctx, Topic(p.ID()), mock.Anything).Return(nil)

		res, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: p.ID(), UserID: f.userID, Target: "",
		})
		require.NoError(t, err)
		assert.Equal(t, "none", res.Project.SpecialStatus)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		f := newFixture()
		p := storedProject(domain.StageProduction, domain.SpecialDelayed)
		f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
		f.uow.On("Commit", f.txCtx).Return(nil)

		res, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: p.ID(), UserID: f.userID, Target: "delayed",
		})
		require.NoError(t, err)
		assert.True(t, res.NoOp)
		f.projects.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture()
		_, err := NewUpdateSpecialStatusHandler(f.deps()).Handle(f.ctx, UpdateSpecialStatusCommand{
			ProjectID: uuid.New(), UserID: f.userID, Target: "archived",
		})
		assert.ErrorIs(t, err, domain.ErrUnknownSpecialStatus)
	})
}

func TestCreateProject(t *testing.T) {
	f := newFixture()
	clientID := uuid.New()
	f.projects.On("Save", f.txCtx, mock.AnythingOfType("*domain.Project")).Return(0, nil)
	f.history.On("Append", f.txCtx, mock.Anything).Return(nil)
	f.outbox.On("Save", f.txCtx, mock.MatchedBy(func(msgs []*outbox.Message) bool {
		return len(msgs) == 1 && msgs[0].EventType == domain.RoutingKeyProjectCreated
	})).Return(nil)
	f.uow.On("Commit", f.txCtx).Return(nil)

	dto, err := NewCreateProjectHandler(f.deps()).Handle(f.ctx, CreateProjectCommand{
		UserID:      f.userID,
		ClientID:    clientID,
		Name:        "  Documentary  ",
		BudgetMinor: 900000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Documentary", dto.Name)
	assert.Equal(t, "proposal", dto.Stage)
	assert.Equal(t, "none", dto.SpecialStatus)
	assert.Equal(t, domain.DefaultPaymentTermDays, dto.PaymentTermDays)
	assert.Equal(t, clientID, dto.ClientID)

	rec := f.history.Calls[0].Arguments.Get(1).(domain.StatusHistoryRecord)
	assert.Empty(t, rec.PreviousStatus)
	assert.Equal(t, "proposal", rec.NewStatus)
	f.outbox.AssertExpectations(t)
}

func TestCreateProject_RejectsInvalidInput(t *testing.T) {
	f := newFixture()
	_, err := NewCreateProjectHandler(f.deps()).Handle(f.ctx, CreateProjectCommand{
		UserID: f.userID, ClientID: uuid.New(), Name: " ",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyName)
	f.uow.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestUpdateProject(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageAccepted, domain.SpecialNone)
	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.projects.On("Save", f.txCtx, p).Return(1, nil)
	f.uow.On("Commit", f.txCtx).Return(nil)

	name := "Brand film (cut 2)"
	budget := int64(300000)
	end := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	dto, err := NewUpdateProjectHandler(f.deps()).Handle(f.ctx, UpdateProjectCommand{
		ProjectID:   p.ID(),
		UserID:      f.userID,
		Name:        &name,
		BudgetMinor: &budget,
		EndDate:     &end,
	})
	require.NoError(t, err)
	assert.Equal(t, name, dto.Name)
	assert.Equal(t, budget, dto.BudgetMinor)
	assert.Equal(t, "EUR", dto.Currency)
	require.NotNil(t, dto.EndDate)
	assert.True(t, end.Equal(*dto.EndDate))
	assert.Equal(t, "accepted", dto.Stage)
}

func TestDeleteProject(t *testing.T) {
	f := newFixture()
	p := storedProject(domain.StageProposal, domain.SpecialNone)
	f.projects.On("FindByID", f.txCtx, p.ID()).Return(p, nil)
	f.projects.On("Delete", f.txCtx, p.ID()).Return(nil)
	f.uow.On("Commit", f.txCtx).Return(nil)

	err := NewDeleteProjectHandler(f.deps()).Handle(f.ctx, DeleteProjectCommand{ProjectID: p.ID(), UserID: f.userID})
	require.NoError(t, err)
	f.projects.AssertExpectations(t)
}
