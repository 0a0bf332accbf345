package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockHistoryRepo struct {
	mock.Mock
}

func (m *mockHistoryRepo) Append(ctx context.Context, r domain.StatusHistoryRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockHistoryRepo) ListByProject(ctx context.Context, id uuid.UUID) ([]domain.StatusHistoryRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatusHistoryRecord), args.Error(1)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) CanComplete(ctx context.Context, id uuid.UUID) (domain.GateResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.GateResult), args.Error(1)
}

type stubDocuments struct {
	docs []*billingDomain.FinancialDocument
	err  error
}

func (s stubDocuments) ListDocuments(context.Context, uuid.UUID) ([]*billingDomain.FinancialDocument, error) {
	return s.docs, s.err
}

func newProject(t *testing.T) *domain.Project {
	t.Helper()
	p, err := domain.NewProject(uuid.New(), "Documentary", 90000, "EUR", 30)
	require.NoError(t, err)
	return p
}

func TestGetProject(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, p.ID()).Return(p, nil)

	h := NewGetProjectHandler(repo, stubDocuments{})
	detail, err := h.Handle(ctx, GetProjectQuery{ProjectID: p.ID()})
	require.NoError(t, err)

	assert.Equal(t, p.ID(), detail.Project.ID)
	assert.Equal(t, "proposal", detail.Project.Stage)
	assert.NotNil(t, detail.Documents)
	assert.Contains(t, detail.AllowedStages, "accepted")
	assert.NotContains(t, detail.AllowedStages, "proposal")
}

func TestGetProject_CanceledHasNoAllowedStages(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	p.ApplySpecialStatus(domain.SpecialCanceled, "", uuid.New())
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, p.ID()).Return(p, nil)

	detail, err := NewGetProjectHandler(repo, nil).Handle(ctx, GetProjectQuery{ProjectID: p.ID()})
	require.NoError(t, err)
	assert.Empty(t, detail.AllowedStages)
}

func TestGetProject_DocumentError(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, p.ID()).Return(p, nil)

	_, err := NewGetProjectHandler(repo, stubDocuments{err: errors.New("db down")}).Handle(ctx, GetProjectQuery{ProjectID: p.ID()})
	assert.Error(t, err)
}

func TestListProjects_Filters(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	repo := new(mockProjectRepo)
	stage := domain.StageAccepted
	special := domain.SpecialPaused
	repo.On("List", ctx, mock.MatchedBy(func(f domain.ListFilter) bool {
		return f.Stage != nil && *f.Stage == stage && f.Special != nil && *f.Special == special && f.Limit == 10
	})).Return([]*domain.Project{p}, nil)

	out, err := NewListProjectsHandler(repo).Handle(ctx, ListProjectsQuery{
		Stage:         "accepted",
		SpecialStatus: "paused",
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, p.ID(), out[0].ID)
}

func TestListProjects_InvalidFilter(t *testing.T) {
	repo := new(mockProjectRepo)
	h := NewListProjectsHandler(repo)

	_, err := h.Handle(context.Background(), ListProjectsQuery{Stage: "wrapped"})
	assert.ErrorIs(t, err, domain.ErrUnknownStage)

	_, err = h.Handle(context.Background(), ListProjectsQuery{SpecialStatus: "frozen"})
	assert.ErrorIs(t, err, domain.ErrUnknownSpecialStatus)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestListHistory_FiltersByKind(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	actor := uuid.New()
	records := []domain.StatusHistoryRecord{
		domain.NewStageRecord(p.ID(), "", domain.StageProposal, "created", actor),
		domain.NewSpecialRecord(p.ID(), domain.SpecialNone, domain.SpecialDelayed, "weather", actor),
		domain.NewStageRecord(p.ID(), domain.StageProposal, domain.StageAccepted, "", actor),
	}
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, p.ID()).Return(p, nil)
	hist := new(mockHistoryRepo)
	hist.On("ListByProject", ctx, p.ID()).Return(records, nil)

	h := NewListHistoryHandler(repo, hist)

	all, err := h.Handle(ctx, ListHistoryQuery{ProjectID: p.ID()})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	special, err := h.Handle(ctx, ListHistoryQuery{ProjectID: p.ID(), Kind: "special"})
	require.NoError(t, err)
	require.Len(t, special, 1)
	assert.Equal(t, "none", special[0].PreviousStatus)
	assert.Equal(t, "delayed", special[0].NewStatus)
	assert.Equal(t, "weather", special[0].Reason)
}

func TestListHistory_UnknownProject(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, id).Return(nil, domain.ErrProjectNotFound)
	hist := new(mockHistoryRepo)

	_, err := NewListHistoryHandler(repo, hist).Handle(ctx, ListHistoryQuery{ProjectID: id})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	hist.AssertNotCalled(t, "ListByProject", mock.Anything, mock.Anything)
}

func TestCheckPaymentGate(t *testing.T) {
	ctx := context.Background()
	p := newProject(t)
	repo := new(mockProjectRepo)
	repo.On("FindByID", ctx, p.ID()).Return(p, nil)

	t.Run("clear", func(t *testing.T) {
		gate := new(mockGate)
		gate.On("CanComplete", ctx, p.ID()).Return(domain.GateResult{OK: true}, nil).Once()

		dto, err := NewCheckPaymentGateHandler(repo, gate).Handle(ctx, CheckPaymentGateQuery{ProjectID: p.ID()})
		require.NoError(t, err)
		assert.True(t, dto.CanComplete)
		assert.NotNil(t, dto.Unpaid)
		assert.Empty(t, dto.Unpaid)
	})

	t.Run("unpaid", func(t *testing.T) {
		unpaid := []domain.UnpaidDocument{{ID: uuid.New(), DocumentType: "invoice", AmountMinor: 90000, Currency: "EUR"}}
		gate := new(mockGate)
		gate.On("CanComplete", ctx, p.ID()).Return(domain.GateResult{Unpaid: unpaid}, nil).Once()

		dto, err := NewCheckPaymentGateHandler(repo, gate).Handle(ctx, CheckPaymentGateQuery{ProjectID: p.ID()})
		require.NoError(t, err)
		assert.False(t, dto.CanComplete)
		assert.Equal(t, unpaid, dto.Unpaid)
	})

	t.Run("gate failure", func(t *testing.T) {
		gate := new(mockGate)
		gate.On("CanComplete", ctx, p.ID()).Return(domain.GateResult{}, errors.New("db down")).Once()

		_, err := NewCheckPaymentGateHandler(repo, gate).Handle(ctx, CheckPaymentGateQuery{ProjectID: p.ID()})
		assert.Error(t, err)
	})
}
