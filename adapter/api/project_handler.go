package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	billingApp "github.com/felixgeelhaar/slate/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

// DocumentService is the billing surface the API exposes.
type DocumentService interface {
	CreateDocument(ctx context.Context, in billingApp.CreateDocumentInput) (*billingDomain.FinancialDocument, error)
	MarkDocumentPaid(ctx context.Context, documentID, actor uuid.UUID) (*billingDomain.FinancialDocument, error)
	ListDocuments(ctx context.Context, projectID uuid.UUID) ([]*billingDomain.FinancialDocument, error)
}

// ProjectHandler handles project and lifecycle API requests.
type ProjectHandler struct {
	createProject    *commands.CreateProjectHandler
	updateProject    *commands.UpdateProjectHandler
	deleteProject    *commands.DeleteProjectHandler
	updateStage      *commands.UpdateStageStatusHandler
	updateSpecial    *commands.UpdateSpecialStatusHandler
	getProject       *queries.GetProjectHandler
	listProjects     *queries.ListProjectsHandler
	listHistory      *queries.ListHistoryHandler
	checkPaymentGate *queries.CheckPaymentGateHandler
	documents        DocumentService
	defaultUser      uuid.UUID
	logger           *slog.Logger
}

// ProjectHandlerConfig holds dependencies for the project handler.
type ProjectHandlerConfig struct {
	CreateProject    *commands.CreateProjectHandler
	UpdateProject    *commands.UpdateProjectHandler
	DeleteProject    *commands.DeleteProjectHandler
	UpdateStage      *commands.UpdateStageStatusHandler
	UpdateSpecial    *commands.UpdateSpecialStatusHandler
	GetProject       *queries.GetProjectHandler
	ListProjects     *queries.ListProjectsHandler
	ListHistory      *queries.ListHistoryHandler
	CheckPaymentGate *queries.CheckPaymentGateHandler
	Documents        DocumentService
	// DefaultUser acts for requests without an X-User-ID header. uuid.Nil
	// makes the header mandatory.
	DefaultUser uuid.UUID
	Logger      *slog.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(cfg ProjectHandlerConfig) *ProjectHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ProjectHandler{
		createProject:    cfg.CreateProject,
		updateProject:    cfg.UpdateProject,
		deleteProject:    cfg.DeleteProject,
		updateStage:      cfg.UpdateStage,
		updateSpecial:    cfg.UpdateSpecial,
		getProject:       cfg.GetProject,
		listProjects:     cfg.ListProjects,
		listHistory:      cfg.ListHistory,
		checkPaymentGate: cfg.CheckPaymentGate,
		documents:        cfg.Documents,
		defaultUser:      cfg.DefaultUser,
		logger:           cfg.Logger,
	}
}

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	ClientID        uuid.UUID  `json:"client_id"`
	Name            string     `json:"name"`
	BudgetMinor     int64      `json:"budget_minor"`
	Currency        string     `json:"currency,omitempty"`
	PaymentTermDays *int       `json:"payment_term_days,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// UpdateProjectRequest is the body of PATCH /api/v1/projects/{id}.
type UpdateProjectRequest struct {
	Name            *string    `json:"name,omitempty"`
	BudgetMinor     *int64     `json:"budget_minor,omitempty"`
	Currency        *string    `json:"currency,omitempty"`
	PaymentTermDays *int       `json:"payment_term_days,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	ClearSchedule   bool       `json:"clear_schedule,omitempty"`
}

// StatusChangeRequest is the body of the stage and special endpoints.
type StatusChangeRequest struct {
	Target    string `json:"target"`
	Reason    string `json:"reason,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// CreateDocumentRequest is the body of POST /api/v1/projects/{id}/documents.
type CreateDocumentRequest struct {
	DocumentType    string     `json:"document_type"`
	AmountMinor     int64      `json:"amount_minor"`
	Currency        string     `json:"currency,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	PaymentTermDays *int       `json:"payment_term_days,omitempty"`
}

// ListProjects handles GET /api/v1/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := queries.ListProjectsQuery{
		Stage:         q.Get("stage"),
		SpecialStatus: q.Get("special"),
		Limit:         parseIntParam(r, "limit", 50),
		Offset:        parseIntParam(r, "offset", 0),
	}
	if raw := q.Get("client"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid client id")
			return
		}
		query.ClientID = &id
	}

	projects, err := h.listProjects.Handle(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// CreateProject handles POST /api/v1/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.createProject.Handle(r.Context(), commands.CreateProjectCommand{
		UserID:          userID,
		ClientID:        req.ClientID,
		Name:            req.Name,
		BudgetMinor:     req.BudgetMinor,
		Currency:        req.Currency,
		PaymentTermDays: req.PaymentTermDays,
		IssueDate:       req.IssueDate,
		EndDate:         req.EndDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProject handles GET /api/v1/projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	detail, err := h.getProject.Handle(r.Context(), queries.GetProjectQuery{ProjectID: projectID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateProject handles PATCH /api/v1/projects/{projectID}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.updateProject.Handle(r.Context(), commands.UpdateProjectCommand{
		ProjectID:       projectID,
		UserID:          userID,
		Name:            req.Name,
		BudgetMinor:     req.BudgetMinor,
		Currency:        req.Currency,
		PaymentTermDays: req.PaymentTermDays,
		IssueDate:       req.IssueDate,
		EndDate:         req.EndDate,
		ClearSchedule:   req.ClearSchedule,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /api/v1/projects/{projectID}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	if err := h.deleteProject.Handle(r.Context(), commands.DeleteProjectCommand{ProjectID: projectID, UserID: userID}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStageStatus handles POST /api/v1/projects/{projectID}/stage
func (h *ProjectHandler) UpdateStageStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req StatusChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.updateStage.Handle(r.Context(), commands.UpdateStageStatusCommand{
		ProjectID: projectID,
		UserID:    userID,
		Target:    req.Target,
		Reason:    req.Reason,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateSpecialStatus handles POST /api/v1/projects/{projectID}/special
func (h *ProjectHandler) UpdateSpecialStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req StatusChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.updateSpecial.Handle(r.Context(), commands.UpdateSpecialStatusCommand{
		ProjectID: projectID,
		UserID:    userID,
		Target:    req.Target,
		Reason:    req.Reason,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListHistory handles GET /api/v1/projects/{projectID}/history
func (h *ProjectHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	history, err := h.listHistory.Handle(r.Context(), queries.ListHistoryQuery{
		ProjectID: projectID,
		Kind:      r.URL.Query().Get("kind"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// CheckPaymentGate handles GET /api/v1/projects/{projectID}/payment-gate
func (h *ProjectHandler) CheckPaymentGate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	gate, err := h.checkPaymentGate.Handle(r.Context(), queries.CheckPaymentGateQuery{ProjectID: projectID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

// ListDocuments handles GET /api/v1/projects/{projectID}/documents
func (h *ProjectHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	docs, err := h.documents.ListDocuments(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]queries.DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, queries.ToDocumentDTO(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// CreateDocument handles POST /api/v1/projects/{projectID}/documents
func (h *ProjectHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	docType, err := billingDomain.ParseDocumentType(req.DocumentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.getProject.Handle(r.Context(), queries.GetProjectQuery{ProjectID: projectID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	term := detail.Project.PaymentTermDays
	if req.PaymentTermDays != nil {
		term = *req.PaymentTermDays
	}
	currency := req.Currency
	if currency == "" {
		currency = detail.Project.Currency
	}

	doc, err := h.documents.CreateDocument(r.Context(), billingApp.CreateDocumentInput{
		ProjectID:       projectID,
		ClientID:        detail.Project.ClientID,
		DocumentType:    docType,
		AmountMinor:     req.AmountMinor,
		Currency:        currency,
		IssueDate:       req.IssueDate,
		PaymentTermDays: term,
		ActorID:         userID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, queries.ToDocumentDTO(doc))
}

// MarkDocumentPaid handles POST /api/v1/documents/{documentID}/pay
func (h *ProjectHandler) MarkDocumentPaid(w http.ResponseWriter, r *http.Request) {
	documentID, ok := pathUUID(w, r, "documentID")
	if !ok {
		return
	}
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.MarkDocumentPaid(r.Context(), documentID, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queries.ToDocumentDTO(doc))
}

// actingUser resolves the user from the X-User-ID header, falling back to the
// configured default.
func (h *ProjectHandler) actingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		if h.defaultUser == uuid.Nil {
			writeError(w, http.StatusUnauthorized, CodeUnknownUser, "missing "+HeaderUserID+" header")
			return uuid.Nil, false
		}
		return h.defaultUser, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+HeaderUserID+" header")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProjectHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			observability.ErrorKey, err,
		)
	}
	writeJSON(w, status, ErrorResponse{Error: body})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
