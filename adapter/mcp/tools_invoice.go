package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	billingApp "github.com/felixgeelhaar/slate/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

type invoiceCreateInput struct {
	ProjectID       string `json:"project_id" jsonschema:"required"`
	DocumentType    string `json:"document_type,omitempty"`
	AmountMinor     int64  `json:"amount_minor" jsonschema:"required"`
	Currency        string `json:"currency,omitempty"`
	IssueDate       string `json:"issue_date,omitempty"`
	PaymentTermDays *int   `json:"payment_term_days,omitempty"`
}

type invoicePayInput struct {
	DocumentID string `json:"document_id" jsonschema:"required"`
}

func registerInvoiceTools(srv *mcp.Server, t *toolset) {
	srv.Tool("invoice.list").
		Description("List a project's invoices and quotes").
		Handler(t.invoiceList)

	srv.Tool("invoice.create").
		Description("Issue an invoice or quote for a project. Defaults come from the project").
		Handler(t.invoiceCreate)

	srv.Tool("invoice.pay").
		Description("Mark a financial document as paid").
		Handler(t.invoicePay)
}

func (t *toolset) invoiceList(ctx context.Context, input projectIDInput) ([]queries.DocumentDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	docs, err := t.app.Billing.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]queries.DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, queries.ToDocumentDTO(d))
	}
	return out, nil
}

func (t *toolset) invoiceCreate(ctx context.Context, input invoiceCreateInput) (*queries.DocumentDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.ProjectID)
	if err != nil {
		return nil, err
	}
	if input.DocumentType == "" {
		input.DocumentType = string(billingDomain.DocumentInvoice)
	}
	docType, err := billingDomain.ParseDocumentType(input.DocumentType)
	if err != nil {
		return nil, err
	}
	issue, err := parseOptionalDate(input.IssueDate)
	if err != nil {
		return nil, err
	}

	detail, err := t.app.GetProjectHandler.Handle(ctx, queries.GetProjectQuery{ProjectID: id})
	if err != nil {
		return nil, err
	}
	in := billingApp.CreateDocumentInput{
		ProjectID:       id,
		ClientID:        detail.Project.ClientID,
		DocumentType:    docType,
		AmountMinor:     input.AmountMinor,
		Currency:        detail.Project.Currency,
		IssueDate:       issue,
		PaymentTermDays: detail.Project.PaymentTermDays,
		ActorID:         t.app.CurrentUserID,
	}
	if input.Currency != "" {
		in.Currency = input.Currency
	}
	if input.PaymentTermDays != nil {
		in.PaymentTermDays = *input.PaymentTermDays
	}

	doc, err := t.app.Billing.CreateDocument(ctx, in)
	if err != nil {
		return nil, err
	}
	dto := queries.ToDocumentDTO(doc)
	return &dto, nil
}

func (t *toolset) invoicePay(ctx context.Context, input invoicePayInput) (*queries.DocumentDTO, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	id, err := parseUUID(input.DocumentID)
	if err != nil {
		return nil, err
	}
	doc, err := t.app.Billing.MarkDocumentPaid(ctx, id, t.app.CurrentUserID)
	if err != nil {
		return nil, err
	}
	dto := queries.ToDocumentDTO(doc)
	return &dto, nil
}
