// Package invoice provides the financial document commands.
package invoice

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
	billingApp "github.com/felixgeelhaar/slate/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/slate/internal/billing/domain"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

// Cmd is the invoice command group
var Cmd = &cobra.Command{
	Use:     "invoice",
	Aliases: []string{"doc"},
	Short:   "Manage invoices and quotes",
}

var (
	createType     string
	createAmount   int64
	createCurrency string
	createIssue    string
	createTerm     int
)

var listCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's financial documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}

		docs, err := app.Billing.ListDocuments(cmd.Context(), projectID)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			fmt.Fprintln(out, "No documents found.")
			return nil
		}
		for _, d := range docs {
			printDocument(out, queries.ToDocumentDTO(d))
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create [project-id]",
	Short: "Issue an invoice or quote by hand",
	Long: `Issue a financial document for a project. The client, currency and
payment term default to the project's.

Examples:
  slate invoice create abc123 --amount 50000
  slate invoice create abc123 --type quote --amount 120000 --term 14`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := cli.ParseID("project", args[0])
		if err != nil {
			return err
		}
		docType, err := billingDomain.ParseDocumentType(createType)
		if err != nil {
			return err
		}

		detail, err := app.GetProjectHandler.Handle(cmd.Context(), queries.GetProjectQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		in := billingApp.CreateDocumentInput{
			ProjectID:       projectID,
			ClientID:        detail.Project.ClientID,
			DocumentType:    docType,
			AmountMinor:     createAmount,
			Currency:        detail.Project.Currency,
			PaymentTermDays: detail.Project.PaymentTermDays,
			ActorID:         app.CurrentUserID,
		}
		if createCurrency != "" {
			in.Currency = createCurrency
		}
		if cmd.Flags().Changed("term") {
			in.PaymentTermDays = createTerm
		}
		if createIssue != "" {
			issue, err := time.Parse("2006-01-02", createIssue)
			if err != nil {
				return fmt.Errorf("invalid issue date format (use YYYY-MM-DD): %w", err)
			}
			in.IssueDate = &issue
		}

		doc, err := app.Billing.CreateDocument(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Document created:")
		printDocument(cmd.OutOrStdout(), queries.ToDocumentDTO(doc))
		return nil
	},
}

var payCmd = &cobra.Command{
	Use:   "pay [document-id]",
	Short: "Mark a document as paid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		docID, err := cli.ParseID("document", args[0])
		if err != nil {
			return err
		}

		doc, err := app.Billing.MarkDocumentPaid(cmd.Context(), docID, app.CurrentUserID)
		if err != nil {
			return fmt.Errorf("failed to mark document paid: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "💰 Document %s marked paid.\n", doc.ID())
		return nil
	},
}

func printDocument(out io.Writer, d queries.DocumentDTO) {
	state := "unpaid"
	if d.Paid {
		state = "paid"
	}
	origin := ""
	if d.AutoCreated {
		origin = " auto"
	}
	fmt.Fprintf(out, "  %s %s%s %d.%02d %s due %s [%s]\n",
		d.ID, d.DocumentType, origin, d.AmountMinor/100, d.AmountMinor%100, d.Currency,
		d.DueDate.Format("2006-01-02"), state)
}

func init() {
	createCmd.Flags().StringVar(&createType, "type", string(billingDomain.DocumentInvoice), "document type (invoice, quote)")
	createCmd.Flags().Int64Var(&createAmount, "amount", 0, "amount in minor units")
	createCmd.Flags().StringVar(&createCurrency, "currency", "", "ISO currency code")
	createCmd.Flags().StringVar(&createIssue, "issue", "", "issue date (YYYY-MM-DD, default today)")
	createCmd.Flags().IntVar(&createTerm, "term", 0, "payment term in days")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(payCmd)
}
