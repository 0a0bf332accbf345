package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common lifecycle workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("close_out_project").
		Description("Walk a delivered project through payment checks to completion.").
		Argument("project_id", "ID of the project to close out", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			projectID := args["project_id"]
			if projectID == "" {
				projectID = "[project ID]"
			}
			return &mcp.PromptResult{
				Description: "Project close-out",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Help me close out project %s.

1. Use project.show to check its stage and special status.
2. Use project.gate to list unpaid documents.
3. For each unpaid document, ask me whether payment has arrived and use invoice.pay only after I confirm.
4. When the gate is clear, ask me to confirm and call project.stage with target "completed" and confirmed=true.

Never mark a document paid or complete the project without my explicit confirmation.`, projectID),
						},
					},
				},
			}, nil
		})

	srv.Prompt("pipeline_review").
		Description("Review every project by stage and flag the ones that are delayed, paused or waiting on payment.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Pipeline review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review my project pipeline.

1. Read slate://projects and group the projects by stage.
2. Read slate://projects/delayed and list what is behind schedule.
3. Read slate://projects/awaiting-payment and run project.gate for each to show outstanding amounts.

Summarize the pipeline and suggest which projects need attention this week. Do not change any status.`,
						},
					},
				},
			}, nil
		})

	return nil
}
