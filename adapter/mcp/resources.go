package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
	"github.com/felixgeelhaar/slate/internal/projects/domain"
)

// RegisterResources registers MCP resources that expose project data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	list := func(query queries.ListProjectsQuery) func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
		return func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListProjectsHandler == nil {
				return nil, fmt.Errorf("project listing requires database connection")
			}
			projects, err := app.ListProjectsHandler.Handle(ctx, query)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, projects)
		}
	}

	srv.Resource("slate://projects").
		Name("Projects").
		Description("All projects with their stage and special status").
		MimeType("application/json").
		Handler(list(queries.ListProjectsQuery{Limit: 200}))

	delayed := string(domain.SpecialDelayed)
	srv.Resource("slate://projects/delayed").
		Name("Delayed projects").
		Description("Projects flagged as delayed").
		MimeType("application/json").
		Handler(list(queries.ListProjectsQuery{SpecialStatus: delayed, Limit: 200}))

	delivered := string(domain.StageDelivered)
	srv.Resource("slate://projects/awaiting-payment").
		Name("Delivered projects").
		Description("Delivered projects that have not been completed yet").
		MimeType("application/json").
		Handler(list(queries.ListProjectsQuery{Stage: delivered, Limit: 200}))

	srv.Resource("slate://stages").
		Name("Stages").
		Description("The stage order and special statuses").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			stages := make([]map[string]string, 0, len(domain.Stages()))
			for _, s := range domain.Stages() {
				stages = append(stages, map[string]string{"value": s.String(), "label": s.Label()})
			}
			specials := make([]map[string]string, 0, 4)
			for _, s := range []domain.SpecialStatus{domain.SpecialNone, domain.SpecialDelayed, domain.SpecialPaused, domain.SpecialCanceled} {
				specials = append(specials, map[string]string{"value": string(s), "label": s.Label()})
			}
			return jsonResource(uri, map[string]any{"stages": stages, "special_statuses": specials})
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
