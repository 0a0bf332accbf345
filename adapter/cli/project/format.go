package project

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/projects/application/queries"
)

func stageToIcon(stage string) string {
	switch stage {
	case "proposal":
		return "📝"
	case "accepted":
		return "🤝"
	case "pre_production":
		return "📋"
	case "production":
		return "🎬"
	case "post_review":
		return "🎞️"
	case "delivered":
		return "📦"
	case "completed":
		return "✅"
	default:
		return "📁"
	}
}

func specialSuffix(p *queries.ProjectDTO) string {
	if p.SpecialStatus == "" || p.SpecialStatus == "none" {
		return ""
	}
	return " (" + strings.ToUpper(p.SpecialLabel) + ")"
}

func formatMoney(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}

func printTransition(out io.Writer, res *commands.TransitionResult) {
	if res.NoOp {
		fmt.Fprintf(out, "Nothing to do: %s\n", res.Message)
		return
	}
	p := res.Project
	fmt.Fprintf(out, "%s %s is now %s%s\n", stageToIcon(p.Stage), p.Name, p.StageLabel, specialSuffix(p))
	if res.InvoiceCreated != nil {
		fmt.Fprintf(out, "  invoice created: %s\n", res.InvoiceCreated)
	}
	for _, id := range res.DocumentsDeleted {
		fmt.Fprintf(out, "  invoice removed: %s\n", id)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w.Message)
	}
}
