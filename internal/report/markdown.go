package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
)

// topEdgeCount is the number of heaviest edges listed in the summary.
const topEdgeCount = 15

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInstance
}

// Markdown renders the audit summary.
func Markdown(in Input) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Subscription flow audit\n\n")
	fmt.Fprintf(&b, "Run `%s` generated %s.\n\n", in.RunID, in.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Run\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	stats := []struct {
		name  string
		value int
	}{
		{"Sources", in.Stats.Sources},
		{"Rows read", in.Stats.RowsRead},
		{"Rows dropped", in.Stats.RowsDropped},
		{"Orders", in.Stats.OrdersGrouped},
		{"Not subscription orders", in.Stats.NotSubscription},
		{"Skipped subscription orders", in.Stats.OrdersSkipped},
		{"Classified orders", in.Stats.OrdersClassified},
		{"Graph nodes", len(in.Graph.Nodes)},
		{"Graph edges", len(in.Graph.Edges)},
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "| %s | %d |\n", s.name, s.value)
	}

	if len(in.Observed) > 0 {
		names := make([]string, len(in.Observed))
		for i, t := range in.Observed {
			names[i] = t.String()
		}
		fmt.Fprintf(&b, "\nObserved subscriptions: %s.\n", strings.Join(names, ", "))
	}

	if summaries := SummarizeByType(in.Audits); len(summaries) > 0 {
		b.WriteString("\n## Fulfilment by subscription\n\n")
		b.WriteString("| Subscription | Orders | Complete | Missing bra | Missing panty |\n|---|---:|---:|---:|---:|\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", s.Type, s.Orders, s.Complete, s.MissingBra, s.MissingPanty)
		}
	}

	if edges := TopEdges(in.Graph, topEdgeCount); len(edges) > 0 {
		b.WriteString("\n## Heaviest flows\n\n")
		b.WriteString("| From | To | Weight |\n|---|---|---:|\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "| %s (%s) | %s (%s) | %d |\n",
				cell(e.Source.Label), e.Source.Layer, cell(e.Target.Label), e.Target.Layer, e.Weight)
		}
	}

	if families := FamilyBreakdown(in.Audits); len(families) > 0 {
		b.WriteString("\n## Primary bra families\n\n")
		b.WriteString("| Subscription | Family | Color | Orders |\n|---|---|---|---:|\n")
		for _, f := range families {
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", f.Type, cell(f.Family), cell(f.Color), f.Orders)
		}
	}

	if len(in.Diagnostics) > 0 {
		var c diagnostics.Collector
		c.Merge(in.Diagnostics)

		b.WriteString("\n## Diagnostics\n\n")
		b.WriteString("| Code | Count |\n|---|---:|\n")
		for _, cc := range c.CountByCode() {
			fmt.Fprintf(&b, "| %s | %d |\n", cc.Code, cc.Count)
		}

		b.WriteString("\n")
		for _, d := range in.Diagnostics {
			if d.Severity != diagnostics.SeverityWarning {
				continue
			}
			fmt.Fprintf(&b, "- %s\n", cell(d.String()))
		}
	}

	return []byte(b.String())
}

// HTML renders the audit summary as a standalone page.
func HTML(in Input) ([]byte, error) {
	var body bytes.Buffer
	if err := markdownRenderer().Convert(Markdown(in), &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Subscription flow audit %s</title>\n", html.EscapeString(in.RunID))
	page.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
