package mcpserver

import (
	"fmt"
	"strings"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/rechtsinfo"
)

func formatSearch(q rechtsinfo.Query, res *rechtsinfo.SearchResult) string {
	if res == nil || len(res.Member) == 0 {
		return fmt.Sprintf("No results for %q.", q.Term)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d results for %q", len(res.Member), res.TotalItems, q.Term)
	if q.Court != "" {
		fmt.Fprintf(&b, " (court: %s)", q.Court)
	}
	b.WriteString(":\n")
	for i, m := range res.Member {
		fmt.Fprintf(&b, "\n%d. ", i+1)
		writeSummary(&b, m.Item)
		for _, tm := range m.TextMatches {
			if t := cleanText(tm.Text); t != "" {
				fmt.Fprintf(&b, "   > %s\n", t)
			}
		}
	}
	return b.String()
}

func formatItem(it *rechtsinfo.Item) string {
	if it == nil {
		return "No document."
	}
	var b strings.Builder
	writeSummary(&b, *it)
	if it.GuidingPrinciple != "" {
		fmt.Fprintf(&b, "\nLeitsatz:\n%s\n", cleanText(it.GuidingPrinciple))
	}
	if it.Tenor != "" {
		fmt.Fprintf(&b, "\nTenor:\n%s\n", cleanText(it.Tenor))
	}
	return b.String()
}

func writeSummary(b *strings.Builder, it rechtsinfo.Item) {
	b.WriteString(it.Title())
	b.WriteByte('\n')
	if it.IsDecision() {
		field(b, "Court", strings.TrimSpace(it.CourtName+" "+parens(it.CourtType)))
		field(b, "Date", it.DecisionDate)
		field(b, "File numbers", strings.Join(it.FileNumbers, ", "))
		field(b, "Type", it.DocumentType)
		field(b, "ECLI", it.ECLI)
		field(b, "Document number", it.DocumentNumber)
		field(b, "Keywords", strings.Join(it.Keywords, ", "))
		return
	}
	field(b, "Abbreviation", it.Abbreviation)
	field(b, "Identifier", it.LegislationIdentifier)
	field(b, "Date", it.LegislationDate)
	field(b, "Published", it.DatePublished)
	field(b, "ELI", it.ID)
}

func field(b *strings.Builder, name, v string) {
	if v = strings.TrimSpace(v); v != "" {
		fmt.Fprintf(b, "   %s: %s\n", name, v)
	}
}

func parens(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

// cleanText strips the markup the API embeds in highlights and long texts.
func cleanText(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>' && in:
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
