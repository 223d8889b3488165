package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/kozaktomas/facewatch/internal/database"
)

//go:embed prompts/chat_system.txt
var chatSystemPrompt string

const (
	noCasesSummary      = "No missing person cases are currently registered."
	casesUnavailableMsg = "Case records are temporarily unavailable. Do not answer questions about specific cases."
)

// buildCaseSummary renders one line per case for the assistant context.
// Contact details are left out.
func buildCaseSummary(cases []database.Case) string {
	if len(cases) == 0 {
		return noCasesSummary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registered missing person cases (%d, most recent first):\n", len(cases))
	for _, c := range cases {
		fmt.Fprintf(&b, "- #%d %s", c.ID, c.Name)

		var facts []string
		if c.Age > 0 {
			facts = append(facts, fmt.Sprintf("%dy", c.Age))
		}
		if c.Gender != "" {
			facts = append(facts, c.Gender)
		}
		if len(facts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(facts, ", "))
		}
		if place := joinNonEmpty(", ", c.City, c.State); place != "" {
			fmt.Fprintf(&b, " from %s", place)
		}
		b.WriteString(".")

		if c.Status != "" {
			fmt.Fprintf(&b, " Status: %s.", c.Status)
		}
		if !c.MissingDate.IsZero() {
			fmt.Fprintf(&b, " Missing since %s.", c.MissingDate.Format("2006-01-02"))
		}
		if !c.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " Reported %s.", c.CreatedAt.Format("2006-01-02"))
		}
		if !c.HasEmbedding() {
			b.WriteString(" Photo not yet searchable.")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// buildSystemPrompt combines the assistant instructions with case records.
func buildSystemPrompt(caseSummary string) string {
	return strings.TrimSpace(chatSystemPrompt) + "\n\nCASE RECORDS:\n" + caseSummary
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
