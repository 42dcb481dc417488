package fuser

import (
	"strings"

	"github.com/roach88/fuser/internal/decision"
)

// DefaultQuestion closes every prompt.
const DefaultQuestion = "What will you do? Commands:"

// PromptBuilder assembles the decision prompt from the fused body.
type PromptBuilder struct {
	// System is the agent's standing context, placed first.
	System string

	// Question closes the prompt; DefaultQuestion when empty.
	Question string
}

// Build returns system context, the fused inputs, the command catalog and the
// closing question, in that order.
func (p PromptBuilder) Build(body string, catalog decision.Catalog) string {
	question := p.Question
	if question == "" {
		question = DefaultQuestion
	}

	var b strings.Builder
	if s := strings.TrimSpace(p.System); s != "" {
		b.WriteString("BASIC CONTEXT:\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString("AVAILABLE INPUTS:")
	b.WriteString(body)
	b.WriteString(catalog.Describe())
	b.WriteByte('\n')
	b.WriteString(question)
	return b.String()
}
