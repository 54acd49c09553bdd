package app

import (
	"fmt"
	"strings"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

// PromptBuilder renders the instruction block sent with every batch.
type PromptBuilder struct {
	header string
}

// NewPromptBuilder fixes the label vocabulary and fallback label into the
// instruction header.
func NewPromptBuilder(labels []string, fallback string) *PromptBuilder {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Classify each comment below into exactly one of these %d labels:\n", len(labels))
	sb.WriteString(strings.Join(labels, ", "))
	sb.WriteString("\n\nFormat requirements:\n")
	sb.WriteString("- Answer strictly in the same order as the input comments.\n")
	sb.WriteString("- Output one label name per line with no numbering, punctuation or explanation.\n")
	sb.WriteString("- The number of output lines must equal the number of input comments.\n")
	fmt.Fprintf(&sb, "- If unsure, answer %q.\n", fallback)
	return &PromptBuilder{header: sb.String()}
}

// Build renders the request for b under the given title.
func (p *PromptBuilder) Build(b *domain.Batch, title string) ports.ClassifyRequest {
	texts := b.Texts()
	for i, t := range texts {
		texts[i] = singleLine(t)
	}

	var sb strings.Builder
	sb.WriteString(p.header)
	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\nComments:\n")
	sb.WriteString(strings.Join(texts, "\n"))

	return ports.ClassifyRequest{
		BatchID: b.ID,
		Prompt:  sb.String(),
		Title:   title,
		Texts:   texts,
	}
}

// Header returns the fixed instruction block.
func (p *PromptBuilder) Header() string {
	return p.header
}

// singleLine collapses embedded line breaks so each item occupies exactly one
// prompt line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
