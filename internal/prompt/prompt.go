// Package prompt renders packed chunks, conversation history and the user's
// question into a single prompt string.
package prompt

import (
	"strings"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

const (
	documentsHeading = "## Relevant Documentation"
	historyHeading   = "## Conversation History"
	questionHeading  = "## Current Question"
	chunkSeparator   = "\n\n---\n\n"

	// SummaryPrefix introduces a compressed history entry.
	SummaryPrefix = "Summary of earlier conversation: "
)

// Citation attributes one included chunk to its source document.
type Citation struct {
	DocumentID string           `json:"document_id"`
	Title      string           `json:"title"`
	Snippet    string           `json:"snippet"`
	Score      float64          `json:"score"`
	Source     retrieval.Source `json:"source"`
}

// Result is the rendered prompt and the citations for the chunks it contains.
type Result struct {
	Text      string
	Citations []Citation
}

// Format renders the prompt. Sections appear in a fixed order (documents,
// history, question) and empty sections are omitted. The query is included
// verbatim. Citations correspond one to one, in order, with chunks.
func Format(chunks []retrieval.Chunk, query string, history []conversation.Message) Result {
	var sections []string

	if len(chunks) > 0 {
		blocks := make([]string, len(chunks))
		for i, c := range chunks {
			blocks[i] = "### " + c.Title + "\n" + c.Content
		}
		sections = append(sections, documentsHeading+"\n\n"+strings.Join(blocks, chunkSeparator))
	}

	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, m := range history {
			lines = append(lines, renderMessage(m))
		}
		sections = append(sections, historyHeading+"\n\n"+strings.Join(lines, "\n"))
	}

	if query != "" {
		sections = append(sections, questionHeading+"\n\n"+query)
	}

	return Result{
		Text:      strings.Join(sections, "\n\n"),
		Citations: Citations(chunks),
	}
}

// Citations builds the citation list for chunks.
func Citations(chunks []retrieval.Chunk) []Citation {
	out := make([]Citation, len(chunks))
	for i, c := range chunks {
		out[i] = Citation{
			DocumentID: c.DocumentID,
			Title:      c.Title,
			Snippet:    c.Snippet,
			Score:      c.Score,
			Source:     c.Source,
		}
	}
	return out
}

func renderMessage(m conversation.Message) string {
	switch m.Role {
	case conversation.RoleUser:
		return "User: " + m.Content
	case conversation.RoleAssistant:
		return "Assistant: " + m.Content
	case conversation.RoleSystem:
		return SummaryPrefix + m.Content
	default:
		return string(m.Role) + ": " + m.Content
	}
}
