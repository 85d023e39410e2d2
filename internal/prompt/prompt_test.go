package prompt

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

func TestFormatAllSections(t *testing.T) {
	chunks := []retrieval.Chunk{
		{DocumentID: "d1", Title: "Install", Content: "Run make.", Snippet: "Run make.", Score: 1, Source: retrieval.SourceDirect},
		{DocumentID: "d2", Title: "Config", Content: "Edit the file.", Snippet: "Edit", Score: 0.7, Source: retrieval.SourceSemantic},
	}
	history := []conversation.Message{
		{Role: conversation.RoleUser, Content: "hi"},
		{Role: conversation.RoleAssistant, Content: "hello"},
	}

	got := Format(chunks, "How do I install?", history)

	want := "## Relevant Documentation\n\n" +
		"### Install\nRun make.\n\n---\n\n" +
		"### Config\nEdit the file.\n\n" +
		"## Conversation History\n\n" +
		"User: hi\nAssistant: hello\n\n" +
		"## Current Question\n\n" +
		"How do I install?"
	if got.Text != want {
		t.Errorf("Format text mismatch\n got: %q\nwant: %q", got.Text, want)
	}

	if len(got.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(got.Citations))
	}
	if got.Citations[0].DocumentID != "d1" || got.Citations[1].Source != retrieval.SourceSemantic {
		t.Errorf("citations not parallel to chunks: %+v", got.Citations)
	}
}

func TestFormatOmitsEmptySections(t *testing.T) {
	got := Format(nil, "just the question", nil)
	if got.Text != "## Current Question\n\njust the question" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Errorf("expected no citations, got %d", len(got.Citations))
	}
	if strings.Contains(got.Text, "Relevant Documentation") || strings.Contains(got.Text, "Conversation History") {
		t.Error("empty sections should be omitted")
	}
}

func TestFormatQueryVerbatim(t *testing.T) {
	q := "  what about `### headings`?\n\nand newlines  "
	got := Format(nil, q, nil)
	if !strings.HasSuffix(got.Text, q) {
		t.Errorf("query was altered: %q", got.Text)
	}
}

func TestFormatRendersSummary(t *testing.T) {
	history := []conversation.Message{
		{Role: conversation.RoleSystem, Content: "We discussed deploys."},
		{Role: conversation.RoleUser, Content: "and rollbacks?"},
	}
	got := Format(nil, "q", history)
	if !strings.Contains(got.Text, "Summary of earlier conversation: We discussed deploys.\nUser: and rollbacks?") {
		t.Errorf("summary entry not rendered: %q", got.Text)
	}
}
