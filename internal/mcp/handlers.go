package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
	"github.com/ziadkadry99/ctxpack/internal/prompt"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// handleRetrieveContext returns ranked chunks as a readable list.
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	chunks, err := s.svc.RetrieveContext(ctx, s.requesterOf(request), query, retrievalRequest(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	if len(chunks) == 0 {
		return mcp.NewToolResultText("No relevant documents found. Index documents with `ctxpack index` first."), nil
	}
	return mcp.NewToolResultText(formatChunks(chunks)), nil
}

// handleBuildPrompt retrieves context and returns the rendered prompt,
// followed by a JSON block with its citations, token estimate and
// truncation flag.
func (s *Server) handleBuildPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	who := s.requesterOf(request)
	convID := request.GetString("conversation_id", "")

	conv, history, _, err := s.svc.History(ctx, convID, who, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading history failed: %v", err)), nil
	}
	req := assembler.ForConversation(conv, retrievalRequest(request))

	chunks, err := s.svc.RetrieveContext(ctx, who, query, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	res, err := s.svc.BuildPrompt(ctx, who, query, chunks, history, request.GetInt("max_tokens", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building prompt failed: %v", err)), nil
	}
	meta, err := json.MarshalIndent(promptMeta{
		Citations:     res.Citations,
		TokenEstimate: res.TokenEstimate,
		Truncated:     res.Truncated,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding citations: %v", err)), nil
	}
	result := mcp.NewToolResultText(res.PromptText)
	result.Content = append(result.Content, mcp.NewTextContent(string(meta)))
	return result, nil
}

// promptMeta follows the prompt text in a build_prompt result.
type promptMeta struct {
	Citations     []prompt.Citation `json:"citations"`
	TokenEstimate int               `json:"token_estimate"`
	Truncated     bool              `json:"truncated"`
}

// handleContextStats returns the conversation's statistics as JSON.
func (s *Server) handleContextStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: conversation_id"), nil
	}
	st, err := s.svc.GetContextStats(ctx, convID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleCompressHistory summarizes a conversation's older messages.
func (s *Server) handleCompressHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: conversation_id"), nil
	}
	summary, err := s.svc.CompressHistoryIfNeeded(ctx, convID, s.requesterOf(request), request.GetInt("window", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compression failed: %v", err)), nil
	}
	if summary == nil {
		return mcp.NewToolResultText("No compression needed."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Summarized %d messages, kept %d.\n\n%s",
		summary.SummarizedCount, summary.RemainingCount, summary.Text)), nil
}

func (s *Server) requesterOf(request mcp.CallToolRequest) string {
	return request.GetString("requester", s.requester)
}

// retrievalRequest reads the shared retrieval arguments. An absent
// min_score leaves the default in place.
func retrievalRequest(request mcp.CallToolRequest) retrieval.Request {
	req := retrieval.Request{
		DocumentIDs: request.GetStringSlice("document_ids", nil),
		ScopeID:     request.GetString("scope_id", ""),
		Limit:       request.GetInt("limit", 0),
	}
	if _, ok := request.GetArguments()["min_score"]; ok {
		req.MinScore = retrieval.Float(request.GetFloat("min_score", retrieval.DefaultMinScore))
	}
	return req
}

func formatChunks(chunks []retrieval.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "%d. %s [%s, score %.2f, id %s]\n", i+1, c.Title, c.Source, c.Score, c.DocumentID)
		if c.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", strings.ReplaceAll(c.Snippet, "\n", " "))
		}
	}
	return b.String()
}
