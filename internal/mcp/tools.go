package mcp

import "github.com/mark3labs/mcp-go/mcp"

var retrievalOptions = []mcp.ToolOption{
	mcp.WithString("requester",
		mcp.Description("User on whose behalf documents are read"),
	),
	mcp.WithArray("document_ids",
		mcp.Description("Documents to include regardless of relevance"),
		mcp.WithStringItems(),
	),
	mcp.WithString("scope_id",
		mcp.Description("Include every document in this scope"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of chunks to return (default 10)"),
	),
	mcp.WithNumber("min_score",
		mcp.Description("Minimum search relevance between 0 and 1 (default 0.4)"),
	),
}

// retrieveContextTool defines the retrieve_context MCP tool.
var retrieveContextTool = mcp.NewTool("retrieve_context", append([]mcp.ToolOption{
	mcp.WithDescription("Gather ranked documentation chunks relevant to a question from explicit documents, a scope and search."),
	mcp.WithString("query",
		mcp.Description("Natural language question"),
	),
}, retrievalOptions...)...)

// buildPromptTool defines the build_prompt MCP tool.
var buildPromptTool = mcp.NewTool("build_prompt", append([]mcp.ToolOption{
	mcp.WithDescription("Retrieve context for a question and render a prompt that fits a token budget, including conversation history. A second content block carries citations, token_estimate and truncated as JSON."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithString("conversation_id",
		mcp.Description("Conversation whose history is included"),
	),
	mcp.WithNumber("max_tokens",
		mcp.Description("Total prompt budget in tokens (default 100000)"),
	),
}, retrievalOptions...)...)

// contextStatsTool defines the context_stats MCP tool.
var contextStatsTool = mcp.NewTool("context_stats",
	mcp.WithDescription("Report how much of the context window a conversation's documents and messages use."),
	mcp.WithString("conversation_id",
		mcp.Required(),
		mcp.Description("Conversation to report on"),
	),
)

// compressHistoryTool defines the compress_history MCP tool.
var compressHistoryTool = mcp.NewTool("compress_history",
	mcp.WithDescription("Summarize a conversation's older messages when it exceeds the retention window."),
	mcp.WithString("conversation_id",
		mcp.Required(),
		mcp.Description("Conversation to compress"),
	),
	mcp.WithString("requester",
		mcp.Description("User whose model preferences are used"),
	),
	mcp.WithNumber("window",
		mcp.Description("Number of recent messages kept verbatim (default 10)"),
	),
)
