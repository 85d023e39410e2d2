// Package assembler exposes context assembly as one service: retrieval,
// budget packing, prompt formatting, history compression and window
// statistics, plus an end-to-end Ask that answers with an LLM.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/compress"
	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/llm"
	"github.com/ziadkadry99/ctxpack/internal/packer"
	"github.com/ziadkadry99/ctxpack/internal/prompt"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
	"github.com/ziadkadry99/ctxpack/internal/stats"
	"github.com/ziadkadry99/ctxpack/internal/tokens"
)

// DefaultMaxTokens is the prompt budget used when the caller passes zero.
const DefaultMaxTokens = 100000

const answerInstruction = "You answer questions using the provided documentation and conversation history. " +
	"Cite document titles when you rely on them. If the documentation does not cover the question, say so."

// MessageWriter appends messages to a conversation.
type MessageWriter interface {
	AppendMessage(ctx context.Context, conversationID string, role conversation.Role, content string) (*conversation.Message, error)
}

// PromptResult is a rendered prompt ready to send to a model.
type PromptResult struct {
	PromptText string            `json:"prompt_text"`
	Citations  []prompt.Citation `json:"citations"`
	// TokenEstimate is the estimated size of PromptText.
	TokenEstimate int  `json:"token_estimate"`
	Truncated     bool `json:"truncated"`
}

// Deps are the collaborators a Service is built from. Compressor, Reporter,
// Writer, Settings and Selector are optional; the operations that need a
// missing one degrade or report an error.
type Deps struct {
	Retriever     *retrieval.Aggregator
	Packer        *packer.Packer
	Compressor    *compress.Compressor
	Reporter      *stats.Reporter
	Conversations conversation.Store
	Writer        MessageWriter
	Settings      compress.SettingsSource
	Selector      llm.Selector
	Estimate      tokens.Estimator
	Log           logrus.FieldLogger

	// DefaultMaxTokens replaces a zero maxTokens. Zero means DefaultMaxTokens.
	DefaultMaxTokens int
	// DefaultWindow replaces a zero compression window.
	DefaultWindow int
}

// Service implements the context assembly operations.
type Service struct {
	d Deps
}

// New creates a Service. Retriever and Packer are required.
func New(d Deps) *Service {
	if d.Estimate == nil {
		d.Estimate = tokens.Estimate
	}
	if d.Packer == nil {
		d.Packer = packer.NewPacker(d.Estimate, nil)
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.DefaultMaxTokens <= 0 {
		d.DefaultMaxTokens = DefaultMaxTokens
	}
	if d.DefaultWindow <= 0 {
		d.DefaultWindow = compress.DefaultWindow
	}
	return &Service{d: d}
}

// RetrieveContext gathers ranked, deduplicated candidate chunks.
func (s *Service) RetrieveContext(ctx context.Context, requester, query string, req retrieval.Request) ([]retrieval.Chunk, error) {
	return s.d.Retriever.Retrieve(ctx, requester, query, req)
}

// BuildPrompt packs candidates under maxTokens, after reserving room for the
// query, history and response, and renders the prompt. A zero maxTokens
// means the service default; a negative one is a validation error.
func (s *Service) BuildPrompt(ctx context.Context, requester, query string, candidates []retrieval.Chunk, history []conversation.Message, maxTokens int) (*PromptResult, error) {
	if maxTokens == 0 {
		maxTokens = s.d.DefaultMaxTokens
	}
	est := s.d.Estimate
	res, err := s.d.Packer.Pack(candidates, packer.Budget{
		MaxTokens:     maxTokens,
		QueryTokens:   est(query),
		HistoryTokens: est.Sum(conversation.Contents(history)...),
	})
	if err != nil {
		return nil, err
	}

	out := prompt.Format(res.Chunks, query, history)
	s.d.Log.WithFields(logrus.Fields{
		"requester":  requester,
		"candidates": len(candidates),
		"packed":     len(res.Chunks),
		"truncated":  res.Truncated,
	}).Debug("prompt built")

	return &PromptResult{
		PromptText:    out.Text,
		Citations:     out.Citations,
		TokenEstimate: est(out.Text),
		Truncated:     res.Truncated,
	}, nil
}

// CompressHistoryIfNeeded summarizes the conversation's older messages when
// it holds more than window. It returns nil when no summary is needed or
// none could be produced.
func (s *Service) CompressHistoryIfNeeded(ctx context.Context, conversationID, requester string, window int) (*compress.Summary, error) {
	if s.d.Compressor == nil {
		return nil, nil
	}
	if window == 0 {
		window = s.d.DefaultWindow
	}
	return s.d.Compressor.CompressIfNeeded(ctx, conversationID, requester, window)
}

// GetContextStats reports the conversation's context window usage.
func (s *Service) GetContextStats(ctx context.Context, conversationID string) (*stats.Statistics, error) {
	if s.d.Reporter == nil {
		return nil, fmt.Errorf("context statistics are not configured")
	}
	return s.d.Reporter.Report(ctx, conversationID)
}

// History loads a conversation and its messages, with the older messages
// replaced by a summary when the history has outgrown window. An empty id, an
// unavailable conversation or one owned by another requester yields no
// history rather than an error.
func (s *Service) History(ctx context.Context, conversationID, requester string, window int) (*conversation.Conversation, []conversation.Message, *compress.Summary, error) {
	if conversationID == "" || s.d.Conversations == nil {
		return nil, nil, nil, nil
	}
	log := s.d.Log.WithFields(logrus.Fields{
		"requester":       requester,
		"conversation_id": conversationID,
	})

	conv, err := s.d.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		log.WithError(err).Warn("conversation unavailable, continuing without history")
		return nil, nil, nil, nil
	}
	if conv == nil {
		return nil, nil, nil, nil
	}
	if !conv.VisibleTo(requester) {
		log.WithField("owner", conv.Owner).Warn("conversation belongs to another requester, ignoring it")
		return nil, nil, nil, nil
	}

	msgs, err := s.d.Conversations.ListMessages(ctx, conversationID)
	if err != nil {
		log.WithError(err).Warn("history unavailable")
		return conv, nil, nil, nil
	}
	summary, err := s.CompressHistoryIfNeeded(ctx, conversationID, requester, window)
	if err != nil {
		return nil, nil, nil, err
	}
	return conv, compress.Apply(msgs, summary), summary, nil
}

// ForConversation adds a conversation's scope and attached documents to req.
// A scope already set on req is kept.
func ForConversation(conv *conversation.Conversation, req retrieval.Request) retrieval.Request {
	if conv == nil {
		return req
	}
	if req.ScopeID == "" {
		req.ScopeID = conv.ScopeID
	}
	req.DocumentIDs = append(append([]string(nil), req.DocumentIDs...), conv.DocumentIDs...)
	return req
}

// AskRequest is the input to Ask.
type AskRequest struct {
	Requester      string            `json:"requester"`
	Query          string            `json:"query"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Retrieval      retrieval.Request `json:"retrieval"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Window         int               `json:"window,omitempty"`
	// Provider overrides the user's preferred provider for this call.
	Provider string `json:"provider,omitempty"`
}

// AskResult is the model's answer with the context it was given.
type AskResult struct {
	Answer        string            `json:"answer"`
	Citations     []prompt.Citation `json:"citations"`
	Truncated     bool              `json:"truncated"`
	TokenEstimate int               `json:"token_estimate"`
	Summarized    int               `json:"summarized_messages"`
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	InputTokens   int               `json:"input_tokens"`
	OutputTokens  int               `json:"output_tokens"`
	CostUSD       float64           `json:"cost_usd"`
}

// Ask retrieves context, compresses the conversation history if needed,
// builds the prompt and asks a model. Unlike the other operations a
// generation failure is returned, since the answer is the result. When a
// conversation visible to the requester is given, the question and answer
// are appended to it.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", retrieval.ErrInvalidRequest)
	}
	if s.d.Selector == nil {
		return nil, llm.ErrNoProvider
	}
	log := s.d.Log.WithFields(logrus.Fields{
		"requester":       req.Requester,
		"conversation_id": req.ConversationID,
	})

	var summarized int
	conv, history, summary, err := s.History(ctx, req.ConversationID, req.Requester, req.Window)
	if err != nil {
		return nil, err
	}
	rreq := ForConversation(conv, req.Retrieval)
	if summary != nil {
		summarized = summary.SummarizedCount
	}

	chunks, err := s.RetrieveContext(ctx, req.Requester, req.Query, rreq)
	if err != nil {
		return nil, err
	}
	built, err := s.BuildPrompt(ctx, req.Requester, req.Query, chunks, history, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	var settings llm.UserSettings
	if s.d.Settings != nil {
		if us, err := s.d.Settings.GetUserSettings(ctx, req.Requester); err == nil {
			settings = us
		} else {
			log.WithError(err).Warn("ask: user settings unavailable, using defaults")
		}
	}
	sel, err := s.d.Selector.Select(settings, req.Provider, false)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}
	provider, err := s.d.Selector.Provider(sel)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model:       sel.Model,
		Messages:    llm.Generate(answerInstruction, built.PromptText),
		MaxTokens:   s.d.Packer.ResponseBuffer,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if conv != nil && s.d.Writer != nil {
		if _, err := s.d.Writer.AppendMessage(ctx, req.ConversationID, conversation.RoleUser, req.Query); err != nil {
			log.WithError(err).Warn("ask: storing question failed")
		} else if _, err := s.d.Writer.AppendMessage(ctx, req.ConversationID, conversation.RoleAssistant, resp.Content); err != nil {
			log.WithError(err).Warn("ask: storing answer failed")
		}
	}

	return &AskResult{
		Answer:        resp.Content,
		Citations:     built.Citations,
		Truncated:     built.Truncated,
		TokenEstimate: built.TokenEstimate,
		Summarized:    summarized,
		Provider:      provider.Name(),
		Model:         sel.Model,
		InputTokens:   resp.InputTokens,
		OutputTokens:  resp.OutputTokens,
		CostUSD:       llm.EstimateCost(resp),
	}, nil
}
