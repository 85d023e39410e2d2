// Package stats reports how much of a model's context window a conversation
// and its documents occupy.
package stats

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
	"github.com/ziadkadry99/ctxpack/internal/tokens"
)

const (
	DefaultContextCeiling = 100000
	// DefaultCanAddMorePercent is the utilization below which more context
	// may be added.
	DefaultCanAddMorePercent = 80
)

// DocumentTokens is one document's share of the window.
type DocumentTokens struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Tokens     int    `json:"tokens"`
}

// MessageTokens is one message's share of the window.
type MessageTokens struct {
	MessageID string            `json:"message_id"`
	Role      conversation.Role `json:"role"`
	Tokens    int               `json:"tokens"`
}

// Statistics summarizes context window usage.
type Statistics struct {
	DocumentCount      int  `json:"document_count"`
	MessageCount       int  `json:"message_count"`
	DocumentTokens     int  `json:"document_tokens"`
	MessageTokens      int  `json:"message_tokens"`
	TotalTokens        int  `json:"total_tokens"`
	ContextCeiling     int  `json:"context_ceiling"`
	UtilizationPercent int  `json:"utilization_percent"`
	RemainingTokens    int  `json:"remaining_tokens"`
	CanAddMore         bool `json:"can_add_more"`

	Documents []DocumentTokens `json:"documents"`
	Messages  []MessageTokens  `json:"messages"`
}

// Reporter computes Statistics from stored conversations and documents.
type Reporter struct {
	Conversations conversation.Store
	Documents     retrieval.DocumentStore
	Estimate      tokens.Estimator
	Ceiling       int
	// CanAddMorePercent is the exclusive utilization limit for CanAddMore.
	CanAddMorePercent int
	Log               logrus.FieldLogger
}

// NewReporter returns a Reporter with the default ceiling and threshold.
func NewReporter(convs conversation.Store, docs retrieval.DocumentStore, log logrus.FieldLogger) *Reporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reporter{
		Conversations:     convs,
		Documents:         docs,
		Estimate:          tokens.Estimate,
		Ceiling:           DefaultContextCeiling,
		CanAddMorePercent: DefaultCanAddMorePercent,
		Log:               log,
	}
}

// Report computes statistics for a conversation. Its documents are the ones
// attached explicitly plus those in its scope. An unknown conversation, or
// one whose data cannot be read, reports zero usage.
func (r *Reporter) Report(ctx context.Context, conversationID string) (*Statistics, error) {
	log := r.logger().WithField("conversation_id", conversationID)
	est := r.Estimate.OrDefault()
	st := &Statistics{Documents: []DocumentTokens{}, Messages: []MessageTokens{}}

	conv, err := r.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		log.WithError(err).Warn("stats: conversation unavailable, reporting zero usage")
	}
	if conv != nil {
		msgs, err := r.Conversations.ListMessages(ctx, conversationID)
		if err != nil {
			log.WithError(err).Warn("stats: messages unavailable")
		}
		for _, m := range msgs {
			n := est(m.Content)
			st.Messages = append(st.Messages, MessageTokens{MessageID: m.ID, Role: m.Role, Tokens: n})
			st.MessageTokens += n
		}

		for _, d := range r.scopeDocuments(ctx, log, conv) {
			n := est(d.Content)
			st.Documents = append(st.Documents, DocumentTokens{DocumentID: d.ID, Title: d.Title, Tokens: n})
			st.DocumentTokens += n
		}
	}

	st.DocumentCount = len(st.Documents)
	st.MessageCount = len(st.Messages)
	r.finish(st)
	return st, nil
}

func (r *Reporter) scopeDocuments(ctx context.Context, log logrus.FieldLogger, conv *conversation.Conversation) []retrieval.Document {
	if r.Documents == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []retrieval.Document
	for _, id := range conv.DocumentIDs {
		if seen[id] {
			continue
		}
		doc, err := r.Documents.GetDocument(ctx, id, conv.Owner)
		if err != nil {
			log.WithError(err).WithField("document_id", id).Warn("stats: document unavailable")
			continue
		}
		if doc == nil {
			continue
		}
		seen[id] = true
		out = append(out, *doc)
	}
	if conv.ScopeID != "" {
		docs, err := r.Documents.ListDocumentsByScope(ctx, conv.Owner, conv.ScopeID)
		if err != nil {
			log.WithError(err).WithField("scope_id", conv.ScopeID).Warn("stats: scope unavailable")
		}
		for _, d := range docs {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out
}

func (r *Reporter) finish(st *Statistics) {
	ceiling := r.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultContextCeiling
	}
	limit := r.CanAddMorePercent
	if limit <= 0 {
		limit = DefaultCanAddMorePercent
	}

	st.TotalTokens = st.DocumentTokens + st.MessageTokens
	st.ContextCeiling = ceiling
	st.UtilizationPercent = int(math.Round(float64(st.TotalTokens) / float64(ceiling) * 100))
	st.RemainingTokens = max(0, ceiling-st.TotalTokens)
	st.CanAddMore = st.UtilizationPercent < limit
}

func (r *Reporter) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
