// Package compress replaces the older part of a long conversation with a
// model-generated summary. Compression is best effort: every operational
// failure yields "no summary" rather than an error.
package compress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/llm"
	"github.com/ziadkadry99/ctxpack/internal/metrics"
)

const (
	DefaultWindow           = 10
	DefaultTimeout          = 60 * time.Second
	DefaultCacheTTL         = 30 * time.Minute
	DefaultMaxSummaryTokens = 1024

	systemInstruction = "You are a helpful assistant that writes concise, faithful summaries of conversations."
	summaryPrompt     = "Summarize the following conversation concisely. " +
		"Preserve the key questions, answers and conclusions so the conversation can continue without the original messages.\n\n"
)

// SettingsSource loads a user's LLM preferences.
type SettingsSource interface {
	GetUserSettings(ctx context.Context, requester string) (llm.UserSettings, error)
}

// Summary is the outcome of a compression.
type Summary struct {
	Text string `json:"summary"`
	// SummarizedCount is the number of leading messages the summary replaces.
	SummarizedCount int `json:"summarized_count"`
	// RemainingCount is the number of trailing messages kept verbatim.
	RemainingCount int `json:"remaining_count"`
}

// Compressor summarizes conversation prefixes.
type Compressor struct {
	store            conversation.Store
	settings         SettingsSource
	selector         llm.Selector
	cache            *cache.Cache
	timeout          time.Duration
	maxSummaryTokens int
	log              logrus.FieldLogger
	metrics          *metrics.Metrics
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithSettings sets where per-user provider preferences come from.
func WithSettings(s SettingsSource) Option {
	return func(c *Compressor) { c.settings = s }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(c *Compressor) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCacheTTL sets how long summaries are reused. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Compressor) {
		if d <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(d, 2*d)
	}
}

// WithMaxSummaryTokens caps the length of generated summaries.
func WithMaxSummaryTokens(n int) Option {
	return func(c *Compressor) {
		if n > 0 {
			c.maxSummaryTokens = n
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Compressor) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compressor) { c.metrics = m }
}

// New creates a Compressor reading history from store and generating with
// providers chosen by selector.
func New(store conversation.Store, selector llm.Selector, opts ...Option) *Compressor {
	c := &Compressor{
		store:            store,
		selector:         selector,
		cache:            cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		timeout:          DefaultTimeout,
		maxSummaryTokens: DefaultMaxSummaryTokens,
		log:              logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompressIfNeeded summarizes all but the last window messages of a
// conversation. It returns nil when the conversation fits in the window, and
// also when anything operational goes wrong (unknown conversation, store or
// provider failure); those cases are logged. A window of zero means
// DefaultWindow. Only a negative window is an error.
func (c *Compressor) CompressIfNeeded(ctx context.Context, conversationID, requester string, window int) (*Summary, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	if window == 0 {
		window = DefaultWindow
	}
	log := c.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"requester":       requester,
	})

	msgs, err := c.load(ctx, conversationID, requester)
	if err != nil {
		c.metrics.Compression("failed")
		log.WithError(err).Warn("compress: skipping, history unavailable")
		return nil, nil
	}
	if len(msgs) <= window {
		c.metrics.Compression("skipped")
		return nil, nil
	}

	older := msgs[:len(msgs)-window]
	key := cacheKey(conversationID, older)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.metrics.Compression("cached")
			s := v.(Summary)
			return &s, nil
		}
	}

	text, err := c.summarize(ctx, requester, older)
	if err != nil {
		c.metrics.Compression("failed")
		var e *Error
		if errors.As(err, &e) {
			e.ConversationID = conversationID
		}
		log.WithError(err).Warn("compress: summary generation failed, continuing without one")
		return nil, nil
	}

	s := Summary{
		Text:            text,
		SummarizedCount: len(older),
		RemainingCount:  window,
	}
	if c.cache != nil {
		c.cache.SetDefault(key, s)
	}
	c.metrics.Compression("summarized")
	log.WithField("summarized", s.SummarizedCount).Debug("compress: conversation summarized")
	return &s, nil
}

// load returns the conversation's messages. A conversation owned by someone
// other than requester is reported as not found.
func (c *Compressor) load(ctx context.Context, conversationID, requester string) ([]conversation.Message, error) {
	conv, err := c.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, &Error{Op: "load", ConversationID: conversationID, Err: err}
	}
	if conv == nil || !conv.VisibleTo(requester) {
		return nil, &Error{Op: "load", ConversationID: conversationID, Err: ErrConversationNotFound}
	}
	msgs, err := c.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, &Error{Op: "load", ConversationID: conversationID, Err: err}
	}
	return msgs, nil
}

func (c *Compressor) summarize(ctx context.Context, requester string, msgs []conversation.Message) (string, error) {
	if c.selector == nil {
		return "", &Error{Op: "select", Err: llm.ErrNoProvider}
	}

	var settings llm.UserSettings
	if c.settings != nil {
		s, err := c.settings.GetUserSettings(ctx, requester)
		if err != nil {
			c.log.WithError(err).WithField("requester", requester).Warn("compress: user settings unavailable, using defaults")
		} else {
			settings = s
		}
	}

	sel, err := c.selector.Select(settings, "", false)
	if err != nil {
		return "", &Error{Op: "select", Err: err}
	}
	provider, err := c.selector.Provider(sel)
	if err != nil {
		return "", &Error{Op: "select", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model:       sel.Model,
		Messages:    llm.Generate(systemInstruction, summaryPrompt+Transcript(msgs)),
		MaxTokens:   c.maxSummaryTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", &Error{Op: "generate", Err: err}
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", &Error{Op: "generate", Err: ErrEmptySummary}
	}
	return text, nil
}

// Transcript renders messages as "Role: content" lines.
func Transcript(msgs []conversation.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case conversation.RoleUser:
			b.WriteString("User: ")
		case conversation.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString(string(m.Role) + ": ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// Apply returns the history to send to the model: a summary entry followed
// by the messages the summary did not cover. msgs is not modified. A nil
// summary returns a copy of msgs.
func Apply(msgs []conversation.Message, s *Summary) []conversation.Message {
	if s == nil || s.SummarizedCount <= 0 {
		return append([]conversation.Message(nil), msgs...)
	}
	start := s.SummarizedCount
	if start > len(msgs) {
		start = len(msgs)
	}
	out := make([]conversation.Message, 0, len(msgs)-start+1)
	out = append(out, conversation.Message{Role: conversation.RoleSystem, Content: s.Text})
	return append(out, msgs[start:]...)
}

func cacheKey(conversationID string, summarized []conversation.Message) string {
	last := summarized[len(summarized)-1].ID
	return conversationID + ":" + strconv.Itoa(len(summarized)) + ":" + last
}
