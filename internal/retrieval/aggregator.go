// Package retrieval gathers candidate chunks for a prompt from explicit
// document ids, a document scope and a ranked search channel.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/ctxpack/internal/metrics"
)

const defaultSearchTimeout = 10 * time.Second

// Aggregator merges the direct, project and search channels into one ranked,
// deduplicated candidate list.
type Aggregator struct {
	docs          DocumentStore
	searcher      Searcher
	searchTimeout time.Duration
	limit         int
	minScore      float64
	log           logrus.FieldLogger
	metrics       *metrics.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSearchTimeout bounds each search call.
func WithSearchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.searchTimeout = d
		}
	}
}

// WithDefaults replaces DefaultLimit and DefaultMinScore for requests that
// leave Limit or MinScore unset. Out-of-range values are ignored.
func WithDefaults(limit int, minScore float64) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.limit = limit
		}
		if minScore >= 0 && minScore <= 1 {
			a.minScore = minScore
		}
	}
}

// WithLogger sets the logger used for degraded channels.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithMetrics records channel counts and search failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an Aggregator. searcher may be nil, in which case only
// the direct and project channels contribute.
func NewAggregator(docs DocumentStore, searcher Searcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		docs:          docs,
		searcher:      searcher,
		searchTimeout: defaultSearchTimeout,
		limit:         DefaultLimit,
		minScore:      DefaultMinScore,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Retrieve returns up to req.Limit chunks sorted by descending score. No two
// chunks share a document id; when channels overlap the higher-precedence
// channel (direct, then project, then search) wins. Only malformed requests
// produce an error. Store and search failures are logged and skipped.
func (a *Aggregator) Retrieve(ctx context.Context, requester, query string, req Request) ([]Chunk, error) {
	limit, minScore, err := a.validate(query, req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := a.log.WithField("requester", requester)

	// Each channel writes only its own slice; precedence is applied after
	// all three have finished.
	var direct, project, searched []Chunk
	var g errgroup.Group
	if len(req.DocumentIDs) > 0 {
		g.Go(func() error {
			direct = a.fetchDirect(ctx, log, requester, req.DocumentIDs)
			return nil
		})
	}
	if req.ScopeID != "" {
		g.Go(func() error {
			project = a.fetchProject(ctx, log, requester, req.ScopeID)
			return nil
		})
	}
	if a.searcher != nil && strings.TrimSpace(query) != "" {
		g.Go(func() error {
			searched = a.search(ctx, log, SearchQuery{
				Requester: requester,
				Query:     query,
				Limit:     limit,
				ScopeID:   req.ScopeID,
				MinScore:  minScore,
			})
			return nil
		})
	}
	_ = g.Wait()

	merged := merge(direct, project, searched)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	if a.metrics != nil {
		counts := make(map[string]int)
		for _, c := range merged {
			counts[string(c.Source)]++
		}
		a.metrics.ObserveRetrieval(counts, time.Since(start))
	}
	log.WithFields(logrus.Fields{
		"direct":   len(direct),
		"project":  len(project),
		"searched": len(searched),
		"returned": len(merged),
	}).Debug("retrieval complete")

	return merged, nil
}

func (a *Aggregator) validate(query string, req Request) (limit int, minScore float64, err error) {
	limit = req.Limit
	if limit < 0 {
		return 0, 0, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidRequest, limit)
	}
	if limit == 0 {
		limit = a.limit
	}
	minScore = a.minScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if minScore < 0 || minScore > 1 {
		return 0, 0, fmt.Errorf("%w: min_score must be within [0,1], got %v", ErrInvalidRequest, minScore)
	}
	if strings.TrimSpace(query) == "" && len(req.DocumentIDs) == 0 && req.ScopeID == "" {
		return 0, 0, fmt.Errorf("%w: query is required when no documents or scope are given", ErrInvalidRequest)
	}
	return limit, minScore, nil
}

func (a *Aggregator) fetchDirect(ctx context.Context, log logrus.FieldLogger, requester string, ids []string) []Chunk {
	var out []Chunk
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		doc, err := a.docs.GetDocument(ctx, id, requester)
		if err != nil {
			log.WithError(err).WithField("document_id", id).Warn("retrieval: fetching document failed, skipping")
			continue
		}
		if doc == nil {
			continue
		}
		out = append(out, chunkFromDocument(*doc, DirectScore, SourceDirect))
	}
	return out
}

func (a *Aggregator) fetchProject(ctx context.Context, log logrus.FieldLogger, requester, scopeID string) []Chunk {
	docs, err := a.docs.ListDocumentsByScope(ctx, requester, scopeID)
	if err != nil {
		log.WithError(err).WithField("scope_id", scopeID).Warn("retrieval: listing scope failed, skipping")
		return nil
	}
	out := make([]Chunk, 0, len(docs))
	for _, d := range docs {
		out = append(out, chunkFromDocument(d, ProjectScore, SourceProject))
	}
	return out
}

func (a *Aggregator) search(ctx context.Context, log logrus.FieldLogger, q SearchQuery) []Chunk {
	ctx, cancel := context.WithTimeout(ctx, a.searchTimeout)
	defer cancel()

	results, err := a.searcher.Search(ctx, q)
	if err != nil {
		if a.metrics != nil {
			a.metrics.SearchFailed()
		}
		log.WithError(err).Warn("retrieval: search unavailable, continuing without ranked results")
		return nil
	}

	// A searcher may return several hits for one document; keep the best.
	best := make(map[string]int)
	var out []Chunk
	for _, r := range results {
		if r.DocumentID == "" {
			continue
		}
		score := clamp(r.Score)
		if score < q.MinScore {
			continue
		}
		src := r.Source
		if src == "" {
			src = SourceSemantic
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = MakeSnippet(r.Content)
		}
		c := Chunk{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			Content:    r.Content,
			Snippet:    snippet,
			Score:      score,
			Source:     src,
		}
		if i, ok := best[r.DocumentID]; ok {
			if score > out[i].Score {
				out[i] = c
			}
			continue
		}
		best[r.DocumentID] = len(out)
		out = append(out, c)
	}
	return out
}

// merge concatenates channels in precedence order, skipping ids already seen.
func merge(channels ...[]Chunk) []Chunk {
	seen := make(map[string]bool)
	var out []Chunk
	for _, ch := range channels {
		for _, c := range ch {
			if seen[c.DocumentID] {
				continue
			}
			seen[c.DocumentID] = true
			out = append(out, c)
		}
	}
	return out
}

func chunkFromDocument(d Document, score float64, src Source) Chunk {
	return Chunk{
		DocumentID: d.ID,
		Title:      d.Title,
		Content:    d.Content,
		Snippet:    MakeSnippet(d.Content),
		Score:      score,
		Source:     src,
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
