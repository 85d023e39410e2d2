// Package packer selects candidate chunks greedily, in rank order, until a
// token budget is exhausted.
package packer

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ziadkadry99/ctxpack/internal/metrics"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
	"github.com/ziadkadry99/ctxpack/internal/tokens"
)

// TruncationMarker is appended to a chunk whose content was cut to fit.
const TruncationMarker = "\n\n[Content truncated...]"

const (
	DefaultResponseBuffer     = 4096
	DefaultMinFragmentTokens  = 500
	DefaultTruncationHeadroom = 0.9
)

// ErrInvalidBudget is returned when a budget component is negative.
var ErrInvalidBudget = errors.New("invalid token budget")

// Budget describes the tokens a prompt may spend.
type Budget struct {
	MaxTokens     int
	QueryTokens   int
	HistoryTokens int
}

// Result is the packed context.
type Result struct {
	Chunks     []retrieval.Chunk
	TokensUsed int
	// Available is the token allowance documents were packed into.
	Available int
	// Truncated is set when a chunk was cut or at least one candidate was
	// left out.
	Truncated bool
	Dropped   int
}

// Packer holds the packing parameters. The zero value is not usable; call
// NewPacker.
type Packer struct {
	Estimate tokens.Estimator
	// ResponseBuffer is reserved for the model's answer.
	ResponseBuffer int
	// MinFragmentTokens is the smallest remaining allowance worth filling
	// with a truncated chunk.
	MinFragmentTokens int
	// TruncationHeadroom scales the character allowance of a truncated
	// chunk so the marker and estimator rounding still fit.
	TruncationHeadroom float64

	metrics *metrics.Metrics
}

// NewPacker returns a Packer with the default parameters.
func NewPacker(est tokens.Estimator, m *metrics.Metrics) *Packer {
	return &Packer{
		Estimate:           est.OrDefault(),
		ResponseBuffer:     DefaultResponseBuffer,
		MinFragmentTokens:  DefaultMinFragmentTokens,
		TruncationHeadroom: DefaultTruncationHeadroom,
		metrics:            m,
	}
}

// Available returns the document allowance for b, never below zero.
func (p *Packer) Available(b Budget) int {
	avail := b.MaxTokens - b.QueryTokens - p.ResponseBuffer - b.HistoryTokens
	if avail < 0 {
		return 0
	}
	return avail
}

// Pack walks candidates in the given order. A candidate that fits whole is
// included. The first one that does not fit is included in truncated form if
// at least MinFragmentTokens remain, and packing stops there. TokensUsed never
// exceeds Available.
func (p *Packer) Pack(candidates []retrieval.Chunk, b Budget) (*Result, error) {
	if b.MaxTokens < 0 || b.QueryTokens < 0 || b.HistoryTokens < 0 {
		return nil, fmt.Errorf("%w: max=%d query=%d history=%d",
			ErrInvalidBudget, b.MaxTokens, b.QueryTokens, b.HistoryTokens)
	}
	est := p.Estimate.OrDefault()
	res := &Result{Available: p.Available(b)}

	// Query, history and the response buffer already exceed the budget.
	if b.MaxTokens-b.QueryTokens-p.ResponseBuffer-b.HistoryTokens < 0 {
		res.Truncated = len(candidates) > 0
		res.Dropped = len(candidates)
		p.metrics.ObservePack(res.Truncated, res.Dropped)
		return res, nil
	}

	for i, c := range candidates {
		cost := est(c.Content)
		if res.TokensUsed+cost <= res.Available {
			res.Chunks = append(res.Chunks, c)
			res.TokensUsed += cost
			continue
		}

		res.Truncated = true
		res.Dropped = len(candidates) - i
		remaining := res.Available - res.TokensUsed
		if remaining >= p.MinFragmentTokens {
			if cut, ok := p.truncate(c, remaining, est); ok {
				res.Chunks = append(res.Chunks, cut)
				res.TokensUsed += est(cut.Content)
				res.Dropped--
			}
		}
		break
	}

	p.metrics.ObservePack(res.Truncated, res.Dropped)
	return res, nil
}

// truncate cuts c to fit within remaining tokens, marker included. It reports
// false if even the cut version would not fit, which can only happen with a
// custom estimator.
func (p *Packer) truncate(c retrieval.Chunk, remaining int, est tokens.Estimator) (retrieval.Chunk, bool) {
	n := int(float64(remaining) * tokens.CharsPerToken * p.TruncationHeadroom)
	if n > len(c.Content) {
		n = len(c.Content)
	}
	for n > 0 && n < len(c.Content) && !utf8.RuneStart(c.Content[n]) {
		n--
	}
	if n <= 0 {
		return c, false
	}
	out := c
	out.Content = c.Content[:n] + TruncationMarker
	if est(out.Content) > remaining {
		return c, false
	}
	return out, true
}
