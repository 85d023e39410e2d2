// Package tokens estimates how many model tokens a piece of text occupies.
//
// The estimate is a character heuristic, not a tokenizer: one token is assumed
// to cover CharsPerToken bytes of text. It needs no model-specific vocabulary,
// and every budget computed from it inherits its imprecision.
package tokens

// CharsPerToken is the bytes-per-token ratio behind Estimate. The packer uses
// the same ratio to convert a remaining token budget back into a byte length,
// so changing one without the other breaks truncation arithmetic.
const CharsPerToken = 4

// Estimator maps text to an approximate token count. Implementations must be
// monotonically non-decreasing in text length.
type Estimator func(text string) int

// Estimate returns ceil(len(text) / CharsPerToken).
func Estimate(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// Sum estimates the combined token count of several texts.
func (e Estimator) Sum(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += e(t)
	}
	return total
}

// OrDefault returns e, or Estimate when e is nil.
func (e Estimator) OrDefault() Estimator {
	if e == nil {
		return Estimate
	}
	return e
}
