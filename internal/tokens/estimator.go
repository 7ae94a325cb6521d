// Package tokens estimates prompt sizes before they are sent to the provider.
//
// Anthropic does not publish a local tokenizer, so cl100k_base is used as an
// approximation; when the codec cannot be loaded a characters-per-token
// heuristic is used instead.
package tokens

import (
	"math"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens for prompt text.
type Estimator struct {
	// CharsPerToken is used when no codec is available.
	CharsPerToken float64

	once     sync.Once
	codec    tokenizer.Codec
	codecErr error
}

// NewEstimator creates an estimator backed by the cl100k_base encoding.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

func (e *Estimator) loadCodec() {
	e.codec, e.codecErr = tokenizer.Get(tokenizer.Cl100kBase)
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}

	e.once.Do(e.loadCodec)
	if e.codecErr == nil && e.codec != nil {
		if ids, _, err := e.codec.Encode(text); err == nil {
			return len(ids)
		}
	}

	return e.heuristic(text)
}

// CountPrompt estimates the combined size of a system instruction and a
// user message, including a small per-message overhead.
func (e *Estimator) CountPrompt(system, user string) int {
	const perMessageOverhead = 4
	return e.Count(system) + e.Count(user) + 2*perMessageOverhead
}

func (e *Estimator) heuristic(text string) int {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4.0
	}
	return int(math.Ceil(float64(len(text)) / cpt))
}
