package llm

import "sync"

// Pricing is the USD price per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Approximate list prices used for cost estimates.
var (
	SonnetPricing = Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0}
	FlashPricing  = Pricing{InputPerMillion: 0.30, OutputPerMillion: 2.50}
)

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	pricing   Pricing
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker(pricing Pricing) *TokenTracker {
	return &TokenTracker{pricing: pricing}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

// Cost estimates the cost in USD.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	inputCost := float64(t.inputTok) / 1_000_000 * t.pricing.InputPerMillion
	outputCost := float64(t.outputTok) / 1_000_000 * t.pricing.OutputPerMillion
	return inputCost + outputCost
}
