package prompt

import "github.com/campusrag/advisor/internal/config"

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters. Used only when the
// provider does not report usage.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// EstimateCost returns the cost in USD for the given token counts under the
// configured per-1M prices. Returns 0 when either price is unset.
func EstimateCost(inputTokens, outputTokens int, prices config.Pricing) float64 {
	if prices.InputPerMillion <= 0 || prices.OutputPerMillion <= 0 {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000.0 * prices.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * prices.OutputPerMillion
	return inputCost + outputCost
}
