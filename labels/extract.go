package labels

import "strings"

// maxLogitTokens is how many top logits make up a fallback label.
const maxLogitTokens = 5

// ExtractLabel picks the display label for a feature.
// The highest-scoring explanation wins; on equal scores the earlier one is kept.
// Without a usable explanation the label lists the leading top-logit tokens.
// Returns "" when the payload has neither.
func ExtractLabel(p *Payload) string {
	if p == nil {
		return ""
	}

	if len(p.Explanations) > 0 {
		best := p.Explanations[0]
		for _, e := range p.Explanations[1:] {
			if e.Score > best.Score {
				best = e
			}
		}
		if best.Description != "" {
			return best.Description
		}
	}

	if len(p.TopLogits) > 0 {
		n := min(len(p.TopLogits), maxLogitTokens)
		tokens := make([]string, n)
		for i := range n {
			tokens[i] = p.TopLogits[i].Token
		}
		return "Top tokens: " + strings.Join(tokens, ", ")
	}

	return ""
}
