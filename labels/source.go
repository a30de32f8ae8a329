package labels

import "context"

// Source resolves one feature to its upstream explanation payload.
//
// Implementations return ErrNotFound when the feature does not exist and a
// *RateLimitedError when the upstream signals a rate limit. Any other error
// is treated as transient and retried.
type Source interface {
	FetchFeature(ctx context.Context, datasetID string, unit, index int) (*Payload, error)
}

// Resolver maps a dataset unit to the upstream model and source identifiers.
type Resolver func(datasetID string, unit int) (modelID, sourceID string, err error)

// Payload is the part of a feature document used for labeling.
type Payload struct {
	Explanations []Explanation `json:"explanations"`
	TopLogits    []Logit       `json:"topLogits"`
}

// Explanation is one auto-interpretation of a feature.
type Explanation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Logit is one token the feature promotes.
type Logit struct {
	Token string  `json:"token"`
	Value float64 `json:"value"`
}
