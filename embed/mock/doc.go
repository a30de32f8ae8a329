// Package mock provides a test double for embed.Embedder.
//
// The mock allows tests to run without a real layout algorithm and to
// inject failures or count calls.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedFunc = func(ctx context.Context, set *core.FeatureVectorSet, p embed.Params) (core.PositionSet, error) {
//	    return nil, errors.New("boom")
//	}
//
//	count := embedder.CallCount()
//
// # Default Behavior
//
// Without EmbedFunc the mock places vector i at (i, i, i) and normalizes
// the layout, which is deterministic and cheap.
package mock
