package analyzer

import (
	"context"

	"safety-backend/internal/analysis"
)

// Placeholder is the provider used when nothing is configured. It refuses to
// analyze: a fabricated verdict would complete the job and poison the result
// cache under the real content hash.
type Placeholder struct{}

func (Placeholder) Analyze(ctx context.Context, req Request) (analysis.Result, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Result{}, err
	}
	return analysis.Result{}, ErrNotConfigured
}

var _ Client = Placeholder{}
