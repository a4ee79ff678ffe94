package answer

import (
	"context"

	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
)

// Responses loads stored search responses.
type Responses interface {
	Get(ctx context.Context, id string) (*domresp.Response, error)
}
