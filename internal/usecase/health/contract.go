package health

import "context"

// Pinger checks availability of a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker checks availability of a model provider.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}
