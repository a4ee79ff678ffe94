// Package batch describes per-chunk outcomes of an indexing request.
package batch

// ItemStatus is the processing outcome of a single chunk.
type ItemStatus string

// Item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusError   ItemStatus = "error"
	StatusSkipped ItemStatus = "skipped"
)

// Stage names the indexing step a chunk failed at.
type Stage string

// Indexing stages, in pipeline order.
const (
	StageValidate  Stage = "validate"
	StageSetup     Stage = "setup"
	StageVectorize Stage = "vectorize"
	StageStore     Stage = "store"
)

// Result is the outcome of indexing one chunk, keyed by chunk id.
type Result struct {
	id     string
	status ItemStatus
	stage  Stage
	err    error
}

// NewOK creates a result for an indexed chunk.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewSkipped creates a result for a chunk deliberately left out of the index.
func NewSkipped(id string) Result { return Result{id: id, status: StatusSkipped} }

// NewError creates a result for a chunk that failed at stage.
func NewError(id string, stage Stage, err error) Result {
	return Result{id: id, status: StatusError, stage: stage, err: err}
}

// ID returns the chunk id.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Stage returns the failed step; empty for indexed chunks.
func (r Result) Stage() Stage { return r.stage }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Tally counts indexed and failed chunks. Skipped chunks count as neither.
func Tally(results []Result) (indexed, failed int) {
	for _, r := range results {
		switch r.status {
		case StatusOK:
			indexed++
		case StatusError:
			failed++
		}
	}
	return indexed, failed
}
