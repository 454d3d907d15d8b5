package isolation

import "strconv"

// Outcome classifies how one admission attempt settled. It is a
// low-cardinality value suitable as a metric label; Result.Err carries the
// fine-grained cause.
type Outcome int

const (
	// OutcomeSuccess means the operation ran and returned nil.
	OutcomeSuccess Outcome = iota

	// OutcomeRateLimited means the tier's window quota was exhausted. The
	// rejection consumed no bulkhead or breaker resource.
	OutcomeRateLimited

	// OutcomeCircuitOpen means the tier's breaker rejected the call without
	// invoking the operation, either because it is open or because a
	// half-open probe was already in flight.
	OutcomeCircuitOpen

	// OutcomeQueueFull means the bulkhead's pending queue was at its
	// configured depth cap.
	OutcomeQueueFull

	// OutcomeOperationFailed means the operation itself returned an error,
	// carried verbatim in Result.Err.
	OutcomeOperationFailed
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeCircuitOpen:
		return "circuit_open"
	case OutcomeQueueFull:
		return "queue_full"
	case OutcomeOperationFailed:
		return "operation_failed"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}
