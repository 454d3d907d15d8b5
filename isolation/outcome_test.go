package isolation

import "testing"

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeRateLimited, "rate_limited"},
		{OutcomeCircuitOpen, "circuit_open"},
		{OutcomeQueueFull, "queue_full"},
		{OutcomeOperationFailed, "operation_failed"},
		{Outcome(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %s, want %s", tt.outcome, got, tt.want)
		}
	}
}
