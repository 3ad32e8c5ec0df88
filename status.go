package clipwatch

import "time"

// State is the client-side state of one watched session.
//
// A session starts in [StateProcessing] and moves to [StateCompleted] once
// the status endpoint reports "completed". The transition is one way; there
// is no error state, a failed poll simply leaves the session processing.
type State string

const (
	// StateProcessing means the job has not reported completion yet.
	StateProcessing State = "processing"

	// StateCompleted is terminal: no further polls are scheduled.
	StateCompleted State = "completed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// completedStatus is the only server status value that ends polling.
const completedStatus = "completed"

// failedStatus is reported by the upstream app when a job errors out. It is
// not terminal for the poller.
const failedStatus = "failed"

// Payload is the status document served by GET /status/{sessionId}.
type Payload struct {
	// Status is the server-side job status, e.g. "processing" or "completed".
	Status string `json:"status"`

	// Message is a human-readable progress line.
	Message string `json:"message"`

	// Progress is the completion percentage, 0 to 100.
	Progress float64 `json:"progress"`
}

// Completed reports whether the payload ends polling.
func (p Payload) Completed() bool {
	return p.Status == completedStatus
}

// PollResult holds the outcome of a single status request.
//
// PollResult is delivered to every callback registered with
// [WithStatusCallback], for successful and failed polls alike.
type PollResult struct {
	// SessionID is the session that was polled.
	SessionID string

	// URL is the status resource that was requested.
	URL string

	// Payload is the decoded status document. Zero when Error is set.
	Payload Payload

	// State is the session state after this poll was applied.
	State State

	// Latency is the time taken by the HTTP request.
	Latency time.Duration

	// CheckedAt is when the poll finished.
	CheckedAt time.Time

	// StatusCode is the HTTP status code, or zero if no response arrived.
	StatusCode int

	// Error is the network, HTTP or decode error that ended the poll loop.
	// nil for successful polls.
	Error error
}
