package cache

// Status is the terminal outcome class of a cache request.
type Status uint8

// Terminal statuses.
const (
	// StatusOK means data was delivered with no suspect segments.
	StatusOK Status = iota

	// StatusIncomplete means the request terminated without complete
	// data; Reason carries the sub-reason.
	StatusIncomplete

	// StatusFail means the request was rejected before it was sent.
	StatusFail

	// StatusInProgress acknowledges a buffered NoWaitReply request. It is
	// not a terminal status; the terminal outcome follows through the
	// completion handler.
	StatusInProgress
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIncomplete:
		return "incomplete"
	case StatusFail:
		return "fail"
	case StatusInProgress:
		return "in-progress"
	default:
		return "invalid"
	}
}

// IncompleteReason qualifies a StatusIncomplete outcome.
type IncompleteReason uint8

// Incomplete sub-reasons.
const (
	ReasonNone IncompleteReason = iota
	ReasonTimeout
	ReasonProtocolError
	ReasonCacheErrorResponse
	ReasonSuspectData
	ReasonNoData
	ReasonRequestCancelled
	ReasonSessionDestroyed
)

// String returns the string representation of an IncompleteReason.
func (r IncompleteReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTimeout:
		return "timeout"
	case ReasonProtocolError:
		return "protocol-error"
	case ReasonCacheErrorResponse:
		return "cache-error-response"
	case ReasonSuspectData:
		return "suspect-data"
	case ReasonNoData:
		return "no-data"
	case ReasonRequestCancelled:
		return "request-cancelled"
	case ReasonSessionDestroyed:
		return "session-destroyed"
	default:
		return "invalid"
	}
}

// Outcome is the terminal result of one cache request. Exactly one
// Outcome is produced per request, ever.
type Outcome struct {
	RequestID uint64
	Topic     string
	Status    Status
	Reason    IncompleteReason
}

// CompletionHandler receives the terminal outcome of a request issued
// with the NoWaitReply flag. It is invoked at most once per request.
type CompletionHandler func(Outcome)
