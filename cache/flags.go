package cache

import (
	"github.com/c360/cachestream/errors"
)

// RequestFlags modify how a cache request treats live data and how its
// completion is delivered. Exactly one live-data policy flag is required.
type RequestFlags uint32

// Request flag bits.
const (
	// NoSubscribe skips the subscription leg; the caller must already
	// hold a subscription matching the request topic.
	NoSubscribe RequestFlags = 0x01

	// LiveDataFulfill completes the request on the first matching live
	// message or the cache response, whichever arrives first.
	LiveDataFulfill RequestFlags = 0x02

	// LiveDataQueue buffers matching live messages until the cache
	// response has been delivered.
	LiveDataQueue RequestFlags = 0x04

	// LiveDataFlowThrough delivers live messages immediately while the
	// request stays outstanding.
	LiveDataFlowThrough RequestFlags = 0x08

	// NoWaitReply returns from Send as soon as the request is buffered;
	// the terminal outcome arrives through the completion callback.
	NoWaitReply RequestFlags = 0x10
)

const policyMask = LiveDataFulfill | LiveDataQueue | LiveDataFlowThrough

// Policy returns the single live-data policy bit, or an error when zero
// or more than one policy bit is set.
func (f RequestFlags) Policy() (RequestFlags, error) {
	p := f & policyMask
	switch p {
	case LiveDataFulfill, LiveDataQueue, LiveDataFlowThrough:
		return p, nil
	case 0:
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "Policy",
			"a live-data policy flag is required")
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Cache", "Policy",
			"live-data policy flags are mutually exclusive")
	}
}

// String names the policy portion of the flags.
func (f RequestFlags) String() string {
	switch f & policyMask {
	case LiveDataFulfill:
		return "fulfill"
	case LiveDataQueue:
		return "queue"
	case LiveDataFlowThrough:
		return "flow-through"
	default:
		return "invalid"
	}
}
