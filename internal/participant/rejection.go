package participant

import (
	"errors"
	"fmt"
)

// RejectionCode discriminates why a mutation was refused. These are expected,
// user-facing outcomes: transports render them as actionable messages and
// must be able to tell them apart, so they are typed rather than stringly.
type RejectionCode string

const (
	// RejectWrongStatus: the current status is outside the mutation's
	// allowed set.
	RejectWrongStatus RejectionCode = "WRONG_STATUS"
	// RejectNotEditable: the record is locked for editing regardless of
	// status.
	RejectNotEditable RejectionCode = "NOT_EDITABLE"
	// RejectNoChange: the request changes nothing; a no-op mutation is
	// invalid, not silently accepted.
	RejectNoChange RejectionCode = "NO_CHANGE"
	// RejectOutOfRange: a value fails a field-level range check (dates,
	// percentages).
	RejectOutOfRange RejectionCode = "OUT_OF_RANGE"
	// RejectMissingJustification: the operation requires an explicit
	// reason or justification that was not supplied.
	RejectMissingJustification RejectionCode = "MISSING_JUSTIFICATION"
	// RejectInvalidPayload: the mutation payload itself is malformed.
	RejectInvalidPayload RejectionCode = "INVALID_PAYLOAD"
)

// Rejection is the typed result of a failed validation. It satisfies error so
// it can travel through ordinary return paths, but it is an expected outcome,
// not a failure: callers branch on Code.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("mutation rejected (%s): %s", r.Code, r.Message)
}

func reject(code RejectionCode, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a Rejection from an error chain. The second return is
// false for infrastructure errors, which must not be rendered as business
// rejections.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
