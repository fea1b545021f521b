package requests

import (
	"errors"
	"fmt"
)

// PreconditionError reports a runner invoked against a request that is
// not in a state permitting the transition. It is always surfaced to
// the caller and never retried.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// NewStatusPreconditionError builds the error for a request in the
// wrong status. The message names the required status.
func NewStatusPreconditionError(required, actual RequestStatus) *PreconditionError {
	return &PreconditionError{
		Message: fmt.Sprintf(
			"the request must have status %q, but has status %q",
			required, actual),
	}
}

// NewNotStatusPreconditionError builds the error for a request in a
// forbidden status.
func NewNotStatusPreconditionError(forbidden RequestStatus) *PreconditionError {
	return &PreconditionError{
		Message: fmt.Sprintf(
			"the request must not have status %q", forbidden),
	}
}

// InvariantViolationError reports request state that matches no
// recognized pattern. It indicates upstream data corruption or a
// missed case, not caller misuse.
type InvariantViolationError struct {
	Message string
}

func (e *InvariantViolationError) Error() string {
	return e.Message
}

// ErrUnexpectedPoolingCase is returned by the pooling classifier when
// the (pre, post, same) combination matches none of the six cases.
var ErrUnexpectedPoolingCase = errors.New("unexpected pooling preference case")

// ErrRunnerAlreadyRan is returned when Run is invoked on a runner a
// second time. Runners are one-shot command objects.
var ErrRunnerAlreadyRan = errors.New("runner has already run")

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsInvariantViolation reports whether err is an
// InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var ie *InvariantViolationError
	return errors.As(err, &ie)
}
