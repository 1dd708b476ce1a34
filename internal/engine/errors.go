package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBackendAvailable is returned by [Group.Perform] when zero registered
// backends are ready at selection time. The failover loop is never entered.
var ErrNoBackendAvailable = errors.New("no backend available")

// ErrBackendUnavailable marks a candidate that reported not-ready between
// selection and invocation. It only ever appears inside an [ExhaustedError];
// it never propagates on its own.
var ErrBackendUnavailable = errors.New("backend not ready")

// ErrInvocationFailure marks a candidate whose backend returned an error.
// The underlying error is wrapped and can be unpacked with [errors.Is] or
// [errors.As]. Like [ErrBackendUnavailable] it only appears inside an
// [ExhaustedError].
var ErrInvocationFailure = errors.New("backend invocation failed")

// ErrTimeout marks a candidate whose invocation exceeded the per-backend
// timeout. The failover loop treats it like any other failure and proceeds to
// the next candidate.
var ErrTimeout = errors.New("backend invocation timed out")

// ErrAllBackendsExhausted is returned when every candidate in the list failed.
// Use [errors.As] with [*ExhaustedError] to inspect the per-candidate reasons.
var ErrAllBackendsExhausted = errors.New("all backends exhausted")

// Failure records the outcome of one failed candidate invocation.
type Failure struct {
	// Backend is the name of the candidate that failed.
	Backend string

	// Err is the failure reason: [ErrBackendUnavailable], [ErrTimeout], or
	// [ErrInvocationFailure] wrapping the error the backend returned.
	Err error
}

// ExhaustedError is the terminal error of a failover walk that ran out of
// candidates. It wraps [ErrAllBackendsExhausted] and carries the failure
// reason of every candidate tried, in order.
type ExhaustedError struct {
	// Kind is the capability of the group that exhausted its candidates.
	Kind Kind

	// Failures lists the per-candidate outcomes in the order they were tried.
	Failures []Failure
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: all backends exhausted", e.Kind)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.Backend, f.Err)
	}
	return b.String()
}

// Is reports true for [ErrAllBackendsExhausted], so callers can test the
// terminal condition without unpacking the detail struct.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllBackendsExhausted
}
