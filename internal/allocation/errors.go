package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an allocation failure
type Kind int

const (
	// KindInvalidInput marks structural or per-field violations
	KindInvalidInput Kind = iota + 1
	// KindInfeasible marks well-formed requests with no valid integer allocation
	KindInfeasible
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidInput is matched by errors.Is for every KindInvalidInput error
	ErrInvalidInput = errors.New("invalid allocation input")

	// ErrInfeasible is matched by errors.Is for every KindInfeasible error
	ErrInfeasible = errors.New("infeasible allocation")
)

// Infeasibility reasons. Callers may compare Error.Reason against them.
const (
	ReasonMinimumsExceedTotal = "total_minutes is smaller than the sum of minimums"
	ReasonTotalExceedsMaximum = "total_minutes exceeds the sum of maximums"
	ReasonMaximumsUnsatisfied = "unable to satisfy maximum constraints with the given total"
	ReasonNoCapacityLeft      = "unable to distribute remaining minutes due to maximum constraints"
)

// Violation is a single field-level validation failure
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Error is the single typed failure returned by Validate and Allocate
type Error struct {
	Kind       Kind
	Reason     string
	TaskID     string
	Violations []Violation
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.TaskID != "" {
		fmt.Fprintf(&b, " (task %s)", e.TaskID)
	}
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	}
	return b.String()
}

// Is lets errors.Is match the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrInfeasible:
		return e.Kind == KindInfeasible
	}
	return false
}

func invalidInput(reason, taskID string) *Error {
	return &Error{Kind: KindInvalidInput, Reason: reason, TaskID: taskID}
}

func infeasible(reason string) *Error {
	return &Error{Kind: KindInfeasible, Reason: reason}
}

// AsError extracts an *Error from err's chain
func AsError(err error) (*Error, bool) {
	var allocErr *Error
	if errors.As(err, &allocErr) {
		return allocErr, true
	}
	return nil, false
}
