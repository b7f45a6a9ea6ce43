// Package apperrors defines the closed set of structured errors the
// assignment engine can return, and the envelope used to carry them
// across the HTTP and CLI boundaries.
package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors, one per closed error code. Callers should compare
// against these with errors.Is; wrapping preserves the Unwrap chain.
var (
	ErrEmptyStudentData      = errors.New("apperrors: student data is empty")
	ErrMissingRequiredFields = errors.New("apperrors: missing required student fields")
	ErrDuplicateStudentNames = errors.New("apperrors: duplicate student names")
	ErrStudentNoFriends      = errors.New("apperrors: student has no friends listed")
	ErrUnknownFriend         = errors.New("apperrors: student lists an unknown friend")
	ErrIsolatedStudents      = errors.New("apperrors: students with no valid friendships")
	ErrInvalidClassCount     = errors.New("apperrors: class count must be positive")
	ErrInvalidStudentCount   = errors.New("apperrors: student count must be positive")
	ErrTooManyClasses        = errors.New("apperrors: too many classes for the given roster size")
	ErrClassSizeTooSmall     = errors.New("apperrors: minimum class size would be too small")
	ErrAssignmentFailed      = errors.New("apperrors: assignment failed")
	ErrNoSolutionFound       = errors.New("apperrors: no solution satisfies the hard constraints")
	ErrOptimizationTimeout   = errors.New("apperrors: optimization deadline reached with no feasible solution")
	ErrInternal              = errors.New("apperrors: internal server error")
)

// codeOf maps each sentinel to its wire-level code.
var codeOf = map[error]string{
	ErrEmptyStudentData:      "EMPTY_STUDENT_DATA",
	ErrMissingRequiredFields: "MISSING_REQUIRED_FIELDS",
	ErrDuplicateStudentNames: "DUPLICATE_STUDENT_NAMES",
	ErrStudentNoFriends:      "STUDENT_NO_FRIENDS",
	ErrUnknownFriend:         "UNKNOWN_FRIEND",
	ErrIsolatedStudents:      "ISOLATED_STUDENTS",
	ErrInvalidClassCount:     "INVALID_CLASS_COUNT",
	ErrInvalidStudentCount:   "INVALID_STUDENT_COUNT",
	ErrTooManyClasses:        "TOO_MANY_CLASSES",
	ErrClassSizeTooSmall:     "CLASS_SIZE_TOO_SMALL",
	ErrAssignmentFailed:      "ASSIGNMENT_FAILED",
	ErrNoSolutionFound:       "NO_SOLUTION_FOUND",
	ErrOptimizationTimeout:   "OPTIMIZATION_TIMEOUT",
	ErrInternal:              "INTERNAL_SERVER_ERROR",
}

// Error is a structured error: a code from the closed set plus named
// params for client-side message translation, and a debug message.
type Error struct {
	Code    string
	Params  map[string]any
	Message string

	sentinel error
}

// New wraps one of the package's sentinel errors with params and a
// debug message. Passing an error not in codeOf panics; this is a
// programmer error, never a runtime condition.
func New(sentinel error, params map[string]any, message string) *Error {
	code, ok := codeOf[sentinel]
	if !ok {
		panic(fmt.Sprintf("apperrors: %v is not a registered sentinel", sentinel))
	}
	if params == nil {
		params = map[string]any{}
	}
	if message == "" {
		message = sentinel.Error()
	}
	return &Error{Code: code, Params: params, Message: message, sentinel: sentinel}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.sentinel
}

type envelope struct {
	Error struct {
		Code    string         `json:"code"`
		Params  map[string]any `json:"params"`
		Message string         `json:"message"`
	} `json:"error"`
}

// MarshalJSON renders the {error:{code,params,message}} envelope.
func (e *Error) MarshalJSON() ([]byte, error) {
	var env envelope
	env.Error.Code = e.Code
	env.Error.Params = e.Params
	env.Error.Message = e.Message
	return json.Marshal(env)
}
