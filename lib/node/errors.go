package node

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the operator-visible failure type of the core. It wraps a return
// code (of type RetCode) and an error message.
//
// Only clock skew and buffer overflow ever surface to callers: physics and
// dependency "blocking" are normal control flow, and duplicates are no-ops.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("NodeError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf extracts the return code from an error returned by the core.
// Non-core errors map to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Command executed successfully.
	RetCClockSkew                     // 1: Event origin timestamp lies in the receiver's future.
	RetCMalformedEvent                // 2: Event failed decode/validation at the ingestion boundary.
	RetCBufferOverflow                // 3: Pending or blocked buffer exceeded its configured capacity.
	RetCInternalError                 // 4: Command failed due to an internal error.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCClockSkew:
		return "ClockSkew"
	case RetCMalformedEvent:
		return "MalformedEvent"
	case RetCBufferOverflow:
		return "BufferOverflow"
	case RetCInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}
