/*
Package errs provides coded errors shared between the server core and the
wire protocol.

It defines the CustomError struct, which implements the standard error
interface and carries a numeric code that is sent to clients inside
error-typed envelopes, so a client can react to a class of failure without
parsing message text.
*/
package errs

import (
	"fmt"
	"strings"

	"dischat/internal/pkg/logx"
)

// CustomError is the error type used across the application. The code is
// part of the wire protocol; the message is the client-facing description.
type CustomError struct {
	// Code is the protocol error code (see constants definition).
	Code int

	// Message is the client-facing error description.
	Message string
}

// Error implements the standard error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d: %s", e.Code, e.Message)
}

// NewError constructs a *CustomError from a predefined error code.
// The optional details are printf-style arguments applied to the message
// template when it contains formatting placeholders. Unknown codes fall
// back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with a code missing from errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
		}
	}

	customErr := templateErr

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}
