package contract

import "errors"

type Code int

const (
	CodeInvalidInput Code = iota + 1
	CodeNotFound
	CodeRemote
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeInvalidInput:
		return "INVALID_INPUT"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeRemote:
		return "REMOTE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is the failure type returned by library packages. Only the CLI
// layer turns one of these into a process exit.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewErrorWith(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the contract code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return CodeInternal
}
