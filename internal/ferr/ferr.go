// Package ferr defines the engine's error kinds. Every fatal error
// raised by the workflow engine or its primitives carries one of
// these kinds so callers can distinguish a safety denial from an I/O
// failure without parsing message text.
package ferr

import "fmt"

type Kind string

const (
	Precondition        Kind = "Precondition"
	SafetyDenied         Kind = "SafetyDenied"
	IO                   Kind = "IO"
	Timeout              Kind = "Timeout"
	VerifyFailed         Kind = "VerifyFailed"
	Cancelled            Kind = "Cancelled"
	SignatureInvalid     Kind = "SignatureInvalid"
	UnsupportedPlatform  Kind = "UnsupportedPlatform"
)

// Error pairs a Kind with a human-readable message. Its Error() form
// is "<kind>: <message>", which doubles as the message-prefix surface
// the spec calls for without requiring callers to type-switch.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *ferr.Error,
// returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errorsAs(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
