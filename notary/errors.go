package notary

// ErrorType classifies why a verification call failed.
type ErrorType string

const (
	TypeInvalidHexEncoding    ErrorType = "invalid_hex_encoding"
	TypeMalformedPresentation ErrorType = "malformed_presentation"
	TypeInvalidTrustedKey     ErrorType = "invalid_trusted_key"
	TypeInvalidEmbeddedKey    ErrorType = "invalid_embedded_key"
	TypeKeyMismatch           ErrorType = "key_mismatch"
	TypeVerificationFailed    ErrorType = "verification_failed"
	TypeInvalidEnvelope       ErrorType = "invalid_envelope"
)

// KeyMismatchMessage is the full text of a key mismatch error.
const KeyMismatchMessage = "the verifying key does not match the notary key"

// Error is returned by every operation of this package. Its text is the
// message, followed by the underlying reason when there is one. Neither part
// ever carries key or transcript bytes.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same type, so errors.Is(err, ErrKeyMismatch)
// works regardless of the cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// Sentinels for errors.Is.
var (
	ErrInvalidHexEncoding    = &Error{Type: TypeInvalidHexEncoding, Message: "invalid hex encoding"}
	ErrMalformedPresentation = &Error{Type: TypeMalformedPresentation, Message: "malformed presentation"}
	ErrInvalidTrustedKey     = &Error{Type: TypeInvalidTrustedKey, Message: "invalid notary public key"}
	ErrInvalidEmbeddedKey    = &Error{Type: TypeInvalidEmbeddedKey, Message: "invalid verifying key in presentation"}
	ErrKeyMismatch           = &Error{Type: TypeKeyMismatch, Message: KeyMismatchMessage}
	ErrVerificationFailed    = &Error{Type: TypeVerificationFailed, Message: "presentation verification failed"}
	ErrInvalidEnvelope       = &Error{Type: TypeInvalidEnvelope, Message: "invalid presentation envelope"}
)

// newError copies the sentinel's message and attaches cause.
func newError(sentinel *Error, cause error) *Error {
	return &Error{Type: sentinel.Type, Message: sentinel.Message, Cause: cause}
}
