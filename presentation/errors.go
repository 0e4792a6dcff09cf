package presentation

import "fmt"

// DecodeError reports a failure to deserialize a presentation buffer.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %v", e.Message, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s at offset %d", e.Message, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// VerifyErrorType identifies the stage of the verification routine that
// rejected a presentation.
type VerifyErrorType int

const (
	VerifyErrorAttestation VerifyErrorType = iota
	VerifyErrorSignature
	VerifyErrorBody
	VerifyErrorIdentity
	VerifyErrorTranscript
	VerifyErrorProvider
)

func (t VerifyErrorType) String() string {
	switch t {
	case VerifyErrorAttestation:
		return "attestation"
	case VerifyErrorSignature:
		return "signature"
	case VerifyErrorBody:
		return "body"
	case VerifyErrorIdentity:
		return "server identity"
	case VerifyErrorTranscript:
		return "transcript"
	case VerifyErrorProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// VerifyError is returned by (*Presentation).Verify.
type VerifyError struct {
	Type    VerifyErrorType
	Message string
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

func verifyErr(t VerifyErrorType, err error, format string, args ...any) *VerifyError {
	return &VerifyError{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}
