package notary

import (
	"encoding/hex"

	"tlsn-verifier/presentation"
)

// Decode turns hex text into a presentation. Odd length or a non-hex
// character fails with ErrInvalidHexEncoding; anything the binary schema
// rejects fails with ErrMalformedPresentation.
func Decode(hexText string) (*presentation.Presentation, error) {
	raw, err := hex.DecodeString(hexText)
	if err != nil {
		return nil, newError(ErrInvalidHexEncoding, err)
	}
	p, err := presentation.Decode(raw)
	if err != nil {
		return nil, newError(ErrMalformedPresentation, err)
	}
	return p, nil
}
