// Package inspect checks assertions against the disclosed part of a verified
// transcript: it parses the redacted HTTP exchange and locates expected
// values in the response, requiring every matched byte to be disclosed.
package inspect

import (
	"go.uber.org/zap"
)

var (
	// Package-level logger for inspect - use this directly
	logger = zap.NewNop()
)

// SetLogger allows the main package to inject its configured logger
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l.With(zap.String("package", "inspect"))
	}
}
