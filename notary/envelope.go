package notary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"tlsn-verifier/keys"
	"tlsn-verifier/presentation"
)

// FormatVersion is the presentation format version this package verifies.
const FormatVersion = "0.1.0-alpha.12"

// EnvelopeMeta carries where the presentation was notarized.
type EnvelopeMeta struct {
	NotaryURL         string `json:"notaryUrl"`
	WebsocketProxyURL string `json:"websocketProxyUrl"`
	PluginURL         string `json:"pluginUrl,omitempty"`
}

// Envelope is the JSON document a prover exports: a hex presentation with
// its format version and notarization metadata.
type Envelope struct {
	Version string       `json:"version"`
	Data    string       `json:"data"`
	Meta    EnvelopeMeta `json:"meta"`
}

// AttestedData is the verified content of an envelope.
type AttestedData struct {
	Version           string `json:"version"`
	Time              uint64 `json:"time"`
	Sent              string `json:"sent"`
	Recv              string `json:"recv"`
	NotaryURL         string `json:"notaryUrl"`
	NotaryKey         string `json:"notaryKey"`
	WebsocketProxyURL string `json:"websocketProxyUrl,omitempty"`
	ServerName        string `json:"serverName,omitempty"`
	AttestationID     string `json:"attestationId"`
}

const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["version", "data", "meta"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "data": {"type": "string", "minLength": 1},
    "meta": {
      "type": "object",
      "required": ["notaryUrl"],
      "properties": {
        "notaryUrl": {"type": "string"},
        "websocketProxyUrl": {"type": "string"},
        "pluginUrl": {"type": "string"}
      }
    }
  }
}`

var (
	envelopeSchema     *gojsonschema.Schema
	envelopeSchemaErr  error
	envelopeSchemaOnce sync.Once
)

func compiledEnvelopeSchema() (*gojsonschema.Schema, error) {
	envelopeSchemaOnce.Do(func() {
		envelopeSchema, envelopeSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchemaJSON))
	})
	return envelopeSchema, envelopeSchemaErr
}

// ParseEnvelope validates and decodes an envelope document.
func ParseEnvelope(doc []byte) (*Envelope, error) {
	schema, err := compiledEnvelopeSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, newError(ErrInvalidEnvelope, err)
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return nil, newError(ErrInvalidEnvelope, errors.New(b.String()))
	}

	var env Envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, newError(ErrInvalidEnvelope, err)
	}
	if env.Version != FormatVersion {
		return nil, newError(ErrInvalidEnvelope, fmt.Errorf("unsupported presentation version %q", env.Version))
	}
	return &env, nil
}

// VerifyEnvelope verifies the presentation inside an envelope document.
func (v *Verifier) VerifyEnvelope(doc []byte, notaryKeyPEM string) (*AttestedData, *Report, error) {
	env, err := ParseEnvelope(doc)
	if err != nil {
		v.logger.Debug("Envelope rejected", zap.Error(err))
		return nil, nil, err
	}
	r, err := v.VerifyReport(env.Data, notaryKeyPEM)
	if err != nil {
		return nil, nil, err
	}
	notaryKey, err := VerifyingKeyPEM(r.VerifyingKey)
	if err != nil {
		return nil, nil, err
	}
	return &AttestedData{
		Version:           env.Version,
		Time:              r.Time,
		Sent:              r.Sent,
		Recv:              r.Recv,
		NotaryURL:         env.Meta.NotaryURL,
		NotaryKey:         notaryKey,
		WebsocketProxyURL: env.Meta.WebsocketProxyURL,
		ServerName:        r.ServerName,
		AttestationID:     r.AttestationID,
	}, r, nil
}

// VerifyEnvelope verifies an envelope document with the default provider.
func VerifyEnvelope(doc []byte, notaryKeyPEM string) (*AttestedData, error) {
	data, _, err := defaults().VerifyEnvelope(doc, notaryKeyPEM)
	return data, err
}

// VerifyingKeyPEM renders a presentation's verifying key as PEM in its
// compressed form.
func VerifyingKeyPEM(vk presentation.VerifyingKey) (string, error) {
	pub, err := ParseVerifyingKey(vk)
	if err != nil {
		return "", err
	}
	return keys.MarshalPEM(pub, true)
}
