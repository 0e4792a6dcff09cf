// Package proofverifier verifies presentation files offline and reports the
// outcome in human or JSON form.
package proofverifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"tlsn-verifier/inspect"
	"tlsn-verifier/notary"
	"tlsn-verifier/shared"
)

// Options selects the files to verify and how to report.
type Options struct {
	PresentationPath string
	NotaryKeyPath    string
	MatchesPath      string // optional JSON array of response matches
	JSON             bool
	Full             bool // print redactions uncollapsed
	Out              io.Writer
	Logger           *shared.Logger
}

// Outcome is what a successful validation reports.
type Outcome struct {
	notary.Result
	ServerName    string               `json:"serverName,omitempty"`
	AttestationID string               `json:"attestationId"`
	Envelope      *notary.AttestedData `json:"envelope,omitempty"`
	Matches       []inspect.Match      `json:"matches,omitempty"`
}

// Validate loads a presentation (hex, or an envelope JSON document) and the
// notary key from disk, verifies the presentation and checks any response
// matches. It returns an error if any check fails.
func Validate(opts Options) (*Outcome, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewNopLogger()
	}

	data, err := os.ReadFile(opts.PresentationPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read presentation: %w", err)
	}
	keyPEM, err := os.ReadFile(opts.NotaryKeyPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read notary key: %w", err)
	}
	var matches []inspect.ResponseMatch
	if opts.MatchesPath != "" {
		raw, err := os.ReadFile(opts.MatchesPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read response matches: %w", err)
		}
		if err := json.Unmarshal(raw, &matches); err != nil {
			return nil, fmt.Errorf("failed to decode response matches: %w", err)
		}
	}

	v := notary.NewVerifier(notary.WithLogger(opts.Logger))
	out := &Outcome{}
	var report *notary.Report

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		opts.Logger.Debug("Verifying envelope", zap.String("path", opts.PresentationPath))
		out.Envelope, report, err = v.VerifyEnvelope(data, string(keyPEM))
	} else {
		opts.Logger.Debug("Verifying hex presentation", zap.String("path", opts.PresentationPath))
		report, err = v.VerifyReport(string(data), string(keyPEM))
	}
	if err != nil {
		return nil, err
	}
	out.Result = report.Result
	out.ServerName = report.ServerName
	out.AttestationID = report.AttestationID

	if len(matches) > 0 {
		_, found, err := inspect.CheckResponse(report.Transcript, matches)
		if err != nil {
			return nil, err
		}
		out.Matches = found
	}

	if opts.JSON {
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		return out, enc.Encode(out)
	}
	printOutcome(opts.Out, out, opts.Full)
	return out, nil
}

func printOutcome(w io.Writer, out *Outcome, full bool) {
	show := collapseRedactions
	if full {
		show = func(s string) string { return s }
	}
	fmt.Fprintf(w, "[Verifier] Presentation verified ✅ (attestation %s)\n", out.AttestationID)
	fmt.Fprintf(w, "[Verifier] Session time: %d\n", out.Time)
	if out.ServerName != "" {
		fmt.Fprintf(w, "[Verifier] Server name: %s\n", out.ServerName)
	}
	if out.Envelope != nil {
		fmt.Fprintf(w, "[Verifier] Notary: %s\n", out.Envelope.NotaryURL)
	}
	fmt.Fprintln(w, "[Verifier] Sent:\n---\n"+show(out.Sent)+"\n---")
	fmt.Fprintln(w, "[Verifier] Received:\n---\n"+show(out.Recv)+"\n---")
	for i, m := range out.Matches {
		fmt.Fprintf(w, "[Verifier] Match %d: %q\n", i, m.Text)
	}
}

// collapseRedactions shortens runs of more than RedactionCollapseThreshold
// sentinels to CollapsedRedactionPattern.
func collapseRedactions(data string) string {
	if len(data) == 0 {
		return data
	}

	var result strings.Builder
	count := 0
	flush := func() {
		if count > RedactionCollapseThreshold {
			result.WriteString(CollapsedRedactionPattern)
		} else if count > 0 {
			result.WriteString(strings.Repeat(string(notary.Sentinel), count))
		}
		count = 0
	}
	for _, char := range data {
		if char == rune(notary.Sentinel) {
			count++
			continue
		}
		flush()
		result.WriteRune(char)
	}
	flush()
	return result.String()
}
