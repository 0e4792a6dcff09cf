package presentationtest

import (
	"bytes"
	"fmt"

	"tlsn-verifier/presentation"
)

// GitHubTime is the session time of the GitHub scenario.
const GitHubTime uint64 = 1748415894

// GitHubToken is the secret in the GitHub scenario's request that is never
// disclosed.
const GitHubToken = "ghp_0123456789abcdefABCD"

// GitHubCookie is the secret in the GitHub scenario's response that is never
// disclosed.
const GitHubCookie = "session=7f3a9c1e5b"

var (
	githubSent = []byte("GET /tlsnotary/tlsn/refs/tags/v0.1.0-alpha.12/crates/server-fixture/server/src/data/1kb.json HTTP/1.1\r\n" +
		"host: raw.githubusercontent.com\r\n" +
		"accept-encoding: identity\r\n" +
		"connection: close\r\n" +
		"authorization: token " + GitHubToken + "\r\n" +
		"\r\n")
	githubBody     = `{"id":1234567,"information":{"name":"John Doe","address":{"street":"123 Elm Street","city":"Anytown"}}}`
	githubReceived = []byte("HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Set-Cookie: " + GitHubCookie + "\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(githubBody)) +
		"\r\n" +
		githubBody)
)

// GitHubOptions describes a request to raw.githubusercontent.com with the
// authorization token and the response cookie redacted. The response status
// line is disclosed through a plaintext hash, everything else through
// encodings.
func GitHubOptions() Options {
	statusLine := bytes.Index(githubReceived, []byte("\r\n")) + 2
	recv := Hide(githubReceived, GitHubCookie)
	return Options{
		Time:               GitHubTime,
		Sent:               githubSent,
		Received:           githubReceived,
		SentReveal:         Hide(githubSent, GitHubToken),
		ReceivedHashReveal: presentation.NewRangeSet(presentation.Range{Start: 0, End: statusLine}),
		ReceivedReveal:     subtract(recv, presentation.Range{Start: 0, End: statusLine}),
	}
}

// GitHub builds the GitHub scenario.
func GitHub() (*Fixture, error) {
	return Build(GitHubOptions())
}

// Hide returns every index of data except those of the given substrings.
func Hide(data []byte, secrets ...string) presentation.RangeSet {
	hidden := presentation.RangeSet{}
	for _, s := range secrets {
		for off := 0; ; {
			i := bytes.Index(data[off:], []byte(s))
			if i < 0 {
				break
			}
			start := off + i
			hidden = hidden.Union(presentation.NewRangeSet(presentation.Range{Start: start, End: start + len(s)}))
			off = start + len(s)
		}
	}
	return subtract(presentation.NewRangeSet(presentation.Range{Start: 0, End: len(data)}), hidden...)
}

// subtract removes the given ranges from rs.
func subtract(rs presentation.RangeSet, remove ...presentation.Range) presentation.RangeSet {
	var out []presentation.Range
	for _, r := range rs {
		pieces := []presentation.Range{r}
		for _, x := range remove {
			var next []presentation.Range
			for _, p := range pieces {
				if x.End <= p.Start || x.Start >= p.End {
					next = append(next, p)
					continue
				}
				if x.Start > p.Start {
					next = append(next, presentation.Range{Start: p.Start, End: x.Start})
				}
				if x.End < p.End {
					next = append(next, presentation.Range{Start: x.End, End: p.End})
				}
			}
			pieces = next
		}
		out = append(out, pieces...)
	}
	return presentation.NewRangeSet(out...)
}
