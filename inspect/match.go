package inspect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"tlsn-verifier/presentation"
)

const (
	MatchContains = "contains"
	MatchRegex    = "regex"
)

var (
	ErrNoMatch      = errors.New("no match in disclosed response")
	ErrNotDisclosed = errors.New("match covers undisclosed bytes")
	ErrUnexpected   = errors.New("inverted match found in response")
	ErrNoTranscript = errors.New("presentation discloses no transcript")
)

// ResponseMatch is an assertion over the response body. XPath and JSONPath
// narrow the search window; XPath applies first and JSONPath then runs inside
// each selected element. An empty Value asserts the window itself.
type ResponseMatch struct {
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	XPath    string `json:"xPath,omitempty"`
	JSONPath string `json:"jsonPath,omitempty"`
	Invert   bool   `json:"invert,omitempty"`
}

// Match is a located, fully disclosed match.
type Match struct {
	Text   string                `json:"text"`
	Groups map[string]string     `json:"groups,omitempty"`
	Ranges presentation.RangeSet `json:"-"`
}

// MatchError reports which assertion failed.
type MatchError struct {
	Index int
	Match ResponseMatch
	Err   error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("response match %d: %v", e.Index, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}

type window struct {
	start, end int
}

// CheckResponse parses the received side of a redacted transcript and checks
// every match against it. It returns one result per non-inverted match.
func CheckResponse(t *presentation.PartialTranscript, matches []ResponseMatch) (*Response, []Match, error) {
	if t == nil {
		return nil, nil, ErrNoTranscript
	}
	res, err := ParseResponse(t.ReceivedUnsafe())
	if err != nil {
		return nil, nil, err
	}
	authed := t.ReceivedAuthed()

	var out []Match
	for i, rm := range matches {
		m, err := res.check(rm, authed)
		if err != nil {
			logger.Debug("Response match failed", zap.Int("index", i), zap.Error(err))
			return nil, nil, &MatchError{Index: i, Match: rm, Err: err}
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return res, out, nil
}

func (r *Response) check(rm ResponseMatch, authed presentation.RangeSet) (*Match, error) {
	windows, err := r.windows(rm)
	if err != nil {
		return nil, err
	}

	var re *regexp.Regexp
	if rm.Type == MatchRegex {
		if re, err = makeRegex(rm.Value); err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", rm.Value, err)
		}
	} else if rm.Type != "" && rm.Type != MatchContains {
		return nil, fmt.Errorf("unknown match type %q", rm.Type)
	}

	body := string(r.Body)
	var hidden error
	for _, w := range windows {
		text := body[w.start:w.end]
		occurrences := findAll(text, rm.Value, re)

		if rm.Invert {
			// Absence only counts if the whole window was disclosed.
			if err := disclosed(authed, r.BodyRanges(w.start, w.end)); err != nil {
				return nil, err
			}
			if len(occurrences) > 0 {
				return nil, ErrUnexpected
			}
			continue
		}

		for _, loc := range occurrences {
			ranges := r.BodyRanges(w.start+loc[0], w.start+loc[1])
			if err := disclosed(authed, ranges); err != nil {
				hidden = err
				continue
			}
			m := &Match{Text: text[loc[0]:loc[1]], Ranges: ranges}
			if re != nil {
				m.Groups = namedGroups(re, text, loc)
			}
			return m, nil
		}
	}
	if rm.Invert {
		return nil, nil
	}
	if hidden != nil {
		return nil, hidden
	}
	return nil, ErrNoMatch
}

// findAll returns the submatch index slice of every occurrence of the value
// in text, in order. Plain values may overlap; regex matches do not.
func findAll(text, value string, re *regexp.Regexp) [][]int {
	switch {
	case value == "":
		return [][]int{{0, len(text)}}
	case re != nil:
		return re.FindAllStringSubmatchIndex(text, -1)
	}
	var out [][]int
	for off := 0; off <= len(text); {
		i := strings.Index(text[off:], value)
		if i == -1 {
			break
		}
		start := off + i
		out = append(out, []int{start, start + len(value)})
		off = start + 1
	}
	return out
}

// windows narrows the body by XPath then JSONPath.
func (r *Response) windows(rm ResponseMatch) ([]window, error) {
	body := string(r.Body)
	ws := []window{{0, len(body)}}

	if rm.XPath != "" {
		locs, err := extractHTMLElementsIndexes(body, rm.XPath, rm.JSONPath != "")
		if err != nil {
			return nil, err
		}
		ws = locs
	}
	if rm.JSONPath != "" {
		var narrowed []window
		for _, w := range ws {
			locs, err := extractJSONValueIndexes(r.Body[w.start:w.end], rm.JSONPath)
			if err != nil {
				return nil, err
			}
			for _, l := range locs {
				narrowed = append(narrowed, window{w.start + l.start, w.start + l.end})
			}
		}
		ws = narrowed
	}
	return ws, nil
}

func disclosed(authed, ranges presentation.RangeSet) error {
	for _, rg := range ranges {
		if !authed.ContainsRange(rg) {
			return fmt.Errorf("%w: [%d, %d)", ErrNotDisclosed, rg.Start, rg.End)
		}
	}
	return nil
}

func namedGroups(re *regexp.Regexp, text string, sub []int) map[string]string {
	var groups map[string]string
	for i, name := range re.SubexpNames() {
		if name == "" || sub[2*i] < 0 {
			continue
		}
		if groups == nil {
			groups = map[string]string{}
		}
		groups[name] = text[sub[2*i]:sub[2*i+1]]
	}
	return groups
}

func makeRegex(str string) (*regexp.Regexp, error) {
	return regexp.Compile("(?si)" + convertJsNamedGroupsToGo(str))
}

var jsNamedGroupPattern = regexp.MustCompile(`\(\?<([A-Za-z][A-Za-z0-9_]*)>`)

// convertJsNamedGroupsToGo rewrites `(?<name>` as `(?P<name>`.
func convertJsNamedGroupsToGo(s string) string {
	return jsNamedGroupPattern.ReplaceAllString(s, `(?P<$1>`)
}
