package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tlsn-verifier/presentation"
)

// Header is one header line of a parsed message. Range covers the whole
// line without its CRLF, in transcript coordinates.
type Header struct {
	Name  string
	Value string
	Range presentation.Range
}

// Request is a parsed HTTP/1.1 request head.
type Request struct {
	Method      string
	Target      string
	Proto       string
	RequestLine presentation.Range
	Headers     map[string]Header // keyed by lower-case name
	HeaderEnd   int
	BodyStart   int
}

// Response is a parsed HTTP/1.1 response. Body is the de-chunked body;
// Chunks holds the transcript range of each chunk's data when the response
// uses chunked transfer encoding.
type Response struct {
	StatusCode    int
	StatusMessage string
	StatusLine    presentation.Range
	Headers       map[string]Header // keyed by lower-case name
	HeaderEnd     int
	BodyStart     int
	Body          []byte
	Chunks        []presentation.Range
}

var crlf = []byte("\r\n")

// parseHead splits the start line and header lines of a message.
func parseHead(data []byte) (startLine string, headers map[string]Header, headerEnd int, err error) {
	lineEnd := bytes.Index(data, crlf)
	if lineEnd == -1 {
		return "", nil, 0, errors.New("no CRLF after start line")
	}
	headerEnd = bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd == -1 {
		return "", nil, 0, errors.New("no header/body separator found")
	}

	headers = map[string]Header{}
	pos := lineEnd + 2
	for pos < headerEnd {
		end := pos + bytes.Index(data[pos:], crlf)
		line := data[pos:end]
		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			name := string(line[:colon])
			headers[strings.ToLower(name)] = Header{
				Name:  name,
				Value: strings.TrimSpace(string(line[colon+1:])),
				Range: presentation.Range{Start: pos, End: end},
			}
		} else {
			logger.Debug("Skipping header line without colon", zap.Int("offset", pos))
		}
		pos = end + 2
	}
	return string(data[:lineEnd]), headers, headerEnd, nil
}

// ParseRequest parses the head of an HTTP/1.1 request.
func ParseRequest(data []byte) (*Request, error) {
	line, headers, headerEnd, err := parseHead(data)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP request: %w", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return nil, fmt.Errorf("invalid HTTP request line %q", line)
	}
	return &Request{
		Method:      parts[0],
		Target:      parts[1],
		Proto:       parts[2],
		RequestLine: presentation.Range{Start: 0, End: len(line)},
		Headers:     headers,
		HeaderEnd:   headerEnd,
		BodyStart:   headerEnd + 4,
	}, nil
}

// Host returns the request's Host header value.
func (r *Request) Host() string {
	return r.Headers["host"].Value
}

// ParseResponse parses a complete HTTP/1.1 response.
func ParseResponse(data []byte) (*Response, error) {
	line, headers, headerEnd, err := parseHead(data)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP response: %w", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, fmt.Errorf("invalid HTTP status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid status code %q: %w", parts[1], err)
	}

	res := &Response{
		StatusCode: code,
		StatusLine: presentation.Range{Start: 0, End: len(line)},
		Headers:    headers,
		HeaderEnd:  headerEnd,
		BodyStart:  headerEnd + 4,
	}
	if len(parts) == 3 {
		res.StatusMessage = parts[2]
	}

	if strings.Contains(strings.ToLower(headers["transfer-encoding"].Value), "chunked") {
		chunks, err := parseChunkRanges(data, res.BodyStart)
		if err != nil {
			return nil, err
		}
		res.Chunks = chunks
		for _, c := range chunks {
			res.Body = append(res.Body, data[c.Start:c.End]...)
		}
		return res, nil
	}

	body := data[res.BodyStart:]
	if cl, ok := headers["content-length"]; ok {
		n, err := strconv.Atoi(cl.Value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", cl.Value)
		}
		if n > len(body) {
			return nil, fmt.Errorf("body has %d bytes, Content-Length is %d", len(body), n)
		}
		body = body[:n]
	}
	res.Body = body
	return res, nil
}

// parseChunkRanges returns the transcript range of every chunk's data.
func parseChunkRanges(data []byte, bodyStart int) ([]presentation.Range, error) {
	var res []presentation.Range
	idx := bodyStart
	for {
		szEnd := bytes.Index(data[idx:], crlf)
		if szEnd == -1 {
			return nil, errors.New("invalid chunked response: size line not terminated")
		}
		sizeLine := string(data[idx : idx+szEnd])
		if semi := strings.IndexByte(sizeLine, ';'); semi != -1 {
			sizeLine = sizeLine[:semi]
		}
		sizeLine = strings.TrimSpace(sizeLine)
		chunkSize, err := strconv.ParseUint(sizeLine, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk size %q: %w", sizeLine, err)
		}
		idx += szEnd + 2

		if chunkSize == 0 {
			return res, nil
		}
		if chunkSize > uint64(len(data)-idx) {
			return nil, errors.New("invalid chunk size exceeding response length")
		}
		end := idx + int(chunkSize)
		res = append(res, presentation.Range{Start: idx, End: end})
		if end+2 > len(data) || !bytes.Equal(data[end:end+2], crlf) {
			return nil, errors.New("invalid chunk: missing CRLF after data")
		}
		idx = end + 2
	}
}

// BodyRanges maps the body interval [from, to) to transcript ranges. A
// chunked body interval may span several chunks.
func (r *Response) BodyRanges(from, to int) presentation.RangeSet {
	if len(r.Chunks) == 0 {
		return presentation.NewRangeSet(presentation.Range{Start: r.BodyStart + from, End: r.BodyStart + to})
	}
	var out []presentation.Range
	bodyPos := 0
	for _, c := range r.Chunks {
		cFrom, cTo := bodyPos, bodyPos+c.Len()
		s, e := max(from, cFrom), min(to, cTo)
		if s < e {
			out = append(out, presentation.Range{Start: c.Start + s - cFrom, End: c.Start + e - cFrom})
		}
		bodyPos = cTo
	}
	return presentation.NewRangeSet(out...)
}
