package inspect

import (
	"fmt"
	"strconv"
	"strings"

	gojson "github.com/coreos/go-json"
	jp "github.com/reclaimprotocol/jsonpathplus-go"
)

// extractJSONValueIndexes evaluates a JSONPath over doc and returns the byte
// window of every selected value. jsonpathplus-go resolves the expression to
// concrete paths; coreos/go-json supplies the offsets of each node.
func extractJSONValueIndexes(doc []byte, jsonPathExpr string) ([]window, error) {
	results, err := jp.Query(jsonPathExpr, string(doc))
	if err != nil {
		return nil, fmt.Errorf("JSONPath query failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("jsonPath %q not found", jsonPathExpr)
	}

	var root gojson.Node
	if err := gojson.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON for offsets: %w", err)
	}

	out := make([]window, 0, len(results))
	for _, r := range results {
		n, err := findNodeBySegments(&root, jsonPathToSegments(r.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", r.Path, err)
		}
		// Node.End is inclusive.
		start, end := n.Start, n.End+1
		if start < 0 || end > len(doc) || start > end {
			return nil, fmt.Errorf("invalid range computed for path %q: [%d,%d)", r.Path, start, end)
		}
		out = append(out, window{start, end})
	}
	return out, nil
}

// jsonPathToSegments converts a normalized path like $.a[1]['b'] to ["a","1","b"].
func jsonPathToSegments(path string) []string {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil
	}
	var segments []string
	var cur strings.Builder
	inBracket := false
	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}
	for _, r := range p {
		switch {
		case r == '.' && !inBracket:
			flush()
		case r == '[' && !inBracket:
			flush()
			inBracket = true
		case r == ']' && inBracket:
			segments = append(segments, strings.Trim(cur.String(), `'"`))
			cur.Reset()
			inBracket = false
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return segments
}

func findNodeBySegments(node *gojson.Node, segments []string) (*gojson.Node, error) {
	cur := node
	for i, seg := range segments {
		switch v := cur.Value.(type) {
		case map[string]gojson.Node:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("object key %q not found at segment %d", seg, i)
			}
			cur = &next
		case []gojson.Node:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q at segment %d", seg, i)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("array index %d out of bounds at segment %d", idx, i)
			}
			cur = &v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at segment %d", v, i)
		}
	}
	return cur, nil
}
