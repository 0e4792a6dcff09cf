package inspect

import (
	"fmt"

	xp "github.com/reclaimprotocol/xpath-go"
)

// extractHTMLElementsIndexes returns the byte window of every element the
// XPath selects. With contentsOnly the window covers only the inner content.
func extractHTMLElementsIndexes(html string, xpathExpression string, contentsOnly bool) ([]window, error) {
	matches, err := xp.QueryWithOptions(xpathExpression, html, xp.Options{
		IncludeLocation: true,
		OutputFormat:    "nodes",
		ContentsOnly:    contentsOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate XPath %q: %w", xpathExpression, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("failed to find XPath %q", xpathExpression)
	}

	out := make([]window, 0, len(matches))
	for _, m := range matches {
		if m.StartLocation < 0 || m.EndLocation > len(html) || m.StartLocation > m.EndLocation {
			return nil, fmt.Errorf("invalid location for XPath %q: [%d,%d)", xpathExpression, m.StartLocation, m.EndLocation)
		}
		out = append(out, window{m.StartLocation, m.EndLocation})
	}
	return out, nil
}
