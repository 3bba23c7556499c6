package retrieval

import (
	"fmt"
	"strings"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

// BuildContext renders ranked results into the block handed to the answer
// prompt. No results renders an empty string.
func BuildContext(results []*model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Source %d: %s\n", i+1, r.Label())
		sb.WriteString(strings.TrimSpace(r.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}
