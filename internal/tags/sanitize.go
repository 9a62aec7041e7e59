package tags

import (
	"strings"

	"tag-gateway/internal/models"
)

// Sanitize lowercases each tag, strips commas and surrounding
// whitespace, drops empties and keeps at most models.MaxTags entries.
// Applying it to its own output returns the same slice contents.
func Sanitize(values []string) []string {
	out := make([]string, 0, min(len(values), models.MaxTags))
	for _, v := range values {
		tag := models.Trim(strings.ReplaceAll(strings.ToLower(v), ",", ""))
		if tag == "" {
			continue
		}
		out = append(out, tag)
		if len(out) == models.MaxTags {
			break
		}
	}
	return out
}
