// Package tags turns free-form model output into a sanitized tag list.
package tags

import (
	"encoding/json"
	"regexp"
	"strings"

	"tag-gateway/internal/models"
)

// Outcome says which extraction path produced an Extraction.
type Outcome int

const (
	// Parsed means the JSON candidate decoded; Tags holds its "tags" field.
	Parsed Outcome = iota
	// Unparseable means the candidate was not JSON; Pieces holds the
	// comma/newline split of the whole content.
	Unparseable
)

func (o Outcome) String() string {
	if o == Parsed {
		return "parsed"
	}
	return "unparseable"
}

// Extraction is the result of reading tags out of model content.
type Extraction struct {
	Outcome Outcome

	// Tags is the decoded "tags" field when Outcome is Parsed. It is nil
	// when the decoded value was not an object or had no such field.
	Tags any

	// Pieces is the fallback split when Outcome is Unparseable.
	Pieces []string
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// Extract locates a JSON object in content and decodes it. The
// candidate runs from the first '{' to the last '}' when both exist in
// that order, otherwise it is the whole content.
func Extract(content string) Extraction {
	candidate := content
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first >= 0 && last > first {
		candidate = content[first : last+1]
	}

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return Extraction{Outcome: Unparseable, Pieces: splitFallback(content)}
	}

	extraction := Extraction{Outcome: Parsed}
	if obj, ok := value.(map[string]any); ok {
		extraction.Tags = obj["tags"]
	}
	return extraction
}

// Values returns the raw tag values of the extraction as text, before
// sanitization. A parsed "tags" field that is not an array yields nil.
func (e Extraction) Values() []string {
	if e.Outcome == Unparseable {
		return e.Pieces
	}

	elems, ok := e.Tags.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(elems))
	for _, elem := range elems {
		if text, ok := models.TextOf(elem); ok {
			values = append(values, text)
		}
	}
	return values
}

// FromContent extracts and sanitizes tags from model content.
func FromContent(content string) ([]string, Outcome) {
	extraction := Extract(content)
	return Sanitize(extraction.Values()), extraction.Outcome
}

func splitFallback(content string) []string {
	joined := lineBreaks.ReplaceAllString(content, ",")
	pieces := make([]string, 0, models.MaxTags)
	for _, piece := range strings.Split(joined, ",") {
		piece = models.Trim(piece)
		if piece == "" {
			continue
		}
		pieces = append(pieces, piece)
		if len(pieces) == models.MaxTags {
			break
		}
	}
	return pieces
}
