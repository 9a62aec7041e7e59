package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// TextOf renders a decoded JSON value as text. Strings pass through,
// numbers use their shortest decimal form, booleans become "true" or
// "false", and arrays join their rendered elements with commas.
// Objects and null have no text form and report false.
//
// Numbers are expected as json.Number (decoder UseNumber) or float64.
func TextOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String(), true
		}
		return formatNumber(f), true
	case float64:
		return formatNumber(val), true
	case bool:
		return strconv.FormatBool(val), true
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i], _ = TextOf(elem)
		}
		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isFalsy reports whether a request field should fall back to its default.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case float64:
		return val == 0
	default:
		return false
	}
}

// Trim removes leading and trailing whitespace as JavaScript defines it:
// Unicode White_Space plus U+FEFF, but not U+0085.
func Trim(s string) string {
	return strings.TrimFunc(s, isJSSpace)
}

func isJSSpace(r rune) bool {
	if r == '\uFEFF' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

// TextLength counts s in UTF-16 code units, so characters outside the
// Basic Multilingual Plane count twice.
func TextLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}
