// Package models contains data structures for request/response handling.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// MaxInputLength is the longest accepted query, in UTF-16 code units,
	// after trimming.
	MaxInputLength = 180

	// DefaultMode is used when the request does not name a mode.
	DefaultMode = "youtube"

	// MaxTags caps every tag list the service returns.
	MaxTags = 25
)

var (
	// ErrMissingQuery indicates an empty or absent q field.
	ErrMissingQuery = errors.New("missing query")

	// ErrInputTooLong indicates q exceeds MaxInputLength.
	ErrInputTooLong = errors.New("input too long")
)

const systemPrompt = `You are an assistant that returns a JSON array of short keyword tags for videos. Return ONLY a JSON object like: {"tags": ["tag1","tag2",...] } . No extra explanation.`

const userPromptTemplate = `Generate up to %d unique short tags for this query: "%s". Mode: %s. Tags should be short (1-4 words), comma-free, and lowercase. Prefer long-tail tags for better targeting. Return only JSON as described.`

// Message represents a single message in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is a validated tag request.
type Query struct {
	Q    string
	Mode string
}

// ParseQuery decodes a request body and validates its fields.
// A body that is not a JSON object is treated as an empty object, so it
// fails with ErrMissingQuery rather than a decode error.
func ParseQuery(body []byte) (Query, error) {
	fields := decodeObject(body)

	q := ""
	if v, ok := fields["q"]; ok && !isFalsy(v) {
		q, _ = TextOf(v)
	}
	q = Trim(q)

	mode := DefaultMode
	if v, ok := fields["mode"]; ok && !isFalsy(v) {
		if text, ok := TextOf(v); ok {
			mode = text
		}
	}
	mode = strings.ToLower(Trim(mode))

	if q == "" {
		return Query{}, ErrMissingQuery
	}
	if TextLength(q) > MaxInputLength {
		return Query{}, ErrInputTooLong
	}

	return Query{Q: q, Mode: mode}, nil
}

// BuildPrompt returns the system and user messages for a query.
func BuildPrompt(query Query) []Message {
	return []Message{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, MaxTags, query.Q, query.Mode)},
	}
}

func decodeObject(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return map[string]any{}
	}
	return fields
}
