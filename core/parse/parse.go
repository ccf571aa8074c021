// Package parse recovers structured JSON from model output. Models routinely
// wrap JSON in markdown code fences, add prose around it, or emit
// almost-valid JSON (single quotes, trailing commas, unquoted keys); this
// package strips the wrapping and repairs the payload before decoding.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON returns the JSON document embedded in model output as a raw
// message. It strips markdown code fences and surrounding prose, then decodes
// the candidate directly, falling back to jsonrepair when the payload is
// close to but not quite valid JSON.
func ExtractJSON(content string) (json.RawMessage, error) {
	candidate := stripFences(content)
	candidate = clipToDocument(candidate)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON document found in content")
	}

	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, fmt.Errorf("repair JSON: %w", err)
	}
	if !json.Valid([]byte(repaired)) {
		return nil, fmt.Errorf("content is not valid JSON after repair")
	}
	return json.RawMessage(repaired), nil
}

// DecodeAs extracts the JSON document from model output and unmarshals it
// into T.
func DecodeAs[T any](content string) (T, error) {
	var result T

	raw, err := ExtractJSON(content)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal as %T: %w", result, err)
	}
	return result, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag. Content without a fence is returned trimmed.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)

	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	inner := trimmed[start+3:]
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		// Drop the language tag line, e.g. ```json.
		firstLine := strings.TrimSpace(inner[:newline])
		if !strings.ContainsAny(firstLine, "{[\"") {
			inner = inner[newline+1:]
		}
	}

	if end := strings.LastIndex(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// clipToDocument trims prose before the first and after the last JSON
// bracket so "Here is the data: {...} Hope that helps" yields only {...}.
func clipToDocument(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return strings.TrimSpace(content)
	}

	var end int
	if content[start] == '{' {
		end = strings.LastIndexByte(content, '}')
	} else {
		end = strings.LastIndexByte(content, ']')
	}
	if end <= start {
		// Truncated output; hand the open document to the repairer.
		return strings.TrimSpace(content[start:])
	}
	return strings.TrimSpace(content[start : end+1])
}
