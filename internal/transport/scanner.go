package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxStreamLineSize is the maximum size of a single stream line (1 MB).
// The default bufio.Scanner limit is 64 KiB, which is too small for large
// events such as long completions. If a line exceeds this limit the scanner
// returns a wrapped bufio.ErrTooLong via the Next() error path.
const maxStreamLineSize = 1 * 1024 * 1024

// PayloadScanner yields complete framed payloads from a provider stream.
// Implementations buffer partial lines internally, so a logical event split
// across several network reads is always delivered exactly once, whole.
type PayloadScanner interface {
	// Next returns the next complete payload. io.EOF signals normal end of
	// stream (including the vendor's done sentinel where one exists).
	Next() (string, error)
}

// SSEScanner reads Server-Sent Events from an io.Reader. It handles
// multi-line data fields, skips comments and empty lines, and detects the
// [DONE] sentinel used by OpenAI-compatible APIs.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner reading from reader. Individual SSE
// lines up to maxStreamLineSize are supported.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next SSE data payload. It skips empty lines and comment
// lines (starting with ':'), joins multi-line data fields with newlines, and
// returns io.EOF both at end of input and on the [DONE] sentinel.
func (sseScanner *SSEScanner) Next() (string, error) {
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()

		// Empty line signals end of an event; flush accumulated data lines.
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		// Skip SSE comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			// The [DONE] sentinel (OpenAI convention) ends the stream.
			if data == "[DONE]" {
				return "", io.EOF
			}

			dataLines = append(dataLines, data)
			continue
		}

		// Other SSE fields (event:, id:, retry:) carry no payload; the data
		// lines that follow identify the event on their own.
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return "", fmt.Errorf("SSE scanner error: %w", err)
	}

	// Flush a trailing event that was not terminated by a blank line.
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}

	return "", io.EOF
}

// LineScanner reads newline-delimited JSON payloads, the framing used by
// Cohere's generate stream. Blank lines are skipped.
type LineScanner struct {
	scanner *bufio.Scanner
}

// NewLineScanner creates a LineScanner reading from reader. Individual lines
// up to maxStreamLineSize are supported.
func NewLineScanner(reader io.Reader) *LineScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	return &LineScanner{scanner: scanner}
}

// Next returns the next non-empty line. Returns io.EOF at end of input.
func (lineScanner *LineScanner) Next() (string, error) {
	for lineScanner.scanner.Scan() {
		line := strings.TrimSpace(lineScanner.scanner.Text())
		if line == "" {
			continue
		}
		return line, nil
	}

	if err := lineScanner.scanner.Err(); err != nil {
		return "", fmt.Errorf("line scanner error: %w", err)
	}

	return "", io.EOF
}
