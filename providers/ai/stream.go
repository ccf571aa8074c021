package ai

import (
	"iter"
	"strings"
)

// ChunkStream wraps a lazy, finite sequence of completion chunks. It supports
// range-based iteration for real-time rendering and a convenience Collect()
// for callers who want the assembled result while still benefiting from
// streaming transport (lower time-to-first-byte).
//
// Important: callers must consume the stream, either by iterating with Iter()
// (breaking out of the loop early is fine) or by calling Collect(). The
// underlying transport holds an open HTTP response body that is only released
// when the iterator completes or is abandoned via a loop break. The sequence
// is not restartable: once consumed it is spent.
type ChunkStream struct {
	iterator iter.Seq2[CompletionChunk, error]
}

// NewChunkStream creates a ChunkStream from a raw iterator. The iterator
// yields chunks with a nil error for normal deltas and a non-nil error to
// signal a mid-stream failure; no chunk follows the one marked Final.
func NewChunkStream(iterator iter.Seq2[CompletionChunk, error]) *ChunkStream {
	return &ChunkStream{iterator: iterator}
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
//	for chunk, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(chunk.Text)
//	}
func (stream *ChunkStream) Iter() iter.Seq2[CompletionChunk, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated result.
// A mid-stream error terminates collection and returns the partial result
// alongside the error.
func (stream *ChunkStream) Collect() (*CompletionResult, error) {
	result := &CompletionResult{FinishReason: FinishUnknown}
	var text strings.Builder

	for chunk, err := range stream.iterator {
		if err != nil {
			result.Text = text.String()
			return result, err
		}

		text.WriteString(chunk.Text)

		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}

		if chunk.FinishReason != "" {
			result.FinishReason = chunk.FinishReason
		}

		if chunk.Final {
			break
		}
	}

	result.Text = text.String()
	return result, nil
}
