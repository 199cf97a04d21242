// Package chunker splits document text into overlapping, fixed-budget segments
// suitable for embedding.
//
// Sizes are measured in runes so multi-byte text is never cut mid-character.
package chunker

import (
	"fmt"
	"iter"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

const (
	// DefaultChunkSize is the default chunk budget in runes.
	DefaultChunkSize = 500

	// DefaultOverlap is the default number of runes shared by neighbouring chunks.
	DefaultOverlap = 100
)

// Split returns a lazy sequence of (index, chunk) pairs covering text.
//
// Every chunk is at most chunkSize runes long and consecutive chunks share
// exactly overlap runes; only the final chunk may be shorter. Text no longer
// than chunkSize yields a single chunk equal to the whole text. The sequence is
// deterministic and may be ranged over any number of times.
func Split(text string, chunkSize, overlap int) (iter.Seq2[int, string], error) {
	if chunkSize <= 0 || overlap <= 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d and overlap %d must satisfy 0 < overlap < size",
			errdefs.ErrInvalidInput, chunkSize, overlap)
	}
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: no text to chunk", errdefs.ErrEmptyInput)
	}

	runes := []rune(text)
	step := chunkSize - overlap

	return func(yield func(int, string) bool) {
		for i, start := 0, 0; ; i, start = i+1, start+step {
			end := min(start+chunkSize, len(runes))
			if !yield(i, string(runes[start:end])) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}, nil
}

// Collect drains seq into a slice ordered by chunk index.
func Collect(seq iter.Seq2[int, string]) []string {
	var out []string
	for _, chunk := range seq {
		out = append(out, chunk)
	}
	return out
}

// Join reverses Split: it concatenates chunks after dropping the leading
// overlap runes of every chunk but the first.
func Join(chunks []string, overlap int) string {
	var out []rune
	for i, chunk := range chunks {
		r := []rune(chunk)
		if i > 0 {
			r = r[min(overlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}
