// Package tokenizer converts caption text to token IDs and back.
//
// Two implementations are provided:
//   - Vocab: word-level vocabulary built from a caption corpus, the
//     standard choice for caption decoders with a closed vocabulary.
//   - TikToken: BPE tokenizer backed by pkoukk/tiktoken-go, wrapped by
//     CaptionTikToken for open-vocabulary experiments.
//
// All implementations agree on the reserved caption IDs: the decoder is
// seeded with StartID, stops on EndID, and maps out-of-vocabulary words
// to UnkID.
package tokenizer

// Reserved caption token IDs. These occupy the lowest IDs in every
// tokenizer so the decoder's termination check is implementation
// independent.
const (
	StartID int32 = 0 // <start>, seeds generation
	EndID   int32 = 1 // <end>, terminates generation
	UnkID   int32 = 2 // <unk>, out-of-vocabulary words

	numReserved = 3
)

// Tokenizer converts between caption text and token IDs.
type Tokenizer interface {
	// Encode converts text to token IDs, including start and end markers
	// where the implementation defines them.
	Encode(text string) ([]int32, error)

	// Decode converts token IDs back to text, dropping special tokens.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the total vocabulary size including special tokens.
	VocabSize() int

	// BosToken returns the beginning-of-sequence token ID, or -1 if unused.
	BosToken() int32

	// EosToken returns the end-of-sequence token ID, or -1 if unused.
	EosToken() int32

	// UnkToken returns the unknown token ID, or -1 if unused.
	UnkToken() int32
}

var (
	_ Tokenizer = (*Vocab)(nil)
	_ Tokenizer = (*CaptionTikToken)(nil)
)
