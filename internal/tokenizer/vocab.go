package tokenizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Reserved word forms stored at the head of every vocabulary.
var reservedWords = [numReserved]string{"<start>", "<end>", "<unk>"}

// Vocab is a word-level caption vocabulary.
//
// IDs 0..2 are reserved for <start>, <end> and <unk>; corpus words are
// assigned IDs from 3 upwards. Encoding lowercases the input, splits it
// on non-letter/non-digit runes, and maps unknown words to UnkID. The
// encoded sequence is wrapped as <start> w1 ... wn <end>, matching the
// caption format the decoder is trained on.
type Vocab struct {
	wordToID map[string]int32
	idToWord []string
}

// NewVocab creates a vocabulary from an explicit word list.
//
// Reserved tokens are added first, then the given words in order.
// Duplicates and words colliding with reserved forms are ignored.
func NewVocab(words []string) *Vocab {
	v := &Vocab{
		wordToID: make(map[string]int32, len(words)+numReserved),
		idToWord: make([]string, 0, len(words)+numReserved),
	}
	for _, w := range reservedWords {
		v.add(w)
	}
	for _, w := range words {
		v.add(w)
	}
	return v
}

// BuildVocab creates a vocabulary from a caption corpus.
//
// Words occurring fewer than minCount times are left out and will map
// to UnkID during encoding. Words are assigned IDs in order of
// decreasing frequency (ties broken alphabetically) so the same corpus
// always yields the same vocabulary.
func BuildVocab(captions []string, minCount int) *Vocab {
	counts := make(map[string]int)
	for _, caption := range captions {
		for _, w := range splitWords(caption) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w, n := range counts {
		if n >= minCount {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	return NewVocab(words)
}

func (v *Vocab) add(word string) {
	if _, exists := v.wordToID[word]; exists {
		return
	}
	v.wordToID[word] = int32(len(v.idToWord))
	v.idToWord = append(v.idToWord, word)
}

// Encode converts a caption to token IDs: <start> w1 ... wn <end>.
// Out-of-vocabulary words map to UnkID.
func (v *Vocab) Encode(text string) ([]int32, error) {
	words := splitWords(text)
	result := make([]int32, 0, len(words)+2)
	result = append(result, StartID)
	for _, w := range words {
		result = append(result, v.ID(w))
	}
	result = append(result, EndID)
	return result, nil
}

// Decode converts token IDs back to a space-joined caption, dropping
// the <start> and <end> markers. Unknown tokens render as <unk>.
func (v *Vocab) Decode(tokens []int32) (string, error) {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == StartID || tok == EndID {
			continue
		}
		if tok < 0 || int(tok) >= len(v.idToWord) {
			return "", fmt.Errorf("token ID %d out of range [0, %d)", tok, len(v.idToWord))
		}
		words = append(words, v.idToWord[tok])
	}
	return strings.Join(words, " "), nil
}

// ID returns the token ID for a word, or UnkID if the word is unknown.
func (v *Vocab) ID(word string) int32 {
	if id, ok := v.wordToID[word]; ok {
		return id
	}
	return UnkID
}

// Word returns the word form for a token ID.
//
// Panics if the ID is out of range.
func (v *Vocab) Word(id int32) string {
	if id < 0 || int(id) >= len(v.idToWord) {
		panic(fmt.Sprintf("token ID %d out of range [0, %d)", id, len(v.idToWord)))
	}
	return v.idToWord[id]
}

// VocabSize returns the total vocabulary size including reserved tokens.
func (v *Vocab) VocabSize() int {
	return len(v.idToWord)
}

// BosToken returns StartID.
func (v *Vocab) BosToken() int32 { return StartID }

// EosToken returns EndID.
func (v *Vocab) EosToken() int32 { return EndID }

// UnkToken returns UnkID.
func (v *Vocab) UnkToken() int32 { return UnkID }

// splitWords lowercases a caption and splits it into words on
// non-letter/non-digit runes.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
