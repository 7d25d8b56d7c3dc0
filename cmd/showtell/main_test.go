package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/showtell/showtell/internal/tokenizer"
)

func TestLoadTokenizerVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("a\ndog\nruns\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tok, err := loadTokenizer(captionOptions{tokenizer: "vocab", vocabPath: path})
	if err != nil {
		t.Fatalf("loadTokenizer: %v", err)
	}
	if _, ok := tok.(*tokenizer.Vocab); !ok {
		t.Fatalf("got %T, want *tokenizer.Vocab", tok)
	}
	// Three words plus the reserved start, end and unk tokens.
	if got := tok.VocabSize(); got != 6 {
		t.Errorf("VocabSize() = %d, want 6", got)
	}
}

func TestLoadTokenizerVocabRequiresPath(t *testing.T) {
	if _, err := loadTokenizer(captionOptions{tokenizer: "vocab"}); err == nil {
		t.Fatal("expected error when --vocab is missing")
	}
}

func TestLoadTokenizerUnknownEncoding(t *testing.T) {
	if _, err := loadTokenizer(captionOptions{tokenizer: "no-such-encoding"}); err == nil {
		t.Fatal("expected error for unknown tiktoken encoding")
	}
}

func TestCaptionCmdFlagDefaults(t *testing.T) {
	cmd := newCaptionCmd()

	cases := []struct {
		flag string
		want string
	}{
		{"tokenizer", "vocab"},
		{"embed-size", "256"},
		{"hidden-size", "512"},
		{"num-layers", "1"},
		{"image-size", "224"},
	}
	for _, tc := range cases {
		f := cmd.Flags().Lookup(tc.flag)
		if f == nil {
			t.Errorf("flag --%s not registered", tc.flag)
			continue
		}
		if f.DefValue != tc.want {
			t.Errorf("--%s default = %q, want %q", tc.flag, f.DefValue, tc.want)
		}
	}
}
