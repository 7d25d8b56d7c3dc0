// Package caption provides the public API for image captioning.
//
// The model pairs a frozen convolutional backbone with a trainable
// projection (the encoder) and an LSTM language model (the decoder).
// A Generator ties both to a tokenizer for end-to-end inference.
//
// Example:
//
//	backend := cpu.New()
//	vocab := caption.NewVocab(words)
//
//	backbone := caption.NewBackbone(caption.DefaultBackboneConfig(), backend)
//	encoder := caption.NewEncoder(backbone, 256, backend)
//	decoder := caption.NewDecoder(256, 512, vocab.VocabSize(), 1, backend)
//
//	gen := caption.NewGenerator(encoder, decoder, vocab, caption.DefaultGeneratorConfig(), backend)
//	text, err := gen.CaptionFile("beach.jpg")
package caption

import (
	"github.com/showtell/showtell/internal/generate"
	"github.com/showtell/showtell/internal/model"
	"github.com/showtell/showtell/internal/tensor"
	"github.com/showtell/showtell/internal/tokenizer"
)

// Model types

// BackboneConfig configures the convolutional feature extractor.
type BackboneConfig = model.BackboneConfig

// DefaultBackboneConfig returns the standard 224x224 RGB configuration.
func DefaultBackboneConfig() BackboneConfig {
	return model.DefaultBackboneConfig()
}

// Backbone is a convolutional image classifier whose feature extractor
// the encoder reuses.
type Backbone[B tensor.Backend] = model.Backbone[B]

// NewBackbone creates a backbone.
func NewBackbone[B tensor.Backend](cfg BackboneConfig, backend B) *Backbone[B] {
	return model.NewBackbone(cfg, backend)
}

// Encoder maps image batches to embeddings. The backbone is frozen;
// only the projection trains.
type Encoder[B tensor.Backend] = model.Encoder[B]

// NewEncoder creates an encoder over a backbone.
func NewEncoder[B tensor.Backend](backbone *Backbone[B], embedSize int, backend B) *Encoder[B] {
	return model.NewEncoder(backbone, embedSize, backend)
}

// Decoder scores captions under teacher forcing and samples captions
// greedily at inference time.
type Decoder[B tensor.Backend] = model.Decoder[B]

// NewDecoder creates a decoder with an LSTM stack numLayers deep.
func NewDecoder[B tensor.Backend](embedSize, hiddenSize, vocabSize, numLayers int, backend B) *Decoder[B] {
	return model.NewDecoder(embedSize, hiddenSize, vocabSize, numLayers, backend)
}

// SampleConfig controls greedy sampling. Zero values take defaults:
// MaxLen 20, EndID 1.
type SampleConfig = model.SampleConfig

// Captioner bundles encoder and decoder into one checkpointable model.
type Captioner[B tensor.Backend] = model.Captioner[B]

// NewCaptioner combines an encoder and decoder.
func NewCaptioner[B tensor.Backend](encoder *Encoder[B], decoder *Decoder[B]) *Captioner[B] {
	return model.NewCaptioner(encoder, decoder)
}

// Tokenization

// Tokenizer converts between caption text and token IDs.
type Tokenizer = tokenizer.Tokenizer

// Vocab is a word-level caption vocabulary with reserved start, end
// and unknown tokens.
type Vocab = tokenizer.Vocab

// Reserved token IDs.
const (
	StartID = tokenizer.StartID
	EndID   = tokenizer.EndID
	UnkID   = tokenizer.UnkID
)

// NewVocab builds a vocabulary from a word list. Reserved tokens come
// first; duplicates are ignored.
func NewVocab(words []string) *Vocab {
	return tokenizer.NewVocab(words)
}

// BuildVocab builds a vocabulary from raw captions, keeping words that
// appear at least minCount times.
func BuildVocab(captions []string, minCount int) *Vocab {
	return tokenizer.BuildVocab(captions, minCount)
}

// Generation

// Generator produces caption strings for images.
type Generator[B tensor.Backend] = generate.CaptionGenerator[B]

// GeneratorConfig configures caption generation.
type GeneratorConfig = generate.Config

// DefaultGeneratorConfig returns the standard generation configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return generate.DefaultConfig()
}

// NewGenerator creates a caption generator.
func NewGenerator[B tensor.Backend](
	encoder *Encoder[B],
	decoder *Decoder[B],
	tok Tokenizer,
	cfg GeneratorConfig,
	backend B,
) *Generator[B] {
	return generate.New(encoder, decoder, tok, cfg, backend)
}
