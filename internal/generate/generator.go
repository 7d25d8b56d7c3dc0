// Package generate turns images into captions.
//
// A CaptionGenerator ties together the encoder, the decoder and a
// tokenizer: image -> embedding -> greedy token loop -> text.
package generate

import (
	"fmt"
	"image"

	"github.com/showtell/showtell/internal/imageutil"
	"github.com/showtell/showtell/internal/model"
	"github.com/showtell/showtell/internal/parallel"
	"github.com/showtell/showtell/internal/tensor"
	"github.com/showtell/showtell/internal/tokenizer"
)

// Config configures caption generation.
//
// Zero values take defaults: MaxLen 20, EndID from the tokenizer,
// standard ImageNet preprocessing, one worker per CPU batch item.
type Config struct {
	// MaxLen is the hard cap on generated tokens per caption.
	MaxLen int

	// EndID is the token that terminates generation. Zero means the
	// tokenizer's end-of-sequence token.
	EndID int32

	// Preprocess controls image decoding and normalization.
	Preprocess imageutil.Config

	// Workers bounds concurrency in GenerateBatch. Zero or negative
	// means one goroutine per image.
	Workers int
}

// DefaultConfig returns the standard generation configuration.
func DefaultConfig() Config {
	return Config{
		MaxLen:     model.DefaultMaxLen,
		EndID:      model.DefaultEndID,
		Preprocess: imageutil.DefaultConfig(),
	}
}

// noGradBackend is implemented by autodiff backends that can suspend
// gradient-tape recording. Detected dynamically so plain backends work
// unchanged.
type noGradBackend interface {
	NoGrad(fn func())
}

// CaptionGenerator generates captions for images.
//
// Generation is read-only with respect to the model weights, so batch
// items may run concurrently. On an autodiff backend every public
// method suspends tape recording for its duration, so generating
// between training steps does not pollute the tape.
type CaptionGenerator[B tensor.Backend] struct {
	encoder   *model.Encoder[B]
	decoder   *model.Decoder[B]
	tokenizer tokenizer.Tokenizer
	cfg       Config
	backend   B
}

// New creates a caption generator.
//
// Panics if the encoder embedding size does not match the decoder's
// input size.
func New[B tensor.Backend](
	encoder *model.Encoder[B],
	decoder *model.Decoder[B],
	tok tokenizer.Tokenizer,
	cfg Config,
	backend B,
) *CaptionGenerator[B] {
	if encoder.EmbedSize() != decoder.EmbedSize() {
		panic(fmt.Sprintf("generate: encoder embed size %d does not match decoder %d",
			encoder.EmbedSize(), decoder.EmbedSize()))
	}

	if cfg.MaxLen <= 0 {
		cfg.MaxLen = model.DefaultMaxLen
	}
	if cfg.EndID <= 0 {
		cfg.EndID = tok.EosToken()
	}
	if cfg.Preprocess.Width <= 0 || cfg.Preprocess.Height <= 0 {
		cfg.Preprocess = imageutil.DefaultConfig()
	}

	return &CaptionGenerator[B]{
		encoder:   encoder,
		decoder:   decoder,
		tokenizer: tok,
		cfg:       cfg,
		backend:   backend,
	}
}

// withoutGrad runs fn with tape recording suspended when the backend
// supports it. Toggling the tape is not synchronized, so this must be
// called from a single goroutine, never from inside a worker.
func (g *CaptionGenerator[B]) withoutGrad(fn func()) {
	if ng, ok := any(g.backend).(noGradBackend); ok {
		ng.NoGrad(fn)
		return
	}
	fn()
}

// Tokens generates caption token IDs for a preprocessed image tensor
// [1, channels, H, W]. The result is ragged: 1 <= len <= MaxLen.
func (g *CaptionGenerator[B]) Tokens(image *tensor.Tensor[float32, B]) []int32 {
	var result []int32
	g.withoutGrad(func() {
		result = g.sampleTokens(image)
	})
	return result
}

func (g *CaptionGenerator[B]) sampleTokens(image *tensor.Tensor[float32, B]) []int32 {
	embedding := g.encoder.Forward(image) // [1, embedSize]
	seed := embedding.Unsqueeze(1)        // [1, 1, embedSize]
	return g.decoder.Sample(seed, nil, model.SampleConfig{
		MaxLen: g.cfg.MaxLen,
		EndID:  g.cfg.EndID,
	})
}

// TokensBatch generates token IDs for a batch tensor [N, channels, H, W].
//
// The image batch is encoded in one pass, then each embedding is
// sampled independently and strictly sequentially per image. Results
// are ragged: row i holds image i's tokens.
func (g *CaptionGenerator[B]) TokensBatch(images *tensor.Tensor[float32, B]) [][]int32 {
	var results [][]int32
	g.withoutGrad(func() {
		batchSize := images.Shape()[0]
		embeddings := g.encoder.Forward(images) // [N, embedSize]
		rows := embeddings.Chunk(batchSize, 0)  // each [1, embedSize]

		results = make([][]int32, batchSize)
		for i, row := range rows {
			results[i] = g.decoder.Sample(row.Unsqueeze(1), nil, model.SampleConfig{
				MaxLen: g.cfg.MaxLen,
				EndID:  g.cfg.EndID,
			})
		}
	})
	return results
}

// Caption generates a caption string for a decoded image.
func (g *CaptionGenerator[B]) Caption(img image.Image) (string, error) {
	var text string
	var err error
	g.withoutGrad(func() {
		text, err = g.caption(img)
	})
	return text, err
}

func (g *CaptionGenerator[B]) caption(img image.Image) (string, error) {
	input, err := imageutil.ToTensor(img, g.cfg.Preprocess, g.backend)
	if err != nil {
		return "", fmt.Errorf("preprocess image: %w", err)
	}

	text, err := g.tokenizer.Decode(g.sampleTokens(input))
	if err != nil {
		return "", fmt.Errorf("decode caption tokens: %w", err)
	}
	return text, nil
}

// CaptionFile generates a caption for an image file.
func (g *CaptionGenerator[B]) CaptionFile(path string) (string, error) {
	img, err := imageutil.Load(path)
	if err != nil {
		return "", err
	}
	return g.Caption(img)
}

// GenerateBatch captions a set of images concurrently.
//
// Each image runs its own independent greedy loop; results are in
// input order and identical to calling Caption per image sequentially.
// Recording is suspended once around the whole batch, not per worker.
func (g *CaptionGenerator[B]) GenerateBatch(images []image.Image) ([]string, error) {
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = len(images)
	}

	results := make([]string, len(images))
	var err error
	g.withoutGrad(func() {
		err = parallel.ForErr(len(images), workers, func(i int) error {
			caption, captionErr := g.caption(images[i])
			if captionErr != nil {
				return fmt.Errorf("image %d: %w", i, captionErr)
			}
			results[i] = caption
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
