package model

import (
	"fmt"

	"github.com/showtell/showtell/internal/nn"
	"github.com/showtell/showtell/internal/tensor"
)

// Default sampling limits. EndID 1 matches the caption vocabulary
// convention (<start>=0, <end>=1, <unk>=2).
const (
	DefaultMaxLen = 20
	DefaultEndID  = 1
)

// SampleConfig controls greedy caption sampling.
//
// Zero values take the defaults: MaxLen 20, EndID 1.
type SampleConfig struct {
	MaxLen int   // hard cap on generated tokens
	EndID  int32 // token that terminates generation
}

func (c SampleConfig) withDefaults() SampleConfig {
	if c.MaxLen <= 0 {
		c.MaxLen = DefaultMaxLen
	}
	if c.EndID <= 0 {
		c.EndID = DefaultEndID
	}
	return c
}

// Decoder generates caption token scores from image embeddings.
//
// A word embedding table, an LSTM stack of numLayers layers and an
// output projection:
//
//	embeddings -> LSTM -> Linear(hidden, vocab)
//
// Forward runs teacher-forced training scoring; Sample runs greedy
// autoregressive inference.
type Decoder[B tensor.Backend] struct {
	embed *nn.Embedding[B]
	lstm  *nn.LSTM[B]
	proj  *nn.Linear[B]

	embedSize  int
	hiddenSize int
	vocabSize  int
	numLayers  int
	backend    B
}

// NewDecoder creates a decoder with an LSTM stack numLayers deep.
//
// Panics if any dimension is not positive or numLayers < 1.
func NewDecoder[B tensor.Backend](embedSize, hiddenSize, vocabSize, numLayers int, backend B) *Decoder[B] {
	if embedSize <= 0 || hiddenSize <= 0 || vocabSize <= 0 || numLayers < 1 {
		panic(fmt.Sprintf("decoder: invalid dimensions embed=%d hidden=%d vocab=%d layers=%d",
			embedSize, hiddenSize, vocabSize, numLayers))
	}

	return &Decoder[B]{
		embed:      nn.NewEmbedding[B](vocabSize, embedSize, backend),
		lstm:       nn.NewLSTM(embedSize, hiddenSize, numLayers, backend),
		proj:       nn.NewLinear[B](hiddenSize, vocabSize, backend),
		embedSize:  embedSize,
		hiddenSize: hiddenSize,
		vocabSize:  vocabSize,
		numLayers:  numLayers,
		backend:    backend,
	}
}

// Forward scores a ground-truth caption under teacher forcing.
//
// The final caption token is dropped (it is never fed as input), the
// remaining tokens are embedded, and the image embedding is prepended
// as timestep zero. A single LSTM pass from a zero state produces
// hidden states which are projected to vocabulary scores.
//
// Shapes:
//   - features: [batch, embedSize]
//   - captions: [batch, seqLen], seqLen >= 1
//   - output:   [batch, seqLen, vocabSize]
//
// The output time length always equals the input caption length.
func (d *Decoder[B]) Forward(
	features *tensor.Tensor[float32, B],
	captions *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	featShape := features.Shape()
	capShape := captions.Shape()
	if len(featShape) != 2 || featShape[1] != d.embedSize {
		panic(fmt.Sprintf("decoder: expected features [batch, %d], got shape %v", d.embedSize, featShape))
	}
	if len(capShape) != 2 || capShape[1] < 1 {
		panic(fmt.Sprintf("decoder: expected captions [batch, seqLen>=1], got shape %v", capShape))
	}
	if featShape[0] != capShape[0] {
		panic(fmt.Sprintf("decoder: batch mismatch, features %d vs captions %d", featShape[0], capShape[0]))
	}

	batchSize := capShape[0]
	seqLen := capShape[1]

	// Image embedding is timestep zero.
	inputs := features.Unsqueeze(1) // [batch, 1, embedSize]

	if seqLen > 1 {
		embedded := d.embed.Forward(dropLastToken(captions, d.backend)) // [batch, seqLen-1, embedSize]
		inputs = tensor.Cat([]*tensor.Tensor[float32, B]{inputs, embedded}, 1)
	}

	hidden := d.lstm.Forward(inputs) // [batch, seqLen, hiddenSize]

	// Project every timestep.
	scores := d.proj.Forward(hidden.Reshape(batchSize*seqLen, d.hiddenSize))
	return scores.Reshape(batchSize, seqLen, d.vocabSize)
}

// dropLastToken returns captions[:, :seqLen-1].
//
// Token indices carry no gradient, so the slice is built host-side.
func dropLastToken[B tensor.Backend](captions *tensor.Tensor[int32, B], backend B) *tensor.Tensor[int32, B] {
	shape := captions.Shape()
	batchSize, seqLen := shape[0], shape[1]

	src := captions.Data()
	trimmed := make([]int32, batchSize*(seqLen-1))
	for b := 0; b < batchSize; b++ {
		copy(trimmed[b*(seqLen-1):(b+1)*(seqLen-1)], src[b*seqLen:b*seqLen+seqLen-1])
	}

	result, err := tensor.FromSlice(trimmed, tensor.Shape{batchSize, seqLen - 1}, backend)
	if err != nil {
		panic(fmt.Sprintf("decoder: %v", err))
	}
	return result
}

// Sample greedily generates a caption from an image embedding.
//
// The seed [1, 1, embedSize] is fed as the first LSTM input. Each step
// projects the hidden state to vocabulary scores, takes the argmax
// (ties resolve to the lowest index), appends it to the result, and
// feeds its word embedding into the next step. Generation stops after
// the end token is appended, or after cfg.MaxLen tokens.
//
// A nil state means a zero initial state. The returned slice holds
// plain token IDs, 1 <= len <= cfg.MaxLen.
func (d *Decoder[B]) Sample(
	seed *tensor.Tensor[float32, B],
	state *nn.LSTMState[B],
	cfg SampleConfig,
) []int32 {
	seedShape := seed.Shape()
	if len(seedShape) != 3 || seedShape[0] != 1 || seedShape[1] != 1 || seedShape[2] != d.embedSize {
		panic(fmt.Sprintf("decoder: expected seed [1, 1, %d], got shape %v", d.embedSize, seedShape))
	}

	cfg = cfg.withDefaults()
	if state == nil {
		state = d.lstm.InitState(1)
	}

	x := seed.Squeeze(1) // [1, embedSize]
	result := make([]int32, 0, cfg.MaxLen)

	for len(result) < cfg.MaxLen {
		var h *tensor.Tensor[float32, B]
		h, state = d.lstm.Step(x, state)

		scores := d.proj.Forward(h) // [1, vocabSize]
		predicted := scores.Argmax(1).Data()[0]
		result = append(result, predicted)

		if predicted == cfg.EndID {
			break
		}

		// Feed the predicted token's embedding into the next step.
		indices, err := tensor.FromSlice([]int32{predicted}, tensor.Shape{1}, d.backend)
		if err != nil {
			panic(fmt.Sprintf("decoder: %v", err))
		}
		x = d.embed.Forward(indices).Detach() // [1, embedSize]
	}

	return result
}

// EmbedSize returns the input embedding dimensionality.
func (d *Decoder[B]) EmbedSize() int { return d.embedSize }

// HiddenSize returns the LSTM hidden state size.
func (d *Decoder[B]) HiddenSize() int { return d.hiddenSize }

// VocabSize returns the output vocabulary size.
func (d *Decoder[B]) VocabSize() int { return d.vocabSize }

// NumLayers returns the LSTM stack depth.
func (d *Decoder[B]) NumLayers() int { return d.numLayers }

// InitState returns a zero LSTM state for the given batch size.
func (d *Decoder[B]) InitState(batchSize int) *nn.LSTMState[B] {
	return d.lstm.InitState(batchSize)
}

// Parameters returns all trainable decoder parameters.
func (d *Decoder[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 4+3*d.numLayers)
	params = append(params, d.embed.Parameters()...)
	params = append(params, d.lstm.Parameters()...)
	params = append(params, d.proj.Parameters()...)
	return params
}

// StateDict returns all decoder parameters by name.
func (d *Decoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for prefix, sub := range d.namedSubmodules() {
		for name, raw := range sub.StateDict() {
			stateDict[prefix+"."+name] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads decoder parameters.
func (d *Decoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, sub := range d.namedSubmodules() {
		subState := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if len(key) > len(prefix)+1 && key[:len(prefix)+1] == prefix+"." {
				subState[key[len(prefix)+1:]] = raw
			}
		}
		if err := sub.LoadStateDict(subState); err != nil {
			return fmt.Errorf("failed to load %s: %w", prefix, err)
		}
	}
	return nil
}

func (d *Decoder[B]) namedSubmodules() map[string]nn.StateDictModule {
	return map[string]nn.StateDictModule{
		"embed": d.embed,
		"lstm":  d.lstm,
		"proj":  d.proj,
	}
}
