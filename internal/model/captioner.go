package model

import (
	"fmt"

	"github.com/showtell/showtell/internal/nn"
	"github.com/showtell/showtell/internal/tensor"
)

// Captioner bundles an encoder and a decoder into one checkpointable
// model.
//
// Training runs Forward under a gradient tape and feeds the resulting
// scores to a loss; inference goes through the decoder's Sample via
// the generate package.
type Captioner[B tensor.Backend] struct {
	encoder *Encoder[B]
	decoder *Decoder[B]
}

// NewCaptioner combines an encoder and decoder.
//
// Panics if their embedding sizes disagree.
func NewCaptioner[B tensor.Backend](encoder *Encoder[B], decoder *Decoder[B]) *Captioner[B] {
	if encoder.EmbedSize() != decoder.EmbedSize() {
		panic(fmt.Sprintf("captioner: encoder embed size %d does not match decoder %d",
			encoder.EmbedSize(), decoder.EmbedSize()))
	}
	return &Captioner[B]{encoder: encoder, decoder: decoder}
}

// Forward scores ground-truth captions for an image batch under
// teacher forcing.
//
// Shapes: images [batch, channels, H, W], captions [batch, seqLen],
// output [batch, seqLen, vocabSize].
func (m *Captioner[B]) Forward(
	images *tensor.Tensor[float32, B],
	captions *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	return m.decoder.Forward(m.encoder.Forward(images), captions)
}

// Encoder returns the image encoder.
func (m *Captioner[B]) Encoder() *Encoder[B] { return m.encoder }

// Decoder returns the caption decoder.
func (m *Captioner[B]) Decoder() *Decoder[B] { return m.decoder }

// Parameters returns the trainable parameters of both halves. The
// frozen backbone is excluded.
func (m *Captioner[B]) Parameters() []*nn.Parameter[B] {
	params := m.encoder.Parameters()
	return append(params, m.decoder.Parameters()...)
}

// StateDict returns all model parameters, frozen backbone included.
func (m *Captioner[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range m.encoder.StateDict() {
		stateDict["encoder."+name] = raw
	}
	for name, raw := range m.decoder.StateDict() {
		stateDict["decoder."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads all model parameters.
func (m *Captioner[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	encoderState := make(map[string]*tensor.RawTensor)
	decoderState := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		switch {
		case len(key) > 8 && key[:8] == "encoder.":
			encoderState[key[8:]] = raw
		case len(key) > 8 && key[:8] == "decoder.":
			decoderState[key[8:]] = raw
		}
	}

	if err := m.encoder.LoadStateDict(encoderState); err != nil {
		return fmt.Errorf("failed to load encoder: %w", err)
	}
	if err := m.decoder.LoadStateDict(decoderState); err != nil {
		return fmt.Errorf("failed to load decoder: %w", err)
	}
	return nil
}
