package model

import (
	"fmt"

	"github.com/showtell/showtell/internal/nn"
	"github.com/showtell/showtell/internal/tensor"
)

// Encoder maps an image batch to fixed-size embeddings.
//
// It reuses a pretrained Backbone's feature extractor (never its
// classification head) and adds a trainable linear projection to the
// decoder's embedding space. Construction freezes every backbone
// parameter; only the projection trains.
type Encoder[B tensor.Backend] struct {
	backbone  *Backbone[B]
	proj      *nn.Linear[B]
	embedSize int
}

// NewEncoder creates an encoder over a backbone.
//
// The backbone is frozen in place: its parameters are excluded from the
// trainable set and optimizers skip them.
//
// Panics if embedSize is not positive.
func NewEncoder[B tensor.Backend](backbone *Backbone[B], embedSize int, backend B) *Encoder[B] {
	if embedSize <= 0 {
		panic(fmt.Sprintf("encoder: invalid embed size %d", embedSize))
	}

	backbone.Freeze()

	return &Encoder[B]{
		backbone:  backbone,
		proj:      nn.NewLinear[B](backbone.FeatureDim(), embedSize, backend),
		embedSize: embedSize,
	}
}

// Forward computes image embeddings.
//
// Input shape: [batch, channels, H, W], pre-normalized.
// Output shape: [batch, embedSize], for any batch size >= 1.
func (e *Encoder[B]) Forward(images *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	features := e.backbone.Features(images)
	// The backbone is frozen; detach so backward stops at the projection.
	return e.proj.Forward(features.Detach())
}

// EmbedSize returns the embedding dimensionality.
func (e *Encoder[B]) EmbedSize() int {
	return e.embedSize
}

// Backbone returns the underlying frozen backbone.
func (e *Encoder[B]) Backbone() *Backbone[B] {
	return e.backbone
}

// Parameters returns the trainable parameters: the projection only.
// Frozen backbone parameters are excluded.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] {
	return e.proj.Parameters()
}

// StateDict returns projection and backbone parameters.
func (e *Encoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range e.proj.StateDict() {
		stateDict["proj."+name] = raw
	}
	for name, raw := range e.backbone.StateDict() {
		stateDict["backbone."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads projection and backbone parameters.
func (e *Encoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	projState := make(map[string]*tensor.RawTensor)
	backboneState := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		switch {
		case len(key) > 5 && key[:5] == "proj.":
			projState[key[5:]] = raw
		case len(key) > 9 && key[:9] == "backbone.":
			backboneState[key[9:]] = raw
		}
	}

	if err := e.proj.LoadStateDict(projState); err != nil {
		return fmt.Errorf("failed to load projection: %w", err)
	}
	if err := e.backbone.LoadStateDict(backboneState); err != nil {
		return fmt.Errorf("failed to load backbone: %w", err)
	}
	return nil
}
