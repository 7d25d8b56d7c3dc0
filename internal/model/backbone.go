// Package model implements the image-captioning model: a convolutional
// encoder producing fixed-size image embeddings and a recurrent decoder
// scoring or sampling captions.
package model

import (
	"fmt"

	"github.com/showtell/showtell/internal/nn"
	"github.com/showtell/showtell/internal/tensor"
)

// BackboneConfig describes the convolutional feature extractor.
type BackboneConfig struct {
	InChannels int // input image channels, 3 for RGB
	ImageSize  int // square input resolution, must be divisible by 4
	NumClasses int // width of the classification head
}

// DefaultBackboneConfig returns the standard 224x224 RGB configuration.
func DefaultBackboneConfig() BackboneConfig {
	return BackboneConfig{
		InChannels: 3,
		ImageSize:  224,
		NumClasses: 1000,
	}
}

// Backbone is a convolutional image classifier whose feature extractor
// doubles as the captioner's image encoder.
//
// Architecture:
//
//	Input: [batch, InChannels, ImageSize, ImageSize]
//	Conv1: InChannels -> 32, 3x3, padding 1
//	ReLU
//	MaxPool: 2x2 -> spatial /2
//	Conv2: 32 -> 64, 3x3, padding 1
//	ReLU
//	MaxPool: 2x2 -> spatial /4
//	Flatten -> [batch, FeatureDim]
//	Head: FeatureDim -> NumClasses (classification only)
//
// In the captioning pipeline the head is never used: the Encoder calls
// Features and replaces the head with its own trainable projection.
// Pretrained weights load through LoadStateDict.
type Backbone[B tensor.Backend] struct {
	cfg   BackboneConfig
	conv1 *nn.Conv2D[B]
	conv2 *nn.Conv2D[B]
	head  *nn.Linear[B]

	// extractor chains conv1/conv2 with their activations and pools.
	// The conv layers are also kept as named fields so checkpoints use
	// stable keys instead of Sequential's positional ones.
	extractor *nn.Sequential[B]

	featureDim int
}

// NewBackbone creates a backbone with Xavier-initialized weights.
//
// Panics if the configuration is inconsistent.
func NewBackbone[B tensor.Backend](cfg BackboneConfig, backend B) *Backbone[B] {
	if cfg.InChannels <= 0 {
		panic(fmt.Sprintf("backbone: invalid input channels %d", cfg.InChannels))
	}
	if cfg.ImageSize <= 0 || cfg.ImageSize%4 != 0 {
		panic(fmt.Sprintf("backbone: image size %d must be positive and divisible by 4", cfg.ImageSize))
	}
	if cfg.NumClasses <= 0 {
		panic(fmt.Sprintf("backbone: invalid class count %d", cfg.NumClasses))
	}

	spatial := cfg.ImageSize / 4
	featureDim := 64 * spatial * spatial

	conv1 := nn.NewConv2D(cfg.InChannels, 32, 3, 3, 1, 1, true, backend)
	conv2 := nn.NewConv2D(32, 64, 3, 3, 1, 1, true, backend)

	return &Backbone[B]{
		cfg:   cfg,
		conv1: conv1,
		conv2: conv2,
		head:  nn.NewLinear[B](featureDim, cfg.NumClasses, backend),
		extractor: nn.NewSequential[B](
			conv1,
			nn.NewReLU[B](),
			nn.NewMaxPool2D(2, 2, backend),
			conv2,
			nn.NewReLU[B](),
			nn.NewMaxPool2D(2, 2, backend),
		),
		featureDim: featureDim,
	}
}

// Features extracts flattened convolutional features.
//
// Input shape: [batch, InChannels, ImageSize, ImageSize]
// Output shape: [batch, FeatureDim]
func (m *Backbone[B]) Features(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("backbone: expected 4D input [batch, channels, h, w], got shape %v", inputShape))
	}
	if inputShape[1] != m.cfg.InChannels || inputShape[2] != m.cfg.ImageSize || inputShape[3] != m.cfg.ImageSize {
		panic(fmt.Sprintf("backbone: expected input [batch, %d, %d, %d], got shape %v",
			m.cfg.InChannels, m.cfg.ImageSize, m.cfg.ImageSize, inputShape))
	}

	x := m.extractor.Forward(input)

	batchSize := x.Shape()[0]
	return x.Reshape(batchSize, m.featureDim)
}

// Forward computes classification logits [batch, NumClasses].
func (m *Backbone[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.head.Forward(m.Features(input))
}

// FeatureDim returns the flattened feature size produced by Features.
func (m *Backbone[B]) FeatureDim() int {
	return m.featureDim
}

// Parameters returns all backbone parameters including the head.
func (m *Backbone[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 6)
	params = append(params, m.conv1.Parameters()...)
	params = append(params, m.conv2.Parameters()...)
	params = append(params, m.head.Parameters()...)
	return params
}

// Freeze marks every backbone parameter as frozen so optimizers leave
// the pretrained weights untouched.
func (m *Backbone[B]) Freeze() {
	for _, p := range m.Parameters() {
		p.Freeze()
	}
}

// StateDict returns a map of parameter names to raw tensors.
func (m *Backbone[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for prefix, sub := range m.namedSubmodules() {
		for name, raw := range sub.StateDict() {
			stateDict[prefix+"."+name] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads pretrained parameters.
func (m *Backbone[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, sub := range m.namedSubmodules() {
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

func (m *Backbone[B]) namedSubmodules() map[string]nn.StateDictModule {
	return map[string]nn.StateDictModule{
		"conv1": m.conv1,
		"conv2": m.conv2,
		"head":  m.head,
	}
}
