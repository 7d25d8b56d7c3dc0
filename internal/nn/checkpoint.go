package nn

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/showtell/showtell/internal/tensor"
)

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32
}

// StateDictModule represents a module whose parameters can be exported
// and restored as a named tensor dictionary.
//
// Layers with trainable state (Linear, Embedding, Conv2D, LSTM) and
// composite models built from them implement this interface.
type StateDictModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Checkpoint file layout (little endian):
//
//	magic     [4]byte  "STCK"
//	version   uint32
//	epoch     int64
//	step      int64
//	loss      float64
//	createdAt int64    (unix seconds, UTC)
//	count     uint32   number of tensors
//	entries   count times:
//	    name    uint32 length + bytes
//	    dtype   uint8
//	    ndim    uint8
//	    dims    ndim times int64
//	    data    uint64 length + raw bytes
const (
	checkpointMagic   = "STCK"
	checkpointVersion = 1
)

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model parameters (weights and biases)
//   - Optimizer state (momentum buffers, Adam moments, etc.)
//   - Training metadata (epoch, step, loss)
//
// Checkpoints enable training to be resumed from a specific point,
// which is essential for long-running training jobs that might be
// interrupted, and for keeping the best-scoring model seen so far.
//
// Example:
//
//	checkpoint := &nn.Checkpoint[cpu.Backend]{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	}
//	err := checkpoint.Save("checkpoint_epoch_10.stck")
//
// To resume training:
//
//	checkpoint, err := nn.LoadCheckpoint[cpu.Backend]("checkpoint.stck", backend, model, optimizer)
//	startEpoch := checkpoint.Epoch + 1
//
// Type parameter B must satisfy the tensor.Backend interface.
type Checkpoint[B tensor.Backend] struct {
	Model     StateDictModule // The neural network model
	Optimizer OptimizerState  // The optimizer with its state
	Epoch     int             // Training epoch number
	Step      int64           // Training step number
	Loss      float64         // Loss value at this checkpoint
	CreatedAt time.Time       // When the checkpoint was created
}

// Save writes the checkpoint to a file.
//
// This writes:
//   - Model parameters via Model.StateDict()
//   - Optimizer state via Optimizer.StateDict(), prefixed with "optimizer."
//   - Training metadata (epoch, step, loss)
//
// The resulting file can be loaded with LoadCheckpoint to resume training.
func (c *Checkpoint[B]) Save(path string) (err error) {
	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combined[name] = raw
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			combined["optimizer."+name] = raw
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)

	if _, err := w.WriteString(checkpointMagic); err != nil {
		return err
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	for _, v := range []uint64{
		uint64(checkpointVersion),
		uint64(c.Epoch),
		uint64(c.Step),
		math.Float64bits(c.Loss),
		uint64(createdAt.Unix()),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// Sort names for a deterministic file layout.
	names := make([]string, 0, len(combined))
	for name := range combined {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeTensorEntry(w, name, combined[name]); err != nil {
			return fmt.Errorf("failed to write tensor %q: %w", name, err)
		}
	}

	return w.Flush()
}

func writeTensorEntry(w io.Writer, name string, raw *tensor.RawTensor) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	shape := raw.Shape()
	if err := binary.Write(w, binary.LittleEndian, uint8(raw.DType())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(shape))); err != nil {
		return err
	}
	for _, dim := range shape {
		if err := binary.Write(w, binary.LittleEndian, int64(dim)); err != nil {
			return err
		}
	}
	data := raw.Data()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// LoadCheckpoint loads a checkpoint from a file.
//
// This restores model parameters into the provided model and optimizer
// state into the provided optimizer. Both must be pre-constructed with
// the same architecture and configuration as when the checkpoint was
// saved. Pass a nil optimizer to restore model weights only, e.g. when
// loading a trained model for inference.
//
// Example:
//
//	model := nn.NewLinear[cpu.Backend](10, 5, backend)
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//
//	checkpoint, err := nn.LoadCheckpoint[cpu.Backend]("checkpoint.stck", backend, model, optimizer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for epoch := checkpoint.Epoch + 1; epoch < totalEpochs; epoch++ {
//	    // Training loop...
//	}
func LoadCheckpoint[B tensor.Backend](
	path string,
	backend B,
	model StateDictModule,
	optimizer OptimizerState,
) (checkpoint *Checkpoint[B], err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	r := bufio.NewReader(f)

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(magic) != checkpointMagic {
		return nil, fmt.Errorf("file is not a checkpoint (bad magic %q)", magic)
	}

	var header [5]uint64
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	if version := uint32(header[0]); version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", version)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read tensor count: %w", err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for i := uint32(0); i < count; i++ {
		name, raw, err := readTensorEntry(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read tensor entry %d: %w", i, err)
		}
		if len(name) > 10 && name[:10] == "optimizer." {
			optimizerState[name[10:]] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if optimizer != nil && len(optimizerState) > 0 {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, fmt.Errorf("failed to load optimizer state: %w", err)
		}
	}

	return &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     int(header[1]),
		Step:      int64(header[2]),
		Loss:      math.Float64frombits(header[3]),
		CreatedAt: time.Unix(int64(header[4]), 0).UTC(),
	}, nil
}

func readTensorEntry(r io.Reader) (string, *tensor.RawTensor, error) {
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, err
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return "", nil, err
	}

	var dtype, ndim uint8
	if err := binary.Read(r, binary.LittleEndian, &dtype); err != nil {
		return "", nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ndim); err != nil {
		return "", nil, err
	}
	shape := make(tensor.Shape, ndim)
	for i := range shape {
		var dim int64
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return "", nil, err
		}
		shape[i] = int(dim)
	}

	var dataLen uint64
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return "", nil, err
	}

	raw, err := tensor.NewRaw(shape, tensor.DataType(dtype), tensor.CPU)
	if err != nil {
		return "", nil, err
	}
	if int(dataLen) != raw.ByteSize() {
		return "", nil, fmt.Errorf("tensor %q: data size %d does not match shape %v",
			nameBytes, dataLen, shape)
	}
	if _, err := io.ReadFull(r, raw.Data()); err != nil {
		return "", nil, err
	}
	return string(nameBytes), raw, nil
}

// SaveCheckpoint is a convenience function to save a checkpoint.
//
// This is equivalent to creating a Checkpoint struct and calling Save(),
// but with a simpler API for common use cases.
//
// Example:
//
//	err := nn.SaveCheckpoint[cpu.Backend]("checkpoint.stck", model, optimizer, epoch)
func SaveCheckpoint[B tensor.Backend](
	path string,
	model StateDictModule,
	optimizer OptimizerState,
	epoch int,
) error {
	checkpoint := &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
		CreatedAt: time.Now().UTC(),
	}
	return checkpoint.Save(path)
}
