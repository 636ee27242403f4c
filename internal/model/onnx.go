package model

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

func initRuntime() error {
	ortOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// onnxNetwork wraps an onnxruntime session with pre-allocated input and
// output tensors sized for the configured image size and class count.
type onnxNetwork struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newONNXNetwork(weightPath string, size, numClasses int, inputName, outputName string) (*onnxNetwork, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("%w: initializing ONNX environment: %v", ErrWeightLoad, err)
	}

	inputShape := ort.NewShape(1, 3, int64(size), int64(size))
	outputShape := ort.NewShape(1, int64(numClasses), int64(size), int64(size))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("%w: creating input tensor: %v", ErrWeightLoad, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: creating output tensor: %v", ErrWeightLoad, err)
	}

	opts := sessionOptions()
	session, err := ort.NewAdvancedSession(weightPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		opts)
	if opts != nil {
		opts.Destroy()
	}
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: %s: %v", ErrWeightLoad, weightPath, err)
	}

	return &onnxNetwork{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// sessionOptions prefers the CUDA execution provider and falls back to the
// CPU provider when no accelerator is usable. A nil return means default
// (CPU) options.
func sessionOptions() *ort.SessionOptions {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil
	}
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		log.Debug().Err(err).Msg("CUDA provider unavailable, running on CPU")
		return opts
	}
	defer cudaOpts.Destroy()
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		log.Debug().Err(err).Msg("CUDA provider rejected, running on CPU")
		return opts
	}
	log.Info().Msg("using CUDA execution provider")
	return opts
}

func (n *onnxNetwork) Forward(input []float32) ([]float32, error) {
	data := n.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input tensor has %d values, want %d", len(input), len(data))
	}
	copy(data, input)

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	// The output tensor is reused across runs; hand the caller its own copy.
	out := make([]float32, len(n.outputTensor.GetData()))
	copy(out, n.outputTensor.GetData())
	return out, nil
}

func (n *onnxNetwork) Close() error {
	if n.inputTensor != nil {
		n.inputTensor.Destroy()
	}
	if n.outputTensor != nil {
		n.outputTensor.Destroy()
	}
	if n.session != nil {
		n.session.Destroy()
	}
	return nil
}
