// Package model builds and caches the segmentation network. The network
// itself is an external black box: either an exported ONNX graph or, when no
// weight file exists yet, a randomly initialized stand-in.
package model

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrWeightLoad reports a weight file that exists but cannot be loaded into
// the constructed network.
var ErrWeightLoad = errors.New("weight load failed")

// Network runs one forward pass. Input is a packed NCHW float32 tensor of
// shape (1, 3, size, size); output is per-pixel class logits of shape
// (numClasses, size, size). Implementations are not safe for concurrent use.
type Network interface {
	Forward(input []float32) ([]float32, error)
	Close() error
}

const randomInitSeed = 42

// randomNetwork stands in when no trained weights exist: a per-pixel linear
// head with weights drawn once from a fixed seed, so its output is
// deterministic for the lifetime of the build.
type randomNetwork struct {
	size       int
	numClasses int
	weights    [][3]float32
	bias       []float32
}

func newRandomNetwork(size, numClasses int) *randomNetwork {
	rng := rand.New(rand.NewSource(randomInitSeed))
	n := &randomNetwork{
		size:       size,
		numClasses: numClasses,
		weights:    make([][3]float32, numClasses),
		bias:       make([]float32, numClasses),
	}
	for c := 0; c < numClasses; c++ {
		for ch := 0; ch < 3; ch++ {
			n.weights[c][ch] = float32(rng.NormFloat64())
		}
		n.bias[c] = float32(rng.NormFloat64())
	}
	return n
}

func (n *randomNetwork) Forward(input []float32) ([]float32, error) {
	plane := n.size * n.size
	if len(input) != 3*plane {
		return nil, fmt.Errorf("input tensor has %d values, want %d", len(input), 3*plane)
	}
	out := make([]float32, n.numClasses*plane)
	for c := 0; c < n.numClasses; c++ {
		w := n.weights[c]
		for p := 0; p < plane; p++ {
			out[c*plane+p] = n.bias[c] + w[0]*input[p] + w[1]*input[plane+p] + w[2]*input[2*plane+p]
		}
	}
	return out, nil
}

func (n *randomNetwork) Close() error { return nil }
