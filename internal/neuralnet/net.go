// Package neuralnet evaluates backgammon positions with gnubg-format
// networks: one hidden layer, sigmoid activations, five outputs.
package neuralnet

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidWeights is returned when a weights file is malformed or a
// network has unexpected dimensions.
var ErrInvalidWeights = errors.New("invalid network weights")

// NumOutputs is the size of every evaluation network's output vector:
// win, win gammon, win backgammon, lose gammon, lose backgammon.
const NumOutputs = 5

// Net is a single hidden layer network.
//
// HiddenWeight is input-major (Hidden weights per input) and OutputWeight
// is output-major (Hidden weights per output), matching the gnubg layout.
type Net struct {
	Inputs     int
	Hidden     int
	Outputs    int
	Trained    int32
	BetaHidden float32
	BetaOutput float32

	HiddenWeight    []float32
	OutputWeight    []float32
	HiddenThreshold []float32
	OutputThreshold []float32

	hidden64 []float64
	output64 []float64
	scratch  sync.Pool
}

func (n *Net) validate() error {
	if n.Inputs < 1 || n.Hidden < 1 || n.Outputs < 1 {
		return fmt.Errorf("%w: dimensions %d/%d/%d", ErrInvalidWeights, n.Inputs, n.Hidden, n.Outputs)
	}
	if n.BetaHidden <= 0 || n.BetaOutput <= 0 {
		return fmt.Errorf("%w: beta %g/%g", ErrInvalidWeights, n.BetaHidden, n.BetaOutput)
	}
	if len(n.HiddenWeight) != n.Inputs*n.Hidden || len(n.OutputWeight) != n.Hidden*n.Outputs ||
		len(n.HiddenThreshold) != n.Hidden || len(n.OutputThreshold) != n.Outputs {
		return fmt.Errorf("%w: weight vector sizes do not match dimensions", ErrInvalidWeights)
	}
	return nil
}

// prepare builds the float64 mirrors used by EvaluateFast.
func (n *Net) prepare() {
	n.hidden64 = make([]float64, len(n.HiddenWeight))
	for i, w := range n.HiddenWeight {
		n.hidden64[i] = float64(w)
	}
	n.output64 = make([]float64, len(n.OutputWeight))
	for i, w := range n.OutputWeight {
		n.output64[i] = float64(w)
	}
	hidden := n.Hidden
	n.scratch.New = func() any {
		s := make([]float64, hidden)
		return &s
	}
}

// Evaluate is the reference forward pass: float32 accumulation and the
// continuous sigmoid. output must hold at least Outputs values.
func (n *Net) Evaluate(input, output []float32) {
	ar := make([]float32, n.Hidden)
	copy(ar, n.HiddenThreshold)

	w := 0
	for i := 0; i < n.Inputs; i++ {
		x := input[i]
		switch x {
		case 0:
			w += n.Hidden
		case 1:
			for j := range ar {
				ar[j] += n.HiddenWeight[w]
				w++
			}
		default:
			for j := range ar {
				ar[j] += n.HiddenWeight[w] * x
				w++
			}
		}
	}
	for j := range ar {
		ar[j] = Sigmoid(-n.BetaHidden * ar[j])
	}

	w = 0
	for i := 0; i < n.Outputs; i++ {
		r := n.OutputThreshold[i]
		for j := range ar {
			r += ar[j] * n.OutputWeight[w]
			w++
		}
		output[i] = Sigmoid(-n.BetaOutput * r)
	}
}

// EvaluateFast computes the same function as Evaluate with gonum vector
// kernels over float64 mirrors of the weights and the table sigmoid. It
// is safe for concurrent use.
func (n *Net) EvaluateFast(input, output []float32) {
	if n.hidden64 == nil {
		n.Evaluate(input, output)
		return
	}
	sp := n.scratch.Get().(*[]float64)
	defer n.scratch.Put(sp)
	ar := *sp

	for j := range ar {
		ar[j] = float64(n.HiddenThreshold[j])
	}
	for i := 0; i < n.Inputs; i++ {
		x := input[i]
		if x == 0 {
			continue
		}
		row := n.hidden64[i*n.Hidden : (i+1)*n.Hidden]
		if x == 1 {
			floats.Add(ar, row)
		} else {
			floats.AddScaled(ar, float64(x), row)
		}
	}
	beta := float64(-n.BetaHidden)
	for j := range ar {
		ar[j] = float64(SigmoidFast(float32(beta * ar[j])))
	}

	beta = float64(-n.BetaOutput)
	for i := 0; i < n.Outputs; i++ {
		row := n.output64[i*n.Hidden : (i+1)*n.Hidden]
		r := float64(n.OutputThreshold[i]) + floats.Dot(ar, row)
		output[i] = SigmoidFast(float32(beta * r))
	}
}

func (n *Net) String() string {
	return fmt.Sprintf("%d -> %d -> %d", n.Inputs, n.Hidden, n.Outputs)
}
