package neuralnet

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bgforge/gnubgcore/internal/datafile"
)

// Binary weights header (gnubg.wd).
const (
	MagicBinary   = 472.3782
	VersionBinary = 1.01
)

// Weights is the set of networks loaded from one gnubg weights file.
// The pruning nets take the 200 base inputs only.
type Weights struct {
	Contact  *Net
	Race     *Net
	Crashed  *Net
	PContact *Net
	PCrashed *Net
	PRace    *Net
}

var netNames = [6]string{"contact", "race", "crashed", "pruning contact", "pruning crashed", "pruning race"}

func (w *Weights) slots() [6]**Net {
	return [6]**Net{&w.Contact, &w.Race, &w.Crashed, &w.PContact, &w.PCrashed, &w.PRace}
}

// LoadWeights reads a weights file in either gnubg format. Files ending
// in .zst are decompressed first.
func LoadWeights(path string) (*Weights, error) {
	data, err := datafile.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	w, err := ParseWeights(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ParseWeights detects the binary header and dispatches to the binary or
// text parser, then validates the network shapes.
func ParseWeights(data []byte) (*Weights, error) {
	var (
		w   *Weights
		err error
	)
	if isBinaryWeights(data) {
		w, err = parseBinary(bytes.NewReader(data[8:]))
	} else {
		w, err = parseText(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	for _, slot := range w.slots() {
		(*slot).prepare()
	}
	return w, nil
}

func isBinaryWeights(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	magic := math.Float32frombits(binary.LittleEndian.Uint32(data))
	return math.Abs(float64(magic)-MagicBinary) < 1e-3
}

func parseBinary(r io.Reader) (*Weights, error) {
	w := &Weights{}
	for i, slot := range w.slots() {
		n, err := readBinaryNet(r)
		if err != nil {
			return nil, fmt.Errorf("%s net: %w", netNames[i], err)
		}
		*slot = n
	}
	return w, nil
}

func readBinaryNet(r io.Reader) (*Net, error) {
	var hdr struct {
		Inputs, Hidden, Outputs int32
		Trained                 int32
		BetaHidden, BetaOutput  float32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	n := &Net{
		Inputs:     int(hdr.Inputs),
		Hidden:     int(hdr.Hidden),
		Outputs:    int(hdr.Outputs),
		Trained:    hdr.Trained,
		BetaHidden: hdr.BetaHidden,
		BetaOutput: hdr.BetaOutput,
	}
	if n.Inputs < 1 || n.Hidden < 1 || n.Outputs < 1 || n.Inputs*n.Hidden > 1<<24 {
		return nil, fmt.Errorf("%w: dimensions %d/%d/%d", ErrInvalidWeights, n.Inputs, n.Hidden, n.Outputs)
	}
	n.HiddenWeight = make([]float32, n.Inputs*n.Hidden)
	n.OutputWeight = make([]float32, n.Hidden*n.Outputs)
	n.HiddenThreshold = make([]float32, n.Hidden)
	n.OutputThreshold = make([]float32, n.Outputs)
	for _, v := range [][]float32{n.HiddenWeight, n.OutputWeight, n.HiddenThreshold, n.OutputThreshold} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: weights: %v", ErrInvalidWeights, err)
		}
	}
	return n, nil
}

// tokenReader yields whitespace separated fields.
type tokenReader struct {
	sc *bufio.Scanner
}

func (t *tokenReader) next() (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return t.sc.Text(), nil
}

func (t *tokenReader) int() (int, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (t *tokenReader) float() (float32, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

func parseText(r io.Reader) (*Weights, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidWeights)
	}
	if !strings.HasPrefix(line, "GNU Backgammon") {
		return nil, fmt.Errorf("%w: unrecognised header %q", ErrInvalidWeights, strings.TrimSpace(line))
	}

	sc := bufio.NewScanner(br)
	sc.Split(bufio.ScanWords)
	tr := &tokenReader{sc: sc}

	w := &Weights{}
	for i, slot := range w.slots() {
		n, err := readTextNet(tr)
		if err != nil {
			return nil, fmt.Errorf("%s net: %w", netNames[i], err)
		}
		*slot = n
	}
	return w, nil
}

func readTextNet(tr *tokenReader) (*Net, error) {
	n := &Net{Trained: 1}
	var err error
	if n.Inputs, err = tr.int(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	if n.Hidden, err = tr.int(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	if n.Outputs, err = tr.int(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	// training generation, unused
	if _, err = tr.next(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	if n.BetaHidden, err = tr.float(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	if n.BetaOutput, err = tr.float(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidWeights, err)
	}
	if n.Inputs < 1 || n.Hidden < 1 || n.Outputs < 1 || n.Inputs*n.Hidden > 1<<24 {
		return nil, fmt.Errorf("%w: dimensions %d/%d/%d", ErrInvalidWeights, n.Inputs, n.Hidden, n.Outputs)
	}

	n.HiddenWeight = make([]float32, n.Inputs*n.Hidden)
	n.OutputWeight = make([]float32, n.Hidden*n.Outputs)
	n.HiddenThreshold = make([]float32, n.Hidden)
	n.OutputThreshold = make([]float32, n.Outputs)
	for _, v := range [][]float32{n.HiddenWeight, n.OutputWeight, n.HiddenThreshold, n.OutputThreshold} {
		for i := range v {
			if v[i], err = tr.float(); err != nil {
				return nil, fmt.Errorf("%w: weight: %v", ErrInvalidWeights, err)
			}
		}
	}
	return n, nil
}

// Validate checks every network against the input sizes the encoders
// produce.
func (w *Weights) Validate() error {
	want := [6]int{NumContactInputs, NumRaceInputs, NumContactInputs, NumBaseInputs, NumBaseInputs, NumBaseInputs}
	for i, slot := range w.slots() {
		n := *slot
		if n == nil {
			return fmt.Errorf("%w: %s net missing", ErrInvalidWeights, netNames[i])
		}
		if err := n.validate(); err != nil {
			return fmt.Errorf("%s net: %w", netNames[i], err)
		}
		if n.Inputs != want[i] {
			return fmt.Errorf("%w: %s net has %d inputs, expected %d", ErrInvalidWeights, netNames[i], n.Inputs, want[i])
		}
		if n.Outputs != NumOutputs {
			return fmt.Errorf("%w: %s net has %d outputs, expected %d", ErrInvalidWeights, netNames[i], n.Outputs, NumOutputs)
		}
	}
	return nil
}

// ForClass returns the evaluation and pruning nets for a network class.
// Classes served by databases or rules return nil.
func (w *Weights) ForClass(c Class) (eval, prune *Net) {
	switch c {
	case ClassContact:
		return w.Contact, w.PContact
	case ClassCrashed:
		return w.Crashed, w.PCrashed
	case ClassRace:
		return w.Race, w.PRace
	}
	return nil, nil
}

func (w *Weights) String() string {
	var b strings.Builder
	for i, slot := range w.slots() {
		fmt.Fprintf(&b, "%s: %v\n", netNames[i], *slot)
	}
	return b.String()
}
