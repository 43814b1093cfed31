package engine

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"lukechampine.com/frand"
)

// RNG selects the dice generator of a rollout.
type RNG int

const (
	RNGPCG   RNG = iota // seeded PCG, reproducible
	RNGFrand            // ChaCha based, seeded from the rollout seed
)

func (r RNG) String() string {
	switch r {
	case RNGPCG:
		return "pcg"
	case RNGFrand:
		return "frand"
	}
	return fmt.Sprintf("RNG(%d)", int(r))
}

// ParseRNG parses a generator name.
func ParseRNG(s string) (RNG, error) {
	switch strings.ToLower(s) {
	case "pcg", "":
		return RNGPCG, nil
	case "frand":
		return RNGFrand, nil
	}
	return 0, fmt.Errorf("unknown RNG %q", s)
}

func (r RNG) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RNG) UnmarshalText(b []byte) error {
	v, err := ParseRNG(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// randomSeed returns a seed from the system entropy pool.
func randomSeed() uint64 {
	return binary.LittleEndian.Uint64(frand.Bytes(8))
}

// splitmix64 derives independent seeds from one seed and a counter.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// diceSource rolls the dice of one trial.
type diceSource interface {
	roll() (int, int)
}

type pcgDice struct {
	r *rand.Rand
}

func (d pcgDice) roll() (int, int) {
	return d.r.Intn(6) + 1, d.r.Intn(6) + 1
}

type frandDice struct {
	r *frand.RNG
}

func (d frandDice) roll() (int, int) {
	return d.r.Intn(6) + 1, d.r.Intn(6) + 1
}

// rotatedDice replaces the first rolls of a trial by a stratified
// sequence: over 36 consecutive trials every first roll occurs once, and
// over 1296 trials every pair of first and second rolls.
type rotatedDice struct {
	diceSource
	trial int
	n     int
}

func (d *rotatedDice) roll() (int, int) {
	defer func() { d.n++ }()
	var idx int
	switch d.n {
	case 0:
		idx = d.trial % 36
	case 1:
		idx = (d.trial/36 + d.trial) % 36
	default:
		return d.diceSource.roll()
	}
	return idx/6 + 1, idx%6 + 1
}

// newDice returns the dice of trial. Every alternative of a rollout gets
// the same dice in the same trial.
func newDice(kind RNG, seed uint64, trial int, rotate bool) diceSource {
	s := splitmix64(seed ^ splitmix64(uint64(trial)))

	var d diceSource
	switch kind {
	case RNGFrand:
		var key [32]byte
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint64(key[8*i:], splitmix64(s+uint64(i)))
		}
		d = frandDice{r: frand.NewCustom(key[:], 1024, 12)}
	default:
		d = pcgDice{r: rand.New(rand.NewSource(s))}
	}
	if rotate {
		return &rotatedDice{diceSource: d, trial: trial}
	}
	return d
}
