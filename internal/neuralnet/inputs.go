package neuralnet

import (
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Input vector sizes.
const (
	inputsPerPoint = 4
	// MoreInputs is the number of heuristic inputs per side.
	MoreInputs = 25

	NumBaseInputs    = 25 * inputsPerPoint * 2
	NumContactInputs = (25*inputsPerPoint + MoreInputs) * 2

	raceOff        = 92
	raceCross      = raceOff + 14
	halfRaceInputs = raceCross + 1
	NumRaceInputs  = halfRaceInputs * 2
)

// point encodings: 1, 2, 3 one-hot then (n-3)/2 for taller stacks. The
// bar is encoded cumulatively.
var (
	pointInputs [16][inputsPerPoint]float32
	barInputs   [16][inputsPerPoint]float32
)

func init() {
	for n := 1; n < 16; n++ {
		p := &pointInputs[n]
		b := &barInputs[n]
		switch n {
		case 1:
			p[0] = 1
		case 2:
			p[1] = 1
		default:
			p[2] = 1
			p[3] = float32(n-3) / 2
		}
		b[0] = 1
		if n >= 2 {
			b[1] = 1
		}
		if n >= 3 {
			b[2] = 1
			b[3] = float32(n-3) / 2
		}
	}
}

// NumInputs returns the input vector length for the class network, or 0
// for classes evaluated without a network.
func NumInputs(c Class) int {
	switch c {
	case ClassRace:
		return NumRaceInputs
	case ClassContact, ClassCrashed:
		return NumContactInputs
	}
	return 0
}

// Encode returns the network input vector of b for the given class.
// Classes without a network get the base encoding used by pruning nets.
func Encode(b positionid.Board, c Class) []float32 {
	n := NumInputs(c)
	if n == 0 {
		n = NumBaseInputs
	}
	in := make([]float32, n)
	EncodeInto(b, c, in)
	return in
}

// EncodeInto fills in, which must be at least NumInputs(c) long
// (NumBaseInputs for classes without a network).
func EncodeInto(b positionid.Board, c Class, in []float32) {
	switch c {
	case ClassRace:
		raceInputs(b, in)
	case ClassContact:
		contactInputs(b, in, menOffNonCrashed, false)
	case ClassCrashed:
		contactInputs(b, in, menOffAll, true)
	default:
		BaseInputs(b, in)
	}
}

// BaseInputs writes the 200 per-point inputs shared by every contact net
// and the pruning nets.
func BaseInputs(b positionid.Board, in []float32) {
	for side := 0; side < 2; side++ {
		out := in[side*25*inputsPerPoint:]
		for i := 0; i < 24; i++ {
			copy(out[i*inputsPerPoint:], pointInputs[clamp15(b[side][i])][:])
		}
		copy(out[24*inputsPerPoint:], barInputs[clamp15(b[side][24])][:])
	}
}

func clamp15(n uint8) uint8 {
	if n > 15 {
		return 15
	}
	return n
}

func raceInputs(b positionid.Board, in []float32) {
	for side := 0; side < 2; side++ {
		out := in[side*halfRaceInputs : (side+1)*halfRaceInputs]
		menOff := positionid.NumChequers

		for i := 0; i < 23; i++ {
			nc := int(b[side][i])
			menOff -= nc
			k := out[i*4 : i*4+4]
			k[0], k[1], k[2], k[3] = 0, 0, 0, 0
			switch {
			case nc == 1:
				k[0] = 1
			case nc == 2:
				k[1] = 1
			case nc >= 3:
				k[2] = 1
				k[3] = float32(nc-3) / 2
			}
		}

		for k := 0; k < 14; k++ {
			out[raceOff+k] = 0
			if menOff == k+1 {
				out[raceOff+k] = 1
			}
		}

		cross := 0
		for k := 1; k < 4; k++ {
			for i := 6 * k; i < 6*k+6; i++ {
				cross += int(b[side][i]) * k
			}
		}
		out[raceCross] = float32(cross) / 10
	}
}

// contactInputs writes the base inputs followed by the heuristic half
// inputs. The first half describes side 1 with side 0's men off (crashed
// nets use each side's own count), which is how the networks were trained.
func contactInputs(b positionid.Board, in []float32, menOff func([25]uint8, []float32), crashedNet bool) {
	BaseInputs(b, in)

	h0 := in[NumBaseInputs : NumBaseInputs+MoreInputs]
	h1 := in[NumBaseInputs+MoreInputs : NumBaseInputs+2*MoreInputs]
	if crashedNet {
		menOff(b[1], h0)
		menOff(b[0], h1)
	} else {
		menOff(b[0], h0)
		menOff(b[1], h1)
	}
	halfInputs(b[1], b[0], h0)
	halfInputs(b[0], b[1], h1)
}

func menOffCount(side [25]uint8) int {
	off := positionid.NumChequers
	for _, n := range side {
		off -= int(n)
	}
	return off
}

// menOffNonCrashed spreads up to 8 borne-off chequers over three inputs in
// steps of three.
func menOffNonCrashed(side [25]uint8, out []float32) {
	menOffBuckets(menOffCount(side), 3, out)
}

// menOffAll spreads up to 15 borne-off chequers over three inputs in steps
// of five.
func menOffAll(side [25]uint8, out []float32) {
	menOffBuckets(menOffCount(side), 5, out)
}

func menOffBuckets(off, step int, out []float32) {
	out[iOff1], out[iOff2], out[iOff3] = 0, 0, 0
	switch {
	case off <= 0:
	case off < step:
		out[iOff1] = float32(off) / float32(step)
	case off <= 2*step-1:
		out[iOff1] = 1
		out[iOff2] = float32(off-step) / float32(step)
	default:
		out[iOff1] = 1
		out[iOff2] = 1
		out[iOff3] = float32(off-2*step) / float32(step)
	}
}
