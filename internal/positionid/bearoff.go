package positionid

import "sync"

const (
	maxCombN = 40
	maxCombR = 25
)

var (
	combOnce  sync.Once
	combTable [maxCombN][maxCombR]uint32
)

// Combination returns n choose r for 1 <= n <= 40, 1 <= r <= 25.
func Combination(n, r int) int {
	if n < 1 || r < 1 || n > maxCombN || r > maxCombR {
		return 0
	}
	combOnce.Do(func() {
		for i := 0; i < maxCombN; i++ {
			combTable[i][0] = uint32(i + 1)
		}
		for i := 1; i < maxCombN; i++ {
			for j := 1; j < maxCombR; j++ {
				combTable[i][j] = combTable[i-1][j-1] + combTable[i-1][j]
			}
		}
	})
	return int(combTable[n-1][r-1])
}

func positionF(bits uint32, n, r int) int {
	if n == r {
		return 0
	}
	if bits&(1<<uint(n-1)) != 0 {
		return Combination(n-1, r) + positionF(bits, n-1, r-1)
	}
	return positionF(bits, n-1, r)
}

// BearoffIndex returns the index of a one-sided home board distribution
// (points[0] is the ace point) among all layouts of up to chequers chequers
// on nPoints points.
func BearoffIndex(points []uint8, nPoints, chequers int) int {
	if nPoints == 0 {
		return 0
	}
	j := nPoints - 1
	for i := 0; i < nPoints; i++ {
		j += int(points[i])
	}
	bits := uint32(1) << uint(j)
	for i := 0; i < nPoints-1; i++ {
		j -= int(points[i]) + 1
		bits |= uint32(1) << uint(j)
	}
	return positionF(bits, chequers+nPoints, nPoints)
}

func positionInv(id, n, r int) uint32 {
	if r == 0 {
		return 0
	}
	if n == r {
		return (1 << uint(n)) - 1
	}
	c := Combination(n-1, r)
	if id >= c {
		return 1<<uint(n-1) | positionInv(id-c, n-1, r-1)
	}
	return positionInv(id, n-1, r)
}

// BearoffPoints is the inverse of BearoffIndex.
func BearoffPoints(id, nPoints, chequers int) []uint8 {
	points := make([]uint8, nPoints)
	bits := positionInv(id, chequers+nPoints, nPoints)
	j := nPoints - 1
	for i := 0; i < chequers+nPoints; i++ {
		if bits&(1<<uint(i)) != 0 {
			if j == 0 {
				break
			}
			j--
		} else {
			points[j]++
		}
	}
	return points
}

// IsBearoff reports whether both sides have all their chequers within the
// first nPoints points with at most chequers each.
func IsBearoff(b Board, nPoints, chequers int) bool {
	for side := 0; side < 2; side++ {
		n := 0
		for i := 0; i < 25; i++ {
			if i >= nPoints && b[side][i] > 0 {
				return false
			}
			n += int(b[side][i])
		}
		if n > chequers {
			return false
		}
	}
	return true
}
