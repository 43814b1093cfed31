package neuralnet

import "sync"

// escapeTable[mask] counts the rolls (out of 36) that move a chequer past
// the 12 points in front of it, where bit i of mask marks point i+1 ahead
// as blocked. escapeTable1 additionally requires landing beyond the first
// blocked point.
var (
	escapeTable  [1 << 12]int
	escapeTable1 [1 << 12]int
	escapeOnce   sync.Once
)

func initEscapeTables() {
	for mask := 0; mask < len(escapeTable); mask++ {
		low := 0
		for low < 12 && mask&(1<<low) == 0 {
			low++
		}
		c, c1 := 0, 0
		for d0 := 0; d0 <= 5; d0++ {
			for d1 := 0; d1 <= d0; d1++ {
				dest := d0 + d1 + 1
				if mask&(1<<dest) != 0 || (mask&(1<<d0) != 0 && mask&(1<<d1) != 0) {
					continue
				}
				w := 2
				if d0 == d1 {
					w = 1
				}
				c += w
				if dest > low {
					c1 += w
				}
			}
		}
		escapeTable[mask] = c
		if mask != 0 {
			escapeTable1[mask] = c1
		}
	}
}

func blockMask(side [25]uint8, n int) int {
	m := n
	if m > 12 {
		m = 12
	}
	mask := 0
	for i := 0; i < m; i++ {
		if side[24+i-n] >= 2 {
			mask |= 1 << i
		}
	}
	return mask
}

// Escapes returns the number of rolls that let a chequer on point n of the
// mover escape past side's blocking points.
func Escapes(side [25]uint8, n int) int {
	escapeOnce.Do(initEscapeTables)
	return escapeTable[blockMask(side, n)]
}

func escapes1(side [25]uint8, n int) int {
	escapeOnce.Do(initEscapeTables)
	return escapeTable1[blockMask(side, n)]
}
