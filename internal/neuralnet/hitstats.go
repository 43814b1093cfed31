package neuralnet

import "math/bits"

// shot is one way of covering a distance with the dice.
type shot struct {
	all   bool   // every intermediate point is required (else either of two)
	via   [3]int // intermediate distances, zero terminated
	faces int    // dice faces used
	pips  int
}

var shots = [39]shot{
	{true, [3]int{}, 1, 1},           // 1x hits 1
	{true, [3]int{}, 1, 2},           // 2x hits 2
	{true, [3]int{1}, 2, 2},          // 11 hits 2
	{true, [3]int{}, 1, 3},           // 3x hits 3
	{false, [3]int{1, 2}, 2, 3},      // 21 hits 3
	{true, [3]int{1, 2}, 3, 3},       // 11 hits 3
	{true, [3]int{}, 1, 4},           // 4x hits 4
	{false, [3]int{1, 3}, 2, 4},      // 31 hits 4
	{true, [3]int{2}, 2, 4},          // 22 hits 4
	{true, [3]int{1, 2, 3}, 4, 4},    // 11 hits 4
	{true, [3]int{}, 1, 5},           // 5x hits 5
	{false, [3]int{1, 4}, 2, 5},      // 41 hits 5
	{false, [3]int{2, 3}, 2, 5},      // 32 hits 5
	{true, [3]int{}, 1, 6},           // 6x hits 6
	{false, [3]int{1, 5}, 2, 6},      // 51 hits 6
	{false, [3]int{2, 4}, 2, 6},      // 42 hits 6
	{true, [3]int{3}, 2, 6},          // 33 hits 6
	{true, [3]int{2, 4}, 3, 6},       // 22 hits 6
	{false, [3]int{1, 6}, 2, 7},      // 61 hits 7
	{false, [3]int{2, 5}, 2, 7},      // 52 hits 7
	{false, [3]int{3, 4}, 2, 7},      // 43 hits 7
	{false, [3]int{2, 6}, 2, 8},      // 62 hits 8
	{false, [3]int{3, 5}, 2, 8},      // 53 hits 8
	{true, [3]int{4}, 2, 8},          // 44 hits 8
	{true, [3]int{2, 4, 6}, 4, 8},    // 22 hits 8
	{false, [3]int{3, 6}, 2, 9},      // 63 hits 9
	{false, [3]int{4, 5}, 2, 9},      // 54 hits 9
	{true, [3]int{3, 6}, 3, 9},       // 33 hits 9
	{false, [3]int{4, 6}, 2, 10},     // 64 hits 10
	{true, [3]int{5}, 2, 10},         // 55 hits 10
	{false, [3]int{5, 6}, 2, 11},     // 65 hits 11
	{true, [3]int{6}, 2, 12},         // 66 hits 12
	{true, [3]int{4, 8}, 3, 12},      // 44 hits 12
	{true, [3]int{3, 6, 9}, 4, 12},   // 33 hits 12
	{true, [3]int{5, 10}, 3, 15},     // 55 hits 15
	{true, [3]int{4, 8, 12}, 4, 16},  // 44 hits 16
	{true, [3]int{6, 12}, 3, 18},     // 66 hits 18
	{true, [3]int{5, 10, 15}, 4, 20}, // 55 hits 20
	{true, [3]int{6, 12, 18}, 4, 24}, // 66 hits 24
}

// shotsAt[d-1] lists the shots covering distance d.
var shotsAt = [24][]int{
	{0}, {1, 2}, {3, 4, 5}, {6, 7, 8, 9}, {10, 11, 12}, {13, 14, 15, 16, 17},
	{18, 19, 20}, {21, 22, 23, 24}, {25, 26, 27}, {28, 29}, {30}, {31, 32, 33},
	nil, nil, {34}, {35}, nil, {36}, nil, {37}, nil, nil, nil, {38},
}

// shotsFor[r] lists the shots each of the 21 rolls can make: the six
// doubles first, then 21, 31, 32, ... 65.
var shotsFor = [21][]int{
	{0, 2, 5, 9}, {1, 8, 17, 24}, {3, 16, 27, 33}, {6, 23, 32, 35}, {10, 29, 34, 37}, {13, 31, 36, 38},
	{0, 1, 4}, {0, 3, 7}, {1, 3, 12}, {0, 6, 11}, {1, 6, 15}, {3, 6, 20},
	{0, 10, 14}, {1, 10, 19}, {3, 10, 22}, {6, 10, 26},
	{0, 13, 18}, {1, 13, 21}, {3, 13, 25}, {6, 13, 28}, {10, 13, 30},
}

type rollHits struct {
	chequers int
	pips     int
}

func msb(x uint32) int { return bits.Len32(x) - 1 }

// hitStats returns the average pips the opponent loses to our shots and
// the chances of hitting one and two chequers.
func hitStats(own, opp [25]uint8) (pipLoss, p1, p2 float32) {
	var hitters [39]uint32
	findShots(own, opp, &hitters)

	var rolls [21]rollHits
	switch {
	case own[24] == 0:
		shotsFromBoard(own, opp, &hitters, &rolls)
	case own[24] == 1:
		shotsWithOneOnBar(opp, &hitters, &rolls)
	default:
		for r := range rolls {
			for _, s := range shotsFor[r][:2] {
				if hitters[s]&(1<<24) == 0 || shots[s].faces != 1 {
					continue
				}
				rolls[r].chequers++
				rolls[r].pips = max(rolls[r].pips, 25-shots[s].pips)
			}
		}
	}

	np, n1, n2 := 0, 0, 0
	for r, h := range rolls {
		w := 2
		if r < 6 {
			w = 1
		}
		np += h.pips * w
		if h.chequers > 0 {
			n1 += w
		}
		if h.chequers > 1 {
			n2 += w
		}
	}
	return float32(np) / (12 * 36), float32(n1) / 36, float32(n2) / 36
}

// findShots marks, for every shot, the points we can hit a blot from.
func findShots(own, opp [25]uint8, hitters *[39]uint32) {
	inner := 0
	for i := 0; i < 6; i++ {
		if own[i] > 0 {
			inner++
		}
	}
	// with a weak board we do not consider hitting in our own home
	start := 21
	if inner > 2 {
		start = 23
	}

	for i := start; i >= 0; i-- {
		if opp[i] != 1 {
			continue
		}
		for j := 24 - i; j < 25; j++ {
			if own[j] == 0 || (j < 6 && own[j] == 2) {
				continue
			}
			for _, s := range shotsAt[j-24+i] {
				if shotBlocked(&shots[s], opp, i) {
					continue
				}
				hitters[s] |= 1 << j
			}
		}
	}
}

func shotBlocked(s *shot, opp [25]uint8, blot int) bool {
	if s.all {
		if s.faces == 1 {
			return false
		}
		for _, v := range s.via {
			if v == 0 {
				break
			}
			if opp[blot-v] > 1 {
				return true
			}
		}
		return false
	}
	return opp[blot-s.via[0]] > 1 && opp[blot-s.via[1]] > 1
}

func shotsFromBoard(own, opp [25]uint8, hitters *[39]uint32, rolls *[21]rollHits) {
	for r := range rolls {
		h := &rolls[r]
		used := -1
		for _, s := range shotsFor[r] {
			mask := hitters[s]
			if mask == 0 {
				continue
			}
			sh := &shots[s]
			k := msb(mask)
			h.pips = max(h.pips, k-sh.pips+1)

			if sh.faces == 1 {
				if used != k || own[k] > 1 {
					h.chequers++
				}
				used = k
				// doubles can hit with more than one chequer
				if len(shotsFor[r]) == 4 && mask&^(1<<k) != 0 {
					h.chequers++
				}
				continue
			}

			if h.chequers == 0 {
				h.chequers = 1
			}
			// blots picked up on the way
			for _, v := range sh.via {
				if v == 0 {
					break
				}
				if slot := 23 - k + v; slot < 25 && opp[slot] == 1 {
					h.chequers++
					break
				}
			}
		}
	}
}

func shotsWithOneOnBar(opp [25]uint8, hitters *[39]uint32, rolls *[21]rollHits) {
	for r := range rolls {
		h := &rolls[r]
		entered := false
		for j, s := range shotsFor[r] {
			mask := hitters[s]
			if mask == 0 {
				continue
			}
			sh := &shots[s]

			if sh.faces == 1 {
				for k := msb(mask); k > 0; k-- {
					if mask&(1<<k) == 0 {
						continue
					}
					// the other die is needed to enter
					if entered && k != 24 {
						break
					}
					if k != 24 {
						if opp[shots[shotsFor[r][1-j]].pips-1] > 1 {
							break
						}
						entered = true
					}
					h.chequers++
					h.pips = max(h.pips, k-sh.pips+1)
				}
				continue
			}

			// indirect shots only count from the bar
			if mask&(1<<24) == 0 {
				continue
			}
			if h.chequers == 0 {
				h.chequers = 1
			}
			h.pips = max(h.pips, 25-sh.pips)
			for _, v := range sh.via {
				if v == 0 {
					break
				}
				if opp[v+1] == 1 {
					h.chequers++
					break
				}
			}
		}
	}
}
