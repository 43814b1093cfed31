package neuralnet

// Heuristic input slots, per side.
const (
	iOff1 = iota
	iOff2
	iOff3
	iBreakContact  // pips needed to break contact
	iBackChequer   // furthest chequer
	iBackAnchor    // furthest made point
	iForwardAnchor // most advanced anchor in the opponent's outfield or board
	iPipLoss       // average pips the opponent loses to our shots
	iP1            // chance of hitting at least once
	iP2            // chance of hitting twice
	iBackEscapes   // rolls escaping the back chequer
	iAContain      // containment of the opponent's back chequers
	iAContain2
	iContain
	iContain2
	iMobility
	iMoment2 // one-sided second moment past the mean
	iEnter   // pips lost when entering from the bar
	iEnter2  // chance of entering
	iTiming
	iBackbone
	iBackG
	iBackG1
	iFreePip
	iBackREscapes
)

// halfInputs computes the heuristic inputs of one side. own is the side
// being described, opp the opponent, both in their own frame.
func halfInputs(own, opp [25]uint8, out []float32) {
	oppBack := backChequer(opp)
	// first point (our frame) past the opponent's last chequer
	nOppBack := 23 - oppBack

	np := 0
	for i := nOppBack + 1; i < 25; i++ {
		np += (i + 1 - nOppBack) * int(own[i])
	}
	out[iBreakContact] = float32(np) / (15 + 152.0)

	p := 0
	for i := 0; i < nOppBack; i++ {
		p += (i + 1) * int(own[i])
	}
	out[iFreePip] = float32(p) / 100

	out[iTiming] = timing(own, nOppBack)

	back, anchor, forward := anchors(own)
	out[iBackChequer] = float32(back) / 24
	out[iBackAnchor] = float32(anchor) / 24
	if forward == 0 {
		out[iForwardAnchor] = 2
	} else {
		out[iForwardAnchor] = float32(forward) / 6
	}

	out[iPipLoss], out[iP1], out[iP2] = hitStats(own, opp)

	out[iBackEscapes] = float32(Escapes(own, 23-nOppBack)) / 36
	out[iBackREscapes] = float32(escapes1(own, 23-nOppBack)) / 36

	out[iAContain], out[iContain] = containment(own, nOppBack)
	out[iAContain2] = out[iAContain] * out[iAContain]
	out[iContain2] = out[iContain] * out[iContain]

	mob := 0
	for i := 6; i < 25; i++ {
		if own[i] > 0 {
			mob += (i - 5) * int(own[i]) * Escapes(opp, i)
		}
	}
	out[iMobility] = float32(mob) / 3600

	out[iMoment2] = moment2(own)
	out[iEnter], out[iEnter2] = barEntry(own, opp)
	out[iBackbone] = backbone(own)
	out[iBackG], out[iBackG1] = backGame(own)
}

// timing counts the pips that can be played without breaking the board
// or the points in front of the opponent's back chequers.
func timing(own [25]uint8, nOppBack int) float32 {
	m := nOppBack
	if m < 11 {
		m = 11
	}
	t := 24 * int(own[24])
	no := int(own[24])

	i := 23
	for ; i > m; i-- {
		nc := int(own[i])
		if nc == 0 || nc == 2 {
			continue
		}
		ns := 1
		if nc > 2 {
			ns = nc - 2
		}
		no += ns
		t += i * ns
	}
	for ; i >= 6; i-- {
		nc := int(own[i])
		no += nc
		t += i * nc
	}
	for i = 5; i >= 0; i-- {
		nc := int(own[i])
		switch {
		case nc > 2:
			t += i * (nc - 2)
			no += nc - 2
		case nc < 2:
			if nm := 2 - nc; no >= nm {
				t -= i * nm
				no -= nm
			}
		}
	}
	return float32(t) / 100
}

// anchors returns the back chequer, the back anchor and the forward
// anchor distance (0 when there is none).
func anchors(own [25]uint8) (back, anchor, forward int) {
	back = backChequer(own)

	anchor = back
	if back == 24 {
		anchor = 23
	}
	for ; anchor >= 0; anchor-- {
		if own[anchor] >= 2 {
			break
		}
	}

	for j := 18; j <= anchor; j++ {
		if own[j] >= 2 {
			return back, anchor, 24 - j
		}
	}
	for j := 17; j >= 12; j-- {
		if own[j] >= 2 {
			return back, anchor, 24 - j
		}
	}
	return back, anchor, 0
}

// containment returns the fraction of rolls failing to escape for the
// worst point in front of the opponent's back chequers, and the same over
// every point from 15 on.
func containment(own [25]uint8, nOppBack int) (active, all float32) {
	n := 36
	i := 15
	for ; i < 24-nOppBack; i++ {
		if e := Escapes(own, i); e < n {
			n = e
		}
	}
	active = float32(36-n) / 36

	if nOppBack < 0 {
		// opponent on the bar: point 24 is excluded
		i, n = 15, 36
	}
	for ; i < 24; i++ {
		if e := Escapes(own, i); e < n {
			n = e
		}
	}
	all = float32(36-n) / 36
	return active, all
}

func moment2(own [25]uint8) float32 {
	j, n := 0, 0
	for i, ni := range own {
		j += int(ni)
		n += i * int(ni)
	}
	if j == 0 {
		return 0
	}
	n = (n + j - 1) / j

	j = 0
	k := 0
	for i := n + 1; i < 25; i++ {
		if ni := int(own[i]); ni > 0 {
			j += ni
			k += ni * (i - n) * (i - n)
		}
	}
	if j > 0 {
		k = (k + j - 1) / j
	}
	return float32(k) / 400
}

func barEntry(own, opp [25]uint8) (enter, enter2 float32) {
	if own[24] > 0 {
		loss := 0
		two := own[24] > 1
		for i := 0; i < 6; i++ {
			if opp[i] > 1 {
				// any double loses
				loss += 4 * (i + 1)
				for j := i + 1; j < 6; j++ {
					if opp[j] > 1 {
						loss += 2 * (i + j + 2)
					} else if two {
						loss += 2 * (i + 1)
					}
				}
			} else if two {
				for j := i + 1; j < 6; j++ {
					if opp[j] > 1 {
						loss += 2 * (j + 1)
					}
				}
			}
		}
		enter = float32(loss) / (36 * (49.0 / 6.0))
	}

	closed := 0
	for i := 0; i < 6; i++ {
		if opp[i] > 1 {
			closed++
		}
	}
	enter2 = float32(36-(closed-6)*(closed-6)) / 36
	return enter, enter2
}

var backboneWeight = [23]int{11, 11, 11, 11, 11, 11, 11, 6, 5, 4, 3, 2}

func backbone(own [25]uint8) float32 {
	pa := -1
	w, tot := 0, 0
	for np := 23; np > 0; np-- {
		if own[np] < 2 {
			continue
		}
		if pa == -1 {
			pa = np
			continue
		}
		w += backboneWeight[pa-np] * int(own[pa])
		tot += int(own[pa])
	}
	if tot == 0 {
		return 0
	}
	return 1 - float32(w)/(float32(tot)*11)
}

func backGame(own [25]uint8) (backg, backg1 float32) {
	anchorsHeld := 0
	for i := 18; i < 24; i++ {
		if own[i] > 1 {
			anchorsHeld++
		}
	}
	if anchorsHeld == 0 {
		return 0, 0
	}
	tot := 0
	for i := 18; i < 25; i++ {
		tot += int(own[i])
	}
	if anchorsHeld > 1 {
		return float32(tot-3) / 4, 0
	}
	return 0, float32(tot) / 8
}
