package engine

// Dice rolls with their weight out of 36: doubles occur once, other
// rolls twice.
var rolls21 = func() (r [21][3]int) {
	i := 0
	for d0 := 1; d0 <= 6; d0++ {
		for d1 := 1; d1 <= d0; d1++ {
			w := 2
			if d0 == d1 {
				w = 1
			}
			r[i] = [3]int{d0, d1, w}
			i++
		}
	}
	return r
}()

// evaluatePlied averages the evaluations after the opponent's best reply
// to each of the 21 rolls, searched nPlies-1 deep.
func (ev *evaluator) evaluatePlied(b Board, ci CubeInfo, ec EvalContext, nPlies int) (Probabilities, error) {
	usePrune := ec.Prune && ec.Noise == 0 && ci.Variant == VariantStandard
	ciOpp := ci.Flip()

	var sum [NumOutputs]float32
	for _, r := range rolls21 {
		if err := ev.interrupted(); err != nil {
			return Probabilities{}, err
		}

		nb, err := ev.bestMoveForRoll(b, r[0], r[1], ci, ec, usePrune)
		if err != nil {
			return Probabilities{}, err
		}
		nb = SwapSides(nb)

		p, err := ev.evaluatePositionCache(nb, ciOpp, ec, nPlies-1, ev.Classify(nb, ci.Variant))
		if err != nil {
			return Probabilities{}, err
		}
		for i := range sum {
			sum[i] += float32(r[2]) * p[i]
		}
	}

	var p Probabilities
	for i := range sum {
		p[i] = sum[i] / 36
	}
	// the sums are from the opponent's side
	return p.Invert(), nil
}

// bestMoveForRoll plays d0-d1 for the player on roll of b the way inner
// nodes of the search do: with the pruning nets when allowed, otherwise a
// 0-ply search.
func (ev *evaluator) bestMoveForRoll(b Board, d0, d1 int, ci CubeInfo, ec EvalContext, usePrune bool) (Board, error) {
	if usePrune {
		return ev.findBestMoveInEval(b, d0, d1, ci, ec)
	}
	return ev.findBestMovePlied(b, d0, d1, ci, ec, 0, &DefaultFilters)
}
