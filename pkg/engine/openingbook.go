package engine

// OpeningPlay is a standard reply to an opening roll, written as
// FormatMove renders it.
type OpeningPlay struct {
	Play string `json:"play"`
	Note string `json:"note,omitempty"`
}

// openingBook lists the reference plays of each opening roll, keyed by
// high die*10 + low die. The first entry is the main line; the others are
// within a few hundredths in rollouts.
var openingBook = map[int][]OpeningPlay{
	65: {{"24/13", "lover's leap"}},
	64: {{"24/18 13/9", ""}, {"8/2 6/2", ""}, {"24/14", ""}},
	63: {{"24/18 13/10", ""}, {"24/15", ""}},
	62: {{"24/18 13/11", ""}, {"13/5", ""}},
	61: {{"13/7 8/7", "bar point"}},
	54: {{"24/20 13/8", ""}, {"13/9 13/8", ""}},
	53: {{"8/3 6/3", "three point"}},
	52: {{"13/11 13/8", ""}, {"24/22 13/8", ""}},
	51: {{"24/23 13/8", ""}, {"13/8 6/5", ""}},
	43: {{"24/20 13/10", ""}, {"13/10 13/9", ""}, {"24/21 13/9", ""}},
	42: {{"8/4 6/4", "four point"}},
	41: {{"24/23 13/9", ""}, {"13/9 6/5", ""}},
	32: {{"24/21 13/11", ""}, {"13/11 13/10", ""}},
	31: {{"8/5 6/5", "five point"}},
	21: {{"24/23 13/11", ""}, {"13/11 6/5", ""}},
}

// OpeningPlays returns the reference plays of d0-d1 from the standard
// starting position, nil for doubles.
func OpeningPlays(d0, d1 int) []OpeningPlay {
	if d0 == d1 {
		return nil
	}
	return openingBook[10*max(d0, d1)+min(d0, d1)]
}

// IsOpeningPosition reports whether b is the starting position of v.
func IsOpeningPosition(b Board, v Variant) bool {
	return b == StartingPosition(v)
}

// IsReferencePlay reports whether m, played with d0-d1 from the standard
// starting position, is one of the reference plays.
func IsReferencePlay(b Board, d0, d1 int, m Move) bool {
	if !IsOpeningPosition(b, VariantStandard) {
		return false
	}
	played := FormatMove(b, m)
	for _, op := range OpeningPlays(d0, d1) {
		if op.Play == played {
			return true
		}
	}
	return false
}
