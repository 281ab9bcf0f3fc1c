package pose

// ComputeGaps returns the complete, non-overlapping list of gaps covering
// every dense index in [0, totalFrames) that is absent from sourceIndices.
// sourceIndices must be strictly increasing and within range.
//
// A gap before the first source index has PrevSource == NoBound; a gap after
// the last source index has NextSource == NoBound. Interior gaps carry both
// bounds. Edge gaps are later filled by clamping to the nearest source
// rather than extrapolating.
func ComputeGaps(sourceIndices []int, totalFrames int) []Gap {
	if totalFrames <= 0 {
		return nil
	}
	if len(sourceIndices) == 0 {
		return []Gap{{StartIndex: 0, EndIndex: totalFrames - 1, PrevSource: NoBound, NextSource: NoBound}}
	}

	var gaps []Gap

	// Leading gap.
	if first := sourceIndices[0]; first > 0 {
		gaps = append(gaps, Gap{
			StartIndex: 0,
			EndIndex:   first - 1,
			PrevSource: NoBound,
			NextSource: first,
		})
	}

	// Interior gaps.
	for i := 1; i < len(sourceIndices); i++ {
		prev, next := sourceIndices[i-1], sourceIndices[i]
		if next-prev > 1 {
			gaps = append(gaps, Gap{
				StartIndex: prev + 1,
				EndIndex:   next - 1,
				PrevSource: prev,
				NextSource: next,
			})
		}
	}

	// Trailing gap.
	if last := sourceIndices[len(sourceIndices)-1]; last < totalFrames-1 {
		gaps = append(gaps, Gap{
			StartIndex: last + 1,
			EndIndex:   totalFrames - 1,
			PrevSource: last,
			NextSource: NoBound,
		})
	}

	return gaps
}

// FindGap returns the gap owning the dense index i, or false when i is a
// source index. Gaps must be sorted by StartIndex (as ComputeGaps produces).
func FindGap(gaps []Gap, i int) (Gap, bool) {
	lo, hi := 0, len(gaps)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		g := gaps[mid]
		switch {
		case i < g.StartIndex:
			hi = mid - 1
		case i > g.EndIndex:
			lo = mid + 1
		default:
			return g, true
		}
	}
	return Gap{}, false
}
