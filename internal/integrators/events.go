package integrators

import "math"

const maxRootIters = 200

// locateRoot finds the earliest sign change of the root functions over the
// last accepted step. Components that were exactly zero at the start of
// the step are ignored.
func (b *BDF) locateRoot(hist *history, k int, gl, gr []float64) (float64, bool) {
	tl, tr := hist.t[1], hist.t[0]
	best, found := math.Inf(1), false
	for i := range gl {
		if gl[i] == 0 {
			continue
		}
		if gr[i] != 0 && (gl[i] > 0) == (gr[i] > 0) {
			continue
		}
		root := tr
		if gr[i] != 0 {
			root = b.illinois(hist, k, i, tl, tr, gl[i], gr[i])
		}
		if root < best {
			best, found = root, true
		}
	}
	return best, found
}

// illinois brackets component i of the root vector on the dense output.
// The returned time lies on the far side of the crossing.
func (b *BDF) illinois(hist *history, k, i int, ta, tb, ga, gb float64) float64 {
	y := make([]float64, b.n)
	g := make([]float64, b.sys.NumRoots())
	eval := func(t float64) float64 {
		b.dense(hist, k, t, y, nil, nil)
		b.sys.Roots(t, y, g)
		b.stats.RootEvals++
		return g[i]
	}

	tol := 100 * 2.220446049250313e-16 * (math.Abs(tb) + math.Abs(tb-ta))
	side := 0
	for it := 0; it < maxRootIters && tb-ta > tol; it++ {
		tc := tb - gb*(tb-ta)/(gb-ga)
		if !(tc > ta && tc < tb) {
			tc = 0.5 * (ta + tb)
		}
		gc := eval(tc)
		if gc == 0 {
			return tc
		}
		if (gc > 0) == (ga > 0) {
			ta, ga = tc, gc
			if side == -1 {
				gb *= 0.5
			}
			side = -1
		} else {
			tb, gb = tc, gc
			if side == 1 {
				ga *= 0.5
			}
			side = 1
		}
	}
	return tb
}
