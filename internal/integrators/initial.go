package integrators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/config"
)

// factorIC factorises the consistent-initialisation matrix at (t, y). Its
// unknowns are y′ for differential states and y for algebraic states, so
// differential columns come from −M and algebraic columns from ∂f/∂y.
func (b *BDF) factorIC(t float64, y []float64) error {
	if err := b.sys.Jacobian(t, y, 0, b.jac); err != nil {
		return err
	}
	b.stats.JacEvals++
	size := b.lu.size
	return b.lu.factorFunc(func(blk int, d *mat.Dense) {
		off := blk * size
		b.jac.DenseBlock(d, off, size)
		for j := 0; j < size; j++ {
			if b.ids[off+j] != 1 {
				continue
			}
			for i := 0; i < size; i++ {
				d.Set(i, j, -b.mass.At(off+i, off+j))
			}
		}
	})
}

// residual writes f(t, y) − M·yp into dst and returns its weighted norm.
func (b *BDF) residual(t float64, y, yp, dst []float64) float64 {
	b.sys.RHS(t, y, b.f)
	b.stats.RHSEvals++
	b.mass.MulVec(b.my, yp)
	for i := range dst {
		dst[i] = b.f[i] - b.my[i]
	}
	return wrms(dst, b.w, nil)
}

// initialize makes (y, yp) consistent in place: algebraic states and
// differential derivatives are solved for with a damped Newton iteration.
func (b *BDF) initialize(t0 float64, y, yp []float64) error {
	maxIters := b.opts.MaxNumIterationsIC
	if maxIters < 1 {
		maxIters = config.DefaultMaxIterationsIC
	}
	maxJac := b.opts.MaxNumStepsIC
	if maxJac < 1 {
		maxJac = config.DefaultMaxNumStepsIC
	}
	epcon := b.opts.NonlinearConvergenceCoefficientIC
	if epcon <= 0 {
		epcon = config.DefaultNonlinConvCoefIC
	}

	g := make([]float64, b.n)
	gTry := make([]float64, b.n)
	yTry := make([]float64, b.n)
	ypTry := make([]float64, b.n)
	delta := make([]float64, b.n)

	gn := b.residual(t0, y, yp, g)
	for it := 0; it < maxIters; it++ {
		if gn == 0 {
			return nil
		}
		if it < maxJac {
			if err := b.factorIC(t0, y); err != nil {
				return fmt.Errorf("initial conditions: %w", err)
			}
		}
		for i := range delta {
			delta[i] = -g[i]
		}
		if err := b.lu.solve(delta); err != nil {
			return fmt.Errorf("initial conditions: %w", err)
		}

		lambda := 1.0
		var gnTry float64
		for bt := 0; ; bt++ {
			for i := range delta {
				yTry[i], ypTry[i] = y[i], yp[i]
				if b.ids[i] == 1 {
					ypTry[i] += lambda * delta[i]
				} else {
					yTry[i] += lambda * delta[i]
				}
			}
			gnTry = b.residual(t0, yTry, ypTry, gTry)
			if b.opts.LinesearchOffIC || gnTry <= gn || bt >= b.opts.MaxLinesearchBacktracksIC {
				break
			}
			lambda *= 0.5
		}
		if math.IsNaN(gnTry) || math.IsInf(gnTry, 0) {
			return fmt.Errorf("initial conditions: residual not finite")
		}
		copy(y, yTry)
		copy(yp, ypTry)
		copy(g, gTry)
		gn = gnTry
		b.updateWeights(y)

		if lambda*wrms(delta, b.w, nil) <= epcon {
			return nil
		}
	}
	return fmt.Errorf("initial conditions did not converge in %d iterations", maxIters)
}
