package integrators

// sensStep advances every sensitivity vector over the accepted step with
// the staggered direct method: (∂f/∂y − cj·M)·s = M·Σ αⱼ sⱼ − ∂f/∂p, with
// the matrix refactorised at the converged state.
func (b *BDF) sensStep(t float64, y []float64, alpha []float64, hist *history) ([][]float64, [][]float64, error) {
	cj := alpha[0]
	k := len(alpha) - 1
	if err := b.sys.Jacobian(t, y, cj, b.jac); err != nil {
		return nil, nil, err
	}
	b.stats.JacEvals++
	if err := b.lu.factor(b.jac); err != nil {
		return nil, nil, err
	}
	fp := b.sens.ParamJacobian(t, y)

	s := make([][]float64, b.np)
	sp := make([][]float64, b.np)
	bs := make([]float64, b.n)
	for p := 0; p < b.np; p++ {
		for i := range bs {
			sum := 0.0
			for j := 1; j <= k; j++ {
				sum += alpha[j] * hist.s[j-1][p][i]
			}
			bs[i] = sum
		}
		rhs := make([]float64, b.n)
		b.mass.MulVec(rhs, bs)
		for i := range rhs {
			rhs[i] -= fp.At(i, p)
		}
		if err := b.lu.solve(rhs); err != nil {
			return nil, nil, err
		}
		s[p] = rhs
		sp[p] = make([]float64, b.n)
		for i := range rhs {
			sp[p][i] = cj*rhs[i] + bs[i]
		}
	}
	return s, sp, nil
}

// initializeSens makes the initial sensitivities consistent with
// ∂f/∂y·s − M·s′ + ∂f/∂p = 0 using the initialisation matrix. factorIC
// leaves ∂f/∂y in b.jac.
func (b *BDF) initializeSens(t0 float64, y []float64, s, sp [][]float64) error {
	if err := b.factorIC(t0, y); err != nil {
		return err
	}
	fp := b.sens.ParamJacobian(t0, y)

	js := make([]float64, b.n)
	msp := make([]float64, b.n)
	for p := range s {
		b.jac.MulVec(js, s[p])
		b.mass.MulVec(msp, sp[p])
		delta := make([]float64, b.n)
		for i := range delta {
			delta[i] = -(js[i] - msp[i] + fp.At(i, p))
		}
		if err := b.lu.solve(delta); err != nil {
			return err
		}
		for i := range delta {
			if b.ids[i] == 1 {
				sp[p][i] += delta[i]
			} else {
				s[p][i] += delta[i]
			}
		}
	}
	return nil
}
