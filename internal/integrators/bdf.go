package integrators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/diag"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// Termination flags.
const (
	FlagSuccess     = 0
	FlagRoot        = 2
	FlagTooMuchWork = -1
	FlagErrTestFail = -3
	FlagConvFail    = -4
	FlagICFail      = -6
)

var (
	safety       = 0.9
	minShrink    = 0.25
	maxGrow      = 2.0
	firstConvEst = 20.0
	maxRate      = 0.9
)

// System is a stacked residual system M·y′ = f(t, y) of Blocks() equal,
// uncoupled blocks.
type System interface {
	Size() int
	Blocks() int
	IDs() []float64
	Mass() *sparse.CSC
	RHS(t float64, y, dst []float64)
	// JacobianPattern allocates a matrix with the fixed iteration pattern.
	JacobianPattern() *sparse.CSC
	// Jacobian fills dst with ∂f/∂y − cj·M.
	Jacobian(t float64, y []float64, cj float64, dst *sparse.CSC) error
	NumRoots() int
	Roots(t float64, y, dst []float64)
}

// Sensitivities supplies ∂f/∂p as a Size()×NumParams() matrix.
type Sensitivities interface {
	NumParams() int
	ParamJacobian(t float64, y []float64) *mat.Dense
}

// Observer receives the solution at every output time. The slices are
// reused by the integrator and must be copied.
type Observer interface {
	OnOutput(t float64, y, yp []float64, s [][]float64)
}

type ObserverFunc func(t float64, y, yp []float64, s [][]float64)

func (f ObserverFunc) OnOutput(t float64, y, yp []float64, s [][]float64) { f(t, y, yp, s) }

type Stats struct {
	Steps        int
	ErrTestFails int
	ConvFails    int
	NewtonIters  int
	RHSEvals     int
	JacEvals     int
	RootEvals    int
	Order        int
	LastStep     float64
}

type Result struct {
	Flag  int
	T     float64
	Stats Stats
}

// BDF is a variable-step, variable-order backward differentiation integrator
// in residual form with staggered forward sensitivities.
type BDF struct {
	sys  System
	sens Sensitivities
	rtol float64
	atol []float64
	opts config.Options
	rec  diag.Recorder

	n, np int
	ids   []float64
	mass  *sparse.CSC
	jac   *sparse.CSC
	lu    *blockLU
	w     []float64
	stats Stats

	f, my, delta []float64
}

func NewBDF(sys System, atol []float64, rtol float64, opts config.Options) *BDF {
	n := sys.Size()
	return &BDF{
		sys:   sys,
		rtol:  rtol,
		atol:  atol,
		opts:  opts,
		rec:   diag.Nop,
		n:     n,
		ids:   sys.IDs(),
		mass:  sys.Mass(),
		jac:   sys.JacobianPattern(),
		lu:    newBlockLU(sys.Blocks(), n/sys.Blocks()),
		w:     make([]float64, n),
		f:     make([]float64, n),
		my:    make([]float64, n),
		delta: make([]float64, n),
	}
}

func (b *BDF) WithSensitivities(s Sensitivities) *BDF {
	b.sens = s
	b.np = 0
	if s != nil {
		b.np = s.NumParams()
	}
	return b
}

func (b *BDF) WithRecorder(r diag.Recorder) *BDF {
	b.rec = diag.OrNop(r)
	return b
}

type history struct {
	t   []float64
	y   [][]float64
	s   [][][]float64
	max int
}

func (h *history) push(t float64, y []float64, s [][]float64) {
	sc := make([][]float64, len(s))
	for j := range s {
		sc[j] = append([]float64(nil), s[j]...)
	}
	h.t = append([]float64{t}, h.t...)
	h.y = append([][]float64{append([]float64(nil), y...)}, h.y...)
	h.s = append([][][]float64{sc}, h.s...)
	if len(h.t) > h.max {
		h.t = h.t[:h.max]
		h.y = h.y[:h.max]
		h.s = h.s[:h.max]
	}
}

// Integrate advances from tEval[0] to the last requested time, reporting
// every requested time to obs. s0 holds one initial sensitivity vector per
// parameter and may be nil.
func (b *BDF) Integrate(tEval []float64, y0, yp0 []float64, s0 [][]float64, obs Observer) (Result, error) {
	if len(tEval) == 0 {
		return Result{}, fmt.Errorf("%w: no output times", dynamo.ErrConfiguration)
	}
	for i := 1; i < len(tEval); i++ {
		if !(tEval[i] > tEval[i-1]) {
			return Result{}, fmt.Errorf("%w: output times must be strictly increasing", dynamo.ErrConfiguration)
		}
	}
	if len(y0) != b.n || len(b.atol) != b.n {
		return Result{}, fmt.Errorf("%w: state length %d, atol length %d, system size %d",
			dynamo.ErrConfiguration, len(y0), len(b.atol), b.n)
	}

	y := append([]float64(nil), y0...)
	yp := make([]float64, b.n)
	if yp0 != nil {
		copy(yp, yp0)
	}
	s := make([][]float64, b.np)
	sp := make([][]float64, b.np)
	for j := range s {
		s[j] = make([]float64, b.n)
		sp[j] = make([]float64, b.n)
		if j < len(s0) {
			copy(s[j], s0[j])
		}
	}

	b.stats = Stats{Order: 1}
	t0, tEnd := tEval[0], tEval[len(tEval)-1]
	b.updateWeights(y)

	if b.opts.CalcIC {
		if err := b.initialize(t0, y, yp); err != nil {
			b.rec.Record(diag.EventFailure, "flag", fmt.Sprint(FlagICFail), "reason", err.Error())
			return Result{Flag: FlagICFail, T: t0, Stats: b.stats}, nil
		}
		if b.np > 0 {
			if err := b.initializeSens(t0, y, s, sp); err != nil {
				b.rec.Record(diag.EventFailure, "flag", fmt.Sprint(FlagICFail), "reason", err.Error())
				return Result{Flag: FlagICFail, T: t0, Stats: b.stats}, nil
			}
		}
	}

	obs.OnOutput(t0, y, yp, s)
	if len(tEval) == 1 {
		return Result{Flag: FlagSuccess, T: t0, Stats: b.stats}, nil
	}

	maxOrder := b.opts.MaxOrderBDF
	if maxOrder < 1 {
		maxOrder = config.DefaultMaxOrderBDF
	}
	hist := &history{max: maxOrder + 2}
	hist.push(t0, y, s)

	nroots := b.sys.NumRoots()
	gPrev := make([]float64, nroots)
	gNew := make([]float64, nroots)
	if nroots > 0 {
		b.sys.Roots(t0, y, gPrev)
		b.stats.RootEvals++
	}

	t := t0
	h := b.initialStep(t0, tEnd, yp)
	k := 1
	atOrder, sinceChange := 0, 0
	netf, ncf := 0, 0
	next := 1
	beta := make([]float64, b.n)
	pred := make([]float64, b.n)
	yq := make([]float64, b.n)
	ypq := make([]float64, b.n)
	sq := make([][]float64, b.np)
	for j := range sq {
		sq[j] = make([]float64, b.n)
	}

	fail := func(flag int) (Result, error) {
		b.stats.Order = k
		b.stats.LastStep = h
		b.rec.Record(diag.EventFailure, "flag", fmt.Sprint(flag), "t", t, "h", h)
		return Result{Flag: flag, T: t, Stats: b.stats}, nil
	}

	for {
		if b.stats.Steps >= b.opts.MaxNumSteps {
			return fail(FlagTooMuchWork)
		}
		if b.opts.DtMax > 0 && h > b.opts.DtMax {
			h = b.opts.DtMax
		}
		hitEnd := false
		if t+h*(1+1e-8) >= tEnd {
			h = tEnd - t
			hitEnd = true
		}
		tNew := t + h
		if hitEnd {
			tNew = tEnd
		}

		kk := k
		if kk > len(hist.t) {
			kk = len(hist.t)
		}
		nodes := append([]float64{tNew}, hist.t[:kk]...)
		alpha := lagrangeDerivWeights(nodes, tNew)
		cj := alpha[0]
		for i := range beta {
			sum := 0.0
			for j := 1; j <= kk; j++ {
				sum += alpha[j] * hist.y[j-1][i]
			}
			beta[i] = sum
		}

		var errCoef float64
		if len(hist.t) > kk {
			lw := lagrangeWeights(hist.t[:kk+1], tNew)
			for i := range pred {
				sum := 0.0
				for j := 0; j <= kk; j++ {
					sum += lw[j] * hist.y[j][i]
				}
				pred[i] = sum
			}
			errCoef = (tNew - hist.t[0]) / (tNew - hist.t[kk])
		} else {
			for i := range pred {
				pred[i] = hist.y[0][i] + (tNew-t)*yp[i]
			}
			errCoef = 0.5
		}

		yNew, ok := b.correct(tNew, cj, beta, pred)
		if !ok {
			ncf++
			b.stats.ConvFails++
			if ncf > b.opts.MaxConvergenceFailures {
				return fail(FlagConvFail)
			}
			h *= minShrink
			sinceChange, atOrder = 0, 0
			if h < minStep(t) {
				return fail(FlagConvFail)
			}
			continue
		}

		errNorm := b.errorNorm(errCoef, yNew, pred)
		if errNorm > 1 {
			netf++
			b.stats.ErrTestFails++
			if netf > b.opts.MaxErrorTestFailures {
				return fail(FlagErrTestFail)
			}
			switch netf {
			case 1:
				r := safety * math.Pow(errNorm, -1/float64(kk+1))
				h *= math.Max(minShrink, math.Min(safety, r))
			case 2:
				if k > 1 {
					k--
				}
				h *= minShrink
			default:
				k = 1
				h *= minShrink
			}
			sinceChange, atOrder = 0, 0
			if h < minStep(t) {
				return fail(FlagErrTestFail)
			}
			continue
		}

		netf, ncf = 0, 0
		b.stats.Steps++
		ypNew := make([]float64, b.n)
		for i := range ypNew {
			ypNew[i] = cj*yNew[i] + beta[i]
		}
		sNew := s
		if b.np > 0 {
			var err error
			sNew, sp, err = b.sensStep(tNew, yNew, alpha, hist)
			if err != nil {
				return fail(FlagConvFail)
			}
		}
		hist.push(tNew, yNew, sNew)
		t, y, yp, s = tNew, yNew, ypNew, sNew
		b.updateWeights(y)

		if nroots > 0 {
			b.sys.Roots(t, y, gNew)
			b.stats.RootEvals++
			if tr, found := b.locateRoot(hist, kk, gPrev, gNew); found {
				for next < len(tEval) && tEval[next] < tr {
					b.dense(hist, kk, tEval[next], yq, ypq, sq)
					obs.OnOutput(tEval[next], yq, ypq, sq)
					next++
				}
				b.dense(hist, kk, tr, yq, ypq, sq)
				obs.OnOutput(tr, yq, ypq, sq)
				b.stats.Order, b.stats.LastStep = k, h
				b.rec.Record(diag.EventRoot, "t", tr)
				return Result{Flag: FlagRoot, T: tr, Stats: b.stats}, nil
			}
			gPrev, gNew = gNew, gPrev
		}

		for next < len(tEval) && tEval[next] <= t {
			if tEval[next] == t {
				obs.OnOutput(tEval[next], y, yp, s)
			} else {
				b.dense(hist, kk, tEval[next], yq, ypq, sq)
				obs.OnOutput(tEval[next], yq, ypq, sq)
			}
			next++
		}
		if hitEnd || next == len(tEval) {
			b.stats.Order, b.stats.LastStep = k, h
			return Result{Flag: FlagSuccess, T: t, Stats: b.stats}, nil
		}

		atOrder++
		sinceChange++
		r := math.Pow(2*errNorm+1e-6, -1/float64(kk+1))
		raise := atOrder > kk+1 && k < maxOrder && len(hist.t) > k+1
		if raise {
			k++
			atOrder = 0
		}
		switch {
		case !raise && sinceChange > kk && r >= maxGrow:
			h *= maxGrow
			sinceChange = 0
		case r < 1:
			h *= math.Max(0.5, math.Min(safety, r))
			sinceChange = 0
		}
	}
}

// correct runs the Newton corrector for G(y) = f(t, y) − M·(cj·y + beta)
// starting from the predictor.
func (b *BDF) correct(t, cj float64, beta, pred []float64) ([]float64, bool) {
	y := append([]float64(nil), pred...)
	yp := make([]float64, b.n)

	if err := b.sys.Jacobian(t, y, cj, b.jac); err != nil {
		return nil, false
	}
	b.stats.JacEvals++
	if err := b.lu.factor(b.jac); err != nil {
		return nil, false
	}

	epcon := b.opts.NonlinearConvergenceCoefficient
	if epcon <= 0 {
		epcon = config.DefaultNonlinConvCoef
	}
	maxIters := b.opts.MaxNonlinearIterations
	if maxIters < 1 {
		maxIters = config.DefaultMaxNonlinearIters
	}

	var first float64
	for m := 0; m < maxIters; m++ {
		b.stats.NewtonIters++
		for i := range yp {
			yp[i] = cj*y[i] + beta[i]
		}
		b.sys.RHS(t, y, b.f)
		b.stats.RHSEvals++
		b.mass.MulVec(b.my, yp)
		for i := range b.delta {
			b.delta[i] = b.my[i] - b.f[i]
		}
		if err := b.lu.solve(b.delta); err != nil {
			return nil, false
		}
		for i := range y {
			y[i] += b.delta[i]
		}

		dn := wrms(b.delta, b.w, nil)
		if math.IsNaN(dn) || math.IsInf(dn, 0) {
			return nil, false
		}
		if dn == 0 {
			return y, true
		}
		if m == 0 {
			first = dn
			if firstConvEst*dn <= epcon {
				return y, true
			}
			continue
		}
		rate := math.Pow(dn/first, 1/float64(m))
		if rate > maxRate {
			return nil, false
		}
		if rate/(1-rate)*dn <= epcon {
			return y, true
		}
	}
	return nil, false
}

func (b *BDF) errorNorm(coef float64, y, pred []float64) float64 {
	est := make([]float64, b.n)
	for i := range est {
		est[i] = coef * (y[i] - pred[i])
	}
	var mask []float64
	if b.opts.SuppressAlgebraicError {
		mask = b.ids
	}
	return wrms(est, b.w, mask)
}

// dense evaluates the interpolating polynomial of the last accepted step
// and its derivative at t. s may be nil.
func (b *BDF) dense(hist *history, k int, t float64, y, yp []float64, s [][]float64) {
	m := k
	if m > len(hist.t)-1 {
		m = len(hist.t) - 1
	}
	nodes := hist.t[:m+1]
	lw := lagrangeWeights(nodes, t)
	dw := lagrangeDerivWeights(nodes, t)
	for i := range y {
		v, d := 0.0, 0.0
		for j := 0; j <= m; j++ {
			v += lw[j] * hist.y[j][i]
			d += dw[j] * hist.y[j][i]
		}
		y[i] = v
		if yp != nil {
			yp[i] = d
		}
	}
	for p := range s {
		for i := range s[p] {
			v := 0.0
			for j := 0; j <= m; j++ {
				v += lw[j] * hist.s[j][p][i]
			}
			s[p][i] = v
		}
	}
}

func (b *BDF) updateWeights(y []float64) {
	for i := range b.w {
		b.w[i] = 1 / (b.rtol*math.Abs(y[i]) + b.atol[i])
	}
}

func (b *BDF) initialStep(t0, tEnd float64, yp []float64) float64 {
	if b.opts.DtInit > 0 {
		return b.opts.DtInit
	}
	h := 0.001 * (tEnd - t0)
	if ypn := wrms(yp, b.w, nil); ypn*h > 0.5 {
		h = 0.5 / ypn
	}
	return h
}

func minStep(t float64) float64 {
	return 16 * 2.220446049250313e-16 * math.Max(math.Abs(t), 1)
}

// wrms is the weighted root-mean-square norm. A non-nil mask restricts the
// norm to entries with mask[i] == 1.
func wrms(v, w, mask []float64) float64 {
	sum := 0.0
	count := 0
	for i := range v {
		if mask != nil && mask[i] != 1 {
			continue
		}
		x := v[i] * w[i]
		sum += x * x
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
