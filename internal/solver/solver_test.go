package solver_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/processed"
	"github.com/san-kum/daesim/internal/solution"
	"github.com/san-kum/daesim/internal/solver"
)

func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = a + (b-a)*float64(i)/float64(n-1)
	}
	return out
}

func tight() config.Options {
	opts := config.DefaultOptions()
	opts.Jacobian = "dense"
	opts.LinearSolver = "SUNLinSol_Dense"
	opts.Rtol = 1e-9
	opts.Atol = 1e-11
	return opts
}

func solve(m dynamo.Model, opts config.Options, batch int, t []float64, inputs ...dynamo.Inputs) []*solution.Solution {
	GinkgoHelper()
	setup, err := solver.NewSetup(m, opts, batch)
	Expect(err).NotTo(HaveOccurred())
	sols, err := solver.New(setup, nil).Solve(context.Background(), t, inputs...)
	Expect(err).NotTo(HaveOccurred())
	return sols
}

func scalarAt(sol *solution.Solution, name string, t []float64) []float64 {
	GinkgoHelper()
	v, err := sol.Variable(name)
	Expect(err).NotTo(HaveOccurred())
	out, err := v.Eval(processed.Query{T: t})
	Expect(err).NotTo(HaveOccurred())
	return out.Data
}

var _ = Describe("Solver", func() {
	Describe("exponential decay", func() {
		It("tracks exp(-t) at output and interpolated times", func() {
			sols := solve(models.NewDecay(), tight(), 1, linspace(0, 5, 11))
			Expect(sols).To(HaveLen(1))
			Expect(sols[0].Termination()).To(Equal(solution.FinalTime))

			for i, t := range sols[0].T() {
				Expect(sols[0].Y()[i][0]).To(BeNumerically("~", math.Exp(-t), 1e-5))
			}
			got := scalarAt(sols[0], "y", []float64{2.5, 0.25, 4.9})
			Expect(got[0]).To(BeNumerically("~", math.Exp(-2.5), 1e-5))
			Expect(got[1]).To(BeNumerically("~", math.Exp(-0.25), 1e-5))
			Expect(got[2]).To(BeNumerically("~", math.Exp(-4.9), 1e-5))
		})

		It("is deterministic", func() {
			a := solve(models.NewDecay(), tight(), 1, linspace(0, 3, 7))
			b := solve(models.NewDecay(), tight(), 1, linspace(0, 3, 7))
			Expect(a[0].Y()).To(Equal(b[0].Y()))
			Expect(a[0].T()).To(Equal(b[0].T()))
		})
	})

	Describe("batching", func() {
		It("gives every scenario the answer of its own solve", func() {
			heat := models.NewHeat1D(10)
			opts := config.DefaultOptions()
			opts.Rtol, opts.Atol = 1e-8, 1e-10
			opts.NumThreads = 2
			t := linspace(0, 1, 6)
			inputs := []dynamo.Inputs{
				{dynamo.Scalar("D", 0.05)},
				{dynamo.Scalar("D", 0.1)},
				{dynamo.Scalar("D", 0.2)},
				{dynamo.Scalar("D", 0.4)},
			}

			batched := solve(heat, opts, 2, t, inputs...)
			Expect(batched).To(HaveLen(4))
			for i, in := range inputs {
				single := solve(heat, opts, 1, t, in)
				Expect(batched[i].Inputs()[0]).To(Equal(in))
				for k := range t {
					for j, v := range single[0].Y()[k] {
						Expect(batched[i].Y()[k][j]).To(BeNumerically("~", v, 1e-5))
					}
				}
			}
		})
	})

	Describe("consistent initial conditions", func() {
		It("solves the algebraic state", func() {
			sols := solve(models.NewDecayDAE(), tight(), 1, linspace(0, 2, 5))
			for i, t := range sols[0].T() {
				y := sols[0].Y()[i]
				Expect(y[0]).To(BeNumerically("~", math.Exp(-0.5*t), 1e-5))
				Expect(y[1]).To(BeNumerically("~", 2*y[0], 1e-8))
			}
		})
	})

	Describe("events", func() {
		It("stops when the ball reaches the ground", func() {
			h0, g := 10.0, 9.81
			sols := solve(models.NewFallingBall(), tight(), 1, linspace(0, 5, 51),
				dynamo.Inputs{dynamo.Scalar("h0", h0), dynamo.Scalar("g", g)})

			Expect(sols[0].Termination()).To(Equal(solution.Event))
			tEnd, y := sols[0].Last()
			Expect(tEnd).To(BeNumerically("~", math.Sqrt(2*h0/g), 1e-4))
			Expect(y[0]).To(BeNumerically("~", 0, 1e-4))

			_, err := sols[0].Variable("height")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("sensitivities", func() {
		It("agree with central finite differences", func() {
			opts := tight()
			opts.Sensitivities = []string{"k", "y0"}
			t := linspace(0, 2, 5)
			k := 0.7
			in := dynamo.Inputs{dynamo.Scalar("k", k), dynamo.Scalar("y0", 1)}

			sols := solve(models.NewDecay(), opts, 1, t, in)
			sens, err := sols[0].Sensitivities()
			Expect(err).NotTo(HaveOccurred())
			Expect(sens).To(HaveKey("all"))
			rows, cols := sens["all"].Dims()
			Expect(rows).To(Equal(len(t)))
			Expect(cols).To(Equal(2))

			const h = 1e-4
			plus := solve(models.NewDecay(), tight(), 1, t, in.With("k", k+h))
			minus := solve(models.NewDecay(), tight(), 1, t, in.With("k", k-h))
			for i, tt := range t {
				fdk := (plus[0].Y()[i][0] - minus[0].Y()[i][0]) / (2 * h)
				Expect(sens["k"].At(i, 0)).To(BeNumerically("~", fdk, 1e-4))
				Expect(sens["k"].At(i, 0)).To(BeNumerically("~", -tt*math.Exp(-k*tt), 1e-4))
				Expect(sens["y0"].At(i, 0)).To(BeNumerically("~", math.Exp(-k*tt), 1e-4))
			}

			v, err := sols[0].Variable("y squared")
			Expect(err).NotTo(HaveOccurred())
			vs, err := v.Sensitivities()
			Expect(err).NotTo(HaveOccurred())
			for i, tt := range t {
				y := math.Exp(-k * tt)
				Expect(vs["k"].At(i, 0)).To(BeNumerically("~", 2*y*(-tt*y), 1e-4))
			}
		})

		It("cover algebraic states in every scenario of a batch", func() {
			opts := tight()
			opts.Sensitivities = []string{"k"}
			t := linspace(0, 2, 5)
			ks := []float64{0.5, 1.2}

			sols := solve(models.NewDecayDAE(), opts, 2, t,
				dynamo.Inputs{dynamo.Scalar("k", ks[0])}, dynamo.Inputs{dynamo.Scalar("k", ks[1])})
			Expect(sols).To(HaveLen(2))
			for b, k := range ks {
				sens, err := sols[b].Sensitivities()
				Expect(err).NotTo(HaveOccurred())
				rows, cols := sens["k"].Dims()
				Expect(rows).To(Equal(2 * len(t)))
				Expect(cols).To(Equal(1))
				for i, tt := range t {
					dy := -tt * math.Exp(-k*tt)
					Expect(sens["k"].At(2*i, 0)).To(BeNumerically("~", dy, 1e-4))
					Expect(sens["k"].At(2*i+1, 0)).To(BeNumerically("~", 2*dy, 1e-4))
				}
			}
		})

		It("are unavailable when not requested", func() {
			sols := solve(models.NewDecay(), tight(), 1, linspace(0, 1, 3), dynamo.Inputs{dynamo.Scalar("k", 1)})
			sens, err := sols[0].Sensitivities()
			Expect(err).NotTo(HaveOccurred())
			Expect(sens).To(BeEmpty())
		})
	})

	Describe("spatial variables", func() {
		It("decays the fundamental heat mode and extrapolates to the boundaries", func() {
			heat := models.NewHeat1D(40)
			opts := config.DefaultOptions()
			opts.Rtol, opts.Atol = 1e-8, 1e-10
			D := 0.1
			sols := solve(heat, opts, 1, linspace(0, 1, 11), dynamo.Inputs{dynamo.Scalar("D", D)})

			v, err := sols[0].Variable("temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Dims()).To(Equal(1))

			out, err := v.Eval(processed.Query{T: []float64{0.55}, Space: map[string][]float64{"x": {0, 0.5, 1}}})
			Expect(err).NotTo(HaveOccurred())
			decay := math.Exp(-D * math.Pi * math.Pi * 0.55)
			Expect(out.At(0, 0)).To(BeNumerically("~", 1+decay, 5e-3))
			Expect(out.At(1, 0)).To(BeNumerically("~", 1, 5e-3))
			Expect(out.At(2, 0)).To(BeNumerically("~", 1-decay, 5e-3))

			flux, err := sols[0].Variable("heat flux")
			Expect(err).NotTo(HaveOccurred())
			Expect(flux.Axes()["x"]).To(HaveLen(41))
		})

		It("handles two spatial axes", func() {
			p := models.NewParticle2D(5, 4)
			sols := solve(p, config.DefaultOptions(), 1, linspace(0, 1, 5))
			v, err := sols[0].Variable("particle concentration")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Dims()).To(Equal(2))

			out, err := v.Eval(processed.Query{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Shape).To(Equal([]int{5, 4, 5}))
		})
	})

	It("solves the same setup from many goroutines", func() {
		setup, err := solver.NewSetup(models.NewDecay(), tight(), 1)
		Expect(err).NotTo(HaveOccurred())
		s := solver.New(setup, nil)

		done := make(chan []float64, 4)
		for i := 0; i < 4; i++ {
			go func() {
				defer GinkgoRecover()
				sols, err := s.Solve(context.Background(), []float64{0, 1})
				Expect(err).NotTo(HaveOccurred())
				done <- sols[0].Y()[1]
			}()
		}
		first := <-done
		for i := 1; i < 4; i++ {
			Expect(<-done).To(Equal(first))
		}
	})
})
