package solution

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/processed"
)

type Termination string

const (
	FinalTime Termination = "final time"
	Event     Termination = "event"
)

// Solution is the immutable result of one or more sub-solves of a single
// scenario.
type Solution struct {
	id              string
	segments        []processed.Segment
	params          []string
	termination     Termination
	integrationTime time.Duration
}

func New(runID string, seg processed.Segment, params []string, term Termination, integrationTime time.Duration) *Solution {
	return &Solution{
		id:              runID,
		segments:        []processed.Segment{seg},
		params:          params,
		termination:     term,
		integrationTime: integrationTime,
	}
}

// Concat joins solutions of consecutive sub-solves. The termination reason
// is the last one; integration times add up.
func Concat(sols ...*Solution) (*Solution, error) {
	if len(sols) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", dynamo.ErrConfiguration)
	}
	out := &Solution{id: sols[0].id, params: sols[0].params}
	for i, s := range sols {
		if len(s.params) != len(out.params) {
			return nil, fmt.Errorf("%w: solution %d has different sensitivity inputs", dynamo.ErrConfiguration, i)
		}
		for j := range s.params {
			if s.params[j] != out.params[j] {
				return nil, fmt.Errorf("%w: solution %d has different sensitivity inputs", dynamo.ErrConfiguration, i)
			}
		}
		if i > 0 {
			prev := out.segments[len(out.segments)-1]
			if s.segments[0].T[0] < prev.T[len(prev.T)-1] {
				return nil, fmt.Errorf("%w: solution %d starts before the previous one ends", dynamo.ErrConfiguration, i)
			}
		}
		out.segments = append(out.segments, s.segments...)
		out.termination = s.termination
		out.integrationTime += s.integrationTime
	}
	return out, nil
}

func (s *Solution) ID() string                     { return s.id }
func (s *Solution) Termination() Termination       { return s.termination }
func (s *Solution) IntegrationTime() time.Duration { return s.integrationTime }

// Segments returns the sub-solves. The data must not be modified.
func (s *Solution) Segments() []processed.Segment { return s.segments }

func (s *Solution) SensitivityParams() []string {
	return append([]string(nil), s.params...)
}

// T returns all output times, sub-solves concatenated.
func (s *Solution) T() []float64 {
	var out []float64
	for _, seg := range s.segments {
		out = append(out, seg.T...)
	}
	return out
}

// Y returns a copy of the states at T. Rows are nil for solutions that kept
// only output variables.
func (s *Solution) Y() [][]float64 {
	var out [][]float64
	for _, seg := range s.segments {
		if seg.Y == nil {
			out = append(out, make([][]float64, len(seg.T))...)
			continue
		}
		for _, row := range seg.Y {
			out = append(out, append([]float64(nil), row...))
		}
	}
	return out
}

func (s *Solution) Inputs() []dynamo.Inputs {
	out := make([]dynamo.Inputs, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg.Inputs.Clone()
	}
	return out
}

// Last returns the final time and state, the starting point of a restart.
func (s *Solution) Last() (float64, dynamo.State) {
	seg := s.segments[len(s.segments)-1]
	i := len(seg.T) - 1
	if seg.Y == nil {
		return seg.T[i], nil
	}
	return seg.T[i], dynamo.State(seg.Y[i]).Clone()
}

// Sensitivities returns ∂y/∂p per input name plus "all", each flattened to
// (time·state, size) with state fastest.
func (s *Solution) Sensitivities() (map[string]*mat.Dense, error) {
	out := map[string]*mat.Dense{}
	if len(s.params) == 0 {
		return out, nil
	}
	var all *mat.Dense
	for _, seg := range s.segments {
		if seg.Sens == nil {
			return nil, dynamo.ErrNoSensitivities
		}
		if all == nil {
			all = mat.DenseCopyOf(seg.Sens)
			continue
		}
		var stacked mat.Dense
		stacked.Stack(all, seg.Sens)
		all = &stacked
	}
	return processed.SplitParams(all, s.segments[0].Inputs, s.params)
}

// Variable builds a processed view of the named variable.
func (s *Solution) Variable(name string, opts ...processed.Option) (*processed.Variable, error) {
	vars := make([]dynamo.Variable, len(s.segments))
	for i, seg := range s.segments {
		v, ok := seg.Model.Variables()[name]
		if !ok {
			return nil, fmt.Errorf("%w: variable %q in model %s", dynamo.ErrNotFound, name, seg.Model.Name())
		}
		vars[i] = v
	}
	return processed.New(s, vars, opts...)
}
