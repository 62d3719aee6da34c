package dynamo

import "fmt"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Input is one named model input. Scalars have a single value.
type Input struct {
	Name  string
	Value []float64
}

// Inputs is an ordered input record. Order matters: sensitivities and
// stacked parameter vectors follow it.
type Inputs []Input

func Scalar(name string, v float64) Input {
	return Input{Name: name, Value: []float64{v}}
}

func (in Inputs) Lookup(name string) ([]float64, bool) {
	for _, i := range in {
		if i.Name == name {
			return i.Value, true
		}
	}
	return nil, false
}

// Scalar returns the first value of the named input, or def when absent.
func (in Inputs) Scalar(name string, def float64) float64 {
	v, ok := in.Lookup(name)
	if !ok || len(v) == 0 {
		return def
	}
	return v[0]
}

func (in Inputs) Names() []string {
	names := make([]string, len(in))
	for i, x := range in {
		names[i] = x.Name
	}
	return names
}

func (in Inputs) Clone() Inputs {
	if in == nil {
		return nil
	}
	c := make(Inputs, len(in))
	for i, x := range in {
		c[i] = Input{Name: x.Name, Value: append([]float64(nil), x.Value...)}
	}
	return c
}

// With returns a copy with name set to v, appended when not present.
func (in Inputs) With(name string, v ...float64) Inputs {
	c := in.Clone()
	for i := range c {
		if c[i].Name == name {
			c[i].Value = append([]float64(nil), v...)
			return c
		}
	}
	return append(c, Input{Name: name, Value: append([]float64(nil), v...)})
}

// Size returns the total flattened size of the named inputs.
func (in Inputs) Size(names []string) (int, error) {
	n := 0
	for _, name := range names {
		v, ok := in.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("%w: input %q not provided", ErrConfiguration, name)
		}
		n += len(v)
	}
	return n, nil
}

// Flatten stacks the named inputs in the given order.
func (in Inputs) Flatten(names []string) ([]float64, error) {
	var out []float64
	for _, name := range names {
		v, ok := in.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: input %q not provided", ErrConfiguration, name)
		}
		out = append(out, v...)
	}
	return out, nil
}

// Replace is the inverse of Flatten: it returns a copy whose named inputs
// take their values from flat.
func (in Inputs) Replace(names []string, flat []float64) Inputs {
	c := in.Clone()
	off := 0
	for _, name := range names {
		for i := range c {
			if c[i].Name != name {
				continue
			}
			n := len(c[i].Value)
			copy(c[i].Value, flat[off:off+n])
			off += n
			break
		}
	}
	return c
}

// Representation is the form a model's expressions were built in.
type Representation int

const (
	RepresentationCompiled Representation = iota
	RepresentationNative
)

func (r Representation) String() string {
	switch r {
	case RepresentationCompiled:
		return "compiled"
	case RepresentationNative:
		return "native"
	default:
		return fmt.Sprintf("Representation(%d)", int(r))
	}
}
