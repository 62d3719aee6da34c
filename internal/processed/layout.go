package processed

import (
	"fmt"
	"strings"

	"github.com/san-kum/daesim/internal/dynamo"
)

type axis struct {
	name  string
	pts   []float64
	ghost bool
}

// layout describes how a flat variable row maps onto spatial axes. For two
// axes the first one varies fastest.
type layout struct {
	size int
	axes []axis
}

func (l layout) dims() int { return len(l.axes) }

func (l layout) shape() []int {
	out := make([]int, len(l.axes))
	for i, a := range l.axes {
		out[i] = len(a.pts)
	}
	return out
}

func classify(v dynamo.Variable) (layout, error) {
	d := v.Domain()
	m := v.Size()

	if d.FEM != nil {
		if m != len(d.FEM.Y)*len(d.FEM.Z) {
			return layout{}, fmt.Errorf("%w: variable %s of size %d does not fit its y-z mesh",
				dynamo.ErrNotImplemented, v.Name(), m)
		}
		return layout{size: m, axes: []axis{
			{name: "y", pts: d.FEM.Y},
			{name: "z", pts: d.FEM.Z},
		}}, nil
	}

	if m == 1 {
		return layout{size: 1}, nil
	}
	if d.Primary == nil {
		return layout{}, fmt.Errorf("%w: variable %s of size %d has no mesh", dynamo.ErrNotImplemented, v.Name(), m)
	}

	first, err := axisName(d.PrimaryNames, "primary")
	if err != nil {
		return layout{}, err
	}
	nodes, edges := d.Primary.Nodes, d.Primary.Edges
	switch m {
	case len(nodes):
		return layout{size: m, axes: []axis{{name: first, pts: nodes, ghost: true}}}, nil
	case len(edges):
		return layout{size: m, axes: []axis{{name: first, pts: edges, ghost: true}}}, nil
	}

	if d.Secondary != nil && len(d.Secondary.Nodes) > 0 && m%len(d.Secondary.Nodes) == 0 {
		second, err := axisName(d.SecondaryNames, "secondary")
		if err != nil {
			return layout{}, err
		}
		var pts []float64
		switch m / len(d.Secondary.Nodes) {
		case len(nodes):
			pts = nodes
		case len(edges):
			pts = edges
		}
		if pts != nil {
			return layout{size: m, axes: []axis{
				{name: first, pts: pts, ghost: true},
				{name: second, pts: d.Secondary.Nodes, ghost: true},
			}}, nil
		}
	}

	return layout{}, fmt.Errorf("%w: shape of %s not recognized (3D variables not supported)",
		dynamo.ErrNotImplemented, v.Name())
}

// axisName reduces the spatial variable names of a domain to one axis name.
// Electrode and particle names collapse onto x, r and R.
func axisName(names []string, fallback string) (string, error) {
	var raw []string
	for _, n := range names {
		if n == "tabs" {
			continue
		}
		raw = append(raw, n)
	}
	if len(raw) == 0 {
		return fallback, nil
	}
	for _, prefix := range []string{"r", "x", "R"} {
		all := true
		for _, n := range raw {
			if !strings.HasPrefix(n, prefix) {
				all = false
				break
			}
		}
		if all {
			return prefix, nil
		}
	}
	if len(raw) == 1 {
		return raw[0], nil
	}
	return "", fmt.Errorf("%w: spatial variable names %v not recognized", dynamo.ErrNotImplemented, names)
}
