package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/daesim/internal/dynamo"
)

type Registry struct {
	models map[string]func() dynamo.Model
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() dynamo.Model)}

	r.models["decay"] = func() dynamo.Model { return NewDecay() }
	r.models["decay-dae"] = func() dynamo.Model { return NewDecayDAE() }
	r.models["falling-ball"] = func() dynamo.Model { return NewFallingBall() }
	r.models["heat"] = func() dynamo.Model { return NewHeat1D(20) }
	r.models["particle"] = func() dynamo.Model { return NewParticle2D(10, 5) }

	return r
}

func (r *Registry) Register(name string, fn func() dynamo.Model) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (dynamo.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", dynamo.ErrNotFound, name)
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
