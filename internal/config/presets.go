package config

import "sort"

var Presets = map[string]func() Options{
	"fast": func() Options {
		o := DefaultOptions()
		o.Rtol = 1e-4
		o.Atol = 1e-6
		o.MaxOrderBDF = 3
		return o
	},
	"default": DefaultOptions,
	"accurate": func() Options {
		o := DefaultOptions()
		o.Rtol = 1e-9
		o.Atol = 1e-11
		o.MaxNumSteps = 1000000
		return o
	},
	"dense": func() Options {
		o := DefaultOptions()
		o.Jacobian = "dense"
		o.LinearSolver = "SUNLinSol_Dense"
		return o
	},
}

// GetPreset returns a fresh copy of the named options, or false.
func GetPreset(name string) (Options, bool) {
	f, ok := Presets[name]
	if !ok {
		return Options{}, false
	}
	return f(), true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
