package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/processed"
)

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestListings(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "models", execute(t, "models"))
	g.Assert(t, "presets", execute(t, "presets"))
}

func TestParseInputs(t *testing.T) {
	in, err := parseInputs([]string{"k=0.5,1,2", "y0=3"})
	require.NoError(t, err)
	require.Len(t, in, 3)
	for i, k := range []float64{0.5, 1, 2} {
		assert.Equal(t, k, in[i].Scalar("k", 0))
		assert.Equal(t, 3.0, in[i].Scalar("y0", 0))
	}

	in, err = parseInputs(nil)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	_, err = parseInputs([]string{"k=1,2", "g=1,2,3"})
	assert.Error(t, err)
	_, err = parseInputs([]string{"k"})
	assert.Error(t, err)
	_, err = parseInputs([]string{"k=abc"})
	assert.Error(t, err)
}

func TestTimeSeriesSkipsNaN(t *testing.T) {
	nan := 0.0
	nan /= nan
	a := &processed.Array{
		Dims:  []string{"x", "t"},
		Shape: []int{2, 2},
		Data:  []float64{1, 2, 3, nan},
	}
	assert.Equal(t, []float64{2, 2}, timeSeries(a))
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	execute(t, "config", path, "--preset", "accurate")

	opts, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-9, opts.Rtol)
	preset = ""
}

func TestConfigAppliesOverPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rtol: 1e-5\n"), 0644))

	preset, configFile = "dense", path
	defer func() { preset, configFile = "", "" }()

	opts, err := loadOptions()
	require.NoError(t, err)
	assert.Equal(t, 1e-5, opts.Rtol)
	assert.Equal(t, "dense", opts.Jacobian)
}

func TestRunAndSweep(t *testing.T) {
	execute(t, "run", "decay", "--time", "1", "--points", "11", "--input", "k=1,2", "--sensitivities", "k", "--plot")
	sensFlags, inputFlags, plot = nil, nil, false

	execute(t, "sweep", "decay", "--time", "1", "--points", "11", "--param", "k=0.5,1,2", "--var", "y", "--target", "0.3679")
}
