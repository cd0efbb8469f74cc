/*
Copyright © 2024 the nclass authors.
This file is part of nclass.

nclass is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nclass is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nclass.  If not, see <http://www.gnu.org/licenses/>.
*/

package nclassutil

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/unit"
	"github.com/gocarina/gocsv"
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/plasmaflow/nclass"
	"github.com/plasmaflow/nclass/formulary"
	"github.com/plasmaflow/nclass/particles"
)

const hydrogenProfile = `
TemperatureUnit = "eV"

[[State]]
Species = "e-"
Density = 1e20
Temperature = 10
DensityGradient = -1e20
TemperatureGradient = -10

[[State]]
Species = "H 1+"
Density = 1e20
Temperature = 10
DensityGradient = -1e20
TemperatureGradient = -10

[[State]]
Species = "C 6+"
Mass = 12
Density = 1e17
Temperature = 10
`

func TestReadProfile(t *testing.T) {
	p, err := ReadProfile(strings.NewReader(hydrogenProfile))
	require.NoError(t, err)
	require.Len(t, p.States, 3)

	states, err := p.ChargeStates()
	require.NoError(t, err)

	e := states[0]
	require.Equal(t, particles.Electron, e.Element)
	require.Equal(t, -1, e.ChargeNumber)
	require.InDelta(t, formulary.ElectronMass, e.Mass.Value(), 1e-40)
	require.InDelta(t, 10*formulary.ElectronVolt, e.Temperature.Value(), 1e-25)
	require.True(t, e.Temperature.Dimensions().Matches(unit.Joule))
	require.True(t, e.TemperatureGradient.Dimensions().Matches(nclass.JoulePerMeter))
	require.Equal(t, -1e20, e.DensityGradient.Value())

	c := states[2]
	require.Equal(t, "C", c.Element)
	require.Equal(t, 6, c.ChargeNumber)
	require.InDelta(t, 12*formulary.AtomicMassUnit, c.Mass.Value(), 1e-35)
	require.Nil(t, c.DensityGradient)
	require.Nil(t, c.TemperatureGradient)
}

func TestProfileKelvin(t *testing.T) {
	p, err := ReadProfile(strings.NewReader(`
TemperatureUnit = "K"
[[State]]
Species = "D 1+"
Density = 1e19
Temperature = 11604.5
TemperatureGradient = -100
DensityGradient = 0
`))
	require.NoError(t, err)
	states, err := p.ChargeStates()
	require.NoError(t, err)
	require.True(t, states[0].Temperature.Dimensions().Matches(unit.Kelvin))
	require.True(t, states[0].TemperatureGradient.Dimensions().Matches(nclass.KelvinPerMeter))
	require.Equal(t, 0., states[0].DensityGradient.Value())
}

func TestProfileErrors(t *testing.T) {
	for name, profile := range map[string]string{
		"empty":   `TemperatureUnit = "eV"`,
		"unknown": "[[State]]\nSpecies = \"e-\"\nDensity = 1\nTemperature = 1\nColor = \"red\"\n",
		"syntax":  "[[State]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadProfile(strings.NewReader(profile))
			require.Error(t, err)
		})
	}
	t.Run("empty is ErrEmptySpecies", func(t *testing.T) {
		_, err := ReadProfile(strings.NewReader(`TemperatureUnit = "eV"`))
		require.True(t, errors.Is(err, nclass.ErrEmptySpecies))
	})
	t.Run("unit", func(t *testing.T) {
		p := &Profile{TemperatureUnit: "F", States: []ProfileState{{Species: "e-"}}}
		_, err := p.ChargeStates()
		require.Error(t, err)
	})
	t.Run("species", func(t *testing.T) {
		p := &Profile{States: []ProfileState{{Species: "C 2"}}}
		_, err := p.ChargeStates()
		require.Error(t, err)
	})
	t.Run("element", func(t *testing.T) {
		p := &Profile{States: []ProfileState{{Species: "Xx 1+"}}}
		_, err := p.ChargeStates()
		require.Error(t, err)
	})
}

func TestContour(t *testing.T) {
	g := nclass.CircularGeometry(3, 0.5, 2.5, 2, 64)
	var b bytes.Buffer
	require.NoError(t, WriteContour(&b, 0.1, g))
	require.True(t, strings.HasPrefix(b.String(), "psi,R,Z,Br,Bz,Bphi,dBr,dBz\n"))

	c, err := ReadContour("circle", &b)
	require.NoError(t, err)
	require.Len(t, c.Points, 64)
	require.Equal(t, 0.1, c.Psi().Value())

	fs, err := c.Surface()
	require.NoError(t, err)
	want, err := nclass.NewFluxSurface(unit.New(0.1, nclass.Weber), g)
	require.NoError(t, err)
	require.InDelta(t, want.B2Average(), fs.B2Average(), 1e-12)
	require.InDelta(t, want.TrappedFraction(), fs.TrappedFraction(), 1e-12)
}

func TestContourErrors(t *testing.T) {
	_, err := ReadContour("empty", strings.NewReader("psi,R,Z,Br,Bz,Bphi,dBr,dBz\n"))
	require.True(t, errors.Is(err, nclass.ErrGeometry))

	_, err = ReadContour("psi", strings.NewReader("psi,R,Z,Br,Bz,Bphi,dBr,dBz\n1,1,0,0,1,1,0,0\n2,1,1,0,1,1,0,0\n"))
	require.True(t, errors.Is(err, nclass.ErrGeometry))

	c, err := ReadContour("short", strings.NewReader("psi,R,Z,Br,Bz,Bphi,dBr,dBz\n1,1,0,0,1,1,0,0\n1,1,1,0,1,1,0,0\n"))
	require.NoError(t, err)
	_, err = c.Surface()
	require.True(t, errors.Is(err, nclass.ErrGeometry))
}

func TestSolverConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("MuN", "200")
	cfg.Set("MMax", 20)
	cfg.Set("XMin", 0.002)
	cfg.Set("XMax", "8")
	cfg.Set("CoulombLogarithm", 17)
	cfg.Set("OrbitSqueezing", false)
	cfg.Set("StrictGradients", "true")
	cfg.Set("Workers", 2)
	cfg.Set("LogLevel", "warn")

	c, err := SolverConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, 200, c.MuN)
	require.Equal(t, 20, c.MMax)
	require.Equal(t, 0.002, c.XMin)
	require.Equal(t, 8., c.XMax)
	require.Equal(t, 17., c.CoulombLogarithm)
	require.True(t, c.StrictGradients)
	require.Equal(t, 2, c.Workers)

	cfg.Set("LogLevel", "loud")
	_, err = SolverConfig(cfg)
	require.True(t, errors.Is(err, nclass.ErrConfig))

	cfg.Set("LogLevel", "info")
	cfg.Set("MuN", "many")
	_, err = SolverConfig(cfg)
	require.True(t, errors.Is(err, nclass.ErrConfig))
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("a", `{"V":"Gamma / n"}`)
	cfg.Set("b", map[string]interface{}{"V": "Gamma / n"})
	cfg.Set("c", "")
	for _, k := range []string{"a", "b"} {
		m, err := GetStringMapString(k, cfg)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"V": "Gamma / n"}, m)
	}
	m, err := GetStringMapString("c", cfg)
	require.NoError(t, err)
	require.Empty(t, m)

	cfg.Set("d", "{")
	_, err = GetStringMapString("d", cfg)
	require.Error(t, err)
}

func TestCheckOutputVars(t *testing.T) {
	os.Setenv("NCLASS_TEST_DENSITY", "n")
	defer os.Unsetenv("NCLASS_TEST_DENSITY")
	o := checkOutputVars(map[string]string{"V": "Gamma /\n$NCLASS_TEST_DENSITY"})
	require.Equal(t, map[string]string{"V": "Gamma / n"}, o)
}

func testSolverConfig() nclass.Config {
	c := nclass.DefaultConfig()
	c.CoulombLogarithm = 17
	c.MuN = 300
	c.MMax = 30
	c.Log, _ = Logger("warn")
	return c
}

func TestBatch(t *testing.T) {
	p, err := ReadProfile(strings.NewReader(hydrogenProfile))
	require.NoError(t, err)

	contour := func(name string, psi, q float64) *Contour {
		var b bytes.Buffer
		require.NoError(t, WriteContour(&b, psi, nclass.CircularGeometry(3, 0.5, 2.5, q, 48)))
		c, err := ReadContour(name, &b)
		require.NoError(t, err)
		return c
	}
	c1, c2, c3 := contour("c1", 0.1, 2), contour("c2", 0.2, 3), contour("c3", 0.1, 2)

	b := NewBatch(testSolverConfig(), 4)
	res, err := b.Solve(context.Background(), p, c1, c2, c3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for _, r := range res {
		require.Len(t, r.Rows, 3)
		for _, row := range r.Rows {
			require.False(t, math.IsNaN(row.Gamma) || math.IsNaN(row.Q), row.ChargeState)
		}
	}
	require.Equal(t, 0.2, res[1].Rows[0].Psi)
	require.Equal(t, res[0].Rows, res[2].Rows)
	// c1 and c3 share a result but keep their own names.
	for i, name := range []string{"c1", "c2", "c3"} {
		require.Equal(t, name, res[i].Contour)
	}
	require.NotEqual(t, res[0].Rows[1].Gamma, res[1].Rows[1].Gamma)

	// Results of repeated requests come from the cache.
	again, err := b.Solve(context.Background(), p, c2)
	require.NoError(t, err)
	require.Equal(t, res[1].Rows, again[0].Rows)
}

func TestBatchError(t *testing.T) {
	p := &Profile{States: []ProfileState{{Species: "e-", Density: 1e20, Temperature: 10}}}
	c := &Contour{Name: "short", Points: []*ContourPoint{{R: 1}, {R: 2}}}
	_, err := NewBatch(testSolverConfig(), 1).Solve(context.Background(), p, c)
	require.Error(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	f := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(f, []byte(content), 0o644))
	return f
}

func TestSurfaceAndRunCommands(t *testing.T) {
	dir := t.TempDir()
	contourFile := filepath.Join(dir, "surface.csv")
	Cfg.Set("OutputFile", contourFile)
	Cfg.Set("Surface.Points", 48)
	Root.SetArgs([]string{"surface"})
	require.NoError(t, Root.Execute())

	c, err := LoadContour(contourFile)
	require.NoError(t, err)
	require.Len(t, c.Points, 48)

	out := filepath.Join(dir, "out.csv")
	Cfg.Set("Profile", writeFile(t, "profile.toml", hydrogenProfile))
	Cfg.Set("Contours", []string{contourFile})
	Cfg.Set("OutputFile", out)
	Cfg.Set("OutputVariables", map[string]string{"Vr": "Gamma / n"})
	Cfg.Set("CoulombLogarithm", 17)
	Cfg.Set("MuN", 300)
	Cfg.Set("MMax", 30)
	Cfg.Set("LogLevel", "warn")
	Root.SetArgs([]string{"run"})
	require.NoError(t, Root.Execute())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	var rows []*nclass.Row
	require.NoError(t, gocsv.Unmarshal(f, &rows))
	require.Len(t, rows, 3)
	require.Equal(t, "H 1+", rows[1].ChargeState)

	derived, err := os.ReadFile(filepath.Join(dir, "out_derived.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(derived)), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "psi,charge_state,Vr", lines[0])
	require.True(t, strings.HasPrefix(lines[2], "0.1,H 1+,"))
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOut(&b)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	require.Equal(t, "nclass v"+nclass.Version+"\n", b.String())
}
