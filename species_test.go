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

package nclass

import (
	"math"
	"testing"

	"github.com/ctessum/unit"
	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"github.com/plasmaflow/nclass/formulary"
	"github.com/plasmaflow/nclass/particles"
)

func carbonStates(t testing.TB) []ChargeState {
	n := []float64{0, 0, 1e15, 1e16, 1e17, 1e18, 3e18}
	var o []ChargeState
	for z := 0; z <= 6; z++ {
		o = append(o, testState(t, "C", z, n[z], 1000, -n[z], -1000))
	}
	return o
}

func TestSpeciesOrder(t *testing.T) {
	states := []ChargeState{
		testState(t, "H", 1, 1e20, 10, 0, 0),
		testState(t, "C", 2, 1e18, 10, 0, 0),
		testState(t, "H", 0, 0, 10, 0, 0),
		testState(t, "C", 0, 1e17, 10, 0, 0),
		testState(t, particles.Electron, -1, 1.2e20, 10, 0, 0),
	}
	s, err := NewSpeciesMatrixSet(states, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"H 0+", "H 1+", "C 0+", "C 2+", "e-"}
	if diff := pretty.Diff(s.Symbols(), want); len(diff) > 0 {
		t.Errorf("symbols: %v", diff)
	}
	wantBlocks := []Block{{"H", 0, 2}, {"C", 2, 4}, {particles.Electron, 4, 5}}
	if diff := pretty.Diff(s.Blocks(), wantBlocks); len(diff) > 0 {
		t.Errorf("blocks: %v", diff)
	}
	for i, sym := range want {
		j, err := s.Index(sym)
		if err != nil {
			t.Fatal(err)
		}
		if j != i {
			t.Errorf("Index(%q) = %d, want %d", sym, j, i)
		}
	}
	if _, err := s.Index("C 5+"); !errors.Is(err, ErrUnknownState) {
		t.Errorf("unknown symbol: %v", err)
	}
}

func TestXi(t *testing.T) {
	states := append(carbonStates(t), hydrogenPlasma(t)...)
	s, err := NewSpeciesMatrixSet(states, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	xi := s.Xi()
	for _, b := range s.Blocks() {
		var sum float64
		for i := b.Start; i < b.End; i++ {
			if xi[i] < 0 {
				t.Errorf("ξ of %s is negative", s.Symbols()[i])
			}
			sum += xi[i]
		}
		if different(sum, 1, 1e-14) {
			t.Errorf("ξ of %s sums to %g", b.Element, sum)
		}
	}
	h0, _ := s.Index("H 0+")
	h1, _ := s.Index("H 1+")
	if xi[h0] != 0 || xi[h1] != 1 {
		t.Errorf("hydrogen ξ = %g, %g", xi[h0], xi[h1])
	}
	if s.Contributing(h0) || !s.Contributing(h1) {
		t.Error("wrong contributing states")
	}
}

func TestRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoulombLogarithm = 17
	states := append(hydrogenPlasma(t), carbonStates(t)...)
	s, err := NewSpeciesMatrixSet(states, cfg)
	if err != nil {
		t.Fatal(err)
	}
	rate := s.EffectiveMomentumRelaxationRate()
	n := s.Len()
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			r := rate.At(a, b)
			if s.Contributing(a) && s.Contributing(b) {
				if !(r > 0) {
					t.Errorf("rate %s-%s = %g", s.symbols[a], s.symbols[b], r)
				}
			} else if r != 0 {
				t.Errorf("rate %s-%s = %g, want 0", s.symbols[a], s.symbols[b], r)
			}
		}
	}

	// Friction between two states conserves their total momentum.
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			gain := rate.At(a, b) * s.MMatrix(a, b).At(0, 0)
			loss := rate.At(b, a) * s.NMatrix(b, a).At(0, 0)
			if gain == 0 && loss == 0 {
				continue
			}
			if different(gain, -loss, 1e-12) {
				t.Errorf("%s-%s: momentum %g and %g", s.symbols[a], s.symbols[b], gain, loss)
			}
		}
	}

	var sum, scale float64
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			l := s.FrictionCoefficient(a, b).At(0, 0)
			sum += l
			scale += math.Abs(l)
		}
	}
	if math.Abs(sum) > 1e-12*scale {
		t.Errorf("friction coefficients sum to %g (scale %g)", sum, scale)
	}
}

func TestMMatrixSymmetry(t *testing.T) {
	states := carbonStates(t)
	s, err := NewSpeciesMatrixSet(states, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.Index("C 4+")
	b, _ := s.Index("C 6+")
	mr := s.MassRatio()
	mab := s.MMatrix(a, b)
	mba := s.MMatrix(b, a)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			l := mab.At(i, j) * (1 + mr.At(b, a))
			r := mba.At(i, j) * (1 + mr.At(a, b))
			if different(l, r, 1e-3) {
				t.Errorf("M[%d,%d]: %g != %g", i, j, l, r)
			}
		}
	}
	// Collisions of a state with itself.
	m := s.MMatrix(a, a)
	if different(m.At(0, 0), -2/math.Pow(2, 1.5), 1e-14) {
		t.Errorf("M11 of like particles = %g", m.At(0, 0))
	}
	if m.At(1, 1) >= 0 || m.At(2, 2) >= 0 {
		t.Errorf("diagonal of M is not negative: %v", m)
	}
}

func TestRatios(t *testing.T) {
	states := hydrogenPlasma(t)
	s, err := NewSpeciesMatrixSet(states, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	e, _ := s.Index("e-")
	h, _ := s.Index("H 1+")
	x := s.XabRatio()
	vth := s.ThermalSpeed()
	if different(x.At(e, h), vth[h]/vth[e], 1e-14) || different(x.At(e, h)*x.At(h, e), 1, 1e-14) {
		t.Errorf("xab: %g, %g", x.At(e, h), x.At(h, e))
	}
	if different(s.MassRatio().At(h, e), s.states[h].Mass.Value()/formulary.ElectronMass, 1e-14) {
		t.Errorf("mass ratio %g", s.MassRatio().At(h, e))
	}
	if s.TemperatureRatio().At(h, e) != 1 {
		t.Errorf("temperature ratio %g", s.TemperatureRatio().At(h, e))
	}
	rho := s.MassDensity()
	h0, _ := s.Index("H 0+")
	if rho[h0] != 0 {
		t.Errorf("mass density of empty state %g", rho[h0])
	}
	if different(rho[h], 1e20*s.states[h].Mass.Value(), 1e-14) {
		t.Errorf("mass density %g", rho[h])
	}
}

func TestKelvinTemperature(t *testing.T) {
	j := testState(t, "H", 1, 1e20, 10, -1e20, -10)
	k := j
	k.Temperature = unit.New(10*formulary.ElectronVolt/formulary.Boltzmann, unit.Kelvin)
	k.TemperatureGradient = unit.New(-10*formulary.ElectronVolt/formulary.Boltzmann, KelvinPerMeter)
	sj, err := NewSpeciesMatrixSet([]ChargeState{j}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	sk, err := NewSpeciesMatrixSet([]ChargeState{k}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if different(sj.ThermalSpeed()[0], sk.ThermalSpeed()[0], 1e-14) {
		t.Errorf("thermal speeds differ: %g, %g", sj.ThermalSpeed()[0], sk.ThermalSpeed()[0])
	}
	if different(sj.dT[0], sk.dT[0], 1e-14) {
		t.Errorf("temperature gradients differ: %g, %g", sj.dT[0], sk.dT[0])
	}
}

func TestUnlistedElement(t *testing.T) {
	// Elements missing from the particles table carry any charge.
	c := testState(t, "H", 1, 1e20, 10, 0, 0)
	c.Element = "Hb"
	c.ChargeNumber = 7
	if _, err := NewSpeciesMatrixSet([]ChargeState{c}, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
}

func TestCoulombLogarithmCheck(t *testing.T) {
	c := testState(t, "H", 1, 1e32, 0.01, 0, 0)
	p := formulary.Particle{
		Charge:      formulary.ElementaryCharge,
		Mass:        c.Mass.Value(),
		Density:     1e32,
		Temperature: 0.01 * formulary.ElectronVolt,
	}
	if l := formulary.CoulombLogarithm(p, p); l > 0 {
		t.Fatalf("Coulomb logarithm %g should not be positive", l)
	}
	_, err := NewSpeciesMatrixSet([]ChargeState{c}, DefaultConfig())
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("have %v, want %v", err, ErrInvalidState)
	}
	// A fixed Coulomb logarithm is used as given.
	cfg := DefaultConfig()
	cfg.CoulombLogarithm = 17
	if _, err := NewSpeciesMatrixSet([]ChargeState{c}, cfg); err != nil {
		t.Fatal(err)
	}
}

func TestSpeciesErrors(t *testing.T) {
	good := func() ChargeState { return testState(t, "H", 1, 1e20, 10, 0, 0) }
	tests := []struct {
		name   string
		states func() []ChargeState
		err    error
	}{
		{
			name:   "empty",
			states: func() []ChargeState { return nil },
			err:    ErrEmptySpecies,
		},
		{
			name:   "duplicate",
			states: func() []ChargeState { return []ChargeState{good(), good()} },
			err:    ErrInvalidState,
		},
		{
			name: "negative density",
			states: func() []ChargeState {
				c := good()
				c.Density = unit.New(-1, PerMeter3)
				return []ChargeState{c}
			},
			err: ErrInvalidState,
		},
		{
			name: "density dimensions",
			states: func() []ChargeState {
				c := good()
				c.Density = unit.New(1e20, unit.KilogramPerMeter3)
				return []ChargeState{c}
			},
			err: ErrDimension,
		},
		{
			name: "temperature dimensions",
			states: func() []ChargeState {
				c := good()
				c.Temperature = unit.New(10, unit.Meter)
				return []ChargeState{c}
			},
			err: ErrDimension,
		},
		{
			name: "missing mass",
			states: func() []ChargeState {
				c := good()
				c.Mass = nil
				return []ChargeState{c}
			},
			err: ErrDimension,
		},
		{
			name: "missing element",
			states: func() []ChargeState {
				c := good()
				c.Element = ""
				return []ChargeState{c}
			},
			err: ErrInvalidState,
		},
		{
			name: "charge above atomic number",
			states: func() []ChargeState {
				c := good()
				c.ChargeNumber = 5
				return []ChargeState{c}
			},
			err: ErrInvalidState,
		},
		{
			name: "negative ion charge",
			states: func() []ChargeState {
				c := good()
				c.ChargeNumber = -1
				return []ChargeState{c}
			},
			err: ErrInvalidState,
		},
		{
			name: "electron charge",
			states: func() []ChargeState {
				c := testState(t, particles.Electron, -1, 1e20, 10, 0, 0)
				c.ChargeNumber = 1
				return []ChargeState{c}
			},
			err: ErrInvalidState,
		},
		{
			name: "dense cold plasma",
			states: func() []ChargeState {
				return []ChargeState{testState(t, "H", 1, 1e32, 0.01, 0, 0)}
			},
			err: ErrInvalidState,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewSpeciesMatrixSet(test.states(), DefaultConfig())
			if !errors.Is(err, test.err) {
				t.Errorf("have %v, want %v", err, test.err)
			}
		})
	}
}
