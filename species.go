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
	"sort"

	"github.com/ctessum/unit"
	"github.com/pkg/errors"
	"github.com/plasmaflow/nclass/formulary"
	"github.com/plasmaflow/nclass/particles"
	"gonum.org/v1/gonum/mat"
)

// ChargeState is one ionization state of an element in the plasma
// together with its local profile. The gradients are radial gradients
// on the flux surface; nil gradients are unspecified.
type ChargeState struct {
	// Element is the symbol of the parent element, such as "C", or
	// particles.Electron.
	Element string

	// ChargeNumber is the charge in units of the elementary charge.
	ChargeNumber int

	Mass    *unit.Unit // kg
	Density *unit.Unit // m-3

	// Temperature can be given as an energy (J) or a temperature (K).
	Temperature *unit.Unit

	DensityGradient *unit.Unit // m-4

	// TemperatureGradient can be given in J/m or K/m.
	TemperatureGradient *unit.Unit
}

// Symbol returns the name of the charge state, for example "C 2+".
func (c ChargeState) Symbol() string { return particles.Symbol(c.Element, c.ChargeNumber) }

// Block is the range [Start, End) of charge-state indices that belong
// to one element.
type Block struct {
	Element    string
	Start, End int
}

// Len returns the number of charge states in the block.
func (b Block) Len() int { return b.End - b.Start }

// SpeciesMatrixSet holds the pairwise collision quantities of every
// charge state of every species in the plasma. Charge states are grouped
// by element in order of first appearance and sorted by charge within
// an element. It is not modified after creation.
type SpeciesMatrixSet struct {
	states  []ChargeState
	symbols []string
	index   map[string]int
	blocks  []Block
	blockOf []int

	charge, mass, density, temperature []float64
	dn, dT                             []float64
	hasGradient                        []bool

	vth, xi, rho []float64

	lnLambda, rate *mat.Dense

	mScript []*mat.Dense
}

// NewSpeciesMatrixSet creates a SpeciesMatrixSet from the given charge
// states. Only cfg.CoulombLogarithm is used.
func NewSpeciesMatrixSet(states []ChargeState, cfg Config) (*SpeciesMatrixSet, error) {
	if len(states) == 0 {
		return nil, ErrEmptySpecies
	}
	s := &SpeciesMatrixSet{index: make(map[string]int)}
	if err := s.order(states); err != nil {
		return nil, err
	}
	if err := s.readStates(); err != nil {
		return nil, err
	}
	s.computeXi()
	if err := s.computeRates(cfg.CoulombLogarithm); err != nil {
		return nil, err
	}
	s.mScript = make([]*mat.Dense, len(s.states))
	for a := range s.states {
		m := mat.NewDense(3, 3, nil)
		for b := range s.states {
			r := s.rate.At(a, b)
			if r == 0 {
				continue
			}
			mab := s.MMatrix(a, b)
			mab.Scale(r, mab)
			m.Add(m, mab)
		}
		s.mScript[a] = m
	}
	return s, nil
}

// order groups the states by element and sorts them by charge.
func (s *SpeciesMatrixSet) order(states []ChargeState) error {
	var elements []string
	byElement := make(map[string][]ChargeState)
	for _, c := range states {
		if c.Element == "" {
			return errors.Wrap(ErrInvalidState, "missing element symbol")
		}
		if err := checkChargeNumber(c); err != nil {
			return err
		}
		if _, ok := byElement[c.Element]; !ok {
			elements = append(elements, c.Element)
		}
		byElement[c.Element] = append(byElement[c.Element], c)
	}
	for _, e := range elements {
		cs := byElement[e]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].ChargeNumber < cs[j].ChargeNumber })
		b := Block{Element: e, Start: len(s.states)}
		for i, c := range cs {
			if i > 0 && cs[i-1].ChargeNumber == c.ChargeNumber {
				return errors.Wrapf(ErrInvalidState, "%s is given more than once", c.Symbol())
			}
			s.index[c.Symbol()] = len(s.states)
			s.symbols = append(s.symbols, c.Symbol())
			s.states = append(s.states, c)
			s.blockOf = append(s.blockOf, len(s.blocks))
		}
		b.End = len(s.states)
		s.blocks = append(s.blocks, b)
	}
	return nil
}

// checkChargeNumber makes sure the charge number of c is one the element
// can carry: 0 through Z for elements in the particles table and -1 for
// electrons. Elements missing from the table are not checked.
func checkChargeNumber(c ChargeState) error {
	zs, err := particles.ChargeStates(c.Element)
	if err != nil {
		return nil
	}
	if lo, hi := zs[0], zs[len(zs)-1]; c.ChargeNumber < lo || c.ChargeNumber > hi {
		return errors.Wrapf(ErrInvalidState, "%s: charge numbers of %s run from %d to %d",
			c.Symbol(), c.Element, lo, hi)
	}
	return nil
}

func (s *SpeciesMatrixSet) readStates() error {
	n := len(s.states)
	s.charge = make([]float64, n)
	s.mass = make([]float64, n)
	s.density = make([]float64, n)
	s.temperature = make([]float64, n)
	s.dn = make([]float64, n)
	s.dT = make([]float64, n)
	s.hasGradient = make([]bool, n)
	s.vth = make([]float64, n)
	s.rho = make([]float64, n)
	for i, c := range s.states {
		sym := c.Symbol()
		var err error
		s.charge[i] = float64(c.ChargeNumber) * formulary.ElementaryCharge
		if s.mass[i], err = checkUnit(c.Mass, unit.Kilogram, sym+" mass"); err != nil {
			return err
		}
		if s.density[i], err = checkUnit(c.Density, PerMeter3, sym+" density"); err != nil {
			return err
		}
		if s.temperature[i], err = energy(c.Temperature, sym+" temperature"); err != nil {
			return err
		}
		switch {
		case !(s.mass[i] > 0):
			return errors.Wrapf(ErrInvalidState, "%s has mass %g", sym, s.mass[i])
		case !(s.density[i] >= 0) || math.IsInf(s.density[i], 0):
			return errors.Wrapf(ErrInvalidState, "%s has density %g", sym, s.density[i])
		case !(s.temperature[i] > 0) || math.IsInf(s.temperature[i], 0):
			return errors.Wrapf(ErrInvalidState, "%s has temperature %g", sym, s.temperature[i])
		}
		if c.DensityGradient != nil {
			if s.dn[i], err = checkUnit(c.DensityGradient, PerMeter4, sym+" density gradient"); err != nil {
				return err
			}
		}
		if c.TemperatureGradient != nil {
			if s.dT[i], err = energyGradient(c.TemperatureGradient, sym+" temperature gradient"); err != nil {
				return err
			}
		}
		if !finite(s.dn[i], s.dT[i]) {
			return errors.Wrapf(ErrInvalidState, "%s has non-finite gradients", sym)
		}
		s.hasGradient[i] = c.DensityGradient != nil && c.TemperatureGradient != nil
		s.vth[i] = formulary.ThermalSpeed(s.temperature[i], s.mass[i])
		s.rho[i] = s.density[i] * s.mass[i]
	}
	return nil
}

// computeXi calculates the Z²n weight of each charge state within its
// element.
func (s *SpeciesMatrixSet) computeXi() {
	s.xi = make([]float64, len(s.states))
	for _, b := range s.blocks {
		var total float64
		for i := b.Start; i < b.End; i++ {
			z := float64(s.states[i].ChargeNumber)
			s.xi[i] = z * z * s.density[i]
			total += s.xi[i]
		}
		for i := b.Start; i < b.End; i++ {
			s.xi[i] = safeDiv(s.xi[i], total)
		}
	}
}

// computeRates calculates the Coulomb logarithms and effective momentum
// relaxation rates of all pairs. If lnL is positive it is used for all
// pairs. A computed Coulomb logarithm that is not positive means the
// plasma is too dense and cold for the collision model.
func (s *SpeciesMatrixSet) computeRates(lnL float64) error {
	n := len(s.states)
	s.lnLambda = mat.NewDense(n, n, nil)
	s.rate = mat.NewDense(n, n, nil)
	c := 3 * math.Pow(math.Pi, 1.5) * formulary.VacuumPermittivity * formulary.VacuumPermittivity
	for a := 0; a < n; a++ {
		pa := s.particle(a)
		for b := 0; b < n; b++ {
			pb := s.particle(b)
			if pa.Charge == 0 || pb.Charge == 0 || pa.Density == 0 || pb.Density == 0 {
				continue
			}
			l := lnL
			if l <= 0 {
				l = formulary.CoulombLogarithm(pa, pb)
			}
			if !(l > 0) || math.IsInf(l, 0) {
				return errors.Wrapf(ErrInvalidState, "Coulomb logarithm %g for %s on %s",
					l, s.symbols[a], s.symbols[b])
			}
			s.lnLambda.Set(a, b, l)
			ea2 := pa.Charge * pa.Charge
			eb2 := pb.Charge * pb.Charge
			v3 := s.vth[a] * s.vth[a] * s.vth[a]
			s.rate.Set(a, b, l*ea2*eb2*pa.Density*pb.Density/(c*pa.Mass*v3))
		}
	}
	return nil
}

func (s *SpeciesMatrixSet) particle(i int) formulary.Particle {
	return formulary.Particle{
		Charge:      s.charge[i],
		Mass:        s.mass[i],
		Density:     s.density[i],
		Temperature: s.temperature[i],
	}
}

// Len returns the number of charge states.
func (s *SpeciesMatrixSet) Len() int { return len(s.states) }

// Symbols returns the charge-state symbols in storage order.
func (s *SpeciesMatrixSet) Symbols() []string { return append([]string(nil), s.symbols...) }

// Index returns the storage index of the charge state with the given
// symbol.
func (s *SpeciesMatrixSet) Index(symbol string) (int, error) {
	i, ok := s.index[symbol]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownState, "%q", symbol)
	}
	return i, nil
}

// State returns charge state i.
func (s *SpeciesMatrixSet) State(i int) ChargeState { return s.states[i] }

// Blocks returns the charge-state range of each element.
func (s *SpeciesMatrixSet) Blocks() []Block { return append([]Block(nil), s.blocks...) }

// Contributing reports whether charge state i takes part in the
// calculation, that is whether it is charged and present.
func (s *SpeciesMatrixSet) Contributing(i int) bool { return s.xi[i] > 0 }

// ThermalSpeed returns the thermal speed [m/s] of each charge state.
func (s *SpeciesMatrixSet) ThermalSpeed() []float64 { return clone(s.vth) }

// Xi returns the fraction of Z²n that each charge state holds within its
// element. Weights of an element sum to one unless no state of the
// element is charged and present, in which case they are all zero.
func (s *SpeciesMatrixSet) Xi() []float64 { return clone(s.xi) }

// MassDensity returns n m [kg/m3] of each charge state.
func (s *SpeciesMatrixSet) MassDensity() []float64 { return clone(s.rho) }

// pairMatrix returns an n×n matrix with elements f(a, b).
func (s *SpeciesMatrixSet) pairMatrix(f func(a, b int) float64) *mat.Dense {
	n := len(s.states)
	m := mat.NewDense(n, n, nil)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			m.Set(a, b, f(a, b))
		}
	}
	return m
}

// xab is the thermal speed of the field state b relative to that of the
// test state a, so that x/xab is the speed normalized to v_b.
func (s *SpeciesMatrixSet) xab(a, b int) float64 { return s.vth[b] / s.vth[a] }

// XabRatio returns the ratios of thermal speeds v_b/v_a for test state a
// and field state b. This is the inverse of the thermal-speed ratio
// v_a/v_b: the velocity integrals normalize the speed of a to v_a, and
// x/xab is then the same speed normalized to v_b, which is the argument
// the field-particle collision operator needs.
func (s *SpeciesMatrixSet) XabRatio() *mat.Dense { return s.pairMatrix(s.xab) }

// MassRatio returns the mass ratios m_a/m_b.
func (s *SpeciesMatrixSet) MassRatio() *mat.Dense {
	return s.pairMatrix(func(a, b int) float64 { return s.mass[a] / s.mass[b] })
}

// TemperatureRatio returns the temperature ratios T_a/T_b.
func (s *SpeciesMatrixSet) TemperatureRatio() *mat.Dense {
	return s.pairMatrix(func(a, b int) float64 { return s.temperature[a] / s.temperature[b] })
}

// CoulombLogarithm returns ln Λ for each pair of charged, present states.
func (s *SpeciesMatrixSet) CoulombLogarithm() *mat.Dense { return mat.DenseCopyOf(s.lnLambda) }

// EffectiveMomentumRelaxationRate returns
//
//	lnΛ e_a² e_b² n_a n_b / (3 π^1.5 ε0² m_a v_a³)
//
// [kg m-3 s-1] for each ordered pair. The rate uses the thermal speed
// of the test state a, so it is symmetric only for equal thermal speeds.
// Pairs involving a neutral or absent state are zero.
func (s *SpeciesMatrixSet) EffectiveMomentumRelaxationRate() *mat.Dense {
	return mat.DenseCopyOf(s.rate)
}

// MMatrix returns the 3×3 test-particle collision matrix for test state
// a colliding with field state b.
func (s *SpeciesMatrixSet) MMatrix(a, b int) *mat.Dense {
	return mMatrix(s.xab(a, b), s.mass[a]/s.mass[b])
}

// NMatrix returns the 3×3 field-particle collision matrix for test state
// a colliding with field state b.
func (s *SpeciesMatrixSet) NMatrix(a, b int) *mat.Dense {
	return nMatrix(s.xab(a, b), s.mass[a]/s.mass[b], s.temperature[a]/s.temperature[b])
}

func mMatrix(x, mr float64) *mat.Dense {
	x2 := x * x
	x4 := x2 * x2
	x6 := x4 * x2
	d := 1 + x2
	m11 := -(1 + mr) / math.Pow(d, 1.5)
	m12 := 1.5 * (1 + mr) / math.Pow(d, 2.5)
	m13 := -15.0 / 8 * (1 + mr) / math.Pow(d, 3.5)
	m22 := -(13.0/4 + 4*x2 + 15.0/2*x4) / math.Pow(d, 2.5)
	m23 := (69.0/16 + 6*x2 + 63.0/4*x4) / math.Pow(d, 3.5)
	m33 := -(433.0/64 + 17*x2 + 459.0/8*x4 + 175.0/8*x6) / math.Pow(d, 4.5)
	return mat.NewDense(3, 3, []float64{
		m11, m12, m13,
		m12, m22, m23,
		m13, m23, m33,
	})
}

func nMatrix(x, mr, tr float64) *mat.Dense {
	x2 := x * x
	x4 := x2 * x2
	d := 1 + x2
	m12 := 1.5 * (1 + mr) / math.Pow(d, 2.5)
	m13 := -15.0 / 8 * (1 + mr) / math.Pow(d, 3.5)
	n11 := (1 + mr) / math.Pow(d, 1.5)
	n21 := -1.5 * (1 + mr) / math.Pow(d, 2.5)
	n31 := 15.0 / 8 * (1 + mr) / math.Pow(d, 3.5)
	n12 := -x2 * m12
	n13 := -x4 * m13
	n22 := 27.0 / 4 * math.Sqrt(tr) * x2 / math.Pow(d, 2.5)
	n23 := -225.0 / 16 * tr * x4 / math.Pow(d, 3.5)
	n32 := n23 / tr
	n33 := 2625.0 / 64 * math.Sqrt(tr) * x4 / math.Pow(d, 4.5)
	return mat.NewDense(3, 3, []float64{
		n11, n12, n13,
		n21, n22, n23,
		n31, n32, n33,
	})
}

// MScript returns the rate-weighted test-particle matrix
// Σ_b rate[a,b] M[a,b] of state a [kg m-3 s-1].
func (s *SpeciesMatrixSet) MScript(a int) *mat.Dense { return mat.DenseCopyOf(s.mScript[a]) }

// NScript returns the rate-weighted field-particle matrix
// rate[a,b] N[a,b] [kg m-3 s-1].
func (s *SpeciesMatrixSet) NScript(a, b int) *mat.Dense {
	n := s.NMatrix(a, b)
	n.Scale(s.rate.At(a, b), n)
	return n
}

// mScriptBlock returns the sum of MScript over the states of block k.
func (s *SpeciesMatrixSet) mScriptBlock(k int) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for a := s.blocks[k].Start; a < s.blocks[k].End; a++ {
		m.Add(m, s.mScript[a])
	}
	return m
}

// nScriptBlock returns the sum of NScript over the test states of block
// k and the field states of block j.
func (s *SpeciesMatrixSet) nScriptBlock(k, j int) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for a := s.blocks[k].Start; a < s.blocks[k].End; a++ {
		for b := s.blocks[j].Start; b < s.blocks[j].End; b++ {
			if s.rate.At(a, b) == 0 {
				continue
			}
			m.Add(m, s.NScript(a, b))
		}
	}
	return m
}

// FrictionCoefficient returns the friction matrix between states a and
// b, δ_ab MScript(a) + NScript(a, b) [kg m-3 s-1]. Summed over all pairs
// the (1,1) elements vanish, which expresses momentum conservation.
func (s *SpeciesMatrixSet) FrictionCoefficient(a, b int) *mat.Dense {
	l := s.NScript(a, b)
	if a == b {
		l.Add(l, s.mScript[a])
	}
	return l
}
