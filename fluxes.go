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
	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/mat"

	"github.com/plasmaflow/nclass/formulary"
)

// Fluxes holds the surface-averaged radial particle and heat fluxes of a
// charge state.
type Fluxes struct {
	Particle *unit.Unit // m-2 s-1
	Heat     *unit.Unit // J m-2 s-1
}

type fluxPair struct{ particle, heat float64 }

func (p fluxPair) add(o fluxPair) fluxPair {
	return fluxPair{particle: p.particle + o.particle, heat: p.heat + o.heat}
}

func (p fluxPair) fluxes() Fluxes {
	return Fluxes{
		Particle: unit.New(p.particle, ParticleFlux),
		Heat:     unit.New(p.heat, HeatFlux),
	}
}

// poloidalFlow returns (u_a + S_a)/⟨B²⟩ for charge state a.
func (f *FlowSolver) poloidalFlow(a int, b2 float64) *mat.VecDense {
	var u mat.VecDense
	u.AddVec(f.flows[a], f.forces[a])
	u.ScaleVec(1/b2, &u)
	return &u
}

// fluxContributions splits the flux of every contributing charge state
// into its banana-plateau, Pfirsch-Schlüter and classical parts.
func fluxContributions(f *FlowSolver) error {
	s := f.s
	n := s.Len()
	f.bp = make([]fluxPair, n)
	f.ps = make([]fluxPair, n)
	f.cl = make([]fluxPair, n)

	b2 := f.fs.B2Average()
	psGeometry := 1 - b2*f.fs.InvB2Average()
	clGeometry := f.fs.GradRho2OverB2Average() / f.fhat

	sbar := make([]*mat.VecDense, len(s.blocks))
	for k, b := range s.blocks {
		sbar[k] = mat.NewVecDense(3, nil)
		for a := b.Start; a < b.End; a++ {
			sbar[k].AddScaledVec(sbar[k], s.xi[a], f.forces[a])
		}
	}

	for k, b := range s.blocks {
		mk := s.mScriptBlock(k)
		for a := b.Start; a < b.End; a++ {
			if !s.Contributing(a) {
				continue
			}
			e := s.charge[a]
			t := s.temperature[a]

			var mu mat.VecDense
			mu.MulVec(f.visc.mu[a], f.poloidalFlow(a, b2))
			f.bp[a] = fluxPair{
				particle: -f.fhat / e * mu.AtVec(0),
				heat:     -f.fhat * t / e * mu.AtVec(1),
			}

			var fr mat.VecDense
			fr.MulVec(mk, f.forces[a])
			for j := range s.blocks {
				var nf mat.VecDense
				nf.MulVec(f.nBlock[k][j], sbar[j])
				fr.AddVec(&fr, &nf)
			}

			ps := -f.fhat / e * s.xi[a] / b2 * psGeometry
			f.ps[a] = fluxPair{particle: ps * fr.AtVec(0), heat: ps * t * fr.AtVec(1)}

			cl := clGeometry * s.xi[a] / e
			f.cl[a] = fluxPair{particle: cl * fr.AtVec(0), heat: cl * t * fr.AtVec(1)}
		}
	}
	return nil
}

func (f *FlowSolver) fluxPair(symbol string, parts ...[]fluxPair) (fluxPair, error) {
	i, err := f.s.Index(symbol)
	if err != nil {
		return fluxPair{}, err
	}
	var p fluxPair
	for _, part := range parts {
		p = p.add(part[i])
	}
	return p, nil
}

// Fluxes returns the total flux of the named charge state.
func (f *FlowSolver) Fluxes(symbol string) (Fluxes, error) {
	p, err := f.fluxPair(symbol, f.bp, f.ps, f.cl)
	return p.fluxes(), err
}

// FluxesBP returns the banana-plateau part of the flux of the named
// charge state.
func (f *FlowSolver) FluxesBP(symbol string) (Fluxes, error) {
	p, err := f.fluxPair(symbol, f.bp)
	return p.fluxes(), err
}

// FluxesPS returns the Pfirsch-Schlüter part of the flux of the named
// charge state.
func (f *FlowSolver) FluxesPS(symbol string) (Fluxes, error) {
	p, err := f.fluxPair(symbol, f.ps)
	return p.fluxes(), err
}

// FluxesCL returns the classical part of the flux of the named charge
// state.
func (f *FlowSolver) FluxesCL(symbol string) (Fluxes, error) {
	p, err := f.fluxPair(symbol, f.cl)
	return p.fluxes(), err
}

// DiffusionCoefficient returns D = -Γ/∇n of the named charge state. It
// is zero where the density gradient is zero.
func (f *FlowSolver) DiffusionCoefficient(symbol string) (*unit.Unit, error) {
	p, err := f.fluxPair(symbol, f.bp, f.ps, f.cl)
	if err != nil {
		return nil, err
	}
	i, _ := f.s.Index(symbol)
	return unit.New(-safeDiv(p.particle, f.s.dn[i]), Diffusivity), nil
}

// ThermalConductivity returns χ = -q/∇T of the named charge state with
// the temperature gradient in K/m. It is zero where the temperature
// gradient is zero.
func (f *FlowSolver) ThermalConductivity(symbol string) (*unit.Unit, error) {
	p, err := f.fluxPair(symbol, f.bp, f.ps, f.cl)
	if err != nil {
		return nil, err
	}
	i, _ := f.s.Index(symbol)
	return unit.New(-safeDiv(p.heat, f.s.dT[i]/formulary.Boltzmann), Conductivity), nil
}

// BootstrapCurrent returns the bootstrap current ⟨J·B⟩ = Σ e n u₁ over
// all charge states.
func (f *FlowSolver) BootstrapCurrent() *unit.Unit {
	var j float64
	for a := range f.flows {
		j += f.s.charge[a] * f.s.density[a] * f.flows[a].AtVec(0)
	}
	return unit.New(j, CurrentTimesField)
}

// LocalComponents holds a velocity-like quantity resolved along the
// flux-surface contour.
type LocalComponents struct {
	Poloidal, Toroidal, Parallel, Perpendicular Array
}

// localComponents resolves moment m of the flow of the named charge
// state along the contour and multiplies it by scale.
func (f *FlowSolver) localComponents(symbol string, m int, scale float64, d unit.Dimensions) (LocalComponents, error) {
	a, err := f.s.Index(symbol)
	if err != nil {
		return LocalComponents{}, err
	}
	uhat := f.poloidalFlow(a, f.fs.B2Average()).AtVec(m)
	force := f.forces[a].AtVec(m)
	n := f.fs.Len()
	o := LocalComponents{
		Poloidal:      NewArray(make([]float64, n), d),
		Toroidal:      NewArray(make([]float64, n), d),
		Parallel:      NewArray(make([]float64, n), d),
		Perpendicular: NewArray(make([]float64, n), d),
	}
	for i := 0; i < n; i++ {
		bp, bt, b := f.fs.bp[i], f.fs.bphi[i], f.fs.b[i]
		o.Poloidal.Values[i] = scale * bp * uhat
		o.Toroidal.Values[i] = scale * (bt*uhat - safeDiv(force, bt))
		o.Parallel.Values[i] = scale * (b*uhat - force/b)
		o.Perpendicular.Values[i] = scale * safeDiv(bp, b*bt) * force
	}
	return o, nil
}

// LocalFlowVelocities returns the poloidal, toroidal, parallel and
// perpendicular flow velocities [m/s] of the named charge state at each
// contour sample.
func (f *FlowSolver) LocalFlowVelocities(symbol string) (LocalComponents, error) {
	return f.localComponents(symbol, 0, 1, unit.MeterPerSecond)
}

// LocalHeatFluxComponents returns the poloidal, toroidal, parallel and
// perpendicular heat fluxes [W/m2] of the named charge state at each
// contour sample.
func (f *FlowSolver) LocalHeatFluxComponents(symbol string) (LocalComponents, error) {
	a, err := f.s.Index(symbol)
	if err != nil {
		return LocalComponents{}, err
	}
	p := f.s.density[a] * f.s.temperature[a]
	return f.localComponents(symbol, 1, 2.5*p, unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3})
}
