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
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// FlowSolver calculates the parallel flows and the neoclassical fluxes
// of all charge states on one flux surface. All results are computed
// when it is created; a FlowSolver is read-only afterwards.
type FlowSolver struct {
	cfg Config
	log logrus.FieldLogger

	fs   *FluxSurface
	s    *SpeciesMatrixSet
	visc *Viscosity

	fhat float64

	// forces holds the thermodynamic forces of each charge state [V/m].
	forces []*mat.VecDense

	// rSources and rFlows give the response of each charge state to its
	// own forces and to the friction with other species.
	rSources []*mat.VecDense
	rFlows   []*mat.Dense

	// nBlock[k][j] is the field-particle friction of species k on j.
	nBlock [][]*mat.Dense

	// ubar holds the Z²n-weighted flow of each species.
	ubar []*mat.VecDense

	flows []*mat.VecDense

	bp, ps, cl []fluxPair
}

// SolverManipulator is one stage of a flow calculation.
type SolverManipulator func(f *FlowSolver) error

type stage struct {
	name string
	run  SolverManipulator
}

// NewFlowSolver calculates the flows and fluxes of the given charge
// states on surface fs. Nothing is returned if any stage fails.
func NewFlowSolver(states []ChargeState, fs *FluxSurface, cfg Config) (*FlowSolver, error) {
	if fs == nil {
		return nil, errors.Wrap(ErrGeometry, "nil flux surface")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	f := &FlowSolver{cfg: cfg, log: cfg.Log, fs: fs}
	stages := []stage{
		{"species", buildSpecies(states)},
		{"viscosity", computeViscosity},
		{"forces", thermodynamicForces},
		{"charge states", chargeStateResponses},
		{"coupled flows", coupledFlows},
		{"fluxes", fluxContributions},
	}
	for _, st := range stages {
		start := time.Now()
		if err := st.run(f); err != nil {
			return nil, err
		}
		fields := logrus.Fields{"stage": st.name, "elapsed": time.Since(start)}
		if f.s != nil {
			fields["species"] = len(f.s.blocks)
			fields["charge_states"] = f.s.Len()
		}
		f.log.WithFields(fields).Debug("nclass: stage complete")
	}
	return f, nil
}

func buildSpecies(states []ChargeState) SolverManipulator {
	return func(f *FlowSolver) error {
		s, err := NewSpeciesMatrixSet(states, f.cfg)
		if err != nil {
			return err
		}
		for i := range s.states {
			if s.Contributing(i) {
				if f.cfg.StrictGradients && !s.hasGradient[i] {
					return errors.Wrapf(ErrMissingGradient, "%s", s.symbols[i])
				}
				continue
			}
			reason := "zero density"
			if s.states[i].ChargeNumber == 0 {
				reason = "neutral"
			}
			f.log.WithFields(logrus.Fields{
				"charge_state": s.symbols[i],
				"reason":       reason,
			}).Info("nclass: charge state excluded from flows")
		}
		f.s = s
		return nil
	}
}

func computeViscosity(f *FlowSolver) error {
	v, err := NewViscosity(f.s, f.fs, f.cfg)
	if err != nil {
		return err
	}
	f.visc = v
	return nil
}

// thermodynamicForces sets the forces
//
//	S = F̂/e (T ∇n/n + ∇T, ∇T, 0)
//
// of each contributing charge state.
func thermodynamicForces(f *FlowSolver) error {
	s := f.s
	f.fhat = f.fs.Fhat()
	f.forces = make([]*mat.VecDense, s.Len())
	for i := range f.forces {
		f.forces[i] = mat.NewVecDense(3, nil)
		if !s.Contributing(i) {
			continue
		}
		c := f.fhat / s.charge[i]
		f.forces[i].SetVec(0, c*(s.temperature[i]*s.dn[i]/s.density[i]+s.dT[i]))
		f.forces[i].SetVec(1, c*s.dT[i])
	}
	return nil
}

// aMatrix returns ξ_a Σ_{a'∈k} MScript(a') - μ̂_a for state a in block k.
func (f *FlowSolver) aMatrix(a int, mk *mat.Dense) *mat.Dense {
	var m mat.Dense
	m.Scale(f.s.xi[a], mk)
	m.Sub(&m, f.visc.mu[a])
	return &m
}

// chargeStateResponses solves the momentum balance of each contributing
// charge state for its response to its own forces and to friction with
// the species flows.
func chargeStateResponses(f *FlowSolver) error {
	s := f.s
	n := s.Len()
	f.rSources = make([]*mat.VecDense, n)
	f.rFlows = make([]*mat.Dense, n)
	for k, b := range s.blocks {
		mk := s.mScriptBlock(k)
		for a := b.Start; a < b.End; a++ {
			f.rSources[a] = mat.NewVecDense(3, nil)
			f.rFlows[a] = mat.NewDense(3, 3, nil)
			if !s.Contributing(a) {
				continue
			}
			am := f.aMatrix(a, mk)
			var sp mat.VecDense
			sp.MulVec(f.visc.mu[a], f.forces[a])
			if err := f.rSources[a].SolveVec(am, &sp); err != nil {
				return &SingularMatrixError{Species: b.Element, ChargeState: s.symbols[a], Err: err}
			}
			xi := mat.NewDiagDense(3, []float64{s.xi[a], s.xi[a], s.xi[a]})
			if err := f.rFlows[a].Solve(am, xi); err != nil {
				return &SingularMatrixError{Species: b.Element, ChargeState: s.symbols[a], Err: err}
			}
		}
	}
	return nil
}

// coupledFlows solves for the weighted flow of every species, coupled
// through field-particle friction, and then sets the flow of each
// charge state.
func coupledFlows(f *FlowSolver) error {
	s := f.s
	nb := len(s.blocks)

	rbarSources := make([]*mat.VecDense, nb)
	rbarFlows := make([]*mat.Dense, nb)
	for k, b := range s.blocks {
		rbarSources[k] = mat.NewVecDense(3, nil)
		rbarFlows[k] = mat.NewDense(3, 3, nil)
		for a := b.Start; a < b.End; a++ {
			rbarSources[k].AddScaledVec(rbarSources[k], s.xi[a], f.rSources[a])
			var t mat.Dense
			t.Scale(s.xi[a], f.rFlows[a])
			rbarFlows[k].Add(rbarFlows[k], &t)
		}
	}

	f.nBlock = make([][]*mat.Dense, nb)
	for k := range f.nBlock {
		f.nBlock[k] = make([]*mat.Dense, nb)
		for j := range f.nBlock[k] {
			f.nBlock[k][j] = s.nScriptBlock(k, j)
		}
	}

	lhs := mat.NewDense(3*nb, 3*nb, nil)
	rhs := mat.NewVecDense(3*nb, nil)
	for k := 0; k < nb; k++ {
		for j := 0; j < nb; j++ {
			var blk mat.Dense
			blk.Mul(rbarFlows[k], f.nBlock[k][j])
			sub := lhs.Slice(3*k, 3*k+3, 3*j, 3*j+3).(*mat.Dense)
			sub.Copy(&blk)
			if k == j {
				for d := 0; d < 3; d++ {
					sub.Set(d, d, sub.At(d, d)+1)
				}
			}
		}
		for d := 0; d < 3; d++ {
			rhs.SetVec(3*k+d, rbarSources[k].AtVec(d))
		}
	}
	var u mat.VecDense
	if err := u.SolveVec(lhs, rhs); err != nil {
		return &SingularMatrixError{Err: err}
	}

	f.ubar = make([]*mat.VecDense, nb)
	for k := range f.ubar {
		f.ubar[k] = mat.NewVecDense(3, []float64{u.AtVec(3 * k), u.AtVec(3*k + 1), u.AtVec(3*k + 2)})
	}

	f.flows = make([]*mat.VecDense, s.Len())
	for k, b := range s.blocks {
		lambda := mat.NewVecDense(3, nil)
		for j := 0; j < nb; j++ {
			var t mat.VecDense
			t.MulVec(f.nBlock[k][j], f.ubar[j])
			lambda.SubVec(lambda, &t)
		}
		for a := b.Start; a < b.End; a++ {
			f.flows[a] = mat.NewVecDense(3, nil)
			if !s.Contributing(a) {
				continue
			}
			f.flows[a].MulVec(f.rFlows[a], lambda)
			f.flows[a].AddVec(f.flows[a], f.rSources[a])
		}
	}
	return nil
}

// Species returns the collision data of the charge states.
func (f *FlowSolver) Species() *SpeciesMatrixSet { return f.s }

// Surface returns the flux surface the flows were calculated on.
func (f *FlowSolver) Surface() *FluxSurface { return f.fs }

// Viscosity returns the viscosity coefficients of the charge states.
func (f *FlowSolver) Viscosity() *Viscosity { return f.visc }

// Symbols returns the charge-state symbols in storage order.
func (f *FlowSolver) Symbols() []string { return f.s.Symbols() }

// Flows returns the parallel flow moments [V/m] of charge state i. They
// are zero for states that do not contribute.
func (f *FlowSolver) Flows(i int) *mat.VecDense { return mat.VecDenseCopyOf(f.flows[i]) }

// ThermodynamicForces returns the forces [V/m] acting on charge state i.
func (f *FlowSolver) ThermodynamicForces(i int) *mat.VecDense {
	return mat.VecDenseCopyOf(f.forces[i])
}

// SpeciesFlows returns the Z²n-weighted flow of species block k.
func (f *FlowSolver) SpeciesFlows(k int) *mat.VecDense { return mat.VecDenseCopyOf(f.ubar[k]) }
