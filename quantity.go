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

	"github.com/ctessum/unit"
	"github.com/pkg/errors"
	"github.com/plasmaflow/nclass/formulary"
)

// Dimensions of the quantities exchanged with the solver that the unit
// package does not define.
var (
	Tesla = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -2, unit.CurrentDim: -1}

	TeslaPerMeter = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -2, unit.CurrentDim: -1,
		unit.LengthDim: -1}

	// Weber is magnetic flux, used for the flux label ψ.
	Weber = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2,
		unit.CurrentDim: -1}

	PerMeter3 = unit.Dimensions{unit.LengthDim: -3}
	PerMeter4 = unit.Dimensions{unit.LengthDim: -4}

	JoulePerMeter  = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -2}
	KelvinPerMeter = unit.Dimensions{unit.TemperatureDim: 1, unit.LengthDim: -1}

	// ParticleFlux is a surface-averaged particle flux [m-2 s-1].
	ParticleFlux = unit.Dimensions{unit.LengthDim: -2, unit.TimeDim: -1}
	// HeatFlux is a surface-averaged heat flux [J m-2 s-1].
	HeatFlux = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3}

	// Diffusivity is a particle diffusion coefficient [m2 s-1].
	Diffusivity = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -1}
	// Conductivity is a thermal conductivity [W m-1 K-1].
	Conductivity = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -3,
		unit.TemperatureDim: -1}

	// CurrentTimesField is the unit of the bootstrap current ⟨J·B⟩ [A T m-2].
	CurrentTimesField = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -2}

	// ElectricField is the unit of thermodynamic forces and flows [V/m].
	ElectricField = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -3,
		unit.CurrentDim: -1}
)

// Array is a sequence of values sharing one set of dimensions.
type Array struct {
	Values []float64
	Dims   unit.Dimensions
}

// NewArray returns an Array holding v with dimensions d.
func NewArray(v []float64, d unit.Dimensions) Array {
	return Array{Values: v, Dims: d}
}

// Len returns the number of values in the array.
func (a Array) Len() int { return len(a.Values) }

// At returns element i as a unit-tagged value.
func (a Array) At(i int) *unit.Unit { return unit.New(a.Values[i], a.Dims) }

// Check returns an error wrapping ErrDimension if the dimensions of the
// array are not d.
func (a Array) Check(d unit.Dimensions) error {
	if !a.Dims.Matches(d) {
		return errors.Wrapf(ErrDimension, "have %v, want %v", a.Dims, d)
	}
	return nil
}

// checkUnit returns the value of u after checking that it has dimensions d.
func checkUnit(u *unit.Unit, d unit.Dimensions, name string) (float64, error) {
	if u == nil {
		return 0, errors.Wrapf(ErrDimension, "%s is missing", name)
	}
	if err := u.Check(d); err != nil {
		return 0, errors.Wrapf(ErrDimension, "%s: %v", name, err)
	}
	return u.Value(), nil
}

// energy returns a temperature in joules. Both energy and kelvin
// temperatures are accepted.
func energy(u *unit.Unit, name string) (float64, error) {
	if u == nil {
		return 0, errors.Wrapf(ErrDimension, "%s is missing", name)
	}
	switch {
	case u.Dimensions().Matches(unit.Joule):
		return u.Value(), nil
	case u.Dimensions().Matches(unit.Kelvin):
		return u.Value() * formulary.Boltzmann, nil
	}
	return 0, errors.Wrapf(ErrDimension, "%s has dimensions %v; want J or K", name, u.Dimensions())
}

// energyGradient is the gradient counterpart of energy.
func energyGradient(u *unit.Unit, name string) (float64, error) {
	switch {
	case u.Dimensions().Matches(JoulePerMeter):
		return u.Value(), nil
	case u.Dimensions().Matches(KelvinPerMeter):
		return u.Value() * formulary.Boltzmann, nil
	}
	return 0, errors.Wrapf(ErrDimension, "%s has dimensions %v; want J/m or K/m", name, u.Dimensions())
}

// finite reports whether all values are neither NaN nor infinite.
func finite(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// safeDiv returns a/b, or zero where b is zero.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
