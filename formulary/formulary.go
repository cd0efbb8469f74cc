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

// Package formulary holds the plasma physics relations the flow solver
// needs from outside the neoclassical model itself: physical constants,
// thermal speeds, Coulomb logarithms and the Chandrasekhar function.
package formulary

import (
	"math"

	"gonum.org/v1/gonum/unit/constant"
)

// Physical constants in SI units.
const (
	ElementaryCharge   = float64(constant.ElementaryCharge) // C
	VacuumPermittivity = float64(constant.ElectricConstant) // F/m
	Boltzmann          = float64(constant.Boltzmann)        // J/K
	AtomicMassUnit     = float64(constant.AtomicMass)       // kg
	ReducedPlanck      = float64(constant.Planck) / (2 * math.Pi)

	// ElectronMass is the electron rest mass [kg].
	ElectronMass = 9.1093837015e-31

	// ElectronVolt is one electron volt in joules.
	ElectronVolt = ElementaryCharge
)

var sqrtPi = math.Sqrt(math.Pi)

// ThermalSpeed returns the most probable speed sqrt(2T/m) [m/s] of
// particles of mass m [kg] at temperature t [J]. Non-positive masses
// return zero.
func ThermalSpeed(t, m float64) float64 {
	if m <= 0 || t <= 0 {
		return 0
	}
	return math.Sqrt(2 * t / m)
}
