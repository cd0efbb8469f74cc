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

package formulary

import "math"

// Particle holds the properties of one side of a binary collision.
type Particle struct {
	Charge      float64 // C
	Mass        float64 // kg
	Density     float64 // m^-3
	Temperature float64 // J
}

// CoulombLogarithm returns ln Λ for collisions of the test particle a
// with the field particle b. The Debye length uses the density and
// temperature of b. The distance of closest approach is the larger of the
// classical perpendicular impact parameter and the de Broglie wavelength
// of the reduced-mass particle moving at its thermal speed.
//
// Neutral or absent particles have no Coulomb interaction and return 0.
func CoulombLogarithm(a, b Particle) float64 {
	if a.Charge == 0 || b.Charge == 0 || b.Density <= 0 || b.Temperature <= 0 {
		return 0
	}
	if a.Mass <= 0 || b.Mass <= 0 {
		return 0
	}
	reduced := a.Mass * b.Mass / (a.Mass + b.Mass)
	v := ThermalSpeed(b.Temperature, reduced)

	bPerp := math.Abs(a.Charge*b.Charge) / (4 * math.Pi * VacuumPermittivity * reduced * v * v)
	deBroglie := ReducedPlanck / (2 * reduced * v)
	bMin := math.Max(bPerp, deBroglie)

	debye := math.Sqrt(VacuumPermittivity * b.Temperature / (b.Density * b.Charge * b.Charge))
	return math.Log(debye / bMin)
}

const (
	chandrasekharSmall = 1e-3
	chandrasekharLarge = 10
)

// ChandrasekharG returns the Chandrasekhar function
//
//	G(x) = (erf(x) - x erf'(x)) / (2x²).
//
// G is odd. Near zero the leading series terms are used to avoid
// cancellation and for |x| > 10 the asymptote 1/(2x²) is returned.
func ChandrasekharG(x float64) float64 {
	ax := math.Abs(x)
	switch {
	case ax == 0:
		return 0
	case ax < chandrasekharSmall:
		return 2*x/(3*sqrtPi) - 2*x*x*x/(5*sqrtPi)
	case ax > chandrasekharLarge:
		return math.Copysign(1/(2*x*x), x)
	}
	erfPrime := 2 / sqrtPi * math.Exp(-x*x)
	return (math.Erf(x) - x*erfPrime) / (2 * x * x)
}
