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

	"github.com/plasmaflow/nclass/formulary"
	"github.com/plasmaflow/nclass/particles"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testSurface is a circular surface with major radius 3 m, minor radius
// 0.5 m, a 2.5 T field and q = 2.
func testSurface(t testing.TB) *FluxSurface {
	fs, err := NewFluxSurface(unit.New(0.1, Weber), CircularGeometry(3, 0.5, 2.5, 2, 64))
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// testState returns a charge state with temperatures in eV, a density in
// m-3 and gradients in eV/m and m-4.
func testState(t testing.TB, element string, z int, n, tEV, dn, dTEV float64) ChargeState {
	m, err := particles.Mass(element, z)
	if err != nil {
		t.Fatal(err)
	}
	return ChargeState{
		Element:             element,
		ChargeNumber:        z,
		Mass:                unit.New(m, unit.Kilogram),
		Density:             unit.New(n, PerMeter3),
		Temperature:         unit.New(tEV*formulary.ElectronVolt, unit.Joule),
		DensityGradient:     unit.New(dn, PerMeter4),
		TemperatureGradient: unit.New(dTEV*formulary.ElectronVolt, JoulePerMeter),
	}
}

// hydrogenPlasma is a 10 eV hydrogen plasma with electrons and a 1 m
// gradient scale length.
func hydrogenPlasma(t testing.TB) []ChargeState {
	return []ChargeState{
		testState(t, particles.Electron, -1, 1e20, 10, -1e20, -10),
		testState(t, "H", 0, 0, 10, 0, 0),
		testState(t, "H", 1, 1e20, 10, -1e20, -10),
	}
}
