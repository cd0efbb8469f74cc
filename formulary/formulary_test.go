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

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestChandrasekharG(t *testing.T) {
	t.Run("small", func(t *testing.T) {
		for _, x := range []float64{-1e-8, -1e-10, 0, 1e-12, 1e-9, 1e-8} {
			want := 2 * x / (3 * math.Sqrt(math.Pi))
			if g := ChandrasekharG(x); math.Abs(g-want) > 1e-8 {
				t.Errorf("G(%g) = %g, want %g", x, g, want)
			}
		}
	})
	t.Run("large", func(t *testing.T) {
		for _, x := range []float64{1e6, 3e6, 1e7, 1e8, 1e9} {
			want := 1 / (2 * x * x)
			if g := ChandrasekharG(x); different(g, want, 1e-7) {
				t.Errorf("G(%g) = %g, want %g", x, g, want)
			}
		}
	})
	t.Run("odd", func(t *testing.T) {
		for _, x := range []float64{1e-4, 0.3, 1, 2.5, 20} {
			if ChandrasekharG(-x) != -ChandrasekharG(x) {
				t.Errorf("G(-%g) != -G(%g)", x, x)
			}
		}
	})
	t.Run("continuous", func(t *testing.T) {
		for _, x := range []float64{chandrasekharSmall, chandrasekharLarge} {
			below, above := ChandrasekharG(x*(1-1e-9)), ChandrasekharG(x*(1+1e-9))
			if different(below, above, 1e-6) {
				t.Errorf("G jumps at %g: %g, %g", x, below, above)
			}
		}
	})
	t.Run("maximum", func(t *testing.T) {
		// G peaks near x = 0.97 at about 0.214.
		if g := ChandrasekharG(0.97); different(g, 0.2140, 1e-3) {
			t.Errorf("G(0.97) = %g", g)
		}
	})
}

func TestThermalSpeed(t *testing.T) {
	proton := 1.67262192e-27
	if v := ThermalSpeed(ElectronVolt, proton); different(v, 1.3841e4, 1e-3) {
		t.Errorf("proton thermal speed at 1 eV: %g", v)
	}
	if v := ThermalSpeed(ElectronVolt, 0); v != 0 {
		t.Errorf("massless thermal speed: %g", v)
	}
}

func TestCoulombLogarithm(t *testing.T) {
	electron := Particle{
		Charge:      -ElementaryCharge,
		Mass:        ElectronMass,
		Density:     1e20,
		Temperature: 1000 * ElectronVolt,
	}
	l := CoulombLogarithm(electron, electron)
	if l < 14 || l > 17 {
		t.Errorf("electron-electron Coulomb logarithm %g", l)
	}
	neutral := electron
	neutral.Charge = 0
	if l := CoulombLogarithm(electron, neutral); l != 0 {
		t.Errorf("neutral Coulomb logarithm %g", l)
	}
	empty := electron
	empty.Density = 0
	if l := CoulombLogarithm(electron, empty); l != 0 {
		t.Errorf("zero-density Coulomb logarithm %g", l)
	}
}
