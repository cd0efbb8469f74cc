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
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"

	"github.com/plasmaflow/nclass/formulary"
)

var sqrtPi = math.Sqrt(math.Pi)

// Viscosity holds the velocity-dependent viscosity of every charge state
// on one flux surface and the resulting 3×3 viscosity matrices μ̂.
// Velocities x are normalized to the thermal speed of the test state.
type Viscosity struct {
	s   *SpeciesMatrixSet
	fs  *FluxSurface
	cfg Config

	ft float64
	x  []float64

	// fm holds the mode weights F_m for m = 1..MMax.
	fm []float64

	mu []*mat.Dense
}

// NewViscosity calculates the viscosity matrices of the charge states in
// s on surface fs. The per-state integrals are spread over cfg.Workers
// goroutines.
func NewViscosity(s *SpeciesMatrixSet, fs *FluxSurface, cfg Config) (*Viscosity, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.OrbitSqueezing {
		return nil, errors.Wrap(ErrNotImplemented, "orbit squeezing")
	}
	v := &Viscosity{
		s:   s,
		fs:  fs,
		cfg: cfg,
		ft:  fs.TrappedFraction(),
		x:   floats.LogSpan(make([]float64, cfg.MuN), cfg.XMin, cfg.XMax),
		fm:  make([]float64, cfg.MMax),
		mu:  make([]*mat.Dense, s.Len()),
	}
	for m := 1; m <= cfg.MMax; m++ {
		v.fm[m-1] = fs.Fm(m)
	}

	nprocs := cfg.Workers
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for a := pp; a < s.Len(); a += nprocs {
				v.mu[a] = v.muHat(a)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return v, nil
}

// Grid returns the normalized velocities of the quadrature grid.
func (v *Viscosity) Grid() []float64 { return clone(v.x) }

// fieldSum returns 3√π/4 ξ_a/ρ_a Σ_b f(b, x/x_ab) rate[a,b].
func (v *Viscosity) fieldSum(a int, x float64, f func(b int, y float64) float64) float64 {
	s := v.s
	if !s.Contributing(a) {
		return 0
	}
	var sum float64
	for b := 0; b < s.Len(); b++ {
		r := s.rate.At(a, b)
		if r == 0 {
			continue
		}
		sum += f(b, x/s.xab(a, b)) * r
	}
	return 3 * sqrtPi / 4 * s.xi[a] / s.rho[a] * sum
}

// PitchAngleDiffusionRate returns the pitch-angle scattering frequency
// ν_D [1/s] of state a at normalized velocity x.
func (v *Viscosity) PitchAngleDiffusionRate(a int, x float64) float64 {
	x3 := x * x * x
	return v.fieldSum(a, x, func(_ int, y float64) float64 {
		return (math.Erf(y) - formulary.ChandrasekharG(y)) / x3
	})
}

// KB returns the banana-regime viscosity [1/s] of state a at velocity x.
func (v *Viscosity) KB(a int, x float64) float64 {
	return v.PitchAngleDiffusionRate(a, x) * v.ft / (1 - v.ft)
}

// NuT returns the anisotropy relaxation rate [1/s] of state a at
// velocity x.
func (v *Viscosity) NuT(a int, x float64) float64 {
	s := v.s
	x3 := x * x * x
	return v.fieldSum(a, x, func(b int, y float64) float64 {
		g := formulary.ChandrasekharG(y)
		xab := s.xab(a, b)
		tr := s.temperature[a] / s.temperature[b]
		return (math.Erf(y)-3*g)/x3 + 4*(tr+1/(xab*xab))*g/x
	})
}

// Omega returns the transit frequency [1/s] of poloidal mode m for state
// a at velocity x.
func (v *Viscosity) Omega(a, m int, x float64) float64 {
	return x * v.s.vth[a] * float64(m) * v.fs.Gamma()
}

// KPS returns the Pfirsch-Schlüter viscosity [1/s] of state a at
// velocity x, summed over poloidal modes 1..MMax.
func (v *Viscosity) KPS(a int, x float64) float64 {
	nu := v.NuT(a, x)
	if !(nu > 0) {
		return 0
	}
	var sum float64
	for m := 1; m <= len(v.fm); m++ {
		sum += v.fm[m-1] * b10(nu/v.Omega(a, m, x))
	}
	vt := v.s.vth[a]
	return 1.5 * vt * vt * x * x * sum / nu
}

// b10 is the collisionality dependence of one poloidal mode of the
// Pfirsch-Schlüter viscosity with r = ν/ω. It tends to πr/4 for small r
// and to 2/5 for large r.
func b10(r float64) float64 {
	if r > 100 {
		return 2.0/5 - 22.0/105/(r*r)
	}
	r2 := r * r
	return -1.5*r2 - 4.5*r2*r2 + (0.25+(1.5+2.25*r2)*r2)*2*r*math.Atan(1/r)
}

// K returns the total viscosity [1/s] of state a at velocity x, the
// harmonic combination of the banana and Pfirsch-Schlüter viscosities.
// It is zero where either of them is.
func (v *Viscosity) K(a int, x float64) float64 {
	kb := v.KB(a, x)
	kps := v.KPS(a, x)
	if kb == 0 || kps == 0 {
		return 0
	}
	return 1 / (1/kb + 1/kps)
}

// laguerre returns the Laguerre polynomials of order 3/2 used in the
// viscosity moments, evaluated at x².
func laguerre(x float64) [3]float64 {
	y := x * x
	return [3]float64{1, 2.5 - y, 35.0/8 - 3.5*y + y*y/2}
}

func (v *Viscosity) muHat(a int) *mat.Dense {
	mu := mat.NewDense(3, 3, nil)
	if !v.s.Contributing(a) {
		return mu
	}
	w := make([]float64, len(v.x))
	l := make([][3]float64, len(v.x))
	for i, x := range v.x {
		w[i] = v.K(a, x) * math.Pow(x, 4) * math.Exp(-x*x)
		l[i] = laguerre(x)
	}
	f := make([]float64, len(v.x))
	c := 8 / (3 * sqrtPi) * v.s.rho[a]
	for alpha := 0; alpha < 3; alpha++ {
		for beta := 0; beta < 3; beta++ {
			for i := range f {
				f[i] = w[i] * l[i][alpha] * l[i][beta]
			}
			sign := 1.0
			if (alpha+beta)%2 == 1 {
				sign = -1
			}
			mu.Set(alpha, beta, c*sign*integrate.Trapezoidal(v.x, f))
		}
	}
	return mu
}

// MuHat returns the 3×3 viscosity matrix [kg m-3 s-1] of state a. It is
// zero for states that do not contribute.
func (v *Viscosity) MuHat(a int) *mat.Dense { return mat.DenseCopyOf(v.mu[a]) }
