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
	"fmt"
	"math"

	"github.com/ctessum/unit"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// Geometry holds the samples of a closed flux-surface contour in the
// poloidal plane together with the magnetic field and the radial
// derivatives of its poloidal components at each sample. The contour
// is closed implicitly: the last sample connects back to the first.
type Geometry struct {
	R, Z     Array // m
	Br, Bz   Array // T
	Bphi     Array // T
	DBr, DBz Array // T/m
}

// FluxSurface is a single closed magnetic flux surface. All derived
// quantities are computed when it is created and it is not modified
// afterwards, so it is safe for concurrent use.
type FluxSurface struct {
	psi float64

	r, z, br, bz, bphi, dbr, dbz []float64

	bp, b2, b []float64

	// lp is the arc length at each sample, with the total length of the
	// closed contour appended.
	lp []float64

	theta []float64
	gamma float64

	// norm is the flux-surface integral of 1/Bp.
	norm float64

	bmax, bmin float64

	ft, ftu, ftl float64
}

// NewFluxSurface creates a flux surface labeled by the poloidal flux psi
// from the contour samples in g.
func NewFluxSurface(psi *unit.Unit, g Geometry) (*FluxSurface, error) {
	p, err := checkUnit(psi, Weber, "psi")
	if err != nil {
		return nil, err
	}
	if err := g.check(); err != nil {
		return nil, err
	}
	fs := &FluxSurface{
		psi:  p,
		r:    clone(g.R.Values),
		z:    clone(g.Z.Values),
		br:   clone(g.Br.Values),
		bz:   clone(g.Bz.Values),
		bphi: clone(g.Bphi.Values),
		dbr:  clone(g.DBr.Values),
		dbz:  clone(g.DBz.Values),
	}
	fs.dropClosingSample()
	if err := fs.init(); err != nil {
		return nil, err
	}
	return fs, nil
}

// check makes sure the geometry arrays are consistent.
func (g Geometry) check() error {
	var merr *multierror.Error
	type field struct {
		name string
		a    Array
		d    unit.Dimensions
	}
	fields := []field{
		{"R", g.R, unit.Meter}, {"Z", g.Z, unit.Meter},
		{"Br", g.Br, Tesla}, {"Bz", g.Bz, Tesla}, {"Bphi", g.Bphi, Tesla},
		{"dBr", g.DBr, TeslaPerMeter}, {"dBz", g.DBz, TeslaPerMeter},
	}
	n := g.R.Len()
	for _, f := range fields {
		if err := f.a.Check(f.d); err != nil {
			return errors.Wrapf(err, "geometry %s", f.name)
		}
		if f.a.Len() != n {
			merr = multierror.Append(merr, fmt.Errorf("%s has %d samples; R has %d", f.name, f.a.Len(), n))
		}
		if !finite(f.a.Values...) {
			merr = multierror.Append(merr, fmt.Errorf("%s has non-finite values", f.name))
		}
	}
	if n < 4 {
		merr = multierror.Append(merr, fmt.Errorf("%d samples is too few; need at least 4", n))
	}
	if merr != nil {
		return errors.Wrap(ErrGeometry, merr.Error())
	}
	return nil
}

// dropClosingSample removes a final sample that repeats the first one.
func (fs *FluxSurface) dropClosingSample() {
	n := len(fs.r)
	scale := math.Abs(fs.r[0]) + math.Abs(fs.z[0]) + 1
	if math.Hypot(fs.r[n-1]-fs.r[0], fs.z[n-1]-fs.z[0]) > 1e-12*scale {
		return
	}
	for _, v := range []*[]float64{&fs.r, &fs.z, &fs.br, &fs.bz, &fs.bphi, &fs.dbr, &fs.dbz} {
		*v = (*v)[:n-1]
	}
}

func (fs *FluxSurface) init() error {
	n := len(fs.r)
	fs.bp = make([]float64, n)
	fs.b2 = make([]float64, n)
	fs.b = make([]float64, n)
	for i := range fs.r {
		fs.bp[i] = math.Hypot(fs.br[i], fs.bz[i])
		if fs.bp[i] == 0 {
			return errors.Wrapf(ErrGeometry, "poloidal field is zero at sample %d", i)
		}
		fs.b2[i] = fs.bp[i]*fs.bp[i] + fs.bphi[i]*fs.bphi[i]
		fs.b[i] = math.Sqrt(fs.b2[i])
	}
	fs.bmax = floats.Max(fs.b)
	fs.bmin = floats.Min(fs.b)

	fs.lp = make([]float64, n+1)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dl := math.Hypot(fs.r[j]-fs.r[i], fs.z[j]-fs.z[i])
		if dl == 0 {
			return errors.Wrapf(ErrGeometry, "samples %d and %d coincide", i, j)
		}
		fs.lp[i+1] = fs.lp[i] + dl
	}

	fs.norm = fs.contourIntegral(func(i int) float64 { return 1 / fs.bp[i] })

	// Θ is the integral of B/Bp along the contour, normalized so that it
	// advances by 2π over one poloidal turn.
	fs.theta = make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		total += 0.5 * (fs.b[i]/fs.bp[i] + fs.b[j]/fs.bp[j]) * (fs.lp[i+1] - fs.lp[i])
		if j != 0 {
			fs.theta[j] = total
		}
	}
	fs.gamma = 2 * math.Pi / total
	floats.Scale(fs.gamma, fs.theta)

	fs.trappedFraction()
	if !(fs.ft >= 0 && fs.ft < 1) {
		return errors.Wrapf(ErrGeometry, "trapped fraction %g is outside [0, 1)", fs.ft)
	}
	return nil
}

// contourIntegral integrates f around the closed contour with respect to
// arc length using the trapezoidal rule, which is exact for
// re-indexing of the samples.
func (fs *FluxSurface) contourIntegral(f func(i int) float64) float64 {
	n := len(fs.r)
	v := make([]float64, n+1)
	for i := 0; i < n; i++ {
		v[i] = f(i)
	}
	v[n] = v[0]
	return integrate.Trapezoidal(fs.lp, v)
}

// FluxSurfaceAverage returns ⟨q⟩ = ∮(q/Bp)dl / ∮(1/Bp)dl for q sampled
// at the contour points. As with the gonum routines, a q without exactly
// one value per sample is a programmer error and FluxSurfaceAverage
// panics. Use Average for values from outside the program.
func (fs *FluxSurface) FluxSurfaceAverage(q []float64) float64 {
	v, err := fs.Average(q)
	if err != nil {
		panic(err)
	}
	return v
}

// Average is FluxSurfaceAverage returning an ErrGeometry error instead of
// panicking when the length of q does not match the surface.
func (fs *FluxSurface) Average(q []float64) (float64, error) {
	if len(q) != len(fs.r) {
		return 0, errors.Wrapf(ErrGeometry, "average of %d values over %d samples", len(q), len(fs.r))
	}
	return fs.average(func(i int) float64 { return q[i] }), nil
}

func (fs *FluxSurface) average(f func(i int) float64) float64 {
	return fs.contourIntegral(func(i int) float64 { return f(i) / fs.bp[i] }) / fs.norm
}

// trappedFraction calculates the upper and lower bounds of the trapped
// particle fraction and their weighted combination.
func (fs *FluxSurface) trappedFraction() {
	h := func(i int) float64 { return fs.b[i] / fs.bmax }
	hMean := fs.average(h)
	h2Mean := fs.average(func(i int) float64 { return h(i) * h(i) })

	fs.ftu = 1 - h2Mean/(hMean*hMean)*(1-math.Sqrt(1-hMean)*(1+hMean/2))
	fs.ftl = 1 - h2Mean*fs.average(func(i int) float64 {
		hi := h(i)
		return (1 - math.Sqrt(math.Max(1-hi, 0))*(1+hi/2)) / (hi * hi)
	})
	// Both bounds are non-negative.
	fs.ftu = math.Max(fs.ftu, 0)
	fs.ftl = math.Max(fs.ftl, 0)
	fs.ft = 0.75*fs.ftu + 0.25*fs.ftl
}

// Psi returns the flux label of the surface.
func (fs *FluxSurface) Psi() *unit.Unit { return unit.New(fs.psi, Weber) }

// Len returns the number of contour samples.
func (fs *FluxSurface) Len() int { return len(fs.r) }

// TrappedFraction returns the trapped particle fraction f_t.
func (fs *FluxSurface) TrappedFraction() float64 { return fs.ft }

// TrappedFractionUpper returns the upper bound f_tu of the trapped fraction.
func (fs *FluxSurface) TrappedFractionUpper() float64 { return fs.ftu }

// TrappedFractionLower returns the lower bound f_tl of the trapped fraction.
func (fs *FluxSurface) TrappedFractionLower() float64 { return fs.ftl }

// Gamma returns the normalization of Θ [1/m].
func (fs *FluxSurface) Gamma() float64 { return fs.gamma }

// Theta returns the poloidal angle-like coordinate Θ at each sample.
func (fs *FluxSurface) Theta() []float64 { return clone(fs.theta) }

// Bmax returns the maximum field strength on the surface.
func (fs *FluxSurface) Bmax() *unit.Unit { return unit.New(fs.bmax, Tesla) }

// Bmin returns the minimum field strength on the surface.
func (fs *FluxSurface) Bmin() *unit.Unit { return unit.New(fs.bmin, Tesla) }

// B returns the field strength at each sample.
func (fs *FluxSurface) B() Array { return NewArray(clone(fs.b), Tesla) }

// Bp returns the poloidal field strength at each sample.
func (fs *FluxSurface) Bp() Array { return NewArray(clone(fs.bp), Tesla) }

// Bphi returns the toroidal field at each sample.
func (fs *FluxSurface) Bphi() Array { return NewArray(clone(fs.bphi), Tesla) }

// B2Average returns ⟨B²⟩ [T²].
func (fs *FluxSurface) B2Average() float64 {
	return fs.average(func(i int) float64 { return fs.b2[i] })
}

// InvB2Average returns ⟨1/B²⟩ [1/T²].
func (fs *FluxSurface) InvB2Average() float64 {
	return fs.average(func(i int) float64 { return 1 / fs.b2[i] })
}

// BDotGradThetaAverage returns ⟨B·∇Θ⟩ [T/m]. Along the contour
// B·∇Θ = Bp dΘ/dl = gamma B.
func (fs *FluxSurface) BDotGradThetaAverage() float64 {
	return fs.gamma * fs.average(func(i int) float64 { return fs.b[i] })
}

// Fhat returns the dimensionless ratio ⟨R Bφ⟩/⟨R Bp⟩ that converts
// radial gradients into the flux-function forces of the flow equations.
func (fs *FluxSurface) Fhat() float64 {
	rbt := fs.average(func(i int) float64 { return fs.r[i] * fs.bphi[i] })
	return rbt / fs.rbpAverage()
}

func (fs *FluxSurface) rbpAverage() float64 {
	return fs.average(func(i int) float64 { return fs.r[i] * fs.bp[i] })
}

// GradRho2OverB2Average returns ⟨|∇ρ|²/B²⟩ [1/T²] where ρ is the radial
// coordinate normalized so that |∇ρ| = R Bp / ⟨R Bp⟩.
func (fs *FluxSurface) GradRho2OverB2Average() float64 {
	rbp := fs.rbpAverage()
	return fs.average(func(i int) float64 {
		g := fs.r[i] * fs.bp[i] / rbp
		return g * g / fs.b2[i]
	})
}

// b20 returns Br dBr + Bz dBz at sample i.
func (fs *FluxSurface) b20(i int) float64 {
	return fs.br[i]*fs.dbr[i] + fs.bz[i]*fs.dbz[i]
}

// Fm returns the weight of poloidal mode m in the Pfirsch-Schlüter
// viscosity [1/m²].
func (fs *FluxSurface) Fm(m int) float64 {
	mf := float64(m)
	sin := func(i int) float64 { return math.Sin(mf * fs.theta[i]) }
	cos := func(i int) float64 { return math.Cos(mf * fs.theta[i]) }

	b15 := fs.average(func(i int) float64 { return sin(i) * fs.b20(i) / fs.b[i] })
	b16 := fs.gamma * fs.average(func(i int) float64 { return sin(i) * fs.b20(i) })
	b15c := fs.average(func(i int) float64 { return cos(i) * fs.b20(i) / fs.b[i] })
	b16c := fs.gamma * fs.average(func(i int) float64 { return cos(i) * fs.b20(i) })

	return 2 / fs.B2Average() / fs.BDotGradThetaAverage() * (b15*b16 + b15c*b16c)
}

// B17 returns ⟨(B20/B)²⟩/⟨B²⟩, a diagnostic of the field-line
// curvature term used in the mode weights.
func (fs *FluxSurface) B17() float64 {
	v := fs.average(func(i int) float64 {
		x := fs.b20(i) / fs.b[i]
		return x * x
	})
	return v / fs.B2Average()
}

// CircularGeometry returns the contour samples of a surface with minor
// radius a [m] in a large-aspect-ratio circular tokamak with major radius
// r0 [m], on-axis toroidal field b0 [T] and safety factor q, sampled at
// n equally spaced poloidal angles.
func CircularGeometry(r0, a, b0, q float64, n int) Geometry {
	R := make([]float64, n)
	Z := make([]float64, n)
	br := make([]float64, n)
	bz := make([]float64, n)
	bphi := make([]float64, n)
	dbr := make([]float64, n)
	dbz := make([]float64, n)
	eps := a / r0
	for i := 0; i < n; i++ {
		th := 2 * math.Pi * float64(i) / float64(n)
		s, c := math.Sincos(th)
		f := 1 / (1 + eps*c)
		R[i] = r0 + a*c
		Z[i] = a * s
		bphi[i] = b0 * f
		btheta := eps * b0 * f / q
		br[i] = -btheta * s
		bz[i] = btheta * c
		dbtheta := b0 / (q * r0) * f * f
		dbr[i] = -dbtheta * s
		dbz[i] = dbtheta * c
	}
	return Geometry{
		R:    NewArray(R, unit.Meter),
		Z:    NewArray(Z, unit.Meter),
		Br:   NewArray(br, Tesla),
		Bz:   NewArray(bz, Tesla),
		Bphi: NewArray(bphi, Tesla),
		DBr:  NewArray(dbr, TeslaPerMeter),
		DBz:  NewArray(dbz, TeslaPerMeter),
	}
}
