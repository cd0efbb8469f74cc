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
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds the numerical settings of a flow calculation.
type Config struct {
	// MuN is the number of points in the logarithmic velocity grid used
	// for the viscosity integrals.
	MuN int

	// MMax is the number of poloidal Fourier modes in the
	// Pfirsch-Schlüter viscosity.
	MMax int

	// XMin and XMax bound the normalized velocity grid.
	XMin, XMax float64

	// CoulombLogarithm, if positive, is used for all collision pairs
	// instead of a value computed for each pair.
	CoulombLogarithm float64

	// OrbitSqueezing requests the orbit-squeezing correction to the
	// banana viscosity, which is not available.
	OrbitSqueezing bool

	// StrictGradients makes a missing gradient on a contributing charge
	// state an error instead of being treated as zero.
	StrictGradients bool

	// Workers is the number of goroutines used for the viscosity
	// integrals. Zero means runtime.GOMAXPROCS(0).
	Workers int

	// Log receives progress messages. Nil means logrus.StandardLogger().
	Log logrus.FieldLogger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MuN:     1000,
		MMax:    100,
		XMin:    0.0015,
		XMax:    10,
		Workers: runtime.GOMAXPROCS(0),
		Log:     logrus.StandardLogger(),
	}
}

// withDefaults fills unset fields from DefaultConfig and validates the
// result.
func (c Config) withDefaults() (Config, error) {
	d := DefaultConfig()
	if c.MuN == 0 {
		c.MuN = d.MuN
	}
	if c.MMax == 0 {
		c.MMax = d.MMax
	}
	if c.XMin == 0 {
		c.XMin = d.XMin
	}
	if c.XMax == 0 {
		c.XMax = d.XMax
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Log == nil {
		c.Log = d.Log
	}
	switch {
	case c.MuN < 2:
		return c, errors.Wrapf(ErrConfig, "MuN must be at least 2, got %d", c.MuN)
	case c.MMax < 1:
		return c, errors.Wrapf(ErrConfig, "MMax must be positive, got %d", c.MMax)
	case c.XMin <= 0 || c.XMax <= c.XMin:
		return c, errors.Wrapf(ErrConfig, "velocity grid [%g, %g] is invalid", c.XMin, c.XMax)
	case c.CoulombLogarithm < 0:
		return c, errors.Wrapf(ErrConfig, "negative Coulomb logarithm %g", c.CoulombLogarithm)
	}
	return c, nil
}
