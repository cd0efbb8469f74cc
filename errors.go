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

	"github.com/pkg/errors"
)

var (
	// ErrGeometry is returned when flux-surface samples are inconsistent.
	ErrGeometry = errors.New("nclass: invalid flux-surface geometry")

	// ErrNotImplemented is returned for requested physics that is not
	// available, such as orbit squeezing.
	ErrNotImplemented = errors.New("nclass: not implemented")

	// ErrMissingGradient is returned when gradients are required but a
	// contributing charge state does not have them.
	ErrMissingGradient = errors.New("nclass: missing gradient")

	// ErrSingular indicates a linear system could not be solved.
	ErrSingular = errors.New("nclass: singular matrix")

	// ErrDimension indicates a quantity had the wrong physical dimensions.
	ErrDimension = errors.New("nclass: dimension mismatch")

	// ErrEmptySpecies is returned when no charge states are given.
	ErrEmptySpecies = errors.New("nclass: no charge states")

	// ErrInvalidState is returned for charge states with impossible
	// properties, such as negative densities or repeated charge numbers.
	ErrInvalidState = errors.New("nclass: invalid charge state")

	// ErrUnknownState is returned when a symbol does not name a charge state.
	ErrUnknownState = errors.New("nclass: unknown charge state")

	// ErrConfig is returned for invalid solver configurations.
	ErrConfig = errors.New("nclass: invalid configuration")
)

// SingularMatrixError reports which linear solve failed. ChargeState is
// empty when the coupled system of all species failed.
type SingularMatrixError struct {
	Species     string
	ChargeState string
	Err         error
}

func (e *SingularMatrixError) Error() string {
	if e.ChargeState == "" {
		return fmt.Sprintf("%v: coupled species system: %v", ErrSingular, e.Err)
	}
	return fmt.Sprintf("%v: species %s, charge state %s: %v", ErrSingular,
		e.Species, e.ChargeState, e.Err)
}

// Unwrap allows errors.Is(err, ErrSingular).
func (e *SingularMatrixError) Unwrap() error { return ErrSingular }
