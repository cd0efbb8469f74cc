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

// Package nclass calculates the neoclassical parallel flows and the
// radial particle and heat fluxes of every charge state of a multi-species
// plasma on one axisymmetric flux surface, in all collisionality regimes.
//
// A calculation starts from a FluxSurface built from contour samples of
// the magnetic field and a list of ChargeState profiles. NewFlowSolver
// collects the collision matrices (SpeciesMatrixSet) and the viscosity
// coefficients (Viscosity), solves the coupled parallel force balance,
// and splits the fluxes into banana-plateau, Pfirsch-Schlüter and
// classical parts.
package nclass

// Version gives the version number.
const Version = "0.1.0"
