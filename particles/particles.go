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

// Package particles identifies the ions and electrons that make up a
// plasma: element data, charge-state symbols such as "C 2+" and ion
// masses.
package particles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/plasmaflow/nclass/formulary"
)

// Electron is the symbol used for electrons.
const Electron = "e"

// Element holds the properties of an element or isotope.
type Element struct {
	Symbol       string
	Name         string
	AtomicNumber int
	// AtomicMass is the standard atomic weight in atomic mass units.
	AtomicMass float64
}

var elements = map[string]Element{
	"H":  {"H", "hydrogen", 1, 1.00784},
	"D":  {"D", "deuterium", 1, 2.01410177812},
	"T":  {"T", "tritium", 1, 3.0160492779},
	"He": {"He", "helium", 2, 4.002602},
	"Li": {"Li", "lithium", 3, 6.94},
	"Be": {"Be", "beryllium", 4, 9.0121831},
	"B":  {"B", "boron", 5, 10.81},
	"C":  {"C", "carbon", 6, 12.011},
	"N":  {"N", "nitrogen", 7, 14.007},
	"O":  {"O", "oxygen", 8, 15.999},
	"F":  {"F", "fluorine", 9, 18.998403163},
	"Ne": {"Ne", "neon", 10, 20.1797},
	"Ar": {"Ar", "argon", 18, 39.95},
	"Fe": {"Fe", "iron", 26, 55.845},
	"Kr": {"Kr", "krypton", 36, 83.798},
	"Xe": {"Xe", "xenon", 54, 131.293},
	"W":  {"W", "tungsten", 74, 183.84},
}

// Lookup returns the element with the given symbol.
func Lookup(symbol string) (Element, error) {
	e, ok := elements[symbol]
	if !ok {
		return Element{}, fmt.Errorf("particles: unknown element %q", symbol)
	}
	return e, nil
}

// Elements returns the symbols of all known elements, sorted by atomic
// number.
func Elements() []string {
	o := make([]string, 0, len(elements))
	for s := range elements {
		o = append(o, s)
	}
	sort.Slice(o, func(i, j int) bool {
		ei, ej := elements[o[i]], elements[o[j]]
		if ei.AtomicNumber != ej.AtomicNumber {
			return ei.AtomicNumber < ej.AtomicNumber
		}
		return ei.AtomicMass < ej.AtomicMass
	})
	return o
}

// Symbol returns the symbol of the charge state of element with charge
// number z, for example "C 2+". Electrons are "e-".
func Symbol(element string, z int) string {
	if element == Electron {
		return "e-"
	}
	if z < 0 {
		return fmt.Sprintf("%s %d-", element, -z)
	}
	return fmt.Sprintf("%s %d+", element, z)
}

// Parse splits a charge-state symbol such as "C 2+" into its element and
// charge number. "e-" is an electron and a bare element symbol is neutral.
func Parse(s string) (element string, z int, err error) {
	s = strings.TrimSpace(s)
	if s == "e-" || s == "e" || s == "electron" {
		return Electron, -1, nil
	}
	f := strings.Fields(s)
	switch len(f) {
	case 1:
		return f[0], 0, nil
	case 2:
	default:
		return "", 0, fmt.Errorf("particles: invalid charge-state symbol %q", s)
	}
	c := f[1]
	sign := 1
	switch {
	case strings.HasSuffix(c, "+"):
	case strings.HasSuffix(c, "-"):
		sign = -1
	default:
		return "", 0, fmt.Errorf("particles: charge in %q must end in + or -", s)
	}
	z, err = strconv.Atoi(c[:len(c)-1])
	if err != nil || z < 0 {
		return "", 0, fmt.Errorf("particles: invalid charge in %q", s)
	}
	return f[0], sign * z, nil
}

// Mass returns the mass [kg] of the charge state of element with charge
// number z: the atomic mass less the mass of the missing electrons.
func Mass(element string, z int) (float64, error) {
	if element == Electron {
		return formulary.ElectronMass, nil
	}
	e, err := Lookup(element)
	if err != nil {
		return 0, err
	}
	if z > e.AtomicNumber {
		return 0, fmt.Errorf("particles: %s has no charge state %d", element, z)
	}
	return e.AtomicMass*formulary.AtomicMassUnit - float64(z)*formulary.ElectronMass, nil
}

// ChargeStates returns the charge numbers 0 through Z of element.
// Electrons have the single charge number -1.
func ChargeStates(element string) ([]int, error) {
	if element == Electron {
		return []int{-1}, nil
	}
	e, err := Lookup(element)
	if err != nil {
		return nil, err
	}
	o := make([]int, e.AtomicNumber+1)
	for i := range o {
		o[i] = i
	}
	return o, nil
}
