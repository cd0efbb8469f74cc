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

// Package hash creates keys that identify the inputs of a flow
// calculation.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a hash key for the specified objects. Objects that gob
// cannot encode, such as types without exported fields, are hashed from
// their spew representation instead.
func Hash(objects ...interface{}) string {
	h := fnv.New128a()
	for _, object := range objects {
		fmt.Fprintf(h, "%T|", object)
		if err := gob.NewEncoder(h).Encode(object); err != nil {
			printer.Fprintf(h, "%#v", object)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
