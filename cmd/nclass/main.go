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

// Command nclass is a command-line interface for the nclass neoclassical
// transport solver.
package main

import (
	"fmt"
	"os"

	"github.com/plasmaflow/nclass/nclassutil"
)

func main() {
	if err := nclassutil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
