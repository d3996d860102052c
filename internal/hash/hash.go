/*
Copyright © 2024 the IceTherm authors.
This file is part of IceTherm.

IceTherm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IceTherm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IceTherm.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash computes short keys identifying model configurations,
// so that log files from different runs can be matched to the settings
// that produced them.
package hash

import (
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

// Hash returns a hash key for the value of object. Pointers are
// followed and map keys are sorted, so equal values give equal keys
// even when NaN values are present.
func Hash(object interface{}) string {
	h := fnv.New64a()
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Dump returns the printed form of object that Hash is computed from.
func Dump(object interface{}) string {
	return printer.Sprintf("%#v", object)
}
