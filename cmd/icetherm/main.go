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

// Command icetherm is a command-line interface for the IceTherm ice
// sheet energy model.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/icetherm/icethermutil"
)

func main() {
	if err := icethermutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
