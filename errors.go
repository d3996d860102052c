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

package icetherm

import (
	"errors"
	"fmt"

	"github.com/spatialmodel/icetherm/science/energy"
)

var (
	// ErrZeroPivot is returned when a column's tridiagonal system
	// meets a zero pivot. The column is usually numerically corrupt.
	ErrZeroPivot = errors.New("icetherm: zero pivot in tridiagonal solve")

	// ErrLevelOutOfRange is returned when the ice is thicker than the
	// computational domain.
	ErrLevelOutOfRange = energy.ErrLevelOutOfRange
)

// ColumnError reports a fatal failure in one column. Row is the
// one-based pivot row for ErrZeroPivot, or the fine level involved
// otherwise.
type ColumnError struct {
	I, J int
	Row  int
	Err  error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("icetherm: column (%d, %d), row %d: %v", e.I, e.J, e.Row, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }
