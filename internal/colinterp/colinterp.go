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

// Package colinterp maps column values between a possibly unequally
// spaced storage grid and an equally spaced fine grid.
package colinterp

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadGrid is returned when the storage grid is not usable.
var ErrBadGrid = errors.New("colinterp: invalid vertical grid")

// uniformTolerance is the largest difference between the largest and
// smallest storage-grid spacing for which the grid counts as uniform.
const uniformTolerance = 1e-8

// Interpolation holds a storage grid, the fine grid derived from it,
// and the bracketing indices between the two.
type Interpolation struct {
	zCoarse, zFine []float64

	// coarse2fine[k] is the storage level bracketing fine level k from below.
	coarse2fine []int
	// fine2coarse[k] is the fine level bracketing storage level k from below.
	fine2coarse []int

	linear bool
}

// New creates an Interpolation for the storage levels z, which must be
// strictly increasing and contain at least two levels.
func New(z []float64) (*Interpolation, error) {
	if len(z) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 levels, have %d", ErrBadGrid, len(z))
	}
	for k := 1; k < len(z); k++ {
		if !(z[k] > z[k-1]) {
			return nil, fmt.Errorf("%w: levels %d and %d are not increasing (%g, %g)",
				ErrBadGrid, k-1, k, z[k-1], z[k])
		}
	}
	ci := &Interpolation{zCoarse: append([]float64(nil), z...)}
	ci.initFineGrid()
	ci.initIndices()
	return ci, nil
}

func (ci *Interpolation) initFineGrid() {
	Lz := ci.zCoarse[len(ci.zCoarse)-1]
	dz := Lz
	for k := 1; k < len(ci.zCoarse); k++ {
		dz = math.Min(dz, ci.zCoarse[k]-ci.zCoarse[k-1])
	}
	mz := int(math.Ceil(Lz/dz)) + 1
	dz = Lz / float64(mz-1)

	// The top fine level may lie slightly above Lz.
	ci.zFine = make([]float64, mz)
	for k := range ci.zFine {
		ci.zFine[k] = ci.zCoarse[0] + float64(k)*dz
	}
}

func (ci *Interpolation) initIndices() {
	mz, mzFine := len(ci.zCoarse), len(ci.zFine)
	Lz := ci.zCoarse[mz-1]

	ci.coarse2fine = make([]int, mzFine)
	m := 0
	for k := 0; k < mzFine; k++ {
		if ci.zFine[k] >= Lz {
			ci.coarse2fine[k] = mz - 1
			continue
		}
		for ci.zCoarse[m+1] < ci.zFine[k] {
			m++
		}
		ci.coarse2fine[k] = m
	}

	ci.fine2coarse = make([]int, mz)
	m = 0
	for k := 0; k < mz; k++ {
		for m < mzFine-1 && ci.zFine[m+1] < ci.zCoarse[k] {
			m++
		}
		ci.fine2coarse[k] = m
	}

	dzMin, dzMax := Lz, 0.
	for k := 0; k < mz-1; k++ {
		dz := ci.zCoarse[k+1] - ci.zCoarse[k]
		dzMin = math.Min(dz, dzMin)
		dzMax = math.Max(dz, dzMax)
	}
	ci.linear = math.Abs(dzMax-dzMin) <= uniformTolerance
}

// Mz returns the number of storage levels.
func (ci *Interpolation) Mz() int { return len(ci.zCoarse) }

// MzFine returns the number of fine levels.
func (ci *Interpolation) MzFine() int { return len(ci.zFine) }

// DzFine returns the fine grid spacing.
func (ci *Interpolation) DzFine() float64 { return ci.zFine[1] - ci.zFine[0] }

// Coarse returns the storage levels. The result must not be modified.
func (ci *Interpolation) Coarse() []float64 { return ci.zCoarse }

// Fine returns the fine levels. The result must not be modified.
func (ci *Interpolation) Fine() []float64 { return ci.zFine }

// UseLinear reports whether the storage grid is uniform, in which case
// CoarseToFine interpolates linearly. Otherwise it uses local
// quadratic interpolation.
func (ci *Interpolation) UseLinear() bool { return ci.linear }

// CoarseToFine interpolates in, defined on the storage levels, onto the
// fine levels and writes the result to out. Only fine levels up to and
// including ks are interpolated; values above ks are held constant.
func (ci *Interpolation) CoarseToFine(in []float64, ks int, out []float64) {
	if ci.linear {
		ci.coarseToFineLinear(in, ks, out)
	} else {
		ci.coarseToFineQuadratic(in, ks, out)
	}
}

func (ci *Interpolation) coarseToFineLinear(in []float64, ks int, out []float64) {
	mz := ci.Mz()
	for k := range ci.zFine {
		m := ci.coarse2fine[k]
		if k > ks || m == mz-1 {
			out[k] = in[m]
			continue
		}
		incr := (ci.zFine[k] - ci.zCoarse[m]) / (ci.zCoarse[m+1] - ci.zCoarse[m])
		out[k] = in[m] + incr*(in[m+1]-in[m])
	}
}

func (ci *Interpolation) coarseToFineQuadratic(in []float64, ks int, out []float64) {
	mz, mzFine := ci.Mz(), ci.MzFine()
	k, m := 0, 0
	for m = 0; m < mz-2; m++ {
		if k > ks {
			break
		}
		z0, z1, z2 := ci.zCoarse[m], ci.zCoarse[m+1], ci.zCoarse[m+2]
		f0, f1, f2 := in[m], in[m+1], in[m+2]
		d1 := (f1 - f0) / (z1 - z0)
		d2 := (f2 - f0) / (z2 - z0)
		b := (d2 - d1) / (z2 - z1)
		a := d1 - b*(z1-z0)
		for k < mzFine && k <= ks && ci.zFine[k] < z1 {
			s := ci.zFine[k] - z0
			out[k] = s*(a+b*s) + f0
			k++
		}
	}

	// Linear between the last two storage levels.
	if m == mz-2 {
		z0, z1 := ci.zCoarse[m], ci.zCoarse[m+1]
		f0, f1 := in[m], in[m+1]
		slope := (f1 - f0) / (z1 - z0)
		for k < mzFine && k <= ks && ci.zFine[k] < z1 {
			out[k] = f0 + slope*(ci.zFine[k]-z0)
			k++
		}
	}

	top := in[mz-1]
	for ; k <= ks && k < mzFine; k++ {
		out[k] = top
	}
	for ; k < mzFine; k++ {
		out[k] = in[ci.coarse2fine[k]]
	}
}

// FineToCoarse interpolates in, defined on the fine levels, back onto
// the storage levels and writes the result to out. The top storage
// level takes the value of the nearest fine level.
func (ci *Interpolation) FineToCoarse(in []float64, out []float64) {
	n := ci.Mz()
	for k := 0; k < n-1; k++ {
		m := ci.fine2coarse[k]
		incr := (ci.zCoarse[k] - ci.zFine[m]) / (ci.zFine[m+1] - ci.zFine[m])
		out[k] = in[m] + incr*(in[m+1]-in[m])
	}
	m := ci.fine2coarse[n-1]
	if m+1 < ci.MzFine() &&
		math.Abs(ci.zFine[m+1]-ci.zCoarse[n-1]) < math.Abs(ci.zCoarse[n-1]-ci.zFine[m]) {
		m++
	}
	out[n-1] = in[m]
}
