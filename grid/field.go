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

package grid

import (
	"github.com/ctessum/sparse"
)

// Field is a ghosted field that can take part in a halo exchange.
type Field interface {
	ghosted() *storage
}

// storage holds the values of a field on one patch, including ghosts.
// The backing array has shape (Ym+2, Xm+2, nz) so that the values of one
// column are contiguous.
type storage struct {
	name  string
	patch Patch
	nz    int
	a     *sparse.DenseArray
}

func newStorage(name string, p Patch, nz int) *storage {
	return &storage{
		name:  name,
		patch: p,
		nz:    nz,
		a:     sparse.ZerosDense(p.Ym+2*GhostWidth, p.Xm+2*GhostWidth, nz),
	}
}

func (s *storage) ghosted() *storage { return s }

// offset returns the position of level 0 of column (i, j) in the
// backing array. i and j are global indices, and may refer to ghosts.
func (s *storage) offset(i, j int) int {
	return s.a.Index1d(j-s.patch.Ys+GhostWidth, i-s.patch.Xs+GhostWidth, 0)
}

// column returns the values of column (i, j). The result aliases the
// field.
func (s *storage) column(i, j int) []float64 {
	o := s.offset(i, j)
	return s.a.Elements[o : o+s.nz : o+s.nz]
}

func (s *storage) fill(v float64) {
	for n := range s.a.Elements {
		s.a.Elements[n] = v
	}
}

// owned returns a copy of the owned values with shape (Ym, Xm, nz).
func (s *storage) owned() *sparse.DenseArray {
	p := s.patch
	out := sparse.ZerosDense(p.Ym, p.Xm, s.nz)
	n := 0
	for j := p.Ys; j < p.Ys+p.Ym; j++ {
		for i := p.Xs; i < p.Xs+p.Xm; i++ {
			n += copy(out.Elements[n:], s.column(i, j))
		}
	}
	return out
}

// Field2D is a ghosted scalar field on the horizontal grid.
type Field2D struct {
	*storage
}

// NewField2D returns a zero-valued field on patch p.
func NewField2D(name string, p Patch) *Field2D {
	return &Field2D{newStorage(name, p, 1)}
}

// Name returns the name of the field.
func (f *Field2D) Name() string { return f.name }

// Patch returns the patch the field is defined on.
func (f *Field2D) Patch() Patch { return f.patch }

// Get returns the value in cell (i, j), which must be owned or a ghost.
func (f *Field2D) Get(i, j int) float64 { return f.a.Elements[f.offset(i, j)] }

// Set sets the value in cell (i, j).
func (f *Field2D) Set(i, j int, v float64) { f.a.Elements[f.offset(i, j)] = v }

// Fill sets every cell, ghosts included, to v.
func (f *Field2D) Fill(v float64) { f.fill(v) }

// Owned returns a copy of the owned values with shape (Ym, Xm).
func (f *Field2D) Owned() *sparse.DenseArray {
	out := sparse.ZerosDense(f.patch.Ym, f.patch.Xm)
	copy(out.Elements, f.owned().Elements)
	return out
}

// CopyFrom copies all values, ghosts included, from g, which must be
// defined on the same patch.
func (f *Field2D) CopyFrom(g *Field2D) { copy(f.a.Elements, g.a.Elements) }

// Field3D is a ghosted field with Nz vertical levels in each column.
type Field3D struct {
	*storage
}

// NewField3D returns a zero-valued field with nz levels on patch p.
func NewField3D(name string, p Patch, nz int) *Field3D {
	return &Field3D{newStorage(name, p, nz)}
}

// Name returns the name of the field.
func (f *Field3D) Name() string { return f.name }

// Patch returns the patch the field is defined on.
func (f *Field3D) Patch() Patch { return f.patch }

// Nz returns the number of vertical levels.
func (f *Field3D) Nz() int { return f.nz }

// Get returns the value at level k of column (i, j).
func (f *Field3D) Get(i, j, k int) float64 { return f.a.Elements[f.offset(i, j)+k] }

// Set sets the value at level k of column (i, j).
func (f *Field3D) Set(i, j, k int, v float64) { f.a.Elements[f.offset(i, j)+k] = v }

// Column returns column (i, j). The result aliases the field, so it
// must not be modified for ghost columns.
func (f *Field3D) Column(i, j int) []float64 { return f.column(i, j) }

// SetColumn copies vals into column (i, j).
func (f *Field3D) SetColumn(i, j int, vals []float64) { copy(f.column(i, j), vals) }

// Fill sets every value, ghosts included, to v.
func (f *Field3D) Fill(v float64) { f.fill(v) }

// Owned returns a copy of the owned values with shape (Ym, Xm, Nz).
func (f *Field3D) Owned() *sparse.DenseArray { return f.owned() }

// CopyFrom copies all values, ghosts included, from g, which must be
// defined on the same patch with the same number of levels.
func (f *Field3D) CopyFrom(g *Field3D) { copy(f.a.Elements, g.a.Elements) }

// Star holds the value at a point and its four horizontal neighbours.
type Star struct {
	IJ, E, W, N, S float64
}

// PlaneStar returns the values at level k of column (i, j) and of its
// east, west, north and south neighbours. (i, j) must be owned.
func (f *Field3D) PlaneStar(i, j, k int) Star {
	return Star{
		IJ: f.Get(i, j, k),
		E:  f.Get(i+1, j, k),
		W:  f.Get(i-1, j, k),
		N:  f.Get(i, j+1, k),
		S:  f.Get(i, j-1, k),
	}
}
