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

// Package grid provides the structured horizontal grid, its
// decomposition into rectangular patches owned by ranks, ghosted 2D and
// 3D fields and the collective operations (halo exchange, reductions)
// between ranks.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// GhostWidth is the number of ghost cells on each side of a patch.
const GhostWidth = 1

// ErrBadGrid is returned when a grid or decomposition is invalid.
var ErrBadGrid = errors.New("grid: invalid grid")

// Grid describes the global computational grid.
type Grid struct {
	Mx, My int     // number of cells in the x and y directions
	Dx, Dy float64 // horizontal spacing [m]

	// Zlevels holds the heights of the ice storage levels above the
	// ice base [m], starting at zero and strictly increasing.
	Zlevels []float64

	// Mbz is the number of bedrock levels, including the bedrock
	// surface. BedrockDepth is the thickness of the bedrock thermal
	// layer [m].
	Mbz          int
	BedrockDepth float64
}

// Check returns an error if g cannot be used.
func (g Grid) Check() error {
	if g.Mx < 1 || g.My < 1 {
		return fmt.Errorf("%w: %d×%d cells", ErrBadGrid, g.Mx, g.My)
	}
	if !(g.Dx > 0) || !(g.Dy > 0) {
		return fmt.Errorf("%w: spacing %g×%g m", ErrBadGrid, g.Dx, g.Dy)
	}
	if len(g.Zlevels) < 2 || g.Zlevels[0] != 0 {
		return fmt.Errorf("%w: ice levels must start at 0 and have at least 2 levels", ErrBadGrid)
	}
	for k := 1; k < len(g.Zlevels); k++ {
		if !(g.Zlevels[k] > g.Zlevels[k-1]) {
			return fmt.Errorf("%w: ice levels %d and %d are not increasing", ErrBadGrid, k-1, k)
		}
	}
	if g.Mbz < 1 || g.BedrockDepth < 0 {
		return fmt.Errorf("%w: %d bedrock levels, depth %g m", ErrBadGrid, g.Mbz, g.BedrockDepth)
	}
	return nil
}

// Lz returns the height of the top storage level.
func (g Grid) Lz() float64 { return g.Zlevels[len(g.Zlevels)-1] }

// Mz returns the number of ice storage levels.
func (g Grid) Mz() int { return len(g.Zlevels) }

// X returns the x coordinate of the center of cell column i.
func (g Grid) X(i int) float64 { return (float64(i) - 0.5*float64(g.Mx-1)) * g.Dx }

// Y returns the y coordinate of the center of cell row j.
func (g Grid) Y(j int) float64 { return (float64(j) - 0.5*float64(g.My-1)) * g.Dy }

// EquallySpaced returns n storage levels evenly spaced from 0 to Lz.
func EquallySpaced(Lz float64, n int) []float64 {
	z := make([]float64, n)
	for k := range z {
		z[k] = Lz * float64(k) / float64(n-1)
	}
	return z
}

// Quadratic returns n storage levels from 0 to Lz that are finer near
// the base. lambda is the ratio of the spacing at the top to the
// spacing at the base of an equally spaced grid and must be >= 1.
func Quadratic(Lz float64, n int, lambda float64) []float64 {
	z := make([]float64, n)
	for k := range z {
		zeta := float64(k) / float64(n-1)
		z[k] = Lz * ((zeta / lambda) * (1 + (lambda-1)*zeta))
	}
	return z
}

// Patch is the part of the grid owned by one rank. Owned cells have
// global indices Xs <= i < Xs+Xm and Ys <= j < Ys+Ym.
type Patch struct {
	Rank   int
	Rx, Ry int // position of the patch in the rank layout
	Xs, Xm int
	Ys, Ym int

	grid Grid
}

// Grid returns the global grid the patch belongs to.
func (p Patch) Grid() Grid { return p.grid }

// Owns reports whether cell (i, j) is owned by the patch.
func (p Patch) Owns(i, j int) bool {
	return i >= p.Xs && i < p.Xs+p.Xm && j >= p.Ys && j < p.Ys+p.Ym
}

// Len returns the number of owned columns.
func (p Patch) Len() int { return p.Xm * p.Ym }

// Cell returns the global indices of the n-th owned column, counting
// in raster order with i varying fastest.
func (p Patch) Cell(n int) (i, j int) {
	return p.Xs + n%p.Xm, p.Ys + n/p.Xm
}

// Decompose splits g into px × py patches of nearly equal size. Rank
// r = Ry*px + Rx owns patch r.
func (g Grid) Decompose(px, py int) ([]Patch, error) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	if px < 1 || py < 1 || px > g.Mx || py > g.My {
		return nil, fmt.Errorf("%w: cannot split %d×%d cells over %d×%d ranks",
			ErrBadGrid, g.Mx, g.My, px, py)
	}
	xs, xm := split(g.Mx, px)
	ys, ym := split(g.My, py)
	patches := make([]Patch, 0, px*py)
	for ry := 0; ry < py; ry++ {
		for rx := 0; rx < px; rx++ {
			patches = append(patches, Patch{
				Rank: ry*px + rx,
				Rx:   rx,
				Ry:   ry,
				Xs:   xs[rx],
				Xm:   xm[rx],
				Ys:   ys[ry],
				Ym:   ym[ry],
				grid: g,
			})
		}
	}
	return patches, nil
}

// split divides n cells over p ranks, giving the first n%p ranks one
// extra cell.
func split(n, p int) (start, size []int) {
	start = make([]int, p)
	size = make([]int, p)
	s := 0
	for r := 0; r < p; r++ {
		size[r] = n / p
		if r < n%p {
			size[r]++
		}
		start[r] = s
		s += size[r]
	}
	return start, size
}

// Layout returns a px × py rank layout for n ranks that keeps patches
// as close to square as possible.
func (g Grid) Layout(n int) (px, py int) {
	best := math.Inf(1)
	px, py = n, 1
	for x := 1; x <= n; x++ {
		if n%x != 0 {
			continue
		}
		y := n / x
		if x > g.Mx || y > g.My {
			continue
		}
		aspect := math.Abs(math.Log((float64(g.Mx) / float64(x)) / (float64(g.My) / float64(y))))
		if aspect < best {
			best = aspect
			px, py = x, y
		}
	}
	return px, py
}
