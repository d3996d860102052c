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
	"context"
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
	"golang.org/x/sync/errgroup"
)

// ErrCollective is returned when ranks disagree about a collective
// operation.
var ErrCollective = errors.New("grid: mismatched collective operation")

// A halo message carries the strips of every field in one exchange.
type haloMsg [][]float64

// A rootMsg carries one rank's contribution to a collective that is
// assembled on rank 0.
type rootMsg struct {
	rank int
	vals []float64
}

// World is a set of ranks that each own one patch of a grid and
// communicate through channels. Ranks run as goroutines.
type World struct {
	grid    Grid
	px, py  int
	patches []Patch

	// inbox[r][d] holds halo messages for rank r from the neighbour in
	// direction d.
	inbox [][9]chan haloMsg

	toRoot   chan rootMsg
	fromRoot []chan []float64
}

// NewWorld decomposes g over px × py ranks.
func NewWorld(g Grid, px, py int) (*World, error) {
	patches, err := g.Decompose(px, py)
	if err != nil {
		return nil, err
	}
	n := len(patches)
	w := &World{
		grid:     g,
		px:       px,
		py:       py,
		patches:  patches,
		inbox:    make([][9]chan haloMsg, n),
		toRoot:   make(chan rootMsg, n),
		fromRoot: make([]chan []float64, n),
	}
	for r := range patches {
		for d := range w.inbox[r] {
			w.inbox[r][d] = make(chan haloMsg, 2)
		}
		w.fromRoot[r] = make(chan []float64, 1)
	}
	return w, nil
}

// Size returns the number of ranks.
func (w *World) Size() int { return len(w.patches) }

// Grid returns the global grid.
func (w *World) Grid() Grid { return w.grid }

// Patches returns the patch of every rank, indexed by rank.
func (w *World) Patches() []Patch { return w.patches }

// Run calls fn once for every rank, each in its own goroutine, and
// waits for all of them to return. The first error cancels the context
// passed to the other ranks, so that a rank waiting in a collective
// operation returns instead of blocking forever.
func (w *World) Run(ctx context.Context, fn func(ctx context.Context, c *Comm) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for r := range w.patches {
		c := &Comm{w: w, rank: r, patch: w.patches[r]}
		g.Go(func() error {
			return fn(gctx, c)
		})
	}
	return g.Wait()
}

// Comm is the communication endpoint of one rank. A Comm must only be
// used by the goroutine running that rank.
type Comm struct {
	w     *World
	rank  int
	patch Patch

	pending []*storage
}

// Rank returns the rank of c.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks.
func (c *Comm) Size() int { return c.w.Size() }

// Patch returns the patch owned by this rank.
func (c *Comm) Patch() Patch { return c.patch }

// Grid returns the global grid.
func (c *Comm) Grid() Grid { return c.w.grid }

func dirIndex(dx, dy int) int { return (dy+1)*3 + (dx + 1) }

// neighbour returns the rank in direction (dx, dy), or -1 if there is
// none.
func (c *Comm) neighbour(dx, dy int) int {
	rx, ry := c.patch.Rx+dx, c.patch.Ry+dy
	if rx < 0 || rx >= c.w.px || ry < 0 || ry >= c.w.py {
		return -1
	}
	return ry*c.w.px + rx
}

// span returns the range of global indices of the cells along one axis
// that are sent to (inner) or received from (!inner) the side d.
func span(start, size, d int, inner bool) (lo, hi int) {
	switch {
	case d < 0 && inner:
		return start, start + GhostWidth
	case d < 0:
		return start - GhostWidth, start
	case d > 0 && inner:
		return start + size - GhostWidth, start + size
	case d > 0:
		return start + size, start + size + GhostWidth
	}
	return start, start + size
}

func (s *storage) pack(dx, dy int) []float64 {
	p := s.patch
	i0, i1 := span(p.Xs, p.Xm, dx, true)
	j0, j1 := span(p.Ys, p.Ym, dy, true)
	buf := make([]float64, 0, (i1-i0)*(j1-j0)*s.nz)
	for j := j0; j < j1; j++ {
		for i := i0; i < i1; i++ {
			buf = append(buf, s.column(i, j)...)
		}
	}
	return buf
}

func (s *storage) unpack(dx, dy int, buf []float64) error {
	p := s.patch
	i0, i1 := span(p.Xs, p.Xm, dx, false)
	j0, j1 := span(p.Ys, p.Ym, dy, false)
	if len(buf) != (i1-i0)*(j1-j0)*s.nz {
		return fmt.Errorf("%w: %s: halo strip has %d values, want %d",
			ErrCollective, s.name, len(buf), (i1-i0)*(j1-j0)*s.nz)
	}
	n := 0
	for j := j0; j < j1; j++ {
		for i := i0; i < i1; i++ {
			n += copy(s.column(i, j), buf[n:n+s.nz])
		}
	}
	return nil
}

// fillBoundary sets ghosts that lie outside the global domain to the
// value of the nearest cell inside it.
func (s *storage) fillBoundary() {
	p := s.patch
	g := p.grid
	for j := p.Ys - GhostWidth; j < p.Ys+p.Ym+GhostWidth; j++ {
		for i := p.Xs - GhostWidth; i < p.Xs+p.Xm+GhostWidth; i++ {
			ci, cj := clamp(i, g.Mx), clamp(j, g.My)
			if ci != i || cj != j {
				copy(s.column(i, j), s.column(ci, cj))
			}
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// BeginGhostComm starts updating the ghosts of fields with the values
// owned by neighbouring ranks. Owned values of the fields must not be
// modified until EndGhostComm returns. Every rank must call it with the
// same fields in the same order.
func (c *Comm) BeginGhostComm(ctx context.Context, fields ...Field) error {
	if c.pending != nil {
		return fmt.Errorf("%w: ghost exchange already in progress on rank %d", ErrCollective, c.rank)
	}
	c.pending = make([]*storage, len(fields))
	for n, f := range fields {
		c.pending[n] = f.ghosted()
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nb := c.neighbour(dx, dy)
			if (dx == 0 && dy == 0) || nb < 0 {
				continue
			}
			msg := make(haloMsg, len(c.pending))
			for n, s := range c.pending {
				msg[n] = s.pack(dx, dy)
			}
			select {
			case c.w.inbox[nb][dirIndex(-dx, -dy)] <- msg:
			case <-ctx.Done():
				c.pending = nil
				return ctx.Err()
			}
		}
	}
	return nil
}

// EndGhostComm waits for the exchange started by BeginGhostComm to
// finish. Ghosts outside the global domain are filled from the nearest
// owned cell.
func (c *Comm) EndGhostComm(ctx context.Context) error {
	fields := c.pending
	if fields == nil {
		return fmt.Errorf("%w: no ghost exchange in progress on rank %d", ErrCollective, c.rank)
	}
	defer func() { c.pending = nil }()
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx == 0 && dy == 0) || c.neighbour(dx, dy) < 0 {
				continue
			}
			var msg haloMsg
			select {
			case msg = <-c.w.inbox[c.rank][dirIndex(dx, dy)]:
			case <-ctx.Done():
				return ctx.Err()
			}
			if len(msg) != len(fields) {
				return fmt.Errorf("%w: got %d fields from a neighbour, want %d",
					ErrCollective, len(msg), len(fields))
			}
			for n, s := range fields {
				if err := s.unpack(dx, dy, msg[n]); err != nil {
					return err
				}
			}
		}
	}
	for _, s := range fields {
		s.fillBoundary()
	}
	return nil
}

// UpdateGhosts is BeginGhostComm followed by EndGhostComm.
func (c *Comm) UpdateGhosts(ctx context.Context, fields ...Field) error {
	if err := c.BeginGhostComm(ctx, fields...); err != nil {
		return err
	}
	return c.EndGhostComm(ctx)
}

// sendRoot sends vals to rank 0 and waits for its reply.
func (c *Comm) sendRoot(ctx context.Context, vals []float64) ([]float64, error) {
	select {
	case c.w.toRoot <- rootMsg{rank: c.rank, vals: vals}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-c.w.fromRoot[c.rank]:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recvRoot receives one message from each of the other ranks on rank 0.
func (c *Comm) recvRoot(ctx context.Context, f func(m rootMsg) error) error {
	for n := 1; n < c.Size(); n++ {
		select {
		case m := <-c.w.toRoot:
			if err := f(m); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// replyAll sends a reply from rank 0 to every other rank.
func (c *Comm) replyAll(ctx context.Context, vals []float64) error {
	for r := 1; r < c.Size(); r++ {
		select {
		case c.w.fromRoot[r] <- vals:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// AllReduceSum replaces vals on every rank with the element-wise sum
// of vals over all ranks. Every rank must pass a slice of the same
// length.
func (c *Comm) AllReduceSum(ctx context.Context, vals []float64) error {
	if c.Size() == 1 {
		return nil
	}
	if c.rank != 0 {
		out, err := c.sendRoot(ctx, append([]float64(nil), vals...))
		if err != nil {
			return err
		}
		copy(vals, out)
		return nil
	}
	err := c.recvRoot(ctx, func(m rootMsg) error {
		if len(m.vals) != len(vals) {
			return fmt.Errorf("%w: rank %d reduced %d values, rank 0 reduced %d",
				ErrCollective, m.rank, len(m.vals), len(vals))
		}
		floats.Add(vals, m.vals)
		return nil
	})
	if err != nil {
		return err
	}
	return c.replyAll(ctx, append([]float64(nil), vals...))
}

// AllReduceMin replaces vals on every rank with the element-wise
// minimum over all ranks.
func (c *Comm) AllReduceMin(ctx context.Context, vals []float64) error {
	if c.Size() == 1 {
		return nil
	}
	if c.rank != 0 {
		out, err := c.sendRoot(ctx, append([]float64(nil), vals...))
		if err != nil {
			return err
		}
		copy(vals, out)
		return nil
	}
	err := c.recvRoot(ctx, func(m rootMsg) error {
		if len(m.vals) != len(vals) {
			return fmt.Errorf("%w: rank %d reduced %d values, rank 0 reduced %d",
				ErrCollective, m.rank, len(m.vals), len(vals))
		}
		for n, v := range m.vals {
			if v < vals[n] {
				vals[n] = v
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.replyAll(ctx, append([]float64(nil), vals...))
}

// Gather assembles the owned values of f from every rank into one
// array covering the global grid, with shape (My, Mx) for a 2D field
// and (My, Mx, Nz) for a 3D field. The result is returned on rank 0;
// other ranks receive nil.
func (c *Comm) Gather(ctx context.Context, f Field) (*sparse.DenseArray, error) {
	s := f.ghosted()
	local := s.owned()
	if c.rank != 0 {
		_, err := c.sendRoot(ctx, local.Elements)
		return nil, err
	}
	g := c.w.grid
	var out *sparse.DenseArray
	if _, is2D := f.(*Field2D); is2D {
		out = sparse.ZerosDense(g.My, g.Mx)
	} else {
		out = sparse.ZerosDense(g.My, g.Mx, s.nz)
	}
	place := func(p Patch, vals []float64) error {
		if len(vals) != p.Len()*s.nz {
			return fmt.Errorf("%w: rank %d sent %d values of %s, want %d",
				ErrCollective, p.Rank, len(vals), s.name, p.Len()*s.nz)
		}
		n := 0
		for j := p.Ys; j < p.Ys+p.Ym; j++ {
			o := (j*g.Mx + p.Xs) * s.nz
			n += copy(out.Elements[o:o+p.Xm*s.nz], vals[n:])
		}
		return nil
	}
	if err := place(c.patch, local.Elements); err != nil {
		return nil, err
	}
	if err := c.recvRoot(ctx, func(m rootMsg) error {
		return place(c.w.patches[m.rank], m.vals)
	}); err != nil {
		return nil, err
	}
	return out, c.replyAll(ctx, nil)
}

// Barrier returns once every rank has called it.
func (c *Comm) Barrier(ctx context.Context) error {
	return c.AllReduceSum(ctx, nil)
}
