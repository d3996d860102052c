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
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/science/bedrock"
	"github.com/spatialmodel/icetherm/science/energy"
	"github.com/spatialmodel/icetherm/science/enthalpy"
)

// columnScratch holds one worker's buffers. All slices except Tb are
// on the fine vertical grid.
type columnScratch struct {
	sys  *energy.System
	rock *bedrock.Column

	u, v, w, sigma, enth     []float64
	east, west, north, south []float64
	x                        []float64
	coarse                   []float64

	stats Stats
}

func (m *Model) newScratch(dt float64) (*columnScratch, error) {
	g := m.Comm.Grid()
	mzf := m.interp.MzFine()
	sys, err := energy.NewSystem(energy.Params{
		Dx:                         g.Dx,
		Dy:                         g.Dy,
		Dt:                         dt,
		Dz:                         m.interp.DzFine(),
		TemperateConductivityRatio: m.Config.Ice.TemperateConductivityRatio,
	}, m.conv, mzf)
	if err != nil {
		return nil, err
	}
	rock, err := bedrock.NewColumn(m.rock, dt)
	if err != nil {
		return nil, err
	}
	buf := func() []float64 { return make([]float64, mzf) }
	return &columnScratch{
		sys:    sys,
		rock:   rock,
		u:      buf(),
		v:      buf(),
		w:      buf(),
		sigma:  buf(),
		enth:   buf(),
		east:   buf(),
		west:   buf(),
		north:  buf(),
		south:  buf(),
		x:      buf(),
		coarse: make([]float64, m.interp.Mz()),
	}, nil
}

// prepareScratch makes sure there are n sets of buffers built for the
// current time step.
func (m *Model) prepareScratch(n int) error {
	if len(m.scratch) == n && m.scratchDt == m.Dt {
		return nil
	}
	m.scratch = make([]*columnScratch, n)
	for pp := range m.scratch {
		s, err := m.newScratch(m.Dt)
		if err != nil {
			m.scratch = nil
			return err
		}
		m.scratch[pp] = s
	}
	m.scratchDt = m.Dt
	return nil
}

// EnthalpyStep advances the enthalpy of the ice and the temperature of
// the bedrock by one time step, updates the basal water and the basal
// melt rate, and then advances the model time. Columns are split
// among GOMAXPROCS workers. An error in any column stops the step.
func EnthalpyStep() DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)

	return func(ctx context.Context, m *Model) error {
		if !(m.Dt > 0) {
			return fmt.Errorf("icetherm: time step is %g s; call SetTimestep first", m.Dt)
		}
		if err := m.Comm.BeginGhostComm(ctx, m.Enthalpy); err != nil {
			return err
		}
		if err := m.prepareScratch(nprocs); err != nil {
			return err
		}
		if err := m.Comm.EndGhostComm(ctx); err != nil {
			return err
		}

		p := m.Comm.Patch()
		g, gctx := errgroup.WithContext(ctx)
		for pp := 0; pp < nprocs; pp++ {
			pp := pp
			g.Go(func() error {
				s := m.scratch[pp]
				s.stats = Stats{}
				for ii := pp; ii < p.Len(); ii += nprocs {
					if err := gctx.Err(); err != nil {
						return err
					}
					i, j := p.Cell(ii)
					if err := m.column(s, i, j); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var local Stats
		for _, s := range m.scratch {
			local.VertSacrifice += s.stats.VertSacrifice
			local.Bulge += s.stats.Bulge
		}
		m.Enthalpy.CopyFrom(m.enthNew)

		counts := []float64{float64(local.VertSacrifice), float64(local.Bulge)}
		if err := m.Comm.AllReduceSum(ctx, counts); err != nil {
			return err
		}
		m.Stats = Stats{VertSacrifice: int(counts[0]), Bulge: int(counts[1])}

		if err := m.Comm.UpdateGhosts(ctx, m.Enthalpy); err != nil {
			return err
		}
		m.Time += m.Dt
		m.Step++
		return nil
	}
}

// column advances column (i, j).
func (m *Model) column(s *columnScratch, i, j int) error {
	conv := m.conv
	zf := m.interp.Fine()
	mzf := len(zf)
	fdz := m.interp.DzFine()

	H := m.Thickness.Get(i, j)
	floating := coupler.MaskAt(m.Mask, i, j) == coupler.Floating
	Ts := m.SurfaceTemp.Get(i, j)

	ks := int(math.Floor(H / fdz))
	if ks < 0 {
		ks = 0
	}
	if ks > mzf-1 {
		return &ColumnError{I: i, J: j, Row: ks, Err: fmt.Errorf("%w: ice thickness %g m exceeds the domain height %g m",
			ErrLevelOutOfRange, H, zf[mzf-1])}
	}

	// Bedrock first; its upward flux is the basal boundary condition
	// for grounded ice.
	Tb := m.BedrockTemp.Column(i, j)
	top := len(Tb) - 1
	G0, pivot := s.rock.Step(Tb, m.GeothermalFlux.Get(i, j), Tb[top])
	if pivot != 0 {
		return &ColumnError{I: i, J: j, Row: pivot, Err: fmt.Errorf("bedrock: %w", ErrZeroPivot)}
	}
	m.BedrockFlux.Set(i, j, G0)

	m.interp.CoarseToFine(m.U.Column(i, j), ks, s.u)
	m.interp.CoarseToFine(m.V.Column(i, j), ks, s.v)
	m.interp.CoarseToFine(m.W.Column(i, j), ks, s.w)
	m.interp.CoarseToFine(m.StrainHeating.Column(i, j), ks, s.sigma)
	m.interp.CoarseToFine(m.Enthalpy.Column(i, j), ks, s.enth)
	marginal := m.isMarginal(i, j)
	if !marginal {
		m.interp.CoarseToFine(m.Enthalpy.Column(i+1, j), ks, s.east)
		m.interp.CoarseToFine(m.Enthalpy.Column(i-1, j), ks, s.west)
		m.interp.CoarseToFine(m.Enthalpy.Column(i, j+1), ks, s.north)
		m.interp.CoarseToFine(m.Enthalpy.Column(i, j-1), ks, s.south)
	}

	lambda := s.sys.Lambda(s.w, ks)
	if lambda < 1 {
		s.stats.VertSacrifice++
	}

	Esurf, err := conv.EnthalpyPermissive(Ts, 0, conv.PressureFromDepth(H-zf[ks]))
	if err != nil {
		return &ColumnError{I: i, J: j, Row: ks, Err: fmt.Errorf("surface: %w", err)}
	}
	err = s.sys.SetColumn(energy.Column{
		I: i, J: j, Ks: ks,
		U: s.u, V: s.v, W: s.w,
		Sigma: s.sigma,
		Enth:  s.enth,
		East:  s.east, West: s.west, North: s.north, South: s.south,
		Lambda:   lambda,
		Marginal: marginal,
		Surface:  Esurf,
	})
	if err != nil {
		return &ColumnError{I: i, J: j, Row: ks, Err: err}
	}
	if ks > 0 {
		if floating {
			Eb, err := conv.EnthalpyPermissive(m.ShelfBaseTemp.Get(i, j), 0, conv.PressureFromDepth(H))
			if err != nil {
				return &ColumnError{I: i, J: j, Err: fmt.Errorf("shelf base: %w", err)}
			}
			s.sys.SetDirichletBasal(Eb)
		} else if err := s.sys.SetBasalHeatFlux(G0 + m.Friction.Get(i, j)); err != nil {
			return &ColumnError{I: i, J: j, Err: err}
		}
	}
	pivot, err = s.sys.Solve(s.x)
	if err != nil {
		return &ColumnError{I: i, J: j, Err: err}
	}
	if pivot != 0 {
		return &ColumnError{I: i, J: j, Row: pivot, Err: ErrZeroPivot}
	}

	Hmelt := m.Hmelt.Get(i, j)
	HmeltNew := Hmelt
	if ks > 0 {
		for k := 1; k <= ks; k++ {
			if s.x[k], HmeltNew, err = m.drain(s.x[k], HmeltNew, H-zf[k], fdz, false); err != nil {
				return &ColumnError{I: i, J: j, Row: k, Err: err}
			}
		}
		if s.x[0], HmeltNew, err = m.drain(s.x[0], HmeltNew, H, fdz, true); err != nil {
			return &ColumnError{I: i, J: j, Row: 0, Err: err}
		}
	} else {
		HmeltNew = 0
	}

	// The top of the bedrock sees the ocean, the base of the ice, or the
	// atmosphere.
	switch {
	case floating:
		Tb[top] = m.ShelfBaseTemp.Get(i, j)
	case ks > 0:
		T, err := conv.AbsTemp(s.x[0], conv.PressureFromDepth(H))
		if err != nil {
			return &ColumnError{I: i, J: j, Row: 0, Err: err}
		}
		Tb[top] = T
	default:
		Tb[top] = Ts
	}

	s.x[ks] = Esurf
	bulgeMax := conv.Params().IceSpecificHeat * m.Config.BulgeMaxTemp
	bulge := false
	for k := 0; k < ks; k++ {
		if s.x[k] < Esurf-bulgeMax {
			s.x[k] = Esurf - bulgeMax
			bulge = true
		}
	}
	if bulge {
		s.stats.Bulge++
	}
	for k := ks + 1; k < mzf; k++ {
		s.x[k] = 0
	}
	m.interp.FineToCoarse(s.x, s.coarse)
	m.enthNew.SetColumn(i, j, s.coarse)

	if floating {
		// Basal water under a shelf is lost to the ocean.
		m.BasalMeltRate.Set(i, j, m.ShelfBaseMeltRate.Get(i, j))
		m.Hmelt.Set(i, j, 0)
	} else {
		m.BasalMeltRate.Set(i, j, (HmeltNew-Hmelt)/m.Dt)
		m.Hmelt.Set(i, j, math.Min(m.Config.HmeltMax, HmeltNew))
	}
	return nil
}

// drain moves liquid water above the water fraction cap out of a
// segment of thickness dz at the given depth and into the basal water
// layer. At the base, cold ice refreezes basal water until it reaches
// the melting point or the water runs out. It returns the new
// enthalpy and basal water thickness.
func (m *Model) drain(E, Hmelt, depth, dz float64, base bool) (float64, float64, error) {
	if m.conv.Mode() == enthalpy.ColdIce {
		return E, Hmelt, nil
	}
	p := m.conv.PressureFromDepth(depth)
	omega, err := m.conv.WaterFraction(E, p)
	if err != nil {
		return E, Hmelt, err
	}
	L := m.conv.Params().LatentHeat
	if excess := omega - m.Config.WaterFractionMax; excess > 0 {
		return E - excess*L, Hmelt + excess*dz, nil
	}
	if base {
		if deficit := m.conv.EnthalpyCTS(p) - E; deficit > 0 {
			added := math.Min(Hmelt/dz*L, deficit)
			return E + added, Hmelt - added*dz/L, nil
		}
	}
	return E, Hmelt, nil
}

// isMarginal reports whether any of the eight neighbours of (i, j) is
// thinner than the thin-neighbour threshold. Marginal columns get
// vertical conduction only.
func (m *Model) isMarginal(i, j int) bool {
	thin := m.Config.ThinNeighbourThickness
	for dj := -1; dj <= 1; dj++ {
		for di := -1; di <= 1; di++ {
			if (di != 0 || dj != 0) && m.Thickness.Get(i+di, j+dj) < thin {
				return true
			}
		}
	}
	return false
}
