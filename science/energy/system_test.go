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

package energy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialmodel/icetherm/science/enthalpy"
)

const mz = 11

func newTestSystem(t *testing.T) (*System, *enthalpy.Converter) {
	t.Helper()
	conv := enthalpy.New(enthalpy.DefaultParams(), enthalpy.Standard)
	s, err := NewSystem(Params{
		Dx:                         20000,
		Dy:                         20000,
		Dt:                         SecondsPerYear,
		Dz:                         10,
		TemperateConductivityRatio: 0.1,
	}, conv, mz)
	require.NoError(t, err)
	return s, conv
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func restColumn(E float64) Column {
	zero := uniform(mz, 0)
	return Column{
		Ks:      mz - 1,
		U:       zero,
		V:       zero,
		W:       zero,
		Sigma:   zero,
		Enth:    uniform(mz, E),
		East:    uniform(mz, E),
		West:    uniform(mz, E),
		North:   uniform(mz, E),
		South:   uniform(mz, E),
		Lambda:  1,
		Surface: E,
	}
}

func TestLambda(t *testing.T) {
	s, _ := newTestSystem(t)
	assert.Equal(t, 1.0, s.Lambda(uniform(mz, 0), mz-1), "no vertical velocity")

	w := uniform(mz, 0)
	w[3] = -100 / SecondsPerYear
	want := 2 * 2.10 / ((100/SecondsPerYear + 1e-6/SecondsPerYear) * 910 * 2009 * 10)
	require.Less(t, want, 1.0)
	assert.InDelta(t, want, s.Lambda(w, mz-1), 1e-15)

	// Levels at or above ks are not considered.
	assert.Equal(t, 1.0, s.Lambda(w, 3))
}

func TestSteadyColumn(t *testing.T) {
	s, conv := newTestSystem(t)
	E, err := conv.Enthalpy(263.15, 0, 1e5)
	require.NoError(t, err)

	x := make([]float64, mz)
	require.NoError(t, s.SetColumn(restColumn(E)))
	require.NoError(t, s.SetBasalHeatFlux(0))
	pivot, err := s.Solve(x)
	require.NoError(t, err)
	require.Zero(t, pivot)
	for k := range x {
		assert.InDelta(t, E, x[k], 1e-8, "level %d", k)
	}

	require.NoError(t, s.SetColumn(restColumn(E)))
	s.SetDirichletBasal(E)
	pivot, err = s.Solve(x)
	require.NoError(t, err)
	require.Zero(t, pivot)
	for k := range x {
		assert.InDelta(t, E, x[k], 1e-8, "level %d", k)
	}
}

func TestGeothermalWarming(t *testing.T) {
	s, conv := newTestSystem(t)
	E, err := conv.Enthalpy(253.15, 0, 1e5)
	require.NoError(t, err)
	x := make([]float64, mz)
	require.NoError(t, s.SetColumn(restColumn(E)))
	require.NoError(t, s.SetBasalHeatFlux(0.05))
	_, err = s.Solve(x)
	require.NoError(t, err)
	assert.Greater(t, x[0], E)
	for k := 1; k < mz; k++ {
		assert.LessOrEqual(t, x[k], x[k-1], "level %d", k)
	}
}

func TestNoIce(t *testing.T) {
	s, _ := newTestSystem(t)
	col := restColumn(80000)
	col.Ks = 0
	col.Surface = 90000
	require.NoError(t, s.SetColumn(col))
	x := make([]float64, mz)
	pivot, err := s.Solve(x)
	require.NoError(t, err)
	assert.Zero(t, pivot)
	assert.Equal(t, uniform(mz, 90000), x)
}

func TestAirAbove(t *testing.T) {
	s, _ := newTestSystem(t)
	col := restColumn(80000)
	col.Ks = 4
	col.Surface = 85000
	require.NoError(t, s.SetColumn(col))
	s.SetDirichletBasal(80000)
	x := make([]float64, mz)
	_, err := s.Solve(x)
	require.NoError(t, err)
	for k := 4; k < mz; k++ {
		assert.Equal(t, 85000.0, x[k], "level %d", k)
	}
}

// TestNoOvershoot checks that strong downward advection does not
// produce values outside the range of the boundary and initial data.
func TestNoOvershoot(t *testing.T) {
	s, _ := newTestSystem(t)
	col := restColumn(80000)
	w := uniform(mz, -500/SecondsPerYear)
	col.W = w
	col.Lambda = s.Lambda(w, col.Ks)
	col.Surface = 90000
	require.Less(t, col.Lambda, 1.0)
	require.NoError(t, s.SetColumn(col))
	s.SetDirichletBasal(70000)
	x := make([]float64, mz)
	_, err := s.Solve(x)
	require.NoError(t, err)
	for k := range x {
		assert.GreaterOrEqual(t, x[k], 70000.0-1e-6, "level %d", k)
		assert.LessOrEqual(t, x[k], 90000.0+1e-6, "level %d", k)
	}
}

func TestMarginal(t *testing.T) {
	s, _ := newTestSystem(t)
	x := make([]float64, mz)

	col := restColumn(80000)
	col.U = uniform(mz, 100/SecondsPerYear)
	col.West = uniform(mz, 70000)
	col.Sigma = uniform(mz, 1e-3)

	col.Marginal = true
	require.NoError(t, s.SetColumn(col))
	s.SetDirichletBasal(80000)
	_, err := s.Solve(x)
	require.NoError(t, err)
	for k := range x {
		assert.InDelta(t, 80000, x[k], 1e-8, "marginal level %d", k)
	}

	col.Sigma = uniform(mz, 0)
	col.Marginal = false
	require.NoError(t, s.SetColumn(col))
	s.SetDirichletBasal(80000)
	_, err = s.Solve(x)
	require.NoError(t, err)
	// Colder ice upstream is advected into the column.
	assert.Less(t, x[mz/2], 80000.0)
}

func TestErrors(t *testing.T) {
	s, _ := newTestSystem(t)
	col := restColumn(80000)
	col.Ks = mz
	assert.True(t, errors.Is(s.SetColumn(col), ErrLevelOutOfRange))

	col = restColumn(80000)
	require.NoError(t, s.SetColumn(col))
	_, err := s.Solve(make([]float64, mz))
	assert.True(t, errors.Is(err, ErrNoBasalCondition))

	col.Enth = uniform(mz, 80000)
	col.Enth[3] = -1
	require.NoError(t, s.SetColumn(col))
	s.SetDirichletBasal(80000)
	_, err = s.Solve(make([]float64, mz))
	assert.True(t, errors.Is(err, enthalpy.ErrNegativeEnthalpy))

	col.Ks = 0
	require.NoError(t, s.SetColumn(col))
	assert.True(t, errors.Is(s.SetNeumannBasal(0), ErrLevelOutOfRange))
}
