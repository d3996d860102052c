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

package bedrock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secPerYear = 3.15569259747e7

func testParams() Params {
	p := DefaultParams()
	p.Depth = 1000
	p.Levels = 11
	return p
}

func TestMaxTimestep(t *testing.T) {
	p := testParams()
	want := 0.5 * 100 * 100 * 3300 * 1000 / 3.0
	assert.InDelta(t, want, MaxTimestep(p), 1e-6)
	assert.True(t, math.IsInf(MaxTimestep(DefaultParams()), 1))
}

func TestSteadyProfile(t *testing.T) {
	p := testParams()
	const G, Ttop = 0.05, 260.0
	T := make([]float64, p.Levels)
	Bootstrap(p, T, Ttop, G)
	assert.InDelta(t, Ttop+G/3.0*1000, T[0], 1e-12)

	c, err := NewColumn(p, secPerYear)
	require.NoError(t, err)
	before := append([]float64(nil), T...)
	for i := 0; i < 10; i++ {
		flux, pivot := c.Step(T, G, Ttop)
		require.Zero(t, pivot)
		assert.InDelta(t, G, flux, 1e-9)
	}
	for k := range T {
		assert.InDelta(t, before[k], T[k], 1e-8, "level %d", k)
	}
}

func TestWarmingTop(t *testing.T) {
	p := testParams()
	const G = 0.05
	T := make([]float64, p.Levels)
	Bootstrap(p, T, 250, G)
	before := append([]float64(nil), T...)
	c, err := NewColumn(p, 100*secPerYear)
	require.NoError(t, err)
	flux, pivot := c.Step(T, G, 260)
	require.Zero(t, pivot)
	// A warmer top reduces the upward flux into the ice.
	assert.Less(t, flux, G)
	assert.Equal(t, 260.0, T[p.Levels-1])
	assert.Greater(t, T[p.Levels-2], before[p.Levels-2])
	assert.GreaterOrEqual(t, T[0], before[0])
}

func TestInactiveLayer(t *testing.T) {
	p := DefaultParams()
	c, err := NewColumn(p, secPerYear)
	require.NoError(t, err)
	T := []float64{255}
	flux, pivot := c.Step(T, 0.042, 260)
	assert.Zero(t, pivot)
	assert.Equal(t, 0.042, flux)
	assert.Equal(t, 255.0, T[0])
}

func TestTwoLevels(t *testing.T) {
	p := DefaultParams()
	p.Levels = 2
	p.Depth = 10
	c, err := NewColumn(p, secPerYear)
	require.NoError(t, err)
	T := make([]float64, 2)
	Bootstrap(p, T, 260, 0.06)
	flux, pivot := c.Step(T, 0.06, 260)
	require.Zero(t, pivot)
	assert.InDelta(t, 0.06, flux, 1e-9)
}

func TestInvalid(t *testing.T) {
	_, err := NewColumn(testParams(), 0)
	assert.Error(t, err)
	p := testParams()
	p.Conductivity = 0
	_, err = NewColumn(p, 1)
	assert.Error(t, err)
}
