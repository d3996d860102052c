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

package coupler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialmodel/icetherm/grid"
)

func testPatch(t *testing.T) grid.Patch {
	t.Helper()
	g := grid.Grid{
		Mx:      5,
		My:      5,
		Dx:      1000,
		Dy:      1000,
		Zlevels: grid.EquallySpaced(1000, 3),
		Mbz:     1,
	}
	patches, err := g.Decompose(1, 1)
	require.NoError(t, err)
	return patches[0]
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "grounded", Grounded.String())
	assert.Equal(t, "Mask(7)", Mask(7).String())
}

func TestConstantOcean(t *testing.T) {
	p := testPatch(t)
	H := grid.NewField2D("thk", p)
	H.Fill(1028)
	T := grid.NewField2D("shelfbtemp", p)
	o := DefaultOcean()
	require.NoError(t, o.ShelfBaseTemperature(0, 1, H, T))
	assert.InDelta(t, FreezingPoint(35, 910), T.Get(2, 2), 1e-12)
	assert.Less(t, T.Get(0, 0), 273.15-1.9)

	o.MeltRate = 1e-8
	bmr := grid.NewField2D("bmr", p)
	require.NoError(t, o.ShelfBaseMeltRate(0, 1, H, bmr))
	assert.Equal(t, 1e-8, bmr.Get(4, 4))
}

func TestDome(t *testing.T) {
	p := testPatch(t)
	d := Dome{H0: 3000, R: 1500}
	H := grid.NewField2D("thk", p)
	mask := grid.NewField2D("mask", p)
	require.NoError(t, d.Update(0, H, mask))

	assert.Equal(t, 3000.0, H.Get(2, 2))
	assert.Equal(t, Grounded, MaskAt(mask, 2, 2))
	assert.Equal(t, 0.0, H.Get(0, 2))
	assert.Equal(t, IceFree, MaskAt(mask, 0, 2))
	want := 3000 * math.Pow(1-math.Pow(1000.0/1500, 4.0/3), 3.0/7)
	assert.InDelta(t, want, H.Get(3, 2), 1e-9)
}

func TestFlotation(t *testing.T) {
	f := Flotation{Bed: -1000, IceDensity: 910, SeawaterDensity: 1028}
	assert.Equal(t, Floating, f.Classify(500))
	assert.Equal(t, Grounded, f.Classify(2000))
	assert.Equal(t, IceFree, f.Classify(0))

	p := testPatch(t)
	H := grid.NewField2D("thk", p)
	mask := grid.NewField2D("mask", p)
	require.NoError(t, Slab{H: 500, Flotation: f}.Update(0, H, mask))
	assert.Equal(t, Floating, MaskAt(mask, 1, 3))
}

func TestUniformVelocity(t *testing.T) {
	p := testPatch(t)
	u := grid.NewField3D("u", p, 3)
	v := grid.NewField3D("v", p, 3)
	w := grid.NewField3D("w", p, 3)
	sigma := grid.NewField3D("strain_heating", p, 3)
	fric := grid.NewField2D("bfrict", p)
	vel := UniformVelocity{U: 1, W: -2, StrainHeating: 3, Friction: 4}
	require.NoError(t, vel.Fields(0, u, v, w, sigma, fric))
	assert.Equal(t, []float64{1, 1, 1}, u.Column(4, 0))
	assert.Equal(t, []float64{0, 0, 0}, v.Column(4, 0))
	assert.Equal(t, -2.0, w.Get(1, 1, 2))
	assert.Equal(t, 3.0, sigma.Get(0, 0, 0))
	assert.Equal(t, 4.0, fric.Get(3, 3))
}

func TestExprSurface(t *testing.T) {
	p := testPatch(t)
	s, err := NewExprSurface("min(273.15, 250 + 0.001*sqrt(x*x + y*y) + t)")
	require.NoError(t, err)
	T := grid.NewField2D("ice_surface_temp", p)
	require.NoError(t, s.Temperature(2*secondsPerYear, 1, T))
	assert.InDelta(t, 252, T.Get(2, 2), 1e-9)
	assert.InDelta(t, 254, T.Get(0, 2), 1e-9)
	assert.InDelta(t, 252+0.001*math.Hypot(2000, 2000), T.Get(4, 4), 1e-9)

	s, err = NewExprSurface("min(273.15, 1000 + x*x)")
	require.NoError(t, err)
	require.NoError(t, s.Temperature(0, 1, T))
	assert.Equal(t, 273.15, T.Get(0, 0))

	_, err = NewExprSurface("250 + z")
	assert.Error(t, err)

	s, err = NewExprSurface("exp(x, y)")
	require.NoError(t, err)
	assert.Error(t, s.Temperature(0, 1, T))
}
