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

package enthalpy

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestPressureFromDepth(t *testing.T) {
	c := New(DefaultParams(), Standard)
	assert.Equal(t, 1e5, c.PressureFromDepth(-10), "negative depth is clamped")
	assert.Equal(t, 1e5, c.PressureFromDepth(0))
	assert.InDelta(t, 1e5+910*9.81*1000, c.PressureFromDepth(1000), tolerance)
}

func TestMeltingTemperature(t *testing.T) {
	c := New(DefaultParams(), Standard)
	p := c.PressureFromDepth(2000)
	assert.InDelta(t, 273.15-7.9e-8*p, c.MeltingTemperature(p), tolerance)

	cold := New(DefaultParams(), ColdIce)
	assert.Equal(t, 273.15, cold.MeltingTemperature(p))
}

func TestRoundTripColdIce(t *testing.T) {
	c := New(DefaultParams(), Standard)
	for _, depth := range []float64{0, 10, 500, 3000} {
		p := c.PressureFromDepth(depth)
		for _, T := range []float64{223.15, 230.5, 250, 263.15, 270, c.MeltingTemperature(p) - 1e-3} {
			t.Run(fmt.Sprintf("T=%g,depth=%g", T, depth), func(t *testing.T) {
				E, err := c.Enthalpy(T, 0, p)
				require.NoError(t, err)
				T2, err := c.AbsTemp(E, p)
				require.NoError(t, err)
				assert.InDelta(t, T, T2, 1e-9)
				omega, err := c.WaterFraction(E, p)
				require.NoError(t, err)
				assert.Equal(t, 0.0, omega)
			})
		}
	}
}

func TestRoundTripWaterFraction(t *testing.T) {
	c := New(DefaultParams(), Standard)
	for _, depth := range []float64{0, 1500} {
		p := c.PressureFromDepth(depth)
		for _, omega := range []float64{0, 0.001, 0.01, 0.05, 0.5, 0.999} {
			E := c.EnthalpyAtWaterFraction(omega, p)
			got, err := c.WaterFraction(E, p)
			require.NoError(t, err)
			assert.InDelta(t, omega, got, 1e-12, "omega=%g depth=%g", omega, depth)

			T, err := c.AbsTemp(E, p)
			require.NoError(t, err)
			assert.Equal(t, c.MeltingTemperature(p), T)

			E2, err := c.Enthalpy(c.MeltingTemperature(p), omega, p)
			require.NoError(t, err)
			assert.InDelta(t, E, E2, tolerance)
		}
	}
}

func TestClassification(t *testing.T) {
	c := New(DefaultParams(), Standard)
	p := c.PressureFromDepth(800)
	Es, El := c.EnthalpyInterval(p)
	assert.Equal(t, Es+3.34e5, El)
	assert.Equal(t, Es, c.EnthalpyCTS(p))

	tests := []struct {
		E                    float64
		temperate, liquified bool
	}{
		{E: 0},
		{E: Es * 0.5},
		{E: Es - 1e-6},
		{E: Es, temperate: true},
		{E: Es + 0.5*(El-Es), temperate: true},
		{E: El - 1e-6, temperate: true},
		{E: El, temperate: true, liquified: true},
	}
	for _, test := range tests {
		assert.Equal(t, test.temperate, c.IsTemperate(test.E, p), "E=%g", test.E)
		assert.Equal(t, test.liquified, c.IsLiquified(test.E, p), "E=%g", test.E)
		assert.InDelta(t, test.E-Es, c.CTS(test.E, p), tolerance)
	}
}

func TestErrors(t *testing.T) {
	c := New(DefaultParams(), Standard)
	p := c.PressureFromDepth(100)
	_, El := c.EnthalpyInterval(p)

	_, err := c.AbsTemp(-1, p)
	assert.True(t, errors.Is(err, ErrNegativeEnthalpy))
	_, err = c.WaterFraction(-1, p)
	assert.True(t, errors.Is(err, ErrNegativeEnthalpy))
	_, err = c.AbsTemp(El, p)
	assert.True(t, errors.Is(err, ErrLiquified))
	_, err = c.WaterFraction(El+1, p)
	assert.True(t, errors.Is(err, ErrLiquified))

	Tm := c.MeltingTemperature(p)
	for _, in := range []struct{ T, omega float64 }{
		{T: 0, omega: 0},
		{T: 213.15, omega: 0},
		{T: math.NaN(), omega: 0},
		{T: 260, omega: 0.1},
		{T: Tm + 1, omega: 0},
		{T: Tm, omega: 1.1},
		{T: Tm, omega: -0.1},
	} {
		_, err := c.Enthalpy(in.T, in.omega, p)
		assert.True(t, errors.Is(err, ErrInvalidInput), "T=%g omega=%g", in.T, in.omega)
	}
}

func TestEnthalpyPermissive(t *testing.T) {
	c := New(DefaultParams(), Standard)
	p := c.PressureFromDepth(0)
	Tm := c.MeltingTemperature(p)

	E, err := c.EnthalpyPermissive(Tm+5, 0.2, p)
	require.NoError(t, err)
	assert.InDelta(t, c.EnthalpyCTS(p)+0.2*3.34e5, E, tolerance)

	E, err = c.EnthalpyPermissive(Tm+5, 3, p)
	require.NoError(t, err)
	assert.InDelta(t, c.EnthalpyCTS(p)+3.34e5, E, tolerance)

	E, err = c.EnthalpyPermissive(263.15, 0.5, p)
	require.NoError(t, err)
	assert.InDelta(t, 2009*(263.15-223.15), E, tolerance)

	E, err = c.EnthalpyColdIce(268.15, p)
	require.NoError(t, err)
	assert.InDelta(t, 2009*45.0, E, tolerance)

	E, err = c.EnthalpyPermissive(223.15, 0, p)
	require.NoError(t, err)
	assert.Zero(t, E)
	_, err = c.EnthalpyColdIce(213.15, p)
	assert.True(t, errors.Is(err, ErrInvalidInput), "%v", err)
}

func TestColdIceMode(t *testing.T) {
	c := New(DefaultParams(), ColdIce)
	p := c.PressureFromDepth(3000)
	E, err := c.Enthalpy(250, 0, p)
	require.NoError(t, err)
	assert.InDelta(t, 2009*(250-223.15), E, tolerance)
	_, err = c.Enthalpy(200, 0, p)
	assert.True(t, errors.Is(err, ErrInvalidInput), "%v", err)
	assert.False(t, c.IsTemperate(c.EnthalpyCTS(p)+1000, p))
	assert.Equal(t, c.EnthalpyCTS(p), c.EnthalpyAtWaterFraction(0.3, p))

	T, err := c.AbsTemp(E, p)
	require.NoError(t, err)
	assert.InDelta(t, 250, T, tolerance)

	omega, err := c.WaterFraction(c.EnthalpyCTS(p)+1000, p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, omega)
}

func TestPATemp(t *testing.T) {
	c := New(DefaultParams(), Standard)
	p := c.PressureFromDepth(2500)
	E := c.EnthalpyAtWaterFraction(0.005, p)
	T, err := c.PATemp(E, p)
	require.NoError(t, err)
	assert.InDelta(t, 273.15, T, tolerance)
}

func TestConductivity(t *testing.T) {
	par := DefaultParams()
	assert.Equal(t, 2.10, New(par, Standard).Conductivity(250))
	par.VariableConductivity = true
	k := New(par, Standard).Conductivity(263.15)
	if math.Abs(k-9.828*math.Exp(-0.0057*263.15)) > tolerance {
		t.Errorf("conductivity: have %g", k)
	}
}
