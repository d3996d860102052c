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

// Package enthalpy converts between ice enthalpy and the pair
// (absolute temperature, liquid water fraction) at a given pressure.
//
// Enthalpy is measured relative to a reference temperature T0 so that
// cold ice has E = c_i (T - T0). The pressure-melting temperature
// T_m(p) splits the enthalpy axis into cold ice (E < E_s), temperate
// ice (E_s <= E < E_l) and liquid water (E >= E_l), where
// E_s = c_i (T_m - T0) and E_l = E_s + L.
package enthalpy

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNegativeEnthalpy is returned when a negative enthalpy is
	// passed to a conversion. It indicates a numerical blow-up upstream.
	ErrNegativeEnthalpy = errors.New("enthalpy: negative enthalpy")

	// ErrLiquified is returned when an enthalpy is at or above the
	// liquid-onset value E_l. Fully liquid water is not allowed in ice.
	ErrLiquified = errors.New("enthalpy: ice is liquified")

	// ErrInvalidInput is returned by Enthalpy when the temperature and
	// water fraction are inconsistent, or the temperature is below the
	// reference temperature.
	ErrInvalidInput = errors.New("enthalpy: invalid temperature or water fraction")
)

// Mode selects the behavior of a Converter.
type Mode int

const (
	// Standard is the polythermal converter with a pressure-dependent
	// melting point.
	Standard Mode = iota

	// ColdIce treats all ice as cold and uses a pressure-independent
	// melting point. It is used for comparison with exact solutions of
	// cold-ice verification tests.
	ColdIce
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case ColdIce:
		return "cold-ice"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Params holds the physical constants used by the converter.
type Params struct {
	IceDensity        float64 // [kg/m³]
	IceSpecificHeat   float64 // [J/(kg K)]
	IceConductivity   float64 // [W/(m K)]
	LatentHeat        float64 // latent heat of fusion [J/kg]
	MeltingPointTemp  float64 // melting point at zero pressure [K]
	ClausiusClapeyron float64 // melting point depression [K/Pa]
	Gravity           float64 // [m/s²]
	AirPressure       float64 // pressure at the ice surface [Pa]
	ReferenceTemp     float64 // T0, where enthalpy is zero [K]

	// VariableConductivity selects the temperature-dependent
	// conductivity law of Greve and Blatter (2009) for cold ice.
	VariableConductivity bool
}

// DefaultParams returns the standard set of ice constants.
func DefaultParams() Params {
	return Params{
		IceDensity:        910,
		IceSpecificHeat:   2009,
		IceConductivity:   2.10,
		LatentHeat:        3.34e5,
		MeltingPointTemp:  273.15,
		ClausiusClapeyron: 7.9e-8,
		Gravity:           9.81,
		AirPressure:       1e5,
		ReferenceTemp:     223.15,
	}
}

// Converter performs enthalpy conversions. It is immutable and safe
// for concurrent use.
type Converter struct {
	p    Params
	mode Mode
}

// New returns a Converter using the given constants and mode.
func New(p Params, mode Mode) *Converter {
	return &Converter{p: p, mode: mode}
}

// Params returns the constants used by c.
func (c *Converter) Params() Params { return c.p }

// Mode returns the conversion mode of c.
func (c *Converter) Mode() Mode { return c.mode }

// PressureFromDepth returns the hydrostatic pressure [Pa] at the given
// depth [m] below the ice surface. Negative depths are treated as zero.
func (c *Converter) PressureFromDepth(depth float64) float64 {
	if depth <= 0 {
		return c.p.AirPressure
	}
	return c.p.AirPressure + c.p.IceDensity*c.p.Gravity*depth
}

// MeltingTemperature returns the melting point [K] at pressure p [Pa].
func (c *Converter) MeltingTemperature(p float64) float64 {
	if c.mode == ColdIce {
		return c.p.MeltingPointTemp
	}
	return c.p.MeltingPointTemp - c.p.ClausiusClapeyron*p
}

// EnthalpyCTS returns the enthalpy E_s at the cold-temperate transition.
func (c *Converter) EnthalpyCTS(p float64) float64 {
	return c.p.IceSpecificHeat * (c.MeltingTemperature(p) - c.p.ReferenceTemp)
}

// EnthalpyInterval returns the enthalpies bounding temperate ice:
// E_s, below which ice is cold, and E_l = E_s + L, at which ice is
// fully liquid.
func (c *Converter) EnthalpyInterval(p float64) (Es, El float64) {
	Es = c.EnthalpyCTS(p)
	return Es, Es + c.p.LatentHeat
}

// CTS returns E - E_s(p). It is negative in cold ice.
func (c *Converter) CTS(E, p float64) float64 {
	return E - c.EnthalpyCTS(p)
}

// IsTemperate reports whether E is at or above the cold-temperate
// transition.
func (c *Converter) IsTemperate(E, p float64) bool {
	if c.mode == ColdIce {
		return false
	}
	return E >= c.EnthalpyCTS(p)
}

// IsLiquified reports whether E is in the disallowed liquid regime.
func (c *Converter) IsLiquified(E, p float64) bool {
	_, El := c.EnthalpyInterval(p)
	return E >= El
}

// AbsTemp returns the absolute temperature [K]. Temperate ice is at
// the melting point.
func (c *Converter) AbsTemp(E, p float64) (float64, error) {
	if E < 0 {
		return math.NaN(), fmt.Errorf("%w: E = %g J/kg", ErrNegativeEnthalpy, E)
	}
	if c.mode == ColdIce {
		return E/c.p.IceSpecificHeat + c.p.ReferenceTemp, nil
	}
	Es, El := c.EnthalpyInterval(p)
	if E >= El {
		return math.NaN(), fmt.Errorf("%w: E = %g J/kg >= E_l = %g J/kg at p = %g Pa",
			ErrLiquified, E, El, p)
	}
	if E < Es {
		return E/c.p.IceSpecificHeat + c.p.ReferenceTemp, nil
	}
	return c.MeltingTemperature(p), nil
}

// PATemp returns the pressure-adjusted temperature: the absolute
// temperature shifted so that the melting point is MeltingPointTemp
// at every pressure.
func (c *Converter) PATemp(E, p float64) (float64, error) {
	T, err := c.AbsTemp(E, p)
	if err != nil {
		return T, err
	}
	return T - c.MeltingTemperature(p) + c.p.MeltingPointTemp, nil
}

// WaterFraction returns the liquid water fraction of ice with
// enthalpy E at pressure p. It is zero for cold ice.
func (c *Converter) WaterFraction(E, p float64) (float64, error) {
	if E < 0 {
		return math.NaN(), fmt.Errorf("%w: E = %g J/kg", ErrNegativeEnthalpy, E)
	}
	if c.mode == ColdIce {
		return 0, nil
	}
	Es, El := c.EnthalpyInterval(p)
	if E >= El {
		return math.NaN(), fmt.Errorf("%w: E = %g J/kg >= E_l = %g J/kg at p = %g Pa",
			ErrLiquified, E, El, p)
	}
	if E <= Es {
		return 0, nil
	}
	omega := (E - Es) / c.p.LatentHeat
	return math.Min(math.Max(omega, 0), 1), nil
}

// Enthalpy returns the enthalpy of ice at temperature T [K] with water
// fraction omega at pressure p. Inputs must be consistent: T must not
// exceed the melting point, and cold ice cannot hold water.
func (c *Converter) Enthalpy(T, omega, p float64) (float64, error) {
	if err := c.checkReference(T); err != nil {
		return math.NaN(), err
	}
	if c.mode == ColdIce {
		return c.p.IceSpecificHeat * (T - c.p.ReferenceTemp), nil
	}
	const eps = 1e-6
	Tm := c.MeltingTemperature(p)
	switch {
	case omega < -eps || omega > 1+eps:
		return math.NaN(), fmt.Errorf("%w: omega = %g is outside [0, 1]", ErrInvalidInput, omega)
	case T > Tm+eps:
		return math.NaN(), fmt.Errorf("%w: T = %g K exceeds melting point %g K", ErrInvalidInput, T, Tm)
	case T < Tm && omega > 0:
		return math.NaN(), fmt.Errorf("%w: T = %g K is below melting point %g K but omega = %g",
			ErrInvalidInput, T, Tm, omega)
	}
	if T < Tm {
		return c.p.IceSpecificHeat * (T - c.p.ReferenceTemp), nil
	}
	return c.EnthalpyCTS(p) + omega*c.p.LatentHeat, nil
}

// EnthalpyPermissive is Enthalpy without the consistency checks.
// Temperatures above the melting point are treated as temperate ice
// and omega is clamped to [0, 1].
func (c *Converter) EnthalpyPermissive(T, omega, p float64) (float64, error) {
	if err := c.checkReference(T); err != nil {
		return math.NaN(), err
	}
	if c.mode == ColdIce {
		return c.p.IceSpecificHeat * (T - c.p.ReferenceTemp), nil
	}
	if T < c.MeltingTemperature(p) {
		return c.p.IceSpecificHeat * (T - c.p.ReferenceTemp), nil
	}
	omega = math.Min(math.Max(omega, 0), 1)
	return c.EnthalpyCTS(p) + omega*c.p.LatentHeat, nil
}

// checkReference rejects temperatures below the reference temperature,
// where the enthalpy would be negative.
func (c *Converter) checkReference(T float64) error {
	if !(T >= c.p.ReferenceTemp) {
		return fmt.Errorf("%w: T = %g K is below the reference temperature %g K",
			ErrInvalidInput, T, c.p.ReferenceTemp)
	}
	return nil
}

// EnthalpyColdIce returns the enthalpy of ice at temperature T assuming
// no liquid water.
func (c *Converter) EnthalpyColdIce(T, p float64) (float64, error) {
	return c.EnthalpyPermissive(T, 0, p)
}

// EnthalpyAtWaterFraction returns the enthalpy of temperate ice with
// water fraction omega.
func (c *Converter) EnthalpyAtWaterFraction(omega, p float64) float64 {
	if c.mode == ColdIce {
		return c.EnthalpyCTS(p)
	}
	return c.EnthalpyCTS(p) + omega*c.p.LatentHeat
}

// Conductivity returns the thermal conductivity of cold ice [W/(m K)]
// at temperature T [K].
func (c *Converter) Conductivity(T float64) float64 {
	if c.p.VariableConductivity {
		return 9.828 * math.Exp(-0.0057*T)
	}
	return c.p.IceConductivity
}
