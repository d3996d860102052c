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

// Package coupler defines the boundary conditions and external fields
// consumed by the energy step, and simple implementations of them.
//
// All times are in seconds. Fields are written on the owned cells of
// the patch they are defined on; ghosts are left untouched.
package coupler

import (
	"fmt"
	"math"

	"github.com/spatialmodel/icetherm/grid"
)

// Mask classifies a column.
type Mask int

// Column classes.
const (
	IceFree Mask = iota
	Grounded
	Floating
)

func (m Mask) String() string {
	switch m {
	case IceFree:
		return "ice-free"
	case Grounded:
		return "grounded"
	case Floating:
		return "floating"
	}
	return fmt.Sprintf("Mask(%d)", int(m))
}

// MaskAt returns the mask value stored in field f at (i, j).
func MaskAt(f *grid.Field2D, i, j int) Mask { return Mask(f.Get(i, j)) }

// Surface supplies the temperature at the top of the ice.
type Surface interface {
	// Temperature writes the ice surface temperature [K] for the step
	// starting at time t with length dt.
	Temperature(t, dt float64, result *grid.Field2D) error
}

// Ocean supplies the boundary conditions beneath floating ice.
type Ocean interface {
	// ShelfBaseTemperature writes the temperature [K] at the base of
	// floating ice of the given thickness.
	ShelfBaseTemperature(t, dt float64, thickness, result *grid.Field2D) error

	// ShelfBaseMeltRate writes the sub-shelf melt rate [m/s, ice
	// equivalent], positive for melting.
	ShelfBaseMeltRate(t, dt float64, thickness, result *grid.Field2D) error
}

// Geothermal supplies the heat flux into the bottom of the bedrock
// thermal layer.
type Geothermal interface {
	// Flux writes the upward geothermal flux [W/m²].
	Flux(result *grid.Field2D) error
}

// Velocity supplies the fields computed by the stress balance.
type Velocity interface {
	// Fields writes the velocity components [m/s] and the strain
	// heating [W/m³] on the ice storage levels, and the basal
	// frictional heating [W/m²].
	Fields(t float64, u, v, w, sigma *grid.Field3D, friction *grid.Field2D) error
}

// Geometry supplies the ice thickness and the column mask.
type Geometry interface {
	Update(t float64, thickness, mask *grid.Field2D) error
}

func forOwned(p grid.Patch, f func(i, j int)) {
	for n := 0; n < p.Len(); n++ {
		f(p.Cell(n))
	}
}

// ConstantSurface holds the ice surface at a fixed temperature.
type ConstantSurface struct {
	T float64 // [K]
}

// Temperature implements Surface.
func (s ConstantSurface) Temperature(_, _ float64, result *grid.Field2D) error {
	forOwned(result.Patch(), func(i, j int) { result.Set(i, j, s.T) })
	return nil
}

// ConstantOcean sets the shelf base to the freezing point of seawater of
// fixed salinity at the depth of the ice draft and melts the shelf at a
// fixed rate.
type ConstantOcean struct {
	Salinity        float64 // [g/kg]
	MeltRate        float64 // [m/s]
	IceDensity      float64 // [kg/m³]
	SeawaterDensity float64 // [kg/m³]
}

// DefaultOcean returns a ConstantOcean with typical Antarctic values.
func DefaultOcean() ConstantOcean {
	return ConstantOcean{
		Salinity:        35,
		MeltRate:        0,
		IceDensity:      910,
		SeawaterDensity: 1028,
	}
}

// FreezingPoint returns the freezing temperature [K] of seawater with
// salinity S [g/kg] at depth [m] below sea level.
func FreezingPoint(S, depth float64) float64 {
	return 273.15 + 0.0939 - 0.057*S - 7.64e-4*depth
}

// ShelfBaseTemperature implements Ocean.
func (o ConstantOcean) ShelfBaseTemperature(_, _ float64, thickness, result *grid.Field2D) error {
	forOwned(result.Patch(), func(i, j int) {
		draft := o.IceDensity / o.SeawaterDensity * thickness.Get(i, j)
		result.Set(i, j, FreezingPoint(o.Salinity, draft))
	})
	return nil
}

// ShelfBaseMeltRate implements Ocean.
func (o ConstantOcean) ShelfBaseMeltRate(_, _ float64, _, result *grid.Field2D) error {
	forOwned(result.Patch(), func(i, j int) { result.Set(i, j, o.MeltRate) })
	return nil
}

// ConstantGeothermal is a spatially uniform geothermal flux.
type ConstantGeothermal struct {
	G float64 // [W/m²]
}

// Flux implements Geothermal.
func (g ConstantGeothermal) Flux(result *grid.Field2D) error {
	forOwned(result.Patch(), func(i, j int) { result.Set(i, j, g.G) })
	return nil
}

// UniformVelocity is a velocity field that is the same everywhere. The
// zero value is ice at rest with no heating.
type UniformVelocity struct {
	U, V, W       float64 // [m/s]
	StrainHeating float64 // [W/m³]
	Friction      float64 // [W/m²]
}

// Fields implements Velocity.
func (v UniformVelocity) Fields(_ float64, u, vv, w, sigma *grid.Field3D, friction *grid.Field2D) error {
	forOwned(u.Patch(), func(i, j int) {
		for k := 0; k < u.Nz(); k++ {
			u.Set(i, j, k, v.U)
			vv.Set(i, j, k, v.V)
			w.Set(i, j, k, v.W)
			sigma.Set(i, j, k, v.StrainHeating)
		}
		friction.Set(i, j, v.Friction)
	})
	return nil
}

// Flotation decides whether ice is grounded or floating.
type Flotation struct {
	Bed             float64 // bed elevation [m]
	SeaLevel        float64 // [m]
	IceDensity      float64 // [kg/m³]
	SeawaterDensity float64 // [kg/m³]
}

// Classify returns the mask of a column with thickness H.
func (f Flotation) Classify(H float64) Mask {
	if H <= 0 {
		return IceFree
	}
	if f.IceDensity*H < f.SeawaterDensity*(f.SeaLevel-f.Bed) {
		return Floating
	}
	return Grounded
}

// Dome is an ice cap with the Halfar similarity profile
//
//	H(r) = H0 (1 - (r/R)^(4/3))^(3/7),
//
// centered on the grid.
type Dome struct {
	H0, R float64 // central thickness and radius [m]
	Flotation
}

// Thickness returns the ice thickness at horizontal distance r from
// the center.
func (d Dome) Thickness(r float64) float64 {
	if r >= d.R {
		return 0
	}
	return d.H0 * math.Pow(1-math.Pow(r/d.R, 4.0/3), 3.0/7)
}

// Update implements Geometry.
func (d Dome) Update(_ float64, thickness, mask *grid.Field2D) error {
	g := thickness.Patch().Grid()
	forOwned(thickness.Patch(), func(i, j int) {
		H := d.Thickness(math.Hypot(g.X(i), g.Y(j)))
		thickness.Set(i, j, H)
		mask.Set(i, j, float64(d.Classify(H)))
	})
	return nil
}

// Slab is ice of uniform thickness H [m].
type Slab struct {
	H float64
	Flotation
}

// Update implements Geometry.
func (s Slab) Update(_ float64, thickness, mask *grid.Field2D) error {
	forOwned(thickness.Patch(), func(i, j int) {
		thickness.Set(i, j, s.H)
		mask.Set(i, j, float64(s.Classify(s.H)))
	})
	return nil
}
