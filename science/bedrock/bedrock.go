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

// Package bedrock solves the heat equation in the thermal layer of
// bedrock beneath the ice,
//
//	ρ_b c_b ∂T/∂t = k_b ∂²T/∂z²,
//
// with the lithosphere geothermal flux applied at the bottom of the
// layer and the ice-base temperature applied at the top. Its output is
// the upward heat flux G0 = -k_b ∂T/∂z seen by the base of the ice.
//
// Levels are equally spaced and numbered upward: level 0 is at depth
// Depth below the bedrock surface and level Levels-1 is at the surface.
package bedrock

import (
	"fmt"
	"math"

	"github.com/spatialmodel/icetherm/internal/tridiag"
)

// Params describes the bedrock thermal layer.
type Params struct {
	Density      float64 // [kg/m³]
	SpecificHeat float64 // [J/(kg K)]
	Conductivity float64 // [W/(m K)]
	Depth        float64 // thickness of the layer [m]
	Levels       int     // number of levels, including the surface
}

// DefaultParams returns typical values for crustal rock with no
// thermal layer.
func DefaultParams() Params {
	return Params{
		Density:      3300,
		SpecificHeat: 1000,
		Conductivity: 3.0,
		Levels:       1,
	}
}

// Active reports whether the layer has enough levels to be modeled.
// Without it, the geothermal flux passes directly to the ice.
func (p Params) Active() bool { return p.Levels >= 2 && p.Depth > 0 }

// Spacing returns the vertical grid spacing of the layer.
func (p Params) Spacing() float64 {
	if !p.Active() {
		return 0
	}
	return p.Depth / float64(p.Levels-1)
}

// MaxTimestep returns the largest time step [s] allowed by the
// explicit diffusion stability bound, which the implicit scheme
// observes for accuracy. It is +Inf when the layer is inactive.
func MaxTimestep(p Params) float64 {
	if !p.Active() {
		return math.Inf(1)
	}
	dz := p.Spacing()
	return 0.5 * dz * dz * p.Density * p.SpecificHeat / p.Conductivity
}

// Column advances the temperature of one bedrock column. A Column
// holds scratch space and is not safe for concurrent use; each worker
// should have its own.
type Column struct {
	p    Params
	dt   float64
	dz   float64
	r    float64 // k dt / (ρ c dz²)
	sys  *tridiag.System
	tnew []float64
}

// NewColumn returns a Column for time step dt [s].
func NewColumn(p Params, dt float64) (*Column, error) {
	if p.Levels < 0 || p.Depth < 0 {
		return nil, fmt.Errorf("bedrock: invalid layer: %d levels, depth %g m", p.Levels, p.Depth)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("bedrock: invalid time step %g s", dt)
	}
	c := &Column{p: p, dt: dt}
	if p.Active() {
		if p.Density <= 0 || p.SpecificHeat <= 0 || p.Conductivity <= 0 {
			return nil, fmt.Errorf("bedrock: material constants must be positive: %+v", p)
		}
		c.dz = p.Spacing()
		c.r = p.Conductivity * dt / (p.Density * p.SpecificHeat * c.dz * c.dz)
		c.sys = tridiag.NewSystem(p.Levels)
		c.tnew = make([]float64, p.Levels)
	}
	return c, nil
}

// Step advances the profile T by one time step using backward Euler,
// with lithosphere flux G [W/m²] at the bottom and temperature Ttop [K]
// at the top. T is updated in place. It returns the upward heat flux
// [W/m²] at the top of the layer computed from the new profile, and a
// nonzero one-based pivot index if the linear solve failed.
func (c *Column) Step(T []float64, G, Ttop float64) (flux float64, pivot int) {
	if !c.p.Active() {
		return G, 0
	}
	n := c.p.Levels
	s := c.sys
	R := c.r

	// Ghost point below the layer: T(-dz) = T(dz) + 2 dz G / k.
	s.D[0] = 1 + 2*R
	s.U[0] = -2 * R
	s.RHS[0] = T[0] + 2*c.dt*G/(c.p.Density*c.p.SpecificHeat*c.dz)
	for k := 1; k < n-1; k++ {
		s.L[k] = -R
		s.D[k] = 1 + 2*R
		s.U[k] = -R
		s.RHS[k] = T[k]
	}
	s.L[n-1] = 0
	s.D[n-1] = 1
	s.U[n-1] = 0
	s.RHS[n-1] = Ttop

	if pivot = s.Solve(n, c.tnew); pivot != 0 {
		return math.NaN(), pivot
	}
	copy(T, c.tnew)
	return c.UpwardFlux(T), 0
}

// UpwardFlux returns -k dT/dz at the top of the profile T. It uses a
// second-order one-sided difference when at least three levels exist.
func (c *Column) UpwardFlux(T []float64) float64 {
	n := c.p.Levels
	k := c.p.Conductivity
	if n >= 3 {
		return -k * (3*T[n-1] - 4*T[n-2] + T[n-3]) / (2 * c.dz)
	}
	return -k * (T[n-1] - T[n-2]) / c.dz
}

// Bootstrap fills T with the steady profile that carries flux G
// through the layer and has temperature Ttop at the top.
func Bootstrap(p Params, T []float64, Ttop, G float64) {
	dz := p.Spacing()
	n := len(T)
	for k := range T {
		depth := float64(n-1-k) * dz
		T[k] = Ttop + G/p.Conductivity*depth
	}
}
