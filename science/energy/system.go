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

// Package energy assembles and solves the implicit enthalpy equation
//
//	ρ ∂E/∂t = ∂/∂z (k/c ∂E/∂z) − ρ (u ∂E/∂x + v ∂E/∂y + w ∂E/∂z) + Σ
//
// on one ice column of an equally spaced vertical grid.
//
// Vertical advection is discretized with the "BOMBPROOF" scheme: a
// blend of centered and first-order upwind differences controlled by
// a per-column parameter λ ∈ [0, 1] (λ = 1 is fully centered). λ is
// chosen so that the system matrix stays diagonally dominant, which
// rules out spurious oscillations at any grid Péclet number.
// Horizontal advection is first-order upwind and explicit.
package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/atmos/advect"
	"github.com/spatialmodel/icetherm/internal/tridiag"
	"github.com/spatialmodel/icetherm/science/enthalpy"
)

// SecondsPerYear is the length of a year [s].
const SecondsPerYear = 3.15569259747e7

// lambdaEps regularizes λ where the vertical velocity vanishes [m/s].
const lambdaEps = 1e-6 / SecondsPerYear

var (
	// ErrLevelOutOfRange is returned when the surface index of a column
	// does not lie within the vertical grid.
	ErrLevelOutOfRange = errors.New("energy: vertical level out of range")

	// ErrNoBasalCondition is returned by Solve when neither
	// SetNeumannBasal nor SetDirichletBasal was called for the column.
	ErrNoBasalCondition = errors.New("energy: basal boundary condition not set")
)

// Params holds the constants of the discretization that are the same
// for every column during a time step.
type Params struct {
	Dx, Dy float64 // horizontal grid spacing [m]
	Dt     float64 // time step [s]
	Dz     float64 // fine vertical grid spacing [m]

	// TemperateConductivityRatio is the conductivity of temperate ice
	// as a fraction of the cold-ice conductivity.
	TemperateConductivityRatio float64
}

// Column holds the inputs for one column on the fine grid. Slices are
// indexed by fine level and must have at least Ks+1 elements, except
// that the neighbour profiles are only read when the column is not
// marginal.
type Column struct {
	I, J int // horizontal indices, used in error messages
	Ks   int // index of the highest fine level inside the ice

	U, V, W []float64 // velocity [m/s]
	Sigma   []float64 // strain heating [W/m³]
	Enth    []float64 // enthalpy at the start of the step [J/kg]

	// Enthalpy of the four horizontal neighbours.
	East, West, North, South []float64

	Lambda   float64
	Marginal bool

	// Surface is the enthalpy imposed at level Ks.
	Surface float64
}

// System solves the enthalpy equation for one column at a time. It
// keeps per-column scratch space and must not be shared between
// goroutines.
type System struct {
	par  Params
	conv *enthalpy.Converter
	mz   int

	rFactor            float64 // dt / (dz² ρ c)
	iceRcold, iceRtemp float64
	nu                 float64 // dt / dz

	R   []float64
	sys *tridiag.System

	col       Column
	a0, a1, b float64
	basalSet  bool
}

// NewSystem returns a System for columns of mz fine levels.
func NewSystem(par Params, conv *enthalpy.Converter, mz int) (*System, error) {
	if mz < 2 {
		return nil, fmt.Errorf("%w: need at least 2 fine levels, have %d", ErrLevelOutOfRange, mz)
	}
	if par.Dt <= 0 || par.Dz <= 0 || par.Dx <= 0 || par.Dy <= 0 {
		return nil, fmt.Errorf("energy: invalid discretization %+v", par)
	}
	ice := conv.Params()
	s := &System{
		par:  par,
		conv: conv,
		mz:   mz,
		R:    make([]float64, mz),
		sys:  tridiag.NewSystem(mz),
		nu:   par.Dt / par.Dz,
	}
	s.rFactor = par.Dt / (par.Dz * par.Dz * ice.IceDensity * ice.IceSpecificHeat)
	s.iceRcold = ice.IceConductivity * s.rFactor
	s.iceRtemp = par.TemperateConductivityRatio * ice.IceConductivity * s.rFactor
	return s, nil
}

// Mz returns the number of fine levels.
func (s *System) Mz() int { return s.mz }

// Lambda returns the BOMBPROOF blending parameter for a column with
// vertical velocity w and surface index ks:
//
//	λ = min(1, min_{0<k<ks} 2 k_i / ((|w_k| + ε) ρ c dz)).
func (s *System) Lambda(w []float64, ks int) float64 {
	ice := s.conv.Params()
	lambda := 1.0
	for k := 1; k < ks; k++ {
		denom := (math.Abs(w[k]) + lambdaEps) * ice.IceDensity * ice.IceSpecificHeat * s.par.Dz
		lambda = math.Min(lambda, 2*ice.IceConductivity/denom)
	}
	return lambda
}

// SetColumn prepares s for a new column. It clears any basal
// boundary condition set for the previous column.
func (s *System) SetColumn(col Column) error {
	if col.Ks < 0 || col.Ks >= s.mz {
		return fmt.Errorf("%w: ks = %d with %d levels at (%d, %d)",
			ErrLevelOutOfRange, col.Ks, s.mz, col.I, col.J)
	}
	s.col = col
	s.basalSet = false
	return nil
}

// rCoefficient returns the diffusion coefficient k dt/(dz² ρ c) at
// fine level k.
func (s *System) rCoefficient(k int) (float64, error) {
	E := s.col.Enth[k]
	depth := float64(s.col.Ks-k) * s.par.Dz
	p := s.conv.PressureFromDepth(depth)
	if s.conv.IsTemperate(E, p) {
		return s.iceRtemp, nil
	}
	T, err := s.conv.AbsTemp(E, p)
	if err != nil {
		return math.NaN(), fmt.Errorf("energy: column (%d, %d) level %d: %w", s.col.I, s.col.J, k, err)
	}
	return s.conv.Conductivity(T) * s.rFactor, nil
}

// horizontal returns dt (Σ/ρ - u ∂E/∂x - v ∂E/∂y) at level k, or zero
// for marginal columns.
func (s *System) horizontal(k int) float64 {
	c := &s.col
	if c.Marginal {
		return 0
	}
	ij := c.Enth[k]
	upu := upwind(c.U[k], c.West[k], ij, c.East[k], s.par.Dx)
	upv := upwind(c.V[k], c.South[k], ij, c.North[k], s.par.Dy)
	return s.par.Dt * (c.Sigma[k]/s.conv.Params().IceDensity - upu - upv)
}

// upwind returns the first-order upwind approximation of u ∂E/∂x,
// written as the difference of the fluxes through the two cell faces.
func upwind(u, minus, ij, plus, dx float64) float64 {
	return advect.UpwindFlux(u, ij, plus, dx) - advect.UpwindFlux(u, minus, ij, dx)
}

// SetNeumannBasal sets the basal boundary condition dE/dz = Y at the
// base of the column, applied through a ghost level below the base.
// The column must have at least one level in the ice.
func (s *System) SetNeumannBasal(Y float64) error {
	if s.col.Ks < 1 {
		return fmt.Errorf("%w: Neumann condition needs ks >= 1 at (%d, %d)",
			ErrLevelOutOfRange, s.col.I, s.col.J)
	}
	Rc, err := s.rCoefficient(0)
	if err != nil {
		return err
	}
	Rr, err := s.rCoefficient(1)
	if err != nil {
		return err
	}
	Rminus := Rc
	Rplus := 0.5 * (Rc + Rr)
	s.a0 = 1 + Rminus + Rplus
	s.a1 = -Rminus - Rplus
	// E(-dz) = E(+dz) + X
	X := -2 * s.par.Dz * Y
	// No vertical advection at the base.
	s.b = s.col.Enth[0] + Rminus*X + s.horizontal(0)
	s.basalSet = true
	return nil
}

// SetBasalHeatFlux sets a Neumann condition from the upward heat flux
// [W/m²] entering the base of the ice.
func (s *System) SetBasalHeatFlux(flux float64) error {
	ice := s.conv.Params()
	return s.SetNeumannBasal(-ice.IceSpecificHeat * flux / ice.IceConductivity)
}

// SetDirichletBasal fixes the enthalpy at the base of the column.
func (s *System) SetDirichletBasal(Ebase float64) {
	s.a0 = 1
	s.a1 = 0
	s.b = Ebase
	s.basalSet = true
}

// Solve assembles and solves the system for the current column and
// writes the new enthalpy on all fine levels to x. Levels above the
// surface index are set to the surface value. A nonzero pivot is the
// one-based row at which the tridiagonal solve met a zero pivot.
func (s *System) Solve(x []float64) (pivot int, err error) {
	c := &s.col
	ks := c.Ks
	if ks == 0 {
		for k := 0; k < s.mz; k++ {
			x[k] = c.Surface
		}
		return 0, nil
	}
	if !s.basalSet {
		return 0, fmt.Errorf("%w at (%d, %d)", ErrNoBasalCondition, c.I, c.J)
	}
	s.basalSet = false

	for k := 0; k < ks; k++ {
		if s.R[k], err = s.rCoefficient(k); err != nil {
			return 0, err
		}
	}
	for k := ks; k < s.mz; k++ {
		s.R[k] = s.iceRcold
	}

	L, D, U, rhs := s.sys.L, s.sys.D, s.sys.U, s.sys.RHS
	D[0] = s.a0
	U[0] = s.a1
	rhs[0] = s.b

	lambda := c.Lambda
	for k := 1; k < ks; k++ {
		Rminus := 0.5 * (s.R[k-1] + s.R[k])
		Rplus := 0.5 * (s.R[k] + s.R[k+1])
		L[k] = -Rminus
		D[k] = 1 + Rminus + Rplus
		U[k] = -Rplus
		AA := s.nu * c.W[k]
		if c.W[k] >= 0 {
			L[k] -= AA * (1 - lambda/2)
			D[k] += AA * (1 - lambda)
			U[k] += AA * (lambda / 2)
		} else {
			L[k] -= AA * (lambda / 2)
			D[k] -= AA * (1 - lambda)
			U[k] += AA * (1 - lambda/2)
		}
		rhs[k] = c.Enth[k] + s.horizontal(k)
	}

	L[ks] = 0
	D[ks] = 1
	U[ks] = 0
	rhs[ks] = c.Surface

	if pivot = s.sys.Solve(ks+1, x); pivot != 0 {
		return pivot, nil
	}
	for k := ks + 1; k < s.mz; k++ {
		x[k] = c.Surface
	}
	return 0, nil
}
