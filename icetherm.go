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

// Package icetherm advances the thermal state of an ice sheet and the
// bedrock beneath it. The state is held in a Model, one per rank, and
// is changed by DomainManipulators run in sequence at initialization
// and once per time step.
package icetherm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/grid"
	"github.com/spatialmodel/icetherm/internal/colinterp"
	"github.com/spatialmodel/icetherm/science/bedrock"
	"github.com/spatialmodel/icetherm/science/enthalpy"
)

// Version gives the version number.
const Version = "0.1.0"

// SecondsPerYear is the length of a year [s].
const SecondsPerYear = 3.15569259747e7

// DomainManipulator is a function that changes the state of a Model.
type DomainManipulator func(ctx context.Context, m *Model) error

// Couplers supplies the fields the model does not compute itself.
type Couplers struct {
	Surface    coupler.Surface
	Ocean      coupler.Ocean
	Geothermal coupler.Geothermal
	Velocity   coupler.Velocity
	Geometry   coupler.Geometry
}

func (c Couplers) check() error {
	switch {
	case c.Surface == nil:
		return fmt.Errorf("icetherm: no surface coupler")
	case c.Ocean == nil:
		return fmt.Errorf("icetherm: no ocean coupler")
	case c.Geothermal == nil:
		return fmt.Errorf("icetherm: no geothermal flux")
	case c.Velocity == nil:
		return fmt.Errorf("icetherm: no velocity field")
	case c.Geometry == nil:
		return fmt.Errorf("icetherm: no ice geometry")
	}
	return nil
}

// Stats holds the diagnostic counters of the last enthalpy step,
// summed over all ranks.
type Stats struct {
	// VertSacrifice is the number of columns in which the vertical
	// advection scheme was blended toward upwinding.
	VertSacrifice int

	// Bulge is the number of columns in which the enthalpy of at least
	// one level was raised to limit cold advection bulges.
	Bulge int
}

// Model holds the state of one rank's part of the domain.
type Model struct {
	// InitFuncs are run once by Init.
	InitFuncs []DomainManipulator

	// RunFuncs are run in order, once per time step, until Done is set.
	RunFuncs []DomainManipulator

	// CleanupFuncs are run once by Cleanup.
	CleanupFuncs []DomainManipulator

	Config   *Config
	Comm     *grid.Comm
	Couplers Couplers
	Log      logrus.FieldLogger

	Time  float64 // model time [s]
	Dt    float64 // time step [s]
	Step  int     // number of completed steps
	Stats Stats
	Done  bool

	// Enthalpy [J/kg] on the ice storage levels. Cells above the ice
	// surface hold zero.
	Enthalpy *grid.Field3D

	// BedrockTemp [K] on the bedrock levels, numbered upward.
	BedrockTemp *grid.Field3D

	U, V, W       *grid.Field3D // ice velocity [m/s]
	StrainHeating *grid.Field3D // [W/m³]

	Thickness *grid.Field2D // [m]
	Mask      *grid.Field2D // coupler.Mask values

	Hmelt         *grid.Field2D // stored basal water, ice equivalent [m]
	BasalMeltRate *grid.Field2D // [m/s]
	BedrockFlux   *grid.Field2D // upward heat flux at the bedrock top [W/m²]

	SurfaceTemp       *grid.Field2D // [K]
	GeothermalFlux    *grid.Field2D // at the bottom of the bedrock layer [W/m²]
	Friction          *grid.Field2D // basal frictional heating [W/m²]
	ShelfBaseTemp     *grid.Field2D // [K]
	ShelfBaseMeltRate *grid.Field2D // [m/s]

	conv   *enthalpy.Converter
	interp *colinterp.Interpolation
	rock   bedrock.Params

	enthNew   *grid.Field3D
	scratch   []*columnScratch
	scratchDt float64
}

// NewModel allocates the fields of rank c's patch. The fields start at
// zero; InitFuncs are expected to set them.
func NewModel(cfg *Config, c *grid.Comm, cpl Couplers) (*Model, error) {
	if err := cpl.check(); err != nil {
		return nil, err
	}
	g := c.Grid()
	interp, err := colinterp.New(g.Zlevels)
	if err != nil {
		return nil, err
	}
	p := c.Patch()
	mz, mbz := g.Mz(), g.Mbz
	m := &Model{
		Config:   cfg,
		Comm:     c,
		Couplers: cpl,
		Log:      logrus.StandardLogger().WithField("rank", c.Rank()),

		Enthalpy:      grid.NewField3D("Enthalpy", p, mz),
		BedrockTemp:   grid.NewField3D("BedrockTemp", p, mbz),
		U:             grid.NewField3D("U", p, mz),
		V:             grid.NewField3D("V", p, mz),
		W:             grid.NewField3D("W", p, mz),
		StrainHeating: grid.NewField3D("StrainHeating", p, mz),

		Thickness:         grid.NewField2D("Thickness", p),
		Mask:              grid.NewField2D("Mask", p),
		Hmelt:             grid.NewField2D("Hmelt", p),
		BasalMeltRate:     grid.NewField2D("BasalMeltRate", p),
		BedrockFlux:       grid.NewField2D("BedrockFlux", p),
		SurfaceTemp:       grid.NewField2D("SurfaceTemp", p),
		GeothermalFlux:    grid.NewField2D("GeothermalFlux", p),
		Friction:          grid.NewField2D("Friction", p),
		ShelfBaseTemp:     grid.NewField2D("ShelfBaseTemp", p),
		ShelfBaseMeltRate: grid.NewField2D("ShelfBaseMeltRate", p),

		conv:    enthalpy.New(cfg.EnthalpyParams(), cfg.Mode()),
		interp:  interp,
		rock:    cfg.BedrockParams(),
		enthNew: grid.NewField3D("EnthalpyNew", p, mz),
	}
	return m, nil
}

// NewWorld returns the set of ranks that the grid described by cfg is
// split over.
func NewWorld(cfg *Config) (*grid.World, error) {
	g := cfg.ComputationalGrid()
	px, py := g.Layout(cfg.Ranks)
	return grid.NewWorld(g, px, py)
}

// Converter returns the enthalpy converter used by m.
func (m *Model) Converter() *enthalpy.Converter { return m.conv }

// Interpolation returns the mapping between the storage levels and the
// fine vertical grid.
func (m *Model) Interpolation() *colinterp.Interpolation { return m.interp }

// Init initializes the simulation by running m.InitFuncs.
func (m *Model) Init(ctx context.Context) error {
	for _, f := range m.InitFuncs {
		if err := f(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running m.RunFuncs until m.Done
// is true.
func (m *Model) Run(ctx context.Context) error {
	for !m.Done {
		for _, f := range m.RunFuncs {
			if err := f(ctx, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running m.CleanupFuncs.
func (m *Model) Cleanup(ctx context.Context) error {
	for _, f := range m.CleanupFuncs {
		if err := f(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// forOwned calls f for each column owned by m's rank.
func (m *Model) forOwned(f func(i, j int) error) error {
	p := m.Comm.Patch()
	for n := 0; n < p.Len(); n++ {
		i, j := p.Cell(n)
		if err := f(i, j); err != nil {
			return err
		}
	}
	return nil
}
