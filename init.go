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

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/science/bedrock"
)

// SetTimestep sets the time step to the given number of years, or to
// the bedrock diffusion limit if that is shorter.
func SetTimestep(years float64) DomainManipulator {
	return func(_ context.Context, m *Model) error {
		if !(years > 0) {
			return fmt.Errorf("icetherm: time step must be positive, got %g years", years)
		}
		dt := years * SecondsPerYear
		if limit := bedrock.MaxTimestep(m.rock); dt > limit {
			m.Log.WithFields(logrus.Fields{
				"dt_years":  years,
				"max_years": limit / SecondsPerYear,
			}).Warn("icetherm: time step limited by bedrock diffusion")
			dt = limit
		}
		m.Dt = dt
		return nil
	}
}

// UpdateBoundaryConditions fills the geometry, surface, ocean,
// geothermal and velocity fields from the couplers for the step
// starting at the current model time.
func UpdateBoundaryConditions() DomainManipulator {
	return func(ctx context.Context, m *Model) error {
		c := m.Couplers
		if err := c.Geometry.Update(m.Time, m.Thickness, m.Mask); err != nil {
			return err
		}
		if err := c.Surface.Temperature(m.Time, m.Dt, m.SurfaceTemp); err != nil {
			return err
		}
		if err := c.Ocean.ShelfBaseTemperature(m.Time, m.Dt, m.Thickness, m.ShelfBaseTemp); err != nil {
			return err
		}
		if err := c.Ocean.ShelfBaseMeltRate(m.Time, m.Dt, m.Thickness, m.ShelfBaseMeltRate); err != nil {
			return err
		}
		if err := c.Geothermal.Flux(m.GeothermalFlux); err != nil {
			return err
		}
		if err := c.Velocity.Fields(m.Time, m.U, m.V, m.W, m.StrainHeating, m.Friction); err != nil {
			return err
		}
		// The thickness of the neighbours decides which columns are
		// marginal.
		return m.Comm.UpdateGhosts(ctx, m.Thickness)
	}
}

// InitializeEnthalpy sets the ice to cold ice at temperature T [K]. If
// T is zero, each column takes its surface temperature instead. Cells
// above the ice surface are set to zero.
func InitializeEnthalpy(T float64) DomainManipulator {
	return func(ctx context.Context, m *Model) error {
		z := m.Comm.Grid().Zlevels
		err := m.forOwned(func(i, j int) error {
			H := m.Thickness.Get(i, j)
			temp := T
			if temp == 0 {
				temp = m.SurfaceTemp.Get(i, j)
			}
			col := m.Enthalpy.Column(i, j)
			for k := range col {
				if H <= 0 || z[k] > H {
					col[k] = 0
					continue
				}
				E, err := m.conv.EnthalpyColdIce(temp, m.conv.PressureFromDepth(H-z[k]))
				if err != nil {
					return &ColumnError{I: i, J: j, Row: k, Err: err}
				}
				col[k] = E
			}
			return nil
		})
		if err != nil {
			return err
		}
		return m.Comm.UpdateGhosts(ctx, m.Enthalpy)
	}
}

// InitializeBedrock sets each bedrock column to the steady profile
// that carries the geothermal flux up to the temperature at the base
// of the ice.
func InitializeBedrock() DomainManipulator {
	return func(_ context.Context, m *Model) error {
		return m.forOwned(func(i, j int) error {
			Ttop, err := m.baseTemperature(i, j)
			if err != nil {
				return err
			}
			bedrock.Bootstrap(m.rock, m.BedrockTemp.Column(i, j), Ttop, m.GeothermalFlux.Get(i, j))
			return nil
		})
	}
}

// baseTemperature returns the temperature seen by the top of the
// bedrock in column (i, j).
func (m *Model) baseTemperature(i, j int) (float64, error) {
	H := m.Thickness.Get(i, j)
	switch {
	case coupler.MaskAt(m.Mask, i, j) == coupler.Floating:
		return m.ShelfBaseTemp.Get(i, j), nil
	case H > 0:
		T, err := m.conv.AbsTemp(m.Enthalpy.Get(i, j, 0), m.conv.PressureFromDepth(H))
		if err != nil {
			return T, &ColumnError{I: i, J: j, Err: err}
		}
		return T, nil
	default:
		return m.SurfaceTemp.Get(i, j), nil
	}
}
