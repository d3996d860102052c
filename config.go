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
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/unit"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/grid"
	"github.com/spatialmodel/icetherm/science/bedrock"
	"github.com/spatialmodel/icetherm/science/enthalpy"
)

// Config holds the physical constants and model settings. It is
// decoded from TOML; every field has a default in DefaultConfig.
type Config struct {
	Grid struct {
		Mx, My int     // number of grid cells
		Dx, Dy float64 // grid spacing [m]

		Lz float64 // height of the computational domain in the ice [m]
		Mz int     // number of ice storage levels

		// VerticalSpacing is "equal" or "quadratic". Quadratic levels
		// are finer near the base; QuadraticLambda is the ratio of the
		// spacing at the top to the spacing at the base.
		VerticalSpacing string
		QuadraticLambda float64

		Lbz float64 // thickness of the bedrock thermal layer [m]
		Mbz int     // number of bedrock levels
	}

	Ice struct {
		Density                    float64 // [kg/m³]
		SpecificHeat               float64 // [J/(kg K)]
		Conductivity               float64 // [W/(m K)]
		LatentHeat                 float64 // [J/kg]
		MeltingPointTemp           float64 // at atmospheric pressure [K]
		ClausiusClapeyron          float64 // [K/Pa]
		ReferenceTemp              float64 // temperature of zero enthalpy [K]
		TemperateConductivityRatio float64 // [1]
		VariableConductivity       bool

		// ColdIce selects the verification mode, in which all ice is
		// cold and the melting point does not depend on pressure.
		ColdIce bool
	}

	Bedrock struct {
		Density      float64 // [kg/m³]
		SpecificHeat float64 // [J/(kg K)]
		Conductivity float64 // [W/(m K)]
	}

	Gravity     float64 // [m/s²]
	AirPressure float64 // [Pa]

	// WaterFractionMax is the largest liquid water fraction ice can
	// hold before the excess drains to the base.
	WaterFractionMax float64

	HmeltMax float64 // maximum stored basal water [m]

	// BulgeMaxTemp is the largest amount [K] by which the cold-ice
	// temperature below the surface may fall under the surface value.
	BulgeMaxTemp float64

	// ThinNeighbourThickness is the thickness [m] under which a
	// neighbouring column makes a column marginal.
	ThinNeighbourThickness float64

	Boundary struct {
		// SurfaceTemperature is an expression of x, y [m] and t [years]
		// giving the surface temperature [K].
		SurfaceTemperature string

		GeothermalFlux float64 // [W/m²]
		Friction       float64 // basal frictional heating [W/m²]

		// The ice is a dome of central thickness DomeThickness and
		// radius DomeRadius, or a slab of uniform thickness
		// DomeThickness if DomeRadius is zero.
		DomeThickness, DomeRadius float64 // [m]
		BedElevation, SeaLevel    float64 // [m]
		SeawaterDensity           float64 // [kg/m³]
		OceanSalinity             float64 // [g/kg]
		ShelfMeltRate             float64 // [m/year]

		VerticalVelocity float64 // [m/year]
		StrainHeating    float64 // [W/m³]
	}

	// InitialTemperature [K] sets the ice to a uniform temperature at
	// the start. If zero, the ice starts at the surface temperature.
	InitialTemperature float64

	TimestepYears float64 // [years]
	RunYears      float64 // [years]
	Ranks         int     // number of ranks the grid is split over

	// OutputVariables maps output names to expressions of model
	// variables. See Outputter.
	OutputVariables map[string]string

	OutputFile string // summary output file, or "" for none
	LogFile    string // log file, or "" for none
}

// DefaultConfig returns a configuration with standard physical
// constants and a small ice cap.
func DefaultConfig() *Config {
	c := new(Config)
	c.Grid.Mx, c.Grid.My = 21, 21
	c.Grid.Dx, c.Grid.Dy = 50000, 50000
	c.Grid.Lz, c.Grid.Mz = 4000, 41
	c.Grid.VerticalSpacing = "equal"
	c.Grid.QuadraticLambda = 4
	c.Grid.Lbz, c.Grid.Mbz = 2000, 21

	ice := enthalpy.DefaultParams()
	c.Ice.Density = ice.IceDensity
	c.Ice.SpecificHeat = ice.IceSpecificHeat
	c.Ice.Conductivity = ice.IceConductivity
	c.Ice.LatentHeat = ice.LatentHeat
	c.Ice.MeltingPointTemp = ice.MeltingPointTemp
	c.Ice.ClausiusClapeyron = ice.ClausiusClapeyron
	c.Ice.ReferenceTemp = ice.ReferenceTemp
	c.Ice.TemperateConductivityRatio = 0.1
	c.Gravity = ice.Gravity
	c.AirPressure = ice.AirPressure

	rock := bedrock.DefaultParams()
	c.Bedrock.Density = rock.Density
	c.Bedrock.SpecificHeat = rock.SpecificHeat
	c.Bedrock.Conductivity = rock.Conductivity

	c.WaterFractionMax = 0.01
	c.HmeltMax = 2
	c.BulgeMaxTemp = 15
	c.ThinNeighbourThickness = 100

	c.Boundary.SurfaceTemperature = "min(273.15, 238.15 + 0.000025*sqrt(x*x + y*y))"
	c.Boundary.GeothermalFlux = 0.042
	c.Boundary.DomeThickness = 3000
	c.Boundary.DomeRadius = 450000
	c.Boundary.BedElevation = 0
	c.Boundary.SeawaterDensity = 1028
	c.Boundary.OceanSalinity = 35

	c.TimestepYears = 10
	c.RunYears = 1000
	c.Ranks = 1
	c.OutputVariables = map[string]string{
		"Tbase":  "BasalTemperature",
		"Hmelt":  "Hmelt",
		"bmelt":  "BasalMeltRate * 31556925.9747",
		"omega":  "WaterFraction",
		"Tpa":    "PATemperature",
		"bheatf": "BedrockFlux",
	}
	return c
}

// ReadConfigFile reads and parses a TOML configuration file. Values
// not present in the file keep their defaults. File paths may contain
// environment variables.
func ReadConfigFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("icetherm: the configuration file you have specified, %v, does not "+
			"appear to exist. Please check the file name and location and try again", filename)
	}
	defer f.Close()

	c := DefaultConfig()
	if _, err := toml.DecodeReader(f, c); err != nil {
		return nil, fmt.Errorf("icetherm: there has been an error parsing the configuration file: %v", err)
	}
	for k, v := range c.OutputVariables {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		c.OutputVariables[k] = os.ExpandEnv(v)
	}
	c.OutputFile = os.ExpandEnv(c.OutputFile)
	c.LogFile = os.ExpandEnv(c.LogFile)
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dimensions used to check the configuration.
var (
	jPerKgK = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -2, unit.TemperatureDim: -1}
	wPerMK  = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -3, unit.TemperatureDim: -1}
	jPerKg  = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -2}
	kPerPa  = unit.Dimensions{unit.TemperatureDim: 1, unit.MassDim: -1, unit.LengthDim: 1, unit.TimeDim: 2}
	wPerM2  = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3}
	m2PerS  = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -1}
)

type quantity struct {
	name string
	u    *unit.Unit
}

// Check returns an error if the configuration is not usable.
func (c *Config) Check() error {
	positive := []quantity{
		{"Grid.Dx", unit.New(c.Grid.Dx, unit.Meter)},
		{"Grid.Dy", unit.New(c.Grid.Dy, unit.Meter)},
		{"Grid.Lz", unit.New(c.Grid.Lz, unit.Meter)},
		{"Ice.Density", unit.New(c.Ice.Density, unit.KilogramPerMeter3)},
		{"Ice.SpecificHeat", unit.New(c.Ice.SpecificHeat, jPerKgK)},
		{"Ice.Conductivity", unit.New(c.Ice.Conductivity, wPerMK)},
		{"Ice.LatentHeat", unit.New(c.Ice.LatentHeat, jPerKg)},
		{"Ice.MeltingPointTemp", unit.New(c.Ice.MeltingPointTemp, unit.Kelvin)},
		{"Ice.ReferenceTemp", unit.New(c.Ice.ReferenceTemp, unit.Kelvin)},
		{"Bedrock.Density", unit.New(c.Bedrock.Density, unit.KilogramPerMeter3)},
		{"Bedrock.SpecificHeat", unit.New(c.Bedrock.SpecificHeat, jPerKgK)},
		{"Bedrock.Conductivity", unit.New(c.Bedrock.Conductivity, wPerMK)},
		{"Gravity", unit.New(c.Gravity, unit.MeterPerSecond2)},
		{"Boundary.SeawaterDensity", unit.New(c.Boundary.SeawaterDensity, unit.KilogramPerMeter3)},
		{"TimestepYears", unit.New(c.TimestepYears, unit.Dimless)},
	}
	for _, q := range positive {
		if !(q.u.Value() > 0) {
			return fmt.Errorf("icetherm: configuration variable %s must be positive, got %v", q.name, q.u)
		}
	}
	nonNegative := []quantity{
		{"Ice.ClausiusClapeyron", unit.New(c.Ice.ClausiusClapeyron, kPerPa)},
		{"Ice.TemperateConductivityRatio", unit.New(c.Ice.TemperateConductivityRatio, unit.Dimless)},
		{"AirPressure", unit.New(c.AirPressure, unit.Pascal)},
		{"Grid.Lbz", unit.New(c.Grid.Lbz, unit.Meter)},
		{"WaterFractionMax", unit.New(c.WaterFractionMax, unit.Dimless)},
		{"HmeltMax", unit.New(c.HmeltMax, unit.Meter)},
		{"BulgeMaxTemp", unit.New(c.BulgeMaxTemp, unit.Kelvin)},
		{"ThinNeighbourThickness", unit.New(c.ThinNeighbourThickness, unit.Meter)},
		{"Boundary.GeothermalFlux", unit.New(c.Boundary.GeothermalFlux, wPerM2)},
		{"RunYears", unit.New(c.RunYears, unit.Dimless)},
		{"Boundary.DomeThickness", unit.New(c.Boundary.DomeThickness, unit.Meter)},
		{"Boundary.DomeRadius", unit.New(c.Boundary.DomeRadius, unit.Meter)},
	}
	for _, q := range nonNegative {
		if q.u.Value() < 0 || q.u.Value() != q.u.Value() {
			return fmt.Errorf("icetherm: configuration variable %s must not be negative, got %v", q.name, q.u)
		}
	}
	if c.InitialTemperature != 0 && !(c.InitialTemperature >= c.Ice.ReferenceTemp) {
		return fmt.Errorf("icetherm: InitialTemperature %g K is below Ice.ReferenceTemp %g K",
			c.InitialTemperature, c.Ice.ReferenceTemp)
	}
	if c.WaterFractionMax > 1 {
		return fmt.Errorf("icetherm: WaterFractionMax must not exceed 1, got %g", c.WaterFractionMax)
	}

	// The thermal diffusivities follow from the constants above; checking
	// their dimensions catches constants entered in the wrong slot.
	for _, d := range []struct {
		name       string
		k, rho, cp float64
	}{
		{"ice", c.Ice.Conductivity, c.Ice.Density, c.Ice.SpecificHeat},
		{"bedrock", c.Bedrock.Conductivity, c.Bedrock.Density, c.Bedrock.SpecificHeat},
	} {
		kappa := unit.Div(unit.New(d.k, wPerMK), unit.New(d.rho, unit.KilogramPerMeter3), unit.New(d.cp, jPerKgK))
		if err := kappa.Check(m2PerS); err != nil {
			return fmt.Errorf("icetherm: %s thermal diffusivity: %v", d.name, err)
		}
	}

	if c.Grid.Mz < 2 {
		return fmt.Errorf("icetherm: Grid.Mz must be at least 2, got %d", c.Grid.Mz)
	}
	if c.Grid.Mbz < 1 {
		return fmt.Errorf("icetherm: Grid.Mbz must be at least 1, got %d", c.Grid.Mbz)
	}
	switch c.Grid.VerticalSpacing {
	case "equal":
	case "quadratic":
		if c.Grid.QuadraticLambda < 1 {
			return fmt.Errorf("icetherm: Grid.QuadraticLambda must be at least 1, got %g", c.Grid.QuadraticLambda)
		}
	default:
		return fmt.Errorf("icetherm: Grid.VerticalSpacing must be 'equal' or 'quadratic', got '%s'", c.Grid.VerticalSpacing)
	}
	if c.Ranks < 1 {
		return fmt.Errorf("icetherm: Ranks must be at least 1, got %d", c.Ranks)
	}
	g := c.ComputationalGrid()
	_, err := g.Decompose(g.Layout(c.Ranks))
	return err
}

// ComputationalGrid returns the grid described by c.
func (c *Config) ComputationalGrid() grid.Grid {
	g := grid.Grid{
		Mx:           c.Grid.Mx,
		My:           c.Grid.My,
		Dx:           c.Grid.Dx,
		Dy:           c.Grid.Dy,
		Mbz:          c.Grid.Mbz,
		BedrockDepth: c.Grid.Lbz,
	}
	if c.Grid.VerticalSpacing == "quadratic" {
		g.Zlevels = grid.Quadratic(c.Grid.Lz, c.Grid.Mz, c.Grid.QuadraticLambda)
	} else {
		g.Zlevels = grid.EquallySpaced(c.Grid.Lz, c.Grid.Mz)
	}
	return g
}

// EnthalpyParams returns the ice constants in c.
func (c *Config) EnthalpyParams() enthalpy.Params {
	return enthalpy.Params{
		IceDensity:           c.Ice.Density,
		IceSpecificHeat:      c.Ice.SpecificHeat,
		IceConductivity:      c.Ice.Conductivity,
		LatentHeat:           c.Ice.LatentHeat,
		MeltingPointTemp:     c.Ice.MeltingPointTemp,
		ClausiusClapeyron:    c.Ice.ClausiusClapeyron,
		Gravity:              c.Gravity,
		AirPressure:          c.AirPressure,
		ReferenceTemp:        c.Ice.ReferenceTemp,
		VariableConductivity: c.Ice.VariableConductivity,
	}
}

// Mode returns the enthalpy conversion mode selected by c.
func (c *Config) Mode() enthalpy.Mode {
	if c.Ice.ColdIce {
		return enthalpy.ColdIce
	}
	return enthalpy.Standard
}

// BedrockParams returns the bedrock thermal layer described by c.
func (c *Config) BedrockParams() bedrock.Params {
	return bedrock.Params{
		Density:      c.Bedrock.Density,
		SpecificHeat: c.Bedrock.SpecificHeat,
		Conductivity: c.Bedrock.Conductivity,
		Depth:        c.Grid.Lbz,
		Levels:       c.Grid.Mbz,
	}
}

// Couplers returns the boundary conditions described by c.
func (c *Config) Couplers() (Couplers, error) {
	surf, err := coupler.NewExprSurface(c.Boundary.SurfaceTemperature)
	if err != nil {
		return Couplers{}, err
	}
	fl := coupler.Flotation{
		Bed:             c.Boundary.BedElevation,
		SeaLevel:        c.Boundary.SeaLevel,
		IceDensity:      c.Ice.Density,
		SeawaterDensity: c.Boundary.SeawaterDensity,
	}
	var geom coupler.Geometry = coupler.Slab{H: c.Boundary.DomeThickness, Flotation: fl}
	if c.Boundary.DomeRadius > 0 {
		geom = coupler.Dome{H0: c.Boundary.DomeThickness, R: c.Boundary.DomeRadius, Flotation: fl}
	}
	return Couplers{
		Surface: surf,
		Ocean: coupler.ConstantOcean{
			Salinity:        c.Boundary.OceanSalinity,
			MeltRate:        c.Boundary.ShelfMeltRate / SecondsPerYear,
			IceDensity:      c.Ice.Density,
			SeawaterDensity: c.Boundary.SeawaterDensity,
		},
		Geothermal: coupler.ConstantGeothermal{G: c.Boundary.GeothermalFlux},
		Velocity: coupler.UniformVelocity{
			W:             c.Boundary.VerticalVelocity / SecondsPerYear,
			StrainHeating: c.Boundary.StrainHeating,
			Friction:      c.Boundary.Friction,
		},
		Geometry: geom,
	}, nil
}
