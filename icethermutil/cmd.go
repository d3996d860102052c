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

package icethermutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/icetherm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	d := icetherm.DefaultConfig()
	model := []*pflag.FlagSet{runCmd.PersistentFlags(), profileCmd.Flags()}

	// Options are the configuration options available to IceTherm.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the summary table of output variables.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "icetherm_summary.txt",
			flagsets:   model,
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left empty, the log file will be
              saved in the same location as the OutputFile with the extension .log.`,
			defaultVal: "",
			flagsets:   model,
		},
		{
			name: "OutputAllLevels",
			usage: `
              OutputAllLevels specifies whether the output summary covers all
              vertical levels of 3D variables instead of only the base of the ice.`,
			defaultVal: false,
			flagsets:   model,
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be included in the
              output summary. It can include environment variables.`,
			defaultVal: d.OutputVariables,
			flagsets:   model,
		},
		{
			name: "TimestepYears",
			usage: `
              TimestepYears is the model time step in years. It is reduced if it
              exceeds the stability limit of the bedrock thermal layer.`,
			defaultVal: d.TimestepYears,
			flagsets:   model,
		},
		{
			name: "RunYears",
			usage: `
              RunYears is the length of the simulation in years.`,
			defaultVal: d.RunYears,
			flagsets:   model,
		},
		{
			name: "Ranks",
			usage: `
              Ranks is the number of patches the horizontal grid is split into,
              each of which is solved concurrently.`,
			shorthand:  "n",
			defaultVal: d.Ranks,
			flagsets:   model,
		},
		{
			name: "InitialTemperature",
			usage: `
              InitialTemperature is the uniform starting temperature of the ice [K].
              If it is zero, the ice starts at the surface temperature.`,
			defaultVal: d.InitialTemperature,
			flagsets:   model,
		},
		{
			name: "Grid.Mx",
			usage: `
              Grid.Mx is the number of grid cells in the x direction.`,
			defaultVal: d.Grid.Mx,
			flagsets:   model,
		},
		{
			name: "Grid.My",
			usage: `
              Grid.My is the number of grid cells in the y direction.`,
			defaultVal: d.Grid.My,
			flagsets:   model,
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the grid cell length in the x direction [m].`,
			defaultVal: d.Grid.Dx,
			flagsets:   model,
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the grid cell length in the y direction [m].`,
			defaultVal: d.Grid.Dy,
			flagsets:   model,
		},
		{
			name: "Grid.Lz",
			usage: `
              Grid.Lz is the height of the computational domain in the ice [m].
              The ice must not be thicker than Lz.`,
			defaultVal: d.Grid.Lz,
			flagsets:   model,
		},
		{
			name: "Grid.Mz",
			usage: `
              Grid.Mz is the number of vertical levels in the ice.`,
			defaultVal: d.Grid.Mz,
			flagsets:   model,
		},
		{
			name: "Grid.VerticalSpacing",
			usage: `
              Grid.VerticalSpacing is either "equal" or "quadratic". Quadratic
              spacing places more levels near the base of the ice.`,
			defaultVal: d.Grid.VerticalSpacing,
			flagsets:   model,
		},
		{
			name: "Grid.QuadraticLambda",
			usage: `
              Grid.QuadraticLambda is the ratio of the level spacing at the top of
              the domain to the spacing at the base, for quadratic spacing.`,
			defaultVal: d.Grid.QuadraticLambda,
			flagsets:   model,
		},
		{
			name: "Grid.Lbz",
			usage: `
              Grid.Lbz is the thickness of the bedrock thermal layer [m].`,
			defaultVal: d.Grid.Lbz,
			flagsets:   model,
		},
		{
			name: "Grid.Mbz",
			usage: `
              Grid.Mbz is the number of levels in the bedrock thermal layer. With
              a single level, the geothermal flux is applied directly to the ice.`,
			defaultVal: d.Grid.Mbz,
			flagsets:   model,
		},
		{
			name: "Ice.Density",
			usage: `
              Ice.Density is the density of ice [kg/m³].`,
			defaultVal: d.Ice.Density,
			flagsets:   model,
		},
		{
			name: "Ice.SpecificHeat",
			usage: `
              Ice.SpecificHeat is the specific heat capacity of ice [J/(kg K)].`,
			defaultVal: d.Ice.SpecificHeat,
			flagsets:   model,
		},
		{
			name: "Ice.Conductivity",
			usage: `
              Ice.Conductivity is the thermal conductivity of cold ice [W/(m K)].`,
			defaultVal: d.Ice.Conductivity,
			flagsets:   model,
		},
		{
			name: "Ice.LatentHeat",
			usage: `
              Ice.LatentHeat is the latent heat of fusion of water [J/kg].`,
			defaultVal: d.Ice.LatentHeat,
			flagsets:   model,
		},
		{
			name: "Ice.MeltingPointTemp",
			usage: `
              Ice.MeltingPointTemp is the melting point of ice at atmospheric
              pressure [K].`,
			defaultVal: d.Ice.MeltingPointTemp,
			flagsets:   model,
		},
		{
			name: "Ice.ClausiusClapeyron",
			usage: `
              Ice.ClausiusClapeyron is the rate at which the melting point falls
              with pressure [K/Pa].`,
			defaultVal: d.Ice.ClausiusClapeyron,
			flagsets:   model,
		},
		{
			name: "Ice.ReferenceTemp",
			usage: `
              Ice.ReferenceTemp is the temperature at which enthalpy is zero [K].`,
			defaultVal: d.Ice.ReferenceTemp,
			flagsets:   model,
		},
		{
			name: "Ice.TemperateConductivityRatio",
			usage: `
              Ice.TemperateConductivityRatio is the conductivity of temperate ice
              as a fraction of the cold-ice conductivity.`,
			defaultVal: d.Ice.TemperateConductivityRatio,
			flagsets:   model,
		},
		{
			name: "Ice.VariableConductivity",
			usage: `
              Ice.VariableConductivity specifies whether the conductivity of cold
              ice depends on temperature.`,
			defaultVal: d.Ice.VariableConductivity,
			flagsets:   model,
		},
		{
			name: "Ice.ColdIce",
			usage: `
              Ice.ColdIce selects the cold-ice mode, in which the ice never becomes
              temperate and basal water does not change. It is used for verification
              against cold-ice solutions.`,
			defaultVal: d.Ice.ColdIce,
			flagsets:   model,
		},
		{
			name: "Bedrock.Density",
			usage: `
              Bedrock.Density is the density of the bedrock [kg/m³].`,
			defaultVal: d.Bedrock.Density,
			flagsets:   model,
		},
		{
			name: "Bedrock.SpecificHeat",
			usage: `
              Bedrock.SpecificHeat is the specific heat capacity of the bedrock
              [J/(kg K)].`,
			defaultVal: d.Bedrock.SpecificHeat,
			flagsets:   model,
		},
		{
			name: "Bedrock.Conductivity",
			usage: `
              Bedrock.Conductivity is the thermal conductivity of the bedrock
              [W/(m K)].`,
			defaultVal: d.Bedrock.Conductivity,
			flagsets:   model,
		},
		{
			name: "Gravity",
			usage: `
              Gravity is the acceleration due to gravity [m/s²].`,
			defaultVal: d.Gravity,
			flagsets:   model,
		},
		{
			name: "AirPressure",
			usage: `
              AirPressure is the pressure at the ice surface [Pa].`,
			defaultVal: d.AirPressure,
			flagsets:   model,
		},
		{
			name: "WaterFractionMax",
			usage: `
              WaterFractionMax is the largest liquid water fraction ice can hold.
              Water in excess of it drains to the base.`,
			defaultVal: d.WaterFractionMax,
			flagsets:   model,
		},
		{
			name: "HmeltMax",
			usage: `
              HmeltMax is the largest thickness of stored basal water [m].`,
			defaultVal: d.HmeltMax,
			flagsets:   model,
		},
		{
			name: "BulgeMaxTemp",
			usage: `
              BulgeMaxTemp is the largest amount by which the temperature of cold
              ice may fall below the surface temperature [K].`,
			defaultVal: d.BulgeMaxTemp,
			flagsets:   model,
		},
		{
			name: "ThinNeighbourThickness",
			usage: `
              ThinNeighbourThickness is the ice thickness [m] under which a
              neighbouring column turns off horizontal advection and strain heating.`,
			defaultVal: d.ThinNeighbourThickness,
			flagsets:   model,
		},
		{
			name: "Boundary.SurfaceTemperature",
			usage: `
              Boundary.SurfaceTemperature is an expression giving the ice surface
              temperature [K] in terms of x and y [m] from the grid center and t [years].`,
			defaultVal: d.Boundary.SurfaceTemperature,
			flagsets:   model,
		},
		{
			name: "Boundary.GeothermalFlux",
			usage: `
              Boundary.GeothermalFlux is the heat flux entering the bottom of the
              bedrock layer [W/m²].`,
			defaultVal: d.Boundary.GeothermalFlux,
			flagsets:   model,
		},
		{
			name: "Boundary.Friction",
			usage: `
              Boundary.Friction is the frictional heating at the base of grounded
              ice [W/m²].`,
			defaultVal: d.Boundary.Friction,
			flagsets:   model,
		},
		{
			name: "Boundary.DomeThickness",
			usage: `
              Boundary.DomeThickness is the thickness of the ice at the center of
              the dome [m], or of the slab if DomeRadius is zero.`,
			defaultVal: d.Boundary.DomeThickness,
			flagsets:   model,
		},
		{
			name: "Boundary.DomeRadius",
			usage: `
              Boundary.DomeRadius is the radius of the ice dome [m]. If it is zero,
              the ice is a slab of uniform thickness.`,
			defaultVal: d.Boundary.DomeRadius,
			flagsets:   model,
		},
		{
			name: "Boundary.BedElevation",
			usage: `
              Boundary.BedElevation is the elevation of the bed [m].`,
			defaultVal: d.Boundary.BedElevation,
			flagsets:   model,
		},
		{
			name: "Boundary.SeaLevel",
			usage: `
              Boundary.SeaLevel is the elevation of the sea surface [m].`,
			defaultVal: d.Boundary.SeaLevel,
			flagsets:   model,
		},
		{
			name: "Boundary.SeawaterDensity",
			usage: `
              Boundary.SeawaterDensity is the density of seawater [kg/m³].`,
			defaultVal: d.Boundary.SeawaterDensity,
			flagsets:   model,
		},
		{
			name: "Boundary.OceanSalinity",
			usage: `
              Boundary.OceanSalinity is the salinity of the ocean beneath ice
              shelves [g/kg].`,
			defaultVal: d.Boundary.OceanSalinity,
			flagsets:   model,
		},
		{
			name: "Boundary.ShelfMeltRate",
			usage: `
              Boundary.ShelfMeltRate is the melt rate at the base of ice shelves
              [m/year].`,
			defaultVal: d.Boundary.ShelfMeltRate,
			flagsets:   model,
		},
		{
			name: "Boundary.VerticalVelocity",
			usage: `
              Boundary.VerticalVelocity is the uniform vertical ice velocity
              [m/year]. Negative values are downward.`,
			defaultVal: d.Boundary.VerticalVelocity,
			flagsets:   model,
		},
		{
			name: "Boundary.StrainHeating",
			usage: `
              Boundary.StrainHeating is the uniform strain heating rate [W/m³].`,
			defaultVal: d.Boundary.StrainHeating,
			flagsets:   model,
		},
		{
			name: "tolerance",
			usage: `
              tolerance is the fractional change in total enthalpy and basal water
              between checks below which a steady-state run has converged.`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags()},
		},
		{
			name: "checkYears",
			usage: `
              checkYears is the number of model years between convergence checks.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags()},
		},
		{
			name: "i",
			usage: `
              i is the x index of the column to plot.`,
			defaultVal: d.Grid.Mx / 2,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
		{
			name: "j",
			usage: `
              j is the y index of the column to plot.`,
			defaultVal: d.Grid.My / 2,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where the temperature profile plot is written
              in PNG format.`,
			defaultVal: "icetherm_profile.png",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ICETHERM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	runCmd.AddCommand(steadyCmd)
	Root.AddCommand(profileCmd)
	Root.AddCommand(optionsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("icetherm: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "icetherm",
	Short: "An enthalpy model of ice sheet temperature.",
	Long: `IceTherm computes the temperature, liquid water content and basal melt of
ice sheets and ice shelves using an enthalpy formulation with a bedrock
thermal layer. Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ICETHERM_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of IceTherm.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("IceTherm v%s\n", icetherm.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs an IceTherm simulation for RunYears model years and writes a
summary of the output variables to OutputFile. Use the 'steady' subcommand
to run until the model reaches a steady state instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := IceThermConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, cfg, Cfg.GetBool("OutputAllLevels"),
			[]icetherm.DomainManipulator{icetherm.RunPeriod(cfg.RunYears)}, nil)
	},
	DisableAutoGenTag: true,
}

// steadyCmd is a command that runs a simulation to steady state.
var steadyCmd = &cobra.Command{
	Use:   "steady",
	Short: "Run IceTherm to steady state.",
	Long: `steady runs IceTherm until the total enthalpy and basal water stop
changing, or until RunYears model years have passed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := IceThermConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, cfg, Cfg.GetBool("OutputAllLevels"), []icetherm.DomainManipulator{
			icetherm.SteadyStateConvergenceCheck(-1, Cfg.GetFloat64("tolerance"), Cfg.GetFloat64("checkYears")),
			icetherm.RunPeriod(cfg.RunYears),
		}, nil)
	},
	DisableAutoGenTag: true,
}

// profileCmd runs a simulation and plots the temperature profile of
// one column.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Plot a temperature profile.",
	Long: `profile runs IceTherm for RunYears model years and plots the final
temperature profile of column (i, j) to PlotFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := IceThermConfig(Cfg)
		if err != nil {
			return err
		}
		plotFile, err := checkOutputFile(Cfg.GetString("PlotFile"))
		if err != nil {
			return err
		}
		return Run(cmd, cfg, false,
			[]icetherm.DomainManipulator{icetherm.RunPeriod(cfg.RunYears)},
			[]icetherm.DomainManipulator{icetherm.ProfilePlot(plotFile, Cfg.GetInt("i"), Cfg.GetInt("j"))})
	},
	DisableAutoGenTag: true,
}

// optionsCmd lists the model variables available to output expressions.
var optionsCmd = &cobra.Command{
	Use:   "outputoptions",
	Short: "List the available output variables.",
	Long: `outputoptions lists the model variables that can be used in the
OutputVariables expressions, with their descriptions and units.`,
	Run: func(cmd *cobra.Command, args []string) {
		names, descriptions, units := icetherm.OutputOptions()
		for i, n := range names {
			cmd.Printf("%-18s %-52s %s\n", n, descriptions[i], units[i])
		}
	},
	DisableAutoGenTag: true,
}
