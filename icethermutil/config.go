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
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/icetherm"
	"github.com/spf13/cast"
)

// IceThermConfig unmarshals a viper configuration into a model
// configuration and checks it. Variables that are not set keep the
// values from icetherm.DefaultConfig.
func IceThermConfig(cfg *viper.Viper) (*icetherm.Config, error) {
	c := icetherm.DefaultConfig()

	getInt := func(dst *int, key string) {
		if cfg.IsSet(key) {
			*dst = cfg.GetInt(key)
		}
	}
	getFloat := func(dst *float64, key string) {
		if cfg.IsSet(key) {
			*dst = cfg.GetFloat64(key)
		}
	}
	getBool := func(dst *bool, key string) {
		if cfg.IsSet(key) {
			*dst = cfg.GetBool(key)
		}
	}
	getString := func(dst *string, key string) {
		if cfg.IsSet(key) {
			*dst = os.ExpandEnv(cfg.GetString(key))
		}
	}

	getInt(&c.Grid.Mx, "Grid.Mx")
	getInt(&c.Grid.My, "Grid.My")
	getFloat(&c.Grid.Dx, "Grid.Dx")
	getFloat(&c.Grid.Dy, "Grid.Dy")
	getFloat(&c.Grid.Lz, "Grid.Lz")
	getInt(&c.Grid.Mz, "Grid.Mz")
	getString(&c.Grid.VerticalSpacing, "Grid.VerticalSpacing")
	getFloat(&c.Grid.QuadraticLambda, "Grid.QuadraticLambda")
	getFloat(&c.Grid.Lbz, "Grid.Lbz")
	getInt(&c.Grid.Mbz, "Grid.Mbz")

	getFloat(&c.Ice.Density, "Ice.Density")
	getFloat(&c.Ice.SpecificHeat, "Ice.SpecificHeat")
	getFloat(&c.Ice.Conductivity, "Ice.Conductivity")
	getFloat(&c.Ice.LatentHeat, "Ice.LatentHeat")
	getFloat(&c.Ice.MeltingPointTemp, "Ice.MeltingPointTemp")
	getFloat(&c.Ice.ClausiusClapeyron, "Ice.ClausiusClapeyron")
	getFloat(&c.Ice.ReferenceTemp, "Ice.ReferenceTemp")
	getFloat(&c.Ice.TemperateConductivityRatio, "Ice.TemperateConductivityRatio")
	getBool(&c.Ice.VariableConductivity, "Ice.VariableConductivity")
	getBool(&c.Ice.ColdIce, "Ice.ColdIce")

	getFloat(&c.Bedrock.Density, "Bedrock.Density")
	getFloat(&c.Bedrock.SpecificHeat, "Bedrock.SpecificHeat")
	getFloat(&c.Bedrock.Conductivity, "Bedrock.Conductivity")

	getFloat(&c.Gravity, "Gravity")
	getFloat(&c.AirPressure, "AirPressure")
	getFloat(&c.WaterFractionMax, "WaterFractionMax")
	getFloat(&c.HmeltMax, "HmeltMax")
	getFloat(&c.BulgeMaxTemp, "BulgeMaxTemp")
	getFloat(&c.ThinNeighbourThickness, "ThinNeighbourThickness")

	getString(&c.Boundary.SurfaceTemperature, "Boundary.SurfaceTemperature")
	getFloat(&c.Boundary.GeothermalFlux, "Boundary.GeothermalFlux")
	getFloat(&c.Boundary.Friction, "Boundary.Friction")
	getFloat(&c.Boundary.DomeThickness, "Boundary.DomeThickness")
	getFloat(&c.Boundary.DomeRadius, "Boundary.DomeRadius")
	getFloat(&c.Boundary.BedElevation, "Boundary.BedElevation")
	getFloat(&c.Boundary.SeaLevel, "Boundary.SeaLevel")
	getFloat(&c.Boundary.SeawaterDensity, "Boundary.SeawaterDensity")
	getFloat(&c.Boundary.OceanSalinity, "Boundary.OceanSalinity")
	getFloat(&c.Boundary.ShelfMeltRate, "Boundary.ShelfMeltRate")
	getFloat(&c.Boundary.VerticalVelocity, "Boundary.VerticalVelocity")
	getFloat(&c.Boundary.StrainHeating, "Boundary.StrainHeating")

	getFloat(&c.InitialTemperature, "InitialTemperature")
	getFloat(&c.TimestepYears, "TimestepYears")
	getFloat(&c.RunYears, "RunYears")
	getInt(&c.Ranks, "Ranks")

	var err error
	vars := c.OutputVariables
	if cfg.IsSet("OutputVariables") {
		if vars, err = GetStringMapString("OutputVariables", cfg); err != nil {
			return nil, err
		}
	}
	if c.OutputVariables, err = checkOutputVars(vars); err != nil {
		return nil, err
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)

	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="summary.txt")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("icetherm: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if v == "" {
			return make(map[string]string), nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("icetherm: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("icetherm: invalid type for %s: %#v", varName, i)
	}
}
