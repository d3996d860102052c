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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/grid"
)

const testConfigFile = `
TimestepYears = 5
RunYears = 50
Ranks = 2
OutputFile = "${ICETHERM_TEST_DIR}/summary.txt"

[Grid]
Mx = 11
My = 9
Lz = 3500
Mz = 36
VerticalSpacing = "quadratic"

[Ice]
VariableConductivity = true

[Boundary]
SurfaceTemperature = "248.15"
GeothermalFlux = 0.06
DomeRadius = 0
DomeThickness = 2000

[OutputVariables]
Tbase = """BasalTemperature
- 273.15"""
`

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(fname, []byte(testConfigFile), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("ICETHERM_TEST_DIR", dir)
	defer os.Unsetenv("ICETHERM_TEST_DIR")

	cfg, err := ReadConfigFile(fname)
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	want.TimestepYears = 5
	want.RunYears = 50
	want.Ranks = 2
	want.OutputFile = filepath.Join(dir, "summary.txt")
	want.Grid.Mx, want.Grid.My = 11, 9
	want.Grid.Lz, want.Grid.Mz = 3500, 36
	want.Grid.VerticalSpacing = "quadratic"
	want.Ice.VariableConductivity = true
	want.Boundary.SurfaceTemperature = "248.15"
	want.Boundary.GeothermalFlux = 0.06
	want.Boundary.DomeRadius = 0
	want.Boundary.DomeThickness = 2000
	if got := cfg.OutputVariables["Tbase"]; got != "BasalTemperature - 273.15" {
		t.Errorf("Tbase = %q", got)
	}
	want.OutputVariables = cfg.OutputVariables

	if diff := pretty.Diff(want, cfg); len(diff) != 0 {
		t.Error(strings.Join(diff, "\n"))
	}

	cpl, err := cfg.Couplers()
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := cpl.Geometry.(coupler.Slab); !ok || s.H != 2000 {
		t.Errorf("geometry is %#v, want a 2000 m slab", cpl.Geometry)
	}
	g := cfg.ComputationalGrid()
	if g.Mz() != 36 || g.Lz() != 3500 {
		t.Errorf("grid has %d levels up to %g m", g.Mz(), g.Lz())
	}
	if !cfg.EnthalpyParams().VariableConductivity {
		t.Error("variable conductivity not set")
	}
}

func TestReadConfigFileMissing(t *testing.T) {
	if _, err := ReadConfigFile(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected an error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Check(); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Couplers(); err != nil {
		t.Fatal(err)
	}
	rock := cfg.BedrockParams()
	if !rock.Active() || rock.Spacing() != 100 {
		t.Errorf("bedrock layer %+v", rock)
	}
}

// Every expression in the default configuration must parse and
// evaluate, or the command line tools fail before the first step.
func TestDefaultExpressions(t *testing.T) {
	cfg := DefaultConfig()
	cpl, err := cfg.Couplers()
	if err != nil {
		t.Fatal(err)
	}
	patches, err := cfg.ComputationalGrid().Decompose(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	Ts := grid.NewField2D("ice_surface_temp", patches[0])
	if err := cpl.Surface.Temperature(0, 1, Ts); err != nil {
		t.Fatal(err)
	}
	if T := Ts.Get(10, 10); math.Abs(T-238.15) > 1e-9 {
		t.Errorf("dome center surface temperature %g", T)
	}
	want := 238.15 + 0.000025*math.Hypot(500000, 500000)
	if T := Ts.Get(0, 20); math.Abs(T-want) > 1e-9 {
		t.Errorf("corner surface temperature: want %g, have %g", want, T)
	}

	o, err := NewOutputter("", false, cfg.OutputVariables, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(o.order) != len(cfg.OutputVariables) {
		t.Errorf("output order %v", o.order)
	}
}

func TestConfigCheck(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{"density", func(c *Config) { c.Ice.Density = -910 }, "Ice.Density must be positive"},
		{"conductivity", func(c *Config) { c.Bedrock.Conductivity = 0 }, "Bedrock.Conductivity must be positive"},
		{"hmelt", func(c *Config) { c.HmeltMax = -1 }, "HmeltMax must not be negative"},
		{"omega", func(c *Config) { c.WaterFractionMax = 1.5 }, "WaterFractionMax must not exceed 1"},
		{"mz", func(c *Config) { c.Grid.Mz = 1 }, "Grid.Mz must be at least 2"},
		{"spacing", func(c *Config) { c.Grid.VerticalSpacing = "cubic" }, "Grid.VerticalSpacing"},
		{"lambda", func(c *Config) { c.Grid.VerticalSpacing, c.Grid.QuadraticLambda = "quadratic", 0.5 }, "QuadraticLambda"},
		{"ranks", func(c *Config) { c.Ranks = 0 }, "Ranks must be at least 1"},
		{"decompose", func(c *Config) { c.Grid.Mx, c.Grid.My, c.Ranks = 2, 1, 3 }, "cannot split"},
		{"nan", func(c *Config) { c.BulgeMaxTemp = math.NaN() }, "BulgeMaxTemp"},
		{"initial temperature", func(c *Config) { c.InitialTemperature = 200 }, "InitialTemperature 200 K is below"},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := DefaultConfig()
			test.modify(c)
			err := c.Check()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), test.errMsg) {
				t.Errorf("error %q does not contain %q", err, test.errMsg)
			}
		})
	}
}

func TestConfigMode(t *testing.T) {
	c := DefaultConfig()
	if c.Mode().String() != "standard" {
		t.Errorf("mode %v", c.Mode())
	}
	c.Ice.ColdIce = true
	if c.Mode().String() != "cold-ice" {
		t.Errorf("mode %v", c.Mode())
	}
}
