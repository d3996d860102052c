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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/icetherm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Output variable names are lower case because configuration keys
// are not case sensitive.
const testConfig = `
TimestepYears = 10
RunYears = 30
Ranks = 2
OutputFile = "${ICETHERM_TEST_DIR}/summary.txt"

[Grid]
Mx = 3
My = 3
Dx = 10000.0
Dy = 10000.0
Lz = 1000.0
Mz = 11
Lbz = 200.0
Mbz = 5

[Boundary]
SurfaceTemperature = "250 - 0.0001*abs(x)"
DomeThickness = 500.0
DomeRadius = 0.0

[OutputVariables]
tb = "BasalTemperature"
tbc = "tb - 273.15"
h = "Thickness"
`

// writeConfig writes the test configuration to a temporary directory,
// which is also the output directory, and points Cfg at it.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("ICETHERM_TEST_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("ICETHERM_TEST_DIR") })
	fname := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(fname, []byte(testConfig), 0644))
	Cfg.Set("config", fname)
	t.Cleanup(func() { Cfg.Set("config", "") })
	return dir
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Equal(t, "IceTherm v"+icetherm.Version+"\n", b.String())
}

func TestOutputOptionsCmd(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"outputoptions"})
	require.NoError(t, Root.Execute())
	names, _, _ := icetherm.OutputOptions()
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	assert.Len(t, lines, len(names))
	assert.True(t, strings.HasPrefix(lines[0], names[0]))
}

func TestConfigFile(t *testing.T) {
	dir := writeConfig(t)
	require.NoError(t, setConfig())
	cfg, err := IceThermConfig(Cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Grid.Mx)
	assert.Equal(t, 11, cfg.Grid.Mz)
	assert.Equal(t, 200.0, cfg.Grid.Lbz)
	assert.Equal(t, 2, cfg.Ranks)
	assert.Equal(t, "250 - 0.0001*abs(x)", cfg.Boundary.SurfaceTemperature)
	assert.Equal(t, filepath.Join(dir, "summary.txt"), cfg.OutputFile)
	assert.Equal(t, filepath.Join(dir, "summary.log"), cfg.LogFile)
	assert.Equal(t, map[string]string{
		"tb":  "BasalTemperature",
		"tbc": "tb - 273.15",
		"h":   "Thickness",
	}, cfg.OutputVariables)

	// Unset values keep their defaults.
	d := icetherm.DefaultConfig()
	assert.Equal(t, d.Ice, cfg.Ice)
	assert.Equal(t, d.WaterFractionMax, cfg.WaterFractionMax)
}

func TestBareViper(t *testing.T) {
	v := viper.New()
	v.Set("OutputFile", filepath.Join(t.TempDir(), "out.txt"))
	v.Set("Grid.Mx", 5)
	v.Set("OutputVariables", `{"H": "Thickness"}`)
	cfg, err := IceThermConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Grid.Mx)
	assert.Equal(t, icetherm.DefaultConfig().Grid.My, cfg.Grid.My)
	assert.Equal(t, map[string]string{"H": "Thickness"}, cfg.OutputVariables)

	v.Set("OutputFile", filepath.Join(t.TempDir(), "missing", "out.txt"))
	_, err = IceThermConfig(v)
	assert.Error(t, err)

	v.Set("OutputFile", "")
	_, err = IceThermConfig(v)
	assert.Error(t, err)
}

func TestGetStringMapString(t *testing.T) {
	v := viper.New()
	v.Set("a", map[string]interface{}{"x": "1 + y"})
	v.Set("b", `{"x": "1"}`)
	v.Set("c", "{bad")
	v.Set("d", 3)

	m, err := GetStringMapString("a", v)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "1 + y"}, m)
	m, err = GetStringMapString("b", v)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "1"}, m)
	_, err = GetStringMapString("c", v)
	assert.Error(t, err)
	_, err = GetStringMapString("d", v)
	assert.Error(t, err)
}

func TestCheckOutputVars(t *testing.T) {
	_, err := checkOutputVars(nil)
	assert.Error(t, err)
	os.Setenv("ICETHERM_TEST_OFFSET", "273.15")
	defer os.Unsetenv("ICETHERM_TEST_OFFSET")
	v, err := checkOutputVars(map[string]string{"T": "Temperature\r\n- ${ICETHERM_TEST_OFFSET}"})
	require.NoError(t, err)
	assert.Equal(t, "Temperature - 273.15", v["T"])
}

func TestRun(t *testing.T) {
	dir := writeConfig(t)
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	require.NoError(t, Root.Execute())

	summary, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"h", "Thickness", "500", "500", "500"}, strings.Fields(lines[1]))

	logData, err := os.ReadFile(filepath.Join(dir, "summary.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "simulation completed successfully")
	assert.Equal(t, 3, strings.Count(string(logData), "step complete"))
}

func TestSteady(t *testing.T) {
	dir := writeConfig(t)
	Cfg.Set("checkYears", 10.0)
	defer Cfg.Set("checkYears", 100.0)
	Root.SetArgs([]string{"run", "steady"})
	require.NoError(t, Root.Execute())
	_, err := os.Stat(filepath.Join(dir, "summary.txt"))
	assert.NoError(t, err)
}

func TestProfile(t *testing.T) {
	dir := writeConfig(t)
	plot := filepath.Join(dir, "profile.png")
	Cfg.Set("PlotFile", plot)
	Cfg.Set("i", 1)
	Cfg.Set("j", 1)
	defer func() {
		Cfg.Set("PlotFile", "icetherm_profile.png")
		Cfg.Set("i", icetherm.DefaultConfig().Grid.Mx/2)
		Cfg.Set("j", icetherm.DefaultConfig().Grid.My/2)
	}()
	Root.SetArgs([]string{"profile"})
	require.NoError(t, Root.Execute())
	info, err := os.Stat(plot)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
