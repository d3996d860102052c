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
	"math"
	"os"
	"regexp"
	"sort"
	"text/tabwriter"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/spatialmodel/icetherm/coupler"
	"github.com/spatialmodel/icetherm/grid"
)

// modelVar is a model variable available to output expressions.
type modelVar struct {
	desc, units string
	threeD      bool
	field       func(m *Model) (grid.Field, error)
}

func field2D(f func(m *Model) *grid.Field2D) func(m *Model) (grid.Field, error) {
	return func(m *Model) (grid.Field, error) { return f(m), nil }
}

func field3D(f func(m *Model) *grid.Field3D) func(m *Model) (grid.Field, error) {
	return func(m *Model) (grid.Field, error) { return f(m), nil }
}

var modelVars = map[string]modelVar{
	"Enthalpy":         {"Ice enthalpy", "J/kg", true, field3D(func(m *Model) *grid.Field3D { return m.Enthalpy })},
	"U":                {"East-west ice velocity", "m/s", true, field3D(func(m *Model) *grid.Field3D { return m.U })},
	"V":                {"North-south ice velocity", "m/s", true, field3D(func(m *Model) *grid.Field3D { return m.V })},
	"W":                {"Vertical ice velocity", "m/s", true, field3D(func(m *Model) *grid.Field3D { return m.W })},
	"StrainHeating":    {"Strain heating", "W/m³", true, field3D(func(m *Model) *grid.Field3D { return m.StrainHeating })},
	"Temperature":      {"Ice temperature", "K", true, func(m *Model) (grid.Field, error) { return m.TemperatureField() }},
	"PATemperature":    {"Pressure-adjusted ice temperature", "K", true, func(m *Model) (grid.Field, error) { return m.PATemperatureField() }},
	"WaterFraction":    {"Liquid water fraction", "1", true, func(m *Model) (grid.Field, error) { return m.WaterFractionField() }},
	"Thickness":        {"Ice thickness", "m", false, field2D(func(m *Model) *grid.Field2D { return m.Thickness })},
	"Mask":             {"Column class: 0 ice-free, 1 grounded, 2 floating", "1", false, field2D(func(m *Model) *grid.Field2D { return m.Mask })},
	"Hmelt":            {"Stored basal water", "m", false, field2D(func(m *Model) *grid.Field2D { return m.Hmelt })},
	"BasalMeltRate":    {"Basal melt rate", "m/s", false, field2D(func(m *Model) *grid.Field2D { return m.BasalMeltRate })},
	"BedrockFlux":      {"Upward heat flux at the bedrock top", "W/m²", false, field2D(func(m *Model) *grid.Field2D { return m.BedrockFlux })},
	"SurfaceTemp":      {"Ice surface temperature", "K", false, field2D(func(m *Model) *grid.Field2D { return m.SurfaceTemp })},
	"GeothermalFlux":   {"Geothermal flux into the bedrock layer", "W/m²", false, field2D(func(m *Model) *grid.Field2D { return m.GeothermalFlux })},
	"Friction":         {"Basal frictional heating", "W/m²", false, field2D(func(m *Model) *grid.Field2D { return m.Friction })},
	"BasalTemperature": {"Temperature at the base of the ice", "K", false, func(m *Model) (grid.Field, error) { return m.BasalTemperatureField() }},
}

// OutputOptions returns the names of the model variables available to
// output expressions, with their descriptions and units.
func OutputOptions() (names, descriptions, units []string) {
	for n := range modelVars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		descriptions = append(descriptions, modelVars[n].desc)
		units = append(units, modelVars[n].units)
	}
	return
}

// derived3D converts the enthalpy of every owned cell with f.
func (m *Model) derived3D(name string, f func(E, p float64) (float64, error)) (*grid.Field3D, error) {
	z := m.Comm.Grid().Zlevels
	out := grid.NewField3D(name, m.Comm.Patch(), len(z))
	err := m.forOwned(func(i, j int) error {
		H := m.Thickness.Get(i, j)
		for k, E := range m.Enthalpy.Column(i, j) {
			v, err := f(E, m.conv.PressureFromDepth(H-z[k]))
			if err != nil {
				return &ColumnError{I: i, J: j, Row: k, Err: err}
			}
			out.Set(i, j, k, v)
		}
		return nil
	})
	return out, err
}

// TemperatureField returns the absolute temperature of the owned
// cells. Cells above the ice hold zero enthalpy and so report the
// reference temperature.
func (m *Model) TemperatureField() (*grid.Field3D, error) {
	return m.derived3D("Temperature", m.conv.AbsTemp)
}

// PATemperatureField returns the pressure-adjusted temperature of the
// owned cells.
func (m *Model) PATemperatureField() (*grid.Field3D, error) {
	return m.derived3D("PATemperature", m.conv.PATemp)
}

// WaterFractionField returns the liquid water fraction of the owned
// cells.
func (m *Model) WaterFractionField() (*grid.Field3D, error) {
	return m.derived3D("WaterFraction", m.conv.WaterFraction)
}

// BasalTemperatureField returns the temperature seen by the top of the
// bedrock in each owned column.
func (m *Model) BasalTemperatureField() (*grid.Field2D, error) {
	out := grid.NewField2D("BasalTemperature", m.Comm.Patch())
	err := m.forOwned(func(i, j int) error {
		T, err := m.baseTemperature(i, j)
		out.Set(i, j, T)
		return err
	})
	return out, err
}

// Outputter computes output variables from the model state and saves
// them. Output variables are expressions of model variables, other
// output variables and functions. If allLevels is false, 3D variables
// are taken at the base of the ice.
type Outputter struct {
	fileName        string
	allLevels       bool
	outputVariables map[string]string
	outputFunctions map[string]govaluate.ExpressionFunction

	exprs          map[string]*govaluate.EvaluableExpression
	order          []string // evaluation order
	modelVariables []string
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: 'exp(x)', 'sqrt(x)', 'abs(x)', 'min(a, b)' and
// 'max(a, b)'. Functions in outputFunctions are added to or replace
// the defaults.
func NewOutputter(fileName string, allLevels bool, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := coupler.Functions()
	for k, v := range outputFunctions {
		funcs[k] = v
	}
	o := &Outputter{
		fileName:        fileName,
		allLevels:       allLevels,
		outputVariables: outputVariables,
		outputFunctions: funcs,
		exprs:           make(map[string]*govaluate.EvaluableExpression),
	}
	if err := checkOutputNames(outputVariables); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outputVariables))
	for n := range outputVariables {
		names = append(names, n)
	}
	sort.Strings(names)

	deps := make(map[string][]string)
	modelVariables := make(map[string]bool)
	for _, n := range names {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(outputVariables[n], funcs)
		if err != nil {
			return nil, fmt.Errorf("icetherm: output variable '%s': %v", n, err)
		}
		o.exprs[n] = e
		for _, v := range removeDuplicates(e.Vars()) {
			if _, ok := outputVariables[v]; ok && v != n {
				deps[n] = append(deps[n], v)
				continue
			}
			if _, ok := modelVars[v]; !ok {
				return nil, fmt.Errorf("icetherm: undefined variable name '%s' in output variable '%s'", v, n)
			}
			modelVariables[v] = true
		}
	}
	for v := range modelVariables {
		o.modelVariables = append(o.modelVariables, v)
	}
	sort.Strings(o.modelVariables)

	// Order the variables so each comes after the outputs it uses.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var visit func(n string) error
	visit = func(n string) error {
		switch state[n] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("icetherm: output variable '%s' depends on itself", n)
		}
		state[n] = visiting
		for _, d := range deps[n] {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[n] = done
		o.order = append(o.order, n)
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, val := range s {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

var outputNameRegexp = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputNames checks that output variable names can be used as
// variables in other expressions.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		if !outputNameRegexp.MatchString(key) {
			return fmt.Errorf("icetherm: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// Results computes the output variables. The result is returned on
// rank 0 and is nil on other ranks. Values are in row-major order
// over (j, i), with the level varying fastest when all levels are
// requested.
func (m *Model) Results(ctx context.Context, o *Outputter) (map[string][]float64, error) {
	data := make(map[string]*sparse.DenseArray, len(o.modelVariables))
	for _, name := range o.modelVariables {
		f, err := modelVars[name].field(m)
		if err != nil {
			return nil, err
		}
		a, err := m.Comm.Gather(ctx, f)
		if err != nil {
			return nil, err
		}
		data[name] = a
	}
	if m.Comm.Rank() != 0 {
		return nil, nil
	}

	g := m.Comm.Grid()
	nz := 1
	if o.allLevels {
		nz = g.Mz()
	}
	out := make(map[string][]float64, len(o.order))
	for _, name := range o.order {
		out[name] = make([]float64, g.Mx*g.My*nz)
	}
	params := make(map[string]interface{}, len(data)+len(o.order))
	for j := 0; j < g.My; j++ {
		for i := 0; i < g.Mx; i++ {
			for k := 0; k < nz; k++ {
				for name, a := range data {
					if modelVars[name].threeD {
						params[name] = a.Get(j, i, k)
					} else {
						params[name] = a.Get(j, i)
					}
				}
				idx := (j*g.Mx+i)*nz + k
				for _, name := range o.order {
					v, err := o.exprs[name].Evaluate(params)
					if err != nil {
						return nil, fmt.Errorf("icetherm: evaluating output variable '%s' at (%d, %d, %d): %v", name, i, j, k, err)
					}
					f, ok := v.(float64)
					if !ok {
						return nil, fmt.Errorf("icetherm: output variable '%s' is %T, not a number", name, v)
					}
					out[name][idx] = f
					params[name] = f
				}
			}
		}
	}
	return out, nil
}

// SummaryStats holds the range and mean of one output variable.
type SummaryStats struct {
	Min, Mean, Max float64
}

// Summary returns the statistics of each variable in results. NaN
// values are ignored.
func Summary(results map[string][]float64) map[string]SummaryStats {
	out := make(map[string]SummaryStats, len(results))
	for name, vals := range results {
		finite := make([]float64, 0, len(vals))
		for _, v := range vals {
			if !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			out[name] = SummaryStats{math.NaN(), math.NaN(), math.NaN()}
			continue
		}
		out[name] = SummaryStats{
			Min:  stats.StatsMin(finite),
			Mean: stats.StatsMean(finite),
			Max:  stats.StatsMax(finite),
		}
	}
	return out
}

// Output computes the output variables and writes a summary of them to
// the output file on rank 0.
func (o *Outputter) Output() DomainManipulator {
	return func(ctx context.Context, m *Model) error {
		results, err := m.Results(ctx, o)
		if err != nil {
			return err
		}
		if m.Comm.Rank() != 0 {
			return nil
		}
		summary := Summary(results)
		for _, name := range o.order {
			s := summary[name]
			m.Log.WithField("variable", name).Infof("icetherm: min %g, mean %g, max %g", s.Min, s.Mean, s.Max)
		}
		if o.fileName == "" {
			return nil
		}
		f, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("icetherm: creating output file: %v", err)
		}
		w := tabwriter.NewWriter(f, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "variable\texpression\tmin\tmean\tmax\n")
		for _, name := range o.order {
			s := summary[name]
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\n", name, o.outputVariables[name], s.Min, s.Mean, s.Max)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("icetherm: writing output file: %v", err)
		}
		return f.Close()
	}
}

// ProfilePlot writes a PNG plot of the temperature profile of column
// (i, j) to fileName. The plot is made on rank 0.
func ProfilePlot(fileName string, i, j int) DomainManipulator {
	return func(ctx context.Context, m *Model) error {
		g := m.Comm.Grid()
		if i < 0 || i >= g.Mx || j < 0 || j >= g.My {
			return fmt.Errorf("icetherm: column (%d, %d) is not in the %d×%d grid", i, j, g.Mx, g.My)
		}
		T, err := m.TemperatureField()
		if err != nil {
			return err
		}
		Tall, err := m.Comm.Gather(ctx, T)
		if err != nil {
			return err
		}
		Hall, err := m.Comm.Gather(ctx, m.Thickness)
		if err != nil {
			return err
		}
		if m.Comm.Rank() != 0 {
			return nil
		}
		H := Hall.Get(j, i)
		var xy plotter.XYs
		for k, z := range g.Zlevels {
			if z > H {
				break
			}
			xy = append(xy, struct{ X, Y float64 }{Tall.Get(j, i, k), z})
		}
		if len(xy) == 0 {
			return fmt.Errorf("icetherm: no ice at column (%d, %d)", i, j)
		}

		p, err := plot.New()
		if err != nil {
			return err
		}
		p.Title.Text = fmt.Sprintf("Temperature profile at (%d, %d)\nafter %.4g years", i, j, m.Time/SecondsPerYear)
		p.X.Label.Text = "Temperature (K)"
		p.Y.Label.Text = "Height above base (m)"
		if err = plotutil.AddLinePoints(p, xy); err != nil {
			return err
		}
		p.Y.Min = 0
		ww, hh := 4*vg.Inch, 4*vg.Inch
		wt, err := p.WriterTo(ww, hh, "png")
		if err != nil {
			return err
		}
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("icetherm: creating profile plot: %v", err)
		}
		if _, err = wt.WriteTo(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
