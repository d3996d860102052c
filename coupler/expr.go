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

package coupler

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/spatialmodel/icetherm/grid"
)

// secondsPerYear converts model time to the years used in expressions.
const secondsPerYear = 3.15569259747e7

// ExprSurface sets the surface temperature [K] from an expression of
// the horizontal coordinates x and y [m] and the time t [years], for
// example
//
//	min(273.15, 243 + 0.00002*sqrt(x*x + y*y) + 0.01*t)
type ExprSurface struct {
	expr *govaluate.EvaluableExpression
}

// Functions returns the functions available in expressions:
// 'exp(x)', 'sqrt(x)', 'abs(x)', 'min(a, b)' and 'max(a, b)'.
func Functions() map[string]govaluate.ExpressionFunction {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("coupler: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			x, ok := arg[0].(float64)
			if !ok {
				return nil, fmt.Errorf("coupler: argument to '%s' is %T, not a number", name, arg[0])
			}
			return f(x), nil
		}
	}
	binary := func(name string, f func(a, b float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("coupler: got %d arguments for function '%s', but needs 2", len(arg), name)
			}
			a, aok := arg[0].(float64)
			b, bok := arg[1].(float64)
			if !aok || !bok {
				return nil, fmt.Errorf("coupler: arguments to '%s' must be numbers", name)
			}
			return f(a, b), nil
		}
	}
	return map[string]govaluate.ExpressionFunction{
		"exp":  unary("exp", math.Exp),
		"sqrt": unary("sqrt", math.Sqrt),
		"abs":  unary("abs", math.Abs),
		"min":  binary("min", math.Min),
		"max":  binary("max", math.Max),
	}
}

// NewExprSurface parses expr, which may only refer to x, y and t.
func NewExprSurface(expr string) (*ExprSurface, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, Functions())
	if err != nil {
		return nil, fmt.Errorf("coupler: surface temperature expression: %v", err)
	}
	for _, v := range e.Vars() {
		if v != "x" && v != "y" && v != "t" {
			return nil, fmt.Errorf("coupler: undefined variable name '%s' in surface temperature expression", v)
		}
	}
	return &ExprSurface{expr: e}, nil
}

// Temperature implements Surface.
func (s *ExprSurface) Temperature(t, _ float64, result *grid.Field2D) error {
	p := result.Patch()
	g := p.Grid()
	params := map[string]interface{}{"t": t / secondsPerYear}
	for n := 0; n < p.Len(); n++ {
		i, j := p.Cell(n)
		params["x"] = g.X(i)
		params["y"] = g.Y(j)
		v, err := s.expr.Evaluate(params)
		if err != nil {
			return fmt.Errorf("coupler: evaluating surface temperature at (%d, %d): %v", i, j, err)
		}
		T, ok := v.(float64)
		if !ok {
			return fmt.Errorf("coupler: surface temperature expression returned %T, not a number", v)
		}
		result.Set(i, j, T)
	}
	return nil
}
