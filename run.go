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
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Log writes simulation status messages to l. Only rank 0 logs.
func Log(l logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	return func(_ context.Context, m *Model) error {
		if m.Comm.Rank() != 0 {
			return nil
		}
		l.WithFields(logrus.Fields{
			"step":       m.Step,
			"years":      m.Time / SecondsPerYear,
			"dt_years":   m.Dt / SecondsPerYear,
			"walltime_h": time.Since(startTime).Hours(),
			"step_s":     time.Since(timeStepTime).Seconds(),
			"sacrifice":  m.Stats.VertSacrifice,
			"bulge":      m.Stats.Bulge,
		}).Info("icetherm: step complete")
		timeStepTime = time.Now()
		return nil
	}
}

// RunPeriod sets the Done flag once the model has run for the given
// number of years.
func RunPeriod(years float64) DomainManipulator {
	end := years * SecondsPerYear
	return func(_ context.Context, m *Model) error {
		// Allow for rounding in the accumulated time.
		if m.Time >= end-1e-6*m.Dt {
			m.Done = true
		}
		return nil
	}
}

// SteadyStateConvergenceCheck checks whether a steady-state simulation
// is finished and sets the Done flag if it is. If numSteps > 0, the
// simulation is finished after that number of steps have completed.
// Otherwise, the simulation has finished when the total enthalpy and
// the total basal water have each changed by less than tolerance, as
// a fraction, since the last check. Checks are made every checkYears
// model years.
func SteadyStateConvergenceCheck(numSteps int, tolerance, checkYears float64) DomainManipulator {
	names := []string{"Enthalpy", "Hmelt"}
	oldSum := make([]float64, len(names))
	first := true
	timeSinceLastCheck := 0.

	return func(ctx context.Context, m *Model) error {
		timeSinceLastCheck += m.Dt

		if numSteps > 0 {
			if m.Step >= numSteps {
				m.Done = true
			}
			return nil
		}
		if timeSinceLastCheck < checkYears*SecondsPerYear {
			return nil
		}
		timeSinceLastCheck = 0
		sum := m.totals()
		if err := m.Comm.AllReduceSum(ctx, sum); err != nil {
			return err
		}
		timeToQuit := !first
		for ii, name := range names {
			if !checkConvergence(m, sum[ii], oldSum[ii], tolerance, name) {
				timeToQuit = false
			}
			oldSum[ii] = sum[ii]
		}
		first = false
		if timeToQuit {
			m.Done = true
		}
		return nil
	}
}

// totals returns the sum over owned cells of the enthalpy and of the
// basal water.
func (m *Model) totals() []float64 {
	var E, W float64
	m.forOwned(func(i, j int) error {
		for _, v := range m.Enthalpy.Column(i, j) {
			E += v
		}
		W += m.Hmelt.Get(i, j)
		return nil
	})
	return []float64{E, W}
}

func checkConvergence(m *Model, newSum, oldSum, tolerance float64, Var string) bool {
	if newSum == oldSum {
		return true
	}
	bias := (newSum - oldSum) / oldSum
	if m.Comm.Rank() == 0 {
		m.Log.WithField("variable", Var).Infof("icetherm: total difference = %3.2g%% from last check", bias*100)
	}
	if math.Abs(bias) > tolerance || math.IsInf(bias, 0) || math.IsNaN(bias) {
		return false
	}
	return true
}
