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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/icetherm"
	"github.com/spatialmodel/icetherm/grid"
	"github.com/spatialmodel/icetherm/internal/hash"
	"github.com/spf13/cobra"
)

// Run runs the model described by cfg. Log messages are written to
// the output of CobraCommand and to cfg.LogFile, and a summary of the
// output variables is written to cfg.OutputFile. If allLevels is false,
// 3D output variables are summarized at the base of the ice only.
//
// addRun are run after every time step and must eventually set the
// Done flag; addCleanup are run after the output has been written.
func Run(CobraCommand *cobra.Command, cfg *icetherm.Config, allLevels bool, addRun, addCleanup []icetherm.DomainManipulator) error {
	startTime := time.Now()

	logfile, err := os.Create(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("icetherm: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(CobraCommand.OutOrStdout(), logfile)

	log.WithFields(logrus.Fields{
		"version": icetherm.Version,
		"config":  hash.Hash(cfg),
		"ranks":   cfg.Ranks,
	}).Info("icetherm: starting simulation")

	cpl, err := cfg.Couplers()
	if err != nil {
		return err
	}
	log.Println("Parsing output variable expressions...")
	o, err := icetherm.NewOutputter(cfg.OutputFile, allLevels, cfg.OutputVariables, nil)
	if err != nil {
		return err
	}
	w, err := icetherm.NewWorld(cfg)
	if err != nil {
		return err
	}

	err = w.Run(context.Background(), func(ctx context.Context, c *grid.Comm) error {
		m, err := icetherm.NewModel(cfg, c, cpl)
		if err != nil {
			return err
		}
		m.Log = log.WithField("rank", c.Rank())
		m.InitFuncs = []icetherm.DomainManipulator{
			icetherm.SetTimestep(cfg.TimestepYears),
			icetherm.UpdateBoundaryConditions(),
			icetherm.InitializeEnthalpy(cfg.InitialTemperature),
			icetherm.InitializeBedrock(),
		}
		m.RunFuncs = append([]icetherm.DomainManipulator{
			icetherm.UpdateBoundaryConditions(),
			icetherm.EnthalpyStep(),
			icetherm.Log(log),
		}, addRun...)
		m.CleanupFuncs = append([]icetherm.DomainManipulator{o.Output()}, addCleanup...)

		if err := m.Init(ctx); err != nil {
			return err
		}
		if err := m.Run(ctx); err != nil {
			return err
		}
		return m.Cleanup(ctx)
	})
	if err != nil {
		log.WithError(err).Error("icetherm: simulation failed")
		return err
	}
	log.Infof("icetherm: simulation completed successfully; walltime %v", time.Since(startTime))
	return nil
}
