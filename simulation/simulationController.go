// Copyright (c) 2020-2026, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package simulation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/monitor"
)

type simulationController struct {
	sim *Simulation
}

// Command runs a CLI command on the simulation and returns its output lines.
func (sc *simulationController) Command(cmd string) ([]string, error) {
	sim := sc.sim
	if sim.cmdRunner == nil {
		return nil, errors.Errorf("no command runner")
	}
	var output bytes.Buffer
	err := sim.cmdRunner.RunCommand(cmd, &output)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(output.String(), "\n"), "\n"), nil
}

func (sc *simulationController) CtrlGetStats() (map[string]interface{}, error) {
	return getStats(sc.sim)
}

type readonlySimulationController struct {
	sim *Simulation
}

func (r readonlySimulationController) Command(cmd string) ([]string, error) {
	return nil, readonlySimulationError
}

func (r readonlySimulationController) CtrlGetStats() (map[string]interface{}, error) {
	return getStats(r.sim)
}

// getStats returns the report of the simulation as a JSON object.
func getStats(sim *Simulation) (map[string]interface{}, error) {
	data, err := json.Marshal(sim.Report())
	if err != nil {
		return nil, err
	}
	var res map[string]interface{}
	if err = json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func NewSimulationController(sim *Simulation) monitor.SimulationController {
	if !sim.cfg.ReadOnly {
		return &simulationController{sim}
	} else {
		return readonlySimulationController{sim}
	}
}
