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


// Package monitor defines the observers of a running simulation: they are told about every frame
// exchange, confirmation and queue hang, and about simulation time advancing.
package monitor

import (
	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

type Monitor interface {
	Init()
	Run()
	Stop()

	SetController(ctrl SimulationController)
	AdvanceTime(ts uint64)
	OnFrameExchange(ex hwsim.Exchange)
	OnConfirm(ac AccessCategory, desc *txl.TxDesc)
	OnQueueHang(ac AccessCategory, err error)
}

// SimulationController lets a monitor act on the simulation it observes.
type SimulationController interface {
	// Command runs a CLI command and returns its output lines.
	Command(cmd string) ([]string, error)
	// CtrlGetStats returns the current KPI of the simulation as a JSON-like object.
	CtrlGetStats() (map[string]interface{}, error)
}
