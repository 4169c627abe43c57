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


package monitor

import (
	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

type nopMonitor struct{}

// NewNopMonitor creates a new Monitor that does nothing.
func NewNopMonitor() Monitor {
	return nopMonitor{}
}

func (nm nopMonitor) Init() {
}

func (nm nopMonitor) Run() {
}

func (nm nopMonitor) Stop() {
}

func (nm nopMonitor) SetController(SimulationController) {
}

func (nm nopMonitor) AdvanceTime(uint64) {
}

func (nm nopMonitor) OnFrameExchange(hwsim.Exchange) {
}

func (nm nopMonitor) OnConfirm(AccessCategory, *txl.TxDesc) {
}

func (nm nopMonitor) OnQueueHang(AccessCategory, error) {
}
