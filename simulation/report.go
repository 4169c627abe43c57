// Copyright (c) 2026, The OTNS Authors.
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
	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// QueueReport is the state of one access category queue.
type QueueReport struct {
	Engine        txl.QueueStats `yaml:"engine" json:"engine"`
	Mac           hwsim.MacStats `yaml:"mac" json:"mac"`
	Outstanding   int            `yaml:"outstanding" json:"outstanding"`
	PpdusInFlight int            `yaml:"ppdus_in_flight" json:"ppdus_in_flight"`
	Hung          bool           `yaml:"hung" json:"hung"`
}

// Report is a snapshot of the engine and simulated hardware counters. Only queues that were used
// are included.
type Report struct {
	TimeUs       uint64                 `yaml:"time_us" json:"time_us"`
	Queues       map[string]QueueReport `yaml:"queues" json:"queues"`
	AggPoolFree  int                    `yaml:"agg_pool_free" json:"agg_pool_free"`
	HwSlotsInUse int                    `yaml:"hw_slots_in_use" json:"hw_slots_in_use"`
	BuffersInUse int                    `yaml:"buffers_in_use" json:"buffers_in_use"`
	Buffers      hwsim.BufferStats      `yaml:"buffers" json:"buffers"`
	Rx           hwsim.RxStats          `yaml:"rx" json:"rx"`
}

// Report returns the current counters.
func (s *Simulation) Report() Report {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.report()
}

func (s *Simulation) report() Report {
	es := s.engine.Stats()
	ms := s.mac.Stats()
	r := Report{
		TimeUs:       s.Now(),
		Queues:       map[string]QueueReport{},
		AggPoolFree:  es.AggPoolFree,
		HwSlotsInUse: es.HwSlotsInUse,
		BuffersInUse: s.buffers.InUse(),
		Buffers:      s.buffers.Stats(),
		Rx:           s.rx.Stats(),
	}
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		if es.Queues[ac].Submitted == 0 && es.Queues[ac].Flushes == 0 {
			continue
		}
		r.Queues[ac.String()] = QueueReport{
			Engine:        es.Queues[ac],
			Mac:           ms[ac],
			Outstanding:   es.Outstanding[ac],
			PpdusInFlight: es.PpdusInFlight[ac],
			Hung:          s.engine.Hung(ac) || s.mac.Hung(ac),
		}
	}
	return r
}
