// Copyright (c) 2024-2026, The OTNS Authors.
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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// KpiManager keeps the KPI of a measurement period. Its methods are called with the simulation
// lock held.
type KpiManager struct {
	sim       *Simulation
	data      *Kpi
	start     countersSnapshot
	isRunning bool
}

type countersSnapshot struct {
	timeUs   uint64
	engine   txl.Stats
	mac      [NumAccessCategories]hwsim.MacStats
	flows    map[int]FlowStats
	commands FlowStats
}

// NewKpiManager creates a new KPI manager/bookkeeper for a particular simulation.
func NewKpiManager() *KpiManager {
	km := &KpiManager{}
	return km
}

// Init inits the KPI manager for the given simulation.
func (km *KpiManager) Init(sim *Simulation) {
	logger.AssertNil(km.sim)
	logger.AssertFalse(km.isRunning)
	km.sim = sim
	km.data = &Kpi{Status: "ok"}
	km.start = sim.snapshot()
}

func (km *KpiManager) Start() {
	logger.AssertNotNil(km.sim)
	km.data = &Kpi{Status: "ok"}
	km.start = km.sim.snapshot()
	km.data.TimeUs.StartTimeUs = km.start.timeUs
	km.isRunning = true
	km.SaveDefaultFile()
}

func (km *KpiManager) Stop() {
	if km.isRunning {
		km.calculateKpis()
		km.isRunning = false
		km.SaveDefaultFile()
	}
}

func (km *KpiManager) IsRunning() bool {
	return km.isRunning
}

// Data returns the KPI, up to date if a measurement period is running.
func (km *KpiManager) Data() Kpi {
	if km.isRunning {
		km.calculateKpis()
	}
	return *km.data
}

func (km *KpiManager) SaveDefaultFile() {
	if err := km.SaveFile(km.getDefaultSaveFileName()); err != nil {
		logger.Errorf("%v", err)
	}
}

func (km *KpiManager) SaveFile(fn string) error {
	logger.AssertNotNil(km.sim)
	if km.isRunning {
		km.calculateKpis()
	}

	km.data.FileTime = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(km.data, "", "    ")
	if err != nil {
		logger.Fatalf("Could not marshal KPI JSON data: %v", err)
		return err
	}

	err = os.WriteFile(fn, data, 0644)
	if err != nil {
		return errors.Wrapf(err, "could not write KPI JSON file %s", fn)
	}
	return nil
}

func (km *KpiManager) calculateKpis() {
	cur := km.sim.snapshot()

	// time
	km.data.TimeUs.EndTimeUs = cur.timeUs
	km.data.TimeUs.PeriodUs = km.data.TimeUs.EndTimeUs - km.data.TimeUs.StartTimeUs
	km.data.TimeSec.StartTimeSec = float64(km.data.TimeUs.StartTimeUs) / 1e6
	km.data.TimeSec.EndTimeSec = float64(km.data.TimeUs.EndTimeUs) / 1e6
	km.data.TimeSec.PeriodSec = float64(km.data.TimeUs.PeriodUs) / 1e6

	// queues
	km.data.Queues = map[string]KpiQueue{}
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		qs := cur.engine.Queues[ac].Minus(km.start.engine.Queues[ac])
		if qs.Submitted == 0 && qs.Confirmed == 0 {
			continue
		}
		txTimeUs := cur.mac[ac].AirtimeUs - km.start.mac[ac].AirtimeUs
		kq := KpiQueue{
			Confirmed: map[string]uint64{
				TxStatusAcked.String():           qs.Acked,
				TxStatusRetryLimit.String():      qs.RetryLimit,
				TxStatusBlockAckMissing.String(): qs.BlockAckMissing,
				TxStatusAborted.String():         qs.Aborted,
			},
			Singletons:       qs.Singletons,
			Aggregates:       qs.Aggregates,
			AvgAggregateSize: qs.MeanAggregateSize(),
			Demotions:        qs.Demotions,
			MuPpdus:          qs.MuPpdus,
			MuFallbacks:      qs.MuFallbacks,
			RtsResubmits:     qs.RtsResubmits,
			BwDrops:          qs.BwDrops,
			BaPolls:          qs.BaPolls,
			Hangs:            qs.Hangs,
			Flushes:          qs.Flushes,
			Exchanges:        cur.mac[ac].Exchanges - km.start.mac[ac].Exchanges,
			LostMpdus:        cur.mac[ac].LostMpdus - km.start.mac[ac].LostMpdus,
			TxTimeUs:         txTimeUs,
			MaxPpdusQueued:   qs.MaxPpdusQueued,
		}
		if km.data.TimeUs.PeriodUs > 0 {
			kq.TxPercentage = 100.0 * float64(txTimeUs) / float64(km.data.TimeUs.PeriodUs)
		}
		km.data.Queues[ac.String()] = kq
	}

	// traffic
	km.data.Flows = map[int]KpiTraffic{}
	for id, fs := range cur.flows {
		f := km.sim.flows[id]
		kt := getTrafficKpi(fs, km.start.flows[id])
		kt.Ac = f.Ac.String()
		kt.Sta = f.Sta
		kt.Tid = int(f.Tid)
		km.data.Flows[id] = kt
	}
	km.data.Commands = getTrafficKpi(cur.commands, km.start.commands)

	if km.sim.stopped {
		km.data.Status = "simulation stopped"
	}
}

// getTrafficKpi computes the KPI of a traffic source from its counters at the start and the end of
// the period. The max latency is over the whole run.
func getTrafficKpi(cur FlowStats, start FlowStats) KpiTraffic {
	diff := FlowStats{
		Submitted:    cur.Submitted - start.Submitted,
		Paused:       cur.Paused - start.Paused,
		LatencySumUs: cur.LatencySumUs - start.LatencySumUs,
	}
	confirmed := map[string]uint64{}
	for st := range cur.Confirmed {
		diff.Confirmed[st] = cur.Confirmed[st] - start.Confirmed[st]
		if diff.Confirmed[st] > 0 {
			confirmed[TxStatus(st).String()] = diff.Confirmed[st]
		}
	}
	kt := KpiTraffic{
		Submitted:    diff.Submitted,
		Paused:       diff.Paused,
		Confirmed:    confirmed,
		LatencyMs:    diff.MeanLatencyUs() / 1000.0,
		MaxLatencyMs: float64(cur.MaxLatencyUs) / 1000.0,
	}
	if n := diff.NumConfirmed(); n > 0 {
		kt.LossPercentage = 100.0 - 100.0*float64(diff.Confirmed[TxStatusAcked])/float64(n)
	}
	return kt
}

// snapshot must be called with the simulation lock held.
func (s *Simulation) snapshot() countersSnapshot {
	cs := countersSnapshot{
		timeUs:   s.Now(),
		engine:   s.engine.Stats(),
		mac:      s.mac.Stats(),
		flows:    make(map[int]FlowStats, len(s.flows)),
		commands: s.cliStats,
	}
	for id, f := range s.flows {
		cs.flows[id] = f.Stats
	}
	return cs
}

func (km *KpiManager) getDefaultSaveFileName() string {
	return fmt.Sprintf("%s/%d_kpi.json", km.sim.cfg.OutputDir, km.sim.cfg.Id)
}
