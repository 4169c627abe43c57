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
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlansim/txagg/capture"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/progctx"
	. "github.com/wlansim/txagg/types"
)

func newTestSimulation(t *testing.T, scenario string, cfgFn func(cfg *Config)) *Simulation {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.LogLevel = logger.WarnLevel
	if cfgFn != nil {
		cfgFn(cfg)
	}
	var sc *YamlScenario
	if scenario != "" {
		var err error
		sc, err = ParseScenario([]byte(scenario))
		require.NoError(t, err)
	}
	ctx := progctx.New(context.Background())
	sim, err := NewSimulation(ctx, cfg, sc)
	require.NoError(t, err)
	t.Cleanup(sim.Stop)
	return sim
}

func assertSimIdle(t *testing.T, sim *Simulation) {
	r := sim.Report()
	assert.Equal(t, 0, r.HwSlotsInUse)
	assert.Equal(t, 0, r.BuffersInUse)
	for ac, q := range r.Queues {
		assert.Equal(t, 0, q.Outstanding, ac)
	}
}

var flowScenario = `
hardware:
    download-delay: 30
stations:
    - {id: 1, ba: [0]}
    - {id: 2, ba: [0]}
flows:
    - {ac: be, sta: 1, len: 1500, count: 200, interval: 500, burst: 8}
    - {ac: be, sta: 2, len: 800, count: 100, interval: 700, burst: 4}
    - {ac: vo, sta: 2, tid: 6, len: 200, count: 50, interval: 2000, noagg: true}
`

func TestSimulation_Flows(t *testing.T) {
	sim := newTestSimulation(t, flowScenario, nil)
	require.NoError(t, sim.Go(time.Second))
	assert.Equal(t, uint64(1000000), sim.Now())

	flows := sim.Flows()
	require.Len(t, flows, 3)
	for _, f := range flows {
		assert.Equal(t, uint64(f.Count), f.Stats.Submitted, f.String())
		assert.Equal(t, uint64(f.Count), f.Stats.Confirmed[TxStatusAcked], f.String())
		assert.True(t, f.Stats.MeanLatencyUs() > 0)
	}

	r := sim.Report()
	be := r.Queues["BE"]
	assert.Equal(t, uint64(300), be.Engine.Acked)
	assert.True(t, be.Engine.Aggregates > 0)
	assert.Equal(t, be.Engine.Aggregates+be.Engine.Singletons, be.Mac.Exchanges)
	vo := r.Queues["VO"]
	assert.Equal(t, uint64(50), vo.Engine.Singletons)
	assert.Equal(t, uint64(0), vo.Engine.Aggregates)
	assert.NotContains(t, r.Queues, "VI")
	assertSimIdle(t, sim)
}

func TestSimulation_SameSeedSameResult(t *testing.T) {
	scenario := `
hardware: {loss: 0.2}
stations: [{id: 1, ba: [0]}]
flows: [{ac: be, sta: 1, len: 1000, count: 300, interval: 300, jitter: 100, burst: 3}]
`
	run := func() Report {
		sim := newTestSimulation(t, scenario, nil)
		require.NoError(t, sim.Go(time.Second))
		return sim.Report()
	}
	r1 := run()
	r2 := run()
	assert.Equal(t, r1, r2)
	assert.True(t, r1.Queues["BE"].Mac.LostMpdus > 0)
	assert.Equal(t, uint64(300), r1.Queues["BE"].Engine.Confirmed)
}

func TestSimulation_SubmitAndFaults(t *testing.T) {
	sim := newTestSimulation(t, "", nil)
	rate := phy.RateInfo{Format: phy.FormatVht, Mcs: 5, Nss: 1, Bw: phy.Bw80}

	// RTS failure on an aggregate: resubmitted once with CTS-to-self
	sim.RtsFail(AcBe, 1)
	paused, err := sim.Submit(AcBe, 1, 0, 1200, 10, true, rate, ProtRtsCts)
	require.NoError(t, err)
	assert.Equal(t, 0, paused)
	require.NoError(t, sim.Go(100*time.Millisecond))
	be := sim.Report().Queues["BE"].Engine
	assert.Equal(t, uint64(1), be.RtsResubmits)
	assert.Equal(t, uint64(10), be.Acked)

	// bandwidth drop splits the aggregate in flight
	sim.BwDrop(AcBe, phy.Bw20)
	_, err = sim.Submit(AcBe, 2, 0, 1500, 30, true, rate, ProtNone)
	require.NoError(t, err)
	require.NoError(t, sim.Go(100*time.Millisecond))
	be = sim.Report().Queues["BE"].Engine
	assert.Equal(t, uint64(1), be.BwDrops)
	assert.Equal(t, uint64(40), be.Acked)

	_, err = sim.Submit(AcBe, 9, 0, 1500, 1, true, rate, ProtNone)
	assert.Error(t, err)
	_, err = sim.Submit(AcBe, 1, 0, 0, 1, true, rate, ProtNone)
	assert.Error(t, err)
	assertSimIdle(t, sim)
}

func TestSimulation_HangIsFlushed(t *testing.T) {
	sim := newTestSimulation(t, "", nil)
	rate := phy.RateInfo{Format: phy.FormatHtMf, Mcs: 7, Nss: 1, Bw: phy.Bw20}

	sim.SetHung(AcVi, true)
	_, err := sim.Submit(AcVi, 1, 0, 1000, 20, true, rate, ProtNone)
	require.NoError(t, err)
	require.NoError(t, sim.Go(500*time.Millisecond))

	vi := sim.Report().Queues["VI"]
	assert.Equal(t, uint64(1), vi.Engine.Hangs)
	assert.Equal(t, uint64(1), vi.Engine.Flushes)
	assert.Equal(t, uint64(20), vi.Engine.Aborted)
	assert.False(t, sim.Engine().Hung(AcVi))

	sim.SetHung(AcVi, false)
	_, err = sim.Submit(AcVi, 1, 0, 1000, 5, true, rate, ProtNone)
	require.NoError(t, err)
	require.NoError(t, sim.Go(100*time.Millisecond))
	assert.Equal(t, uint64(5), sim.Report().Queues["VI"].Engine.Acked)
	assertSimIdle(t, sim)
}

func TestSimulation_FaultCtrlHangs(t *testing.T) {
	scenario := `
hardware:
    buffers: 16
    hang:
        be: {duration: 400000, interval: 1000000}
stations: [{id: 1, ba: [0]}]
flows: [{ac: be, sta: 1, len: 1000, interval: 500}]
`
	sim := newTestSimulation(t, scenario, nil)
	require.NoError(t, sim.Go(2*time.Second))

	be := sim.Report().Queues["BE"].Engine
	assert.True(t, be.Hangs >= 1)
	assert.True(t, be.Aborted > 0)
	assert.True(t, be.Acked > 0)
	assert.Equal(t, be.Submitted, be.Confirmed+uint64(sim.Report().Queues["BE"].Outstanding))
}

func TestSimulation_PolledBlockAcks(t *testing.T) {
	scenario := `
hardware: {ba-lag: 2}
stations: [{id: 1, ba: [0]}]
flows: [{ac: vi, sta: 1, len: 1200, count: 64, interval: 1000, burst: 16}]
`
	sim := newTestSimulation(t, scenario, nil)
	require.NoError(t, sim.Go(time.Second))
	r := sim.Report()
	assert.Equal(t, uint64(64), r.Queues["VI"].Engine.Acked)
	assert.True(t, r.Rx.Polls > 0)
	assert.Equal(t, uint64(0), r.Rx.Pushed)
}

func TestSimulation_KpiAndCapture(t *testing.T) {
	sim := newTestSimulation(t, flowScenario, func(cfg *Config) {
		cfg.Capture = capture.FrameTypeRadiotap
		cfg.Id = 7
	})
	require.NoError(t, sim.Go(10*time.Millisecond))
	sim.KpiStart()
	assert.True(t, sim.KpiIsRunning())
	require.NoError(t, sim.Go(time.Second))
	sim.KpiStop()
	assert.False(t, sim.KpiIsRunning())

	kpi := sim.Kpi()
	assert.Equal(t, "ok", kpi.Status)
	assert.Equal(t, uint64(10000), kpi.TimeUs.StartTimeUs)
	assert.Equal(t, uint64(1000000), kpi.TimeUs.PeriodUs)
	be := kpi.Queues["BE"]
	assert.True(t, be.Aggregates > 0)
	assert.True(t, be.AvgAggregateSize >= 2)
	assert.True(t, be.TxPercentage > 0 && be.TxPercentage < 100)
	assert.Equal(t, "VO", kpi.Flows[3].Ac)
	assert.Equal(t, 0.0, kpi.Flows[3].LossPercentage)

	data, err := os.ReadFile(sim.cfg.OutputDir + "/7_kpi.json")
	require.NoError(t, err)
	var saved Kpi
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, kpi.TimeUs, saved.TimeUs)

	fn := sim.getCaptureFileName()
	sim.Stop()
	st, err := os.Stat(fn)
	require.NoError(t, err)
	assert.True(t, st.Size() > 1000)
}

func TestSimulation_Controller(t *testing.T) {
	sim := newTestSimulation(t, flowScenario, nil)
	require.NoError(t, sim.Go(time.Second))

	ctrl := NewSimulationController(sim)
	stats, err := ctrl.CtrlGetStats()
	require.NoError(t, err)
	assert.Equal(t, 1000000.0, stats["time_us"])
	queues := stats["queues"].(map[string]interface{})
	assert.Contains(t, queues, "BE")

	_, err = ctrl.Command("stats")
	assert.Error(t, err) // no command runner

	sim.cfg.ReadOnly = true
	_, err = NewSimulationController(sim).Command("stats")
	assert.Equal(t, readonlySimulationError, err)
}

func TestSimulation_StopInterruptsGo(t *testing.T) {
	sim := newTestSimulation(t, "stations: [{id: 1, ba: [0]}]\nflows: [{ac: be, sta: 1, len: 100, interval: 1000}]", nil)
	sim.Stop()
	assert.Equal(t, CommandInterruptedError, sim.Go(time.Second))
	assert.True(t, sim.IsStopping())
	_, err := sim.Submit(AcBe, 1, 0, 100, 1, true, DefaultRate, ProtNone)
	assert.Error(t, err)
}

func TestSimulation_LogLevel(t *testing.T) {
	prev := logger.GetLevel()
	defer logger.SetLevel(prev)

	sim := newTestSimulation(t, "", nil)
	sim.SetLogLevel(logger.ErrorLevel)
	assert.Equal(t, logger.ErrorLevel, sim.GetLogLevel())
	assert.Equal(t, logger.ErrorLevel, logger.GetLevel())

	display, file := queueLogLevels(logger.ErrorLevel)
	assert.Equal(t, logger.ErrorLevel, display)
	assert.Equal(t, logger.DebugLevel, file)
	_, file = queueLogLevels(logger.TraceLevel)
	assert.Equal(t, logger.TraceLevel, file)
}
