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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

var testScenario = `
engine:
    agg-pool: 8
    max-duration: {vo: 1000, be: 4000}
    mu-mimo: true
    mu-users: 3
    agg-hold: 500
    addr: "02:aa:00:00:00:01"
hardware:
    loss: 0.1
    rts-fail: 0.05
    buffers: 32
    download-delay: 20
    ba-lag: 2
    hang:
        be: {duration: 1000, interval: 100000}
stations:
    - id: 1
      ba: [0, 6]
      mu-group: 5
      user-pos: 1
      bf-calibrated: true
    - id: 2
      addr: "02:00:00:00:10:02"
      max-ampdu: {ht: 8191, vht: 0}
      min-spacing: 5
      ba-window: 32
flows:
    - ac: be
      sta: 1
      len: 1500
      count: 100
      interval: 200
      burst: 4
    - ac: vo
      sta: 2
      tid: 6
      len: 200
      interval: 20000
      jitter: 1000
      noagg: true
      protection: rts
      rate: {format: ht, mcs: 3, nss: 2, bw: "40", sgi: true}
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(testScenario))
	require.NoError(t, err)

	cfg, err := sc.EngineConfig(txl.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.AggPoolSize)
	assert.Equal(t, 1000, cfg.MaxDurationUs[AcVo])
	assert.Equal(t, 4000, cfg.MaxDurationUs[AcBe])
	assert.Equal(t, 3008, cfg.MaxDurationUs[AcVi])
	assert.True(t, cfg.MuMimo)
	assert.Equal(t, 3, cfg.MuUsers)
	assert.Equal(t, uint64(500), cfg.AggHoldUs)
	assert.Equal(t, uint64(200000), cfg.ActivityTimeoutUs)
	assert.Equal(t, "02:aa:00:00:00:01", cfg.OwnAddr.String())

	macCfg, err := sc.MacConfig(cfg.OwnAddr)
	require.NoError(t, err)
	assert.Equal(t, 0.1, macCfg.LossProb)
	assert.Equal(t, 0.05, macCfg.RtsFailProb)

	hangs, err := sc.HangTimes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), hangs[AcBe].HangDuration)
	assert.Equal(t, uint64(100000), hangs[AcBe].HangInterval)

	stas, bas, windows, err := sc.StationConfigs()
	require.NoError(t, err)
	require.Len(t, stas, 2)
	assert.Equal(t, 5, stas[0].MuGroup)
	assert.True(t, stas[0].BfCalibrated)
	assert.Equal(t, []Tid{0, 6}, bas[1])
	assert.Equal(t, 64, windows[1])
	assert.Equal(t, "02:00:00:00:10:02", stas[1].Addr.String())
	assert.Equal(t, 8191, stas[1].MaxAmpduLen[phy.FormatHtMf])
	assert.Equal(t, 0, stas[1].MaxAmpduLen[phy.FormatVht])
	assert.Equal(t, 5, stas[1].MinSpacing)
	assert.Equal(t, 32, windows[2])

	flows, err := sc.CreateFlows()
	require.NoError(t, err)
	require.Len(t, flows, 2)
	be := flows[0]
	assert.Equal(t, 1, be.Id)
	assert.Equal(t, AcBe, be.Ac)
	assert.Equal(t, Tid(0), be.Tid)
	assert.True(t, be.Aggregate)
	assert.Equal(t, DefaultRate, be.Rate)
	assert.Equal(t, 4, be.Burst)
	vo := flows[1]
	assert.Equal(t, Tid(6), vo.Tid)
	assert.False(t, vo.Aggregate)
	assert.Equal(t, ProtRtsCts, vo.Protection)
	assert.Equal(t, phy.RateInfo{Format: phy.FormatHtMf, Mcs: 3, Nss: 2, Bw: phy.Bw40, Gi: phy.GiShort}, vo.Rate)
	assert.Equal(t, 1, vo.Burst)
}

func TestParseScenarioErrors(t *testing.T) {
	for name, y := range map[string]string{
		"bad ac":      "flows: [{ac: xx, sta: 1, len: 100, interval: 10}]",
		"bad rate":    "flows: [{ac: be, sta: 1, len: 100, interval: 10, rate: {format: ht, mcs: 9}}]",
		"no interval": "flows: [{ac: be, sta: 1, len: 100}]",
		"too long":    "flows: [{ac: be, sta: 1, len: 20000, interval: 10}]",
		"bad jitter":  "flows: [{ac: be, sta: 1, len: 100, interval: 10, jitter: 10}]",
		"bad prot":    "flows: [{ac: be, sta: 1, len: 100, interval: 10, protection: foo}]",
	} {
		sc, err := ParseScenario([]byte(y))
		require.NoError(t, err, name)
		_, err = sc.CreateFlows()
		assert.Error(t, err, name)
	}

	sc, err := ParseScenario([]byte("stations: [{id: 0}]"))
	require.NoError(t, err)
	_, _, _, err = sc.StationConfigs()
	assert.Error(t, err)

	sc, err = ParseScenario([]byte("stations: [{id: 1, ba: [8]}]"))
	require.NoError(t, err)
	_, _, _, err = sc.StationConfigs()
	assert.Error(t, err)

	sc, err = ParseScenario([]byte("engine: {mu-users: 5}"))
	require.NoError(t, err)
	_, err = sc.EngineConfig(txl.DefaultConfig())
	assert.Error(t, err)

	sc, err = ParseScenario([]byte("hardware: {hang: {vi: {duration: 100, interval: 100}}}"))
	require.NoError(t, err)
	_, err = sc.HangTimes()
	assert.Error(t, err)

	_, err = ParseScenario([]byte("flows: {"))
	assert.Error(t, err)
}
