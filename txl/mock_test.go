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

package txl

import (
	"net"

	"github.com/stretchr/testify/assert"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

type mockBuffers struct {
	mode    AllocResult
	inUse   map[*TxDesc]bool
	pending []*TxDesc
	allocs  int
	limit   int // 0 for unlimited
}

func newMockBuffers(mode AllocResult) *mockBuffers {
	return &mockBuffers{mode: mode, inUse: map[*TxDesc]bool{}}
}

func (m *mockBuffers) Alloc(ac AccessCategory, desc *TxDesc) AllocResult {
	if m.limit > 0 && len(m.inUse) >= m.limit {
		return AllocNoBuffer
	}
	m.allocs++
	m.inUse[desc] = true
	if m.mode == AllocPending {
		m.pending = append(m.pending, desc)
	}
	return m.mode
}

func (m *mockBuffers) Free(ac AccessCategory, desc *TxDesc) {
	if !m.inUse[desc] {
		logger.Panicf("free of buffer not in use: %s", desc)
	}
	delete(m.inUse, desc)
}

// readyAll reports all pending downloads as done.
func (m *mockBuffers) readyAll(e *Engine, ac AccessCategory) {
	for len(m.pending) > 0 {
		d := m.pending[0]
		m.pending = m.pending[1:]
		e.OnPayloadReady(ac, d)
	}
}

type mockMac struct {
	arena *HwArena
	heads []Handle
	tails int
	cur   Handle
}

func (m *mockMac) NewHead(ac AccessCategory, head Handle) {
	m.heads = append(m.heads, head)
	m.cur = head
}

func (m *mockMac) NewTail(ac AccessCategory) {
	m.tails++
}

type mockStations struct {
	limits map[StaId]AggLimits
	info   map[StaId]StationInfo
}

func (m *mockStations) AggLimits(sta StaId, tid Tid) (AggLimits, bool) {
	lim, ok := m.limits[sta]
	return lim, ok
}

func (m *mockStations) StationInfo(sta StaId) (StationInfo, bool) {
	info, ok := m.info[sta]
	return info, ok
}

func (m *mockStations) add(sta StaId, lim AggLimits, info StationInfo) {
	if info.Addr == nil {
		info.Addr = net.HardwareAddr{0x02, 0, 0, 0, 0x10, byte(sta)}
	}
	m.limits[sta] = lim
	m.info[sta] = info
}

// mockBlockAcks answers a poll once it was polled lag times.
type mockBlockAcks struct {
	lag   int
	polls int
	bas   map[baKey]BlockAck
}

func (m *mockBlockAcks) PollBlockAck(sta StaId, tid Tid) (BlockAck, bool) {
	m.polls++
	ba, ok := m.bas[baKey{sta, tid}]
	if !ok || m.polls < m.lag {
		return BlockAck{}, false
	}
	delete(m.bas, baKey{sta, tid})
	m.polls = 0
	return ba, true
}

type mockHandler struct {
	confirmed [NumAccessCategories][]*TxDesc
	hangs     []error
}

func (m *mockHandler) TxConfirm(ac AccessCategory, desc *TxDesc) {
	m.confirmed[ac] = append(m.confirmed[ac], desc)
}

func (m *mockHandler) OnQueueHang(ac AccessCategory, err error) {
	m.hangs = append(m.hangs, err)
}

type mockClock struct {
	now uint64
}

func (m *mockClock) Now() uint64 {
	return m.now
}

type testEnv struct {
	cfg      *Config
	engine   *Engine
	buffers  *mockBuffers
	mac      *mockMac
	stations *mockStations
	handler  *mockHandler
	clock    *mockClock

	// Block-Acks sent on completion; nil bitmap function acks everything
	baBitmap func(ssn uint16, n int) uint64
	// if set, Block-Acks are left for polling instead of being pushed
	baSource *mockBlockAcks
}

func (env *testEnv) usePolledBlockAcks(lag int) *mockBlockAcks {
	env.baSource = &mockBlockAcks{lag: lag, bas: map[baKey]BlockAck{}}
	env.engine.blockAcks = env.baSource
	return env.baSource
}

func newTestEnv(mode AllocResult, cfgFn func(cfg *Config)) *testEnv {
	cfg := DefaultConfig()
	if cfgFn != nil {
		cfgFn(cfg)
	}
	env := &testEnv{
		cfg:      cfg,
		buffers:  newMockBuffers(mode),
		mac:      &mockMac{cur: NilHandle},
		stations: &mockStations{limits: map[StaId]AggLimits{}, info: map[StaId]StationInfo{}},
		handler:  &mockHandler{},
		clock:    &mockClock{},
	}
	env.engine = New(cfg, Collaborators{
		Buffers:  env.buffers,
		Mac:      env.mac,
		Stations: env.stations,
		Handler:  env.handler,
		Clock:    env.clock,
	})
	env.mac.arena = env.engine.Arena()
	return env
}

func htLimits(maxLen int) AggLimits {
	var lim AggLimits
	lim.MaxLen[phy.FormatHtMf] = maxLen
	lim.MaxLen[phy.FormatVht] = maxLen
	lim.Window = 64
	return lim
}

var htRate = phy.RateInfo{Format: phy.FormatHtMf, Mcs: 7, Nss: 1, Bw: phy.Bw20}

func newDescs(sta StaId, n int, length int, firstSn uint16, rate phy.RateInfo) []*TxDesc {
	res := make([]*TxDesc, n)
	for i := range res {
		res[i] = &TxDesc{
			Sta:       sta,
			Aggregate: true,
			Rate:      rate,
			Length:    length,
			Sn:        (firstSn + uint16(i)) & seqMask,
		}
	}
	return res
}

func (env *testEnv) submitAll(t assert.TestingT, ac AccessCategory, descs []*TxDesc) {
	for _, d := range descs {
		_, err := env.engine.Submit(ac, d)
		assert.Nil(t, err)
	}
}

// ampduMembers returns the MPDU slots of the A-MPDU at header h.
func (env *testEnv) ampduMembers(h Handle) []*HwDesc {
	var res []*HwDesc
	for m := env.engine.arena.Get(h).FirstMpdu; m != NilHandle; m = env.engine.arena.Get(m).NextMpdu {
		res = append(res, env.engine.arena.Get(m))
	}
	return res
}

// completeHead plays the hardware for the exchange the queue points at: MPDUs get mpduFlags, BARs
// get barFlags, and a Block-Ack is pushed for every BAR acknowledged. It returns false if no
// exchange is chained.
func (env *testEnv) completeHead(ac AccessCategory, mpduFlags, barFlags uint32) bool {
	h := env.mac.cur
	if h == NilHandle {
		return false
	}
	arena := env.engine.arena
	d := arena.Get(h)
	switch d.Kind {
	case SlotMpdu:
		d.SetStatus(MakeHwStatus(HwDone|mpduFlags, d.Rate.Bw))
	case SlotAmpdu:
		for _, hdr := range append([]Handle{h}, d.MuUsers...) {
			members := env.ampduMembers(hdr)
			for _, m := range members {
				m.SetStatus(MakeHwStatus(HwDone|mpduFlags, m.Rate.Bw))
			}
			bar := arena.Get(arena.Get(hdr).Bar)
			if barFlags&HwAcked != 0 {
				bitmap := uint64(1)<<uint(len(members)) - 1
				if env.baBitmap != nil {
					bitmap = env.baBitmap(bar.Sn, len(members))
				}
				ba := BlockAck{Sta: bar.Sta, Tid: bar.Tid, Ssn: bar.Sn, Bitmap: bitmap}
				if env.baSource != nil {
					env.baSource.bas[baKey{ba.Sta, ba.Tid}] = ba
				} else {
					env.engine.OnBlockAck(ba)
				}
			}
			bar.SetStatus(MakeHwStatus(HwDone|barFlags, bar.Rate.Bw))
		}
	}
	env.mac.cur = d.NextFrmEx()
	env.engine.OnTxInterrupt(ac)
	return true
}

// drain completes every chained exchange with success.
func (env *testEnv) drain(ac AccessCategory) {
	for env.completeHead(ac, HwAcked, HwAcked) {
	}
}

func (env *testEnv) confirmed(ac AccessCategory) []*TxDesc {
	env.engine.ProcessConfirmations()
	return env.handler.confirmed[ac]
}

// assertNoLeaks checks that all engine resources were returned.
func (env *testEnv) assertNoLeaks(t assert.TestingT) {
	assert.Equal(t, 0, env.engine.arena.InUse())
	assert.Equal(t, env.engine.pool.capacity(), env.engine.pool.available())
	assert.Empty(t, env.buffers.inUse)
	for _, tl := range env.engine.queues {
		assert.Equal(t, 0, tl.outstanding())
		assert.Equal(t, 0, tl.ppduInFlight)
	}
}

// checkAmpdu verifies the length accounting of the A-MPDU at header h against the limits.
func (env *testEnv) checkAmpdu(t assert.TestingT, h Handle, maxLen int) {
	hdr := env.engine.arena.Get(h)
	members := env.ampduMembers(h)
	length := 0
	for _, m := range members {
		length += m.BlankDelims*4 + subframeLen(m.Length)
	}
	assert.Equal(t, hdr.Length, length)
	assert.True(t, hdr.Length <= maxLen, "A-MPDU length %d exceeds %d", hdr.Length, maxLen)
	assert.True(t, len(members) >= 2 && len(members) <= maxBaWindow)
	assert.Equal(t, SlotBar, env.engine.arena.Get(hdr.Bar).Kind)
}
