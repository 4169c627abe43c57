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


// Package hwsim simulates the hardware around the TX engine: the MAC hardware walking the frame
// exchange chains, the payload buffer allocator and the RX path delivering Block-Acks.
package hwsim

import (
	"net"
	"sync"

	"github.com/wlansim/txagg/capture"
	"github.com/wlansim/txagg/frame"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/prng"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// Medium access timing around a PPDU, in us.
const (
	sifsUs      = 16
	aifsUs      = 34
	ackUs       = 44
	rtsCtsUs    = 52 + sifsUs + 44 + sifsUs
	ctsToSelfUs = 44 + sifsUs
	barBaUs     = sifsUs + 52 + sifsUs + 68
)

// Interrupts is the engine side of the MAC hardware.
type Interrupts interface {
	OnTxInterrupt(ac AccessCategory)
	OnBwDrop(ac AccessCategory, bw phy.Bandwidth)
}

type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomeRtsFailure
	OutcomeBwDrop
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeRtsFailure:
		return "rts-failure"
	case OutcomeBwDrop:
		return "bw-drop"
	default:
		return "unknown"
	}
}

// Exchange describes one frame exchange completed by the MAC.
type Exchange struct {
	Ac        AccessCategory
	Ampdu     bool
	Users     int
	Mpdus     int
	Lost      int
	Length    int
	Rate      phy.RateInfo
	StartUs   uint64
	AirtimeUs uint64
	Outcome   Outcome
}

type MacConfig struct {
	LossProb    float64 // per MPDU
	RtsFailProb float64 // per RTS/CTS protected exchange
	OwnAddr     net.HardwareAddr
}

func DefaultMacConfig() MacConfig {
	return MacConfig{
		OwnAddr: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
	}
}

// MacStats are the counters of one hardware queue.
type MacStats struct {
	Exchanges   uint64 `yaml:"exchanges" json:"exchanges"`
	Mpdus       uint64 `yaml:"mpdus" json:"mpdus"`
	LostMpdus   uint64 `yaml:"lost_mpdus" json:"lost_mpdus"`
	RtsFailures uint64 `yaml:"rts_failures" json:"rts_failures"`
	BwDrops     uint64 `yaml:"bw_drops" json:"bw_drops"`
	NewHeads    uint64 `yaml:"new_heads" json:"new_heads"`
	NewTails    uint64 `yaml:"new_tails" json:"new_tails"`
	Resumes     uint64 `yaml:"resumes" json:"resumes"`
	AirtimeUs   uint64 `yaml:"airtime_us" json:"airtime_us"`
}

type hwQueue struct {
	cur     txl.Handle
	last    txl.Handle // exchange the queue ran off the end of the chain at
	startUs uint64
	doneAt  uint64
	hung    bool

	rtsFailures int
	bwDropArmed bool
	bwDrop      phy.Bandwidth
}

// Mac is the simulated MAC hardware engine. It implements txl.MacHw. An exchange pointed to by
// NewHead completes after its airtime; Step then writes the status words, hands Block-Acks to the
// RX path and raises the interrupt. The next exchange is read from NextFrmEx at completion time,
// and again on NewTail if the queue had reached the end of the chain.
type Mac struct {
	mutex sync.Mutex

	cfg      MacConfig
	clock    txl.Clock
	stations txl.StationTable
	arena    *txl.HwArena
	irq      Interrupts
	rx       *Rx
	capture  capture.File
	onExch   func(Exchange)

	queues [NumAccessCategories]hwQueue
	stats  [NumAccessCategories]MacStats
}

var _ txl.MacHw = (*Mac)(nil)

func NewMac(cfg MacConfig, clock txl.Clock, stations txl.StationTable) *Mac {
	logger.AssertTrue(len(cfg.OwnAddr) == 6, "own address must be a MAC-48 address")
	m := &Mac{
		cfg:      cfg,
		clock:    clock,
		stations: stations,
	}
	for ac := range m.queues {
		m.queues[ac].cur = txl.NilHandle
		m.queues[ac].last = txl.NilHandle
	}
	return m
}

// Attach connects the MAC to the descriptor arena and interrupt lines of an engine. rx may be nil
// if Block-Acks are not needed.
func (m *Mac) Attach(arena *txl.HwArena, irq Interrupts, rx *Rx) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.arena = arena
	m.irq = irq
	m.rx = rx
}

// SetCapture sets the capture file receiving every transmitted frame; nil disables capture.
func (m *Mac) SetCapture(f capture.File) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.capture = f
}

// SetExchangeHook sets a function called after every completed frame exchange.
func (m *Mac) SetExchangeHook(f func(Exchange)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onExch = f
}

func (m *Mac) NewHead(ac AccessCategory, head txl.Handle) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	q := &m.queues[ac]
	q.cur = head
	q.last = txl.NilHandle
	m.stats[ac].NewHeads++
	if head != txl.NilHandle {
		m.start(q, m.clock.Now())
	}
}

// NewTail resumes a queue that completed its last exchange before the engine linked a new one
// behind it. A busy queue picks the new exchange up when the current one completes.
func (m *Mac) NewTail(ac AccessCategory) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	q := &m.queues[ac]
	m.stats[ac].NewTails++
	if q.cur != txl.NilHandle || q.last == txl.NilHandle {
		return
	}
	if next := m.arena.Get(q.last).NextFrmEx(); next != txl.NilHandle {
		q.cur = next
		q.last = txl.NilHandle
		m.stats[ac].Resumes++
		m.start(q, m.clock.Now())
	}
}

// advance moves the queue past the completed exchange d headed by q.cur.
func (q *hwQueue) advance(d *txl.HwDesc) {
	next := d.NextFrmEx()
	if next == txl.NilHandle {
		q.last = q.cur
	}
	q.cur = next
}

func (m *Mac) start(q *hwQueue, now uint64) {
	q.startUs = now
	q.doneAt = now + m.airtime(m.arena.Get(q.cur))
}

func protectionUs(p Protection) uint64 {
	switch p {
	case ProtRtsCts:
		return rtsCtsUs
	case ProtCtsToSelf:
		return ctsToSelfUs
	default:
		return 0
	}
}

// airtime returns the medium time of the exchange d heads, from the start of the AIFS to the end of
// the acknowledgement.
func (m *Mac) airtime(d *txl.HwDesc) uint64 {
	t := aifsUs + protectionUs(d.Protection)
	if d.Kind != txl.SlotAmpdu {
		return t + uint64(phy.AirtimeUs(d.Length, d.Rate)) + sifsUs + ackUs
	}
	longest := phy.AirtimeUs(d.Length, d.Rate)
	for _, u := range d.MuUsers {
		ud := m.arena.Get(u)
		if a := phy.AirtimeUs(ud.Length, ud.Rate); a > longest {
			longest = a
		}
	}
	return t + uint64(longest) + uint64(1+len(d.MuUsers))*barBaUs
}

// Step completes every exchange due at or before now, raising one interrupt per exchange.
func (m *Mac) Step(now uint64) {
	for {
		ac, ok := m.due(now)
		if !ok {
			return
		}
		m.complete(ac)
	}
}

func (m *Mac) due(now uint64) (AccessCategory, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	found := false
	var best AccessCategory
	for ac := range m.queues {
		q := &m.queues[ac]
		if q.cur == txl.NilHandle || q.hung || q.doneAt > now {
			continue
		}
		if !found || q.doneAt < m.queues[best].doneAt {
			best, found = AccessCategory(ac), true
		}
	}
	return best, found
}

// NextEvent returns the time the next exchange completes, or Ever.
func (m *Mac) NextEvent() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	next := Ever
	for ac := range m.queues {
		q := &m.queues[ac]
		if q.cur != txl.NilHandle && !q.hung && q.doneAt < next {
			next = q.doneAt
		}
	}
	return next
}

func (m *Mac) complete(ac AccessCategory) {
	m.mutex.Lock()
	q := &m.queues[ac]
	now := q.doneAt
	d := m.arena.Get(q.cur)
	ex := Exchange{
		Ac:        ac,
		Ampdu:     d.Kind == txl.SlotAmpdu,
		Users:     1 + len(d.MuUsers),
		Rate:      d.Rate,
		StartUs:   q.startUs,
		AirtimeUs: now - q.startUs,
	}
	var bas []txl.BlockAck
	dropBw := q.bwDrop
	switch {
	case q.bwDropArmed && d.Rate.Bw > dropBw:
		q.bwDropArmed = false
		d.SetStatus(txl.MakeHwStatus(txl.HwBwDrop, dropBw))
		ex.Outcome = OutcomeBwDrop
		m.stats[ac].BwDrops++
		q.cur = txl.NilHandle
		q.last = txl.NilHandle
	case d.Protection == ProtRtsCts && m.rtsFails(q):
		m.failProtection(d)
		ex.Outcome = OutcomeRtsFailure
		m.stats[ac].RtsFailures++
		if d.Kind == txl.SlotAmpdu {
			// the queue stops until a new head is set
			q.cur = txl.NilHandle
			q.last = txl.NilHandle
		} else {
			q.advance(d)
		}
	default:
		bas = m.transmit(&ex, d, now)
		q.advance(d)
	}
	m.stats[ac].Exchanges++
	m.stats[ac].AirtimeUs += ex.AirtimeUs
	if q.cur != txl.NilHandle {
		m.start(q, now)
	}
	irq, rx, hook := m.irq, m.rx, m.onExch
	m.mutex.Unlock()

	if rx != nil {
		for _, ba := range bas {
			rx.Deliver(ba)
		}
	}
	if hook != nil {
		hook(ex)
	}
	if ex.Outcome == OutcomeBwDrop {
		irq.OnBwDrop(ac, dropBw)
	} else {
		irq.OnTxInterrupt(ac)
	}
}

func (m *Mac) rtsFails(q *hwQueue) bool {
	if q.rtsFailures > 0 {
		q.rtsFailures--
		return true
	}
	return prng.NewLossDraw(m.cfg.RtsFailProb)
}

func (m *Mac) userHeaders(d *txl.HwDesc) []*txl.HwDesc {
	hdrs := []*txl.HwDesc{d}
	for _, u := range d.MuUsers {
		hdrs = append(hdrs, m.arena.Get(u))
	}
	return hdrs
}

// failProtection writes the status of an exchange whose RTS got no CTS. Nothing was sent.
func (m *Mac) failProtection(d *txl.HwDesc) {
	if d.Kind != txl.SlotAmpdu {
		d.SetStatus(txl.MakeHwStatus(txl.HwDone|txl.HwRetryLimit|txl.HwRtsRetryLimit, d.Rate.Bw))
		return
	}
	for _, hdr := range m.userHeaders(d) {
		for s := hdr.FirstMpdu; s != txl.NilHandle; {
			mp := m.arena.Get(s)
			mp.SetStatus(txl.MakeHwStatus(txl.HwDone, hdr.Rate.Bw))
			s = mp.NextMpdu
		}
		hdr.SetStatus(txl.MakeHwStatus(txl.HwDone, hdr.Rate.Bw))
		m.arena.Get(hdr.Bar).SetStatus(txl.MakeHwStatus(txl.HwDone|txl.HwRetryLimit|txl.HwRtsRetryLimit, hdr.Rate.Bw))
	}
}

// transmit sends the exchange headed by d, drawing the loss of every MPDU. It returns the Block-Acks
// answering the BARs of an A-MPDU.
func (m *Mac) transmit(ex *Exchange, d *txl.HwDesc, now uint64) []txl.BlockAck {
	st := &m.stats[ex.Ac]
	if d.Kind != txl.SlotAmpdu {
		lost := prng.NewLossDraw(m.cfg.LossProb)
		flags := txl.HwDone
		if !lost {
			flags |= txl.HwAcked
		} else {
			flags |= txl.HwRetryLimit
			ex.Lost++
			st.LostMpdus++
		}
		d.SetStatus(txl.MakeHwStatus(flags, d.Rate.Bw))
		ex.Mpdus++
		ex.Length += d.Length
		st.Mpdus++
		m.captureMpdu(now, d, d.Rate)
		return nil
	}

	var bas []txl.BlockAck
	for _, hdr := range m.userHeaders(d) {
		bar := m.arena.Get(hdr.Bar)
		var bitmap uint64
		for s := hdr.FirstMpdu; s != txl.NilHandle; {
			mp := m.arena.Get(s)
			mp.SetStatus(txl.MakeHwStatus(txl.HwDone, hdr.Rate.Bw))
			ex.Mpdus++
			st.Mpdus++
			if prng.NewLossDraw(m.cfg.LossProb) {
				ex.Lost++
				st.LostMpdus++
			} else if off := (mp.Sn - bar.Sn) & 0x0fff; off < 64 {
				bitmap |= 1 << off
			}
			m.captureMpdu(now, mp, hdr.Rate)
			s = mp.NextMpdu
		}
		ex.Length += hdr.Length
		hdr.SetStatus(txl.MakeHwStatus(txl.HwDone, hdr.Rate.Bw))
		bar.SetStatus(txl.MakeHwStatus(txl.HwDone|txl.HwAcked, hdr.Rate.Bw))

		ba := txl.BlockAck{Sta: hdr.Sta, Tid: hdr.Tid, Ssn: bar.Sn, Bitmap: bitmap}
		m.captureControl(now, bar.Frame)
		m.captureBlockAck(now, ba)
		bas = append(bas, ba)
	}
	return bas
}

func (m *Mac) staAddr(sta StaId) net.HardwareAddr {
	if info, ok := m.stations.StationInfo(sta); ok {
		return info.Addr
	}
	return net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

func (m *Mac) appendFrame(f capture.Frame) {
	if err := m.capture.AppendFrame(f); err != nil {
		logger.Warnf("capture: %v", err)
	}
}

func (m *Mac) captureMpdu(now uint64, d *txl.HwDesc, rate phy.RateInfo) {
	if m.capture == nil {
		return
	}
	f := frame.QosData{
		Addr1:   m.staAddr(d.Sta),
		Addr2:   m.cfg.OwnAddr,
		Addr3:   m.cfg.OwnAddr,
		FromDs:  true,
		Sn:      d.Sn,
		Tid:     d.Tid,
		Payload: make([]byte, frame.PayloadLenForMpdu(d.Length)),
	}
	m.appendFrame(capture.Frame{Timestamp: now, Data: f.Encode(), Rate: rate})
}

func (m *Mac) captureControl(now uint64, data []byte) {
	if m.capture == nil || len(data) == 0 {
		return
	}
	m.appendFrame(capture.Frame{Timestamp: now, Data: data, Rate: legacyControlRate})
}

func (m *Mac) captureBlockAck(now uint64, ba txl.BlockAck) {
	if m.capture == nil {
		return
	}
	f := frame.BlockAck{
		RA:     m.cfg.OwnAddr,
		TA:     m.staAddr(ba.Sta),
		Tid:    ba.Tid,
		Ssn:    ba.Ssn,
		Bitmap: ba.Bitmap,
	}
	m.appendFrame(capture.Frame{Timestamp: now, Data: f.Encode(), Rate: legacyControlRate})
}

var legacyControlRate = phy.RateInfo{Format: phy.FormatNonHt, Mcs: 4, Nss: 1, Bw: phy.Bw20}

// InjectRtsFailures makes the next n RTS/CTS protected exchanges of ac fail.
func (m *Mac) InjectRtsFailures(ac AccessCategory, n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.queues[ac].rtsFailures += n
}

// InjectBwDrop makes the next exchange of ac wider than bw fail its secondary channel check.
func (m *Mac) InjectBwDrop(ac AccessCategory, bw phy.Bandwidth) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	q := &m.queues[ac]
	q.bwDropArmed = true
	q.bwDrop = bw
}

// SetHung stops (or resumes) the completion of exchanges on ac.
func (m *Mac) SetHung(ac AccessCategory, hung bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	q := &m.queues[ac]
	if q.hung && !hung && q.cur != txl.NilHandle {
		if now := m.clock.Now(); q.doneAt < now {
			q.doneAt = now
		}
	}
	q.hung = hung
}

func (m *Mac) Hung(ac AccessCategory) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queues[ac].hung
}

// Busy returns true if ac is walking a chain.
func (m *Mac) Busy(ac AccessCategory) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queues[ac].cur != txl.NilHandle
}

func (m *Mac) Stats() [NumAccessCategories]MacStats {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.stats
}
