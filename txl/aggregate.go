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
	"github.com/wlansim/txagg/frame"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

// aggLimits returns the receiver's aggregation limits if desc may be part of an A-MPDU on ac.
func (e *Engine) aggLimits(ac AccessCategory, desc *TxDesc) (AggLimits, bool) {
	if !desc.Aggregate || !desc.Rate.Format.Aggregable() || e.cfg.MaxDurationUs[ac] <= 0 {
		return AggLimits{}, false
	}
	lim, ok := e.stations.AggLimits(desc.Sta, desc.Tid)
	if !ok || lim.Window < 2 || lim.MaxLen[desc.Rate.Format] <= 0 {
		return AggLimits{}, false
	}
	return lim, true
}

// buildSu runs the single-user aggregation builder for desc. An open aggregate that desc cannot
// join is closed first and desc is then examined again.
func (e *Engine) buildSu(tl *txList, desc *TxDesc) {
	ul := &tl.users[0]
	desc.user = 0
	for {
		if ul.agg == nil {
			e.startSu(tl, desc)
			return
		}
		accepted, full := e.appendToAggregate(ul.agg, desc, desc.Rate)
		if accepted {
			ul.descs = append(ul.descs, desc)
			if full {
				e.finishAggregate(tl, 0)
			}
			return
		}
		e.finishAggregate(tl, 0)
	}
}

// startSu opens a new aggregate with desc, or sends desc as a singleton if it is not eligible or
// no aggregate descriptor is free.
func (e *Engine) startSu(tl *txList, desc *TxDesc) {
	ul := &tl.users[0]
	if lim, ok := e.aggLimits(tl.ac, desc); ok {
		if agg := e.openAggregate(tl, desc, 0, desc.Rate, lim, e.cfg.BwStepping); agg != nil {
			ul.descs = append(ul.descs, desc)
			ul.agg = agg
			e.armHoldTimer(tl)
			return
		}
	}
	ul.descs = append(ul.descs, desc)
	e.pushExchange(tl, e.newSingleton(desc))
}

func (e *Engine) armHoldTimer(tl *txList) {
	if tl.ppduInFlight == 0 && e.cfg.AggHoldUs > 0 && !e.timers.armed(tl.ac, timerAggHold) {
		e.timers.arm(tl.ac, timerAggHold, e.now()+e.cfg.AggHoldUs)
	}
}

// openAggregate allocates an aggregate seeded with desc. Returns nil if desc alone exceeds the
// length limit or the pool is exhausted.
func (e *Engine) openAggregate(tl *txList, desc *TxDesc, user int, rate phy.RateInfo, lim AggLimits, stepping bool) *aggDesc {
	sub := subframeLen(desc.PayloadLength())
	maxDur := e.cfg.MaxDurationUs[tl.ac]
	rxMax := lim.MaxLen[rate.Format]

	var limits [phy.NumBandwidths]int
	for bw := phy.Bw20; bw <= rate.Bw; bw++ {
		l := phy.MaxLenForDuration(rate.WithBandwidth(bw), maxDur)
		if rxMax < l {
			l = rxMax
		}
		limits[bw] = l
	}
	if sub > limits[rate.Bw] {
		return nil
	}

	agg := e.pool.alloc()
	if agg == nil {
		tl.stats.AggPoolMisses++
		tl.log.Debugf("aggregate pool exhausted, %s sent as singleton", desc)
		return nil
	}
	agg.user = user
	agg.sta = desc.Sta
	agg.tid = desc.Tid
	agg.rate = rate
	agg.protection = desc.Protection
	agg.limits = limits
	agg.maxCount = lim.Window
	if agg.maxCount > maxBaWindow {
		agg.maxCount = maxBaWindow
	}
	agg.minSpacing = phy.MinSpacingBytes(rate, lim.MinSpacing)
	agg.step = rate.Bw
	if stepping && rate.Bw > phy.Bw20 {
		agg.step = phy.Bw20
		for sub > agg.limits[agg.step] {
			// nothing fits the lower bandwidth
			agg.checkpoints[agg.step] = bwCheckpoint{set: true}
			agg.step++
		}
	}

	agg.header = e.arena.Alloc(SlotAmpdu)
	slot := e.newMpduSlot(desc, rate)
	e.arena.Get(agg.header).FirstMpdu = slot
	agg.lastMpdu = slot
	agg.members = append(agg.members, desc)
	desc.agg = agg
	agg.count = 1
	agg.length = sub
	agg.nextDelims = agg.delimsAfter(sub)

	tl.log.Tracef("open %s, max len %d, max count %d", agg, agg.maxLen(), agg.maxCount)
	return agg
}

// delimsAfter returns the blank delimiters needed after a subframe of length sub to honour the
// minimum MPDU start spacing.
func (a *aggDesc) delimsAfter(sub int) int {
	if a.minSpacing <= sub {
		return 0
	}
	return (a.minSpacing - sub + 3) / 4
}

// prefixLen returns the A-MPDU length of the first k members.
func (a *aggDesc) prefixLen(k int) int {
	length := 0
	delims := 0
	for _, m := range a.members[:k] {
		sub := subframeLen(m.PayloadLength())
		length += delims*4 + sub
		delims = a.delimsAfter(sub)
	}
	return length
}

// appendToAggregate adds desc to agg if compatible and within the length limit. When the limit of
// the current bandwidth step is reached and a higher step remains, a checkpoint is recorded and
// aggregation continues against the next step. full is true when the count limit is reached.
func (e *Engine) appendToAggregate(agg *aggDesc, desc *TxDesc, rate phy.RateInfo) (accepted bool, full bool) {
	if !desc.Aggregate || desc.Sta != agg.sta || desc.Tid != agg.tid || desc.Protection != agg.protection ||
		rate != agg.rate {
		return false, false
	}

	sub := subframeLen(desc.PayloadLength())
	add := agg.nextDelims*4 + sub
	for agg.length+add > agg.limits[agg.step] {
		if agg.step >= agg.rate.Bw || agg.count == 1 {
			return false, false
		}
		agg.checkpoints[agg.step] = bwCheckpoint{set: true, count: agg.count, length: agg.length}
		agg.step++
	}

	slot := e.newMpduSlot(desc, agg.rate)
	prev := e.arena.Get(agg.lastMpdu)
	prev.NextMpdu = slot
	prev.BlankDelims = agg.nextDelims
	agg.lastMpdu = slot
	agg.members = append(agg.members, desc)
	desc.agg = agg
	agg.count++
	agg.length += add
	agg.nextDelims = agg.delimsAfter(sub)
	logger.AssertTrue(agg.length <= agg.maxLen())
	return true, agg.count >= agg.maxCount
}

// finishAggregate closes the open single-user aggregate of a user position and queues it.
func (e *Engine) finishAggregate(tl *txList, user int) {
	ul := &tl.users[user]
	agg := ul.agg
	logger.AssertNotNil(agg)
	ul.agg = nil
	if !tl.hasOpenBuild() {
		e.timers.disarm(tl.ac, timerAggHold)
	}
	e.pushExchange(tl, e.closeAggregate(tl, agg, true))
}

// closeAggregate formats agg and appends its BAR. With demote set, a single-member aggregate is
// turned back into a plain singleton.
func (e *Engine) closeAggregate(tl *txList, agg *aggDesc, demote bool) *frmEx {
	if agg.count == 1 && demote {
		desc := agg.members[0]
		e.arena.Free(agg.header)
		desc.agg = nil
		e.pool.release(agg)
		tl.stats.Demotions++
		tl.log.Tracef("demote single member aggregate %s", desc)
		return &frmEx{kind: exSingle, head: desc.slot, single: desc}
	}

	e.formatAggregate(agg)
	tl.stats.Aggregates++
	tl.stats.AggregatedMpdus += uint64(agg.count)
	for _, m := range agg.members {
		m.Aggregated = true
	}
	tl.log.Tracef("close %s", agg)
	return &frmEx{kind: exAmpdu, head: agg.header, agg: agg}
}

func (e *Engine) formatAggregate(agg *aggDesc) {
	e.writeHeader(agg)
	agg.setState(aggFormatted)
}

// writeHeader fills the A-MPDU header from agg and attaches a new BAR.
func (e *Engine) writeHeader(agg *aggDesc) {
	hdr := e.arena.Get(agg.header)
	hdr.FirstMpdu = agg.members[0].slot
	hdr.Rate = agg.rate
	hdr.Protection = agg.protection
	hdr.Length = agg.length
	hdr.Sta = agg.sta
	hdr.Tid = agg.tid
	e.arena.Get(agg.lastMpdu).BlankDelims = 0

	agg.bar = e.newBar(agg)
	hdr.Bar = agg.bar
	hdr.Sn = e.arena.Get(agg.bar).Sn
}

// startSeq returns the smallest sequence number of the members, modulo 4096.
func (a *aggDesc) startSeq() uint16 {
	base := a.members[0].Sn & seqMask
	minOff := uint16(0)
	for _, m := range a.members[1:] {
		if off := seqOffset(m.Sn, base); off >= seqModulo/2 {
			// behind base
			if d := seqModulo - off; d > minOff {
				minOff = d
			}
		}
	}
	return (base - minOff) & seqMask
}

// newBar builds the Block-Ack-Request terminating agg, sent at the bandwidth of the data.
func (e *Engine) newBar(agg *aggDesc) Handle {
	h := e.arena.Alloc(SlotBar)
	d := e.arena.Get(h)
	ssn := agg.startSeq()
	var ra []byte
	if info, ok := e.stations.StationInfo(agg.sta); ok {
		ra = info.Addr
	}
	bar := &frame.BlockAckReq{
		RA:  ra,
		TA:  e.cfg.OwnAddr,
		Tid: agg.tid,
		Ssn: ssn,
	}
	d.Frame = bar.Encode()
	d.Length = len(d.Frame)
	d.Rate = agg.rate
	d.Protection = agg.protection
	d.Sta = agg.sta
	d.Tid = agg.tid
	d.Sn = ssn
	return h
}

func (e *Engine) newMpduSlot(desc *TxDesc, rate phy.RateInfo) Handle {
	h := e.arena.Alloc(SlotMpdu)
	d := e.arena.Get(h)
	d.Rate = rate
	d.Protection = desc.Protection
	d.Length = desc.PayloadLength()
	d.Sta = desc.Sta
	d.Tid = desc.Tid
	d.Sn = desc.Sn
	desc.slot = h
	return h
}

func (e *Engine) newSingleton(desc *TxDesc) *frmEx {
	return &frmEx{kind: exSingle, head: e.newMpduSlot(desc, desc.Rate), single: desc}
}

func (e *Engine) pushExchange(tl *txList, x *frmEx) {
	tl.exQueue = append(tl.exQueue, x)
	tl.ppduInFlight++
	tl.stats.trackQueued(tl.ppduInFlight)
	if x.kind == exSingle {
		tl.stats.Singletons++
	}
}

// closeOpenBuilds closes the aggregate or MU-MIMO PPDU being built.
func (e *Engine) closeOpenBuilds(tl *txList) {
	e.endMuBuild(tl)
	for u := range tl.users {
		if tl.users[u].agg != nil {
			e.finishAggregate(tl, u)
		}
	}
	e.timers.disarm(tl.ac, timerAggHold)
}
