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
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

// OnBwDrop handles a forced bandwidth reduction reported by the hardware for the exchange it was
// about to send. An A-MPDU is split: the subframes fitting the length budget of bandwidth bw stay
// in the aggregate, which gets a new BAR, and the rest follow as singletons. The queue is then
// restarted with the split exchange.
func (e *Engine) OnBwDrop(ac AccessCategory, bw phy.Bandwidth) {
	if !ac.Valid() || !bw.Valid() {
		return
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()

	tl := e.queues[ac]
	idx := e.findDropped(tl)
	if idx < 0 {
		tl.log.Warnf("bandwidth drop to %s without exchange in flight", bw)
		return
	}
	tl.stats.BwDrops++
	x := tl.exQueue[idx]
	if idx == 0 {
		tl.check = checkMpdu
		tl.checkUser = 0
	}
	for _, agg := range x.aggs() {
		if agg.state == aggAwaitingBlockAck {
			agg.setState(aggFormatted)
		}
	}
	oldHead := x.head
	next := e.arena.Get(oldHead).NextFrmEx()

	var seq []*frmEx
	if x.kind == exAmpdu && bw < x.agg.rate.Bw {
		seq = e.splitAggregate(tl, x, bw)
	} else {
		e.lowerBandwidth(x, bw)
		seq = []*frmEx{x}
	}
	e.replaceExchange(tl, idx, oldHead, next, seq)

	tl.stats.NewHeads++
	e.mac.NewHead(tl.ac, seq[0].head)
	e.timers.arm(tl.ac, timerActivity, e.now()+e.cfg.ActivityTimeoutUs)
}

// findDropped returns the index of the chained exchange the hardware flagged with a bandwidth
// drop, or else of the first chained exchange not yet done.
func (e *Engine) findDropped(tl *txList) int {
	firstPending := -1
	for i := 0; i < tl.nChained; i++ {
		x := tl.exQueue[i]
		if e.arena.Get(x.head).Status()&HwBwDrop != 0 {
			return i
		}
		if firstPending < 0 && !e.arena.Get(x.firstMpdu(e.arena)).Done() {
			firstPending = i
		}
	}
	return firstPending
}

// keepCount returns how many leading members of agg fit the length budget of bw, and their length.
func (e *Engine) keepCount(agg *aggDesc, bw phy.Bandwidth) (int, int) {
	if cp := agg.checkpoints[bw]; cp.set {
		return cp.count, cp.length
	}
	length := 0
	delims := 0
	for i, m := range agg.members {
		add := delims*4 + subframeLen(m.PayloadLength())
		if length+add > agg.limits[bw] {
			return i, length
		}
		length += add
		delims = agg.delimsAfter(subframeLen(m.PayloadLength()))
	}
	return agg.count, length
}

func (e *Engine) splitAggregate(tl *txList, x *frmEx, bw phy.Bandwidth) []*frmEx {
	k, keptLen := e.keepCount(x.agg, bw)
	tl.stats.BwDropSplits++
	tl.log.Debugf("bandwidth drop to %s splits %s after %d members", bw, x.agg, k)

	var seq []*frmEx
	kept, rest := e.cutAggregate(tl, x, k, keptLen, bw)
	if kept {
		seq = append(seq, x)
	}
	return append(seq, e.singlesOf(tl, rest, bw, true)...)
}

// cutAggregate keeps the first k members in the aggregate of x, which gets a new header and BAR
// at bandwidth bw, and returns the other members detached from it. With k <= 1 the aggregate is
// dissolved, kept is false and all members are returned.
func (e *Engine) cutAggregate(tl *txList, x *frmEx, k int, keptLen int, bw phy.Bandwidth) (kept bool, rest []*TxDesc) {
	agg := x.agg
	if k <= 1 {
		rest = agg.members
		e.arena.Free(agg.header)
		e.arena.Free(agg.bar)
		tl.stats.Aggregates--
		tl.stats.AggregatedMpdus -= uint64(agg.count)
		e.pool.release(agg)
		return false, rest
	}

	rest = append([]*TxDesc(nil), agg.members[k:]...)
	agg.members = agg.members[:k]
	tl.stats.AggregatedMpdus -= uint64(agg.count - k)
	agg.count = k
	agg.length = keptLen
	agg.rate.Bw = bw
	agg.step = bw
	for b := phy.Bw20; b < phy.NumBandwidths; b++ {
		if b >= bw || agg.checkpoints[b].count > k {
			agg.checkpoints[b] = bwCheckpoint{}
		}
	}
	agg.lastMpdu = agg.members[k-1].slot
	last := e.arena.Get(agg.lastMpdu)
	last.NextMpdu = NilHandle
	for _, m := range agg.members {
		s := e.arena.Get(m.slot)
		s.Rate.Bw = bw
		s.SetStatus(0)
	}
	hdr := e.arena.Get(agg.header)
	hdr.SetStatus(0)
	e.arena.Free(agg.bar)
	e.writeHeader(agg)
	return true, rest
}

// singlesOf turns members detached from an aggregate into singleton exchanges.
func (e *Engine) singlesOf(tl *txList, descs []*TxDesc, bw phy.Bandwidth, chained bool) []*frmEx {
	seq := make([]*frmEx, 0, len(descs))
	for _, m := range descs {
		m.agg = nil
		m.Aggregated = false
		s := e.arena.Get(m.slot)
		s.NextMpdu = NilHandle
		s.BlankDelims = 0
		s.Rate.Bw = bw
		s.SetStatus(0)
		seq = append(seq, &frmEx{kind: exSingle, head: m.slot, single: m, chained: chained})
		tl.stats.Singletons++
	}
	return seq
}

// lowerBandwidth rewrites the bandwidth of an exchange sent unchanged otherwise.
func (e *Engine) lowerBandwidth(x *frmEx, bw phy.Bandwidth) {
	var slots []Handle
	switch x.kind {
	case exSingle:
		slots = []Handle{x.head}
	default:
		for _, agg := range x.aggs() {
			slots = append(slots, agg.header, agg.bar)
			for _, m := range agg.members {
				slots = append(slots, m.slot)
			}
			if bw < agg.rate.Bw {
				agg.rate.Bw = bw
			}
		}
	}
	for _, h := range slots {
		s := e.arena.Get(h)
		if bw < s.Rate.Bw {
			s.Rate.Bw = bw
		}
		s.SetStatus(0)
	}
}

// replaceExchange puts seq in place of the exchange at idx and relinks the chain.
func (e *Engine) replaceExchange(tl *txList, idx int, oldHead Handle, next Handle, seq []*frmEx) {
	for i := 0; i < len(seq)-1; i++ {
		e.arena.Get(seq[i].head).SetNextFrmEx(seq[i+1].head)
	}
	last := seq[len(seq)-1]
	e.arena.Get(last.head).SetNextFrmEx(next)
	if tl.lastChained == oldHead {
		tl.lastChained = last.head
	}

	q := make([]*frmEx, 0, len(tl.exQueue)+len(seq)-1)
	q = append(q, tl.exQueue[:idx]...)
	q = append(q, seq...)
	q = append(q, tl.exQueue[idx+1:]...)
	tl.exQueue = q

	added := len(seq) - 1
	tl.nChained += added
	tl.dlFirst += added
	tl.ppduInFlight += added
	tl.stats.trackQueued(tl.ppduInFlight)
}
