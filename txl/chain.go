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
	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/types"
)

// download requests payload buffers in queue order: closed exchanges first, then the builds
// still open. It stops at the first descriptor for which no buffer is free.
func (e *Engine) download(tl *txList) {
	tl.stalled = false
	for tl.dlFirst < len(tl.exQueue) {
		if !e.requestPayloads(tl, tl.exQueue[tl.dlFirst].descs()) {
			return
		}
		tl.dlFirst++
	}
	for u := range tl.users {
		if agg := tl.users[u].agg; agg != nil && !e.requestPayloads(tl, agg.members) {
			return
		}
	}
	for _, agg := range tl.mu.closed {
		if agg != nil && !e.requestPayloads(tl, agg.members) {
			return
		}
	}
}

func (e *Engine) requestPayloads(tl *txList, descs []*TxDesc) bool {
	for _, d := range descs {
		if d.dl != dlNone {
			continue
		}
		switch e.buffers.Alloc(tl.ac, d) {
		case AllocReady:
			d.dl = dlReady
		case AllocPending:
			d.dl = dlPending
		default:
			tl.stats.BufferStalls++
			tl.stalled = true
			return false
		}
	}
	return true
}

// checkStarving closes the open build once its payloads are downloaded if no PPDU is queued,
// so that the hardware does not idle while an unfinished aggregate waits for more frames.
func (e *Engine) checkStarving(tl *txList) {
	if tl.ppduInFlight > 0 {
		return
	}
	if tl.mu.active {
		if tl.muDownloaded() {
			tl.stats.ForcedCloses++
			e.endMuBuild(tl)
		}
		return
	}
	if agg := tl.users[0].agg; agg != nil && membersDownloaded(agg) {
		tl.stats.ForcedCloses++
		e.finishAggregate(tl, 0)
	}
}

func membersDownloaded(agg *aggDesc) bool {
	for _, m := range agg.members {
		if m.dl != dlReady {
			return false
		}
	}
	return true
}

// tryChain hands closed exchanges to the hardware in order, as long as all their payloads are
// downloaded.
func (e *Engine) tryChain(tl *txList) {
	for tl.nChained < len(tl.exQueue) {
		x := tl.exQueue[tl.nChained]
		if !x.downloaded() {
			return
		}
		e.chain(tl, x)
	}
}

// chain links x behind the last chained exchange, or makes it the new head of an idle queue.
func (e *Engine) chain(tl *txList, x *frmEx) {
	x.chained = true
	wasIdle := tl.idle()
	tl.nChained++
	tl.stats.Chained++
	if wasIdle {
		tl.lastChained = x.head
		tl.stats.NewHeads++
		tl.log.Tracef("new head %s exchange %d", x.kind, x.head)
		e.mac.NewHead(tl.ac, x.head)
	} else {
		e.arena.Get(tl.lastChained).SetNextFrmEx(x.head)
		tl.lastChained = x.head
		tl.log.Tracef("new tail %s exchange %d", x.kind, x.head)
		e.mac.NewTail(tl.ac)
	}
	e.timers.arm(tl.ac, timerActivity, e.now()+e.cfg.ActivityTimeoutUs)
}

// relieveStall breaks a buffer deadlock. With nothing chained no completion will return payload
// buffers to the queue, so the first exchange is cut down to the members already holding one and
// the rest follow it. An open build holding buffers is closed first.
func (e *Engine) relieveStall(tl *txList) {
	for tl.stalled && tl.nChained == 0 && tl.dlFirst == 0 {
		if len(tl.exQueue) == 0 {
			if !holdsBuffers(tl.openAggregates()) {
				return
			}
			tl.stats.ForcedCloses++
			e.closeOpenBuilds(tl)
		} else if !e.cutStalled(tl, tl.exQueue[0]) {
			return
		}
		e.download(tl)
	}
	e.tryChain(tl)
}

func holdsBuffers(aggs []*aggDesc) bool {
	for _, agg := range aggs {
		if len(agg.members) > 0 && agg.members[0].dl != dlNone {
			return true
		}
	}
	return false
}

// cutStalled splits the unchained head exchange x whose payloads could not all be requested.
// Returns false if x cannot be reduced.
func (e *Engine) cutStalled(tl *txList, x *frmEx) bool {
	switch x.kind {
	case exMu:
		if x.descs()[0].dl == dlNone {
			return false
		}
		e.splitMu(tl, x)
		return true
	case exAmpdu:
	default:
		return false
	}

	agg := x.agg
	k := 0
	for k < agg.count && agg.members[k].dl != dlNone {
		k++
	}
	if k == 0 || k == agg.count {
		return false
	}
	tl.stats.StallSplits++
	tl.log.Debugf("buffer stall splits %s after %d members", agg, k)

	bw := agg.rate.Bw
	user := agg.user
	kept, rest := e.cutAggregate(tl, x, k, agg.prefixLen(k), bw)
	var seq []*frmEx
	if kept {
		seq = append(seq, x)
	} else {
		seq = e.singlesOf(tl, rest[:1], bw, false)
		rest = rest[1:]
	}

	// with nothing behind them the members left out are aggregated again
	rebuild := len(tl.exQueue) == 1 && !tl.hasOpenBuild() && len(tl.mu.retained) == 0
	if !rebuild {
		seq = append(seq, e.singlesOf(tl, rest, bw, false)...)
	}
	e.replaceHead(tl, seq)
	if rebuild {
		e.rebuild(tl, user, rest)
	}
	return true
}

// splitMu turns an unchained MU-MIMO exchange into one single-user exchange per user.
func (e *Engine) splitMu(tl *txList, x *frmEx) {
	e.arena.Get(x.head).MuUsers = nil
	tl.stats.MuPpdus--
	tl.stats.MuFallbacks++
	tl.log.Debugf("buffer stall splits MU-MIMO PPDU of %d users", len(x.users))

	var seq []*frmEx
	for _, u := range x.users {
		agg := u.agg
		agg.muSecondary = false
		for _, m := range agg.members {
			m.MuMimo = false
		}
		if agg.count == 1 {
			_, rest := e.cutAggregate(tl, u, 1, 0, agg.rate.Bw)
			seq = append(seq, e.singlesOf(tl, rest, agg.rate.Bw, false)...)
			continue
		}
		seq = append(seq, u)
	}
	e.replaceHead(tl, seq)
}

// replaceHead puts seq in place of the unchained head exchange.
func (e *Engine) replaceHead(tl *txList, seq []*frmEx) {
	q := make([]*frmEx, 0, len(tl.exQueue)+len(seq)-1)
	q = append(q, seq...)
	q = append(q, tl.exQueue[1:]...)
	tl.exQueue = q
	tl.ppduInFlight += len(seq) - 1
	tl.stats.trackQueued(tl.ppduInFlight)
}

// rebuild runs the trailing descriptors of a user list through the builders again.
func (e *Engine) rebuild(tl *txList, user int, descs []*TxDesc) {
	ul := &tl.users[user]
	n := len(ul.descs) - len(descs)
	logger.AssertTrue(n >= 0, "rebuild of %d descriptors beyond user list", len(descs))
	ul.descs = ul.descs[:n]
	for _, d := range descs {
		e.arena.Free(d.slot)
		d.slot = NilHandle
		d.agg = nil
		d.Aggregated = false
		e.submitLocked(tl, d)
	}
}

// wakeStalled retries the queues other than ac that stalled on payload buffers.
func (e *Engine) wakeStalled(ac AccessCategory) {
	for _, tl := range e.queues {
		if tl.ac != ac && tl.stalled {
			e.progress(tl)
		}
	}
}
