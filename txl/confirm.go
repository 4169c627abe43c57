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

// OnTxInterrupt reconciles the hardware completion status of queue ac. Completed exchanges are
// confirmed head first; their descriptors are delivered by ProcessConfirmations.
func (e *Engine) OnTxInterrupt(ac AccessCategory) {
	if !ac.Valid() {
		return
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()

	tl := e.queues[ac]
	e.reconcile(tl)
	e.progress(tl)
	e.wakeStalled(ac)
}

// reconcile walks the chained exchanges from the head. In checkMpdu state the first MPDU of the
// head exchange is inspected; a done singleton is confirmed and the walk continues with the next
// exchange. A done A-MPDU moves the queue to checkBar state, where the BAR of every user decides.
func (e *Engine) reconcile(tl *txList) {
	for tl.nChained > 0 {
		x := tl.exQueue[0]
		if tl.check == checkMpdu {
			if !e.arena.Get(x.firstMpdu(e.arena)).Done() {
				break
			}
			if x.kind == exSingle {
				e.completeSingle(tl, x)
				continue
			}
			tl.check = checkBar
			tl.checkUser = 0
			for _, agg := range x.aggs() {
				agg.setState(aggAwaitingBlockAck)
			}
		}
		if !e.checkBars(tl, x) {
			break
		}
	}
	if tl.idle() {
		tl.lastChained = NilHandle
		e.timers.disarm(tl.ac, timerActivity)
	}
}

func (e *Engine) completeSingle(tl *txList, x *frmEx) {
	st := e.arena.Get(x.head).Status()
	if st&HwAcked != 0 {
		x.single.Status = TxStatusAcked
	} else {
		x.single.Status = TxStatusRetryLimit
	}
	e.retireExchange(tl)
}

// checkBars resolves the BAR of each aggregate of x in turn. It returns true once x was retired.
func (e *Engine) checkBars(tl *txList, x *frmEx) bool {
	aggs := x.aggs()
	halted := false
	for tl.checkUser < len(aggs) {
		agg := aggs[tl.checkUser]
		st := e.arena.Get(agg.bar).Status()
		if st&HwDone == 0 {
			return false
		}
		e.timers.arm(tl.ac, timerActivity, e.now()+e.cfg.ActivityTimeoutUs)

		if st&HwRtsRetryLimit != 0 {
			if tl.checkUser == 0 && agg.protection == ProtRtsCts && !agg.rtsRetried {
				e.resubmitCtsToSelf(tl, x)
				return false
			}
			// the hardware stops the queue after a protection failure
			halted = true
		}
		e.resolveBlockAck(tl, agg, st)
		agg.setState(aggDone)
		tl.checkUser++
	}

	tl.check = checkMpdu
	tl.checkUser = 0
	next := e.arena.Get(x.head).NextFrmEx()
	e.retireExchange(tl)
	if halted && next != NilHandle && tl.nChained > 0 {
		tl.stats.NewHeads++
		tl.log.Debugf("restart queue after protection failure")
		e.mac.NewHead(tl.ac, next)
	}
	return true
}

// resubmitCtsToSelf rewrites the protection of an A-MPDU whose RTS/CTS exchange failed and hands
// it to the hardware again. This is done once per aggregate.
func (e *Engine) resubmitCtsToSelf(tl *txList, x *frmEx) {
	for _, agg := range x.aggs() {
		agg.rtsRetried = true
		agg.protection = ProtCtsToSelf
		agg.setState(aggFormatted)
		hdr := e.arena.Get(agg.header)
		hdr.Protection = ProtCtsToSelf
		hdr.SetStatus(0)
		for _, m := range agg.members {
			s := e.arena.Get(m.slot)
			s.Protection = ProtCtsToSelf
			s.SetStatus(0)
		}
		bar := e.arena.Get(agg.bar)
		bar.Protection = ProtCtsToSelf
		bar.SetStatus(0)
	}
	tl.check = checkMpdu
	tl.checkUser = 0
	tl.stats.RtsResubmits++
	tl.stats.NewHeads++
	tl.log.Debugf("RTS retry limit, resubmit exchange %d with CTS-to-self", x.head)
	e.mac.NewHead(tl.ac, x.head)
}

// resolveBlockAck sets the status of every member of agg from the Block-Ack bitmap.
func (e *Engine) resolveBlockAck(tl *txList, agg *aggDesc, barStatus uint32) {
	var ba BlockAck
	haveBa := false
	if barStatus&HwAcked != 0 {
		ba, haveBa = e.fetchBlockAck(tl, agg)
	}
	for _, m := range agg.members {
		switch {
		case haveBa && ba.Acked(m.Sn):
			m.Status = TxStatusAcked
		case barStatus&HwRetryLimit != 0:
			m.Status = TxStatusRetryLimit
		default:
			m.Status = TxStatusBlockAckMissing
		}
	}
}

// fetchBlockAck returns the Block-Ack answering the BAR of agg. The Block-Ack may trail the BAR
// done bit by a few RX interrupts, so the RX path is polled up to BaPollRetries times. The bound
// is timing dependent: the hardware gives no event for the Block-Ack itself.
func (e *Engine) fetchBlockAck(tl *txList, agg *aggDesc) (BlockAck, bool) {
	key := baKey{agg.sta, agg.tid}
	if ba, ok := e.rxBa[key]; ok {
		delete(e.rxBa, key)
		return ba, true
	}
	if e.blockAcks != nil {
		for i := 0; i < e.cfg.BaPollRetries; i++ {
			tl.stats.BaPolls++
			if ba, ok := e.blockAcks.PollBlockAck(agg.sta, agg.tid); ok {
				return ba, true
			}
		}
	}
	tl.stats.BaPollMisses++
	tl.log.Debugf("no Block-Ack for %s", agg)
	return BlockAck{}, false
}

// retireExchange pops the head exchange, confirms its descriptors and releases its resources.
func (e *Engine) retireExchange(tl *txList) {
	x := tl.popExchange()
	for _, d := range x.descs() {
		tl.users[d.user].popHead(d)
		e.confirm(tl, d)
	}
	e.freeExchange(x)
	tl.ppduInFlight--

	if tl.nChained > 0 {
		e.timers.arm(tl.ac, timerActivity, e.now()+e.cfg.ActivityTimeoutUs)
	}
	if tl.ppduInFlight == 0 && tl.hasOpenBuild() {
		// nothing else keeps the hardware busy
		tl.stats.ForcedCloses++
		e.closeOpenBuilds(tl)
	}
}

// confirm queues desc for background confirmation and releases its payload buffer.
func (e *Engine) confirm(tl *txList, d *TxDesc) {
	logger.AssertTrue(d.Status.Final(), "confirm without final status: %s", d)
	d.ConfirmUs = e.now()
	if d.dl != dlNone {
		e.buffers.Free(tl.ac, d)
	}
	d.agg = nil
	tl.stats.countConfirm(d.Status)
	tl.log.Tracef("confirm %s: %s", d, d.Status)
	tl.confirmQ = append(tl.confirmQ, d)
}

func (e *Engine) freeExchange(x *frmEx) {
	switch x.kind {
	case exSingle:
		e.arena.Free(x.head)
		x.single.slot = NilHandle
	case exAmpdu:
		e.freeAggregate(x.agg)
	default:
		for _, u := range x.users {
			e.freeExchange(u)
		}
	}
}

// freeAggregate releases the slots of agg and returns it to the pool.
func (e *Engine) freeAggregate(agg *aggDesc) {
	for _, m := range agg.members {
		e.arena.Free(m.slot)
		m.slot = NilHandle
	}
	e.arena.Free(agg.header)
	e.arena.Free(agg.bar)
	e.pool.release(agg)
}
