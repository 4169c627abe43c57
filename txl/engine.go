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

// Package txl implements the TX aggregation and frame-exchange scheduler. Descriptors submitted per
// access category are built into singleton MPDUs, A-MPDUs or MU-MIMO PPDUs, chained to the MAC
// hardware once their payloads are downloaded, and confirmed in submission order when the hardware
// reports completion.
package txl

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/types"
)

type baKey struct {
	sta StaId
	tid Tid
}

type Engine struct {
	cfg   Config
	mutex sync.Mutex

	arena  *HwArena
	pool   *aggPool
	queues [NumAccessCategories]*txList
	timers *timerMgr
	rxBa   map[baKey]BlockAck

	buffers   BufferAllocator
	mac       MacHw
	stations  StationTable
	blockAcks BlockAckSource
	handler   CallbackHandler
	clock     Clock

	stopped bool
}

// New creates an engine. The hardware descriptor arena is owned by the engine and shared with the
// MAC hardware through Arena.
func New(cfg *Config, c Collaborators) *Engine {
	logger.AssertNotNil(cfg)
	cfg.validate()
	logger.AssertTrue(c.Buffers != nil && c.Mac != nil && c.Stations != nil && c.Handler != nil && c.Clock != nil,
		"missing engine collaborator")

	e := &Engine{
		cfg:       *cfg,
		arena:     NewHwArena(),
		pool:      newAggPool(cfg.AggPoolSize),
		timers:    newTimerMgr(),
		rxBa:      map[baKey]BlockAck{},
		buffers:   c.Buffers,
		mac:       c.Mac,
		stations:  c.Stations,
		blockAcks: c.BlockAcks,
		handler:   c.Handler,
		clock:     c.Clock,
	}
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		e.queues[ac] = newTxList(ac, &e.cfg)
	}
	return e
}

// Arena returns the hardware descriptor arena walked by the MAC hardware.
func (e *Engine) Arena() *HwArena {
	return e.arena
}

// Submit queues desc on access category ac. It returns paused=true if the descriptor was held
// back because its MU-MIMO user position is closed for the PPDU being built; the descriptor is
// still owned by the engine and will be transmitted, but the caller should throttle.
func (e *Engine) Submit(ac AccessCategory, desc *TxDesc) (paused bool, err error) {
	if !ac.Valid() {
		return false, errors.Wrapf(ErrInvalidAccessCategory, "submit to %d", int(ac))
	}
	logger.AssertNotNil(desc)

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.stopped {
		return false, ErrEngineStopped
	}

	tl := e.queues[ac]
	desc.reset(ac, e.clock.Now())
	tl.stats.Submitted++
	tl.log.Tracef("submit %s", desc)

	e.submitLocked(tl, desc)
	e.progress(tl)

	if desc.retained {
		tl.stats.Paused++
	}
	return desc.retained, nil
}

// submitLocked hands desc to the MU-MIMO or the single-user builder.
func (e *Engine) submitLocked(tl *txList, desc *TxDesc) {
	if e.cfg.MuMimo {
		if info, ok := e.muEligible(tl.ac, desc); ok {
			e.submitMu(tl, desc, info)
			return
		}
		// a non MU-MIMO descriptor ends the PPDU being built
		e.endMuBuild(tl)
	}
	e.buildSu(tl, desc)
}

// progress requests payload downloads, closes builds that would starve the pipe and chains what
// is ready.
func (e *Engine) progress(tl *txList) {
	e.download(tl)
	e.checkStarving(tl)
	// replayed descriptors may have joined new builds
	e.download(tl)
	e.tryChain(tl)
	e.relieveStall(tl)
}

// OnPayloadReady is invoked by the buffer allocator once the payload of desc is in
// hardware-visible memory.
func (e *Engine) OnPayloadReady(ac AccessCategory, desc *TxDesc) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if desc.Status.Final() || desc.dl != dlPending {
		// flushed meanwhile
		return
	}
	desc.dl = dlReady
	e.progress(e.queues[ac])
}

// OnBlockAck pushes a Block-Ack received by the RX path. It is consumed by the next BAR
// completion of the same (sta, tid).
func (e *Engine) OnBlockAck(ba BlockAck) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.rxBa[baKey{ba.Sta, ba.Tid}] = ba
}

// NextDeadline returns the time of the next engine timer, or Ever.
func (e *Engine) NextDeadline() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.timers.nextTimestamp()
}

// OnTimer handles all timers expired at now. A queue hang is reported to the CallbackHandler.
func (e *Engine) OnTimer(now uint64) {
	e.mutex.Lock()
	var hangs []*txList
	for key := e.timers.expire(now); key != nil; key = e.timers.expire(now) {
		tl := e.queues[key.ac]
		switch key.kind {
		case timerActivity:
			if !tl.idle() {
				tl.stats.Hangs++
				tl.hung = true
				tl.hangs = append(tl.hangs, errors.Wrapf(ErrQueueHang, "%s: no completion since %d us, %d exchanges in flight",
					tl.ac, now-e.cfg.ActivityTimeoutUs, tl.nChained))
				tl.log.Errorf("activity timeout, %d exchanges in flight", tl.nChained)
				hangs = append(hangs, tl)
			}
		case timerAggHold:
			if tl.hasOpenBuild() {
				tl.stats.HoldTimeouts++
				tl.log.Debugf("aggregation hold timeout")
				e.closeOpenBuilds(tl)
				e.progress(tl)
			}
		}
	}
	e.mutex.Unlock()

	for _, tl := range hangs {
		e.deliverHangs(tl)
	}
}

func (e *Engine) deliverHangs(tl *txList) {
	e.mutex.Lock()
	errs := tl.hangs
	tl.hangs = nil
	e.mutex.Unlock()

	for _, err := range errs {
		e.handler.OnQueueHang(tl.ac, err)
	}
}

// ProcessConfirmations delivers all confirmed descriptors to the CallbackHandler, per access
// category in submission order. It returns the number of confirmations delivered.
func (e *Engine) ProcessConfirmations() int {
	n := 0
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		tl := e.queues[ac]
		e.mutex.Lock()
		q := tl.confirmQ
		tl.confirmQ = nil
		e.mutex.Unlock()

		for _, desc := range q {
			e.handler.TxConfirm(ac, desc)
		}
		n += len(q)
	}
	return n
}

// Hung returns true if the activity timer of ac expired since the last flush.
func (e *Engine) Hung(ac AccessCategory) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.queues[ac].hung
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	s := Stats{
		AggPoolFree:  e.pool.available(),
		HwSlotsInUse: e.arena.InUse(),
	}
	for ac, tl := range e.queues {
		s.Queues[ac] = tl.stats
		s.Outstanding[ac] = tl.outstanding()
		s.PpdusInFlight[ac] = tl.ppduInFlight
	}
	return s
}

// DisplayPendingLogEntries flushes the queue loggers, stamping entries with simulation time ts.
func (e *Engine) DisplayPendingLogEntries(ts uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for _, tl := range e.queues {
		tl.log.DisplayPendingLogEntries(ts)
	}
}

// SetQueueLogLevels sets the display and file log levels of every queue logger.
func (e *Engine) SetQueueLogLevels(display, file logger.Level) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for _, tl := range e.queues {
		tl.log.SetDisplayLevel(display)
		tl.log.SetFileLevel(file)
	}
}

// Shutdown flushes all queues with TxStatusAborted and rejects further submissions.
func (e *Engine) Shutdown() {
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		_ = e.Flush(ac, TxStatusAborted)
	}
	e.mutex.Lock()
	e.stopped = true
	for _, tl := range e.queues {
		tl.log.Close()
	}
	e.mutex.Unlock()
}

func (e *Engine) now() uint64 {
	return e.clock.Now()
}
