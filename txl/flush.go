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
	"github.com/pkg/errors"

	. "github.com/wlansim/txagg/types"
)

// Flush confirms every descriptor outstanding on ac with status, in submission order, and returns
// the queue to its initial state. The hardware queue is stopped first. Buffers, aggregate
// descriptors and hardware slots are all released.
func (e *Engine) Flush(ac AccessCategory, status TxStatus) error {
	if !ac.Valid() {
		return errors.Wrapf(ErrInvalidAccessCategory, "flush %d", int(ac))
	}
	if !status.Final() {
		return errors.Errorf("flush with non-final status %s", status)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	tl := e.queues[ac]
	if tl.nChained > 0 {
		e.mac.NewHead(ac, NilHandle)
	}

	var descs []*TxDesc
	for _, x := range tl.exQueue {
		descs = append(descs, x.descs()...)
		e.freeExchange(x)
	}
	for _, agg := range tl.openAggregates() {
		descs = append(descs, agg.members...)
		e.freeAggregate(agg)
	}
	descs = append(descs, tl.mu.retained...)

	for _, d := range descs {
		d.Status = status
		d.retained = false
		e.confirm(tl, d)
	}
	n := len(descs)

	for u := range tl.users {
		tl.users[u] = userList{}
	}
	tl.exQueue = nil
	tl.nChained = 0
	tl.dlFirst = 0
	tl.lastChained = NilHandle
	tl.stalled = false
	tl.ppduInFlight = 0
	tl.check = checkMpdu
	tl.checkUser = 0
	tl.mu.reset()
	tl.mu.retained = nil
	tl.hung = false
	e.timers.disarm(ac, timerActivity)
	e.timers.disarm(ac, timerAggHold)
	for _, d := range descs {
		delete(e.rxBa, baKey{d.Sta, d.Tid})
	}

	tl.stats.Flushes++
	tl.log.Infof("flushed %d descriptors with %s", n, status)
	e.wakeStalled(ac)
	return nil
}

// openAggregates returns the aggregates still being built, including closed MU-MIMO positions.
func (tl *txList) openAggregates() []*aggDesc {
	var res []*aggDesc
	for u := range tl.users {
		if tl.users[u].agg != nil {
			res = append(res, tl.users[u].agg)
		}
	}
	for _, agg := range tl.mu.closed {
		if agg != nil {
			res = append(res, agg)
		}
	}
	return res
}
