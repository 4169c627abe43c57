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
	"container/heap"

	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/types"
)

type timerKind uint8

const (
	timerActivity timerKind = iota
	timerAggHold
)

type timerKey struct {
	ac   AccessCategory
	kind timerKind
}

type timerEvent struct {
	key       timerKey
	Timestamp uint64 // expiry time, Ever when disarmed

	index int
}

type timerQueue []*timerEvent

func (tq timerQueue) Len() int {
	return len(tq)
}

func (tq timerQueue) Less(i, j int) bool {
	return tq[i].Timestamp < tq[j].Timestamp
}

func (tq timerQueue) Swap(i, j int) {
	a, b := tq[i], tq[j]
	if a.index != i && b.index != j {
		logger.Panicf("wrong index")
	}

	tq[i], tq[j] = b, a
	tq[i].index, tq[j].index = i, j
}

func (tq *timerQueue) Push(x interface{}) {
	e := x.(*timerEvent)
	*tq = append(*tq, e)
	e.index = len(*tq) - 1
}

func (tq *timerQueue) Pop() (elem interface{}) {
	n := len(*tq)
	elem = (*tq)[n-1]
	*tq = (*tq)[:n-1]
	return
}

// timerMgr keeps the per-queue activity and aggregation-hold timers ordered by expiry.
type timerMgr struct {
	q      timerQueue
	events map[timerKey]*timerEvent
}

func newTimerMgr() *timerMgr {
	tm := &timerMgr{
		q:      timerQueue{},
		events: map[timerKey]*timerEvent{},
	}
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		for _, kind := range []timerKind{timerActivity, timerAggHold} {
			e := &timerEvent{key: timerKey{ac, kind}, Timestamp: Ever}
			heap.Push(&tm.q, e)
			tm.events[e.key] = e
		}
	}
	return tm
}

func (tm *timerMgr) arm(ac AccessCategory, kind timerKind, timestamp uint64) {
	e := tm.events[timerKey{ac, kind}]
	logger.AssertNotNil(e)

	if e.Timestamp != timestamp {
		e.Timestamp = timestamp
		heap.Fix(&tm.q, e.index)
	}
}

func (tm *timerMgr) disarm(ac AccessCategory, kind timerKind) {
	tm.arm(ac, kind, Ever)
}

func (tm *timerMgr) armed(ac AccessCategory, kind timerKind) bool {
	return tm.events[timerKey{ac, kind}].Timestamp != Ever
}

func (tm *timerMgr) nextTimestamp() uint64 {
	return tm.q[0].Timestamp
}

// expire disarms and returns the next timer expired at now, or nil.
func (tm *timerMgr) expire(now uint64) *timerKey {
	e := tm.q[0]
	if e.Timestamp == Ever || e.Timestamp > now {
		return nil
	}
	key := e.key
	tm.arm(key.ac, key.kind, Ever)
	return &key
}
