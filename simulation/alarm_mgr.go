// Copyright (c) 2020-2026, The OTNS Authors.
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
	"container/heap"

	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/types"
)

// flowAlarm is the heap entry of a flow, due at Timestamp for its next burst.
type flowAlarm struct {
	Flow      *Flow
	Timestamp uint64

	index int
}

// alarmQueue is a min-heap on (Timestamp, flow id).
type alarmQueue []*flowAlarm

func (aq alarmQueue) Len() int { return len(aq) }

func (aq alarmQueue) Less(i, j int) bool {
	a, b := aq[i], aq[j]
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Flow.Id < b.Flow.Id
}

func (aq alarmQueue) Swap(i, j int) {
	aq[i], aq[j] = aq[j], aq[i]
	aq[i].index = i
	aq[j].index = j
}

func (aq *alarmQueue) Push(x interface{}) {
	a := x.(*flowAlarm)
	a.index = len(*aq)
	*aq = append(*aq, a)
}

func (aq *alarmQueue) Pop() interface{} {
	old := *aq
	a := old[len(old)-1]
	old[len(old)-1] = nil
	a.index = -1
	*aq = old[:len(old)-1]
	return a
}

// alarmMgr orders the flows by the timestamp of their next burst. Flows with equal timestamps
// fire in id order, which keeps runs with the same seed identical.
type alarmMgr struct {
	q      alarmQueue
	alarms map[int]*flowAlarm
}

func newAlarmMgr() *alarmMgr {
	return &alarmMgr{
		alarms: map[int]*flowAlarm{},
	}
}

func (am *alarmMgr) AddFlow(f *Flow, timestamp uint64) {
	logger.AssertNil(am.alarms[f.Id], "flow %d already scheduled", f.Id)

	a := &flowAlarm{Flow: f, Timestamp: timestamp}
	heap.Push(&am.q, a)
	am.alarms[f.Id] = a
}

// SetTimestamp moves the next burst of the flow.
func (am *alarmMgr) SetTimestamp(flowId int, timestamp uint64) {
	a := am.alarms[flowId]
	logger.AssertNotNil(a, "flow %d not scheduled", flowId)

	if a.Timestamp != timestamp {
		a.Timestamp = timestamp
		heap.Fix(&am.q, a.index)
	}
}

// Due returns the first flow due at or before now, or nil. The flow stays scheduled at its old
// timestamp until SetTimestamp moves it.
func (am *alarmMgr) Due(now uint64) *Flow {
	if len(am.q) == 0 || am.q[0].Timestamp > now {
		return nil
	}
	return am.q[0].Flow
}

func (am *alarmMgr) NextTimestamp() uint64 {
	if len(am.q) == 0 {
		return Ever
	}
	return am.q[0].Timestamp
}

func (am *alarmMgr) Scheduled(flowId int) bool {
	return am.alarms[flowId] != nil
}

func (am *alarmMgr) DeleteFlow(flowId int) {
	a := am.alarms[flowId]
	logger.AssertNotNil(a, "flow %d not scheduled", flowId)
	heap.Remove(&am.q, a.index)
	delete(am.alarms, flowId)
}
