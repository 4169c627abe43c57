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

package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/wlansim/txagg/types"
)

func TestAlarmMgr(t *testing.T) {
	am := newAlarmMgr()
	assert.Nil(t, am.Due(Ever-1))
	assert.Equal(t, Ever, am.NextTimestamp())

	flows := map[int]*Flow{}
	for _, id := range []int{3, 1, 2} {
		flows[id] = &Flow{Id: id}
	}
	am.AddFlow(flows[3], 100)
	am.AddFlow(flows[1], 200)
	am.AddFlow(flows[2], 100)
	assert.Equal(t, uint64(100), am.NextTimestamp())
	assert.Nil(t, am.Due(99))
	assert.Equal(t, 2, am.Due(100).Id) // same timestamp fires in id order

	am.SetTimestamp(2, 300)
	assert.Equal(t, 3, am.Due(100).Id)
	am.SetTimestamp(3, 1000)
	assert.Nil(t, am.Due(100))
	assert.Equal(t, 1, am.Due(250).Id)

	am.DeleteFlow(1)
	assert.False(t, am.Scheduled(1))
	assert.Equal(t, 2, am.Due(500).Id)
	am.DeleteFlow(2)
	am.DeleteFlow(3)
	assert.Nil(t, am.Due(Ever-1))
	assert.Panics(t, func() {
		am.SetTimestamp(4, 0)
	})
	assert.Panics(t, func() {
		am.AddFlow(flows[1], 0)
		am.AddFlow(flows[1], 0)
	})
}

func TestFlow(t *testing.T) {
	f := &Flow{Ac: AcVi, Sta: 1, Tid: 5, Length: 1000, Count: 5, Burst: 2, IntervalUs: 100, Aggregate: true}
	assert.NoError(t, f.validate())

	var ts []uint64
	now := uint64(0)
	for !f.done() {
		n := f.burstSize()
		f.Stats.Submitted += uint64(n)
		ts = append(ts, now)
		now = f.nextTimestamp(now)
	}
	assert.Equal(t, []uint64{0, 100, 200}, ts)
	assert.Equal(t, Ever, now)
	assert.Equal(t, uint64(5), f.Stats.Submitted)

	d := f.newDesc(7)
	assert.Equal(t, uint16(7), d.Sn)
	assert.Equal(t, f, d.Cookie)
	assert.True(t, d.Aggregate)

	d.Status = TxStatusAcked
	d.SubmitUs = 100
	d.ConfirmUs = 600
	f.onConfirm(d)
	d.Status = TxStatusRetryLimit
	d.ConfirmUs = 200
	f.onConfirm(d)
	assert.Equal(t, uint64(2), f.Stats.NumConfirmed())
	assert.Equal(t, 300.0, f.Stats.MeanLatencyUs())
	assert.Equal(t, uint64(500), f.Stats.MaxLatencyUs)

	bcn := &Flow{Ac: AcBcn, Sta: 1, Length: 300, IntervalUs: 102400, Aggregate: true}
	assert.NoError(t, bcn.validate())
	assert.False(t, bcn.Aggregate)
	assert.Equal(t, 1, bcn.Burst)

	single := &Flow{Ac: AcBe, Sta: 1, Fragments: []int{600, 600}, Count: 1}
	assert.NoError(t, single.validate())
	assert.Error(t, (&Flow{Ac: AcBe, Sta: 1, Fragments: []int{600, 0}, Count: 1}).validate())
	assert.Error(t, (&Flow{Ac: AcBe, Sta: 0, Length: 100, Count: 1}).validate())
}
