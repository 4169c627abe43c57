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
	"fmt"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

type aggState uint8

const (
	aggFree aggState = iota
	aggBuilding
	aggFormatted
	aggAwaitingBlockAck
	aggDone
)

func (s aggState) String() string {
	switch s {
	case aggFree:
		return "free"
	case aggBuilding:
		return "building"
	case aggFormatted:
		return "formatted"
	case aggAwaitingBlockAck:
		return "awaiting-ba"
	case aggDone:
		return "done"
	default:
		return fmt.Sprintf("aggState(%d)", int(s))
	}
}

// bwCheckpoint records how much of an aggregate fits into the length budget of a lower bandwidth.
type bwCheckpoint struct {
	set    bool
	count  int
	length int
}

// aggDesc is the build and completion state of one A-MPDU.
type aggDesc struct {
	idx   int
	state aggState
	user  int

	// a secondary user of a MU-MIMO PPDU, confirmed together with its primary
	muSecondary bool
	rtsRetried  bool

	sta        StaId
	tid        Tid
	rate       phy.RateInfo
	protection Protection

	maxCount    int
	minSpacing  int
	limits      [phy.NumBandwidths]int
	step        phy.Bandwidth
	checkpoints [phy.NumBandwidths]bwCheckpoint

	count      int
	length     int
	nextDelims int // blank delimiters required after the last subframe

	header   Handle
	bar      Handle
	lastMpdu Handle
	members  []*TxDesc
}

func (a *aggDesc) String() string {
	return fmt.Sprintf("agg#%d(sta=%d,tid=%d,n=%d,len=%d,%s)", a.idx, a.sta, a.tid, a.count, a.length, a.state)
}

// maxLen is the length limit of the full-bandwidth aggregate.
func (a *aggDesc) maxLen() int {
	return a.limits[a.rate.Bw]
}

func (a *aggDesc) setState(next aggState) {
	ok := false
	switch next {
	case aggBuilding:
		ok = a.state == aggFree
	case aggFormatted:
		ok = a.state == aggBuilding || a.state == aggAwaitingBlockAck
	case aggAwaitingBlockAck:
		ok = a.state == aggFormatted
	case aggDone:
		ok = a.state == aggAwaitingBlockAck
	case aggFree:
		ok = true
	}
	if !ok {
		logger.Panicf("illegal aggregate state transition %s -> %s", a.state, next)
	}
	a.state = next
}

// aggPool is a fixed-capacity pool of aggregate descriptors with an index free-list.
type aggPool struct {
	descs []aggDesc
	free  []int
}

func newAggPool(capacity int) *aggPool {
	p := &aggPool{
		descs: make([]aggDesc, capacity),
		free:  make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		p.descs[i].idx = i
		p.free = append(p.free, i)
	}
	return p
}

// alloc returns a descriptor in state aggBuilding, or nil if the pool is exhausted.
func (p *aggPool) alloc() *aggDesc {
	n := len(p.free)
	if n == 0 {
		return nil
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	a := &p.descs[idx]
	*a = aggDesc{
		idx:      idx,
		state:    aggFree,
		header:   NilHandle,
		bar:      NilHandle,
		lastMpdu: NilHandle,
	}
	a.setState(aggBuilding)
	return a
}

func (p *aggPool) release(a *aggDesc) {
	logger.AssertTrue(&p.descs[a.idx] == a, "aggregate not from this pool")
	logger.AssertTrue(a.state != aggFree, "double release of %s", a)
	a.setState(aggFree)
	a.members = nil
	p.free = append(p.free, a.idx)
}

func (p *aggPool) available() int {
	return len(p.free)
}

func (p *aggPool) capacity() int {
	return len(p.descs)
}
