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

type checkState uint8

const (
	checkMpdu checkState = iota
	checkBar
)

type exKind uint8

const (
	exSingle exKind = iota
	exAmpdu
	exMu
)

func (k exKind) String() string {
	switch k {
	case exSingle:
		return "single"
	case exAmpdu:
		return "ampdu"
	default:
		return "mu"
	}
}

// frmEx is a closed frame exchange: one PPDU and its acknowledgement, handed to the hardware as a
// single element of the queue's chain.
type frmEx struct {
	kind    exKind
	head    Handle
	single  *TxDesc
	agg     *aggDesc
	users   []*frmEx // MU-MIMO: per-user exchanges, primary first
	chained bool
}

// firstMpdu returns the slot whose done bit starts completion checking.
func (x *frmEx) firstMpdu(arena *HwArena) Handle {
	switch x.kind {
	case exSingle:
		return x.head
	case exAmpdu:
		return arena.Get(x.head).FirstMpdu
	default:
		return x.users[0].firstMpdu(arena)
	}
}

// aggs returns the aggregates completed through BAR checking, in checking order.
func (x *frmEx) aggs() []*aggDesc {
	switch x.kind {
	case exAmpdu:
		return []*aggDesc{x.agg}
	case exMu:
		res := make([]*aggDesc, 0, len(x.users))
		for _, u := range x.users {
			if u.agg != nil {
				res = append(res, u.agg)
			}
		}
		return res
	default:
		return nil
	}
}

func (x *frmEx) descs() []*TxDesc {
	switch x.kind {
	case exSingle:
		return []*TxDesc{x.single}
	case exAmpdu:
		return x.agg.members
	default:
		var res []*TxDesc
		for _, u := range x.users {
			res = append(res, u.descs()...)
		}
		return res
	}
}

func (x *frmEx) downloaded() bool {
	for _, d := range x.descs() {
		if d.dl != dlReady {
			return false
		}
	}
	return true
}

// userList is the state of one user position of a queue. Without MU-MIMO only position 0 is used.
type userList struct {
	descs []*TxDesc // transmitting list, FIFO
	agg   *aggDesc  // open aggregate
}

func (ul *userList) popHead(d *TxDesc) {
	logger.AssertTrue(len(ul.descs) > 0 && ul.descs[0] == d, "confirmation out of order: %s", d)
	ul.descs[0] = nil
	ul.descs = ul.descs[1:]
}

// txList is the state of one access category queue.
type txList struct {
	ac    AccessCategory
	users [MaxMuUsers]userList

	// closed frame exchanges in order; exQueue[:nChained] have been handed to the hardware
	exQueue     []*frmEx
	nChained    int
	dlFirst     int // first exchange with payloads not yet requested
	lastChained Handle
	stalled     bool // the last download ran out of payload buffers

	ppduInFlight int
	check        checkState
	checkUser    int

	mu       muBuild
	confirmQ []*TxDesc
	hangs    []error
	hung     bool

	log   *logger.QueueLogger
	stats QueueStats
}

func newTxList(ac AccessCategory, cfg *Config) *txList {
	tl := &txList{
		ac:          ac,
		lastChained: NilHandle,
		log:         logger.NewQueueLogger(ac.String(), cfg.QueueLog),
	}
	tl.mu.reset()
	return tl
}

func (tl *txList) idle() bool {
	return tl.nChained == 0
}

// hasOpenBuild returns true if an aggregate or MU-MIMO PPDU is being built.
func (tl *txList) hasOpenBuild() bool {
	if tl.mu.active {
		return true
	}
	for u := range tl.users {
		if tl.users[u].agg != nil {
			return true
		}
	}
	return false
}

func (tl *txList) popExchange() *frmEx {
	x := tl.exQueue[0]
	tl.exQueue[0] = nil
	tl.exQueue = tl.exQueue[1:]
	tl.nChained--
	if tl.dlFirst > 0 {
		tl.dlFirst--
	}
	return x
}

func (tl *txList) outstanding() int {
	n := len(tl.mu.retained)
	for u := range tl.users {
		n += len(tl.users[u].descs)
	}
	return n
}
