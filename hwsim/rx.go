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


package hwsim

import (
	"sync"

	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// BlockAckSink receives Block-Acks pushed by the RX path.
type BlockAckSink interface {
	OnBlockAck(ba txl.BlockAck)
}

type RxStats struct {
	Received  uint64 `yaml:"received" json:"received"`
	Pushed    uint64 `yaml:"pushed" json:"pushed"`
	Polls     uint64 `yaml:"polls" json:"polls"`
	Delivered uint64 `yaml:"delivered" json:"delivered"`
	Replaced  uint64 `yaml:"replaced" json:"replaced"`
}

type rxKey struct {
	sta StaId
	tid Tid
}

type rxEntry struct {
	ba    txl.BlockAck
	polls int
}

// Rx is the simulated RX path. It implements txl.BlockAckSource. A received Block-Ack is only
// visible to the lag+1-th poll, which models the Block-Ack trailing the BAR done bit by a few
// RX interrupts. With a sink set and no lag, Block-Acks are pushed instead.
type Rx struct {
	mutex   sync.Mutex
	lag     int
	sink    BlockAckSink
	pending map[rxKey]*rxEntry
	stats   RxStats
}

var _ txl.BlockAckSource = (*Rx)(nil)

func NewRx(lag int) *Rx {
	return &Rx{
		lag:     lag,
		pending: map[rxKey]*rxEntry{},
	}
}

// SetSink sets the receiver of pushed Block-Acks.
func (rx *Rx) SetSink(sink BlockAckSink) {
	rx.mutex.Lock()
	defer rx.mutex.Unlock()
	rx.sink = sink
}

func (rx *Rx) SetLag(lag int) {
	rx.mutex.Lock()
	defer rx.mutex.Unlock()
	rx.lag = lag
}

// Deliver is called by the MAC for every Block-Ack received.
func (rx *Rx) Deliver(ba txl.BlockAck) {
	rx.mutex.Lock()
	rx.stats.Received++
	if rx.sink != nil && rx.lag == 0 {
		sink := rx.sink
		rx.stats.Pushed++
		rx.mutex.Unlock()
		sink.OnBlockAck(ba)
		return
	}
	defer rx.mutex.Unlock()

	key := rxKey{ba.Sta, ba.Tid}
	if _, ok := rx.pending[key]; ok {
		rx.stats.Replaced++
	}
	rx.pending[key] = &rxEntry{ba: ba}
}

func (rx *Rx) PollBlockAck(sta StaId, tid Tid) (txl.BlockAck, bool) {
	rx.mutex.Lock()
	defer rx.mutex.Unlock()

	rx.stats.Polls++
	key := rxKey{sta, tid}
	e := rx.pending[key]
	if e == nil {
		return txl.BlockAck{}, false
	}
	e.polls++
	if e.polls <= rx.lag {
		return txl.BlockAck{}, false
	}
	delete(rx.pending, key)
	rx.stats.Delivered++
	return e.ba, true
}

// Pending returns the number of Block-Acks not yet polled.
func (rx *Rx) Pending() int {
	rx.mutex.Lock()
	defer rx.mutex.Unlock()
	return len(rx.pending)
}

func (rx *Rx) Stats() RxStats {
	rx.mutex.Lock()
	defer rx.mutex.Unlock()
	return rx.stats
}
