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
	"net"

	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

// AllocResult is the outcome of a payload buffer request.
type AllocResult int

const (
	// AllocReady means the payload is in hardware-visible memory already.
	AllocReady AllocResult = iota
	// AllocPending means a buffer was reserved and BufferAllocator will report completion of the
	// download through Engine.OnPayloadReady.
	AllocPending
	// AllocNoBuffer means no buffer is free right now. The engine asks again after it released one.
	AllocNoBuffer
)

// BufferAllocator supplies payload buffers. Methods are called with the engine lock held and must
// not call back into the engine; OnPayloadReady must be invoked later from another context.
type BufferAllocator interface {
	Alloc(ac AccessCategory, desc *TxDesc) AllocResult
	// Free releases the buffer of desc, also when its download is still pending.
	Free(ac AccessCategory, desc *TxDesc)
}

// MacHw is the MAC hardware engine walking the frame exchange chain of each queue.
type MacHw interface {
	// NewHead points the idle (or halted) queue at a new first frame exchange. NilHandle stops the
	// queue and drops the chain it was walking.
	NewHead(ac AccessCategory, head Handle)
	// NewTail signals that the NextFrmEx of the last chained exchange was set.
	NewTail(ac AccessCategory)
}

// AggLimits are the receiver's aggregation capabilities for a station and TID.
type AggLimits struct {
	MaxLen     [phy.NumFormats]int // max A-MPDU length per PHY format, 0 for not supported
	MinSpacing int                 // minimum MPDU start spacing code 0..7
	Window     int                 // Block-Ack window size
}

// StationInfo is the station data the engine needs for framing and MU-MIMO grouping.
type StationInfo struct {
	Addr         net.HardwareAddr
	MuGroup      int // 1..62 for a valid MU group
	UserPos      int
	BfCalibrated bool
}

// StationTable provides station and Block-Ack agreement data. Called with the engine lock held.
type StationTable interface {
	// AggLimits returns false if there is no active Block-Ack agreement for (sta, tid).
	AggLimits(sta StaId, tid Tid) (AggLimits, bool)
	StationInfo(sta StaId) (StationInfo, bool)
}

// BlockAck is a received compressed Block-Ack.
type BlockAck struct {
	Sta    StaId
	Tid    Tid
	Ssn    uint16
	Bitmap uint64
}

// Acked returns true if the bitmap reports sequence number sn as received.
func (ba BlockAck) Acked(sn uint16) bool {
	off := (sn - ba.Ssn) & seqMask
	return off < 64 && ba.Bitmap&(1<<off) != 0
}

// BlockAckSource is the RX path, polled for a Block-Ack after a BAR exchange completed.
// Called with the engine lock held.
type BlockAckSource interface {
	PollBlockAck(sta StaId, tid Tid) (BlockAck, bool)
}

// CallbackHandler receives confirmations and fatal queue errors, never with the engine lock held.
type CallbackHandler interface {
	TxConfirm(ac AccessCategory, desc *TxDesc)
	OnQueueHang(ac AccessCategory, err error)
}

// Clock provides the current time in us.
type Clock interface {
	Now() uint64
}

// Collaborators bundles everything an Engine talks to. BlockAcks is optional.
type Collaborators struct {
	Buffers   BufferAllocator
	Mac       MacHw
	Stations  StationTable
	BlockAcks BlockAckSource
	Handler   CallbackHandler
	Clock     Clock
}
