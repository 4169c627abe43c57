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
	"sync"
	"sync/atomic"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

// Handle addresses a hardware descriptor slot in a HwArena.
type Handle int

const NilHandle Handle = -1

type SlotKind uint8

const (
	SlotFree SlotKind = iota
	SlotMpdu
	SlotAmpdu // A-MPDU header
	SlotBar
)

func (k SlotKind) String() string {
	switch k {
	case SlotFree:
		return "free"
	case SlotMpdu:
		return "mpdu"
	case SlotAmpdu:
		return "ampdu"
	case SlotBar:
		return "bar"
	default:
		return fmt.Sprintf("slot(%d)", int(k))
	}
}

// Hardware status word bits, written by the MAC hardware when it is done with a descriptor.
const (
	HwDone          uint32 = 1 << 0
	HwAcked         uint32 = 1 << 1
	HwRetryLimit    uint32 = 1 << 2
	HwRtsRetryLimit uint32 = 1 << 3
	HwBwDrop        uint32 = 1 << 4

	hwBwShift        = 8
	hwBwMask  uint32 = 0x3 << hwBwShift
)

// MakeHwStatus composes a status word from flags and the bandwidth actually used.
func MakeHwStatus(flags uint32, bw phy.Bandwidth) uint32 {
	return flags&^hwBwMask | uint32(bw)<<hwBwShift&hwBwMask
}

// HwStatusBandwidth extracts the bandwidth from a status word.
func HwStatusBandwidth(status uint32) phy.Bandwidth {
	return phy.Bandwidth((status & hwBwMask) >> hwBwShift)
}

// HwDesc is the logical content of a hardware descriptor. The MAC hardware follows NextFrmEx from
// one frame exchange to the next, FirstMpdu/NextMpdu through the subframes of an A-MPDU, Bar to the
// terminating Block-Ack-Request and MuUsers to the secondary users of a MU-MIMO PPDU.
//
// The hardware may run concurrently with the engine. The link to the next exchange and the status
// word are accessed atomically. All other fields of an exchange are written before it is published,
// either by SetNextFrmEx on the previous exchange or by MacHw.NewHead, and are left alone while the
// hardware may read them.
type HwDesc struct {
	Kind        SlotKind
	NextMpdu    Handle
	FirstMpdu   Handle
	Bar         Handle
	MuUsers     []Handle
	Rate        phy.RateInfo
	Protection  Protection
	Length      int
	BlankDelims int
	Sta         StaId
	Tid         Tid
	Sn          uint16
	Frame       []byte // encoded frame, for BAR slots

	nextFrmEx int32
	status    uint32
}

// NextFrmEx returns the first slot of the next frame exchange of the chain, or NilHandle.
func (d *HwDesc) NextFrmEx() Handle {
	return Handle(atomic.LoadInt32(&d.nextFrmEx))
}

// SetNextFrmEx publishes the next frame exchange of the chain.
func (d *HwDesc) SetNextFrmEx(h Handle) {
	atomic.StoreInt32(&d.nextFrmEx, int32(h))
}

// Status returns the hardware status word.
func (d *HwDesc) Status() uint32 {
	return atomic.LoadUint32(&d.status)
}

// SetStatus publishes a hardware status word.
func (d *HwDesc) SetStatus(status uint32) {
	atomic.StoreUint32(&d.status, status)
}

func (d *HwDesc) Done() bool {
	return d.Status()&HwDone != 0
}

func (d *HwDesc) clear(kind SlotKind) {
	d.Kind = kind
	d.SetNextFrmEx(NilHandle)
	d.NextMpdu = NilHandle
	d.FirstMpdu = NilHandle
	d.Bar = NilHandle
	d.MuUsers = nil
	d.Rate = phy.RateInfo{}
	d.Protection = ProtNone
	d.Length = 0
	d.BlankDelims = 0
	d.Sta = InvalidStaId
	d.Tid = 0
	d.Sn = 0
	d.Frame = nil
	d.SetStatus(0)
}

// HwArena is a growable arena of hardware descriptor slots addressed by Handle.
// Slots are individually allocated, so a *HwDesc stays valid while the arena grows.
type HwArena struct {
	mutex sync.RWMutex
	slots []*HwDesc
	free  []Handle
	inUse int
}

func NewHwArena() *HwArena {
	return &HwArena{}
}

// Alloc returns a cleared slot of the given kind.
func (a *HwArena) Alloc(kind SlotKind) Handle {
	logger.AssertTrue(kind != SlotFree)
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var h Handle
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		h = Handle(len(a.slots))
		a.slots = append(a.slots, &HwDesc{})
	}
	a.slots[h].clear(kind)
	a.inUse++
	return h
}

// Get returns the slot of h. It panics on NilHandle or a freed slot.
func (a *HwArena) Get(h Handle) *HwDesc {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	logger.AssertTrue(h >= 0 && int(h) < len(a.slots), "invalid handle %d", h)
	d := a.slots[h]
	logger.AssertTrue(d.Kind != SlotFree, "access to free slot %d", h)
	return d
}

func (a *HwArena) Free(h Handle) {
	if h == NilHandle {
		return
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	d := a.slots[h]
	logger.AssertTrue(d.Kind != SlotFree, "double free of slot %d", h)
	d.clear(SlotFree)
	a.free = append(a.free, h)
	a.inUse--
}

// InUse returns the number of allocated slots.
func (a *HwArena) InUse() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.inUse
}
