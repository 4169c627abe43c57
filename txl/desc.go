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

	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

const (
	seqMask   = 0x0fff
	seqModulo = 0x1000
)

type dlState uint8

const (
	dlNone dlState = iota
	dlPending
	dlReady
)

// TxDesc is one MPDU queued for transmission. It is created by the caller and owned by the engine
// from Submit until it is handed back through CallbackHandler.TxConfirm.
type TxDesc struct {
	Sta        StaId
	Tid        Tid
	Aggregate  bool // eligible for A-MPDU aggregation
	Rate       phy.RateInfo
	Protection Protection
	Length     int   // MPDU length in bytes, FCS included
	Fragments  []int // A-MSDU fragment lengths, replacing Length when the payload is split over buffers
	Sn         uint16
	Cookie     interface{}

	Status     TxStatus
	ConfirmUs  uint64 // time of confirmation
	SubmitUs   uint64
	Aggregated bool // was transmitted inside an A-MPDU
	MuMimo     bool // was transmitted inside a MU-MIMO PPDU

	ac       AccessCategory
	agg      *aggDesc
	slot     Handle
	dl       dlState
	user     int
	retained bool
}

func (d *TxDesc) String() string {
	return fmt.Sprintf("desc(sta=%d,tid=%d,sn=%d,len=%d)", d.Sta, d.Tid, d.Sn, d.Length)
}

// PayloadLength returns the total payload length, summing A-MSDU fragments if present.
func (d *TxDesc) PayloadLength() int {
	if len(d.Fragments) == 0 {
		return d.Length
	}
	n := 0
	for _, f := range d.Fragments {
		n += f
	}
	return n
}

// Slot returns the hardware descriptor handle of the MPDU, or NilHandle if not yet built.
func (d *TxDesc) Slot() Handle {
	return d.slot
}

func (d *TxDesc) reset(ac AccessCategory, now uint64) {
	d.ac = ac
	d.agg = nil
	d.slot = NilHandle
	d.dl = dlNone
	d.user = 0
	d.retained = false
	d.Status = TxStatusPending
	d.SubmitUs = now
	d.ConfirmUs = 0
	d.Aggregated = false
	d.MuMimo = false
}

// subframeLen is the A-MPDU subframe length of an MPDU: delimiter plus MPDU padded to 4 bytes.
func subframeLen(mpduLen int) int {
	return 4 + (mpduLen+3)&^3
}

// seqOffset returns the distance of sn from base modulo 4096.
func seqOffset(sn, base uint16) uint16 {
	return (sn - base) & seqMask
}
