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
	"fmt"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/prng"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// max MPDU length of a VHT PPDU
const maxMpduLength = 11454

// Flow is a periodic traffic source submitting Burst MPDUs to one (station, TID) every
// IntervalUs, plus a random jitter.
type Flow struct {
	Id         int
	Ac         AccessCategory
	Sta        StaId
	Tid        Tid
	Length     int
	Fragments  []int
	Count      int // 0 for unlimited
	IntervalUs uint64
	JitterUs   uint64
	Burst      int
	Aggregate  bool
	Rate       phy.RateInfo
	Protection Protection
	StartUs    uint64

	Stats FlowStats
}

type FlowStats struct {
	Submitted    uint64
	Paused       uint64
	Rejected     uint64
	Confirmed    [NumTxStatus]uint64
	LatencySumUs uint64
	MaxLatencyUs uint64
}

func (f *Flow) String() string {
	return fmt.Sprintf("flow%d(%s sta=%d tid=%d)", f.Id, f.Ac, f.Sta, f.Tid)
}

func (f *Flow) validate() error {
	if !f.Ac.Valid() {
		return errors.Errorf("invalid access category %d", int(f.Ac))
	}
	if f.Sta <= 0 {
		return errors.Errorf("invalid station %d", f.Sta)
	}
	length := f.Length
	if len(f.Fragments) > 0 {
		length = 0
		for _, fl := range f.Fragments {
			if fl <= 0 {
				return errors.Errorf("invalid fragment length %d", fl)
			}
			length += fl
		}
	}
	if length <= 0 || length > maxMpduLength {
		return errors.Errorf("MPDU length must be 1..%d", maxMpduLength)
	}
	if f.Count < 0 || f.Burst < 0 {
		return errors.Errorf("count and burst must not be negative")
	}
	if f.Burst == 0 {
		f.Burst = 1
	}
	if f.IntervalUs == 0 && f.Count != f.Burst {
		return errors.Errorf("interval must be positive for a periodic flow")
	}
	if f.JitterUs > 0 && f.JitterUs >= f.IntervalUs {
		return errors.Errorf("jitter must be smaller than the interval")
	}
	if f.Ac == AcBcn && f.Aggregate {
		f.Aggregate = false
	}
	return nil
}

func (f *Flow) done() bool {
	return f.Count > 0 && f.Stats.Submitted+f.Stats.Rejected >= uint64(f.Count)
}

// nextTimestamp returns the time of the next burst after the one at now, or Ever once done.
func (f *Flow) nextTimestamp(now uint64) uint64 {
	if f.done() {
		return Ever
	}
	return now + f.IntervalUs + prng.NewTrafficJitter(f.JitterUs)
}

func (f *Flow) burstSize() int {
	n := f.Burst
	if f.Count > 0 {
		remain := f.Count - int(f.Stats.Submitted+f.Stats.Rejected)
		if remain < n {
			n = remain
		}
	}
	return n
}

func (f *Flow) newDesc(sn uint16) *txl.TxDesc {
	return &txl.TxDesc{
		Sta:        f.Sta,
		Tid:        f.Tid,
		Aggregate:  f.Aggregate,
		Rate:       f.Rate,
		Protection: f.Protection,
		Length:     f.Length,
		Fragments:  f.Fragments,
		Sn:         sn,
		Cookie:     f,
	}
}

func (f *Flow) onConfirm(desc *txl.TxDesc) {
	s := &f.Stats
	s.Confirmed[desc.Status]++
	latency := desc.ConfirmUs - desc.SubmitUs
	s.LatencySumUs += latency
	if latency > s.MaxLatencyUs {
		s.MaxLatencyUs = latency
	}
}

func (s *FlowStats) NumConfirmed() uint64 {
	var n uint64
	for _, c := range s.Confirmed {
		n += c
	}
	return n
}

func (s *FlowStats) MeanLatencyUs() float64 {
	n := s.NumConfirmed()
	if n == 0 {
		return 0
	}
	return float64(s.LatencySumUs) / float64(n)
}
