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
	. "github.com/wlansim/txagg/types"
)

// QueueStats are the counters of one access category queue.
type QueueStats struct {
	Submitted       uint64 `json:"submitted"`
	Paused          uint64 `json:"paused"`
	Confirmed       uint64 `json:"confirmed"`
	Acked           uint64 `json:"acked"`
	RetryLimit      uint64 `json:"retry_limit"`
	BlockAckMissing uint64 `json:"ba_missing"`
	Aborted         uint64 `json:"aborted"`

	Singletons      uint64 `json:"singletons"`
	Aggregates      uint64 `json:"aggregates"`
	AggregatedMpdus uint64 `json:"aggregated_mpdus"`
	Demotions       uint64 `json:"demotions"`
	MuPpdus         uint64 `json:"mu_ppdus"`
	MuFallbacks     uint64 `json:"mu_fallbacks"`

	Chained        uint64 `json:"chained"`
	NewHeads       uint64 `json:"new_heads"`
	RtsResubmits   uint64 `json:"rts_resubmits"`
	BwDrops        uint64 `json:"bw_drops"`
	BwDropSplits   uint64 `json:"bw_drop_splits"`
	BaPolls        uint64 `json:"ba_polls"`
	BaPollMisses   uint64 `json:"ba_poll_misses"`
	AggPoolMisses  uint64 `json:"agg_pool_misses"`
	BufferStalls   uint64 `json:"buffer_stalls"`
	StallSplits    uint64 `json:"stall_splits"`
	ForcedCloses   uint64 `json:"forced_closes"`
	HoldTimeouts   uint64 `json:"hold_timeouts"`
	Hangs          uint64 `json:"hangs"`
	Flushes        uint64 `json:"flushes"`
	MaxPpdusQueued int    `json:"max_ppdus_queued"`
}

// Minus returns the counter increase from old to s.
func (s QueueStats) Minus(old QueueStats) QueueStats {
	return QueueStats{
		Submitted:       s.Submitted - old.Submitted,
		Paused:          s.Paused - old.Paused,
		Confirmed:       s.Confirmed - old.Confirmed,
		Acked:           s.Acked - old.Acked,
		RetryLimit:      s.RetryLimit - old.RetryLimit,
		BlockAckMissing: s.BlockAckMissing - old.BlockAckMissing,
		Aborted:         s.Aborted - old.Aborted,
		Singletons:      s.Singletons - old.Singletons,
		Aggregates:      s.Aggregates - old.Aggregates,
		AggregatedMpdus: s.AggregatedMpdus - old.AggregatedMpdus,
		Demotions:       s.Demotions - old.Demotions,
		MuPpdus:         s.MuPpdus - old.MuPpdus,
		MuFallbacks:     s.MuFallbacks - old.MuFallbacks,
		Chained:         s.Chained - old.Chained,
		NewHeads:        s.NewHeads - old.NewHeads,
		RtsResubmits:    s.RtsResubmits - old.RtsResubmits,
		BwDrops:         s.BwDrops - old.BwDrops,
		BwDropSplits:    s.BwDropSplits - old.BwDropSplits,
		BaPolls:         s.BaPolls - old.BaPolls,
		BaPollMisses:    s.BaPollMisses - old.BaPollMisses,
		AggPoolMisses:   s.AggPoolMisses - old.AggPoolMisses,
		BufferStalls:    s.BufferStalls - old.BufferStalls,
		StallSplits:     s.StallSplits - old.StallSplits,
		ForcedCloses:    s.ForcedCloses - old.ForcedCloses,
		HoldTimeouts:    s.HoldTimeouts - old.HoldTimeouts,
		Hangs:           s.Hangs - old.Hangs,
		Flushes:         s.Flushes - old.Flushes,
		MaxPpdusQueued:  s.MaxPpdusQueued,
	}
}

// MeanAggregateSize returns the average number of MPDUs per A-MPDU.
func (s QueueStats) MeanAggregateSize() float64 {
	if s.Aggregates == 0 {
		return 0
	}
	return float64(s.AggregatedMpdus) / float64(s.Aggregates)
}

// Stats is a snapshot of all queue counters.
type Stats struct {
	Queues        [NumAccessCategories]QueueStats `json:"queues"`
	AggPoolFree   int                             `json:"agg_pool_free"`
	HwSlotsInUse  int                             `json:"hw_slots_in_use"`
	Outstanding   [NumAccessCategories]int        `json:"outstanding"`
	PpdusInFlight [NumAccessCategories]int        `json:"ppdus_in_flight"`
}

func (s *QueueStats) countConfirm(status TxStatus) {
	s.Confirmed++
	switch status {
	case TxStatusAcked:
		s.Acked++
	case TxStatusRetryLimit:
		s.RetryLimit++
	case TxStatusBlockAckMissing:
		s.BlockAckMissing++
	case TxStatusAborted:
		s.Aborted++
	}
}

func (s *QueueStats) trackQueued(n int) {
	if n > s.MaxPpdusQueued {
		s.MaxPpdusQueued = n
	}
}
