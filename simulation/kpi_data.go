// Copyright (c) 2024-2026, The OTNS Authors.
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

type KpiTimeUs struct {
	StartTimeUs uint64 `json:"start"`
	EndTimeUs   uint64 `json:"end"`
	PeriodUs    uint64 `json:"duration"`
}

type KpiTimeSec struct {
	StartTimeSec float64 `json:"start"`
	EndTimeSec   float64 `json:"end"`
	PeriodSec    float64 `json:"duration"`
}

type KpiQueue struct {
	Confirmed        map[string]uint64 `json:"confirmed"`
	Singletons       uint64            `json:"singletons"`
	Aggregates       uint64            `json:"aggregates"`
	AvgAggregateSize float64           `json:"avg_aggregate_size"`
	Demotions        uint64            `json:"demotions"`
	MuPpdus          uint64            `json:"mu_ppdus"`
	MuFallbacks      uint64            `json:"mu_fallbacks"`
	RtsResubmits     uint64            `json:"rts_resubmits"`
	BwDrops          uint64            `json:"bw_drops"`
	BaPolls          uint64            `json:"ba_polls"`
	Hangs            uint64            `json:"hangs"`
	Flushes          uint64            `json:"flushes"`
	Exchanges        uint64            `json:"tx_exchanges"`
	LostMpdus        uint64            `json:"tx_lost_mpdus"`
	TxTimeUs         uint64            `json:"tx_time_us"`
	TxPercentage     float64           `json:"tx_percent"`
	MaxPpdusQueued   int               `json:"max_ppdus_queued"`
}

type KpiTraffic struct {
	Ac             string            `json:"ac,omitempty"`
	Sta            int               `json:"sta,omitempty"`
	Tid            int               `json:"tid"`
	Submitted      uint64            `json:"tx"`
	Paused         uint64            `json:"tx_paused"`
	Confirmed      map[string]uint64 `json:"confirmed"`
	LossPercentage float64           `json:"loss_percent"`
	LatencyMs      float64           `json:"avg_latency_ms"`
	MaxLatencyMs   float64           `json:"max_latency_ms"`
}

type Kpi struct {
	FileTime string              `json:"created"`
	Status   string              `json:"status"`
	TimeUs   KpiTimeUs           `json:"time_us"`
	TimeSec  KpiTimeSec          `json:"time_sec"`
	Queues   map[string]KpiQueue `json:"queues"`
	Flows    map[int]KpiTraffic  `json:"flows"`
	Commands KpiTraffic          `json:"commands"`
}
