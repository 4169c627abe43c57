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
	"github.com/wlansim/txagg/phy"
	. "github.com/wlansim/txagg/types"
)

// muBuild is the MU-MIMO PPDU build state of a queue.
type muBuild struct {
	active   bool
	group    int
	openMask uint32 // user positions still accepting frames
	bw       phy.Bandwidth
	gi       phy.GuardInterval

	// aggregates of positions closed for the current PPDU
	closed [MaxMuUsers]*aggDesc

	// descriptors held back because their position was closed, in arrival order
	retained []*TxDesc
}

func (mu *muBuild) reset() {
	mu.active = false
	mu.group = 0
	mu.openMask = 0
	mu.closed = [MaxMuUsers]*aggDesc{}
}

func (mu *muBuild) isOpen(pos int) bool {
	return mu.openMask&(1<<uint(pos)) != 0
}

func (mu *muBuild) hasRetained(pos int) bool {
	for _, d := range mu.retained {
		if d.user == pos {
			return true
		}
	}
	return false
}

// rateFor returns the rate of desc inside the PPDU: bandwidth and guard interval are shared by
// all users, the stream count is per user.
func (mu *muBuild) rateFor(desc *TxDesc) phy.RateInfo {
	r := desc.Rate
	r.Bw = mu.bw
	r.Gi = mu.gi
	return r
}

// muEligible returns the station info of desc if it may be sent in a MU-MIMO PPDU.
func (e *Engine) muEligible(ac AccessCategory, desc *TxDesc) (StationInfo, bool) {
	if desc.Rate.Format != phy.FormatVht {
		return StationInfo{}, false
	}
	if _, ok := e.aggLimits(ac, desc); !ok {
		return StationInfo{}, false
	}
	info, ok := e.stations.StationInfo(desc.Sta)
	if !ok || info.MuGroup < 1 || info.MuGroup > 62 || !info.BfCalibrated ||
		info.UserPos < 0 || info.UserPos >= e.cfg.MuUsers {
		return StationInfo{}, false
	}
	return info, true
}

// submitMu adds desc to the MU-MIMO PPDU being built, opening one if needed. A descriptor for a
// different group or for a closed position is retained until the PPDU closes.
func (e *Engine) submitMu(tl *txList, desc *TxDesc, info StationInfo) {
	mu := &tl.mu
	pos := info.UserPos
	desc.user = pos

	if !mu.active {
		e.openMuBuild(tl, desc)
	}
	if info.MuGroup != mu.group {
		if mu.isOpen(pos) {
			e.closeMuPosition(tl, pos)
		}
		e.retain(tl, desc)
		e.maybeCloseMuPpdu(tl)
		return
	}
	if !mu.isOpen(pos) || mu.hasRetained(pos) {
		e.retain(tl, desc)
		return
	}

	ul := &tl.users[pos]
	rate := mu.rateFor(desc)
	if ul.agg == nil {
		lim, _ := e.aggLimits(tl.ac, desc)
		agg := e.openAggregate(tl, desc, pos, rate, lim, false)
		if agg == nil {
			// no aggregate for this user: the PPDU is committed without it
			e.endMuBuild(tl)
			e.buildSu(tl, desc)
			return
		}
		ul.descs = append(ul.descs, desc)
		ul.agg = agg
		return
	}

	accepted, full := e.appendToAggregate(ul.agg, desc, rate)
	if !accepted {
		e.closeMuPosition(tl, pos)
		e.retain(tl, desc)
		e.maybeCloseMuPpdu(tl)
		return
	}
	ul.descs = append(ul.descs, desc)
	if full {
		e.closeMuPosition(tl, pos)
		e.maybeCloseMuPpdu(tl)
	}
}

func (e *Engine) openMuBuild(tl *txList, desc *TxDesc) {
	if tl.users[0].agg != nil {
		e.finishAggregate(tl, 0)
	}
	info, _ := e.stations.StationInfo(desc.Sta)
	mu := &tl.mu
	mu.active = true
	mu.group = info.MuGroup
	mu.openMask = 1<<uint(e.cfg.MuUsers) - 1
	mu.bw = desc.Rate.Bw
	mu.gi = desc.Rate.Gi
	tl.log.Tracef("open MU-MIMO group %d", mu.group)
	e.armHoldTimer(tl)
}

func (e *Engine) retain(tl *txList, desc *TxDesc) {
	desc.retained = true
	tl.mu.retained = append(tl.mu.retained, desc)
}

func (e *Engine) closeMuPosition(tl *txList, pos int) {
	mu := &tl.mu
	mu.openMask &^= 1 << uint(pos)
	ul := &tl.users[pos]
	if ul.agg != nil {
		mu.closed[pos] = ul.agg
		ul.agg = nil
	}
}

func (e *Engine) maybeCloseMuPpdu(tl *txList) {
	if tl.mu.active && tl.mu.openMask == 0 {
		e.closeMuPpdu(tl)
		e.replayRetained(tl)
	}
}

// endMuBuild closes the PPDU being built and replays retained descriptors until no build is open.
func (e *Engine) endMuBuild(tl *txList) {
	for tl.mu.active {
		e.closeMuPpdu(tl)
		e.replayRetained(tl)
	}
}

// muParticipants returns the aggregates of all positions that took frames, in position order.
func (tl *txList) muParticipants() []*aggDesc {
	var res []*aggDesc
	for pos := range tl.mu.closed {
		if tl.mu.closed[pos] != nil {
			res = append(res, tl.mu.closed[pos])
		} else if tl.mu.isOpen(pos) && tl.users[pos].agg != nil {
			res = append(res, tl.users[pos].agg)
		}
	}
	return res
}

// closeMuPpdu closes every position and commits the PPDU. The user with the longest data duration
// becomes the primary. If the primary holds a single MPDU, or only one user took part, every user
// is sent as an independent single-user exchange.
func (e *Engine) closeMuPpdu(tl *txList) {
	mu := &tl.mu
	for pos := 0; pos < e.cfg.MuUsers; pos++ {
		if mu.isOpen(pos) {
			e.closeMuPosition(tl, pos)
		}
	}
	users := tl.muParticipants()
	mu.reset()
	if !tl.hasOpenBuild() {
		e.timers.disarm(tl.ac, timerAggHold)
	}
	if len(users) == 0 {
		return
	}

	primary := 0
	longest := -1
	for i, agg := range users {
		if d := phy.VhtDurationUs(agg.length, agg.rate); d > longest {
			primary = i
			longest = d
		}
	}
	p := users[primary]
	if len(users) == 1 || p.count == 1 {
		if len(users) > 1 {
			tl.stats.MuFallbacks++
			tl.log.Debugf("MU-MIMO fallback, primary %s is not an aggregate", p)
		}
		for _, agg := range users {
			e.pushExchange(tl, e.closeAggregate(tl, agg, true))
		}
		return
	}

	order := append([]*aggDesc{p}, users[:primary]...)
	order = append(order, users[primary+1:]...)
	x := &frmEx{kind: exMu, head: p.header}
	secondaries := make([]Handle, 0, len(order)-1)
	for i, agg := range order {
		e.formatAggregate(agg)
		agg.muSecondary = i > 0
		if agg.muSecondary {
			secondaries = append(secondaries, agg.header)
		}
		for _, m := range agg.members {
			m.Aggregated = true
			m.MuMimo = true
		}
		tl.stats.Aggregates++
		tl.stats.AggregatedMpdus += uint64(agg.count)
		x.users = append(x.users, &frmEx{kind: exAmpdu, head: agg.header, agg: agg})
	}
	e.arena.Get(p.header).MuUsers = secondaries
	tl.stats.MuPpdus++
	tl.log.Tracef("close MU-MIMO PPDU, primary %s, %d secondaries", p, len(secondaries))
	e.pushExchange(tl, x)
}

// replayRetained runs retained descriptors through the builders again, in arrival order. A
// descriptor whose position closes again is retained behind the ones of the same position.
func (e *Engine) replayRetained(tl *txList) {
	for !tl.mu.active && len(tl.mu.retained) > 0 {
		batch := tl.mu.retained
		tl.mu.retained = nil
		for _, d := range batch {
			d.retained = false
			e.submitLocked(tl, d)
		}
	}
}

// muDownloaded returns true if all payloads of the PPDU being built are downloaded.
func (tl *txList) muDownloaded() bool {
	users := tl.muParticipants()
	if len(users) == 0 {
		return false
	}
	for _, agg := range users {
		for _, m := range agg.members {
			if m.dl != dlReady {
				return false
			}
		}
	}
	return true
}
