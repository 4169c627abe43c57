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

// Package station keeps the per-station data the TX engine needs: MAC address, Block-Ack
// agreements per TID, receiver aggregation limits and MU-MIMO group membership.
package station

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrStationExists  = errors.New("station exists")
)

// Config describes a station when it is added to the table.
type Config struct {
	Id           StaId
	Addr         net.HardwareAddr
	MaxAmpduLen  [phy.NumFormats]int // 0 for no A-MPDU reception in that format
	MinSpacing   int                 // minimum MPDU start spacing code 0..7
	MuGroup      int
	UserPos      int
	BfCalibrated bool
}

// DefaultConfig returns a VHT capable station without MU-MIMO.
func DefaultConfig(id StaId) Config {
	cfg := Config{
		Id:   id,
		Addr: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte(id >> 8), byte(id)},
	}
	cfg.MaxAmpduLen[phy.FormatHtMf] = 65535
	cfg.MaxAmpduLen[phy.FormatHtGf] = 65535
	cfg.MaxAmpduLen[phy.FormatVht] = 1048575
	return cfg
}

// BaAgreement is an established Block-Ack session for one TID.
type BaAgreement struct {
	Window  int
	Started bool
}

type Station struct {
	Config
	agreements [MaxTid + 1]BaAgreement
}

func (s *Station) String() string {
	return fmt.Sprintf("sta%d(%s)", s.Id, s.Addr)
}

// Table is a thread-safe station table. It implements txl.StationTable.
type Table struct {
	mutex    sync.RWMutex
	stations map[StaId]*Station
}

var _ txl.StationTable = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		stations: map[StaId]*Station{},
	}
}

// Add adds a station.
func (t *Table) Add(cfg Config) error {
	if cfg.Id < 0 {
		return errors.Errorf("invalid station id %d", cfg.Id)
	}
	if cfg.MinSpacing < 0 || cfg.MinSpacing > 7 {
		return errors.Errorf("invalid minimum spacing code %d", cfg.MinSpacing)
	}
	if len(cfg.Addr) == 0 {
		cfg.Addr = DefaultConfig(cfg.Id).Addr
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.stations[cfg.Id]; ok {
		return errors.Wrapf(ErrStationExists, "station %d", cfg.Id)
	}
	t.stations[cfg.Id] = &Station{Config: cfg}
	return nil
}

// Remove deletes a station and its agreements.
func (t *Table) Remove(id StaId) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.stations[id]; !ok {
		return errors.Wrapf(ErrUnknownStation, "station %d", id)
	}
	delete(t.stations, id)
	return nil
}

// AddBa establishes a Block-Ack agreement for (id, tid).
func (t *Table) AddBa(id StaId, tid Tid, window int) error {
	if tid > MaxTid {
		return errors.Errorf("invalid TID %d", tid)
	}
	if window < 1 || window > 64 {
		return errors.Errorf("invalid Block-Ack window %d", window)
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	sta, ok := t.stations[id]
	if !ok {
		return errors.Wrapf(ErrUnknownStation, "station %d", id)
	}
	sta.agreements[tid] = BaAgreement{Window: window, Started: true}
	return nil
}

// DelBa tears down the Block-Ack agreement for (id, tid).
func (t *Table) DelBa(id StaId, tid Tid) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	sta, ok := t.stations[id]
	if !ok || tid > MaxTid {
		return errors.Wrapf(ErrUnknownStation, "station %d", id)
	}
	sta.agreements[tid] = BaAgreement{}
	return nil
}

// SetMuGroup changes the MU-MIMO membership of a station.
func (t *Table) SetMuGroup(id StaId, group int, userPos int, calibrated bool) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	sta, ok := t.stations[id]
	if !ok {
		return errors.Wrapf(ErrUnknownStation, "station %d", id)
	}
	sta.MuGroup = group
	sta.UserPos = userPos
	sta.BfCalibrated = calibrated
	return nil
}

// Get returns a copy of the station.
func (t *Table) Get(id StaId) (Station, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	sta, ok := t.stations[id]
	if !ok {
		return Station{}, false
	}
	return *sta, true
}

// Ids returns the ids of all stations, sorted.
func (t *Table) Ids() []StaId {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	ids := make([]StaId, 0, len(t.stations))
	for id := range t.stations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Table) AggLimits(id StaId, tid Tid) (txl.AggLimits, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	sta, ok := t.stations[id]
	if !ok || tid > MaxTid {
		return txl.AggLimits{}, false
	}
	ba := sta.agreements[tid]
	if !ba.Started {
		return txl.AggLimits{}, false
	}
	return txl.AggLimits{
		MaxLen:     sta.MaxAmpduLen,
		MinSpacing: sta.MinSpacing,
		Window:     ba.Window,
	}, true
}

func (t *Table) StationInfo(id StaId) (txl.StationInfo, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	sta, ok := t.stations[id]
	if !ok {
		return txl.StationInfo{}, false
	}
	return txl.StationInfo{
		Addr:         sta.Addr,
		MuGroup:      sta.MuGroup,
		UserPos:      sta.UserPos,
		BfCalibrated: sta.BfCalibrated,
	}, true
}
