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

package station

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/wlansim/txagg/phy"
)

func TestTable_AggLimits(t *testing.T) {
	tbl := NewTable()
	cfg := DefaultConfig(3)
	cfg.MinSpacing = 5
	assert.Nil(t, tbl.Add(cfg))

	_, ok := tbl.AggLimits(3, 0)
	assert.False(t, ok, "no agreement yet")

	assert.Nil(t, tbl.AddBa(3, 0, 32))
	lim, ok := tbl.AggLimits(3, 0)
	assert.True(t, ok)
	assert.Equal(t, 32, lim.Window)
	assert.Equal(t, 5, lim.MinSpacing)
	assert.Equal(t, 65535, lim.MaxLen[phy.FormatHtMf])
	assert.Equal(t, 0, lim.MaxLen[phy.FormatNonHt])

	_, ok = tbl.AggLimits(3, 1)
	assert.False(t, ok)

	assert.Nil(t, tbl.DelBa(3, 0))
	_, ok = tbl.AggLimits(3, 0)
	assert.False(t, ok)
}

func TestTable_Errors(t *testing.T) {
	tbl := NewTable()
	assert.Nil(t, tbl.Add(DefaultConfig(1)))
	assert.Equal(t, ErrStationExists, errors.Cause(tbl.Add(DefaultConfig(1))))
	assert.Equal(t, ErrUnknownStation, errors.Cause(tbl.AddBa(2, 0, 8)))
	assert.NotNil(t, tbl.AddBa(1, 9, 8))
	assert.NotNil(t, tbl.AddBa(1, 0, 65))
	assert.NotNil(t, tbl.Add(Config{Id: 4, MinSpacing: 8}))
	assert.Equal(t, ErrUnknownStation, errors.Cause(tbl.Remove(7)))
}

func TestTable_StationInfo(t *testing.T) {
	tbl := NewTable()
	assert.Nil(t, tbl.Add(Config{Id: 258}))
	assert.Nil(t, tbl.SetMuGroup(258, 12, 1, true))

	info, ok := tbl.StationInfo(258)
	assert.True(t, ok)
	assert.Equal(t, "02:00:00:00:01:02", info.Addr.String())
	assert.Equal(t, 12, info.MuGroup)
	assert.Equal(t, 1, info.UserPos)
	assert.True(t, info.BfCalibrated)

	assert.Nil(t, tbl.Add(Config{Id: 5}))
	assert.Equal(t, []int{5, 258}, tbl.Ids())
	assert.Nil(t, tbl.Remove(258))
	_, ok = tbl.StationInfo(258)
	assert.False(t, ok)
}
