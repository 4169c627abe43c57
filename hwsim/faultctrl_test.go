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


package hwsim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wlansim/txagg/prng"
	"github.com/wlansim/txagg/station"
	. "github.com/wlansim/txagg/types"
)

func newFaultMac() *Mac {
	return NewMac(DefaultMacConfig(), &simClock{}, station.NewTable())
}

func TestFaultCtrlNonHang(t *testing.T) {
	prng.Init(1)

	mac := newFaultMac()
	fc := NewFaultCtrl(mac, AcBe, NonHangTime, 0)

	now := uint64(0)
	for i := 0; i < 10; i++ {
		now += 1000000
		next, _ := fc.OnTimeAdvanced(now)
		assert.Equal(t, Ever, next)
		assert.False(t, mac.Hung(AcBe))
	}

	mac.SetHung(AcBe, true)
	for i := 0; i < 10; i++ {
		now += 1000000
		fc.OnTimeAdvanced(now)
		assert.True(t, mac.Hung(AcBe))
	}

	fc.SetHangTime(NonHangTime)
	assert.False(t, mac.Hung(AcBe))
}

func hangFraction(t *testing.T, ht HangTime) float64 {
	prng.Init(1)

	mac := newFaultMac()
	fc := NewFaultCtrl(mac, AcVi, ht, 0)
	hangCount := 0
	worksCount := 0

	// simulate a 10-hour period
	now := uint64(0)
	for i := 0; i < 360000; i++ {
		now += 100000
		fc.OnTimeAdvanced(now)
		if mac.Hung(AcVi) {
			hangCount++
		} else {
			worksCount++
		}
		assert.False(t, mac.Hung(AcBe))
	}
	return float64(hangCount) / float64(hangCount+worksCount)
}

func TestFaultCtrlHangingHalfOfTheTime(t *testing.T) {
	perc := hangFraction(t, HangTime{HangDuration: 30 * 1e6, HangInterval: 60 * 1e6})
	assert.True(t, perc > 0.46)
	assert.True(t, perc < 0.54)
}

func TestFaultCtrlHangingMostOfTheTime(t *testing.T) {
	perc := hangFraction(t, HangTime{HangDuration: 9 * 1e6, HangInterval: 10 * 1e6})
	assert.True(t, perc > 0.86)
	assert.True(t, perc < 0.94)
}
