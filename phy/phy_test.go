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

package phy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func vht(mcs, nss int, bw Bandwidth, gi GuardInterval) RateInfo {
	return RateInfo{Format: FormatVht, Mcs: mcs, Nss: nss, Bw: bw, Gi: gi}
}

func TestBytesPer32us(t *testing.T) {
	assert.Equal(t, 26, BytesPer32us(vht(0, 1, Bw20, GiLong)))
	assert.Equal(t, 260, BytesPer32us(vht(7, 1, Bw20, GiLong)))
	assert.Equal(t, 2600, BytesPer32us(vht(7, 2, Bw80, GiShort)))
	assert.Equal(t, 3120*3, BytesPer32us(vht(9, 3, Bw160, GiLong)))

	// MCS 9 is not defined at 20 MHz with one stream and falls back to MCS 8
	assert.Equal(t, BytesPer32us(vht(8, 1, Bw20, GiLong)), BytesPer32us(vht(9, 1, Bw20, GiLong)))

	ht := RateInfo{Format: FormatHtMf, Mcs: 7, Nss: 2, Bw: Bw40}
	assert.Equal(t, 1080, BytesPer32us(ht))

	legacy := RateInfo{Format: FormatNonHt, Mcs: 7}
	assert.Equal(t, 216, BytesPer32us(legacy))
}

func TestMaxLenForDuration(t *testing.T) {
	r := vht(7, 1, Bw20, GiLong)
	assert.Equal(t, 171*260, MaxLenForDuration(r, 5484))
	assert.Equal(t, 0, MaxLenForDuration(r, 0))
	assert.True(t, MaxLenForDuration(r.WithBandwidth(Bw80), 1504) > MaxLenForDuration(r, 1504))
}

func TestMinSpacingBytes(t *testing.T) {
	r := vht(7, 1, Bw20, GiLong)
	assert.Equal(t, 0, MinSpacingBytes(r, 0))
	assert.Equal(t, 3, MinSpacingBytes(r, 1))
	assert.Equal(t, 33, MinSpacingBytes(r, 5))
	assert.Equal(t, 130, MinSpacingBytes(r, 7))
	assert.Equal(t, 2*130, MinSpacingBytes(vht(7, 2, Bw20, GiLong), 7))
}

func TestVhtDurationUs(t *testing.T) {
	assert.Equal(t, 1892, VhtDurationUs(1500, vht(0, 1, Bw20, GiLong)))
	// two streams need two LTFs, half the symbols
	assert.Equal(t, 36+8+4*232, VhtDurationUs(1500, vht(0, 2, Bw20, GiLong)))
	// short GI: 463 symbols of 3.6 us round up to 417 periods of 4 us
	assert.Equal(t, 36+4+4*417, VhtDurationUs(1500, vht(0, 1, Bw20, GiShort)))

	short := VhtDurationUs(100, vht(9, 4, Bw160, GiShort))
	long := VhtDurationUs(100, vht(0, 1, Bw20, GiLong))
	assert.True(t, short < long)
}

func TestAirtimeUs(t *testing.T) {
	assert.Equal(t, 160, AirtimeUs(100, RateInfo{Format: FormatNonHt, Mcs: 0}))
	assert.Equal(t, VhtDurationUs(400, vht(3, 1, Bw40, GiLong)), AirtimeUs(400, vht(3, 1, Bw40, GiLong)))
	assert.True(t, AirtimeUs(400, RateInfo{Format: FormatHtMf, Mcs: 3, Nss: 1}) > 0)
}

func TestRateInfoValid(t *testing.T) {
	assert.True(t, vht(9, 8, Bw160, GiShort).Valid())
	assert.False(t, vht(10, 1, Bw20, GiLong).Valid())
	assert.False(t, vht(0, 0, Bw20, GiLong).Valid())
	assert.False(t, RateInfo{Format: FormatHtMf, Mcs: 0, Nss: 1, Bw: Bw80}.Valid())
	assert.True(t, RateInfo{Format: FormatNonHt, Mcs: 3}.Valid())
}

func TestParse(t *testing.T) {
	bw, err := ParseBandwidth("80MHz")
	assert.Nil(t, err)
	assert.Equal(t, Bw80, bw)
	_, err = ParseBandwidth("30")
	assert.EqualError(t, err, "invalid bandwidth: 30")

	_, err = ParseFormat("dsss")
	assert.EqualError(t, err, "invalid PHY format: dsss")

	f, err := ParseFormat("vht")
	assert.Nil(t, err)
	assert.Equal(t, FormatVht, f)
	assert.True(t, f.Aggregable())
	assert.False(t, FormatNonHt.Aggregable())
	assert.Equal(t, "40MHz", Bw40.String())
}
