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

// ndbps holds the data bits per OFDM symbol for a single spatial stream, indexed by bandwidth and
// VHT MCS. HT MCS 0..7 share the 20/40 MHz rows. A zero entry marks an MCS not defined for that
// width (VHT MCS 9 at 20 MHz with one stream).
var ndbps = [NumBandwidths][10]int{
	Bw20:  {26, 52, 78, 104, 156, 208, 234, 260, 312, 0},
	Bw40:  {54, 108, 162, 216, 324, 432, 486, 540, 648, 720},
	Bw80:  {117, 234, 351, 468, 702, 936, 1053, 1170, 1404, 1560},
	Bw160: {234, 468, 702, 936, 1404, 1872, 2106, 2340, 2808, 3120},
}

// legacyNdbps holds the data bits per symbol of the 20 MHz OFDM rates 6..54 Mbps.
var legacyNdbps = [8]int{24, 36, 48, 72, 96, 144, 192, 216}

var legacyRatesMbps = [8]int{6, 9, 12, 18, 24, 36, 48, 54}

// minSpacingQuarterUs converts the receiver's minimum MPDU start spacing code (0..7) into units
// of 1/4 microsecond: none, 1/4, 1/2, 1, 2, 4, 8 and 16 us.
var minSpacingQuarterUs = [8]int{0, 1, 2, 4, 8, 16, 32, 64}

// nLtf is the number of VHT-LTF symbols per spatial stream count (index 1..8).
var nLtf = [9]int{0, 1, 2, 4, 4, 6, 6, 8, 8}

// bytesPer32us is the single-stream byte capacity of 32 us of data symbols, indexed by bandwidth,
// guard interval and MCS. Built once from ndbps.
var bytesPer32us [NumBandwidths][2][10]int

func init() {
	for bw := 0; bw < NumBandwidths; bw++ {
		for mcs := 0; mcs < 10; mcs++ {
			nd := ndbps[bw][mcs]
			// 8 symbols of 4.0 us fit in 32 us, i.e. N_DBPS bytes
			bytesPer32us[bw][GiLong][mcs] = nd
			// 3.6 us symbols: 32/3.6 = 80/9 symbols
			bytesPer32us[bw][GiShort][mcs] = nd * 10 / 9
		}
	}
}

func (r RateInfo) nss() int {
	if r.Nss < 1 {
		return 1
	}
	return r.Nss
}

// DataBitsPerSymbol returns N_DBPS for rate r, all spatial streams included.
func DataBitsPerSymbol(r RateInfo) int {
	if r.Format == FormatNonHt {
		return legacyNdbps[clampInt(r.Mcs, 0, 7)]
	}
	bw := Bandwidth(clampInt(int(r.Bw), 0, NumBandwidths-1))
	mcs := clampInt(r.Mcs, 0, 9)
	nd := ndbps[bw][mcs]
	if nd == 0 {
		nd = ndbps[bw][mcs-1]
	}
	return nd * r.nss()
}

// BytesPer32us returns how many data bytes rate r carries in 32 us.
func BytesPer32us(r RateInfo) int {
	if r.Format == FormatNonHt {
		return legacyNdbps[clampInt(r.Mcs, 0, 7)]
	}
	bw := Bandwidth(clampInt(int(r.Bw), 0, NumBandwidths-1))
	gi := GuardInterval(clampInt(int(r.Gi), 0, 1))
	mcs := clampInt(r.Mcs, 0, 9)
	b := bytesPer32us[bw][gi][mcs]
	if b == 0 {
		b = bytesPer32us[bw][gi][mcs-1]
	}
	return b * r.nss()
}

// MaxLenForDuration converts a PPDU data duration budget into a byte budget at rate r.
func MaxLenForDuration(r RateInfo, durationUs int) int {
	if durationUs <= 0 {
		return 0
	}
	return durationUs / 32 * BytesPer32us(r)
}

// MinSpacingBytes returns the number of bytes needed between two subframe starts to honour the
// receiver's minimum MPDU start spacing code at rate r.
func MinSpacingBytes(r RateInfo, spacingCode int) int {
	q := minSpacingQuarterUs[clampInt(spacingCode, 0, 7)]
	if q == 0 {
		return 0
	}
	// 32 us = 128 quarter microseconds
	return (BytesPer32us(r)*q + 127) / 128
}

// VhtDurationUs returns the duration in microseconds of a VHT PPDU carrying a PSDU of length
// bytes at rate r, preamble included.
func VhtDurationUs(length int, r RateInfo) int {
	nss := r.nss()
	if nss > 8 {
		nss = 8
	}
	nd := DataBitsPerSymbol(r)
	// one BCC encoder per 600 Mbps: nd bits every 4 us is nd/4 Mbps
	nes := (nd/4 + 599) / 600
	if nes < 1 {
		nes = 1
	}
	nsym := (8*length + 16 + 6*nes + nd - 1) / nd
	// L-STF, L-LTF, L-SIG, VHT-SIG-A, VHT-STF and VHT-SIG-B: 36 us
	preamble := 36 + 4*nLtf[nss]
	if r.Gi == GiShort {
		// whole 4 us periods of 3.6 us symbols
		return preamble + 4*((nsym*9+9)/10)
	}
	return preamble + 4*nsym
}

// AirtimeUs returns the over-the-air time of a PPDU of length bytes at rate r.
func AirtimeUs(length int, r RateInfo) int {
	switch r.Format {
	case FormatVht:
		return VhtDurationUs(length, r)
	case FormatHtMf, FormatHtGf:
		nd := DataBitsPerSymbol(r)
		nsym := (8*length + 16 + 6 + nd - 1) / nd
		preamble := 24 + 4*nLtf[clampInt(r.nss(), 1, 4)]
		if r.Format == FormatHtMf {
			preamble += 8
		}
		if r.Gi == GiShort {
			return preamble + 4*((nsym*9+9)/10)
		}
		return preamble + 4*nsym
	default:
		nd := DataBitsPerSymbol(r)
		return 20 + 4*((16+8*length+6+nd-1)/nd)
	}
}
