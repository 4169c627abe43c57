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

package capture

import (
	"encoding/binary"

	"github.com/wlansim/txagg/phy"
)

// radiotap fields, see https://www.radiotap.org/fields/defined
const (
	rtPresentFlags = 1 << 1
	rtPresentRate  = 1 << 2
	rtPresentMcs   = 1 << 19

	rtFlagsFcs = 0x10

	rtMcsKnownBw   = 0x01
	rtMcsKnownMcs  = 0x02
	rtMcsKnownGi   = 0x04
	rtMcsFlagsBw40 = 0x01
	rtMcsFlagsSgi  = 0x04
)

var legacyRates500k = [8]uint8{12, 18, 24, 36, 48, 72, 96, 108}

// radiotapHeader returns the radiotap header describing a frame sent at rate r. Non-HT frames get a
// rate field, HT frames an MCS field. VHT has no fixed-size field and only carries the flags.
func radiotapHeader(r phy.RateInfo) []byte {
	present := uint32(rtPresentFlags)
	fields := []byte{rtFlagsFcs}

	switch r.Format {
	case phy.FormatNonHt:
		present |= rtPresentRate
		mcs := r.Mcs
		if mcs < 0 || mcs > 7 {
			mcs = 0
		}
		fields = append(fields, legacyRates500k[mcs])
	case phy.FormatHtMf, phy.FormatHtGf:
		present |= rtPresentMcs
		var flags uint8
		if r.Bw == phy.Bw40 {
			flags |= rtMcsFlagsBw40
		}
		if r.Gi == phy.GiShort {
			flags |= rtMcsFlagsSgi
		}
		nss := r.Nss
		if nss < 1 {
			nss = 1
		}
		fields = append(fields, rtMcsKnownBw|rtMcsKnownMcs|rtMcsKnownGi, flags, uint8(r.Mcs+8*(nss-1)))
	}

	b := make([]byte, 8, 8+len(fields))
	binary.LittleEndian.PutUint16(b[2:], uint16(8+len(fields)))
	binary.LittleEndian.PutUint32(b[4:], present)
	return append(b, fields...)
}
