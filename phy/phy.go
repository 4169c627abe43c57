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

// Package phy holds the 802.11 PHY rate model used by the TX scheduler: rate descriptions, the
// data-bits-per-symbol tables and the derived byte/time conversions needed for aggregation limits.
package phy

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Bandwidth int

const (
	Bw20  Bandwidth = 0
	Bw40  Bandwidth = 1
	Bw80  Bandwidth = 2
	Bw160 Bandwidth = 3

	NumBandwidths = 4
)

func (bw Bandwidth) String() string {
	if bw < Bw20 || bw > Bw160 {
		return fmt.Sprintf("bw(%d)", int(bw))
	}
	return fmt.Sprintf("%dMHz", bw.MHz())
}

// MHz returns the channel width in MHz.
func (bw Bandwidth) MHz() int {
	return 20 << uint(bw)
}

func (bw Bandwidth) Valid() bool {
	return bw >= Bw20 && bw <= Bw160
}

// ParseBandwidth parses "20", "40", "80", "160", optionally suffixed with "MHz".
func ParseBandwidth(s string) (Bandwidth, error) {
	switch strings.TrimSuffix(strings.ToLower(s), "mhz") {
	case "20":
		return Bw20, nil
	case "40":
		return Bw40, nil
	case "80":
		return Bw80, nil
	case "160":
		return Bw160, nil
	default:
		return Bw20, errors.Errorf("invalid bandwidth: %s", s)
	}
}

type GuardInterval int

const (
	GiLong  GuardInterval = 0 // 800 ns, 4.0 us symbol
	GiShort GuardInterval = 1 // 400 ns, 3.6 us symbol
)

func (gi GuardInterval) String() string {
	if gi == GiShort {
		return "sgi"
	}
	return "lgi"
}

// Format is the PHY modulation format of a PPDU.
type Format int

const (
	FormatNonHt Format = 0
	FormatHtMf  Format = 1
	FormatHtGf  Format = 2
	FormatVht   Format = 3

	NumFormats = 4
)

func (f Format) String() string {
	switch f {
	case FormatNonHt:
		return "non-ht"
	case FormatHtMf:
		return "ht-mf"
	case FormatHtGf:
		return "ht-gf"
	case FormatVht:
		return "vht"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Aggregable returns true for the formats that can carry an A-MPDU.
func (f Format) Aggregable() bool {
	return f == FormatHtMf || f == FormatHtGf || f == FormatVht
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "non-ht", "legacy", "ofdm":
		return FormatNonHt, nil
	case "ht", "ht-mf":
		return FormatHtMf, nil
	case "ht-gf":
		return FormatHtGf, nil
	case "vht":
		return FormatVht, nil
	default:
		return FormatNonHt, errors.Errorf("invalid PHY format: %s", s)
	}
}

// RateInfo describes the transmit rate of a frame. For HT, Mcs is the per-stream MCS (0..7) and
// Nss carries the stream count. For non-HT, Mcs indexes the OFDM rates 6..54 Mbps (0..7).
type RateInfo struct {
	Format Format
	Mcs    int
	Nss    int
	Bw     Bandwidth
	Gi     GuardInterval
}

func (r RateInfo) String() string {
	if r.Format == FormatNonHt {
		return fmt.Sprintf("%s/%dMbps", r.Format, legacyRatesMbps[clampInt(r.Mcs, 0, 7)])
	}
	return fmt.Sprintf("%s/mcs%d/%dss/%s/%s", r.Format, r.Mcs, r.Nss, r.Bw, r.Gi)
}

// Valid checks the rate against the MCS and stream ranges of its format.
func (r RateInfo) Valid() bool {
	if !r.Bw.Valid() {
		return false
	}
	switch r.Format {
	case FormatNonHt:
		return r.Mcs >= 0 && r.Mcs <= 7 && r.Bw == Bw20
	case FormatHtMf, FormatHtGf:
		return r.Mcs >= 0 && r.Mcs <= 7 && r.Nss >= 1 && r.Nss <= 4 && r.Bw <= Bw40
	case FormatVht:
		return r.Mcs >= 0 && r.Mcs <= 9 && r.Nss >= 1 && r.Nss <= 8
	default:
		return false
	}
}

// WithBandwidth returns a copy of r using bandwidth bw.
func (r RateInfo) WithBandwidth(bw Bandwidth) RateInfo {
	r.Bw = bw
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
