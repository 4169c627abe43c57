// Copyright (c) 2020-2026, The OTNS Authors.
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

package types

import (
	"fmt"
	"math"
	"strings"
)

// StaId identifies a station in the station table.
type StaId = int

// Tid is the 802.11 QoS traffic identifier (0..7).
type Tid = uint8

const (
	InvalidStaId StaId = -1
	MaxTid       Tid   = 7
)

const (
	// Ever is a timestamp (us) far enough in the future to mean 'never'.
	Ever uint64 = math.MaxUint64 / 2
)

// AccessCategory is one of the 802.11e EDCA transmit queues. Each access category maps to one
// independent hardware queue.
type AccessCategory int

const (
	AcBk  AccessCategory = 0 // background
	AcBe  AccessCategory = 1 // best effort
	AcVi  AccessCategory = 2 // video
	AcVo  AccessCategory = 3 // voice
	AcBcn AccessCategory = 4 // beacon / management queue, never aggregated

	NumAccessCategories = 5
)

func (ac AccessCategory) String() string {
	switch ac {
	case AcBk:
		return "BK"
	case AcBe:
		return "BE"
	case AcVi:
		return "VI"
	case AcVo:
		return "VO"
	case AcBcn:
		return "BCN"
	default:
		return fmt.Sprintf("AC(%d)", int(ac))
	}
}

// Valid returns true if ac names one of the hardware queues.
func (ac AccessCategory) Valid() bool {
	return ac >= AcBk && ac < NumAccessCategories
}

// ParseAccessCategory parses an access category name, case-insensitive ("bk", "be", "vi", "vo", "bcn").
func ParseAccessCategory(s string) (AccessCategory, error) {
	switch strings.ToLower(s) {
	case "bk", "background":
		return AcBk, nil
	case "be", "besteffort", "best-effort":
		return AcBe, nil
	case "vi", "video":
		return AcVi, nil
	case "vo", "voice":
		return AcVo, nil
	case "bcn", "beacon":
		return AcBcn, nil
	default:
		return AcBe, fmt.Errorf("invalid access category: %s", s)
	}
}

// TidToAccessCategory maps a TID to its access category according to the 802.1D user priority table.
func TidToAccessCategory(tid Tid) AccessCategory {
	switch tid & 7 {
	case 1, 2:
		return AcBk
	case 0, 3:
		return AcBe
	case 4, 5:
		return AcVi
	default:
		return AcVo
	}
}

// TxStatus is the final transmit status confirmed for a descriptor. Every descriptor is confirmed
// exactly once with one of the terminal values.
type TxStatus int

const (
	TxStatusPending         TxStatus = 0 // not yet confirmed
	TxStatusAcked           TxStatus = 1 // acknowledged by Ack or Block-Ack
	TxStatusRetryLimit      TxStatus = 2 // data (or protection) retry limit reached
	TxStatusBlockAckMissing TxStatus = 3 // A-MPDU subframe not covered by a received Block-Ack
	TxStatusAborted         TxStatus = 4 // flushed by a reset before completion
	TxStatusLifetimeExpired TxStatus = 5 // reserved for MSDU lifetime drops by the caller

	NumTxStatus = 6
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusAcked:
		return "acked"
	case TxStatusRetryLimit:
		return "retry-limit"
	case TxStatusBlockAckMissing:
		return "ba-missing"
	case TxStatusAborted:
		return "aborted"
	case TxStatusLifetimeExpired:
		return "lifetime"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Final returns true if s is a terminal status.
func (s TxStatus) Final() bool {
	return s != TxStatusPending
}

// Protection is the frame-exchange protection mode used ahead of a PPDU.
type Protection int

const (
	ProtNone      Protection = 0
	ProtRtsCts    Protection = 1
	ProtCtsToSelf Protection = 2
)

func (p Protection) String() string {
	switch p {
	case ProtNone:
		return "none"
	case ProtRtsCts:
		return "rts-cts"
	case ProtCtsToSelf:
		return "cts-self"
	default:
		return "invalid"
	}
}

// ParseProtection parses a protection mode name ("none", "rts", "rts-cts", "cts", "cts-self").
func ParseProtection(s string) (Protection, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ProtNone, nil
	case "rts", "rts-cts", "rtscts":
		return ProtRtsCts, nil
	case "cts", "cts-self", "ctstoself":
		return ProtCtsToSelf, nil
	default:
		return ProtNone, fmt.Errorf("invalid protection: %s", s)
	}
}
