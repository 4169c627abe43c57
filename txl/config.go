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
	"net"

	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/types"
)

const (
	// MaxMuUsers is the maximum number of user positions in a MU-MIMO PPDU.
	MaxMuUsers = 4

	// DefaultBaPollRetries is how often the RX path is polled for a Block-Ack after the BAR of an
	// A-MPDU reports done. The Block-Ack may trail the BAR done bit by a few RX interrupts.
	DefaultBaPollRetries = 5

	maxBaWindow = 64
)

type Config struct {
	AggPoolSize       int
	MaxDurationUs     [NumAccessCategories]int
	BwStepping        bool
	MuMimo            bool
	MuUsers           int
	ActivityTimeoutUs uint64
	AggHoldUs         uint64
	BaPollRetries     int
	OwnAddr           net.HardwareAddr
	QueueLog          logger.QueueLogConfig
}

func DefaultConfig() *Config {
	return &Config{
		AggPoolSize: 16,
		MaxDurationUs: [NumAccessCategories]int{
			AcBk:  5484,
			AcBe:  5484,
			AcVi:  3008,
			AcVo:  1504,
			AcBcn: 0,
		},
		BwStepping:        true,
		MuMimo:            false,
		MuUsers:           2,
		ActivityTimeoutUs: 200000,
		AggHoldUs:         2000,
		BaPollRetries:     DefaultBaPollRetries,
		OwnAddr:           net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		QueueLog:          logger.DefaultQueueLogConfig(),
	}
}

func (cfg *Config) validate() {
	logger.AssertTrue(cfg.AggPoolSize >= 0, "negative aggregate pool size")
	logger.AssertTrue(cfg.MuUsers >= 1 && cfg.MuUsers <= MaxMuUsers, "invalid number of MU users: %d", cfg.MuUsers)
	logger.AssertTrue(cfg.BaPollRetries >= 1, "BA poll retries must be positive")
	logger.AssertTrue(len(cfg.OwnAddr) == 6, "own address must be a MAC-48 address")
}
