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
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/prng"
	. "github.com/wlansim/txagg/types"
)

// HangTime configures transient hangs of a hardware queue.
type HangTime struct {
	HangDuration uint64 `yaml:"duration"` // unit: us
	HangInterval uint64 `yaml:"interval"` // unit: us
}

var (
	NonHangTime = HangTime{0, 0}
)

func (ht HangTime) CanHang() bool {
	return ht.HangDuration > 0
}

// FaultCtrl hangs one queue of a Mac for HangDuration once in every HangInterval, at a random
// offset within the interval.
type FaultCtrl struct {
	mac             *Mac
	ac              AccessCategory
	hangTime        HangTime
	recoverTs       uint64 // unit: us; timestamp when the hang ends (valid if currently hung)
	hangTs          uint64 // unit: us; timestamp when the hang starts (valid if currently not hung)
	remainTm        uint64 // unit: us; time that remains in this hang cycle after the hang has ended.
	prevOpTimestamp uint64 // unit: us; time of previous reported next-operation timestamp.
	curTime         uint64
}

func NewFaultCtrl(mac *Mac, ac AccessCategory, hangTime HangTime, now uint64) *FaultCtrl {
	fc := &FaultCtrl{
		mac:     mac,
		ac:      ac,
		curTime: now,
	}
	fc.SetHangTime(hangTime)
	return fc
}

func (fc *FaultCtrl) SetHangTime(hangTime HangTime) {
	fc.hangTime = hangTime

	fc.recoverTs = 0
	fc.hangTs = 0
	fc.remainTm = 0
	if !hangTime.CanHang() && fc.mac.Hung(fc.ac) {
		fc.mac.SetHung(fc.ac, false)
	}
	fc.calcNextHangTimestamp()
}

// OnTimeAdvanced must be called when the simulation time advances. It hangs or resumes the queue
// as needed, and returns the timestamp of the next expected operation as well as a flag that is
// set to 'true' if that timestamp moved further into the future.
func (fc *FaultCtrl) OnTimeAdvanced(now uint64) (uint64, bool) {
	isUpdated := false
	if !fc.hangTime.CanHang() {
		return Ever, isUpdated
	}

	logger.AssertTrue(now >= fc.curTime)
	fc.curTime = now

	if fc.mac.Hung(fc.ac) {
		logger.AssertTrue(fc.hangTs == 0)
		if now >= fc.recoverTs {
			fc.recoverTs = 0
			fc.calcNextHangTimestamp()
			fc.mac.SetHung(fc.ac, false)
			fc.prevOpTimestamp = fc.hangTs
			return fc.hangTs, true
		}
		isUpdated = fc.recoverTs > fc.prevOpTimestamp
		fc.prevOpTimestamp = fc.recoverTs
		return fc.recoverTs, isUpdated
	}

	logger.AssertTrue(fc.recoverTs == 0)
	if now >= fc.hangTs {
		fc.recoverTs = now + fc.hangTime.HangDuration
		fc.hangTs = 0
		logger.Debugf("%s hardware queue hangs until %d", fc.ac, fc.recoverTs)
		fc.mac.SetHung(fc.ac, true)
		fc.prevOpTimestamp = fc.recoverTs
		return fc.recoverTs, true
	}
	isUpdated = fc.hangTs > fc.prevOpTimestamp
	fc.prevOpTimestamp = fc.hangTs
	return fc.hangTs, isUpdated
}

func (fc *FaultCtrl) calcNextHangTimestamp() {
	if !fc.hangTime.CanHang() {
		return
	}
	logger.AssertTrue(fc.hangTime.HangDuration > 0 && fc.hangTime.HangInterval > fc.hangTime.HangDuration)
	hangStartTimeMax := fc.hangTime.HangInterval - fc.hangTime.HangDuration
	hangTsRel := prng.NewFaultTime(hangStartTimeMax)
	fc.hangTs = hangTsRel + fc.curTime + fc.remainTm
	fc.remainTm = fc.hangTime.HangInterval - fc.hangTime.HangDuration - hangTsRel
	logger.AssertTrue(fc.remainTm < fc.hangTime.HangInterval)
}
