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


package monitor_statslog

import (
	"fmt"
	"os"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/monitor"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

type statslogMonitor struct {
	logFile        *os.File
	logFileName    string
	isFileEnabled  bool
	changed        bool   // flag to track if some queue stats changed
	timestampUs    uint64 // simulation current timestamp
	logTimestampUs uint64 // last log entry timestamp
	stats          [NumAccessCategories]queueStats
	oldStats       [NumAccessCategories]queueStats
}

type queueStats struct {
	numExchanges  uint64
	numAmpdus     uint64
	numMpdus      uint64
	numLost       uint64
	numAcked      uint64
	numRetryLimit uint64
	numBaMissing  uint64
	numAborted    uint64
	numHangs      uint64
}

// NewStatslogMonitor creates a new Monitor that writes a CSV log of per-queue counters to file.
func NewStatslogMonitor(outputDir string, simulationId int) Monitor {
	return &statslogMonitor{
		logFileName:   getStatsLogFileName(outputDir, simulationId),
		isFileEnabled: true,
		changed:       true,
	}
}

func (sm *statslogMonitor) SetController(SimulationController) {
}

func (sm *statslogMonitor) Init() {
	sm.createLogFile()
}

func (sm *statslogMonitor) Run() {
	// no goroutine
}

func (sm *statslogMonitor) Stop() {
	// add final entries with the final counters
	for ac := range sm.stats {
		sm.writeLogEntry(sm.timestampUs, AccessCategory(ac), sm.stats[ac])
	}
	sm.close()
	logger.Debugf("statslogMonitor stopped and CSV log file closed.")
}

func (sm *statslogMonitor) AdvanceTime(ts uint64) {
	if sm.changed {
		for ac := range sm.stats {
			if sm.stats[ac] != sm.oldStats[ac] {
				sm.writeLogEntry(sm.timestampUs, AccessCategory(ac), sm.stats[ac])
				sm.oldStats[ac] = sm.stats[ac]
			}
		}
		sm.logTimestampUs = sm.timestampUs
	}
	sm.changed = false
	sm.timestampUs = ts
}

func (sm *statslogMonitor) OnFrameExchange(ex hwsim.Exchange) {
	sm.changed = true
	s := &sm.stats[ex.Ac]
	s.numExchanges++
	if ex.Ampdu {
		s.numAmpdus++
	}
	s.numMpdus += uint64(ex.Mpdus)
	s.numLost += uint64(ex.Lost)
}

func (sm *statslogMonitor) OnConfirm(ac AccessCategory, desc *txl.TxDesc) {
	sm.changed = true
	s := &sm.stats[ac]
	switch desc.Status {
	case TxStatusAcked:
		s.numAcked++
	case TxStatusRetryLimit:
		s.numRetryLimit++
	case TxStatusBlockAckMissing:
		s.numBaMissing++
	case TxStatusAborted:
		s.numAborted++
	}
}

func (sm *statslogMonitor) OnQueueHang(ac AccessCategory, err error) {
	sm.changed = true
	sm.stats[ac].numHangs++
}

func (sm *statslogMonitor) createLogFile() {
	logger.AssertNil(sm.logFile)

	var err error
	_ = os.Remove(sm.logFileName)

	sm.logFile, err = os.OpenFile(sm.logFileName, os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		logger.Errorf("creating new stats log file %s failed: %+v", sm.logFileName, err)
		sm.isFileEnabled = false
		return
	}
	sm.writeLogFileHeader()
	logger.Debugf("Stats log file '%s' created.", sm.logFileName)
}

func (sm *statslogMonitor) writeLogFileHeader() {
	// RFC 4180 CSV file: no leading or trailing spaces in header field names
	header := "timeSec,ac,nExchanges,nAmpdus,nMpdus,nLost,nAcked,nRetryLimit,nBaMissing,nAborted,nHangs"
	_ = sm.writeToLogFile(header)
}

func (sm *statslogMonitor) writeLogEntry(ts uint64, ac AccessCategory, stats queueStats) {
	timeSec := float64(ts) / 1e6
	entry := fmt.Sprintf("%12.6f,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d", timeSec, ac, stats.numExchanges,
		stats.numAmpdus, stats.numMpdus, stats.numLost, stats.numAcked, stats.numRetryLimit, stats.numBaMissing,
		stats.numAborted, stats.numHangs)
	_ = sm.writeToLogFile(entry)
	logger.Tracef("statslog entry added: %s", entry)
}

func (sm *statslogMonitor) writeToLogFile(line string) error {
	if !sm.isFileEnabled {
		return nil
	}
	_, err := sm.logFile.WriteString(line + "\n")
	if err != nil {
		sm.close()
		sm.isFileEnabled = false
		logger.Errorf("couldn't write to stats log file (%s), closing it", sm.logFileName)
	}
	return err
}

func (sm *statslogMonitor) close() {
	if sm.logFile != nil {
		_ = sm.logFile.Close()
		sm.logFile = nil
		sm.isFileEnabled = false
	}
}

func getStatsLogFileName(outputDir string, simId int) string {
	return fmt.Sprintf("%s/%d_stats.csv", outputDir, simId)
}
