// Copyright (c) 2023-2026, The OTNS Authors.
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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// QueueLogger is a log object for a single TX queue (access category). Entries are buffered and
// shown or written to the queue's log file when DisplayPendingLogEntries is called, so that a
// queue can log while holding its engine lock. Levels and output file can be set per queue.
type QueueLogger struct {
	Name         string
	fileLevel    Level
	displayLevel Level

	logFile       *os.File
	logFileName   string
	isFileEnabled bool
	entries       chan logEntry
	timestampUs   uint64
}

// QueueLogConfig configures a QueueLogger.
type QueueLogConfig struct {
	OutputDir    string
	LogFile      bool
	DisplayLevel Level
	FileLevel    Level
}

// DefaultQueueLogConfig only displays errors and writes no file.
func DefaultQueueLogConfig() QueueLogConfig {
	return QueueLogConfig{
		OutputDir:    ".",
		LogFile:      false,
		DisplayLevel: ErrorLevel,
		FileLevel:    DebugLevel,
	}
}

// NewQueueLogger creates the logger for queue name and opens its log file if configured.
func NewQueueLogger(name string, cfg QueueLogConfig) *QueueLogger {
	ql := &QueueLogger{
		Name:          name,
		fileLevel:     cfg.FileLevel,
		displayLevel:  cfg.DisplayLevel,
		entries:       make(chan logEntry, 1000),
		logFileName:   filepath.Join(cfg.OutputDir, fmt.Sprintf("txq_%s.log", name)),
		isFileEnabled: cfg.LogFile,
	}
	if ql.isFileEnabled {
		ql.createLogFile()
	}
	return ql
}

func (ql *QueueLogger) createLogFile() {
	var err error
	ql.logFile, err = os.OpenFile(ql.logFileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		Errorf("creating queue log file %s failed: %+v", ql.logFileName, err)
		ql.isFileEnabled = false
		return
	}

	header := fmt.Sprintf("#\n# TX queue log for %s Created %s\n", ql.Name, time.Now().Format(time.RFC3339)) +
		"# SimTimeUs Message"
	_ = ql.writeToLogFile(header)
	ql.Debugf("Queue log file '%s' created.", ql.logFileName)
}

func (ql *QueueLogger) add(level Level, msg string) {
	if level > ql.fileLevel && level > ql.displayLevel {
		return
	}
	entry := logEntry{
		Level: level,
		Msg:   msg,
	}
	select {
	case ql.entries <- entry:
		break
	default:
		ql.DisplayPendingLogEntries(ql.timestampUs)
		ql.entries <- entry
	}
}

func (ql *QueueLogger) SetFileLevel(level Level) {
	ql.fileLevel = level
}

func (ql *QueueLogger) SetDisplayLevel(level Level) {
	ql.displayLevel = level
}

func (ql *QueueLogger) Logf(level Level, format string, args ...interface{}) {
	ql.add(level, getMessage(format, args))
}

func (ql *QueueLogger) Tracef(format string, args ...interface{}) {
	ql.add(TraceLevel, getMessage(format, args))
}

func (ql *QueueLogger) Debugf(format string, args ...interface{}) {
	ql.add(DebugLevel, getMessage(format, args))
}

func (ql *QueueLogger) Infof(format string, args ...interface{}) {
	ql.add(InfoLevel, getMessage(format, args))
}

func (ql *QueueLogger) Warnf(format string, args ...interface{}) {
	ql.add(WarnLevel, getMessage(format, args))
}

func (ql *QueueLogger) Errorf(format string, args ...interface{}) {
	ql.add(ErrorLevel, getMessage(format, args))
}

func (ql *QueueLogger) Error(err error) {
	if err == nil {
		return
	}
	ql.add(ErrorLevel, err.Error())
}

func (ql *QueueLogger) writeToLogFile(line string) error {
	_, err := ql.logFile.WriteString(line + "\n")
	if err != nil {
		_ = ql.logFile.Close()
		ql.logFile = nil
		ql.isFileEnabled = false
		Errorf("couldn't write to queue log file (%s), closing it", ql.logFileName)
	}
	return err
}

// DisplayPendingLogEntries displays all pending log entries for the queue, using given simulation
// time ts. This includes writing any pending entries to the queue log file.
func (ql *QueueLogger) DisplayPendingLogEntries(ts uint64) {
	ql.timestampUs = ts
	tsStr := fmt.Sprintf("%11d ", ts)
	prefix := ql.Name + " "
	for {
		select {
		case entry := <-ql.entries:
			isSaveEntry := ql.fileLevel >= entry.Level
			isDisplayEntry := ql.displayLevel >= entry.Level
			logStr := tsStr + entry.Msg
			if (isDisplayEntry || isSaveEntry) && ql.isFileEnabled {
				_ = ql.writeToLogFile(logStr)
			}
			if isDisplayEntry {
				write(entry.Level, prefix+entry.Msg)
			}
		default:
			return
		}
	}
}

// PendingCount returns the number of buffered entries.
func (ql *QueueLogger) PendingCount() int {
	return len(ql.entries)
}

// IsFileEnabled returns true if logging to file is currently enabled, false if not.
func (ql *QueueLogger) IsFileEnabled() bool {
	return ql.isFileEnabled
}

// Close saves/displays any pending entries and closes the queue log file.
func (ql *QueueLogger) Close() {
	ql.DisplayPendingLogEntries(ql.timestampUs)
	if ql.logFile != nil {
		_ = ql.logFile.Close()
		ql.logFile = nil
	}
}
