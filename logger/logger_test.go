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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelString(t *testing.T) {
	for _, lv := range []Level{MicroLevel, TraceLevel, DebugLevel, InfoLevel, NoteLevel, WarnLevel, ErrorLevel, OffLevel} {
		parsed, err := ParseLevelString(GetLevelString(lv))
		assert.Nil(t, err)
		assert.Equal(t, lv, parsed)
	}
	lv, err := ParseLevelString("WARNING")
	assert.Nil(t, err)
	assert.Equal(t, WarnLevel, lv)

	_, err = ParseLevelString("loud")
	assert.NotNil(t, err)
}

func TestAssertPanics(t *testing.T) {
	assert.Panics(t, func() {
		AssertTrue(false, "must panic")
	})
	assert.NotPanics(t, func() {
		AssertEqual(1, 1)
	})
}

func TestQueueLoggerFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultQueueLogConfig()
	cfg.OutputDir = dir
	cfg.LogFile = true
	cfg.DisplayLevel = OffLevel
	cfg.FileLevel = InfoLevel

	ql := NewQueueLogger("be", cfg)
	assert.True(t, ql.IsFileEnabled())
	ql.Infof("chained %d", 3)
	ql.Debugf("not saved")
	assert.Equal(t, 1, ql.PendingCount())
	ql.DisplayPendingLogEntries(1234)
	assert.Equal(t, 0, ql.PendingCount())
	ql.Close()

	data, err := os.ReadFile(filepath.Join(dir, "txq_be.log"))
	assert.Nil(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "1234 chained 3"))
	assert.False(t, strings.Contains(content, "not saved"))
}

func TestQueueLoggerOverflow(t *testing.T) {
	cfg := DefaultQueueLogConfig()
	cfg.DisplayLevel = OffLevel
	cfg.FileLevel = DebugLevel
	ql := NewQueueLogger("vo", cfg)
	for i := 0; i < 1500; i++ {
		ql.Debugf("entry %d", i)
	}
	assert.True(t, ql.PendingCount() <= 1000)
}

func TestAssertPanicsWithLoggingOff(t *testing.T) {
	prev := GetLevel()
	SetLevel(OffLevel)
	defer SetLevel(prev)

	assert.Panics(t, func() {
		AssertNil(errors.New("boom"))
	})
	assert.Panics(t, func() {
		PanicIfError(errors.New("boom"))
	})
	assert.NotPanics(t, func() {
		PanicIfError(nil)
		Errorf("suppressed %d", 1)
	})
}

type fixedTime uint64

func (ft fixedTime) CurTime() uint64 {
	return uint64(ft)
}

func TestTimePrefix(t *testing.T) {
	SetTimeSource(fixedTime(1500))
	assert.Equal(t, "       1500 - ", timePrefix())
	SetTimeSource(nil)
	assert.True(t, strings.HasSuffix(timePrefix(), " - "))
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestGetMessage(t *testing.T) {
	assert.Equal(t, "plain", getMessage("plain", nil))
	assert.Equal(t, "a=1", getMessage("a=%d", []interface{}{1}))
	assert.Equal(t, "only", getMessage("", []interface{}{"only"}))
	assert.Equal(t, "3 4", getMessage("", []interface{}{3, " ", 4}))
}
