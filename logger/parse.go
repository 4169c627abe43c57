// Copyright (c) 2022-2026, The OTNS Authors.
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
	"strings"
)

const (
	OffLevelString     = "off"
	NoneLevelString    = "none"
	DefaultLevelString = "default"
)

// levelNames lists the accepted spellings per level, the first one is the canonical name.
var levelNames = []struct {
	level Level
	names []string
}{
	{MicroLevel, []string{"micro"}},
	{TraceLevel, []string{"trace", "t"}},
	{DebugLevel, []string{"debug", "d"}},
	{InfoLevel, []string{"info", "i"}},
	{NoteLevel, []string{"note", "n"}},
	{WarnLevel, []string{"warn", "warning", "w"}},
	{ErrorLevel, []string{"crit", "critical", "error", "err", "c", "e"}},
	{PanicLevel, []string{"panic"}},
	{FatalLevel, []string{"fatal"}},
	{OffLevel, []string{OffLevelString, NoneLevelString}},
}

// ParseLevelString parses a level name as used on the command line and in scenario files.
func ParseLevelString(level string) (Level, error) {
	level = strings.ToLower(level)
	if level == DefaultLevelString || level == "def" || level == "" {
		return DefaultLevel, nil
	}
	for _, ln := range levelNames {
		for _, name := range ln.names {
			if name == level {
				return ln.level, nil
			}
		}
	}
	return DefaultLevel, fmt.Errorf("invalid log level string: %s", level)
}

func GetLevelString(level Level) string {
	for _, ln := range levelNames {
		if ln.level == level {
			return ln.names[0]
		}
	}
	Panicf("Unknown Level: %d", level)
	return ""
}
