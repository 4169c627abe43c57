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

package cli

import (
	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	BwDrop   *BwDropCmd   `  @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
	Flow     *FlowCmd     `| @@` //nolint
	Flush    *FlushCmd    `| @@` //nolint
	Go       *GoCmd       `| @@` //nolint
	Hang     *HangCmd     `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	Kpi      *KpiCmd      `| @@` //nolint
	LogLevel *LogLevelCmd `| @@` //nolint
	RtsFail  *RtsFailCmd  `| @@` //nolint
	Stations *StationsCmd `| @@` //nolint
	Stats    *StatsCmd    `| @@` //nolint
	Submit   *SubmitCmd   `| @@` //nolint
	Time     *TimeCmd     `| @@` //nolint
}

// noinspection GoStructTag
type AcSelector struct {
	Val string `@( "bk"|"be"|"vi"|"vo"|"bcn"|"BK"|"BE"|"VI"|"VO"|"BCN" )` //nolint
}

// noinspection GoStructTag
type GoCmd struct {
	Cmd  struct{}  `"go"`                                     //nolint
	Time string    `( @((Int|Float)["h"|"us"|"m"|"ms"|"s"]) ` //nolint
	Ever *EverFlag `| @@ )`                                   //nolint
}

// noinspection GoStructTag
type EverFlag struct {
	Dummy struct{} `"ever"` //nolint
}

// noinspection GoStructTag
type CountFlag struct {
	Val int `("count" | "c") @Int` //nolint
}

// noinspection GoStructTag
type NoAggFlag struct {
	Dummy struct{} `"noagg"` //nolint
}

// noinspection GoStructTag
type ProtectionFlag struct {
	Val string `@( "rts" | "cts" | "none" )` //nolint
}

// noinspection GoStructTag
type RateFlag struct {
	Cmd    struct{} `"rate"`                       //nolint
	Format string   `@( "vht" | "ht" | "legacy" )` //nolint
	Mcs    int      `"mcs" @Int`                   //nolint
	Nss    *int     `( "nss" @Int`                 //nolint
	Bw     *int     `| "bw" @Int`                  //nolint
	Sgi    *SgiFlag `| @@ )*`                      //nolint
}

// noinspection GoStructTag
type SgiFlag struct {
	Dummy struct{} `"sgi"` //nolint
}

// noinspection GoStructTag
type SubmitCmd struct {
	Cmd        struct{}        `"submit"` //nolint
	Ac         AcSelector      `@@`       //nolint
	Sta        int             `@Int`     //nolint
	Tid        int             `@Int`     //nolint
	Length     int             `@Int`     //nolint
	Count      *CountFlag      `( @@`     //nolint
	NoAgg      *NoAggFlag      `| @@`     //nolint
	Rate       *RateFlag       `| @@`     //nolint
	Protection *ProtectionFlag `| @@ )*`  //nolint
}

// noinspection GoStructTag
type FlushCmd struct {
	Cmd struct{}   `"flush"` //nolint
	Ac  AcSelector `@@`      //nolint
}

// noinspection GoStructTag
type BwDropCmd struct {
	Cmd struct{}   `"bwdrop"` //nolint
	Ac  AcSelector `@@`       //nolint
	Bw  int        `@Int`     //nolint
}

// noinspection GoStructTag
type RtsFailCmd struct {
	Cmd   struct{}   `"rtsfail"` //nolint
	Ac    AcSelector `@@`        //nolint
	Count *int       `[ @Int ]`  //nolint
}

// noinspection GoStructTag
type HangCmd struct {
	Cmd struct{}   `"hang"` //nolint
	Ac  AcSelector `@@`     //nolint
	Off *OffFlag   `[ @@ ]` //nolint
}

// noinspection GoStructTag
type OffFlag struct {
	Dummy struct{} `"off"` //nolint
}

// noinspection GoStructTag
type FlowCmd struct {
	Cmd  struct{}     `"flow"` //nolint
	Add  *FlowAddArgs `[ @@`   //nolint
	Stop *FlowStopArg `| @@ ]` //nolint
}

// noinspection GoStructTag
type FlowAddArgs struct {
	Cmd        struct{}        `"add"`   //nolint
	Ac         AcSelector      `@@`      //nolint
	Sta        int             `@Int`    //nolint
	Length     int             `@Int`    //nolint
	IntervalUs int             `@Int`    //nolint
	Tid        *TidFlag        `( @@`    //nolint
	Count      *CountFlag      `| @@`    //nolint
	Burst      *BurstFlag      `| @@`    //nolint
	Jitter     *JitterFlag     `| @@`    //nolint
	NoAgg      *NoAggFlag      `| @@`    //nolint
	Rate       *RateFlag       `| @@`    //nolint
	Protection *ProtectionFlag `| @@ )*` //nolint
}

// noinspection GoStructTag
type FlowStopArg struct {
	Id int `"stop" @Int` //nolint
}

// noinspection GoStructTag
type TidFlag struct {
	Val int `"tid" @Int` //nolint
}

// noinspection GoStructTag
type BurstFlag struct {
	Val int `"burst" @Int` //nolint
}

// noinspection GoStructTag
type JitterFlag struct {
	Val int `"jitter" @Int` //nolint
}

// noinspection GoStructTag
type StatsCmd struct {
	Cmd struct{} `"stats"` //nolint
}

// noinspection GoStructTag
type StationsCmd struct {
	Cmd struct{} `( "stations" | "sta" )` //nolint
}

// noinspection GoStructTag
type KpiCmd struct {
	Cmd       struct{} `"kpi"`                     //nolint
	Operation string   `[ @( "start" | "stop" ) ]` //nolint
	Save      *string  `[ "save" @String ]`        //nolint
}

// noinspection GoStructTag
type TimeCmd struct {
	Cmd struct{} `"time"` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

type LogLevelCmd struct {
	Cmd   struct{} `"log"`                                                                                         //nolint
	Level string   `[@( "micro"|"trace"|"debug"|"info"|"note"|"warn"|"error"|"off"|"T"|"D"|"I"|"N"|"W"|"C"|"E" )]` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func parseBytes(b []byte, cmd *Command) error {
	err := commandParser.ParseBytes(b, cmd)
	return err
}
