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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/progctx"
	"github.com/wlansim/txagg/simulation"
	. "github.com/wlansim/txagg/types"
)

func TestParseBytes(t *testing.T) {
	var cmd Command
	err := parseBytes([]byte("wrongcmd"), &cmd)
	assert.NotNil(t, err)

	assert.True(t, parseBytes([]byte("bwdrop be 20"), &cmd) == nil && cmd.BwDrop != nil && cmd.BwDrop.Bw == 20)
	assert.True(t, parseBytes([]byte("bwdrop be"), &cmd) != nil)

	assert.True(t, parseBytes([]byte("exit"), &cmd) == nil && cmd.Exit != nil)

	assert.True(t, parseBytes([]byte("flow"), &cmd) == nil && cmd.Flow != nil && cmd.Flow.Add == nil && cmd.Flow.Stop == nil)
	assert.Nil(t, parseBytes([]byte("flow add vi 2 1200 1000"), &cmd))
	assert.True(t, cmd.Flow.Add != nil && cmd.Flow.Add.Sta == 2 && cmd.Flow.Add.IntervalUs == 1000)
	assert.Nil(t, parseBytes([]byte("flow add be 1 1500 500 burst 8 tid 3 jitter 20 count 100 noagg rts"), &cmd))
	assert.Equal(t, 8, cmd.Flow.Add.Burst.Val)
	assert.Equal(t, 3, cmd.Flow.Add.Tid.Val)
	assert.Equal(t, 20, cmd.Flow.Add.Jitter.Val)
	assert.Equal(t, 100, cmd.Flow.Add.Count.Val)
	assert.NotNil(t, cmd.Flow.Add.NoAgg)
	assert.Equal(t, "rts", cmd.Flow.Add.Protection.Val)
	assert.True(t, parseBytes([]byte("flow stop 3"), &cmd) == nil && cmd.Flow.Stop != nil && cmd.Flow.Stop.Id == 3)
	assert.True(t, parseBytes([]byte("flow add be 1"), &cmd) != nil)

	assert.True(t, parseBytes([]byte("flush vo"), &cmd) == nil && cmd.Flush != nil && cmd.Flush.Ac.Val == "vo")
	assert.True(t, parseBytes([]byte("flush BCN"), &cmd) == nil && cmd.Flush != nil)
	assert.True(t, parseBytes([]byte("flush xx"), &cmd) != nil)

	assert.Nil(t, parseBytes([]byte("go 1"), &cmd))
	assert.NotNil(t, cmd.Go)
	assert.Nil(t, parseBytes([]byte("go 1.1"), &cmd))
	assert.NotNil(t, cmd.Go)
	assert.Nil(t, parseBytes([]byte("go 64us"), &cmd))
	assert.Equal(t, "64us", cmd.Go.Time)
	assert.Nil(t, parseBytes([]byte("go 5h"), &cmd))
	assert.NotNil(t, cmd.Go)
	assert.Nil(t, parseBytes([]byte("go ever"), &cmd))
	assert.NotNil(t, cmd.Go.Ever)

	assert.True(t, parseBytes([]byte("hang be"), &cmd) == nil && cmd.Hang != nil && cmd.Hang.Off == nil)
	assert.True(t, parseBytes([]byte("hang be off"), &cmd) == nil && cmd.Hang != nil && cmd.Hang.Off != nil)

	assert.True(t, parseBytes([]byte("help"), &cmd) == nil && cmd.Help != nil)
	assert.True(t, parseBytes([]byte("help submit"), &cmd) == nil && cmd.Help.HelpTopic == "submit")

	assert.True(t, parseBytes([]byte("kpi"), &cmd) == nil && cmd.Kpi != nil && cmd.Kpi.Operation == "")
	assert.True(t, parseBytes([]byte("kpi start"), &cmd) == nil && cmd.Kpi.Operation == "start")
	assert.True(t, parseBytes([]byte("kpi stop"), &cmd) == nil && cmd.Kpi.Operation == "stop")
	assert.True(t, parseBytes([]byte("kpi save \"x.json\""), &cmd) == nil && *cmd.Kpi.Save == "x.json")
	assert.True(t, parseBytes([]byte("kpi stop save \"x.json\""), &cmd) == nil && cmd.Kpi.Save != nil)

	assert.True(t, parseBytes([]byte("log"), &cmd) == nil && cmd.LogLevel != nil)
	assert.True(t, parseBytes([]byte("log debug"), &cmd) == nil && cmd.LogLevel.Level == "debug")
	assert.True(t, parseBytes([]byte("log off"), &cmd) == nil && cmd.LogLevel != nil)
	assert.True(t, parseBytes([]byte("log fatal"), &cmd) != nil) // not supported.

	assert.True(t, parseBytes([]byte("rtsfail be"), &cmd) == nil && cmd.RtsFail != nil && cmd.RtsFail.Count == nil)
	assert.True(t, parseBytes([]byte("rtsfail be 3"), &cmd) == nil && *cmd.RtsFail.Count == 3)

	assert.True(t, parseBytes([]byte("stations"), &cmd) == nil && cmd.Stations != nil)
	assert.True(t, parseBytes([]byte("sta"), &cmd) == nil && cmd.Stations != nil)
	assert.True(t, parseBytes([]byte("stats"), &cmd) == nil && cmd.Stats != nil)

	assert.Nil(t, parseBytes([]byte("submit be 1 0 1500"), &cmd))
	assert.True(t, cmd.Submit != nil && cmd.Submit.Sta == 1 && cmd.Submit.Length == 1500 && cmd.Submit.Count == nil)
	assert.Nil(t, parseBytes([]byte("submit vi 2 5 1200 count 8 rate vht mcs 9 nss 2 bw 80 sgi cts"), &cmd))
	assert.Equal(t, 8, cmd.Submit.Count.Val)
	assert.Equal(t, "vht", cmd.Submit.Rate.Format)
	assert.Equal(t, 9, cmd.Submit.Rate.Mcs)
	assert.Equal(t, 2, *cmd.Submit.Rate.Nss)
	assert.Equal(t, 80, *cmd.Submit.Rate.Bw)
	assert.NotNil(t, cmd.Submit.Rate.Sgi)
	assert.Equal(t, "cts", cmd.Submit.Protection.Val)
	assert.Nil(t, parseBytes([]byte("submit bk 1 1 100 noagg c 2"), &cmd))
	assert.True(t, cmd.Submit.NoAgg != nil && cmd.Submit.Count.Val == 2)
	assert.True(t, parseBytes([]byte("submit be 1 0"), &cmd) != nil)

	assert.True(t, parseBytes([]byte("time"), &cmd) == nil && cmd.Time != nil)
}

func TestFlagParsing(t *testing.T) {
	var cmd Command
	rate, err := (*RateFlag)(nil).parse()
	assert.Nil(t, err)
	assert.Equal(t, simulation.DefaultRate, rate)

	assert.Nil(t, parseBytes([]byte("submit be 1 0 100 rate ht mcs 3 bw 40"), &cmd))
	rate, err = cmd.Submit.Rate.parse()
	assert.Nil(t, err)
	assert.Equal(t, phy.RateInfo{Format: phy.FormatHtMf, Mcs: 3, Nss: 1, Bw: phy.Bw40, Gi: phy.GiLong}, rate)
	assert.Equal(t, AcBe, cmd.Submit.Ac.parse())
	assert.Equal(t, ProtNone, cmd.Submit.Protection.parse())

	assert.Nil(t, parseBytes([]byte("submit be 1 0 100 rate vht mcs 3 bw 30"), &cmd))
	_, err = cmd.Submit.Rate.parse()
	assert.NotNil(t, err)

	assert.Nil(t, parseBytes([]byte("flow add vo 2 300 1000 tid 6 noagg rts"), &cmd))
	f, err := cmd.Flow.Add.toFlow()
	assert.Nil(t, err)
	assert.Equal(t, AcVo, f.Ac)
	assert.Equal(t, Tid(6), f.Tid)
	assert.Equal(t, 1, f.Burst)
	assert.False(t, f.Aggregate)
	assert.Equal(t, ProtRtsCts, f.Protection)

	assert.Nil(t, parseBytes([]byte("flow add vo 2 300 1000 tid 9"), &cmd))
	_, err = cmd.Flow.Add.toFlow()
	assert.NotNil(t, err)
}

func TestHelpCoversCommands(t *testing.T) {
	help := newHelp()
	for _, c := range []string{"bwdrop", "exit", "flow", "flush", "go", "hang", "help", "kpi", "log", "rtsfail",
		"stations", "stats", "submit", "time"} {
		assert.Contains(t, help.entries, c)
		assert.NotEmpty(t, help.entries[c].short, c)
		assert.True(t, strings.HasPrefix(help.outputCommandHelp(c), c+"\n"), c)
	}
	assert.Contains(t, help.outputCommandHelp("nosuchcmd"), "Non-existent")
	assert.Contains(t, help.outputGeneralHelp(), "help <command>")
}

func newTestCmdRunner(t *testing.T) (*CmdRunner, *simulation.Simulation) {
	cfg := simulation.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.LogLevel = logger.WarnLevel
	ctx := progctx.New(context.Background())
	sim, err := simulation.NewSimulation(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(sim.Stop)
	return NewCmdRunner(ctx, sim), sim
}

func runCommand(t *testing.T, rt *CmdRunner, cmd string) string {
	var out bytes.Buffer
	assert.Nil(t, rt.RunCommand(cmd, &out))
	return out.String()
}

func TestCmdRunner(t *testing.T) {
	rt, sim := newTestCmdRunner(t)

	assert.Equal(t, "0\nDone\n", runCommand(t, rt, "time"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "submit be 1 0 1500 count 10"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "go 100ms"))
	assert.Equal(t, "100000\nDone\n", runCommand(t, rt, "time"))
	assert.Equal(t, uint64(10), sim.Report().Queues["BE"].Engine.Acked)

	assert.Equal(t, "0\nDone\n", runCommand(t, rt, "flush be"))
	assert.Contains(t, runCommand(t, rt, "submit be 9 0 1500"), "Error: ")
	assert.Contains(t, runCommand(t, rt, "nosuchcmd"), "Error: ")

	stats := runCommand(t, rt, "stats")
	assert.Contains(t, stats, "time_us: 100000")
	assert.Contains(t, stats, "BE:")
	assert.True(t, strings.HasSuffix(stats, "Done\n"))

	assert.Equal(t, "1\nDone\n", runCommand(t, rt, "flow add vi 2 1000 1000 count 20 burst 2"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "go 50ms"))
	flows := runCommand(t, rt, "flow")
	for _, item := range []string{"{id: 1,", "ac: VI", "sta: 2", "tx: 20", "acked: 20", "failed: 0"} {
		assert.Contains(t, flows, item)
	}
	assert.Equal(t, "Done\n", runCommand(t, rt, "flow stop 1"))
	assert.Contains(t, runCommand(t, rt, "flow stop 2"), "Error: ")

	assert.Equal(t, "off\nDone\n", runCommand(t, rt, "kpi"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "kpi start"))
	assert.Equal(t, "on\nDone\n", runCommand(t, rt, "kpi"))
	fn := sim.GetConfig().OutputDir + "/test_kpi.json"
	assert.Equal(t, "Done\n", runCommand(t, rt, fmt.Sprintf("kpi stop save \"%s\"", fn)))
	_, err := os.Stat(fn)
	assert.Nil(t, err)

	assert.Equal(t, "Done\n", runCommand(t, rt, "log debug"))
	assert.Equal(t, "debug\nDone\n", runCommand(t, rt, "log"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "log warn"))

	assert.Contains(t, runCommand(t, rt, "stations"), "sta2(")
	assert.Contains(t, runCommand(t, rt, "help flush"), "flush <ac>")
}

func TestCmdRunnerFaults(t *testing.T) {
	rt, sim := newTestCmdRunner(t)

	assert.Equal(t, "Done\n", runCommand(t, rt, "rtsfail be"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "submit be 1 0 1500 count 8 rts"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "bwdrop vi 20"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "submit vi 1 0 1500 count 16 rate vht mcs 7 bw 80"))
	assert.Contains(t, runCommand(t, rt, "bwdrop vi 30"), "Error: ")
	assert.Equal(t, "Done\n", runCommand(t, rt, "go 100ms"))

	r := sim.Report()
	assert.Equal(t, uint64(1), r.Queues["BE"].Engine.RtsResubmits)
	assert.Equal(t, uint64(8), r.Queues["BE"].Engine.Acked)
	assert.Equal(t, uint64(1), r.Queues["VI"].Engine.BwDrops)
	assert.Equal(t, uint64(16), r.Queues["VI"].Engine.Acked)

	assert.Equal(t, "Done\n", runCommand(t, rt, "hang vo"))
	assert.True(t, sim.Mac().Hung(AcVo))
	assert.Equal(t, "Done\n", runCommand(t, rt, "submit vo 1 0 200 count 3 noagg"))
	assert.Equal(t, "3\nDone\n", runCommand(t, rt, "flush vo"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "hang vo off"))
	assert.False(t, sim.Mac().Hung(AcVo))

	var out bytes.Buffer
	assert.NotNil(t, rt.RunCommand("exit", &out))
	assert.Equal(t, "Done\n", out.String())
	assert.True(t, sim.IsStopping())
}

type mockCliHandler struct {
	expectedCmd string
	handleError error
	handleCount int
	t           *testing.T
}

func (hnd *mockCliHandler) HandleCommand(cmd string, output io.Writer) error {
	assert.Equal(hnd.t, hnd.expectedCmd, cmd)
	hnd.handleCount += 1
	return hnd.handleError
}

func (hnd *mockCliHandler) GetPrompt() string {
	return "> "
}

func TestCliStartStop(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "help",
		handleError: nil,
		t:           t,
	}

	opt := DefaultCliOptions()
	opt.HistoryFile = ""
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "# comment\nhelp\n")
	time.Sleep(time.Millisecond * 500)
	_ = w.Close()
	Cli.Stop()

	assert.Nil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)
}

func TestCliCommandNotDefined(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "xyz",
		handleError: fmt.Errorf("undefined command"),
		t:           t,
	}

	opt := DefaultCliOptions()
	opt.HistoryFile = ""
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "xyz\n") // unknown command triggers handle-error, which causes CLI exit.

	assert.NotNil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)

	Cli.Stop() // calling Stop() after CLI has already exited.
}
