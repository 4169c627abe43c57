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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/progctx"
	"github.com/wlansim/txagg/simulation"
	. "github.com/wlansim/txagg/types"
)

const (
	Prompt = "> "
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

// outputItemsAsYaml writes a list with one flow-style item per line.
func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var node yaml.Node
	logger.PanicIfError(node.Encode(items))
	for _, item := range node.Content {
		item.Style = yaml.FlowStyle
	}
	cc.outputYaml(&node)
}

func (cc *CommandContext) outputYaml(v interface{}) {
	data, err := yaml.Marshal(v)
	logger.PanicIfError(err)
	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

// CmdRunner executes CLI commands on a simulation. It serves the interactive CLI and the
// Command call of remote monitors.
type CmdRunner struct {
	sim  *simulation.Simulation
	ctx  *progctx.ProgCtx
	help Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	cr := &CmdRunner{
		ctx:  ctx,
		sim:  sim,
		help: newHelp(),
	}
	sim.SetCmdRunner(cr)
	return cr
}

// RunCommand parses and executes one command line, writing its output and the final
// "Done" or "Error: ..." line to output. It returns the program context error once the
// program is exiting.
func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() != nil {
		return rt.ctx.Err()
	}
	cmd := Command{}
	if err := parseBytes([]byte(cmdline), &cmd); err != nil {
		if _, werr := fmt.Fprintf(output, "Error: %v\n", err); werr != nil {
			return werr
		}
		return nil
	}
	rt.execute(&cmd, output)
	return rt.ctx.Err()
}

// HandleCommand implements CliHandler.
func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

// Completer returns the tab completion of the command names.
func (rt *CmdRunner) Completer() readline.AutoCompleter {
	return rt.help.completer()
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				cc.err = errors.Wrap(err, "panic")
			} else {
				cc.err = errors.Errorf("panic: %v", r)
			}
		}
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	switch {
	case cmd.Go != nil:
		rt.executeGo(cc, cmd.Go)
	case cmd.Submit != nil:
		rt.executeSubmit(cc, cmd.Submit)
	case cmd.Flush != nil:
		rt.executeFlush(cc, cmd.Flush)
	case cmd.BwDrop != nil:
		rt.executeBwDrop(cc, cmd.BwDrop)
	case cmd.RtsFail != nil:
		rt.executeRtsFail(cc, cmd.RtsFail)
	case cmd.Hang != nil:
		rt.executeHang(cc, cmd.Hang)
	case cmd.Flow != nil:
		rt.executeFlow(cc, cmd.Flow)
	case cmd.Stats != nil:
		rt.executeStats(cc, cmd.Stats)
	case cmd.Stations != nil:
		rt.executeStations(cc, cmd.Stations)
	case cmd.Kpi != nil:
		rt.executeKpi(cc, cmd.Kpi)
	case cmd.LogLevel != nil:
		rt.executeLogLevel(cc, cmd.LogLevel)
	case cmd.Time != nil:
		rt.executeTime(cc, cmd.Time)
	case cmd.Help != nil:
		rt.executeHelp(cc, cmd.Help)
	case cmd.Exit != nil:
		rt.executeExit(cc, cmd.Exit)
	default:
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

// parseGoDuration accepts Go durations ("100ms", "2s") and plain numbers of seconds.
func parseGoDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if d, err := time.ParseDuration(s + "s"); err == nil {
		return d, nil
	}
	return 0, errors.Errorf("could not parse time duration: %s", s)
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	if cmd.Ever == nil {
		d, err := parseGoDuration(cmd.Time)
		if err == nil {
			err = rt.sim.Go(d)
		}
		cc.error(err)
		return
	}
	// go ever: run until the program exits or the simulation fails
	for rt.ctx.Err() == nil && cc.err == nil {
		cc.err = rt.sim.Go(time.Hour)
	}
}

func (rt *CmdRunner) executeSubmit(cc *CommandContext, cmd *SubmitCmd) {
	ac := cmd.Ac.parse()
	if cmd.Tid < 0 || cmd.Tid > int(MaxTid) {
		cc.errorf("invalid TID %d", cmd.Tid)
		return
	}
	count := 1
	if cmd.Count != nil {
		count = cmd.Count.Val
	}
	rate, err := cmd.Rate.parse()
	if err != nil {
		cc.error(err)
		return
	}
	paused, err := rt.sim.Submit(ac, StaId(cmd.Sta), Tid(cmd.Tid), cmd.Length, count, cmd.NoAgg == nil,
		rate, cmd.Protection.parse())
	if paused > 0 {
		cc.outputf("paused %d\n", paused)
	}
	cc.error(err)
}

func (rt *CmdRunner) executeFlush(cc *CommandContext, cmd *FlushCmd) {
	n, err := rt.sim.Flush(cmd.Ac.parse())
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", n)
}

func (rt *CmdRunner) executeBwDrop(cc *CommandContext, cmd *BwDropCmd) {
	bw, err := phy.ParseBandwidth(fmt.Sprintf("%d", cmd.Bw))
	if err != nil {
		cc.error(err)
		return
	}
	rt.sim.BwDrop(cmd.Ac.parse(), bw)
}

func (rt *CmdRunner) executeRtsFail(cc *CommandContext, cmd *RtsFailCmd) {
	n := 1
	if cmd.Count != nil {
		n = *cmd.Count
	}
	if n <= 0 {
		cc.errorf("count must be positive")
		return
	}
	rt.sim.RtsFail(cmd.Ac.parse(), n)
}

func (rt *CmdRunner) executeHang(cc *CommandContext, cmd *HangCmd) {
	rt.sim.SetHung(cmd.Ac.parse(), cmd.Off == nil)
}

type flowListItem struct {
	Id        int     `yaml:"id"`
	Ac        string  `yaml:"ac"`
	Sta       StaId   `yaml:"sta"`
	Tid       Tid     `yaml:"tid"`
	Length    int     `yaml:"len"`
	Interval  uint64  `yaml:"interval"`
	Submitted uint64  `yaml:"tx"`
	Acked     uint64  `yaml:"acked"`
	Failed    uint64  `yaml:"failed"`
	LatencyUs float64 `yaml:"latency_us"`
}

func (rt *CmdRunner) executeFlow(cc *CommandContext, cmd *FlowCmd) {
	if cmd.Add != nil {
		f, err := cmd.Add.toFlow()
		if err == nil {
			err = rt.sim.AddFlow(f)
		}
		if err != nil {
			cc.error(err)
			return
		}
		cc.outputf("%d\n", f.Id)
		return
	}
	if cmd.Stop != nil {
		cc.error(rt.sim.StopFlow(cmd.Stop.Id))
		return
	}

	items := []flowListItem{}
	for _, f := range rt.sim.Flows() {
		acked := f.Stats.Confirmed[TxStatusAcked]
		items = append(items, flowListItem{
			Id:        f.Id,
			Ac:        f.Ac.String(),
			Sta:       f.Sta,
			Tid:       f.Tid,
			Length:    f.Length,
			Interval:  f.IntervalUs,
			Submitted: f.Stats.Submitted,
			Acked:     acked,
			Failed:    f.Stats.NumConfirmed() - acked,
			LatencyUs: f.Stats.MeanLatencyUs(),
		})
	}
	if len(items) > 0 {
		cc.outputItemsAsYaml(items)
	}
}

func (rt *CmdRunner) executeStats(cc *CommandContext, cmd *StatsCmd) {
	cc.outputYaml(rt.sim.Report())
}

func (rt *CmdRunner) executeStations(cc *CommandContext, cmd *StationsCmd) {
	stations := rt.sim.Stations()
	for _, id := range stations.Ids() {
		if sta, ok := stations.Get(id); ok {
			cc.outputf("%s mu-group=%d user-pos=%d\n", sta.String(), sta.MuGroup, sta.UserPos)
		}
	}
}

func (rt *CmdRunner) executeKpi(cc *CommandContext, cmd *KpiCmd) {
	switch cmd.Operation {
	case "start":
		rt.sim.KpiStart()
	case "stop":
		rt.sim.KpiStop()
	case "":
		if cmd.Save == nil {
			if rt.sim.KpiIsRunning() {
				cc.outputf("on\n")
			} else {
				cc.outputf("off\n")
			}
		}
	}
	if cmd.Save != nil {
		cc.error(rt.sim.KpiSave(*cmd.Save))
	}
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(rt.sim.GetLogLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	rt.sim.SetLogLevel(level)
}

func (rt *CmdRunner) executeTime(cc *CommandContext, cmd *TimeCmd) {
	cc.outputf("%d\n", rt.sim.Now())
}

func (rt *CmdRunner) executeExit(cc *CommandContext, cmd *ExitCmd) {
	rt.sim.Stop()
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}
