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

// Package txsim_main runs a txsim simulation: it parses the command line, loads the scenario,
// starts the monitors and runs the CLI until the simulation is stopped.
package txsim_main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/capture"
	"github.com/wlansim/txagg/cli"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/monitor"
	monitorGrpc "github.com/wlansim/txagg/monitor/grpc"
	monitorMulti "github.com/wlansim/txagg/monitor/multi"
	monitorStatslog "github.com/wlansim/txagg/monitor/statslog"
	"github.com/wlansim/txagg/progctx"
	"github.com/wlansim/txagg/simulation"
)

const (
	DefaultListenAddr = "localhost:9990"
)

type MainArgs struct {
	Scenario    string
	AutoGo      bool
	ReadOnly    bool
	LogLevel    string
	OutputDir   string
	Id          int
	Seed        int64
	Capture     string
	QueueLogs   bool
	FlushOnHang bool
	StatsLog    bool
	ListenAddr  string
	NoMonitor   bool
}

var (
	args MainArgs
)

func parseArgs() {
	flag.StringVar(&args.Scenario, "scenario", "", "specify the YAML scenario file (stations, flows, hardware). By default two stations and no flows.")
	flag.BoolVar(&args.AutoGo, "autogo", false, "auto go (runs the simulation as fast as possible, without issuing 'go' commands.)")
	flag.BoolVar(&args.ReadOnly, "readonly", false, "readonly simulation can not be manipulated by remote controllers")
	flag.StringVar(&args.LogLevel, "log", "warn", "set logging level: trace, debug, info, note, warn, error, off.")
	flag.StringVar(&args.OutputDir, "output", simulation.DefaultOutputDir, "specify the output directory for capture, KPI and log files")
	flag.IntVar(&args.Id, "id", 0, "simulation id, used as prefix of the output files")
	flag.Int64Var(&args.Seed, "seed", simulation.DefaultSeed, "random seed for traffic jitter and fault injection; 0 for a time based seed")
	flag.StringVar(&args.Capture, "capture", capture.FrameTypeOffStr, "capture transmitted frames to pcap: off, dot11, radiotap")
	flag.BoolVar(&args.QueueLogs, "queue-logs", false, "write a log file per access category queue")
	flag.BoolVar(&args.FlushOnHang, "flush-on-hang", true, "flush a hung queue with status aborted")
	flag.BoolVar(&args.StatsLog, "stats-log", true, "write a CSV log of the per-queue counters")
	flag.StringVar(&args.ListenAddr, "listen", DefaultListenAddr, "specify the gRPC monitor listen address and port")
	flag.BoolVar(&args.NoMonitor, "no-monitor", false, "do not start the gRPC monitor server")

	flag.Parse()
}

func Main(ctx *progctx.ProgCtx, cliOptions *cli.CliOptions) {
	parseArgs()
	level, err := logger.ParseLevelString(args.LogLevel)
	logger.FatalIfError(err)
	logger.SetLevel(level)

	// run console in the main goroutine
	ctx.Defer(func() {
		_ = os.Stdin.Close()
	})

	handleSignals(ctx)

	sim := createSimulation(ctx, level)
	logger.SetTimeSource(sim)
	defer logger.SetTimeSource(nil)
	rt := cli.NewCmdRunner(ctx, sim)

	mon := createMonitor(sim)
	sim.SetMonitor(mon)
	mon.Init()
	ctx.Go("monitor", mon.Run)

	if cliOptions == nil {
		cliOptions = cli.DefaultCliOptions()
	}
	if cliOptions.Completer == nil {
		cliOptions.Completer = rt.Completer()
	}
	go func() {
		err := cli.Cli.Run(rt, cliOptions)
		ctx.Cancel(errors.Wrapf(err, "console exit"))
	}()

	if args.AutoGo {
		ctx.Go("autogo", func() {
			autoGo(ctx, sim)
		})
	}

	<-ctx.Done()
	logger.Debugf("waiting for txsim to stop gracefully ...")
	sim.Stop()
	mon.Stop()
	ctx.Wait()
	logger.Sync()
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	signal.Ignore(syscall.SIGALRM)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer logger.Debugf("handleSignals exit.")
		defer ctx.WaitDone("handleSignals")

		for {
			select {
			case sig := <-c:
				logger.Infof("signal received: %v", sig)
				ctx.Cancel(nil)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func autoGo(ctx *progctx.ProgCtx, sim *simulation.Simulation) {
	for {
		err := sim.Go(time.Second)
		if ctx.Err() != nil || err != nil { // exit when context is Done.
			return
		}
	}
}

func createMonitor(sim *simulation.Simulation) monitor.Monitor {
	mm := monitorMulti.NewMultiMonitor()
	if !args.NoMonitor {
		mm.AddMonitor(monitorGrpc.NewGrpcMonitor(args.ListenAddr))
	}
	if args.StatsLog {
		mm.AddMonitor(monitorStatslog.NewStatslogMonitor(sim.GetConfig().OutputDir, sim.GetConfig().Id))
	}
	return mm
}

func createSimulation(ctx *progctx.ProgCtx, level logger.Level) *simulation.Simulation {
	simcfg := simulation.DefaultConfig()
	simcfg.Id = args.Id
	simcfg.OutputDir = args.OutputDir
	simcfg.Seed = args.Seed
	simcfg.LogLevel = level
	simcfg.QueueLogs = args.QueueLogs
	simcfg.FlushOnHang = args.FlushOnHang
	simcfg.ReadOnly = args.ReadOnly
	simcfg.AutoGo = args.AutoGo
	simcfg.Capture = capture.ParseFrameTypeStr(args.Capture)
	if simcfg.Capture == capture.FrameTypeUnknown {
		logger.Fatalf("invalid capture type: %s", args.Capture)
	}

	var sc *simulation.YamlScenario
	if len(args.Scenario) > 0 {
		var err error
		sc, err = simulation.LoadScenario(args.Scenario)
		logger.FatalIfError(err)
		logger.Infof("scenario %s: %d stations, %d flows", args.Scenario, len(sc.Stations), len(sc.Flows))
	}

	sim, err := simulation.NewSimulation(ctx, simcfg, sc)
	logger.FatalIfError(err)
	fmt.Printf("txsim %d: output in %s\n", simcfg.Id, simcfg.OutputDir)
	return sim
}
