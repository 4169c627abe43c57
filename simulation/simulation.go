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

// Package simulation drives a TX aggregation engine with simulated hardware in discrete simulated
// time. Traffic comes from the flows of a YAML scenario and from CLI commands.
package simulation

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/capture"
	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/monitor"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/prng"
	"github.com/wlansim/txagg/progctx"
	"github.com/wlansim/txagg/station"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

type seqKey struct {
	sta StaId
	tid Tid
}

type Simulation struct {
	ctx     *progctx.ProgCtx
	cfg     *Config
	mutex   sync.Mutex // serializes event processing and commands
	curTime uint64     // atomic
	stopped bool

	engine    *txl.Engine
	engineCfg *txl.Config
	stations  *station.Table
	mac       *hwsim.Mac
	buffers   *hwsim.BufferPool
	rx        *hwsim.Rx
	faults    map[AccessCategory]*hwsim.FaultCtrl
	faultTs   map[AccessCategory]uint64
	flows     map[int]*Flow
	alarms    *alarmMgr
	seq       map[seqKey]uint16
	capture   capture.File
	monitor   monitor.Monitor
	cmdRunner CmdRunner
	kpiMgr    *KpiManager

	cliStats FlowStats // descriptors submitted by command
}

func NewSimulation(ctx *progctx.ProgCtx, cfg *Config, sc *YamlScenario) (*Simulation, error) {
	if sc == nil {
		sc = DefaultScenario()
	}
	s := &Simulation{
		ctx:     ctx,
		cfg:     cfg,
		faults:  map[AccessCategory]*hwsim.FaultCtrl{},
		faultTs: map[AccessCategory]uint64{},
		flows:   map[int]*Flow{},
		alarms:  newAlarmMgr(),
		seq:     map[seqKey]uint16{},
		monitor: monitor.NewNopMonitor(),
		kpiMgr:  NewKpiManager(),
	}
	logger.SetLevel(cfg.LogLevel)
	logger.SetTimeSource(s)
	prng.Init(cfg.Seed)

	if err := createOutputDir(cfg.OutputDir); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s failed", cfg.OutputDir)
	}
	if err := s.cleanOutputDir(); err != nil {
		return nil, errors.Wrapf(err, "cleaning output directory %s failed", cfg.OutputDir)
	}

	engineCfg, err := sc.EngineConfig(txl.DefaultConfig())
	if err != nil {
		return nil, err
	}
	engineCfg.QueueLog.OutputDir = cfg.OutputDir
	engineCfg.QueueLog.LogFile = cfg.QueueLogs
	engineCfg.QueueLog.DisplayLevel, engineCfg.QueueLog.FileLevel = queueLogLevels(cfg.LogLevel)
	s.engineCfg = engineCfg

	if err = s.createStations(sc); err != nil {
		return nil, err
	}
	if err = s.createHardware(sc); err != nil {
		return nil, err
	}

	flows, err := sc.CreateFlows()
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		if _, ok := s.stations.Get(f.Sta); !ok {
			return nil, errors.Wrapf(station.ErrUnknownStation, "%s", f)
		}
		s.addFlow(f)
	}

	if cfg.Capture != capture.FrameTypeOff {
		fn := s.getCaptureFileName()
		if s.capture, err = capture.NewFile(fn, cfg.Capture); err != nil {
			return nil, errors.Wrapf(err, "creating capture file %s failed", fn)
		}
		s.mac.SetCapture(s.capture)
	}

	s.kpiMgr.Init(s)
	return s, nil
}

func (s *Simulation) createStations(sc *YamlScenario) error {
	s.stations = station.NewTable()
	cfgs, bas, windows, err := sc.StationConfigs()
	if err != nil {
		return err
	}
	for _, sta := range cfgs {
		if err = s.stations.Add(sta); err != nil {
			return errors.Wrapf(err, "station %d", sta.Id)
		}
		for _, tid := range bas[sta.Id] {
			if err = s.stations.AddBa(sta.Id, tid, windows[sta.Id]); err != nil {
				return errors.Wrapf(err, "station %d", sta.Id)
			}
		}
	}
	return nil
}

func (s *Simulation) createHardware(sc *YamlScenario) error {
	macCfg, err := sc.MacConfig(s.engineCfg.OwnAddr)
	if err != nil {
		return err
	}
	hangTimes, err := sc.HangTimes()
	if err != nil {
		return err
	}

	s.rx = hwsim.NewRx(sc.Hardware.BaLag)
	s.mac = hwsim.NewMac(macCfg, s, s.stations)
	s.buffers = hwsim.NewBufferPool(sc.Hardware.Buffers, sc.Hardware.DownloadUs, s)
	s.engine = txl.New(s.engineCfg, txl.Collaborators{
		Buffers:   s.buffers,
		Mac:       s.mac,
		Stations:  s.stations,
		BlockAcks: s.rx,
		Handler:   s,
		Clock:     s,
	})
	s.mac.Attach(s.engine.Arena(), s.engine, s.rx)
	if sc.Hardware.BaLag == 0 {
		s.rx.SetSink(s.engine)
	}
	s.mac.SetExchangeHook(s.onFrameExchange)

	for ac, ht := range hangTimes {
		if ht.CanHang() {
			s.faults[ac] = hwsim.NewFaultCtrl(s.mac, ac, ht, 0)
		}
	}
	s.processFaults(0)
	return nil
}

func (s *Simulation) addFlow(f *Flow) {
	logger.AssertNil(s.flows[f.Id])
	s.flows[f.Id] = f
	s.alarms.AddFlow(f, f.StartUs)
	logger.Debugf("added %s, %d bytes every %d us", f, f.Length, f.IntervalUs)
}

// Now returns the simulation time in us. It implements txl.Clock.
func (s *Simulation) Now() uint64 {
	return atomic.LoadUint64(&s.curTime)
}

// CurTime returns the simulation time in us. It implements logger.TimeSource.
func (s *Simulation) CurTime() uint64 {
	return s.Now()
}

// Go advances the simulation by duration, processing all events on the way. The lock is released
// between timestamps so that commands from other goroutines are interleaved.
func (s *Simulation) Go(duration time.Duration) error {
	s.mutex.Lock()
	end := Ever
	if us := uint64(duration / time.Microsecond); us < Ever-s.Now() {
		end = s.Now() + us
	}
	s.mutex.Unlock()

	for {
		if s.ctx.Err() != nil {
			return CommandInterruptedError
		}
		s.mutex.Lock()
		if s.stopped {
			s.mutex.Unlock()
			return CommandInterruptedError
		}
		done := s.step(end)
		s.mutex.Unlock()
		if done {
			return nil
		}
	}
}

// step processes the events of the next timestamp up to end. It returns true when no event
// remains before end; the simulation time is then end.
func (s *Simulation) step(end uint64) bool {
	next := s.nextEventTime()
	if next > end {
		if end != Ever {
			s.advanceTime(end)
		}
		return true
	}
	s.advanceTime(next)
	s.processEvents(next)
	return false
}

func (s *Simulation) nextEventTime() uint64 {
	next := s.alarms.NextTimestamp()
	if ts := s.buffers.NextEvent(); ts < next {
		next = ts
	}
	if ts := s.mac.NextEvent(); ts < next {
		next = ts
	}
	if ts := s.engine.NextDeadline(); ts < next {
		next = ts
	}
	for _, ts := range s.faultTs {
		if ts < next {
			next = ts
		}
	}
	return next
}

func (s *Simulation) advanceTime(ts uint64) {
	logger.AssertTrue(ts >= s.Now())
	atomic.StoreUint64(&s.curTime, ts)
	s.monitor.AdvanceTime(ts)
}

func (s *Simulation) processEvents(now uint64) {
	s.processFaults(now)
	s.processFlows(now)
	s.buffers.Step(now, s.engine)
	s.mac.Step(now)
	s.engine.OnTimer(now)
	s.engine.ProcessConfirmations()
	s.engine.DisplayPendingLogEntries(now)
}

func (s *Simulation) processFaults(now uint64) {
	for ac, fc := range s.faults {
		ts, _ := fc.OnTimeAdvanced(now)
		s.faultTs[ac] = ts
	}
}

func (s *Simulation) processFlows(now uint64) {
	for f := s.alarms.Due(now); f != nil; f = s.alarms.Due(now) {
		s.sendBurst(f)
		if next := f.nextTimestamp(now); next != Ever {
			s.alarms.SetTimestamp(f.Id, next)
		} else {
			s.alarms.DeleteFlow(f.Id)
		}
	}
}

func (s *Simulation) sendBurst(f *Flow) {
	for i := f.burstSize(); i > 0; i-- {
		desc := f.newDesc(s.nextSn(f.Sta, f.Tid))
		paused, err := s.engine.Submit(f.Ac, desc)
		if err != nil {
			f.Stats.Rejected++
			logger.Warnf("%s: submit failed: %v", f, err)
			continue
		}
		f.Stats.Submitted++
		if paused {
			f.Stats.Paused++
		}
	}
}

func (s *Simulation) nextSn(sta StaId, tid Tid) uint16 {
	key := seqKey{sta, tid}
	sn := s.seq[key]
	s.seq[key] = (sn + 1) & 0xfff
	return sn
}

func (s *Simulation) onFrameExchange(ex hwsim.Exchange) {
	logger.Tracef("%s exchange done: %d MPDUs (%d lost), %d us, %s", ex.Ac, ex.Mpdus, ex.Lost, ex.AirtimeUs, ex.Outcome)
	s.monitor.OnFrameExchange(ex)
}

// TxConfirm implements txl.CallbackHandler.
func (s *Simulation) TxConfirm(ac AccessCategory, desc *txl.TxDesc) {
	if f, ok := desc.Cookie.(*Flow); ok {
		f.onConfirm(desc)
	} else {
		s.cliStats.Confirmed[desc.Status]++
		s.cliStats.LatencySumUs += desc.ConfirmUs - desc.SubmitUs
	}
	s.monitor.OnConfirm(ac, desc)
}

// OnQueueHang implements txl.CallbackHandler.
func (s *Simulation) OnQueueHang(ac AccessCategory, err error) {
	logger.Warnf("%v", err)
	s.monitor.OnQueueHang(ac, err)
	if s.cfg.FlushOnHang {
		if ferr := s.engine.Flush(ac, TxStatusAborted); ferr != nil {
			logger.Errorf("flush of hung queue %s failed: %v", ac, ferr)
		} else {
			logger.Notef("hung queue %s flushed", ac)
		}
	}
}

// Submit queues count MPDUs of length bytes to (sta, tid). It returns the number of paused
// submissions.
func (s *Simulation) Submit(ac AccessCategory, sta StaId, tid Tid, length int, count int, aggregate bool,
	rate phy.RateInfo, prot Protection) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.stations.Get(sta); !ok {
		return 0, errors.Wrapf(station.ErrUnknownStation, "station %d", sta)
	}
	if length <= 0 || length > maxMpduLength {
		return 0, errors.Errorf("MPDU length must be 1..%d", maxMpduLength)
	}
	if !rate.Valid() {
		return 0, errors.Errorf("invalid rate %s", rate)
	}
	nPaused := 0
	for i := 0; i < count; i++ {
		desc := &txl.TxDesc{
			Sta:        sta,
			Tid:        tid,
			Aggregate:  aggregate && ac != AcBcn,
			Rate:       rate,
			Protection: prot,
			Length:     length,
			Sn:         s.nextSn(sta, tid),
		}
		paused, err := s.engine.Submit(ac, desc)
		if err != nil {
			return nPaused, err
		}
		s.cliStats.Submitted++
		if paused {
			nPaused++
			s.cliStats.Paused++
		}
	}
	return nPaused, nil
}

// Flush aborts everything outstanding on ac and returns the number of confirmations delivered.
func (s *Simulation) Flush(ac AccessCategory) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.engine.Flush(ac, TxStatusAborted); err != nil {
		return 0, err
	}
	return s.engine.ProcessConfirmations(), nil
}

// BwDrop makes the hardware drop the bandwidth of the next A-MPDU on ac to bw.
func (s *Simulation) BwDrop(ac AccessCategory, bw phy.Bandwidth) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mac.InjectBwDrop(ac, bw)
}

// RtsFail makes the next n RTS/CTS exchanges on ac fail.
func (s *Simulation) RtsFail(ac AccessCategory, n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mac.InjectRtsFailures(ac, n)
}

// SetHung stops or resumes completions of the hardware queue ac.
func (s *Simulation) SetHung(ac AccessCategory, hung bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mac.SetHung(ac, hung)
}

// AddFlow adds a traffic flow starting at the current time.
func (s *Simulation) AddFlow(f *Flow) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := f.validate(); err != nil {
		return err
	}
	if _, ok := s.stations.Get(f.Sta); !ok {
		return errors.Wrapf(station.ErrUnknownStation, "station %d", f.Sta)
	}
	f.Id = 1
	for s.flows[f.Id] != nil {
		f.Id++
	}
	if f.StartUs < s.Now() {
		f.StartUs = s.Now()
	}
	s.addFlow(f)
	return nil
}

// StopFlow stops the traffic of a flow. Its statistics are kept.
func (s *Simulation) StopFlow(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.flows[id] == nil {
		return errors.Errorf("flow not found: %d", id)
	}
	if s.alarms.Scheduled(id) {
		s.alarms.DeleteFlow(id)
	}
	return nil
}

// Flows returns the flows sorted by id.
func (s *Simulation) Flows() []*Flow {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sortedFlows()
}

func (s *Simulation) sortedFlows() []*Flow {
	flows := make([]*Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Id < flows[j].Id
	})
	return flows
}

func (s *Simulation) Stations() *station.Table {
	return s.stations
}

func (s *Simulation) Engine() *txl.Engine {
	return s.engine
}

func (s *Simulation) Mac() *hwsim.Mac {
	return s.mac
}

func (s *Simulation) GetConfig() *Config {
	return s.cfg
}

func (s *Simulation) AutoGo() bool {
	return s.cfg.AutoGo
}

// KpiStart starts a new KPI measurement period.
func (s *Simulation) KpiStart() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.kpiMgr.Start()
}

// KpiStop ends the KPI measurement period and saves the default KPI file.
func (s *Simulation) KpiStop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.kpiMgr.Stop()
}

func (s *Simulation) KpiIsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.kpiMgr.IsRunning()
}

// KpiSave writes the KPI of the current or last period to fn, or to the default file if fn is empty.
func (s *Simulation) KpiSave(fn string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if fn == "" {
		fn = s.kpiMgr.getDefaultSaveFileName()
	}
	return s.kpiMgr.SaveFile(fn)
}

// Kpi returns the KPI of the current or last measurement period.
func (s *Simulation) Kpi() Kpi {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.kpiMgr.Data()
}

func (s *Simulation) IsStopping() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stopped
}

func (s *Simulation) SetMonitor(mon monitor.Monitor) {
	logger.AssertNotNil(mon)
	s.mutex.Lock()
	s.monitor = mon
	s.mutex.Unlock()
	mon.SetController(NewSimulationController(s))
}

func (s *Simulation) SetCmdRunner(cmdRunner CmdRunner) {
	logger.AssertTrue(s.cmdRunner == nil)
	s.cmdRunner = cmdRunner
}

func (s *Simulation) SetLogLevel(level logger.Level) {
	s.cfg.LogLevel = level
	logger.SetLevel(level)
	s.engine.SetQueueLogLevels(queueLogLevels(level))
}

// queueLogLevels returns the display and file levels of the queue loggers for the global level.
// Queue log files get at least debug entries.
func queueLogLevels(level logger.Level) (logger.Level, logger.Level) {
	file := logger.DebugLevel
	if level > file {
		file = level
	}
	return level, file
}

func (s *Simulation) GetLogLevel() logger.Level {
	return s.cfg.LogLevel
}

// Stop aborts everything outstanding, saves the KPI if running and cancels the program context.
func (s *Simulation) Stop() {
	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		return
	}
	logger.Infof("stopping simulation ...")
	s.stopped = true
	s.kpiMgr.Stop()

	s.engine.Shutdown()
	s.engine.ProcessConfirmations()
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			logger.Errorf("closing capture file failed: %v", err)
		}
		s.capture = nil
	}
	s.mutex.Unlock()

	s.ctx.Cancel("simulation-stop")
	logger.Debugf("simulation stopped.")
}

func (s *Simulation) cleanOutputDir() error {
	return removeAllFiles(
		fmt.Sprintf("%s/%d_*.pcap", s.cfg.OutputDir, s.cfg.Id),
		fmt.Sprintf("%s/%d_kpi.json", s.cfg.OutputDir, s.cfg.Id),
		fmt.Sprintf("%s/txq_*.log", s.cfg.OutputDir))
}

func (s *Simulation) getCaptureFileName() string {
	return fmt.Sprintf("%s/%d_wlan.pcap", s.cfg.OutputDir, s.cfg.Id)
}
