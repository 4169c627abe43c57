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

// Package monitor_grpc serves the txagg.Monitor gRPC service: KPI queries, CLI commands and a stream
// of frame-exchange and queue-hang events.
package monitor_grpc

import (
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/logger"
	. "github.com/wlansim/txagg/monitor"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// minimum simulated time between two advanceTime events on the stream
const advanceTimeEventIntervalUs = 100000

type grpcMonitor struct {
	sync.Mutex

	ctrl        SimulationController
	server      *grpcServer
	streams     map[*grpcStream]struct{}
	curTime     uint64
	lastAdvance uint64
	confirmed   [NumAccessCategories][NumTxStatus]uint64
	hangs       [NumAccessCategories]uint64
}

// NewGrpcMonitor creates a Monitor that serves the txagg.Monitor service on address once Run is called.
func NewGrpcMonitor(address string) Monitor {
	return newGrpcMonitor(address)
}

func newGrpcMonitor(address string) *grpcMonitor {
	gm := &grpcMonitor{
		streams: map[*grpcStream]struct{}{},
	}
	gm.server = newGrpcServer(gm, address)
	return gm
}

func (gm *grpcMonitor) Init() {
}

func (gm *grpcMonitor) Run() {
	err := gm.server.Run()
	if err != nil {
		logger.Warnf("gRPC server quit: %v", err)
	}
}

func (gm *grpcMonitor) Stop() {
	gm.server.stop()
}

func (gm *grpcMonitor) SetController(ctrl SimulationController) {
	gm.Lock()
	defer gm.Unlock()
	gm.ctrl = ctrl
}

func (gm *grpcMonitor) controller() SimulationController {
	gm.Lock()
	defer gm.Unlock()
	return gm.ctrl
}

func (gm *grpcMonitor) AdvanceTime(ts uint64) {
	gm.Lock()
	defer gm.Unlock()

	gm.curTime = ts
	if ts-gm.lastAdvance < advanceTimeEventIntervalUs {
		return
	}
	gm.lastAdvance = ts
	gm.publish(gm.newEvent("advanceTime", nil))
}

func (gm *grpcMonitor) OnFrameExchange(ex hwsim.Exchange) {
	gm.Lock()
	defer gm.Unlock()

	if len(gm.streams) == 0 {
		return
	}
	gm.publish(gm.newEvent("exchange", map[string]interface{}{
		"ac":        ex.Ac.String(),
		"ampdu":     ex.Ampdu,
		"users":     ex.Users,
		"mpdus":     ex.Mpdus,
		"lost":      ex.Lost,
		"length":    ex.Length,
		"rate":      ex.Rate.String(),
		"startUs":   ex.StartUs,
		"airtimeUs": ex.AirtimeUs,
		"outcome":   ex.Outcome.String(),
	}))
}

func (gm *grpcMonitor) OnConfirm(ac AccessCategory, desc *txl.TxDesc) {
	gm.Lock()
	defer gm.Unlock()

	gm.confirmed[ac][desc.Status]++
}

func (gm *grpcMonitor) OnQueueHang(ac AccessCategory, err error) {
	gm.Lock()
	defer gm.Unlock()

	gm.hangs[ac]++
	gm.publish(gm.newEvent("queueHang", map[string]interface{}{
		"ac":    ac.String(),
		"error": err.Error(),
	}))
}

func (gm *grpcMonitor) publish(ev *structpb.Struct) {
	for stream := range gm.streams {
		if !stream.post(ev) {
			logger.Debugf("gRPC watch stream queue full, %d events dropped", stream.dropped)
		}
	}
}

// newEvent must be called with the lock held.
func (gm *grpcMonitor) newEvent(kind string, fields map[string]interface{}) *structpb.Struct {
	m := map[string]interface{}{
		"type":   kind,
		"timeUs": gm.curTime,
	}
	for k, v := range fields {
		m[k] = v
	}
	ev, err := structpb.NewStruct(m)
	logger.PanicIfError(err)
	return ev
}

func (gm *grpcMonitor) heartbeatEvent() *structpb.Struct {
	gm.Lock()
	defer gm.Unlock()

	confirmed := map[string]interface{}{}
	hangs := map[string]interface{}{}
	for ac := AccessCategory(0); ac < NumAccessCategories; ac++ {
		byStatus := map[string]interface{}{}
		for st := TxStatus(0); st < NumTxStatus; st++ {
			if n := gm.confirmed[ac][st]; n > 0 {
				byStatus[st.String()] = n
			}
		}
		confirmed[ac.String()] = byStatus
		hangs[ac.String()] = gm.hangs[ac]
	}
	return gm.newEvent("heartbeat", map[string]interface{}{
		"confirmed": confirmed,
		"hangs":     hangs,
	})
}

// prepareStream registers a new watch stream and returns the first event to send on it.
func (gm *grpcMonitor) prepareStream(stream *grpcStream) *structpb.Struct {
	gm.Lock()
	defer gm.Unlock()

	gm.streams[stream] = struct{}{}
	return gm.newEvent("hello", map[string]interface{}{
		"streams": len(gm.streams),
	})
}

func (gm *grpcMonitor) disposeStream(stream *grpcStream) {
	gm.Lock()
	defer gm.Unlock()

	delete(gm.streams, stream)
}
