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

package monitor_grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/wlansim/txagg/logger"
)

type grpcServer struct {
	mon     *grpcMonitor
	server  *grpc.Server
	address string
}

func (gs *grpcServer) GetStats(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	ctrl := gs.mon.controller()
	if ctrl == nil {
		return nil, status.Error(codes.Unavailable, "no simulation attached")
	}
	stats, err := ctrl.CtrlGetStats()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(stats)
}

func (gs *grpcServer) Command(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	ctrl := gs.mon.controller()
	if ctrl == nil {
		return nil, status.Error(codes.Unavailable, "no simulation attached")
	}
	output, err := ctrl.Command(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lines := make([]interface{}, len(output))
	for i, line := range output {
		lines[i] = line
	}
	return structpb.NewList(lines)
}

func (gs *grpcServer) Watch(req *emptypb.Empty, stream Monitor_WatchServer) error {
	var err error
	contextDone := stream.Context().Done()

	gstream := newGrpcStream(stream)
	logger.Debugf("New gRPC watch request received.")

	hello := gs.mon.prepareStream(gstream)
	defer gs.mon.disposeStream(gstream)

	if err = stream.Send(hello); err != nil {
		logger.Debugf("Watch stream exit: %v", err)
		return err
	}

	heartbeatTicker := time.NewTicker(time.Second)
	defer heartbeatTicker.Stop()

	for err == nil {
		select {
		case ev := <-gstream.events:
			err = stream.Send(ev)
		case <-heartbeatTicker.C:
			err = stream.Send(gs.mon.heartbeatEvent())
		case <-contextDone:
			err = stream.Context().Err()
		}
	}

	logger.Debugf("Watch stream exit: %v", err)
	return err
}

func (gs *grpcServer) Run() error {
	lis, err := net.Listen("tcp", gs.address)
	if err != nil {
		return err
	}
	logger.Infof("gRPC monitor server serving on %s ...", lis.Addr())
	return gs.serve(lis)
}

func (gs *grpcServer) serve(lis net.Listener) error {
	return gs.server.Serve(lis)
}

func (gs *grpcServer) stop() {
	gs.server.Stop()
}

func newGrpcServer(mon *grpcMonitor, address string) *grpcServer {
	server := grpc.NewServer(grpc.ReadBufferSize(1024*8), grpc.WriteBufferSize(1024*64))
	gs := &grpcServer{
		mon:     mon,
		server:  server,
		address: address,
	}
	RegisterMonitorServer(server, gs)
	return gs
}
