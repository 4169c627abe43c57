// Copyright (c) 2026, The OTNS Authors.
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
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

type fakeController struct{}

func (c fakeController) Command(cmd string) ([]string, error) {
	if cmd == "bad" {
		return nil, errors.New("unknown command")
	}
	return []string{"ran " + cmd, "Done"}, nil
}

func (c fakeController) CtrlGetStats() (map[string]interface{}, error) {
	return map[string]interface{}{
		"BE": map[string]interface{}{"acked": 3, "aggregates": 1},
	}, nil
}

func startMonitor(t *testing.T) (*grpcMonitor, *MonitorClient) {
	gm := newGrpcMonitor("")
	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = gm.server.serve(lis)
	}()
	t.Cleanup(gm.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return gm, NewMonitorClient(conn)
}

// recvEvent returns the next event on the stream that is not a heartbeat.
func recvEvent(t *testing.T, stream Monitor_WatchClient) map[string]interface{} {
	for {
		ev, err := stream.Recv()
		require.NoError(t, err)
		m := ev.AsMap()
		if m["type"] != "heartbeat" {
			return m
		}
	}
}

func TestGrpcMonitor_NoController(t *testing.T) {
	_, client := startMonitor(t)

	_, err := client.GetStats(context.Background())
	assert.Equal(t, codes.Unavailable, status.Code(err))
	_, err = client.Command(context.Background(), "stats")
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGrpcMonitor_GetStatsAndCommand(t *testing.T) {
	gm, client := startMonitor(t)
	gm.SetController(fakeController{})

	stats, err := client.GetStats(context.Background())
	require.NoError(t, err)
	be := stats["BE"].(map[string]interface{})
	assert.Equal(t, 3.0, be["acked"])
	assert.Equal(t, 1.0, be["aggregates"])

	out, err := client.Command(context.Background(), "flush be")
	require.NoError(t, err)
	assert.Equal(t, []string{"ran flush be", "Done"}, out)

	_, err = client.Command(context.Background(), "bad")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpcMonitor_Watch(t *testing.T) {
	gm, client := startMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Watch(ctx)
	require.NoError(t, err)
	hello := recvEvent(t, stream)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, 1.0, hello["streams"])

	gm.AdvanceTime(50000) // too close to the previous advanceTime event
	gm.AdvanceTime(200000)
	gm.OnFrameExchange(hwsim.Exchange{
		Ac:        AcVi,
		Ampdu:     true,
		Users:     1,
		Mpdus:     8,
		Lost:      2,
		Length:    12000,
		Rate:      phy.RateInfo{Format: phy.FormatVht, Mcs: 7, Nss: 1, Bw: phy.Bw40},
		StartUs:   199000,
		AirtimeUs: 600,
	})
	gm.OnConfirm(AcVi, &txl.TxDesc{Status: TxStatusAcked})
	gm.OnQueueHang(AcVi, txl.ErrQueueHang)

	ev := recvEvent(t, stream)
	assert.Equal(t, "advanceTime", ev["type"])
	assert.Equal(t, 200000.0, ev["timeUs"])

	ev = recvEvent(t, stream)
	assert.Equal(t, "exchange", ev["type"])
	assert.Equal(t, "VI", ev["ac"])
	assert.Equal(t, true, ev["ampdu"])
	assert.Equal(t, 8.0, ev["mpdus"])
	assert.Equal(t, 2.0, ev["lost"])
	assert.Equal(t, "ok", ev["outcome"])

	ev = recvEvent(t, stream)
	assert.Equal(t, "queueHang", ev["type"])
	assert.Equal(t, "VI", ev["ac"])

	hb := gm.heartbeatEvent().AsMap()
	confirmed := hb["confirmed"].(map[string]interface{})
	assert.Equal(t, 1.0, confirmed["VI"].(map[string]interface{})["acked"])
	assert.Equal(t, 1.0, hb["hangs"].(map[string]interface{})["VI"])
}

func TestGrpcStream_DropsWhenFull(t *testing.T) {
	gst := newGrpcStream(nil)
	ev, err := structpb.NewStruct(map[string]interface{}{"type": "x"})
	require.NoError(t, err)
	for i := 0; i < streamQueueSize; i++ {
		assert.True(t, gst.post(ev))
	}
	assert.False(t, gst.post(ev))
	assert.Equal(t, uint64(1), gst.dropped)
}
