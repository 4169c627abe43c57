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

package capture

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlansim/txagg/frame"
	"github.com/wlansim/txagg/phy"
)

var (
	staAddr = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x10}
	apAddr  = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
)

func readAll(t *testing.T, filename string) ([][]byte, layers.LinkType) {
	fd, err := os.Open(filename)
	require.Nil(t, err)
	defer fd.Close()

	r, err := pcapgo.NewReader(fd)
	require.Nil(t, err)
	var res [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		res = append(res, data)
	}
	return res, r.LinkType()
}

func TestCaptureDot11(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.pcap")
	f, err := NewFile(filename, FrameTypeDot11)
	require.Nil(t, err)

	for i := 0; i < 10; i++ {
		qos := &frame.QosData{Addr1: staAddr, Addr2: apAddr, Addr3: apAddr, Sn: uint16(i), Tid: 3,
			Payload: make([]byte, frame.PayloadLenForMpdu(120))}
		assert.Nil(t, f.AppendFrame(Frame{Timestamp: uint64(i) * 1000, Data: qos.Encode()}))
	}
	bar := &frame.BlockAckReq{RA: staAddr, TA: apAddr, Tid: 3, Ssn: 0}
	assert.Nil(t, f.AppendFrame(Frame{Timestamp: 20000, Data: bar.Encode()}))
	assert.Nil(t, f.Sync())
	assert.Nil(t, f.Close())

	frames, linkType := readAll(t, filename)
	assert.Equal(t, layers.LinkTypeIEEE802_11, linkType)
	require.Len(t, frames, 11)
	for i, data := range frames[:10] {
		p := gopacket.NewPacket(data, layers.LayerTypeDot11, gopacket.Default)
		d, ok := p.Layer(layers.LayerTypeDot11).(*layers.Dot11)
		require.True(t, ok)
		assert.Equal(t, layers.Dot11TypeDataQOSData, d.Type)
		assert.Equal(t, uint16(i), d.SequenceNumber)
	}
	p := gopacket.NewPacket(frames[10], layers.LayerTypeDot11, gopacket.Default)
	d, ok := p.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	require.True(t, ok)
	assert.Equal(t, layers.Dot11TypeCtrlBlockAckReq, d.Type)
}

func TestCaptureRadiotap(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_rt.pcap")
	f, err := NewFile(filename, FrameTypeRadiotap)
	require.Nil(t, err)

	qos := &frame.QosData{Addr1: staAddr, Addr2: apAddr, Addr3: apAddr, Sn: 77, Tid: 0,
		Payload: make([]byte, frame.PayloadLenForMpdu(300))}
	rate := phy.RateInfo{Format: phy.FormatHtMf, Mcs: 3, Nss: 2, Bw: phy.Bw40, Gi: phy.GiShort}
	assert.Nil(t, f.AppendFrame(Frame{Timestamp: 5, Data: qos.Encode(), Rate: rate}))
	legacy := phy.RateInfo{Format: phy.FormatNonHt, Mcs: 2}
	assert.Nil(t, f.AppendFrame(Frame{Timestamp: 6, Data: qos.Encode(), Rate: legacy}))
	assert.Nil(t, f.Close())

	frames, linkType := readAll(t, filename)
	assert.Equal(t, layers.LinkTypeIEEE80211Radio, linkType)
	require.Len(t, frames, 2)

	p := gopacket.NewPacket(frames[0], layers.LayerTypeRadioTap, gopacket.Default)
	rt, ok := p.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap)
	require.True(t, ok)
	assert.True(t, rt.Present.MCS())
	assert.Equal(t, uint8(11), rt.MCS.MCS)
	assert.True(t, rt.Flags.FCS())
	d, ok := p.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	require.True(t, ok)
	assert.Equal(t, uint16(77), d.SequenceNumber)
	assert.True(t, d.ChecksumValid())

	p = gopacket.NewPacket(frames[1], layers.LayerTypeRadioTap, gopacket.Default)
	rt, ok = p.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap)
	require.True(t, ok)
	assert.True(t, rt.Present.Rate())
	assert.Equal(t, layers.RadioTapRate(24), rt.Rate)
}

func TestParseFrameTypeStr(t *testing.T) {
	assert.Equal(t, FrameTypeOff, ParseFrameTypeStr("off"))
	assert.Equal(t, FrameTypeDot11, ParseFrameTypeStr("dot11"))
	assert.Equal(t, FrameTypeRadiotap, ParseFrameTypeStr("radiotap"))
	assert.Equal(t, FrameTypeUnknown, ParseFrameTypeStr("wpan"))

	_, err := NewFile(filepath.Join(t.TempDir(), "x.pcap"), FrameTypeOff)
	assert.NotNil(t, err)
}
