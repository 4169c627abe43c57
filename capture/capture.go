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

// Package capture writes transmitted 802.11 frames into pcap files.
package capture

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/wlansim/txagg/phy"
)

type FrameType int

const (
	FrameTypeOff FrameType = iota
	FrameTypeDot11
	FrameTypeRadiotap
	FrameTypeUnknown
)

const (
	FrameTypeOffStr      string = "off"
	FrameTypeDot11Str    string = "dot11"
	FrameTypeRadiotapStr string = "radiotap"
)

const snapLen = 65536

// File represents a capture file.
type File interface {
	AppendFrame(frame Frame) error
	Sync() error
	Close() error
}

// Frame is a single 802.11 frame, FCS included, as sent over the air.
type Frame struct {
	Timestamp uint64 // us
	Data      []byte
	Rate      phy.RateInfo
}

type pcapFile struct {
	fd        *os.File
	w         *pcapgo.Writer
	frameType FrameType
}

// NewFile creates a new capture file with all frames using the specified frameType.
func NewFile(filename string, frameType FrameType) (File, error) {
	var linkType layers.LinkType
	switch frameType {
	case FrameTypeDot11:
		linkType = layers.LinkTypeIEEE802_11
	case FrameTypeRadiotap:
		linkType = layers.LinkTypeIEEE80211Radio
	default:
		return nil, fmt.Errorf("invalid capture frame type: %d", frameType)
	}

	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	pf := &pcapFile{
		fd:        fd,
		w:         pcapgo.NewWriter(fd),
		frameType: frameType,
	}
	if err = pf.w.WriteFileHeader(snapLen, linkType); err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "write header of %s", filename)
	}
	return pf, nil
}

func ParseFrameTypeStr(tp string) FrameType {
	switch tp {
	case FrameTypeOffStr, "":
		return FrameTypeOff
	case FrameTypeDot11Str:
		return FrameTypeDot11
	case FrameTypeRadiotapStr:
		return FrameTypeRadiotap
	default:
		return FrameTypeUnknown
	}
}

func (pf *pcapFile) AppendFrame(frame Frame) error {
	data := frame.Data
	if pf.frameType == FrameTypeRadiotap {
		data = append(radiotapHeader(frame.Rate), frame.Data...)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(int64(frame.Timestamp/1000000), int64(frame.Timestamp%1000000)*1000).UTC(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	return pf.w.WritePacket(ci, data)
}

func (pf *pcapFile) Sync() error {
	return pf.fd.Sync()
}

func (pf *pcapFile) Close() error {
	return pf.fd.Close()
}
