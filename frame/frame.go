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

// Package frame encodes the 802.11 frames exchanged by the TX scheduler: QoS data MPDUs,
// Block-Ack-Requests and compressed Block-Acks. All frames carry a trailing CRC-32 FCS.
package frame

import (
	"encoding/binary"
	"hash/crc32"
	"net"

	"github.com/pkg/errors"

	. "github.com/wlansim/txagg/types"
)

const (
	FcsLen         = 4
	QosDataHdrLen  = 26
	BlockAckReqLen = 24
	BlockAckLen    = 32

	fcQosData     = 0x88 // type data, subtype QoS data
	fcBlockAckReq = 0x84 // type control, subtype BAR
	fcBlockAck    = 0x94 // type control, subtype BA

	flagToDs   = 0x01
	flagFromDs = 0x02

	barAckPolicy  = 0x0001
	barCompressed = 0x0004
	barTidShift   = 12
)

var (
	ErrTruncated   = errors.New("frame truncated")
	ErrBadFcs      = errors.New("bad FCS")
	ErrUnknownType = errors.New("unexpected frame type")
)

// SeqCtl builds a sequence control field.
func SeqCtl(sn uint16, frag uint8) uint16 {
	return sn<<4 | uint16(frag&0xf)
}

// SeqNum extracts the sequence number of a sequence control field.
func SeqNum(seqCtl uint16) uint16 {
	return seqCtl >> 4
}

func putAddr(b []byte, addr net.HardwareAddr) {
	copy(b[:6], addr)
}

func appendFcs(b []byte) []byte {
	var fcs [FcsLen]byte
	binary.LittleEndian.PutUint32(fcs[:], crc32.ChecksumIEEE(b))
	return append(b, fcs[:]...)
}

// CheckFcs verifies the trailing FCS of an encoded frame.
func CheckFcs(b []byte) error {
	if len(b) < FcsLen+10 {
		return ErrTruncated
	}
	n := len(b) - FcsLen
	if crc32.ChecksumIEEE(b[:n]) != binary.LittleEndian.Uint32(b[n:]) {
		return ErrBadFcs
	}
	return nil
}

// QosData is a QoS data MPDU. Addr1 is the receiver, Addr2 the transmitter.
type QosData struct {
	Addr1    net.HardwareAddr
	Addr2    net.HardwareAddr
	Addr3    net.HardwareAddr
	Duration uint16
	ToDs     bool
	FromDs   bool
	Sn       uint16
	Tid      Tid
	NoAck    bool
	Payload  []byte
}

// Encode returns the frame bytes including FCS.
func (f *QosData) Encode() []byte {
	b := make([]byte, QosDataHdrLen, QosDataHdrLen+len(f.Payload)+FcsLen)
	b[0] = fcQosData
	if f.ToDs {
		b[1] |= flagToDs
	}
	if f.FromDs {
		b[1] |= flagFromDs
	}
	binary.LittleEndian.PutUint16(b[2:], f.Duration)
	putAddr(b[4:], f.Addr1)
	putAddr(b[10:], f.Addr2)
	putAddr(b[16:], f.Addr3)
	binary.LittleEndian.PutUint16(b[22:], SeqCtl(f.Sn, 0))
	qos := uint16(f.Tid & 0xf)
	if f.NoAck {
		qos |= 0x20
	}
	binary.LittleEndian.PutUint16(b[24:], qos)
	b = append(b, f.Payload...)
	return appendFcs(b)
}

// PayloadLenForMpdu returns the payload size that makes a QoS data MPDU mpduLen bytes long.
func PayloadLenForMpdu(mpduLen int) int {
	n := mpduLen - QosDataHdrLen - FcsLen
	if n < 0 {
		return 0
	}
	return n
}

// BlockAckReq is a compressed basic Block-Ack-Request.
type BlockAckReq struct {
	RA       net.HardwareAddr
	TA       net.HardwareAddr
	Duration uint16
	Tid      Tid
	Ssn      uint16
}

func (f *BlockAckReq) Encode() []byte {
	b := make([]byte, BlockAckReqLen-FcsLen, BlockAckReqLen)
	b[0] = fcBlockAckReq
	binary.LittleEndian.PutUint16(b[2:], f.Duration)
	putAddr(b[4:], f.RA)
	putAddr(b[10:], f.TA)
	binary.LittleEndian.PutUint16(b[16:], barCompressed|uint16(f.Tid&0xf)<<barTidShift)
	binary.LittleEndian.PutUint16(b[18:], SeqCtl(f.Ssn, 0))
	return appendFcs(b)
}

// DecodeBlockAckReq parses an encoded BAR frame.
func DecodeBlockAckReq(b []byte) (*BlockAckReq, error) {
	if len(b) < BlockAckReqLen {
		return nil, ErrTruncated
	}
	if b[0] != fcBlockAckReq {
		return nil, errors.Wrapf(ErrUnknownType, "frame control %#02x", b[0])
	}
	if err := CheckFcs(b); err != nil {
		return nil, err
	}
	ctl := binary.LittleEndian.Uint16(b[16:])
	return &BlockAckReq{
		RA:       net.HardwareAddr(append([]byte(nil), b[4:10]...)),
		TA:       net.HardwareAddr(append([]byte(nil), b[10:16]...)),
		Duration: binary.LittleEndian.Uint16(b[2:]),
		Tid:      Tid(ctl >> barTidShift),
		Ssn:      SeqNum(binary.LittleEndian.Uint16(b[18:])),
	}, nil
}

// BlockAck is a compressed Block-Ack with a 64 bit bitmap.
type BlockAck struct {
	RA       net.HardwareAddr
	TA       net.HardwareAddr
	Duration uint16
	Tid      Tid
	Ssn      uint16
	Bitmap   uint64
}

func (f *BlockAck) Encode() []byte {
	b := make([]byte, BlockAckLen-FcsLen, BlockAckLen)
	b[0] = fcBlockAck
	binary.LittleEndian.PutUint16(b[2:], f.Duration)
	putAddr(b[4:], f.RA)
	putAddr(b[10:], f.TA)
	binary.LittleEndian.PutUint16(b[16:], barAckPolicy|barCompressed|uint16(f.Tid&0xf)<<barTidShift)
	binary.LittleEndian.PutUint16(b[18:], SeqCtl(f.Ssn, 0))
	binary.LittleEndian.PutUint64(b[20:], f.Bitmap)
	return appendFcs(b)
}
