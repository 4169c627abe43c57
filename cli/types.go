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
	"fmt"

	"github.com/pkg/errors"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/simulation"
	. "github.com/wlansim/txagg/types"
)

// parse returns the access category. The grammar only admits valid names.
func (sel AcSelector) parse() AccessCategory {
	ac, err := ParseAccessCategory(sel.Val)
	logger.PanicIfError(err)
	return ac
}

func (pf *ProtectionFlag) parse() Protection {
	if pf == nil {
		return ProtNone
	}
	switch pf.Val {
	case "rts":
		return ProtRtsCts
	case "cts":
		return ProtCtsToSelf
	default:
		return ProtNone
	}
}

// parse returns the rate described by the flag, or simulation.DefaultRate if rf is nil.
func (rf *RateFlag) parse() (phy.RateInfo, error) {
	if rf == nil {
		return simulation.DefaultRate, nil
	}
	format, err := phy.ParseFormat(rf.Format)
	if err != nil {
		return phy.RateInfo{}, err
	}
	rate := phy.RateInfo{Format: format, Mcs: rf.Mcs, Nss: 1, Bw: phy.Bw20, Gi: phy.GiLong}
	if rf.Nss != nil {
		rate.Nss = *rf.Nss
	}
	if rf.Bw != nil {
		if rate.Bw, err = phy.ParseBandwidth(fmt.Sprintf("%d", *rf.Bw)); err != nil {
			return phy.RateInfo{}, err
		}
	}
	if rf.Sgi != nil {
		rate.Gi = phy.GiShort
	}
	if !rate.Valid() {
		return phy.RateInfo{}, errors.Errorf("invalid rate %s", rate)
	}
	return rate, nil
}

func (args *FlowAddArgs) toFlow() (*simulation.Flow, error) {
	if args.IntervalUs <= 0 {
		return nil, errors.Errorf("interval must be positive")
	}
	rate, err := args.Rate.parse()
	if err != nil {
		return nil, err
	}
	f := &simulation.Flow{
		Ac:         args.Ac.parse(),
		Sta:        StaId(args.Sta),
		Length:     args.Length,
		IntervalUs: uint64(args.IntervalUs),
		Burst:      1,
		Aggregate:  args.NoAgg == nil,
		Rate:       rate,
		Protection: args.Protection.parse(),
	}
	if args.Tid != nil {
		if args.Tid.Val < 0 || args.Tid.Val > int(MaxTid) {
			return nil, errors.Errorf("invalid TID %d", args.Tid.Val)
		}
		f.Tid = Tid(args.Tid.Val)
	}
	if args.Count != nil {
		f.Count = args.Count.Val
	}
	if args.Burst != nil {
		f.Burst = args.Burst.Val
	}
	if args.Jitter != nil {
		f.JitterUs = uint64(args.Jitter.Val)
	}
	return f, nil
}
