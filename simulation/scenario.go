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

package simulation

import (
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/phy"
	"github.com/wlansim/txagg/station"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// YamlScenario is the scenario file format: engine tuning, simulated hardware, stations and
// traffic flows. Omitted fields keep their defaults.
type YamlScenario struct {
	Engine   YamlEngineConfig   `yaml:"engine"`
	Hardware YamlHardwareConfig `yaml:"hardware"`
	Stations []YamlStation      `yaml:"stations"`
	Flows    []YamlFlow         `yaml:"flows"`
}

type YamlEngineConfig struct {
	AggPoolSize       *int           `yaml:"agg-pool"`
	MaxDurationUs     map[string]int `yaml:"max-duration"` // per access category name
	BwStepping        *bool          `yaml:"bw-stepping"`
	MuMimo            *bool          `yaml:"mu-mimo"`
	MuUsers           *int           `yaml:"mu-users"`
	ActivityTimeoutUs *uint64        `yaml:"activity-timeout"`
	AggHoldUs         *uint64        `yaml:"agg-hold"`
	BaPollRetries     *int           `yaml:"ba-poll-retries"`
	OwnAddr           *string        `yaml:"addr"`
}

type YamlHardwareConfig struct {
	LossProb    float64                   `yaml:"loss"`
	RtsFailProb float64                   `yaml:"rts-fail"`
	Buffers     int                       `yaml:"buffers"` // 0 for unlimited
	DownloadUs  uint64                    `yaml:"download-delay"`
	BaLag       int                       `yaml:"ba-lag"` // 0 for Block-Acks pushed by the RX path
	Hang        map[string]hwsim.HangTime `yaml:"hang"`   // per access category name
}

type YamlStation struct {
	Id           StaId          `yaml:"id"`
	Addr         *string        `yaml:"addr"`
	MaxAmpdu     map[string]int `yaml:"max-ampdu"` // per PHY format name
	MinSpacing   int            `yaml:"min-spacing"`
	BlockAck     []Tid          `yaml:"ba"`
	BaWindow     *int           `yaml:"ba-window"`
	MuGroup      int            `yaml:"mu-group"`
	UserPos      int            `yaml:"user-pos"`
	BfCalibrated bool           `yaml:"bf-calibrated"`
}

type YamlRate struct {
	Format  string `yaml:"format"`
	Mcs     int    `yaml:"mcs"`
	Nss     int    `yaml:"nss"`
	Bw      string `yaml:"bw"`
	ShortGi bool   `yaml:"sgi"`
}

type YamlFlow struct {
	Ac         string    `yaml:"ac"`
	Sta        StaId     `yaml:"sta"`
	Tid        *Tid      `yaml:"tid"`
	Length     int       `yaml:"len"`
	Fragments  []int     `yaml:"fragments"`
	Count      int       `yaml:"count"` // 0 for unlimited
	IntervalUs uint64    `yaml:"interval"`
	JitterUs   uint64    `yaml:"jitter"`
	Burst      int       `yaml:"burst"`
	NoAgg      bool      `yaml:"noagg"`
	Rate       *YamlRate `yaml:"rate"`
	Protection string    `yaml:"protection"`
	StartUs    uint64    `yaml:"start"`
}

const defaultBaWindow = 64

// DefaultRate is used by flows and commands that do not give a rate.
var DefaultRate = phy.RateInfo{Format: phy.FormatVht, Mcs: 7, Nss: 1, Bw: phy.Bw80, Gi: phy.GiShort}

// DefaultScenario has two VHT stations with a Block-Ack agreement on TID 0 and no traffic.
func DefaultScenario() *YamlScenario {
	return &YamlScenario{
		Stations: []YamlStation{
			{Id: 1, BlockAck: []Tid{0}},
			{Id: 2, BlockAck: []Tid{0}},
		},
	}
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(filename string) (*YamlScenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", filename)
	}
	return sc, nil
}

func ParseScenario(data []byte) (*YamlScenario, error) {
	sc := &YamlScenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// EngineConfig applies the engine section to a copy of base.
func (sc *YamlScenario) EngineConfig(base *txl.Config) (*txl.Config, error) {
	cfg := *base
	ec := sc.Engine
	if ec.AggPoolSize != nil {
		cfg.AggPoolSize = *ec.AggPoolSize
	}
	for name, d := range ec.MaxDurationUs {
		ac, err := ParseAccessCategory(name)
		if err != nil {
			return nil, err
		}
		cfg.MaxDurationUs[ac] = d
	}
	if ec.BwStepping != nil {
		cfg.BwStepping = *ec.BwStepping
	}
	if ec.MuMimo != nil {
		cfg.MuMimo = *ec.MuMimo
	}
	if ec.MuUsers != nil {
		if *ec.MuUsers < 1 || *ec.MuUsers > txl.MaxMuUsers {
			return nil, errors.Errorf("mu-users must be 1..%d", txl.MaxMuUsers)
		}
		cfg.MuUsers = *ec.MuUsers
	}
	if ec.ActivityTimeoutUs != nil {
		cfg.ActivityTimeoutUs = *ec.ActivityTimeoutUs
	}
	if ec.AggHoldUs != nil {
		cfg.AggHoldUs = *ec.AggHoldUs
	}
	if ec.BaPollRetries != nil {
		if *ec.BaPollRetries < 1 {
			return nil, errors.Errorf("ba-poll-retries must be positive")
		}
		cfg.BaPollRetries = *ec.BaPollRetries
	}
	if ec.OwnAddr != nil {
		addr, err := parseMac48(*ec.OwnAddr)
		if err != nil {
			return nil, err
		}
		cfg.OwnAddr = addr
	}
	return &cfg, nil
}

func (sc *YamlScenario) MacConfig(ownAddr net.HardwareAddr) (hwsim.MacConfig, error) {
	hc := sc.Hardware
	cfg := hwsim.DefaultMacConfig()
	if hc.LossProb < 0 || hc.LossProb > 1 || hc.RtsFailProb < 0 || hc.RtsFailProb > 1 {
		return cfg, errors.Errorf("hardware probabilities must be within 0..1")
	}
	cfg.LossProb = hc.LossProb
	cfg.RtsFailProb = hc.RtsFailProb
	cfg.OwnAddr = ownAddr
	return cfg, nil
}

// HangTimes returns the hang configuration per access category.
func (sc *YamlScenario) HangTimes() (map[AccessCategory]hwsim.HangTime, error) {
	res := map[AccessCategory]hwsim.HangTime{}
	for name, ht := range sc.Hardware.Hang {
		ac, err := ParseAccessCategory(name)
		if err != nil {
			return nil, err
		}
		if ht.CanHang() && ht.HangInterval <= ht.HangDuration {
			return nil, errors.Errorf("hang interval of %s must exceed its duration", ac)
		}
		res[ac] = ht
	}
	return res, nil
}

// StationConfigs returns the station table entries and their Block-Ack agreements.
func (sc *YamlScenario) StationConfigs() ([]station.Config, map[StaId][]Tid, map[StaId]int, error) {
	var cfgs []station.Config
	bas := map[StaId][]Tid{}
	windows := map[StaId]int{}
	for _, ys := range sc.Stations {
		if ys.Id <= 0 {
			return nil, nil, nil, errors.Errorf("invalid station id %d", ys.Id)
		}
		cfg := station.DefaultConfig(ys.Id)
		if ys.Addr != nil {
			addr, err := parseMac48(*ys.Addr)
			if err != nil {
				return nil, nil, nil, err
			}
			cfg.Addr = addr
		}
		for name, maxLen := range ys.MaxAmpdu {
			f, err := phy.ParseFormat(name)
			if err != nil {
				return nil, nil, nil, err
			}
			cfg.MaxAmpduLen[f] = maxLen
		}
		if ys.MinSpacing < 0 || ys.MinSpacing > 7 {
			return nil, nil, nil, errors.Errorf("station %d: min-spacing must be 0..7", ys.Id)
		}
		cfg.MinSpacing = ys.MinSpacing
		cfg.MuGroup = ys.MuGroup
		cfg.UserPos = ys.UserPos
		cfg.BfCalibrated = ys.BfCalibrated
		cfgs = append(cfgs, cfg)

		for _, tid := range ys.BlockAck {
			if tid > MaxTid {
				return nil, nil, nil, errors.Errorf("station %d: invalid TID %d", ys.Id, tid)
			}
		}
		bas[ys.Id] = ys.BlockAck
		windows[ys.Id] = defaultBaWindow
		if ys.BaWindow != nil {
			windows[ys.Id] = *ys.BaWindow
		}
	}
	return cfgs, bas, windows, nil
}

// CreateFlows converts the flow section. Flow ids are assigned in file order starting at 1.
func (sc *YamlScenario) CreateFlows() ([]*Flow, error) {
	var flows []*Flow
	for i, yf := range sc.Flows {
		f, err := yf.toFlow(i + 1)
		if err != nil {
			return nil, errors.Wrapf(err, "flow %d", i+1)
		}
		flows = append(flows, f)
	}
	return flows, nil
}

func (yf *YamlFlow) toFlow(id int) (*Flow, error) {
	ac, err := ParseAccessCategory(yf.Ac)
	if err != nil {
		return nil, err
	}
	tid := Tid(0)
	if yf.Tid != nil {
		tid = *yf.Tid
	}
	if tid > MaxTid {
		return nil, errors.Errorf("invalid TID %d", tid)
	}
	rate := DefaultRate
	if yf.Rate != nil {
		if rate, err = yf.Rate.toRateInfo(); err != nil {
			return nil, err
		}
	}
	prot, err := ParseProtection(yf.Protection)
	if err != nil {
		return nil, err
	}
	f := &Flow{
		Id:         id,
		Ac:         ac,
		Sta:        yf.Sta,
		Tid:        tid,
		Length:     yf.Length,
		Fragments:  yf.Fragments,
		Count:      yf.Count,
		IntervalUs: yf.IntervalUs,
		JitterUs:   yf.JitterUs,
		Burst:      yf.Burst,
		Aggregate:  !yf.NoAgg,
		Rate:       rate,
		Protection: prot,
		StartUs:    yf.StartUs,
	}
	if err = f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (yr *YamlRate) toRateInfo() (phy.RateInfo, error) {
	var r phy.RateInfo
	var err error
	if r.Format, err = phy.ParseFormat(yr.Format); err != nil {
		return r, err
	}
	bw := yr.Bw
	if bw == "" {
		bw = "20"
	}
	if r.Bw, err = phy.ParseBandwidth(bw); err != nil {
		return r, err
	}
	r.Mcs = yr.Mcs
	r.Nss = yr.Nss
	if r.Nss == 0 {
		r.Nss = 1
	}
	if yr.ShortGi {
		r.Gi = phy.GiShort
	}
	if !r.Valid() {
		return r, errors.Errorf("invalid rate %s", r)
	}
	return r, nil
}

func parseMac48(s string) (net.HardwareAddr, error) {
	addr, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(addr) != 6 {
		return nil, errors.Errorf("not a MAC-48 address: %s", s)
	}
	return addr, nil
}
