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
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/wlansim/txagg/hwsim"
	"github.com/wlansim/txagg/simulation"
	. "github.com/wlansim/txagg/types"
)

var testYamlArray = `
[4,5,6]
`

var testYamlFile = `
engine:
    agg-pool: 32
    mu-mimo: true
hardware:
    loss: 0.05
    hang:
        vi: {duration: 2000, interval: 500000}
stations:
    - id: 1
      ba: [0, 5]
      mu-group: 3
      user-pos: 0
    - id: 2
      ba: [0]
      mu-group: 3
      user-pos: 1
flows:
    - {ac: vi, sta: 1, tid: 5, len: 1200, interval: 1000, burst: 4}
    - {ac: be, sta: 2, len: 1500, interval: 500, rate: {format: vht, mcs: 9, nss: 2, bw: 80, sgi: true}}
`

func TestYamlArrayUnmarshall(t *testing.T) {
	myArray := [3]int{0, 0, 0}
	err := yaml.Unmarshal([]byte(testYamlArray), &myArray)
	assert.Nil(t, err)
	assert.Equal(t, 4, myArray[0])
	assert.Equal(t, 5, myArray[1])
	assert.Equal(t, 6, myArray[2])
}

func TestYamlScenarioUnmarshall(t *testing.T) {
	sc := simulation.YamlScenario{}
	err := yaml.Unmarshal([]byte(testYamlFile), &sc)
	assert.Nil(t, err)
	assert.Equal(t, 32, *sc.Engine.AggPoolSize)
	assert.True(t, *sc.Engine.MuMimo)
	assert.Equal(t, 2, len(sc.Stations))
	assert.Equal(t, []Tid{0, 5}, sc.Stations[0].BlockAck)
	assert.Equal(t, 2, len(sc.Flows))
	assert.Equal(t, 9, sc.Flows[1].Rate.Mcs)
	assert.Equal(t, hwsim.HangTime{HangDuration: 2000, HangInterval: 500000}, sc.Hardware.Hang["vi"])
}
