// Copyright (c) 2024-2026, The OTNS Authors.
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

// Package prng provides the seeded random generators of a simulation run. With a fixed root seed,
// traffic and fault injection are reproducible.
package prng

import (
	"math/rand"
	"time"
)

type RandomSeed int64

var (
	trafficRandGenerator *rand.Rand
	lossRandGenerator    *rand.Rand
	faultRandGenerator   *rand.Rand
	unitRandGenerator    *rand.Rand
)

func init() {
	Init(1)
}

// Init initializes the prng package, either with a fixed PRNG seed (rootSeed != 0) or a 'random' time-based PRNG
// seed (if rootSeed == 0).
func Init(rootSeed int64) {
	if rootSeed == 0 {
		rootSeed = time.Now().UnixNano()
	}
	root := rand.New(rand.NewSource(rootSeed))

	trafficRandGenerator = rand.New(rand.NewSource(rootSeed + root.Int63n(1e10)))
	lossRandGenerator = rand.New(rand.NewSource(rootSeed + root.Int63n(1e10)))
	faultRandGenerator = rand.New(rand.NewSource(rootSeed + root.Int63n(1e10)))
	unitRandGenerator = rand.New(rand.NewSource(rootSeed + root.Int63n(1e10)))
}

// NewTrafficJitter returns a random offset in [0, maxJitter) us for a traffic arrival.
func NewTrafficJitter(maxJitter uint64) uint64 {
	if maxJitter == 0 {
		return 0
	}
	return uint64(trafficRandGenerator.Int63n(int64(maxJitter)))
}

// NewLossDraw returns true with probability p; used per transmitted MPDU.
func NewLossDraw(p float64) bool {
	if p <= 0 {
		return false
	}
	return lossRandGenerator.Float64() < p
}

// NewFaultTime generates a random fault start time between 0 and faultStartTimeMax.
func NewFaultTime(faultStartTimeMax uint64) uint64 {
	if faultStartTimeMax == 0 {
		return 0
	}
	return uint64(faultRandGenerator.Int63n(int64(faultStartTimeMax)))
}

// NewUnitRandom generates a new random unit [0, 1] float, which can be used as a random probability.
func NewUnitRandom() float64 {
	return unitRandGenerator.Float64()
}
