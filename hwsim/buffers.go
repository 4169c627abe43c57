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


package hwsim

import (
	"sync"

	"github.com/wlansim/txagg/logger"
	"github.com/wlansim/txagg/txl"
	. "github.com/wlansim/txagg/types"
)

// PayloadSink receives download completions.
type PayloadSink interface {
	OnPayloadReady(ac AccessCategory, desc *txl.TxDesc)
}

type BufferStats struct {
	Allocs   uint64 `yaml:"allocs" json:"allocs"`
	NoBuffer uint64 `yaml:"no_buffer" json:"no_buffer"`
	Frees    uint64 `yaml:"frees" json:"frees"`
	Cancels  uint64 `yaml:"cancels" json:"cancels"`
	MaxInUse int    `yaml:"max_in_use" json:"max_in_use"`
}

type download struct {
	ac      AccessCategory
	desc    *txl.TxDesc
	readyAt uint64
}

// BufferPool is a simulated payload buffer allocator implementing txl.BufferAllocator. It has a
// fixed number of buffers (0 for unlimited); with a non-zero download delay every allocation is
// pending until Step reports it ready.
type BufferPool struct {
	mutex    sync.Mutex
	capacity int
	delayUs  uint64
	clock    txl.Clock

	inUse     map[*txl.TxDesc]AccessCategory
	downloads []download
	stats     BufferStats
}

var _ txl.BufferAllocator = (*BufferPool)(nil)

func NewBufferPool(capacity int, delayUs uint64, clock txl.Clock) *BufferPool {
	logger.AssertTrue(capacity >= 0, "negative buffer pool capacity")
	return &BufferPool{
		capacity: capacity,
		delayUs:  delayUs,
		clock:    clock,
		inUse:    map[*txl.TxDesc]AccessCategory{},
	}
}

func (bp *BufferPool) Alloc(ac AccessCategory, desc *txl.TxDesc) txl.AllocResult {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	_, dup := bp.inUse[desc]
	logger.AssertFalse(dup, "buffer allocated twice for %s", desc)
	if bp.capacity > 0 && len(bp.inUse) >= bp.capacity {
		bp.stats.NoBuffer++
		return txl.AllocNoBuffer
	}
	bp.inUse[desc] = ac
	bp.stats.Allocs++
	if n := len(bp.inUse); n > bp.stats.MaxInUse {
		bp.stats.MaxInUse = n
	}
	if bp.delayUs == 0 {
		return txl.AllocReady
	}
	bp.downloads = append(bp.downloads, download{ac, desc, bp.clock.Now() + bp.delayUs})
	return txl.AllocPending
}

func (bp *BufferPool) Free(ac AccessCategory, desc *txl.TxDesc) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	owner, ok := bp.inUse[desc]
	logger.AssertTrue(ok, "free of unallocated buffer %s", desc)
	logger.AssertTrue(owner == ac, "buffer of %s freed on %s, allocated on %s", desc, ac, owner)
	delete(bp.inUse, desc)
	bp.stats.Frees++
	for i, dl := range bp.downloads {
		if dl.desc == desc {
			bp.downloads = append(bp.downloads[:i], bp.downloads[i+1:]...)
			bp.stats.Cancels++
			break
		}
	}
}

// Step reports every download finished at or before now to sink, in allocation order.
func (bp *BufferPool) Step(now uint64, sink PayloadSink) {
	bp.mutex.Lock()
	var ready []download
	i := 0
	for ; i < len(bp.downloads) && bp.downloads[i].readyAt <= now; i++ {
		ready = append(ready, bp.downloads[i])
	}
	bp.downloads = bp.downloads[i:]
	bp.mutex.Unlock()

	for _, dl := range ready {
		sink.OnPayloadReady(dl.ac, dl.desc)
	}
}

// NextEvent returns the time the next download finishes, or Ever.
func (bp *BufferPool) NextEvent() uint64 {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	if len(bp.downloads) == 0 {
		return Ever
	}
	return bp.downloads[0].readyAt
}

// InUse returns the number of allocated buffers.
func (bp *BufferPool) InUse() int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return len(bp.inUse)
}

func (bp *BufferPool) Stats() BufferStats {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return bp.stats
}
