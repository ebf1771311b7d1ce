//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cascade

import (
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/cpu"
)

// The collector reports on itself by feeding its own counters and some
// rudimentary runtime stats into the fine level as plain samples, so
// they cascade like any other metric.

func runtimeMemory() uint64 {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return mem.Alloc
}

var runtimeCpuPercent = func() float64 {
	ps, _ := cpu.Percent(0, false)
	if len(ps) > 0 {
		return ps[0]
	}
	return 0
}

// Counts since the last call.
type Stats struct {
	Records, Rejected, SinkErrors int64
}

// TakeStats returns the counters and resets them.
func (c *Cascade) TakeStats() Stats {
	return Stats{
		Records:    atomic.SwapInt64(&c.nRecords, 0),
		Rejected:   atomic.SwapInt64(&c.nRejected, 0),
		SinkErrors: atomic.SwapInt64(&c.nSinkErrors, 0),
	}
}

func (c *Cascade) reportStats() {
	prefix := c.StatsNamePrefix + "."
	st := c.TakeStats()
	c.observe(prefix+"collector.records", float64(st.Records))
	c.observe(prefix+"collector.rejected", float64(st.Rejected))
	c.observe(prefix+"collector.sink_errors", float64(st.SinkErrors))
	c.observe(prefix+"runtime.cpu.percent", runtimeCpuPercent())
	c.observe(prefix+"runtime.mem.alloc", float64(runtimeMemory()))
}
