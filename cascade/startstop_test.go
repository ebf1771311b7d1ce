//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tgres/ccollector/sink"
)

func Test_startAllWorkers(t *testing.T) {
	// Save and replace the start funcs
	f1, f2 := startDrainWorkers, startStatsWorker
	called := 0
	f := func(c *Cascade, wg *sync.WaitGroup) { called++ }
	startDrainWorkers, startStatsWorker = f, f

	startAllWorkers(&Cascade{}, &sync.WaitGroup{})
	if called != 1 {
		t.Errorf("startAllWorkers: without ReportStats called != 1: %d", called)
	}
	called = 0
	startAllWorkers(&Cascade{ReportStats: true}, &sync.WaitGroup{})
	if called != 2 {
		t.Errorf("startAllWorkers: with ReportStats called != 2: %d", called)
	}
	// Restore
	startDrainWorkers, startStatsWorker = f1, f2
}

func Test_sleepUntilNext(t *testing.T) {
	quit := make(chan struct{})
	start := time.Now()
	if !sleepUntilNext(10*time.Millisecond, quit) {
		t.Errorf("sleepUntilNext: should return true when the timer fires")
	}
	if time.Now().Sub(start) > time.Second {
		t.Errorf("sleepUntilNext: slept way too long")
	}

	close(quit)
	start = time.Now()
	if sleepUntilNext(time.Hour, quit) {
		t.Errorf("sleepUntilNext: should return false when quit is closed")
	}
	if time.Now().Sub(start) > time.Second {
		t.Errorf("sleepUntilNext: did not return promptly on quit")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func Test_StartStop(t *testing.T) {
	_, restore := captureLog()
	defer restore()

	m := sink.NewMemory()
	c, err := New(m, [3]LevelSpec{
		{'s', 20 * time.Millisecond},
		{'m', 40 * time.Millisecond},
		{'h', 80 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Ingest("cpu:10")
	c.Ingest("cpu:20")
	c.Start()

	waitFor(t, "cpu:h", func() bool { return len(m.Series("cpu:h")) > 0 })

	if got := m.Series("cpu:s"); len(got) == 0 || got[0] != "15.00" {
		t.Errorf("cpu:s: first value should be 15.00, got %v", got)
	}

	c.Stop()

	// nothing drains after Stop
	n := len(m.Series("cpu:s"))
	time.Sleep(60 * time.Millisecond)
	if len(m.Series("cpu:s")) != n {
		t.Errorf("drain worker still running after Stop")
	}
}

func Test_reportStats(t *testing.T) {
	save := runtimeCpuPercent
	defer func() { runtimeCpuPercent = save }()
	runtimeCpuPercent = func() float64 { return 42 }

	c := newTestCascade(t, sink.NewMemory())
	c.StatsNamePrefix = "cc"
	c.Ingest("a:1")
	c.Ingest("nope")

	c.reportStats()

	fine := c.Fine().Table()
	if e := fine.Lookup("cc.collector.records"); e == nil || e.Sum != 2 || e.Samples != 1 {
		t.Errorf("cc.collector.records: got %+v", e)
	}
	if e := fine.Lookup("cc.collector.rejected"); e == nil || e.Sum != 1 {
		t.Errorf("cc.collector.rejected: got %+v", e)
	}
	if e := fine.Lookup("cc.runtime.cpu.percent"); e == nil || e.Sum != 42 {
		t.Errorf("cc.runtime.cpu.percent: got %+v", e)
	}
	if e := fine.Lookup("cc.runtime.mem.alloc"); e == nil || e.Sum <= 0 {
		t.Errorf("cc.runtime.mem.alloc: got %+v", e)
	}
	for _, name := range fine.Names() {
		if name != "a" && !strings.HasPrefix(name, "cc.") {
			t.Errorf("unexpected entry %q", name)
		}
	}
}

func Test_StartStop_WithStats(t *testing.T) {
	_, restore := captureLog()
	defer restore()

	save := runtimeCpuPercent
	defer func() { runtimeCpuPercent = save }()
	runtimeCpuPercent = func() float64 { return 1 }

	m := sink.NewMemory()
	c, err := New(m, [3]LevelSpec{
		{'s', 20 * time.Millisecond},
		{'m', time.Hour},
		{'h', 2 * time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.ReportStats = true
	c.StatsInterval = 10 * time.Millisecond
	c.Start()
	waitFor(t, "self stats", func() bool { return len(m.Series("ccollector.runtime.cpu.percent:s")) > 0 })
	c.Stop()
}
