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
	"fmt"
	"log"
	"sync"
	"time"
)

type wrkCtl struct {
	wg, startWg *sync.WaitGroup
	id          string
}

func (w *wrkCtl) ident() string { return w.id }
func (w *wrkCtl) onEnter()      { w.wg.Add(1) }
func (w *wrkCtl) onExit()       { w.wg.Done() }
func (w *wrkCtl) onStarted()    { w.startWg.Done() }

type wController interface {
	ident() string
	onEnter()
	onExit()
	onStarted()
}

// Start the drain workers (and the stats worker if ReportStats is
// set). Returns once all of them are running.
func (c *Cascade) Start() {
	doStart(c)
}

// Stop all workers. A worker stops at its next sleep, a drain in
// progress is finished first. Nothing is flushed on the way out.
func (c *Cascade) Stop() {
	doStop(c)
}

var doStart = func(c *Cascade) {
	log.Printf("Cascade: starting...")
	c.quit = make(chan struct{})

	var startWg sync.WaitGroup
	startAllWorkers(c, &startWg)
	startWg.Wait()

	log.Printf("Cascade: Ready.")
}

var doStop = func(c *Cascade) {
	log.Printf("Cascade: stopping workers...")
	close(c.quit)
	c.workerWg.Wait()
	log.Printf("Cascade: all workers finished.")
}

var startAllWorkers = func(c *Cascade, startWg *sync.WaitGroup) {
	startDrainWorkers(c, startWg)
	if c.ReportStats {
		startStatsWorker(c, startWg)
	}
}

var startDrainWorkers = func(c *Cascade, startWg *sync.WaitGroup) {
	log.Printf("Starting %d drain workers...", len(c.levels))
	for _, l := range c.levels {
		startWg.Add(1)
		log.Printf(" -- %v: every %v", l, l.Period)
		go drainWorker(&wrkCtl{wg: &c.workerWg, startWg: startWg, id: fmt.Sprintf("drain_%c", l.Tag)}, c, l, c.quit)
	}
}

var startStatsWorker = func(c *Cascade, startWg *sync.WaitGroup) {
	log.Printf("Starting statsWorker...")
	startWg.Add(1)
	go statsWorker(&wrkCtl{wg: &c.workerWg, startWg: startWg, id: "statsWorker"}, c, c.StatsInterval, c.quit)
}

var drainWorker = func(wc wController, c *Cascade, l *Level, quit chan struct{}) {
	wc.onEnter()
	defer wc.onExit()

	log.Printf("%s: started.", wc.ident())
	wc.onStarted()

	for {
		if !sleepUntilNext(l.Period, quit) {
			log.Printf("%s: exiting", wc.ident())
			return
		}
		c.drainAndFold(l)
	}
}

var statsWorker = func(wc wController, c *Cascade, interval time.Duration, quit chan struct{}) {
	wc.onEnter()
	defer wc.onExit()

	log.Printf("%s: started.", wc.ident())
	wc.onStarted()

	for {
		if !sleepUntilNext(interval, quit) {
			log.Printf("%s: exiting", wc.ident())
			return
		}
		c.reportStats()
	}
}

// sleepUntilNext sleeps until the next multiple of period, returns
// false if quit was closed first.
//
// NB: We do not use a time.Ticker here because it will not stay
// aligned on a multiple of period if the system clock is adjusted.
func sleepUntilNext(period time.Duration, quit chan struct{}) bool {
	clock := time.Now()
	timer := time.NewTimer(clock.Truncate(period).Add(period).Sub(clock))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-quit:
		return false
	}
}
