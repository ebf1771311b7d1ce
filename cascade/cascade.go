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

// Package cascade is where incoming records are accumulated and
// periodically rolled up through three time levels: fine, medium and
// coarse. Every level has its own table and its own drain worker. A
// drain appends each metric's average to the sink, resets it, and
// folds the average into the next level as one plain sample. The
// coarse level only appends.
//
// A drain holds the lock of its own table and, if there is one, the
// lock of the next level's table, always in that order. Since levels
// only ever point forward, no lock cycle is possible.
package cascade

import (
	"fmt"
	"sync"
	"time"

	"github.com/tgres/ccollector/aggregator"
	"github.com/tgres/ccollector/sink"
)

// CounterWeight is the sample count a counter ("|c") sample forces
// on its entry.
const CounterWeight = 5

type Level struct {
	Tag    byte
	Period time.Duration
	table  *aggregator.Table
	next   *Level // nil for the coarse level
}

func (l *Level) Table() *aggregator.Table { return l.table }
func (l *Level) Next() *Level             { return l.next }

func (l *Level) String() string {
	return fmt.Sprintf("level_%c", l.Tag)
}

// LevelSpec is what a Level is created from.
type LevelSpec struct {
	Tag    byte
	Period time.Duration
}

// DefaultLevels are 5 seconds, 5 minutes and 1 hour, tagged s, m and h.
var DefaultLevels = [3]LevelSpec{
	{Tag: 's', Period: 5 * time.Second},
	{Tag: 'm', Period: 5 * time.Minute},
	{Tag: 'h', Period: time.Hour},
}

type Cascade struct {
	levels          [3]*Level
	sink            sink.Sink
	Retain          int           // entries kept per series
	SinkTimeout     time.Duration // per sink operation, 0 is no timeout
	Verbose         bool          // log every new metric name
	ReportStats     bool
	StatsNamePrefix string
	StatsInterval   time.Duration

	nRecords, nRejected, nSinkErrors int64 // atomic

	quit     chan struct{}
	workerWg sync.WaitGroup
}

// New creates a Cascade writing to snk. Tags must be distinct and
// periods must increase from fine to coarse.
func New(snk sink.Sink, specs [3]LevelSpec) (*Cascade, error) {
	if snk == nil {
		return nil, fmt.Errorf("cascade: nil sink")
	}
	for i, spec := range specs {
		if spec.Tag == 0 {
			return nil, fmt.Errorf("cascade: level %d: empty tag", i)
		}
		if spec.Period <= 0 {
			return nil, fmt.Errorf("cascade: level %c: invalid period %v", spec.Tag, spec.Period)
		}
		if i > 0 {
			if spec.Period <= specs[i-1].Period {
				return nil, fmt.Errorf("cascade: level %c: period %v must be longer than %v of level %c",
					spec.Tag, spec.Period, specs[i-1].Period, specs[i-1].Tag)
			}
			for _, prev := range specs[:i] {
				if prev.Tag == spec.Tag {
					return nil, fmt.Errorf("cascade: duplicate level tag %c", spec.Tag)
				}
			}
		}
	}

	c := &Cascade{
		sink:            snk,
		Retain:          sink.DefaultRetain,
		SinkTimeout:     time.Second,
		StatsNamePrefix: "ccollector",
		StatsInterval:   5 * time.Second,
	}
	for i := len(specs) - 1; i >= 0; i-- {
		c.levels[i] = &Level{Tag: specs[i].Tag, Period: specs[i].Period, table: aggregator.NewTable()}
		if i < len(specs)-1 {
			c.levels[i].next = c.levels[i+1]
		}
	}
	return c, nil
}

func (c *Cascade) Fine() *Level      { return c.levels[0] }
func (c *Cascade) Medium() *Level    { return c.levels[1] }
func (c *Cascade) Coarse() *Level    { return c.levels[2] }
func (c *Cascade) Levels() [3]*Level { return c.levels }
