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
	"context"
	"log"
	"sync/atomic"

	"github.com/tgres/ccollector/aggregator"
	"github.com/tgres/ccollector/sink"
)

// drainAndFold drains level l into the sink and, unless l is the
// coarse level, folds every average into the next level as a plain
// sample. Sink errors are logged and do not stop the drain or the
// fold. The sink is written to with both locks held, so a slow sink
// will eventually hold up ingestion.
func (c *Cascade) drainAndFold(l *Level) {
	l.table.Lock()
	defer l.table.Unlock()

	var dst *aggregator.Table
	if l.next != nil {
		dst = l.next.table
		dst.Lock()
		defer dst.Unlock()
	}

	for _, avg := range l.table.DrainAll() {
		c.emit(l.Tag, avg)
		if dst != nil {
			e, _ := dst.UpsertCreate(avg.Name)
			e.AddGauge(avg.Value)
		}
	}
}

func (c *Cascade) emit(tag byte, avg aggregator.Average) {
	series := sink.SeriesName(avg.Name, tag)

	ctx := context.Background()
	if c.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SinkTimeout)
		defer cancel()
	}

	if err := c.sink.Append(ctx, series, avg.Value); err != nil {
		atomic.AddInt64(&c.nSinkErrors, 1)
		log.Printf("drain %c: append to %s failed, value dropped: %v", tag, series, err)
	}
	if err := c.sink.TruncateToLast(ctx, series, c.Retain); err != nil {
		atomic.AddInt64(&c.nSinkErrors, 1)
		log.Printf("drain %c: truncate of %s failed: %v", tag, series, err)
	}
}
