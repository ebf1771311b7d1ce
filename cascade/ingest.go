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
	"log"
	"strings"
	"sync/atomic"

	"github.com/tgres/ccollector/statsd"
)

// Ingest applies one record to the fine level. A record without a
// ':' changes nothing. A record with an unknown type tag creates the
// entry if needed but adds nothing to it. Either way the parse error
// is returned.
func (c *Cascade) Ingest(record string) error {
	atomic.AddInt64(&c.nRecords, 1)

	st, err := statsd.ParseRecord(record)
	if st == nil {
		atomic.AddInt64(&c.nRejected, 1)
		return err
	}

	fine := c.levels[0].table
	fine.Lock()
	e, created := fine.UpsertCreate(st.Name)
	switch st.Kind {
	case statsd.KindCounter:
		e.AddCounter(st.Value, CounterWeight)
	case statsd.KindPlain:
		e.AddGauge(st.Value)
	}
	fine.Unlock()

	if created && c.Verbose {
		log.Printf("new key: %s", st.Name)
	}
	if err != nil {
		atomic.AddInt64(&c.nRejected, 1)
	}
	return err
}

// IngestBatch splits batch on sep and ingests every record. Surrounding
// white space is trimmed and empty records are skipped. Rejected
// records are logged and do not affect the rest of the batch.
func (c *Cascade) IngestBatch(batch string, sep byte) {
	for _, record := range strings.Split(batch, string(sep)) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		if err := c.Ingest(record); err != nil {
			log.Printf("IngestBatch(): %v", err)
		}
	}
}

// observe adds a plain sample to the fine level, bypassing the parser.
func (c *Cascade) observe(name string, value float64) {
	fine := c.levels[0].table
	fine.Lock()
	e, _ := fine.UpsertCreate(name)
	e.AddGauge(value)
	fine.Unlock()
}
