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

// Package aggregator provides the accumulator table, which keeps a
// running sum and sample count per metric name. The table does not
// concern itself with periodic draining or with where the averages
// go, that is the job of its user (see package cascade).
//
// None of the Table methods lock. Every call, including the Entry
// mutators, must be made with the table's mutex held.
package aggregator

import (
	"sync"
)

// Entry is the running aggregate for one metric name.
type Entry struct {
	Name    string
	Sum     float64
	Samples int
}

// Average is Sum/Samples, or 0 if there were no samples.
func (e *Entry) Average() float64 {
	if e.Samples > 0 {
		return e.Sum / float64(e.Samples)
	}
	return 0
}

// Add a plain sample.
func (e *Entry) AddGauge(value float64) {
	e.Sum += value
	e.Samples++
}

// Add a counter sample. The sample count is overwritten with weight,
// not incremented.
func (e *Entry) AddCounter(value float64, weight int) {
	if e.Samples != weight {
		e.Samples = weight
	}
	e.Sum += value
}

func (e *Entry) reset() {
	e.Sum, e.Samples = 0, 0
}

// Average as yielded by DrainAll.
type Average struct {
	Name  string
	Value float64
}

// Table maps metric names to entries. Entries live in a slice and
// are found via an index map; they are never removed.
type Table struct {
	sync.Mutex
	idx     map[string]int
	entries []Entry
}

func NewTable() *Table {
	return &Table{idx: make(map[string]int)}
}

// Lookup returns the entry for name, or nil. The returned pointer is
// only valid until the next UpsertCreate of a new name.
func (t *Table) Lookup(name string) *Entry {
	if i, ok := t.idx[name]; ok {
		return &t.entries[i]
	}
	return nil
}

// UpsertCreate returns the entry for name, creating a zero entry if
// there isn't one. The second return value is true if the entry was
// created. Same pointer validity rules as Lookup.
func (t *Table) UpsertCreate(name string) (*Entry, bool) {
	if e := t.Lookup(name); e != nil {
		return e, false
	}
	t.entries = append(t.entries, Entry{Name: name})
	t.idx[name] = len(t.entries) - 1
	return &t.entries[len(t.entries)-1], true
}

// DrainAll computes the average of every entry, resets it, and
// returns the averages. Entries without samples are included with a
// value of 0. The order of the result is not significant.
func (t *Table) DrainAll() []Average {
	result := make([]Average, len(t.entries))
	for i := range t.entries {
		e := &t.entries[i]
		result[i] = Average{Name: e.Name, Value: e.Average()}
		e.reset()
	}
	return result
}

// Number of entries in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Names of all entries, in no particular order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		names = append(names, e.Name)
	}
	return names
}
