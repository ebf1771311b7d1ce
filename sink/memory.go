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

package sink

import (
	"context"
	"sort"
	"sync"
)

type memSink struct {
	*sync.RWMutex
	series map[string][]string
}

// Returns a Sink which keeps everything in memory. Values are kept
// formatted, the way they would be stored elsewhere.
func NewMemory() *memSink {
	return &memSink{RWMutex: &sync.RWMutex{}, series: make(map[string][]string)}
}

func (m *memSink) Append(ctx context.Context, series string, value float64) error {
	m.Lock()
	defer m.Unlock()
	m.series[series] = append(m.series[series], FormatValue(value))
	return nil
}

func (m *memSink) TruncateToLast(ctx context.Context, series string, count int) error {
	m.Lock()
	defer m.Unlock()
	if l := m.series[series]; len(l) > count {
		m.series[series] = append([]string(nil), l[len(l)-count:]...)
	}
	return nil
}

func (m *memSink) Close() error { return nil }

// Series returns a copy of the values of series.
func (m *memSink) Series(series string) []string {
	m.RLock()
	defer m.RUnlock()
	return append([]string(nil), m.series[series]...)
}

// Names of all series, sorted.
func (m *memSink) Names() []string {
	m.RLock()
	defer m.RUnlock()
	names := make([]string, 0, len(m.series))
	for name := range m.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
