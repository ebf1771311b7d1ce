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

// Package sink knows how to persist drained averages. A sink keeps
// named append-only series, each of which is periodically trimmed to
// its most recent entries.
package sink

import (
	"context"
	"fmt"
	"strconv"
)

// DefaultRetain is how many entries a series keeps by default.
const DefaultRetain = 288

// This thing knows how to append to and trim series in some storage.
type Sink interface {
	// Append value to series. Value is stored with two decimals.
	Append(ctx context.Context, series string, value float64) error
	// Discard all but the most recent count entries of series.
	TruncateToLast(ctx context.Context, series string, count int) error
	Close() error
}

// SeriesName is "<metric>:<tag>", e.g. "cpu:s".
func SeriesName(metric string, tag byte) string {
	return metric + ":" + string(tag)
}

// FormatValue renders v with exactly two decimal digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// New returns a Sink by kind: "redis", "postgres" or "memory". The
// address is a redis URL (redis://host:port/db or unix:///path) or a
// Postgres connect string. The prefix only applies to Postgres table
// names.
func New(kind, address, prefix string) (Sink, error) {
	switch kind {
	case "redis":
		r, err := NewRedis(address)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "postgres":
		p, err := NewPostgres(address, prefix, 0)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown sink: %q (valid sinks: redis, postgres, memory)", kind)
}
