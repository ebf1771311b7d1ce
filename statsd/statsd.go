//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
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

// Package statsd parses the statsd-like records accepted by the
// collector: "name:value" for a plain sample and "name:value|c" for
// a counter sample.
package statsd

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMalformed   = errors.New("invalid data")
	ErrUnknownType = errors.New("invalid data type")
)

type Kind int

const (
	KindPlain Kind = iota
	KindCounter
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindCounter:
		return "counter"
	}
	return "unknown"
}

type Stat struct {
	Name  string
	Value float64
	Kind  Kind
	Tag   string // the type tag as received, empty for plain
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseValue converts the longest leading decimal number in s to a
// float, skipping leading white space. Anything that does not start
// with a number is 0. It never fails: a garbled value must not stop
// ingestion.
func ParseValue(s string) float64 {
	m := numericPrefix.FindString(strings.TrimLeft(s, " \t\r\n\v\f"))
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(m, 64) // ErrRange still yields +/-Inf
	return v
}

// ParseRecord parses a single record, e.g. "cpu:10" or "req:1|c". A
// record without a ':' returns ErrMalformed and a nil Stat. A record
// with a type tag other than "c" returns a Stat of KindUnknown along
// with ErrUnknownType: the caller still knows the name, but must not
// accumulate the value.
//
// Only the first character of the tag is significant, so a statsd
// sample rate suffix ("1|c|@0.1") is still a counter.
func ParseRecord(record string) (*Stat, error) {
	i := strings.IndexByte(record, ':')
	if i < 0 {
		return nil, fmt.Errorf("%w [%s]", ErrMalformed, record)
	}

	st := &Stat{Name: record[:i]}
	rest := record[i+1:]

	if j := strings.IndexByte(rest, '|'); j >= 0 {
		st.Tag = rest[j+1:]
		if len(st.Tag) > 0 && st.Tag[0] == 'c' {
			st.Kind = KindCounter
			st.Value = ParseValue(rest[:j])
			return st, nil
		}
		st.Kind = KindUnknown
		return st, fmt.Errorf("%w: [%s] in %q", ErrUnknownType, st.Tag, record)
	}

	st.Kind = KindPlain
	st.Value = ParseValue(rest)
	return st, nil
}
