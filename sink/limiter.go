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

package sink

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedSink struct {
	Sink
	limiter *rate.Limiter
}

// Limited wraps s so that no more than ops operations per second
// (appends and truncates alike) reach it. If ops is 0 or less, s is
// returned as is.
func Limited(s Sink, ops int) Sink {
	if ops <= 0 {
		return s
	}
	return &limitedSink{Sink: s, limiter: rate.NewLimiter(rate.Limit(ops), ops)}
}

func (l *limitedSink) Append(ctx context.Context, series string, value float64) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.Sink.Append(ctx, series, value)
}

func (l *limitedSink) TruncateToLast(ctx context.Context, series string, count int) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.Sink.TruncateToLast(ctx, series, count)
}
