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
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// redisSink stores every series as a redis list: RPUSH to append,
// LTRIM to keep the tail.
type redisSink struct {
	rdb redisClient
}

var newRedisClient = func(opts *redis.Options) redisClient {
	return redis.NewClient(opts)
}

// NewRedis connects to redis at address, which is anything
// redis.ParseURL understands, e.g. redis://localhost:6379/0 or
// unix:///var/run/redis.sock.
func NewRedis(address string) (*redisSink, error) {
	opts, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address %q: %v", address, err)
	}
	opts.PoolSize = 3 // one per cascade level

	r := &redisSink{rdb: newRedisClient(opts)}
	if err := r.rdb.Ping(context.Background()).Err(); err != nil {
		r.rdb.Close()
		return nil, fmt.Errorf("redis failed: %v", err)
	}
	return r, nil
}

func (r *redisSink) Append(ctx context.Context, series string, value float64) error {
	return r.rdb.RPush(ctx, series, FormatValue(value)).Err()
}

func (r *redisSink) TruncateToLast(ctx context.Context, series string, count int) error {
	return r.rdb.LTrim(ctx, series, -int64(count), -1).Err()
}

func (r *redisSink) Close() error {
	return r.rdb.Close()
}
