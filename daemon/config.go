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

package daemon

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tgres/ccollector/cascade"
	"github.com/tgres/ccollector/misc"
	"github.com/tgres/ccollector/sink"
)

type Config struct { // Needs to be exported for TOML to work
	PidPath          string          `toml:"pid-file"`
	LogPath          string          `toml:"log-file"`
	LogCycle         duration        `toml:"log-cycle-interval"`
	UdpListenSpec    string          `toml:"udp-listen-spec"`
	TcpListenSpec    string          `toml:"tcp-listen-spec"`
	RecordSeparator  string          `toml:"record-separator"`
	Sink             string          `toml:"sink"`
	SinkAddress      string          `toml:"sink-address"`
	SinkTablePrefix  string          `toml:"sink-table-prefix"`
	SinkTimeout      duration        `toml:"sink-timeout"`
	MaxSinkOpsPerSec int             `toml:"max-sink-ops-per-second"`
	SeriesRetain     int             `toml:"series-retain"`
	Fine             ConfigLevelSpec `toml:"fine"`
	Medium           ConfigLevelSpec `toml:"medium"`
	Coarse           ConfigLevelSpec `toml:"coarse"`
	Verbose          bool            `toml:"verbose"`
	ReportStats      *bool           `toml:"report-stats"`
	StatsNamePrefix  string          `toml:"stats-name-prefix"`
}

// Needs to be exported for TOML
type ConfigLevelSpec struct {
	Tag    string
	Period duration
}

type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = misc.BetterParseDuration(string(text))
	return err
}

var readConfig = func(cfgPath string) (*Config, error) {
	cfg := &Config{}
	_, err := toml.DecodeFile(cfgPath, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) processConfigPidFile(wd string) error {
	if c.PidPath == "" {
		return fmt.Errorf("pid-file setting empty")
	}
	if !filepath.IsAbs(c.PidPath) {
		if wd == "" {
			return fmt.Errorf("pid-file must be absolute path if working directory cannot be determined")
		}
		c.PidPath = filepath.Join(wd, c.PidPath)
	}
	pidDir, _ := filepath.Split(c.PidPath)
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return errors.New(fmt.Sprintf("Unable to create directory: '%s' (%v).", pidDir, err))
	}
	return nil
}

func (c *Config) processConfigLogFile(wd string) error {
	if os.Getenv("CCOLLECTOR_LOG") != "" {
		c.LogPath = os.Getenv("CCOLLECTOR_LOG")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log-file setting empty")
	}
	if !filepath.IsAbs(c.LogPath) {
		if wd == "" {
			return fmt.Errorf("log-file must be absolute path if working directory cannot be determined")
		}
		c.LogPath = filepath.Join(wd, c.LogPath)
	}
	logDir, _ := filepath.Split(c.LogPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return errors.New(fmt.Sprintf("Unable to create directory: '%s' (%v).", logDir, err))
	}

	log.Printf("Logs will be written to '%s'.", c.LogPath)
	return nil
}

func (c *Config) processConfigLogCycleInterval() error {
	if c.LogCycle.Duration == 0 {
		return fmt.Errorf("log-cycle-interval setting empty")
	}
	log.Printf("Will cycle logs every %v (log-cycle-interval).", c.LogCycle.Duration)

	logDir, _ := filepath.Split(c.LogPath)
	log.Printf("All further status messages will be written to log file(s) in '%s'.", logDir)
	logFileCycler(c.LogPath, c.LogCycle.Duration)
	log.Print("Server starting.")

	return nil
}

func (c *Config) processListenSpecs() error {
	if c.UdpListenSpec == "" && c.TcpListenSpec == "" {
		return fmt.Errorf("udp-listen-spec and tcp-listen-spec are both empty, nothing to listen on")
	}
	if c.UdpListenSpec == "" {
		log.Printf("udp-listen-spec is empty, not listening on UDP.")
	}
	if c.TcpListenSpec == "" {
		log.Printf("tcp-listen-spec is empty, not listening on TCP.")
	}
	return nil
}

func (c *Config) processRecordSeparator() error {
	if c.RecordSeparator == "" {
		c.RecordSeparator = ","
	}
	if len(c.RecordSeparator) != 1 {
		return fmt.Errorf("record-separator must be a single character, got %q", c.RecordSeparator)
	}
	if c.RecordSeparator[0] == ':' || c.RecordSeparator[0] == '|' {
		return fmt.Errorf("record-separator cannot be %q, it is part of the record", c.RecordSeparator)
	}
	return nil
}

func (c *Config) processSink() error {
	if os.Getenv("CCOLLECTOR_SINK_ADDRESS") != "" {
		c.SinkAddress = os.Getenv("CCOLLECTOR_SINK_ADDRESS")
	}
	if c.Sink == "" {
		log.Printf("sink is empty, defaulting to 'redis'")
		c.Sink = "redis"
	}
	switch c.Sink {
	case "redis", "postgres":
		if c.SinkAddress == "" {
			return fmt.Errorf("sink-address empty (required for sink %q)", c.Sink)
		}
	case "memory":
		log.Printf("WARNING: sink is 'memory', nothing will be persisted.")
	default:
		return fmt.Errorf("invalid sink: %q (valid sinks: redis, postgres, memory)", c.Sink)
	}
	if c.SinkTimeout.Duration == 0 {
		c.SinkTimeout.Duration = time.Second
	}
	if c.MaxSinkOpsPerSec <= 0 {
		log.Printf("Sink operations are not rate limited (max-sink-ops-per-second).")
	} else {
		log.Printf("Sink operations limited to %d per second (max-sink-ops-per-second).", c.MaxSinkOpsPerSec)
	}
	return nil
}

func (c *Config) processSeriesRetain() error {
	if c.SeriesRetain == 0 {
		c.SeriesRetain = sink.DefaultRetain
	}
	if c.SeriesRetain < 0 {
		return fmt.Errorf("series-retain must be positive, got %d", c.SeriesRetain)
	}
	log.Printf("Each series retains its last %d entries (series-retain).", c.SeriesRetain)
	return nil
}

func (c *Config) processLevels() error {
	levels := []*ConfigLevelSpec{&c.Fine, &c.Medium, &c.Coarse}
	for i, l := range levels {
		dft := cascade.DefaultLevels[i]
		if l.Tag == "" {
			l.Tag = string(dft.Tag)
		}
		if len(l.Tag) != 1 {
			return fmt.Errorf("level tag must be a single character, got %q", l.Tag)
		}
		if l.Period.Duration == 0 {
			l.Period.Duration = dft.Period
		}
	}
	// cascade.New validates the rest, but it's nicer to fail here
	if _, err := cascade.New(sink.NewMemory(), c.Levels()); err != nil {
		return err
	}
	for _, l := range levels {
		log.Printf("Level %q: drained every %v.", l.Tag, l.Period.Duration)
	}
	return nil
}

func (c *Config) processStats() error {
	if c.ReportStats == nil {
		t := true
		c.ReportStats = &t
	}
	if c.StatsNamePrefix == "" {
		c.StatsNamePrefix = "ccollector"
	}
	if *c.ReportStats {
		log.Printf("Own stats will be reported as %s.* (stats-name-prefix).", c.StatsNamePrefix)
	}
	return nil
}

// Levels returns the fine, medium and coarse level specs.
func (c *Config) Levels() [3]cascade.LevelSpec {
	var specs [3]cascade.LevelSpec
	for i, l := range []ConfigLevelSpec{c.Fine, c.Medium, c.Coarse} {
		if len(l.Tag) > 0 {
			specs[i].Tag = l.Tag[0]
		}
		specs[i].Period = l.Period.Duration
	}
	return specs
}

type configer interface {
	processConfigPidFile(string) error
	processConfigLogFile(string) error
	processConfigLogCycleInterval() error
	processListenSpecs() error
	processRecordSeparator() error
	processSink() error
	processSeriesRetain() error
	processLevels() error
	processStats() error
}

var processConfig = func(c configer, wd string) error {

	if err := c.processConfigPidFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogCycleInterval(); err != nil {
		return err
	}
	if err := c.processListenSpecs(); err != nil {
		return err
	}
	if err := c.processRecordSeparator(); err != nil {
		return err
	}
	if err := c.processSink(); err != nil {
		return err
	}
	if err := c.processSeriesRetain(); err != nil {
		return err
	}
	if err := c.processLevels(); err != nil {
		return err
	}
	if err := c.processStats(); err != nil {
		return err
	}
	return nil
}
