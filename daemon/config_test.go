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

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
pid-file = "ccollector.pid"
log-file = "log/ccollector.log"
log-cycle-interval = "24h"

udp-listen-spec = "0.0.0.0:4242"
tcp-listen-spec = ""
record-separator = ";"

sink = "redis"
sink-address = "redis://localhost:6379/0"
sink-timeout = "2s"
max-sink-ops-per-second = 500
series-retain = 100

verbose = true
report-stats = false
stats-name-prefix = "mine"

[fine]
tag = "f"
period = "10s"

[medium]
period = "10min"

[coarse]
tag = "c"
period = "1d"
`

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "ccollector.conf")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_readConfig(t *testing.T) {
	cfg, err := readConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if cfg.PidPath != "ccollector.pid" || cfg.LogPath != "log/ccollector.log" {
		t.Errorf("readConfig: paths: %q %q", cfg.PidPath, cfg.LogPath)
	}
	if cfg.LogCycle.Duration != 24*time.Hour || cfg.SinkTimeout.Duration != 2*time.Second {
		t.Errorf("readConfig: durations: %v %v", cfg.LogCycle, cfg.SinkTimeout)
	}
	if cfg.UdpListenSpec != "0.0.0.0:4242" || cfg.RecordSeparator != ";" {
		t.Errorf("readConfig: listen: %q %q", cfg.UdpListenSpec, cfg.RecordSeparator)
	}
	if cfg.Sink != "redis" || cfg.MaxSinkOpsPerSec != 500 || cfg.SeriesRetain != 100 {
		t.Errorf("readConfig: sink: %+v", cfg)
	}
	if !cfg.Verbose || cfg.ReportStats == nil || *cfg.ReportStats || cfg.StatsNamePrefix != "mine" {
		t.Errorf("readConfig: stats settings: %+v", cfg)
	}
	if cfg.Fine.Tag != "f" || cfg.Fine.Period.Duration != 10*time.Second {
		t.Errorf("readConfig: fine: %+v", cfg.Fine)
	}
	if cfg.Medium.Tag != "" || cfg.Medium.Period.Duration != 10*time.Minute {
		t.Errorf("readConfig: medium: %+v", cfg.Medium)
	}
	if cfg.Coarse.Tag != "c" || cfg.Coarse.Period.Duration != 24*time.Hour {
		t.Errorf("readConfig: coarse: %+v", cfg.Coarse)
	}

	if _, err := readConfig(writeConfig(t, `sink-timeout = "forever"`)); err == nil {
		t.Errorf("readConfig: expected an error for a bad duration")
	}
	if _, err := readConfig(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Errorf("readConfig: expected an error for a missing file")
	}
}

func Test_processConfig(t *testing.T) {
	defer quietLog()()

	save := logFileCycler
	defer func() { logFileCycler = save }()
	var cycled string
	logFileCycler = func(logPath string, logCycle time.Duration) { cycled = logPath }

	os.Unsetenv("CCOLLECTOR_LOG")
	os.Unsetenv("CCOLLECTOR_SINK_ADDRESS")

	wd := t.TempDir()
	cfg, err := readConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := processConfig(cfg, wd); err != nil {
		t.Fatalf("processConfig: %v", err)
	}
	if cfg.PidPath != filepath.Join(wd, "ccollector.pid") {
		t.Errorf("processConfig: PidPath: %q", cfg.PidPath)
	}
	if cfg.LogPath != filepath.Join(wd, "log", "ccollector.log") || cycled != cfg.LogPath {
		t.Errorf("processConfig: LogPath: %q (cycled %q)", cfg.LogPath, cycled)
	}
	if _, err := os.Stat(filepath.Join(wd, "log")); err != nil {
		t.Errorf("processConfig: log dir not created: %v", err)
	}
	if cfg.Medium.Tag != "m" {
		t.Errorf("processConfig: medium tag should default to 'm', got %q", cfg.Medium.Tag)
	}
	lv := cfg.Levels()
	if lv[0].Tag != 'f' || lv[1].Tag != 'm' || lv[2].Tag != 'c' {
		t.Errorf("processConfig: Levels(): %+v", lv)
	}
}

func Test_processConfig_defaults(t *testing.T) {
	defer quietLog()()

	cfg := &Config{UdpListenSpec: ":4242", Sink: "memory"}
	for _, f := range []func() error{
		cfg.processListenSpecs,
		cfg.processRecordSeparator,
		cfg.processSink,
		cfg.processSeriesRetain,
		cfg.processLevels,
		cfg.processStats,
	} {
		if err := f(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cfg.RecordSeparator != "," {
		t.Errorf("RecordSeparator default: %q", cfg.RecordSeparator)
	}
	if cfg.SinkTimeout.Duration != time.Second {
		t.Errorf("SinkTimeout default: %v", cfg.SinkTimeout)
	}
	if cfg.SeriesRetain != 288 {
		t.Errorf("SeriesRetain default: %v", cfg.SeriesRetain)
	}
	if cfg.ReportStats == nil || !*cfg.ReportStats || cfg.StatsNamePrefix != "ccollector" {
		t.Errorf("stats defaults: %v %q", cfg.ReportStats, cfg.StatsNamePrefix)
	}
	lv := cfg.Levels()
	if lv[0].Tag != 's' || lv[0].Period != 5*time.Second ||
		lv[1].Tag != 'm' || lv[1].Period != 5*time.Minute ||
		lv[2].Tag != 'h' || lv[2].Period != time.Hour {
		t.Errorf("level defaults: %+v", lv)
	}
}

func Test_processConfig_errors(t *testing.T) {
	defer quietLog()()

	for i, tc := range []struct {
		cfg *Config
		f   func(*Config) error
	}{
		{&Config{}, (*Config).processListenSpecs},
		{&Config{RecordSeparator: "ab"}, (*Config).processRecordSeparator},
		{&Config{RecordSeparator: ":"}, (*Config).processRecordSeparator},
		{&Config{RecordSeparator: "|"}, (*Config).processRecordSeparator},
		{&Config{Sink: "redis"}, (*Config).processSink},
		{&Config{Sink: "postgres"}, (*Config).processSink},
		{&Config{Sink: "cassandra", SinkAddress: "x"}, (*Config).processSink},
		{&Config{SeriesRetain: -1}, (*Config).processSeriesRetain},
		{&Config{Fine: ConfigLevelSpec{Tag: "ss"}}, (*Config).processLevels},
		{&Config{Fine: ConfigLevelSpec{Tag: "x"}, Medium: ConfigLevelSpec{Tag: "x"}}, (*Config).processLevels},
		{&Config{Medium: ConfigLevelSpec{Period: duration{time.Second}}}, (*Config).processLevels},
		{&Config{LogCycle: duration{0}}, (*Config).processConfigLogCycleInterval},
		{&Config{}, func(c *Config) error { return c.processConfigPidFile("/") }},
		{&Config{PidPath: "x.pid"}, func(c *Config) error { return c.processConfigPidFile("") }},
		{&Config{}, func(c *Config) error { return c.processConfigLogFile("/") }},
	} {
		os.Unsetenv("CCOLLECTOR_LOG")
		if err := tc.f(tc.cfg); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

func Test_processSink_env(t *testing.T) {
	defer quietLog()()

	os.Setenv("CCOLLECTOR_SINK_ADDRESS", "redis://elsewhere:6379/0")
	defer os.Unsetenv("CCOLLECTOR_SINK_ADDRESS")

	cfg := &Config{}
	if err := cfg.processSink(); err != nil {
		t.Fatalf("processSink: %v", err)
	}
	if cfg.Sink != "redis" || cfg.SinkAddress != "redis://elsewhere:6379/0" {
		t.Errorf("processSink: %q %q", cfg.Sink, cfg.SinkAddress)
	}
}

type fakeConfiger struct {
	calls []string
	fail  string
}

func (f *fakeConfiger) call(name string) error {
	f.calls = append(f.calls, name)
	if name == f.fail {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func (f *fakeConfiger) processConfigPidFile(string) error    { return f.call("pid") }
func (f *fakeConfiger) processConfigLogFile(string) error    { return f.call("log") }
func (f *fakeConfiger) processConfigLogCycleInterval() error { return f.call("cycle") }
func (f *fakeConfiger) processListenSpecs() error            { return f.call("listen") }
func (f *fakeConfiger) processRecordSeparator() error        { return f.call("sep") }
func (f *fakeConfiger) processSink() error                   { return f.call("sink") }
func (f *fakeConfiger) processSeriesRetain() error           { return f.call("retain") }
func (f *fakeConfiger) processLevels() error                 { return f.call("levels") }
func (f *fakeConfiger) processStats() error                  { return f.call("stats") }

func Test_processConfig_order(t *testing.T) {
	f := &fakeConfiger{}
	if err := processConfig(f, ""); err != nil {
		t.Fatalf("processConfig: %v", err)
	}
	if len(f.calls) != 9 {
		t.Errorf("processConfig: expected 9 calls, got %v", f.calls)
	}

	f = &fakeConfiger{fail: "sink"}
	if err := processConfig(f, ""); err == nil {
		t.Errorf("processConfig: expected an error")
	}
	if f.calls[len(f.calls)-1] != "sink" {
		t.Errorf("processConfig: should stop at the first error, calls: %v", f.calls)
	}
}
