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

// Package daemon wires the configuration, the listeners, the cascade
// and the sink together and runs them until a signal arrives.
package daemon

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/tgres/ccollector/cascade"
	"github.com/tgres/ccollector/sink"
)

var getCwd = func() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Unable to determine current directory: %v", err)
		return ""
	}
	return wd
}

var savePid = func(pidPath string) error {
	f, err := os.Create(pidPath)
	if err != nil {
		return fmt.Errorf("Unable to create pid file '%s': (%v)", pidPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "%d\n", os.Getpid())
	log.Printf("Pid saved in %s.", pidPath)
	return nil
}

var initSink = func(cfg *Config) (sink.Sink, error) {
	snk, err := sink.New(cfg.Sink, cfg.SinkAddress, cfg.SinkTablePrefix)
	if err != nil {
		return nil, err
	}
	return sink.Limited(snk, cfg.MaxSinkOpsPerSec), nil
}

var createCascade = func(cfg *Config, snk sink.Sink) (*cascade.Cascade, error) {
	c, err := cascade.New(snk, cfg.Levels())
	if err != nil {
		return nil, err
	}
	c.Retain = cfg.SeriesRetain
	c.SinkTimeout = cfg.SinkTimeout.Duration
	c.Verbose = cfg.Verbose
	if cfg.ReportStats != nil {
		c.ReportStats = *cfg.ReportStats
	}
	if cfg.StatsNamePrefix != "" {
		c.StatsNamePrefix = cfg.StatsNamePrefix
	}
	return c, nil
}

var startCascade = func(c *cascade.Cascade) {
	c.Start()
}

var waitForSignal = func(c *cascade.Cascade, sm *serviceManager, snk sink.Sink) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Printf("Got signal: %v", s)
	signal.Stop(ch)
	gracefulExit(c, sm, snk)
}

// Init reads the config, starts everything and blocks until a
// termination signal is received. It returns nil if startup failed.
func Init(cfgPath string) (cfg *Config) { // not to be confused with init()
	log.Printf("ccollector starting.")

	cfg, err := readConfig(cfgPath)
	if err != nil {
		log.Printf("Error reading config file %s: %v", cfgPath, err)
		return nil
	}

	if err := processConfig(configer(cfg), getCwd()); err != nil { // This validates the config
		log.Printf("Error in config file %s: %v", cfgPath, err)
		return nil
	}

	if err := savePid(cfg.PidPath); err != nil {
		log.Printf("%v", err)
		return nil
	}

	snk, err := initSink(cfg)
	if err != nil {
		log.Printf("Error initializing %q sink: %v", cfg.Sink, err)
		return nil
	}
	log.Printf("Initialized %q sink.", cfg.Sink)

	c, err := createCascade(cfg, snk)
	if err != nil {
		log.Printf("Error creating cascade: %v", err)
		snk.Close()
		return nil
	}

	sm := newServiceManager(c, cfg)
	if err := sm.run(); err != nil {
		log.Printf("Could not run the service manager: %v", err)
		sm.closeListeners(false)
		snk.Close()
		return nil
	}

	startCascade(c)

	waitForSignal(c, sm, snk)

	return cfg
}

// Finish releases the log file and removes the pid file.
func Finish(cfg *Config) {
	atomic.StoreInt32(&quitting, 1)
	log.Println("main: All goroutines finished, exiting.")

	// Close log
	log.SetOutput(os.Stderr)
	if logFile != nil {
		logFile.Close()
	}

	os.Remove(cfg.PidPath)
}

// Listeners first, so nothing more is ingested. Whatever is still
// sitting in the tables is discarded.
func gracefulExit(c *cascade.Cascade, sm *serviceManager, snk sink.Sink) {
	log.Printf("Gracefully exiting...")

	log.Printf("Closing listeners...")
	sm.closeListeners(true)

	log.Printf("Stopping the cascade...")
	c.Stop()

	if err := snk.Close(); err != nil {
		log.Printf("Error closing sink: %v", err)
	}
	log.Printf("Sink closed.")
}
