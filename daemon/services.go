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
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tgres/ccollector/graceful"
)

// Anything that can take a separator-delimited batch of records.
type batchIngester interface {
	IngestBatch(batch string, sep byte)
}

type trService interface {
	Start() error
	Stop()
}

type serviceMap map[string]trService
type serviceManager struct {
	services serviceMap
}

func newServiceManager(ing batchIngester, cfg *Config) *serviceManager {
	sep := byte(',')
	if len(cfg.RecordSeparator) > 0 {
		sep = cfg.RecordSeparator[0]
	}
	return &serviceManager{
		services: serviceMap{
			"udp": &textServiceManager{ing: ing, listenSpec: cfg.UdpListenSpec, sep: sep, udp: true},
			"tcp": &textServiceManager{ing: ing, listenSpec: cfg.TcpListenSpec, sep: sep, timeout: 30 * time.Second},
		},
	}
}

func processListenSpec(listenSpec string) string {
	if os.Getenv("CCOLLECTOR_BIND") != "" {
		return strings.Replace(listenSpec, "0.0.0.0", os.Getenv("CCOLLECTOR_BIND"), 1)
	}
	return listenSpec
}

func (r *serviceManager) names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *serviceManager) run() error {
	for _, name := range r.names() {
		if err := r.services[name].Start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *serviceManager) closeListeners(wait bool) {
	for _, name := range r.names() {
		r.services[name].Stop()
	}
	if wait {
		log.Printf("Waiting for graceful.ConnWg...")
		graceful.ConnWg.Wait()
	}
}
