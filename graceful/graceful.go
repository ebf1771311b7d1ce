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

// Package graceful provides a TCP listener that keeps count of open
// connections so that shutdown can wait for them to be closed.
package graceful

import (
	"net"
	"sync"
	"syscall"
)

// ConnWg tracks every connection accepted by any Listener.
var ConnWg sync.WaitGroup

type gracefulConn struct {
	net.Conn
	once *sync.Once
}

func (w gracefulConn) Close() error {
	err := w.Conn.Close()
	w.once.Do(ConnWg.Done)
	return err
}

type Listener struct {
	net.Listener
	mu      sync.Mutex
	stopped bool
}

func NewListener(l net.Listener) *Listener {
	return &Listener{Listener: l}
}

// Close stops accepting. A second Close returns EINVAL.
func (gl *Listener) Close() error {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	if gl.stopped {
		return syscall.EINVAL
	}
	gl.stopped = true
	return gl.Listener.Close()
}

func (gl *Listener) Accept() (net.Conn, error) {
	c, err := gl.Listener.Accept()
	if err != nil {
		return nil, err
	}
	ConnWg.Add(1)
	return gracefulConn{Conn: c, once: &sync.Once{}}, nil
}
