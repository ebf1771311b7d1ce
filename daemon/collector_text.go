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
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tgres/ccollector/graceful"
)

// Largest possible UDP payload, so a datagram is never cut short.
const maxDatagramSize = 65535

type textServiceManager struct {
	ing        batchIngester
	listenSpec string
	sep        byte
	udp        bool
	stop       int32

	// TCP
	listener *graceful.Listener
	timeout  time.Duration

	// UDP
	conn *net.UDPConn
}

func (g *textServiceManager) Stop() {
	if g.stopped() {
		return
	}
	atomic.StoreInt32(&(g.stop), 1)
	if g.conn != nil {
		log.Printf("Closing UDP listener %s", g.listenSpec)
		g.conn.Close()
	}
	if g.listener != nil {
		log.Printf("Closing TCP listener %s", g.listenSpec)
		g.listener.Close()
	}
}

func (g *textServiceManager) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

// Addr is the bound address, or nil if not listening.
func (g *textServiceManager) Addr() net.Addr {
	if g.conn != nil {
		return g.conn.LocalAddr()
	}
	if g.listener != nil {
		return g.listener.Addr()
	}
	return nil
}

func (g *textServiceManager) Start() error {
	if g.udp {
		return g.startUDP()
	}
	return g.startTCP()
}

func (g *textServiceManager) startUDP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting UDP listener because udp-listen-spec is blank.")
		return nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", processListenSpec(g.listenSpec))
	if err == nil {
		g.conn, err = net.ListenUDP("udp", udpAddr)
	}
	if err != nil {
		return fmt.Errorf("Error starting UDP listener: %v", err)
	}

	log.Printf("UDP listening on %s", g.conn.LocalAddr())

	go g.handleUDP()

	return nil
}

// One datagram is one batch, ingested before the next read.
func (g *textServiceManager) handleUDP() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			if g.stopped() || strings.Contains(err.Error(), "use of closed") {
				return
			}
			log.Printf("handleUDP(): recvfrom failed: %v", err)
			continue
		}
		g.ing.IngestBatch(string(buf[:n]), g.sep)
	}
}

func (g *textServiceManager) startTCP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting TCP listener because tcp-listen-spec is blank.")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting TCP listener: %v", err)
	}

	g.listener = graceful.NewListener(gl)

	log.Printf("TCP listening on %s", gl.Addr())

	go g.tcpServer()

	return nil
}

func (g *textServiceManager) tcpServer() error {

	var tempDelay time.Duration
	for {
		conn, err := g.listener.Accept()

		if err != nil {
			// see http://golang.org/src/net/http/server.go?s=51504:51550#L1729
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Printf("tcpServer(): Accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		go g.handleTCP(conn)
	}
}

// Each line is a batch.
func (g *textServiceManager) handleTCP(conn net.Conn) {
	defer conn.Close() // decrements graceful.ConnWg

	if g.timeout != 0 {
		conn.SetDeadline(time.Now().Add(g.timeout))
	}

	// Scanner has a MaxScanTokenSize of 64K
	connbuf := bufio.NewScanner(conn)

	for connbuf.Scan() {
		g.ing.IngestBatch(connbuf.Text(), g.sep)

		if g.timeout != 0 {
			conn.SetDeadline(time.Now().Add(g.timeout))
		}

		if g.stopped() {
			return
		}
	}

	if err := connbuf.Err(); err != nil {
		if !strings.Contains(err.Error(), "use of closed") {
			log.Printf("handleTCP(): Error reading: %v", err)
		}
	}
}
