//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package io

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mcbus/pkg/frame"
	"mcbus/pkg/io/ioutil"
	"mcbus/pkg/logging/otel"
	"mcbus/pkg/util"
	"mcbus/third_party/forked/golang/glog"
)

const (
	lengthPrefixSize = 2
	pollInterval     = 500 * time.Millisecond
)

// Connector reads length prefixed frames from one client connection:
// [len: u16, host byte order][payload: len bytes].
type Connector struct {
	conn      net.Conn
	reader    *bufio.Reader
	chStop    chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	config    InboundConfig
	handler   IFrameHandler
	connMgr   *InboundConnManager
	numFrames atomic.Uint64
}

func (c *Connector) Start() {
	glog.Verbosef("start connector...")
	c.connMgr.TrackConn(c, true)
	go c.doRead()
}

func (c *Connector) Stop() {
	c.stopOnce.Do(func() {
		close(c.chStop)
	})
}

func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		addr := "raddr=" + c.conn.RemoteAddr().String() + "&laddr=" + c.conn.LocalAddr().String()
		glog.Debugf("close: %s frames=%d", addr, c.numFrames.Load())

		c.Stop()
		c.conn.Close()
		c.connMgr.TrackConn(c, false)
		otel.RecordCount(otel.Close, []otel.Tags{{TagName: otel.Status, TagValue: otel.Success}})
	})
}

func (c *Connector) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connector) NumFrames() uint64 {
	return c.numFrames.Load()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// waitForFrame blocks until a length prefix is buffered. It gives up on
// stop, idle timeout or a connection error.
func (c *Connector) waitForFrame(idleTimer *time.Timer) (ok bool) {
	resetTimer(idleTimer, c.config.IdleTimeout.Duration)
	for {
		select {
		case <-idleTimer.C:
			glog.Debugf("idle timeout %s", c.conn.RemoteAddr())
			return false

		case <-c.chStop:
			glog.Verbosef("chStop")
			return false

		default:
			c.conn.SetReadDeadline(time.Now().Add(pollInterval))
			_, err := c.reader.Peek(lengthPrefixSize)
			if err == nil {
				return true
			}
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			ioutil.LogError(err)
			return false
		}
	}
}

func (c *Connector) doRead() {
	glog.Verbosef("start reader")
	idleTimer := time.NewTimer(c.config.IdleTimeout.Duration)

	defer func() {
		idleTimer.Stop()
		util.PutBufioReader(c.reader)
		glog.Verboseln("reader exit")
		c.Close()
	}()

	buf := make([]byte, c.config.MaxFrameSize)
	for c.waitForFrame(idleTimer) {
		prefix, _ := c.reader.Peek(lengthPrefixSize)
		size := int(frame.ByteOrder.Uint16(prefix))
		if size > c.config.MaxFrameSize {
			glog.Warningf("frame of %d bytes from %s exceeds %d. closing",
				size, c.conn.RemoteAddr(), c.config.MaxFrameSize)
			return
		}
		c.reader.Discard(lengthPrefixSize)

		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout.Duration))
		if _, err := io.ReadFull(c.reader, buf[:size]); err != nil {
			ioutil.LogError(fmt.Errorf("read frame of %d bytes: %w", size, err))
			return
		}
		c.numFrames.Add(1)
		if err := c.handler.OnFrame(c, buf[:size]); err != nil {
			glog.Warningf("frame from %s rejected: %s. closing", c.conn.RemoteAddr(), err)
			return
		}
	}
}
