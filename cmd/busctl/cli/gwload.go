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

package cli

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"mcbus/pkg/cmd"
	"mcbus/pkg/frame"
	"mcbus/pkg/io"
	"mcbus/third_party/forked/golang/glog"
)

type cmdGatewayLoadT struct {
	cmd.Command
	optServerAddr string
	optDuration   time.Duration
	optLogLevel   string
}

func (c *cmdGatewayLoadT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optServerAddr, "s|server", "127.0.0.1"+io.DefaultListenAddr, "specify gateway address")
	c.DurationOption(&c.optDuration, "t|duration", 10*time.Second, "specify how long to send")
	c.StringOption(&c.optLogLevel, "log-level", kDefaultLogLevel, "specify log level")
	c.SetSynopsis("[option]")
}

func (c *cmdGatewayLoadT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	glog.InitLogging(c.optLogLevel, " [busctl] ")
	if c.optDuration <= 0 {
		err = fmt.Errorf("duration must be positive")
	}
	return
}

func (c *cmdGatewayLoadT) Exec() {
	conn, err := net.Dial("tcp", c.optServerAddr)
	if err != nil {
		glog.Exitf("failed to connect to %s: %s", c.optServerAddr, err)
	}
	defer conn.Close()
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	glog.Infof("connected to %s", c.optServerAddr)

	numMessages, numBytes, err := writeOrders(conn, c.optDuration)
	if err != nil {
		glog.Errorf("write: %s", err)
	}
	fmt.Printf("%30s %d\n", "Total bytes written:", numBytes)
	fmt.Printf("%30s %d\n", "Total messages written:", numMessages)
}

// writeOrders streams length prefixed limit orders to w for duration.
func writeOrders(conn net.Conn, duration time.Duration) (numMessages int64, numBytes int64, err error) {
	w := bufio.NewWriterSize(conn, 64*1024)
	deadline := time.Now().Add(duration)
	buf := make([]byte, 0, 64)
	var prefix [2]byte
	for i := 1; ; i++ {
		if i%256 == 0 && time.Now().After(deadline) {
			break
		}
		buf = limitOrder(buf, i, time.Now())
		frame.ByteOrder.PutUint16(prefix[:], uint16(len(buf)))
		if _, err = w.Write(prefix[:]); err != nil {
			return
		}
		if _, err = w.Write(buf); err != nil {
			return
		}
		numMessages++
		numBytes += int64(len(prefix) + len(buf))
	}
	err = w.Flush()
	return
}
