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
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"unicode/utf8"

	"mcbus/pkg/messaging"
	"mcbus/third_party/forked/golang/glog"
)

type cmdListenT struct {
	busCommandT
	optCount uint
	optHex   bool
}

func (c *cmdListenT) Init(name string, desc string) {
	c.busCommandT.Init(name, desc)
	c.UintOption(&c.optCount, "n|count", 0, "exit after receiving the given number of messages. 0 for no limit")
	c.BoolOption(&c.optHex, "hex", false, "print every message as hex")
	c.SetSynopsis("[option]")
}

func (c *cmdListenT) Exec() {
	bus, closeAuth, err := c.newBus(context.Background())
	if err != nil {
		glog.Exitf("%s", err)
	}
	defer closeAuth()

	doneCh := make(chan struct{})
	var received atomic.Uint64
	bus.RegisterCallback(messaging.ConsumerFunc(func(data []byte) {
		n := received.Add(1)
		fmt.Printf("%d\t%s\n", n, c.format(data))
		if c.optCount != 0 && n == uint64(c.optCount) {
			close(doneCh)
		}
	}))
	startBus(bus)
	fmt.Fprintf(os.Stderr, "listening on %s as publisher %d\n", c.conf.Messaging.GroupAddr(), bus.PublisherId())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-doneCh:
	case <-sigCh:
	}
	signal.Stop(sigCh)
	bus.Shutdown()
	fmt.Fprintf(os.Stderr, "%s\n", bus.TransportStats())
}

func (c *cmdListenT) format(data []byte) string {
	if c.optHex || !utf8.Valid(data) {
		return hex.EncodeToString(data)
	}
	return string(data)
}
