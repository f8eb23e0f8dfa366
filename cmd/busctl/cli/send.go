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
	"time"

	"mcbus/third_party/forked/golang/glog"
)

type cmdSendT struct {
	busCommandT
	optValueType uint
	payloads     [][]byte
}

func (c *cmdSendT) Init(name string, desc string) {
	c.busCommandT.Init(name, desc)
	c.UintOption(&c.optValueType, "vt|value-type", 0, "specify the type of the payloads. \n   \t0 - string\n   \t1 - hex")
	c.SetSynopsis("[option] <payload> [<payload> ...]")
}

func (c *cmdSendT) Parse(args []string) (err error) {
	if err = c.busCommandT.Parse(args); err != nil {
		return
	}
	if c.NArg() < 1 {
		return fmt.Errorf("missing payload")
	}
	c.payloads = c.payloads[:0]
	for _, arg := range c.Args() {
		switch c.optValueType {
		case 0:
			c.payloads = append(c.payloads, []byte(arg))
		case 1:
			var b []byte
			if b, err = hex.DecodeString(arg); err != nil {
				return
			}
			c.payloads = append(c.payloads, b)
		default:
			return fmt.Errorf("value type %d not supported", c.optValueType)
		}
	}
	return
}

func (c *cmdSendT) Exec() {
	bus, closeAuth, err := c.newBus(context.Background())
	if err != nil {
		glog.Exitf("%s", err)
	}
	defer closeAuth()
	startBus(bus)

	for _, p := range c.payloads {
		start := time.Now()
		if err = bus.Send(p); err != nil {
			break
		}
		fmt.Printf("sent %d bytes in %s\n", len(p), time.Since(start))
	}
	bus.Shutdown()
	if err != nil {
		closeAuth()
		glog.Exitf("send: %s", err)
	}
	fmt.Printf("%s\n", bus.TransportStats())
}
