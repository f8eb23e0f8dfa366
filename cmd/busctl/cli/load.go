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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"mcbus/pkg/mcast"
	"mcbus/pkg/messaging"
	"mcbus/pkg/sequence"
	"mcbus/third_party/forked/golang/glog"
)

const (
	kDefaultNumMessages = 100000
	kDrainTimeout       = 2 * time.Second
)

type (
	cmdLoadT struct {
		busCommandT
		optNumMessages uint
		optRate        uint
		optDuration    time.Duration
		optLocal       bool
	}

	loadResult struct {
		elapsed   time.Duration
		sent      int
		delivered uint64
		send      *latencyStat
		delivery  *latencyStat
	}
)

func (c *cmdLoadT) Init(name string, desc string) {
	c.busCommandT.Init(name, desc)
	c.UintOption(&c.optNumMessages, "n|num-messages", kDefaultNumMessages, "specify the number of messages to send")
	c.UintOption(&c.optRate, "r|rate", 0, "specify the target send rate in messages per second. 0 for no limit")
	c.DurationOption(&c.optDuration, "t|duration", 0, "stop sending after the given time. override -n")
	c.BoolOption(&c.optLocal, "local", false, "run a publisher and a receiver on an in-memory group. no sequence authority needed")
	c.SetSynopsis("[option]")
	c.AddDetails(`	Sends synthetic limit orders and reports the latency of Send and, for
	messages echoed back to this process, the delivery latency.
`)
	c.AddExample("busctl load -local -n 1000000 -sync", "measure synchronous sends without a network")
}

func (c *cmdLoadT) Exec() {
	ctx := context.Background()
	var publisher, receiver *messaging.Bus
	var err error

	if c.optLocal {
		hub := mcast.NewHub()
		auth := sequence.NewLocalAuthority()
		if publisher, err = newLocalBus(ctx, c.conf.Messaging, auth, hub); err != nil {
			glog.Exitf("%s", err)
		}
		rcfg := c.conf.Messaging
		rcfg.SyncSend = false
		if receiver, err = newLocalBus(ctx, rcfg, auth, hub); err != nil {
			glog.Exitf("%s", err)
		}
		startBus(receiver)
	} else {
		var closeAuth func()
		if publisher, closeAuth, err = c.newBus(ctx); err != nil {
			glog.Exitf("%s", err)
		}
		defer closeAuth()
		if c.conf.Messaging.Loopback {
			receiver = publisher
		}
	}

	res := runLoad(publisher, receiver, c.optNumMessages, c.optRate, c.optDuration)

	publisher.Shutdown()
	if receiver != nil && receiver != publisher {
		receiver.Shutdown()
	}
	res.print(publisher)
}

// runLoad sends limit orders on publisher until num messages are sent or
// duration elapses, then waits briefly for receiver to catch up.
func runLoad(publisher, receiver *messaging.Bus, num uint, rate uint, duration time.Duration) (res loadResult) {
	res.send = newLatencyStat()
	res.delivery = newLatencyStat()

	var delivered atomic.Uint64
	if receiver != nil {
		receiver.RegisterCallback(messaging.ConsumerFunc(func(data []byte) {
			if len(data) < 10 || !bytes.HasPrefix(data[8:], []byte("L|")) {
				return
			}
			if tm, ok := orderSentAt(data); ok {
				res.delivery.Put(time.Since(tm), nil)
				delivered.Add(1)
			}
		}))
	}
	startBus(publisher)

	var interval time.Duration
	if rate != 0 {
		interval = time.Second / time.Duration(rate)
	}
	buf := make([]byte, 0, 64)
	start := time.Now()
	var deadline time.Time
	if duration > 0 {
		deadline = start.Add(duration)
	}
	for i := 1; ; i++ {
		if duration > 0 {
			if i%64 == 0 && time.Now().After(deadline) {
				break
			}
		} else if i > int(num) {
			break
		}
		if interval != 0 {
			if d := time.Until(start.Add(time.Duration(i-1) * interval)); d > 0 {
				time.Sleep(d)
			}
		}
		tm := time.Now()
		buf = limitOrder(buf, i, tm)
		err := publisher.Send(buf)
		res.send.Put(time.Since(tm), err)
		if err != nil {
			glog.Warningf("send %d: %s", i, err)
			if errors.Is(err, mcast.ErrConnLeft) {
				break
			}
			continue
		}
		res.sent++
	}
	res.elapsed = time.Since(start)

	if receiver != nil {
		drainBy := time.Now().Add(kDrainTimeout)
		for delivered.Load() < uint64(res.sent) && time.Now().Before(drainBy) {
			time.Sleep(10 * time.Millisecond)
		}
	}
	res.delivered = delivered.Load()
	return
}

func (r *loadResult) print(publisher *messaging.Bus) {
	names := []string{"send"}
	stats := []*latencyStat{r.send}
	if r.delivered != 0 {
		names = append(names, "delivery")
		stats = append(stats, r.delivery)
	}
	PrettyPrint(os.Stdout, r.elapsed, names, stats)
	fmt.Printf("\n%28s %d\n", "Total messages sent:", r.sent)
	fmt.Printf("%28s %d\n", "Total messages delivered:", r.delivered)
	tx := publisher.TxStats()
	fmt.Printf("%28s %d\n", "Total bytes written:", tx.Bytes)
	fmt.Printf("%28s %s\n", "Elapsed:", r.elapsed)
	fmt.Printf("%28s %s\n", "Transport:", publisher.TransportStats())
}
