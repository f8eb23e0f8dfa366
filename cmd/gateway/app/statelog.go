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

package app

import (
	"fmt"
	"os"
	"time"

	"mcbus/pkg/messaging"
	"mcbus/pkg/stats"
)

// busStates are the columns of the gateway state log: connections, then
// per interval message and datagram counts in both directions and the
// receive anomalies.
func busStates(bus *messaging.Bus, gw *Gateway) []stats.IState {
	return []stats.IState{
		stats.NewGenState("conns", "number of client connections", func() string {
			return fmt.Sprint(gw.NumActiveConnections())
		}, 5),
		stats.NewUint64DeltaState(func() uint64 { return bus.TxStats().Messages }, "msg_tx", "messages sent"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TxStats().Bytes }, "bytes_tx", "payload bytes sent"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TransportStats().TxDatagrams }, "dgram_tx", "datagrams sent"),
		stats.NewUint64DeltaState(func() uint64 { return bus.RxStats().Messages }, "msg_rx", "messages delivered"),
		stats.NewUint64DeltaState(func() uint64 { return bus.RxStats().Bytes }, "bytes_rx", "payload bytes delivered"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TransportStats().RxDatagrams }, "dgram_rx", "datagrams received"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TransportStats().Gaps }, "gap", "gaps detected"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TransportStats().Duplicates }, "dup", "duplicates dropped"),
		stats.NewUint64DeltaState(func() uint64 { return bus.TransportStats().Malformed }, "bad", "malformed datagrams"),
	}
}

// startStateLog writes the bus state every interval to dir/state.log, or
// to stderr when dir is empty.
func startStateLog(bus *messaging.Bus, gw *Gateway, dir string, interval time.Duration) (*stats.StateLog, error) {
	var w *stats.TextWriter
	if len(dir) == 0 {
		w = stats.NewTextWriter(os.Stderr)
	} else {
		var err error
		if w, err = stats.NewFileWriter(dir); err != nil {
			return nil, err
		}
	}
	l := &stats.StateLog{}
	l.Init(interval, busStates(bus, gw))
	l.AddStateWriter(w)
	l.Run()
	return l, nil
}
