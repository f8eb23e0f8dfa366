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

package mcast

import (
	"fmt"
	"sync/atomic"

	"mcbus/pkg/logging/otel"
)

// Stats is a snapshot of a connection's counters.
type Stats struct {
	TxDatagrams  uint64
	TxFrames     uint64
	TxBytes      uint64
	RxDatagrams  uint64
	RxFrames     uint64
	RxBytes      uint64
	Duplicates   uint64
	Gaps         uint64
	Malformed    uint64
	SyncTimeouts uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("tx=%d/%d/%dB rx=%d/%d/%dB dup=%d gap=%d malformed=%d synctimeout=%d",
		s.TxDatagrams, s.TxFrames, s.TxBytes, s.RxDatagrams, s.RxFrames, s.RxBytes,
		s.Duplicates, s.Gaps, s.Malformed, s.SyncTimeouts)
}

type counter struct {
	v      atomic.Uint64
	metric otel.CMetric
}

type connStats struct {
	tags []otel.Tags
	otel bool

	txDatagrams  counter
	txFrames     counter
	txBytes      counter
	rxDatagrams  counter
	rxFrames     counter
	rxBytes      counter
	duplicates   counter
	gaps         counter
	malformed    counter
	syncTimeouts counter
}

func (s *connStats) init(tags []otel.Tags) {
	s.tags = tags
	s.otel = otel.IsEnabled()
	s.txDatagrams.metric = otel.TxDatagram
	s.txFrames.metric = otel.TxFrame
	s.txBytes.metric = otel.TxBytes
	s.rxDatagrams.metric = otel.RxDatagram
	s.rxFrames.metric = otel.RxFrame
	s.rxBytes.metric = otel.RxBytes
	s.duplicates.metric = otel.RxDuplicate
	s.gaps.metric = otel.RxGap
	s.malformed.metric = otel.RxMalformed
	s.syncTimeouts.metric = otel.SyncTimeout
}

func (s *connStats) add(c *counter, n uint64) {
	c.v.Add(n)
	if s.otel {
		otel.Add(c.metric, int64(n), s.tags)
	}
}

func (s *connStats) snapshot() Stats {
	return Stats{
		TxDatagrams:  s.txDatagrams.v.Load(),
		TxFrames:     s.txFrames.v.Load(),
		TxBytes:      s.txBytes.v.Load(),
		RxDatagrams:  s.rxDatagrams.v.Load(),
		RxFrames:     s.rxFrames.v.Load(),
		RxBytes:      s.rxBytes.v.Load(),
		Duplicates:   s.duplicates.v.Load(),
		Gaps:         s.gaps.v.Load(),
		Malformed:    s.malformed.v.Load(),
		SyncTimeouts: s.syncTimeouts.v.Load(),
	}
}
