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
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type (
	latencyStat struct {
		mtx       sync.Mutex
		hist      *hdrhistogram.Histogram
		total     time.Duration
		numErrors int64
	}

	statsData struct {
		avgLatency   time.Duration
		minLatency   time.Duration
		maxLatency   time.Duration
		p50Latency   time.Duration
		p95Latency   time.Duration
		p99Latency   time.Duration
		p9999Latency time.Duration
		numSamples   int64
	}
)

func newLatencyStat() *latencyStat {
	return &latencyStat{
		hist: hdrhistogram.New(1, int64(3600*time.Second), 3),
	}
}

func (s *latencyStat) Put(tm time.Duration, err error) {
	s.mtx.Lock()
	if err != nil {
		s.numErrors++
	} else {
		s.hist.RecordValue(int64(tm))
		s.total += tm
	}
	s.mtx.Unlock()
}

func (s *latencyStat) NumErrors() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.numErrors
}

func (s *latencyStat) GetStats() (stat statsData) {
	s.mtx.Lock()
	stat.numSamples = s.hist.TotalCount()
	stat.minLatency = time.Duration(s.hist.Min())
	stat.maxLatency = time.Duration(s.hist.Max())
	stat.p50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.p95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.p99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
	stat.p9999Latency = time.Duration(s.hist.ValueAtQuantile(99.99))
	total := s.total
	s.mtx.Unlock()

	if stat.numSamples != 0 {
		stat.avgLatency = total / time.Duration(stat.numSamples)
	}
	return
}

// PrettyPrint writes one row per named stat. elapsed is the wall time the
// samples were taken over.
func PrettyPrint(w io.Writer, elapsed time.Duration, names []string, stats []*latencyStat) {
	usfunc := func(d time.Duration) time.Duration {
		return d.Round(time.Microsecond)
	}
	fmt.Fprintln(w, `
   msg/s    |                                 latency                                         |  number of | number of
            | average    | min        | max        |        50% |      95%   |      99%   |     99.99% |  messages  |  errors  |
------------+------------+------------+------------+------------+------------+------------+------------+------------+----------+---------`)
	for i, s := range stats {
		stat := s.GetStats()
		var rate float64
		if elapsed > 0 {
			rate = float64(stat.numSamples) / elapsed.Seconds()
		}
		fmt.Fprintf(w, "%12.2f %12s %12s %12s %12s %12s %12s %12s %12d %10d %s\n",
			rate, usfunc(stat.avgLatency), usfunc(stat.minLatency), usfunc(stat.maxLatency),
			usfunc(stat.p50Latency), usfunc(stat.p95Latency), usfunc(stat.p99Latency), usfunc(stat.p9999Latency),
			stat.numSamples, s.NumErrors(), names[i])
	}
}
