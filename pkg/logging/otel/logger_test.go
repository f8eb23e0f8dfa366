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
package otel

import (
	"testing"
	"time"

	otelCfg "mcbus/pkg/logging/otel/config"

	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

func counterTotal(metrics []*metricpb.Metric, name string) (total int64, found bool) {
	for _, m := range metrics {
		if m.GetName() != name {
			continue
		}
		found = true
		for _, dp := range m.GetSum().GetDataPoints() {
			total += dp.GetAsInt()
		}
	}
	return
}

func TestInitializeDisabled(t *testing.T) {
	cfg := &otelCfg.Config{Poolname: "mcbus-test"}
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %s", err)
	}
	if IsEnabled() {
		t.Error("provider started while disabled")
	}
	if err := Initialize("otel"); err == nil {
		t.Error("expected an error for a wrong argument type")
	}
}

func TestExportBusMetrics(t *testing.T) {
	mc := runMockCollector(t)
	defer mc.Stop()

	cfg := &otelCfg.Config{
		Host:       "127.0.0.1",
		Port:       mc.Port(),
		Poolname:   "mcbus-test",
		Enabled:    true,
		Resolution: 1,
	}
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %s", err)
	}
	if !IsEnabled() {
		t.Fatal("provider not started")
	}

	tags := []Tags{{Group, "239.0.0.1:40100"}}
	Add(TxDatagram, 3, tags)
	Add(TxFrame, 7, tags)
	RecordCount(RxGap, tags)
	RecordCount(RxGap, tags)
	RecordSyncSend(250*time.Microsecond, Success)

	// Shutdown collects and exports whatever the periodic reader has not.
	Finalize()
	if IsEnabled() {
		t.Error("provider still set after Finalize")
	}

	metrics := mc.GetMetrics()
	if len(metrics) == 0 {
		t.Fatal("no metrics received")
	}
	for name, want := range map[string]int64{
		"mcbus.tx_datagram": 3,
		"mcbus.tx_frame":    7,
		"mcbus.rx_gap":      2,
	} {
		got, found := counterTotal(metrics, name)
		if !found {
			t.Errorf("%s not exported", name)
		} else if got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}

	var count uint64
	var sum float64
	for _, m := range metrics {
		if m.GetName() != "mcbus.sync_send_latency" {
			continue
		}
		for _, dp := range m.GetHistogram().GetDataPoints() {
			count += dp.GetCount()
			sum += dp.GetSum()
		}
	}
	if count != 1 || sum != 250 {
		t.Errorf("sync send histogram count=%d sum=%v, want 1 and 250", count, sum)
	}
}
