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

package etcd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseCounter(t *testing.T) {
	tests := []struct {
		in     string
		expect int64
		ok     bool
	}{
		{"", 0, true},
		{"0", 0, true},
		{"41", 41, true},
		{" 7\n", 7, true},
		{"-3", -3, true},
		{"abc", 0, false},
		{"1.5", 0, false},
	}
	for _, tc := range tests {
		v, err := parseCounter([]byte(tc.in))
		if tc.ok && err != nil {
			t.Errorf("parseCounter(%q): %s", tc.in, err)
			continue
		}
		if !tc.ok && err == nil {
			t.Errorf("parseCounter(%q) expected error", tc.in)
			continue
		}
		if tc.ok && v != tc.expect {
			t.Errorf("parseCounter(%q) = %d, expect %d", tc.in, v, tc.expect)
		}
	}
}

func TestCountReplicas(t *testing.T) {
	if n := countReplicas(10, nil); n != 0 {
		t.Errorf("expect 0, got %d", n)
	}
	if n := countReplicas(10, []uint64{9, 10, 11}); n != 2 {
		t.Errorf("expect 2, got %d", n)
	}
	// no index recorded for the increment: nothing counts as replicated
	if n := countReplicas(0, []uint64{0, 0, 12}); n != 0 {
		t.Errorf("expect 0 without a target, got %d", n)
	}
}

func TestKeyPublisher(t *testing.T) {
	if k := KeyPublisher(42); k != "publisher_00042" {
		t.Errorf("unexpected key %s", k)
	}
	if k := Key("x"); k != "x" {
		t.Errorf("unexpected key %s", k)
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaultIfNotDefined()
	if cfg.RequestTimeout.Duration != time.Second || cfg.MaxConnectAttempts != 5 ||
		cfg.EtcdKeyPrefix != "mcbus." || cfg.PollInterval.Duration != 50*time.Millisecond {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	c := NewConfig("a:2379", "b:2379")
	if len(c.Endpoints) != 2 {
		t.Errorf("expect 2 endpoints, got %v", c.Endpoints)
	}
}

func TestNoEndpoints(t *testing.T) {
	if cli := NewEtcdClient(&Config{}, "test"); cli != nil {
		t.Error("expect nil client without endpoints")
	}
}

// Runs against a live cluster named by MCBUS_ETCD_ENDPOINTS.
func TestIncrementLive(t *testing.T) {
	eps, ok := os.LookupEnv("MCBUS_ETCD_ENDPOINTS")
	if !ok || len(eps) == 0 {
		t.Skip("MCBUS_ETCD_ENDPOINTS not set")
	}
	cfg := NewConfig(strings.Split(eps, ",")...)
	cli := NewEtcdClient(cfg, "test"+time.Now().Format("150405.000000"))
	if cli == nil {
		t.Fatal("failed to connect")
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := cli.Increment(ctx, "counter")
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 {
		t.Errorf("expect 1 on fresh counter, got %d", first)
	}
	second, err := cli.Increment(ctx, "counter")
	if err != nil {
		t.Fatal(err)
	}
	if second != first+1 {
		t.Errorf("expect %d, got %d", first+1, second)
	}
	if n, err := cli.WaitForReplicas(ctx, 1); err != nil || n < 1 {
		t.Errorf("WaitForReplicas: %d %v", n, err)
	}
	if err := cli.Announce(ctx, 2, "instance"); err != nil {
		t.Error(err)
	}
	if v, err := cli.GetValue(KeyPublisher(2)); err != nil || v != "instance" {
		t.Errorf("GetValue: %q %v", v, err)
	}
}
