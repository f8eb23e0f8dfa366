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
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"google.golang.org/protobuf/proto"

	collectormetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

const defaultMetricsPath = "/v1/metrics"

// mockCollector is a minimal OTLP/HTTP metrics receiver.
type mockCollector struct {
	port   uint32
	server *http.Server

	mtx     sync.Mutex
	metrics []*metricpb.Metric
}

func runMockCollector(t *testing.T) *mockCollector {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	c := &mockCollector{port: uint32(port)}
	mux := http.NewServeMux()
	mux.Handle(defaultMetricsPath, http.HandlerFunc(c.serveMetrics))
	c.server = &http.Server{Handler: mux}
	go c.server.Serve(ln)
	return c
}

func (c *mockCollector) Port() uint32 {
	return c.port
}

func (c *mockCollector) Stop() {
	c.server.Shutdown(context.Background())
}

func (c *mockCollector) GetMetrics() []*metricpb.Metric {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	m := make([]*metricpb.Metric, 0, len(c.metrics))
	return append(m, c.metrics...)
}

func (c *mockCollector) serveMetrics(w http.ResponseWriter, r *http.Request) {
	raw, err := readRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if ct := r.Header.Get("content-type"); ct != "application/x-protobuf" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	request := &collectormetricpb.ExportMetricsServiceRequest{}
	if err = proto.Unmarshal(raw, request); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	response, err := proto.Marshal(&collectormetricpb.ExportMetricsServiceResponse{})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(response)

	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, rm := range request.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			c.metrics = append(c.metrics, sm.GetMetrics()...)
		}
	}
}

func readRequest(r *http.Request) ([]byte, error) {
	if r.Header.Get("Content-Encoding") != "gzip" {
		return io.ReadAll(r.Body)
	}
	gz, err := gzip.NewReader(r.Body)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	var buf bytes.Buffer
	if _, err = io.Copy(&buf, gz); err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	return buf.Bytes(), nil
}
