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
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	otelCfg "mcbus/pkg/logging/otel/config"
	"mcbus/third_party/forked/golang/glog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
	"go.opentelemetry.io/otel/metric/unit"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

type CMetric int

const (
	TxDatagram CMetric = CMetric(iota)
	TxFrame
	TxBytes
	RxDatagram
	RxFrame
	RxBytes
	RxDuplicate
	RxGap
	RxMalformed
	SyncTimeout
	Accept
	Close
)

type Tags struct {
	TagName  string
	TagValue string
}

const (
	Publisher = string("publisher")
	Group     = string("group")
	Status    = string("status")
	Success   = string("Success")
	Error     = string("Error")
)

type countMetric struct {
	metricName    string
	metricDesc    string
	counter       syncint64.Counter
	createCounter sync.Once
}

var countMetricMap map[CMetric]*countMetric = map[CMetric]*countMetric{
	TxDatagram:  {metricName: "tx_datagram", metricDesc: "Datagrams sent to the multicast group"},
	TxFrame:     {metricName: "tx_frame", metricDesc: "Messages sent to the multicast group"},
	TxBytes:     {metricName: "tx_bytes", metricDesc: "Payload bytes sent to the multicast group"},
	RxDatagram:  {metricName: "rx_datagram", metricDesc: "Datagrams received from the multicast group"},
	RxFrame:     {metricName: "rx_frame", metricDesc: "Messages delivered to subscribers"},
	RxBytes:     {metricName: "rx_bytes", metricDesc: "Payload bytes delivered to subscribers"},
	RxDuplicate: {metricName: "rx_duplicate", metricDesc: "Messages dropped as duplicates"},
	RxGap:       {metricName: "rx_gap", metricDesc: "Messages dropped after a sequence gap"},
	RxMalformed: {metricName: "rx_malformed", metricDesc: "Datagrams dropped as malformed"},
	SyncTimeout: {metricName: "sync_timeout", metricDesc: "Synchronous sends not echoed in time"},
	Accept:      {metricName: "gw_accept", metricDesc: "Gateway connections accepted"},
	Close:       {metricName: "gw_close", metricDesc: "Gateway connections closed"},
}

const METRIC_PREFIX = "mcbus."
const MeterName = "mcbus-meter"

var (
	meterProvider      *metric.MeterProvider
	providerMtx        sync.Mutex
	syncSendHistOnce   sync.Once
	syncSendHistogram  syncint64.Histogram
	errCounterNotReady = errors.New("Counter Object not Ready")
)

func Initialize(args ...interface{}) (err error) {
	sz := len(args)
	if sz == 0 {
		err = fmt.Errorf("Otel config argument not as expected")
		glog.Error(err)
		return
	}
	var c *otelCfg.Config
	var ok bool
	if c, ok = args[0].(*otelCfg.Config); !ok {
		err = fmt.Errorf("wrong argument type")
		glog.Error(err)
		return
	}
	c.Validate()
	if c.Enabled {
		c.Dump()
		err = InitMetricProvider(c)
	}
	return
}

func Finalize() {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	if meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			glog.Warningf("otel shutdown: %s", err)
		}
		meterProvider = nil
	}
}

func InitMetricProvider(config *otelCfg.Config) error {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	if meterProvider != nil {
		return nil
	}

	ctx := context.Background()

	syncSendView := metric.NewView(
		metric.Instrument{
			Name:  PopulateMetricNamePrefix("sync_send_latency"),
			Scope: instrumentation.Scope{Name: MeterName},
		},
		metric.Stream{
			Aggregation: aggregation.ExplicitBucketHistogram{
				Boundaries: config.HistogramBuckets.SyncSend,
			},
		})

	provider, err := NewMeterProvider(ctx, *config, syncSendView)
	if err != nil {
		return err
	}
	meterProvider = provider
	global.SetMeterProvider(provider)
	return nil
}

func NewMeterProvider(ctx context.Context, cfg otelCfg.Config, vis ...metric.View) (*metric.MeterProvider, error) {
	exp, err := NewHTTPExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reader := metric.NewPeriodicReader(exp, metric.WithInterval(time.Duration(cfg.Resolution)*time.Second))
	return metric.NewMeterProvider(
		metric.WithResource(getResourceInfo(cfg)),
		metric.WithReader(reader),
		metric.WithView(vis...),
	), nil
}

func NewHTTPExporter(ctx context.Context, cfg otelCfg.Config) (metric.Exporter, error) {
	var deltaTemporalitySelector = func(metric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		otlpmetrichttp.WithURLPath("/" + cfg.UrlPath),
		otlpmetrichttp.WithTimeout(7 * time.Second),
		otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	}
	if !cfg.UseTls {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func IsEnabled() bool {
	providerMtx.Lock()
	defer providerMtx.Unlock()
	return meterProvider != nil
}

func GetCounter(counterName CMetric) (syncint64.Counter, error) {
	if counterMetric, ok := countMetricMap[counterName]; ok {
		counterMetric.createCounter.Do(func() {
			meter := global.Meter(MeterName)
			counterMetric.counter, _ = meter.SyncInt64().Counter(
				PopulateMetricNamePrefix(counterMetric.metricName),
				instrument.WithDescription(counterMetric.metricDesc),
			)
		})
		if counterMetric.counter != nil {
			return counterMetric.counter, nil
		}
		return nil, errCounterNotReady
	}
	return nil, errors.New("No Such counter exists")
}

func GetHistogramForSyncSend() (syncint64.Histogram, error) {
	var err error
	syncSendHistOnce.Do(func() {
		meter := global.Meter(MeterName)
		syncSendHistogram, err = meter.SyncInt64().Histogram(
			PopulateMetricNamePrefix("sync_send_latency"),
			instrument.WithDescription("Time between a synchronous send and its loopback echo"),
			instrument.WithUnit(unit.Unit("us")),
		)
	})
	if syncSendHistogram == nil && err == nil {
		err = errCounterNotReady
	}
	return syncSendHistogram, err
}

func RecordCount(counterName CMetric, tags []Tags) {
	Add(counterName, 1, tags)
}

func Add(counterName CMetric, n int64, tags []Tags) {
	ctx := context.Background()
	if counter, err := GetCounter(counterName); err == nil {
		if len(tags) != 0 {
			counter.Add(ctx, n, covertTagsToOTELAttributes(tags)...)
		} else {
			counter.Add(ctx, n)
		}
	} else {
		glog.Error(err)
	}
}

func RecordSyncSend(latency time.Duration, status string) {
	if hist, err := GetHistogramForSyncSend(); err == nil {
		hist.Record(context.Background(), latency.Microseconds(), attribute.String(Status, status))
	}
}

func covertTagsToOTELAttributes(tags []Tags) (attr []attribute.KeyValue) {
	attr = make([]attribute.KeyValue, len(tags))
	for i := 0; i < len(tags); i++ {
		attr[i] = attribute.String(tags[i].TagName, tags[i].TagValue)
	}
	return
}

func PopulateMetricNamePrefix(metricName string) string {
	return METRIC_PREFIX + metricName
}

func getResourceInfo(cfg otelCfg.Config) *resource.Resource {
	hostname, _ := os.Hostname()
	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.HostNameKey.String(hostname),
		semconv.ServiceNameKey.String(cfg.Poolname),
		attribute.String("environment", env),
		attribute.String("application", cfg.Poolname),
	)
}
