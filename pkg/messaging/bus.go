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

package messaging

import (
	"context"
	"fmt"
	"sync/atomic"

	uuid "github.com/satori/go.uuid"

	"mcbus/pkg/dispatch"
	"mcbus/pkg/frame"
	"mcbus/pkg/mcast"
	"mcbus/pkg/sequence"
	"mcbus/third_party/forked/golang/glog"
)

type Config struct {
	mcast.Config
	// Compression is applied to every payload: "none" or "snappy". All
	// publishers on a group must agree.
	Compression string
}

func (c *Config) Dump() {
	c.Config.Dump()
	glog.Infof("Compression: %s", c.Compression)
}

// StreamStats counts the messages crossing the service boundary in one
// direction, before compression.
type StreamStats struct {
	Messages uint64
	Bytes    uint64
}

type streamMeasure struct {
	messages atomic.Uint64
	bytes    atomic.Uint64
}

func (m *streamMeasure) record(n int) {
	m.messages.Add(1)
	m.bytes.Add(uint64(n))
}

func (m *streamMeasure) get() StreamStats {
	return StreamStats{Messages: m.messages.Load(), Bytes: m.bytes.Load()}
}

type Option func(*Bus)

// WithTransportOptions passes options through to the multicast connection.
func WithTransportOptions(opts ...mcast.Option) Option {
	return func(b *Bus) {
		b.transportOpts = append(b.transportOpts, opts...)
	}
}

// Bus is the multicast backed Service.
type Bus struct {
	config        Config
	id            sequence.PublisherId
	instance      uuid.UUID
	codec         codec
	conn          *mcast.Conn
	consumers     *dispatch.Dispatcher
	transportOpts []mcast.Option

	rx streamMeasure
	tx streamMeasure
}

var _ Service = (*Bus)(nil)

// New draws a publisher id from auth and builds the bus around it. Any
// error leaves the process without a usable bus; it is not retried.
func New(ctx context.Context, cfg Config, seqCfg sequence.Config, auth sequence.Authority, opts ...Option) (b *Bus, err error) {
	b = &Bus{
		config:    cfg,
		instance:  uuid.NewV1(),
		consumers: dispatch.New(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.codec, err = newCodec(cfg.Compression); err != nil {
		return nil, err
	}

	if b.id, err = sequence.AcquirePublisherId(ctx, auth, seqCfg); err != nil {
		return nil, err
	}
	if a, ok := auth.(sequence.Announcer); ok {
		if e := a.Announce(ctx, b.id, b.instance.String()); e != nil {
			glog.Warningf("announce publisher %d: %s", b.id, e)
		}
	}

	inbound := dispatch.New()
	inbound.Register(dispatch.SubscriberFunc(b.received))
	if b.conn, err = mcast.New(cfg.Config, sequence.NewTracker(b.id), inbound, b.transportOpts...); err != nil {
		return nil, err
	}
	glog.Infof("messaging bus publisher=%d instance=%s group=%s", b.id, b.instance, cfg.GroupAddr())
	return b, nil
}

// Start joins the group. The read side is always joined; the writer is
// started for buffered buses.
func (b *Bus) Start() error {
	mode := mcast.JoinRead
	if b.conn.Config().Buffered {
		mode |= mcast.JoinWrite
	}
	return b.conn.Join(mode)
}

func (b *Bus) Shutdown() {
	b.conn.Leave()
	glog.Infof("messaging bus publisher=%d msg_tx=%d/%dB msg_rx=%d/%dB",
		b.id, b.tx.messages.Load(), b.tx.bytes.Load(), b.rx.messages.Load(), b.rx.bytes.Load())
}

// Send rejects a payload longer than MaxPayloadSize before encoding it.
func (b *Bus) Send(payload []byte) (err error) {
	if max := b.MaxPayloadSize(); len(payload) > max {
		return fmt.Errorf("%w: %d > %d", frame.ErrPayloadTooLarge, len(payload), max)
	}
	var data []byte
	if data, err = b.codec.encode(payload); err != nil {
		return
	}
	if err = b.conn.Send(data); err != nil {
		return
	}
	b.tx.record(len(payload))
	return
}

func (b *Bus) RegisterCallback(c Consumer) {
	b.consumers.Register(c)
}

func (b *Bus) received(data []byte) {
	payload, err := b.codec.decode(data)
	if err != nil {
		glog.Warningf("messaging: drop undecodable payload of %d bytes: %s", len(data), err)
		return
	}
	b.rx.record(len(payload))
	b.consumers.Dispatch(payload)
}

func (b *Bus) PublisherId() sequence.PublisherId {
	return b.id
}

func (b *Bus) Instance() string {
	return b.instance.String()
}

// MaxPayloadSize is the largest payload Send accepts, whether or not it
// compresses.
func (b *Bus) MaxPayloadSize() int {
	return b.conn.MaxPayloadSize() - b.codec.overhead()
}

func (b *Bus) TransportStats() mcast.Stats {
	return b.conn.Stats()
}

func (b *Bus) RxStats() StreamStats {
	return b.rx.get()
}

func (b *Bus) TxStats() StreamStats {
	return b.tx.get()
}

func (b *Bus) String() string {
	return fmt.Sprintf("bus(publisher=%d group=%s)", b.id, b.config.GroupAddr())
}
