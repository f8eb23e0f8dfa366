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
	"net"
	"sync"
)

// Hub is an in-memory multicast group. Every datagram written by a member
// is delivered to every subscribed member, including the writer when it
// asked for loopback. Delivery to a member whose inbox is full is dropped,
// like a UDP socket with a full receive buffer.
type Hub struct {
	mtx       sync.Mutex
	members   map[*hubConn]struct{}
	inboxSize int
	nextPort  int
}

func NewHub() *Hub {
	return &Hub{
		members:   make(map[*hubConn]struct{}),
		inboxSize: 4096,
		nextPort:  1,
	}
}

type hubAddr string

func (a hubAddr) Network() string { return "hub" }
func (a hubAddr) String() string  { return string(a) }

type hubConn struct {
	hub       *Hub
	addr      hubAddr
	subscribe bool
	loopback  bool
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// Opener returns an Opener attaching connections to h.
func (h *Hub) Opener() Opener {
	return func(cfg *Config, subscribe bool) (PacketConn, net.Addr, error) {
		h.mtx.Lock()
		defer h.mtx.Unlock()
		c := &hubConn{
			hub:       h,
			addr:      hubAddr(fmt.Sprintf("hub:%d", h.nextPort)),
			subscribe: subscribe,
			loopback:  cfg.Loopback,
			inbox:     make(chan []byte, h.inboxSize),
			closed:    make(chan struct{}),
		}
		h.nextPort++
		h.members[c] = struct{}{}
		return c, hubAddr(cfg.GroupAddr()), nil
	}
}

// Inject delivers datagram to every subscribed member as if a remote
// publisher had sent it.
func (h *Hub) Inject(datagram []byte) {
	h.deliver(nil, datagram)
}

func (h *Hub) NumMembers() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.members)
}

func (h *Hub) deliver(from *hubConn, datagram []byte) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for m := range h.members {
		if !m.subscribe || (m == from && !m.loopback) {
			continue
		}
		b := make([]byte, len(datagram))
		copy(b, datagram)
		select {
		case m.inbox <- b:
		default:
		}
	}
}

func (c *hubConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case d := <-c.inbox:
		return copy(b, d), c.addr, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *hubConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	c.hub.deliver(c, b)
	return len(b), nil
}

func (c *hubConn) Close() error {
	c.closeOnce.Do(func() {
		c.hub.mtx.Lock()
		delete(c.hub.members, c)
		c.hub.mtx.Unlock()
		close(c.closed)
	})
	return nil
}
