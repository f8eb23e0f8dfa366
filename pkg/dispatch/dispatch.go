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

// Package dispatch fans delivered messages out to registered subscribers.
package dispatch

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives the payload of every accepted message. The payload
// is only valid for the duration of the call. ReceivedMessage runs on the
// receiving goroutine of the connection and must not block.
type Subscriber interface {
	ReceivedMessage(payload []byte)
}

type SubscriberFunc func(payload []byte)

func (f SubscriberFunc) ReceivedMessage(payload []byte) {
	f(payload)
}

// Dispatcher is safe for concurrent Register and Dispatch. Registration is
// copy on write, so a subscriber may register another one from within its
// callback; the new subscriber sees the next message.
type Dispatcher struct {
	mtx  sync.Mutex
	subs atomic.Pointer[[]Subscriber]
}

func New() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Register(s Subscriber) {
	if s == nil {
		return
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()

	var subs []Subscriber
	if cur := d.subs.Load(); cur != nil {
		subs = make([]Subscriber, len(*cur), len(*cur)+1)
		copy(subs, *cur)
	}
	subs = append(subs, s)
	d.subs.Store(&subs)
}

// Dispatch invokes every subscriber in registration order and returns how
// many were called.
func (d *Dispatcher) Dispatch(payload []byte) int {
	cur := d.subs.Load()
	if cur == nil {
		return 0
	}
	for _, s := range *cur {
		s.ReceivedMessage(payload)
	}
	return len(*cur)
}

func (d *Dispatcher) NumSubscribers() int {
	if cur := d.subs.Load(); cur != nil {
		return len(*cur)
	}
	return 0
}
