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
	"sync"

	"mcbus/pkg/dispatch"
	"mcbus/third_party/forked/golang/glog"
)

const defaultLoopbackQueueSize = 1024

// Loopback is an in-process Service. Payloads are delivered in send order
// to every registered consumer by a single goroutine.
type Loopback struct {
	dispatcher *dispatch.Dispatcher
	ch         chan []byte
	doneCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var _ Service = (*Loopback)(nil)

func NewLoopback(queueSize int) *Loopback {
	if queueSize <= 0 {
		queueSize = defaultLoopbackQueueSize
	}
	l := &Loopback{
		dispatcher: dispatch.New(),
		ch:         make(chan []byte, queueSize),
		doneCh:     make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Send copies payload onto the queue, blocking while the queue is full.
func (l *Loopback) Send(payload []byte) error {
	select {
	case <-l.doneCh:
		return ErrShutdown
	default:
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	select {
	case l.ch <- b:
		return nil
	case <-l.doneCh:
		return ErrShutdown
	}
}

func (l *Loopback) RegisterCallback(c Consumer) {
	l.dispatcher.Register(c)
}

// Shutdown delivers what is already queued and stops the delivery
// goroutine.
func (l *Loopback) Shutdown() {
	l.closeOnce.Do(func() {
		close(l.doneCh)
	})
	l.wg.Wait()
}

func (l *Loopback) run() {
	defer l.wg.Done()
	for {
		select {
		case b := <-l.ch:
			l.dispatcher.Dispatch(b)
		case <-l.doneCh:
			for {
				select {
				case b := <-l.ch:
					l.dispatcher.Dispatch(b)
				default:
					glog.Verbosef("loopback service exit")
					return
				}
			}
		}
	}
}
