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

package dispatch

import (
	"sync"
	"testing"
)

func TestDispatchOrder(t *testing.T) {
	d := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		d.Register(SubscriberFunc(func(payload []byte) {
			order = append(order, i)
		}))
	}
	if n := d.Dispatch([]byte("m")); n != 5 {
		t.Fatalf("dispatched to %d", n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order %v", order)
		}
	}
}

func TestDispatchNoSubscribers(t *testing.T) {
	d := New()
	if n := d.Dispatch([]byte("m")); n != 0 {
		t.Errorf("dispatched to %d", n)
	}
	d.Register(nil)
	if d.NumSubscribers() != 0 {
		t.Error("nil subscriber registered")
	}
}

func TestRegisterFromCallback(t *testing.T) {
	d := New()
	var late int
	d.Register(SubscriberFunc(func(payload []byte) {
		if d.NumSubscribers() == 1 {
			d.Register(SubscriberFunc(func([]byte) { late++ }))
		}
	}))
	d.Dispatch([]byte("1"))
	if late != 0 {
		t.Error("subscriber registered during dispatch must not see the current message")
	}
	d.Dispatch([]byte("2"))
	if late != 1 {
		t.Errorf("late subscriber called %d times", late)
	}
}

func TestConcurrentRegisterDispatch(t *testing.T) {
	d := New()
	var mtx sync.Mutex
	count := 0
	sub := SubscriberFunc(func([]byte) {
		mtx.Lock()
		count++
		mtx.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Register(sub)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Dispatch(nil)
		}
	}()
	wg.Wait()

	if d.NumSubscribers() != 100 {
		t.Errorf("%d subscribers", d.NumSubscribers())
	}
	mtx.Lock()
	before := count
	mtx.Unlock()
	d.Dispatch(nil)
	if count-before != 100 {
		t.Errorf("final dispatch reached %d", count-before)
	}
}
