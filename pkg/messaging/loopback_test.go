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
	"errors"
	"fmt"
	"testing"
)

func TestLoopbackOrder(t *testing.T) {
	l := NewLoopback(4)
	r1 := &recorder{}
	r2 := &recorder{}
	l.RegisterCallback(r1)
	l.RegisterCallback(r2)

	const count = 100
	for i := 0; i < count; i++ {
		if err := l.Send([]byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	l.Shutdown()

	for _, r := range []*recorder{r1, r2} {
		got := r.get()
		if len(got) != count {
			t.Fatalf("expect %d messages, got %d", count, len(got))
		}
		for i, m := range got {
			if m != fmt.Sprintf("m%d", i) {
				t.Fatalf("message %d out of order: %s", i, m)
			}
		}
	}
}

func TestLoopbackCopiesPayload(t *testing.T) {
	l := NewLoopback(0)
	r := &recorder{}
	l.RegisterCallback(r)

	buf := []byte("order-1")
	if err := l.Send(buf); err != nil {
		t.Fatal(err)
	}
	copy(buf, "XXXXXXX")
	l.Shutdown()
	if got := r.get(); len(got) != 1 || got[0] != "order-1" {
		t.Errorf("unexpected %v", got)
	}
}

func TestLoopbackSendAfterShutdown(t *testing.T) {
	l := NewLoopback(0)
	l.Shutdown()
	l.Shutdown()
	if err := l.Send([]byte("x")); !errors.Is(err, ErrShutdown) {
		t.Errorf("expect ErrShutdown, got %v", err)
	}
}
