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

package sequence

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"mcbus/pkg/util"
)

type fakeAuthority struct {
	counters map[string]int64
	incrErr  error
	acked    int
	waitErr  error
	waited   int
}

func (f *fakeAuthority) Increment(ctx context.Context, counter string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	if f.counters == nil {
		f.counters = make(map[string]int64)
	}
	f.counters[counter]++
	return f.counters[counter], nil
}

func (f *fakeAuthority) WaitForReplicas(ctx context.Context, n int) (int, error) {
	f.waited++
	return f.acked, f.waitErr
}

func TestAcquirePublisherId(t *testing.T) {
	auth := &fakeAuthority{}
	cfg := Config{CounterKey: "ids"}

	for want := PublisherId(1); want <= 3; want++ {
		id, err := AcquirePublisherId(context.Background(), auth, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Errorf("id %d, want %d", id, want)
		}
	}
	if auth.waited != 0 {
		t.Error("quorum 0 must not wait")
	}
}

func TestAcquireDefaultsCounterKey(t *testing.T) {
	auth := &fakeAuthority{}
	if _, err := AcquirePublisherId(context.Background(), auth, Config{}); err != nil {
		t.Fatal(err)
	}
	if auth.counters[DefaultCounterKey] != 1 {
		t.Errorf("counters %v", auth.counters)
	}
}

func TestAcquireOutOfRange(t *testing.T) {
	for _, v := range []int64{math.MaxUint16, math.MaxUint16 + 1, -1} {
		auth := &fakeAuthority{counters: map[string]int64{"ids": v - 1}}
		_, err := AcquirePublisherId(context.Background(), auth, Config{CounterKey: "ids"})
		if !stderrors.Is(err, ErrIdOutOfRange) {
			t.Errorf("value %d: expected ErrIdOutOfRange, got %v", v, err)
		}
	}
}

func TestAcquireAuthorityUnreachable(t *testing.T) {
	auth := &fakeAuthority{incrErr: stderrors.New("connection refused")}
	_, err := AcquirePublisherId(context.Background(), auth, Config{})
	if !stderrors.Is(err, ErrAuthority) {
		t.Fatalf("expected ErrAuthority, got %v", err)
	}
}

func TestAcquireQuorum(t *testing.T) {
	tests := []struct {
		name    string
		acked   int
		waitErr error
		ok      bool
	}{
		{"reached", 2, nil, true},
		{"short", 1, nil, false},
		{"timeout", 1, context.DeadlineExceeded, false},
		{"reached despite late error", 2, context.DeadlineExceeded, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auth := &fakeAuthority{acked: tc.acked, waitErr: tc.waitErr}
			cfg := Config{Quorum: 2, RequestTimeout: util.Duration{Duration: time.Second}}
			_, err := AcquirePublisherId(context.Background(), auth, cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			if !tc.ok && !stderrors.Is(err, ErrQuorumNotMet) {
				t.Fatalf("expected ErrQuorumNotMet, got %v", err)
			}
			if auth.waited != 1 {
				t.Errorf("waited %d times", auth.waited)
			}
		})
	}
}
