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
	"sync"
)

// LocalAuthority keeps the counters in process memory. Ids it hands out
// are unique only among buses sharing the same LocalAuthority, which is
// enough for a single process attached to an in-memory group.
type LocalAuthority struct {
	mtx      sync.Mutex
	counters map[string]int64
}

var _ Authority = (*LocalAuthority)(nil)

func NewLocalAuthority() *LocalAuthority {
	return &LocalAuthority{counters: make(map[string]int64)}
}

func (a *LocalAuthority) Increment(ctx context.Context, counter string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.counters[counter]++
	return a.counters[counter], nil
}

// WaitForReplicas reports the single in-memory replica.
func (a *LocalAuthority) WaitForReplicas(ctx context.Context, n int) (int, error) {
	return 1, ctx.Err()
}
