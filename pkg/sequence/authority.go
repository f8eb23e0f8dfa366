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
	"fmt"
	"math"

	"mcbus/pkg/errors"
	"mcbus/third_party/forked/golang/glog"
)

type PublisherId uint16

var (
	ErrIdOutOfRange = errors.NewError("publisher id out of range", errors.ErrnoIdOutOfRange)
	ErrQuorumNotMet = errors.NewError("quorum not reached", errors.ErrnoQuorumNotMet)
	ErrAuthority    = errors.NewError("sequence authority failure", errors.ErrnoAuthority)
)

// Authority is the external counter service publisher ids are drawn from.
type Authority interface {
	// Increment atomically increments the named counter and returns the
	// new value.
	Increment(ctx context.Context, counter string) (int64, error)
	// WaitForReplicas blocks until n replicas have acknowledged the
	// latest write, or ctx is done. It returns the number of replicas
	// that acknowledged.
	WaitForReplicas(ctx context.Context, n int) (int, error)
}

// Announcer is optionally implemented by an Authority that keeps a record
// of the publishers holding an id.
type Announcer interface {
	Announce(ctx context.Context, id PublisherId, instance string) error
}

// AcquirePublisherId draws a process-unique publisher id from auth. It is
// called once per process before any transport is usable; a failure must
// not be retried, the caller is expected to terminate.
func AcquirePublisherId(ctx context.Context, auth Authority, cfg Config) (id PublisherId, err error) {
	cfg.SetDefaultIfNotDefined()

	rctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout.Duration)
	defer cancel()

	var v int64
	if v, err = auth.Increment(rctx, cfg.CounterKey); err != nil {
		err = fmt.Errorf("%w: increment %s: %s", ErrAuthority, cfg.CounterKey, err)
		return
	}
	if v < 0 || v >= math.MaxUint16 {
		err = fmt.Errorf("%w: counter %s returned %d", ErrIdOutOfRange, cfg.CounterKey, v)
		return
	}

	if cfg.Quorum > 0 {
		var acked int
		acked, err = auth.WaitForReplicas(rctx, cfg.Quorum)
		if err != nil && acked < cfg.Quorum {
			err = fmt.Errorf("%w: %d of %d replicas: %s", ErrQuorumNotMet, acked, cfg.Quorum, err)
			return
		}
		if acked < cfg.Quorum {
			err = fmt.Errorf("%w: %d of %d replicas", ErrQuorumNotMet, acked, cfg.Quorum)
			return
		}
		err = nil
	}

	id = PublisherId(v)
	glog.Infof("Allocated publisher id %d", id)
	return
}
