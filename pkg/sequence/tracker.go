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
	"fmt"

	"mcbus/pkg/errors"
)

var (
	ErrCommitOutOfOrder = errors.NewError("commit does not match allocation", errors.ErrnoCommitOrder)
)

type Verdict int

const (
	VerdictAccept = Verdict(iota)
	VerdictDuplicate
	VerdictGap
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictGap:
		return "gap"
	}
	return "unknown"
}

// Classify maps the delta returned by Check to a verdict.
func Classify(delta int64) Verdict {
	if delta <= 0 {
		return VerdictDuplicate
	} else if delta == 1 {
		return VerdictAccept
	}
	return VerdictGap
}

// Tracker keeps the sequence numbers of one publisher process: the numbers
// handed out for its own stream and the last number accepted from every
// remote publisher.
//
// Tracker is not goroutine safe. The outbound half is owned by the sending
// side and the inbound half by the receiving goroutine of a connection.
type Tracker struct {
	id            PublisherId
	lastCommitted uint64
	pending       uint64
	rx            map[PublisherId]uint64
}

func NewTracker(id PublisherId) *Tracker {
	return &Tracker{
		id: id,
		rx: make(map[PublisherId]uint64),
	}
}

func (t *Tracker) LocalId() PublisherId {
	return t.id
}

// Alloc reserves the next sequence number without making it visible.
func (t *Tracker) Alloc() uint64 {
	t.pending++
	return t.lastCommitted + t.pending
}

// Commit finalizes every reservation up to seq. seq must be the highest
// number handed out by Alloc since the last commit.
func (t *Tracker) Commit(seq uint64) error {
	if expected := t.lastCommitted + t.pending; seq != expected {
		return fmt.Errorf("%w: seq=%d expected=%d last=%d pending=%d",
			ErrCommitOutOfOrder, seq, expected, t.lastCommitted, t.pending)
	}
	t.lastCommitted = seq
	t.pending = 0
	return nil
}

func (t *Tracker) LastCommitted() uint64 {
	return t.lastCommitted
}

func (t *Tracker) Pending() uint64 {
	return t.pending
}

// Check returns seq minus the last number committed for publisher id. An
// unseen publisher counts as 0.
func (t *Tracker) Check(id PublisherId, seq uint64) int64 {
	return int64(seq - t.rx[id])
}

// CommitRemote records seq as the last number accepted from publisher id.
func (t *Tracker) CommitRemote(id PublisherId, seq uint64) {
	t.rx[id] = seq
}

func (t *Tracker) LastSeen(id PublisherId) (seq uint64, ok bool) {
	seq, ok = t.rx[id]
	return
}

func (t *Tracker) NumPublishersSeen() int {
	return len(t.rx)
}
