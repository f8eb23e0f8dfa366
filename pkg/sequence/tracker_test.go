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
	stderrors "errors"
	"testing"
)

func TestAllocCommit(t *testing.T) {
	tr := NewTracker(7)
	if tr.LocalId() != 7 {
		t.Fatalf("local id %d", tr.LocalId())
	}

	var last uint64
	for round := 1; round <= 5; round++ {
		var seq uint64
		for i := 0; i < round; i++ {
			seq = tr.Alloc()
		}
		if err := tr.Commit(seq); err != nil {
			t.Fatalf("round %d: %s", round, err)
		}
		if seq != last+uint64(round) {
			t.Fatalf("round %d: committed %d after %d", round, seq, last)
		}
		last = seq
		if tr.Pending() != 0 {
			t.Fatalf("pending not reset: %d", tr.Pending())
		}
	}
	if tr.LastCommitted() != 15 {
		t.Errorf("last committed %d, want 15", tr.LastCommitted())
	}
}

func TestFirstAllocIsOne(t *testing.T) {
	tr := NewTracker(1)
	if seq := tr.Alloc(); seq != 1 {
		t.Errorf("first alloc %d", seq)
	}
}

func TestCommitOutOfOrder(t *testing.T) {
	tests := []struct {
		name   string
		allocs int
		commit uint64
	}{
		{"jump ahead", 2, 3},
		{"behind", 3, 2},
		{"nothing allocated", 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(1)
			for i := 0; i < tc.allocs; i++ {
				tr.Alloc()
			}
			err := tr.Commit(tc.commit)
			if !stderrors.Is(err, ErrCommitOutOfOrder) {
				t.Fatalf("expected ErrCommitOutOfOrder, got %v", err)
			}
			if tr.LastCommitted() != 0 {
				t.Errorf("failed commit moved state to %d", tr.LastCommitted())
			}
		})
	}
}

func TestCheckInOrder(t *testing.T) {
	tr := NewTracker(1)
	for seq := uint64(1); seq <= 100; seq++ {
		delta := tr.Check(42, seq)
		if delta != 1 {
			t.Fatalf("seq %d: delta %d", seq, delta)
		}
		tr.CommitRemote(42, seq)
	}
	if last, ok := tr.LastSeen(42); !ok || last != 100 {
		t.Errorf("last seen %d %v", last, ok)
	}
}

func TestCheckDuplicate(t *testing.T) {
	tr := NewTracker(1)
	tr.CommitRemote(3, 1)
	tr.CommitRemote(3, 2)

	for _, seq := range []uint64{2, 1} {
		delta := tr.Check(3, seq)
		if Classify(delta) != VerdictDuplicate {
			t.Errorf("seq %d: delta %d classified %s", seq, delta, Classify(delta))
		}
	}
}

func TestCheckGapThenResume(t *testing.T) {
	tr := NewTracker(1)
	for seq := uint64(1); seq <= 5; seq++ {
		tr.CommitRemote(9, seq)
	}

	delta := tr.Check(9, 8)
	if delta != 3 || Classify(delta) != VerdictGap {
		t.Fatalf("delta %d", delta)
	}
	tr.CommitRemote(9, 8)

	if delta = tr.Check(9, 9); delta != 1 {
		t.Fatalf("seq 9 after gap: delta %d", delta)
	}
	// a late copy of a skipped number is behind the stream now
	if Classify(tr.Check(9, 6)) != VerdictDuplicate {
		t.Error("late skipped number should classify as duplicate")
	}
}

func TestCheckUnseenPublisher(t *testing.T) {
	tr := NewTracker(1)
	if _, ok := tr.LastSeen(5); ok {
		t.Fatal("publisher 5 should be unseen")
	}
	if delta := tr.Check(5, 1); delta != 1 {
		t.Errorf("first message: delta %d", delta)
	}
	if Classify(tr.Check(5, 10)) != VerdictGap {
		t.Error("joining mid stream is reported as a gap")
	}
	if tr.NumPublishersSeen() != 0 {
		t.Error("check must not record the publisher")
	}
}

func TestPublishersIndependent(t *testing.T) {
	tr := NewTracker(1)
	tr.CommitRemote(1, 10)
	tr.CommitRemote(2, 3)
	if tr.Check(1, 11) != 1 || tr.Check(2, 4) != 1 {
		t.Error("streams should be tracked per publisher")
	}
}
