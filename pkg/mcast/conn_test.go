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
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"mcbus/pkg/dispatch"
	"mcbus/pkg/frame"
	"mcbus/pkg/sequence"
)

type collector struct {
	mtx  sync.Mutex
	msgs []string
}

func (c *collector) ReceivedMessage(payload []byte) {
	c.mtx.Lock()
	c.msgs = append(c.msgs, string(payload))
	c.mtx.Unlock()
}

func (c *collector) get() []string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]string(nil), c.msgs...)
}

func (c *collector) len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.msgs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fatalRecorder struct {
	mtx  sync.Mutex
	msgs []string
}

func (f *fatalRecorder) handle(format string, args ...interface{}) {
	f.mtx.Lock()
	f.msgs = append(f.msgs, fmt.Sprintf(format, args...))
	f.mtx.Unlock()
}

func (f *fatalRecorder) count() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.msgs)
}

func newTestConn(t *testing.T, opener Opener, id sequence.PublisherId, cfg Config) (*Conn, *collector, *fatalRecorder) {
	t.Helper()
	col := &collector{}
	d := dispatch.New()
	d.Register(col)
	fr := &fatalRecorder{}
	c, err := New(cfg, sequence.NewTracker(id), d, WithOpener(opener), WithFatalHandler(fr.handle))
	if err != nil {
		t.Fatal(err)
	}
	return c, col, fr
}

func unbufferedSync() Config {
	cfg := DefaultConfig
	cfg.Buffered = false
	cfg.SyncSend = true
	return cfg
}

func TestEndToEndUnbufferedSync(t *testing.T) {
	hub := NewHub()
	a, aCol, aFatal := newTestConn(t, hub.Opener(), 1, unbufferedSync())
	b, bCol, _ := newTestConn(t, hub.Opener(), 2, DefaultConfig)

	if err := b.Join(JoinRead | JoinWrite); err != nil {
		t.Fatal(err)
	}
	defer b.Leave()
	if err := a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()

	for _, m := range []string{"order-1", "order-2"} {
		if err := a.Send([]byte(m)); err != nil {
			t.Fatalf("send %s: %s", m, err)
		}
	}
	waitFor(t, "two messages at b", func() bool { return bCol.len() == 2 })

	got := bCol.get()
	if got[0] != "order-1" || got[1] != "order-2" {
		t.Errorf("unexpected order %v", got)
	}
	st := b.Stats()
	if st.Duplicates != 0 || st.Gaps != 0 || st.Malformed != 0 {
		t.Errorf("unexpected drops %s", st)
	}
	if st.RxFrames != 2 || st.RxBytes != 14 {
		t.Errorf("unexpected rx stats %s", st)
	}
	// loopback delivers a's own messages to a as well
	if aCol.len() != 2 {
		t.Errorf("expect 2 loopback messages at a, got %v", aCol.get())
	}
	if ast := a.Stats(); ast.TxDatagrams != 2 || ast.TxFrames != 2 || ast.SyncTimeouts != 0 {
		t.Errorf("unexpected tx stats %s", ast)
	}
	if aFatal.count() != 0 {
		t.Errorf("unexpected fatal %v", aFatal.msgs)
	}
}

func TestBufferedBatching(t *testing.T) {
	hub := NewHub()
	cfg := DefaultConfig
	cfg.MaxDatagramSize = 2 * (frame.HeaderSize + 8)
	a, _, _ := newTestConn(t, hub.Opener(), 1, cfg)
	b, bCol, _ := newTestConn(t, hub.Opener(), 2, cfg)

	if err := b.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer b.Leave()
	// no writer: everything stays queued until Leave flushes it
	if err := a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	var expect []string
	for i := 0; i < 5; i++ {
		m := fmt.Sprintf("order-%02d", i)
		expect = append(expect, m)
		if err := a.Send([]byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	if n := a.QueueLen(); n != 5 {
		t.Fatalf("expect 5 queued, got %d", n)
	}
	a.Leave()

	waitFor(t, "five messages at b", func() bool { return bCol.len() == 5 })
	got := bCol.get()
	for i := range expect {
		if got[i] != expect[i] {
			t.Errorf("message %d: expect %s, got %s", i, expect[i], got[i])
		}
	}
	if st := b.Stats(); st.RxDatagrams != 3 || st.RxFrames != 5 {
		t.Errorf("expect 3 datagrams carrying 5 frames, got %s", st)
	}
	if st := a.Stats(); st.TxDatagrams != 3 || st.TxFrames != 5 || st.TxBytes != 40 {
		t.Errorf("unexpected tx stats %s", st)
	}
}

func TestBufferedWriterSync(t *testing.T) {
	hub := NewHub()
	cfg := DefaultConfig
	cfg.SyncSend = true
	a, _, _ := newTestConn(t, hub.Opener(), 1, cfg)
	b, bCol, _ := newTestConn(t, hub.Opener(), 2, DefaultConfig)

	if err := b.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer b.Leave()
	if err := a.Join(JoinRead | JoinWrite); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()

	const count = 500
	for i := 0; i < count; i++ {
		if err := a.Send([]byte(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "all messages at b", func() bool { return bCol.len() == count })
	for i, m := range bCol.get() {
		if m != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("message %d out of order: %s", i, m)
		}
	}
	if st := b.Stats(); st.Gaps != 0 || st.Duplicates != 0 {
		t.Errorf("unexpected drops %s", st)
	}
	if st := a.Stats(); st.SyncTimeouts != 0 {
		t.Errorf("unexpected sync timeouts %s", st)
	}
}

func packed(pid uint16, seqs ...uint64) []byte {
	p := frame.NewPacker(frame.DefaultMaxDatagramSize)
	for _, s := range seqs {
		p.Append(pid, s, []byte(fmt.Sprintf("p%d-%d", pid, s)))
	}
	return append([]byte(nil), p.Bytes()...)
}

func TestDuplicateAndGap(t *testing.T) {
	hub := NewHub()
	b, bCol, _ := newTestConn(t, hub.Opener(), 2, DefaultConfig)
	if err := b.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer b.Leave()

	hub.Inject(packed(7, 1, 2))
	hub.Inject(packed(7, 2))
	hub.Inject(packed(7, 5))
	hub.Inject(packed(7, 6))
	hub.Inject(packed(7, 5))
	hub.Inject(packed(9, 1))
	waitFor(t, "six datagrams", func() bool { return b.Stats().RxDatagrams == 6 })

	got := bCol.get()
	expect := []string{"p7-1", "p7-2", "p7-6", "p9-1"}
	if len(got) != len(expect) {
		t.Fatalf("expect %v, got %v", expect, got)
	}
	for i := range expect {
		if got[i] != expect[i] {
			t.Errorf("expect %v, got %v", expect, got)
			break
		}
	}
	st := b.Stats()
	if st.Duplicates != 2 || st.Gaps != 1 {
		t.Errorf("expect 2 duplicates and 1 gap, got %s", st)
	}
}

func TestMalformedDatagram(t *testing.T) {
	hub := NewHub()
	b, bCol, _ := newTestConn(t, hub.Opener(), 2, DefaultConfig)
	if err := b.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer b.Leave()

	hub.Inject([]byte{1, 2, 3, 4, 5})
	good := packed(3, 1, 2)
	hub.Inject(good[:len(good)-1])
	hub.Inject(packed(3, 1))
	waitFor(t, "three datagrams", func() bool { return b.Stats().RxDatagrams == 3 })

	if got := bCol.get(); len(got) != 1 || got[0] != "p3-1" {
		t.Errorf("expect only p3-1, got %v", got)
	}
	if st := b.Stats(); st.Malformed != 2 {
		t.Errorf("expect 2 malformed, got %s", st)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	hub := NewHub()
	for _, buffered := range []bool{true, false} {
		cfg := DefaultConfig
		cfg.Buffered = buffered
		a, _, _ := newTestConn(t, hub.Opener(), 1, cfg)
		if err := a.Join(JoinRead | JoinWrite); err != nil {
			t.Fatal(err)
		}
		max := cfg.MaxDatagramSize - frame.HeaderSize
		err := a.Send(make([]byte, max+1))
		if !errors.Is(err, frame.ErrPayloadTooLarge) {
			t.Errorf("buffered=%t: expect ErrPayloadTooLarge, got %v", buffered, err)
		}
		if n := a.QueueLen(); n != 0 {
			t.Errorf("buffered=%t: oversized payload queued", buffered)
		}
		if err := a.Send(make([]byte, max)); err != nil {
			t.Errorf("buffered=%t: max payload rejected: %s", buffered, err)
		}
		a.Leave()
		if st := a.Stats(); st.TxDatagrams != 1 || st.TxBytes != uint64(max) {
			t.Errorf("buffered=%t: unexpected tx stats %s", buffered, st)
		}
	}
}

func TestStateMachine(t *testing.T) {
	hub := NewHub()
	a, _, _ := newTestConn(t, hub.Opener(), 1, DefaultConfig)

	if s := a.State(); s != Unjoined {
		t.Fatalf("expect unjoined, got %s", s)
	}
	if err := a.Send([]byte("x")); !errors.Is(err, ErrNotJoined) {
		t.Errorf("expect ErrNotJoined, got %v", err)
	}
	a.Leave()
	if s := a.State(); s != Unjoined {
		t.Errorf("leave on unjoined changed state to %s", s)
	}

	if err := a.Join(JoinRead | JoinWrite); err != nil {
		t.Fatal(err)
	}
	if err := a.Join(JoinRead); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("expect ErrAlreadyJoined, got %v", err)
	}
	if hub.NumMembers() != 1 {
		t.Errorf("expect 1 hub member, got %d", hub.NumMembers())
	}

	a.Leave()
	if s := a.State(); s != Left {
		t.Errorf("expect left, got %s", s)
	}
	if hub.NumMembers() != 0 {
		t.Errorf("socket not closed on leave")
	}
	a.Leave()
	if err := a.Join(JoinRead); !errors.Is(err, ErrConnLeft) {
		t.Errorf("expect ErrConnLeft, got %v", err)
	}
	if err := a.Send([]byte("x")); !errors.Is(err, ErrConnLeft) {
		t.Errorf("expect ErrConnLeft, got %v", err)
	}
}

// Every buffered Send that returned nil must be on the wire once Leave
// returns, however the senders interleave with it.
func TestLeaveDuringBufferedSend(t *testing.T) {
	for round := 0; round < 20; round++ {
		hub := NewHub()
		a, _, fr := newTestConn(t, hub.Opener(), 1, DefaultConfig)
		if err := a.Join(JoinWrite); err != nil {
			t.Fatal(err)
		}

		var accepted atomic.Uint64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for {
					err := a.Send([]byte("limit-order"))
					if err != nil {
						if !errors.Is(err, ErrConnLeft) {
							t.Errorf("unexpected error %v", err)
						}
						return
					}
					accepted.Add(1)
				}
			}()
		}
		close(start)
		time.Sleep(time.Millisecond)
		a.Leave()
		wg.Wait()

		if st := a.Stats(); st.TxFrames != accepted.Load() {
			t.Fatalf("round %d: %d sends accepted, %d frames sent", round, accepted.Load(), st.TxFrames)
		}
		if a.QueueLen() != 0 {
			t.Errorf("round %d: %d payloads left queued", round, a.QueueLen())
		}
		if fr.count() != 0 {
			t.Errorf("round %d: %d unexpected fatal failures", round, fr.count())
		}
	}
}

func TestSyncNeedsReadSide(t *testing.T) {
	a, _, _ := newTestConn(t, NewHub().Opener(), 1, unbufferedSync())
	if err := a.Join(JoinWrite); err == nil {
		a.Leave()
		t.Error("expect sync join without read side to fail")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		mod func(*Config)
		ok  bool
	}{
		{func(c *Config) {}, true},
		{func(c *Config) { c.Group = "10.0.0.1" }, false},
		{func(c *Config) { c.Group = "ff02::1" }, false},
		{func(c *Config) { c.Port = 70000 }, false},
		{func(c *Config) { c.MaxDatagramSize = frame.HeaderSize }, false},
		{func(c *Config) { c.MaxDatagramSize = frame.MaxDatagramSize + 1 }, false},
		{func(c *Config) { c.SyncSend = true; c.Loopback = false }, false},
	}
	for i, tc := range tests {
		cfg := DefaultConfig
		tc.mod(&cfg)
		if err := cfg.Validate(); (err == nil) != tc.ok {
			t.Errorf("case %d: unexpected result %v", i, err)
		}
	}
}

func TestSyncTimeout(t *testing.T) {
	hub := NewHub()
	// swallow the loopback so no echo ever comes back
	noLoop := func(cfg *Config, subscribe bool) (PacketConn, net.Addr, error) {
		c := *cfg
		c.Loopback = false
		return hub.Opener()(&c, subscribe)
	}
	cfg := unbufferedSync()
	cfg.SyncTimeout.Duration = 20 * time.Millisecond
	a, _, _ := newTestConn(t, noLoop, 1, cfg)
	if err := a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()

	start := time.Now()
	err := a.Send([]byte("order-1"))
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("expect ErrSyncTimeout, got %v", err)
	}
	if time.Since(start) < cfg.SyncTimeout.Duration {
		t.Errorf("returned before the timeout")
	}
	if st := a.Stats(); st.SyncTimeouts != 1 || st.TxDatagrams != 1 {
		t.Errorf("unexpected stats %s", st)
	}
}

type flakyConn struct {
	PacketConn
	failures atomic.Int32
	err      error
}

func (f *flakyConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	if f.failures.Add(-1) >= 0 {
		return 0, &net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("sendto", f.err)}
	}
	return f.PacketConn.WriteTo(b, dst)
}

func flakyOpener(hub *Hub, failures int32, err error) Opener {
	return func(cfg *Config, subscribe bool) (PacketConn, net.Addr, error) {
		pc, dst, e := hub.Opener()(cfg, subscribe)
		if e != nil {
			return nil, nil, e
		}
		f := &flakyConn{PacketConn: pc, err: err}
		f.failures.Store(failures)
		return f, dst, nil
	}
}

func TestSendRetriesWouldBlock(t *testing.T) {
	hub := NewHub()
	cfg := unbufferedSync()
	a, col, fr := newTestConn(t, flakyOpener(hub, 3, syscall.EAGAIN), 1, cfg)
	if err := a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()

	if err := a.Send([]byte("order-1")); err != nil {
		t.Fatal(err)
	}
	if fr.count() != 0 {
		t.Errorf("would-block treated as fatal")
	}
	if got := col.get(); len(got) != 1 || got[0] != "order-1" {
		t.Errorf("unexpected delivery %v", got)
	}
}

func TestSendFailureIsFatal(t *testing.T) {
	hub := NewHub()
	cfg := DefaultConfig
	cfg.Buffered = false
	a, _, fr := newTestConn(t, flakyOpener(hub, 1, syscall.EPERM), 1, cfg)
	if err := a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()

	if err := a.Send([]byte("order-1")); err == nil {
		t.Error("expect send error")
	}
	if fr.count() != 1 {
		t.Errorf("expect fatal handler call, got %d", fr.count())
	}
	// the lost number shows up as a gap to peers; the local stream stays
	// consistent
	if err := a.Send([]byte("order-2")); err != nil {
		t.Error(err)
	}
	if st := a.Stats(); st.TxDatagrams != 1 {
		t.Errorf("unexpected stats %s", st)
	}
}

// Uses the host network. Enabled by MCBUS_MULTICAST_TEST=1.
func TestRealMulticast(t *testing.T) {
	if os.Getenv("MCBUS_MULTICAST_TEST") != "1" {
		t.Skip("MCBUS_MULTICAST_TEST not set")
	}
	cfg := unbufferedSync()
	cfg.Port = 40199
	col := &collector{}
	d := dispatch.New()
	d.Register(col)
	a, err := New(cfg, sequence.NewTracker(1), d)
	if err != nil {
		t.Fatal(err)
	}
	if err = a.Join(JoinRead); err != nil {
		t.Fatal(err)
	}
	defer a.Leave()
	for _, m := range []string{"order-1", "order-2"} {
		if err = a.Send([]byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	if got := col.get(); len(got) != 2 || got[0] != "order-1" || got[1] != "order-2" {
		t.Errorf("unexpected delivery %v", got)
	}
}
