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
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mcbus/pkg/dispatch"
	mcerrors "mcbus/pkg/errors"
	"mcbus/pkg/frame"
	"mcbus/pkg/logging/otel"
	"mcbus/pkg/sequence"
	"mcbus/third_party/forked/golang/glog"
)

var (
	ErrNotJoined     = mcerrors.NewError("connection not joined", mcerrors.ErrnoNotJoined)
	ErrAlreadyJoined = mcerrors.NewError("connection already joined", mcerrors.ErrnoAlreadyJoined)
	ErrConnLeft      = mcerrors.NewError("connection left", mcerrors.ErrnoConnLeft)
	ErrSyncTimeout   = mcerrors.NewError("synchronous send not echoed in time", mcerrors.ErrnoSyncTimeout)
)

type State int32

const (
	Unjoined = State(iota)
	Joined
	Left
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "unjoined"
	case Joined:
		return "joined"
	case Left:
		return "left"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// JoinMode selects the halves of a connection started by Join.
type JoinMode uint8

const (
	// JoinRead subscribes to the group and starts the reader, which
	// decodes, validates and dispatches every datagram.
	JoinRead JoinMode = 1 << iota
	// JoinWrite starts the writer draining the outbound queue. Only
	// meaningful for buffered connections.
	JoinWrite
)

// FatalHandler is called for failures that have no caller to return to
// and leave the connection unsafe to use.
type FatalHandler func(format string, args ...interface{})

type Option func(*Conn)

// WithOpener replaces the socket factory, OpenUDP by default.
func WithOpener(o Opener) Option {
	return func(c *Conn) {
		c.opener = o
	}
}

// WithFatalHandler replaces glog.Fatalf as the fatal failure handler.
func WithFatalHandler(h FatalHandler) Option {
	return func(c *Conn) {
		c.fatal = h
	}
}

// Conn is one publisher's membership of a multicast group.
//
// The reader goroutine owns the inbound half of the tracker and runs
// every subscriber callback. The outbound half is guarded by txMtx and
// is used by the writer goroutine (buffered) or by Send itself
// (unbuffered). The outbound queue is guarded by qMtx, which is never
// held across a socket call.
type Conn struct {
	config     Config
	tracker    *sequence.Tracker
	localId    uint16
	dispatcher *dispatch.Dispatcher
	opener     Opener
	fatal      FatalHandler
	maxPayload int

	joinMtx sync.Mutex
	state   atomic.Int32
	pc      PacketConn
	dst     net.Addr
	doneCh  chan struct{}
	rwg     sync.WaitGroup
	wwg     sync.WaitGroup

	qMtx     sync.Mutex
	queue    [][]byte
	notifyCh chan struct{}

	txMtx  sync.Mutex
	packer *frame.Packer

	// highest own sequence number seen on the read side
	lastEcho atomic.Uint64
	// highest sequence number of the last buffered batch sent in sync mode
	inflight atomic.Uint64
	echoCh   chan struct{}

	stats connStats
}

func New(cfg Config, tracker *sequence.Tracker, d *dispatch.Dispatcher, opts ...Option) (c *Conn, err error) {
	cfg.SetDefaultIfNotDefined()
	if err = cfg.Validate(); err != nil {
		return
	}
	if tracker == nil || d == nil {
		err = errors.New("mcast: nil tracker or dispatcher")
		return
	}
	c = &Conn{
		config:     cfg,
		tracker:    tracker,
		localId:    uint16(tracker.LocalId()),
		dispatcher: d,
		opener:     OpenUDP,
		fatal:      glog.Fatalf,
		maxPayload: frame.MaxPayloadSize(cfg.MaxDatagramSize),
		notifyCh:   make(chan struct{}, 1),
		echoCh:     make(chan struct{}, 1),
		packer:     frame.NewPacker(cfg.MaxDatagramSize),
	}
	for _, o := range opts {
		o(c)
	}
	c.stats.init([]otel.Tags{
		{TagName: otel.Group, TagValue: cfg.GroupAddr()},
		{TagName: otel.Publisher, TagValue: strconv.Itoa(int(c.localId))},
	})
	return
}

func (c *Conn) Config() Config {
	return c.config
}

func (c *Conn) LocalId() sequence.PublisherId {
	return sequence.PublisherId(c.localId)
}

func (c *Conn) MaxPayloadSize() int {
	return c.maxPayload
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) Stats() Stats {
	return c.stats.snapshot()
}

// Join opens the socket and starts the goroutines selected by mode.
func (c *Conn) Join(mode JoinMode) (err error) {
	c.joinMtx.Lock()
	defer c.joinMtx.Unlock()

	switch c.State() {
	case Joined:
		return ErrAlreadyJoined
	case Left:
		return ErrConnLeft
	}
	read := mode&JoinRead != 0
	write := mode&JoinWrite != 0
	if c.config.SyncSend && !read {
		return fmt.Errorf("mcast: synchronous send needs the read side joined")
	}
	if c.config.Buffered && !write {
		glog.Warningf("mcast: buffered connection joined without writer; queued payloads are sent on Leave only")
	}

	if c.pc, c.dst, err = c.opener(&c.config, read); err != nil {
		return
	}
	c.doneCh = make(chan struct{})
	c.state.Store(int32(Joined))

	if read {
		c.rwg.Add(1)
		go c.readLoop()
	}
	if write && c.config.Buffered {
		c.wwg.Add(1)
		go c.writeLoop()
	}
	glog.Infof("mcast: publisher %d joined %s (read=%t write=%t buffered=%t sync=%t)",
		c.localId, c.config.GroupAddr(), read, write, c.config.Buffered, c.config.SyncSend)
	return
}

// Leave flushes what is queued, closes the socket and waits for the
// reader and writer to return. It must not be called from a subscriber
// callback. Leaving a connection that is not joined is a no-op. A Send
// racing with Leave either makes it into the final flush or fails with
// ErrConnLeft.
func (c *Conn) Leave() {
	c.joinMtx.Lock()
	defer c.joinMtx.Unlock()

	if st := c.State(); st != Joined {
		glog.Warningf("mcast: leave on %s connection", st)
		return
	}
	// Under qMtx so that a buffered Send either lands before the final
	// flush or sees Left.
	c.qMtx.Lock()
	c.state.Store(int32(Left))
	c.qMtx.Unlock()
	close(c.doneCh)
	c.wwg.Wait()
	if c.config.Buffered {
		for c.drain() {
		}
	}
	c.pc.Close()
	c.rwg.Wait()
	glog.Infof("mcast: publisher %d left %s. %s", c.localId, c.config.GroupAddr(), c.stats.snapshot())
}

// Send transmits or enqueues one payload. A payload too large for one
// frame is rejected before it is queued.
func (c *Conn) Send(payload []byte) error {
	if err := frame.CheckPayload(len(payload), c.config.MaxDatagramSize); err != nil {
		return err
	}
	switch c.State() {
	case Unjoined:
		return ErrNotJoined
	case Left:
		return ErrConnLeft
	}
	if c.config.Buffered {
		return c.enqueue(payload)
	}
	return c.sendNow(payload)
}

func (c *Conn) enqueue(payload []byte) error {
	b := make([]byte, len(payload))
	copy(b, payload)
	c.qMtx.Lock()
	if c.State() != Joined {
		c.qMtx.Unlock()
		return ErrConnLeft
	}
	c.queue = append(c.queue, b)
	c.qMtx.Unlock()

	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
	return nil
}

// QueueLen returns the number of payloads waiting for the writer.
func (c *Conn) QueueLen() int {
	c.qMtx.Lock()
	defer c.qMtx.Unlock()
	return len(c.queue)
}

func (c *Conn) sendNow(payload []byte) error {
	c.txMtx.Lock()
	seq := c.tracker.Alloc()
	c.packer.Reset()
	c.packer.Append(c.localId, seq, payload)
	err := c.transmit(c.packer.Bytes(), 1, len(payload))
	if err == nil {
		err = c.commit(seq)
	}
	c.txMtx.Unlock()

	if err != nil {
		return err
	}
	if c.config.SyncSend {
		return c.waitEcho(seq)
	}
	return nil
}

// drain packs as many queued payloads as fit in one datagram and sends
// it. It returns true while payloads remain queued.
func (c *Conn) drain() (more bool) {
	c.qMtx.Lock()
	n, size := 0, 0
	for ; n < len(c.queue); n++ {
		next := size + frame.HeaderSize + len(c.queue[n])
		if next > c.config.MaxDatagramSize {
			break
		}
		size = next
	}
	batch := c.queue[:n:n]
	c.queue = c.queue[n:]
	more = len(c.queue) != 0
	if !more {
		c.queue = nil
	}
	c.qMtx.Unlock()

	if n == 0 {
		return
	}

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	c.packer.Reset()
	nbytes := 0
	for _, p := range batch {
		c.packer.Append(c.localId, c.tracker.Alloc(), p)
		nbytes += len(p)
	}
	last := c.packer.LastSeqNum()
	if err := c.transmit(c.packer.Bytes(), n, nbytes); err != nil {
		return
	}
	if err := c.commit(last); err != nil {
		return
	}
	if c.config.SyncSend {
		c.inflight.Store(last)
	}
	if glog.LOG_DEBUG {
		glog.Debugf("mcast: sent batch seq=%d..%d frames=%d bytes=%d", c.packer.FirstSeqNum(), last, n, c.packer.Len())
	}
	return
}

// transmit writes one datagram, retrying while the socket would block.
func (c *Conn) transmit(b []byte, frames int, nbytes int) error {
	for {
		_, err := c.pc.WriteTo(b, c.dst)
		if err == nil {
			break
		}
		if isWouldBlock(err) {
			runtime.Gosched()
			continue
		}
		if errors.Is(err, net.ErrClosed) {
			return ErrConnLeft
		}
		c.fatal("mcast: send to %s failed: %s", c.config.GroupAddr(), err)
		return err
	}
	c.stats.add(&c.stats.txDatagrams, 1)
	c.stats.add(&c.stats.txFrames, uint64(frames))
	c.stats.add(&c.stats.txBytes, uint64(nbytes))
	return nil
}

func (c *Conn) commit(seq uint64) error {
	if err := c.tracker.Commit(seq); err != nil {
		c.fatal("mcast: %s", err)
		return err
	}
	return nil
}

// waitEcho spins until the read side has seen seq come back through the
// loopback, checking the deadline every 1024 iterations.
func (c *Conn) waitEcho(seq uint64) error {
	if c.lastEcho.Load() >= seq {
		return nil
	}
	start := time.Now()
	deadline := start.Add(c.config.SyncTimeout.Duration)
	for i := 1; ; i++ {
		if c.lastEcho.Load() >= seq {
			if otel.IsEnabled() {
				otel.RecordSyncSend(time.Since(start), otel.Success)
			}
			return nil
		}
		if i&1023 == 0 {
			select {
			case <-c.doneCh:
				return ErrConnLeft
			default:
			}
			if time.Now().After(deadline) {
				c.stats.add(&c.stats.syncTimeouts, 1)
				if otel.IsEnabled() {
					otel.RecordSyncSend(time.Since(start), otel.Error)
				}
				return fmt.Errorf("%w: seq=%d last echo=%d after %s",
					ErrSyncTimeout, seq, c.lastEcho.Load(), c.config.SyncTimeout.Duration)
			}
			runtime.Gosched()
		}
	}
}

// waitBatchEcho blocks the writer until the batch in flight is echoed.
// On timeout the batch is given up on and the writer moves on.
func (c *Conn) waitBatchEcho() bool {
	want := c.inflight.Load()
	if c.lastEcho.Load() >= want {
		return true
	}
	timer := time.NewTimer(c.config.SyncTimeout.Duration)
	defer timer.Stop()
	for c.lastEcho.Load() < want {
		select {
		case <-c.echoCh:
		case <-timer.C:
			c.stats.add(&c.stats.syncTimeouts, 1)
			glog.Warningf("mcast: batch up to seq %d not echoed after %s", want, c.config.SyncTimeout.Duration)
			return true
		case <-c.doneCh:
			return false
		}
	}
	return true
}

func (c *Conn) writeLoop() {
	defer c.wwg.Done()
	glog.Verbosef("mcast: writer started")
	for {
		select {
		case <-c.doneCh:
			glog.Verbosef("mcast: writer exit")
			return
		case <-c.notifyCh:
		}
		for {
			if c.config.SyncSend && !c.waitBatchEcho() {
				return
			}
			if !c.drain() {
				break
			}
		}
	}
}

func (c *Conn) readLoop() {
	defer c.rwg.Done()
	glog.Verbosef("mcast: reader started")

	buf := make([]byte, frame.MaxDatagramSize)
	frames := make([]frame.Frame, 0, 64)
	for {
		n, _, err := c.pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-c.doneCh:
				glog.Verbosef("mcast: reader exit")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			glog.Warningf("mcast: read: %s", err)
			continue
		}
		frames = c.handleDatagram(buf[:n], frames)
	}
}

// handleDatagram splits, validates and dispatches one datagram. It runs
// on the reader goroutine only.
func (c *Conn) handleDatagram(datagram []byte, frames []frame.Frame) []frame.Frame {
	c.stats.add(&c.stats.rxDatagrams, 1)

	var err error
	if frames, err = frame.Split(datagram, frames); err != nil {
		c.stats.add(&c.stats.malformed, 1)
		glog.Warningf("mcast: drop datagram: %s", err)
		return frames
	}

	echoed := false
	for i := range frames {
		f := &frames[i]
		pid := sequence.PublisherId(f.PublisherId)

		delta := c.tracker.Check(pid, f.SeqNum)
		switch sequence.Classify(delta) {
		case sequence.VerdictAccept:
			c.tracker.CommitRemote(pid, f.SeqNum)
			c.stats.add(&c.stats.rxFrames, 1)
			c.stats.add(&c.stats.rxBytes, uint64(len(f.Payload)))
			c.dispatcher.Dispatch(f.Payload)
		case sequence.VerdictDuplicate:
			c.stats.add(&c.stats.duplicates, 1)
			if glog.LOG_DEBUG {
				glog.Debugf("mcast: duplicate %s delta=%d", f.Header, delta)
			}
		case sequence.VerdictGap:
			// Resync on the gap so the next number from this publisher
			// is judged against the one just seen.
			c.tracker.CommitRemote(pid, f.SeqNum)
			c.stats.add(&c.stats.gaps, 1)
			glog.Warningf("mcast: gap %s delta=%d, %d lost", f.Header, delta, delta-1)
		}
		// An own frame counts as echoed once it has been through the
		// subscribers, whatever the verdict.
		if f.PublisherId == c.localId && f.SeqNum > c.lastEcho.Load() {
			c.lastEcho.Store(f.SeqNum)
			echoed = true
		}
	}
	if echoed {
		select {
		case c.echoCh <- struct{}{}:
		default:
		}
	}
	return frames
}
