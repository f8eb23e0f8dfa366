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

// Package stats writes a line of process state at a fixed interval,
// with a header line every so often.
package stats

import (
	"fmt"
	"sync"
	"time"

	"mcbus/third_party/forked/golang/glog"
)

const (
	KDefaultWriteInterval = 1 * time.Second
)

type (
	IState interface {
		Header() string
		FullHeader() string
		State() string
		CollectData()
		Width() int
	}

	StateBase struct {
		header     string
		fullHeader string
	}

	// Uint64State shows the current value of a counter.
	Uint64State struct {
		StateBase
		get   func() uint64
		value uint64
	}

	// Uint64DeltaState shows how much a counter grew since the previous
	// write.
	Uint64DeltaState struct {
		Uint64State
		lastValue uint64
	}

	GenState struct {
		StateBase
		Value func() string
		width int
	}

	IStatesWriter interface {
		Write(now time.Time, states []IState) error
		Close() error
	}

	StateLog struct {
		interval time.Duration
		states   []IState
		writers  []IStatesWriter
		quitOnce sync.Once
		chQuit   chan struct{}
		wg       sync.WaitGroup
	}
)

func (s *StateBase) FullHeader() string {
	return s.fullHeader
}

func (s *StateBase) Header() string {
	return s.header
}

func NewUint64State(get func() uint64, header string, fullHeader string) *Uint64State {
	return &Uint64State{
		StateBase: StateBase{
			header:     header,
			fullHeader: fullHeader,
		},
		get: get,
	}
}

func (s *Uint64State) State() string {
	return fmt.Sprintf("%v", s.value)
}

func (s *Uint64State) CollectData() {
	s.value = s.get()
}

func (s *Uint64State) Width() int {
	if len(s.header) > 8 {
		return len(s.header)
	} else {
		return 8
	}
}

func NewUint64DeltaState(get func() uint64, header string, fullHeader string) *Uint64DeltaState {
	return &Uint64DeltaState{
		Uint64State: Uint64State{
			StateBase: StateBase{
				header:     header,
				fullHeader: fullHeader,
			},
			get: get,
		},
	}
}

func (s *Uint64DeltaState) CollectData() {
	cur := s.get()
	s.value = cur - s.lastValue
	s.lastValue = cur
}

func (s *Uint64DeltaState) Width() int {
	if len(s.header) > 5 {
		return len(s.header)
	} else {
		return 5
	}
}

func NewGenState(header string, fullHeader string, v func() string, width int) *GenState {
	st := &GenState{
		StateBase: StateBase{
			header:     header,
			fullHeader: fullHeader,
		},
		Value: v,
		width: width,
	}

	if len(st.header) > st.width {
		st.width = len(st.header)
	}

	return st
}

func (s *GenState) State() string {
	return s.Value()
}

func (s *GenState) CollectData() {
	// do nothing
}

func (s *GenState) Width() int {
	return s.width
}

func (l *StateLog) Init(interval time.Duration, states []IState) {
	if interval <= 0 {
		interval = KDefaultWriteInterval
	}
	l.interval = interval
	l.states = states
	l.chQuit = make(chan struct{})
}

func (l *StateLog) AddStateWriter(w IStatesWriter) {
	l.writers = append(l.writers, w)
}

func (l *StateLog) AddState(st IState) {
	l.states = append(l.states, st)
}

func (l *StateLog) Run() {
	// first collection sets the baseline of the delta states
	for _, i := range l.states {
		i.CollectData()
	}
	l.wg.Add(1)
	go l.write()
}

// WriteNow collects and writes one line outside the ticker.
func (l *StateLog) WriteNow(now time.Time) {
	for _, i := range l.states {
		i.CollectData()
	}
	for _, w := range l.writers {
		if err := w.Write(now, l.states); err != nil {
			glog.Warningf("statelog write: %s", err)
		}
	}
}

func (l *StateLog) write() {
	ticker := time.NewTicker(l.interval)
	defer func() {
		ticker.Stop()
		for _, w := range l.writers {
			w.Close()
		}
		l.wg.Done()
	}()

	for {
		select {
		case <-l.chQuit:
			glog.Verbosef("statelog writer quit")
			return

		case now := <-ticker.C:
			l.WriteNow(now)
		}
	}
}

// Quit stops the writer and closes every state writer.
func (l *StateLog) Quit() {
	l.quitOnce.Do(func() {
		close(l.chQuit)
	})
	l.wg.Wait()
}
