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

package frame

// Packer packs frames back to back into one datagram. It does not copy
// beyond its scratch buffer, which is reused after Reset.
type Packer struct {
	buf   []byte
	count int
	first uint64
	last  uint64
}

func NewPacker(maxDatagramSize int) *Packer {
	return &Packer{
		buf: make([]byte, 0, maxDatagramSize),
	}
}

// Fits reports whether a payload of size bytes can still be appended.
func (p *Packer) Fits(size int) bool {
	return len(p.buf)+HeaderSize+size <= cap(p.buf)
}

// Append writes one frame. The caller checks Fits first; Append panics
// when the frame does not fit.
func (p *Packer) Append(publisherId uint16, seq uint64, payload []byte) {
	if !p.Fits(len(payload)) {
		panic("frame: datagram overflow")
	}
	off := len(p.buf)
	p.buf = p.buf[:off+HeaderSize]
	h := Header{
		SeqNum:      seq,
		PublisherId: publisherId,
		PayloadSize: uint16(len(payload)),
	}
	h.Encode(p.buf[off:])
	p.buf = append(p.buf, payload...)

	if p.count == 0 {
		p.first = seq
	}
	p.last = seq
	p.count++
}

func (p *Packer) Bytes() []byte {
	return p.buf
}

func (p *Packer) Len() int {
	return len(p.buf)
}

func (p *Packer) Count() int {
	return p.count
}

// LastSeqNum returns the highest sequence number packed since Reset.
func (p *Packer) LastSeqNum() uint64 {
	return p.last
}

func (p *Packer) FirstSeqNum() uint64 {
	return p.first
}

func (p *Packer) Reset() {
	p.buf = p.buf[:0]
	p.count = 0
	p.first = 0
	p.last = 0
}
