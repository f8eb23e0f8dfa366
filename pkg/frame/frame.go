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

import (
	"encoding/binary"
	"fmt"
	"math"

	"mcbus/pkg/errors"
)

const (
	HeaderSize             = 12
	DefaultMaxDatagramSize = 1024
	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	offSeqNum      = 0
	offPublisherId = 8
	offPayloadSize = 10
)

var (
	ByteOrder binary.ByteOrder = binary.NativeEndian

	ErrDatagramTooShort = errors.NewError("datagram shorter than a frame header", errors.ErrnoMalformed)
	ErrTruncatedFrame   = errors.NewError("frame payload exceeds datagram", errors.ErrnoMalformed)
	ErrPayloadTooLarge  = errors.NewError("payload exceeds maximum frame size", errors.ErrnoPayloadTooLarge)
)

type Header struct {
	SeqNum      uint64
	PublisherId uint16
	PayloadSize uint16
}

type Frame struct {
	Header
	Payload []byte
}

func (h *Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	ByteOrder.PutUint64(b[offSeqNum:], h.SeqNum)
	ByteOrder.PutUint16(b[offPublisherId:], h.PublisherId)
	ByteOrder.PutUint16(b[offPayloadSize:], h.PayloadSize)
}

func (h *Header) Decode(b []byte) error {
	if len(b) < HeaderSize {
		return ErrDatagramTooShort
	}
	h.SeqNum = ByteOrder.Uint64(b[offSeqNum:])
	h.PublisherId = ByteOrder.Uint16(b[offPublisherId:])
	h.PayloadSize = ByteOrder.Uint16(b[offPayloadSize:])
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("pid=%d seq=%d size=%d", h.PublisherId, h.SeqNum, h.PayloadSize)
}

// MaxPayloadSize returns the largest payload a single frame can carry in a
// datagram of maxDatagramSize bytes.
func MaxPayloadSize(maxDatagramSize int) int {
	n := maxDatagramSize - HeaderSize
	if n > math.MaxUint16 {
		n = math.MaxUint16
	}
	if n < 0 {
		n = 0
	}
	return n
}

// CheckPayload rejects a payload that can never be framed.
func CheckPayload(size int, maxDatagramSize int) error {
	if max := MaxPayloadSize(maxDatagramSize); size > max {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, size, max)
	}
	return nil
}
