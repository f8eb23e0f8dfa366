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

package messaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/snappy"
)

const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
)

type codec interface {
	encode(payload []byte) ([]byte, error)
	decode(data []byte) ([]byte, error)
	// overhead is the worst case number of bytes encode adds.
	overhead() int
}

type plainCodec struct{}

func (plainCodec) encode(payload []byte) ([]byte, error) { return payload, nil }
func (plainCodec) decode(data []byte) ([]byte, error)    { return data, nil }
func (plainCodec) overhead() int                         { return 0 }

const (
	kSnappyRaw   byte = 0
	kSnappyBlock byte = 1
)

var errEmptySnappyFrame = errors.New("messaging: empty snappy payload")

// snappyCodec compresses each payload on its own and prefixes a tag byte.
// A payload that does not shrink is sent raw, so an encoded payload is
// never more than one byte longer than the original.
type snappyCodec struct{}

func (snappyCodec) encode(payload []byte) ([]byte, error) {
	buf := make([]byte, 1+snappy.MaxEncodedLen(len(payload)))
	enc := snappy.Encode(buf[1:], payload)
	if len(enc) < len(payload) {
		buf[0] = kSnappyBlock
		return buf[:1+len(enc)], nil
	}
	buf = buf[:1+len(payload)]
	buf[0] = kSnappyRaw
	copy(buf[1:], payload)
	return buf, nil
}

func (snappyCodec) decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errEmptySnappyFrame
	}
	switch data[0] {
	case kSnappyRaw:
		return data[1:], nil
	case kSnappyBlock:
		return snappy.Decode(nil, data[1:])
	}
	return nil, fmt.Errorf("messaging: unknown snappy tag %d", data[0])
}

func (snappyCodec) overhead() int { return 1 }

func newCodec(name string) (codec, error) {
	switch strings.ToLower(name) {
	case "", CompressionNone:
		return plainCodec{}, nil
	case CompressionSnappy:
		return snappyCodec{}, nil
	}
	return nil, fmt.Errorf("messaging: unknown compression %q", name)
}
