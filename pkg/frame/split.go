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
	"fmt"
)

// Split decodes every frame of datagram. The whole datagram is validated
// before anything is returned: a datagram that ends inside a header or a
// payload yields an error and no frames. Payloads alias datagram.
func Split(datagram []byte, frames []Frame) ([]Frame, error) {
	frames = frames[:0]
	if len(datagram) < HeaderSize {
		return frames, fmt.Errorf("%w: %d bytes", ErrDatagramTooShort, len(datagram))
	}

	offset := 0
	for offset < len(datagram) {
		var f Frame
		if err := f.Header.Decode(datagram[offset:]); err != nil {
			return frames[:0], fmt.Errorf("%w: %d trailing bytes at offset %d", err, len(datagram)-offset, offset)
		}
		start := offset + HeaderSize
		end := start + int(f.PayloadSize)
		if end > len(datagram) {
			return frames[:0], fmt.Errorf("%w: %s at offset %d, datagram %d bytes", ErrTruncatedFrame, f.Header, offset, len(datagram))
		}
		f.Payload = datagram[start:end:end]
		frames = append(frames, f)
		offset = end
	}
	return frames, nil
}
