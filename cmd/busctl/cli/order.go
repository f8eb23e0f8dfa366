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

package cli

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	kOrderInstrument = "ERICB"
	kOrderPrice      = 23000
	kOrderQuantity   = 80
	kSideBuy         = 'B'
)

// limitOrder renders a synthetic buy order. The first 8 bytes carry the
// send time in unix nanoseconds so a receiver can measure delivery
// latency.
func limitOrder(b []byte, localId int, now time.Time) []byte {
	b = binary.BigEndian.AppendUint64(b[:0], uint64(now.UnixNano()))
	return fmt.Appendf(b, "L|%d|%s|%c|%d|%d", localId, kOrderInstrument, kSideBuy, kOrderPrice, kOrderQuantity)
}

// orderSentAt extracts the send time written by limitOrder.
func orderSentAt(payload []byte) (tm time.Time, ok bool) {
	if len(payload) < 8 {
		return
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(payload))), true
}
