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

// Package messaging is the service boundary of the bus: publishers send
// opaque payloads and consumers receive every payload accepted on the
// group.
package messaging

import (
	"mcbus/pkg/errors"
)

var (
	ErrShutdown = errors.NewError("messaging service shut down", errors.ErrnoShutdown)
)

type (
	// Consumer receives payloads on the goroutine that read them. The
	// slice is only valid for the duration of the call.
	Consumer interface {
		ReceivedMessage(data []byte)
	}

	ConsumerFunc func(data []byte)

	Service interface {
		Send(payload []byte) error
		RegisterCallback(c Consumer)
	}
)

func (f ConsumerFunc) ReceivedMessage(data []byte) {
	f(data)
}
