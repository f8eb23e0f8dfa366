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
	"time"

	"mcbus/pkg/util"
)

const (
	DefaultCounterKey = "msg_seq_id"
)

var (
	DefaultConfig = Config{
		CounterKey:     DefaultCounterKey,
		Quorum:         0,
		RequestTimeout: util.Duration{Duration: 5 * time.Second},
	}
)

type Config struct {
	// CounterKey names the shared counter the publisher ids are drawn from.
	CounterKey string
	// Quorum is the number of replicas that must acknowledge the
	// allocation before the id is used. 0 disables the wait.
	Quorum         int
	RequestTimeout util.Duration
}

func (c *Config) SetDefaultIfNotDefined() {
	if len(c.CounterKey) == 0 {
		c.CounterKey = DefaultConfig.CounterKey
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = DefaultConfig.RequestTimeout
	}
	if c.Quorum < 0 {
		c.Quorum = 0
	}
}
