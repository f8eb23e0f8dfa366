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

package io

import (
	"time"

	"mcbus/pkg/frame"
	"mcbus/pkg/util"
)

var (
	DefaultInboundConfig = InboundConfig{
		IdleTimeout:          util.Duration{Duration: 120 * time.Second},
		ReadTimeout:          util.Duration{Duration: 500 * time.Millisecond},
		IOBufSize:            64 * 1024,
		MaxFrameSize:         frame.MaxPayloadSize(frame.DefaultMaxDatagramSize),
		GracefulShutdownTime: util.Duration{Duration: 2 * time.Second},
	}
)

type (
	InboundConfig struct {
		// IdleTimeout closes a connection that sends nothing for this long.
		IdleTimeout util.Duration
		// ReadTimeout bounds reading the rest of a frame once its length
		// prefix has arrived.
		ReadTimeout util.Duration
		IOBufSize   int
		// MaxFrameSize is the largest payload accepted; a longer frame
		// closes the connection.
		MaxFrameSize         int
		GracefulShutdownTime util.Duration
	}
)

func (conf *InboundConfig) SetDefaultIfNotDefined() (set bool) {
	if conf.IdleTimeout.Duration == 0 {
		set = true
		conf.IdleTimeout = DefaultInboundConfig.IdleTimeout
	}
	if conf.ReadTimeout.Duration == 0 {
		set = true
		conf.ReadTimeout = DefaultInboundConfig.ReadTimeout
	}
	if conf.IOBufSize == 0 {
		set = true
		conf.IOBufSize = DefaultInboundConfig.IOBufSize
	}
	if conf.MaxFrameSize <= 0 || conf.MaxFrameSize > 0xffff {
		set = true
		conf.MaxFrameSize = DefaultInboundConfig.MaxFrameSize
	}
	if conf.GracefulShutdownTime.Duration == 0 {
		set = true
		conf.GracefulShutdownTime = DefaultInboundConfig.GracefulShutdownTime
	}
	return
}
