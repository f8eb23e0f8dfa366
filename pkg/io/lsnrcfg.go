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
	"fmt"
	"strings"
)

const DefaultListenAddr = ":48400"

type ListenerConfig struct {
	Name    string
	Network string
	Addr    string
}

func (p *ListenerConfig) Validate() (err error) {
	if len(p.Addr) == 0 {
		err = fmt.Errorf("ListenerConfig.Addr not specified")
	}
	return
}

// GetConnString accepts a bare port as the address.
func (p *ListenerConfig) GetConnString() (str string) {
	if strings.Contains(p.Addr, ":") {
		return p.Addr
	}
	return ":" + p.Addr
}

func (cfg *ListenerConfig) SetDefaultIfNotDefined() {
	if len(cfg.Network) == 0 {
		cfg.Network = "tcp"
	}
	if len(cfg.Addr) == 0 {
		cfg.Addr = DefaultListenAddr
	}
}
