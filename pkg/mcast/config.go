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

package mcast

import (
	"fmt"
	"net"
	"time"

	"mcbus/pkg/frame"
	"mcbus/pkg/util"
	"mcbus/third_party/forked/golang/glog"
)

const (
	DefaultGroup = "239.0.0.1"
	DefaultPort  = 40100
)

var (
	DefaultConfig = Config{
		Group:           DefaultGroup,
		Port:            DefaultPort,
		MaxDatagramSize: frame.DefaultMaxDatagramSize,
		Loopback:        true,
		Buffered:        true,
		SyncSend:        false,
		SyncTimeout:     util.Duration{Duration: 1 * time.Second},
		TTL:             1,
	}
)

type Config struct {
	// Group is the IPv4 multicast group address.
	Group string
	Port  int
	// Interface names the network interface used to join and send. Empty
	// lets the system choose.
	Interface       string
	MaxDatagramSize int
	// Loopback delivers a process's own datagrams back to it. Required by
	// SyncSend.
	Loopback bool
	// Buffered queues payloads and batches them on the writer; otherwise
	// Send transmits one frame per datagram from the calling goroutine.
	Buffered bool
	// SyncSend waits for the loopback echo of every send (unbuffered) or
	// of every batch before the next one starts (buffered).
	SyncSend    bool
	SyncTimeout util.Duration
	// ReadBufferSize sets SO_RCVBUF when non-zero.
	ReadBufferSize int
	TTL            int
}

func (c *Config) SetDefaultIfNotDefined() {
	if len(c.Group) == 0 {
		c.Group = DefaultConfig.Group
	}
	if c.Port == 0 {
		c.Port = DefaultConfig.Port
	}
	if c.MaxDatagramSize == 0 {
		c.MaxDatagramSize = DefaultConfig.MaxDatagramSize
	}
	if c.SyncTimeout.Duration == 0 {
		c.SyncTimeout = DefaultConfig.SyncTimeout
	}
	if c.TTL == 0 {
		c.TTL = DefaultConfig.TTL
	}
}

func (c *Config) Validate() error {
	ip := net.ParseIP(c.Group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return fmt.Errorf("mcast: %q is not an IPv4 multicast group", c.Group)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("mcast: invalid port %d", c.Port)
	}
	if c.MaxDatagramSize <= frame.HeaderSize || c.MaxDatagramSize > frame.MaxDatagramSize {
		return fmt.Errorf("mcast: max datagram size %d not in (%d, %d]",
			c.MaxDatagramSize, frame.HeaderSize, frame.MaxDatagramSize)
	}
	if c.SyncSend && !c.Loopback {
		return fmt.Errorf("mcast: synchronous send requires multicast loopback")
	}
	return nil
}

func (c *Config) GroupAddr() string {
	return net.JoinHostPort(c.Group, fmt.Sprint(c.Port))
}

func (c *Config) Dump() {
	glog.Infof("Group: %s", c.GroupAddr())
	glog.Infof("Interface: %s", c.Interface)
	glog.Infof("MaxDatagramSize: %d", c.MaxDatagramSize)
	glog.Infof("Loopback: %t", c.Loopback)
	glog.Infof("Buffered: %t", c.Buffered)
	glog.Infof("SyncSend: %t", c.SyncSend)
	glog.Infof("SyncTimeout: %s", c.SyncTimeout.Duration)
}
