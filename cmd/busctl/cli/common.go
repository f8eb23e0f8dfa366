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
	"context"
	"fmt"
	"net"
	"strconv"

	"mcbus/internal/config"
	"mcbus/pkg/cmd"
	"mcbus/pkg/etcd"
	"mcbus/pkg/mcast"
	"mcbus/pkg/messaging"
	"mcbus/pkg/sequence"
	"mcbus/third_party/forked/golang/glog"
)

const (
	kDefaultLogLevel = "warning"
)

type (
	// busCommandT carries the options shared by the commands that join
	// the bus.
	busCommandT struct {
		cmd.Command
		conf config.Config

		optCfgFile     string
		optLogLevel    string
		optGroup       string
		optCompression string
		optSync        bool
		optUnbuffered  bool
	}
)

func (c *busCommandT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optCfgFile, "c|config", "", "specify toml configuration file name")
	c.StringOption(&c.optLogLevel, "log-level", kDefaultLogLevel, "specify log level")
	c.StringOption(&c.optGroup, "g|group", "", "specify the multicast group as <ip>:<port>. override Messaging.Group and Messaging.Port")
	c.StringOption(&c.optCompression, "compression", "", "specify payload compression, none or snappy")
	c.BoolOption(&c.optSync, "sync", false, "wait for the loopback echo of every send")
	c.BoolOption(&c.optUnbuffered, "unbuffered", false, "send one frame per datagram from the calling goroutine")
}

func (c *busCommandT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	glog.InitLogging(c.optLogLevel, " [busctl] ")

	var group string
	var port int
	if len(c.optGroup) != 0 {
		var p string
		if group, p, err = net.SplitHostPort(c.optGroup); err != nil {
			return
		}
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("invalid group port %q", p)
		}
	}

	c.conf = config.DefaultConfig()
	if err = c.conf.Load(c.optCfgFile); err != nil {
		return
	}
	if len(group) != 0 {
		c.conf.Messaging.Group = group
		c.conf.Messaging.Port = port
	}
	if len(c.optCompression) != 0 {
		c.conf.Messaging.Compression = c.optCompression
	}
	if c.optSync {
		c.conf.Messaging.SyncSend = true
	}
	if c.optUnbuffered {
		c.conf.Messaging.Buffered = false
	}
	return c.conf.Validate()
}

// newBus connects to the configured sequence authority and builds a bus.
func (c *busCommandT) newBus(ctx context.Context) (*messaging.Bus, func(), error) {
	cli := etcd.NewEtcdClient(&c.conf.Etcd, c.conf.ClusterName)
	if cli == nil {
		return nil, nil, fmt.Errorf("no sequence authority at %v", c.conf.Etcd.Endpoints)
	}
	b, err := messaging.New(ctx, c.conf.Messaging, c.conf.Sequence, cli)
	if err != nil {
		cli.Close()
		return nil, nil, err
	}
	return b, cli.Close, nil
}

// newLocalBus attaches a bus to an in-memory group.
func newLocalBus(ctx context.Context, cfg messaging.Config, auth sequence.Authority, hub *mcast.Hub) (*messaging.Bus, error) {
	return messaging.New(ctx, cfg, sequence.DefaultConfig, auth,
		messaging.WithTransportOptions(mcast.WithOpener(hub.Opener())))
}

func startBus(b *messaging.Bus) {
	if err := b.Start(); err != nil {
		glog.Exitf("failed to join bus: %s", err)
	}
}
