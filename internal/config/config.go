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

// Package config holds the process configuration shared by the bus
// binaries: a TOML file overlaid with the MSG_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"mcbus/pkg/etcd"
	"mcbus/pkg/initmgr"
	"mcbus/pkg/io"
	otelCfg "mcbus/pkg/logging/otel/config"
	"mcbus/pkg/mcast"
	"mcbus/pkg/messaging"
	"mcbus/pkg/sequence"
	"mcbus/pkg/stats"
	"mcbus/pkg/util"
	"mcbus/third_party/forked/golang/glog"
)

const (
	EnvBufferTx     = "MSG_BUFFER_TX"
	EnvSendSync     = "MSG_SEND_SYNC"
	EnvQuorum       = "MSG_QUORUM"
	EnvIdSourceAddr = "MSG_ID_SOURCE_ADDR"
	EnvIdSourcePort = "MSG_ID_SOURCE_PORT"

	defaultEtcdPort = 2379
)

var (
	Initializer initmgr.IInitializer = initmgr.NewInitializer(initialize, finalize)

	Conf = DefaultConfig()
)

type GatewayConfig struct {
	Listener io.ListenerConfig
	Inbound  io.InboundConfig
}

type Config struct {
	LogLevel string
	// ClusterName scopes the authority keys in etcd.
	ClusterName string

	// StateLogDir holds state.log. Empty writes the state lines to stderr.
	StateLogDir      string
	StateLogEnabled  bool
	StateLogInterval util.Duration

	Messaging messaging.Config
	Sequence  sequence.Config
	Etcd      etcd.Config
	Otel      otelCfg.Config
	Gateway   GatewayConfig
}

func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		ClusterName:      "bus",
		StateLogInterval: util.Duration{Duration: stats.KDefaultWriteInterval},
		Messaging: messaging.Config{
			Config:      mcast.DefaultConfig,
			Compression: messaging.CompressionNone,
		},
		Sequence: sequence.DefaultConfig,
		Etcd:     *etcd.NewConfig(fmt.Sprintf("127.0.0.1:%d", defaultEtcdPort)),
		Otel: otelCfg.Config{
			Poolname:   "mcbus",
			Resolution: 60,
		},
		Gateway: GatewayConfig{
			Listener: io.ListenerConfig{Addr: io.DefaultListenAddr},
			Inbound:  io.DefaultInboundConfig,
		},
	}
}

// Load decodes file over the current values, applies the environment
// overrides and validates the result. An empty file name skips decoding.
func (c *Config) Load(file string) (err error) {
	if len(file) != 0 {
		if _, err = toml.DecodeFile(file, c); err != nil {
			return fmt.Errorf("config error : %w", err)
		}
	}
	if err = c.ApplyEnv(); err != nil {
		return
	}
	return c.Validate()
}

// ApplyEnv overlays the MSG_* environment variables. Booleans accept 1,
// true and yes.
func (c *Config) ApplyEnv() error {
	c.Messaging.Buffered = util.EnvBool(EnvBufferTx, c.Messaging.Buffered)
	c.Messaging.SyncSend = util.EnvBool(EnvSendSync, c.Messaging.SyncSend)
	if v, ok := util.LookupEnv(EnvQuorum); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("config error : %s=%q is not a replica count", EnvQuorum, v)
		}
		c.Sequence.Quorum = n
	}
	if addr, ok := util.LookupEnv(EnvIdSourceAddr); ok {
		port := util.EnvInt(EnvIdSourcePort, defaultEtcdPort)
		c.Etcd.Endpoints = []string{net.JoinHostPort(addr, strconv.Itoa(port))}
	}
	return nil
}

func (c *Config) Validate() (err error) {
	c.Messaging.SetDefaultIfNotDefined()
	if err = c.Messaging.Config.Validate(); err != nil {
		glog.Errorf("config error: %s", err)
		return
	}
	switch strings.ToLower(c.Messaging.Compression) {
	case "", messaging.CompressionNone, messaging.CompressionSnappy:
	default:
		return fmt.Errorf("config error: unknown compression %q", c.Messaging.Compression)
	}
	c.Sequence.SetDefaultIfNotDefined()
	c.Etcd.SetDefaultIfNotDefined()
	if len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("config error: no sequence authority endpoint")
	}
	if c.StateLogInterval.Duration <= 0 {
		c.StateLogInterval.Duration = stats.KDefaultWriteInterval
	}
	c.Otel.Validate()
	c.Gateway.Listener.SetDefaultIfNotDefined()
	c.Gateway.Inbound.SetDefaultIfNotDefined()
	return
}

func (c *Config) Dump() {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(c.dumpable()); err != nil {
		glog.Warningf("config dump: %s", err)
	}
	glog.Info(buf.String())
}

// dumpable drops the etcd client fields that do not encode.
func (c *Config) dumpable() interface{} {
	return struct {
		LogLevel         string
		ClusterName      string
		StateLogEnabled  bool
		StateLogDir      string
		StateLogInterval util.Duration
		Messaging        messaging.Config
		Sequence         sequence.Config
		Etcd             struct {
			Endpoints     []string
			EtcdKeyPrefix string
		}
		Otel    otelCfg.Config
		Gateway GatewayConfig
	}{
		LogLevel:         c.LogLevel,
		ClusterName:      c.ClusterName,
		StateLogEnabled:  c.StateLogEnabled,
		StateLogDir:      c.StateLogDir,
		StateLogInterval: c.StateLogInterval,
		Messaging:        c.Messaging,
		Sequence:         c.Sequence,
		Etcd: struct {
			Endpoints     []string
			EtcdKeyPrefix string
		}{c.Etcd.Endpoints, c.Etcd.EtcdKeyPrefix},
		Otel:    c.Otel,
		Gateway: c.Gateway,
	}
}

func LoadConfig(file string) error {
	return Conf.Load(file)
}

func initialize(args ...interface{}) (err error) {
	sz := len(args)
	if sz < 1 {
		err = fmt.Errorf("a string config file name argument expected")
		return
	}
	filename, ok := args[0].(string)

	if ok == false {
		err = fmt.Errorf("wrong argument type. a string config file name expected")
		return
	}
	err = LoadConfig(filename)
	return
}

func finalize() {
}
