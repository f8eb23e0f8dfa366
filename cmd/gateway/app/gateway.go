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

/*
Gateway accepts order flow from TCP clients and publishes every frame on
the messaging bus.
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"mcbus/internal/config"
	"mcbus/pkg/cmd"
	"mcbus/pkg/etcd"
	"mcbus/pkg/initmgr"
	"mcbus/pkg/io"
	"mcbus/pkg/logging/otel"
	"mcbus/pkg/mcast"
	"mcbus/pkg/messaging"
	"mcbus/pkg/stats"
	"mcbus/pkg/version"
	"mcbus/third_party/forked/golang/glog"
)

// Gateway forwards the payload of every inbound frame to a messaging
// service.
type Gateway struct {
	service  messaging.Service
	listener *io.Listener
	config   config.GatewayConfig
}

// NewGateway listens on cfg.Listener. Frames longer than maxPayload are
// refused before they reach the service.
func NewGateway(svc messaging.Service, maxPayload int, cfg config.GatewayConfig) (g *Gateway, err error) {
	g = &Gateway{
		service: svc,
		config:  cfg,
	}
	g.config.Inbound.SetDefaultIfNotDefined()
	if maxPayload > 0 && g.config.Inbound.MaxFrameSize > maxPayload {
		g.config.Inbound.MaxFrameSize = maxPayload
	}
	if g.listener, err = io.NewListener(g.config.Listener, g.config.Inbound, g); err != nil {
		return nil, err
	}
	return
}

// OnFrame publishes payload. A send that timed out waiting for its echo
// was still transmitted, so the connection is kept; any other failure
// closes it.
func (g *Gateway) OnFrame(c *io.Connector, payload []byte) error {
	err := g.service.Send(payload)
	if err == nil {
		return nil
	}
	if errors.Is(err, mcast.ErrSyncTimeout) {
		glog.Warningf("frame %d from %s: %s", c.NumFrames(), c.RemoteAddr(), err)
		return nil
	}
	return err
}

func (g *Gateway) Addr() string {
	return g.listener.Addr().String()
}

func (g *Gateway) NumActiveConnections() uint32 {
	return g.listener.GetNumActiveConnections()
}

// Serve blocks until Shutdown.
func (g *Gateway) Serve() error {
	return g.listener.Serve()
}

func (g *Gateway) Shutdown() {
	g.listener.Shutdown()
	if !g.listener.WaitForShutdownToComplete(g.config.Inbound.GracefulShutdownTime.Duration) {
		glog.Warningf("%d connections still active after %s",
			g.listener.GetNumActiveConnections(), g.config.Inbound.GracefulShutdownTime.Duration)
	}
}

func Main() {
	defer initmgr.Finalize()

	progName := filepath.Base(os.Args[0])
	var option cmd.Option
	var displayVersion bool
	var configFilename string
	var logLevel string
	var listenAddr string
	option.BoolOption(&displayVersion, "version", false, "display version info")
	option.StringOption(&configFilename, "c|config", "", "specify toml config file")
	option.StringOption(&logLevel, "log-level", "", "specify log level. override LogLevel in config file")
	option.StringOption(&listenAddr, "listen", "", "specify listening address. override Gateway.Listener in config file")

	option.Usage = func() {
		fmt.Printf(`
NAME
  %s - order flow gateway

USAGE
  %s <-version>
  %s [-c|-config=<config file>] [-log-level=<level>] [-listen=<addr>]
`, progName, progName, progName)
	}
	if err := option.Parse(os.Args[1:]); err != nil {
		return
	}
	if displayVersion {
		version.PrintVersionInfo()
		return
	}
	if configFilename != "" {
		if _, err := os.Stat(configFilename); errors.Is(err, fs.ErrNotExist) {
			glog.Exitf("\n\n***  config file \"%s\" not found ***\n\n", configFilename)
		}
	}

	cfg := &config.Conf
	initmgr.Register(config.Initializer, configFilename)
	initmgr.Init() //initalize config first as others depend on it

	if len(logLevel) != 0 {
		cfg.LogLevel = logLevel
	}
	if len(listenAddr) != 0 {
		cfg.Gateway.Listener.Addr = listenAddr
	}
	appName := "[" + progName + "] "
	initmgr.RegisterWithFuncs(glog.Initialize, glog.Finalize, cfg.LogLevel, appName)
	initmgr.RegisterWithFuncs(otel.Initialize, otel.Finalize, &cfg.Otel)
	initmgr.RegisterWithFuncs(
		func(args ...interface{}) error { return etcd.Connect(&cfg.Etcd, cfg.ClusterName) },
		etcd.Close)
	initmgr.Init()
	cfg.Dump()

	bus, err := messaging.New(context.Background(), cfg.Messaging, cfg.Sequence, etcd.GetEtcdCli())
	if err != nil {
		glog.Exitf("failed to create messaging bus: %s", err)
	}
	if err = bus.Start(); err != nil {
		glog.Exitf("failed to join %s: %s", cfg.Messaging.GroupAddr(), err)
	}

	gw, err := NewGateway(bus, bus.MaxPayloadSize(), cfg.Gateway)
	if err != nil {
		bus.Shutdown()
		glog.Exitf("failed to listen on %s: %s", cfg.Gateway.Listener.Addr, err)
	}
	go func() {
		if err := gw.Serve(); err != nil {
			glog.Errorf("gateway: %s", err)
		}
	}()
	var statelog *stats.StateLog
	if cfg.StateLogEnabled {
		if statelog, err = startStateLog(bus, gw, cfg.StateLogDir, cfg.StateLogInterval.Duration); err != nil {
			glog.Warningf("state log disabled: %s", err)
		}
	}

	sig := initmgr.WaitForSignal()
	glog.Infof("%s received. shutting down", sig)
	start := time.Now()
	gw.Shutdown()
	bus.Shutdown()
	if statelog != nil {
		statelog.WriteNow(time.Now())
		statelog.Quit()
	}
	glog.Infof("%s stopped in %s. %s", bus, time.Since(start), bus.TransportStats())
}
