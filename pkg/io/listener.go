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
	"errors"
	"net"
	"sync/atomic"
	"time"

	"mcbus/pkg/logging/otel"
	"mcbus/pkg/util"
	"mcbus/third_party/forked/golang/glog"
)

type Listener struct {
	config      ListenerConfig
	ioConfig    InboundConfig
	netListener net.Listener
	handler     IFrameHandler
	connMgr     *InboundConnManager
	closed      atomic.Bool
}

func NewListener(cfg ListenerConfig, iocfg InboundConfig, handler IFrameHandler) (l *Listener, err error) {
	l = &Listener{
		config:   cfg,
		handler:  handler,
		ioConfig: iocfg,
		connMgr: &InboundConnManager{
			activeConns: make(map[*Connector]struct{}),
		},
	}
	l.config.SetDefaultIfNotDefined()
	l.ioConfig.SetDefaultIfNotDefined()
	if l.netListener, err = net.Listen(l.config.Network, l.config.GetConnString()); err != nil {
		return nil, err
	}
	return
}

func (l *Listener) Close() error {
	l.closed.Store(true)
	return l.netListener.Close()
}

// Shutdown stops accepting and asks every connection to stop.
func (l *Listener) Shutdown() {
	l.Close()
	l.connMgr.Shutdown()
}

func (l *Listener) WaitForShutdownToComplete(timeout time.Duration) bool {
	return l.connMgr.WaitForShutdownToComplete(timeout)
}

func (l *Listener) AcceptAndServe() error {
	conn, err := l.netListener.Accept()

	if err == nil {
		otel.RecordCount(otel.Accept, []otel.Tags{{TagName: otel.Status, TagValue: otel.Success}})
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}
		glog.Infof("connection from %s", conn.RemoteAddr())
		l.startNewConnector(conn)
	} else if !l.closed.Load() {
		otel.RecordCount(otel.Accept, []otel.Tags{{TagName: otel.Status, TagValue: otel.Error}})
	}
	//log the error in caller if needed
	return err
}

// Serve accepts connections until the listener is closed.
func (l *Listener) Serve() error {
	glog.Infof("listening on %s", l.Addr())
	for {
		err := l.AcceptAndServe()
		if err == nil {
			continue
		}
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			continue
		}
		glog.Errorf("accept: %s", err)
		time.Sleep(5 * time.Millisecond)
	}
}

func (l *Listener) startNewConnector(conn net.Conn) {
	connector := &Connector{
		conn:    conn,
		reader:  util.NewBufioReader(conn, l.ioConfig.IOBufSize),
		chStop:  make(chan struct{}),
		connMgr: l.connMgr,
		handler: l.handler,
		config:  l.ioConfig,
	}
	connector.Start()
}

func (l *Listener) GetName() string {
	if len(l.config.Name) != 0 {
		return l.config.Name
	}
	return l.config.GetConnString()
}

func (l *Listener) Addr() net.Addr {
	return l.netListener.Addr()
}

func (l *Listener) GetNumActiveConnections() uint32 {
	return l.connMgr.GetNumActiveConnections()
}
