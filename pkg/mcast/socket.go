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
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"mcbus/third_party/forked/golang/glog"
)

// PacketConn is the datagram socket a Conn reads and writes.
type PacketConn interface {
	ReadFrom(b []byte) (n int, src net.Addr, err error)
	WriteTo(b []byte, dst net.Addr) (n int, err error)
	Close() error
}

// Opener creates the socket of a Conn and returns the destination every
// datagram is written to. subscribe is set when the connection reads:
// the socket then joins the group with the configured loopback.
type Opener func(cfg *Config, subscribe bool) (pc PacketConn, dst net.Addr, err error)

type udpConn struct {
	pc     net.PacketConn
	p      *ipv4.PacketConn
	ifi    *net.Interface
	group  *net.UDPAddr
	joined bool
}

// OpenUDP is the default Opener. It binds the group port on all
// addresses with address reuse enabled so several processes on one host
// can share the group.
func OpenUDP(cfg *Config, subscribe bool) (PacketConn, net.Addr, error) {
	group := &net.UDPAddr{IP: net.ParseIP(cfg.Group).To4(), Port: cfg.Port}
	if group.IP == nil {
		return nil, nil, fmt.Errorf("mcast: invalid group %q", cfg.Group)
	}

	var ifi *net.Interface
	var err error
	if len(cfg.Interface) != 0 {
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, nil, fmt.Errorf("mcast: interface %s: %w", cfg.Interface, err)
		}
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("mcast: bind port %d: %w", cfg.Port, err)
	}
	u := &udpConn{
		pc:    pc,
		p:     ipv4.NewPacketConn(pc),
		ifi:   ifi,
		group: group,
	}

	if cfg.ReadBufferSize > 0 {
		if uc, ok := pc.(*net.UDPConn); ok {
			if err = uc.SetReadBuffer(cfg.ReadBufferSize); err != nil {
				glog.Warningf("mcast: set read buffer %d: %s", cfg.ReadBufferSize, err)
			}
		}
	}
	if err = u.p.SetMulticastTTL(cfg.TTL); err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("mcast: set ttl: %w", err)
	}
	if ifi != nil {
		if err = u.p.SetMulticastInterface(ifi); err != nil {
			pc.Close()
			return nil, nil, fmt.Errorf("mcast: set interface %s: %w", ifi.Name, err)
		}
	}
	if subscribe {
		if err = u.p.SetMulticastLoopback(cfg.Loopback); err != nil {
			pc.Close()
			return nil, nil, fmt.Errorf("mcast: set loopback: %w", err)
		}
		if err = u.p.JoinGroup(ifi, group); err != nil {
			pc.Close()
			return nil, nil, fmt.Errorf("mcast: join %s: %w", group, err)
		}
		u.joined = true
	}
	return u, group, nil
}

func (u *udpConn) ReadFrom(b []byte) (n int, src net.Addr, err error) {
	n, _, src, err = u.p.ReadFrom(b)
	return
}

func (u *udpConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	return u.p.WriteTo(b, nil, dst)
}

func (u *udpConn) Close() error {
	if u.joined {
		if err := u.p.LeaveGroup(u.ifi, u.group); err != nil {
			glog.Debugf("mcast: leave %s: %s", u.group, err)
		}
		u.joined = false
	}
	return u.pc.Close()
}
