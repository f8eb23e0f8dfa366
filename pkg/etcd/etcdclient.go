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

package etcd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	"mcbus/pkg/sequence"
	"mcbus/third_party/forked/golang/glog"
)

var (
	errNotInitialized = errors.New("etcd client not initialized")
	errNoLeader       = errors.New("etcd cluster has no leader")
)

// EtcdClient is the etcd backed sequence authority. The counter lives
// under the configured key prefix; replica acknowledgement is judged by
// comparing each voting member's applied raft index with the leader's
// index as observed after the last successful increment.
type EtcdClient struct {
	config    Config
	keyPrefix string
	client    *clientv3.Client
	doneCh    chan struct{}
	closeOnce sync.Once

	mtx        sync.Mutex
	lastCommit uint64
}

const NotFound = "NotFound"

var (
	_ sequence.Authority = (*EtcdClient)(nil)
	_ sequence.Announcer = (*EtcdClient)(nil)
)

var (
	shuffleDone = false
	setOnce     sync.Once
)

func NewEtcdClient(cfg *Config, clusterName string) *EtcdClient {

	var client *clientv3.Client
	var err error

	if len(cfg.Endpoints) == 0 {
		glog.Warningf("etcd: no endpoints configured.")
		return nil
	}
	cfg.SetDefaultIfNotDefined()

	now := time.Now()
	m := now.Second() % len(cfg.Endpoints)

	// Shuffle to balance load
	if m > 0 && !shuffleDone {
		endp := make([]string, len(cfg.Endpoints))
		copy(endp[0:], cfg.Endpoints[0:])
		copy(cfg.Endpoints[0:], endp[m:])
		copy(cfg.Endpoints[len(cfg.Endpoints)-m:], endp[0:m])
	}
	shuffleDone = true

	setOnce.Do(func() { // Bypass http_proxy for connecting to etcd server.
		val := strings.Join(cfg.Endpoints, ",")
		curr := os.Getenv("NO_PROXY")
		if strings.Contains(curr, val) {
			return
		}
		if len(curr) > 0 {
			val += "," + curr
		}
		os.Setenv("NO_PROXY", val)
		os.Setenv("no_proxy", val)
	})

	for i := 0; i < cfg.MaxConnectAttempts; i++ {
		client, err = clientv3.New((*cfg).Config)

		if err == nil {
			break
		}

		if client != nil {
			client.Close()
		}

		if i >= cfg.MaxConnectAttempts-1 {
			glog.Warningf("etcd: %v.", err)
			return nil
		}

		glog.Warningf("etcd: %v. Retry ...", err)
		backoff := (i + 1) * 2
		if backoff > cfg.MaxConnectBackoff {
			backoff = cfg.MaxConnectBackoff
		}
		time.Sleep(time.Duration(backoff) * time.Second)
	}

	etcdcli := &EtcdClient{
		client: client,
		config: *cfg,
		doneCh: make(chan struct{}),
	}

	etcdcli.keyPrefix = cfg.EtcdKeyPrefix + clusterName + TagCompDelimiter
	etcdcli.client.KV = namespace.NewKV(client.KV, etcdcli.keyPrefix)
	return etcdcli
}

func (e *EtcdClient) Close() {
	e.closeOnce.Do(func() {
		close(e.doneCh)
		if e.client != nil {
			e.client.Close()
		}
	})
}

func (e *EtcdClient) KeyPrefix() string {
	return e.keyPrefix
}

func (e *EtcdClient) GetValue(k string) (value string, err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.RequestTimeout.Duration)
	defer cancel()

	var resp *clientv3.GetResponse
	resp, err = e.client.Get(ctx, k)
	if err != nil {
		glog.Errorf("%v", err)
		return
	}
	sz := len(resp.Kvs)
	if sz == 1 {
		value = string(resp.Kvs[0].Value)
	} else if sz == 0 {
		err = fmt.Errorf("key '%s' not found.", k)
		value = NotFound
	} else {
		err = fmt.Errorf("unexpected response. %s", k)
	}
	return
}

// Increment atomically adds one to the decimal counter stored at key and
// returns the new value. A missing key counts as 0. Concurrent writers
// are serialized with a compare-and-swap on the key's mod revision.
func (e *EtcdClient) Increment(ctx context.Context, key string) (value int64, err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}

	for {
		var resp *clientv3.GetResponse
		if resp, err = e.client.Get(ctx, key); err != nil {
			return
		}

		var cur, rev int64
		if len(resp.Kvs) != 0 {
			if cur, err = parseCounter(resp.Kvs[0].Value); err != nil {
				err = fmt.Errorf("counter %s: %w", key, err)
				return
			}
			rev = resp.Kvs[0].ModRevision
		}
		next := cur + 1

		var tresp *clientv3.TxnResponse
		tresp, err = e.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
			Then(clientv3.OpPut(key, strconv.FormatInt(next, 10))).
			Commit()
		if err != nil {
			return
		}
		if tresp.Succeeded {
			e.recordCommit(ctx)
			glog.Debugf("etcd increment: key=%s%s val=%d", e.keyPrefix, key, next)
			return next, nil
		}
		glog.Verbosef("etcd increment: key=%s%s lost race at rev %d. Retry ...", e.keyPrefix, key, rev)
	}
}

// recordCommit remembers the leader's raft index right after a write so
// WaitForReplicas has a target.
func (e *EtcdClient) recordCommit(ctx context.Context) {
	idx, err := e.leaderIndex(ctx)
	if err != nil {
		glog.Warningf("etcd status: %v", err)
		return
	}
	e.mtx.Lock()
	if idx > e.lastCommit {
		e.lastCommit = idx
	}
	e.mtx.Unlock()
}

// leaderIndex returns the leader's raft index if the leader is among the
// configured endpoints, otherwise the highest index any endpoint reports.
func (e *EtcdClient) leaderIndex(ctx context.Context) (idx uint64, err error) {
	reached := false
	for _, ep := range e.client.Endpoints() {
		st, serr := e.client.Status(ctx, ep)
		if serr != nil {
			continue
		}
		if st.Leader == 0 {
			return 0, errNoLeader
		}
		reached = true
		if st.Header != nil && st.Header.MemberId == st.Leader {
			return st.RaftIndex, nil
		}
		if st.RaftIndex > idx {
			idx = st.RaftIndex
		}
	}
	if !reached {
		err = fmt.Errorf("no reachable endpoint in %v", e.client.Endpoints())
	}
	return
}

// WaitForReplicas polls the voting members until n of them have applied
// the last increment, or ctx is done. It never succeeds without a known
// raft index to compare against.
func (e *EtcdClient) WaitForReplicas(ctx context.Context, n int) (acked int, err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}
	e.mtx.Lock()
	target := e.lastCommit
	e.mtx.Unlock()

	ticker := time.NewTicker(e.config.PollInterval.Duration)
	defer ticker.Stop()

	for {
		if target == 0 {
			// The index was not observed right after the increment. The
			// current leader index is at least as far along.
			if target, err = e.leaderIndex(ctx); err != nil {
				glog.Debugf("etcd status: %v", err)
			}
		}
		if target != 0 {
			var applied []uint64
			if applied, err = e.appliedIndexes(ctx); err == nil {
				acked = countReplicas(target, applied)
				if acked >= n {
					return acked, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return
		case <-e.doneCh:
			err = errNotInitialized
			return
		case <-ticker.C:
		}
	}
}

func (e *EtcdClient) appliedIndexes(ctx context.Context) (applied []uint64, err error) {
	var ml *clientv3.MemberListResponse
	if ml, err = e.client.MemberList(ctx); err != nil {
		return
	}
	for _, m := range ml.Members {
		if m.IsLearner || len(m.ClientURLs) == 0 {
			continue
		}
		st, serr := e.client.Status(ctx, m.ClientURLs[0])
		if serr != nil {
			glog.Debugf("etcd status %s: %v", m.Name, serr)
			continue
		}
		applied = append(applied, st.RaftAppliedIndex)
	}
	return
}

// Announce records which process instance holds a publisher id.
func (e *EtcdClient) Announce(ctx context.Context, id sequence.PublisherId, instance string) (err error) {
	if e.client == nil {
		return errNotInitialized
	}
	key := KeyPublisher(int(id))
	if _, err = e.client.Put(ctx, key, instance); err != nil {
		glog.Warningf("etcd announce %s: %v", key, err)
	}
	return
}

func parseCounter(b []byte) (int64, error) {
	s := strings.TrimSpace(string(b))
	if len(s) == 0 {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// countReplicas counts the members that have applied target. Without a
// target nothing is known to be replicated.
func countReplicas(target uint64, applied []uint64) (n int) {
	if target == 0 {
		return
	}
	for _, a := range applied {
		if a >= target {
			n++
		}
	}
	return
}
