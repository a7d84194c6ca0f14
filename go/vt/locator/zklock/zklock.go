/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package zklock implements the locator.LockChecker and locator.Registry
// collaborators against ZooKeeper, the same topo-server backend vitess
// itself depends on (github.com/samuel/go-zookeeper).
package zklock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/vitessio/tabletlocator/go/vt/log"
	"github.com/vitessio/tabletlocator/go/vt/vterrors"
)

// lockRoot is the znode prefix under which each server's liveness session
// is published: the node at lockRoot+"/"+server holds, as its data, the
// session token the server minted at startup.
const lockRoot = "/vt/locks"

// conn is the slice of *zk.Conn's API this package actually calls. Checker
// and Registry depend on this instead of the concrete type so tests can
// substitute a fake ensemble without standing up real ZooKeeper.
type conn interface {
	Get(path string) ([]byte, *zk.Stat, error)
}

// Checker is a LockChecker backed by reads of each server's lock znode. It memoizes
// the last-known held/lost verdict per server+session in-process so that
// repeated IsLockHeld calls for a server that has not changed do not all
// round-trip to the ensemble; InvalidateCache drops the memo, forcing the
// next check to re-query ZooKeeper.
type Checker struct {
	conn conn

	mu   sync.Mutex
	memo map[string]bool // keyed by server+"/"+session
}

// NewChecker creates a Checker using an already-established ZooKeeper
// connection.
func NewChecker(conn conn) *Checker {
	return &Checker{conn: conn, memo: make(map[string]bool)}
}

func memoKey(server, session string) string { return server + "/" + session }

// IsLockHeld reports whether session is still the current value stored at
// the server's lock znode. A memoized verdict, held or lost, is returned
// without re-reading ZooKeeper until InvalidateCache drops it.
func (c *Checker) IsLockHeld(ctx context.Context, server, session string) (bool, error) {
	c.mu.Lock()
	if held, ok := c.memo[memoKey(server, session)]; ok {
		c.mu.Unlock()
		return held, nil
	}
	c.mu.Unlock()

	path := lockRoot + "/" + server
	data, _, err := c.conn.Get(path)
	if err == zk.ErrNoNode {
		c.remember(server, session, false)
		return false, nil
	}
	if err != nil {
		return false, vterrors.Wrapf(err, "zklock: reading lock node %s", path)
	}

	held := string(data) == session
	c.remember(server, session, held)
	if !held {
		log.Warningf("zklock: server %s session %s superseded by %s", server, session, string(data))
	}
	return held, nil
}

func (c *Checker) remember(server, session string, held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo[memoKey(server, session)] = held
}

// InvalidateCache drops every memoized verdict for server, forcing the next
// IsLockHeld call for any of its sessions to re-query ZooKeeper (spec
// §4.6/§4.7).
func (c *Checker) InvalidateCache(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := server + "/"
	for k := range c.memo {
		if strings.HasPrefix(k, prefix) {
			delete(c.memo, k)
		}
	}
}

// Registry implements locator.Registry by reading a fixed znode path and
// returning its raw bytes.
type Registry struct {
	conn conn
}

// NewRegistry creates a Registry over an already-established connection.
func NewRegistry(conn conn) *Registry {
	return &Registry{conn: conn}
}

// Get reads the blob stored at path.
func (r *Registry) Get(ctx context.Context, path string) ([]byte, error) {
	data, _, err := r.conn.Get(path)
	if err != nil {
		return nil, vterrors.Wrapf(err, "zklock: reading registry path %s", path)
	}
	return data, nil
}

// Dial connects to the given ZooKeeper ensemble with the standard session
// timeout, mirroring the connection pattern vitess's own topo/zk2 backend
// uses (one shared *zk.Conn per process, reused by both Checker and
// Registry).
func Dial(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, vterrors.Wrapf(err, "zklock: connecting to %v", servers)
	}
	go logSessionEvents(events)
	return conn, nil
}

func logSessionEvents(events <-chan zk.Event) {
	for ev := range events {
		if ev.State == zk.StateExpired {
			log.Warningf("zklock: session expired: %v", ev)
			continue
		}
		log.V(2).Infof("zklock: session event: %v", ev)
	}
}

// ServerLockPath returns the znode path a server's liveness session is
// published at, exported so operators' bootstrap tooling can create it.
func ServerLockPath(server string) string {
	return fmt.Sprintf("%s/%s", lockRoot, server)
}
