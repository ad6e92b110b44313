/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package fwid persists the Mesos framework id assigned at registration to
// ZooKeeper, so a restarted scheduler process reregisters against its prior
// framework id rather than Mesos treating it as brand new. This is the only
// cluster state this framework durably persists: the cluster membership and
// server states tracked in package server live in scheduler memory only and
// are rebuilt via reconciliation after a restart.
package fwid

import (
	"fmt"
	"strings"
	"time"

	mesos "github.com/mesos/mesos-go/mesosproto"
	"github.com/samuel/go-zookeeper/zk"
)

const sessionTimeout = 20 * time.Second

func path(chroot, clusterName string) string {
	chroot = strings.TrimSuffix(chroot, "/")
	return fmt.Sprintf("%s/%s/framework-id", chroot, clusterName)
}

func connect(servers []string) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to zookeeper: %w", err)
	}
	return conn, nil
}

// mkdirAll creates every path component above leaf as a persistent znode,
// ignoring components that already exist.
func mkdirAll(conn *zk.Conn, leaf string) error {
	parts := strings.Split(strings.Trim(leaf, "/"), "/")
	cur := ""
	for _, part := range parts[:len(parts)-1] {
		cur += "/" + part
		_, err := conn.Create(cur, []byte{}, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return err
		}
	}
	return nil
}

// Persist writes id's value under /<chroot>/<clusterName>/framework-id. It
// returns zk.ErrNodeExists if a framework id is already persisted for this
// cluster name -- callers should treat that as informational, not fatal.
func Persist(id *mesos.FrameworkID, servers []string, chroot, clusterName string) error {
	conn, err := connect(servers)
	if err != nil {
		return err
	}
	defer conn.Close()

	p := path(chroot, clusterName)
	if err := mkdirAll(conn, p); err != nil {
		return fmt.Errorf("create parent znodes for %s: %w", p, err)
	}

	_, err = conn.Create(p, []byte(id.GetValue()), 0, zk.WorldACL(zk.PermAll))
	return err
}

// Load returns the previously persisted framework id for clusterName, or
// ("", zk.ErrNoNode) if none has been persisted yet.
func Load(servers []string, chroot, clusterName string) (string, error) {
	conn, err := connect(servers)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	data, _, err := conn.Get(path(chroot, clusterName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Clear deletes the persisted framework id for clusterName, allowing the
// next Persist to succeed as though the cluster were brand new. Called when
// the cluster manager reports that this framework id was already
// terminated, so a stale reregistration attempt doesn't loop forever.
func Clear(servers []string, chroot, clusterName string) error {
	conn, err := connect(servers)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.Delete(path(chroot, clusterName), -1)
	if err == zk.ErrNoNode {
		return nil
	}
	return err
}
