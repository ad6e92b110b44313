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

// Package ensemble polls a supervised Exhibitor process's own view of the
// ZooKeeper ensemble over HTTP, for best-effort /api/status enrichment.
// Every node in the cluster already knows the
// ensemble's membership from its own copy of the shared config, so asking
// any one reachable node is sufficient -- tolerate individual failures and
// take the first success, the same polling idiom used against etcd's
// /v2/members.
package ensemble

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/golang/glog"
)

const requestTimeout = 5 * time.Second

// NodeStatus mirrors one entry of Exhibitor's GET /exhibitor/v1/cluster/status
// response.
type NodeStatus struct {
	Hostname    string `json:"hostname"`
	Code        int    `json:"code"`
	Description string `json:"description"`
	IsLeader    bool   `json:"isLeader"`
}

// Candidate names a single supervised node reachable at host:port.
type Candidate struct {
	ID       string
	Hostname string
	Port     int64
}

// FetchStatus queries a single node's /exhibitor/v1/cluster/status.
func FetchStatus(hostname string, port int64) ([]NodeStatus, error) {
	url := fmt.Sprintf("http://%s:%d/exhibitor/v1/cluster/status", hostname, port)

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	var statuses []NodeStatus
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("unmarshal response from %s: %w", url, err)
	}
	return statuses, nil
}

// FetchFirstReachable tries each candidate in turn, tolerating individual
// failures, and returns the first successful response along with the id of
// the candidate that answered. Returns an error only once every candidate
// has failed.
func FetchFirstReachable(candidates []Candidate) ([]NodeStatus, string, error) {
	if len(candidates) == 0 {
		return nil, "", fmt.Errorf("no candidates to query")
	}

	var lastErr error
	for _, c := range candidates {
		statuses, err := FetchStatus(c.Hostname, c.Port)
		if err != nil {
			log.V(2).Infof("ensemble status query to %s (%s) failed: %s", c.ID, c.Hostname, err)
			lastErr = err
			continue
		}
		return statuses, c.ID, nil
	}
	return nil, "", fmt.Errorf("no candidate reachable, last error: %w", lastErr)
}
