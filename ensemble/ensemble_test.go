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

package ensemble

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

func testServerAt(t *testing.T, statuses []NodeStatus, fail bool) (string, int64) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		require.Equal(t, "/exhibitor/v1/cluster/status", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(statuses))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.ParseInt(u.Port(), 10, 64)
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestFetchStatusDecodesResponse(t *testing.T) {
	want := []NodeStatus{{Hostname: "host-a", Code: 3, Description: "serving", IsLeader: true}}
	host, port := testServerAt(t, want, false)

	got, err := FetchStatus(host, port)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFetchStatusPropagatesError(t *testing.T) {
	_, err := FetchStatus("127.0.0.1", 1)
	assert.Error(t, err)
}

func TestFetchFirstReachableSkipsFailingCandidates(t *testing.T) {
	failHost, failPort := testServerAt(t, nil, true)
	want := []NodeStatus{{Hostname: "host-b", Code: 3, IsLeader: false}}
	okHost, okPort := testServerAt(t, want, false)

	got, answeredBy, err := FetchFirstReachable([]Candidate{
		{ID: "zk1", Hostname: failHost, Port: failPort},
		{ID: "zk2", Hostname: okHost, Port: okPort},
	})
	require.NoError(t, err)
	assert.Equal(t, "zk2", answeredBy)
	assert.Equal(t, want, got)
}

func TestFetchFirstReachableAllFail(t *testing.T) {
	_, _, err := FetchFirstReachable([]Candidate{
		{ID: "zk1", Hostname: "127.0.0.1", Port: 1},
	})
	assert.Error(t, err)
}

func TestFetcherSkipsServerWithoutPlacedHostname(t *testing.T) {
	cluster := server.NewCluster()
	srv, err := server.NewServer("zk1", server.NewServerConfig())
	require.NoError(t, err)
	require.NoError(t, cluster.Add(srv))

	f := &Fetcher{Cluster: cluster}
	_, ok := f.FetchStatus("zk1")
	assert.False(t, ok)
}

func TestFetcherReturnsFalseForUnknownID(t *testing.T) {
	f := &Fetcher{Cluster: server.NewCluster()}
	_, ok := f.FetchStatus("nope")
	assert.False(t, ok)
}

func TestFetcherQueriesPlacedNode(t *testing.T) {
	want := []NodeStatus{{Hostname: "host-a", Code: 3, IsLeader: true}}
	host, port := testServerAt(t, want, false)

	cluster := server.NewCluster()
	srv, err := server.NewServer("zk1", server.NewServerConfig())
	require.NoError(t, err)
	require.NoError(t, cluster.Add(srv))
	srv.Config.Hostname = host
	srv.Config.ExhibitorOptions = map[string]string{"port": strconv.FormatInt(port, 10)}

	f := &Fetcher{Cluster: cluster}
	status, ok := f.FetchStatus("zk1")
	require.True(t, ok)
	assert.Equal(t, want, status)
}
