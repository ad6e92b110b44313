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

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// fakeControl is an in-memory stand-in for *scheduler.Scheduler.
type fakeControl struct {
	cluster *server.Cluster
}

func newFakeControl() *fakeControl {
	return &fakeControl{cluster: server.NewCluster()}
}

func (f *fakeControl) AddServer(id string, cfg server.ServerConfig, constraints map[string][]server.Constraint) (*server.Server, error) {
	srv, err := server.NewServer(id, cfg)
	if err != nil {
		return nil, err
	}
	if constraints != nil {
		srv.Constraints = constraints
	}
	if err := f.cluster.Add(srv); err != nil {
		return nil, err
	}
	return srv, nil
}

func (f *fakeControl) Start(id string) (*server.Server, bool) {
	srv := f.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	srv.State = server.Stopped
	return srv, true
}

func (f *fakeControl) Stop(id string) (*server.Server, bool) {
	srv := f.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	return srv, true
}

func (f *fakeControl) Remove(id string) (*server.Server, bool) {
	srv := f.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	f.cluster.Remove(id)
	return srv, true
}

func (f *fakeControl) Configure(id string, options map[string]string) (*server.Server, bool) {
	srv := f.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	for k, v := range options {
		if server.RecognizedExhibitorOptions[k] {
			srv.Config.ExhibitorOptions[k] = v
		}
	}
	return srv, true
}

func (f *fakeControl) Status() []*server.Server {
	return f.cluster.All()
}

func doGet(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]interface{}
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestAddRequiresID(t *testing.T) {
	h := Handler(newFakeControl(), nil)
	rec, _ := doGet(t, h, "/api/add")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddStartStatusRoundTrip(t *testing.T) {
	h := Handler(newFakeControl(), nil)

	rec, body := doGet(t, h, "/api/add?id=zk1&cpu=1.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zk1", body["ID"])
	assert.Equal(t, "Added", body["State"])

	rec, body = doGet(t, h, "/api/start?id=zk1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stopped", body["State"])

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "zk1", list[0]["ID"])
}

func TestUnknownIDReturns200WithUnknownState(t *testing.T) {
	h := Handler(newFakeControl(), nil)
	rec, body := doGet(t, h, "/api/stop?id=nope")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Unknown", body["State"])
}

func TestConfigureIgnoresUnrecognizedKeys(t *testing.T) {
	h := Handler(newFakeControl(), nil)
	_, _ = doGet(t, h, "/api/add?id=zk1")
	rec, body := doGet(t, h, "/api/config?id=zk1&s3region=us-east-1&bogus=x")
	require.Equal(t, http.StatusOK, rec.Code)
	exhibitorConfig, ok := body["exhibitorConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "us-east-1", exhibitorConfig["s3region"])
	assert.NotContains(t, exhibitorConfig, "bogus")
}

func TestAddRejectsBadConstraints(t *testing.T) {
	h := Handler(newFakeControl(), nil)
	rec, _ := doGet(t, h, "/api/add?id=zk1&constraints=rack%3Dbogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
