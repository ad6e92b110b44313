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

package artifact

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func mandatoryURIs(t *testing.T) server.ArtifactURIs {
	return server.ArtifactURIs{
		FrameworkJar: writeTempFile(t, "framework.jar", "jar"),
		Exhibitor:    writeTempFile(t, "exhibitor.jar", "exhibitor"),
		ZooKeeper:    writeTempFile(t, "zookeeper.tar.gz", "zk"),
		JDK:          writeTempFile(t, "jdk.tar.gz", "jdk"),
	}
}

func TestHandlerRefusesMissingArtifact(t *testing.T) {
	uris := mandatoryURIs(t)
	uris.JDK = "/no/such/path/jdk.tar.gz"

	_, err := Handler(uris)
	assert.Error(t, err)
}

func TestHandlerServesConfiguredFiles(t *testing.T) {
	uris := mandatoryURIs(t)
	h, err := Handler(uris)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/jar/framework.jar", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "jar", rec.Body.String())
}

func TestHandlerOmitsOptionalRoutesWhenUnset(t *testing.T) {
	uris := mandatoryURIs(t)
	h, err := Handler(uris)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/s3credentials/creds", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerServesOptionalArtifactsWhenConfigured(t *testing.T) {
	uris := mandatoryURIs(t)
	uris.S3Credentials = writeTempFile(t, "s3creds.properties", "creds")
	uris.DefaultConfig = writeTempFile(t, "default.properties", "defaults")

	h, err := Handler(uris)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/s3credentials/s3creds.properties", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "creds", rec.Body.String())

	req = httptest.NewRequest("GET", "/defaultconfig/default.properties", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "defaults", rec.Body.String())
}

func TestAdvertisedURIsBuildsFetchableURLs(t *testing.T) {
	local := mandatoryURIs(t)
	local.S3Credentials = writeTempFile(t, "s3creds.properties", "creds")

	advertised := AdvertisedURIs("mesos-agent-1", 9001, local)

	assert.Equal(t, "http://mesos-agent-1:9001/jar/framework.jar", advertised.FrameworkJar)
	assert.Equal(t, "http://mesos-agent-1:9001/exhibitor/exhibitor.jar", advertised.Exhibitor)
	assert.Equal(t, "http://mesos-agent-1:9001/zookeeper/zookeeper.tar.gz", advertised.ZooKeeper)
	assert.Equal(t, "http://mesos-agent-1:9001/jdk/jdk.tar.gz", advertised.JDK)
	assert.Equal(t, "http://mesos-agent-1:9001/s3credentials/s3creds.properties", advertised.S3Credentials)
	assert.Empty(t, advertised.DefaultConfig, "unset local paths must not produce a URL")
}
