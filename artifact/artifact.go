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

// Package artifact serves the static files executors fetch over HTTP when
// launching a task: the framework jar, the Exhibitor and ZooKeeper
// distributions, the JDK, and the optional S3-credentials and
// default-config files. Every route is a straight os.Stat-then-ServeFile,
// the same shape as the classic ServeExecutorArtifact handler.
package artifact

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/golang/glog"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// route pairs a URL path prefix with the local file it serves.
type route struct {
	prefix string
	path   string
}

// routes builds the shared prefix->local-path table both Handler and
// AdvertisedURIs walk, so the two never drift out of sync with each other.
func routes(uris server.ArtifactURIs) []route {
	rts := []route{
		{prefix: "/jar/", path: uris.FrameworkJar},
		{prefix: "/exhibitor/", path: uris.Exhibitor},
		{prefix: "/zookeeper/", path: uris.ZooKeeper},
		{prefix: "/jdk/", path: uris.JDK},
	}
	if uris.S3Credentials != "" {
		rts = append(rts, route{prefix: "/s3credentials/", path: uris.S3Credentials})
	}
	if uris.DefaultConfig != "" {
		rts = append(rts, route{prefix: "/defaultconfig/", path: uris.DefaultConfig})
	}
	return rts
}

// Handler builds the artifact file server: /jar/<name>, /exhibitor/<name>,
// /zookeeper/<name>, /jdk/<name>, and, when configured, /s3credentials/<name>
// and /defaultconfig/<name>.
//
// It is a fatal misconfiguration for any configured path not to exist on
// disk: callers should treat a non-nil error as unrecoverable and refuse to
// start.
func Handler(uris server.ArtifactURIs) (http.Handler, error) {
	mux := http.NewServeMux()
	for _, rt := range routes(uris) {
		if _, err := os.Stat(rt.path); err != nil {
			return nil, fmt.Errorf("artifact path for %s unreachable: %w", rt.prefix, err)
		}
		mux.HandleFunc(rt.prefix, serveAttachment(rt.path))
		log.V(2).Infof("Hosting artifact '%s' under '%s'", rt.path, rt.prefix)
	}
	return mux, nil
}

// AdvertisedURIs turns local filesystem paths into the http://advertiseHost:port/...
// download URLs executors actually fetch, mirroring ServeExecutorArtifact,
// which returned exactly such a hostURI alongside each hosted file instead
// of handing out the local path itself.
func AdvertisedURIs(advertiseHost string, port int, local server.ArtifactURIs) server.ArtifactURIs {
	urlFor := func(prefix, path string) string {
		if path == "" {
			return ""
		}
		return fmt.Sprintf("http://%s:%d%s%s", advertiseHost, port, prefix, filepath.Base(path))
	}

	return server.ArtifactURIs{
		FrameworkJar:  urlFor("/jar/", local.FrameworkJar),
		Exhibitor:     urlFor("/exhibitor/", local.Exhibitor),
		ZooKeeper:     urlFor("/zookeeper/", local.ZooKeeper),
		JDK:           urlFor("/jdk/", local.JDK),
		S3Credentials: urlFor("/s3credentials/", local.S3Credentials),
		DefaultConfig: urlFor("/defaultconfig/", local.DefaultConfig),
	}
}

// serveAttachment serves the single file at path regardless of the request
// path beneath prefix, forcing a download rather than inline rendering.
func serveAttachment(path string) http.HandlerFunc {
	name := filepath.Base(path)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeFile(w, r, path)
	}
}
