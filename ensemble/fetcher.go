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
	"strconv"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// Fetcher adapts a *server.Cluster to httpapi.EnsembleStatusFetcher, looking
// up the placed hostname/port of a running server and querying it directly.
type Fetcher struct {
	Cluster *server.Cluster
}

// FetchStatus implements httpapi.EnsembleStatusFetcher. It is always
// best-effort: any lookup or network failure yields (nil, false) rather than
// an error, so a single unreachable node never fails /api/status as a whole.
func (f *Fetcher) FetchStatus(id string) (interface{}, bool) {
	srv := f.Cluster.Get(id)
	if srv == nil || srv.Config.Hostname == "" {
		return nil, false
	}
	portStr := srv.Config.ExhibitorOptions["port"]
	port, err := strconv.ParseInt(portStr, 10, 64)
	if err != nil {
		return nil, false
	}

	statuses, err := FetchStatus(srv.Config.Hostname, port)
	if err != nil {
		return nil, false
	}
	return statuses, true
}
