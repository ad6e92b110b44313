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

// Package httpapi serves the synchronous control-plane HTTP surface:
// /api/add, /api/start, /api/stop, /api/remove, /api/config, /api/status.
// All responses are JSON, built the same way the classic AdminHTTP mux
// built its /stats and /members responses: one ServeMux, one handler per
// route, json.Marshal straight to the ResponseWriter.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/golang/glog"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// Control is the subset of *scheduler.Scheduler the HTTP surface drives.
// Defined here (rather than imported) so this package never needs to import
// mesos-go transitively.
type Control interface {
	AddServer(id string, cfg server.ServerConfig, constraints map[string][]server.Constraint) (*server.Server, error)
	Start(id string) (*server.Server, bool)
	Stop(id string) (*server.Server, bool)
	Remove(id string) (*server.Server, bool)
	Configure(id string, options map[string]string) (*server.Server, bool)
	Status() []*server.Server
}

// EnsembleStatusFetcher optionally enriches /api/status with each
// supervised node's own view of the ensemble. Implementations should be
// best-effort: a failure to reach a node must not fail the whole request.
type EnsembleStatusFetcher interface {
	FetchStatus(id string) (interface{}, bool)
}

// Handler builds the control-plane mux over ctl. fetcher may be nil, in
// which case /api/status omits per-node ensemble enrichment.
func Handler(ctl Control, fetcher EnsembleStatusFetcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/add", handleAdd(ctl))
	mux.HandleFunc("/api/start", handleStart(ctl))
	mux.HandleFunc("/api/stop", handleStop(ctl))
	mux.HandleFunc("/api/remove", handleRemove(ctl))
	mux.HandleFunc("/api/config", handleConfig(ctl))
	mux.HandleFunc("/api/status", handleStatus(ctl, fetcher))
	return mux
}

func logRequest(r *http.Request) {
	log.Infof("Control API received %s %s", r.Method, r.URL.Path)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode control API response: %s", err)
	}
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("Control API rejecting request: %s", msg)
	http.Error(w, msg, http.StatusBadRequest)
}

// unknownServer is the synthetic response returned for an unrecognized id:
// HTTP 200 with state == Unknown, so operator tooling that always expects a
// server object keeps working.
func unknownServer(id string) *server.Server {
	return &server.Server{ID: id, State: server.Unknown}
}

func handleAdd(ctl Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		q := r.URL.Query()
		id := q.Get("id")
		if id == "" {
			badRequest(w, "missing required parameter 'id'")
			return
		}

		cfg := server.NewServerConfig()
		if cpu := q.Get("cpu"); cpu != "" {
			v, err := strconv.ParseFloat(cpu, 64)
			if err != nil {
				badRequest(w, "invalid cpu %q: %s", cpu, err)
				return
			}
			cfg.CPUs = v
		}
		if mem := q.Get("mem"); mem != "" {
			v, err := strconv.ParseFloat(mem, 64)
			if err != nil {
				badRequest(w, "invalid mem %q: %s", mem, err)
				return
			}
			cfg.MemMB = v
		}
		if backoff := q.Get("configchangebackoff"); backoff != "" {
			v, err := strconv.ParseInt(backoff, 10, 64)
			if err != nil {
				badRequest(w, "invalid configchangebackoff %q: %s", backoff, err)
				return
			}
			cfg.SharedConfigChangeBackoff = v
		}

		var constraints map[string][]server.Constraint
		if raw := q.Get("constraints"); raw != "" {
			parsed, err := server.ParseConstraints(raw)
			if err != nil {
				badRequest(w, "invalid constraints %q: %s", raw, err)
				return
			}
			constraints = parsed
		}

		srv, err := ctl.AddServer(id, cfg, constraints)
		if err != nil {
			badRequest(w, "%s", err)
			return
		}
		writeJSON(w, srv)
	}
}

func handleStart(ctl Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		id := r.URL.Query().Get("id")
		if id == "" {
			badRequest(w, "missing required parameter 'id'")
			return
		}
		srv, ok := ctl.Start(id)
		if !ok {
			writeJSON(w, unknownServer(id))
			return
		}
		writeJSON(w, srv)
	}
}

func handleStop(ctl Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		id := r.URL.Query().Get("id")
		if id == "" {
			badRequest(w, "missing required parameter 'id'")
			return
		}
		srv, ok := ctl.Stop(id)
		if !ok {
			writeJSON(w, unknownServer(id))
			return
		}
		writeJSON(w, srv)
	}
}

func handleRemove(ctl Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		id := r.URL.Query().Get("id")
		if id == "" {
			badRequest(w, "missing required parameter 'id'")
			return
		}
		srv, ok := ctl.Remove(id)
		if !ok {
			writeJSON(w, unknownServer(id))
			return
		}
		writeJSON(w, srv)
	}
}

func handleConfig(ctl Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		q := r.URL.Query()
		id := q.Get("id")
		if id == "" {
			badRequest(w, "missing required parameter 'id'")
			return
		}
		options := map[string]string{}
		for k, vs := range q {
			if k == "id" || len(vs) == 0 {
				continue
			}
			options[k] = vs[0]
		}
		srv, ok := ctl.Configure(id, options)
		if !ok {
			writeJSON(w, unknownServer(id))
			return
		}
		writeJSON(w, srv)
	}
}

// statusEntry is a server plus its optional best-effort ensemble enrichment.
type statusEntry struct {
	*server.Server
	EnsembleStatus interface{} `json:"ensembleStatus,omitempty"`
}

func handleStatus(ctl Control, fetcher EnsembleStatusFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r)
		servers := ctl.Status()
		out := make([]statusEntry, 0, len(servers))
		for _, srv := range servers {
			entry := statusEntry{Server: srv}
			if fetcher != nil && srv.State == server.Running {
				if status, ok := fetcher.FetchStatus(srv.ID); ok {
					entry.EnsembleStatus = status
				}
			}
			out = append(out, entry)
		}
		writeJSON(w, out)
	}
}
