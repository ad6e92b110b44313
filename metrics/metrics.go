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

// Package metrics exposes cluster state as Prometheus gauges/counters on a
// /metrics endpoint, broken out per lifecycle state rather than a narrower
// running/launched/failed trio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

var (
	ServersByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exhibitor_framework_servers",
			Help: "Number of supervised servers currently in each lifecycle state",
		},
		[]string{"state"},
	)

	OffersDeclinedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exhibitor_framework_offers_declined_total",
			Help: "Total number of resource offers declined because no server matched",
		},
	)

	TasksLaunchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exhibitor_framework_tasks_launched_total",
			Help: "Total number of tasks launched across the lifetime of the scheduler process",
		},
	)

	TasksFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exhibitor_framework_tasks_failed_total",
			Help: "Total number of tasks observed to terminate in a failed/lost/killed status",
		},
	)

	ReconciliationsStuckTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exhibitor_framework_reconciliations_stuck_total",
			Help: "Total number of servers observed stuck in Reconciling past the configured timeout",
		},
	)
)

func init() {
	prometheus.MustRegister(ServersByState)
	prometheus.MustRegister(OffersDeclinedTotal)
	prometheus.MustRegister(TasksLaunchedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(ReconciliationsStuckTotal)
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

var allStates = []server.State{
	server.Added,
	server.Stopped,
	server.Staging,
	server.Running,
	server.Reconciling,
	server.Unknown,
}

// ObserveCluster recomputes ServersByState from the current cluster
// snapshot. It is cheap enough to call on every /api/status request or on
// a short periodic tick; it always overwrites every state label so a state
// that drops to zero servers is reported as 0, not left stale.
func ObserveCluster(servers []*server.Server) {
	counts := make(map[server.State]int, len(allStates))
	for _, srv := range servers {
		counts[srv.State]++
	}
	for _, st := range allStates {
		ServersByState.WithLabelValues(st.String()).Set(float64(counts[st]))
	}
}
