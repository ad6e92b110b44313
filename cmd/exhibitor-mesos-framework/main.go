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

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	mschedlib "github.com/mesos/mesos-go/scheduler"
	"github.com/samuel/go-zookeeper/zk"
	"github.com/spf13/cobra"

	"github.com/mesosphere/exhibitor-mesos-framework/artifact"
	"github.com/mesosphere/exhibitor-mesos-framework/config"
	"github.com/mesosphere/exhibitor-mesos-framework/ensemble"
	"github.com/mesosphere/exhibitor-mesos-framework/fwid"
	"github.com/mesosphere/exhibitor-mesos-framework/httpapi"
	"github.com/mesosphere/exhibitor-mesos-framework/metrics"
	"github.com/mesosphere/exhibitor-mesos-framework/scheduler"
	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "exhibitor-mesos-framework",
	Short: "Supervises a ZooKeeper/Exhibitor ensemble on a Mesos-style cluster manager",
	RunE:  run,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromFlags(cmd)
	if err != nil {
		return err
	}

	artifactHandler, err := artifact.Handler(cfg.Artifacts)
	if err != nil {
		log.Errorf("Fatal: %s", err)
		os.Exit(1)
	}

	artifactPort, err := portOf(cfg.ArtifactListenAddress)
	if err != nil {
		return fmt.Errorf("artifact-listen-address: %w", err)
	}
	advertisedArtifacts := artifact.AdvertisedURIs(cfg.ArtifactAdvertiseHost, artifactPort, cfg.Artifacts)

	cluster := server.NewCluster()

	exitCode := make(chan int, 1)
	sched := scheduler.New(cluster, scheduler.Config{
		Artifacts:        advertisedArtifacts,
		ClusterName:      cfg.ClusterName,
		ZkServers:        cfg.ZkServers,
		ZkChroot:         cfg.ZkChroot,
		ReconcileTimeout: cfg.ReconcileTimeout,
		Shutdown: func(code int) {
			select {
			case exitCode <- code:
			default:
			}
		},
	})

	fetcher := &ensemble.Fetcher{Cluster: cluster}
	controlMux := httpapi.Handler(sched, fetcher)

	go serveHTTP("control", cfg.ControlListenAddress, controlMux)
	go serveHTTP("artifact", cfg.ArtifactListenAddress, artifactHandler)
	go serveHTTP("metrics", cfg.MetricsListenAddress, metricsMux(sched))

	go reportStuckReconciliationsPeriodically(sched)

	framework := &mesos.FrameworkInfo{
		Name: proto.String(cfg.FrameworkName),
		User: proto.String(cfg.FrameworkUser),
		Role: proto.String(cfg.FrameworkRole),
	}
	if len(cfg.ZkServers) > 0 {
		if priorID, loadErr := fwid.Load(cfg.ZkServers, cfg.ZkChroot, cfg.ClusterName); loadErr == nil {
			log.Infof("Reregistering against prior framework ID %s", priorID)
			framework.Id = &mesos.FrameworkID{Value: proto.String(priorID)}
		} else if loadErr != zk.ErrNoNode {
			log.Warningf("Failed to load persisted framework ID, registering as new: %s", loadErr)
		}
	}

	driverCfg := mschedlib.DriverConfig{
		Master:    cfg.MesosMaster,
		Framework: framework,
		Scheduler: sched,
	}
	driver, err := mschedlib.NewMesosSchedulerDriver(driverCfg)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Received shutdown signal, stopping driver")
		driver.Stop(false)
		exitCode <- 0
	}()

	go func() {
		if status, err := driver.Run(); err != nil {
			log.Errorf("Scheduler driver failed with status %v: %s", status, err)
			select {
			case exitCode <- 1:
			default:
			}
		}
	}()

	code := <-exitCode
	os.Exit(code)
	return nil
}

func metricsMux(sched *scheduler.Scheduler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsObservingHandler(sched))
	return mux
}

// metricsObservingHandler recomputes the per-state gauges from the current
// cluster snapshot immediately before every scrape, so /metrics never goes
// stale between control-API mutations.
func metricsObservingHandler(sched *scheduler.Scheduler) http.Handler {
	inner := metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ObserveCluster(sched.Status())
		inner.ServeHTTP(w, r)
	})
}

// portOf extracts the numeric port from a listen address like ":9001" or
// "0.0.0.0:9001", for building the advertised artifact download URLs.
func portOf(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

func serveHTTP(name, addr string, handler http.Handler) {
	log.Infof("Serving %s HTTP on %s", name, addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Errorf("%s HTTP server exited: %s", name, err)
	}
}

func reportStuckReconciliationsPeriodically(sched *scheduler.Scheduler) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		sched.ReportStuckReconciliations()
	}
}
