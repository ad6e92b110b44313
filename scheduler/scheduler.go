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

// Package scheduler implements the event-driven control loop: it adapts the
// classic mesos-go scheduler.Scheduler callback surface onto the
// cluster-manager-agnostic core in package server, and exposes the entry
// points the control API drives (AddServer, Start, Stop, Remove, Status).
//
// A single sync.RWMutex is the sole critical section protecting the Cluster
// and every Server in it: every callback below and every control API entry
// point takes the lock before touching cluster state.
package scheduler

import (
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	util "github.com/mesos/mesos-go/mesosutil"
	mschedlib "github.com/mesos/mesos-go/scheduler"
	"github.com/samuel/go-zookeeper/zk"

	"github.com/mesosphere/exhibitor-mesos-framework/fwid"
	"github.com/mesosphere/exhibitor-mesos-framework/metrics"
	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// Config bundles the framework-level settings a Scheduler needs at
// construction time.
type Config struct {
	Artifacts        server.ArtifactURIs
	ClusterName      string
	ZkServers        []string
	ZkChroot         string
	ReconcileTimeout time.Duration
	Shutdown         func(exitCode int)
}

// Scheduler is the event-driven control loop over a Cluster.
type Scheduler struct {
	mut sync.RWMutex

	cluster *server.Cluster
	cfg     Config

	driver           mschedlib.SchedulerDriver
	frameworkID      *mesos.FrameworkID
	stopRequested    map[string]bool
	reconcilingSince map[string]time.Time
}

// New constructs a Scheduler over cluster with the given configuration.
func New(cluster *server.Cluster, cfg Config) *Scheduler {
	if cfg.Shutdown == nil {
		cfg.Shutdown = func(int) {}
	}
	return &Scheduler{
		cluster:          cluster,
		cfg:              cfg,
		stopRequested:    map[string]bool{},
		reconcilingSince: map[string]time.Time{},
	}
}

// ----------------------- mesos-go scheduler.Scheduler ------------------------- //

func (s *Scheduler) Registered(
	driver mschedlib.SchedulerDriver,
	frameworkID *mesos.FrameworkID,
	masterInfo *mesos.MasterInfo,
) {
	log.Infoln("Framework registered with master", masterInfo)
	s.mut.Lock()
	s.driver = driver
	s.frameworkID = frameworkID
	s.mut.Unlock()

	if len(s.cfg.ZkServers) > 0 {
		err := fwid.Persist(frameworkID, s.cfg.ZkServers, s.cfg.ZkChroot, s.cfg.ClusterName)
		if err != nil && err != zk.ErrNodeExists {
			log.Errorf("Failed to persist framework ID: %s", err)
			s.cfg.Shutdown(1)
			return
		} else if err == zk.ErrNodeExists {
			log.Warning("Framework ID is already persisted for this cluster.")
		}
	}

	go s.Reconcile()
}

func (s *Scheduler) Reregistered(driver mschedlib.SchedulerDriver, masterInfo *mesos.MasterInfo) {
	log.Infoln("Framework re-registered with master", masterInfo)
	s.mut.Lock()
	s.driver = driver
	s.mut.Unlock()
	go s.Reconcile()
}

func (s *Scheduler) Disconnected(mschedlib.SchedulerDriver) {
	log.Warning("Mesos master disconnected.")
}

func (s *Scheduler) ResourceOffers(driver mschedlib.SchedulerDriver, offers []*mesos.Offer) {
	s.mut.Lock()
	s.driver = driver
	s.mut.Unlock()

	for _, offer := range offers {
		off := fromMesosOffer(offer)

		launched := false
		s.mut.Lock()
		for _, candidate := range s.cluster.All() {
			if !candidate.Launchable() {
				continue
			}
			peerAttr := s.cluster.PeerAttributes(candidate.ID)
			port, reason := candidate.Matches(off, peerAttr)
			if reason != "" {
				log.V(2).Infof("Offer %s rejected for server %s: %s", off.ID, candidate.ID, reason)
				continue
			}

			td, err := candidate.BuildTask(off, port, s.cfg.Artifacts)
			if err != nil {
				log.Errorf("Failed to build task for server %s: %s", candidate.ID, err)
				continue
			}
			candidate.State = server.Staging
			candidate.LastTask = &server.Task{
				TaskID:     td.TaskID,
				SlaveID:    off.SlaveID,
				ExecutorID: td.Executor.ID,
				Attributes: off.MergedAttributes(),
			}
			log.Infof("Launching server %s as task %s on %s", candidate.ID, td.TaskID, off.Hostname)
			driver.LaunchTasks(
				[]*mesos.OfferID{offer.Id},
				[]*mesos.TaskInfo{toMesosTaskInfo(td)},
				&mesos.Filters{RefuseSeconds: proto.Float64(1)},
			)
			metrics.TasksLaunchedTotal.Inc()
			launched = true
			break
		}
		s.mut.Unlock()

		if !launched {
			s.decline(driver, offer)
		}
	}
}

func (s *Scheduler) StatusUpdate(driver mschedlib.SchedulerDriver, status *mesos.TaskStatus) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.driver = driver

	taskID := status.GetTaskId().GetValue()
	id, err := server.ServerIDFromTaskID(taskID)
	if err != nil {
		log.Errorf("Status update for unparseable task id %q: %s", taskID, err)
		return
	}

	log.Infof("Status update: task %s (server %s) is in state %s", taskID, id, status.GetState())

	srv := s.cluster.Get(id)
	if srv == nil {
		if status.GetState() == mesos.TaskState_TASK_RUNNING {
			log.Warningf("Status update for unknown server %s, requesting kill", id)
			driver.KillTask(status.GetTaskId())
		}
		return
	}

	switch status.GetState() {
	case mesos.TaskState_TASK_STAGING, mesos.TaskState_TASK_STARTING:
		// No state change: still staging or reconciling.
	case mesos.TaskState_TASK_RUNNING:
		srv.State = server.Running
		if srv.LastTask == nil {
			srv.LastTask = &server.Task{
				TaskID:     taskID,
				SlaveID:    status.GetSlaveId().GetValue(),
				ExecutorID: status.GetExecutorId().GetValue(),
				Attributes: map[string]string{},
			}
		}
		delete(s.reconcilingSince, id)
	case mesos.TaskState_TASK_FINISHED,
		mesos.TaskState_TASK_FAILED,
		mesos.TaskState_TASK_KILLED,
		mesos.TaskState_TASK_LOST,
		mesos.TaskState_TASK_ERROR:
		delete(s.reconcilingSince, id)
		switch status.GetState() {
		case mesos.TaskState_TASK_FAILED, mesos.TaskState_TASK_LOST, mesos.TaskState_TASK_ERROR:
			metrics.TasksFailedTotal.Inc()
		}
		if s.stopRequested[id] {
			delete(s.stopRequested, id)
			srv.State = server.Added
		} else {
			srv.State = server.Stopped
		}
		srv.LastTask = nil
	default:
		log.Warningf("Received unhandled task state: %+v", status.GetState())
	}
}

func (s *Scheduler) OfferRescinded(mschedlib.SchedulerDriver, *mesos.OfferID) {
	log.Info("received OfferRescinded rpc")
}

func (s *Scheduler) FrameworkMessage(mschedlib.SchedulerDriver, *mesos.ExecutorID, *mesos.SlaveID, string) {
	log.Info("received framework message")
}

func (s *Scheduler) SlaveLost(mschedlib.SchedulerDriver, *mesos.SlaveID) {
	log.Info("received slave lost rpc")
}

func (s *Scheduler) ExecutorLost(mschedlib.SchedulerDriver, *mesos.ExecutorID, *mesos.SlaveID, int) {
	log.Info("received executor lost rpc")
}

func (s *Scheduler) Error(driver mschedlib.SchedulerDriver, err string) {
	log.Errorf("Scheduler received error: %s", err)
	if err == "Completed framework attempted to re-register" {
		if len(s.cfg.ZkServers) > 0 {
			if clearErr := fwid.Clear(s.cfg.ZkServers, s.cfg.ZkChroot, s.cfg.ClusterName); clearErr != nil {
				log.Errorf("Failed to clear persisted framework ID: %s", clearErr)
			}
		}
		log.Error("Removing reference to completed framework in zookeeper and dying.")
		s.cfg.Shutdown(1)
	}
}

// ----------------------- control-plane entry points ------------------------- //

// AddServer creates a new Server in the Added state with the given config
// and constraints (nil constraints means DefaultConstraints()).
func (s *Scheduler) AddServer(id string, cfg server.ServerConfig, constraints map[string][]server.Constraint) (*server.Server, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	srv, err := server.NewServer(id, cfg)
	if err != nil {
		return nil, err
	}
	if constraints != nil {
		srv.Constraints = constraints
	}
	if err := s.cluster.Add(srv); err != nil {
		return nil, err
	}
	log.Infof("Added server %s", id)
	return srv, nil
}

// Start flips a server from Added to Stopped (launchable). A no-op for
// servers already past Added.
func (s *Scheduler) Start(id string) (*server.Server, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()

	srv := s.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	if srv.State == server.Added {
		srv.State = server.Stopped
		log.Infof("Started server %s", id)
	}
	return srv, true
}

// Stop requests a server be stopped. Idempotent: stopping an Added or
// Stopped server is a no-op that still returns the server.
func (s *Scheduler) Stop(id string) (*server.Server, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.stopLocked(id)
}

func (s *Scheduler) stopLocked(id string) (*server.Server, bool) {
	srv := s.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	switch srv.State {
	case server.Added, server.Stopped:
		// already stopped; idempotent no-op
	case server.Staging, server.Running, server.Reconciling:
		s.stopRequested[id] = true
		if srv.LastTask != nil && s.driver != nil {
			log.Infof("Killing task %s for server %s", srv.LastTask.TaskID, id)
			s.driver.KillTask(&mesos.TaskID{Value: proto.String(srv.LastTask.TaskID)})
		}
	}
	return srv, true
}

// Remove stops the server if needed, then removes it from the cluster.
func (s *Scheduler) Remove(id string) (*server.Server, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()

	srv, ok := s.stopLocked(id)
	if !ok {
		return nil, false
	}
	delete(s.stopRequested, id)
	delete(s.reconcilingSince, id)
	s.cluster.Remove(id)
	log.Infof("Removed server %s", id)
	return srv, true
}

// Configure merges recognized option keys into a server's exhibitorOptions
// or sharedOverride maps. Unknown keys are logged and ignored.
func (s *Scheduler) Configure(id string, options map[string]string) (*server.Server, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()

	srv := s.cluster.Get(id)
	if srv == nil {
		return nil, false
	}
	for k, v := range options {
		switch {
		case server.RecognizedExhibitorOptions[k]:
			srv.Config.ExhibitorOptions[k] = v
		case server.RecognizedSharedOverrides[k]:
			srv.Config.SharedOverride[k] = v
		default:
			log.Warningf("Ignoring unrecognized config key %q for server %s", k, id)
		}
	}
	return srv, true
}

// Get returns a snapshot of the server with id, or nil if unknown.
func (s *Scheduler) Get(id string) *server.Server {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.cluster.Get(id)
}

// Status returns every server currently known to the cluster, in insertion
// order.
func (s *Scheduler) Status() []*server.Server {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.cluster.All()
}

// Reconcile transitions every non-Added/Stopped server to Reconciling and
// asks the cluster manager to reconcile each of their last-known tasks.
func (s *Scheduler) Reconcile() {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.driver == nil {
		return
	}

	statuses := []*mesos.TaskStatus{}
	now := time.Now()
	for _, srv := range s.cluster.All() {
		if srv.State == server.Added || srv.State == server.Stopped || srv.LastTask == nil {
			continue
		}
		srv.State = server.Reconciling
		if _, already := s.reconcilingSince[srv.ID]; !already {
			s.reconcilingSince[srv.ID] = now
		}
		statuses = append(statuses, &mesos.TaskStatus{
			TaskId:  &mesos.TaskID{Value: proto.String(srv.LastTask.TaskID)},
			State:   mesos.TaskState_TASK_STAGING.Enum(),
			SlaveId: &mesos.SlaveID{Value: proto.String(srv.LastTask.SlaveID)},
		})
	}
	if _, err := s.driver.ReconcileTasks(statuses); err != nil {
		log.Errorf("Error while calling ReconcileTasks: %s", err)
	}
}

// ReportStuckReconciliations logs (but does not kill) any server that has
// remained Reconciling longer than cfg.ReconcileTimeout. Intended to be
// invoked periodically by a background goroutine started from cmd/.
func (s *Scheduler) ReportStuckReconciliations() {
	if s.cfg.ReconcileTimeout <= 0 {
		return
	}
	s.mut.RLock()
	defer s.mut.RUnlock()
	now := time.Now()
	for id, since := range s.reconcilingSince {
		if now.Sub(since) > s.cfg.ReconcileTimeout {
			log.Warningf("Server %s has been Reconciling for %s, exceeding timeout of %s",
				id, now.Sub(since), s.cfg.ReconcileTimeout)
			metrics.ReconciliationsStuckTotal.Inc()
		}
	}
}

// ----------------------- helpers ------------------------- //

func (s *Scheduler) decline(driver mschedlib.SchedulerDriver, offer *mesos.Offer) {
	log.V(2).Infof("Declining offer %s", offer.Id.GetValue())
	driver.DeclineOffer(offer.Id, &mesos.Filters{RefuseSeconds: proto.Float64(5)})
	metrics.OffersDeclinedTotal.Inc()
}

func fromMesosOffer(offer *mesos.Offer) server.Offer {
	getResources := func(name string) []*mesos.Resource {
		return util.FilterResources(offer.Resources, func(r *mesos.Resource) bool {
			return r.GetName() == name
		})
	}

	cpus := 0.0
	for _, r := range getResources("cpus") {
		cpus += r.GetScalar().GetValue()
	}
	mem := 0.0
	for _, r := range getResources("mem") {
		mem += r.GetScalar().GetValue()
	}
	ports := []server.Range{}
	for _, r := range getResources("ports") {
		for _, pr := range r.GetRanges().GetRange() {
			ports = append(ports, server.Range{Start: int64(pr.GetBegin()), End: int64(pr.GetEnd())})
		}
	}

	attrs := map[string]string{}
	for _, a := range offer.GetAttributes() {
		if a.GetType() == mesos.Value_TEXT {
			attrs[a.GetName()] = a.GetText().GetValue()
		}
	}

	return server.Offer{
		ID:         offer.GetId().GetValue(),
		SlaveID:    offer.GetSlaveId().GetValue(),
		Hostname:   offer.GetHostname(),
		CPUs:       cpus,
		MemMB:      mem,
		Ports:      ports,
		Attributes: attrs,
	}
}

func toMesosTaskInfo(td server.TaskDescriptor) *mesos.TaskInfo {
	uris := make([]*mesos.CommandInfo_URI, 0, len(td.Executor.URIs))
	for _, u := range td.Executor.URIs {
		uris = append(uris, &mesos.CommandInfo_URI{Value: proto.String(u)})
	}

	return &mesos.TaskInfo{
		Name:    proto.String(td.Name),
		TaskId:  &mesos.TaskID{Value: proto.String(td.TaskID)},
		SlaveId: &mesos.SlaveID{Value: proto.String(td.SlaveID)},
		Executor: &mesos.ExecutorInfo{
			ExecutorId: util.NewExecutorID(td.Executor.ID),
			Name:       proto.String(td.Executor.Name),
			Command: &mesos.CommandInfo{
				Value: proto.String(td.Executor.Command),
				Uris:  uris,
			},
			Resources: []*mesos.Resource{
				util.NewScalarResource("cpus", td.Executor.CPUs),
				util.NewScalarResource("mem", td.Executor.MemMB),
			},
		},
		Data: td.Payload,
		Resources: []*mesos.Resource{
			util.NewScalarResource("cpus", td.CPUs),
			util.NewScalarResource("mem", td.MemMB),
			util.NewRangesResource("ports", []*mesos.Value_Range{
				util.NewValueRange(uint64(td.Port), uint64(td.Port)),
			}),
		},
	}
}

var _ mschedlib.Scheduler = (*Scheduler)(nil)
