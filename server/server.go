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

// Package server holds the cluster-manager-agnostic core: the server model,
// the offer matcher, and the task builder. Nothing in this package imports
// mesos-go; the scheduler package adapts mesos wire types to and from the
// Offer/TaskDescriptor types defined here.
package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// State is a Server's lifecycle state.
type State int

const (
	Added State = iota
	Stopped
	Staging
	Running
	Reconciling
	Unknown
)

func (s State) String() string {
	switch s {
	case Added:
		return "Added"
	case Stopped:
		return "Stopped"
	case Staging:
		return "Staging"
	case Running:
		return "Running"
	case Reconciling:
		return "Reconciling"
	case Unknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Task records the cluster-manager's view of a server's currently or most
// recently launched task.
type Task struct {
	TaskID     string            `json:"taskId"`
	SlaveID    string            `json:"slaveId"`
	ExecutorID string            `json:"executorId"`
	Attributes map[string]string `json:"attributes"`
}

// Offer is the subset of a resource offer the matcher and task builder
// need: cpu/mem scalars, advertised port ranges, a hostname, and any
// text-valued node attributes.
type Offer struct {
	ID         string
	SlaveID    string
	Hostname   string
	CPUs       float64
	MemMB      float64
	Ports      []Range
	Attributes map[string]string
}

// MergedAttributes is the attribute map constraints are evaluated against:
// seeded with hostname, overlaid with every text-valued offer attribute.
func (o Offer) MergedAttributes() map[string]string {
	attrs := map[string]string{"hostname": o.Hostname}
	for k, v := range o.Attributes {
		attrs[k] = v
	}
	return attrs
}

// ArtifactURIs names the artifacts the executor needs fetched alongside a
// launched task.
type ArtifactURIs struct {
	FrameworkJar  string
	Exhibitor     string
	ZooKeeper     string
	JDK           string
	S3Credentials string
	DefaultConfig string
}

// ExecutorDescriptor describes the executor that will run a task.
type ExecutorDescriptor struct {
	ID      string
	Name    string
	Command string
	URIs    []string
	CPUs    float64
	MemMB   float64
}

// TaskDescriptor is the launch-ready task produced by BuildTask.
type TaskDescriptor struct {
	TaskID     string
	SlaveID    string
	Name       string
	CPUs       float64
	MemMB      float64
	Port       int64
	Payload    []byte
	Executor   ExecutorDescriptor
}

const taskIDPrefix = "exhibitor-"

// NextTaskID mints a fresh task id of the form exhibitor-<serverId>-<uuid>.
func NextTaskID(serverID string) string {
	return taskIDPrefix + serverID + "-" + uuid.New().String()
}

// ServerIDFromTaskID extracts the server id from a task id minted by
// NextTaskID. It is a left-inverse of NextTaskID for any serverID containing
// no '-': ServerIDFromTaskID(NextTaskID(id)) == id.
func ServerIDFromTaskID(taskID string) (string, error) {
	if !strings.HasPrefix(taskID, taskIDPrefix) {
		return "", fmt.Errorf("task id %q does not start with %q", taskID, taskIDPrefix)
	}
	rest := taskID[len(taskIDPrefix):]
	idx := strings.IndexByte(rest, '-')
	if idx < 0 {
		return "", fmt.Errorf("task id %q has no server/uuid separator", taskID)
	}
	return rest[:idx], nil
}

// Server is a single supervised ZooKeeper server's identity, state, and
// configuration.
type Server struct {
	ID          string
	State       State
	Config      ServerConfig
	Constraints map[string][]Constraint
	LastTask    *Task
}

// NewServer constructs a Server in the Added state with default
// constraints. id must not contain '-', since '-' delimits the task id.
func NewServer(id string, cfg ServerConfig) (*Server, error) {
	if id == "" {
		return nil, fmt.Errorf("server id must not be empty")
	}
	if strings.Contains(id, "-") {
		return nil, fmt.Errorf("server id %q must not contain '-'", id)
	}
	return &Server{
		ID:          id,
		State:       Added,
		Config:      cfg,
		Constraints: DefaultConstraints(),
	}, nil
}

// Launchable reports whether the server is eligible to be matched against
// offers.
func (s *Server) Launchable() bool {
	return s.State == Stopped
}

// pickPort returns the lowest port satisfying configPorts (or any offered
// port, if configPorts is empty) given the ranges actually advertised by the
// offer. First-matching configured range wins, per spec.
func pickPort(configPorts, offerPorts []Range) (int64, bool) {
	if len(configPorts) == 0 {
		found := false
		var lowest int64
		for _, r := range offerPorts {
			if !found || r.Start < lowest {
				lowest = r.Start
				found = true
			}
		}
		return lowest, found
	}
	for _, cr := range configPorts {
		for _, or := range offerPorts {
			if overlap, ok := cr.Overlap(or); ok {
				return overlap.Start, true
			}
		}
	}
	return 0, false
}

// Matches decides whether offer satisfies this server, given peerAttr (the
// per-attribute history of values bound by other servers in the cluster).
// Checks run in a fixed order and short-circuit on the first failure. On
// success, port is the chosen port and reason is empty; on failure, reason
// names why.
func (s *Server) Matches(offer Offer, peerAttr map[string][]string) (port int64, reason string) {
	p, ok := pickPort(s.Config.Ports, offer.Ports)
	if !ok {
		return 0, "no port in offer satisfies configured port ranges"
	}

	if offer.CPUs < s.Config.CPUs {
		return 0, fmt.Sprintf("offer cpus %.2f insufficient for required %.2f", offer.CPUs, s.Config.CPUs)
	}

	if offer.MemMB < s.Config.MemMB {
		return 0, fmt.Sprintf("offer mem %.2f insufficient for required %.2f", offer.MemMB, s.Config.MemMB)
	}

	attrs := offer.MergedAttributes()

	attrNames := make([]string, 0, len(s.Constraints))
	for a := range s.Constraints {
		attrNames = append(attrNames, a)
	}
	sort.Strings(attrNames)

	for _, attr := range attrNames {
		value, present := attrs[attr]
		if !present {
			return 0, fmt.Sprintf("attribute %s not present in offer", attr)
		}
		history := peerAttr[attr]
		for _, c := range s.Constraints[attr] {
			if !c.Matches(value, history) {
				return 0, fmt.Sprintf("%s doesn't match %s", attr, c.String())
			}
		}
	}

	return p, ""
}

// BuildTask mints a task descriptor for offer, presupposing Matches already
// succeeded and chose port. It mutates s.Config to record the chosen port
// and placed hostname.
func (s *Server) BuildTask(offer Offer, port int64, artifacts ArtifactURIs) (TaskDescriptor, error) {
	taskID := NextTaskID(s.ID)

	if s.Config.ExhibitorOptions == nil {
		s.Config.ExhibitorOptions = map[string]string{}
	}
	s.Config.ExhibitorOptions["port"] = strconv.FormatInt(port, 10)
	s.Config.Hostname = offer.Hostname

	payload, err := json.Marshal(s.Config.ToPayload(s.ID, port))
	if err != nil {
		return TaskDescriptor{}, fmt.Errorf("marshal task payload for %s: %w", s.ID, err)
	}

	uris := []string{artifacts.FrameworkJar, artifacts.Exhibitor, artifacts.ZooKeeper, artifacts.JDK}
	if artifacts.S3Credentials != "" {
		uris = append(uris, artifacts.S3Credentials)
	}
	if artifacts.DefaultConfig != "" {
		uris = append(uris, artifacts.DefaultConfig)
	}

	executor := ExecutorDescriptor{
		ID:      s.ID,
		Name:    "exhibitor",
		Command: "export PATH=$(pwd)/jdk*/bin:$PATH && ./executor",
		URIs:    uris,
		CPUs:    0.1,
		MemMB:   32,
	}

	return TaskDescriptor{
		TaskID:   taskID,
		SlaveID:  offer.SlaveID,
		Name:     "exhibitor-server",
		CPUs:     s.Config.CPUs,
		MemMB:    s.Config.MemMB,
		Port:     port,
		Payload:  payload,
		Executor: executor,
	}, nil
}
