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

package server

const (
	// DefaultCPUs is the default cpu share a server requests.
	DefaultCPUs = 0.2
	// DefaultMemMB is the default memory, in MiB, a server requests.
	DefaultMemMB = 256.0
	// DefaultSharedConfigChangeBackoffMillis is the default backoff, in
	// milliseconds, between shared-config change attempts.
	DefaultSharedConfigChangeBackoffMillis = 10000
)

// Recognized exhibitor passthrough option keys.
const (
	OptConfigType        = "configtype"
	OptZKConfigConnect   = "zkconfigconnect"
	OptZKConfigZPath     = "zkconfigzpath"
	OptS3Credentials     = "s3credentials"
	OptS3Region          = "s3region"
	OptS3Config          = "s3config"
	OptS3ConfigPrefix    = "s3configprefix"
)

// Recognized shared-config override keys.
const (
	SharedOptZookeeperInstallDir = "zookeeper-install-directory"
	SharedOptZookeeperDataDir    = "zookeeper-data-directory"
)

// RecognizedExhibitorOptions lists the exhibitorOptions keys the control API
// accepts into ServerConfig.ExhibitorOptions.
var RecognizedExhibitorOptions = map[string]bool{
	OptConfigType:      true,
	OptZKConfigConnect: true,
	OptZKConfigZPath:   true,
	OptS3Credentials:   true,
	OptS3Region:        true,
	OptS3Config:        true,
	OptS3ConfigPrefix:  true,
}

// RecognizedSharedOverrides lists the sharedOverride keys the control API
// accepts into ServerConfig.SharedOverride.
var RecognizedSharedOverrides = map[string]bool{
	SharedOptZookeeperInstallDir: true,
	SharedOptZookeeperDataDir:    true,
}

// ServerConfig is the per-server desired configuration: resources, ports,
// and passthrough options for the supervised Exhibitor+ZooKeeper process.
type ServerConfig struct {
	ExhibitorOptions          map[string]string `json:"exhibitorConfig"`
	SharedOverride            map[string]string `json:"sharedConfigOverride"`
	CPUs                      float64           `json:"cpu"`
	MemMB                     float64           `json:"mem"`
	Ports                     []Range           `json:"-"`
	SharedConfigChangeBackoff int64             `json:"sharedConfigChangeBackoff"`
	Hostname                  string            `json:"hostname"`
}

// NewServerConfig returns a ServerConfig populated with spec defaults.
func NewServerConfig() ServerConfig {
	return ServerConfig{
		ExhibitorOptions:          map[string]string{},
		SharedOverride:            map[string]string{},
		CPUs:                      DefaultCPUs,
		MemMB:                     DefaultMemMB,
		Ports:                     []Range{},
		SharedConfigChangeBackoff: DefaultSharedConfigChangeBackoffMillis,
	}
}

// TaskPayload is the JSON document shipped as the opaque task payload:
// identical field set to ServerConfig, plus the server id and the resolved
// port-range string.
type TaskPayload struct {
	ExhibitorConfig           map[string]string `json:"exhibitorConfig"`
	SharedConfigOverride      map[string]string `json:"sharedConfigOverride"`
	ID                        string            `json:"id"`
	Hostname                  string            `json:"hostname"`
	SharedConfigChangeBackoff int64             `json:"sharedConfigChangeBackoff"`
	CPU                       float64           `json:"cpu"`
	Mem                       float64           `json:"mem"`
	Ports                     string            `json:"ports"`
}

// ToPayload renders cfg as the task payload document for server id, with the
// single chosen port rendered as a one-element range string.
func (cfg ServerConfig) ToPayload(id string, port int64) TaskPayload {
	return TaskPayload{
		ExhibitorConfig:           cfg.ExhibitorOptions,
		SharedConfigOverride:      cfg.SharedOverride,
		ID:                        id,
		Hostname:                  cfg.Hostname,
		SharedConfigChangeBackoff: cfg.SharedConfigChangeBackoff,
		CPU:                       cfg.CPUs,
		Mem:                       cfg.MemMB,
		Ports:                     Range{Start: port, End: port}.String(),
	}
}
