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

// Package config loads the framework's process-level configuration: the
// cluster manager master address, the framework's own identity, the
// ZooKeeper connect string used for framework-id persistence, artifact file
// locations, and the listen addresses of its three HTTP surfaces. Flags
// registered on the root cobra command are the source of truth; an
// optional YAML file can override any of them, a flag-first configuration
// style plus the YAML overlay cuemby-warren's `apply` command demonstrates
// elsewhere in the pack.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mesosphere/exhibitor-mesos-framework/server"
)

// Config is the framework's complete process configuration.
type Config struct {
	MesosMaster   string `yaml:"mesosMaster"`
	FrameworkName string `yaml:"frameworkName"`
	FrameworkUser string `yaml:"frameworkUser"`
	FrameworkRole string `yaml:"frameworkRole"`

	ClusterName      string        `yaml:"clusterName"`
	ZkServers        []string      `yaml:"zkServers"`
	ZkChroot         string        `yaml:"zkChroot"`
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout"`

	ControlListenAddress  string `yaml:"controlListenAddress"`
	ArtifactListenAddress string `yaml:"artifactListenAddress"`
	ArtifactAdvertiseHost string `yaml:"artifactAdvertiseHost"`
	MetricsListenAddress  string `yaml:"metricsListenAddress"`

	Artifacts server.ArtifactURIs `yaml:"artifacts"`
}

// RegisterFlags adds every recognized flag to cmd's flag set with the
// defaults a single-node development run needs, the same pattern the
// teacher registers its own flags with on the plain flag package -- ported
// here onto pflag/cobra since that's the CLI library the rest of the pack
// standardizes on.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("mesos-master", "127.0.0.1:5050", "Cluster manager master address (host:port or zk://... )")
	flags.String("framework-name", "exhibitor", "Framework name registered with the cluster manager")
	flags.String("framework-user", "", "OS user the framework registers as (empty means the cluster manager's default)")
	flags.String("framework-role", "*", "Resource role the framework registers under")

	flags.String("cluster-name", "default", "Logical ensemble name; scopes the framework-id znode path")
	flags.StringSlice("zk-servers", nil, "ZooKeeper servers for framework-id persistence (host:port,host:port,...); empty disables persistence")
	flags.String("zk-chroot", "/exhibitor-mesos-framework", "ZooKeeper chroot path framework-id state is stored under")
	flags.Duration("reconcile-timeout", 2*time.Minute, "How long a server may remain in Reconciling before it is reported stuck")

	flags.String("control-listen-address", ":9000", "Listen address for the control-plane HTTP API")
	flags.String("artifact-listen-address", ":9001", "Listen address for the artifact file server")
	flags.String("artifact-advertise-host", "", "Hostname executors should use to fetch artifacts (defaults to the control-listen-address host)")
	flags.String("metrics-listen-address", ":9002", "Listen address for the /metrics endpoint")

	flags.String("artifact-framework-jar", "", "Path to the framework jar artifact")
	flags.String("artifact-exhibitor", "", "Path to the Exhibitor distribution artifact")
	flags.String("artifact-zookeeper", "", "Path to the ZooKeeper distribution artifact")
	flags.String("artifact-jdk", "", "Path to the JDK distribution artifact")
	flags.String("artifact-s3credentials", "", "Path to the optional S3 credentials properties file")
	flags.String("artifact-defaultconfig", "", "Path to the optional default Exhibitor config properties file")

	flags.String("config-file", "", "Optional YAML file whose values override the flags above")
}

// FromFlags builds a Config from cmd's parsed flags, then applies a YAML
// override file if --config-file was given. Mandatory artifact paths are
// validated by the artifact package itself at Handler construction time,
// not here.
func FromFlags(cmd *cobra.Command) (*Config, error) {
	flags := cmd.Flags()

	cfg := &Config{}
	var err error
	if cfg.MesosMaster, err = flags.GetString("mesos-master"); err != nil {
		return nil, err
	}
	if cfg.FrameworkName, err = flags.GetString("framework-name"); err != nil {
		return nil, err
	}
	if cfg.FrameworkUser, err = flags.GetString("framework-user"); err != nil {
		return nil, err
	}
	if cfg.FrameworkRole, err = flags.GetString("framework-role"); err != nil {
		return nil, err
	}
	if cfg.ClusterName, err = flags.GetString("cluster-name"); err != nil {
		return nil, err
	}
	if cfg.ZkServers, err = flags.GetStringSlice("zk-servers"); err != nil {
		return nil, err
	}
	if cfg.ZkChroot, err = flags.GetString("zk-chroot"); err != nil {
		return nil, err
	}
	if cfg.ReconcileTimeout, err = flags.GetDuration("reconcile-timeout"); err != nil {
		return nil, err
	}
	if cfg.ControlListenAddress, err = flags.GetString("control-listen-address"); err != nil {
		return nil, err
	}
	if cfg.ArtifactListenAddress, err = flags.GetString("artifact-listen-address"); err != nil {
		return nil, err
	}
	if cfg.ArtifactAdvertiseHost, err = flags.GetString("artifact-advertise-host"); err != nil {
		return nil, err
	}
	if cfg.MetricsListenAddress, err = flags.GetString("metrics-listen-address"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.FrameworkJar, err = flags.GetString("artifact-framework-jar"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.Exhibitor, err = flags.GetString("artifact-exhibitor"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.ZooKeeper, err = flags.GetString("artifact-zookeeper"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.JDK, err = flags.GetString("artifact-jdk"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.S3Credentials, err = flags.GetString("artifact-s3credentials"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.DefaultConfig, err = flags.GetString("artifact-defaultconfig"); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString("config-file")
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		if err := mergeYAMLFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	if cfg.ArtifactAdvertiseHost == "" {
		cfg.ArtifactAdvertiseHost = strings.SplitN(cfg.ControlListenAddress, ":", 2)[0]
	}

	return cfg, nil
}

// mergeYAMLFile decodes path onto cfg; only fields present in the file are
// overridden, since a zero-value yaml.Unmarshal into an already-populated
// struct leaves absent keys untouched.
func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
