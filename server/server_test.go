package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerRejectsDash(t *testing.T) {
	_, err := NewServer("bad-id", NewServerConfig())
	assert.Error(t, err)
}

func TestTaskIDRoundTrip(t *testing.T) {
	for _, id := range []string{"a", "zk1", "exhibitor0"} {
		taskID := NextTaskID(id)
		got, err := ServerIDFromTaskID(taskID)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestMatchesPortPickAnyPort(t *testing.T) {
	srv := mustServer(t, "s1")
	offer := Offer{
		Hostname: "h1",
		CPUs:     1,
		MemMB:    512,
		Ports:    []Range{{Start: 31000, End: 31005}},
	}
	port, reason := srv.Matches(offer, nil)
	assert.Empty(t, reason)
	assert.Equal(t, int64(31000), port)
}

func TestMatchesConstrainedPort(t *testing.T) {
	cfg := NewServerConfig()
	cfg.Ports = []Range{{Start: 31010, End: 31020}}
	srv, err := NewServer("s1", cfg)
	require.NoError(t, err)

	offer := Offer{
		Hostname: "h1",
		CPUs:     1,
		MemMB:    512,
		Ports: []Range{
			{Start: 31000, End: 31005},
			{Start: 31015, End: 31018},
		},
	}
	port, reason := srv.Matches(offer, nil)
	assert.Empty(t, reason)
	assert.Equal(t, int64(31015), port)
}

func TestMatchesInsufficientCPU(t *testing.T) {
	srv := mustServer(t, "s1")
	offer := Offer{Hostname: "h1", CPUs: 0.01, MemMB: 512, Ports: []Range{{Start: 1, End: 2}}}
	_, reason := srv.Matches(offer, nil)
	assert.NotEmpty(t, reason)
}

func TestMatchesUniqueHostnameRejectsDuplicate(t *testing.T) {
	srv := mustServer(t, "s2")
	offer := Offer{Hostname: "h1", CPUs: 1, MemMB: 512, Ports: []Range{{Start: 1, End: 2}}}
	peerAttr := map[string][]string{"hostname": {"h1"}}
	_, reason := srv.Matches(offer, peerAttr)
	assert.Equal(t, "hostname doesn't match unique", reason)
}

func TestMatchesMissingAttribute(t *testing.T) {
	srv := mustServer(t, "s1")
	srv.Constraints["rack"] = []Constraint{UniqueConstraint{}}
	offer := Offer{Hostname: "h1", CPUs: 1, MemMB: 512, Ports: []Range{{Start: 1, End: 2}}}
	_, reason := srv.Matches(offer, nil)
	assert.Contains(t, reason, "rack")
}

func TestBuildTaskSetsPortAndHostname(t *testing.T) {
	srv := mustServer(t, "s1")
	offer := Offer{SlaveID: "slave1", Hostname: "h1", CPUs: 1, MemMB: 512, Ports: []Range{{Start: 31000, End: 31005}}}
	port, reason := srv.Matches(offer, nil)
	require.Empty(t, reason)

	task, err := srv.BuildTask(offer, port, ArtifactURIs{
		FrameworkJar: "http://x/jar",
		Exhibitor:    "http://x/exhibitor",
		ZooKeeper:    "http://x/zk",
		JDK:          "http://x/jdk",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(31000), task.Port)
	assert.Equal(t, "h1", srv.Config.Hostname)
	assert.Equal(t, "31000", srv.Config.ExhibitorOptions["port"])
	assert.Equal(t, "s1", task.Executor.ID)
	assert.Len(t, task.Executor.URIs, 4)
	assert.Contains(t, string(task.Payload), `"ports":"31000"`)
}

func TestBuildTaskIncludesOptionalArtifacts(t *testing.T) {
	srv := mustServer(t, "s1")
	offer := Offer{Hostname: "h1", CPUs: 1, MemMB: 512, Ports: []Range{{Start: 31000, End: 31005}}}
	port, _ := srv.Matches(offer, nil)
	task, err := srv.BuildTask(offer, port, ArtifactURIs{
		FrameworkJar:  "jar", Exhibitor: "exh", ZooKeeper: "zk", JDK: "jdk",
		S3Credentials: "s3creds", DefaultConfig: "defcfg",
	})
	require.NoError(t, err)
	assert.Len(t, task.Executor.URIs, 6)
}
