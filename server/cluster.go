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

import "fmt"

// Cluster is an insertion-ordered collection of Servers keyed by id.
// Insertion order defines reconciliation/offer-presentation order and the
// order in which peer attribute history is assembled.
type Cluster struct {
	order []string
	byID  map[string]*Server
}

// NewCluster returns an empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{byID: map[string]*Server{}}
}

// Add inserts srv, failing if its id collides with an existing server.
func (c *Cluster) Add(srv *Server) error {
	if _, exists := c.byID[srv.ID]; exists {
		return fmt.Errorf("server id %q already exists", srv.ID)
	}
	c.byID[srv.ID] = srv
	c.order = append(c.order, srv.ID)
	return nil
}

// Remove deletes the server with the given id, if any, returning it.
func (c *Cluster) Remove(id string) *Server {
	srv, ok := c.byID[id]
	if !ok {
		return nil
	}
	delete(c.byID, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return srv
}

// Get looks up a server by id.
func (c *Cluster) Get(id string) *Server {
	return c.byID[id]
}

// All returns every server in insertion order.
func (c *Cluster) All() []*Server {
	out := make([]*Server, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len reports the number of servers in the cluster.
func (c *Cluster) Len() int {
	return len(c.order)
}

// PeerAttributes projects, for every server other than excluding, the
// attribute values carried by its last known task. Servers in Added state
// (no prior task) contribute nothing. Servers are visited in insertion
// order, so earlier servers contribute attributes first.
func (c *Cluster) PeerAttributes(excluding string) map[string][]string {
	result := map[string][]string{}
	for _, id := range c.order {
		if id == excluding {
			continue
		}
		srv := c.byID[id]
		if srv.LastTask == nil {
			continue
		}
		for attr, value := range srv.LastTask.Attributes {
			result[attr] = append(result[attr], value)
		}
	}
	return result
}
