// Copyright 2025 The Stackdeploy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package k8s provides the Kubernetes operations the sequencer drives:
// namespace and ConfigMap management, manifest application, job state
// inspection, and readiness waits.
package k8s

import (
	"time"

	"k8s.io/client-go/kubernetes"
)

// defaultPollInterval is how often readiness conditions are re-checked.
const defaultPollInterval = 5 * time.Second

// Client wraps a clientset scoped to the stack's namespace.
type Client struct {
	cs           kubernetes.Interface
	namespace    string
	pollInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPollInterval overrides the readiness poll interval.
func WithPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// NewClient creates a namespace-scoped Kubernetes client.
func NewClient(cs kubernetes.Interface, namespace string, opts ...ClientOption) *Client {
	c := &Client{
		cs:           cs,
		namespace:    namespace,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Namespace returns the namespace this client operates in.
func (c *Client) Namespace() string {
	return c.namespace
}
