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

// Package config loads and validates the stack configuration file. The file
// names the target namespace, the infrastructure releases, the database init
// job, and the workload manifests the sequencer drives.
package config

import "time"

const (
	// DefaultConfigPath is used when no config file path is given.
	DefaultConfigPath = "stackdeploy.yaml"

	// SupportedAPIVersion is the only config schema version this build reads.
	SupportedAPIVersion = "stackdeploy/v1"

	// DefaultChartRepo is where the infrastructure charts are pulled from
	// unless a release overrides it.
	DefaultChartRepo = "https://charts.bitnami.com/bitnami"
)

// Config is the fully resolved stack configuration.
type Config struct {
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`

	// Namespace is the single namespace every resource lands in. It is fixed
	// for the whole run.
	Namespace string `json:"namespace" yaml:"namespace"`

	// Context, when set, is the kubeconfig context the operator expects to be
	// active. The deploy command refuses to run against any other context.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	ChartRepo string `json:"chartRepo,omitempty" yaml:"chartRepo,omitempty"`

	// ExternalInfra switches to the plan variant that assumes Redis and Kafka
	// are operated by someone else: they are gated on, never installed.
	ExternalInfra bool `json:"externalInfra,omitempty" yaml:"externalInfra,omitempty"`

	// Telemetry enables the optional OTel collector release step.
	Telemetry bool `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`

	Releases  Releases          `json:"releases" yaml:"releases"`
	Init      InitSpec          `json:"init" yaml:"init"`
	Workloads Workloads         `json:"workloads" yaml:"workloads"`
	Timeouts  Timeouts          `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`
	Vars      map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
}

// Release describes one Helm release the sequencer manages or gates on.
type Release struct {
	// Name is the release name, e.g. "my-redis".
	Name string `json:"name" yaml:"name"`

	// Chart is the chart name within the repository, e.g. "redis".
	Chart string `json:"chart" yaml:"chart"`

	// Version pins the chart version. Empty means latest.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Values is the path to the values file for this release. The file is
	// rendered as a template before being handed to Helm.
	Values string `json:"values,omitempty" yaml:"values,omitempty"`

	// Selector is the pod label selector the readiness check waits on.
	// Defaults to app.kubernetes.io/instance=<name>.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// RepoURL overrides the top-level chart repository for this release.
	RepoURL string `json:"repoURL,omitempty" yaml:"repoURL,omitempty"`
}

// Releases holds the infrastructure releases of the stack.
type Releases struct {
	Redis   Release `json:"redis" yaml:"redis"`
	Kafka   Release `json:"kafka" yaml:"kafka"`
	MariaDB Release `json:"mariadb" yaml:"mariadb"`
	Otel    Release `json:"otel,omitempty" yaml:"otel,omitempty"`
}

// InitSpec describes the one-shot database initialization: a ConfigMap built
// from the SQL file, mounted by a batch Job that runs to completion once.
type InitSpec struct {
	ConfigMap string `json:"configMap" yaml:"configMap"`
	SQLFile   string `json:"sqlFile" yaml:"sqlFile"`
	Job       string `json:"job" yaml:"job"`
	JobName   string `json:"jobName" yaml:"jobName"`
}

// Workload describes one manifest-applied application workload.
type Workload struct {
	// Manifest is the path to a multi-document YAML file holding the
	// Deployment, Service and any ConfigMaps for the workload.
	Manifest string `json:"manifest" yaml:"manifest"`

	// Deployment is the name of the Deployment inside the manifest, used for
	// the existence probe and the readiness wait.
	Deployment string `json:"deployment" yaml:"deployment"`

	// Selector is the pod label selector used for readiness counts. Defaults
	// to app=<deployment>; set it when the manifest labels pods differently.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// Image, when set, is validated as a well-formed image reference.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// Workloads holds the application workloads applied after init completes.
type Workloads struct {
	Backend  Workload `json:"backend" yaml:"backend"`
	Frontend Workload `json:"frontend" yaml:"frontend"`
}

// Timeouts are given as duration strings ("300s", "5m") or bare seconds.
type Timeouts struct {
	// Ready bounds every post-apply readiness wait.
	Ready string `json:"ready,omitempty" yaml:"ready,omitempty"`

	// Dependency bounds the pre-existing-dependency gates, which should
	// resolve quickly when the dependency is healthy.
	Dependency string `json:"dependency,omitempty" yaml:"dependency,omitempty"`
}

// Defaults mirrored from the shell scripts this tool replaces.
const (
	DefaultReadyTimeout      = 300 * time.Second
	DefaultDependencyTimeout = 60 * time.Second
)
