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

// Package plan turns a stack config into the ordered step list the sequencer
// executes. The two deployment variants, one that installs Redis and Kafka
// itself and one that gates on them being operated elsewhere, are two
// different step lists built by the same function, not two control flows.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/observer-gh/stackdeploy/internal/config"
	"github.com/observer-gh/stackdeploy/internal/helm"
	"github.com/observer-gh/stackdeploy/internal/k8s"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/observer-gh/stackdeploy/internal/sequencer"
)

// Step names, fixed across both variants.
const (
	StepNamespace     = "namespace"
	StepRedis         = "redis"
	StepKafka         = "kafka"
	StepMariaDB       = "mariadb"
	StepOtelCollector = "otel-collector"
	StepInitConfigMap = "db-init-configmap"
	StepInitJob       = "db-init-job"
	StepBackend       = "backend"
	StepFrontend      = "frontend"
)

// Build assembles the ordered step list for the given config. Ordering
// encodes the stack's dependencies: the init job needs MariaDB, the backend
// needs the init job plus Redis and Kafka, the frontend needs the backend.
func Build(cfg *config.Config, helmClient runtime.HelmClient, kube runtime.StackClient) ([]sequencer.Step, error) {
	readyTimeout, err := cfg.ReadyTimeout()
	if err != nil {
		return nil, err
	}
	dependencyTimeout, err := cfg.DependencyTimeout()
	if err != nil {
		return nil, err
	}

	namespaceStep := sequencer.Step{
		Name:   StepNamespace,
		Policy: sequencer.SkipOnExists,
		Probe:  existsProbe(func(ctx context.Context) (bool, error) { return kube.NamespaceExists(ctx) }),
		Apply: func(ctx context.Context, _ bool) error {
			return kube.CreateNamespace(ctx)
		},
	}

	var steps []sequencer.Step
	if cfg.ExternalInfra {
		// The gates run before anything mutates the cluster: a missing
		// dependency must abort the run with nothing to clean up. Listing
		// pods in a namespace that does not exist yet simply finds none.
		steps = append(steps,
			dependencyGate(StepRedis, cfg.Releases.Redis, kube, dependencyTimeout),
			dependencyGate(StepKafka, cfg.Releases.Kafka, kube, dependencyTimeout),
			namespaceStep,
			// MariaDB stays managed here, but an existing release is left
			// alone rather than upgraded.
			releaseStep(StepMariaDB, cfg.Releases.MariaDB, sequencer.SkipOnExists, cfg, helmClient, kube, readyTimeout),
		)
	} else {
		steps = append(steps,
			namespaceStep,
			releaseStep(StepRedis, cfg.Releases.Redis, sequencer.UpgradeOnExists, cfg, helmClient, kube, readyTimeout),
			releaseStep(StepKafka, cfg.Releases.Kafka, sequencer.UpgradeOnExists, cfg, helmClient, kube, readyTimeout),
			releaseStep(StepMariaDB, cfg.Releases.MariaDB, sequencer.UpgradeOnExists, cfg, helmClient, kube, readyTimeout),
		)
	}

	if cfg.Telemetry {
		steps = append(steps,
			releaseStep(StepOtelCollector, cfg.Releases.Otel, sequencer.UpgradeOnExists, cfg, helmClient, kube, readyTimeout),
		)
	}

	steps = append(steps,
		sequencer.Step{
			Name:   StepInitConfigMap,
			Policy: sequencer.SkipOnExists,
			Probe: existsProbe(func(ctx context.Context) (bool, error) {
				return kube.ConfigMapExists(ctx, cfg.Init.ConfigMap)
			}),
			Apply: func(ctx context.Context, _ bool) error {
				return kube.CreateConfigMapFromFile(ctx, cfg.Init.ConfigMap, cfg.Init.SQLFile)
			},
		},
		sequencer.Step{
			Name:   StepInitJob,
			Policy: sequencer.SkipOnExists,
			Probe:  jobProbe(kube, cfg.Init.JobName),
			Apply: func(ctx context.Context, _ bool) error {
				return kube.ApplyManifestFile(ctx, cfg.Init.Job)
			},
			Wait: func(ctx context.Context) error {
				return kube.WaitForJobComplete(ctx, cfg.Init.JobName)
			},
			WaitTimeout: readyTimeout,
		},
		workloadStep(StepBackend, cfg.Workloads.Backend, kube, readyTimeout),
		workloadStep(StepFrontend, cfg.Workloads.Frontend, kube, readyTimeout),
	)

	return steps, nil
}

// existsProbe adapts a boolean existence query to the sequencer's three-way
// presence. An existing resource counts as fully satisfied; a query error is
// an unknown outcome, never absence.
func existsProbe(query func(ctx context.Context) (bool, error)) func(ctx context.Context) (sequencer.Presence, error) {
	return func(ctx context.Context) (sequencer.Presence, error) {
		exists, err := query(ctx)
		if err != nil {
			return sequencer.PresenceUnknown, err
		}
		if exists {
			return sequencer.PresenceReady, nil
		}
		return sequencer.PresenceAbsent, nil
	}
}

// jobProbe distinguishes the init job's three observable states: not applied
// yet, applied and finished, applied and still running. A failed job reports
// as present so the readiness wait surfaces the failure instead of the
// probe re-applying over it.
func jobProbe(kube runtime.StackClient, jobName string) func(ctx context.Context) (sequencer.Presence, error) {
	return func(ctx context.Context) (sequencer.Presence, error) {
		state, err := kube.GetJobState(ctx, jobName)
		if err != nil {
			return sequencer.PresenceUnknown, err
		}
		switch state {
		case k8s.JobAbsent:
			return sequencer.PresenceAbsent, nil
		case k8s.JobComplete:
			return sequencer.PresenceReady, nil
		default:
			return sequencer.PresencePresent, nil
		}
	}
}

// releaseStep builds a Helm release step. The probe consults the release
// history; UpgradeOnExists steps re-apply an existing release as an upgrade.
func releaseStep(name string, rel config.Release, policy sequencer.Policy, cfg *config.Config, helmClient runtime.HelmClient, kube runtime.StackClient, timeout time.Duration) sequencer.Step {
	spec := helm.ReleaseSpec{
		Name:       rel.Name,
		Chart:      rel.Chart,
		Version:    rel.Version,
		RepoURL:    rel.RepoURL,
		ValuesFile: rel.Values,
		Vars:       cfg.Vars,
	}

	return sequencer.Step{
		Name:   name,
		Policy: policy,
		Probe: func(ctx context.Context) (sequencer.Presence, error) {
			exists, err := helmClient.ReleaseExists(rel.Name)
			if err != nil {
				return sequencer.PresenceUnknown, err
			}
			if !exists {
				return sequencer.PresenceAbsent, nil
			}
			if policy == sequencer.SkipOnExists {
				return sequencer.PresenceReady, nil
			}
			return sequencer.PresencePresent, nil
		},
		Apply: func(ctx context.Context, upgrade bool) error {
			return helmClient.InstallRelease(ctx, spec, upgrade)
		},
		Wait: func(ctx context.Context) error {
			return kube.WaitForPodsReady(ctx, rel.Selector)
		},
		WaitTimeout: timeout,
	}
}

// dependencyGate builds a RequireExisting step for infrastructure this
// deployment does not own: present pods are waited on for readiness, absence
// is fatal, and nothing is ever applied.
func dependencyGate(name string, rel config.Release, kube runtime.StackClient, timeout time.Duration) sequencer.Step {
	return sequencer.Step{
		Name:   name,
		Policy: sequencer.RequireExisting,
		Probe: existsProbeToPresent(func(ctx context.Context) (bool, error) {
			return kube.PodsExist(ctx, rel.Selector)
		}),
		Wait: func(ctx context.Context) error {
			return kube.WaitForPodsReady(ctx, rel.Selector)
		},
		WaitTimeout: timeout,
	}
}

// workloadStep builds a manifest-applied workload step keyed on its
// Deployment.
func workloadStep(name string, wl config.Workload, kube runtime.StackClient, timeout time.Duration) sequencer.Step {
	return sequencer.Step{
		Name:   name,
		Policy: sequencer.SkipOnExists,
		Probe: existsProbe(func(ctx context.Context) (bool, error) {
			return kube.DeploymentExists(ctx, wl.Deployment)
		}),
		Apply: func(ctx context.Context, _ bool) error {
			return kube.ApplyManifestFile(ctx, wl.Manifest)
		},
		Wait: func(ctx context.Context) error {
			return kube.WaitForDeploymentAvailable(ctx, wl.Deployment)
		},
		WaitTimeout: timeout,
	}
}

// existsProbeToPresent maps an existence query to Present/Absent/Unknown,
// for gate steps whose readiness is decided by the wait, not the probe.
func existsProbeToPresent(query func(ctx context.Context) (bool, error)) func(ctx context.Context) (sequencer.Presence, error) {
	return func(ctx context.Context) (sequencer.Presence, error) {
		exists, err := query(ctx)
		if err != nil {
			return sequencer.PresenceUnknown, err
		}
		if exists {
			return sequencer.PresencePresent, nil
		}
		return sequencer.PresenceAbsent, nil
	}
}

// Describe returns a human-readable summary line per step, in order.
func Describe(steps []sequencer.Step) []string {
	out := make([]string, 0, len(steps))
	for i, step := range steps {
		out = append(out, fmt.Sprintf("%d. %s (%s)", i+1, step.Name, step.Policy))
	}
	return out
}
