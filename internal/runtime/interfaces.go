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

package runtime

import (
	"context"

	"github.com/observer-gh/stackdeploy/internal/helm"
	"github.com/observer-gh/stackdeploy/internal/k8s"
	v1 "helm.sh/helm/v4/pkg/release/v1"
)

// HelmClient defines the Helm operations the sequencer and commands consume.
// The abstraction allows mock implementations in tests.
type HelmClient interface {
	// ReleaseExists probes the release history. A non-nil error means
	// existence is unknown.
	ReleaseExists(name string) (bool, error)

	// InstallRelease installs or, when upgrade is true, upgrades a release.
	InstallRelease(ctx context.Context, spec helm.ReleaseSpec, upgrade bool) error

	// UninstallRelease removes a release, tolerating one that is already gone.
	UninstallRelease(name string) error

	// ListReleases returns all releases in the configured namespace.
	ListReleases(ctx context.Context) ([]*v1.Release, error)
}

// StackClient defines the Kubernetes operations the sequencer and commands
// consume.
type StackClient interface {
	Namespace() string

	NamespaceExists(ctx context.Context) (bool, error)
	CreateNamespace(ctx context.Context) error

	ConfigMapExists(ctx context.Context, name string) (bool, error)
	CreateConfigMapFromFile(ctx context.Context, name, path string) error
	DeleteConfigMap(ctx context.Context, name string) error

	GetJobState(ctx context.Context, name string) (k8s.JobState, error)
	DeleteJob(ctx context.Context, name string) error

	ApplyManifestFile(ctx context.Context, path string) error
	DeleteManifestFile(ctx context.Context, path string) error
	DeploymentExists(ctx context.Context, name string) (bool, error)

	WaitForPodsReady(ctx context.Context, selector string) error
	WaitForDeploymentAvailable(ctx context.Context, name string) error
	WaitForJobComplete(ctx context.Context, name string) error
	PodsExist(ctx context.Context, selector string) (bool, error)
	PodReadiness(ctx context.Context, selector string) (ready, total int, err error)
}
