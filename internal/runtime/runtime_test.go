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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/observer-gh/stackdeploy/internal/helm"
	"github.com/observer-gh/stackdeploy/internal/k8s"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "helm.sh/helm/v4/pkg/release/v1"
)

type noopHelm struct{}

func (noopHelm) ReleaseExists(name string) (bool, error) { return false, nil }
func (noopHelm) InstallRelease(ctx context.Context, spec helm.ReleaseSpec, upgrade bool) error {
	return nil
}
func (noopHelm) UninstallRelease(name string) error { return nil }
func (noopHelm) ListReleases(ctx context.Context) ([]*v1.Release, error) {
	return nil, nil
}

type noopStack struct{}

func (noopStack) Namespace() string                                             { return "test" }
func (noopStack) NamespaceExists(ctx context.Context) (bool, error)             { return false, nil }
func (noopStack) CreateNamespace(ctx context.Context) error                     { return nil }
func (noopStack) ConfigMapExists(ctx context.Context, name string) (bool, error) {
	return false, nil
}
func (noopStack) CreateConfigMapFromFile(ctx context.Context, name, path string) error { return nil }
func (noopStack) DeleteConfigMap(ctx context.Context, name string) error               { return nil }
func (noopStack) GetJobState(ctx context.Context, name string) (k8s.JobState, error) {
	return k8s.JobAbsent, nil
}
func (noopStack) DeleteJob(ctx context.Context, name string) error                 { return nil }
func (noopStack) ApplyManifestFile(ctx context.Context, path string) error         { return nil }
func (noopStack) DeleteManifestFile(ctx context.Context, path string) error        { return nil }
func (noopStack) DeploymentExists(ctx context.Context, name string) (bool, error)  { return false, nil }
func (noopStack) WaitForPodsReady(ctx context.Context, selector string) error      { return nil }
func (noopStack) WaitForDeploymentAvailable(ctx context.Context, name string) error { return nil }
func (noopStack) WaitForJobComplete(ctx context.Context, name string) error        { return nil }
func (noopStack) PodsExist(ctx context.Context, selector string) (bool, error)     { return false, nil }
func (noopStack) PodReadiness(ctx context.Context, selector string) (int, int, error) {
	return 0, 0, nil
}

func TestNewDefaults(t *testing.T) {
	rt := New()
	assert.Equal(t, DefaultTimeout, rt.Timeout())
}

func TestWithTimeout(t *testing.T) {
	rt := New(WithTimeout(2 * time.Minute))
	assert.Equal(t, 2*time.Minute, rt.Timeout())
}

func TestContextRoundTrip(t *testing.T) {
	rt := New()
	ctx := WithRuntime(context.Background(), rt)
	assert.Same(t, rt, FromRuntime(ctx))
}

func TestFromRuntimeMissing(t *testing.T) {
	assert.Nil(t, FromRuntime(context.Background()))
}

func TestHelmClientIsMemoized(t *testing.T) {
	calls := 0
	rt := New(WithHelmFactory(func(r *Runtime) (HelmClient, error) {
		calls++
		return noopHelm{}, nil
	}))

	first, err := rt.Helm()
	require.NoError(t, err)
	second, err := rt.Helm()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestHelmFactoryErrorIsNotCached(t *testing.T) {
	calls := 0
	rt := New(WithHelmFactory(func(r *Runtime) (HelmClient, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return noopHelm{}, nil
	}))

	_, err := rt.Helm()
	require.Error(t, err)

	_, err = rt.Helm()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStackClientIsMemoized(t *testing.T) {
	calls := 0
	rt := New(WithStackFactory(func(r *Runtime) (StackClient, error) {
		calls++
		return noopStack{}, nil
	}))

	_, err := rt.Stack()
	require.NoError(t, err)
	_, err = rt.Stack()
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestConfigIsMemoized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackdeploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`apiVersion: stackdeploy/v1
namespace: message-board
releases:
  redis:
    name: my-redis
    chart: redis
  kafka:
    name: my-kafka
    chart: kafka
  mariadb:
    name: my-mariadb
    chart: mariadb
init:
  configMap: db-init-sql
  sqlFile: init.sql
  job: job.yaml
  jobName: db-init-job
workloads:
  backend:
    manifest: backend.yaml
    deployment: backend
  frontend:
    manifest: frontend.yaml
    deployment: frontend
`), 0o644))

	rt := New(WithConfigPath(path))

	first, err := rt.Config()
	require.NoError(t, err)

	// Removing the file proves the second load comes from memory.
	require.NoError(t, os.Remove(path))

	second, err := rt.Config()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCloseResetsClients(t *testing.T) {
	calls := 0
	rt := New(WithHelmFactory(func(r *Runtime) (HelmClient, error) {
		calls++
		return noopHelm{}, nil
	}))

	_, err := rt.Helm()
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, err = rt.Helm()
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestValidateTimeout(t *testing.T) {
	assert.True(t, ValidateTimeout(HelmTimeoutMin))
	assert.True(t, ValidateTimeout(DefaultTimeout))
	assert.True(t, ValidateTimeout(HelmTimeoutMax))
	assert.False(t, ValidateTimeout(HelmTimeoutMin-time.Second))
	assert.False(t, ValidateTimeout(HelmTimeoutMax+time.Second))
}
