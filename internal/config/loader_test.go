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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `apiVersion: stackdeploy/v1
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
  sqlFile: deploy/sql/init.sql
  job: deploy/manifests/db-init-job.yaml
  jobName: db-init-job
workloads:
  backend:
    manifest: deploy/manifests/backend.yaml
    deployment: backend
  frontend:
    manifest: deploy/manifests/frontend.yaml
    deployment: frontend
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stackdeploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, SupportedAPIVersion, cfg.APIVersion)
	assert.Equal(t, "message-board", cfg.Namespace)
	assert.False(t, cfg.ExternalInfra)
	assert.False(t, cfg.Telemetry)

	// Defaults.
	assert.Equal(t, DefaultChartRepo, cfg.ChartRepo)
	assert.Equal(t, DefaultChartRepo, cfg.Releases.Redis.RepoURL)
	assert.Equal(t, "app.kubernetes.io/instance=my-redis", cfg.Releases.Redis.Selector)
	assert.Equal(t, "app.kubernetes.io/instance=my-kafka", cfg.Releases.Kafka.Selector)
	assert.Equal(t, "app=backend", cfg.Workloads.Backend.Selector)
	assert.Equal(t, "app=frontend", cfg.Workloads.Frontend.Selector)

	ready, err := cfg.ReadyTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultReadyTimeout, ready)

	dependency, err := cfg.DependencyTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultDependencyTimeout, dependency)
}

func TestLoadKeepsExplicitWorkloadSelector(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`    selector: tier=web
`))
	require.NoError(t, err)
	assert.Equal(t, "tier=web", cfg.Workloads.Frontend.Selector)
	assert.Equal(t, "app=backend", cfg.Workloads.Backend.Selector)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsUnsupportedAPIVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "apiVersion: stackdeploy/v2\nnamespace: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")
}

func TestLoadRejectsMissingAPIVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "namespace: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiVersion")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"unexpected: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadRejectsBadNamespace(t *testing.T) {
	bad := "apiVersion: stackdeploy/v1\nnamespace: Not_A_Namespace\n"
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadSubstitutesConfigVars(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`vars:
  REDIS_NAME: my-redis-main
context: ctx-${REDIS_NAME}
`))
	require.NoError(t, err)
	assert.Equal(t, "ctx-my-redis-main", cfg.Context)
}

func TestOSVariablesOverrideConfigVars(t *testing.T) {
	t.Setenv("SD_VAR_REDIS_NAME", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig+`vars:
  REDIS_NAME: from-config
context: ctx-${REDIS_NAME}
`))
	require.NoError(t, err)
	assert.Equal(t, "ctx-from-env", cfg.Context)
}

func TestUnprefixedOSVariablesAreIgnored(t *testing.T) {
	t.Setenv("REDIS_NAME", "leaked")

	cfg, err := Load(writeConfig(t, minimalConfig+`vars:
  REDIS_NAME: from-config
context: ctx-${REDIS_NAME}
`))
	require.NoError(t, err)
	assert.Equal(t, "ctx-from-config", cfg.Context)
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{value: "", want: time.Minute},
		{value: "300", want: 300 * time.Second},
		{value: "300s", want: 300 * time.Second},
		{value: "5m", want: 5 * time.Minute},
		{value: "bogus", wantErr: true},
		{value: "-5s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseTimeout(tt.value, time.Minute)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"timeouts:\n  ready: bogus\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}
