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

package helm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeValuesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenderValuesEmptyPath(t *testing.T) {
	values, err := RenderValues("", nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRenderValuesMissingFile(t *testing.T) {
	_, err := RenderValues(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestRenderValuesPlainYAML(t *testing.T) {
	path := writeValuesFile(t, "architecture: standalone\nmaster:\n  persistence:\n    enabled: false\n")

	values, err := RenderValues(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "standalone", values["architecture"])
	master, ok := values["master"].(map[string]any)
	require.True(t, ok)
	persistence, ok := master["persistence"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, persistence["enabled"])
}

func TestRenderValuesSubstitutesVars(t *testing.T) {
	path := writeValuesFile(t, "auth:\n  password: {{ .Vars.REDIS_PASSWORD | quote }}\n")

	values, err := RenderValues(path, map[string]string{"REDIS_PASSWORD": "s3cret"})
	require.NoError(t, err)

	auth, ok := values["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s3cret", auth["password"])
}

func TestRenderValuesSprigFunctions(t *testing.T) {
	path := writeValuesFile(t, "name: {{ \"My-Redis\" | lower }}\n")

	values, err := RenderValues(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "my-redis", values["name"])
}

func TestRenderValuesBadTemplate(t *testing.T) {
	path := writeValuesFile(t, "name: {{ .Vars.X\n")

	_, err := RenderValues(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse values template")
}

func TestRenderValuesBadYAML(t *testing.T) {
	path := writeValuesFile(t, "not: [valid\n")

	_, err := RenderValues(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse rendered values")
}

func TestWrapHelmError(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "pending operation", err: errors.New("another operation (install/upgrade/rollback) is in progress"), want: "another operation is in progress"},
		{name: "timeout", err: errors.New("timeout waiting for resources"), want: "operation timed out"},
		{name: "unreachable cluster", err: errors.New("dial tcp 127.0.0.1:6443: connection refused"), want: "unable to connect to Kubernetes cluster"},
		{name: "forbidden", err: errors.New("secrets is forbidden"), want: "insufficient permissions"},
		{name: "already exists", err: errors.New("cannot re-use a name that is still in use: already exists"), want: "already exists"},
		{name: "fallthrough", err: errors.New("chart not found"), want: "helm install failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := c.wrapHelmError("install", "my-redis", tt.err)
			require.Error(t, wrapped)
			assert.Contains(t, wrapped.Error(), tt.want)
		})
	}
}
