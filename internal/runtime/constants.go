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

import "time"

// Runtime Defaults
const (
	// DefaultTimeout is the default timeout for Helm operations
	DefaultTimeout = 10 * time.Minute

	// HelmTimeoutMin is the minimum allowed timeout for Helm operations
	HelmTimeoutMin = 30 * time.Second

	// HelmTimeoutMax is the maximum allowed timeout for Helm operations
	HelmTimeoutMax = 60 * time.Minute
)

// Environment Variables
const (
	// KubeConfigEnvVar is the environment variable for kubeconfig path
	KubeConfigEnvVar = "KUBECONFIG"

	// ConfigPathEnvVar is the environment variable for the config file path
	ConfigPathEnvVar = "SD_CONFIG"
)

// ValidateTimeout ensures timeout is within acceptable bounds.
func ValidateTimeout(timeout time.Duration) bool {
	return timeout >= HelmTimeoutMin && timeout <= HelmTimeoutMax
}
