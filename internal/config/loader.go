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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"sigs.k8s.io/yaml"
)

// Load reads and parses the config file at the given path, substitutes
// variables (config vars < .env file < OS environment), validates the result
// against the embedded schema, and fills defaults. Returns the fully resolved
// Config or an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// First pass: pull apiVersion and the vars block before substitution.
	var obj map[string]any
	if err := yaml.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if _, err := validateAPIVersion(obj); err != nil {
		return nil, err
	}

	var pre struct {
		Vars map[string]string `json:"vars"`
	}
	if err := yaml.Unmarshal(data, &pre); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	substituted, err := substituteVariables(data, pre.Vars)
	if err != nil {
		return nil, err
	}

	var substitutedObj map[string]any
	if err := yaml.Unmarshal(substituted, &substitutedObj); err != nil {
		return nil, fmt.Errorf("failed to parse substituted config YAML: %w", err)
	}

	if err := validateAgainstSchema(substitutedObj); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(substituted, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	fillDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// fillDefaults fills in everything the schema allows to be omitted.
func fillDefaults(cfg *Config) {
	if cfg.ChartRepo == "" {
		cfg.ChartRepo = DefaultChartRepo
	}

	for _, rel := range []*Release{&cfg.Releases.Redis, &cfg.Releases.Kafka, &cfg.Releases.MariaDB, &cfg.Releases.Otel} {
		if rel.Name == "" {
			continue
		}
		if rel.RepoURL == "" {
			rel.RepoURL = cfg.ChartRepo
		}
		if rel.Selector == "" {
			rel.Selector = fmt.Sprintf("app.kubernetes.io/instance=%s", rel.Name)
		}
	}

	for _, wl := range []*Workload{&cfg.Workloads.Backend, &cfg.Workloads.Frontend} {
		if wl.Deployment == "" {
			continue
		}
		if wl.Selector == "" {
			wl.Selector = fmt.Sprintf("app=%s", wl.Deployment)
		}
	}
}

// parseTimeout accepts either a Go duration string ("5m", "300s") or bare
// seconds ("300"). The scripts this replaces passed bare seconds to kubectl.
func parseTimeout(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	if secs := cast.ToInt64(value); secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout %q must be positive", value)
	}
	return d, nil
}

// ReadyTimeout returns the bound for post-apply readiness waits.
func (c *Config) ReadyTimeout() (time.Duration, error) {
	return parseTimeout(c.Timeouts.Ready, DefaultReadyTimeout)
}

// DependencyTimeout returns the bound for pre-existing-dependency gates.
func (c *Config) DependencyTimeout() (time.Duration, error) {
	return parseTimeout(c.Timeouts.Dependency, DefaultDependencyTimeout)
}
