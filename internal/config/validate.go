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

	"github.com/distribution/reference"
	"k8s.io/apimachinery/pkg/labels"
)

// Validate performs the semantic checks the JSON schema cannot express:
// well-formed image references, parseable label selectors, parseable
// timeouts.
func Validate(cfg *Config) error {
	for name, wl := range map[string]*Workload{
		"backend":  &cfg.Workloads.Backend,
		"frontend": &cfg.Workloads.Frontend,
	} {
		if wl.Selector != "" {
			if _, err := labels.Parse(wl.Selector); err != nil {
				return fmt.Errorf("workload %q has invalid selector %q: %w", name, wl.Selector, err)
			}
		}
		if wl.Image == "" {
			continue
		}
		if _, err := reference.ParseNormalizedNamed(wl.Image); err != nil {
			return fmt.Errorf("workload %q has invalid image reference %q: %w", name, wl.Image, err)
		}
	}

	for name, rel := range map[string]*Release{
		"redis":   &cfg.Releases.Redis,
		"kafka":   &cfg.Releases.Kafka,
		"mariadb": &cfg.Releases.MariaDB,
		"otel":    &cfg.Releases.Otel,
	} {
		if rel.Name == "" || rel.Selector == "" {
			continue
		}
		if _, err := labels.Parse(rel.Selector); err != nil {
			return fmt.Errorf("release %q has invalid selector %q: %w", name, rel.Selector, err)
		}
	}

	if cfg.Telemetry && cfg.Releases.Otel.Name == "" {
		return fmt.Errorf("telemetry is enabled but releases.otel is not configured")
	}

	if _, err := cfg.ReadyTimeout(); err != nil {
		return err
	}
	if _, err := cfg.DependencyTimeout(); err != nil {
		return err
	}

	return nil
}
