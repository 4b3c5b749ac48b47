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

// Package helm wraps the Helm SDK actions the sequencer needs: a release
// existence probe, install-or-upgrade from a chart repository, uninstall,
// and listing for the status command.
package helm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"helm.sh/helm/v4/pkg/action"
	chart "helm.sh/helm/v4/pkg/chart/v2"
	"helm.sh/helm/v4/pkg/chart/v2/loader"
	"helm.sh/helm/v4/pkg/cli"
	v1 "helm.sh/helm/v4/pkg/release/v1"
	"helm.sh/helm/v4/pkg/storage/driver"
)

type Client struct {
	settings      *cli.EnvSettings
	config        *action.Configuration
	timeout       time.Duration
	namespace     string
	kubeconfig    string
	storageDriver string
}

// Option is a functional option for configuring the Helm client
type Option func(*Client)

// WithNamespace sets the Kubernetes namespace for Helm operations
func WithNamespace(namespace string) Option {
	return func(c *Client) {
		c.namespace = namespace
	}
}

// WithKubeconfig sets the path to the kubeconfig file
func WithKubeconfig(kubeconfig string) Option {
	return func(c *Client) {
		c.kubeconfig = kubeconfig
	}
}

// WithStorageDriver sets the Helm storage driver (secret, configmap, or memory)
func WithStorageDriver(driver string) Option {
	return func(c *Client) {
		c.storageDriver = driver
	}
}

// WithTimeout sets the default timeout for Helm operations
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient initializes Helm action configuration with functional options.
// Default storage driver is "secret" if not specified.
// Default timeout is 5 minutes if not specified.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		storageDriver: "secret",
		timeout:       5 * time.Minute,
	}

	for _, opt := range opts {
		opt(c)
	}

	settings := cli.New()

	if c.kubeconfig != "" {
		settings.KubeConfig = c.kubeconfig
	}
	if c.namespace != "" {
		settings.SetNamespace(c.namespace)
	}

	validDrivers := map[string]bool{"secret": true, "configmap": true, "memory": true}
	if !validDrivers[c.storageDriver] {
		return nil, fmt.Errorf("invalid storage driver '%s': must be one of 'secret', 'configmap', or 'memory'", c.storageDriver)
	}

	c.config = new(action.Configuration)
	if err := c.config.Init(settings.RESTClientGetter(), settings.Namespace(), c.storageDriver); err != nil {
		return nil, fmt.Errorf("failed to initialize Helm configuration: %w", err)
	}

	c.settings = settings

	return c, nil
}

// ReleaseSpec identifies one chart release and where its chart and values
// come from.
type ReleaseSpec struct {
	Name       string
	Chart      string
	Version    string
	RepoURL    string
	ValuesFile string
	Vars       map[string]string
}

// ReleaseExists probes the release history. (true, nil) means the release
// exists, (false, nil) means it does not. A non-nil error means the probe
// itself failed and existence is unknown; callers must not read the boolean
// in that case.
func (c *Client) ReleaseExists(name string) (bool, error) {
	history := action.NewHistory(c.config)
	history.Max = 1

	_, err := history.Run(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return false, nil
	}
	return false, c.wrapHelmError("history", name, err)
}

// InstallRelease installs the release described by spec, pulling the chart
// from the configured repository. When upgrade is true the release is
// upgraded in place instead. Readiness is not waited on here; the sequencer
// runs its own readiness check after the apply.
func (c *Client) InstallRelease(ctx context.Context, spec ReleaseSpec, upgrade bool) error {
	values, err := RenderValues(spec.ValuesFile, spec.Vars)
	if err != nil {
		return fmt.Errorf("failed to render values for release '%s': %w", spec.Name, err)
	}

	if upgrade {
		up := action.NewUpgrade(c.config)
		up.Namespace = c.settings.Namespace()
		up.Timeout = c.timeout
		up.ChartPathOptions.RepoURL = spec.RepoURL
		up.ChartPathOptions.Version = spec.Version

		ch, err := c.loadChart(up.ChartPathOptions, spec.Chart)
		if err != nil {
			return fmt.Errorf("failed to load chart for release '%s': %w", spec.Name, err)
		}

		if _, err := up.RunWithContext(ctx, spec.Name, ch, values); err != nil {
			return c.wrapHelmError("upgrade", spec.Name, err)
		}
		return nil
	}

	install := action.NewInstall(c.config)
	install.ReleaseName = spec.Name
	install.Namespace = c.settings.Namespace()
	install.Timeout = c.timeout
	install.ChartPathOptions.RepoURL = spec.RepoURL
	install.ChartPathOptions.Version = spec.Version

	ch, err := c.loadChart(install.ChartPathOptions, spec.Chart)
	if err != nil {
		return fmt.Errorf("failed to load chart for release '%s': %w", spec.Name, err)
	}

	if _, err := install.RunWithContext(ctx, ch, values); err != nil {
		return c.wrapHelmError("install", spec.Name, err)
	}
	return nil
}

// loadChart resolves a chart name against the repository configured in opts
// and loads it.
func (c *Client) loadChart(opts action.ChartPathOptions, name string) (*chart.Chart, error) {
	chartPath, err := opts.LocateChart(name, c.settings)
	if err != nil {
		return nil, err
	}
	return loader.Load(chartPath)
}

// UninstallRelease removes the given release. A release that is already gone
// is not an error.
func (c *Client) UninstallRelease(name string) error {
	un := action.NewUninstall(c.config)
	un.IgnoreNotFound = true
	un.KeepHistory = false
	un.Timeout = c.timeout

	if _, err := un.Run(name); err != nil {
		return c.wrapHelmError("uninstall", name, err)
	}
	return nil
}

// ListReleases returns all releases in the configured namespace.
func (c *Client) ListReleases(ctx context.Context) ([]*v1.Release, error) {
	lister := action.NewList(c.config)
	lister.All = false
	lister.AllNamespaces = false
	lister.StateMask = action.ListAll

	rels, err := lister.Run()
	if err != nil {
		return nil, c.wrapHelmError("list", "", err)
	}
	return rels, nil
}

// wrapHelmError provides better error messages for common Helm errors.
func (c *Client) wrapHelmError(operation, releaseName string, err error) error {
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return fmt.Errorf("release '%s' not found", releaseName)
	}
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "another operation") || strings.Contains(errMsg, "pending"):
		return fmt.Errorf("another operation is in progress for release '%s', please try again later", releaseName)
	case strings.Contains(errMsg, "timeout"):
		return fmt.Errorf("operation timed out for release '%s': %w", releaseName, err)
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "dial"):
		return fmt.Errorf("unable to connect to Kubernetes cluster: %w", err)
	case strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "unauthorized"):
		return fmt.Errorf("insufficient permissions for %s operation on release '%s': %w", operation, releaseName, err)
	case strings.Contains(errMsg, "already exists"):
		return fmt.Errorf("release '%s' already exists", releaseName)
	default:
		return fmt.Errorf("helm %s failed for release '%s': %w", operation, releaseName, err)
	}
}
