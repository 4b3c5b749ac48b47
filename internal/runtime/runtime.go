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

// Package runtime holds per-invocation state: the resolved config and the
// lazily constructed Helm and Kubernetes clients.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/observer-gh/stackdeploy/internal/config"
	"github.com/observer-gh/stackdeploy/internal/helm"
	"github.com/observer-gh/stackdeploy/internal/k8s"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// runtimeKey is a private context key for storing the Runtime in context
type runtimeKey struct{}

// Runtime holds per-invocation state and lazily initialized clients.
type Runtime struct {
	configPath string
	kubeconfig string
	timeout    time.Duration

	cfg   *config.Config
	cfgMu sync.Mutex
	helm  HelmClient
	kube  StackClient
	mu    sync.Mutex

	// Factory functions for creating clients (enables testing)
	helmFactory func(*Runtime) (HelmClient, error)
	kubeFactory func(*Runtime) (StackClient, error)
}

// Option defines a functional option for configuring Runtime.
type Option func(*Runtime)

// WithConfigPath sets the stack config file path.
func WithConfigPath(path string) Option {
	return func(r *Runtime) {
		r.configPath = path
	}
}

// WithKubeconfig sets the kubeconfig file path.
func WithKubeconfig(kubeconfig string) Option {
	return func(r *Runtime) {
		r.kubeconfig = kubeconfig
	}
}

// WithTimeout sets the timeout for Helm operations.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = timeout
	}
}

// WithHelmFactory sets a custom Helm client factory for testing.
func WithHelmFactory(factory func(*Runtime) (HelmClient, error)) Option {
	return func(r *Runtime) {
		r.helmFactory = factory
	}
}

// WithStackFactory sets a custom Kubernetes client factory for testing.
func WithStackFactory(factory func(*Runtime) (StackClient, error)) Option {
	return func(r *Runtime) {
		r.kubeFactory = factory
	}
}

// defaultHelmFactory creates a Helm client bound to the config's namespace.
func defaultHelmFactory(r *Runtime) (HelmClient, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}

	opts := []helm.Option{helm.WithNamespace(cfg.Namespace)}
	if r.kubeconfig != "" {
		opts = append(opts, helm.WithKubeconfig(r.kubeconfig))
	}
	if r.timeout > 0 {
		opts = append(opts, helm.WithTimeout(r.timeout))
	}

	return helm.NewClient(opts...)
}

// defaultStackFactory creates a Kubernetes client bound to the config's
// namespace.
func defaultStackFactory(r *Runtime) (StackClient, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}

	restCfg, err := r.RESTConfig()
	if err != nil {
		return nil, err
	}

	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	return k8s.NewClient(cs, cfg.Namespace), nil
}

// New constructs a Runtime with functional options.
func New(options ...Option) *Runtime {
	r := &Runtime{
		timeout:     DefaultTimeout,
		helmFactory: defaultHelmFactory,
		kubeFactory: defaultStackFactory,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// WithRuntime returns a new context carrying the provided runtime.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// FromRuntime extracts a Runtime from the context, or nil if absent.
func FromRuntime(ctx context.Context) *Runtime {
	if v := ctx.Value(runtimeKey{}); v != nil {
		if rt, ok := v.(*Runtime); ok {
			return rt
		}
	}
	return nil
}

// Config loads and memoizes the stack config. It has its own lock so the
// client factories, which run under the client lock, can call it.
func (r *Runtime) Config() (*config.Config, error) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	if r.cfg != nil {
		return r.cfg, nil
	}

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	r.cfg = cfg
	return cfg, nil
}

// Helm returns a memoized Helm client configured for this runtime.
func (r *Runtime) Helm() (HelmClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.helm != nil {
		return r.helm, nil
	}

	c, err := r.helmFactory(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create helm client (kubeconfig=%q): %w", r.kubeconfig, err)
	}
	r.helm = c
	return r.helm, nil
}

// Stack returns a memoized Kubernetes client configured for this runtime.
func (r *Runtime) Stack() (StackClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kube != nil {
		return r.kube, nil
	}

	c, err := r.kubeFactory(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	r.kube = c
	return r.kube, nil
}

// Close performs cleanup of resources held by the runtime.
// It's safe to call multiple times.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.helm = nil
	r.kube = nil

	r.cfgMu.Lock()
	r.cfg = nil
	r.cfgMu.Unlock()

	return nil
}

// Timeout returns the configured timeout for Helm operations.
func (r *Runtime) Timeout() time.Duration { return r.timeout }

// RESTConfig returns a Kubernetes REST config, trying in-cluster first and
// falling back to kubeconfig resolution.
func (r *Runtime) RESTConfig() (*rest.Config, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		if r.kubeconfig != "" {
			cfg, err = clientcmd.BuildConfigFromFlags("", r.kubeconfig)
		} else {
			loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
			overrides := &clientcmd.ConfigOverrides{}
			cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w (provide --kubeconfig or ensure KUBECONFIG/~/.kube/config is set)", err)
		}
	}
	return cfg, nil
}

// CurrentContext returns the active kubeconfig context name. Empty when
// running in-cluster.
func (r *Runtime) CurrentContext() (string, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if r.kubeconfig != "" {
		loadingRules.ExplicitPath = r.kubeconfig
	}

	rawConfig, err := loadingRules.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return rawConfig.CurrentContext, nil
}
