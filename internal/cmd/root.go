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

// Package cmd provides the commands for the stackdeploy application.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/observer-gh/stackdeploy/internal/cli"
	"github.com/observer-gh/stackdeploy/internal/cmd/deploy"
	"github.com/observer-gh/stackdeploy/internal/cmd/down"
	"github.com/observer-gh/stackdeploy/internal/cmd/status"
	"github.com/observer-gh/stackdeploy/internal/cmd/validate"
	"github.com/observer-gh/stackdeploy/internal/config"
	"github.com/observer-gh/stackdeploy/internal/logging"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/spf13/cobra"
)

const (
	// ExitError is the exit code used when the application encounters an error.
	ExitError = cli.ExitError
)

// NewRootCommand creates the root command for the stackdeploy application.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackdeploy",
		Short: "Stackdeploy brings a message-board stack up on Kubernetes",
		Long: `Stackdeploy deploys a small message-board stack (Redis, Kafka, MariaDB,
a database init job, backend and frontend) to a Kubernetes cluster as an
ordered, idempotent sequence of steps. Re-running against a partially
deployed cluster finishes the remaining work without disturbing what is
already there.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			noColor, _ := cmd.Flags().GetBool("no-color")
			quiet, _ := cmd.Flags().GetBool("quiet")

			// When quiet is set, also silence cobra's own error output.
			cmd.SilenceErrors = quiet
			cmd.SilenceUsage = true

			if noColor {
				color.NoColor = true
			}

			if err := logging.SetupCharmLogger(cmd, logLevel, noColor, quiet); err != nil {
				return err
			}

			return setupRuntime(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt := runtime.FromRuntime(cmd.Context()); rt != nil {
				return rt.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("log-level", "l", log.InfoLevel.String(), "Set the logging level (debug|info|warn|error|fatal)")
	rootCmd.PersistentFlags().Bool("no-color", false, "If specified, output won't contain any color.")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Quiet or silent mode. Do not show logs or error messages.")
	rootCmd.PersistentFlags().StringP("config", "f", "", fmt.Sprintf("Path to the stack config file (default %q, env %s)", config.DefaultConfigPath, runtime.ConfigPathEnvVar))
	rootCmd.PersistentFlags().String("kubeconfig", "", fmt.Sprintf("Path to the kubeconfig file (env %s)", runtime.KubeConfigEnvVar))
	rootCmd.PersistentFlags().Duration("helm-timeout", runtime.DefaultTimeout, "Timeout for individual Helm operations")

	rootCmd.AddCommand(
		deploy.New(),
		down.New(),
		status.New(),
		validate.New(),
	)

	return rootCmd
}

// setupRuntime builds the per-invocation runtime from the persistent flags
// and stores it in the command context. Clients are constructed lazily, so
// this never touches the cluster.
func setupRuntime(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")
	helmTimeout, _ := cmd.Flags().GetDuration("helm-timeout")

	if configPath == "" {
		configPath = os.Getenv(runtime.ConfigPathEnvVar)
	}
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	if kubeconfig == "" {
		kubeconfig = os.Getenv(runtime.KubeConfigEnvVar)
	}

	if !runtime.ValidateTimeout(helmTimeout) {
		return fmt.Errorf("helm-timeout %s is out of bounds (%s to %s)",
			helmTimeout, runtime.HelmTimeoutMin, runtime.HelmTimeoutMax)
	}

	rt := runtime.New(
		runtime.WithConfigPath(configPath),
		runtime.WithKubeconfig(kubeconfig),
		runtime.WithTimeout(helmTimeout),
	)

	cmd.SetContext(runtime.WithRuntime(cmd.Context(), rt))
	return nil
}
